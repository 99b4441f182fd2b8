package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/RubensDuarte2025/Julius-rmd/internal/models"
	"github.com/RubensDuarte2025/Julius-rmd/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// dbtx is satisfied by both the pool and an open transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type scanner interface {
	Scan(dest ...any) error
}

type Store struct {
	queries
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{queries: queries{db: pool}, pool: pool}
}

// RunInTx serializes transactions sharing lockKey with a transaction-scoped
// advisory lock.
func (s *Store) RunInTx(ctx context.Context, lockKey string, fn func(ctx context.Context, q store.Queries) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
		return err
	}
	if err = fn(ctx, queries{db: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type queries struct {
	db dbtx
}

const tableColumns = `id, numero_identificador, capacidade, status, created_at`

func (q queries) CreateTable(ctx context.Context, input store.CreateTableInput) (models.Table, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO mesas (numero_identificador, capacidade, status, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING `+tableColumns, input.Number, input.Capacity, string(input.Status), input.CreatedAt)
	table, err := scanTable(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.Table{}, store.ErrTableNumberTaken
		}
		return models.Table{}, err
	}
	return table, nil
}

func (q queries) GetTable(ctx context.Context, tableID int64) (models.Table, error) {
	row := q.db.QueryRow(ctx, `SELECT `+tableColumns+` FROM mesas WHERE id = $1`, tableID)
	table, err := scanTable(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Table{}, store.ErrTableNotFound
		}
		return models.Table{}, err
	}
	return table, nil
}

func (q queries) ListTables(ctx context.Context) ([]models.Table, error) {
	rows, err := q.db.Query(ctx, `SELECT `+tableColumns+` FROM mesas ORDER BY numero_identificador ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []models.Table
	for rows.Next() {
		table, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tables, nil
}

func (q queries) UpdateTableStatus(ctx context.Context, tableID int64, status models.TableStatus) error {
	tag, err := q.db.Exec(ctx, `UPDATE mesas SET status = $2 WHERE id = $1`, tableID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrTableNotFound
	}
	return nil
}

const orderColumns = `
	p.id, p.mesa_id, m.numero_identificador, p.status_pedido, p.status_cozinha, p.horario_entrada_cozinha,
	p.data_abertura, p.data_fechamento, p.observacoes_gerais, p.metodo_pagamento_registrado, p.valor_pago_registrado`

func (q queries) CreateTableOrder(ctx context.Context, input store.CreateOrderInput) (models.TableOrder, error) {
	var orderID int64
	row := q.db.QueryRow(ctx, `
		INSERT INTO pedidos_mesa (mesa_id, status_pedido, data_abertura)
		SELECT id, $2, $3 FROM mesas WHERE id = $1
		RETURNING id
	`, input.TableID, string(models.OrderOpen), input.OpenedAt)
	if err := row.Scan(&orderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.TableOrder{}, store.ErrTableNotFound
		}
		return models.TableOrder{}, err
	}
	return q.GetTableOrder(ctx, orderID)
}

func (q queries) GetTableOrder(ctx context.Context, orderID int64) (models.TableOrder, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM pedidos_mesa p JOIN mesas m ON m.id = p.mesa_id
		WHERE p.id = $1
	`, orderID)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.TableOrder{}, store.ErrOrderNotFound
		}
		return models.TableOrder{}, err
	}
	orders := []models.TableOrder{order}
	if err := q.attachLines(ctx, orders); err != nil {
		return models.TableOrder{}, err
	}
	return orders[0], nil
}

func (q queries) ListTableOrders(ctx context.Context, tableID int64, statuses []models.OrderStatus) ([]models.TableOrder, error) {
	var filter []string
	if statuses != nil {
		filter = make([]string, 0, len(statuses))
		for _, status := range statuses {
			filter = append(filter, string(status))
		}
	}
	return q.listOrders(ctx, `
		SELECT `+orderColumns+`
		FROM pedidos_mesa p JOIN mesas m ON m.id = p.mesa_id
		WHERE p.mesa_id = $1 AND ($2::text[] IS NULL OR p.status_pedido = ANY($2))
		ORDER BY p.data_abertura DESC, p.id DESC
	`, tableID, filter)
}

func (q queries) UpdateTableOrder(ctx context.Context, order models.TableOrder) error {
	var paid any
	if order.PaidAmount != nil {
		paid = order.PaidAmount.Cents()
	}
	tag, err := q.db.Exec(ctx, `
		UPDATE pedidos_mesa
		SET status_pedido = $2,
			status_cozinha = $3,
			horario_entrada_cozinha = $4,
			data_fechamento = $5,
			observacoes_gerais = $6,
			metodo_pagamento_registrado = $7,
			valor_pago_registrado = $8
		WHERE id = $1
	`, order.ID, string(order.Status), nullIfEmpty(string(order.KitchenStatus)), order.KitchenEnteredAt,
		order.ClosedAt, order.Notes, nullIfEmpty(string(order.PaymentMethod)), paid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrOrderNotFound
	}
	return nil
}

const lineColumns = `id, pedido_id, produto_id, produto_nome, quantidade, preco_unitario_no_momento, subtotal_item, observacoes_item`

func (q queries) AddOrderLine(ctx context.Context, line models.OrderLine) (models.OrderLine, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO itens_pedido_mesa (pedido_id, produto_id, produto_nome, quantidade, preco_unitario_no_momento, subtotal_item, observacoes_item)
		SELECT id, $2, $3, $4, $5, $6, $7 FROM pedidos_mesa WHERE id = $1
		RETURNING `+lineColumns,
		line.OrderID, line.ProductID, line.ProductName, line.Quantity, line.UnitPrice.Cents(), line.Subtotal.Cents(), line.Note)
	created, err := scanLine(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.OrderLine{}, store.ErrOrderNotFound
		}
		return models.OrderLine{}, err
	}
	return created, nil
}

func (q queries) UpdateOrderLine(ctx context.Context, line models.OrderLine) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE itens_pedido_mesa
		SET quantidade = $3, preco_unitario_no_momento = $4, subtotal_item = $5, observacoes_item = $6
		WHERE id = $1 AND pedido_id = $2
	`, line.ID, line.OrderID, line.Quantity, line.UnitPrice.Cents(), line.Subtotal.Cents(), line.Note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrLineNotFound
	}
	return nil
}

func (q queries) DeleteOrderLine(ctx context.Context, orderID, lineID int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM itens_pedido_mesa WHERE id = $1 AND pedido_id = $2`, lineID, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrLineNotFound
	}
	return nil
}

func (q queries) ListKitchenTableOrders(ctx context.Context, statuses []models.KitchenStatus) ([]models.TableOrder, error) {
	return q.listOrders(ctx, `
		SELECT `+orderColumns+`
		FROM pedidos_mesa p JOIN mesas m ON m.id = p.mesa_id
		WHERE p.status_cozinha = ANY($1)
		ORDER BY p.id ASC
	`, kitchenFilter(statuses))
}

func (q queries) ListPaidOrderLines(ctx context.Context, window store.Window) ([]models.OrderLine, error) {
	rows, err := q.db.Query(ctx, `
		SELECT i.id, i.pedido_id, i.produto_id, i.produto_nome, i.quantidade, i.preco_unitario_no_momento, i.subtotal_item, i.observacoes_item
		FROM itens_pedido_mesa i JOIN pedidos_mesa p ON p.id = i.pedido_id
		WHERE p.status_pedido = $1
			AND p.data_fechamento IS NOT NULL
			AND ($2::timestamptz IS NULL OR p.data_fechamento >= $2)
			AND ($3::timestamptz IS NULL OR p.data_fechamento < $3)
		ORDER BY i.id ASC
	`, string(models.OrderPaid), window.From, window.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []models.OrderLine
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

const conversationColumns = `
	id, telefone_cliente, estado_conversa, carrinho_atual, dados_temporarios, nome_cliente, endereco_entrega,
	status_cozinha, horario_entrada_cozinha, data_criacao, data_atualizacao`

func (q queries) CreateConversation(ctx context.Context, phone string, createdAt time.Time) (models.Conversation, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO pedidos_whatsapp (telefone_cliente, estado_conversa, data_criacao, data_atualizacao)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (telefone_cliente) DO UPDATE SET telefone_cliente = EXCLUDED.telefone_cliente
		RETURNING `+conversationColumns, phone, string(models.StateStart), createdAt)
	return scanConversation(row)
}

func (q queries) GetConversation(ctx context.Context, conversationID int64) (models.Conversation, error) {
	row := q.db.QueryRow(ctx, `SELECT `+conversationColumns+` FROM pedidos_whatsapp WHERE id = $1`, conversationID)
	conversation, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Conversation{}, store.ErrConversationNotFound
		}
		return models.Conversation{}, err
	}
	return conversation, nil
}

func (q queries) GetConversationByPhone(ctx context.Context, phone string) (models.Conversation, error) {
	row := q.db.QueryRow(ctx, `SELECT `+conversationColumns+` FROM pedidos_whatsapp WHERE telefone_cliente = $1`, phone)
	conversation, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Conversation{}, store.ErrConversationNotFound
		}
		return models.Conversation{}, err
	}
	return conversation, nil
}

func (q queries) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	return q.listConversations(ctx, `SELECT `+conversationColumns+` FROM pedidos_whatsapp ORDER BY data_atualizacao DESC`)
}

func (q queries) ListConversationsByID(ctx context.Context, ids []int64) ([]models.Conversation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return q.listConversations(ctx, `SELECT `+conversationColumns+` FROM pedidos_whatsapp WHERE id = ANY($1) ORDER BY id ASC`, ids)
}

func (q queries) ListKitchenConversations(ctx context.Context, statuses []models.KitchenStatus) ([]models.Conversation, error) {
	return q.listConversations(ctx, `
		SELECT `+conversationColumns+`
		FROM pedidos_whatsapp
		WHERE status_cozinha = ANY($1)
		ORDER BY id ASC
	`, kitchenFilter(statuses))
}

func (q queries) SaveConversation(ctx context.Context, conversation models.Conversation) error {
	cart, err := json.Marshal(conversation.Cart)
	if err != nil {
		return err
	}
	scratch, err := json.Marshal(conversation.Scratch)
	if err != nil {
		return err
	}
	tag, err := q.db.Exec(ctx, `
		UPDATE pedidos_whatsapp
		SET estado_conversa = $2,
			carrinho_atual = $3,
			dados_temporarios = $4,
			nome_cliente = $5,
			endereco_entrega = $6,
			status_cozinha = $7,
			horario_entrada_cozinha = $8,
			data_atualizacao = $9
		WHERE id = $1
	`, conversation.ID, string(conversation.State), cart, scratch, conversation.CustomerName, conversation.DeliveryAddress,
		nullIfEmpty(string(conversation.KitchenStatus)), conversation.KitchenEnteredAt, conversation.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrConversationNotFound
	}
	return nil
}

const paymentColumns = `
	id, order_kind, order_id, metodo_pagamento, valor_pago, status_pagamento, data_hora_pagamento,
	transacao_id_gateway, qr_code_pix_copia_cola`

func (q queries) InsertPayment(ctx context.Context, record models.PaymentRecord) (models.PaymentRecord, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO pagamentos (order_kind, order_id, metodo_pagamento, valor_pago, status_pagamento, data_hora_pagamento, transacao_id_gateway, qr_code_pix_copia_cola)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+paymentColumns,
		string(record.Order.Kind()), record.Order.ID(), string(record.Method), record.Amount.Cents(), string(record.Status),
		record.PaidAt, record.GatewayTransactionID, record.PixPayload)
	return scanPayment(row)
}

func (q queries) ListPayments(ctx context.Context, ref models.OrderRef) ([]models.PaymentRecord, error) {
	return q.listPayments(ctx, `
		SELECT `+paymentColumns+`
		FROM pagamentos
		WHERE order_kind = $1 AND order_id = $2
		ORDER BY data_hora_pagamento DESC, id DESC
	`, string(ref.Kind()), ref.ID())
}

func (q queries) ListApprovedPayments(ctx context.Context, window store.Window) ([]models.PaymentRecord, error) {
	return q.listPayments(ctx, `
		SELECT `+paymentColumns+`
		FROM pagamentos
		WHERE status_pagamento = $1
			AND ($2::timestamptz IS NULL OR data_hora_pagamento >= $2)
			AND ($3::timestamptz IS NULL OR data_hora_pagamento < $3)
		ORDER BY data_hora_pagamento DESC, id DESC
	`, string(models.PaymentApproved), window.From, window.To)
}

func (q queries) listOrders(ctx context.Context, query string, args ...any) ([]models.TableOrder, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.TableOrder
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := q.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (q queries) attachLines(ctx context.Context, orders []models.TableOrder) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(orders))
	index := make(map[int64]int, len(orders))
	for i, order := range orders {
		ids = append(ids, order.ID)
		index[order.ID] = i
	}

	rows, err := q.db.Query(ctx, `SELECT `+lineColumns+` FROM itens_pedido_mesa WHERE pedido_id = ANY($1) ORDER BY id ASC`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return err
		}
		i := index[line.OrderID]
		orders[i].Lines = append(orders[i].Lines, line)
	}
	return rows.Err()
}

func (q queries) listConversations(ctx context.Context, query string, args ...any) ([]models.Conversation, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		conversation, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conversation)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return conversations, nil
}

func (q queries) listPayments(ctx context.Context, query string, args ...any) ([]models.PaymentRecord, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.PaymentRecord
	for rows.Next() {
		record, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func scanTable(row scanner) (models.Table, error) {
	var table models.Table
	var status string
	if err := row.Scan(&table.ID, &table.Number, &table.Capacity, &status, &table.CreatedAt); err != nil {
		return models.Table{}, err
	}
	table.Status = models.TableStatus(status)
	return table, nil
}

func scanOrder(row scanner) (models.TableOrder, error) {
	var order models.TableOrder
	var status, notes string
	var kitchenNull, methodNull sql.NullString
	var enteredNull, closedNull sql.NullTime
	var paidNull sql.NullInt64
	if err := row.Scan(&order.ID, &order.TableID, &order.TableNumber, &status, &kitchenNull, &enteredNull,
		&order.OpenedAt, &closedNull, &notes, &methodNull, &paidNull); err != nil {
		return models.TableOrder{}, err
	}
	order.Status = models.OrderStatus(status)
	order.KitchenStatus = models.KitchenStatus(kitchenNull.String)
	order.KitchenEnteredAt = nullTimePtr(enteredNull)
	order.ClosedAt = nullTimePtr(closedNull)
	order.Notes = notes
	order.PaymentMethod = models.PaymentMethod(methodNull.String)
	if paidNull.Valid {
		paid := models.Cents(paidNull.Int64)
		order.PaidAmount = &paid
	}
	return order, nil
}

func scanLine(row scanner) (models.OrderLine, error) {
	var line models.OrderLine
	var unitPrice, subtotal int64
	if err := row.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.ProductName, &line.Quantity, &unitPrice, &subtotal, &line.Note); err != nil {
		return models.OrderLine{}, err
	}
	line.UnitPrice = models.Cents(unitPrice)
	line.Subtotal = models.Cents(subtotal)
	return line, nil
}

func scanConversation(row scanner) (models.Conversation, error) {
	var conversation models.Conversation
	var state string
	var cart, scratch []byte
	var kitchenNull sql.NullString
	var enteredNull sql.NullTime
	if err := row.Scan(&conversation.ID, &conversation.Phone, &state, &cart, &scratch, &conversation.CustomerName,
		&conversation.DeliveryAddress, &kitchenNull, &enteredNull, &conversation.CreatedAt, &conversation.UpdatedAt); err != nil {
		return models.Conversation{}, err
	}
	parsed, err := models.ParseConversationState(state)
	if err != nil {
		return models.Conversation{}, store.InvalidArgument("conversation %d: %v", conversation.ID, err)
	}
	conversation.State = parsed
	if len(cart) > 0 {
		if err := json.Unmarshal(cart, &conversation.Cart); err != nil {
			return models.Conversation{}, err
		}
	}
	if len(scratch) > 0 {
		if err := json.Unmarshal(scratch, &conversation.Scratch); err != nil {
			return models.Conversation{}, err
		}
	}
	conversation.KitchenStatus = models.KitchenStatus(kitchenNull.String)
	conversation.KitchenEnteredAt = nullTimePtr(enteredNull)
	return conversation, nil
}

func scanPayment(row scanner) (models.PaymentRecord, error) {
	var record models.PaymentRecord
	var kind, method, status string
	var orderID, amount int64
	if err := row.Scan(&record.ID, &kind, &orderID, &method, &amount, &status, &record.PaidAt,
		&record.GatewayTransactionID, &record.PixPayload); err != nil {
		return models.PaymentRecord{}, err
	}
	ref, err := models.ParseOrderRef(kind, orderID)
	if err != nil {
		return models.PaymentRecord{}, err
	}
	record.Order = ref
	record.Method = models.PaymentMethod(method)
	record.Amount = models.Cents(amount)
	record.Status = models.PaymentStatus(status)
	return record, nil
}

func kitchenFilter(statuses []models.KitchenStatus) []string {
	filter := make([]string, 0, len(statuses))
	for _, status := range statuses {
		if status != models.KitchenNone {
			filter = append(filter, string(status))
		}
	}
	return filter
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	return &value.Time
}
