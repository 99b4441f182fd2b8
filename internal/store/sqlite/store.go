// Package sqlite provides a single-file store for small deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/RubensDuarte2025/Julius-rmd/internal/models"
	"github.com/RubensDuarte2025/Julius-rmd/internal/store"
	"github.com/RubensDuarte2025/Julius-rmd/internal/store/sqlite/migrations"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

type Store struct {
	queries
	sqlDB *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens the database at path and applies embedded migrations.
// Transactions take the write lock up front and wait on the busy timeout,
// so every RunInTx is serialized regardless of its key.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{queries: queries{db: sqlDB}, sqlDB: sqlDB}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) RunInTx(ctx context.Context, lockKey string, fn func(ctx context.Context, q store.Queries) error) (err error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", lockKey, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, queries{db: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

type queries struct {
	db dbtx
}

func (q queries) CreateTable(ctx context.Context, input store.CreateTableInput) (models.Table, error) {
	result, err := q.db.ExecContext(ctx, `
		INSERT INTO mesas (numero_identificador, capacidade, status, created_at) VALUES (?, ?, ?, ?)
	`, input.Number, input.Capacity, string(input.Status), toMillis(input.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return models.Table{}, store.ErrTableNumberTaken
		}
		return models.Table{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return models.Table{}, err
	}
	return q.GetTable(ctx, id)
}

const tableColumns = `id, numero_identificador, capacidade, status, created_at`

func (q queries) GetTable(ctx context.Context, tableID int64) (models.Table, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+tableColumns+` FROM mesas WHERE id = ?`, tableID)
	table, err := scanTable(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Table{}, store.ErrTableNotFound
	}
	return table, err
}

func (q queries) ListTables(ctx context.Context) ([]models.Table, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+tableColumns+` FROM mesas ORDER BY numero_identificador ASC`)
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
	return tables, rows.Err()
}

func (q queries) UpdateTableStatus(ctx context.Context, tableID int64, status models.TableStatus) error {
	result, err := q.db.ExecContext(ctx, `UPDATE mesas SET status = ? WHERE id = ?`, string(status), tableID)
	return affected(result, err, store.ErrTableNotFound)
}

const orderColumns = `
	p.id, p.mesa_id, m.numero_identificador, p.status_pedido, p.status_cozinha, p.horario_entrada_cozinha,
	p.data_abertura, p.data_fechamento, p.observacoes_gerais, p.metodo_pagamento_registrado, p.valor_pago_registrado`

func (q queries) CreateTableOrder(ctx context.Context, input store.CreateOrderInput) (models.TableOrder, error) {
	if _, err := q.GetTable(ctx, input.TableID); err != nil {
		return models.TableOrder{}, err
	}
	result, err := q.db.ExecContext(ctx, `
		INSERT INTO pedidos_mesa (mesa_id, status_pedido, data_abertura) VALUES (?, ?, ?)
	`, input.TableID, string(models.OrderOpen), toMillis(input.OpenedAt))
	if err != nil {
		return models.TableOrder{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return models.TableOrder{}, err
	}
	return q.GetTableOrder(ctx, id)
}

func (q queries) GetTableOrder(ctx context.Context, orderID int64) (models.TableOrder, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM pedidos_mesa p JOIN mesas m ON m.id = p.mesa_id
		WHERE p.id = ?
	`, orderID)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
	query := `
		SELECT ` + orderColumns + `
		FROM pedidos_mesa p JOIN mesas m ON m.id = p.mesa_id
		WHERE p.mesa_id = ?`
	args := []any{tableID}
	if statuses != nil {
		values := make([]string, 0, len(statuses))
		for _, status := range statuses {
			values = append(values, string(status))
		}
		clause, inArgs := inClause(values)
		query += " AND p.status_pedido IN " + clause
		args = append(args, inArgs...)
	}
	query += " ORDER BY p.data_abertura DESC, p.id DESC"
	return q.listOrders(ctx, query, args...)
}

func (q queries) UpdateTableOrder(ctx context.Context, order models.TableOrder) error {
	var paid any
	if order.PaidAmount != nil {
		paid = order.PaidAmount.Cents()
	}
	result, err := q.db.ExecContext(ctx, `
		UPDATE pedidos_mesa
		SET status_pedido = ?,
			status_cozinha = ?,
			horario_entrada_cozinha = ?,
			data_fechamento = ?,
			observacoes_gerais = ?,
			metodo_pagamento_registrado = ?,
			valor_pago_registrado = ?
		WHERE id = ?
	`, string(order.Status), nullIfEmpty(string(order.KitchenStatus)), millisPtr(order.KitchenEnteredAt),
		millisPtr(order.ClosedAt), order.Notes, nullIfEmpty(string(order.PaymentMethod)), paid, order.ID)
	return affected(result, err, store.ErrOrderNotFound)
}

const lineColumns = `id, pedido_id, produto_id, produto_nome, quantidade, preco_unitario_no_momento, subtotal_item, observacoes_item`

func (q queries) AddOrderLine(ctx context.Context, line models.OrderLine) (models.OrderLine, error) {
	var exists int
	if err := q.db.QueryRowContext(ctx, `SELECT 1 FROM pedidos_mesa WHERE id = ?`, line.OrderID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.OrderLine{}, store.ErrOrderNotFound
		}
		return models.OrderLine{}, err
	}
	result, err := q.db.ExecContext(ctx, `
		INSERT INTO itens_pedido_mesa (pedido_id, produto_id, produto_nome, quantidade, preco_unitario_no_momento, subtotal_item, observacoes_item)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, line.OrderID, line.ProductID, line.ProductName, line.Quantity, line.UnitPrice.Cents(), line.Subtotal.Cents(), line.Note)
	if err != nil {
		return models.OrderLine{}, err
	}
	line.ID, err = result.LastInsertId()
	if err != nil {
		return models.OrderLine{}, err
	}
	return line, nil
}

func (q queries) UpdateOrderLine(ctx context.Context, line models.OrderLine) error {
	result, err := q.db.ExecContext(ctx, `
		UPDATE itens_pedido_mesa SET quantidade = ?, preco_unitario_no_momento = ?, subtotal_item = ?, observacoes_item = ?
		WHERE id = ? AND pedido_id = ?
	`, line.Quantity, line.UnitPrice.Cents(), line.Subtotal.Cents(), line.Note, line.ID, line.OrderID)
	return affected(result, err, store.ErrLineNotFound)
}

func (q queries) DeleteOrderLine(ctx context.Context, orderID, lineID int64) error {
	result, err := q.db.ExecContext(ctx, `DELETE FROM itens_pedido_mesa WHERE id = ? AND pedido_id = ?`, lineID, orderID)
	return affected(result, err, store.ErrLineNotFound)
}

func (q queries) ListKitchenTableOrders(ctx context.Context, statuses []models.KitchenStatus) ([]models.TableOrder, error) {
	values := kitchenFilter(statuses)
	if len(values) == 0 {
		return nil, nil
	}
	clause, args := inClause(values)
	return q.listOrders(ctx, `
		SELECT `+orderColumns+`
		FROM pedidos_mesa p JOIN mesas m ON m.id = p.mesa_id
		WHERE p.status_cozinha IN `+clause+`
		ORDER BY p.id ASC
	`, args...)
}

func (q queries) ListPaidOrderLines(ctx context.Context, window store.Window) ([]models.OrderLine, error) {
	from, to := millisPtr(window.From), millisPtr(window.To)
	rows, err := q.db.QueryContext(ctx, `
		SELECT i.id, i.pedido_id, i.produto_id, i.produto_nome, i.quantidade, i.preco_unitario_no_momento, i.subtotal_item, i.observacoes_item
		FROM itens_pedido_mesa i JOIN pedidos_mesa p ON p.id = i.pedido_id
		WHERE p.status_pedido = ?
			AND p.data_fechamento IS NOT NULL
			AND (? IS NULL OR p.data_fechamento >= ?)
			AND (? IS NULL OR p.data_fechamento < ?)
		ORDER BY i.id ASC
	`, string(models.OrderPaid), from, from, to, to)
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
	return lines, rows.Err()
}

const conversationColumns = `
	id, telefone_cliente, estado_conversa, carrinho_atual, dados_temporarios, nome_cliente, endereco_entrega,
	status_cozinha, horario_entrada_cozinha, data_criacao, data_atualizacao`

func (q queries) CreateConversation(ctx context.Context, phone string, createdAt time.Time) (models.Conversation, error) {
	if _, err := q.db.ExecContext(ctx, `
		INSERT INTO pedidos_whatsapp (telefone_cliente, estado_conversa, data_criacao, data_atualizacao)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (telefone_cliente) DO NOTHING
	`, phone, string(models.StateStart), toMillis(createdAt), toMillis(createdAt)); err != nil {
		return models.Conversation{}, err
	}
	return q.GetConversationByPhone(ctx, phone)
}

func (q queries) GetConversation(ctx context.Context, conversationID int64) (models.Conversation, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM pedidos_whatsapp WHERE id = ?`, conversationID)
	conversation, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, store.ErrConversationNotFound
	}
	return conversation, err
}

func (q queries) GetConversationByPhone(ctx context.Context, phone string) (models.Conversation, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM pedidos_whatsapp WHERE telefone_cliente = ?`, phone)
	conversation, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, store.ErrConversationNotFound
	}
	return conversation, err
}

func (q queries) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	return q.listConversations(ctx, `SELECT `+conversationColumns+` FROM pedidos_whatsapp ORDER BY data_atualizacao DESC, id DESC`)
}

func (q queries) ListConversationsByID(ctx context.Context, ids []int64) ([]models.Conversation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	clause, args := inClause(ids)
	return q.listConversations(ctx, `SELECT `+conversationColumns+` FROM pedidos_whatsapp WHERE id IN `+clause+` ORDER BY id ASC`, args...)
}

func (q queries) ListKitchenConversations(ctx context.Context, statuses []models.KitchenStatus) ([]models.Conversation, error) {
	values := kitchenFilter(statuses)
	if len(values) == 0 {
		return nil, nil
	}
	clause, args := inClause(values)
	return q.listConversations(ctx, `
		SELECT `+conversationColumns+`
		FROM pedidos_whatsapp
		WHERE status_cozinha IN `+clause+`
		ORDER BY id ASC
	`, args...)
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
	result, err := q.db.ExecContext(ctx, `
		UPDATE pedidos_whatsapp
		SET estado_conversa = ?,
			carrinho_atual = ?,
			dados_temporarios = ?,
			nome_cliente = ?,
			endereco_entrega = ?,
			status_cozinha = ?,
			horario_entrada_cozinha = ?,
			data_atualizacao = ?
		WHERE id = ?
	`, string(conversation.State), string(cart), string(scratch), conversation.CustomerName, conversation.DeliveryAddress,
		nullIfEmpty(string(conversation.KitchenStatus)), millisPtr(conversation.KitchenEnteredAt),
		toMillis(conversation.UpdatedAt), conversation.ID)
	return affected(result, err, store.ErrConversationNotFound)
}

const paymentColumns = `
	id, order_kind, order_id, metodo_pagamento, valor_pago, status_pagamento, data_hora_pagamento,
	transacao_id_gateway, qr_code_pix_copia_cola`

func (q queries) InsertPayment(ctx context.Context, record models.PaymentRecord) (models.PaymentRecord, error) {
	result, err := q.db.ExecContext(ctx, `
		INSERT INTO pagamentos (order_kind, order_id, metodo_pagamento, valor_pago, status_pagamento, data_hora_pagamento, transacao_id_gateway, qr_code_pix_copia_cola)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, string(record.Order.Kind()), record.Order.ID(), string(record.Method), record.Amount.Cents(), string(record.Status),
		toMillis(record.PaidAt), record.GatewayTransactionID, record.PixPayload)
	if err != nil {
		return models.PaymentRecord{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return models.PaymentRecord{}, err
	}
	row := q.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM pagamentos WHERE id = ?`, id)
	return scanPayment(row)
}

func (q queries) ListPayments(ctx context.Context, ref models.OrderRef) ([]models.PaymentRecord, error) {
	return q.listPayments(ctx, `
		SELECT `+paymentColumns+`
		FROM pagamentos
		WHERE order_kind = ? AND order_id = ?
		ORDER BY data_hora_pagamento DESC, id DESC
	`, string(ref.Kind()), ref.ID())
}

func (q queries) ListApprovedPayments(ctx context.Context, window store.Window) ([]models.PaymentRecord, error) {
	from, to := millisPtr(window.From), millisPtr(window.To)
	return q.listPayments(ctx, `
		SELECT `+paymentColumns+`
		FROM pagamentos
		WHERE status_pagamento = ?
			AND (? IS NULL OR data_hora_pagamento >= ?)
			AND (? IS NULL OR data_hora_pagamento < ?)
		ORDER BY data_hora_pagamento DESC, id DESC
	`, string(models.PaymentApproved), from, from, to, to)
}

func (q queries) listOrders(ctx context.Context, query string, args ...any) ([]models.TableOrder, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var orders []models.TableOrder
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, order)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}
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
	clause, args := inClause(ids)
	rows, err := q.db.QueryContext(ctx, `SELECT `+lineColumns+` FROM itens_pedido_mesa WHERE pedido_id IN `+clause+` ORDER BY id ASC`, args...)
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
	rows, err := q.db.QueryContext(ctx, query, args...)
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
	return conversations, rows.Err()
}

func (q queries) listPayments(ctx context.Context, query string, args ...any) ([]models.PaymentRecord, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
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
	return records, rows.Err()
}

func scanTable(row scanner) (models.Table, error) {
	var table models.Table
	var status string
	var createdAt int64
	if err := row.Scan(&table.ID, &table.Number, &table.Capacity, &status, &createdAt); err != nil {
		return models.Table{}, err
	}
	table.Status = models.TableStatus(status)
	table.CreatedAt = fromMillis(createdAt)
	return table, nil
}

func scanOrder(row scanner) (models.TableOrder, error) {
	var order models.TableOrder
	var status string
	var openedAt int64
	var kitchen, method sql.NullString
	var entered, closed, paid sql.NullInt64
	if err := row.Scan(&order.ID, &order.TableID, &order.TableNumber, &status, &kitchen, &entered,
		&openedAt, &closed, &order.Notes, &method, &paid); err != nil {
		return models.TableOrder{}, err
	}
	order.Status = models.OrderStatus(status)
	order.KitchenStatus = models.KitchenStatus(kitchen.String)
	order.KitchenEnteredAt = nullMillis(entered)
	order.OpenedAt = fromMillis(openedAt)
	order.ClosedAt = nullMillis(closed)
	order.PaymentMethod = models.PaymentMethod(method.String)
	if paid.Valid {
		amount := models.Cents(paid.Int64)
		order.PaidAmount = &amount
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
	var state, cart, scratch string
	var kitchen sql.NullString
	var entered sql.NullInt64
	var createdAt, updatedAt int64
	if err := row.Scan(&conversation.ID, &conversation.Phone, &state, &cart, &scratch, &conversation.CustomerName,
		&conversation.DeliveryAddress, &kitchen, &entered, &createdAt, &updatedAt); err != nil {
		return models.Conversation{}, err
	}
	parsed, err := models.ParseConversationState(state)
	if err != nil {
		return models.Conversation{}, store.InvalidArgument("conversation %d: %v", conversation.ID, err)
	}
	conversation.State = parsed
	if err := json.Unmarshal([]byte(cart), &conversation.Cart); err != nil {
		return models.Conversation{}, fmt.Errorf("decode cart: %w", err)
	}
	if err := json.Unmarshal([]byte(scratch), &conversation.Scratch); err != nil {
		return models.Conversation{}, fmt.Errorf("decode scratch: %w", err)
	}
	conversation.KitchenStatus = models.KitchenStatus(kitchen.String)
	conversation.KitchenEnteredAt = nullMillis(entered)
	conversation.CreatedAt = fromMillis(createdAt)
	conversation.UpdatedAt = fromMillis(updatedAt)
	return conversation, nil
}

func scanPayment(row scanner) (models.PaymentRecord, error) {
	var record models.PaymentRecord
	var kind, method, status string
	var orderID, amount, paidAt int64
	if err := row.Scan(&record.ID, &kind, &orderID, &method, &amount, &status, &paidAt,
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
	record.PaidAt = fromMillis(paidAt)
	return record, nil
}

func affected(result sql.Result, err error, missing error) error {
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return missing
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func inClause[T any](values []T) (string, []any) {
	placeholders := make([]string, len(values))
	args := make([]any, len(values))
	for i, value := range values {
		placeholders[i] = "?"
		args[i] = value
	}
	return "(" + strings.Join(placeholders, ", ") + ")", args
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

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func millisPtr(value *time.Time) any {
	if value == nil {
		return nil
	}
	return toMillis(*value)
}

func nullMillis(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}
