// Package memory is an in-process store. Transactions are serialized per lock
// key and rolled back through an undo log.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/RubensDuarte2025/Julius-rmd/internal/models"
	"github.com/RubensDuarte2025/Julius-rmd/internal/store"
)

type db struct {
	mu sync.RWMutex

	seqTable, seqOrder, seqLine, seqConversation, seqPayment int64

	tables        map[int64]models.Table
	orders        map[int64]models.TableOrder
	lines         map[int64]models.OrderLine
	conversations map[int64]models.Conversation
	phones        map[string]int64
	payments      []models.PaymentRecord
}

type Store struct {
	queries
	locks *keyedMutex
}

var _ store.Store = (*Store)(nil)

func NewStore() *Store {
	d := &db{
		tables:        make(map[int64]models.Table),
		orders:        make(map[int64]models.TableOrder),
		lines:         make(map[int64]models.OrderLine),
		conversations: make(map[int64]models.Conversation),
		phones:        make(map[string]int64),
	}
	return &Store{queries: queries{db: d}, locks: newKeyedMutex()}
}

func (s *Store) RunInTx(ctx context.Context, lockKey string, fn func(ctx context.Context, q store.Queries) error) error {
	unlock := s.locks.lock(lockKey)
	defer unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := queries{db: s.db, undo: &undoLog{}}
	if err := fn(ctx, tx); err != nil {
		tx.undo.rollback(s.db)
		return err
	}
	return nil
}

type undoLog struct {
	steps []func(d *db)
}

func (u *undoLog) record(step func(d *db)) {
	if u == nil {
		return
	}
	u.steps = append(u.steps, step)
}

func (u *undoLog) rollback(d *db) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(u.steps) - 1; i >= 0; i-- {
		u.steps[i](d)
	}
}

type queries struct {
	db   *db
	undo *undoLog
}

func (q queries) CreateTable(ctx context.Context, input store.CreateTableInput) (models.Table, error) {
	q.db.mu.Lock()
	defer q.db.mu.Unlock()
	for _, existing := range q.db.tables {
		if existing.Number == input.Number {
			return models.Table{}, store.ErrTableNumberTaken
		}
	}
	q.db.seqTable++
	table := models.Table{
		ID:        q.db.seqTable,
		Number:    input.Number,
		Capacity:  input.Capacity,
		Status:    input.Status,
		CreatedAt: input.CreatedAt,
	}
	q.db.tables[table.ID] = table
	q.undo.record(func(d *db) { delete(d.tables, table.ID) })
	return table, nil
}

func (q queries) GetTable(ctx context.Context, tableID int64) (models.Table, error) {
	q.db.mu.RLock()
	defer q.db.mu.RUnlock()
	table, ok := q.db.tables[tableID]
	if !ok {
		return models.Table{}, store.ErrTableNotFound
	}
	return table, nil
}

func (q queries) ListTables(ctx context.Context) ([]models.Table, error) {
	q.db.mu.RLock()
	defer q.db.mu.RUnlock()
	tables := make([]models.Table, 0, len(q.db.tables))
	for _, table := range q.db.tables {
		tables = append(tables, table)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Number < tables[j].Number })
	return tables, nil
}

func (q queries) UpdateTableStatus(ctx context.Context, tableID int64, status models.TableStatus) error {
	q.db.mu.Lock()
	defer q.db.mu.Unlock()
	table, ok := q.db.tables[tableID]
	if !ok {
		return store.ErrTableNotFound
	}
	previous := table
	table.Status = status
	q.db.tables[tableID] = table
	q.undo.record(func(d *db) { d.tables[tableID] = previous })
	return nil
}

func (q queries) CreateTableOrder(ctx context.Context, input store.CreateOrderInput) (models.TableOrder, error) {
	q.db.mu.Lock()
	defer q.db.mu.Unlock()
	table, ok := q.db.tables[input.TableID]
	if !ok {
		return models.TableOrder{}, store.ErrTableNotFound
	}
	q.db.seqOrder++
	order := models.TableOrder{
		ID:          q.db.seqOrder,
		TableID:     table.ID,
		TableNumber: table.Number,
		Status:      models.OrderOpen,
		OpenedAt:    input.OpenedAt,
	}
	q.db.orders[order.ID] = order
	q.undo.record(func(d *db) { delete(d.orders, order.ID) })
	return order, nil
}

func (q queries) GetTableOrder(ctx context.Context, orderID int64) (models.TableOrder, error) {
	q.db.mu.RLock()
	defer q.db.mu.RUnlock()
	order, ok := q.db.orders[orderID]
	if !ok {
		return models.TableOrder{}, store.ErrOrderNotFound
	}
	return q.db.withLines(order), nil
}

func (q queries) ListTableOrders(ctx context.Context, tableID int64, statuses []models.OrderStatus) ([]models.TableOrder, error) {
	q.db.mu.RLock()
	defer q.db.mu.RUnlock()
	var orders []models.TableOrder
	for _, order := range q.db.orders {
		if order.TableID != tableID {
			continue
		}
		if statuses != nil && !containsOrderStatus(statuses, order.Status) {
			continue
		}
		orders = append(orders, q.db.withLines(order))
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].OpenedAt.Equal(orders[j].OpenedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].OpenedAt.After(orders[j].OpenedAt)
	})
	return orders, nil
}

func (q queries) UpdateTableOrder(ctx context.Context, order models.TableOrder) error {
	q.db.mu.Lock()
	defer q.db.mu.Unlock()
	previous, ok := q.db.orders[order.ID]
	if !ok {
		return store.ErrOrderNotFound
	}
	updated := previous
	updated.Status = order.Status
	updated.KitchenStatus = order.KitchenStatus
	updated.KitchenEnteredAt = cloneTime(order.KitchenEnteredAt)
	updated.ClosedAt = cloneTime(order.ClosedAt)
	updated.Notes = order.Notes
	updated.PaymentMethod = order.PaymentMethod
	updated.PaidAmount = cloneMoney(order.PaidAmount)
	q.db.orders[order.ID] = updated
	q.undo.record(func(d *db) { d.orders[order.ID] = previous })
	return nil
}

func (q queries) AddOrderLine(ctx context.Context, line models.OrderLine) (models.OrderLine, error) {
	q.db.mu.Lock()
	defer q.db.mu.Unlock()
	if _, ok := q.db.orders[line.OrderID]; !ok {
		return models.OrderLine{}, store.ErrOrderNotFound
	}
	q.db.seqLine++
	line.ID = q.db.seqLine
	q.db.lines[line.ID] = line
	q.undo.record(func(d *db) { delete(d.lines, line.ID) })
	return line, nil
}

func (q queries) UpdateOrderLine(ctx context.Context, line models.OrderLine) error {
	q.db.mu.Lock()
	defer q.db.mu.Unlock()
	previous, ok := q.db.lines[line.ID]
	if !ok || previous.OrderID != line.OrderID {
		return store.ErrLineNotFound
	}
	q.db.lines[line.ID] = line
	q.undo.record(func(d *db) { d.lines[line.ID] = previous })
	return nil
}

func (q queries) DeleteOrderLine(ctx context.Context, orderID, lineID int64) error {
	q.db.mu.Lock()
	defer q.db.mu.Unlock()
	previous, ok := q.db.lines[lineID]
	if !ok || previous.OrderID != orderID {
		return store.ErrLineNotFound
	}
	delete(q.db.lines, lineID)
	q.undo.record(func(d *db) { d.lines[lineID] = previous })
	return nil
}

func (q queries) ListKitchenTableOrders(ctx context.Context, statuses []models.KitchenStatus) ([]models.TableOrder, error) {
	q.db.mu.RLock()
	defer q.db.mu.RUnlock()
	var orders []models.TableOrder
	for _, order := range q.db.orders {
		if order.KitchenStatus == models.KitchenNone || !containsKitchenStatus(statuses, order.KitchenStatus) {
			continue
		}
		orders = append(orders, q.db.withLines(order))
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders, nil
}

func (q queries) ListPaidOrderLines(ctx context.Context, window store.Window) ([]models.OrderLine, error) {
	q.db.mu.RLock()
	defer q.db.mu.RUnlock()
	var lines []models.OrderLine
	for _, line := range q.db.lines {
		order, ok := q.db.orders[line.OrderID]
		if !ok || order.Status != models.OrderPaid || order.ClosedAt == nil {
			continue
		}
		if !window.Contains(*order.ClosedAt) {
			continue
		}
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
	return lines, nil
}

func (q queries) CreateConversation(ctx context.Context, phone string, createdAt time.Time) (models.Conversation, error) {
	q.db.mu.Lock()
	defer q.db.mu.Unlock()
	if id, ok := q.db.phones[phone]; ok {
		return cloneConversation(q.db.conversations[id]), nil
	}
	q.db.seqConversation++
	conversation := models.Conversation{
		ID:        q.db.seqConversation,
		Phone:     phone,
		State:     models.StateStart,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	q.db.conversations[conversation.ID] = conversation
	q.db.phones[phone] = conversation.ID
	q.undo.record(func(d *db) {
		delete(d.conversations, conversation.ID)
		delete(d.phones, phone)
	})
	return cloneConversation(conversation), nil
}

func (q queries) GetConversation(ctx context.Context, conversationID int64) (models.Conversation, error) {
	q.db.mu.RLock()
	defer q.db.mu.RUnlock()
	conversation, ok := q.db.conversations[conversationID]
	if !ok {
		return models.Conversation{}, store.ErrConversationNotFound
	}
	return cloneConversation(conversation), nil
}

func (q queries) GetConversationByPhone(ctx context.Context, phone string) (models.Conversation, error) {
	q.db.mu.RLock()
	defer q.db.mu.RUnlock()
	id, ok := q.db.phones[phone]
	if !ok {
		return models.Conversation{}, store.ErrConversationNotFound
	}
	return cloneConversation(q.db.conversations[id]), nil
}

func (q queries) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	q.db.mu.RLock()
	defer q.db.mu.RUnlock()
	conversations := make([]models.Conversation, 0, len(q.db.conversations))
	for _, conversation := range q.db.conversations {
		conversations = append(conversations, cloneConversation(conversation))
	}
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})
	return conversations, nil
}

func (q queries) ListConversationsByID(ctx context.Context, ids []int64) ([]models.Conversation, error) {
	q.db.mu.RLock()
	defer q.db.mu.RUnlock()
	var conversations []models.Conversation
	for _, id := range ids {
		if conversation, ok := q.db.conversations[id]; ok {
			conversations = append(conversations, cloneConversation(conversation))
		}
	}
	return conversations, nil
}

func (q queries) ListKitchenConversations(ctx context.Context, statuses []models.KitchenStatus) ([]models.Conversation, error) {
	q.db.mu.RLock()
	defer q.db.mu.RUnlock()
	var conversations []models.Conversation
	for _, conversation := range q.db.conversations {
		if conversation.KitchenStatus == models.KitchenNone || !containsKitchenStatus(statuses, conversation.KitchenStatus) {
			continue
		}
		conversations = append(conversations, cloneConversation(conversation))
	}
	sort.Slice(conversations, func(i, j int) bool { return conversations[i].ID < conversations[j].ID })
	return conversations, nil
}

func (q queries) SaveConversation(ctx context.Context, conversation models.Conversation) error {
	q.db.mu.Lock()
	defer q.db.mu.Unlock()
	previous, ok := q.db.conversations[conversation.ID]
	if !ok {
		return store.ErrConversationNotFound
	}
	q.db.conversations[conversation.ID] = cloneConversation(conversation)
	q.undo.record(func(d *db) { d.conversations[conversation.ID] = previous })
	return nil
}

func (q queries) InsertPayment(ctx context.Context, record models.PaymentRecord) (models.PaymentRecord, error) {
	q.db.mu.Lock()
	defer q.db.mu.Unlock()
	q.db.seqPayment++
	record.ID = q.db.seqPayment
	q.db.payments = append(q.db.payments, record)
	id := record.ID
	q.undo.record(func(d *db) {
		for i, existing := range d.payments {
			if existing.ID == id {
				d.payments = append(d.payments[:i], d.payments[i+1:]...)
				return
			}
		}
	})
	return record, nil
}

func (q queries) ListPayments(ctx context.Context, ref models.OrderRef) ([]models.PaymentRecord, error) {
	q.db.mu.RLock()
	defer q.db.mu.RUnlock()
	var records []models.PaymentRecord
	for _, record := range q.db.payments {
		if record.Order == ref {
			records = append(records, record)
		}
	}
	sortNewestFirst(records)
	return records, nil
}

func (q queries) ListApprovedPayments(ctx context.Context, window store.Window) ([]models.PaymentRecord, error) {
	q.db.mu.RLock()
	defer q.db.mu.RUnlock()
	var records []models.PaymentRecord
	for _, record := range q.db.payments {
		if record.Status == models.PaymentApproved && window.Contains(record.PaidAt) {
			records = append(records, record)
		}
	}
	sortNewestFirst(records)
	return records, nil
}

func (d *db) withLines(order models.TableOrder) models.TableOrder {
	order.Lines = nil
	for _, line := range d.lines {
		if line.OrderID == order.ID {
			order.Lines = append(order.Lines, line)
		}
	}
	sort.Slice(order.Lines, func(i, j int) bool { return order.Lines[i].ID < order.Lines[j].ID })
	order.KitchenEnteredAt = cloneTime(order.KitchenEnteredAt)
	order.ClosedAt = cloneTime(order.ClosedAt)
	order.PaidAmount = cloneMoney(order.PaidAmount)
	if table, ok := d.tables[order.TableID]; ok {
		order.TableNumber = table.Number
	}
	return order
}

func sortNewestFirst(records []models.PaymentRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].PaidAt.Equal(records[j].PaidAt) {
			return records[i].ID > records[j].ID
		}
		return records[i].PaidAt.After(records[j].PaidAt)
	})
}

func cloneConversation(conversation models.Conversation) models.Conversation {
	conversation.Cart = conversation.Cart.Clone()
	conversation.KitchenEnteredAt = cloneTime(conversation.KitchenEnteredAt)
	return conversation
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func cloneMoney(value *models.Money) *models.Money {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func containsOrderStatus(statuses []models.OrderStatus, status models.OrderStatus) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}

func containsKitchenStatus(statuses []models.KitchenStatus, status models.KitchenStatus) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}
