// Package tables runs the dine-in order lifecycle: opening an order on a
// table, editing its lines, closing, cancelling and paying it.
package tables

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/RubensDuarte2025/Julius-rmd/internal/catalog"
	"github.com/RubensDuarte2025/Julius-rmd/internal/events"
	"github.com/RubensDuarte2025/Julius-rmd/internal/ledger"
	"github.com/RubensDuarte2025/Julius-rmd/internal/models"
	"github.com/RubensDuarte2025/Julius-rmd/internal/store"
)

type Catalog interface {
	Product(id int64) (catalog.Product, error)
}

type CreateTableInput struct {
	Number   string `json:"numero_identificador"`
	Capacity int    `json:"capacidade"`
}

type AddLineInput struct {
	ProductID int64         `json:"produto_id"`
	Quantity  int           `json:"quantidade"`
	Note      string        `json:"observacoes_item"`
	UnitPrice *models.Money `json:"preco_unitario"`
}

// UpdateLineInput changes only the fields that are set.
type UpdateLineInput struct {
	Quantity  *int          `json:"quantidade"`
	UnitPrice *models.Money `json:"preco_unitario"`
	Note      *string       `json:"observacoes_item"`
}

type PaymentInput struct {
	Method models.PaymentMethod `json:"metodo_pagamento"`
	Amount models.Money         `json:"valor_pago"`
}

type Engine struct {
	store   store.Store
	catalog Catalog
	ledger  *ledger.Ledger
	events  events.Publisher
	now     func() time.Time
}

func NewEngine(st store.Store, menu Catalog, l *ledger.Ledger, publisher events.Publisher) *Engine {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Engine{store: st, catalog: menu, ledger: l, events: publisher, now: time.Now}
}

func (e *Engine) CreateTable(ctx context.Context, input CreateTableInput) (models.Table, error) {
	number := strings.TrimSpace(input.Number)
	if number == "" {
		return models.Table{}, store.InvalidArgument("numero_identificador is required")
	}
	capacity := input.Capacity
	if capacity == 0 {
		capacity = models.DefaultTableCapacity
	}
	if capacity < 0 {
		return models.Table{}, store.InvalidArgument("capacidade must be positive")
	}
	table, err := e.store.CreateTable(ctx, store.CreateTableInput{
		Number:    number,
		Capacity:  capacity,
		Status:    models.TableFree,
		CreatedAt: e.now().UTC(),
	})
	if err != nil {
		return models.Table{}, err
	}
	log.Printf("table created id=%d number=%s capacity=%d", table.ID, table.Number, table.Capacity)
	return table, nil
}

func (e *Engine) GetTable(ctx context.Context, tableID int64) (models.Table, error) {
	return e.store.GetTable(ctx, tableID)
}

func (e *Engine) ListTables(ctx context.Context) ([]models.Table, error) {
	return e.store.ListTables(ctx)
}

// UpdateTableStatus is an administrative override. Any known status may be
// set from any other.
func (e *Engine) UpdateTableStatus(ctx context.Context, tableID int64, raw string) (models.Table, error) {
	status, ok := models.ParseTableStatus(raw)
	if !ok {
		return models.Table{}, store.InvalidArgument("unknown table status %q", raw)
	}
	var table models.Table
	err := e.store.RunInTx(ctx, store.TableLockKey(tableID), func(ctx context.Context, q store.Queries) error {
		if err := q.UpdateTableStatus(ctx, tableID, status); err != nil {
			return err
		}
		var err error
		table, err = q.GetTable(ctx, tableID)
		return err
	})
	if err != nil {
		return models.Table{}, err
	}
	return table, nil
}

// OpenOrder starts an order on a table. A table holds at most one Open or
// Closed order at a time.
func (e *Engine) OpenOrder(ctx context.Context, tableID int64) (models.TableOrder, error) {
	var order models.TableOrder
	err := e.store.RunInTx(ctx, store.TableLockKey(tableID), func(ctx context.Context, q store.Queries) error {
		table, err := q.GetTable(ctx, tableID)
		if err != nil {
			return err
		}
		if table.Status == models.TableInterdicted {
			return store.ErrTableInterdicted
		}
		live, err := q.ListTableOrders(ctx, tableID, models.LiveOrderStatuses)
		if err != nil {
			return err
		}
		if len(live) > 0 {
			existing := live[0]
			return &store.ConflictError{Message: "table already has an open or closed order", Existing: &existing}
		}
		order, err = q.CreateTableOrder(ctx, store.CreateOrderInput{TableID: tableID, OpenedAt: e.now().UTC()})
		if err != nil {
			return err
		}
		return q.UpdateTableStatus(ctx, tableID, models.TableOccupied)
	})
	if err != nil {
		return models.TableOrder{}, err
	}
	log.Printf("order opened order_id=%d table_id=%d", order.ID, tableID)
	return order, nil
}

func (e *Engine) GetOrder(ctx context.Context, orderID int64) (models.TableOrder, error) {
	return e.store.GetTableOrder(ctx, orderID)
}

// ListOrders returns every order of the table, newest first.
func (e *Engine) ListOrders(ctx context.Context, tableID int64) ([]models.TableOrder, error) {
	if _, err := e.store.GetTable(ctx, tableID); err != nil {
		return nil, err
	}
	return e.store.ListTableOrders(ctx, tableID, nil)
}

func (e *Engine) AddLine(ctx context.Context, orderID int64, input AddLineInput) (models.TableOrder, error) {
	if input.Quantity <= 0 {
		return models.TableOrder{}, store.InvalidArgument("quantidade must be positive")
	}
	if input.UnitPrice != nil && *input.UnitPrice < 0 {
		return models.TableOrder{}, store.InvalidArgument("preco_unitario must not be negative")
	}
	product, err := e.catalog.Product(input.ProductID)
	if err != nil {
		return models.TableOrder{}, err
	}
	price := product.Price
	if input.UnitPrice != nil {
		price = *input.UnitPrice
	}

	queued := false
	order, err := e.mutate(ctx, orderID, store.ActionAddLine, func(ctx context.Context, q store.Queries, order *models.TableOrder) error {
		line := models.OrderLine{
			OrderID:     order.ID,
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    input.Quantity,
			UnitPrice:   price,
			Note:        strings.TrimSpace(input.Note),
		}
		line.Recalculate()
		if _, err := q.AddOrderLine(ctx, line); err != nil {
			return err
		}
		if order.KitchenStatus == models.KitchenNone || order.KitchenStatus == models.KitchenDelivered {
			entered := e.now().UTC()
			order.KitchenStatus = models.KitchenAwaitingPrep
			order.KitchenEnteredAt = &entered
			queued = true
			return q.UpdateTableOrder(ctx, *order)
		}
		return nil
	})
	if err != nil {
		return models.TableOrder{}, err
	}
	if queued {
		events.Notify(ctx, e.events, models.KitchenEvent{
			Type:       models.KitchenEventQueued,
			OriginKind: models.KindMesa,
			OriginID:   order.ID,
			Status:     order.KitchenStatus,
			OccurredAt: *order.KitchenEnteredAt,
		})
	}
	return order, nil
}

func (e *Engine) UpdateLine(ctx context.Context, orderID, lineID int64, input UpdateLineInput) (models.TableOrder, error) {
	if input.Quantity != nil && *input.Quantity <= 0 {
		return models.TableOrder{}, store.InvalidArgument("quantidade must be positive")
	}
	if input.UnitPrice != nil && *input.UnitPrice < 0 {
		return models.TableOrder{}, store.InvalidArgument("preco_unitario must not be negative")
	}
	return e.mutate(ctx, orderID, store.ActionUpdateLine, func(ctx context.Context, q store.Queries, order *models.TableOrder) error {
		line, ok := findLine(*order, lineID)
		if !ok {
			return store.ErrLineNotFound
		}
		if input.Quantity != nil {
			line.Quantity = *input.Quantity
		}
		if input.UnitPrice != nil {
			line.UnitPrice = *input.UnitPrice
		}
		if input.Note != nil {
			line.Note = strings.TrimSpace(*input.Note)
		}
		line.Recalculate()
		return q.UpdateOrderLine(ctx, line)
	})
}

func (e *Engine) RemoveLine(ctx context.Context, orderID, lineID int64) (models.TableOrder, error) {
	return e.mutate(ctx, orderID, store.ActionRemoveLine, func(ctx context.Context, q store.Queries, order *models.TableOrder) error {
		if _, ok := findLine(*order, lineID); !ok {
			return store.ErrLineNotFound
		}
		return q.DeleteOrderLine(ctx, order.ID, lineID)
	})
}

func (e *Engine) UpdateNotes(ctx context.Context, orderID int64, notes string) (models.TableOrder, error) {
	return e.mutate(ctx, orderID, store.ActionUpdateNotes, func(ctx context.Context, q store.Queries, order *models.TableOrder) error {
		order.Notes = strings.TrimSpace(notes)
		return q.UpdateTableOrder(ctx, *order)
	})
}

// CloseOrder stops edits and moves the table to AwaitingPayment.
func (e *Engine) CloseOrder(ctx context.Context, orderID int64) (models.TableOrder, error) {
	return e.mutate(ctx, orderID, store.ActionClose, func(ctx context.Context, q store.Queries, order *models.TableOrder) error {
		closedAt := e.now().UTC()
		order.Status = models.OrderClosed
		order.ClosedAt = &closedAt
		if err := q.UpdateTableOrder(ctx, *order); err != nil {
			return err
		}
		return q.UpdateTableStatus(ctx, order.TableID, models.TableAwaitingPayment)
	})
}

// CancelOrder frees the table only when it was held by this order and no
// other live order remains.
func (e *Engine) CancelOrder(ctx context.Context, orderID int64) (models.TableOrder, error) {
	return e.mutate(ctx, orderID, store.ActionCancel, func(ctx context.Context, q store.Queries, order *models.TableOrder) error {
		closedAt := e.now().UTC()
		order.Status = models.OrderCancelled
		order.ClosedAt = &closedAt
		if err := q.UpdateTableOrder(ctx, *order); err != nil {
			return err
		}
		table, err := q.GetTable(ctx, order.TableID)
		if err != nil {
			return err
		}
		if table.Status != models.TableOccupied && table.Status != models.TableAwaitingPayment {
			return nil
		}
		return releaseIfIdle(ctx, q, order.TableID)
	})
}

// RegisterPayment records an approved payment and settles the order in the
// same transaction. The amount is not reconciled against the order total.
func (e *Engine) RegisterPayment(ctx context.Context, orderID int64, input PaymentInput) (models.TableOrder, models.PaymentRecord, error) {
	if input.Amount <= 0 {
		return models.TableOrder{}, models.PaymentRecord{}, store.InvalidArgument("valor_pago must be positive")
	}
	if !models.KnownPaymentMethod(input.Method) {
		return models.TableOrder{}, models.PaymentRecord{}, store.InvalidArgument("unknown payment method %q", input.Method)
	}

	var record models.PaymentRecord
	order, err := e.mutate(ctx, orderID, store.ActionPay, func(ctx context.Context, q store.Queries, order *models.TableOrder) error {
		paidAt := e.now().UTC()
		var err error
		record, err = e.ledger.Record(ctx, q, ledger.RecordInput{
			Order:  order.Ref(),
			Method: input.Method,
			Amount: input.Amount,
			Status: models.PaymentApproved,
			PaidAt: paidAt,
		})
		if err != nil {
			return err
		}
		amount := input.Amount
		order.PaymentMethod = input.Method
		order.PaidAmount = &amount
		order.Status = models.OrderPaid
		order.ClosedAt = &paidAt
		if err := q.UpdateTableOrder(ctx, *order); err != nil {
			return err
		}
		return releaseIfIdle(ctx, q, order.TableID)
	})
	if err != nil {
		return models.TableOrder{}, models.PaymentRecord{}, err
	}
	return order, record, nil
}

// mutate loads the order, takes its table's lock, re-reads it inside the
// transaction, checks action against its status and runs fn. It returns the
// order as stored after commit.
func (e *Engine) mutate(ctx context.Context, orderID int64, action string, fn func(ctx context.Context, q store.Queries, order *models.TableOrder) error) (models.TableOrder, error) {
	current, err := e.store.GetTableOrder(ctx, orderID)
	if err != nil {
		return models.TableOrder{}, err
	}

	var result models.TableOrder
	err = e.store.RunInTx(ctx, store.TableLockKey(current.TableID), func(ctx context.Context, q store.Queries) error {
		order, err := q.GetTableOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := store.CheckOrderAction(action, order); err != nil {
			return err
		}
		if err := fn(ctx, q, &order); err != nil {
			return err
		}
		result, err = q.GetTableOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return models.TableOrder{}, err
	}
	log.Printf("order updated order_id=%d action=%s status=%s", result.ID, action, result.Status)
	return result, nil
}

func releaseIfIdle(ctx context.Context, q store.Queries, tableID int64) error {
	live, err := q.ListTableOrders(ctx, tableID, models.LiveOrderStatuses)
	if err != nil {
		return err
	}
	if len(live) > 0 {
		return nil
	}
	return q.UpdateTableStatus(ctx, tableID, models.TableFree)
}

func findLine(order models.TableOrder, lineID int64) (models.OrderLine, bool) {
	for _, line := range order.Lines {
		if line.ID == lineID {
			return line, true
		}
	}
	return models.OrderLine{}, false
}
