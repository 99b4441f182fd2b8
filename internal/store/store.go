package store

import (
	"context"
	"strconv"
	"time"

	"github.com/RubensDuarte2025/Julius-rmd/internal/models"
)

type CreateTableInput struct {
	Number    string
	Capacity  int
	Status    models.TableStatus
	CreatedAt time.Time
}

type CreateOrderInput struct {
	TableID  int64
	OpenedAt time.Time
}

// Window is a half-open time range [From, To). Nil bounds are open.
type Window struct {
	From *time.Time
	To   *time.Time
}

func (w Window) Contains(t time.Time) bool {
	if w.From != nil && t.Before(*w.From) {
		return false
	}
	if w.To != nil && !t.Before(*w.To) {
		return false
	}
	return true
}

// Queries is the data access surface shared by a store and its transactions.
type Queries interface {
	CreateTable(ctx context.Context, input CreateTableInput) (models.Table, error)
	GetTable(ctx context.Context, tableID int64) (models.Table, error)
	ListTables(ctx context.Context) ([]models.Table, error)
	UpdateTableStatus(ctx context.Context, tableID int64, status models.TableStatus) error

	CreateTableOrder(ctx context.Context, input CreateOrderInput) (models.TableOrder, error)
	GetTableOrder(ctx context.Context, orderID int64) (models.TableOrder, error)
	// ListTableOrders returns the table's orders newest first. A nil status
	// filter returns every order.
	ListTableOrders(ctx context.Context, tableID int64, statuses []models.OrderStatus) ([]models.TableOrder, error)
	UpdateTableOrder(ctx context.Context, order models.TableOrder) error
	AddOrderLine(ctx context.Context, line models.OrderLine) (models.OrderLine, error)
	UpdateOrderLine(ctx context.Context, line models.OrderLine) error
	DeleteOrderLine(ctx context.Context, orderID, lineID int64) error
	ListKitchenTableOrders(ctx context.Context, statuses []models.KitchenStatus) ([]models.TableOrder, error)
	// ListPaidOrderLines returns lines of paid orders closed inside window.
	ListPaidOrderLines(ctx context.Context, window Window) ([]models.OrderLine, error)

	CreateConversation(ctx context.Context, phone string, createdAt time.Time) (models.Conversation, error)
	GetConversation(ctx context.Context, conversationID int64) (models.Conversation, error)
	GetConversationByPhone(ctx context.Context, phone string) (models.Conversation, error)
	ListConversations(ctx context.Context) ([]models.Conversation, error)
	ListConversationsByID(ctx context.Context, ids []int64) ([]models.Conversation, error)
	ListKitchenConversations(ctx context.Context, statuses []models.KitchenStatus) ([]models.Conversation, error)
	SaveConversation(ctx context.Context, conversation models.Conversation) error

	InsertPayment(ctx context.Context, record models.PaymentRecord) (models.PaymentRecord, error)
	// ListPayments returns records for one order newest first.
	ListPayments(ctx context.Context, ref models.OrderRef) ([]models.PaymentRecord, error)
	// ListApprovedPayments returns approved records paid inside window, newest first.
	ListApprovedPayments(ctx context.Context, window Window) ([]models.PaymentRecord, error)
}

// Store runs keyed transactions. Two transactions with the same lock key
// never interleave.
type Store interface {
	Queries
	RunInTx(ctx context.Context, lockKey string, fn func(ctx context.Context, q Queries) error) error
}

func TableLockKey(tableID int64) string {
	return "table:" + strconv.FormatInt(tableID, 10)
}

func PhoneLockKey(phone string) string {
	return "phone:" + phone
}
