// Package ledger is the append-only payment record shared by both channels.
package ledger

import (
	"context"
	"log"
	"time"

	"github.com/RubensDuarte2025/Julius-rmd/internal/models"
	"github.com/RubensDuarte2025/Julius-rmd/internal/store"
)

type RecordInput struct {
	Order                models.OrderRef
	Method               models.PaymentMethod
	Amount               models.Money
	Status               models.PaymentStatus
	PaidAt               time.Time
	GatewayTransactionID string
	PixPayload           string
}

type Ledger struct {
	store store.Queries
	now   func() time.Time
}

func New(queries store.Queries) *Ledger {
	return &Ledger{store: queries, now: time.Now}
}

// Record appends a payment through q, which may be an open transaction.
// Status defaults to Approved and PaidAt to now. Repeated payments for the
// same order are accepted.
func (l *Ledger) Record(ctx context.Context, q store.Queries, input RecordInput) (models.PaymentRecord, error) {
	if !input.Order.Valid() {
		return models.PaymentRecord{}, store.InvalidArgument("payment must reference an order")
	}
	if input.Amount <= 0 {
		return models.PaymentRecord{}, store.InvalidArgument("amount must be positive")
	}
	if !models.KnownPaymentMethod(input.Method) {
		return models.PaymentRecord{}, store.InvalidArgument("unknown payment method %q", input.Method)
	}
	status := input.Status
	if status == "" {
		status = models.PaymentApproved
	}
	if _, ok := models.ParsePaymentStatus(string(status)); !ok {
		return models.PaymentRecord{}, store.InvalidArgument("unknown payment status %q", status)
	}
	paidAt := input.PaidAt
	if paidAt.IsZero() {
		paidAt = l.now()
	}

	record, err := q.InsertPayment(ctx, models.PaymentRecord{
		Order:                input.Order,
		Method:               input.Method,
		Amount:               input.Amount,
		Status:               status,
		PaidAt:               paidAt,
		GatewayTransactionID: input.GatewayTransactionID,
		PixPayload:           input.PixPayload,
	})
	if err != nil {
		return models.PaymentRecord{}, err
	}
	log.Printf("payment recorded order=%s method=%s amount=%s status=%s", record.Order, record.Method, record.Amount, record.Status)
	return record, nil
}

// ListForOrder returns the order's payments newest first.
func (l *Ledger) ListForOrder(ctx context.Context, ref models.OrderRef) ([]models.PaymentRecord, error) {
	if !ref.Valid() {
		return nil, store.InvalidArgument("invalid order reference %s", ref)
	}
	err := ref.Visit(
		func(orderID int64) error {
			_, err := l.store.GetTableOrder(ctx, orderID)
			return err
		},
		func(conversationID int64) error {
			_, err := l.store.GetConversation(ctx, conversationID)
			return err
		},
	)
	if err != nil {
		return nil, err
	}
	return l.store.ListPayments(ctx, ref)
}

// ListApproved returns approved payments inside window, newest first.
func (l *Ledger) ListApproved(ctx context.Context, window store.Window) ([]models.PaymentRecord, error) {
	return l.store.ListApprovedPayments(ctx, window)
}
