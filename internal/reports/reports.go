// Package reports aggregates sales from the payment ledger and paid orders.
package reports

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RubensDuarte2025/Julius-rmd/internal/ledger"
	"github.com/RubensDuarte2025/Julius-rmd/internal/models"
	"github.com/RubensDuarte2025/Julius-rmd/internal/store"
)

const dateLayout = "2006-01-02"

type SaleRow struct {
	PaymentID int64                `json:"id_pagamento"`
	OriginID  int64                `json:"id_pedido_origem"`
	PaidAt    time.Time            `json:"data_pagamento"`
	Amount    models.Money         `json:"valor_pago"`
	Method    models.PaymentMethod `json:"metodo_pagamento"`
	Origin    string               `json:"origem_pedido"`
}

type ProductSold struct {
	Name     string `json:"nome_produto"`
	Quantity int    `json:"quantidade_total_vendida"`
}

type Reporter struct {
	store    store.Queries
	ledger   *ledger.Ledger
	location *time.Location
}

// New builds a reporter whose dates are read in location. A nil location
// means UTC.
func New(queries store.Queries, l *ledger.Ledger, location *time.Location) *Reporter {
	if location == nil {
		location = time.UTC
	}
	return &Reporter{store: queries, ledger: l, location: location}
}

// Window turns optional YYYY-MM-DD bounds into a half-open range. The end
// date covers its whole day.
func (r *Reporter) Window(dateFrom, dateTo string) (store.Window, error) {
	var window store.Window
	if raw := strings.TrimSpace(dateFrom); raw != "" {
		from, err := time.ParseInLocation(dateLayout, raw, r.location)
		if err != nil {
			return store.Window{}, store.InvalidArgument("data_inicio must be YYYY-MM-DD")
		}
		window.From = &from
	}
	if raw := strings.TrimSpace(dateTo); raw != "" {
		to, err := time.ParseInLocation(dateLayout, raw, r.location)
		if err != nil {
			return store.Window{}, store.InvalidArgument("data_fim must be YYYY-MM-DD")
		}
		to = to.AddDate(0, 0, 1)
		window.To = &to
	}
	return window, nil
}

// Sales lists approved payments in the window, newest first.
func (r *Reporter) Sales(ctx context.Context, dateFrom, dateTo string) ([]SaleRow, error) {
	window, err := r.Window(dateFrom, dateTo)
	if err != nil {
		return nil, err
	}
	records, err := r.ledger.ListApproved(ctx, window)
	if err != nil {
		return nil, err
	}
	rows := make([]SaleRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, SaleRow{
			PaymentID: record.ID,
			OriginID:  record.Order.ID(),
			PaidAt:    record.PaidAt,
			Amount:    record.Amount,
			Method:    record.Method,
			Origin:    record.Order.Kind().Label(),
		})
	}
	return rows, nil
}

// ProductsSold sums quantities per product name across paid table orders
// and paid WhatsApp carts. Sorted by quantity, then name.
func (r *Reporter) ProductsSold(ctx context.Context, dateFrom, dateTo string) ([]ProductSold, error) {
	window, err := r.Window(dateFrom, dateTo)
	if err != nil {
		return nil, err
	}

	var (
		lines   []models.OrderLine
		fromIDs map[int64]bool
		toIDs   map[int64]bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lines, err = r.store.ListPaidOrderLines(gctx, window)
		return err
	})
	g.Go(func() error {
		var err error
		fromIDs, err = r.paidConversations(gctx, store.Window{From: window.From})
		return err
	})
	g.Go(func() error {
		var err error
		toIDs, err = r.paidConversations(gctx, store.Window{To: window.To})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// A conversation counts when it has an approved payment on or after the
	// start and one before the end. They need not be the same payment.
	var ids []int64
	for id := range fromIDs {
		if toIDs[id] {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	totals := make(map[string]int)
	for _, line := range lines {
		if line.Quantity > 0 && line.ProductName != "" {
			totals[line.ProductName] += line.Quantity
		}
	}
	if len(ids) > 0 {
		conversations, err := r.store.ListConversationsByID(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, conv := range conversations {
			for _, line := range conv.Cart.Lines() {
				if line.Quantity > 0 && line.Name != "" {
					totals[line.Name] += line.Quantity
				}
			}
		}
	}

	result := make([]ProductSold, 0, len(totals))
	for name, quantity := range totals {
		result = append(result, ProductSold{Name: name, Quantity: quantity})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Quantity != result[j].Quantity {
			return result[i].Quantity > result[j].Quantity
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (r *Reporter) paidConversations(ctx context.Context, window store.Window) (map[int64]bool, error) {
	records, err := r.ledger.ListApproved(ctx, window)
	if err != nil {
		return nil, err
	}
	ids := make(map[int64]bool)
	for _, record := range records {
		_ = record.Order.Visit(
			func(int64) error { return nil },
			func(conversationID int64) error {
				ids[conversationID] = true
				return nil
			},
		)
	}
	return ids, nil
}

// WriteSalesCSV writes rows in the export layout used by the admin panel.
func WriteSalesCSV(w io.Writer, rows []SaleRow, location *time.Location) error {
	if location == nil {
		location = time.UTC
	}
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id_pagamento", "id_pedido_origem", "origem_pedido", "metodo_pagamento", "valor_pago", "data_pagamento"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			strconv.FormatInt(row.PaymentID, 10),
			strconv.FormatInt(row.OriginID, 10),
			row.Origin,
			string(row.Method),
			row.Amount.String(),
			row.PaidAt.In(location).Format(time.RFC3339),
		}); err != nil {
			return fmt.Errorf("write sale %d: %w", row.PaymentID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
