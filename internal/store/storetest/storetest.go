// Package storetest holds behaviour checks every store backend must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/RubensDuarte2025/Julius-rmd/internal/models"
	"github.com/RubensDuarte2025/Julius-rmd/internal/store"
)

// Run exercises st through the store.Store contract. Each subtest gets a
// fresh store from newStore.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("TablesAndOrders", func(t *testing.T) { testTablesAndOrders(t, newStore(t)) })
	t.Run("LineLifecycle", func(t *testing.T) { testLineLifecycle(t, newStore(t)) })
	t.Run("RollbackOnError", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("Conversations", func(t *testing.T) { testConversations(t, newStore(t)) })
	t.Run("Payments", func(t *testing.T) { testPayments(t, newStore(t)) })
	t.Run("PaidLinesWindow", func(t *testing.T) { testPaidLinesWindow(t, newStore(t)) })
	t.Run("ConcurrentTransactions", func(t *testing.T) { testConcurrentTransactions(t, newStore(t)) })
}

var base = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testTablesAndOrders(t *testing.T, st store.Store) {
	ctx := context.Background()
	table := mustTable(t, st, "M1")

	if _, err := st.CreateTable(ctx, store.CreateTableInput{Number: "M1", Capacity: 2, Status: models.TableFree, CreatedAt: base}); !errors.Is(err, store.ErrTableNumberTaken) {
		t.Fatalf("expected ErrTableNumberTaken, got %v", err)
	}
	if _, err := st.GetTable(ctx, table.ID+99); !errors.Is(err, store.ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound, got %v", err)
	}
	if _, err := st.CreateTableOrder(ctx, store.CreateOrderInput{TableID: table.ID + 99, OpenedAt: base}); !errors.Is(err, store.ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound for order, got %v", err)
	}

	first := mustOrder(t, st, table.ID, base)
	second := mustOrder(t, st, table.ID, base.Add(time.Hour))
	if first.TableNumber != "M1" || first.Status != models.OrderOpen {
		t.Fatalf("unexpected order: %+v", first)
	}

	closedAt := base.Add(2 * time.Hour)
	second.Status = models.OrderCancelled
	second.ClosedAt = &closedAt
	if err := st.UpdateTableOrder(ctx, second); err != nil {
		t.Fatalf("update order: %v", err)
	}

	all, err := st.ListTableOrders(ctx, table.ID, nil)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(all) != 2 || all[0].ID != second.ID {
		t.Fatalf("expected newest first, got %+v", all)
	}

	live, err := st.ListTableOrders(ctx, table.ID, models.LiveOrderStatuses)
	if err != nil {
		t.Fatalf("list live orders: %v", err)
	}
	if len(live) != 1 || live[0].ID != first.ID {
		t.Fatalf("expected only the open order, got %+v", live)
	}

	if err := st.UpdateTableStatus(ctx, table.ID, models.TableOccupied); err != nil {
		t.Fatalf("update table status: %v", err)
	}
	tables, err := st.ListTables(ctx)
	if err != nil {
		t.Fatalf("list tables: %v", err)
	}
	if len(tables) != 1 || tables[0].Status != models.TableOccupied {
		t.Fatalf("unexpected tables: %+v", tables)
	}
}

func testLineLifecycle(t *testing.T, st store.Store) {
	ctx := context.Background()
	table := mustTable(t, st, "M1")
	order := mustOrder(t, st, table.ID, base)

	line := models.OrderLine{OrderID: order.ID, ProductID: 101, ProductName: "Calabresa", Quantity: 2, UnitPrice: models.Cents(2000), Note: "sem cebola"}
	line.Recalculate()
	created, err := st.AddOrderLine(ctx, line)
	if err != nil {
		t.Fatalf("add line: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected line id")
	}

	created.Quantity = 3
	created.Recalculate()
	if err := st.UpdateOrderLine(ctx, created); err != nil {
		t.Fatalf("update line: %v", err)
	}
	loaded, err := st.GetTableOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if len(loaded.Lines) != 1 || loaded.Total() != models.Cents(6000) || loaded.Lines[0].Note != "sem cebola" {
		t.Fatalf("unexpected lines: %+v", loaded.Lines)
	}

	other := mustOrder(t, st, table.ID, base.Add(time.Minute))
	if err := st.DeleteOrderLine(ctx, other.ID, created.ID); !errors.Is(err, store.ErrLineNotFound) {
		t.Fatalf("expected ErrLineNotFound for foreign order, got %v", err)
	}
	if err := st.DeleteOrderLine(ctx, order.ID, created.ID); err != nil {
		t.Fatalf("delete line: %v", err)
	}
	loaded, err = st.GetTableOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if len(loaded.Lines) != 0 {
		t.Fatalf("expected no lines, got %+v", loaded.Lines)
	}
	if _, err := st.AddOrderLine(ctx, models.OrderLine{OrderID: order.ID + 99, ProductID: 1, ProductName: "x", Quantity: 1}); !errors.Is(err, store.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func testRollback(t *testing.T, st store.Store) {
	ctx := context.Background()
	table := mustTable(t, st, "M1")
	boom := errors.New("boom")

	err := st.RunInTx(ctx, store.TableLockKey(table.ID), func(ctx context.Context, q store.Queries) error {
		if _, err := q.CreateTableOrder(ctx, store.CreateOrderInput{TableID: table.ID, OpenedAt: base}); err != nil {
			return err
		}
		if err := q.UpdateTableStatus(ctx, table.ID, models.TableOccupied); err != nil {
			return err
		}
		if _, err := q.InsertPayment(ctx, models.PaymentRecord{Order: models.MesaOrder(1), Method: models.MethodCash, Amount: models.Cents(100), Status: models.PaymentApproved, PaidAt: base}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, err := st.GetTable(ctx, table.ID)
	if err != nil {
		t.Fatalf("get table: %v", err)
	}
	if got.Status != models.TableFree {
		t.Fatalf("expected Livre after rollback, got %s", got.Status)
	}
	orders, err := st.ListTableOrders(ctx, table.ID, nil)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("expected no orders after rollback, got %d", len(orders))
	}
	payments, err := st.ListPayments(ctx, models.MesaOrder(1))
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 0 {
		t.Fatalf("expected no payments after rollback, got %d", len(payments))
	}
}

func testConversations(t *testing.T, st store.Store) {
	ctx := context.Background()
	phone := "+5511900000000"

	first, err := st.CreateConversation(ctx, phone, base)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	again, err := st.CreateConversation(ctx, phone, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("create conversation again: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("expected one conversation per phone, got %d and %d", first.ID, again.ID)
	}
	if first.State != models.StateStart || !first.Cart.Empty() {
		t.Fatalf("unexpected new conversation: %+v", first)
	}

	if err := first.Cart.Add(models.CartLine{ProductID: 101, Name: "Calabresa", UnitPrice: models.Cents(3000), Quantity: 1}); err != nil {
		t.Fatalf("add to cart: %v", err)
	}
	entered := base.Add(time.Hour)
	first.State = models.StateAwaitingPaymentConfirm
	first.Scratch.Category = "1"
	first.KitchenStatus = models.KitchenAwaitingPrep
	first.KitchenEnteredAt = &entered
	first.UpdatedAt = entered
	if err := st.SaveConversation(ctx, first); err != nil {
		t.Fatalf("save conversation: %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	first.Cart.Clear()

	loaded, err := st.GetConversationByPhone(ctx, phone)
	if err != nil {
		t.Fatalf("get by phone: %v", err)
	}
	if loaded.Cart.Len() != 1 || loaded.Scratch.Category != "1" || loaded.State != models.StateAwaitingPaymentConfirm {
		t.Fatalf("unexpected conversation: %+v", loaded)
	}
	if loaded.KitchenEnteredAt == nil || !loaded.KitchenEnteredAt.Equal(entered) {
		t.Fatalf("unexpected kitchen entry: %v", loaded.KitchenEnteredAt)
	}

	if _, err := st.GetConversation(ctx, first.ID+99); !errors.Is(err, store.ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
	kitchen, err := st.ListKitchenConversations(ctx, models.PendingKitchenStatuses)
	if err != nil {
		t.Fatalf("list kitchen conversations: %v", err)
	}
	if len(kitchen) != 1 {
		t.Fatalf("expected one kitchen conversation, got %d", len(kitchen))
	}
	byID, err := st.ListConversationsByID(ctx, []int64{first.ID, first.ID + 99})
	if err != nil {
		t.Fatalf("list by id: %v", err)
	}
	if len(byID) != 1 {
		t.Fatalf("expected one conversation by id, got %d", len(byID))
	}
}

func testPayments(t *testing.T, st store.Store) {
	ctx := context.Background()
	records := []models.PaymentRecord{
		{Order: models.MesaOrder(1), Method: models.MethodCash, Amount: models.Cents(1000), Status: models.PaymentApproved, PaidAt: base},
		{Order: models.MesaOrder(1), Method: models.MethodPix, Amount: models.Cents(500), Status: models.PaymentApproved, PaidAt: base.Add(time.Hour)},
		{Order: models.WhatsAppOrder(1), Method: models.MethodPix, Amount: models.Cents(3000), Status: models.PaymentPending, PaidAt: base},
	}
	for _, record := range records {
		if _, err := st.InsertPayment(ctx, record); err != nil {
			t.Fatalf("insert payment: %v", err)
		}
	}

	mesa, err := st.ListPayments(ctx, models.MesaOrder(1))
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(mesa) != 2 || mesa[0].Amount != models.Cents(500) {
		t.Fatalf("expected newest mesa payment first, got %+v", mesa)
	}
	whatsapp, err := st.ListPayments(ctx, models.WhatsAppOrder(1))
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(whatsapp) != 1 || whatsapp[0].Order.Kind() != models.KindWhatsApp {
		t.Fatalf("unexpected whatsapp payments: %+v", whatsapp)
	}

	to := base.Add(time.Minute)
	approved, err := st.ListApprovedPayments(ctx, store.Window{To: &to})
	if err != nil {
		t.Fatalf("list approved: %v", err)
	}
	if len(approved) != 1 || approved[0].Amount != models.Cents(1000) {
		t.Fatalf("unexpected approved payments: %+v", approved)
	}
}

func testPaidLinesWindow(t *testing.T, st store.Store) {
	ctx := context.Background()
	table := mustTable(t, st, "M1")

	paid := mustOrder(t, st, table.ID, base)
	line := models.OrderLine{OrderID: paid.ID, ProductID: 101, ProductName: "Calabresa", Quantity: 2, UnitPrice: models.Cents(2000)}
	line.Recalculate()
	if _, err := st.AddOrderLine(ctx, line); err != nil {
		t.Fatalf("add line: %v", err)
	}
	closedAt := base.Add(time.Hour)
	paid.Status = models.OrderPaid
	paid.ClosedAt = &closedAt
	if err := st.UpdateTableOrder(ctx, paid); err != nil {
		t.Fatalf("update order: %v", err)
	}

	open := mustOrder(t, st, table.ID, base)
	if _, err := st.AddOrderLine(ctx, models.OrderLine{OrderID: open.ID, ProductID: 102, ProductName: "Margherita", Quantity: 1, UnitPrice: models.Cents(2800), Subtotal: models.Cents(2800)}); err != nil {
		t.Fatalf("add line: %v", err)
	}

	lines, err := st.ListPaidOrderLines(ctx, store.Window{})
	if err != nil {
		t.Fatalf("list paid lines: %v", err)
	}
	if len(lines) != 1 || lines[0].ProductName != "Calabresa" {
		t.Fatalf("unexpected paid lines: %+v", lines)
	}

	from := closedAt.Add(time.Minute)
	lines, err = st.ListPaidOrderLines(ctx, store.Window{From: &from})
	if err != nil {
		t.Fatalf("list paid lines: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected no lines after window start, got %+v", lines)
	}
}

// testConcurrentTransactions checks that transactions on different keys all
// commit and that read-modify-write on one key never loses an update.
func testConcurrentTransactions(t *testing.T, st store.Store) {
	ctx := context.Background()
	const workers = 16

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		phone := fmt.Sprintf("+55119000000%02d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- st.RunInTx(ctx, store.PhoneLockKey(phone), func(ctx context.Context, q store.Queries) error {
				conv, err := q.CreateConversation(ctx, phone, base)
				if err != nil {
					return err
				}
				time.Sleep(5 * time.Millisecond)
				conv.State = models.StateAwaitingInitialOption
				conv.UpdatedAt = base.Add(time.Minute)
				return q.SaveConversation(ctx, conv)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("transaction on distinct key failed: %v", err)
		}
	}
	all, err := st.ListConversations(ctx)
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(all) != workers {
		t.Fatalf("expected %d conversations, got %d", workers, len(all))
	}

	const phone = "+5511999999999"
	if _, err := st.CreateConversation(ctx, phone, base); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	errs = make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- st.RunInTx(ctx, store.PhoneLockKey(phone), func(ctx context.Context, q store.Queries) error {
				conv, err := q.GetConversationByPhone(ctx, phone)
				if err != nil {
					return err
				}
				if err := conv.Cart.Add(models.CartLine{ProductID: 301, Name: "Refrigerante Lata", UnitPrice: models.Cents(500), Quantity: 1}); err != nil {
					return err
				}
				time.Sleep(time.Millisecond)
				return q.SaveConversation(ctx, conv)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("transaction on shared key failed: %v", err)
		}
	}
	conv, err := st.GetConversationByPhone(ctx, phone)
	if err != nil {
		t.Fatalf("load conversation: %v", err)
	}
	lines := conv.Cart.Lines()
	if len(lines) != 1 || lines[0].Quantity != workers {
		t.Fatalf("expected one line with quantity %d, got %+v", workers, lines)
	}
}

func mustTable(t *testing.T, st store.Store, number string) models.Table {
	t.Helper()
	table, err := st.CreateTable(context.Background(), store.CreateTableInput{
		Number:    number,
		Capacity:  models.DefaultTableCapacity,
		Status:    models.TableFree,
		CreatedAt: base,
	})
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return table
}

func mustOrder(t *testing.T, st store.Store, tableID int64, openedAt time.Time) models.TableOrder {
	t.Helper()
	order, err := st.CreateTableOrder(context.Background(), store.CreateOrderInput{TableID: tableID, OpenedAt: openedAt})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}
