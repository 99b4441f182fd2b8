package tables

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/RubensDuarte2025/Julius-rmd/internal/catalog"
	"github.com/RubensDuarte2025/Julius-rmd/internal/ledger"
	"github.com/RubensDuarte2025/Julius-rmd/internal/models"
	"github.com/RubensDuarte2025/Julius-rmd/internal/store"
	"github.com/RubensDuarte2025/Julius-rmd/internal/store/memory"
)

type fakeCatalog struct {
	mu       sync.Mutex
	products map[int64]catalog.Product
}

func (c *fakeCatalog) Product(id int64) (catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	product, ok := c.products[id]
	if !ok {
		return catalog.Product{}, store.ErrProductNotFound
	}
	return product, nil
}

func (c *fakeCatalog) setPrice(id int64, price models.Money) {
	c.mu.Lock()
	defer c.mu.Unlock()
	product := c.products[id]
	product.Price = price
	c.products[id] = product
}

type recordedEvents struct {
	mu     sync.Mutex
	events []models.KitchenEvent
}

func (r *recordedEvents) Publish(_ context.Context, event models.KitchenEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

type fixture struct {
	engine  *Engine
	store   *memory.Store
	catalog *fakeCatalog
	events  *recordedEvents
	ledger  *ledger.Ledger
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st := memory.NewStore()
	menu := &fakeCatalog{products: map[int64]catalog.Product{
		1: {ID: 1, Name: "Produto X", Price: models.Cents(2000)},
		2: {ID: 2, Name: "Refrigerante Lata", Price: models.Cents(500)},
	}}
	published := &recordedEvents{}
	l := ledger.New(st)
	engine := NewEngine(st, menu, l, published)
	clock := time.Date(2026, 3, 10, 19, 0, 0, 0, time.UTC)
	engine.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return fixture{engine: engine, store: st, catalog: menu, events: published, ledger: l}
}

func (f fixture) table(t *testing.T, number string) models.Table {
	t.Helper()
	table, err := f.engine.CreateTable(context.Background(), CreateTableInput{Number: number})
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return table
}

func (f fixture) tableStatus(t *testing.T, tableID int64) models.TableStatus {
	t.Helper()
	table, err := f.engine.GetTable(context.Background(), tableID)
	if err != nil {
		t.Fatalf("get table: %v", err)
	}
	return table.Status
}

func TestDineInScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	table := f.table(t, "T")
	if table.Status != models.TableFree || table.Capacity != models.DefaultTableCapacity {
		t.Fatalf("unexpected new table: %+v", table)
	}

	order, err := f.engine.OpenOrder(ctx, table.ID)
	if err != nil {
		t.Fatalf("open order: %v", err)
	}
	if order.Status != models.OrderOpen {
		t.Fatalf("expected Aberto, got %s", order.Status)
	}
	if got := f.tableStatus(t, table.ID); got != models.TableOccupied {
		t.Fatalf("expected Ocupada, got %s", got)
	}

	order, err = f.engine.AddLine(ctx, order.ID, AddLineInput{ProductID: 1, Quantity: 2})
	if err != nil {
		t.Fatalf("add line: %v", err)
	}
	if len(order.Lines) != 1 || order.Lines[0].Subtotal != models.Cents(4000) {
		t.Fatalf("expected subtotal 40.00, got %+v", order.Lines)
	}
	if order.KitchenStatus != models.KitchenAwaitingPrep || order.KitchenEnteredAt == nil {
		t.Fatalf("expected AguardandoPreparo with entry time, got %s %v", order.KitchenStatus, order.KitchenEnteredAt)
	}

	order, err = f.engine.CloseOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("close order: %v", err)
	}
	if order.Status != models.OrderClosed || order.ClosedAt == nil {
		t.Fatalf("expected Fechado with close time, got %+v", order)
	}
	if got := f.tableStatus(t, table.ID); got != models.TableAwaitingPayment {
		t.Fatalf("expected AguardandoPagamento, got %s", got)
	}

	order, record, err := f.engine.RegisterPayment(ctx, order.ID, PaymentInput{Method: models.MethodCash, Amount: models.Cents(4000)})
	if err != nil {
		t.Fatalf("register payment: %v", err)
	}
	if order.Status != models.OrderPaid || order.PaidAmount == nil || *order.PaidAmount != models.Cents(4000) {
		t.Fatalf("expected Pago with 40.00, got %+v", order)
	}
	if got := f.tableStatus(t, table.ID); got != models.TableFree {
		t.Fatalf("expected Livre, got %s", got)
	}

	records, err := f.ledger.ListForOrder(ctx, models.MesaOrder(order.ID))
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(records) != 1 || records[0].ID != record.ID {
		t.Fatalf("expected one payment record, got %+v", records)
	}
	if records[0].Status != models.PaymentApproved || records[0].Amount != models.Cents(4000) || records[0].Method != models.MethodCash {
		t.Fatalf("unexpected payment record: %+v", records[0])
	}

	if len(f.events.events) != 1 || f.events.events[0].Type != models.KitchenEventQueued {
		t.Fatalf("expected one queued kitchen event, got %+v", f.events.events)
	}
}

func TestOpenOrderRejectsSecondLiveOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	table := f.table(t, "M1")

	first, err := f.engine.OpenOrder(ctx, table.ID)
	if err != nil {
		t.Fatalf("open order: %v", err)
	}
	for _, step := range []string{"open", "closed"} {
		if step == "closed" {
			if _, err := f.engine.CloseOrder(ctx, first.ID); err != nil {
				t.Fatalf("close order: %v", err)
			}
		}
		_, err = f.engine.OpenOrder(ctx, table.ID)
		if !errors.Is(err, store.ErrConflict) {
			t.Fatalf("%s: expected ErrConflict, got %v", step, err)
		}
		var conflict *store.ConflictError
		if !errors.As(err, &conflict) || conflict.Existing == nil || conflict.Existing.ID != first.ID {
			t.Fatalf("%s: expected conflict carrying order %d, got %v", step, first.ID, err)
		}
	}

	orders, err := f.engine.ListOrders(ctx, table.ID)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected a single order row, got %d", len(orders))
	}
}

func TestOpenOrderConcurrentCallsCreateOneOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	table := f.table(t, "M1")

	const callers = 10
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.OpenOrder(ctx, table.ID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok int
	for err := range results {
		if err == nil {
			ok++
		} else if !errors.Is(err, store.ErrConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one successful open, got %d", ok)
	}
}

func TestOpenOrderOnInterdictedTable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	table := f.table(t, "M1")
	if _, err := f.engine.UpdateTableStatus(ctx, table.ID, string(models.TableInterdicted)); err != nil {
		t.Fatalf("interdict table: %v", err)
	}
	if _, err := f.engine.OpenOrder(ctx, table.ID); !errors.Is(err, store.ErrTableInterdicted) {
		t.Fatalf("expected ErrTableInterdicted, got %v", err)
	}
}

func TestEditingRequiresOpenOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	table := f.table(t, "M1")
	order, err := f.engine.OpenOrder(ctx, table.ID)
	if err != nil {
		t.Fatalf("open order: %v", err)
	}
	order, err = f.engine.AddLine(ctx, order.ID, AddLineInput{ProductID: 1, Quantity: 1})
	if err != nil {
		t.Fatalf("add line: %v", err)
	}
	lineID := order.Lines[0].ID
	if _, err := f.engine.CloseOrder(ctx, order.ID); err != nil {
		t.Fatalf("close order: %v", err)
	}

	qty := 3
	checks := map[string]error{}
	_, checks["add"] = f.engine.AddLine(ctx, order.ID, AddLineInput{ProductID: 1, Quantity: 1})
	_, checks["update"] = f.engine.UpdateLine(ctx, order.ID, lineID, UpdateLineInput{Quantity: &qty})
	_, checks["remove"] = f.engine.RemoveLine(ctx, order.ID, lineID)
	_, checks["notes"] = f.engine.UpdateNotes(ctx, order.ID, "sem pressa")
	_, checks["close"] = f.engine.CloseOrder(ctx, order.ID)
	for name, err := range checks {
		if !errors.Is(err, store.ErrInvalidState) {
			t.Fatalf("%s: expected ErrInvalidState, got %v", name, err)
		}
		var stateErr *store.StateError
		if !errors.As(err, &stateErr) || stateErr.Current != string(models.OrderClosed) {
			t.Fatalf("%s: expected state error from Fechado, got %v", name, err)
		}
	}
}

func TestLinePriceIsSnapshotted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	table := f.table(t, "M1")
	order, err := f.engine.OpenOrder(ctx, table.ID)
	if err != nil {
		t.Fatalf("open order: %v", err)
	}

	for qty := 1; qty <= 3; qty++ {
		order, err = f.engine.AddLine(ctx, order.ID, AddLineInput{ProductID: 2, Quantity: qty})
		if err != nil {
			t.Fatalf("add line: %v", err)
		}
		f.catalog.setPrice(2, models.Cents(int64(900+qty)))
	}

	loaded, err := f.engine.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	wantPrices := []models.Money{models.Cents(500), models.Cents(901), models.Cents(902)}
	for i, line := range loaded.Lines {
		if line.UnitPrice != wantPrices[i] {
			t.Fatalf("line %d price = %s, want %s", i, line.UnitPrice, wantPrices[i])
		}
		if line.Subtotal != line.UnitPrice.Mul(line.Quantity) {
			t.Fatalf("line %d subtotal = %s, want %s", i, line.Subtotal, line.UnitPrice.Mul(line.Quantity))
		}
	}
}

func TestAddLineWithPriceOverrideAndRequeue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	table := f.table(t, "M1")
	order, err := f.engine.OpenOrder(ctx, table.ID)
	if err != nil {
		t.Fatalf("open order: %v", err)
	}
	override := models.Cents(1500)
	order, err = f.engine.AddLine(ctx, order.ID, AddLineInput{ProductID: 1, Quantity: 1, UnitPrice: &override, Note: " bem passada "})
	if err != nil {
		t.Fatalf("add line: %v", err)
	}
	if order.Lines[0].UnitPrice != override || order.Lines[0].Note != "bem passada" {
		t.Fatalf("unexpected line: %+v", order.Lines[0])
	}

	// A second line while the kitchen is working keeps the original entry.
	entered := *order.KitchenEnteredAt
	order, err = f.engine.AddLine(ctx, order.ID, AddLineInput{ProductID: 2, Quantity: 1})
	if err != nil {
		t.Fatalf("add line: %v", err)
	}
	if !order.KitchenEnteredAt.Equal(entered) || len(f.events.events) != 1 {
		t.Fatalf("expected kitchen entry unchanged, got %v with %d events", order.KitchenEnteredAt, len(f.events.events))
	}

	order.KitchenStatus = models.KitchenDelivered
	if err := f.store.UpdateTableOrder(ctx, order); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	order, err = f.engine.AddLine(ctx, order.ID, AddLineInput{ProductID: 2, Quantity: 1})
	if err != nil {
		t.Fatalf("add line: %v", err)
	}
	if order.KitchenStatus != models.KitchenAwaitingPrep || len(f.events.events) != 2 {
		t.Fatalf("expected delivered order to re-enter the kitchen, got %s with %d events", order.KitchenStatus, len(f.events.events))
	}
}

func TestAddLineValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	table := f.table(t, "M1")
	order, err := f.engine.OpenOrder(ctx, table.ID)
	if err != nil {
		t.Fatalf("open order: %v", err)
	}
	negative := models.Cents(-1)
	if _, err := f.engine.AddLine(ctx, order.ID, AddLineInput{ProductID: 1, Quantity: 0}); !errors.Is(err, store.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for zero quantity, got %v", err)
	}
	if _, err := f.engine.AddLine(ctx, order.ID, AddLineInput{ProductID: 1, Quantity: 1, UnitPrice: &negative}); !errors.Is(err, store.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for negative price, got %v", err)
	}
	if _, err := f.engine.AddLine(ctx, order.ID, AddLineInput{ProductID: 99, Quantity: 1}); !errors.Is(err, store.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if _, err := f.engine.AddLine(ctx, order.ID+50, AddLineInput{ProductID: 1, Quantity: 1}); !errors.Is(err, store.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestUpdateAndRemoveLine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	table := f.table(t, "M1")
	order, err := f.engine.OpenOrder(ctx, table.ID)
	if err != nil {
		t.Fatalf("open order: %v", err)
	}
	order, err = f.engine.AddLine(ctx, order.ID, AddLineInput{ProductID: 1, Quantity: 1})
	if err != nil {
		t.Fatalf("add line: %v", err)
	}
	lineID := order.Lines[0].ID

	qty := 3
	price := models.Cents(1000)
	note := "sem cebola"
	order, err = f.engine.UpdateLine(ctx, order.ID, lineID, UpdateLineInput{Quantity: &qty, UnitPrice: &price, Note: &note})
	if err != nil {
		t.Fatalf("update line: %v", err)
	}
	line := order.Lines[0]
	if line.Quantity != 3 || line.Subtotal != models.Cents(3000) || line.Note != note {
		t.Fatalf("unexpected line: %+v", line)
	}
	if order.Total() != models.Cents(3000) {
		t.Fatalf("expected total 30.00, got %s", order.Total())
	}

	if _, err := f.engine.UpdateLine(ctx, order.ID, lineID+99, UpdateLineInput{Quantity: &qty}); !errors.Is(err, store.ErrLineNotFound) {
		t.Fatalf("expected ErrLineNotFound, got %v", err)
	}
	order, err = f.engine.RemoveLine(ctx, order.ID, lineID)
	if err != nil {
		t.Fatalf("remove line: %v", err)
	}
	if len(order.Lines) != 0 || order.Total() != 0 {
		t.Fatalf("expected empty order, got %+v", order.Lines)
	}
}

func TestCancelReleasesTableOnlyWhenIdle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	table := f.table(t, "M1")
	order, err := f.engine.OpenOrder(ctx, table.ID)
	if err != nil {
		t.Fatalf("open order: %v", err)
	}
	order, err = f.engine.CancelOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("cancel order: %v", err)
	}
	if order.Status != models.OrderCancelled || order.ClosedAt == nil {
		t.Fatalf("expected Cancelado with close time, got %+v", order)
	}
	if got := f.tableStatus(t, table.ID); got != models.TableFree {
		t.Fatalf("expected Livre, got %s", got)
	}
	if _, err := f.engine.CancelOrder(ctx, order.ID); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for second cancel, got %v", err)
	}

	// An interdicted table stays interdicted after a cancel.
	second, err := f.engine.OpenOrder(ctx, table.ID)
	if err != nil {
		t.Fatalf("open order: %v", err)
	}
	if _, err := f.engine.UpdateTableStatus(ctx, table.ID, string(models.TableInterdicted)); err != nil {
		t.Fatalf("interdict: %v", err)
	}
	if _, err := f.engine.CancelOrder(ctx, second.ID); err != nil {
		t.Fatalf("cancel order: %v", err)
	}
	if got := f.tableStatus(t, table.ID); got != models.TableInterdicted {
		t.Fatalf("expected Interditada, got %s", got)
	}
}

func TestTableStaysBusyWhileAnotherLiveOrderExists(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	table := f.table(t, "M1")
	first, err := f.engine.OpenOrder(ctx, table.ID)
	if err != nil {
		t.Fatalf("open order: %v", err)
	}
	// Simulate a legacy second live order on the same table.
	second, err := f.store.CreateTableOrder(ctx, store.CreateOrderInput{TableID: table.ID, OpenedAt: time.Now()})
	if err != nil {
		t.Fatalf("create second order: %v", err)
	}

	if _, _, err := f.engine.RegisterPayment(ctx, first.ID, PaymentInput{Method: models.MethodPix, Amount: models.Cents(100)}); err != nil {
		t.Fatalf("pay first: %v", err)
	}
	if got := f.tableStatus(t, table.ID); got != models.TableOccupied {
		t.Fatalf("expected Ocupada while another order is live, got %s", got)
	}
	if _, err := f.engine.CancelOrder(ctx, second.ID); err != nil {
		t.Fatalf("cancel second: %v", err)
	}
	if got := f.tableStatus(t, table.ID); got != models.TableFree {
		t.Fatalf("expected Livre once idle, got %s", got)
	}
}

func TestRegisterPaymentIgnoresTotalAndValidates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	table := f.table(t, "M1")
	order, err := f.engine.OpenOrder(ctx, table.ID)
	if err != nil {
		t.Fatalf("open order: %v", err)
	}
	order, err = f.engine.AddLine(ctx, order.ID, AddLineInput{ProductID: 1, Quantity: 2})
	if err != nil {
		t.Fatalf("add line: %v", err)
	}

	if _, _, err := f.engine.RegisterPayment(ctx, order.ID, PaymentInput{Method: models.MethodCash}); !errors.Is(err, store.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for zero amount, got %v", err)
	}
	if _, _, err := f.engine.RegisterPayment(ctx, order.ID, PaymentInput{Method: "cheque", Amount: models.Cents(100)}); !errors.Is(err, store.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for unknown method, got %v", err)
	}

	paid, _, err := f.engine.RegisterPayment(ctx, order.ID, PaymentInput{Method: models.MethodCardTerminalGeneric, Amount: models.Cents(1)})
	if err != nil {
		t.Fatalf("register payment: %v", err)
	}
	if paid.Status != models.OrderPaid || paid.PaymentMethod != models.MethodCardTerminalGeneric {
		t.Fatalf("expected Pago with cartao_maquineta, got %+v", paid)
	}
	if _, _, err := f.engine.RegisterPayment(ctx, order.ID, PaymentInput{Method: models.MethodCash, Amount: models.Cents(100)}); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for second payment, got %v", err)
	}
	records, err := f.ledger.ListForOrder(ctx, paid.Ref())
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one payment record, got %d", len(records))
	}
}

func TestCreateAndUpdateTable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.table(t, "M1")
	if _, err := f.engine.CreateTable(ctx, CreateTableInput{Number: "M1"}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate number, got %v", err)
	}
	if _, err := f.engine.CreateTable(ctx, CreateTableInput{Number: "  "}); !errors.Is(err, store.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for blank number, got %v", err)
	}
	if _, err := f.engine.CreateTable(ctx, CreateTableInput{Number: "M2", Capacity: -1}); !errors.Is(err, store.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for negative capacity, got %v", err)
	}
	if _, err := f.engine.UpdateTableStatus(ctx, 1, "Quebrada"); !errors.Is(err, store.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for unknown status, got %v", err)
	}
	if _, err := f.engine.UpdateTableStatus(ctx, 99, string(models.TableFree)); !errors.Is(err, store.ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound, got %v", err)
	}
	// Any known status may override any other.
	for _, status := range []models.TableStatus{models.TableAwaitingPayment, models.TableInterdicted, models.TableFree} {
		table, err := f.engine.UpdateTableStatus(ctx, 1, string(status))
		if err != nil {
			t.Fatalf("set %s: %v", status, err)
		}
		if table.Status != status {
			t.Fatalf("expected %s, got %s", status, table.Status)
		}
	}
	tables, err := f.engine.ListTables(ctx)
	if err != nil {
		t.Fatalf("list tables: %v", err)
	}
	if len(tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(tables))
	}
}
