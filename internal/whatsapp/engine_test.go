package whatsapp

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RubensDuarte2025/Julius-rmd/internal/catalog"
	"github.com/RubensDuarte2025/Julius-rmd/internal/ledger"
	"github.com/RubensDuarte2025/Julius-rmd/internal/models"
	"github.com/RubensDuarte2025/Julius-rmd/internal/store"
	"github.com/RubensDuarte2025/Julius-rmd/internal/store/memory"
)

type sentMessage struct {
	phone string
	text  string
}

type recordingMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (m *recordingMessenger) Send(_ context.Context, phone, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{phone: phone, text: text})
	return m.err
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

// failingPayments rejects every payment insert, inside or outside a transaction.
type failingPayments struct {
	store.Store
}

func (s failingPayments) RunInTx(ctx context.Context, key string, fn func(ctx context.Context, q store.Queries) error) error {
	return s.Store.RunInTx(ctx, key, func(ctx context.Context, q store.Queries) error {
		return fn(ctx, failingQueries{q})
	})
}

type failingQueries struct {
	store.Queries
}

func (failingQueries) InsertPayment(context.Context, models.PaymentRecord) (models.PaymentRecord, error) {
	return models.PaymentRecord{}, errors.New("payments table unavailable")
}

type fixture struct {
	engine    *Engine
	store     store.Store
	ledger    *ledger.Ledger
	messenger *recordingMessenger
	events    *recordedEvents
}

func newFixture(t *testing.T, wrap func(store.Store) store.Store) fixture {
	t.Helper()
	menu, err := catalog.Load("")
	if err != nil {
		t.Fatalf("load menu: %v", err)
	}
	var st store.Store = memory.NewStore()
	if wrap != nil {
		st = wrap(st)
	}
	l := ledger.New(st)
	messenger := &recordingMessenger{}
	published := &recordedEvents{}
	engine := NewEngine(st, menu, l, messenger, published, Config{RestaurantName: "Pizzaria Teste", PixKey: "chave@teste"})
	engine.now = func() time.Time { return time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC) }
	return fixture{engine: engine, store: st, ledger: l, messenger: messenger, events: published}
}

func (f fixture) say(t *testing.T, phone, text string) string {
	t.Helper()
	reply, err := f.engine.ProcessInboundMessage(context.Background(), phone, text)
	if err != nil {
		t.Fatalf("message %q: %v", text, err)
	}
	return reply
}

func (f fixture) conversation(t *testing.T, phone string) models.Conversation {
	t.Helper()
	conv, err := f.store.GetConversationByPhone(context.Background(), phone)
	if err != nil {
		t.Fatalf("load conversation: %v", err)
	}
	return conv
}

func TestOrderingScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	const phone = "+5511900000000"

	steps := []struct {
		text  string
		state models.ConversationState
	}{
		{"oi", models.StateAwaitingInitialOption},
		{"1", models.StateAwaitingCategoryChoice},
		{"3", models.StateAwaitingProductChoice},
		{"1", models.StateAwaitingCartAction},
		{"f", models.StateAwaitingOrderConfirmation},
		{"pix", models.StateAwaitingPaymentConfirm},
	}
	for _, step := range steps {
		reply := f.say(t, phone, step.text)
		if reply == "" {
			t.Fatalf("expected a reply to %q", step.text)
		}
		if got := f.conversation(t, phone).State; got != step.state {
			t.Fatalf("after %q expected %s, got %s", step.text, step.state, got)
		}
	}

	conv := f.conversation(t, phone)
	lines := conv.Cart.Lines()
	if len(lines) != 1 || lines[0].Quantity != 1 || lines[0].UnitPrice != models.Cents(500) || lines[0].Name != "Refrigerante Lata" {
		t.Fatalf("unexpected cart: %+v", lines)
	}
	if conv.Cart.Total() != models.Cents(500) {
		t.Fatalf("expected total 5.00, got %s", conv.Cart.Total())
	}
	if conv.Scratch.Category != "3" {
		t.Fatalf("expected scratch category 3, got %q", conv.Scratch.Category)
	}

	reply := f.say(t, phone, "Pago!")
	if !strings.Contains(reply, "enviado para a cozinha") {
		t.Fatalf("unexpected payment reply: %q", reply)
	}
	conv = f.conversation(t, phone)
	if conv.State != models.StateAwaitingPaymentConfirm {
		t.Fatalf("expected state unchanged, got %s", conv.State)
	}
	if conv.KitchenStatus != models.KitchenAwaitingPrep || conv.KitchenEnteredAt == nil {
		t.Fatalf("expected kitchen AguardandoPreparo, got %q %v", conv.KitchenStatus, conv.KitchenEnteredAt)
	}

	records, err := f.ledger.ListForOrder(ctx, conv.Ref())
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one payment record, got %d", len(records))
	}
	if records[0].Status != models.PaymentApproved || records[0].Amount != models.Cents(500) || records[0].Method != models.MethodPix {
		t.Fatalf("unexpected payment record: %+v", records[0])
	}
	if len(f.events.events) != 1 || f.events.events[0].OriginKind != models.KindWhatsApp || f.events.events[0].OriginID != conv.ID {
		t.Fatalf("expected one whatsapp kitchen event, got %+v", f.events.events)
	}
	if len(f.messenger.sent) != len(steps)+1 {
		t.Fatalf("expected %d sent messages, got %d", len(steps)+1, len(f.messenger.sent))
	}
}

func TestRepliesUseBrazilianMoneyFormat(t *testing.T) {
	f := newFixture(t, nil)
	const phone = "+5511911111111"
	for _, text := range []string{"oi", "1", "1"} {
		f.say(t, phone, text)
	}
	reply := f.say(t, phone, "1")
	if !strings.Contains(reply, "'Calabresa' adicionado!") || !strings.Contains(reply, "R$ 30,00") {
		t.Fatalf("unexpected reply: %q", reply)
	}
	for _, text := range []string{"c", "1"} {
		f.say(t, phone, text)
	}
	reply = f.say(t, phone, "f")
	if !strings.Contains(reply, "1. 2x Calabresa - R$ 30,00 cada") || !strings.Contains(reply, "TOTAL DO PEDIDO: R$ 60,00") {
		t.Fatalf("unexpected confirmation: %q", reply)
	}
	reply = f.say(t, phone, "pix")
	if !strings.Contains(reply, "chave@teste") || !strings.Contains(reply, "Valor total: R$ 60,00") {
		t.Fatalf("unexpected pix instructions: %q", reply)
	}
}

func TestFormatMoney(t *testing.T) {
	cases := map[models.Money]string{
		models.Cents(0):      "R$ 0,00",
		models.Cents(500):    "R$ 5,00",
		models.Cents(123450): "R$ 1.234,50",
		models.Cents(-705):   "-R$ 7,05",
	}
	for amount, want := range cases {
		if got := formatMoney(amount); got != want {
			t.Fatalf("formatMoney(%d) = %q, want %q", amount.Cents(), got, want)
		}
	}
}

func TestCancelarResetsFromEveryState(t *testing.T) {
	ctx := context.Background()
	for _, state := range models.ConversationStates {
		t.Run(string(state), func(t *testing.T) {
			f := newFixture(t, nil)
			const phone = "+5511922222222"
			conv, err := f.store.CreateConversation(ctx, phone, time.Now())
			if err != nil {
				t.Fatalf("create conversation: %v", err)
			}
			conv.State = state
			conv.Scratch = models.Scratch{Category: "1"}
			if err := conv.Cart.Add(models.CartLine{ProductID: 101, Name: "Calabresa", UnitPrice: models.Cents(3000), Quantity: 2}); err != nil {
				t.Fatalf("seed cart: %v", err)
			}
			if err := f.store.SaveConversation(ctx, conv); err != nil {
				t.Fatalf("save conversation: %v", err)
			}

			reply := f.say(t, phone, "  CANCELAR ")
			if !strings.HasPrefix(reply, "Sua conversa foi reiniciada.") {
				t.Fatalf("unexpected reply: %q", reply)
			}
			conv = f.conversation(t, phone)
			if conv.State != models.StateAwaitingInitialOption {
				t.Fatalf("expected %s, got %s", models.StateAwaitingInitialOption, conv.State)
			}
			if !conv.Cart.Empty() || conv.Scratch != (models.Scratch{}) {
				t.Fatalf("expected empty cart and scratch, got %+v %+v", conv.Cart.Lines(), conv.Scratch)
			}
		})
	}
}

func TestInvalidInputsKeepState(t *testing.T) {
	f := newFixture(t, nil)
	const phone = "+5511933333333"
	cases := []struct {
		text   string
		state  models.ConversationState
		prefix string
	}{
		{"oi", models.StateAwaitingInitialOption, "Olá! Bem-vindo à Pizzaria Teste!"},
		{"9", models.StateAwaitingInitialOption, "Opção inválida."},
		{"1", models.StateAwaitingCategoryChoice, "Categorias:"},
		{"9", models.StateAwaitingCategoryChoice, "Categoria inválida."},
		{"2", models.StateAwaitingProductChoice, "Pizzas Doces:"},
		{"abc", models.StateAwaitingProductChoice, "Entrada inválida."},
		{"7", models.StateAwaitingProductChoice, "Número do produto inválido."},
		{"v", models.StateAwaitingCategoryChoice, "Categorias:"},
		{"v", models.StateAwaitingInitialOption, "Olá!"},
	}
	for _, tc := range cases {
		reply := f.say(t, phone, tc.text)
		if !strings.HasPrefix(reply, tc.prefix) {
			t.Fatalf("%q: expected reply starting %q, got %q", tc.text, tc.prefix, reply)
		}
		if got := f.conversation(t, phone).State; got != tc.state {
			t.Fatalf("%q: expected %s, got %s", tc.text, tc.state, got)
		}
	}
	if scratch := f.conversation(t, phone).Scratch; scratch != (models.Scratch{}) {
		t.Fatalf("expected scratch cleared after leaving products, got %+v", scratch)
	}
}

func TestStaleCategoryReturnsToCategoryList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	const phone = "+5511944444444"
	f.say(t, phone, "oi")
	f.say(t, phone, "1")
	f.say(t, phone, "2")

	conv := f.conversation(t, phone)
	conv.Scratch = models.Scratch{Category: "9"}
	if err := f.store.SaveConversation(ctx, conv); err != nil {
		t.Fatalf("save conversation: %v", err)
	}

	reply := f.say(t, phone, "1")
	if reply != f.engine.categoriesText() {
		t.Fatalf("expected category list, got %q", reply)
	}
	conv = f.conversation(t, phone)
	if conv.State != models.StateAwaitingCategoryChoice {
		t.Fatalf("expected %s, got %s", models.StateAwaitingCategoryChoice, conv.State)
	}
	if conv.Scratch != (models.Scratch{}) || !conv.Cart.Empty() {
		t.Fatalf("expected scratch cleared and empty cart, got %+v", conv)
	}
}

func TestCartActions(t *testing.T) {
	f := newFixture(t, nil)
	const phone = "+5511944444444"
	for _, text := range []string{"oi", "1", "3", "1", "c", "2"} {
		f.say(t, phone, text)
	}
	if lines := f.conversation(t, phone).Cart.Lines(); len(lines) != 2 {
		t.Fatalf("expected two cart lines, got %+v", lines)
	}

	if reply := f.say(t, phone, "zz"); !strings.HasPrefix(reply, "Opção inválida.") {
		t.Fatalf("unexpected reply: %q", reply)
	}
	reply := f.say(t, phone, "r")
	if !strings.HasPrefix(reply, "Último item removido. Seu carrinho tem 1 item(ns), totalizando R$ 5,00.") {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if got := f.conversation(t, phone).State; got != models.StateAwaitingCartAction {
		t.Fatalf("expected cart action state, got %s", got)
	}
	reply = f.say(t, phone, "r")
	if !strings.HasPrefix(reply, "Carrinho esvaziado.") {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if got := f.conversation(t, phone).State; got != models.StateAwaitingCategoryChoice {
		t.Fatalf("expected category choice after emptying cart, got %s", got)
	}

	for _, text := range []string{"3", "1", "cat"} {
		f.say(t, phone, text)
	}
	if got := f.conversation(t, phone).State; got != models.StateAwaitingCategoryChoice {
		t.Fatalf("expected category choice after cat, got %s", got)
	}
	for _, text := range []string{"3", "1", "f", "x"} {
		reply = f.say(t, phone, text)
	}
	if !strings.HasPrefix(reply, "Pedido cancelado.") {
		t.Fatalf("unexpected reply: %q", reply)
	}
	conv := f.conversation(t, phone)
	if conv.State != models.StateAwaitingInitialOption || !conv.Cart.Empty() {
		t.Fatalf("expected reset conversation, got %s with %d lines", conv.State, conv.Cart.Len())
	}
}

func TestTransferredToAgentStaysQuiet(t *testing.T) {
	f := newFixture(t, nil)
	const phone = "whatsapp:+5511955555555"
	f.say(t, phone, "oi")
	if reply := f.say(t, phone, "2"); reply != msgHandoff {
		t.Fatalf("unexpected handoff reply: %q", reply)
	}
	sent := len(f.messenger.sent)
	if reply := f.say(t, phone, "alguém aí?"); reply != "" {
		t.Fatalf("expected no reply, got %q", reply)
	}
	if len(f.messenger.sent) != sent {
		t.Fatalf("expected nothing sent while transferred")
	}
	conv := f.conversation(t, "+5511955555555")
	if conv.State != models.StateTransferredToAgent {
		t.Fatalf("expected transferred state, got %s", conv.State)
	}
	if f.messenger.sent[0].phone != "+5511955555555" {
		t.Fatalf("expected normalized phone, got %q", f.messenger.sent[0].phone)
	}
}

func TestPaymentRecordFailureDoesNotAbortTurn(t *testing.T) {
	f := newFixture(t, func(st store.Store) store.Store { return failingPayments{st} })
	const phone = "+5511966666666"
	for _, text := range []string{"oi", "1", "3", "1", "f", "pix"} {
		f.say(t, phone, text)
	}
	reply := f.say(t, phone, "segue o comprovante")
	if reply != msgPaymentThanks {
		t.Fatalf("unexpected reply: %q", reply)
	}
	conv := f.conversation(t, phone)
	if conv.KitchenStatus != models.KitchenAwaitingPrep {
		t.Fatalf("expected kitchen status despite ledger failure, got %q", conv.KitchenStatus)
	}
	records, err := f.ledger.ListForOrder(context.Background(), conv.Ref())
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no payment records, got %d", len(records))
	}
}

func TestAwaitingPaymentReminder(t *testing.T) {
	f := newFixture(t, nil)
	const phone = "+5511977777777"
	for _, text := range []string{"oi", "1", "3", "2", "f", "pix"} {
		f.say(t, phone, text)
	}
	if reply := f.say(t, phone, "ok"); reply != msgAwaitingPayment {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if f.conversation(t, phone).KitchenStatus != models.KitchenNone {
		t.Fatalf("expected conversation outside the kitchen")
	}
}

func TestProcessInboundMessageValidation(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.engine.ProcessInboundMessage(context.Background(), " whatsapp: ", "oi"); !errors.Is(err, store.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if len(f.messenger.sent) != 0 {
		t.Fatalf("expected nothing sent for a rejected message")
	}
}

func TestSendFailureIsNotReturned(t *testing.T) {
	f := newFixture(t, nil)
	f.messenger.err = errors.New("provider down")
	reply, err := f.engine.ProcessInboundMessage(context.Background(), "+5511988888888", "oi")
	if err != nil {
		t.Fatalf("expected send failure to be swallowed, got %v", err)
	}
	if reply == "" {
		t.Fatalf("expected reply")
	}
	if f.conversation(t, "+5511988888888").State != models.StateAwaitingInitialOption {
		t.Fatalf("expected state persisted despite send failure")
	}
}

func TestConversationReads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.say(t, "+5511900000001", "oi")
	f.say(t, "+5511900000002", "oi")
	list, err := f.engine.ListConversations(ctx)
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(list))
	}
	got, err := f.engine.GetConversation(ctx, list[0].ID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if got.Phone != list[0].Phone {
		t.Fatalf("expected %s, got %s", list[0].Phone, got.Phone)
	}
	if _, err := f.engine.GetConversation(ctx, 999); !errors.Is(err, store.ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}
