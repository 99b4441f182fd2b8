// Package whatsapp runs the ordering conversation held with customers over
// WhatsApp. Each phone number owns one conversation row whose state decides
// how the next inbound message is read.
package whatsapp

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/RubensDuarte2025/Julius-rmd/internal/catalog"
	"github.com/RubensDuarte2025/Julius-rmd/internal/events"
	"github.com/RubensDuarte2025/Julius-rmd/internal/ledger"
	"github.com/RubensDuarte2025/Julius-rmd/internal/models"
	"github.com/RubensDuarte2025/Julius-rmd/internal/store"
)

type Menu interface {
	Categories() []catalog.Category
	Category(key string) (catalog.Category, error)
}

// Messenger delivers a reply to the customer. Delivery failures never undo
// a turn.
type Messenger interface {
	Send(ctx context.Context, phone, text string) error
}

type Config struct {
	RestaurantName string
	PixKey         string
}

type Engine struct {
	store     store.Store
	menu      Menu
	ledger    *ledger.Ledger
	messenger Messenger
	events    events.Publisher
	cfg       Config
	now       func() time.Time
}

func NewEngine(st store.Store, menu Menu, l *ledger.Ledger, messenger Messenger, publisher events.Publisher, cfg Config) *Engine {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Engine{
		store:     st,
		menu:      menu,
		ledger:    l,
		messenger: messenger,
		events:    publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

// turn is the outcome of reading one message.
type turn struct {
	reply string
	// acknowledged is set when the customer reports a PIX payment.
	acknowledged bool
}

// ProcessInboundMessage applies one customer message and returns the reply
// that was sent. An empty reply means the bot stays quiet.
func (e *Engine) ProcessInboundMessage(ctx context.Context, rawPhone, rawText string) (string, error) {
	phone := NormalizePhone(rawPhone)
	if phone == "" {
		return "", store.InvalidArgument("phone number is required")
	}
	text := strings.ToLower(strings.TrimSpace(rawText))

	var (
		result turn
		conv   models.Conversation
	)
	err := e.store.RunInTx(ctx, store.PhoneLockKey(phone), func(ctx context.Context, q store.Queries) error {
		current, err := q.GetConversationByPhone(ctx, phone)
		if errors.Is(err, store.ErrConversationNotFound) {
			current, err = q.CreateConversation(ctx, phone, e.now().UTC())
		}
		if err != nil {
			return err
		}
		from := current.State
		result, err = e.step(&current, text)
		if err != nil {
			return err
		}
		if !store.ValidConversationTransition(from, current.State) {
			return &store.StateError{Entity: "conversation", Action: "move to " + string(current.State), Current: string(from)}
		}
		current.UpdatedAt = e.now().UTC()
		if err := q.SaveConversation(ctx, current); err != nil {
			return err
		}
		conv = current
		return nil
	})
	if err != nil {
		log.Printf("whatsapp turn failed phone=%s error=%v", phone, err)
		if !isCallerError(err) {
			e.send(ctx, phone, msgInternalError)
		}
		return "", err
	}
	log.Printf("whatsapp turn phone=%s conversation_id=%d state=%s", phone, conv.ID, conv.State)

	if result.acknowledged {
		e.recordPayment(ctx, conv)
		events.Notify(ctx, e.events, models.KitchenEvent{
			Type:       models.KitchenEventQueued,
			OriginKind: models.KindWhatsApp,
			OriginID:   conv.ID,
			Status:     conv.KitchenStatus,
			OccurredAt: *conv.KitchenEnteredAt,
		})
	}
	if result.reply != "" {
		e.send(ctx, phone, result.reply)
	}
	return result.reply, nil
}

// step mutates conv for one message. It never touches the store.
func (e *Engine) step(conv *models.Conversation, text string) (turn, error) {
	if text == "cancelar" {
		conv.Reset()
		conv.State = models.StateAwaitingInitialOption
		return turn{reply: "Sua conversa foi reiniciada. " + e.welcome()}, nil
	}

	switch conv.State {
	case models.StateStart:
		conv.State = models.StateAwaitingInitialOption
		return turn{reply: e.welcome()}, nil

	case models.StateAwaitingInitialOption:
		switch text {
		case "1":
			conv.State = models.StateAwaitingCategoryChoice
			return turn{reply: e.categoriesText()}, nil
		case "2":
			conv.State = models.StateTransferredToAgent
			return turn{reply: msgHandoff}, nil
		}
		return turn{reply: msgInvalidInitial}, nil

	case models.StateAwaitingCategoryChoice:
		if text == "v" {
			conv.State = models.StateAwaitingInitialOption
			return turn{reply: e.welcome()}, nil
		}
		category, err := e.menu.Category(text)
		if err != nil {
			return turn{reply: "Categoria inválida. " + e.categoriesText()}, nil
		}
		conv.Scratch = models.Scratch{Category: category.Key}
		conv.State = models.StateAwaitingProductChoice
		return turn{reply: productsText(category)}, nil

	case models.StateAwaitingProductChoice:
		if text == "v" {
			conv.Scratch = models.Scratch{}
			conv.State = models.StateAwaitingCategoryChoice
			return turn{reply: e.categoriesText()}, nil
		}
		category, err := e.menu.Category(conv.Scratch.Category)
		if err != nil {
			conv.Scratch = models.Scratch{}
			conv.State = models.StateAwaitingCategoryChoice
			return turn{reply: e.categoriesText()}, nil
		}
		index, err := strconv.Atoi(text)
		if err != nil {
			return turn{reply: "Entrada inválida. Por favor, digite o número do produto ou 'V' para voltar.\n" + productsText(category)}, nil
		}
		if index < 1 || index > len(category.Products) {
			return turn{reply: "Número do produto inválido. " + productsText(category)}, nil
		}
		product := category.Products[index-1]
		if err := conv.Cart.Add(models.CartLine{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  1,
		}); err != nil {
			return turn{}, err
		}
		conv.State = models.StateAwaitingCartAction
		return turn{reply: addedText(product, category, conv.Cart)}, nil

	case models.StateAwaitingCartAction:
		return e.cartAction(conv, text), nil

	case models.StateAwaitingOrderConfirmation:
		switch text {
		case "pix":
			conv.State = models.StateAwaitingPaymentConfirm
			return turn{reply: e.pixText(conv.Cart)}, nil
		case "x":
			conv.Reset()
			conv.State = models.StateAwaitingInitialOption
			return turn{reply: "Pedido cancelado. Sua conversa foi reiniciada.\n" + e.welcome()}, nil
		}
		return turn{reply: msgInvalidConfirm}, nil

	case models.StateAwaitingPaymentConfirm:
		if strings.Contains(text, "pago") || strings.Contains(text, "comprovante") {
			entered := e.now().UTC()
			conv.KitchenStatus = models.KitchenAwaitingPrep
			conv.KitchenEnteredAt = &entered
			return turn{reply: msgPaymentThanks, acknowledged: true}, nil
		}
		return turn{reply: msgAwaitingPayment}, nil

	case models.StateTransferredToAgent:
		// An agent owns the chat until the customer resets it.
		return turn{}, nil
	}
	return turn{}, &store.StateError{Entity: "conversation", Action: "process message", Current: string(conv.State)}
}

func (e *Engine) cartAction(conv *models.Conversation, text string) turn {
	switch text {
	case "c":
		category, err := e.menu.Category(conv.Scratch.Category)
		if err != nil {
			conv.State = models.StateAwaitingCategoryChoice
			return turn{reply: e.categoriesText()}
		}
		conv.State = models.StateAwaitingProductChoice
		return turn{reply: productsText(category)}
	case "cat":
		conv.State = models.StateAwaitingCategoryChoice
		return turn{reply: e.categoriesText()}
	case "f":
		if conv.Cart.Empty() {
			conv.State = models.StateAwaitingCategoryChoice
			return turn{reply: "Seu carrinho está vazio. Adicione itens antes de finalizar.\n" + e.categoriesText()}
		}
		conv.State = models.StateAwaitingOrderConfirmation
		return turn{reply: confirmText(conv.Cart)}
	case "r":
		if !conv.Cart.RemoveLast() {
			return turn{reply: msgCartAlreadyGone}
		}
		if conv.Cart.Empty() {
			conv.State = models.StateAwaitingCategoryChoice
			return turn{reply: "Carrinho esvaziado. Adicione itens para continuar.\n" + e.categoriesText()}
		}
		return turn{reply: removedText(conv.Cart)}
	}
	return turn{reply: msgInvalidCart}
}

// recordPayment appends the PIX payment in its own transaction. The
// customer already got the kitchen hand-off, so a failure is only logged.
func (e *Engine) recordPayment(ctx context.Context, conv models.Conversation) {
	err := e.store.RunInTx(ctx, store.PhoneLockKey(conv.Phone), func(ctx context.Context, q store.Queries) error {
		_, err := e.ledger.Record(ctx, q, ledger.RecordInput{
			Order:      conv.Ref(),
			Method:     models.MethodPix,
			Amount:     conv.Cart.Total(),
			Status:     models.PaymentApproved,
			PaidAt:     *conv.KitchenEnteredAt,
			PixPayload: e.cfg.PixKey,
		})
		return err
	})
	if err != nil {
		log.Printf("whatsapp payment record failed conversation_id=%d amount=%s error=%v", conv.ID, conv.Cart.Total(), err)
	}
}

func (e *Engine) send(ctx context.Context, phone, text string) {
	if e.messenger == nil {
		return
	}
	if err := e.messenger.Send(ctx, phone, text); err != nil {
		log.Printf("whatsapp send failed phone=%s error=%v", phone, err)
	}
}

func (e *Engine) GetConversation(ctx context.Context, id int64) (models.Conversation, error) {
	return e.store.GetConversation(ctx, id)
}

func (e *Engine) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	return e.store.ListConversations(ctx)
}

// NormalizePhone strips the Twilio channel prefix and surrounding space.
func NormalizePhone(raw string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "whatsapp:"))
}

func isCallerError(err error) bool {
	return errors.Is(err, store.ErrInvalidArgument) || errors.Is(err, store.ErrInvalidState)
}
