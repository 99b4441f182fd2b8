// Package kitchen merges table and WhatsApp orders into one preparation
// queue and owns the kitchen status transitions.
package kitchen

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RubensDuarte2025/Julius-rmd/internal/events"
	"github.com/RubensDuarte2025/Julius-rmd/internal/models"
	"github.com/RubensDuarte2025/Julius-rmd/internal/store"
)

// updateTargets are the statuses staff may set through UpdateStatus.
var updateTargets = []models.KitchenStatus{models.KitchenInPrep, models.KitchenReady}

type Engine struct {
	store  store.Store
	events events.Publisher
	now    func() time.Time
}

func NewEngine(st store.Store, publisher events.Publisher) *Engine {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Engine{store: st, events: publisher, now: time.Now}
}

// ListPending returns every order waiting for or in preparation, oldest
// first.
func (e *Engine) ListPending(ctx context.Context) ([]models.KitchenTicket, error) {
	var (
		orders        []models.TableOrder
		conversations []models.Conversation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = e.store.ListKitchenTableOrders(gctx, models.PendingKitchenStatuses)
		if err != nil {
			return fmt.Errorf("load table orders: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		conversations, err = e.store.ListKitchenConversations(gctx, models.PendingKitchenStatuses)
		if err != nil {
			return fmt.Errorf("load whatsapp orders: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tickets := make([]models.KitchenTicket, 0, len(orders)+len(conversations))
	for _, order := range orders {
		tickets = append(tickets, tableTicket(order))
	}
	for _, conv := range conversations {
		tickets = append(tickets, conversationTicket(conv))
	}

	now := e.now()
	enteredAt := func(ticket models.KitchenTicket) time.Time {
		if ticket.EnteredAt == nil {
			return now
		}
		return *ticket.EnteredAt
	}
	sort.SliceStable(tickets, func(i, j int) bool {
		return enteredAt(tickets[i]).Before(enteredAt(tickets[j]))
	})
	return tickets, nil
}

// UpdateStatus moves an order one step along AwaitingPrep, InPrep, Ready.
func (e *Engine) UpdateStatus(ctx context.Context, kind string, originID int64, rawStatus string) (models.KitchenTicket, error) {
	ref, err := parseRef(kind, originID)
	if err != nil {
		return models.KitchenTicket{}, err
	}
	target, ok := models.ParseKitchenStatus(rawStatus)
	if !ok || (target != models.KitchenInPrep && target != models.KitchenReady) {
		return models.KitchenTicket{}, store.InvalidArgument("kitchen status must be %s or %s", models.KitchenInPrep, models.KitchenReady)
	}
	return e.transition(ctx, ref, target, updateTargets)
}

// Deliver hands a Ready order over to the customer.
func (e *Engine) Deliver(ctx context.Context, kind string, originID int64) (models.KitchenTicket, error) {
	ref, err := parseRef(kind, originID)
	if err != nil {
		return models.KitchenTicket{}, err
	}
	return e.transition(ctx, ref, models.KitchenDelivered, []models.KitchenStatus{models.KitchenDelivered})
}

func (e *Engine) transition(ctx context.Context, ref models.OrderRef, target models.KitchenStatus, targets []models.KitchenStatus) (models.KitchenTicket, error) {
	var ticket models.KitchenTicket
	err := ref.Visit(
		func(orderID int64) error {
			current, err := e.store.GetTableOrder(ctx, orderID)
			if err != nil {
				return err
			}
			return e.store.RunInTx(ctx, store.TableLockKey(current.TableID), func(ctx context.Context, q store.Queries) error {
				order, err := q.GetTableOrder(ctx, orderID)
				if err != nil {
					return err
				}
				if err := checkTransition(order.KitchenStatus, target, targets); err != nil {
					return err
				}
				order.KitchenStatus = target
				if err := q.UpdateTableOrder(ctx, order); err != nil {
					return err
				}
				ticket = tableTicket(order)
				return nil
			})
		},
		func(conversationID int64) error {
			current, err := e.store.GetConversation(ctx, conversationID)
			if err != nil {
				return err
			}
			return e.store.RunInTx(ctx, store.PhoneLockKey(current.Phone), func(ctx context.Context, q store.Queries) error {
				conv, err := q.GetConversation(ctx, conversationID)
				if err != nil {
					return err
				}
				if err := checkTransition(conv.KitchenStatus, target, targets); err != nil {
					return err
				}
				conv.KitchenStatus = target
				conv.UpdatedAt = e.now().UTC()
				if err := q.SaveConversation(ctx, conv); err != nil {
					return err
				}
				ticket = conversationTicket(conv)
				return nil
			})
		},
	)
	if err != nil {
		return models.KitchenTicket{}, err
	}

	log.Printf("kitchen status updated origin=%s status=%s", ref, target)
	events.Notify(ctx, e.events, models.KitchenEvent{
		Type:       models.KitchenEventUpdated,
		OriginKind: ref.Kind(),
		OriginID:   ref.ID(),
		Status:     target,
		OccurredAt: e.now().UTC(),
	})
	return ticket, nil
}

// checkTransition rejects orders that never reached the kitchen and any
// move the transition table does not list. Ready is terminal for staff
// updates.
func checkTransition(from, to models.KitchenStatus, targets []models.KitchenStatus) error {
	if from == models.KitchenNone {
		return &store.StateError{Entity: "kitchen order", Action: "move to " + string(to), Current: string(from)}
	}
	if store.ValidKitchenTransition(from, to) {
		return nil
	}
	var allowed []string
	for _, next := range store.AllowedKitchenTargets(from) {
		for _, target := range targets {
			if next == target {
				allowed = append(allowed, string(next))
			}
		}
	}
	return &store.StateError{Entity: "kitchen order", Action: "move to " + string(to), Current: string(from), Allowed: allowed}
}

func parseRef(kind string, originID int64) (models.OrderRef, error) {
	ref, err := models.ParseOrderRef(kind, originID)
	if err != nil {
		return models.OrderRef{}, store.InvalidArgument("%v", err)
	}
	if !ref.Valid() {
		return models.OrderRef{}, store.InvalidArgument("invalid order id %d", originID)
	}
	return ref, nil
}

func tableTicket(order models.TableOrder) models.KitchenTicket {
	items := make([]models.KitchenItem, 0, len(order.Lines))
	for _, line := range order.Lines {
		items = append(items, models.KitchenItem{ProductName: line.ProductName, Quantity: line.Quantity, Note: line.Note})
	}
	return models.KitchenTicket{
		OriginID:      order.ID,
		OriginKind:    models.KindMesa.Label(),
		CustomerLabel: "Mesa " + order.TableNumber,
		EnteredAt:     order.KitchenEnteredAt,
		Status:        order.KitchenStatus,
		Items:         items,
	}
}

func conversationTicket(conv models.Conversation) models.KitchenTicket {
	lines := conv.Cart.Lines()
	items := make([]models.KitchenItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, models.KitchenItem{ProductName: line.Name, Quantity: line.Quantity, Note: line.Note})
	}
	return models.KitchenTicket{
		OriginID:      conv.ID,
		OriginKind:    models.KindWhatsApp.Label(),
		CustomerLabel: conv.CustomerLabel(),
		EnteredAt:     conv.KitchenEnteredAt,
		Status:        conv.KitchenStatus,
		Items:         items,
	}
}
