package store

import (
	"errors"
	"testing"

	"github.com/RubensDuarte2025/Julius-rmd/internal/models"
)

func TestValidOrderAction(t *testing.T) {
	cases := []struct {
		action string
		from   models.OrderStatus
		valid  bool
	}{
		{ActionAddLine, models.OrderOpen, true},
		{ActionAddLine, models.OrderClosed, false},
		{ActionUpdateLine, models.OrderOpen, true},
		{ActionUpdateLine, models.OrderPaid, false},
		{ActionRemoveLine, models.OrderOpen, true},
		{ActionRemoveLine, models.OrderCancelled, false},
		{ActionUpdateNotes, models.OrderOpen, true},
		{ActionUpdateNotes, models.OrderClosed, false},
		{ActionClose, models.OrderOpen, true},
		{ActionClose, models.OrderClosed, false},
		{ActionCancel, models.OrderOpen, true},
		{ActionCancel, models.OrderClosed, true},
		{ActionCancel, models.OrderPaid, false},
		{ActionCancel, models.OrderCancelled, false},
		{ActionPay, models.OrderOpen, true},
		{ActionPay, models.OrderClosed, true},
		{ActionPay, models.OrderPaid, false},
		{"unknown", models.OrderOpen, false},
	}

	for _, tt := range cases {
		if got := ValidOrderAction(tt.action, tt.from); got != tt.valid {
			t.Fatalf("ValidOrderAction(%q, %q)=%v, want %v", tt.action, tt.from, got, tt.valid)
		}
	}
}

func TestCheckOrderActionReportsAllowedStatuses(t *testing.T) {
	err := CheckOrderAction(ActionPay, models.TableOrder{Status: models.OrderPaid})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected *StateError, got %T", err)
	}
	if stateErr.Current != string(models.OrderPaid) || len(stateErr.Allowed) != 2 {
		t.Fatalf("unexpected state error: %+v", stateErr)
	}
}

func TestValidKitchenTransition(t *testing.T) {
	cases := []struct {
		from  models.KitchenStatus
		to    models.KitchenStatus
		valid bool
	}{
		{models.KitchenAwaitingPrep, models.KitchenInPrep, true},
		{models.KitchenAwaitingPrep, models.KitchenReady, false},
		{models.KitchenInPrep, models.KitchenReady, true},
		{models.KitchenInPrep, models.KitchenAwaitingPrep, false},
		{models.KitchenReady, models.KitchenInPrep, false},
		{models.KitchenReady, models.KitchenReady, false},
		{models.KitchenReady, models.KitchenDelivered, true},
		{models.KitchenDelivered, models.KitchenInPrep, false},
		{models.KitchenNone, models.KitchenInPrep, false},
	}

	for _, tt := range cases {
		if got := ValidKitchenTransition(tt.from, tt.to); got != tt.valid {
			t.Fatalf("ValidKitchenTransition(%q, %q)=%v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}

func TestConversationTransitionsCoverEveryState(t *testing.T) {
	for _, state := range models.ConversationStates {
		if _, ok := conversationTransitionMap[state]; !ok {
			t.Fatalf("state %s has no transitions", state)
		}
		if !ValidConversationTransition(state, models.StateAwaitingInitialOption) {
			t.Fatalf("state %s cannot be reset", state)
		}
	}
	if len(conversationTransitionMap) != len(models.ConversationStates) {
		t.Fatalf("expected %d states in transition map, got %d", len(models.ConversationStates), len(conversationTransitionMap))
	}
	for from, targets := range conversationTransitionMap {
		for _, to := range targets {
			if _, err := models.ParseConversationState(string(to)); err != nil {
				t.Fatalf("transition %s -> %s targets unknown state", from, to)
			}
		}
	}
}

func TestValidConversationTransition(t *testing.T) {
	cases := []struct {
		from  models.ConversationState
		to    models.ConversationState
		valid bool
	}{
		{models.StateStart, models.StateAwaitingInitialOption, true},
		{models.StateStart, models.StateAwaitingCartAction, false},
		{models.StateAwaitingInitialOption, models.StateTransferredToAgent, true},
		{models.StateAwaitingProductChoice, models.StateAwaitingCartAction, true},
		{models.StateAwaitingProductChoice, models.StateAwaitingOrderConfirmation, false},
		{models.StateAwaitingCartAction, models.StateAwaitingOrderConfirmation, true},
		{models.StateAwaitingOrderConfirmation, models.StateAwaitingPaymentConfirm, true},
		{models.StateAwaitingPaymentConfirm, models.StateAwaitingCartAction, false},
		{models.StateTransferredToAgent, models.StateAwaitingInitialOption, true},
		{models.StateTransferredToAgent, models.StateAwaitingCategoryChoice, false},
		{models.ConversationState("BOGUS"), models.StateAwaitingInitialOption, false},
	}

	for _, tt := range cases {
		if got := ValidConversationTransition(tt.from, tt.to); got != tt.valid {
			t.Fatalf("ValidConversationTransition(%q, %q)=%v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}
