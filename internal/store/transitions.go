package store

import "github.com/RubensDuarte2025/Julius-rmd/internal/models"

const (
	ActionAddLine     = "add_line"
	ActionUpdateLine  = "update_line"
	ActionRemoveLine  = "remove_line"
	ActionUpdateNotes = "update_notes"
	ActionClose       = "close"
	ActionCancel      = "cancel"
	ActionPay         = "pay"
)

var orderActionMap = map[string][]models.OrderStatus{
	ActionAddLine:     {models.OrderOpen},
	ActionUpdateLine:  {models.OrderOpen},
	ActionRemoveLine:  {models.OrderOpen},
	ActionUpdateNotes: {models.OrderOpen},
	ActionClose:       {models.OrderOpen},
	ActionCancel:      {models.OrderOpen, models.OrderClosed},
	ActionPay:         {models.OrderOpen, models.OrderClosed},
}

func ValidOrderAction(action string, from models.OrderStatus) bool {
	allowed, ok := orderActionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == from {
			return true
		}
	}
	return false
}

// CheckOrderAction returns a *StateError when action is not legal from the
// order's current status.
func CheckOrderAction(action string, order models.TableOrder) error {
	if ValidOrderAction(action, order.Status) {
		return nil
	}
	allowed := make([]string, 0, len(orderActionMap[action]))
	for _, status := range orderActionMap[action] {
		allowed = append(allowed, string(status))
	}
	return &StateError{Entity: "order", Action: action, Current: string(order.Status), Allowed: allowed}
}

// kitchenTransitionMap is keyed by target status.
var kitchenTransitionMap = map[models.KitchenStatus][]models.KitchenStatus{
	models.KitchenInPrep:    {models.KitchenAwaitingPrep},
	models.KitchenReady:     {models.KitchenInPrep},
	models.KitchenDelivered: {models.KitchenReady},
}

func ValidKitchenTransition(from, to models.KitchenStatus) bool {
	for _, status := range kitchenTransitionMap[to] {
		if status == from {
			return true
		}
	}
	return false
}

func AllowedKitchenTargets(from models.KitchenStatus) []models.KitchenStatus {
	var targets []models.KitchenStatus
	for _, to := range []models.KitchenStatus{models.KitchenInPrep, models.KitchenReady, models.KitchenDelivered} {
		if ValidKitchenTransition(from, to) {
			targets = append(targets, to)
		}
	}
	return targets
}

var conversationTransitionMap = map[models.ConversationState][]models.ConversationState{
	models.StateStart: {models.StateAwaitingInitialOption},
	models.StateAwaitingInitialOption: {
		models.StateAwaitingCategoryChoice,
		models.StateTransferredToAgent,
		models.StateAwaitingInitialOption,
	},
	models.StateAwaitingCategoryChoice: {
		models.StateAwaitingInitialOption,
		models.StateAwaitingProductChoice,
		models.StateAwaitingCategoryChoice,
	},
	models.StateAwaitingProductChoice: {
		models.StateAwaitingCategoryChoice,
		models.StateAwaitingCartAction,
		models.StateAwaitingProductChoice,
	},
	models.StateAwaitingCartAction: {
		models.StateAwaitingProductChoice,
		models.StateAwaitingCategoryChoice,
		models.StateAwaitingOrderConfirmation,
		models.StateAwaitingCartAction,
	},
	models.StateAwaitingOrderConfirmation: {
		models.StateAwaitingPaymentConfirm,
		models.StateAwaitingInitialOption,
		models.StateAwaitingOrderConfirmation,
	},
	models.StateAwaitingPaymentConfirm: {models.StateAwaitingPaymentConfirm},
	models.StateTransferredToAgent:     {models.StateTransferredToAgent},
}

// ValidConversationTransition also accepts the reset to the initial menu,
// which "cancelar" triggers from every state.
func ValidConversationTransition(from, to models.ConversationState) bool {
	allowed, ok := conversationTransitionMap[from]
	if !ok {
		return false
	}
	if to == models.StateAwaitingInitialOption {
		return true
	}
	for _, state := range allowed {
		if state == to {
			return true
		}
	}
	return false
}
