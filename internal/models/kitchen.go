package models

import "time"

// KitchenStatus tracks preparation progress. The empty value means the
// order has not reached the kitchen yet.
type KitchenStatus string

const (
	KitchenNone         KitchenStatus = ""
	KitchenAwaitingPrep KitchenStatus = "AguardandoPreparo"
	KitchenInPrep       KitchenStatus = "EmPreparo"
	KitchenReady        KitchenStatus = "Pronto"
	KitchenDelivered    KitchenStatus = "Entregue"
)

func ParseKitchenStatus(raw string) (KitchenStatus, bool) {
	switch status := KitchenStatus(raw); status {
	case KitchenNone, KitchenAwaitingPrep, KitchenInPrep, KitchenReady, KitchenDelivered:
		return status, true
	default:
		return "", false
	}
}

// Pending reports whether the kitchen still has work to do on the order.
func (s KitchenStatus) Pending() bool {
	return s == KitchenAwaitingPrep || s == KitchenInPrep
}

// PendingKitchenStatuses is the filter used by the consolidated queue.
var PendingKitchenStatuses = []KitchenStatus{KitchenAwaitingPrep, KitchenInPrep}

type KitchenItem struct {
	ProductName string `json:"nome_produto"`
	Quantity    int    `json:"quantidade"`
	Note        string `json:"observacoes_item"`
}

type KitchenTicket struct {
	OriginID      int64         `json:"id_pedido_origem"`
	OriginKind    string        `json:"tipo_origem"`
	CustomerLabel string        `json:"identificador_cliente"`
	EnteredAt     *time.Time    `json:"horario_entrada_cozinha"`
	Status        KitchenStatus `json:"status_cozinha_atual"`
	Items         []KitchenItem `json:"itens"`
}

// KitchenEvent is emitted whenever an order's kitchen status changes.
type KitchenEvent struct {
	Type       string        `json:"type"`
	OriginKind OrderKind     `json:"origin_kind"`
	OriginID   int64         `json:"origin_id"`
	Status     KitchenStatus `json:"status_cozinha"`
	OccurredAt time.Time     `json:"occurred_at"`
}

const (
	KitchenEventQueued  = "kitchen.queued"
	KitchenEventUpdated = "kitchen.status_updated"
)
