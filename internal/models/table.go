package models

import (
	"encoding/json"
	"time"
)

type TableStatus string

const (
	TableFree            TableStatus = "Livre"
	TableOccupied        TableStatus = "Ocupada"
	TableAwaitingPayment TableStatus = "AguardandoPagamento"
	TableInterdicted     TableStatus = "Interditada"
)

const DefaultTableCapacity = 4

func ParseTableStatus(raw string) (TableStatus, bool) {
	switch status := TableStatus(raw); status {
	case TableFree, TableOccupied, TableAwaitingPayment, TableInterdicted:
		return status, true
	default:
		return "", false
	}
}

type Table struct {
	ID        int64       `json:"id"`
	Number    string      `json:"numero_identificador"`
	Capacity  int         `json:"capacidade"`
	Status    TableStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

type OrderStatus string

const (
	OrderOpen      OrderStatus = "Aberto"
	OrderClosed    OrderStatus = "Fechado"
	OrderPaid      OrderStatus = "Pago"
	OrderCancelled OrderStatus = "Cancelado"
)

// Terminal reports whether no further order action is possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderPaid || s == OrderCancelled
}

// LiveOrderStatuses lists the statuses that keep a table busy.
var LiveOrderStatuses = []OrderStatus{OrderOpen, OrderClosed}

type TableOrder struct {
	ID               int64         `json:"id"`
	TableID          int64         `json:"mesa_id"`
	TableNumber      string        `json:"mesa_numero"`
	Status           OrderStatus   `json:"status_pedido"`
	KitchenStatus    KitchenStatus `json:"status_cozinha,omitempty"`
	KitchenEnteredAt *time.Time    `json:"horario_entrada_cozinha,omitempty"`
	OpenedAt         time.Time     `json:"data_abertura"`
	ClosedAt         *time.Time    `json:"data_fechamento,omitempty"`
	Notes            string        `json:"observacoes_gerais,omitempty"`
	PaymentMethod    PaymentMethod `json:"metodo_pagamento_registrado,omitempty"`
	PaidAmount       *Money        `json:"valor_pago_registrado,omitempty"`
	Lines            []OrderLine   `json:"itens"`
}

func (o TableOrder) Total() Money {
	var total Money
	for _, line := range o.Lines {
		total += line.Subtotal
	}
	return total
}

func (o TableOrder) Ref() OrderRef {
	return MesaOrder(o.ID)
}

func (o TableOrder) MarshalJSON() ([]byte, error) {
	type plain TableOrder
	lines := o.Lines
	if lines == nil {
		lines = []OrderLine{}
	}
	view := plain(o)
	view.Lines = lines
	return json.Marshal(struct {
		plain
		Total Money `json:"total"`
	}{plain: view, Total: o.Total()})
}

type OrderLine struct {
	ID          int64  `json:"id"`
	OrderID     int64  `json:"pedido_id"`
	ProductID   int64  `json:"produto_id"`
	ProductName string `json:"produto_nome"`
	Quantity    int    `json:"quantidade"`
	UnitPrice   Money  `json:"preco_unitario_no_momento"`
	Subtotal    Money  `json:"subtotal_item"`
	Note        string `json:"observacoes_item,omitempty"`
}

// Recalculate refreshes Subtotal from quantity and the captured price.
func (l *OrderLine) Recalculate() {
	l.Subtotal = l.UnitPrice.Mul(l.Quantity)
}
