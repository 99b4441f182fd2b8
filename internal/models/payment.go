package models

import "time"

type PaymentMethod string

const (
	MethodPix                 PaymentMethod = "pix"
	MethodCreditCardOnline    PaymentMethod = "cartao_credito_online"
	MethodDebitCardTerminal   PaymentMethod = "cartao_debito_maquineta"
	MethodCreditCardTerminal  PaymentMethod = "cartao_credito_maquineta"
	MethodCash                PaymentMethod = "dinheiro"
	MethodOther               PaymentMethod = "outro"
	MethodCardTerminalGeneric PaymentMethod = "cartao_maquineta"
	MethodPixTerminal         PaymentMethod = "pix_maquineta"
)

// KnownPaymentMethod accepts ledger methods and the two generic table-channel
// values, which are stored as given.
func KnownPaymentMethod(method PaymentMethod) bool {
	switch method {
	case MethodPix, MethodCreditCardOnline, MethodDebitCardTerminal, MethodCreditCardTerminal,
		MethodCash, MethodOther, MethodCardTerminalGeneric, MethodPixTerminal:
		return true
	default:
		return false
	}
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "Pendente"
	PaymentApproved PaymentStatus = "Aprovado"
	PaymentDeclined PaymentStatus = "Recusado"
	PaymentRefunded PaymentStatus = "Reembolsado"
)

func ParsePaymentStatus(raw string) (PaymentStatus, bool) {
	switch status := PaymentStatus(raw); status {
	case PaymentPending, PaymentApproved, PaymentDeclined, PaymentRefunded:
		return status, true
	default:
		return "", false
	}
}

type PaymentRecord struct {
	ID                   int64         `json:"id"`
	Order                OrderRef      `json:"pedido"`
	Method               PaymentMethod `json:"metodo_pagamento"`
	Amount               Money         `json:"valor_pago"`
	Status               PaymentStatus `json:"status_pagamento"`
	PaidAt               time.Time     `json:"data_hora_pagamento"`
	GatewayTransactionID string        `json:"transacao_id_gateway,omitempty"`
	PixPayload           string        `json:"qr_code_pix_copia_cola,omitempty"`
}
