package models

import (
	"fmt"
	"time"
)

type ConversationState string

const (
	StateStart                     ConversationState = "INICIO"
	StateAwaitingInitialOption     ConversationState = "AGUARDANDO_OPCAO_INICIAL"
	StateAwaitingCategoryChoice    ConversationState = "AGUARDANDO_ESCOLHA_CATEGORIA"
	StateAwaitingProductChoice     ConversationState = "AGUARDANDO_ESCOLHA_PRODUTO"
	StateAwaitingCartAction        ConversationState = "AGUARDANDO_ACAO_CARRINHO"
	StateAwaitingOrderConfirmation ConversationState = "AGUARDANDO_CONFIRMACAO_PEDIDO"
	StateAwaitingPaymentConfirm    ConversationState = "AGUARDANDO_CONFIRMACAO_PAGAMENTO_PIX"
	StateTransferredToAgent        ConversationState = "TRANSFERIDO_ATENDENTE"
)

// ConversationStates lists every state the engine knows about.
var ConversationStates = []ConversationState{
	StateStart,
	StateAwaitingInitialOption,
	StateAwaitingCategoryChoice,
	StateAwaitingProductChoice,
	StateAwaitingCartAction,
	StateAwaitingOrderConfirmation,
	StateAwaitingPaymentConfirm,
	StateTransferredToAgent,
}

func ParseConversationState(raw string) (ConversationState, error) {
	for _, state := range ConversationStates {
		if string(state) == raw {
			return state, nil
		}
	}
	return "", fmt.Errorf("unknown conversation state %q", raw)
}

// Scratch holds data for a selection in progress.
type Scratch struct {
	Category string `json:"categoria_selecionada,omitempty"`
}

type Conversation struct {
	ID               int64             `json:"id"`
	Phone            string            `json:"telefone_cliente"`
	State            ConversationState `json:"estado_conversa"`
	Cart             Cart              `json:"carrinho_atual"`
	Scratch          Scratch           `json:"dados_temporarios"`
	CustomerName     string            `json:"nome_cliente,omitempty"`
	DeliveryAddress  string            `json:"endereco_entrega,omitempty"`
	KitchenStatus    KitchenStatus     `json:"status_cozinha,omitempty"`
	KitchenEnteredAt *time.Time        `json:"horario_entrada_cozinha,omitempty"`
	CreatedAt        time.Time         `json:"data_criacao"`
	UpdatedAt        time.Time         `json:"data_atualizacao"`
}

// Reset clears the cart and scratch data and returns to Start.
func (c *Conversation) Reset() {
	c.State = StateStart
	c.Cart.Clear()
	c.Scratch = Scratch{}
}

func (c Conversation) Ref() OrderRef {
	return WhatsAppOrder(c.ID)
}

// CustomerLabel prefers the customer's name and falls back to the phone.
func (c Conversation) CustomerLabel() string {
	if c.CustomerName != "" {
		return c.CustomerName
	}
	return c.Phone
}
