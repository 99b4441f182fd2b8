package models

import (
	"errors"
	"fmt"
	"strings"
)

// OrderKind discriminates the channel that produced an order.
type OrderKind string

const (
	KindMesa     OrderKind = "mesa"
	KindWhatsApp OrderKind = "whatsapp"
)

var ErrUnknownOrderKind = errors.New("unknown order kind")

func ParseOrderKind(raw string) (OrderKind, error) {
	switch OrderKind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindMesa:
		return KindMesa, nil
	case KindWhatsApp:
		return KindWhatsApp, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOrderKind, raw)
	}
}

// Label is the display name used by the kitchen queue.
func (k OrderKind) Label() string {
	switch k {
	case KindMesa:
		return "Mesa"
	case KindWhatsApp:
		return "WhatsApp"
	default:
		return string(k)
	}
}

// OrderRef points at either a table order or a WhatsApp conversation.
// The zero value has no identity.
type OrderRef struct {
	kind OrderKind
	id   int64
}

func MesaOrder(id int64) OrderRef {
	return OrderRef{kind: KindMesa, id: id}
}

func WhatsAppOrder(conversationID int64) OrderRef {
	return OrderRef{kind: KindWhatsApp, id: conversationID}
}

func ParseOrderRef(kind string, id int64) (OrderRef, error) {
	parsed, err := ParseOrderKind(kind)
	if err != nil {
		return OrderRef{}, err
	}
	return OrderRef{kind: parsed, id: id}, nil
}

func (r OrderRef) Kind() OrderKind { return r.kind }
func (r OrderRef) ID() int64       { return r.id }

// Valid reports whether the reference names a concrete order.
func (r OrderRef) Valid() bool {
	return (r.kind == KindMesa || r.kind == KindWhatsApp) && r.id > 0
}

// Visit dispatches on the kind. Both branches must be supplied.
func (r OrderRef) Visit(mesa func(orderID int64) error, whatsapp func(conversationID int64) error) error {
	switch r.kind {
	case KindMesa:
		return mesa(r.id)
	case KindWhatsApp:
		return whatsapp(r.id)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOrderKind, r.kind)
	}
}

func (r OrderRef) String() string {
	return fmt.Sprintf("%s:%d", r.kind, r.id)
}

func (r OrderRef) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`{"tipo_origem":%q,"id_pedido_origem":%d}`, r.kind, r.id)), nil
}
