package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestCartAddMergesSameProduct(t *testing.T) {
	var cart Cart
	if err := cart.Add(CartLine{ProductID: 101, Name: "Margherita", UnitPrice: Cents(4000), Quantity: 1}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := cart.Add(CartLine{ProductID: 301, Name: "Refrigerante Lata", UnitPrice: Cents(500), Quantity: 1}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := cart.Add(CartLine{ProductID: 101, Name: "Margherita", UnitPrice: Cents(4000), Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}

	if cart.Len() != 2 {
		t.Fatalf("expected 2 lines, got %d", cart.Len())
	}
	if got := cart.Lines()[0].Quantity; got != 3 {
		t.Fatalf("expected merged quantity 3, got %d", got)
	}
	if got := cart.Total(); got.Cents() != 12500 {
		t.Fatalf("expected total 125.00, got %s", got)
	}
}

func TestCartRejectsInvalidLines(t *testing.T) {
	var cart Cart
	invalid := []CartLine{
		{ProductID: 1, Name: "X", UnitPrice: Cents(100), Quantity: 0},
		{ProductID: 1, Name: "X", UnitPrice: Cents(-1), Quantity: 1},
		{ProductID: 1, Name: " ", UnitPrice: Cents(100), Quantity: 1},
	}
	for _, line := range invalid {
		if err := cart.Add(line); !errors.Is(err, ErrInvalidCartLine) {
			t.Fatalf("expected ErrInvalidCartLine for %+v, got %v", line, err)
		}
	}
	if !cart.Empty() {
		t.Fatalf("expected cart to stay empty")
	}
}

func TestCartRemoveLastAndClone(t *testing.T) {
	var cart Cart
	if cart.RemoveLast() {
		t.Fatalf("expected RemoveLast on empty cart to report false")
	}
	_ = cart.Add(CartLine{ProductID: 1, Name: "A", UnitPrice: Cents(100), Quantity: 1})
	_ = cart.Add(CartLine{ProductID: 2, Name: "B", UnitPrice: Cents(200), Quantity: 1})

	clone := cart.Clone()
	if !cart.RemoveLast() {
		t.Fatalf("expected RemoveLast to report true")
	}
	if cart.Len() != 1 || cart.Lines()[0].ProductID != 1 {
		t.Fatalf("expected only the first line to remain, got %+v", cart.Lines())
	}
	if clone.Len() != 2 {
		t.Fatalf("expected clone to be unaffected, got %d lines", clone.Len())
	}

	lines := clone.Lines()
	lines[0].Quantity = 99
	if clone.Lines()[0].Quantity != 1 {
		t.Fatalf("expected Lines to return a copy")
	}

	cart.Clear()
	if !cart.Empty() || cart.Total() != 0 {
		t.Fatalf("expected cleared cart")
	}
}

func TestCartJSON(t *testing.T) {
	var empty Cart
	data, err := json.Marshal(empty)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("expected [], got %s", data)
	}

	var cart Cart
	if err := json.Unmarshal([]byte(`[{"id":101,"nome":"Margherita","preco":"40.00","quantidade":1}]`), &cart); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cart.Len() != 1 || cart.Total().Cents() != 4000 {
		t.Fatalf("unexpected cart: %+v", cart.Lines())
	}
	if err := json.Unmarshal([]byte(`[{"id":1,"nome":"X","preco":"1.00","quantidade":0}]`), &cart); err == nil {
		t.Fatalf("expected zero quantity to be rejected")
	}
}

func TestConversationReset(t *testing.T) {
	conv := Conversation{ID: 3, Phone: "+5511999999999", State: StateAwaitingCartAction, Scratch: Scratch{Category: "1"}}
	_ = conv.Cart.Add(CartLine{ProductID: 1, Name: "A", UnitPrice: Cents(100), Quantity: 1})

	conv.Reset()
	if conv.State != StateStart || !conv.Cart.Empty() || conv.Scratch.Category != "" {
		t.Fatalf("unexpected conversation after reset: %+v", conv)
	}
	if conv.CustomerLabel() != "+5511999999999" {
		t.Fatalf("expected phone label, got %q", conv.CustomerLabel())
	}
	conv.CustomerName = "Ana"
	if conv.CustomerLabel() != "Ana" {
		t.Fatalf("expected name label, got %q", conv.CustomerLabel())
	}
}
