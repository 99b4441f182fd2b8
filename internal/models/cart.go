package models

import (
	"encoding/json"
	"errors"
	"strings"
)

var ErrInvalidCartLine = errors.New("invalid cart line")

type CartLine struct {
	ProductID int64  `json:"id"`
	Name      string `json:"nome"`
	UnitPrice Money  `json:"preco"`
	Quantity  int    `json:"quantidade"`
	Note      string `json:"observacoes,omitempty"`
}

func (l CartLine) Subtotal() Money {
	return l.UnitPrice.Mul(l.Quantity)
}

func (l CartLine) validate() error {
	if l.Quantity <= 0 || l.UnitPrice < 0 || strings.TrimSpace(l.Name) == "" {
		return ErrInvalidCartLine
	}
	return nil
}

// Cart is an ordered list of product snapshots. Lines are only changed
// through its methods.
type Cart struct {
	lines []CartLine
}

// Add appends a line, or bumps the quantity when the product is already in
// the cart.
func (c *Cart) Add(line CartLine) error {
	if err := line.validate(); err != nil {
		return err
	}
	for i := range c.lines {
		if c.lines[i].ProductID == line.ProductID {
			c.lines[i].Quantity += line.Quantity
			return nil
		}
	}
	c.lines = append(c.lines, line)
	return nil
}

// RemoveLast drops the most recently added line.
func (c *Cart) RemoveLast() bool {
	if len(c.lines) == 0 {
		return false
	}
	c.lines = c.lines[:len(c.lines)-1]
	return true
}

func (c *Cart) Clear() {
	c.lines = nil
}

func (c Cart) Len() int {
	return len(c.lines)
}

func (c Cart) Empty() bool {
	return len(c.lines) == 0
}

func (c Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Clone returns a cart that shares no memory with c.
func (c Cart) Clone() Cart {
	if c.lines == nil {
		return Cart{}
	}
	return Cart{lines: c.Lines()}
}

func (c Cart) Total() Money {
	var total Money
	for _, line := range c.lines {
		total += line.Subtotal()
	}
	return total
}

func (c Cart) MarshalJSON() ([]byte, error) {
	if c.lines == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.lines)
}

func (c *Cart) UnmarshalJSON(data []byte) error {
	var lines []CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return err
	}
	for _, line := range lines {
		if err := line.validate(); err != nil {
			return err
		}
	}
	c.lines = lines
	return nil
}
