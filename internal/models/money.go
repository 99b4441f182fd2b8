package models

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is an amount in centavos.
type Money int64

var ErrInvalidMoney = errors.New("invalid money amount")

func Cents(value int64) Money {
	return Money(value)
}

func (m Money) Cents() int64 {
	return int64(m)
}

func (m Money) Mul(quantity int) Money {
	return m * Money(quantity)
}

func (m Money) String() string {
	sign := ""
	value := int64(m)
	if value < 0 {
		sign = "-"
		value = -value
	}
	return fmt.Sprintf("%s%d.%02d", sign, value/100, value%100)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(m.String())), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return ErrInvalidMoney
	}
	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			return ErrInvalidMoney
		}
		raw = unquoted
	}
	parsed, err := ParseMoney(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMoney reads a decimal amount such as "40", "40.5" or "40.00".
func ParseMoney(raw string) (Money, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrInvalidMoney
	}
	negative := false
	if raw[0] == '-' {
		negative = true
		raw = raw[1:]
	}
	whole, frac, hasFrac := strings.Cut(raw, ".")
	if whole == "" || !isDigits(whole) {
		return 0, ErrInvalidMoney
	}
	if hasFrac && (frac == "" || len(frac) > 2 || !isDigits(frac)) {
		return 0, ErrInvalidMoney
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > math.MaxInt64/100-1 {
		return 0, ErrInvalidMoney
	}
	var cents int64
	if frac != "" {
		if len(frac) == 1 {
			frac += "0"
		}
		cents, _ = strconv.ParseInt(frac, 10, 64)
	}
	total := units*100 + cents
	if negative {
		total = -total
	}
	return Money(total), nil
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
