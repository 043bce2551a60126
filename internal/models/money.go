package models

import (
	"github.com/shopspring/decimal"
)

// Money is an amount of currency. It scans from and writes to NUMERIC(12,2)
// columns and renders in JSON as a string with two fraction digits.
type Money struct {
	decimal.Decimal
}

// NewMoney wraps d
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

// MustMoney parses s and panics if it is not a number. Meant for literals.
func MustMoney(s string) Money {
	return Money{Decimal: decimal.RequireFromString(s)}
}

// MarshalJSON renders the amount at cent scale, e.g. "30.00"
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.StringFixed(2) + `"`), nil
}
