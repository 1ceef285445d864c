// Package core holds the ledger domain model: monetary amounts, entries,
// cost codes, grand totals and the ledger aggregate, plus the Changes value
// produced by a comparison run.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidMoney is returned when a sheet cell cannot be read as an amount.
var ErrInvalidMoney = errors.New("invalid money value")

// Money is an amount of pounds sterling held as whole pence.
type Money struct {
	Pence int64
}

func (m Money) Add(n Money) Money { return Money{Pence: m.Pence + n.Pence} }
func (m Money) Sub(n Money) Money { return Money{Pence: m.Pence - n.Pence} }
func (m Money) Neg() Money        { return Money{Pence: -m.Pence} }
func (m Money) IsZero() bool      { return m.Pence == 0 }
func (m Money) Equal(n Money) bool {
	return m.Pence == n.Pence
}

// Decimal returns the amount in pounds, e.g. 1234 pence -> 12.34.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Pence, -2)
}

// String renders the plain pounds value without a currency symbol.
func (m Money) String() string {
	return m.Decimal().String()
}

// MarshalJSON emits the amount as a plain pounds number, the shape the
// notification layer and saved state expect.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().String()), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMoney reads a monetary amount as displayed in a ledger sheet.
// It tolerates a leading pound sign, thousands separators and surrounding
// whitespace. Amounts with more than two decimal places are rounded half
// away from zero.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "£")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return Money{}, ErrInvalidMoney
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidMoney
	}
	return Money{Pence: d.Shift(2).Round(0).IntPart()}, nil
}

// ParseMoneyCell is ParseMoney for optional cells: an empty cell is zero.
func ParseMoneyCell(s string) (Money, error) {
	if strings.TrimSpace(s) == "" {
		return Money{}, nil
	}
	return ParseMoney(s)
}
