// Package money provides the fixed-point amount shared by wallets, ledger rows and subscriptions.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every Money value carries.
const Scale int32 = 2

var ErrInvalidAmount = errors.New("invalid_amount")

// Money is a decimal amount rounded to two fractional digits.
type Money struct {
	dec decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{dec: decimal.Zero}

// Parse reads a decimal string such as "499" or "588.82".
func Parse(value string) (Money, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Zero, fmt.Errorf("%w: %s", ErrInvalidAmount, value)
	}
	return FromDecimal(d), nil
}

// MustParse is Parse for constants and tests.
func MustParse(value string) Money {
	m, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return m
}

// FromInt returns a whole-unit amount.
func FromInt(units int64) Money {
	return Money{dec: decimal.NewFromInt(units).Round(Scale)}
}

// FromDecimal rounds d half away from zero to two places.
func FromDecimal(d decimal.Decimal) Money {
	return Money{dec: d.Round(Scale)}
}

func (m Money) Decimal() decimal.Decimal { return m.dec }

func (m Money) Add(other Money) Money { return FromDecimal(m.dec.Add(other.dec)) }

func (m Money) Sub(other Money) Money { return FromDecimal(m.dec.Sub(other.dec)) }

// Neg flips the sign, used for escrow adjustments.
func (m Money) Neg() Money { return Money{dec: m.dec.Neg()} }

// MulRate multiplies by a rate and rounds to two places.
func (m Money) MulRate(rate decimal.Decimal) Money {
	return FromDecimal(m.dec.Mul(rate))
}

// DivInt splits the amount into n parts. n below one is treated as one.
func (m Money) DivInt(n int) Money {
	if n < 1 {
		n = 1
	}
	return FromDecimal(m.dec.Div(decimal.NewFromInt(int64(n))))
}

// RoundUnits rounds to whole currency units.
func (m Money) RoundUnits() Money {
	return Money{dec: m.dec.Round(0).Round(Scale)}
}

func (m Money) Cmp(other Money) int { return m.dec.Cmp(other.dec) }

func (m Money) Equal(other Money) bool { return m.dec.Equal(other.dec) }

func (m Money) LessThan(other Money) bool { return m.dec.LessThan(other.dec) }

func (m Money) GreaterThanOrEqual(other Money) bool { return m.dec.GreaterThanOrEqual(other.dec) }

func (m Money) IsPositive() bool { return m.dec.IsPositive() }

func (m Money) IsZero() bool { return m.dec.IsZero() }

func (m Money) IsNegative() bool { return m.dec.IsNegative() }

// String renders the amount with exactly two fractional digits.
func (m Money) String() string { return m.dec.StringFixed(Scale) }

// Value implements driver.Valuer.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner. Float-backed stores are rounded back to two places.
func (m *Money) Scan(src interface{}) error {
	var d decimal.Decimal
	switch v := src.(type) {
	case nil:
		*m = Zero
		return nil
	case float64:
		d = decimal.NewFromFloat(v)
	case int64:
		d = decimal.NewFromInt(v)
	default:
		if err := d.Scan(src); err != nil {
			return fmt.Errorf("scan money: %w", err)
		}
	}
	*m = FromDecimal(d)
	return nil
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts both "12.50" and 12.5.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*m = Zero
		return nil
	}
	raw = strings.Trim(raw, `"`)
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
