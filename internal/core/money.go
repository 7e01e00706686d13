// Package core provides money parsing and handling utilities.
//
// This file contains the fixed-point Money type used for every amount in the
// ledger. Amounts carry exactly two decimal places, are parsed with half-up
// rounding and cross every boundary (JSON, SQL, AMQP) as decimal strings.
package core

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

const moneyPlaces = 2

// Money is an exact amount with two decimal places.
// The zero value is a valid zero amount.
type Money struct {
	d decimal.Decimal
}

// ParseMoney converts a decimal string to Money with half-up rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// on the third decimal place. Signs are rejected: amounts are magnitudes and
// the direction of a movement is carried by the transaction type.
//
// Examples:
//
//	ParseMoney("12.34")  -> 12.34, nil
//	ParseMoney("12,34")  -> 12.34, nil
//	ParseMoney("12.345") -> 12.35, nil (rounds up)
//	ParseMoney("12.344") -> 12.34, nil (rounds down)
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Money{}, ErrInvalidAmount
	}
	for _, part := range parts {
		for _, r := range part {
			if !unicode.IsDigit(r) {
				return Money{}, ErrInvalidAmount
			}
		}
	}
	if parts[0] == "" {
		s = "0" + s
	}
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return NewMoney(d), nil
}

// MustParseMoney is like ParseMoney but panics on malformed input.
// Intended for constants and tests.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(fmt.Sprintf("core: invalid money literal %q", s))
	}
	return m
}

// NewMoney rounds d half-up to cents.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d.Round(moneyPlaces)}
}

// MoneyFromCents builds an amount from an integer number of cents.
func MoneyFromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -moneyPlaces)}
}

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }
func (m Money) Neg() Money        { return Money{d: m.d.Neg()} }

// Decimal exposes the underlying decimal for calculations that need more
// precision than cents, such as projections.
func (m Money) Decimal() decimal.Decimal { return m.d }

// Cents returns the amount as an integer number of cents.
func (m Money) Cents() int64 { return m.d.Shift(moneyPlaces).IntPart() }

func (m Money) IsZero() bool     { return m.d.IsZero() }
func (m Money) IsPositive() bool { return m.d.IsPositive() }
func (m Money) IsNegative() bool { return m.d.IsNegative() }

// Cmp compares two amounts: -1 if m < o, 0 if equal, +1 if m > o.
func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

// Float64 returns a lossy float for metrics gauges only.
// Use Money for every calculation.
func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

// String formats the amount with exactly two decimal places ("12.50").
func (m Money) String() string {
	return m.d.StringFixed(moneyPlaces)
}

func (m Money) Validate() error {
	if !m.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// MarshalJSON encodes the amount as a decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts a decimal string or a bare JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*m = Money{}
		return nil
	}
	s = strings.Trim(s, `"`)
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	*m = NewMoney(d)
	return nil
}

// Value implements driver.Valuer; amounts are stored as TEXT.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner.
func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return m.scanString(v)
	case []byte:
		return m.scanString(string(v))
	case int64:
		*m = Money{d: decimal.NewFromInt(v)}
		return nil
	case nil:
		*m = Money{}
		return nil
	default:
		return fmt.Errorf("scan money: unsupported type %T", src)
	}
}

func (m *Money) scanString(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("scan money %q: %w", s, err)
	}
	*m = NewMoney(d)
	return nil
}
