package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a fixed-point monetary amount with two decimal places.
// Every arithmetic operation that can produce sub-cent precision rounds
// half-up to the cent before the result is observable, so balances and
// ledger amounts never carry hidden fractions.
type Money struct {
	d decimal.Decimal
}

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// ZeroMoney is the zero amount.
func ZeroMoney() Money { return Money{d: decimal.Zero} }

// NewMoney builds a Money from a decimal, rounding to two places.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d.Round(2)}
}

// MoneyFromFloat builds a Money from a float64, rounding to two places.
func MoneyFromFloat(f float64) Money {
	return Money{d: decimal.NewFromFloat(f).Round(2)}
}

// MoneyFromInt builds a Money from whole currency units.
func MoneyFromInt(i int64) Money {
	return Money{d: decimal.NewFromInt(i)}
}

// ParseMoney parses a decimal string like "202.50".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Money{d: d.Round(2)}, nil
}

// MustMoney parses a decimal string and panics on failure. Test helper.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Add returns m + o.
func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }

// Sub returns m - o.
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

// Neg returns -m.
func (m Money) Neg() Money { return Money{d: m.d.Neg()} }

// MulPercent applies a percentage rate (e.g. 0.5 for 0.5%) and rounds.
func (m Money) MulPercent(ratePct decimal.Decimal) Money {
	return Money{d: m.d.Mul(ratePct).Div(hundred).Round(2)}
}

// MonthlyInterest computes round2(m × annualRatePct / 12 / 100).
func (m Money) MonthlyInterest(annualRatePct decimal.Decimal) Money {
	return Money{d: m.d.Mul(annualRatePct).Div(twelve).Div(hundred).Round(2)}
}

func (m Money) Cmp(o Money) int          { return m.d.Cmp(o.d) }
func (m Money) Equal(o Money) bool       { return m.d.Equal(o.d) }
func (m Money) LessThan(o Money) bool    { return m.d.LessThan(o.d) }
func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }
func (m Money) GreaterThanOrEqual(o Money) bool {
	return m.d.GreaterThanOrEqual(o.d)
}
func (m Money) IsZero() bool     { return m.d.IsZero() }
func (m Money) IsPositive() bool { return m.d.IsPositive() }
func (m Money) IsNegative() bool { return m.d.IsNegative() }

// Decimal exposes the underlying decimal for schedule math.
func (m Money) Decimal() decimal.Decimal { return m.d }

// Float64 returns an approximate float value, for logging and metrics only.
func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

// String renders the amount with exactly two decimal places.
func (m Money) String() string { return m.d.StringFixed(2) }

// MarshalJSON encodes as a fixed two-decimal string, e.g. "202.50".
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.d.StringFixed(2) + `"`), nil
}

// UnmarshalJSON accepts both `"202.50"` and `202.5`.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		m.d = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid money value %s: %w", string(b), err)
	}
	m.d = d.Round(2)
	return nil
}

// Value stores Money as text so no precision is lost in SQLite or Postgres.
func (m Money) Value() (driver.Value, error) {
	return m.d.StringFixed(2), nil
}

// Scan reads Money back from text, bytes or numeric columns.
func (m *Money) Scan(src any) error {
	if src == nil {
		m.d = decimal.Zero
		return nil
	}
	switch v := src.(type) {
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return err
		}
		m.d = d.Round(2)
	case []byte:
		d, err := decimal.NewFromString(string(v))
		if err != nil {
			return err
		}
		m.d = d.Round(2)
	case float64:
		m.d = decimal.NewFromFloat(v).Round(2)
	case int64:
		m.d = decimal.NewFromInt(v)
	default:
		return fmt.Errorf("cannot scan %T into Money", src)
	}
	return nil
}
