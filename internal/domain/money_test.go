package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/corebank-io/corebank-go/internal/domain"

	"github.com/shopspring/decimal"
)

func TestMoneyRoundsToCents(t *testing.T) {
	m, err := domain.ParseMoney("1.005")
	if err != nil {
		t.Fatalf("ParseMoney: %v", err)
	}
	if got := m.String(); got != "1.01" {
		t.Errorf("expected half-up rounding to 1.01, got %s", got)
	}

	if got := domain.MoneyFromFloat(2.675).String(); got != "2.68" {
		t.Errorf("expected 2.68, got %s", got)
	}
	if got := domain.MoneyFromInt(7).String(); got != "7.00" {
		t.Errorf("expected 7.00, got %s", got)
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := domain.MustMoney("100.10")
	b := domain.MustMoney("0.90")

	if got := a.Add(b).String(); got != "101.00" {
		t.Errorf("Add: expected 101.00, got %s", got)
	}
	if got := a.Sub(b).String(); got != "99.20" {
		t.Errorf("Sub: expected 99.20, got %s", got)
	}
	if !a.GreaterThan(b) || b.GreaterThan(a) {
		t.Error("comparison order wrong")
	}
	if !domain.ZeroMoney().IsZero() {
		t.Error("ZeroMoney should be zero")
	}
}

func TestMoneyMulPercent(t *testing.T) {
	// 0.5% of 200.00 is exactly 1.00.
	fee := domain.MustMoney("200.00").MulPercent(decimal.NewFromFloat(0.5))
	if got := fee.String(); got != "1.00" {
		t.Errorf("expected 1.00, got %s", got)
	}

	// 2% of 972.80 is 19.456, rounded to 19.46.
	penalty := domain.MustMoney("972.80").MulPercent(decimal.NewFromInt(2))
	if got := penalty.String(); got != "19.46" {
		t.Errorf("expected 19.46, got %s", got)
	}
}

func TestMoneyMonthlyInterest(t *testing.T) {
	// 12000 at 6% annual: one month is exactly 60.00.
	interest := domain.MustMoney("12000.00").MonthlyInterest(decimal.NewFromInt(6))
	if got := interest.String(); got != "60.00" {
		t.Errorf("expected 60.00, got %s", got)
	}

	// Sub-cent interest rounds to the nearest cent.
	tiny := domain.MustMoney("1.00").MonthlyInterest(decimal.NewFromInt(6))
	if got := tiny.String(); got != "0.01" {
		t.Errorf("expected 0.01, got %s", got)
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(domain.MustMoney("202.5"))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `"202.50"` {
		t.Errorf(`expected "202.50", got %s`, b)
	}

	var fromString domain.Money
	if err := json.Unmarshal([]byte(`"202.50"`), &fromString); err != nil {
		t.Fatalf("Unmarshal string: %v", err)
	}
	var fromNumber domain.Money
	if err := json.Unmarshal([]byte(`202.5`), &fromNumber); err != nil {
		t.Fatalf("Unmarshal number: %v", err)
	}
	if !fromString.Equal(fromNumber) {
		t.Errorf("string and number forms differ: %s vs %s", fromString, fromNumber)
	}

	var bad domain.Money
	if err := json.Unmarshal([]byte(`"not-a-number"`), &bad); err == nil {
		t.Error("expected error for invalid money value")
	}
}

func TestMoneyValueScan(t *testing.T) {
	v, err := domain.MustMoney("42.10").Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v != "42.10" {
		t.Errorf("expected text value 42.10, got %v", v)
	}

	cases := []any{"42.10", []byte("42.10"), float64(42.1)}
	for _, src := range cases {
		var m domain.Money
		if err := m.Scan(src); err != nil {
			t.Fatalf("Scan(%T): %v", src, err)
		}
		if got := m.String(); got != "42.10" {
			t.Errorf("Scan(%T): expected 42.10, got %s", src, got)
		}
	}

	var m domain.Money
	if err := m.Scan(int64(42)); err != nil {
		t.Fatalf("Scan(int64): %v", err)
	}
	if got := m.String(); got != "42.00" {
		t.Errorf("Scan(int64): expected 42.00, got %s", got)
	}
	if err := m.Scan(true); err == nil {
		t.Error("expected error scanning bool into Money")
	}
}
