package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/corebank-io/corebank-go/internal/domain"

	"github.com/shopspring/decimal"
)

func TestOpenFixedDeposit(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()
	source := ts.mustCreateAccount(t, checkingRequest("user-1"))
	ts.mustDeposit(t, source.ID, "5000.00")

	plan, err := ts.savings.OpenFixedDeposit(ctx, &domain.OpenFixedDepositRequest{
		UserID:          "user-1",
		SourceAccountID: source.ID,
		Principal:       domain.MustMoney("3000.00"),
		InterestRate:    decimal.NewFromInt(6),
		TermMonths:      12,
	})
	if err != nil {
		t.Fatalf("OpenFixedDeposit: %v", err)
	}
	if plan.Status != domain.PlanActive || plan.PlanType != domain.PlanFixedDeposit {
		t.Errorf("unexpected plan state %s/%s", plan.Status, plan.PlanType)
	}
	if got := plan.EndDate.Sub(plan.StartDate).Hours() / 24; got < 360 || got > 370 {
		t.Errorf("term should span about a year, got %.0f days", got)
	}

	// The principal leaves the source account immediately.
	if got := ts.balance(t, source.ID); got != "2000.00" {
		t.Errorf("expected source balance 2000.00, got %s", got)
	}
	txs, err := ts.store.ListTransactions(ctx, source.ID, 1, 20)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	var tagged bool
	for _, tx := range txs {
		if tx.Type == domain.TransactionWithdrawal && tx.Metadata["savings_plan_id"] == plan.ID {
			tagged = true
		}
	}
	if !tagged {
		t.Error("missing plan-tagged withdrawal entry")
	}
}

func TestOpenFixedDepositGuards(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()
	source := ts.mustCreateAccount(t, checkingRequest("user-1"))
	ts.mustDeposit(t, source.ID, "100.00")

	var forbidden *domain.ErrForbidden
	_, err := ts.savings.OpenFixedDeposit(ctx, &domain.OpenFixedDepositRequest{
		UserID:          "user-2",
		SourceAccountID: source.ID,
		Principal:       domain.MustMoney("50.00"),
		InterestRate:    decimal.NewFromInt(6),
		TermMonths:      12,
	})
	if !errors.As(err, &forbidden) {
		t.Errorf("expected forbidden for foreign account, got %v", err)
	}

	var insufficient *domain.ErrInsufficientFunds
	_, err = ts.savings.OpenFixedDeposit(ctx, &domain.OpenFixedDepositRequest{
		UserID:          "user-1",
		SourceAccountID: source.ID,
		Principal:       domain.MustMoney("500.00"),
		InterestRate:    decimal.NewFromInt(6),
		TermMonths:      12,
	})
	if !errors.As(err, &insufficient) {
		t.Errorf("expected insufficient funds, got %v", err)
	}
	if got := ts.balance(t, source.ID); got != "100.00" {
		t.Errorf("source mutated on rejection: %s", got)
	}
}

func TestOpenRecurringDeposit(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()
	source := ts.mustCreateAccount(t, checkingRequest("user-1"))
	ts.mustDeposit(t, source.ID, "500.00")

	plan, err := ts.savings.OpenRecurringDeposit(ctx, &domain.OpenRecurringDepositRequest{
		UserID:          "user-1",
		SourceAccountID: source.ID,
		MonthlyAmount:   domain.MustMoney("100.00"),
		InterestRate:    decimal.NewFromInt(6),
		TermMonths:      12,
	})
	if err != nil {
		t.Fatalf("OpenRecurringDeposit: %v", err)
	}
	if plan.PlanType != domain.PlanRecurringDeposit {
		t.Errorf("expected RECURRING_DEPOSIT, got %s", plan.PlanType)
	}
	if plan.NextDueDate == nil {
		t.Fatal("first installment must be scheduled")
	}
	if !plan.TotalDeposited.IsZero() {
		t.Error("no deposits collected yet")
	}
	// No money moves at open time; the accrual job collects installments.
	if got := ts.balance(t, source.ID); got != "500.00" {
		t.Errorf("expected untouched balance 500.00, got %s", got)
	}
}

func TestClosePlanEarly(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()
	source := ts.mustCreateAccount(t, checkingRequest("user-1"))
	ts.mustDeposit(t, source.ID, "5000.00")

	plan, err := ts.savings.OpenFixedDeposit(ctx, &domain.OpenFixedDepositRequest{
		UserID:          "user-1",
		SourceAccountID: source.ID,
		Principal:       domain.MustMoney("3000.00"),
		InterestRate:    decimal.NewFromInt(6),
		TermMonths:      12,
	})
	if err != nil {
		t.Fatalf("OpenFixedDeposit: %v", err)
	}

	var forbidden *domain.ErrForbidden
	if _, err := ts.savings.ClosePlan(ctx, plan.ID, "user-2"); !errors.As(err, &forbidden) {
		t.Fatalf("expected forbidden for foreign close, got %v", err)
	}

	closed, err := ts.savings.ClosePlan(ctx, plan.ID, "user-1")
	if err != nil {
		t.Fatalf("ClosePlan: %v", err)
	}
	if closed.Status != domain.PlanClosed {
		t.Errorf("expected CLOSED, got %s", closed.Status)
	}
	// No interest credited yet, so the principal alone flows back.
	if got := ts.balance(t, source.ID); got != "5000.00" {
		t.Errorf("expected restored balance 5000.00, got %s", got)
	}

	var conflict *domain.ErrStateConflict
	if _, err := ts.savings.ClosePlan(ctx, plan.ID, "user-1"); !errors.As(err, &conflict) {
		t.Errorf("expected conflict closing twice, got %v", err)
	}
}

func TestListPlans(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()
	source := ts.mustCreateAccount(t, checkingRequest("user-1"))
	ts.mustDeposit(t, source.ID, "5000.00")

	for i := 0; i < 2; i++ {
		_, err := ts.savings.OpenFixedDeposit(ctx, &domain.OpenFixedDepositRequest{
			UserID:          "user-1",
			SourceAccountID: source.ID,
			Principal:       domain.MustMoney("1000.00"),
			InterestRate:    decimal.NewFromInt(5),
			TermMonths:      6,
		})
		if err != nil {
			t.Fatalf("OpenFixedDeposit: %v", err)
		}
	}

	plans, err := ts.savings.ListPlans(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListPlans: %v", err)
	}
	if len(plans) != 2 {
		t.Errorf("expected 2 plans, got %d", len(plans))
	}

	var verr *domain.ErrValidation
	if _, err := ts.savings.ListPlans(ctx, ""); !errors.As(err, &verr) {
		t.Errorf("expected validation error for empty user, got %v", err)
	}
}
