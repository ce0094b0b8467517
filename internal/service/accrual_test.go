package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/corebank-io/corebank-go/internal/domain"

	"github.com/shopspring/decimal"
)

func TestAccrualCreditsSavingsInterest(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	account := ts.mustCreateAccount(t, &domain.CreateAccountRequest{
		UserID:       "user-1",
		Type:         domain.AccountTypeSavings,
		Currency:     "USD",
		InterestRate: decimal.NewFromInt(6),
	})
	ts.mustDeposit(t, account.ID, "12000.00")

	now := time.Now().UTC()
	report, err := ts.accrual.RunMonthlyInterestJob(ctx, now)
	if err != nil {
		t.Fatalf("RunMonthlyInterestJob: %v", err)
	}
	if report.Processed != 1 {
		t.Errorf("expected 1 processed item, got %d", report.Processed)
	}
	if report.Failed != 0 {
		t.Errorf("expected no failures, got %d", report.Failed)
	}

	// One month at 6% on 12000: 60.00 credited.
	if got := ts.balance(t, account.ID); got != "12060.00" {
		t.Errorf("expected balance 12060.00, got %s", got)
	}
	txs, err := ts.store.ListTransactions(ctx, account.ID, 1, 20)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	var credited bool
	for _, tx := range txs {
		if tx.Type == domain.TransactionInterestCredit && tx.Amount.String() == "60.00" {
			credited = true
		}
	}
	if !credited {
		t.Error("missing INTEREST_CREDIT ledger entry")
	}

	// A second run in the same month is a no-op.
	again, err := ts.accrual.RunMonthlyInterestJob(ctx, now)
	if err != nil {
		t.Fatalf("RunMonthlyInterestJob: %v", err)
	}
	if again.Processed != 0 {
		t.Errorf("expected idempotent rerun, processed %d", again.Processed)
	}
	if got := ts.balance(t, account.ID); got != "12060.00" {
		t.Errorf("balance changed on rerun: %s", got)
	}
}

func TestAccrualFixedDepositInterestAndMaturity(t *testing.T) {
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

	// First run: interest compounds inside the plan, no cash moves.
	if _, err := ts.accrual.RunMonthlyInterestJob(ctx, time.Now().UTC()); err != nil {
		t.Fatalf("RunMonthlyInterestJob: %v", err)
	}
	credited, err := ts.store.GetSavingsPlan(ctx, plan.ID)
	if err != nil {
		t.Fatalf("GetSavingsPlan: %v", err)
	}
	// One month at 6% on 3000: 15.00.
	if got := credited.InterestCreditedTotal.String(); got != "15.00" {
		t.Errorf("expected credited interest 15.00, got %s", got)
	}
	if got := ts.balance(t, source.ID); got != "2000.00" {
		t.Errorf("cash moved before maturity: %s", got)
	}

	// Past the end date the plan matures and pays out principal plus
	// credited interest.
	afterTerm := time.Now().UTC().AddDate(0, 13, 0)
	if _, err := ts.accrual.RunMonthlyInterestJob(ctx, afterTerm); err != nil {
		t.Fatalf("RunMonthlyInterestJob: %v", err)
	}
	matured, err := ts.store.GetSavingsPlan(ctx, plan.ID)
	if err != nil {
		t.Fatalf("GetSavingsPlan: %v", err)
	}
	if matured.Status != domain.PlanMatured {
		t.Errorf("expected MATURED, got %s", matured.Status)
	}
	if got := ts.balance(t, source.ID); got != "5015.00" {
		t.Errorf("expected payout balance 5015.00, got %s", got)
	}
}

func TestAccrualCollectsRecurringInstallment(t *testing.T) {
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
	firstDue := *plan.NextDueDate

	if _, err := ts.accrual.RunMonthlyInterestJob(ctx, time.Now().UTC()); err != nil {
		t.Fatalf("RunMonthlyInterestJob: %v", err)
	}

	updated, err := ts.store.GetSavingsPlan(ctx, plan.ID)
	if err != nil {
		t.Fatalf("GetSavingsPlan: %v", err)
	}
	if got := updated.TotalDeposited.String(); got != "100.00" {
		t.Errorf("expected 100.00 deposited, got %s", got)
	}
	if updated.NextDueDate == nil || !updated.NextDueDate.After(firstDue) {
		t.Error("next due date did not advance")
	}
	// Interest accrues on the collected total: 6% on 100 for one month.
	if got := updated.InterestCreditedTotal.String(); got != "0.50" {
		t.Errorf("expected credited interest 0.50, got %s", got)
	}
	if got := ts.balance(t, source.ID); got != "400.00" {
		t.Errorf("expected source balance 400.00, got %s", got)
	}
}

func TestAccrualSkipsUnderfundedInstallment(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()
	source := ts.mustCreateAccount(t, checkingRequest("user-1"))
	ts.mustDeposit(t, source.ID, "50.00")

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
	firstDue := *plan.NextDueDate

	// An underfunded source is skipped silently, not failed; the
	// installment stays due for the next run.
	report, err := ts.accrual.RunMonthlyInterestJob(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("RunMonthlyInterestJob: %v", err)
	}
	if report.Failed != 0 {
		t.Errorf("underfunded installment counted as failure: %d", report.Failed)
	}
	if report.Skipped == 0 {
		t.Error("expected the plan to be skipped")
	}

	updated, err := ts.store.GetSavingsPlan(ctx, plan.ID)
	if err != nil {
		t.Fatalf("GetSavingsPlan: %v", err)
	}
	if !updated.TotalDeposited.IsZero() {
		t.Errorf("money collected from underfunded source: %s", updated.TotalDeposited)
	}
	if !updated.NextDueDate.Equal(firstDue) {
		t.Error("due date advanced without collection")
	}
	if got := ts.balance(t, source.ID); got != "50.00" {
		t.Errorf("source balance changed: %s", got)
	}

	// After funding, the retried run collects the installment.
	ts.mustDeposit(t, source.ID, "100.00")
	if _, err := ts.accrual.RunMonthlyInterestJob(ctx, time.Now().UTC()); err != nil {
		t.Fatalf("RunMonthlyInterestJob: %v", err)
	}
	funded, err := ts.store.GetSavingsPlan(ctx, plan.ID)
	if err != nil {
		t.Fatalf("GetSavingsPlan: %v", err)
	}
	if got := funded.TotalDeposited.String(); got != "100.00" {
		t.Errorf("expected collection after funding, got %s", got)
	}
	if got := ts.balance(t, source.ID); got != "50.00" {
		t.Errorf("expected source balance 50.00, got %s", got)
	}
}

func TestAccrualSnapshotCounters(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	account := ts.mustCreateAccount(t, &domain.CreateAccountRequest{
		UserID:       "user-1",
		Type:         domain.AccountTypeSavings,
		Currency:     "USD",
		InterestRate: decimal.NewFromInt(6),
	})
	ts.mustDeposit(t, account.ID, "1000.00")

	if _, err := ts.accrual.RunMonthlyInterestJob(ctx, time.Now().UTC()); err != nil {
		t.Fatalf("RunMonthlyInterestJob: %v", err)
	}

	snap := ts.metrics.GetAccrualSnapshot()
	if snap.Runs != 1 {
		t.Errorf("expected 1 run, got %d", snap.Runs)
	}
	if snap.ItemsProcessed != 1 {
		t.Errorf("expected 1 processed item, got %d", snap.ItemsProcessed)
	}
	if snap.ItemsFailed != 0 {
		t.Errorf("expected no failed items, got %d", snap.ItemsFailed)
	}
}
