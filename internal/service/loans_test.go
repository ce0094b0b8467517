package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/corebank-io/corebank-go/internal/domain"

	"github.com/shopspring/decimal"
)

func applyForLoan(t *testing.T, ts *testStack, userID string) *domain.LoanApplication {
	t.Helper()
	app, err := ts.loans.Apply(context.Background(), &domain.LoanApplicationRequest{
		UserID:     userID,
		LoanType:   "PERSONAL",
		Amount:     domain.MustMoney("12000.00"),
		TermMonths: 12,
		Purpose:    "car",
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return app
}

func TestLoanApply(t *testing.T) {
	ts := newTestStack(t)
	app := applyForLoan(t, ts, "user-1")

	if app.Status != domain.LoanApplicationPending {
		t.Errorf("expected PENDING, got %s", app.Status)
	}
	if !app.InterestRate.IsZero() {
		t.Error("interest rate must stay zero until approval")
	}
	if app.AccountID != "" {
		t.Error("no loan account before approval")
	}
}

func TestLoanApplyValidation(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	cases := []*domain.LoanApplicationRequest{
		{LoanType: "PERSONAL", Amount: domain.MustMoney("1000.00"), TermMonths: 12},
		{UserID: "u", Amount: domain.MustMoney("1000.00"), TermMonths: 12},
		{UserID: "u", LoanType: "PERSONAL", TermMonths: 12},
		{UserID: "u", LoanType: "PERSONAL", Amount: domain.MustMoney("1000.00"), TermMonths: 0},
		{UserID: "u", LoanType: "PERSONAL", Amount: domain.MustMoney("1000.00"), TermMonths: 361},
	}
	for _, req := range cases {
		var verr *domain.ErrValidation
		if _, err := ts.loans.Apply(ctx, req); !errors.As(err, &verr) {
			t.Errorf("expected validation error for %+v, got %v", req, err)
		}
	}
}

func TestLoanApprove(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()
	app := applyForLoan(t, ts, "user-1")

	approved, err := ts.loans.Approve(ctx, app.ID, "officer-7", decimal.NewFromInt(6))
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != domain.LoanApplicationApproved {
		t.Errorf("expected APPROVED, got %s", approved.Status)
	}
	if approved.DecidedBy != "officer-7" || approved.DecidedAt == nil {
		t.Error("decision audit fields not set")
	}

	// Approval opens the loan account with the schedule's payment.
	account, err := ts.store.GetAccount(ctx, approved.AccountID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if account.Type != domain.AccountTypeLoan {
		t.Errorf("expected LOAN account, got %s", account.Type)
	}
	if !strings.HasPrefix(account.AccountNumber, "LN") {
		t.Errorf("expected LN-prefixed number, got %s", account.AccountNumber)
	}
	if !account.Balance.IsZero() {
		t.Error("loan account balance must stay zero; repayments track the debt")
	}
	if got := account.MonthlyPayment.String(); got != "1032.80" {
		t.Errorf("expected monthly payment 1032.80, got %s", got)
	}

	// The full repayment schedule is persisted as PENDING rows.
	rows, err := ts.store.ListLoanRepayments(ctx, app.ID)
	if err != nil {
		t.Fatalf("ListLoanRepayments: %v", err)
	}
	if len(rows) != 12 {
		t.Fatalf("expected 12 repayment rows, got %d", len(rows))
	}
	for _, row := range rows {
		if row.Status != domain.RepaymentPending {
			t.Errorf("installment %d: expected PENDING, got %s", row.InstallmentNumber, row.Status)
		}
	}

	// The disbursement memo lands on the loan account's ledger.
	txs, err := ts.store.ListTransactions(ctx, account.ID, 1, 20)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 1 || txs[0].Type != domain.TransactionLoanDisbursement {
		t.Fatalf("expected one LOAN_DISBURSEMENT memo, got %v", txs)
	}
	if got := txs[0].Amount.String(); got != "12000.00" {
		t.Errorf("expected disbursement 12000.00, got %s", got)
	}

	// Terminal applications refuse further decisions.
	var conflict *domain.ErrStateConflict
	if _, err := ts.loans.Approve(ctx, app.ID, "officer-7", decimal.NewFromInt(6)); !errors.As(err, &conflict) {
		t.Errorf("expected conflict re-approving, got %v", err)
	}
	if _, err := ts.loans.Reject(ctx, app.ID, "officer-7", "late"); !errors.As(err, &conflict) {
		t.Errorf("expected conflict rejecting an approved application, got %v", err)
	}
}

func TestLoanReject(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()
	app := applyForLoan(t, ts, "user-1")

	rejected, err := ts.loans.Reject(ctx, app.ID, "officer-7", "insufficient income")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != domain.LoanApplicationRejected {
		t.Errorf("expected REJECTED, got %s", rejected.Status)
	}
	if rejected.RejectionReason != "insufficient income" {
		t.Errorf("unexpected reason %q", rejected.RejectionReason)
	}
	if rejected.AccountID != "" {
		t.Error("rejected application must not open an account")
	}
}

func TestRepaymentScheduleMarksOverdue(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()
	app := applyForLoan(t, ts, "user-1")
	if _, err := ts.loans.Approve(ctx, app.ID, "officer-7", decimal.NewFromInt(6)); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	// Backdate the first installment ten days.
	rows, err := ts.store.ListLoanRepayments(ctx, app.ID)
	if err != nil {
		t.Fatalf("ListLoanRepayments: %v", err)
	}
	first := rows[0]
	first.DueDate = time.Now().UTC().AddDate(0, 0, -10)
	if err := ts.store.UpdateLoanRepayment(ctx, &first); err != nil {
		t.Fatalf("UpdateLoanRepayment: %v", err)
	}

	schedule, err := ts.loans.GetRepaymentSchedule(ctx, app.ID)
	if err != nil {
		t.Fatalf("GetRepaymentSchedule: %v", err)
	}
	if schedule[0].Status != domain.RepaymentOverdue {
		t.Fatalf("expected OVERDUE, got %s", schedule[0].Status)
	}
	// One 30-day window at 2%/month on 972.80 principal: 19.46 penalty.
	if got := schedule[0].PenaltyAmount.String(); got != "19.46" {
		t.Errorf("expected penalty 19.46, got %s", got)
	}
	if got := schedule[0].TotalAmount.String(); got != "1052.26" {
		t.Errorf("expected total 1052.26, got %s", got)
	}
	for _, row := range schedule[1:] {
		if row.Status != domain.RepaymentPending {
			t.Errorf("installment %d should stay PENDING, got %s", row.InstallmentNumber, row.Status)
		}
	}

	// Same day, same answer.
	again, err := ts.loans.GetRepaymentSchedule(ctx, app.ID)
	if err != nil {
		t.Fatalf("GetRepaymentSchedule: %v", err)
	}
	if !again[0].PenaltyAmount.Equal(schedule[0].PenaltyAmount) {
		t.Errorf("penalty drifted on recompute: %s vs %s", again[0].PenaltyAmount, schedule[0].PenaltyAmount)
	}
}

func TestPayRepayment(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()
	app := applyForLoan(t, ts, "user-1")
	approved, err := ts.loans.Approve(ctx, app.ID, "officer-7", decimal.NewFromInt(6))
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	payer := ts.mustCreateAccount(t, checkingRequest("user-1"))
	ts.mustDeposit(t, payer.ID, "2000.00")

	rows, err := ts.store.ListLoanRepayments(ctx, app.ID)
	if err != nil {
		t.Fatalf("ListLoanRepayments: %v", err)
	}
	first := rows[0]

	result, err := ts.loans.PayRepayment(ctx, first.ID, payer.ID, "user-1")
	if err != nil {
		t.Fatalf("PayRepayment: %v", err)
	}
	// 2000.00 minus the 1032.80 installment.
	if got := result.BalanceAfter.String(); got != "967.20" {
		t.Errorf("expected balance 967.20, got %s", got)
	}

	paid, err := ts.store.GetLoanRepayment(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetLoanRepayment: %v", err)
	}
	if paid.Status != domain.RepaymentPaid || paid.PaidAt == nil {
		t.Errorf("expected PAID with timestamp, got %s", paid.Status)
	}

	// The loan account carries the repayment memo.
	memos, err := ts.store.ListTransactions(ctx, approved.AccountID, 1, 20)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	var found bool
	for _, tx := range memos {
		if tx.Type == domain.TransactionLoanRepayment && tx.Amount.String() == "1032.80" {
			found = true
		}
	}
	if !found {
		t.Error("missing LOAN_REPAYMENT memo on the loan account")
	}

	// Paying twice conflicts.
	var conflict *domain.ErrStateConflict
	if _, err := ts.loans.PayRepayment(ctx, first.ID, payer.ID, "user-1"); !errors.As(err, &conflict) {
		t.Errorf("expected conflict paying twice, got %v", err)
	}
}

func TestPayRepaymentGuards(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()
	app := applyForLoan(t, ts, "user-1")
	approved, err := ts.loans.Approve(ctx, app.ID, "officer-7", decimal.NewFromInt(6))
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	rows, err := ts.store.ListLoanRepayments(ctx, app.ID)
	if err != nil {
		t.Fatalf("ListLoanRepayments: %v", err)
	}
	first := rows[0]

	// Another user's account cannot settle the installment.
	stranger := ts.mustCreateAccount(t, checkingRequest("user-2"))
	ts.mustDeposit(t, stranger.ID, "2000.00")
	var forbidden *domain.ErrForbidden
	if _, err := ts.loans.PayRepayment(ctx, first.ID, stranger.ID, "user-2"); !errors.As(err, &forbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}

	// The loan account itself is not a funding source.
	var verr *domain.ErrValidation
	if _, err := ts.loans.PayRepayment(ctx, first.ID, approved.AccountID, "user-1"); !errors.As(err, &verr) {
		t.Errorf("expected validation error, got %v", err)
	}
}
