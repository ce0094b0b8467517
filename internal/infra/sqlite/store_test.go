package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/corebank-io/corebank-go/internal/domain"
	"github.com/corebank-io/corebank-go/internal/infra/sqlite"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testAccount(userID string) *domain.Account {
	now := time.Now().UTC()
	limit := domain.MustMoney("5000.00")
	return &domain.Account{
		ID:                   uuid.New().String(),
		AccountNumber:        domain.GenerateAccountNumber("CB"),
		UserID:               userID,
		Type:                 domain.AccountTypeSavings,
		Currency:             "USD",
		Balance:              domain.MustMoney("100.50"),
		AvailableBalance:     domain.MustMoney("100.50"),
		Status:               domain.AccountStatusActive,
		InterestRate:         decimal.NewFromInt(6),
		MinimumBalance:       domain.MustMoney("10.00"),
		DailyWithdrawalLimit: &limit,
		TransferFeePercent:   decimal.NewFromFloat(0.5),
		TransferFeeFixed:     domain.MustMoney("1.50"),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func TestAccountRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	account := testAccount("user-1")

	if err := store.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	got, err := store.GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.AccountNumber != account.AccountNumber {
		t.Errorf("account number %s, expected %s", got.AccountNumber, account.AccountNumber)
	}
	if !got.Balance.Equal(account.Balance) {
		t.Errorf("balance %s, expected %s", got.Balance, account.Balance)
	}
	if !got.InterestRate.Equal(account.InterestRate) {
		t.Errorf("interest rate %s, expected %s", got.InterestRate, account.InterestRate)
	}
	if got.DailyWithdrawalLimit == nil || !got.DailyWithdrawalLimit.Equal(*account.DailyWithdrawalLimit) {
		t.Error("daily withdrawal limit lost in roundtrip")
	}

	byNumber, err := store.GetAccountByNumber(ctx, account.AccountNumber)
	if err != nil {
		t.Fatalf("GetAccountByNumber: %v", err)
	}
	if byNumber.ID != account.ID {
		t.Errorf("lookup by number returned %s", byNumber.ID)
	}

	got.Balance = domain.MustMoney("250.00")
	got.AvailableBalance = got.Balance
	got.Status = domain.AccountStatusFrozen
	if err := store.UpdateAccount(ctx, got); err != nil {
		t.Fatalf("UpdateAccount: %v", err)
	}
	updated, err := store.GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if updated.Status != domain.AccountStatusFrozen || updated.Balance.String() != "250.00" {
		t.Errorf("update not persisted: %s %s", updated.Status, updated.Balance)
	}

	var notFound *domain.ErrNotFound
	if _, err := store.GetAccount(ctx, "missing"); !errors.As(err, &notFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if err := store.UpdateAccount(ctx, testAccount("ghost")); !errors.As(err, &notFound) {
		t.Errorf("expected not found updating missing row, got %v", err)
	}
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	account := testAccount("user-1")

	sentinel := errors.New("boom")
	err := store.WithinTx(ctx, func(ctx context.Context) error {
		if err := store.CreateAccount(ctx, account); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	var notFound *domain.ErrNotFound
	if _, err := store.GetAccount(ctx, account.ID); !errors.As(err, &notFound) {
		t.Errorf("rolled-back account still visible: %v", err)
	}
}

func TestWithinTxNestedCallsFlatten(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	account := testAccount("user-1")

	err := store.WithinTx(ctx, func(ctx context.Context) error {
		return store.WithinTx(ctx, func(ctx context.Context) error {
			return store.CreateAccount(ctx, account)
		})
	})
	if err != nil {
		t.Fatalf("nested WithinTx: %v", err)
	}
	if _, err := store.GetAccount(ctx, account.ID); err != nil {
		t.Errorf("committed account not visible: %v", err)
	}
}

func TestTransactionsAndSumDebits(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	account := testAccount("user-1")
	if err := store.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	base := time.Now().UTC().Add(-time.Hour)
	entries := []struct {
		txType domain.TransactionType
		amount string
	}{
		{domain.TransactionDeposit, "500.00"},
		{domain.TransactionWithdrawal, "120.00"},
		{domain.TransactionTransferOut, "30.50"},
	}
	for i, e := range entries {
		tx := &domain.Transaction{
			ID:           uuid.New().String(),
			AccountID:    account.ID,
			Type:         e.txType,
			Amount:       domain.MustMoney(e.amount),
			BalanceAfter: domain.MustMoney("100.00"),
			Description:  "test entry",
			Metadata:     map[string]any{"seq": float64(i)},
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
	}

	txs, err := store.ListTransactions(ctx, account.ID, 1, 20)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(txs))
	}
	// Newest first.
	if txs[0].Type != domain.TransactionTransferOut {
		t.Errorf("expected newest entry first, got %s", txs[0].Type)
	}
	if txs[0].Metadata == nil {
		t.Error("metadata lost in roundtrip")
	}

	page2, err := store.ListTransactions(ctx, account.ID, 2, 2)
	if err != nil {
		t.Fatalf("ListTransactions page 2: %v", err)
	}
	if len(page2) != 1 {
		t.Errorf("expected 1 entry on page 2, got %d", len(page2))
	}

	// Only debit types count toward the daily sum.
	total, err := store.SumDebitsSince(ctx, account.ID, base.Add(-time.Minute))
	if err != nil {
		t.Fatalf("SumDebitsSince: %v", err)
	}
	if got := total.String(); got != "150.50" {
		t.Errorf("expected debit sum 150.50, got %s", got)
	}

	none, err := store.SumDebitsSince(ctx, account.ID, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("SumDebitsSince: %v", err)
	}
	if !none.IsZero() {
		t.Errorf("expected zero sum after the window, got %s", none)
	}
}

func TestLoanRowsRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	app := &domain.LoanApplication{
		ID:                         uuid.New().String(),
		UserID:                     "user-1",
		LoanType:                   "PERSONAL",
		Amount:                     domain.MustMoney("12000.00"),
		TermMonths:                 12,
		PenaltyRatePercentPerMonth: decimal.NewFromInt(2),
		Status:                     domain.LoanApplicationPending,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}
	if err := store.CreateLoanApplication(ctx, app); err != nil {
		t.Fatalf("CreateLoanApplication: %v", err)
	}

	repayments := []domain.LoanRepayment{
		{
			ID:                uuid.New().String(),
			LoanApplicationID: app.ID,
			InstallmentNumber: 1,
			DueDate:           now.AddDate(0, 1, 0),
			PrincipalAmount:   domain.MustMoney("972.80"),
			InterestAmount:    domain.MustMoney("60.00"),
			PenaltyAmount:     domain.ZeroMoney(),
			TotalAmount:       domain.MustMoney("1032.80"),
			Status:            domain.RepaymentPending,
			CreatedAt:         now,
			UpdatedAt:         now,
		},
	}
	if err := store.CreateLoanRepayments(ctx, repayments); err != nil {
		t.Fatalf("CreateLoanRepayments: %v", err)
	}

	rows, err := store.ListLoanRepayments(ctx, app.ID)
	if err != nil {
		t.Fatalf("ListLoanRepayments: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 repayment, got %d", len(rows))
	}
	if got := rows[0].TotalAmount.String(); got != "1032.80" {
		t.Errorf("expected total 1032.80, got %s", got)
	}

	rows[0].Status = domain.RepaymentPaid
	paidAt := now
	rows[0].PaidAt = &paidAt
	if err := store.UpdateLoanRepayment(ctx, &rows[0]); err != nil {
		t.Fatalf("UpdateLoanRepayment: %v", err)
	}
	paid, err := store.GetLoanRepayment(ctx, rows[0].ID)
	if err != nil {
		t.Fatalf("GetLoanRepayment: %v", err)
	}
	if paid.Status != domain.RepaymentPaid || paid.PaidAt == nil {
		t.Errorf("paid state not persisted: %s", paid.Status)
	}
}

func TestSavingsPlanQueries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	account := testAccount("user-1")
	if err := store.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	now := time.Now().UTC()
	matured := &domain.SavingsPlan{
		ID:              uuid.New().String(),
		UserID:          "user-1",
		SourceAccountID: account.ID,
		PlanType:        domain.PlanFixedDeposit,
		Principal:       domain.MustMoney("1000.00"),
		InterestRate:    decimal.NewFromInt(6),
		TermMonths:      6,
		StartDate:       now.AddDate(0, -7, 0),
		EndDate:         now.AddDate(0, -1, 0),
		Status:          domain.PlanActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	running := &domain.SavingsPlan{
		ID:              uuid.New().String(),
		UserID:          "user-1",
		SourceAccountID: account.ID,
		PlanType:        domain.PlanRecurringDeposit,
		MonthlyAmount:   domain.MustMoney("100.00"),
		InterestRate:    decimal.NewFromInt(6),
		TermMonths:      12,
		StartDate:       now,
		EndDate:         now.AddDate(0, 12, 0),
		Status:          domain.PlanActive,
		NextDueDate:     &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, p := range []*domain.SavingsPlan{matured, running} {
		if err := store.CreateSavingsPlan(ctx, p); err != nil {
			t.Fatalf("CreateSavingsPlan: %v", err)
		}
	}

	due, err := store.ListMaturedPlans(ctx, now)
	if err != nil {
		t.Fatalf("ListMaturedPlans: %v", err)
	}
	if len(due) != 1 || due[0].ID != matured.ID {
		t.Errorf("expected only the matured plan, got %d rows", len(due))
	}

	rds, err := store.ListActivePlansByType(ctx, domain.PlanRecurringDeposit)
	if err != nil {
		t.Fatalf("ListActivePlansByType: %v", err)
	}
	if len(rds) != 1 || rds[0].ID != running.ID {
		t.Errorf("expected only the recurring plan, got %d rows", len(rds))
	}
	if rds[0].NextDueDate == nil {
		t.Error("next due date lost in roundtrip")
	}

	all, err := store.ListSavingsPlansByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListSavingsPlansByUser: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 plans, got %d", len(all))
	}
}
