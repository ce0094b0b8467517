package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/corebank-io/corebank-go/internal/domain"
	"github.com/corebank-io/corebank-go/internal/infra/cache"
	"github.com/corebank-io/corebank-go/internal/infra/memory"
	"github.com/corebank-io/corebank-go/internal/infra/observability"
	"github.com/corebank-io/corebank-go/internal/infra/resilience"
	"github.com/corebank-io/corebank-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// testStack wires every service against one in-memory store, the way main
// does it, minus the HTTP layer.
type testStack struct {
	store    *memory.Store
	metrics  *observability.Metrics
	accounts *service.AccountService
	transfer *service.TransferService
	loans    *service.LoanService
	savings  *service.SavingsService
	accrual  *service.AccrualService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	store := memory.New()
	metrics := observability.NewMetrics()
	logger := zap.NewNop()
	retry := resilience.Config{MaxRetries: 0, InitialBackoff: time.Millisecond, MaxConcurrency: 1}
	return &testStack{
		store:    store,
		metrics:  metrics,
		accounts: service.NewAccountService(store, metrics, logger),
		transfer: service.NewTransferService(store, cache.New[string](time.Minute), metrics, logger),
		loans:    service.NewLoanService(store, decimal.NewFromInt(2), metrics, logger),
		savings:  service.NewSavingsService(store, metrics, logger),
		accrual:  service.NewAccrualService(store, retry, metrics, logger),
	}
}

func (ts *testStack) mustCreateAccount(t *testing.T, req *domain.CreateAccountRequest) *domain.Account {
	t.Helper()
	account, err := ts.accounts.CreateAccount(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	return account
}

func (ts *testStack) mustDeposit(t *testing.T, accountID, amount string) {
	t.Helper()
	if _, err := ts.accounts.Deposit(context.Background(), accountID, domain.MustMoney(amount), "test funding"); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
}

func (ts *testStack) balance(t *testing.T, accountID string) string {
	t.Helper()
	account, err := ts.store.GetAccount(context.Background(), accountID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	return account.Balance.String()
}

func checkingRequest(userID string) *domain.CreateAccountRequest {
	return &domain.CreateAccountRequest{
		UserID:   userID,
		Type:     domain.AccountTypeChecking,
		Currency: "USD",
	}
}
