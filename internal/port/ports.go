// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete persistence implementations (SQLite, Postgres or the
// in-memory store).
package port

import (
	"context"
	"time"

	"github.com/corebank-io/corebank-go/internal/domain"
)

// UnitOfWork provides the atomic boundary for money-mutating operations.
// WithinTx runs fn inside one storage transaction: every store call made
// with the ctx passed to fn sees and mutates the transaction's view, and
// all of it commits together or not at all. Reads inside fn are fresh
// reads, never a snapshot taken before the transaction began. Nested
// WithinTx calls are flattened into the caller's transaction.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// LedgerStore persists accounts and their append-only transaction history.
// Transactions have no update or delete operations: the ledger is the
// immutable audit trail of every balance change.
type LedgerStore interface {
	CreateAccount(ctx context.Context, account *domain.Account) error
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error)
	ListAccountsByUser(ctx context.Context, userID string) ([]domain.Account, error)
	UpdateAccount(ctx context.Context, account *domain.Account) error

	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	ListTransactions(ctx context.Context, accountID string, page, pageSize int) ([]domain.Transaction, error)
	// SumDebitsSince totals WITHDRAWAL and TRANSFER_OUT amounts recorded
	// for the account at or after the given instant (daily-limit window).
	SumDebitsSince(ctx context.Context, accountID string, since time.Time) (domain.Money, error)

	// ListAccrualCandidateAccounts returns ACTIVE savings accounts with a
	// positive interest rate not yet credited in the month starting at
	// monthStart.
	ListAccrualCandidateAccounts(ctx context.Context, monthStart time.Time) ([]domain.Account, error)
}

// LoanStore persists loan applications and their repayment schedules.
type LoanStore interface {
	CreateLoanApplication(ctx context.Context, app *domain.LoanApplication) error
	GetLoanApplication(ctx context.Context, id string) (*domain.LoanApplication, error)
	ListLoanApplicationsByUser(ctx context.Context, userID string) ([]domain.LoanApplication, error)
	UpdateLoanApplication(ctx context.Context, app *domain.LoanApplication) error

	CreateLoanRepayments(ctx context.Context, repayments []domain.LoanRepayment) error
	GetLoanRepayment(ctx context.Context, id string) (*domain.LoanRepayment, error)
	ListLoanRepayments(ctx context.Context, applicationID string) ([]domain.LoanRepayment, error)
	UpdateLoanRepayment(ctx context.Context, repayment *domain.LoanRepayment) error
}

// SavingsStore persists fixed- and recurring-deposit plans.
type SavingsStore interface {
	CreateSavingsPlan(ctx context.Context, plan *domain.SavingsPlan) error
	GetSavingsPlan(ctx context.Context, id string) (*domain.SavingsPlan, error)
	ListSavingsPlansByUser(ctx context.Context, userID string) ([]domain.SavingsPlan, error)
	UpdateSavingsPlan(ctx context.Context, plan *domain.SavingsPlan) error

	ListMaturedPlans(ctx context.Context, asOf time.Time) ([]domain.SavingsPlan, error)
	ListActivePlansByType(ctx context.Context, planType domain.SavingsPlanType) ([]domain.SavingsPlan, error)
}

// Store is the full persistence surface the services are wired against.
type Store interface {
	UnitOfWork
	LedgerStore
	LoanStore
	SavingsStore

	Ping(ctx context.Context) error
	Close() error
}

// Cache provides generic caching with TTL. Only non-authoritative data
// (account-number → id resolution) may be cached; balances always come
// from the store.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
