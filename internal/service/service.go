// Package service implements the banking use cases on top of the domain
// entities and the persistence ports. Every balance-mutating operation
// re-reads its entities and writes its ledger entries inside one unit of
// work, so a partially applied mutation can never be observed.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/corebank-io/corebank-go/internal/domain"
	"github.com/corebank-io/corebank-go/internal/infra/observability"
	"github.com/corebank-io/corebank-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("corebank/service")

const (
	accountNumberPrefix     = "CB"
	loanAccountNumberPrefix = "LN"

	maxAccountNumberAttempts = 5
)

// startOfDayUTC truncates t to midnight UTC. The daily withdrawal window
// resets at this boundary.
func startOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// startOfMonthUTC truncates t to the first of its month, midnight UTC.
func startOfMonthUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// firstOfNextMonthUTC is the month boundary after t: the due date of a
// loan's first installment and the scheduler's next run.
func firstOfNextMonthUTC(t time.Time) time.Time {
	return startOfMonthUTC(t).AddDate(0, 1, 0)
}

// newLedgerEntry builds the immutable transaction row for a mutation that
// already happened on account; BalanceAfter captures the post-mutation
// balance.
func newLedgerEntry(account *domain.Account, txType domain.TransactionType, amount domain.Money, description string) *domain.Transaction {
	return &domain.Transaction{
		ID:           uuid.New().String(),
		AccountID:    account.ID,
		Type:         txType,
		Amount:       amount,
		BalanceAfter: account.Balance,
		Description:  description,
		CreatedAt:    time.Now().UTC(),
	}
}

// generateUniqueAccountNumber draws random numbers until one is free.
// Collisions are vanishingly rare with ten random digits, so a handful of
// attempts is plenty.
func generateUniqueAccountNumber(ctx context.Context, store port.LedgerStore, prefix string) (string, error) {
	for i := 0; i < maxAccountNumberAttempts; i++ {
		number := domain.GenerateAccountNumber(prefix)
		_, err := store.GetAccountByNumber(ctx, number)
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return number, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", &domain.ErrStorage{Op: "generate account number", Err: errors.New("no free account number after retries")}
}

// enforceDailyLimit rejects a debit that would push the account's debits
// since midnight UTC past its daily withdrawal limit. Must run inside the
// same unit of work as the debit so the sum and the write see one view.
func enforceDailyLimit(ctx context.Context, store port.LedgerStore, account *domain.Account, debit domain.Money, now time.Time) error {
	if account.DailyWithdrawalLimit == nil {
		return nil
	}
	usedToday, err := store.SumDebitsSince(ctx, account.ID, startOfDayUTC(now))
	if err != nil {
		return err
	}
	if usedToday.Add(debit).GreaterThan(*account.DailyWithdrawalLimit) {
		return &domain.ErrLimitExceeded{
			LimitType: "daily_withdrawal",
			Limit:     *account.DailyWithdrawalLimit,
			Attempted: usedToday.Add(debit),
		}
	}
	return nil
}

// rejectionReason maps a business error to the rejection metric label, or
// "" for errors that are not business rejections.
func rejectionReason(err error) string {
	switch {
	case errors.As(err, new(*domain.ErrInsufficientFunds)):
		return "insufficient_funds"
	case errors.As(err, new(*domain.ErrLimitExceeded)):
		return "limit_exceeded"
	case errors.As(err, new(*domain.ErrStateConflict)):
		return "state_conflict"
	case errors.As(err, new(*domain.ErrValidation)):
		return "validation"
	case errors.As(err, new(*domain.ErrForbidden)):
		return "forbidden"
	}
	return ""
}

func recordRejection(m *observability.Metrics, err error) {
	if reason := rejectionReason(err); reason != "" {
		m.IncrRejection(reason)
	}
}
