package service

import (
	"context"
	"strings"
	"time"

	"github.com/corebank-io/corebank-go/internal/domain"
	"github.com/corebank-io/corebank-go/internal/infra/observability"
	"github.com/corebank-io/corebank-go/internal/port"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// AccountService owns the account lifecycle and single-account balance
// mutations (deposit, withdraw, freeze, unfreeze, close).
type AccountService struct {
	store   port.Store
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewAccountService(store port.Store, metrics *observability.Metrics, logger *zap.Logger) *AccountService {
	return &AccountService{store: store, metrics: metrics, logger: logger}
}

func (s *AccountService) CreateAccount(ctx context.Context, req *domain.CreateAccountRequest) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "AccountService.CreateAccount")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("create_account", time.Since(start)) }()

	if req.UserID == "" {
		return nil, &domain.ErrValidation{Field: "user_id", Message: "required"}
	}
	switch req.Type {
	case domain.AccountTypeChecking, domain.AccountTypeSavings, domain.AccountTypeLoan:
	default:
		return nil, &domain.ErrValidation{Field: "type", Message: "must be CHECKING, SAVINGS or LOAN"}
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if len(currency) != 3 {
		return nil, &domain.ErrValidation{Field: "currency", Message: "must be a 3-letter code"}
	}
	if err := validateRatePercent("interest_rate", req.InterestRate); err != nil {
		return nil, err
	}
	if err := validateRatePercent("transfer_fee_percent", req.TransferFeePercent); err != nil {
		return nil, err
	}
	if req.MinimumBalance.IsNegative() {
		return nil, &domain.ErrValidation{Field: "minimum_balance", Message: "must not be negative"}
	}
	if req.TransferFeeFixed.IsNegative() {
		return nil, &domain.ErrValidation{Field: "transfer_fee_fixed", Message: "must not be negative"}
	}
	if req.DailyWithdrawalLimit != nil && !req.DailyWithdrawalLimit.IsPositive() {
		return nil, &domain.ErrValidation{Field: "daily_withdrawal_limit", Message: "must be positive when set"}
	}
	if req.Type == domain.AccountTypeLoan {
		if !req.LoanAmount.IsPositive() {
			return nil, &domain.ErrValidation{Field: "loan_amount", Message: "must be positive for loan accounts"}
		}
		if req.LoanTermMonths < 1 {
			return nil, &domain.ErrValidation{Field: "loan_term_months", Message: "must be at least 1"}
		}
	}

	prefix := accountNumberPrefix
	if req.Type == domain.AccountTypeLoan {
		prefix = loanAccountNumberPrefix
	}

	var account *domain.Account
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		number, err := generateUniqueAccountNumber(ctx, s.store, prefix)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		account = &domain.Account{
			ID:                   uuid.New().String(),
			AccountNumber:        number,
			UserID:               req.UserID,
			Type:                 req.Type,
			Currency:             currency,
			Balance:              domain.ZeroMoney(),
			AvailableBalance:     domain.ZeroMoney(),
			Status:               domain.AccountStatusActive,
			InterestRate:         req.InterestRate,
			MinimumBalance:       req.MinimumBalance,
			LoanAmount:           req.LoanAmount,
			LoanTermMonths:       req.LoanTermMonths,
			DailyWithdrawalLimit: req.DailyWithdrawalLimit,
			TransferFeePercent:   req.TransferFeePercent,
			TransferFeeFixed:     req.TransferFeeFixed,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		return s.store.CreateAccount(ctx, account)
	})
	if err != nil {
		s.logger.Error("failed to create account", zap.String("user_id", req.UserID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("account created",
		zap.String("account_id", account.ID),
		zap.String("account_number", account.AccountNumber),
		zap.String("type", string(account.Type)),
	)
	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "AccountService.GetAccount")
	defer span.End()

	return s.store.GetAccount(ctx, id)
}

func (s *AccountService) GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "AccountService.GetAccountByNumber")
	defer span.End()

	number = domain.NormalizeAccountNumber(number)
	if err := domain.ValidateAccountNumber(number); err != nil {
		return nil, err
	}
	return s.store.GetAccountByNumber(ctx, number)
}

func (s *AccountService) ListAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "AccountService.ListAccounts")
	defer span.End()

	if userID == "" {
		return nil, &domain.ErrValidation{Field: "user_id", Message: "required"}
	}
	return s.store.ListAccountsByUser(ctx, userID)
}

func (s *AccountService) ListTransactions(ctx context.Context, accountID string, page, pageSize int) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "AccountService.ListTransactions")
	defer span.End()

	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.store.ListTransactions(ctx, accountID, page, pageSize)
}

// Deposit credits amount to the account and records a DEPOSIT entry, both
// inside one unit of work.
func (s *AccountService) Deposit(ctx context.Context, accountID string, amount domain.Money, description string) (*domain.MutationResult, error) {
	ctx, span := tracer.Start(ctx, "AccountService.Deposit")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID), attribute.Float64("amount", amount.Float64()))

	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("deposit", time.Since(start)) }()

	var result *domain.MutationResult
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		account, err := s.store.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if err := account.Deposit(amount); err != nil {
			return err
		}
		if err := s.store.UpdateAccount(ctx, account); err != nil {
			return err
		}
		entry := newLedgerEntry(account, domain.TransactionDeposit, amount, description)
		if err := s.store.CreateTransaction(ctx, entry); err != nil {
			return err
		}
		result = &domain.MutationResult{
			AccountID:     account.ID,
			TransactionID: entry.ID,
			BalanceAfter:  account.Balance,
		}
		return nil
	})
	if err != nil {
		recordRejection(s.metrics, err)
		return nil, err
	}

	s.metrics.IncrTransaction(string(domain.TransactionDeposit))
	s.logger.Info("deposit completed",
		zap.String("account_id", accountID),
		zap.String("amount", amount.String()),
	)
	return result, nil
}

// Withdraw debits amount from the account, enforcing the daily withdrawal
// limit over the debits already recorded since midnight UTC.
func (s *AccountService) Withdraw(ctx context.Context, accountID string, amount domain.Money, description string) (*domain.MutationResult, error) {
	ctx, span := tracer.Start(ctx, "AccountService.Withdraw")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID), attribute.Float64("amount", amount.Float64()))

	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("withdraw", time.Since(start)) }()

	var result *domain.MutationResult
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		account, err := s.store.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if err := enforceDailyLimit(ctx, s.store, account, amount, time.Now()); err != nil {
			return err
		}
		if err := account.Withdraw(amount); err != nil {
			return err
		}
		if err := s.store.UpdateAccount(ctx, account); err != nil {
			return err
		}
		entry := newLedgerEntry(account, domain.TransactionWithdrawal, amount, description)
		if err := s.store.CreateTransaction(ctx, entry); err != nil {
			return err
		}
		result = &domain.MutationResult{
			AccountID:     account.ID,
			TransactionID: entry.ID,
			BalanceAfter:  account.Balance,
		}
		return nil
	})
	if err != nil {
		recordRejection(s.metrics, err)
		return nil, err
	}

	s.metrics.IncrTransaction(string(domain.TransactionWithdrawal))
	s.logger.Info("withdrawal completed",
		zap.String("account_id", accountID),
		zap.String("amount", amount.String()),
	)
	return result, nil
}

func (s *AccountService) Freeze(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.transition(ctx, "AccountService.Freeze", accountID, (*domain.Account).Freeze)
}

func (s *AccountService) Unfreeze(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.transition(ctx, "AccountService.Unfreeze", accountID, (*domain.Account).Unfreeze)
}

func (s *AccountService) Close(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.transition(ctx, "AccountService.Close", accountID, (*domain.Account).Close)
}

// transition applies a status change under the unit of work so the check
// and the write see the same row.
func (s *AccountService) transition(ctx context.Context, spanName, accountID string, change func(*domain.Account) error) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()

	var account *domain.Account
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		account, err = s.store.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if err := change(account); err != nil {
			return err
		}
		return s.store.UpdateAccount(ctx, account)
	})
	if err != nil {
		recordRejection(s.metrics, err)
		return nil, err
	}

	s.logger.Info("account status changed",
		zap.String("account_id", accountID),
		zap.String("status", string(account.Status)),
	)
	return account, nil
}

func validateRatePercent(field string, rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return &domain.ErrValidation{Field: field, Message: "must be between 0 and 100"}
	}
	return nil
}
