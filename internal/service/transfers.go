package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/corebank-io/corebank-go/internal/domain"
	"github.com/corebank-io/corebank-go/internal/infra/observability"
	"github.com/corebank-io/corebank-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// TransferService moves money between two accounts atomically. The fee is
// charged on the source side; the destination receives exactly the
// transfer amount.
type TransferService struct {
	store   port.Store
	metrics *observability.Metrics
	logger  *zap.Logger

	// numberCache maps account numbers to account IDs. Resolution only:
	// balances and statuses are always re-read inside the unit of work.
	numberCache port.Cache[string]
}

func NewTransferService(store port.Store, numberCache port.Cache[string], metrics *observability.Metrics, logger *zap.Logger) *TransferService {
	return &TransferService{store: store, numberCache: numberCache, metrics: metrics, logger: logger}
}

// Transfer debits amount+fee from the source account, credits amount to
// the destination, and records the paired TRANSFER_OUT / TRANSFER_IN
// ledger entries under one reference number. Everything happens in a
// single unit of work.
func (s *TransferService) Transfer(ctx context.Context, req *domain.TransferRequest) (*domain.TransferResult, error) {
	ctx, span := tracer.Start(ctx, "TransferService.Transfer")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", req.FromAccountID),
		attribute.Float64("amount", req.Amount.Float64()),
	)

	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("transfer", time.Since(start)) }()

	if req.FromAccountID == "" {
		return nil, &domain.ErrValidation{Field: "from_account_id", Message: "required"}
	}
	if !req.Amount.IsPositive() {
		s.metrics.IncrRejection("validation")
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}
	toNumber := domain.NormalizeAccountNumber(req.ToAccountNumber)
	if err := domain.ValidateAccountNumber(toNumber); err != nil {
		s.metrics.IncrRejection("validation")
		return nil, err
	}

	toAccountID, err := s.resolveAccountID(ctx, toNumber)
	if err != nil {
		return nil, err
	}

	var result *domain.TransferResult
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		source, err := s.store.GetAccount(ctx, req.FromAccountID)
		if err != nil {
			return err
		}
		dest, err := s.store.GetAccount(ctx, toAccountID)
		if err != nil {
			var notFound *domain.ErrNotFound
			if errors.As(err, &notFound) {
				// Stale cache entry: the account went away after resolution.
				s.numberCache.Delete(toNumber)
				return &domain.ErrNotFound{Resource: "account", ID: toNumber}
			}
			return err
		}
		if source.ID == dest.ID {
			return &domain.ErrValidation{Field: "to_account_number", Message: "cannot transfer to the same account"}
		}
		if source.Currency != dest.Currency {
			return &domain.ErrValidation{Field: "currency", Message: "source and destination currencies differ"}
		}

		fee := req.Amount.MulPercent(source.TransferFeePercent).Add(source.TransferFeeFixed)
		totalDebit := req.Amount.Add(fee)

		if err := enforceDailyLimit(ctx, s.store, source, totalDebit, time.Now()); err != nil {
			return err
		}
		if err := source.Withdraw(totalDebit); err != nil {
			return err
		}
		if err := dest.Deposit(req.Amount); err != nil {
			return err
		}
		if err := s.store.UpdateAccount(ctx, source); err != nil {
			return err
		}
		if err := s.store.UpdateAccount(ctx, dest); err != nil {
			return err
		}

		ref := newTransferReference()
		out := newLedgerEntry(source, domain.TransactionTransferOut, totalDebit, req.Description)
		in := newLedgerEntry(dest, domain.TransactionTransferIn, req.Amount, req.Description)
		out.ReferenceNumber = ref
		out.RelatedAccountID = dest.ID
		out.RelatedTransactionID = in.ID
		out.Metadata = map[string]any{
			"transfer_amount": req.Amount.String(),
			"fee":             fee.String(),
		}
		in.ReferenceNumber = ref + "-IN"
		in.RelatedAccountID = source.ID
		in.RelatedTransactionID = out.ID

		if err := s.store.CreateTransaction(ctx, out); err != nil {
			return err
		}
		if err := s.store.CreateTransaction(ctx, in); err != nil {
			return err
		}

		result = &domain.TransferResult{
			FromAccountID:   source.ID,
			ToAccountID:     dest.ID,
			ReferenceNumber: ref,
			Fee:             fee,
		}
		return nil
	})
	if err != nil {
		recordRejection(s.metrics, err)
		s.logger.Warn("transfer rejected",
			zap.String("from_account_id", req.FromAccountID),
			zap.String("to_account_number", toNumber),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.IncrTransaction(string(domain.TransactionTransferOut))
	s.metrics.IncrTransaction(string(domain.TransactionTransferIn))
	s.logger.Info("transfer completed",
		zap.String("from_account_id", result.FromAccountID),
		zap.String("to_account_id", result.ToAccountID),
		zap.String("reference_number", result.ReferenceNumber),
		zap.String("amount", req.Amount.String()),
		zap.String("fee", result.Fee.String()),
	)
	return result, nil
}

// resolveAccountID maps an account number to its ID, through the TTL
// cache when possible.
func (s *TransferService) resolveAccountID(ctx context.Context, number string) (string, error) {
	if id, ok := s.numberCache.Get(number); ok {
		return id, nil
	}
	account, err := s.store.GetAccountByNumber(ctx, number)
	if err != nil {
		return "", err
	}
	s.numberCache.Set(number, account.ID)
	return account.ID, nil
}

// newTransferReference builds the shared reference number that links the
// two legs of a transfer, e.g. "TRF-9F2C41D08A7B".
func newTransferReference() string {
	hex := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "TRF-" + hex[:12]
}
