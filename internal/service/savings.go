package service

import (
	"context"
	"fmt"
	"time"

	"github.com/corebank-io/corebank-go/internal/domain"
	"github.com/corebank-io/corebank-go/internal/infra/observability"
	"github.com/corebank-io/corebank-go/internal/port"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SavingsService manages fixed- and recurring-deposit plans. Opening a
// fixed deposit moves the principal out of the source account; recurring
// deposits are funded installment by installment by the accrual job.
type SavingsService struct {
	store   port.Store
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewSavingsService(store port.Store, metrics *observability.Metrics, logger *zap.Logger) *SavingsService {
	return &SavingsService{store: store, metrics: metrics, logger: logger}
}

// OpenFixedDeposit locks a lump sum from the source account into a new
// plan. The debit, its ledger entry and the plan row commit together.
func (s *SavingsService) OpenFixedDeposit(ctx context.Context, req *domain.OpenFixedDepositRequest) (*domain.SavingsPlan, error) {
	ctx, span := tracer.Start(ctx, "SavingsService.OpenFixedDeposit")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", req.SourceAccountID))

	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("open_fixed_deposit", time.Since(start)) }()

	if !req.Principal.IsPositive() {
		return nil, &domain.ErrValidation{Field: "principal", Message: "must be positive"}
	}
	if err := s.validatePlanRequest(req.UserID, req.SourceAccountID, req.InterestRate, req.TermMonths); err != nil {
		return nil, err
	}

	var plan *domain.SavingsPlan
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		source, err := s.store.GetAccount(ctx, req.SourceAccountID)
		if err != nil {
			return err
		}
		if source.UserID != req.UserID {
			return &domain.ErrForbidden{Action: "open a plan from another user's account"}
		}
		if err := enforceDailyLimit(ctx, s.store, source, req.Principal, time.Now()); err != nil {
			return err
		}
		if err := source.Withdraw(req.Principal); err != nil {
			return err
		}
		if err := s.store.UpdateAccount(ctx, source); err != nil {
			return err
		}

		now := time.Now().UTC()
		plan = &domain.SavingsPlan{
			ID:              uuid.New().String(),
			UserID:          req.UserID,
			SourceAccountID: source.ID,
			PlanType:        domain.PlanFixedDeposit,
			Principal:       req.Principal,
			InterestRate:    req.InterestRate,
			TermMonths:      req.TermMonths,
			StartDate:       now,
			EndDate:         now.AddDate(0, req.TermMonths, 0),
			Status:          domain.PlanActive,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.store.CreateSavingsPlan(ctx, plan); err != nil {
			return err
		}

		entry := newLedgerEntry(source, domain.TransactionWithdrawal,
			req.Principal, fmt.Sprintf("Fixed deposit opened (%d months)", req.TermMonths))
		entry.Metadata = map[string]any{"savings_plan_id": plan.ID}
		return s.store.CreateTransaction(ctx, entry)
	})
	if err != nil {
		recordRejection(s.metrics, err)
		return nil, err
	}

	s.metrics.IncrTransaction(string(domain.TransactionWithdrawal))
	s.logger.Info("fixed deposit opened",
		zap.String("plan_id", plan.ID),
		zap.String("principal", plan.Principal.String()),
		zap.Int("term_months", plan.TermMonths),
	)
	return plan, nil
}

// OpenRecurringDeposit starts a monthly plan. No money moves at open
// time: the first installment is due immediately and is collected by the
// next accrual run.
func (s *SavingsService) OpenRecurringDeposit(ctx context.Context, req *domain.OpenRecurringDepositRequest) (*domain.SavingsPlan, error) {
	ctx, span := tracer.Start(ctx, "SavingsService.OpenRecurringDeposit")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", req.SourceAccountID))

	if !req.MonthlyAmount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "monthly_amount", Message: "must be positive"}
	}
	if err := s.validatePlanRequest(req.UserID, req.SourceAccountID, req.InterestRate, req.TermMonths); err != nil {
		return nil, err
	}

	var plan *domain.SavingsPlan
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		source, err := s.store.GetAccount(ctx, req.SourceAccountID)
		if err != nil {
			return err
		}
		if source.UserID != req.UserID {
			return &domain.ErrForbidden{Action: "open a plan from another user's account"}
		}

		now := time.Now().UTC()
		firstDue := now
		plan = &domain.SavingsPlan{
			ID:              uuid.New().String(),
			UserID:          req.UserID,
			SourceAccountID: source.ID,
			PlanType:        domain.PlanRecurringDeposit,
			MonthlyAmount:   req.MonthlyAmount,
			InterestRate:    req.InterestRate,
			TermMonths:      req.TermMonths,
			StartDate:       now,
			EndDate:         now.AddDate(0, req.TermMonths, 0),
			Status:          domain.PlanActive,
			NextDueDate:     &firstDue,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return s.store.CreateSavingsPlan(ctx, plan)
	})
	if err != nil {
		recordRejection(s.metrics, err)
		return nil, err
	}

	s.logger.Info("recurring deposit opened",
		zap.String("plan_id", plan.ID),
		zap.String("monthly_amount", plan.MonthlyAmount.String()),
		zap.Int("term_months", plan.TermMonths),
	)
	return plan, nil
}

func (s *SavingsService) GetPlan(ctx context.Context, id string) (*domain.SavingsPlan, error) {
	ctx, span := tracer.Start(ctx, "SavingsService.GetPlan")
	defer span.End()

	return s.store.GetSavingsPlan(ctx, id)
}

func (s *SavingsService) ListPlans(ctx context.Context, userID string) ([]domain.SavingsPlan, error) {
	ctx, span := tracer.Start(ctx, "SavingsService.ListPlans")
	defer span.End()

	if userID == "" {
		return nil, &domain.ErrValidation{Field: "user_id", Message: "required"}
	}
	return s.store.ListSavingsPlansByUser(ctx, userID)
}

// ClosePlan ends an ACTIVE plan early and pays its current value back to
// the source account. Interest already credited is kept; no future
// interest accrues.
func (s *SavingsService) ClosePlan(ctx context.Context, planID, userID string) (*domain.SavingsPlan, error) {
	ctx, span := tracer.Start(ctx, "SavingsService.ClosePlan")
	defer span.End()
	span.SetAttributes(attribute.String("plan.id", planID))

	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("close_plan", time.Since(start)) }()

	var plan *domain.SavingsPlan
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		plan, err = s.store.GetSavingsPlan(ctx, planID)
		if err != nil {
			return err
		}
		if plan.UserID != userID {
			return &domain.ErrForbidden{Action: "close another user's plan"}
		}
		if plan.Status != domain.PlanActive {
			return &domain.ErrStateConflict{Resource: "savings plan", State: string(plan.Status), Action: "close"}
		}

		payout := plan.CurrentValue()
		if payout.IsPositive() {
			source, err := s.store.GetAccount(ctx, plan.SourceAccountID)
			if err != nil {
				return err
			}
			if err := source.Deposit(payout); err != nil {
				return err
			}
			if err := s.store.UpdateAccount(ctx, source); err != nil {
				return err
			}
			entry := newLedgerEntry(source, domain.TransactionDeposit, payout, "Savings plan closed early")
			entry.Metadata = map[string]any{"savings_plan_id": plan.ID}
			if err := s.store.CreateTransaction(ctx, entry); err != nil {
				return err
			}
		}

		plan.Status = domain.PlanClosed
		return s.store.UpdateSavingsPlan(ctx, plan)
	})
	if err != nil {
		recordRejection(s.metrics, err)
		return nil, err
	}

	s.metrics.IncrTransaction(string(domain.TransactionDeposit))
	s.logger.Info("savings plan closed",
		zap.String("plan_id", planID),
		zap.String("payout", plan.CurrentValue().String()),
	)
	return plan, nil
}

func (s *SavingsService) validatePlanRequest(userID, sourceAccountID string, rate decimal.Decimal, termMonths int) error {
	if userID == "" {
		return &domain.ErrValidation{Field: "user_id", Message: "required"}
	}
	if sourceAccountID == "" {
		return &domain.ErrValidation{Field: "source_account_id", Message: "required"}
	}
	if err := validateRatePercent("interest_rate", rate); err != nil {
		return err
	}
	if termMonths < 1 {
		return &domain.ErrValidation{Field: "term_months", Message: "must be at least 1"}
	}
	return nil
}
