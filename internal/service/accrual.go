package service

import (
	"context"
	"errors"
	"time"

	"github.com/corebank-io/corebank-go/internal/domain"
	"github.com/corebank-io/corebank-go/internal/infra/observability"
	"github.com/corebank-io/corebank-go/internal/infra/resilience"
	"github.com/corebank-io/corebank-go/internal/port"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Accrual phases, in execution order. Each label is also the metric label.
const (
	phaseMaturity        = "maturity"
	phaseSavingsInterest = "savings_interest"
	phaseFDInterest      = "fd_interest"
	phaseRDInstallment   = "rd_installment"
)

// AccrualReport summarizes one accrual run.
type AccrualReport struct {
	RanAt     time.Time `json:"ran_at"`
	Processed int       `json:"processed"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
}

// AccrualService runs the monthly interest and maturity batch job. Each
// item is its own unit of work: one bad account or plan is logged and
// skipped, never blocking the rest. A circuit breaker watches storage
// failures and aborts the whole run when the store looks down.
type AccrualService struct {
	store   port.Store
	metrics *observability.Metrics
	logger  *zap.Logger
	breaker *gobreaker.CircuitBreaker
	retry   resilience.Config
}

func NewAccrualService(store port.Store, retry resilience.Config, metrics *observability.Metrics, logger *zap.Logger) *AccrualService {
	return &AccrualService{
		store:   store,
		metrics: metrics,
		logger:  logger,
		breaker: resilience.NewCircuitBreaker("accrual-store"),
		retry:   retry,
	}
}

// RunMonthlyInterestJob executes the four accrual phases as of now:
//
//  1. mature savings plans and pay them out,
//  2. credit monthly interest on savings accounts,
//  3. credit monthly interest inside fixed-deposit plans,
//  4. collect recurring-deposit installments and credit their interest.
//
// Interest phases are month-gated on the last-credited timestamp, so
// running the job twice in one month is a no-op.
func (s *AccrualService) RunMonthlyInterestJob(ctx context.Context, now time.Time) (*AccrualReport, error) {
	ctx, span := tracer.Start(ctx, "AccrualService.RunMonthlyInterestJob")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("accrual_run", time.Since(start)) }()

	now = now.UTC()
	report := &AccrualReport{RanAt: now}

	phases := []func(context.Context, time.Time, *AccrualReport) error{
		s.runMaturityPhase,
		s.runSavingsInterestPhase,
		s.runFDInterestPhase,
		s.runRDInstallmentPhase,
	}
	for _, phase := range phases {
		if err := phase(ctx, now, report); err != nil {
			s.metrics.IncrAccrualRun("aborted")
			s.logger.Error("accrual run aborted", zap.Error(err))
			return report, err
		}
	}

	s.metrics.IncrAccrualRun("completed")
	s.logger.Info("accrual run completed",
		zap.Time("as_of", now),
		zap.Int("processed", report.Processed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// runItem executes one accrual item inside its own unit of work, behind
// the circuit breaker. Storage failures feed the breaker; business
// rejections do not. Item failures are absorbed into the report, an open
// breaker aborts the run.
func (s *AccrualService) runItem(ctx context.Context, phase, itemID string, report *AccrualReport, fn func(ctx context.Context) (bool, error)) error {
	var (
		processed   bool
		businessErr error
	)
	_, err := s.breaker.Execute(func() (any, error) {
		txErr := s.store.WithinTx(ctx, func(ctx context.Context) error {
			var err error
			processed, err = fn(ctx)
			return err
		})
		if txErr != nil && !isStorageErr(txErr) {
			businessErr = txErr
			return nil, nil
		}
		return nil, txErr
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrCircuitOpen{Name: "accrual-store"}
	}
	if err == nil {
		err = businessErr
	}
	if err != nil {
		report.Failed++
		s.metrics.IncrAccrualItem(phase, "failed")
		if isStorageErr(err) {
			s.metrics.IncrStorageError(phase)
		}
		s.logger.Error("accrual item failed",
			zap.String("phase", phase),
			zap.String("item_id", itemID),
			zap.Error(err),
		)
		return nil
	}
	if processed {
		report.Processed++
		s.metrics.IncrAccrualItem(phase, "processed")
	} else {
		report.Skipped++
		s.metrics.IncrAccrualItem(phase, "skipped")
	}
	return nil
}

// runMaturityPhase pays out plans whose term has ended and marks them
// MATURED.
func (s *AccrualService) runMaturityPhase(ctx context.Context, now time.Time, report *AccrualReport) error {
	var plans []domain.SavingsPlan
	err := resilience.RetryWithBackoff(ctx, s.retry, func() error {
		var err error
		plans, err = s.store.ListMaturedPlans(ctx, now)
		return err
	})
	if err != nil {
		return err
	}

	for i := range plans {
		id := plans[i].ID
		err := s.runItem(ctx, phaseMaturity, id, report, func(ctx context.Context) (bool, error) {
			plan, err := s.store.GetSavingsPlan(ctx, id)
			if err != nil {
				return false, err
			}
			if plan.Status != domain.PlanActive || !plan.IsMature(now) {
				return false, nil
			}
			payout := plan.CurrentValue()
			if payout.IsPositive() {
				source, err := s.store.GetAccount(ctx, plan.SourceAccountID)
				if err != nil {
					return false, err
				}
				if err := source.Deposit(payout); err != nil {
					return false, err
				}
				if err := s.store.UpdateAccount(ctx, source); err != nil {
					return false, err
				}
				entry := newLedgerEntry(source, domain.TransactionDeposit, payout, "Savings plan matured")
				entry.Metadata = map[string]any{"savings_plan_id": plan.ID}
				if err := s.store.CreateTransaction(ctx, entry); err != nil {
					return false, err
				}
			}
			plan.Status = domain.PlanMatured
			return true, s.store.UpdateSavingsPlan(ctx, plan)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// runSavingsInterestPhase credits one month of interest to savings
// accounts that have not yet been credited this month.
func (s *AccrualService) runSavingsInterestPhase(ctx context.Context, now time.Time, report *AccrualReport) error {
	monthStart := startOfMonthUTC(now)

	var accounts []domain.Account
	err := resilience.RetryWithBackoff(ctx, s.retry, func() error {
		var err error
		accounts, err = s.store.ListAccrualCandidateAccounts(ctx, monthStart)
		return err
	})
	if err != nil {
		return err
	}

	for i := range accounts {
		id := accounts[i].ID
		err := s.runItem(ctx, phaseSavingsInterest, id, report, func(ctx context.Context) (bool, error) {
			account, err := s.store.GetAccount(ctx, id)
			if err != nil {
				return false, err
			}
			if account.Type != domain.AccountTypeSavings || account.Status != domain.AccountStatusActive {
				return false, nil
			}
			if account.LastInterestCreditedAt != nil && !account.LastInterestCreditedAt.Before(monthStart) {
				return false, nil
			}
			interest := account.Balance.MonthlyInterest(account.InterestRate)
			if !interest.IsPositive() {
				return false, nil
			}
			if err := account.Deposit(interest); err != nil {
				return false, err
			}
			account.LastInterestCreditedAt = &now
			if err := s.store.UpdateAccount(ctx, account); err != nil {
				return false, err
			}
			entry := newLedgerEntry(account, domain.TransactionInterestCredit, interest, "Monthly interest")
			if err := s.store.CreateTransaction(ctx, entry); err != nil {
				return false, err
			}
			s.metrics.IncrTransaction(string(domain.TransactionInterestCredit))
			return true, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// runFDInterestPhase compounds monthly interest inside active fixed
// deposits. The interest stays in the plan until maturity.
func (s *AccrualService) runFDInterestPhase(ctx context.Context, now time.Time, report *AccrualReport) error {
	monthStart := startOfMonthUTC(now)

	var plans []domain.SavingsPlan
	err := resilience.RetryWithBackoff(ctx, s.retry, func() error {
		var err error
		plans, err = s.store.ListActivePlansByType(ctx, domain.PlanFixedDeposit)
		return err
	})
	if err != nil {
		return err
	}

	for i := range plans {
		id := plans[i].ID
		err := s.runItem(ctx, phaseFDInterest, id, report, func(ctx context.Context) (bool, error) {
			plan, err := s.store.GetSavingsPlan(ctx, id)
			if err != nil {
				return false, err
			}
			if plan.Status != domain.PlanActive || plan.IsMature(now) {
				return false, nil
			}
			if plan.LastInterestCreditedAt != nil && !plan.LastInterestCreditedAt.Before(monthStart) {
				return false, nil
			}
			interest := plan.Principal.MonthlyInterest(plan.InterestRate)
			if !interest.IsPositive() {
				return false, nil
			}
			plan.InterestCreditedTotal = plan.InterestCreditedTotal.Add(interest)
			plan.LastInterestCreditedAt = &now
			return true, s.store.UpdateSavingsPlan(ctx, plan)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// runRDInstallmentPhase collects one due installment per recurring
// deposit (skipping silently when the source cannot fund it) and credits
// monthly interest on the deposited total.
func (s *AccrualService) runRDInstallmentPhase(ctx context.Context, now time.Time, report *AccrualReport) error {
	monthStart := startOfMonthUTC(now)

	var plans []domain.SavingsPlan
	err := resilience.RetryWithBackoff(ctx, s.retry, func() error {
		var err error
		plans, err = s.store.ListActivePlansByType(ctx, domain.PlanRecurringDeposit)
		return err
	})
	if err != nil {
		return err
	}

	for i := range plans {
		id := plans[i].ID
		err := s.runItem(ctx, phaseRDInstallment, id, report, func(ctx context.Context) (bool, error) {
			plan, err := s.store.GetSavingsPlan(ctx, id)
			if err != nil {
				return false, err
			}
			if plan.Status != domain.PlanActive {
				return false, nil
			}

			collected, err := s.collectInstallment(ctx, plan, now)
			if err != nil {
				return false, err
			}

			credited := false
			if !plan.IsMature(now) &&
				(plan.LastInterestCreditedAt == nil || plan.LastInterestCreditedAt.Before(monthStart)) {
				interest := plan.TotalDeposited.MonthlyInterest(plan.InterestRate)
				if interest.IsPositive() {
					plan.InterestCreditedTotal = plan.InterestCreditedTotal.Add(interest)
					plan.LastInterestCreditedAt = &now
					credited = true
				}
			}

			if !collected && !credited {
				return false, nil
			}
			return true, s.store.UpdateSavingsPlan(ctx, plan)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// collectInstallment withdraws one due installment from the plan's source
// account. An underfunded or non-debitable source is skipped silently;
// the due date stays put and the installment is retried next run.
func (s *AccrualService) collectInstallment(ctx context.Context, plan *domain.SavingsPlan, now time.Time) (bool, error) {
	if plan.NextDueDate == nil || plan.NextDueDate.After(now) || !plan.NextDueDate.Before(plan.EndDate) {
		return false, nil
	}
	source, err := s.store.GetAccount(ctx, plan.SourceAccountID)
	if err != nil {
		return false, err
	}
	if err := source.Withdraw(plan.MonthlyAmount); err != nil {
		if isStorageErr(err) {
			return false, err
		}
		s.logger.Info("recurring deposit installment skipped",
			zap.String("plan_id", plan.ID),
			zap.String("source_account_id", plan.SourceAccountID),
			zap.Error(err),
		)
		return false, nil
	}
	if err := s.store.UpdateAccount(ctx, source); err != nil {
		return false, err
	}
	entry := newLedgerEntry(source, domain.TransactionWithdrawal, plan.MonthlyAmount, "Recurring deposit installment")
	entry.Metadata = map[string]any{"savings_plan_id": plan.ID}
	if err := s.store.CreateTransaction(ctx, entry); err != nil {
		return false, err
	}
	s.metrics.IncrTransaction(string(domain.TransactionWithdrawal))

	plan.TotalDeposited = plan.TotalDeposited.Add(plan.MonthlyAmount)
	next := plan.NextDueDate.AddDate(0, 1, 0)
	plan.NextDueDate = &next
	return true, nil
}

func isStorageErr(err error) bool {
	var se *domain.ErrStorage
	return errors.As(err, &se)
}
