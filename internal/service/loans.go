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

const maxLoanTermMonths = 360

// overdueWindow is the 30-day block used to count how many penalty
// periods an unpaid installment has accumulated.
const overdueWindow = 30 * 24 * time.Hour

// LoanService drives the loan lifecycle: application, approval with
// account creation and schedule generation, rejection, and repayment.
type LoanService struct {
	store   port.Store
	metrics *observability.Metrics
	logger  *zap.Logger

	// penaltyRate is the percent-per-month late charge applied to the
	// principal of overdue installments.
	penaltyRate decimal.Decimal
}

func NewLoanService(store port.Store, penaltyRate decimal.Decimal, metrics *observability.Metrics, logger *zap.Logger) *LoanService {
	return &LoanService{store: store, penaltyRate: penaltyRate, metrics: metrics, logger: logger}
}

// Apply files a new loan application in PENDING state. The interest rate
// stays zero until an approver sets it.
func (s *LoanService) Apply(ctx context.Context, req *domain.LoanApplicationRequest) (*domain.LoanApplication, error) {
	ctx, span := tracer.Start(ctx, "LoanService.Apply")
	defer span.End()

	if req.UserID == "" {
		return nil, &domain.ErrValidation{Field: "user_id", Message: "required"}
	}
	if req.LoanType == "" {
		return nil, &domain.ErrValidation{Field: "loan_type", Message: "required"}
	}
	if !req.Amount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}
	if req.TermMonths < 1 || req.TermMonths > maxLoanTermMonths {
		return nil, &domain.ErrValidation{Field: "term_months", Message: fmt.Sprintf("must be between 1 and %d", maxLoanTermMonths)}
	}

	now := time.Now().UTC()
	app := &domain.LoanApplication{
		ID:                         uuid.New().String(),
		UserID:                     req.UserID,
		LoanType:                   req.LoanType,
		Amount:                     req.Amount,
		TermMonths:                 req.TermMonths,
		PenaltyRatePercentPerMonth: s.penaltyRate,
		Purpose:                    req.Purpose,
		Status:                     domain.LoanApplicationPending,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}
	if err := s.store.CreateLoanApplication(ctx, app); err != nil {
		s.logger.Error("failed to create loan application", zap.String("user_id", req.UserID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("loan application filed",
		zap.String("application_id", app.ID),
		zap.String("user_id", app.UserID),
		zap.String("amount", app.Amount.String()),
		zap.Int("term_months", app.TermMonths),
	)
	return app, nil
}

func (s *LoanService) GetApplication(ctx context.Context, id string) (*domain.LoanApplication, error) {
	ctx, span := tracer.Start(ctx, "LoanService.GetApplication")
	defer span.End()

	return s.store.GetLoanApplication(ctx, id)
}

func (s *LoanService) ListApplications(ctx context.Context, userID string) ([]domain.LoanApplication, error) {
	ctx, span := tracer.Start(ctx, "LoanService.ListApplications")
	defer span.End()

	if userID == "" {
		return nil, &domain.ErrValidation{Field: "user_id", Message: "required"}
	}
	return s.store.ListLoanApplicationsByUser(ctx, userID)
}

// Approve moves a PENDING application to APPROVED: it opens the loan
// account, generates and persists the amortization schedule, and records
// the disbursement memo. One unit of work covers all of it, so a loan is
// never approved without its schedule.
func (s *LoanService) Approve(ctx context.Context, applicationID, decidedBy string, interestRate decimal.Decimal) (*domain.LoanApplication, error) {
	ctx, span := tracer.Start(ctx, "LoanService.Approve")
	defer span.End()
	span.SetAttributes(attribute.String("application.id", applicationID))

	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("approve_loan", time.Since(start)) }()

	if decidedBy == "" {
		return nil, &domain.ErrValidation{Field: "decided_by", Message: "required"}
	}
	if err := validateRatePercent("interest_rate", interestRate); err != nil {
		return nil, err
	}

	var app *domain.LoanApplication
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		app, err = s.store.GetLoanApplication(ctx, applicationID)
		if err != nil {
			return err
		}
		if app.IsTerminal() {
			return &domain.ErrStateConflict{Resource: "loan application", State: string(app.Status), Action: "approve"}
		}

		now := time.Now().UTC()
		firstDue := firstOfNextMonthUTC(now)
		schedule, err := BuildAmortizationSchedule(app.Amount, interestRate, app.TermMonths, firstDue)
		if err != nil {
			return err
		}

		number, err := generateUniqueAccountNumber(ctx, s.store, loanAccountNumberPrefix)
		if err != nil {
			return err
		}
		endDate := now.AddDate(0, app.TermMonths, 0)
		account := &domain.Account{
			ID:               uuid.New().String(),
			AccountNumber:    number,
			UserID:           app.UserID,
			Type:             domain.AccountTypeLoan,
			Currency:         "USD",
			Balance:          domain.ZeroMoney(),
			AvailableBalance: domain.ZeroMoney(),
			Status:           domain.AccountStatusActive,
			InterestRate:     interestRate,
			LoanAmount:       app.Amount,
			LoanTermMonths:   app.TermMonths,
			LoanStartDate:    &now,
			LoanEndDate:      &endDate,
			MonthlyPayment:   schedule[0].Total,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.store.CreateAccount(ctx, account); err != nil {
			return err
		}

		repayments := make([]domain.LoanRepayment, 0, len(schedule))
		for _, inst := range schedule {
			repayments = append(repayments, domain.LoanRepayment{
				ID:                uuid.New().String(),
				LoanApplicationID: app.ID,
				InstallmentNumber: inst.Number,
				DueDate:           inst.DueDate,
				PrincipalAmount:   inst.Principal,
				InterestAmount:    inst.Interest,
				PenaltyAmount:     domain.ZeroMoney(),
				TotalAmount:       inst.Total,
				Status:            domain.RepaymentPending,
				CreatedAt:         now,
				UpdatedAt:         now,
			})
		}
		if err := s.store.CreateLoanRepayments(ctx, repayments); err != nil {
			return err
		}

		// Disbursement memo on the loan account. The ledger records that
		// the principal was paid out; the loan account balance itself
		// stays zero, repayments track what is owed.
		memo := newLedgerEntry(account, domain.TransactionLoanDisbursement, app.Amount, "Loan disbursement")
		if err := s.store.CreateTransaction(ctx, memo); err != nil {
			return err
		}

		app.Status = domain.LoanApplicationApproved
		app.InterestRate = interestRate
		app.AccountID = account.ID
		app.DecidedBy = decidedBy
		app.DecidedAt = &now
		return s.store.UpdateLoanApplication(ctx, app)
	})
	if err != nil {
		recordRejection(s.metrics, err)
		return nil, err
	}

	s.metrics.IncrTransaction(string(domain.TransactionLoanDisbursement))
	s.logger.Info("loan approved",
		zap.String("application_id", app.ID),
		zap.String("account_id", app.AccountID),
		zap.String("interest_rate", interestRate.String()),
		zap.String("decided_by", decidedBy),
	)
	return app, nil
}

// Reject moves a PENDING application to REJECTED.
func (s *LoanService) Reject(ctx context.Context, applicationID, decidedBy, reason string) (*domain.LoanApplication, error) {
	ctx, span := tracer.Start(ctx, "LoanService.Reject")
	defer span.End()

	if decidedBy == "" {
		return nil, &domain.ErrValidation{Field: "decided_by", Message: "required"}
	}

	var app *domain.LoanApplication
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		app, err = s.store.GetLoanApplication(ctx, applicationID)
		if err != nil {
			return err
		}
		if app.IsTerminal() {
			return &domain.ErrStateConflict{Resource: "loan application", State: string(app.Status), Action: "reject"}
		}
		now := time.Now().UTC()
		app.Status = domain.LoanApplicationRejected
		app.DecidedBy = decidedBy
		app.DecidedAt = &now
		app.RejectionReason = reason
		return s.store.UpdateLoanApplication(ctx, app)
	})
	if err != nil {
		recordRejection(s.metrics, err)
		return nil, err
	}

	s.logger.Info("loan rejected",
		zap.String("application_id", app.ID),
		zap.String("decided_by", decidedBy),
	)
	return app, nil
}

// GetRepaymentSchedule returns the installment rows with penalties
// brought up to date: any unpaid installment past its due date is marked
// OVERDUE and its penalty recomputed from how many 30-day windows have
// elapsed. The recompute is idempotent for a given day.
func (s *LoanService) GetRepaymentSchedule(ctx context.Context, applicationID string) ([]domain.LoanRepayment, error) {
	ctx, span := tracer.Start(ctx, "LoanService.GetRepaymentSchedule")
	defer span.End()

	var rows []domain.LoanRepayment
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		app, err := s.store.GetLoanApplication(ctx, applicationID)
		if err != nil {
			return err
		}
		rows, err = s.store.ListLoanRepayments(ctx, applicationID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for i := range rows {
			if refreshOverdue(&rows[i], app, now) {
				if err := s.store.UpdateLoanRepayment(ctx, &rows[i]); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// refreshOverdue recomputes the penalty on an unpaid, past-due
// installment. Returns whether the row changed.
func refreshOverdue(rep *domain.LoanRepayment, app *domain.LoanApplication, now time.Time) bool {
	if rep.Status == domain.RepaymentPaid || !rep.DueDate.Before(now) {
		return false
	}
	months := overdueMonths(rep.DueDate, now)
	penalty := rep.PrincipalAmount.MulPercent(app.PenaltyRatePercentPerMonth.Mul(decimal.NewFromInt(int64(months))))
	if rep.Status == domain.RepaymentOverdue && rep.PenaltyAmount.Equal(penalty) {
		return false
	}
	rep.Status = domain.RepaymentOverdue
	rep.PenaltyAmount = penalty
	rep.TotalAmount = rep.PrincipalAmount.Add(rep.InterestAmount).Add(penalty)
	return true
}

// overdueMonths counts elapsed 30-day windows since due, minimum one.
func overdueMonths(due, now time.Time) int {
	elapsed := now.Sub(due)
	months := int(elapsed / overdueWindow)
	if elapsed%overdueWindow != 0 || months == 0 {
		months++
	}
	return months
}

// PayRepayment settles one installment from a customer account. The payer
// must be the loan holder; the debit and the LOAN_REPAYMENT memo on the
// loan account land in the same unit of work as the PAID mark.
func (s *LoanService) PayRepayment(ctx context.Context, repaymentID, fromAccountID, userID string) (*domain.MutationResult, error) {
	ctx, span := tracer.Start(ctx, "LoanService.PayRepayment")
	defer span.End()
	span.SetAttributes(attribute.String("repayment.id", repaymentID))

	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("pay_repayment", time.Since(start)) }()

	var result *domain.MutationResult
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		rep, err := s.store.GetLoanRepayment(ctx, repaymentID)
		if err != nil {
			return err
		}
		if rep.Status == domain.RepaymentPaid {
			return &domain.ErrStateConflict{Resource: "loan repayment", State: string(rep.Status), Action: "pay"}
		}
		app, err := s.store.GetLoanApplication(ctx, rep.LoanApplicationID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		// Bring the penalty up to date so the payer settles the real amount.
		refreshOverdue(rep, app, now)

		payer, err := s.store.GetAccount(ctx, fromAccountID)
		if err != nil {
			return err
		}
		if payer.UserID != userID || app.UserID != userID {
			return &domain.ErrForbidden{Action: "pay a repayment from another user's account"}
		}
		if payer.ID == app.AccountID {
			return &domain.ErrValidation{Field: "from_account_id", Message: "cannot pay from the loan account itself"}
		}

		if err := enforceDailyLimit(ctx, s.store, payer, rep.TotalAmount, now); err != nil {
			return err
		}
		if err := payer.Withdraw(rep.TotalAmount); err != nil {
			return err
		}
		if err := s.store.UpdateAccount(ctx, payer); err != nil {
			return err
		}

		desc := fmt.Sprintf("Loan repayment #%d", rep.InstallmentNumber)
		debit := newLedgerEntry(payer, domain.TransactionWithdrawal, rep.TotalAmount, desc)
		debit.RelatedAccountID = app.AccountID
		if err := s.store.CreateTransaction(ctx, debit); err != nil {
			return err
		}

		loanAccount, err := s.store.GetAccount(ctx, app.AccountID)
		if err != nil {
			return err
		}
		memo := newLedgerEntry(loanAccount, domain.TransactionLoanRepayment, rep.TotalAmount, desc)
		memo.RelatedAccountID = payer.ID
		memo.RelatedTransactionID = debit.ID
		if err := s.store.CreateTransaction(ctx, memo); err != nil {
			return err
		}

		rep.Status = domain.RepaymentPaid
		rep.PaidAt = &now
		if err := s.store.UpdateLoanRepayment(ctx, rep); err != nil {
			return err
		}

		result = &domain.MutationResult{
			AccountID:     payer.ID,
			TransactionID: debit.ID,
			BalanceAfter:  payer.Balance,
		}
		return nil
	})
	if err != nil {
		recordRejection(s.metrics, err)
		return nil, err
	}

	s.metrics.IncrTransaction(string(domain.TransactionLoanRepayment))
	s.logger.Info("loan repayment paid",
		zap.String("repayment_id", repaymentID),
		zap.String("from_account_id", fromAccountID),
	)
	return result, nil
}
