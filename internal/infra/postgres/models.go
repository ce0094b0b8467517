package postgres

import (
	"time"

	"github.com/corebank-io/corebank-go/internal/domain"

	"github.com/shopspring/decimal"
)

// Row types carry the GORM mapping so the domain entities stay free of
// persistence tags. Monetary columns are NUMERIC(18,2); rates NUMERIC(9,4).

type accountRow struct {
	ID               string `gorm:"primaryKey;size:36"`
	AccountNumber    string `gorm:"uniqueIndex;size:20;not null"`
	UserID           string `gorm:"index;size:36;not null"`
	Type             string `gorm:"size:16;not null"`
	Currency         string `gorm:"size:8;not null"`
	Balance          domain.Money `gorm:"type:numeric(18,2);not null"`
	AvailableBalance domain.Money `gorm:"type:numeric(18,2);not null"`
	Status           string `gorm:"size:16;not null"`

	InterestRate   decimal.Decimal `gorm:"type:numeric(9,4);not null;default:0"`
	MinimumBalance domain.Money    `gorm:"type:numeric(18,2);not null;default:0"`

	LoanAmount     domain.Money `gorm:"type:numeric(18,2);not null;default:0"`
	LoanTermMonths int          `gorm:"not null;default:0"`
	LoanStartDate  *time.Time
	LoanEndDate    *time.Time
	MonthlyPayment domain.Money `gorm:"type:numeric(18,2);not null;default:0"`

	DailyWithdrawalLimit *domain.Money   `gorm:"type:numeric(18,2)"`
	TransferFeePercent   decimal.Decimal `gorm:"type:numeric(9,4);not null;default:0"`
	TransferFeeFixed     domain.Money    `gorm:"type:numeric(18,2);not null;default:0"`

	LastInterestCreditedAt *time.Time
	DeletedAt              *time.Time `gorm:"index"`
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (accountRow) TableName() string { return "accounts" }

func accountToRow(a *domain.Account) *accountRow {
	return &accountRow{
		ID:                     a.ID,
		AccountNumber:          a.AccountNumber,
		UserID:                 a.UserID,
		Type:                   string(a.Type),
		Currency:               a.Currency,
		Balance:                a.Balance,
		AvailableBalance:       a.AvailableBalance,
		Status:                 string(a.Status),
		InterestRate:           a.InterestRate,
		MinimumBalance:         a.MinimumBalance,
		LoanAmount:             a.LoanAmount,
		LoanTermMonths:         a.LoanTermMonths,
		LoanStartDate:          a.LoanStartDate,
		LoanEndDate:            a.LoanEndDate,
		MonthlyPayment:         a.MonthlyPayment,
		DailyWithdrawalLimit:   a.DailyWithdrawalLimit,
		TransferFeePercent:     a.TransferFeePercent,
		TransferFeeFixed:       a.TransferFeeFixed,
		LastInterestCreditedAt: a.LastInterestCreditedAt,
		DeletedAt:              a.DeletedAt,
		CreatedAt:              a.CreatedAt,
		UpdatedAt:              a.UpdatedAt,
	}
}

func (r *accountRow) toDomain() *domain.Account {
	return &domain.Account{
		ID:                     r.ID,
		AccountNumber:          r.AccountNumber,
		UserID:                 r.UserID,
		Type:                   domain.AccountType(r.Type),
		Currency:               r.Currency,
		Balance:                r.Balance,
		AvailableBalance:       r.AvailableBalance,
		Status:                 domain.AccountStatus(r.Status),
		InterestRate:           r.InterestRate,
		MinimumBalance:         r.MinimumBalance,
		LoanAmount:             r.LoanAmount,
		LoanTermMonths:         r.LoanTermMonths,
		LoanStartDate:          r.LoanStartDate,
		LoanEndDate:            r.LoanEndDate,
		MonthlyPayment:         r.MonthlyPayment,
		DailyWithdrawalLimit:   r.DailyWithdrawalLimit,
		TransferFeePercent:     r.TransferFeePercent,
		TransferFeeFixed:       r.TransferFeeFixed,
		LastInterestCreditedAt: r.LastInterestCreditedAt,
		DeletedAt:              r.DeletedAt,
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
	}
}

type transactionRow struct {
	ID                   string       `gorm:"primaryKey;size:36"`
	AccountID            string       `gorm:"index:idx_tx_account,priority:1;size:36;not null"`
	Type                 string       `gorm:"size:24;not null"`
	Amount               domain.Money `gorm:"type:numeric(18,2);not null"`
	BalanceAfter         domain.Money `gorm:"type:numeric(18,2);not null"`
	Description          string       `gorm:"size:255"`
	ReferenceNumber      string       `gorm:"index;size:64"`
	RelatedAccountID     string       `gorm:"size:36"`
	RelatedTransactionID string       `gorm:"size:36"`
	Metadata             []byte       `gorm:"type:jsonb"`
	CreatedAt            time.Time    `gorm:"index:idx_tx_account,priority:2"`
}

func (transactionRow) TableName() string { return "transactions" }

type loanApplicationRow struct {
	ID              string          `gorm:"primaryKey;size:36"`
	UserID          string          `gorm:"index;size:36;not null"`
	LoanType        string          `gorm:"size:32;not null"`
	Amount          domain.Money    `gorm:"type:numeric(18,2);not null"`
	TermMonths      int             `gorm:"not null"`
	InterestRate    decimal.Decimal `gorm:"type:numeric(9,4);not null;default:0"`
	PenaltyRate     decimal.Decimal `gorm:"type:numeric(9,4);not null;default:0"`
	Purpose         string          `gorm:"size:255"`
	Status          string          `gorm:"size:16;not null"`
	AccountID       string          `gorm:"size:36"`
	DecidedBy       string          `gorm:"size:36"`
	DecidedAt       *time.Time
	RejectionReason string `gorm:"size:255"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (loanApplicationRow) TableName() string { return "loan_applications" }

func applicationToRow(app *domain.LoanApplication) *loanApplicationRow {
	return &loanApplicationRow{
		ID:              app.ID,
		UserID:          app.UserID,
		LoanType:        app.LoanType,
		Amount:          app.Amount,
		TermMonths:      app.TermMonths,
		InterestRate:    app.InterestRate,
		PenaltyRate:     app.PenaltyRatePercentPerMonth,
		Purpose:         app.Purpose,
		Status:          string(app.Status),
		AccountID:       app.AccountID,
		DecidedBy:       app.DecidedBy,
		DecidedAt:       app.DecidedAt,
		RejectionReason: app.RejectionReason,
		CreatedAt:       app.CreatedAt,
		UpdatedAt:       app.UpdatedAt,
	}
}

func (r *loanApplicationRow) toDomain() *domain.LoanApplication {
	return &domain.LoanApplication{
		ID:                         r.ID,
		UserID:                     r.UserID,
		LoanType:                   r.LoanType,
		Amount:                     r.Amount,
		TermMonths:                 r.TermMonths,
		InterestRate:               r.InterestRate,
		PenaltyRatePercentPerMonth: r.PenaltyRate,
		Purpose:                    r.Purpose,
		Status:                     domain.LoanApplicationStatus(r.Status),
		AccountID:                  r.AccountID,
		DecidedBy:                  r.DecidedBy,
		DecidedAt:                  r.DecidedAt,
		RejectionReason:            r.RejectionReason,
		CreatedAt:                  r.CreatedAt,
		UpdatedAt:                  r.UpdatedAt,
	}
}

type loanRepaymentRow struct {
	ID                string       `gorm:"primaryKey;size:36"`
	LoanApplicationID string       `gorm:"uniqueIndex:idx_repayment_installment,priority:1;size:36;not null"`
	InstallmentNumber int          `gorm:"uniqueIndex:idx_repayment_installment,priority:2;not null"`
	DueDate           time.Time    `gorm:"not null"`
	PrincipalAmount   domain.Money `gorm:"type:numeric(18,2);not null"`
	InterestAmount    domain.Money `gorm:"type:numeric(18,2);not null"`
	PenaltyAmount     domain.Money `gorm:"type:numeric(18,2);not null;default:0"`
	TotalAmount       domain.Money `gorm:"type:numeric(18,2);not null"`
	Status            string       `gorm:"size:16;not null"`
	PaidAt            *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (loanRepaymentRow) TableName() string { return "loan_repayments" }

func repaymentToRow(r *domain.LoanRepayment) *loanRepaymentRow {
	return &loanRepaymentRow{
		ID:                r.ID,
		LoanApplicationID: r.LoanApplicationID,
		InstallmentNumber: r.InstallmentNumber,
		DueDate:           r.DueDate,
		PrincipalAmount:   r.PrincipalAmount,
		InterestAmount:    r.InterestAmount,
		PenaltyAmount:     r.PenaltyAmount,
		TotalAmount:       r.TotalAmount,
		Status:            string(r.Status),
		PaidAt:            r.PaidAt,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func (r *loanRepaymentRow) toDomain() *domain.LoanRepayment {
	return &domain.LoanRepayment{
		ID:                r.ID,
		LoanApplicationID: r.LoanApplicationID,
		InstallmentNumber: r.InstallmentNumber,
		DueDate:           r.DueDate,
		PrincipalAmount:   r.PrincipalAmount,
		InterestAmount:    r.InterestAmount,
		PenaltyAmount:     r.PenaltyAmount,
		TotalAmount:       r.TotalAmount,
		Status:            domain.RepaymentStatus(r.Status),
		PaidAt:            r.PaidAt,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

type savingsPlanRow struct {
	ID              string          `gorm:"primaryKey;size:36"`
	UserID          string          `gorm:"index;size:36;not null"`
	SourceAccountID string          `gorm:"size:36;not null"`
	PlanType        string          `gorm:"size:24;not null"`
	Principal       domain.Money    `gorm:"type:numeric(18,2);not null;default:0"`
	MonthlyAmount   domain.Money    `gorm:"type:numeric(18,2);not null;default:0"`
	InterestRate    decimal.Decimal `gorm:"type:numeric(9,4);not null;default:0"`
	TermMonths      int             `gorm:"not null"`
	StartDate       time.Time       `gorm:"not null"`
	EndDate         time.Time       `gorm:"index;not null"`
	Status          string          `gorm:"index;size:16;not null"`

	InterestCreditedTotal  domain.Money `gorm:"type:numeric(18,2);not null;default:0"`
	TotalDeposited         domain.Money `gorm:"type:numeric(18,2);not null;default:0"`
	NextDueDate            *time.Time
	LastInterestCreditedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (savingsPlanRow) TableName() string { return "savings_plans" }

func planToRow(p *domain.SavingsPlan) *savingsPlanRow {
	return &savingsPlanRow{
		ID:                     p.ID,
		UserID:                 p.UserID,
		SourceAccountID:        p.SourceAccountID,
		PlanType:               string(p.PlanType),
		Principal:              p.Principal,
		MonthlyAmount:          p.MonthlyAmount,
		InterestRate:           p.InterestRate,
		TermMonths:             p.TermMonths,
		StartDate:              p.StartDate,
		EndDate:                p.EndDate,
		Status:                 string(p.Status),
		InterestCreditedTotal:  p.InterestCreditedTotal,
		TotalDeposited:         p.TotalDeposited,
		NextDueDate:            p.NextDueDate,
		LastInterestCreditedAt: p.LastInterestCreditedAt,
		CreatedAt:              p.CreatedAt,
		UpdatedAt:              p.UpdatedAt,
	}
}

func (r *savingsPlanRow) toDomain() *domain.SavingsPlan {
	return &domain.SavingsPlan{
		ID:                     r.ID,
		UserID:                 r.UserID,
		SourceAccountID:        r.SourceAccountID,
		PlanType:               domain.SavingsPlanType(r.PlanType),
		Principal:              r.Principal,
		MonthlyAmount:          r.MonthlyAmount,
		InterestRate:           r.InterestRate,
		TermMonths:             r.TermMonths,
		StartDate:              r.StartDate,
		EndDate:                r.EndDate,
		Status:                 domain.SavingsPlanStatus(r.Status),
		InterestCreditedTotal:  r.InterestCreditedTotal,
		TotalDeposited:         r.TotalDeposited,
		NextDueDate:            r.NextDueDate,
		LastInterestCreditedAt: r.LastInterestCreditedAt,
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
	}
}
