package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanApplicationStatus is the application state machine:
// PENDING → APPROVED | REJECTED, both terminal.
type LoanApplicationStatus string

const (
	LoanApplicationPending  LoanApplicationStatus = "PENDING"
	LoanApplicationApproved LoanApplicationStatus = "APPROVED"
	LoanApplicationRejected LoanApplicationStatus = "REJECTED"
)

// LoanApplication is a customer's request for credit. The interest rate is
// zero until approval; customers never set their own rate.
type LoanApplication struct {
	ID                        string                `json:"id"`
	UserID                    string                `json:"user_id"`
	LoanType                  string                `json:"loan_type"`
	Amount                    Money                 `json:"amount"`
	TermMonths                int                   `json:"term_months"`
	InterestRate              decimal.Decimal       `json:"interest_rate"`
	PenaltyRatePercentPerMonth decimal.Decimal      `json:"penalty_rate_percent_per_month"`
	Purpose                   string                `json:"purpose,omitempty"`
	Status                    LoanApplicationStatus `json:"status"`
	AccountID                 string                `json:"account_id,omitempty"`
	DecidedBy                 string                `json:"decided_by,omitempty"`
	DecidedAt                 *time.Time            `json:"decided_at,omitempty"`
	RejectionReason           string                `json:"rejection_reason,omitempty"`
	CreatedAt                 time.Time             `json:"created_at"`
	UpdatedAt                 time.Time             `json:"updated_at"`
}

// IsTerminal reports whether the application can still change state.
func (l *LoanApplication) IsTerminal() bool {
	return l.Status == LoanApplicationApproved || l.Status == LoanApplicationRejected
}

// RepaymentStatus is the per-installment state: PENDING → OVERDUE → PAID,
// with PAID terminal.
type RepaymentStatus string

const (
	RepaymentPending RepaymentStatus = "PENDING"
	RepaymentOverdue RepaymentStatus = "OVERDUE"
	RepaymentPaid    RepaymentStatus = "PAID"
)

// LoanRepayment is one row per amortization installment.
type LoanRepayment struct {
	ID                string          `json:"id"`
	LoanApplicationID string          `json:"loan_application_id"`
	InstallmentNumber int             `json:"installment_number"`
	DueDate           time.Time       `json:"due_date"`
	PrincipalAmount   Money           `json:"principal_amount"`
	InterestAmount    Money           `json:"interest_amount"`
	PenaltyAmount     Money           `json:"penalty_amount"`
	TotalAmount       Money           `json:"total_amount"`
	Status            RepaymentStatus `json:"status"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Installment is one line of a computed amortization schedule, before it
// is persisted as a LoanRepayment row.
type Installment struct {
	Number    int       `json:"installment_number"`
	DueDate   time.Time `json:"due_date"`
	Principal Money     `json:"principal_amount"`
	Interest  Money     `json:"interest_amount"`
	Total     Money     `json:"total_amount"`
}
