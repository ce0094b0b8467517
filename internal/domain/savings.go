package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SavingsPlanType distinguishes lump-sum fixed deposits from monthly
// recurring deposits.
type SavingsPlanType string

const (
	PlanFixedDeposit     SavingsPlanType = "FIXED_DEPOSIT"
	PlanRecurringDeposit SavingsPlanType = "RECURRING_DEPOSIT"
)

// SavingsPlanStatus is the plan lifecycle; MATURED and CLOSED are terminal.
type SavingsPlanStatus string

const (
	PlanActive  SavingsPlanStatus = "ACTIVE"
	PlanMatured SavingsPlanStatus = "MATURED"
	PlanClosed  SavingsPlanStatus = "CLOSED"
)

// SavingsPlan is a time-deposit instrument funded from a source account.
// Fixed deposits carry Principal; recurring deposits carry MonthlyAmount
// plus the TotalDeposited running sum and a NextDueDate for the next
// installment. Interest compounds inside the plan and only moves as cash
// at maturity (or early close).
type SavingsPlan struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	SourceAccountID string            `json:"source_account_id"`
	PlanType        SavingsPlanType   `json:"plan_type"`
	Principal       Money             `json:"principal,omitempty"`
	MonthlyAmount   Money             `json:"monthly_amount,omitempty"`
	InterestRate    decimal.Decimal   `json:"interest_rate"` // annual, percent
	TermMonths      int               `json:"term_months"`
	StartDate       time.Time         `json:"start_date"`
	EndDate         time.Time         `json:"end_date"`
	Status          SavingsPlanStatus `json:"status"`

	InterestCreditedTotal  Money      `json:"interest_credited_total"`
	TotalDeposited         Money      `json:"total_deposited"`
	NextDueDate            *time.Time `json:"next_due_date,omitempty"`
	LastInterestCreditedAt *time.Time `json:"last_interest_credited_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CurrentValue is what the plan would pay out right now: principal plus
// credited interest for fixed deposits, deposits plus credited interest
// for recurring deposits.
func (p *SavingsPlan) CurrentValue() Money {
	if p.PlanType == PlanRecurringDeposit {
		return p.TotalDeposited.Add(p.InterestCreditedTotal)
	}
	return p.Principal.Add(p.InterestCreditedTotal)
}

// IsMature reports whether the plan's term has ended as of now.
func (p *SavingsPlan) IsMature(now time.Time) bool {
	return !p.EndDate.After(now)
}
