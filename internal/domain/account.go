package domain

import (
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies what an account may do on the ledger.
type AccountType string

const (
	AccountTypeChecking AccountType = "CHECKING"
	AccountTypeSavings  AccountType = "SAVINGS"
	AccountTypeLoan     AccountType = "LOAN"
)

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "ACTIVE"
	AccountStatusFrozen   AccountStatus = "FROZEN"
	AccountStatusClosed   AccountStatus = "CLOSED"
	AccountStatusInactive AccountStatus = "INACTIVE"
)

// Account is a ledger account. Balance and AvailableBalance are kept equal
// at all times: holds/reservations are not modeled, and the mutation
// methods below are the only sanctioned way to move the balance.
type Account struct {
	ID               string        `json:"id"`
	AccountNumber    string        `json:"account_number"`
	UserID           string        `json:"user_id"`
	Type             AccountType   `json:"type"`
	Currency         string        `json:"currency"`
	Balance          Money         `json:"balance"`
	AvailableBalance Money         `json:"available_balance"`
	Status           AccountStatus `json:"status"`

	InterestRate   decimal.Decimal `json:"interest_rate"`   // annual, percent
	MinimumBalance Money           `json:"minimum_balance"` // zero when unset

	// Loan accounts only.
	LoanAmount     Money      `json:"loan_amount,omitempty"`
	LoanTermMonths int        `json:"loan_term_months,omitempty"`
	LoanStartDate  *time.Time `json:"loan_start_date,omitempty"`
	LoanEndDate    *time.Time `json:"loan_end_date,omitempty"`
	MonthlyPayment Money      `json:"monthly_payment,omitempty"`

	DailyWithdrawalLimit *Money          `json:"daily_withdrawal_limit,omitempty"`
	TransferFeePercent   decimal.Decimal `json:"transfer_fee_percent"`
	TransferFeeFixed     Money           `json:"transfer_fee_fixed"`

	LastInterestCreditedAt *time.Time `json:"last_interest_credited_at,omitempty"`
	DeletedAt              *time.Time `json:"deleted_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

var accountNumberRe = regexp.MustCompile(`^[A-Z0-9]{8,20}$`)

// NormalizeAccountNumber upper-cases and trims an account number as
// received from callers.
func NormalizeAccountNumber(number string) string {
	return strings.ToUpper(strings.TrimSpace(number))
}

// ValidateAccountNumber checks the 8-20 uppercase alphanumeric format.
// The input is expected to be normalized already.
func ValidateAccountNumber(number string) error {
	if !accountNumberRe.MatchString(number) {
		return &ErrValidation{Field: "account_number", Message: "must be 8-20 uppercase alphanumeric characters"}
	}
	return nil
}

const accountNumberDigits = 10

// GenerateAccountNumber produces a fresh account number with the given
// prefix ("CB" for customer accounts, "LN" for loan accounts). Uniqueness
// is enforced by the store's unique index; callers retry on collision.
func GenerateAccountNumber(prefix string) string {
	var b strings.Builder
	b.WriteString(prefix)
	for i := 0; i < accountNumberDigits; i++ {
		b.WriteByte(byte('0' + rand.Intn(10)))
	}
	return b.String()
}

// Deposit credits the account. Closed accounts reject deposits; frozen and
// inactive accounts still receive credits (interest, incoming transfers).
func (a *Account) Deposit(amount Money) error {
	if !amount.IsPositive() {
		return &ErrValidation{Field: "amount", Message: "must be positive"}
	}
	if a.Status == AccountStatusClosed {
		return &ErrStateConflict{Resource: "account", State: string(a.Status), Action: "deposit to"}
	}
	a.Balance = a.Balance.Add(amount)
	a.AvailableBalance = a.Balance
	return nil
}

// Withdraw debits the account. Only ACTIVE non-loan accounts with enough
// available balance (respecting the configured minimum balance) may be
// debited.
func (a *Account) Withdraw(amount Money) error {
	if !amount.IsPositive() {
		return &ErrValidation{Field: "amount", Message: "must be positive"}
	}
	if a.Type == AccountTypeLoan {
		return &ErrStateConflict{Resource: "account", State: "loan", Action: "withdraw from"}
	}
	if a.Status != AccountStatusActive {
		return &ErrStateConflict{Resource: "account", State: string(a.Status), Action: "withdraw from"}
	}
	if a.AvailableBalance.LessThan(amount) {
		return &ErrInsufficientFunds{Available: a.AvailableBalance, Required: amount}
	}
	remaining := a.Balance.Sub(amount)
	if remaining.LessThan(a.MinimumBalance) {
		return &ErrInsufficientFunds{Available: a.AvailableBalance.Sub(a.MinimumBalance), Required: amount}
	}
	a.Balance = remaining
	a.AvailableBalance = a.Balance
	return nil
}

// Freeze suspends an active account.
func (a *Account) Freeze() error {
	if a.Status != AccountStatusActive {
		return &ErrStateConflict{Resource: "account", State: string(a.Status), Action: "freeze"}
	}
	a.Status = AccountStatusFrozen
	return nil
}

// Unfreeze reactivates a frozen account.
func (a *Account) Unfreeze() error {
	if a.Status != AccountStatusFrozen {
		return &ErrStateConflict{Resource: "account", State: string(a.Status), Action: "unfreeze"}
	}
	a.Status = AccountStatusActive
	return nil
}

// Close ends the account's life. Only zero-balance accounts can close, and
// closing twice is a state conflict.
func (a *Account) Close() error {
	if a.Status == AccountStatusClosed {
		return &ErrStateConflict{Resource: "account", State: string(a.Status), Action: "close"}
	}
	if !a.Balance.IsZero() {
		return &ErrStateConflict{Resource: "account", State: "non-zero balance", Action: "close"}
	}
	a.Status = AccountStatusClosed
	return nil
}

// IsDeleted reports whether the account was soft-deleted.
func (a *Account) IsDeleted() bool {
	return a.DeletedAt != nil
}
