package domain

import "github.com/shopspring/decimal"

// Command and result shapes for the service entry points. The HTTP layer
// decodes straight into these; they carry no wire-format concerns.

// CreateAccountRequest opens a new account for a user.
type CreateAccountRequest struct {
	UserID               string          `json:"user_id"`
	Type                 AccountType     `json:"type"`
	Currency             string          `json:"currency"`
	InterestRate         decimal.Decimal `json:"interest_rate"`
	MinimumBalance       Money           `json:"minimum_balance"`
	DailyWithdrawalLimit *Money          `json:"daily_withdrawal_limit,omitempty"`
	TransferFeePercent   decimal.Decimal `json:"transfer_fee_percent"`
	TransferFeeFixed     Money           `json:"transfer_fee_fixed"`
	LoanAmount           Money           `json:"loan_amount"`
	LoanTermMonths       int             `json:"loan_term_months"`
}

// MutationResult reports a single-account balance mutation.
type MutationResult struct {
	AccountID     string `json:"account_id"`
	TransactionID string `json:"transaction_id"`
	BalanceAfter  Money  `json:"balance_after"`
}

// TransferRequest moves money between two accounts by destination number.
type TransferRequest struct {
	FromAccountID   string `json:"from_account_id"`
	ToAccountNumber string `json:"to_account_number"`
	Amount          Money  `json:"amount"`
	Description     string `json:"description,omitempty"`
}

// TransferResult reports a completed transfer.
type TransferResult struct {
	FromAccountID   string `json:"from_account_id"`
	ToAccountID     string `json:"to_account_id"`
	ReferenceNumber string `json:"reference_number"`
	Fee             Money  `json:"fee"`
}

// LoanApplicationRequest asks for a new loan. The interest rate is not
// part of the request: it is set at approval time.
type LoanApplicationRequest struct {
	UserID     string `json:"user_id"`
	LoanType   string `json:"loan_type"`
	Amount     Money  `json:"amount"`
	TermMonths int    `json:"term_months"`
	Purpose    string `json:"purpose,omitempty"`
}

// OpenFixedDepositRequest locks a lump sum for a term.
type OpenFixedDepositRequest struct {
	UserID          string          `json:"user_id"`
	SourceAccountID string          `json:"source_account_id"`
	Principal       Money           `json:"principal"`
	InterestRate    decimal.Decimal `json:"interest_rate"`
	TermMonths      int             `json:"term_months"`
}

// OpenRecurringDepositRequest starts a monthly deposit plan.
type OpenRecurringDepositRequest struct {
	UserID          string          `json:"user_id"`
	SourceAccountID string          `json:"source_account_id"`
	MonthlyAmount   Money           `json:"monthly_amount"`
	InterestRate    decimal.Decimal `json:"interest_rate"`
	TermMonths      int             `json:"term_months"`
}
