package domain

import "time"

// TransactionType tags each immutable ledger entry.
type TransactionType string

const (
	TransactionDeposit          TransactionType = "DEPOSIT"
	TransactionWithdrawal       TransactionType = "WITHDRAWAL"
	TransactionTransferIn       TransactionType = "TRANSFER_IN"
	TransactionTransferOut      TransactionType = "TRANSFER_OUT"
	TransactionInterestCredit   TransactionType = "INTEREST_CREDIT"
	TransactionFee              TransactionType = "FEE"
	TransactionLoanDisbursement TransactionType = "LOAN_DISBURSEMENT"
	TransactionLoanRepayment    TransactionType = "LOAN_REPAYMENT"
)

// Transaction is an immutable ledger entry: it is created exactly once,
// inside the same atomic unit as the account mutation it records, and is
// never updated or deleted afterwards. Amount is always positive; the
// type says which direction the money moved.
type Transaction struct {
	ID                   string          `json:"id"`
	AccountID            string          `json:"account_id"`
	Type                 TransactionType `json:"type"`
	Amount               Money           `json:"amount"`
	BalanceAfter         Money           `json:"balance_after"`
	Description          string          `json:"description,omitempty"`
	ReferenceNumber      string          `json:"reference_number,omitempty"`
	RelatedAccountID     string          `json:"related_account_id,omitempty"`
	RelatedTransactionID string          `json:"related_transaction_id,omitempty"`
	Metadata             map[string]any  `json:"metadata,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
}

// IsDebit reports whether the entry moved money out of the account.
func (t *Transaction) IsDebit() bool {
	switch t.Type {
	case TransactionWithdrawal, TransactionTransferOut, TransactionFee:
		return true
	}
	return false
}
