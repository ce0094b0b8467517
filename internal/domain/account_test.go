package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/corebank-io/corebank-go/internal/domain"
)

func activeAccount(balance string) *domain.Account {
	b := domain.MustMoney(balance)
	return &domain.Account{
		ID:               "acc-1",
		AccountNumber:    "CB0000000001",
		UserID:           "user-1",
		Type:             domain.AccountTypeChecking,
		Currency:         "USD",
		Balance:          b,
		AvailableBalance: b,
		Status:           domain.AccountStatusActive,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
}

func TestAccountDeposit(t *testing.T) {
	a := activeAccount("100.00")
	if err := a.Deposit(domain.MustMoney("50.25")); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if got := a.Balance.String(); got != "150.25" {
		t.Errorf("expected balance 150.25, got %s", got)
	}
	if !a.AvailableBalance.Equal(a.Balance) {
		t.Error("available balance must track balance")
	}

	var verr *domain.ErrValidation
	if err := a.Deposit(domain.ZeroMoney()); !errors.As(err, &verr) {
		t.Errorf("expected validation error for zero deposit, got %v", err)
	}
}

func TestAccountDepositFrozenAndClosed(t *testing.T) {
	// Frozen accounts still receive credits (interest, incoming transfers).
	frozen := activeAccount("10.00")
	frozen.Status = domain.AccountStatusFrozen
	if err := frozen.Deposit(domain.MustMoney("5.00")); err != nil {
		t.Errorf("frozen account should accept deposits: %v", err)
	}

	closed := activeAccount("0.00")
	closed.Status = domain.AccountStatusClosed
	var conflict *domain.ErrStateConflict
	if err := closed.Deposit(domain.MustMoney("5.00")); !errors.As(err, &conflict) {
		t.Errorf("expected state conflict for closed account, got %v", err)
	}
}

func TestAccountWithdraw(t *testing.T) {
	a := activeAccount("100.00")
	if err := a.Withdraw(domain.MustMoney("40.00")); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if got := a.Balance.String(); got != "60.00" {
		t.Errorf("expected balance 60.00, got %s", got)
	}

	var insufficient *domain.ErrInsufficientFunds
	if err := a.Withdraw(domain.MustMoney("60.01")); !errors.As(err, &insufficient) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestAccountWithdrawRespectsMinimumBalance(t *testing.T) {
	a := activeAccount("100.00")
	a.MinimumBalance = domain.MustMoney("50.00")

	var insufficient *domain.ErrInsufficientFunds
	if err := a.Withdraw(domain.MustMoney("60.00")); !errors.As(err, &insufficient) {
		t.Fatalf("expected insufficient funds against minimum balance, got %v", err)
	}
	if got := insufficient.Available.String(); got != "50.00" {
		t.Errorf("expected available 50.00 above minimum, got %s", got)
	}

	if err := a.Withdraw(domain.MustMoney("50.00")); err != nil {
		t.Fatalf("withdrawal down to the minimum should pass: %v", err)
	}
	if got := a.Balance.String(); got != "50.00" {
		t.Errorf("expected balance 50.00, got %s", got)
	}
}

func TestAccountWithdrawBlockedStates(t *testing.T) {
	var conflict *domain.ErrStateConflict

	loan := activeAccount("0.00")
	loan.Type = domain.AccountTypeLoan
	if err := loan.Withdraw(domain.MustMoney("1.00")); !errors.As(err, &conflict) {
		t.Errorf("expected conflict for loan account withdrawal, got %v", err)
	}

	frozen := activeAccount("100.00")
	frozen.Status = domain.AccountStatusFrozen
	if err := frozen.Withdraw(domain.MustMoney("1.00")); !errors.As(err, &conflict) {
		t.Errorf("expected conflict for frozen account withdrawal, got %v", err)
	}
}

func TestAccountStatusTransitions(t *testing.T) {
	a := activeAccount("0.00")

	if err := a.Freeze(); err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	var conflict *domain.ErrStateConflict
	if err := a.Freeze(); !errors.As(err, &conflict) {
		t.Errorf("double freeze should conflict, got %v", err)
	}
	if err := a.Unfreeze(); err != nil {
		t.Fatalf("Unfreeze: %v", err)
	}
	if a.Status != domain.AccountStatusActive {
		t.Errorf("expected ACTIVE after unfreeze, got %s", a.Status)
	}
	if err := a.Unfreeze(); !errors.As(err, &conflict) {
		t.Errorf("unfreezing an active account should conflict, got %v", err)
	}
}

func TestAccountClose(t *testing.T) {
	a := activeAccount("25.00")

	var conflict *domain.ErrStateConflict
	if err := a.Close(); !errors.As(err, &conflict) {
		t.Fatalf("closing with a balance should conflict, got %v", err)
	}

	if err := a.Withdraw(domain.MustMoney("25.00")); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if a.Status != domain.AccountStatusClosed {
		t.Errorf("expected CLOSED, got %s", a.Status)
	}
	if err := a.Close(); !errors.As(err, &conflict) {
		t.Errorf("double close should conflict, got %v", err)
	}
}

func TestAccountNumberValidation(t *testing.T) {
	normalized := domain.NormalizeAccountNumber("  cb1234567890 ")
	if normalized != "CB1234567890" {
		t.Fatalf("expected CB1234567890, got %s", normalized)
	}
	if err := domain.ValidateAccountNumber(normalized); err != nil {
		t.Errorf("valid number rejected: %v", err)
	}
	for _, bad := range []string{"short", "cb1234567890", "CB-123456789", "0123456789012345678901"} {
		if err := domain.ValidateAccountNumber(bad); err == nil {
			t.Errorf("expected rejection for %q", bad)
		}
	}

	number := domain.GenerateAccountNumber("CB")
	if err := domain.ValidateAccountNumber(number); err != nil {
		t.Errorf("generated number %q failed validation: %v", number, err)
	}
}
