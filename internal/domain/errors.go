package domain

import "fmt"

// Error types for consistent error handling across the core.
// Business-rule rejections are distinct types so the HTTP layer can map
// them to 4xx outcomes; ErrStorage marks retryable infrastructure failure.

// ErrNotFound indicates a resource was not found (or is soft-deleted).
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrInsufficientFunds indicates not enough balance for the operation.
type ErrInsufficientFunds struct {
	Available Money
	Required  Money
}

func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds: available=%s required=%s", e.Available, e.Required)
}

// ErrLimitExceeded indicates a policy limit was exceeded.
type ErrLimitExceeded struct {
	LimitType string
	Limit     Money
	Attempted Money
}

func (e *ErrLimitExceeded) Error() string {
	return fmt.Sprintf("limit exceeded [%s]: limit=%s attempted=%s", e.LimitType, e.Limit, e.Attempted)
}

// ErrStateConflict indicates the entity is in a state that forbids the
// operation (frozen account, non-pending application, paid installment...).
type ErrStateConflict struct {
	Resource string
	State    string
	Action   string
}

func (e *ErrStateConflict) Error() string {
	return fmt.Sprintf("cannot %s %s in state '%s'", e.Action, e.Resource, e.State)
}

// ErrForbidden indicates the user may not operate on the resource.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// ErrStorage indicates a retryable infrastructure failure in the ledger
// store (connection lost, transaction conflict, timeout).
type ErrStorage struct {
	Op  string
	Err error
}

func (e *ErrStorage) Error() string {
	return fmt.Sprintf("storage error [%s]: %v", e.Op, e.Err)
}

func (e *ErrStorage) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the storage circuit breaker is open.
type ErrCircuitOpen struct {
	Name string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open: %s", e.Name)
}
