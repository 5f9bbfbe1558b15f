/*
errors.go - Centralized error types for the balance ledger engine

PURPOSE:
  All ledger error kinds in one place. Pool Store, Transfer Engine and
  Effect Applier raise these; the Engine propagates them unmodified so
  callers can classify with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Funds errors      - A debit would exceed the available pool amount
  2. Reference errors  - Pool missing, not owned, or referenced without an id
  3. Validation errors - Non-positive amounts, same-pool transfers
  4. Lifecycle errors  - Realize/Unrealize on an entry in the wrong state

Storage and IO failures are NOT part of this taxonomy. Stores wrap them
with fmt.Errorf("...: %w", err) and they surface as internal errors.
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientFunds is returned when a debit exceeds the pool amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrPoolNotFound is returned when an envelope or bank account does not
	// exist or belongs to another user.
	ErrPoolNotFound = errors.New("pool not found")

	// ErrMissingPoolReference is returned when an Envelope or BankAccount
	// reference carries no id.
	ErrMissingPoolReference = errors.New("missing pool reference")

	// ErrNoOpTransfer is returned when source and destination are the same pool.
	ErrNoOpTransfer = errors.New("source and destination are the same pool")

	// ErrInvalidAmount is returned when an amount is zero or negative.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrUnknownPoolKind is returned for pool kinds outside the closed set.
	ErrUnknownPoolKind = errors.New("unknown pool kind")

	// ErrEntryNotFound is returned when an entry id does not exist for the user.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrUnknownEntryKind is returned for entry kinds other than expense, income, transfer.
	ErrUnknownEntryKind = errors.New("unknown entry kind")

	// ErrAlreadyRealized is returned by Realize on a realized entry.
	ErrAlreadyRealized = errors.New("entry is already realized")

	// ErrNotRealized is returned by Unrealize on a planned entry.
	ErrNotRealized = errors.New("entry is not realized")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError provides details about a pool shortage.
type InsufficientFundsError struct {
	UserID    UserID
	Pool      PoolRef
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in %s: available %s, requested %s",
		e.Pool, e.Available.String(), e.Requested.String())
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// Shortfall is how much more the pool would need to cover the request.
func (e *InsufficientFundsError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

// PoolNotFoundError names the pool that could not be resolved for the user.
type PoolNotFoundError struct {
	UserID UserID
	Pool   PoolRef
}

func (e *PoolNotFoundError) Error() string {
	return fmt.Sprintf("pool not found: %s for user %d", e.Pool, e.UserID)
}

func (e *PoolNotFoundError) Unwrap() error {
	return ErrPoolNotFound
}

// EntryNotFoundError names the missing entry.
type EntryNotFoundError struct {
	Kind EntryKind
	ID   EntryID
}

func (e *EntryNotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *EntryNotFoundError) Unwrap() error {
	return ErrEntryNotFound
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input or
// a request the current balances cannot satisfy.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrMissingPoolReference) ||
		errors.Is(err, ErrNoOpTransfer) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrUnknownPoolKind) ||
		errors.Is(err, ErrUnknownEntryKind)
}

// IsNotFound returns true if the error indicates a missing pool or entry.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPoolNotFound) ||
		errors.Is(err, ErrEntryNotFound)
}

// IsStateConflict returns true for lifecycle transitions that do not apply
// to the entry's current state.
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrAlreadyRealized) ||
		errors.Is(err, ErrNotRealized)
}
