/*
Package ledger is the balance ledger engine of a personal-finance tracker.

PURPOSE:
  Keeps four kinds of money pools consistent while expenses, incomes and
  transfers are created, edited, realized and deleted:

    FreeCash     cash on hand (the total)
    SavedCash    the part of cash on hand earmarked as saved
    Envelope     a named allocation, addressed by id
    BankAccount  an account balance, addressed by id

KEY CONCEPTS IN THIS FILE (types.go):
  - Entry:    an expense or income, with one pool reference
  - Transfer: a movement between two pool references
  - Planned:  an entry that exists but has no balance effect yet
  - Pool records (EnvelopeRecord, BankAccountRecord) and read models

DESIGN PRINCIPLES:
  1. Amounts are always positive decimals; direction lives in the field
     (source vs sink, from vs to), never in the sign.
  2. Pools are mutated directly by exact deltas; there is no replay log.
  3. Every effect on pools commits in the same storage transaction as
     the entry row that caused it.

SEE ALSO:
  - poolref.go:  the closed pool reference type
  - pools.go:    primitive add/sub with funds validation
  - transfer.go: the 4x4 transfer matrix
  - effect.go:   apply/revert of expense and income effects
  - engine.go:   create/update/delete state machine
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID int64
type EntryID int64

// =============================================================================
// ENTRIES
// =============================================================================

// EntryKind distinguishes the three entry tables.
type EntryKind string

const (
	EntryExpense  EntryKind = "expense"
	EntryIncome   EntryKind = "income"
	EntryTransfer EntryKind = "transfer"
)

// ParseEntryKind accepts singular or plural forms ("expense", "expenses").
func ParseEntryKind(s string) (EntryKind, error) {
	switch s {
	case "expense", "expenses":
		return EntryExpense, nil
	case "income", "incomes":
		return EntryIncome, nil
	case "transfer", "transfers":
		return EntryTransfer, nil
	}
	return "", ErrUnknownEntryKind
}

// Entry is an expense or an income. Pool is the source of an expense and
// the sink of an income.
type Entry struct {
	ID          EntryID
	UserID      UserID
	Kind        EntryKind
	Amount      decimal.Decimal
	Date        time.Time
	Description string
	CategoryID  *int64
	Planned     bool
	Pool        PoolRef
}

// Realized reports whether the entry currently affects pool totals.
func (e Entry) Realized() bool { return !e.Planned }

// Transfer moves Amount from one pool to another.
type Transfer struct {
	ID          EntryID
	UserID      UserID
	Amount      decimal.Decimal
	Date        time.Time
	Description string
	Planned     bool
	From        PoolRef
	To          PoolRef
}

func (t Transfer) Realized() bool { return !t.Planned }

// EntryFilter narrows ListEntries and ListTransfers. Zero values match all.
type EntryFilter struct {
	From    *time.Time
	To      *time.Time
	Planned *bool
}

// Match reports whether a row with the given date and planned flag passes.
func (f EntryFilter) Match(date time.Time, planned bool) bool {
	if f.From != nil && date.Before(*f.From) {
		return false
	}
	if f.To != nil && date.After(*f.To) {
		return false
	}
	if f.Planned != nil && *f.Planned != planned {
		return false
	}
	return true
}

// =============================================================================
// POOL RECORDS
// =============================================================================

// EnvelopeRecord is a named sub-allocation of saved cash.
type EnvelopeRecord struct {
	ID        int64
	UserID    UserID
	Name      string
	Target    decimal.Decimal
	Allocated decimal.Decimal
}

// BankAccountRecord is an independent pool with its own balance.
type BankAccountRecord struct {
	ID       int64
	UserID   UserID
	Name     string
	Currency string
	Balance  decimal.Decimal
}

// =============================================================================
// READ MODELS
// =============================================================================

// Summary is every pool of a user read in one pass.
type Summary struct {
	UserID        UserID
	FreeCashTotal decimal.Decimal
	SavedCash     decimal.Decimal
	Unassigned    decimal.Decimal
	Envelopes     []EnvelopeRecord
	BankAccounts  []BankAccountRecord
}

// TotalMoney is cash on hand plus every envelope and bank balance. Saved
// cash is a label inside cash on hand and is not added again.
func (s Summary) TotalMoney() decimal.Decimal {
	total := s.FreeCashTotal
	for _, e := range s.Envelopes {
		total = total.Add(e.Allocated)
	}
	for _, a := range s.BankAccounts {
		total = total.Add(a.Balance)
	}
	return total
}

// Coverage reports whether envelope allocations fit inside saved cash.
// The engine does not enforce this; it is surfaced for callers and tests.
type Coverage struct {
	SavedCash decimal.Decimal
	Allocated decimal.Decimal
	Shortfall decimal.Decimal
	Covered   bool
}
