/*
store.go - Persistence interfaces for pools and entries

PURPOSE:
  Defines the boundary between the engine and the database. Stores only
  read and write rows; every business rule (funds checks, the transfer
  matrix, revert-before-apply) lives in this package.

KEY INTERFACES:
  PoolStore:  raw pool amounts (cash on hand, saved cash, envelopes, accounts)
  EntryStore: CRUD for expenses, incomes and transfers
  Store:      both of the above
  TxStore:    Store plus WithTx for atomic multi-table writes

NOT-FOUND CONTRACT:
  Envelope/BankAccount lookups return an error wrapping ErrPoolNotFound
  when the id does not exist OR belongs to a different user. Entry
  lookups return an error wrapping ErrEntryNotFound the same way.
  CashOnHand and SavedCash never fail for a missing row; they read zero.

LEGACY ROWS:
  GetEntry must return the pool reference as it was persisted. Rows that
  predate the payment_kind column are decoded by the store (bank account
  column present => BankAccount, else FreeCash). The engine never sees
  legacy encodings.

IMPLEMENTATIONS:
  - ./store (memory.go):      in-memory, snapshot rollback (tests, dev)
  - ../store/sqlstore:        database/sql over sqlite3 or postgres
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// POOL STORE - Raw pool amounts
// =============================================================================

// PoolStore reads and overwrites pool amounts. It performs no validation of
// the amounts it is given.
type PoolStore interface {
	CashOnHand(ctx context.Context, userID UserID) (decimal.Decimal, error)
	SetCashOnHand(ctx context.Context, userID UserID, amount decimal.Decimal) error

	SavedCash(ctx context.Context, userID UserID) (decimal.Decimal, error)
	SetSavedCash(ctx context.Context, userID UserID, amount decimal.Decimal) error

	Envelope(ctx context.Context, userID UserID, id int64) (EnvelopeRecord, error)
	SetEnvelopeAllocated(ctx context.Context, userID UserID, id int64, amount decimal.Decimal) error
	CreateEnvelope(ctx context.Context, env *EnvelopeRecord) error
	ListEnvelopes(ctx context.Context, userID UserID) ([]EnvelopeRecord, error)

	BankAccount(ctx context.Context, userID UserID, id int64) (BankAccountRecord, error)
	SetBankBalance(ctx context.Context, userID UserID, id int64, amount decimal.Decimal) error
	CreateBankAccount(ctx context.Context, acct *BankAccountRecord) error
	ListBankAccounts(ctx context.Context, userID UserID) ([]BankAccountRecord, error)
}

// =============================================================================
// ENTRY STORE - Expenses, incomes, transfers
// =============================================================================

// EntryStore persists ledger entries. Insert methods assign the ID.
type EntryStore interface {
	InsertEntry(ctx context.Context, e *Entry) error
	GetEntry(ctx context.Context, kind EntryKind, userID UserID, id EntryID) (Entry, error)
	UpdateEntry(ctx context.Context, e Entry) error
	DeleteEntry(ctx context.Context, kind EntryKind, userID UserID, id EntryID) error
	ListEntries(ctx context.Context, kind EntryKind, userID UserID, filter EntryFilter) ([]Entry, error)

	InsertTransfer(ctx context.Context, t *Transfer) error
	GetTransfer(ctx context.Context, userID UserID, id EntryID) (Transfer, error)
	UpdateTransfer(ctx context.Context, t Transfer) error
	DeleteTransfer(ctx context.Context, userID UserID, id EntryID) error
	ListTransfers(ctx context.Context, userID UserID, filter EntryFilter) ([]Transfer, error)
}

// Store is everything the engine reads and writes.
type Store interface {
	PoolStore
	EntryStore
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
