/*
Package sqlstore provides a database/sql implementation of ledger.TxStore.

PURPOSE:
  Persists pools and ledger entries in a relational database. SQLite is
  the default (desktop usage, tests); PostgreSQL is supported through the
  same queries with a different dialect.

INTERFACES IMPLEMENTED:
  ledger.Store:   pool amounts and entry CRUD
  ledger.TxStore: WithTx for atomic entry + pool writes

KEY TABLES:
  cash_on_hand, saved_cash  one row per user
  envelopes, bank_accounts  addressable pools
  expenses, incomes         payment_kind + payment_ref_id name the pool
  transfers                 from_kind/to_kind text tokens + ref ids

MIGRATION:
  Migrate() creates missing tables and repairs partial legacy schemas
  by adding absent columns. It is idempotent and runs at most once per
  Store, however many goroutines call it. The composition root calls it
  once at startup; nothing runs it implicitly.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite connections are capped at
  one so ":memory:" databases stay a single database. Lost updates between
  racing writers of the same user are not prevented beyond what one
  database transaction gives.

USAGE:
  store, err := sqlstore.Open("sqlite3", "./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
  if err := store.Migrate(ctx); err != nil {
      log.Fatal(err)
  }
  engine := ledger.NewEngine(store)

SEE ALSO:
  - ledger/store.go:  interface definitions
  - legacy.go:        decoding rows written before payment_kind existed
*/
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/pocket-ledger/ledger"
)

// Store implements ledger.TxStore on a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect dialect
	mu      sync.RWMutex

	migrateOnce sync.Once
	migrateErr  error
}

var _ ledger.TxStore = (*Store)(nil)

// Open connects with the given driver ("sqlite3" or "postgres"). For SQLite,
// dsn is a file path or ":memory:".
func Open(driver, dsn string) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driver, d.dsn(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if d.singleConn {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Store{db: db, dialect: d}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the handle for schema fixtures in tests and tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates and repairs the schema. Only the first call does work;
// later calls return the first call's result.
func (s *Store) Migrate(ctx context.Context) error {
	s.migrateOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.migrateErr = migrate(ctx, s.db, s.dialect)
	})
	return s.migrateErr
}

func (s *Store) conn() *conn {
	return &conn{q: s.db, d: s.dialect}
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&conn{q: sqlTx, d: s.dialect}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn runs every query against one querier. Outside WithTx that is the
// pool; inside, the open transaction.
type conn struct {
	q querier
	d dialect
}

func (c *conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.d.rebind(query), args...)
}

func (c *conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, c.d.rebind(query), args...)
}

func (c *conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.d.rebind(query), args...)
}

// =============================================================================
// LOCKED DELEGATES (ledger.Store interface, outside a transaction)
// =============================================================================

func (s *Store) read() (*conn, func()) {
	s.mu.RLock()
	return s.conn(), s.mu.RUnlock
}

func (s *Store) write() (*conn, func()) {
	s.mu.Lock()
	return s.conn(), s.mu.Unlock
}
