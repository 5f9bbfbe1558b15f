package sqlstore_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pocket-ledger/ledger"
	"github.com/warp/pocket-ledger/store/sqlstore"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func openStore(t *testing.T, dsn string) *sqlstore.Store {
	t.Helper()
	s, err := sqlstore.Open("sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	s := openStore(t, ":memory:")
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// =============================================================================
// MIGRATION
// =============================================================================

func TestMigrate_Idempotent(t *testing.T) {
	// GIVEN: a database file migrated by one Store
	// WHEN: the same Store migrates again, and a second Store opens the file
	// THEN: nothing fails and data survives
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	first := openStore(t, path)
	require.NoError(t, first.Migrate(ctx))
	require.NoError(t, first.Migrate(ctx))
	require.NoError(t, first.SetCashOnHand(ctx, 1, dec("12.5")))
	require.NoError(t, first.Close())

	second := openStore(t, path)
	require.NoError(t, second.Migrate(ctx))

	cash, err := second.CashOnHand(ctx, 1)
	require.NoError(t, err)
	assert.True(t, cash.Equal(dec("12.5")))
}

func TestMigrate_ConcurrentCallers(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, ":memory:")

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Migrate(ctx)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestMigrate_RepairsLegacySchema(t *testing.T) {
	// GIVEN: tables created by an old release, without pool columns
	ctx := context.Background()
	s := openStore(t, ":memory:")

	legacy := []string{
		`CREATE TABLE envelopes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id BIGINT NOT NULL,
			allocated TEXT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE expenses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id BIGINT NOT NULL,
			amount TEXT NOT NULL,
			date TEXT NOT NULL,
			bank_account_id BIGINT,
			account_text TEXT
		)`,
		`INSERT INTO envelopes (user_id, allocated) VALUES (1, '15')`,
		`INSERT INTO expenses (user_id, amount, date, bank_account_id, account_text) VALUES
			(1, '10', '2024-05-01', 7, NULL),
			(1, '5', '2024-05-02', NULL, 'Envelope: 3'),
			(1, '4', '2024-05-03', NULL, NULL),
			(1, '2', '2024-05-04 08:00:00', NULL, 'Savings'),
			(1, '1', '2024-05-05', NULL, 'petty cash jar'),
			(1, '3', '2024-05-06T10:00:00', NULL, NULL),
			(1, '6', '2024-05-07T10:00:00.250', 7, NULL)`,
	}
	for _, stmt := range legacy {
		_, err := s.DB().ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	// WHEN: migrating
	require.NoError(t, s.Migrate(ctx))

	// THEN: old rows decode through the fallback chain
	want := map[ledger.EntryID]ledger.PoolRef{
		1: ledger.BankAccount(7),
		2: ledger.Envelope(3),
		3: ledger.FreeCash(),
		4: ledger.SavedCash(),
		5: ledger.FreeCash(),
		6: ledger.FreeCash(),
		7: ledger.BankAccount(7),
	}
	for id, pool := range want {
		e, err := s.GetEntry(ctx, ledger.EntryExpense, 1, id)
		require.NoError(t, err, "entry %d", id)
		assert.Equal(t, pool, e.Pool, "entry %d", id)
		assert.False(t, e.Planned)
		assert.Empty(t, e.Description)
	}

	// AND: zone-less timestamps read as UTC
	dates := map[ledger.EntryID]time.Time{
		4: time.Date(2024, 5, 4, 8, 0, 0, 0, time.UTC),
		6: time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC),
		7: time.Date(2024, 5, 7, 10, 0, 0, 250_000_000, time.UTC),
	}
	for id, date := range dates {
		e, err := s.GetEntry(ctx, ledger.EntryExpense, 1, id)
		require.NoError(t, err, "entry %d", id)
		assert.True(t, e.Date.Equal(date), "entry %d: got %s", id, e.Date)
	}

	// AND: the repaired envelope table has name and target
	env, err := s.Envelope(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "", env.Name)
	assert.True(t, env.Allocated.Equal(dec("15")))
	assert.True(t, env.Target.IsZero())
}

func TestMigrate_LegacyCashTablesWithoutUniqueUser(t *testing.T) {
	// GIVEN: cash tables keyed by their own id, user_id not unique
	ctx := context.Background()
	s := openStore(t, ":memory:")

	for _, stmt := range []string{
		`CREATE TABLE cash_on_hand (id INTEGER PRIMARY KEY AUTOINCREMENT, user_id BIGINT NOT NULL, amount TEXT NOT NULL)`,
		`CREATE TABLE saved_cash (id INTEGER PRIMARY KEY AUTOINCREMENT, user_id BIGINT NOT NULL, amount TEXT NOT NULL)`,
		`INSERT INTO cash_on_hand (user_id, amount) VALUES (1, '50')`,
	} {
		_, err := s.DB().ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	require.NoError(t, s.Migrate(ctx))

	// WHEN: an expense spends free cash and a transfer creates the saved row
	eng := ledger.NewEngine(s)
	_, err := eng.CreateExpense(ctx, ledger.EntryInput{UserID: 1, Amount: dec("10"), Pool: ledger.FreeCash()})
	require.NoError(t, err)
	_, err = eng.TransferAny(ctx, 1, dec("15"), ledger.FreeCash(), ledger.SavedCash())
	require.NoError(t, err)
	_, err = eng.TransferAny(ctx, 1, dec("5"), ledger.SavedCash(), ledger.FreeCash())
	require.NoError(t, err)

	// THEN: the existing row is updated in place and one saved row exists
	cash, err := s.CashOnHand(ctx, 1)
	require.NoError(t, err)
	assert.True(t, cash.Equal(dec("40")), "cash on hand %s", cash)

	saved, err := s.SavedCash(ctx, 1)
	require.NoError(t, err)
	assert.True(t, saved.Equal(dec("10")), "saved cash %s", saved)

	for _, table := range []string{"cash_on_hand", "saved_cash"} {
		var n int
		require.NoError(t, s.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE user_id = 1").Scan(&n))
		assert.Equal(t, 1, n, table)
	}
}

func TestLegacyRow_RewrittenWithExplicitPool(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, ":memory:")
	require.NoError(t, s.Migrate(ctx))

	_, err := s.DB().ExecContext(ctx,
		`INSERT INTO incomes (user_id, amount, date, account_text) VALUES (1, '30', '2024-01-01', 'Bank account #9')`)
	require.NoError(t, err)

	e, err := s.GetEntry(ctx, ledger.EntryIncome, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, ledger.BankAccount(9), e.Pool)

	// Writing the row back stores payment_kind; the label no longer matters.
	e.Pool = ledger.SavedCash()
	require.NoError(t, s.UpdateEntry(ctx, e))

	got, err := s.GetEntry(ctx, ledger.EntryIncome, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, ledger.SavedCash(), got.Pool)
	assert.True(t, got.Date.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}

// =============================================================================
// CRUD AND NOT-FOUND
// =============================================================================

func TestStore_MissingCashRowsReadZero(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	cash, err := s.CashOnHand(ctx, 42)
	require.NoError(t, err)
	assert.True(t, cash.IsZero())

	saved, err := s.SavedCash(ctx, 42)
	require.NoError(t, err)
	assert.True(t, saved.IsZero())
}

func TestStore_PoolsAreScopedToUser(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	acct := &ledger.BankAccountRecord{UserID: 1, Name: "Main", Currency: "EUR", Balance: dec("80")}
	require.NoError(t, s.CreateBankAccount(ctx, acct))

	_, err := s.BankAccount(ctx, 2, acct.ID)
	assert.ErrorIs(t, err, ledger.ErrPoolNotFound)

	err = s.SetBankBalance(ctx, 2, acct.ID, dec("1"))
	assert.ErrorIs(t, err, ledger.ErrPoolNotFound)

	err = s.SetEnvelopeAllocated(ctx, 1, 77, dec("1"))
	var pnf *ledger.PoolNotFoundError
	require.ErrorAs(t, err, &pnf)
	assert.Equal(t, ledger.Envelope(77), pnf.Pool)

	got, err := s.BankAccount(ctx, 1, acct.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("80")))
}

func TestStore_TransferRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	date := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)

	tr := &ledger.Transfer{
		UserID: 1, Amount: dec("9.99"), Date: date, Description: "move",
		From: ledger.SavedCash(), To: ledger.Envelope(4), Planned: true,
	}
	require.NoError(t, s.InsertTransfer(ctx, tr))
	require.NotZero(t, tr.ID)

	got, err := s.GetTransfer(ctx, 1, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.SavedCash(), got.From)
	assert.Equal(t, ledger.Envelope(4), got.To)
	assert.True(t, got.Amount.Equal(dec("9.99")))
	assert.True(t, got.Date.Equal(date))
	assert.True(t, got.Planned)

	require.NoError(t, s.DeleteTransfer(ctx, 1, tr.ID))
	err = s.DeleteTransfer(ctx, 1, tr.ID)
	assert.ErrorIs(t, err, ledger.ErrEntryNotFound)
}

func TestStore_UnknownEntryKind(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.GetEntry(ctx, ledger.EntryTransfer, 1, 1)
	assert.ErrorIs(t, err, ledger.ErrUnknownEntryKind)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx ledger.Store) error {
		require.NoError(t, tx.SetCashOnHand(ctx, 1, dec("50")))
		e := &ledger.Entry{UserID: 1, Kind: ledger.EntryExpense, Amount: dec("5"), Date: time.Now(), Pool: ledger.FreeCash()}
		require.NoError(t, tx.InsertEntry(ctx, e))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	cash, err := s.CashOnHand(ctx, 1)
	require.NoError(t, err)
	assert.True(t, cash.IsZero())

	rows, err := s.ListEntries(ctx, ledger.EntryExpense, 1, ledger.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestWithTx_Commit(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	err := s.WithTx(ctx, func(tx ledger.Store) error {
		return tx.SetSavedCash(ctx, 1, dec("7"))
	})
	require.NoError(t, err)

	saved, err := s.SavedCash(ctx, 1)
	require.NoError(t, err)
	assert.True(t, saved.Equal(dec("7")))
}

// =============================================================================
// LEGACY ACCOUNT TEXT
// =============================================================================

func TestParseAccountText(t *testing.T) {
	tests := []struct {
		text string
		want ledger.PoolRef
		ok   bool
	}{
		{"Bank: 7", ledger.BankAccount(7), true},
		{"bank account #12", ledger.BankAccount(12), true},
		{"Account 3", ledger.BankAccount(3), true},
		{"Envelope: 5", ledger.Envelope(5), true},
		{"Saved cash", ledger.SavedCash(), true},
		{"savings", ledger.SavedCash(), true},
		{" Cash ", ledger.FreeCash(), true},
		{"free", ledger.FreeCash(), true},
		{"Bank: 0", ledger.PoolRef{}, false},
		{"envelope", ledger.PoolRef{}, false},
		{"wallet", ledger.PoolRef{}, false},
		{"", ledger.PoolRef{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := sqlstore.ParseAccountText(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
