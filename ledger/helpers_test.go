package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/warp/pocket-ledger/ledger"
	"github.com/warp/pocket-ledger/ledger/store"
	"github.com/warp/pocket-ledger/store/sqlstore"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const alice ledger.UserID = 1
const bob ledger.UserID = 2

var testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T {
	return &v
}

// requireAmount compares decimals by value, so "70" and "70.0000" match.
func requireAmount(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, got.Equal(amt(want)), "want %s, got %s %v", want, got.String(), msgAndArgs)
}

func newSQLiteStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	s, err := sqlstore.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

// eachStore runs fn once per TxStore implementation.
func eachStore(t *testing.T, fn func(t *testing.T, s ledger.TxStore)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, store.NewMemory())
	})
	t.Run("sqlite", func(t *testing.T) {
		fn(t, newSQLiteStore(t))
	})
}

func newEngine(s ledger.TxStore) *ledger.Engine {
	eng := ledger.NewEngine(s)
	eng.Now = func() time.Time { return testNow }
	return eng
}

// fixture is a user with 100 cash on hand, 40 of it saved, an empty
// envelope and a bank account holding 100.
type fixture struct {
	eng      *ledger.Engine
	envelope int64
	bank     int64
}

func newFixture(t *testing.T, s ledger.TxStore) fixture {
	t.Helper()
	ctx := context.Background()
	eng := newEngine(s)

	_, err := eng.CreateIncome(ctx, ledger.EntryInput{
		UserID: alice, Amount: amt("100"), Description: "salary", Pool: ledger.FreeCash(),
	})
	require.NoError(t, err)

	_, err = eng.TransferAny(ctx, alice, amt("40"), ledger.FreeCash(), ledger.SavedCash())
	require.NoError(t, err)

	env, err := eng.OpenEnvelope(ctx, alice, "Holidays", amt("500"))
	require.NoError(t, err)
	acct, err := eng.OpenBankAccount(ctx, alice, "Checking", "EUR", amt("100"))
	require.NoError(t, err)

	return fixture{eng: eng, envelope: env.ID, bank: acct.ID}
}

type balances struct {
	total, saved, envelope, bank decimal.Decimal
}

func (f fixture) balances(t *testing.T) balances {
	t.Helper()
	ctx := context.Background()
	var (
		b   balances
		err error
	)
	b.total, err = f.eng.FreeCash(ctx, alice)
	require.NoError(t, err)
	b.saved, err = f.eng.SavedCash(ctx, alice)
	require.NoError(t, err)
	b.envelope, err = f.eng.EnvelopeAllocated(ctx, alice, f.envelope)
	require.NoError(t, err)
	b.bank, err = f.eng.BankBalance(ctx, alice, f.bank)
	require.NoError(t, err)
	return b
}

func (f fixture) requireBalances(t *testing.T, total, saved, envelope, bank string) {
	t.Helper()
	b := f.balances(t)
	requireAmount(t, total, b.total, "free cash total")
	requireAmount(t, saved, b.saved, "saved cash")
	requireAmount(t, envelope, b.envelope, "envelope")
	requireAmount(t, bank, b.bank, "bank")
}
