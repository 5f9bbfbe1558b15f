package ledger_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pocket-ledger/ledger"
	"github.com/warp/pocket-ledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// seededPools writes raw amounts straight into a memory store: 100 cash on
// hand (40 saved), envelope 1 with 30 allocated, bank account 1 with 50.
func seededPools(t *testing.T) (*ledger.Pools, *ledger.Transfers) {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemory()

	require.NoError(t, s.SetCashOnHand(ctx, alice, amt("100")))
	require.NoError(t, s.SetSavedCash(ctx, alice, amt("40")))

	env := &ledger.EnvelopeRecord{UserID: alice, Name: "Food", Allocated: amt("30")}
	require.NoError(t, s.CreateEnvelope(ctx, env))
	acct := &ledger.BankAccountRecord{UserID: alice, Name: "Main", Balance: amt("50")}
	require.NoError(t, s.CreateBankAccount(ctx, acct))
	require.Equal(t, int64(1), env.ID)
	require.Equal(t, int64(1), acct.ID)

	pools := ledger.NewPools(s)
	return pools, ledger.NewTransfers(pools)
}

type snapshot struct {
	total, saved, envelope, bank decimal.Decimal
}

func (s snapshot) money() decimal.Decimal {
	return s.total.Add(s.envelope).Add(s.bank)
}

func read(t *testing.T, pools *ledger.Pools) snapshot {
	t.Helper()
	ctx := context.Background()
	sum, err := pools.Summary(ctx, alice)
	require.NoError(t, err)
	require.Len(t, sum.Envelopes, 1)
	require.Len(t, sum.BankAccounts, 1)
	return snapshot{
		total:    sum.FreeCashTotal,
		saved:    sum.SavedCash,
		envelope: sum.Envelopes[0].Allocated,
		bank:     sum.BankAccounts[0].Balance,
	}
}

// =============================================================================
// ROUTING MATRIX
// =============================================================================

func TestTransfers_Matrix(t *testing.T) {
	free, saved := ledger.FreeCash(), ledger.SavedCash()
	env, bank := ledger.Envelope(1), ledger.BankAccount(1)

	// Every ordered pair of distinct kinds, moving 10 from the seeded state.
	tests := []struct {
		from, to                     ledger.PoolRef
		total, saved, envelope, bank string
	}{
		{free, saved, "100", "50", "30", "50"},
		{free, env, "90", "40", "40", "50"},
		{free, bank, "90", "40", "30", "60"},
		{saved, free, "100", "30", "30", "50"},
		{saved, env, "90", "30", "40", "50"},
		{saved, bank, "90", "30", "30", "60"},
		{env, free, "110", "40", "20", "50"},
		{env, saved, "110", "50", "20", "50"},
		{env, bank, "100", "40", "20", "60"},
		{bank, free, "110", "40", "30", "40"},
		{bank, saved, "110", "50", "30", "40"},
		{bank, env, "100", "40", "40", "40"},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			ctx := context.Background()
			pools, transfers := seededPools(t)
			before := read(t, pools)

			require.NoError(t, transfers.Move(ctx, alice, amt("10"), tt.from, tt.to))

			after := read(t, pools)
			requireAmount(t, tt.total, after.total, "total")
			requireAmount(t, tt.saved, after.saved, "saved")
			requireAmount(t, tt.envelope, after.envelope, "envelope")
			requireAmount(t, tt.bank, after.bank, "bank")

			// THEN: money is conserved and saved stays inside cash on hand
			assert.True(t, before.money().Equal(after.money()), "total money changed")
			assert.True(t, after.saved.LessThanOrEqual(after.total))

			// AND: Reverse restores the seeded state exactly
			require.NoError(t, transfers.Reverse(ctx, alice, amt("10"), tt.from, tt.to))
			assert.Equal(t, before.money().String(), read(t, pools).money().String())
			requireAmount(t, "40", read(t, pools).saved)
		})
	}
}

func TestTransfers_SamePool_Rejected(t *testing.T) {
	ctx := context.Background()
	_, transfers := seededPools(t)

	for _, ref := range []ledger.PoolRef{ledger.FreeCash(), ledger.SavedCash(), ledger.Envelope(1), ledger.BankAccount(1)} {
		err := transfers.Move(ctx, alice, amt("5"), ref, ref)
		assert.ErrorIs(t, err, ledger.ErrNoOpTransfer, ref.String())
	}
}

func TestTransfers_BetweenTwoEnvelopes(t *testing.T) {
	ctx := context.Background()
	pools, transfers := seededPools(t)

	second := &ledger.EnvelopeRecord{UserID: alice, Name: "Rent"}
	require.NoError(t, pools.Store.CreateEnvelope(ctx, second))

	require.NoError(t, transfers.Move(ctx, alice, amt("12.50"), ledger.Envelope(1), ledger.Envelope(second.ID)))

	first, err := pools.EnvelopeAllocated(ctx, alice, 1)
	require.NoError(t, err)
	requireAmount(t, "17.50", first)
	other, err := pools.EnvelopeAllocated(ctx, alice, second.ID)
	require.NoError(t, err)
	requireAmount(t, "12.50", other)
}

// =============================================================================
// FAILURES LEAVE POOLS UNTOUCHED
// =============================================================================

func TestTransfers_FreeCashDebit_GuardedBySavedCash(t *testing.T) {
	// GIVEN: 100 on hand, 40 of it saved, so 60 unassigned
	// WHEN: moving 70 out of free cash
	// THEN: rejected with the unassigned amount as available; nothing moves
	ctx := context.Background()
	pools, transfers := seededPools(t)
	before := read(t, pools)

	err := transfers.Move(ctx, alice, amt("70"), ledger.FreeCash(), ledger.Envelope(1))

	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	var fundsErr *ledger.InsufficientFundsError
	require.ErrorAs(t, err, &fundsErr)
	assert.Equal(t, ledger.FreeCash(), fundsErr.Pool)
	requireAmount(t, "60", fundsErr.Available)
	requireAmount(t, "10", fundsErr.Shortfall())
	assert.Equal(t, before, read(t, pools))
}

func TestTransfers_InsufficientSource(t *testing.T) {
	tests := []struct {
		name     string
		from, to ledger.PoolRef
		amount   string
	}{
		{"free to saved beyond unassigned", ledger.FreeCash(), ledger.SavedCash(), "60.01"},
		{"saved beyond saved", ledger.SavedCash(), ledger.BankAccount(1), "41"},
		{"envelope beyond allocated", ledger.Envelope(1), ledger.FreeCash(), "31"},
		{"bank beyond balance", ledger.BankAccount(1), ledger.Envelope(1), "50.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			pools, transfers := seededPools(t)
			before := read(t, pools)

			err := transfers.Move(ctx, alice, amt(tt.amount), tt.from, tt.to)

			assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
			assert.Equal(t, before, read(t, pools))
		})
	}
}

func TestTransfers_MissingDestination_NothingDebited(t *testing.T) {
	ctx := context.Background()
	pools, transfers := seededPools(t)
	before := read(t, pools)

	err := transfers.Move(ctx, alice, amt("10"), ledger.BankAccount(1), ledger.Envelope(42))

	assert.ErrorIs(t, err, ledger.ErrPoolNotFound)
	var pnf *ledger.PoolNotFoundError
	require.ErrorAs(t, err, &pnf)
	assert.Equal(t, ledger.Envelope(42), pnf.Pool)
	assert.Equal(t, before, read(t, pools))
}

func TestTransfers_OtherUsersPool_NotFound(t *testing.T) {
	ctx := context.Background()
	_, transfers := seededPools(t)

	err := transfers.Move(ctx, bob, amt("1"), ledger.BankAccount(1), ledger.FreeCash())
	assert.ErrorIs(t, err, ledger.ErrPoolNotFound)
}

func TestTransfers_InvalidAmount(t *testing.T) {
	ctx := context.Background()
	_, transfers := seededPools(t)

	for _, a := range []string{"0", "-5"} {
		err := transfers.Move(ctx, alice, amt(a), ledger.BankAccount(1), ledger.FreeCash())
		assert.ErrorIs(t, err, ledger.ErrInvalidAmount, a)
		assert.True(t, ledger.IsClientError(err))
	}
}
