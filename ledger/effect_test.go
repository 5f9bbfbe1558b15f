package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pocket-ledger/ledger"
)

func TestEffects_ApplyThenRevert_RestoresPools(t *testing.T) {
	refs := []ledger.PoolRef{ledger.FreeCash(), ledger.SavedCash(), ledger.Envelope(1), ledger.BankAccount(1)}

	for _, kind := range []ledger.EntryKind{ledger.EntryExpense, ledger.EntryIncome} {
		for _, ref := range refs {
			t.Run(string(kind)+"/"+ref.String(), func(t *testing.T) {
				ctx := context.Background()
				pools, _ := seededPools(t)
				effects := ledger.NewEffects(pools)
				before := read(t, pools)

				entry := ledger.Entry{UserID: alice, Kind: kind, Amount: amt("25"), Pool: ref}
				require.NoError(t, effects.Apply(ctx, entry))
				assert.NotEqual(t, before.money().String(), read(t, pools).money().String())

				require.NoError(t, effects.Revert(ctx, entry))
				after := read(t, pools)
				requireAmount(t, before.total.String(), after.total)
				requireAmount(t, before.saved.String(), after.saved)
				requireAmount(t, before.envelope.String(), after.envelope)
				requireAmount(t, before.bank.String(), after.bank)
			})
		}
	}
}

func TestEffects_Expense(t *testing.T) {
	tests := []struct {
		source                       ledger.PoolRef
		total, saved, envelope, bank string
	}{
		{ledger.FreeCash(), "80", "40", "30", "50"},
		// Saved cash lives inside cash on hand, so both drop.
		{ledger.SavedCash(), "80", "20", "30", "50"},
		{ledger.Envelope(1), "100", "40", "10", "50"},
		{ledger.BankAccount(1), "100", "40", "30", "30"},
	}

	for _, tt := range tests {
		t.Run(tt.source.String(), func(t *testing.T) {
			ctx := context.Background()
			pools, _ := seededPools(t)
			effects := ledger.NewEffects(pools)

			require.NoError(t, effects.ApplyExpenseEffect(ctx, alice, amt("20"), tt.source))

			after := read(t, pools)
			requireAmount(t, tt.total, after.total)
			requireAmount(t, tt.saved, after.saved)
			requireAmount(t, tt.envelope, after.envelope)
			requireAmount(t, tt.bank, after.bank)
		})
	}
}

func TestEffects_Income(t *testing.T) {
	tests := []struct {
		sink                         ledger.PoolRef
		total, saved, envelope, bank string
	}{
		{ledger.FreeCash(), "120", "40", "30", "50"},
		{ledger.SavedCash(), "120", "60", "30", "50"},
		{ledger.Envelope(1), "100", "40", "50", "50"},
		{ledger.BankAccount(1), "100", "40", "30", "70"},
	}

	for _, tt := range tests {
		t.Run(tt.sink.String(), func(t *testing.T) {
			ctx := context.Background()
			pools, _ := seededPools(t)
			effects := ledger.NewEffects(pools)

			require.NoError(t, effects.ApplyIncomeEffect(ctx, alice, amt("20"), tt.sink))

			after := read(t, pools)
			requireAmount(t, tt.total, after.total)
			requireAmount(t, tt.saved, after.saved)
			requireAmount(t, tt.envelope, after.envelope)
			requireAmount(t, tt.bank, after.bank)
		})
	}
}

func TestEffects_ExpenseFromFreeCash_CannotSpendSavedPart(t *testing.T) {
	ctx := context.Background()
	pools, _ := seededPools(t)
	effects := ledger.NewEffects(pools)
	before := read(t, pools)

	err := effects.ApplyExpenseEffect(ctx, alice, amt("61"), ledger.FreeCash())

	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Equal(t, before, read(t, pools))
}

func TestEffects_RevertIncome_FailsWhenMoneyAlreadySpent(t *testing.T) {
	// GIVEN: the bank account only holds 50
	// WHEN: reverting an income of 80 into it
	// THEN: rejected rather than going negative
	ctx := context.Background()
	pools, _ := seededPools(t)
	effects := ledger.NewEffects(pools)

	err := effects.RevertIncomeEffect(ctx, alice, amt("80"), ledger.BankAccount(1))

	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	bank, err := pools.BankBalance(ctx, alice, 1)
	require.NoError(t, err)
	requireAmount(t, "50", bank)
}

func TestEffects_UnknownEntryKind(t *testing.T) {
	ctx := context.Background()
	pools, _ := seededPools(t)
	effects := ledger.NewEffects(pools)

	err := effects.Apply(ctx, ledger.Entry{UserID: alice, Kind: ledger.EntryTransfer, Amount: amt("1"), Pool: ledger.FreeCash()})
	assert.ErrorIs(t, err, ledger.ErrUnknownEntryKind)
}
