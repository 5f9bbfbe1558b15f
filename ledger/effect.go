package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// spendRoutes take money out of a pool, indexed by the pool's kind.
// Spending saved cash lowers cash on hand as well, since saved cash is a
// label inside it.
var spendRoutes = [4]route{
	KindFreeCash:    {debit: []step{stepUnassigned}},
	KindSavedCash:   {debit: []step{stepSaved, stepCash}},
	KindEnvelope:    {debit: []step{stepPool}},
	KindBankAccount: {debit: []step{stepPool}},
}

// receiveRoutes put money into a pool. Each is the exact inverse of the
// spendRoutes entry for the same kind.
var receiveRoutes = [4]route{
	KindFreeCash:    {credit: []step{stepCash}},
	KindSavedCash:   {credit: []step{stepCash, stepSaved}},
	KindEnvelope:    {credit: []step{stepPool}},
	KindBankAccount: {credit: []step{stepPool}},
}

// Effects turns expenses and incomes into pool mutations. It knows nothing
// about planned entries: callers apply only realized entries and revert
// exactly once per earlier apply.
type Effects struct {
	Pools *Pools
}

func NewEffects(pools *Pools) *Effects {
	return &Effects{Pools: pools}
}

func (e *Effects) ApplyExpenseEffect(ctx context.Context, userID UserID, amount decimal.Decimal, source PoolRef) error {
	return e.spend(ctx, userID, amount, source)
}

func (e *Effects) RevertExpenseEffect(ctx context.Context, userID UserID, amount decimal.Decimal, source PoolRef) error {
	return e.receive(ctx, userID, amount, source)
}

func (e *Effects) ApplyIncomeEffect(ctx context.Context, userID UserID, amount decimal.Decimal, sink PoolRef) error {
	return e.receive(ctx, userID, amount, sink)
}

func (e *Effects) RevertIncomeEffect(ctx context.Context, userID UserID, amount decimal.Decimal, sink PoolRef) error {
	return e.spend(ctx, userID, amount, sink)
}

// Apply dispatches on the entry kind.
func (e *Effects) Apply(ctx context.Context, entry Entry) error {
	switch entry.Kind {
	case EntryExpense:
		return e.ApplyExpenseEffect(ctx, entry.UserID, entry.Amount, entry.Pool)
	case EntryIncome:
		return e.ApplyIncomeEffect(ctx, entry.UserID, entry.Amount, entry.Pool)
	}
	return fmt.Errorf("%w: %q", ErrUnknownEntryKind, entry.Kind)
}

// Revert undoes Apply for the same entry values.
func (e *Effects) Revert(ctx context.Context, entry Entry) error {
	switch entry.Kind {
	case EntryExpense:
		return e.RevertExpenseEffect(ctx, entry.UserID, entry.Amount, entry.Pool)
	case EntryIncome:
		return e.RevertIncomeEffect(ctx, entry.UserID, entry.Amount, entry.Pool)
	}
	return fmt.Errorf("%w: %q", ErrUnknownEntryKind, entry.Kind)
}

func (e *Effects) spend(ctx context.Context, userID UserID, amount decimal.Decimal, ref PoolRef) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	ref, err := ref.Normalize()
	if err != nil {
		return err
	}
	return e.Pools.run(ctx, userID, spendRoutes[ref.Kind], amount, ref, ref)
}

func (e *Effects) receive(ctx context.Context, userID UserID, amount decimal.Decimal, ref PoolRef) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	ref, err := ref.Normalize()
	if err != nil {
		return err
	}
	return e.Pools.run(ctx, userID, receiveRoutes[ref.Kind], amount, ref, ref)
}
