/*
transfer.go - Moving money between any two pools

PURPOSE:
  Debits one pool and credits another for every combination of the four
  pool kinds. The per-pair behaviour is a lookup in transferRoutes, a 4x4
  matrix; it is never inferred from the kind labels.

KIND RULES:
  FreeCash debit   requires amount <= FreeCashTotal - SavedCash and lowers
                   FreeCashTotal.
  SavedCash        is a label inside FreeCashTotal. Free <-> Saved only
                   relabels (FreeCashTotal unchanged). When the other side
                   is an envelope or a bank account, money really leaves or
                   enters cash on hand, so FreeCashTotal moves with SavedCash.
  Envelope         touches only that envelope's Allocated.
  BankAccount      touches only that account's Balance.

CONSERVATION:
  With those rules, FreeCashTotal + sum(Allocated) + sum(Balance) is the
  same before and after every transfer.

FAILURE:
  Every leg is checked before any leg is executed. Callers run Move inside
  TxStore.WithTx as well, so a failure during execution rolls back too.
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ROUTING MATRIX
// =============================================================================

type step int

const (
	// stepUnassigned debits cash on hand, guarded by unassigned free cash.
	stepUnassigned step = iota
	// stepGuardUnassigned only checks unassigned free cash; nothing moves.
	stepGuardUnassigned
	// stepCash moves cash on hand without looking at saved cash.
	stepCash
	stepSaved
	// stepPool moves the envelope or bank account named on that side.
	stepPool
)

type route struct {
	debit  []step
	credit []step
}

// transferRoutes is indexed [from.Kind][to.Kind]. Debit steps run in order
// before credit steps; the ordering keeps SavedCash <= FreeCashTotal true
// between steps.
var transferRoutes = [4][4]route{
	KindFreeCash: {
		KindFreeCash:    {},
		KindSavedCash:   {debit: []step{stepGuardUnassigned}, credit: []step{stepSaved}},
		KindEnvelope:    {debit: []step{stepUnassigned}, credit: []step{stepPool}},
		KindBankAccount: {debit: []step{stepUnassigned}, credit: []step{stepPool}},
	},
	KindSavedCash: {
		KindFreeCash:    {debit: []step{stepSaved}},
		KindSavedCash:   {},
		KindEnvelope:    {debit: []step{stepSaved, stepCash}, credit: []step{stepPool}},
		KindBankAccount: {debit: []step{stepSaved, stepCash}, credit: []step{stepPool}},
	},
	KindEnvelope: {
		KindFreeCash:    {debit: []step{stepPool}, credit: []step{stepCash}},
		KindSavedCash:   {debit: []step{stepPool}, credit: []step{stepCash, stepSaved}},
		KindEnvelope:    {debit: []step{stepPool}, credit: []step{stepPool}},
		KindBankAccount: {debit: []step{stepPool}, credit: []step{stepPool}},
	},
	KindBankAccount: {
		KindFreeCash:    {debit: []step{stepPool}, credit: []step{stepCash}},
		KindSavedCash:   {debit: []step{stepPool}, credit: []step{stepCash, stepSaved}},
		KindEnvelope:    {debit: []step{stepPool}, credit: []step{stepPool}},
		KindBankAccount: {debit: []step{stepPool}, credit: []step{stepPool}},
	},
}

// =============================================================================
// TRANSFER ENGINE
// =============================================================================

// Transfers moves money between pools using the routing matrix.
type Transfers struct {
	Pools *Pools
}

func NewTransfers(pools *Pools) *Transfers {
	return &Transfers{Pools: pools}
}

// Move debits from and credits to. It validates every leg first and mutates
// nothing when any leg would fail.
func (t *Transfers) Move(ctx context.Context, userID UserID, amount decimal.Decimal, from, to PoolRef) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	from, err := from.Normalize()
	if err != nil {
		return err
	}
	to, err = to.Normalize()
	if err != nil {
		return err
	}
	if from.SamePool(to) {
		return ErrNoOpTransfer
	}

	return t.Pools.run(ctx, userID, transferRoutes[from.Kind][to.Kind], amount, from, to)
}

// Reverse undoes a Move of the same amount between the same pools.
func (t *Transfers) Reverse(ctx context.Context, userID UserID, amount decimal.Decimal, from, to PoolRef) error {
	return t.Move(ctx, userID, amount, to, from)
}

// =============================================================================
// STEP EXECUTION - shared with the effect applier
// =============================================================================

// run validates every step of r, then executes debit steps against from
// and credit steps against to.
func (p *Pools) run(ctx context.Context, userID UserID, r route, amount decimal.Decimal, from, to PoolRef) error {
	// Plan: no writes until every leg is known to succeed.
	for _, s := range r.debit {
		if err := p.checkDebit(ctx, userID, s, from, amount); err != nil {
			return err
		}
	}
	for _, s := range r.credit {
		if err := p.checkCredit(ctx, userID, s, to); err != nil {
			return err
		}
	}

	for _, s := range r.debit {
		if err := p.debit(ctx, userID, s, from, amount); err != nil {
			return err
		}
	}
	for _, s := range r.credit {
		if err := p.credit(ctx, userID, s, to, amount); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pools) checkDebit(ctx context.Context, userID UserID, s step, side PoolRef, amount decimal.Decimal) error {
	var (
		available decimal.Decimal
		pool      PoolRef
		err       error
	)
	switch s {
	case stepUnassigned, stepGuardUnassigned:
		pool = FreeCash()
		available, err = p.Unassigned(ctx, userID)
	case stepCash:
		pool = FreeCash()
		available, err = p.FreeCash(ctx, userID)
	case stepSaved:
		pool = SavedCash()
		available, err = p.SavedCash(ctx, userID)
	case stepPool:
		pool = side
		available, err = p.Balance(ctx, userID, side)
	}
	if err != nil {
		return err
	}
	if amount.GreaterThan(available) {
		return insufficient(userID, pool, available, amount)
	}
	return nil
}

func (p *Pools) checkCredit(ctx context.Context, userID UserID, s step, side PoolRef) error {
	if s != stepPool {
		return nil
	}
	_, err := p.Balance(ctx, userID, side)
	return err
}

func (p *Pools) debit(ctx context.Context, userID UserID, s step, side PoolRef, amount decimal.Decimal) error {
	switch s {
	case stepUnassigned:
		return p.SubUnassigned(ctx, userID, amount)
	case stepGuardUnassigned:
		return nil
	case stepCash:
		return p.SubFreeCash(ctx, userID, amount)
	case stepSaved:
		return p.SubSaved(ctx, userID, amount)
	}
	if side.Kind == KindEnvelope {
		return p.SubEnvelopeAllocated(ctx, userID, side.ID, amount)
	}
	return p.SubBank(ctx, userID, side.ID, amount)
}

func (p *Pools) credit(ctx context.Context, userID UserID, s step, side PoolRef, amount decimal.Decimal) error {
	switch s {
	case stepCash:
		return p.AddFreeCash(ctx, userID, amount)
	case stepSaved:
		return p.AddSaved(ctx, userID, amount)
	}
	if side.Kind == KindEnvelope {
		return p.AddEnvelopeAllocated(ctx, userID, side.ID, amount)
	}
	return p.AddBank(ctx, userID, side.ID, amount)
}
