/*
engine.go - Create/update/delete state machine for ledger entries

PURPOSE:
  The Engine is the only entry point callers use to change money. Each
  operation runs inside one TxStore.WithTx, so the entry row and its pool
  effect commit together or not at all.

STATES:
  Planned   exists, no balance effect
  Realized  its effect has been applied to pools exactly once

TRANSITIONS:
  Create    persist; apply if realized
  Update    read persisted row; revert if it was realized; persist merged
            values; apply if the new state is realized. An update may
            realize a planned entry but never plans a realized one
  Delete    read persisted row; revert if realized; delete
  Realize   planned -> realized; apply once
  Unrealize realized -> planned; revert once, no apply

READ BEFORE MUTATE:
  Update and Delete never trust the caller's copy of an entry. The effect
  that is live against the pools is whatever was last persisted, so that
  is what gets reverted.

EXAMPLE:
  eng := ledger.NewEngine(store)
  exp, err := eng.CreateExpense(ctx, ledger.EntryInput{
      UserID: 1,
      Amount: decimal.NewFromInt(30),
      Pool:   ledger.BankAccount(7),
  })
  // account 7 is now 30 lower
  _, err = eng.UpdateExpense(ctx, 1, exp.ID, ledger.EntryPatch{Amount: &fifty})
  // reverted +30, applied -50
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUTS
// =============================================================================

// EntryInput creates an expense or an income. A zero Date means now.
type EntryInput struct {
	UserID      UserID
	Amount      decimal.Decimal
	Date        time.Time
	Description string
	CategoryID  *int64
	Planned     bool
	Pool        PoolRef
}

// EntryPatch changes some fields of an expense or income. Nil fields keep
// their persisted value. ClearCategory removes the category.
type EntryPatch struct {
	Amount        *decimal.Decimal
	Date          *time.Time
	Description   *string
	CategoryID    *int64
	ClearCategory bool
	Planned       *bool
	Pool          *PoolRef
}

// TransferInput creates a transfer. A zero Date means now.
type TransferInput struct {
	UserID      UserID
	Amount      decimal.Decimal
	Date        time.Time
	Description string
	Planned     bool
	From        PoolRef
	To          PoolRef
}

// TransferPatch changes some fields of a transfer.
type TransferPatch struct {
	Amount      *decimal.Decimal
	Date        *time.Time
	Description *string
	Planned     *bool
	From        *PoolRef
	To          *PoolRef
}

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	Store TxStore
	Now   func() time.Time
}

func NewEngine(store TxStore) *Engine {
	return &Engine{Store: store, Now: time.Now}
}

// session bundles the components bound to one storage transaction.
type session struct {
	store     Store
	pools     *Pools
	effects   *Effects
	transfers *Transfers
}

func newSession(store Store) *session {
	pools := NewPools(store)
	return &session{
		store:     store,
		pools:     pools,
		effects:   NewEffects(pools),
		transfers: NewTransfers(pools),
	}
}

func (en *Engine) withTx(ctx context.Context, fn func(s *session) error) error {
	return en.Store.WithTx(ctx, func(store Store) error {
		return fn(newSession(store))
	})
}

func (en *Engine) dateOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return en.Now().UTC()
	}
	return t
}

// =============================================================================
// EXPENSES AND INCOMES
// =============================================================================

func (en *Engine) CreateExpense(ctx context.Context, in EntryInput) (Entry, error) {
	return en.createEntry(ctx, EntryExpense, in)
}

func (en *Engine) CreateIncome(ctx context.Context, in EntryInput) (Entry, error) {
	return en.createEntry(ctx, EntryIncome, in)
}

func (en *Engine) UpdateExpense(ctx context.Context, userID UserID, id EntryID, patch EntryPatch) (Entry, error) {
	return en.updateEntry(ctx, EntryExpense, userID, id, patch)
}

func (en *Engine) UpdateIncome(ctx context.Context, userID UserID, id EntryID, patch EntryPatch) (Entry, error) {
	return en.updateEntry(ctx, EntryIncome, userID, id, patch)
}

func (en *Engine) createEntry(ctx context.Context, kind EntryKind, in EntryInput) (Entry, error) {
	entry := Entry{
		UserID:      in.UserID,
		Kind:        kind,
		Amount:      in.Amount,
		Date:        en.dateOrNow(in.Date),
		Description: in.Description,
		Planned:     in.Planned,
		Pool:        in.Pool,
	}
	if in.CategoryID != nil {
		id := *in.CategoryID
		entry.CategoryID = &id
	}

	err := en.withTx(ctx, func(s *session) error {
		var err error
		if entry, err = s.validateEntry(ctx, entry); err != nil {
			return err
		}
		if err := s.store.InsertEntry(ctx, &entry); err != nil {
			return err
		}
		if entry.Realized() {
			return s.effects.Apply(ctx, entry)
		}
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (en *Engine) updateEntry(ctx context.Context, kind EntryKind, userID UserID, id EntryID, patch EntryPatch) (Entry, error) {
	var updated Entry
	err := en.withTx(ctx, func(s *session) error {
		prev, err := s.store.GetEntry(ctx, kind, userID, id)
		if err != nil {
			return err
		}
		if err := checkReplan(prev.Realized(), patch.Planned); err != nil {
			return err
		}
		if prev.Realized() {
			if err := s.effects.Revert(ctx, prev); err != nil {
				return err
			}
		}

		next, err := s.validateEntry(ctx, patch.merge(prev))
		if err != nil {
			return err
		}
		if err := s.store.UpdateEntry(ctx, next); err != nil {
			return err
		}
		if next.Realized() {
			if err := s.effects.Apply(ctx, next); err != nil {
				return err
			}
		}
		updated = next
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	return updated, nil
}

// checkReplan refuses an update that would turn a realized entry back into a
// planned one. That transition belongs to Unrealize.
func checkReplan(realized bool, planned *bool) error {
	if realized && planned != nil && *planned {
		return fmt.Errorf("%w: use unrealize to plan it again", ErrAlreadyRealized)
	}
	return nil
}

func (p EntryPatch) merge(e Entry) Entry {
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.ClearCategory {
		e.CategoryID = nil
	} else if p.CategoryID != nil {
		id := *p.CategoryID
		e.CategoryID = &id
	}
	if p.Planned != nil {
		e.Planned = *p.Planned
	}
	if p.Pool != nil {
		e.Pool = *p.Pool
	}
	return e
}

// validateEntry checks the amount and the pool reference, and that an
// addressed pool exists for the user even when the entry is planned.
func (s *session) validateEntry(ctx context.Context, e Entry) (Entry, error) {
	if err := checkAmount(e.Amount); err != nil {
		return Entry{}, err
	}
	pool, err := e.Pool.Normalize()
	if err != nil {
		return Entry{}, err
	}
	if pool.Kind.NeedsID() {
		if _, err := s.pools.Balance(ctx, e.UserID, pool); err != nil {
			return Entry{}, err
		}
	}
	e.Pool = pool
	return e, nil
}

// =============================================================================
// TRANSFERS
// =============================================================================

func (en *Engine) CreateTransfer(ctx context.Context, in TransferInput) (Transfer, error) {
	t := Transfer{
		UserID:      in.UserID,
		Amount:      in.Amount,
		Date:        en.dateOrNow(in.Date),
		Description: in.Description,
		Planned:     in.Planned,
		From:        in.From,
		To:          in.To,
	}

	err := en.withTx(ctx, func(s *session) error {
		var err error
		if t, err = s.validateTransfer(ctx, t); err != nil {
			return err
		}
		if err := s.store.InsertTransfer(ctx, &t); err != nil {
			return err
		}
		if t.Realized() {
			return s.transfers.Move(ctx, t.UserID, t.Amount, t.From, t.To)
		}
		return nil
	})
	if err != nil {
		return Transfer{}, err
	}
	return t, nil
}

// TransferAny moves amount between two pools right now and records it as a
// realized transfer.
func (en *Engine) TransferAny(ctx context.Context, userID UserID, amount decimal.Decimal, from, to PoolRef) (EntryID, error) {
	t, err := en.CreateTransfer(ctx, TransferInput{
		UserID: userID,
		Amount: amount,
		From:   from,
		To:     to,
	})
	if err != nil {
		return 0, err
	}
	return t.ID, nil
}

func (en *Engine) UpdateTransfer(ctx context.Context, userID UserID, id EntryID, patch TransferPatch) (Transfer, error) {
	var updated Transfer
	err := en.withTx(ctx, func(s *session) error {
		prev, err := s.store.GetTransfer(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := checkReplan(prev.Realized(), patch.Planned); err != nil {
			return err
		}
		if prev.Realized() {
			if err := s.transfers.Reverse(ctx, prev.UserID, prev.Amount, prev.From, prev.To); err != nil {
				return err
			}
		}

		next, err := s.validateTransfer(ctx, patch.merge(prev))
		if err != nil {
			return err
		}
		if err := s.store.UpdateTransfer(ctx, next); err != nil {
			return err
		}
		if next.Realized() {
			if err := s.transfers.Move(ctx, next.UserID, next.Amount, next.From, next.To); err != nil {
				return err
			}
		}
		updated = next
		return nil
	})
	if err != nil {
		return Transfer{}, err
	}
	return updated, nil
}

func (p TransferPatch) merge(t Transfer) Transfer {
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Planned != nil {
		t.Planned = *p.Planned
	}
	if p.From != nil {
		t.From = *p.From
	}
	if p.To != nil {
		t.To = *p.To
	}
	return t
}

func (s *session) validateTransfer(ctx context.Context, t Transfer) (Transfer, error) {
	if err := checkAmount(t.Amount); err != nil {
		return Transfer{}, err
	}
	from, err := t.From.Normalize()
	if err != nil {
		return Transfer{}, err
	}
	to, err := t.To.Normalize()
	if err != nil {
		return Transfer{}, err
	}
	if from.SamePool(to) {
		return Transfer{}, ErrNoOpTransfer
	}
	for _, ref := range []PoolRef{from, to} {
		if ref.Kind.NeedsID() {
			if _, err := s.pools.Balance(ctx, t.UserID, ref); err != nil {
				return Transfer{}, err
			}
		}
	}
	t.From, t.To = from, to
	return t, nil
}

// =============================================================================
// DELETE AND LIFECYCLE TRANSITIONS
// =============================================================================

// DeleteEntry reverts the entry's effect if it is realized, then removes it.
func (en *Engine) DeleteEntry(ctx context.Context, userID UserID, kind EntryKind, id EntryID) error {
	return en.withTx(ctx, func(s *session) error {
		switch kind {
		case EntryExpense, EntryIncome:
			prev, err := s.store.GetEntry(ctx, kind, userID, id)
			if err != nil {
				return err
			}
			if prev.Realized() {
				if err := s.effects.Revert(ctx, prev); err != nil {
					return err
				}
			}
			return s.store.DeleteEntry(ctx, kind, userID, id)

		case EntryTransfer:
			prev, err := s.store.GetTransfer(ctx, userID, id)
			if err != nil {
				return err
			}
			if prev.Realized() {
				if err := s.transfers.Reverse(ctx, prev.UserID, prev.Amount, prev.From, prev.To); err != nil {
					return err
				}
			}
			return s.store.DeleteTransfer(ctx, userID, id)
		}
		return fmt.Errorf("%w: %q", ErrUnknownEntryKind, kind)
	})
}

// Realize turns a planned entry into a realized one and applies its effect.
func (en *Engine) Realize(ctx context.Context, userID UserID, kind EntryKind, id EntryID) error {
	return en.setPlanned(ctx, userID, kind, id, false)
}

// Unrealize turns a realized entry back into a planned one. Its effect is
// reverted and nothing is applied.
func (en *Engine) Unrealize(ctx context.Context, userID UserID, kind EntryKind, id EntryID) error {
	return en.setPlanned(ctx, userID, kind, id, true)
}

func (en *Engine) setPlanned(ctx context.Context, userID UserID, kind EntryKind, id EntryID, planned bool) error {
	stateErr := ErrAlreadyRealized
	if planned {
		stateErr = ErrNotRealized
	}

	return en.withTx(ctx, func(s *session) error {
		switch kind {
		case EntryExpense, EntryIncome:
			e, err := s.store.GetEntry(ctx, kind, userID, id)
			if err != nil {
				return err
			}
			if e.Planned == planned {
				return fmt.Errorf("%w: %s %d", stateErr, kind, id)
			}
			e.Planned = planned
			if planned {
				if err := s.effects.Revert(ctx, e); err != nil {
					return err
				}
				return s.store.UpdateEntry(ctx, e)
			}
			if err := s.store.UpdateEntry(ctx, e); err != nil {
				return err
			}
			return s.effects.Apply(ctx, e)

		case EntryTransfer:
			t, err := s.store.GetTransfer(ctx, userID, id)
			if err != nil {
				return err
			}
			if t.Planned == planned {
				return fmt.Errorf("%w: %s %d", stateErr, kind, id)
			}
			t.Planned = planned
			if planned {
				if err := s.transfers.Reverse(ctx, t.UserID, t.Amount, t.From, t.To); err != nil {
					return err
				}
				return s.store.UpdateTransfer(ctx, t)
			}
			if err := s.store.UpdateTransfer(ctx, t); err != nil {
				return err
			}
			return s.transfers.Move(ctx, t.UserID, t.Amount, t.From, t.To)
		}
		return fmt.Errorf("%w: %q", ErrUnknownEntryKind, kind)
	})
}

// =============================================================================
// POOL ADMINISTRATION
// =============================================================================

// OpenEnvelope creates an empty envelope with a savings target.
func (en *Engine) OpenEnvelope(ctx context.Context, userID UserID, name string, target decimal.Decimal) (EnvelopeRecord, error) {
	if target.IsNegative() {
		return EnvelopeRecord{}, fmt.Errorf("%w: target %s", ErrInvalidAmount, target.String())
	}
	env := EnvelopeRecord{UserID: userID, Name: name, Target: target, Allocated: decimal.Zero}
	if err := en.Store.CreateEnvelope(ctx, &env); err != nil {
		return EnvelopeRecord{}, err
	}
	return env, nil
}

// OpenBankAccount creates an account with an opening balance.
func (en *Engine) OpenBankAccount(ctx context.Context, userID UserID, name, currency string, opening decimal.Decimal) (BankAccountRecord, error) {
	if opening.IsNegative() {
		return BankAccountRecord{}, fmt.Errorf("%w: opening balance %s", ErrInvalidAmount, opening.String())
	}
	acct := BankAccountRecord{UserID: userID, Name: name, Currency: currency, Balance: opening}
	if err := en.Store.CreateBankAccount(ctx, &acct); err != nil {
		return BankAccountRecord{}, err
	}
	return acct, nil
}

// =============================================================================
// READERS
// =============================================================================

func (en *Engine) pools() *Pools { return NewPools(en.Store) }

func (en *Engine) FreeCash(ctx context.Context, userID UserID) (decimal.Decimal, error) {
	return en.pools().FreeCash(ctx, userID)
}

func (en *Engine) SavedCash(ctx context.Context, userID UserID) (decimal.Decimal, error) {
	return en.pools().SavedCash(ctx, userID)
}

func (en *Engine) Unassigned(ctx context.Context, userID UserID) (decimal.Decimal, error) {
	return en.pools().Unassigned(ctx, userID)
}

func (en *Engine) EnvelopeAllocated(ctx context.Context, userID UserID, envelopeID int64) (decimal.Decimal, error) {
	return en.pools().EnvelopeAllocated(ctx, userID, envelopeID)
}

func (en *Engine) BankBalance(ctx context.Context, userID UserID, accountID int64) (decimal.Decimal, error) {
	return en.pools().BankBalance(ctx, userID, accountID)
}

func (en *Engine) Summary(ctx context.Context, userID UserID) (Summary, error) {
	return en.pools().Summary(ctx, userID)
}

// EnvelopeCoverage reports whether envelope allocations exceed saved cash.
// It never changes anything.
func (en *Engine) EnvelopeCoverage(ctx context.Context, userID UserID) (Coverage, error) {
	return en.pools().Coverage(ctx, userID)
}

func (en *Engine) GetEntry(ctx context.Context, kind EntryKind, userID UserID, id EntryID) (Entry, error) {
	return en.Store.GetEntry(ctx, kind, userID, id)
}

func (en *Engine) ListEntries(ctx context.Context, kind EntryKind, userID UserID, filter EntryFilter) ([]Entry, error) {
	return en.Store.ListEntries(ctx, kind, userID, filter)
}

func (en *Engine) GetTransfer(ctx context.Context, userID UserID, id EntryID) (Transfer, error) {
	return en.Store.GetTransfer(ctx, userID, id)
}

func (en *Engine) ListTransfers(ctx context.Context, userID UserID, filter EntryFilter) ([]Transfer, error) {
	return en.Store.ListTransfers(ctx, userID, filter)
}
