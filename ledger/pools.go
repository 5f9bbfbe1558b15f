package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// POOLS - Primitive add/sub over a PoolStore
// =============================================================================

// Pools applies exact deltas to pool amounts. Every Sub validates that the
// pool holds at least the requested amount; nothing is ever clamped.
type Pools struct {
	Store PoolStore
}

func NewPools(store PoolStore) *Pools {
	return &Pools{Store: store}
}

func checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount.String())
	}
	return nil
}

func insufficient(userID UserID, pool PoolRef, available, requested decimal.Decimal) error {
	return &InsufficientFundsError{
		UserID:    userID,
		Pool:      pool,
		Available: available,
		Requested: requested,
	}
}

// notFound upgrades a store's bare ErrPoolNotFound into a PoolNotFoundError.
func notFound(userID UserID, pool PoolRef, err error) error {
	if errors.Is(err, ErrPoolNotFound) {
		var pnf *PoolNotFoundError
		if errors.As(err, &pnf) {
			return err
		}
		return &PoolNotFoundError{UserID: userID, Pool: pool}
	}
	return err
}

// -----------------------------------------------------------------------------
// Free cash
// -----------------------------------------------------------------------------

func (p *Pools) FreeCash(ctx context.Context, userID UserID) (decimal.Decimal, error) {
	return p.Store.CashOnHand(ctx, userID)
}

func (p *Pools) AddFreeCash(ctx context.Context, userID UserID, amount decimal.Decimal) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	total, err := p.Store.CashOnHand(ctx, userID)
	if err != nil {
		return err
	}
	return p.Store.SetCashOnHand(ctx, userID, total.Add(amount))
}

// SubFreeCash fails when amount exceeds the cash-on-hand total. It does not
// look at saved cash; see SubUnassigned for the guarded debit.
func (p *Pools) SubFreeCash(ctx context.Context, userID UserID, amount decimal.Decimal) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	total, err := p.Store.CashOnHand(ctx, userID)
	if err != nil {
		return err
	}
	if amount.GreaterThan(total) {
		return insufficient(userID, FreeCash(), total, amount)
	}
	return p.Store.SetCashOnHand(ctx, userID, total.Sub(amount))
}

// Unassigned is cash on hand not earmarked as saved.
func (p *Pools) Unassigned(ctx context.Context, userID UserID) (decimal.Decimal, error) {
	total, err := p.Store.CashOnHand(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	saved, err := p.Store.SavedCash(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Sub(saved), nil
}

// SubUnassigned debits cash on hand, but only from the part that is not
// saved. This is the debit rule for every FreeCash source.
func (p *Pools) SubUnassigned(ctx context.Context, userID UserID, amount decimal.Decimal) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	unassigned, err := p.Unassigned(ctx, userID)
	if err != nil {
		return err
	}
	if amount.GreaterThan(unassigned) {
		return insufficient(userID, FreeCash(), unassigned, amount)
	}
	return p.SubFreeCash(ctx, userID, amount)
}

// -----------------------------------------------------------------------------
// Saved cash
// -----------------------------------------------------------------------------

func (p *Pools) SavedCash(ctx context.Context, userID UserID) (decimal.Decimal, error) {
	return p.Store.SavedCash(ctx, userID)
}

func (p *Pools) AddSaved(ctx context.Context, userID UserID, amount decimal.Decimal) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	saved, err := p.Store.SavedCash(ctx, userID)
	if err != nil {
		return err
	}
	return p.Store.SetSavedCash(ctx, userID, saved.Add(amount))
}

func (p *Pools) SubSaved(ctx context.Context, userID UserID, amount decimal.Decimal) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	saved, err := p.Store.SavedCash(ctx, userID)
	if err != nil {
		return err
	}
	if amount.GreaterThan(saved) {
		return insufficient(userID, SavedCash(), saved, amount)
	}
	return p.Store.SetSavedCash(ctx, userID, saved.Sub(amount))
}

// -----------------------------------------------------------------------------
// Bank accounts
// -----------------------------------------------------------------------------

func (p *Pools) BankBalance(ctx context.Context, userID UserID, accountID int64) (decimal.Decimal, error) {
	acct, err := p.Store.BankAccount(ctx, userID, accountID)
	if err != nil {
		return decimal.Zero, notFound(userID, BankAccount(accountID), err)
	}
	return acct.Balance, nil
}

func (p *Pools) AddBank(ctx context.Context, userID UserID, accountID int64, amount decimal.Decimal) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	balance, err := p.BankBalance(ctx, userID, accountID)
	if err != nil {
		return err
	}
	return p.Store.SetBankBalance(ctx, userID, accountID, balance.Add(amount))
}

func (p *Pools) SubBank(ctx context.Context, userID UserID, accountID int64, amount decimal.Decimal) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	balance, err := p.BankBalance(ctx, userID, accountID)
	if err != nil {
		return err
	}
	if amount.GreaterThan(balance) {
		return insufficient(userID, BankAccount(accountID), balance, amount)
	}
	return p.Store.SetBankBalance(ctx, userID, accountID, balance.Sub(amount))
}

// -----------------------------------------------------------------------------
// Envelopes
// -----------------------------------------------------------------------------

func (p *Pools) EnvelopeAllocated(ctx context.Context, userID UserID, envelopeID int64) (decimal.Decimal, error) {
	env, err := p.Store.Envelope(ctx, userID, envelopeID)
	if err != nil {
		return decimal.Zero, notFound(userID, Envelope(envelopeID), err)
	}
	return env.Allocated, nil
}

func (p *Pools) AddEnvelopeAllocated(ctx context.Context, userID UserID, envelopeID int64, amount decimal.Decimal) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	allocated, err := p.EnvelopeAllocated(ctx, userID, envelopeID)
	if err != nil {
		return err
	}
	return p.Store.SetEnvelopeAllocated(ctx, userID, envelopeID, allocated.Add(amount))
}

func (p *Pools) SubEnvelopeAllocated(ctx context.Context, userID UserID, envelopeID int64, amount decimal.Decimal) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	allocated, err := p.EnvelopeAllocated(ctx, userID, envelopeID)
	if err != nil {
		return err
	}
	if amount.GreaterThan(allocated) {
		return insufficient(userID, Envelope(envelopeID), allocated, amount)
	}
	return p.Store.SetEnvelopeAllocated(ctx, userID, envelopeID, allocated.Sub(amount))
}

// =============================================================================
// KIND DISPATCH
// =============================================================================

// Balance reads the amount of any pool. For FreeCash this is the total,
// not the unassigned part.
func (p *Pools) Balance(ctx context.Context, userID UserID, ref PoolRef) (decimal.Decimal, error) {
	ref, err := ref.Normalize()
	if err != nil {
		return decimal.Zero, err
	}
	switch ref.Kind {
	case KindFreeCash:
		return p.FreeCash(ctx, userID)
	case KindSavedCash:
		return p.SavedCash(ctx, userID)
	case KindEnvelope:
		return p.EnvelopeAllocated(ctx, userID, ref.ID)
	default:
		return p.BankBalance(ctx, userID, ref.ID)
	}
}

// Summary reads every pool of the user.
func (p *Pools) Summary(ctx context.Context, userID UserID) (Summary, error) {
	total, err := p.FreeCash(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	saved, err := p.SavedCash(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	envelopes, err := p.Store.ListEnvelopes(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	accounts, err := p.Store.ListBankAccounts(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		UserID:        userID,
		FreeCashTotal: total,
		SavedCash:     saved,
		Unassigned:    total.Sub(saved),
		Envelopes:     envelopes,
		BankAccounts:  accounts,
	}, nil
}

// Coverage compares the sum of envelope allocations against saved cash.
func (p *Pools) Coverage(ctx context.Context, userID UserID) (Coverage, error) {
	saved, err := p.SavedCash(ctx, userID)
	if err != nil {
		return Coverage{}, err
	}
	envelopes, err := p.Store.ListEnvelopes(ctx, userID)
	if err != nil {
		return Coverage{}, err
	}
	allocated := decimal.Zero
	for _, e := range envelopes {
		allocated = allocated.Add(e.Allocated)
	}
	c := Coverage{SavedCash: saved, Allocated: allocated, Shortfall: decimal.Zero, Covered: true}
	if allocated.GreaterThan(saved) {
		c.Covered = false
		c.Shortfall = allocated.Sub(saved)
	}
	return c, nil
}
