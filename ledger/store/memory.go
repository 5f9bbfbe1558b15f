// Package store provides in-process ledger.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/pocket-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	st *state
}

var _ ledger.TxStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{st: newState()}
}

// state holds every table. It does no locking; Memory locks around it and
// WithTx hands it out directly while holding the write lock.
type state struct {
	cash      map[ledger.UserID]decimal.Decimal
	saved     map[ledger.UserID]decimal.Decimal
	envelopes map[int64]ledger.EnvelopeRecord
	accounts  map[int64]ledger.BankAccountRecord
	entries   map[ledger.EntryKind]map[ledger.EntryID]ledger.Entry
	transfers map[ledger.EntryID]ledger.Transfer
	seq       map[string]int64
}

func newState() *state {
	return &state{
		cash:      make(map[ledger.UserID]decimal.Decimal),
		saved:     make(map[ledger.UserID]decimal.Decimal),
		envelopes: make(map[int64]ledger.EnvelopeRecord),
		accounts:  make(map[int64]ledger.BankAccountRecord),
		entries: map[ledger.EntryKind]map[ledger.EntryID]ledger.Entry{
			ledger.EntryExpense: {},
			ledger.EntryIncome:  {},
		},
		transfers: make(map[ledger.EntryID]ledger.Transfer),
		seq:       make(map[string]int64),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.cash {
		c.cash[k] = v
	}
	for k, v := range s.saved {
		c.saved[k] = v
	}
	for k, v := range s.envelopes {
		c.envelopes[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for kind, rows := range s.entries {
		for k, v := range rows {
			c.entries[kind][k] = v
		}
	}
	for k, v := range s.transfers {
		c.transfers[k] = v
	}
	for k, v := range s.seq {
		c.seq[k] = v
	}
	return c
}

func (s *state) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

// =============================================================================
// TRANSACTIONAL VIEW
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(m.st); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// =============================================================================
// POOLS
// =============================================================================

func (m *Memory) CashOnHand(ctx context.Context, userID ledger.UserID) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.CashOnHand(ctx, userID)
}

func (m *Memory) SetCashOnHand(ctx context.Context, userID ledger.UserID, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SetCashOnHand(ctx, userID, amount)
}

func (m *Memory) SavedCash(ctx context.Context, userID ledger.UserID) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.SavedCash(ctx, userID)
}

func (m *Memory) SetSavedCash(ctx context.Context, userID ledger.UserID, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SetSavedCash(ctx, userID, amount)
}

func (m *Memory) Envelope(ctx context.Context, userID ledger.UserID, id int64) (ledger.EnvelopeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.Envelope(ctx, userID, id)
}

func (m *Memory) SetEnvelopeAllocated(ctx context.Context, userID ledger.UserID, id int64, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SetEnvelopeAllocated(ctx, userID, id, amount)
}

func (m *Memory) CreateEnvelope(ctx context.Context, env *ledger.EnvelopeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.CreateEnvelope(ctx, env)
}

func (m *Memory) ListEnvelopes(ctx context.Context, userID ledger.UserID) ([]ledger.EnvelopeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListEnvelopes(ctx, userID)
}

func (m *Memory) BankAccount(ctx context.Context, userID ledger.UserID, id int64) (ledger.BankAccountRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.BankAccount(ctx, userID, id)
}

func (m *Memory) SetBankBalance(ctx context.Context, userID ledger.UserID, id int64, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SetBankBalance(ctx, userID, id, amount)
}

func (m *Memory) CreateBankAccount(ctx context.Context, acct *ledger.BankAccountRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.CreateBankAccount(ctx, acct)
}

func (m *Memory) ListBankAccounts(ctx context.Context, userID ledger.UserID) ([]ledger.BankAccountRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListBankAccounts(ctx, userID)
}

// =============================================================================
// ENTRIES
// =============================================================================

func (m *Memory) InsertEntry(ctx context.Context, e *ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.InsertEntry(ctx, e)
}

func (m *Memory) GetEntry(ctx context.Context, kind ledger.EntryKind, userID ledger.UserID, id ledger.EntryID) (ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetEntry(ctx, kind, userID, id)
}

func (m *Memory) UpdateEntry(ctx context.Context, e ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.UpdateEntry(ctx, e)
}

func (m *Memory) DeleteEntry(ctx context.Context, kind ledger.EntryKind, userID ledger.UserID, id ledger.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.DeleteEntry(ctx, kind, userID, id)
}

func (m *Memory) ListEntries(ctx context.Context, kind ledger.EntryKind, userID ledger.UserID, filter ledger.EntryFilter) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListEntries(ctx, kind, userID, filter)
}

func (m *Memory) InsertTransfer(ctx context.Context, t *ledger.Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.InsertTransfer(ctx, t)
}

func (m *Memory) GetTransfer(ctx context.Context, userID ledger.UserID, id ledger.EntryID) (ledger.Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetTransfer(ctx, userID, id)
}

func (m *Memory) UpdateTransfer(ctx context.Context, t ledger.Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.UpdateTransfer(ctx, t)
}

func (m *Memory) DeleteTransfer(ctx context.Context, userID ledger.UserID, id ledger.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.DeleteTransfer(ctx, userID, id)
}

func (m *Memory) ListTransfers(ctx context.Context, userID ledger.UserID, filter ledger.EntryFilter) ([]ledger.Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListTransfers(ctx, userID, filter)
}

// =============================================================================
// STATE - unlocked table operations
// =============================================================================

func (s *state) CashOnHand(_ context.Context, userID ledger.UserID) (decimal.Decimal, error) {
	return s.cash[userID], nil
}

func (s *state) SetCashOnHand(_ context.Context, userID ledger.UserID, amount decimal.Decimal) error {
	s.cash[userID] = amount
	return nil
}

func (s *state) SavedCash(_ context.Context, userID ledger.UserID) (decimal.Decimal, error) {
	return s.saved[userID], nil
}

func (s *state) SetSavedCash(_ context.Context, userID ledger.UserID, amount decimal.Decimal) error {
	s.saved[userID] = amount
	return nil
}

func (s *state) Envelope(_ context.Context, userID ledger.UserID, id int64) (ledger.EnvelopeRecord, error) {
	env, ok := s.envelopes[id]
	if !ok || env.UserID != userID {
		return ledger.EnvelopeRecord{}, &ledger.PoolNotFoundError{UserID: userID, Pool: ledger.Envelope(id)}
	}
	return env, nil
}

func (s *state) SetEnvelopeAllocated(ctx context.Context, userID ledger.UserID, id int64, amount decimal.Decimal) error {
	env, err := s.Envelope(ctx, userID, id)
	if err != nil {
		return err
	}
	env.Allocated = amount
	s.envelopes[id] = env
	return nil
}

func (s *state) CreateEnvelope(_ context.Context, env *ledger.EnvelopeRecord) error {
	env.ID = s.next("envelopes")
	s.envelopes[env.ID] = *env
	return nil
}

func (s *state) ListEnvelopes(_ context.Context, userID ledger.UserID) ([]ledger.EnvelopeRecord, error) {
	var out []ledger.EnvelopeRecord
	for _, env := range s.envelopes {
		if env.UserID == userID {
			out = append(out, env)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *state) BankAccount(_ context.Context, userID ledger.UserID, id int64) (ledger.BankAccountRecord, error) {
	acct, ok := s.accounts[id]
	if !ok || acct.UserID != userID {
		return ledger.BankAccountRecord{}, &ledger.PoolNotFoundError{UserID: userID, Pool: ledger.BankAccount(id)}
	}
	return acct, nil
}

func (s *state) SetBankBalance(ctx context.Context, userID ledger.UserID, id int64, amount decimal.Decimal) error {
	acct, err := s.BankAccount(ctx, userID, id)
	if err != nil {
		return err
	}
	acct.Balance = amount
	s.accounts[id] = acct
	return nil
}

func (s *state) CreateBankAccount(_ context.Context, acct *ledger.BankAccountRecord) error {
	acct.ID = s.next("bank_accounts")
	s.accounts[acct.ID] = *acct
	return nil
}

func (s *state) ListBankAccounts(_ context.Context, userID ledger.UserID) ([]ledger.BankAccountRecord, error) {
	var out []ledger.BankAccountRecord
	for _, acct := range s.accounts {
		if acct.UserID == userID {
			out = append(out, acct)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *state) table(kind ledger.EntryKind) (map[ledger.EntryID]ledger.Entry, error) {
	rows, ok := s.entries[kind]
	if !ok {
		return nil, ledger.ErrUnknownEntryKind
	}
	return rows, nil
}

func (s *state) InsertEntry(_ context.Context, e *ledger.Entry) error {
	rows, err := s.table(e.Kind)
	if err != nil {
		return err
	}
	e.ID = ledger.EntryID(s.next(string(e.Kind)))
	rows[e.ID] = detach(*e)
	return nil
}

// detach copies the pointer fields of e so that stored rows share no memory
// with callers.
func detach(e ledger.Entry) ledger.Entry {
	if e.CategoryID != nil {
		id := *e.CategoryID
		e.CategoryID = &id
	}
	return e
}

func (s *state) GetEntry(_ context.Context, kind ledger.EntryKind, userID ledger.UserID, id ledger.EntryID) (ledger.Entry, error) {
	rows, err := s.table(kind)
	if err != nil {
		return ledger.Entry{}, err
	}
	e, ok := rows[id]
	if !ok || e.UserID != userID {
		return ledger.Entry{}, &ledger.EntryNotFoundError{Kind: kind, ID: id}
	}
	return detach(e), nil
}

func (s *state) UpdateEntry(ctx context.Context, e ledger.Entry) error {
	if _, err := s.GetEntry(ctx, e.Kind, e.UserID, e.ID); err != nil {
		return err
	}
	s.entries[e.Kind][e.ID] = detach(e)
	return nil
}

func (s *state) DeleteEntry(ctx context.Context, kind ledger.EntryKind, userID ledger.UserID, id ledger.EntryID) error {
	if _, err := s.GetEntry(ctx, kind, userID, id); err != nil {
		return err
	}
	delete(s.entries[kind], id)
	return nil
}

func (s *state) ListEntries(_ context.Context, kind ledger.EntryKind, userID ledger.UserID, filter ledger.EntryFilter) ([]ledger.Entry, error) {
	rows, err := s.table(kind)
	if err != nil {
		return nil, err
	}
	var out []ledger.Entry
	for _, e := range rows {
		if e.UserID == userID && filter.Match(e.Date, e.Planned) {
			out = append(out, detach(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (s *state) InsertTransfer(_ context.Context, t *ledger.Transfer) error {
	t.ID = ledger.EntryID(s.next(string(ledger.EntryTransfer)))
	s.transfers[t.ID] = *t
	return nil
}

func (s *state) GetTransfer(_ context.Context, userID ledger.UserID, id ledger.EntryID) (ledger.Transfer, error) {
	t, ok := s.transfers[id]
	if !ok || t.UserID != userID {
		return ledger.Transfer{}, &ledger.EntryNotFoundError{Kind: ledger.EntryTransfer, ID: id}
	}
	return t, nil
}

func (s *state) UpdateTransfer(ctx context.Context, t ledger.Transfer) error {
	if _, err := s.GetTransfer(ctx, t.UserID, t.ID); err != nil {
		return err
	}
	s.transfers[t.ID] = t
	return nil
}

func (s *state) DeleteTransfer(ctx context.Context, userID ledger.UserID, id ledger.EntryID) error {
	if _, err := s.GetTransfer(ctx, userID, id); err != nil {
		return err
	}
	delete(s.transfers, id)
	return nil
}

func (s *state) ListTransfers(_ context.Context, userID ledger.UserID, filter ledger.EntryFilter) ([]ledger.Transfer, error) {
	var out []ledger.Transfer
	for _, t := range s.transfers {
		if t.UserID == userID && filter.Match(t.Date, t.Planned) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}
