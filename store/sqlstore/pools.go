package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/pocket-ledger/ledger"
)

// =============================================================================
// POOL STORE (ledger.PoolStore interface)
// =============================================================================

func (c *conn) userAmount(ctx context.Context, table string, userID ledger.UserID) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := c.queryRow(ctx, "SELECT amount FROM "+table+" WHERE user_id = ?", int64(userID)).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read %s: %w", table, err)
	}
	return amount, nil
}

// setUserAmount updates the user's row and inserts one only when none
// exists. Older databases carry these tables without a unique user_id, so
// an ON CONFLICT upsert is not available.
func (c *conn) setUserAmount(ctx context.Context, table string, userID ledger.UserID, amount decimal.Decimal) error {
	res, err := c.exec(ctx, "UPDATE "+table+" SET amount = ? WHERE user_id = ?", amount.String(), int64(userID))
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", table, err)
	}
	if n > 0 {
		return nil
	}
	if _, err := c.exec(ctx, "INSERT INTO "+table+" (user_id, amount) VALUES (?, ?)", int64(userID), amount.String()); err != nil {
		return fmt.Errorf("failed to write %s: %w", table, err)
	}
	return nil
}

func (c *conn) CashOnHand(ctx context.Context, userID ledger.UserID) (decimal.Decimal, error) {
	return c.userAmount(ctx, "cash_on_hand", userID)
}

func (c *conn) SetCashOnHand(ctx context.Context, userID ledger.UserID, amount decimal.Decimal) error {
	return c.setUserAmount(ctx, "cash_on_hand", userID, amount)
}

func (c *conn) SavedCash(ctx context.Context, userID ledger.UserID) (decimal.Decimal, error) {
	return c.userAmount(ctx, "saved_cash", userID)
}

func (c *conn) SetSavedCash(ctx context.Context, userID ledger.UserID, amount decimal.Decimal) error {
	return c.setUserAmount(ctx, "saved_cash", userID, amount)
}

// -----------------------------------------------------------------------------
// Envelopes
// -----------------------------------------------------------------------------

const envelopeColumns = "id, user_id, name, target, allocated"

func scanEnvelope(row interface{ Scan(...any) error }) (ledger.EnvelopeRecord, error) {
	var (
		env    ledger.EnvelopeRecord
		userID int64
	)
	if err := row.Scan(&env.ID, &userID, &env.Name, &env.Target, &env.Allocated); err != nil {
		return ledger.EnvelopeRecord{}, err
	}
	env.UserID = ledger.UserID(userID)
	return env, nil
}

func (c *conn) Envelope(ctx context.Context, userID ledger.UserID, id int64) (ledger.EnvelopeRecord, error) {
	row := c.queryRow(ctx,
		"SELECT "+envelopeColumns+" FROM envelopes WHERE id = ? AND user_id = ?",
		id, int64(userID))
	env, err := scanEnvelope(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.EnvelopeRecord{}, &ledger.PoolNotFoundError{UserID: userID, Pool: ledger.Envelope(id)}
	}
	if err != nil {
		return ledger.EnvelopeRecord{}, fmt.Errorf("failed to read envelope: %w", err)
	}
	return env, nil
}

func (c *conn) SetEnvelopeAllocated(ctx context.Context, userID ledger.UserID, id int64, amount decimal.Decimal) error {
	res, err := c.exec(ctx,
		"UPDATE envelopes SET allocated = ? WHERE id = ? AND user_id = ?",
		amount.String(), id, int64(userID))
	if err != nil {
		return fmt.Errorf("failed to update envelope: %w", err)
	}
	return requireRow(res, &ledger.PoolNotFoundError{UserID: userID, Pool: ledger.Envelope(id)})
}

func (c *conn) CreateEnvelope(ctx context.Context, env *ledger.EnvelopeRecord) error {
	err := c.queryRow(ctx,
		"INSERT INTO envelopes (user_id, name, target, allocated) VALUES (?, ?, ?, ?) RETURNING id",
		int64(env.UserID), env.Name, env.Target.String(), env.Allocated.String(),
	).Scan(&env.ID)
	if err != nil {
		return fmt.Errorf("failed to create envelope: %w", err)
	}
	return nil
}

func (c *conn) ListEnvelopes(ctx context.Context, userID ledger.UserID) ([]ledger.EnvelopeRecord, error) {
	rows, err := c.query(ctx,
		"SELECT "+envelopeColumns+" FROM envelopes WHERE user_id = ? ORDER BY id",
		int64(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to query envelopes: %w", err)
	}
	defer rows.Close()

	var envelopes []ledger.EnvelopeRecord
	for rows.Next() {
		env, err := scanEnvelope(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan envelope: %w", err)
		}
		envelopes = append(envelopes, env)
	}
	return envelopes, rows.Err()
}

// -----------------------------------------------------------------------------
// Bank accounts
// -----------------------------------------------------------------------------

const bankAccountColumns = "id, user_id, name, currency, balance"

func scanBankAccount(row interface{ Scan(...any) error }) (ledger.BankAccountRecord, error) {
	var (
		acct   ledger.BankAccountRecord
		userID int64
	)
	if err := row.Scan(&acct.ID, &userID, &acct.Name, &acct.Currency, &acct.Balance); err != nil {
		return ledger.BankAccountRecord{}, err
	}
	acct.UserID = ledger.UserID(userID)
	return acct, nil
}

func (c *conn) BankAccount(ctx context.Context, userID ledger.UserID, id int64) (ledger.BankAccountRecord, error) {
	row := c.queryRow(ctx,
		"SELECT "+bankAccountColumns+" FROM bank_accounts WHERE id = ? AND user_id = ?",
		id, int64(userID))
	acct, err := scanBankAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.BankAccountRecord{}, &ledger.PoolNotFoundError{UserID: userID, Pool: ledger.BankAccount(id)}
	}
	if err != nil {
		return ledger.BankAccountRecord{}, fmt.Errorf("failed to read bank account: %w", err)
	}
	return acct, nil
}

func (c *conn) SetBankBalance(ctx context.Context, userID ledger.UserID, id int64, amount decimal.Decimal) error {
	res, err := c.exec(ctx,
		"UPDATE bank_accounts SET balance = ? WHERE id = ? AND user_id = ?",
		amount.String(), id, int64(userID))
	if err != nil {
		return fmt.Errorf("failed to update bank account: %w", err)
	}
	return requireRow(res, &ledger.PoolNotFoundError{UserID: userID, Pool: ledger.BankAccount(id)})
}

func (c *conn) CreateBankAccount(ctx context.Context, acct *ledger.BankAccountRecord) error {
	err := c.queryRow(ctx,
		"INSERT INTO bank_accounts (user_id, name, currency, balance) VALUES (?, ?, ?, ?) RETURNING id",
		int64(acct.UserID), acct.Name, acct.Currency, acct.Balance.String(),
	).Scan(&acct.ID)
	if err != nil {
		return fmt.Errorf("failed to create bank account: %w", err)
	}
	return nil
}

func (c *conn) ListBankAccounts(ctx context.Context, userID ledger.UserID) ([]ledger.BankAccountRecord, error) {
	rows, err := c.query(ctx,
		"SELECT "+bankAccountColumns+" FROM bank_accounts WHERE user_id = ? ORDER BY id",
		int64(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to query bank accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.BankAccountRecord
	for rows.Next() {
		acct, err := scanBankAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bank account: %w", err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, rows.Err()
}

// requireRow returns notFound when an UPDATE or DELETE touched nothing.
func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// =============================================================================
// LOCKED DELEGATES - pools
// =============================================================================

func (s *Store) CashOnHand(ctx context.Context, userID ledger.UserID) (decimal.Decimal, error) {
	c, done := s.read()
	defer done()
	return c.CashOnHand(ctx, userID)
}

func (s *Store) SetCashOnHand(ctx context.Context, userID ledger.UserID, amount decimal.Decimal) error {
	c, done := s.write()
	defer done()
	return c.SetCashOnHand(ctx, userID, amount)
}

func (s *Store) SavedCash(ctx context.Context, userID ledger.UserID) (decimal.Decimal, error) {
	c, done := s.read()
	defer done()
	return c.SavedCash(ctx, userID)
}

func (s *Store) SetSavedCash(ctx context.Context, userID ledger.UserID, amount decimal.Decimal) error {
	c, done := s.write()
	defer done()
	return c.SetSavedCash(ctx, userID, amount)
}

func (s *Store) Envelope(ctx context.Context, userID ledger.UserID, id int64) (ledger.EnvelopeRecord, error) {
	c, done := s.read()
	defer done()
	return c.Envelope(ctx, userID, id)
}

func (s *Store) SetEnvelopeAllocated(ctx context.Context, userID ledger.UserID, id int64, amount decimal.Decimal) error {
	c, done := s.write()
	defer done()
	return c.SetEnvelopeAllocated(ctx, userID, id, amount)
}

func (s *Store) CreateEnvelope(ctx context.Context, env *ledger.EnvelopeRecord) error {
	c, done := s.write()
	defer done()
	return c.CreateEnvelope(ctx, env)
}

func (s *Store) ListEnvelopes(ctx context.Context, userID ledger.UserID) ([]ledger.EnvelopeRecord, error) {
	c, done := s.read()
	defer done()
	return c.ListEnvelopes(ctx, userID)
}

func (s *Store) BankAccount(ctx context.Context, userID ledger.UserID, id int64) (ledger.BankAccountRecord, error) {
	c, done := s.read()
	defer done()
	return c.BankAccount(ctx, userID, id)
}

func (s *Store) SetBankBalance(ctx context.Context, userID ledger.UserID, id int64, amount decimal.Decimal) error {
	c, done := s.write()
	defer done()
	return c.SetBankBalance(ctx, userID, id, amount)
}

func (s *Store) CreateBankAccount(ctx context.Context, acct *ledger.BankAccountRecord) error {
	c, done := s.write()
	defer done()
	return c.CreateBankAccount(ctx, acct)
}

func (s *Store) ListBankAccounts(ctx context.Context, userID ledger.UserID) ([]ledger.BankAccountRecord, error) {
	c, done := s.read()
	defer done()
	return c.ListBankAccounts(ctx, userID)
}
