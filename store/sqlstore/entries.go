package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/warp/pocket-ledger/ledger"
)

// =============================================================================
// ENTRY STORE (ledger.EntryStore interface)
// =============================================================================

// storedDate is fixed width so that ORDER BY date sorts chronologically.
const storedDate = "2006-01-02T15:04:05.000000000Z07:00"

// dateLayouts are tried in order when reading a date column. Older rows may
// carry a bare date or a timestamp without a zone, read as UTC. Fractional
// seconds are accepted after any seconds field.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func formatDate(t time.Time) string {
	return t.UTC().Format(storedDate)
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func entryTable(kind ledger.EntryKind) (string, error) {
	switch kind {
	case ledger.EntryExpense:
		return "expenses", nil
	case ledger.EntryIncome:
		return "incomes", nil
	}
	return "", fmt.Errorf("%w: %q", ledger.ErrUnknownEntryKind, kind)
}

const entrySelect = `
	SELECT id, user_id, amount, date, description, category_id, is_planned,
	       payment_kind, payment_ref_id, bank_account_id, account_text
	FROM `

func scanEntry(row interface{ Scan(...any) error }, kind ledger.EntryKind) (ledger.Entry, error) {
	var (
		e        ledger.Entry
		userID   int64
		date     string
		category sql.NullInt64
		pool     poolColumns
	)
	err := row.Scan(&e.ID, &userID, &e.Amount, &date, &e.Description, &category, &e.Planned,
		&pool.kind, &pool.refID, &pool.bankAccountID, &pool.accountText)
	if err != nil {
		return ledger.Entry{}, err
	}

	e.UserID = ledger.UserID(userID)
	e.Kind = kind
	if e.Date, err = parseDate(date); err != nil {
		return ledger.Entry{}, err
	}
	if category.Valid {
		id := category.Int64
		e.CategoryID = &id
	}
	if e.Pool, err = decodeEntryPool(pool); err != nil {
		return ledger.Entry{}, err
	}
	return e, nil
}

func (c *conn) InsertEntry(ctx context.Context, e *ledger.Entry) error {
	table, err := entryTable(e.Kind)
	if err != nil {
		return err
	}
	kind, refID, bankID := encodeEntryPool(e.Pool)

	query := `INSERT INTO ` + table + ` (user_id, amount, date, description, category_id, is_planned,
		payment_kind, payment_ref_id, bank_account_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	err = c.queryRow(ctx, query,
		int64(e.UserID), e.Amount.String(), formatDate(e.Date), e.Description, e.CategoryID, e.Planned,
		kind, refID, bankID,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to insert %s: %w", e.Kind, err)
	}
	return nil
}

func (c *conn) GetEntry(ctx context.Context, kind ledger.EntryKind, userID ledger.UserID, id ledger.EntryID) (ledger.Entry, error) {
	table, err := entryTable(kind)
	if err != nil {
		return ledger.Entry{}, err
	}
	row := c.queryRow(ctx, entrySelect+table+" WHERE id = ? AND user_id = ?", int64(id), int64(userID))
	e, err := scanEntry(row, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Entry{}, &ledger.EntryNotFoundError{Kind: kind, ID: id}
	}
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("failed to read %s: %w", kind, err)
	}
	return e, nil
}

// UpdateEntry rewrites every column, including the pool columns. The
// free-text account label is cleared once a row has an explicit pool.
func (c *conn) UpdateEntry(ctx context.Context, e ledger.Entry) error {
	table, err := entryTable(e.Kind)
	if err != nil {
		return err
	}
	kind, refID, bankID := encodeEntryPool(e.Pool)

	query := `UPDATE ` + table + ` SET amount = ?, date = ?, description = ?, category_id = ?,
		is_planned = ?, payment_kind = ?, payment_ref_id = ?, bank_account_id = ?, account_text = NULL
		WHERE id = ? AND user_id = ?`
	res, err := c.exec(ctx, query,
		e.Amount.String(), formatDate(e.Date), e.Description, e.CategoryID,
		e.Planned, kind, refID, bankID,
		int64(e.ID), int64(e.UserID))
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", e.Kind, err)
	}
	return requireRow(res, &ledger.EntryNotFoundError{Kind: e.Kind, ID: e.ID})
}

func (c *conn) DeleteEntry(ctx context.Context, kind ledger.EntryKind, userID ledger.UserID, id ledger.EntryID) error {
	table, err := entryTable(kind)
	if err != nil {
		return err
	}
	res, err := c.exec(ctx, "DELETE FROM "+table+" WHERE id = ? AND user_id = ?", int64(id), int64(userID))
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	return requireRow(res, &ledger.EntryNotFoundError{Kind: kind, ID: id})
}

// ListEntries filters on is_planned in SQL and on the date range after
// decoding, since legacy rows do not share one date format.
func (c *conn) ListEntries(ctx context.Context, kind ledger.EntryKind, userID ledger.UserID, filter ledger.EntryFilter) ([]ledger.Entry, error) {
	table, err := entryTable(kind)
	if err != nil {
		return nil, err
	}
	query, args := plannedClause(entrySelect+table+" WHERE user_id = ?", int64(userID), filter)

	rows, err := c.query(ctx, query+" ORDER BY date, id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
		}
		if filter.Match(e.Date, e.Planned) {
			entries = append(entries, e)
		}
	}
	return entries, rows.Err()
}

func plannedClause(query string, userID int64, filter ledger.EntryFilter) (string, []any) {
	args := []any{userID}
	if filter.Planned != nil {
		query += " AND is_planned = ?"
		args = append(args, *filter.Planned)
	}
	return query, args
}

// -----------------------------------------------------------------------------
// Transfers
// -----------------------------------------------------------------------------

const transferSelect = `
	SELECT id, user_id, amount, date, description, is_planned,
	       from_kind, from_ref_id, to_kind, to_ref_id
	FROM transfers`

func scanTransfer(row interface{ Scan(...any) error }) (ledger.Transfer, error) {
	var (
		t                ledger.Transfer
		userID           int64
		date             string
		fromKind, toKind string
		fromID, toID     sql.NullInt64
	)
	err := row.Scan(&t.ID, &userID, &t.Amount, &date, &t.Description, &t.Planned,
		&fromKind, &fromID, &toKind, &toID)
	if err != nil {
		return ledger.Transfer{}, err
	}

	t.UserID = ledger.UserID(userID)
	if t.Date, err = parseDate(date); err != nil {
		return ledger.Transfer{}, err
	}
	if t.From, err = decodeTransferPool(fromKind, fromID); err != nil {
		return ledger.Transfer{}, err
	}
	if t.To, err = decodeTransferPool(toKind, toID); err != nil {
		return ledger.Transfer{}, err
	}
	return t, nil
}

func (c *conn) InsertTransfer(ctx context.Context, t *ledger.Transfer) error {
	query := `INSERT INTO transfers (user_id, amount, date, description, is_planned,
		from_kind, from_ref_id, to_kind, to_ref_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	err := c.queryRow(ctx, query,
		int64(t.UserID), t.Amount.String(), formatDate(t.Date), t.Description, t.Planned,
		t.From.Kind.Token(), t.From.RefID(), t.To.Kind.Token(), t.To.RefID(),
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}
	return nil
}

func (c *conn) GetTransfer(ctx context.Context, userID ledger.UserID, id ledger.EntryID) (ledger.Transfer, error) {
	row := c.queryRow(ctx, transferSelect+" WHERE id = ? AND user_id = ?", int64(id), int64(userID))
	t, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Transfer{}, &ledger.EntryNotFoundError{Kind: ledger.EntryTransfer, ID: id}
	}
	if err != nil {
		return ledger.Transfer{}, fmt.Errorf("failed to read transfer: %w", err)
	}
	return t, nil
}

func (c *conn) UpdateTransfer(ctx context.Context, t ledger.Transfer) error {
	query := `UPDATE transfers SET amount = ?, date = ?, description = ?, is_planned = ?,
		from_kind = ?, from_ref_id = ?, to_kind = ?, to_ref_id = ?
		WHERE id = ? AND user_id = ?`
	res, err := c.exec(ctx, query,
		t.Amount.String(), formatDate(t.Date), t.Description, t.Planned,
		t.From.Kind.Token(), t.From.RefID(), t.To.Kind.Token(), t.To.RefID(),
		int64(t.ID), int64(t.UserID))
	if err != nil {
		return fmt.Errorf("failed to update transfer: %w", err)
	}
	return requireRow(res, &ledger.EntryNotFoundError{Kind: ledger.EntryTransfer, ID: t.ID})
}

func (c *conn) DeleteTransfer(ctx context.Context, userID ledger.UserID, id ledger.EntryID) error {
	res, err := c.exec(ctx, "DELETE FROM transfers WHERE id = ? AND user_id = ?", int64(id), int64(userID))
	if err != nil {
		return fmt.Errorf("failed to delete transfer: %w", err)
	}
	return requireRow(res, &ledger.EntryNotFoundError{Kind: ledger.EntryTransfer, ID: id})
}

func (c *conn) ListTransfers(ctx context.Context, userID ledger.UserID, filter ledger.EntryFilter) ([]ledger.Transfer, error) {
	query, args := plannedClause(transferSelect+" WHERE user_id = ?", int64(userID), filter)

	rows, err := c.query(ctx, query+" ORDER BY date, id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var transfers []ledger.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		if filter.Match(t.Date, t.Planned) {
			transfers = append(transfers, t)
		}
	}
	return transfers, rows.Err()
}

// =============================================================================
// LOCKED DELEGATES - entries
// =============================================================================

func (s *Store) InsertEntry(ctx context.Context, e *ledger.Entry) error {
	c, done := s.write()
	defer done()
	return c.InsertEntry(ctx, e)
}

func (s *Store) GetEntry(ctx context.Context, kind ledger.EntryKind, userID ledger.UserID, id ledger.EntryID) (ledger.Entry, error) {
	c, done := s.read()
	defer done()
	return c.GetEntry(ctx, kind, userID, id)
}

func (s *Store) UpdateEntry(ctx context.Context, e ledger.Entry) error {
	c, done := s.write()
	defer done()
	return c.UpdateEntry(ctx, e)
}

func (s *Store) DeleteEntry(ctx context.Context, kind ledger.EntryKind, userID ledger.UserID, id ledger.EntryID) error {
	c, done := s.write()
	defer done()
	return c.DeleteEntry(ctx, kind, userID, id)
}

func (s *Store) ListEntries(ctx context.Context, kind ledger.EntryKind, userID ledger.UserID, filter ledger.EntryFilter) ([]ledger.Entry, error) {
	c, done := s.read()
	defer done()
	return c.ListEntries(ctx, kind, userID, filter)
}

func (s *Store) InsertTransfer(ctx context.Context, t *ledger.Transfer) error {
	c, done := s.write()
	defer done()
	return c.InsertTransfer(ctx, t)
}

func (s *Store) GetTransfer(ctx context.Context, userID ledger.UserID, id ledger.EntryID) (ledger.Transfer, error) {
	c, done := s.read()
	defer done()
	return c.GetTransfer(ctx, userID, id)
}

func (s *Store) UpdateTransfer(ctx context.Context, t ledger.Transfer) error {
	c, done := s.write()
	defer done()
	return c.UpdateTransfer(ctx, t)
}

func (s *Store) DeleteTransfer(ctx context.Context, userID ledger.UserID, id ledger.EntryID) error {
	c, done := s.write()
	defer done()
	return c.DeleteTransfer(ctx, userID, id)
}

func (s *Store) ListTransfers(ctx context.Context, userID ledger.UserID, filter ledger.EntryFilter) ([]ledger.Transfer, error) {
	c, done := s.read()
	defer done()
	return c.ListTransfers(ctx, userID, filter)
}
