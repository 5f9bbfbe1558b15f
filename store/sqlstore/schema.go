package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// tables is the full current schema. Statements are run one by one.
var tables = []string{
	`CREATE TABLE IF NOT EXISTS cash_on_hand (
		user_id BIGINT PRIMARY KEY,
		amount {{money}} NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS saved_cash (
		user_id BIGINT PRIMARY KEY,
		amount {{money}} NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS envelopes (
		id {{id}},
		user_id BIGINT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		target {{money}} NOT NULL DEFAULT 0,
		allocated {{money}} NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS bank_accounts (
		id {{id}},
		user_id BIGINT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		currency TEXT NOT NULL DEFAULT '',
		balance {{money}} NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS expenses (
		id {{id}},
		user_id BIGINT NOT NULL,
		amount {{money}} NOT NULL,
		date TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category_id BIGINT,
		is_planned {{bool}} NOT NULL DEFAULT {{false}},
		payment_kind INTEGER,
		payment_ref_id BIGINT,
		bank_account_id BIGINT,
		account_text TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS incomes (
		id {{id}},
		user_id BIGINT NOT NULL,
		amount {{money}} NOT NULL,
		date TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category_id BIGINT,
		is_planned {{bool}} NOT NULL DEFAULT {{false}},
		payment_kind INTEGER,
		payment_ref_id BIGINT,
		bank_account_id BIGINT,
		account_text TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS transfers (
		id {{id}},
		user_id BIGINT NOT NULL,
		amount {{money}} NOT NULL,
		date TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		from_kind TEXT NOT NULL,
		from_ref_id BIGINT,
		to_kind TEXT NOT NULL,
		to_ref_id BIGINT,
		is_planned {{bool}} NOT NULL DEFAULT {{false}}
	)`,
	`CREATE INDEX IF NOT EXISTS idx_envelopes_user ON envelopes(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bank_accounts_user ON bank_accounts(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_expenses_user_date ON expenses(user_id, date)`,
	`CREATE INDEX IF NOT EXISTS idx_incomes_user_date ON incomes(user_id, date)`,
	`CREATE INDEX IF NOT EXISTS idx_transfers_user_date ON transfers(user_id, date)`,
}

// repairs lists columns that older databases may lack, per table. A
// legacy expenses table without payment_kind keeps its rows readable via
// the fallback in legacy.go.
var repairs = map[string][]column{
	"envelopes": {
		{"name", "TEXT NOT NULL DEFAULT ''"},
		{"target", "{{money}} NOT NULL DEFAULT 0"},
	},
	"bank_accounts": {
		{"name", "TEXT NOT NULL DEFAULT ''"},
		{"currency", "TEXT NOT NULL DEFAULT ''"},
	},
	"expenses":  entryColumns,
	"incomes":   entryColumns,
	"transfers": {
		{"description", "TEXT NOT NULL DEFAULT ''"},
		{"is_planned", "{{bool}} NOT NULL DEFAULT {{false}}"},
	},
}

var entryColumns = []column{
	{"description", "TEXT NOT NULL DEFAULT ''"},
	{"category_id", "BIGINT"},
	{"is_planned", "{{bool}} NOT NULL DEFAULT {{false}}"},
	{"payment_kind", "INTEGER"},
	{"payment_ref_id", "BIGINT"},
	{"bank_account_id", "BIGINT"},
	{"account_text", "TEXT"},
}

type column struct {
	name string
	decl string
}

func migrate(ctx context.Context, db *sql.DB, d dialect) error {
	render := func(s string) string {
		return strings.ReplaceAll(d.ddl(s), "{{false}}", d.falseValue())
	}

	for _, stmt := range tables {
		if _, err := db.ExecContext(ctx, render(stmt)); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	for _, table := range []string{"envelopes", "bank_accounts", "expenses", "incomes", "transfers"} {
		existing, err := columnsOf(ctx, db, d, table)
		if err != nil {
			return err
		}
		for _, col := range repairs[table] {
			if existing[col.name] {
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, col.name, render(col.decl))
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to add column %s.%s: %w", table, col.name, err)
			}
		}
	}
	return nil
}

func columnsOf(ctx context.Context, db *sql.DB, d dialect, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, d.rebind(d.columnsQuery), table)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[strings.ToLower(name)] = true
	}
	return cols, rows.Err()
}
