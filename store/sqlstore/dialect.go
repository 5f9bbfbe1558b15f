package sqlstore

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// dialect captures the few places where SQLite and PostgreSQL differ.
// Queries are written with '?' placeholders and rebound per dialect.
type dialect struct {
	name       string
	driver     string
	singleConn bool

	// types substitutes {{id}}, {{money}}, {{bool}} in DDL.
	types *strings.Replacer

	// columnsQuery lists column names of the table bound to the first arg.
	columnsQuery string

	// bind is the sqlx placeholder style for the driver.
	bind int

	dsnFn func(string) string
}

var (
	sqliteDialect = dialect{
		name:       "sqlite3",
		driver:     "sqlite3",
		singleConn: true,
		types: strings.NewReplacer(
			"{{id}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
			"{{money}}", "TEXT",
			"{{bool}}", "INTEGER",
		),
		columnsQuery: "SELECT name FROM pragma_table_info(?)",
		bind:         sqlx.QUESTION,
		dsnFn: func(dsn string) string {
			if strings.Contains(dsn, "?") {
				return dsn
			}
			return dsn + "?_foreign_keys=on&_journal_mode=WAL"
		},
	}

	postgresDialect = dialect{
		name:   "postgres",
		driver: "postgres",
		types: strings.NewReplacer(
			"{{id}}", "BIGSERIAL PRIMARY KEY",
			"{{money}}", "NUMERIC(20,4)",
			"{{bool}}", "BOOLEAN",
		),
		columnsQuery: "SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = ?",
		bind:         sqlx.DOLLAR,
	}
)

func dialectFor(driver string) (dialect, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		return sqliteDialect, nil
	case "postgres", "postgresql", "pq":
		return postgresDialect, nil
	}
	return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
}

func (d dialect) dsn(dsn string) string {
	if d.dsnFn == nil {
		return dsn
	}
	return d.dsnFn(dsn)
}

func (d dialect) ddl(schema string) string {
	return d.types.Replace(schema)
}

// rebind rewrites '?' placeholders to the driver's style ($1, $2, ... for
// PostgreSQL). Queries must not carry a literal '?' inside string constants.
func (d dialect) rebind(query string) string {
	return sqlx.Rebind(d.bind, query)
}

// falseValue is how a false boolean is written in a column default.
func (d dialect) falseValue() string {
	if d.name == "postgres" {
		return "FALSE"
	}
	return "0"
}
