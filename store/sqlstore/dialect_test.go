package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectFor(t *testing.T) {
	for _, name := range []string{"", "sqlite", "SQLite3"} {
		d, err := dialectFor(name)
		require.NoError(t, err, name)
		assert.Equal(t, "sqlite3", d.driver)
	}
	for _, name := range []string{"postgres", "postgresql", "pq"} {
		d, err := dialectFor(name)
		require.NoError(t, err, name)
		assert.Equal(t, "postgres", d.driver)
	}

	_, err := dialectFor("mysql")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	q := "UPDATE envelopes SET allocated = ? WHERE id = ? AND user_id = ?"

	assert.Equal(t, q, sqliteDialect.rebind(q))
	assert.Equal(t,
		"UPDATE envelopes SET allocated = $1 WHERE id = $2 AND user_id = $3",
		postgresDialect.rebind(q))

	many := "INSERT INTO t VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	assert.Equal(t,
		"INSERT INTO t VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)",
		postgresDialect.rebind(many))
}

func TestDDL_PerDialect(t *testing.T) {
	stmt := "id {{id}}, amount {{money}}, is_planned {{bool}}"

	assert.Equal(t, "id INTEGER PRIMARY KEY AUTOINCREMENT, amount TEXT, is_planned INTEGER", sqliteDialect.ddl(stmt))
	assert.Equal(t, "id BIGSERIAL PRIMARY KEY, amount NUMERIC(20,4), is_planned BOOLEAN", postgresDialect.ddl(stmt))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, ":memory:?_foreign_keys=on&_journal_mode=WAL", sqliteDialect.dsn(":memory:"))
	assert.Equal(t, "x.db?cache=shared", sqliteDialect.dsn("x.db?cache=shared"))
	assert.Equal(t, "host=db user=me", postgresDialect.dsn("host=db user=me"))
}
