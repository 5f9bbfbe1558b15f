package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pocket-ledger/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  read_timeout: 5s
database:
  driver: postgres
  dsn: postgres://ledger@localhost/ledger?sslmode=disable
cors:
  allowed_origins: ["https://app.example.com"]
`)

	c, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, 5*time.Second, c.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, c.Server.WriteTimeout, "unset keys keep defaults")
	assert.Equal(t, "postgres", c.Database.Driver)
	assert.Equal(t, []string{"https://app.example.com"}, c.CORS.AllowedOrigins)
	assert.Equal(t, ":9090", c.Addr())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "database:\n  dsn: ./from-file.db\n")
	t.Setenv("POCKET_DATABASE_DSN", "./from-env.db")
	t.Setenv("POCKET_SERVER_PORT", "7000")

	c, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "./from-env.db", c.Database.DSN)
	assert.Equal(t, 7000, c.Server.Port)
	assert.Equal(t, "sqlite3", c.Database.Driver)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(wd) })

	c, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "sqlite3", c.Database.Driver)
	assert.Equal(t, "./data/ledger.db", c.Database.DSN)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: mysql\n")

	_, err := config.Load(path)
	assert.ErrorContains(t, err, "unsupported database.driver")
}
