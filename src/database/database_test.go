package database

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/finlog/backend/src/logger"
)

func transactionColumns(t *testing.T, db *sql.DB) map[string]bool {
	t.Helper()
	rows, err := db.Query("PRAGMA table_info(transactions)")
	require.NoError(t, err)
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var cid, pk, notnull int
		var name, dataType string
		var dflt interface{}
		require.NoError(t, rows.Scan(&cid, &name, &dataType, &notnull, &dflt, &pk))
		columns[name] = true
	}
	require.NoError(t, rows.Err())
	return columns
}

func TestMigrateAddsColumnsToLegacySchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "legacy.db")

	legacy, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = legacy.Exec(`
	CREATE TABLE transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		account_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		description TEXT NOT NULL,
		amount TEXT NOT NULL
	)`)
	require.NoError(t, err)
	require.NoError(t, legacy.Close())

	// The migration must not assume the logger is up yet.
	savedLogger := logger.L
	logger.L = nil
	defer func() { logger.L = savedLogger }()

	InitDB(dbPath)

	columns := transactionColumns(t, DB)
	assert.True(t, columns["balance"])
	assert.True(t, columns["account_type"])
}

func TestInitDBFreshDatabase(t *testing.T) {
	logger.InitLogger("error")
	InitDB(":memory:")

	columns := transactionColumns(t, DB)
	assert.True(t, columns["balance"])
	assert.True(t, columns["account_type"])

	var name string
	require.NoError(t, DB.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name='uploads'").Scan(&name))
	assert.Equal(t, "uploads", name)
}
