package repositories

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	return db
}

func mustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}

func createVirtualKeyTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE virtual_keys (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		name TEXT NOT NULL,
		key_hash TEXT NOT NULL,
		key_lookup_hash TEXT UNIQUE,
		key_prefix TEXT NOT NULL,
		max_budget REAL,
		current_spend REAL NOT NULL DEFAULT 0,
		rate_limit_rpm INTEGER,
		rate_limit_tpm INTEGER,
		allowed_models TEXT NOT NULL DEFAULT '[]',
		blocked BOOLEAN NOT NULL DEFAULT 0,
		expires_at DATETIME,
		last_used_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	);`)
}

func createUsageRecordTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE usage_records (
		id TEXT PRIMARY KEY,
		key_id TEXT,
		model TEXT NOT NULL,
		provider TEXT NOT NULL,
		prompt_tokens INTEGER NOT NULL DEFAULT 0,
		completion_tokens INTEGER NOT NULL DEFAULT 0,
		total_tokens INTEGER NOT NULL DEFAULT 0,
		cost_usd REAL NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		cached BOOLEAN NOT NULL DEFAULT 0,
		error TEXT,
		created_at DATETIME
	);`)
}

func createProviderCredentialTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE provider_credentials (
		provider TEXT PRIMARY KEY,
		api_key TEXT NOT NULL,
		azure_endpoint TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`)
}
