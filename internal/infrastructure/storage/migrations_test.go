package storage

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/history"
)

// expectedMigrationCount is the number of migrations we expect to have
// Update this when adding new migrations
// Note: goose adds a version 0 entry when initializing, so total count is migrations + 1
const expectedMigrationCount = 3
const gooseVersionCount = expectedMigrationCount + 1 // includes goose's version 0 entry

// TestMigrations_FreshDatabase tests running migrations on a fresh database
func TestMigrations_FreshDatabase(t *testing.T) {
	tmpDB := createTempDB(t)
	defer os.Remove(tmpDB)

	store, err := NewStorage(tmpDB)
	require.NoError(t, err)
	defer store.Close()

	var count int
	err = store.db.QueryRow("SELECT COUNT(*) FROM goose_db_version WHERE is_applied = 1").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, gooseVersionCount, count, "Should have %d version entries (including goose init)", gooseVersionCount)

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(expectedMigrationCount), version)
}

// TestMigrations_Idempotency tests that migrations can be run multiple times
func TestMigrations_Idempotency(t *testing.T) {
	tmpDB := createTempDB(t)
	defer os.Remove(tmpDB)

	store, err := NewStorage(tmpDB)
	require.NoError(t, err)
	store.Close()

	store, err = NewStorage(tmpDB)
	require.NoError(t, err)
	defer store.Close()

	var count int
	err = store.db.QueryRow("SELECT COUNT(*) FROM goose_db_version WHERE is_applied = 1").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, gooseVersionCount, count, "Should still have exactly %d version entries", gooseVersionCount)
}

// TestMigrations_Schema tests that the correct schema is created
func TestMigrations_Schema(t *testing.T) {
	tmpDB := createTempDB(t)
	defer os.Remove(tmpDB)

	store, err := NewStorage(tmpDB)
	require.NoError(t, err)
	defer store.Close()

	for _, table := range []string{"runs", "matches", "anomalies", "supplier_histories", "goose_db_version"} {
		err = store.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(new(int))
		assert.NoError(t, err, "%s table should exist", table)
	}
}

// TestMigrations_ForeignKeyConstraints tests that foreign keys are enforced
func TestMigrations_ForeignKeyConstraints(t *testing.T) {
	tmpDB := createTempDB(t)
	defer os.Remove(tmpDB)

	store, err := NewStorage(tmpDB)
	require.NoError(t, err)
	defer store.Close()

	var fkEnabled int
	err = store.db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled)
	require.NoError(t, err)
	assert.Equal(t, 1, fkEnabled, "Foreign keys should be enabled")

	_, err = store.db.Exec(`
		INSERT INTO matches (run_id, kind, left_id, right_id, confidence, classification)
		VALUES ('no-such-run', 'bank', 'm1', 'b1', 0.9, 'auto')
	`)
	require.Error(t, err, "Should fail to insert a match for a non-existent run")
	assert.Contains(t, err.Error(), "FOREIGN KEY constraint failed")
}

// TestMigrations_RekeySupplierHistories tests the Go data migration on rows
// whose keys do not match history.Normalize of their display name
func TestMigrations_RekeySupplierHistories(t *testing.T) {
	tmpDB := createTempDB(t)
	defer os.Remove(tmpDB)

	// Bring a database to the schema just before the data migration
	db, err := sql.Open("sqlite3", tmpDB)
	require.NoError(t, err)
	migrateTo(t, db, 2)

	_, err = db.Exec(`
		INSERT INTO supplier_histories (supplier_key, display_name, match_count) VALUES
		('ACME Sàrl', 'ACME Sàrl', 5),
		('acme sarl', 'acme sarl', 2),
		('EDF', 'EDF', 1),
		('orange', 'Orange', 3)
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, err := NewStorage(tmpDB)
	require.NoError(t, err)
	defer store.Close()

	rows, err := store.db.Query("SELECT supplier_key, display_name, match_count FROM supplier_histories ORDER BY supplier_key")
	require.NoError(t, err)
	defer rows.Close()

	got := map[string]int{}
	for rows.Next() {
		var key, displayName string
		var count int
		require.NoError(t, rows.Scan(&key, &displayName, &count))
		assert.Equal(t, history.Normalize(displayName), key)
		got[key] = count
	}
	require.NoError(t, rows.Err())

	assert.Equal(t, map[string]int{
		"acme sarl": 5, // the stronger row wins the shared key
		"edf":       1,
		"orange":    3,
	}, got)
}

func migrateTo(t *testing.T, db *sql.DB, version int64) {
	t.Helper()
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationFS)
	require.NoError(t, goose.SetDialect("sqlite3"))
	require.NoError(t, goose.UpToContext(context.Background(), db, migrationDir, version))
}

func createTempDB(t *testing.T) string {
	tmpFile, err := os.CreateTemp("", "test_*.db")
	require.NoError(t, err)
	tmpFile.Close()
	return tmpFile.Name()
}
