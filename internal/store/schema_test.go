package store

import (
	"context"
	"path/filepath"
	"testing"
)

// TestEnsureSchemaPristine verifies that a fresh database gets all tables
// and the singleton sync status row.
func TestEnsureSchemaPristine(t *testing.T) {
	st := setupTestStore(t)

	for table := range catalogTableDDL {
		if n := countRows(t, st, table); n != 0 {
			t.Errorf("table %s should be empty, has %d rows", table, n)
		}
	}

	status, err := st.SyncStatus(context.Background())
	if err != nil {
		t.Fatalf("SyncStatus failed: %v", err)
	}
	if status.IsSyncing {
		t.Error("pristine store should not be syncing")
	}
	if !status.LastSyncTime.IsZero() {
		t.Error("pristine store should have zero last sync time")
	}

	var version int
	if err := st.RawDB().QueryRow("SELECT version FROM schema_info WHERE id = 1").Scan(&version); err != nil {
		t.Fatalf("failed to read schema version: %v", err)
	}
	if version != targetSchemaVersion {
		t.Errorf("schema version = %d, want %d", version, targetSchemaVersion)
	}
}

// TestEnsureSchemaIdempotent verifies that repeated calls leave existing
// data alone once the store is at the target version.
func TestEnsureSchemaIdempotent(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	applyObjects(t, st, ApplyOptions{}, testItem(t, "item-1", "Widget", "W-1", ""))

	if err := st.EnsureSchema(ctx); err != nil {
		t.Fatalf("second EnsureSchema failed: %v", err)
	}

	if n := countRows(t, st, "catalog_items"); n != 1 {
		t.Errorf("catalog_items rows = %d after re-ensure, want 1", n)
	}
}

// TestMigrationPreservesTeamData verifies that upgrading from an older
// schema keeps team data and sync cursors while dropping catalog rows.
func TestMigrationPreservesTeamData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "old.db")
	ctx := context.Background()

	st, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	// Simulate an older-generation store: version 1 with a reduced
	// team_data shape, a stale catalog table, and stored cursors.
	setup := []string{
		`CREATE TABLE schema_info (id INTEGER PRIMARY KEY CHECK (id = 1), version INTEGER NOT NULL)`,
		`INSERT INTO schema_info (id, version) VALUES (1, 1)`,
		`CREATE TABLE team_data (
			item_id TEXT PRIMARY KEY,
			vendor TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			legacy_field TEXT NOT NULL DEFAULT ''
		)`,
		`INSERT INTO team_data (item_id, vendor, notes, legacy_field) VALUES ('item-1', 'Acme', 'keep me', 'dropped')`,
		`CREATE TABLE sync_status (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			last_sync_time TEXT NOT NULL DEFAULT '',
			is_syncing INTEGER NOT NULL DEFAULT 0,
			sync_error TEXT NOT NULL DEFAULT '',
			last_incremental_sync_cursor TEXT NOT NULL DEFAULT ''
		)`,
		`INSERT INTO sync_status (id, last_sync_time, last_incremental_sync_cursor) VALUES (1, '2026-01-01T00:00:00Z', 'cursor-123')`,
		`CREATE TABLE catalog_items (id TEXT PRIMARY KEY, data_json TEXT NOT NULL)`,
		`INSERT INTO catalog_items (id, data_json) VALUES ('stale', '{}')`,
	}
	for _, stmt := range setup {
		if _, err := st.RawDB().Exec(stmt); err != nil {
			t.Fatalf("setup statement failed: %v", err)
		}
	}

	if err := st.EnsureSchema(ctx); err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	defer st.Close()

	// Team data survives, shared fields intact.
	td, err := st.GetTeamData(ctx, "item-1")
	if err != nil {
		t.Fatalf("GetTeamData after migration failed: %v", err)
	}
	if td.Vendor != "Acme" || td.Notes != "keep me" {
		t.Errorf("team data fields lost in migration: %+v", td)
	}

	// Incremental cursor survives.
	status, err := st.SyncStatus(ctx)
	if err != nil {
		t.Fatalf("SyncStatus after migration failed: %v", err)
	}
	if status.LastIncrementalSyncCursor != "cursor-123" {
		t.Errorf("incremental cursor = %q after migration, want cursor-123", status.LastIncrementalSyncCursor)
	}

	// Catalog rows are dropped; the next sync refetches them.
	if n := countRows(t, st, "catalog_items"); n != 0 {
		t.Errorf("catalog_items should be empty after migration, has %d rows", n)
	}
}

// TestStaleSyncFlagReset verifies a crashed run's in-progress flag is
// cleared at startup without touching the stored cursor.
func TestStaleSyncFlagReset(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	if _, err := st.BeginSync(ctx, SyncTypeFull); err != nil {
		t.Fatalf("BeginSync failed: %v", err)
	}
	if err := st.UpdateSyncProgress(ctx, 10, 10, "page-cursor"); err != nil {
		t.Fatalf("UpdateSyncProgress failed: %v", err)
	}

	// Simulate a restart.
	if err := st.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}

	status, err := st.SyncStatus(ctx)
	if err != nil {
		t.Fatalf("SyncStatus failed: %v", err)
	}
	if status.IsSyncing {
		t.Error("stale is_syncing flag should be reset")
	}
	if status.SyncError == "" {
		t.Error("interrupted sync should record an error message")
	}
	if status.LastPageCursor != "page-cursor" {
		t.Errorf("page cursor = %q, want page-cursor (must survive flag reset)", status.LastPageCursor)
	}
}

// TestSchemaVersionTooNew verifies a database from a newer build is
// refused instead of downgraded.
func TestSchemaVersionTooNew(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "new.db")

	st, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	stmts := []string{
		`CREATE TABLE schema_info (id INTEGER PRIMARY KEY CHECK (id = 1), version INTEGER NOT NULL)`,
		`INSERT INTO schema_info (id, version) VALUES (1, 999)`,
	}
	for _, stmt := range stmts {
		if _, err := st.RawDB().Exec(stmt); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}

	if err := st.EnsureSchema(context.Background()); err == nil {
		t.Fatal("EnsureSchema should refuse a newer schema version")
	}
}
