package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// targetSchemaVersion is the schema generation this build writes. Bump it
// whenever a table shape or index changes; EnsureSchema migrates older
// stores forward in a single all-or-nothing transaction.
const targetSchemaVersion = 3

// Catalog tables hold replicated remote state and are dropped and rebuilt
// on migration (the next sync refetches them). preservedTables hold
// user-owned or operational state and are migrated field by field.
var catalogTableDDL = map[string]string{
	"catalog_items": `CREATE TABLE catalog_items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		category_id TEXT NOT NULL DEFAULT '',
		reporting_category_id TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL DEFAULT '',
		version TEXT NOT NULL DEFAULT '',
		is_deleted INTEGER NOT NULL DEFAULT 0,
		present_at_all_locations INTEGER NOT NULL DEFAULT 0,
		data_json TEXT NOT NULL
	)`,
	"categories": `CREATE TABLE categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		parent_category_id TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL DEFAULT '',
		version TEXT NOT NULL DEFAULT '',
		is_deleted INTEGER NOT NULL DEFAULT 0,
		data_json TEXT NOT NULL
	)`,
	"item_variations": `CREATE TABLE item_variations (
		id TEXT PRIMARY KEY,
		item_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		sku TEXT NOT NULL DEFAULT '',
		upc TEXT NOT NULL DEFAULT '',
		ordinal INTEGER NOT NULL DEFAULT 0,
		price_amount INTEGER,
		price_currency TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL DEFAULT '',
		version TEXT NOT NULL DEFAULT '',
		is_deleted INTEGER NOT NULL DEFAULT 0,
		data_json TEXT NOT NULL
	)`,
	"modifier_lists": `CREATE TABLE modifier_lists (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		selection_type TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL DEFAULT '',
		version TEXT NOT NULL DEFAULT '',
		is_deleted INTEGER NOT NULL DEFAULT 0,
		data_json TEXT NOT NULL
	)`,
	"modifiers": `CREATE TABLE modifiers (
		id TEXT PRIMARY KEY,
		modifier_list_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		price_amount INTEGER,
		price_currency TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL DEFAULT '',
		version TEXT NOT NULL DEFAULT '',
		is_deleted INTEGER NOT NULL DEFAULT 0,
		data_json TEXT NOT NULL
	)`,
	"taxes": `CREATE TABLE taxes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		percentage TEXT NOT NULL DEFAULT '',
		inclusion_type TEXT NOT NULL DEFAULT '',
		enabled INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL DEFAULT '',
		version TEXT NOT NULL DEFAULT '',
		is_deleted INTEGER NOT NULL DEFAULT 0,
		data_json TEXT NOT NULL
	)`,
	"discounts": `CREATE TABLE discounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		discount_type TEXT NOT NULL DEFAULT '',
		percentage TEXT NOT NULL DEFAULT '',
		amount INTEGER,
		currency TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL DEFAULT '',
		version TEXT NOT NULL DEFAULT '',
		is_deleted INTEGER NOT NULL DEFAULT 0,
		data_json TEXT NOT NULL
	)`,
	"images": `CREATE TABLE images (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		caption TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL DEFAULT '',
		version TEXT NOT NULL DEFAULT '',
		is_deleted INTEGER NOT NULL DEFAULT 0,
		data_json TEXT NOT NULL
	)`,
	"locations": `CREATE TABLE locations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		timezone TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT ''
	)`,
}

var preservedTableDDL = map[string]string{
	"team_data": `CREATE TABLE team_data (
		item_id TEXT PRIMARY KEY,
		vendor TEXT NOT NULL DEFAULT '',
		case_upc TEXT NOT NULL DEFAULT '',
		case_cost INTEGER,
		case_quantity INTEGER,
		discontinued INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL DEFAULT ''
	)`,
	"sync_status": `CREATE TABLE sync_status (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		last_sync_time TEXT NOT NULL DEFAULT '',
		is_syncing INTEGER NOT NULL DEFAULT 0,
		sync_error TEXT NOT NULL DEFAULT '',
		sync_progress INTEGER NOT NULL DEFAULT 0,
		sync_total INTEGER NOT NULL DEFAULT 0,
		sync_type TEXT NOT NULL DEFAULT '',
		last_page_cursor TEXT NOT NULL DEFAULT '',
		last_incremental_sync_cursor TEXT NOT NULL DEFAULT '',
		last_sync_attempt TEXT NOT NULL DEFAULT '',
		sync_attempt_count INTEGER NOT NULL DEFAULT 0,
		attempt_id TEXT NOT NULL DEFAULT ''
	)`,
}

var indexDDL = []string{
	`CREATE INDEX IF NOT EXISTS idx_items_name ON catalog_items(name)`,
	`CREATE INDEX IF NOT EXISTS idx_items_category ON catalog_items(category_id)`,
	`CREATE INDEX IF NOT EXISTS idx_items_reporting ON catalog_items(reporting_category_id)`,
	`CREATE INDEX IF NOT EXISTS idx_items_deleted ON catalog_items(is_deleted)`,
	`CREATE INDEX IF NOT EXISTS idx_variations_item ON item_variations(item_id)`,
	`CREATE INDEX IF NOT EXISTS idx_variations_sku ON item_variations(sku)`,
	`CREATE INDEX IF NOT EXISTS idx_variations_upc ON item_variations(upc)`,
	`CREATE INDEX IF NOT EXISTS idx_categories_name ON categories(name)`,
	`CREATE INDEX IF NOT EXISTS idx_modifiers_list ON modifiers(modifier_list_id)`,
	`CREATE INDEX IF NOT EXISTS idx_taxes_name ON taxes(name)`,
}

// EnsureSchema creates or upgrades the database schema.
//
// It reads the stored schema version and, if behind, runs one transaction
// that migrates the preserved tables field by field, drops and recreates
// every catalog table, recreates all indexes, and writes the new version.
// If the transaction fails, the previous version stays on disk so the next
// call retries the migration.
//
// Safe to call on every process start, including a pristine store. A stale
// is_syncing flag left behind by a crash is reset here, before any new
// sync can begin.
func (s *Store) EnsureSchema(ctx context.Context) error {
	version, err := s.schemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if version > targetSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, targetSchemaVersion)
	}

	if version < targetSchemaVersion {
		s.logger.Printf("Migrating schema from version %d to %d", version, targetSchemaVersion)
		if err := s.withTx(ctx, func(tx *sql.Tx) error {
			return migrateSchema(ctx, tx)
		}); err != nil {
			return fmt.Errorf("schema migration from version %d failed: %w", version, err)
		}
	}

	if err := s.ensureSyncStatusRow(ctx); err != nil {
		return err
	}
	return s.resetStaleSyncFlag(ctx)
}

// schemaVersion reads the stored version, returning 0 for a pristine store.
func (s *Store) schemaVersion(ctx context.Context) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_info'`).Scan(&count)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}

	var version int
	err = s.conn.QueryRowContext(ctx, `SELECT version FROM schema_info WHERE id = 1`).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

// migrateSchema performs the actual upgrade inside tx.
func migrateSchema(ctx context.Context, tx *sql.Tx) error {
	// Preserved tables: migrate whatever columns both shapes share.
	for name, ddl := range preservedTableDDL {
		if err := migratePreservedTable(ctx, tx, name, ddl); err != nil {
			return fmt.Errorf("failed to migrate table %s: %w", name, err)
		}
	}

	// Catalog tables are a replica cache: drop and recreate. The next
	// full sync repopulates them.
	for name, ddl := range catalogTableDDL {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", name)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create table %s: %w", name, err)
		}
	}

	for _, ddl := range indexDDL {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_info (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_info: %w", err)
	}

	// Version write comes last so a failed migration never claims success.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_info (id, version) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version = excluded.version`,
		targetSchemaVersion); err != nil {
		return fmt.Errorf("failed to write schema version: %w", err)
	}

	return nil
}

// migratePreservedTable recreates name with the current shape, copying
// every column the old and new shapes share. A table that doesn't exist
// yet is simply created.
func migratePreservedTable(ctx context.Context, tx *sql.Tx, name, ddl string) error {
	var count int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&count)
	if err != nil {
		return err
	}

	if count == 0 {
		_, err := tx.ExecContext(ctx, ddl)
		return err
	}

	oldCols, err := tableColumns(ctx, tx, name)
	if err != nil {
		return err
	}

	old := name + "_migrate_old"
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", name, old)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return err
	}

	newCols, err := tableColumns(ctx, tx, name)
	if err != nil {
		return err
	}

	var shared []string
	newSet := make(map[string]bool, len(newCols))
	for _, c := range newCols {
		newSet[c] = true
	}
	for _, c := range oldCols {
		if newSet[c] {
			shared = append(shared, c)
		}
	}

	if len(shared) > 0 {
		cols := strings.Join(shared, ", ")
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", name, cols, cols, old)); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE %s", old))
	return err
}

// tableColumns lists the column names of a table in declaration order.
func tableColumns(ctx context.Context, tx *sql.Tx, name string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", name))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var cid int
		var colName, colType string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, colName)
	}
	return cols, rows.Err()
}

// resetStaleSyncFlag clears is_syncing if a previous process died
// mid-sync. The stored cursors are left alone so the next run resumes.
func (s *Store) resetStaleSyncFlag(ctx context.Context) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE sync_status SET is_syncing = 0, sync_error = 'sync interrupted by shutdown'
		 WHERE id = 1 AND is_syncing = 1`)
	if err != nil {
		return fmt.Errorf("failed to reset stale sync flag: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Printf("Reset stale in-progress sync flag from previous run")
	}
	return nil
}

// ensureSyncStatusRow creates the singleton sync status record if absent.
func (s *Store) ensureSyncStatusRow(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO sync_status (id) VALUES (1)`)
	if err != nil {
		return fmt.Errorf("failed to create sync status row: %w", err)
	}
	return nil
}
