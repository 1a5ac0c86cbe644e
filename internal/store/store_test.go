package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/joylabs/catsync/internal/catalog"
)

// setupTestStore creates a temporary replica database with its schema
// ensured.
func setupTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(dbPath, opts...)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("failed to ensure schema: %v", err)
	}
	return st
}

// decodeObject parses wire JSON into a catalog object, populating Raw the
// way the fetch path does.
func decodeObject(t *testing.T, data string) catalog.Object {
	t.Helper()

	var obj catalog.Object
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		t.Fatalf("failed to decode test object: %v", err)
	}
	return obj
}

// testItem builds an ITEM wire object with one inline variation.
func testItem(t *testing.T, id, name, sku, upc string) catalog.Object {
	t.Helper()

	return decodeObject(t, fmt.Sprintf(`{
		"type": "ITEM",
		"id": %q,
		"version": "100",
		"updated_at": "2026-08-01T00:00:00Z",
		"item_data": {
			"name": %q,
			"variations": [{
				"type": "ITEM_VARIATION",
				"id": "%s-var",
				"version": "100",
				"item_variation_data": {
					"name": "Regular",
					"sku": %q,
					"upc": %q,
					"ordinal": 1,
					"price_money": {"amount": 500, "currency": "USD"}
				}
			}]
		}
	}`, id, name, id, sku, upc))
}

// testCategory builds a CATEGORY wire object.
func testCategory(t *testing.T, id, name string) catalog.Object {
	t.Helper()
	return decodeObject(t, fmt.Sprintf(
		`{"type": "CATEGORY", "id": %q, "version": "1", "category_data": {"name": %q}}`, id, name))
}

// applyObjects upserts objects and fails the test on error.
func applyObjects(t *testing.T, st *Store, opts ApplyOptions, objs ...catalog.Object) ApplyStats {
	t.Helper()

	stats, err := st.ApplyUpserts(context.Background(), objs, opts)
	if err != nil {
		t.Fatalf("ApplyUpserts failed: %v", err)
	}
	return stats
}

// countRows returns the row count of a table.
func countRows(t *testing.T, st *Store, table string) int {
	t.Helper()

	var n int
	err := st.RawDB().QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n)
	if err != nil {
		t.Fatalf("failed to count rows in %s: %v", table, err)
	}
	return n
}

// recordingSink captures change events for assertions.
type recordingSink struct {
	updated []string
	deleted []string
}

func (r *recordingSink) ObjectUpdated(objectType, id string, raw []byte) {
	r.updated = append(r.updated, id)
}

func (r *recordingSink) ObjectDeleted(objectType, id string, raw []byte) {
	r.deleted = append(r.deleted, id)
}
