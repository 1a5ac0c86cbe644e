package store

import (
	"context"
	"database/sql"
	"fmt"
)

// deleteOrder is the fixed table priority for id lookups during deletion.
// Ids are unique per type-family but treated as one identifier space here,
// so the first table with a match wins.
var deleteOrder = []string{
	"catalog_items",
	"item_variations",
	"categories",
	"modifier_lists",
	"modifiers",
	"taxes",
	"discounts",
	"images",
}

// dependentDeletes maps a table to the statement that removes its
// dependent rows before the row itself goes.
var dependentDeletes = map[string]string{
	"catalog_items":  "DELETE FROM item_variations WHERE item_id = ?",
	"modifier_lists": "DELETE FROM modifiers WHERE modifier_list_id = ?",
}

// DeleteObject removes a catalog object and its dependents by id, inside
// one transaction. Deleting an ITEM removes all of its variations first;
// deleting a MODIFIER_LIST removes its modifiers.
//
// Deleting an id the local store never had is not an error: it completes
// as a no-op with a warning. After a successful commit, a DELETE event is
// emitted unless opts.Bulk is set.
func (s *Store) DeleteObject(ctx context.Context, id string, opts ApplyOptions) error {
	var found string
	var raw []byte

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range deleteOrder {
			var data []byte
			err := tx.QueryRowContext(ctx,
				fmt.Sprintf("SELECT data_json FROM %s WHERE id = ?", table), id).Scan(&data)
			if err == sql.ErrNoRows {
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to look up %s in %s: %w", id, table, err)
			}

			if depQuery, ok := dependentDeletes[table]; ok {
				if _, err := tx.ExecContext(ctx, depQuery, id); err != nil {
					return fmt.Errorf("failed to delete dependents of %s: %w", id, err)
				}
			}

			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id); err != nil {
				return fmt.Errorf("failed to delete %s from %s: %w", id, table, err)
			}

			found = table
			raw = data
			return nil
		}
		return nil
	})
	if err != nil {
		return err
	}

	if found == "" {
		s.logger.Printf("Warning: delete requested for unknown id %s (no-op)", id)
		return nil
	}

	if !opts.Bulk && s.events != nil {
		s.events.ObjectDeleted(typeForTable(found), id, raw)
	}
	return nil
}

// ClearCatalog empties every replicated catalog table. This is destructive
// and must only run when a full sync starts from the very beginning, never
// when a page cursor is present. Team data and sync status are untouched.
func (s *Store) ClearCatalog(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for table := range catalogTableDDL {
			if table == "locations" {
				continue // refreshed separately, not part of the paged catalog
			}
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
				return fmt.Errorf("failed to clear table %s: %w", table, err)
			}
		}
		return nil
	})
}

// typeForTable is the reverse of tableForType, for event payloads.
func typeForTable(table string) string {
	for typ, t := range tableForType {
		if t == table {
			return string(typ)
		}
	}
	return ""
}
