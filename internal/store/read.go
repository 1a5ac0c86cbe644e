package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/joylabs/catsync/internal/catalog"
)

// Category is a read-model row from the categories table.
type Category struct {
	ID               string
	Name             string
	ParentCategoryID string
}

// Tax is a read-model row from the taxes table.
type Tax struct {
	ID            string
	Name          string
	Percentage    string
	InclusionType string
	Enabled       bool
}

// ModifierList is a read-model row from the modifier_lists table.
type ModifierList struct {
	ID            string
	Name          string
	SelectionType string
}

// Variation is a read-model row from the item_variations table.
type Variation struct {
	ID            string
	ItemID        string
	Name          string
	SKU           string
	UPC           string
	Ordinal       int
	PriceAmount   *int64
	PriceCurrency string
	IsDeleted     bool
}

// ObjectRow is a raw-row lookup result: the table a catalog id lives in
// plus the stored wire object.
type ObjectRow struct {
	Table     string
	Type      string
	ID        string
	UpdatedAt string
	Version   string
	IsDeleted bool
	DataJSON  []byte
}

// ListCategories returns all non-deleted categories ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, name, parent_category_id FROM categories
		WHERE is_deleted = 0 ORDER BY name COLLATE NOCASE ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ParentCategoryID); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListTaxes returns all non-deleted taxes ordered by name.
func (s *Store) ListTaxes(ctx context.Context) ([]Tax, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, name, percentage, inclusion_type, enabled FROM taxes
		WHERE is_deleted = 0 ORDER BY name COLLATE NOCASE ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list taxes: %w", err)
	}
	defer rows.Close()

	var out []Tax
	for rows.Next() {
		var t Tax
		var enabled int
		if err := rows.Scan(&t.ID, &t.Name, &t.Percentage, &t.InclusionType, &enabled); err != nil {
			return nil, fmt.Errorf("failed to scan tax: %w", err)
		}
		t.Enabled = enabled != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListModifierLists returns all non-deleted modifier lists ordered by name.
func (s *Store) ListModifierLists(ctx context.Context) ([]ModifierList, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, name, selection_type FROM modifier_lists
		WHERE is_deleted = 0 ORDER BY name COLLATE NOCASE ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list modifier lists: %w", err)
	}
	defer rows.Close()

	var out []ModifierList
	for rows.Next() {
		var m ModifierList
		if err := rows.Scan(&m.ID, &m.Name, &m.SelectionType); err != nil {
			return nil, fmt.Errorf("failed to scan modifier list: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListLocations returns all stored merchant locations ordered by name.
func (s *Store) ListLocations(ctx context.Context) ([]catalog.Location, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, name, address, timezone, status FROM locations ORDER BY name COLLATE NOCASE ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	var out []catalog.Location
	for rows.Next() {
		var l catalog.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Address, &l.Timezone, &l.Status); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ReplaceLocations swaps the locations table contents wholesale.
// Locations have no version or tombstone semantics.
func (s *Store) ReplaceLocations(ctx context.Context, locations []catalog.Location) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM locations"); err != nil {
			return fmt.Errorf("failed to clear locations: %w", err)
		}
		for _, l := range locations {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO locations (id, name, address, timezone, status)
				VALUES (?, ?, ?, ?, ?)
			`, l.ID, l.Name, l.Address, l.Timezone, l.Status); err != nil {
				return fmt.Errorf("failed to insert location %s: %w", l.ID, err)
			}
		}
		return nil
	})
}

// GetObjectRow looks up a catalog id across all tables in the same
// priority order deletion uses. Returns ErrNotFound if no table has it.
func (s *Store) GetObjectRow(ctx context.Context, id string) (*ObjectRow, error) {
	for _, table := range deleteOrder {
		var row ObjectRow
		var isDeleted int
		err := s.conn.QueryRowContext(ctx,
			fmt.Sprintf("SELECT id, updated_at, version, is_deleted, data_json FROM %s WHERE id = ?", table),
			id).Scan(&row.ID, &row.UpdatedAt, &row.Version, &isDeleted, &row.DataJSON)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up %s in %s: %w", id, table, err)
		}
		row.Table = table
		row.Type = typeForTable(table)
		row.IsDeleted = isDeleted != 0
		return &row, nil
	}
	return nil, ErrNotFound
}

// ItemVariations returns the variations of an item ordered by ordinal,
// then id, including tombstoned rows (callers filter as needed).
func (s *Store) ItemVariations(ctx context.Context, itemID string) ([]Variation, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, item_id, name, sku, upc, ordinal, price_amount, price_currency, is_deleted
		FROM item_variations WHERE item_id = ?
		ORDER BY ordinal ASC, id ASC
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query variations for %s: %w", itemID, err)
	}
	defer rows.Close()

	var out []Variation
	for rows.Next() {
		v, err := scanVariation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanVariation(rows *sql.Rows) (Variation, error) {
	var v Variation
	var amount sql.NullInt64
	var isDeleted int
	if err := rows.Scan(&v.ID, &v.ItemID, &v.Name, &v.SKU, &v.UPC, &v.Ordinal,
		&amount, &v.PriceCurrency, &isDeleted); err != nil {
		return v, fmt.Errorf("failed to scan variation: %w", err)
	}
	if amount.Valid {
		a := amount.Int64
		v.PriceAmount = &a
	}
	v.IsDeleted = isDeleted != 0
	return v, nil
}
