package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TeamData is the user-owned side table keyed by item id: vendor and case
// pack details maintained by staff, not sourced from the remote catalog.
// It has no version or tombstone semantics and survives schema migrations
// and catalog clears.
type TeamData struct {
	ItemID       string
	Vendor       string
	CaseUPC      string
	CaseCost     *int64 // smallest currency unit
	CaseQuantity *int64
	Discontinued bool
	Notes        string
	UpdatedAt    time.Time
}

// UpsertTeamData writes the side-channel record for an item.
func (s *Store) UpsertTeamData(ctx context.Context, td *TeamData) error {
	if td.ItemID == "" {
		return fmt.Errorf("team data item_id is required")
	}

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO team_data (item_id, vendor, case_upc, case_cost, case_quantity, discontinued, notes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			vendor = excluded.vendor,
			case_upc = excluded.case_upc,
			case_cost = excluded.case_cost,
			case_quantity = excluded.case_quantity,
			discontinued = excluded.discontinued,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`, td.ItemID, td.Vendor, td.CaseUPC, nullableInt(td.CaseCost), nullableInt(td.CaseQuantity),
		boolInt(td.Discontinued), td.Notes, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert team data for %s: %w", td.ItemID, err)
	}
	return nil
}

// GetTeamData reads the record for an item. Returns ErrNotFound when none
// exists.
func (s *Store) GetTeamData(ctx context.Context, itemID string) (*TeamData, error) {
	var td TeamData
	var caseCost, caseQty sql.NullInt64
	var discontinued int
	var updatedAt string

	err := s.conn.QueryRowContext(ctx, `
		SELECT item_id, vendor, case_upc, case_cost, case_quantity, discontinued, notes, updated_at
		FROM team_data WHERE item_id = ?
	`, itemID).Scan(&td.ItemID, &td.Vendor, &td.CaseUPC, &caseCost, &caseQty,
		&discontinued, &td.Notes, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read team data for %s: %w", itemID, err)
	}

	if caseCost.Valid {
		v := caseCost.Int64
		td.CaseCost = &v
	}
	if caseQty.Valid {
		v := caseQty.Int64
		td.CaseQuantity = &v
	}
	td.Discontinued = discontinued != 0
	td.UpdatedAt = parseTimeOrZero(updatedAt)
	return &td, nil
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
