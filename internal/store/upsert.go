package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/joylabs/catsync/internal/catalog"
)

// ApplyOptions controls batch behavior for upserts and deletes.
type ApplyOptions struct {
	// Bulk suppresses per-object change events. Sync drivers set this and
	// publish their own completion summary so observers aren't flooded
	// with thousands of events during a full sync.
	Bulk bool
}

// ApplyStats summarizes what one ApplyUpserts call committed.
type ApplyStats struct {
	Upserted        int // rows written with changed content
	Unchanged       int // rows whose data_json was byte-identical
	SkippedObjects  int // top-level objects of unsupported type
	SkippedChildren int // nested children dropped without failing the parent
}

// ApplyUpserts normalizes a batch of wire objects and applies them inside
// a single transaction with INSERT OR REPLACE semantics.
//
// Failure policy: a nested child row that fails to normalize or persist is
// logged and skipped without aborting the parent object or the
// transaction. A top-level row failure aborts the whole transaction.
// Objects of unsupported type are skipped with a warning.
//
// Rows whose stored data_json is byte-identical are not rewritten and emit
// no change event, which makes applying the same batch twice a no-op.
// After a successful commit, one event per top-level object (UPDATE or
// DELETE, inferred from the tombstone flag) goes to the event sink unless
// opts.Bulk is set.
func (s *Store) ApplyUpserts(ctx context.Context, objs []catalog.Object, opts ApplyOptions) (ApplyStats, error) {
	var stats ApplyStats
	var pending []pendingEvent

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, obj := range objs {
			res, err := Normalize(obj)
			if err != nil {
				if errors.Is(err, catalog.ErrUnsupportedType) {
					s.logger.Printf("Warning: skipping object %s: %v", obj.ID, err)
					stats.SkippedObjects++
					continue
				}
				return fmt.Errorf("failed to normalize object %s: %w", obj.ID, err)
			}

			for _, skipped := range res.Skipped {
				s.logger.Printf("Warning: skipping nested child %s: %v", skipped.ID, skipped.Err)
				stats.SkippedChildren++
			}

			changed := false
			for i, row := range res.Rows {
				topLevel := i == 0
				wrote, err := upsertRow(ctx, tx, row)
				if err != nil {
					if topLevel {
						return fmt.Errorf("failed to upsert %s row %s: %w", row.Table, row.ID, err)
					}
					// Child persistence failure: log, skip, keep going.
					s.logger.Printf("Warning: failed to persist child row %s in %s: %v", row.ID, row.Table, err)
					stats.SkippedChildren++
					continue
				}
				if wrote {
					stats.Upserted++
					changed = true
				} else {
					stats.Unchanged++
				}
			}

			if changed {
				pending = append(pending, pendingEvent{
					objectType: string(obj.Type),
					id:         obj.ID,
					deleted:    obj.IsDeleted,
					raw:        res.Rows[0].DataJSON,
				})
			}
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	if !opts.Bulk && s.events != nil {
		for _, ev := range pending {
			if ev.deleted {
				s.events.ObjectDeleted(ev.objectType, ev.id, ev.raw)
			} else {
				s.events.ObjectUpdated(ev.objectType, ev.id, ev.raw)
			}
		}
	}

	return stats, nil
}

type pendingEvent struct {
	objectType string
	id         string
	deleted    bool
	raw        []byte
}

// upsertRow writes one normalized row, returning false when the existing
// data_json is byte-identical and nothing was written.
func upsertRow(ctx context.Context, tx *sql.Tx, row Row) (bool, error) {
	var existing []byte
	err := tx.QueryRowContext(ctx,
		fmt.Sprintf("SELECT data_json FROM %s WHERE id = ?", row.Table), row.ID).Scan(&existing)
	if err != nil && err != sql.ErrNoRows {
		return false, err
	}
	if err == nil && bytes.Equal(existing, row.DataJSON) {
		return false, nil
	}

	cols := append([]string{"id"}, row.Cols...)
	cols = append(cols, "data_json")
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	args := make([]any, 0, len(cols))
	args = append(args, row.ID)
	args = append(args, row.Vals...)
	args = append(args, string(row.DataJSON))

	query := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		row.Table, strings.Join(cols, ", "), placeholders)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return false, err
	}
	return true, nil
}
