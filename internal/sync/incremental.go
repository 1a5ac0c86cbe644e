package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/joylabs/catsync/internal/catalog"
	"github.com/joylabs/catsync/internal/store"
)

// IncrementalSync pulls only objects changed since the stored incremental
// cursor and applies them: deletions first, then upserts, per page.
//
// The persisted cursor always belongs to the most recent fully processed
// page, never to a page that failed; a mid-page failure must not silently
// advance past unprocessed data. On success the final cursor is stored
// and the error/attempt state cleared; on failure only fully committed
// pages are reflected.
//
// Returns store.ErrSyncInProgress if another sync is running.
func (s *Syncer) IncrementalSync(ctx context.Context) (err error) {
	if authErr := s.api.EnsureAuthorized(ctx); authErr != nil {
		return fmt.Errorf("incremental sync precondition failed: %w", authErr)
	}

	attemptID, err := s.store.BeginSync(ctx, store.SyncTypeIncremental)
	if err != nil {
		return err
	}

	started := time.Now()
	s.logger.Printf("Incremental sync started (attempt %s)", attemptID)

	defer func() {
		if err == nil {
			return
		}
		if failErr := s.store.FailSync(ctx, err.Error()); failErr != nil {
			s.logger.Printf("Error recording sync failure: %v", failErr)
		}
		s.publishFailure(store.SyncTypeIncremental, err)
	}()

	status, err := s.store.SyncStatus(ctx)
	if err != nil {
		return err
	}

	cursor := status.LastIncrementalSyncCursor
	var pages, upserted, deleted int

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("page %d: %w", pages+1, ctxErr)
			return err
		}

		page, fetchErr := s.api.FetchChanges(ctx, cursor)
		if fetchErr != nil {
			err = fmt.Errorf("page %d: %w", pages+1, fetchErr)
			return err
		}

		tombstones, updates := partitionChanges(page.Objects)

		// Deletions apply before upserts so a delete-then-recreate pair
		// in one page lands in the right order.
		for _, obj := range tombstones {
			if delErr := s.store.DeleteObject(ctx, obj.ID, store.ApplyOptions{Bulk: true}); delErr != nil {
				err = fmt.Errorf("page %d: delete %s: %w", pages+1, obj.ID, delErr)
				return err
			}
			deleted++
		}

		if _, applyErr := s.store.ApplyUpserts(ctx, updates, store.ApplyOptions{Bulk: true}); applyErr != nil {
			err = fmt.Errorf("page %d: %w", pages+1, applyErr)
			return err
		}
		upserted += len(updates)

		pages++
		s.logger.Printf("Applied change page %d: %d upserts, %d deletes",
			pages, len(updates), len(tombstones))

		if page.Cursor == "" {
			break
		}

		// This page is fully committed; the cursor may now advance.
		cursor = page.Cursor
		if err = s.store.SetIncrementalCursor(ctx, cursor); err != nil {
			return err
		}
	}

	if err = s.store.FinishIncrementalSync(ctx, cursor); err != nil {
		return err
	}

	s.logger.Printf("Incremental sync complete: %d upserts, %d deletes in %d pages (%v)",
		upserted, deleted, pages, time.Since(started).Round(time.Millisecond))
	s.publishSummary(store.SyncTypeIncremental, upserted, deleted, pages, started)
	return nil
}

// partitionChanges splits a change page into tombstones and upserts.
func partitionChanges(objs []catalog.Object) (tombstones, updates []catalog.Object) {
	for _, obj := range objs {
		if obj.IsDeleted {
			tombstones = append(tombstones, obj)
		} else {
			updates = append(updates, obj)
		}
	}
	return tombstones, updates
}
