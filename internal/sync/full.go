package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/joylabs/catsync/internal/store"
)

// FullSync paginates the entire remote catalog into the local store.
//
// If no page cursor is stored, this is a from-scratch run and the catalog
// tables are cleared first. When a cursor is present, the run resumes
// from it and the destructive clear is skipped; the progress already made
// must not be discarded.
//
// Each page's next cursor is persisted immediately after the page is
// applied, so an interruption resumes from the last fully-applied page.
// On success the cursor is cleared, the completion time is recorded, and
// the attempt counter resets. On failure the cursor stays on disk and the
// error (with the failing page number) is recorded so the next invocation
// is a resumption rather than a restart.
//
// Returns store.ErrSyncInProgress if another sync is running.
func (s *Syncer) FullSync(ctx context.Context) (err error) {
	if authErr := s.api.EnsureAuthorized(ctx); authErr != nil {
		return fmt.Errorf("full sync precondition failed: %w", authErr)
	}

	attemptID, err := s.store.BeginSync(ctx, store.SyncTypeFull)
	if err != nil {
		return err
	}

	started := time.Now()
	s.logger.Printf("Full sync started (attempt %s)", attemptID)

	// Restore is_syncing on every exit path and record the failure.
	defer func() {
		if err == nil {
			return
		}
		if failErr := s.store.FailSync(ctx, err.Error()); failErr != nil {
			s.logger.Printf("Error recording sync failure: %v", failErr)
		}
		s.publishFailure(store.SyncTypeFull, err)
	}()

	status, err := s.store.SyncStatus(ctx)
	if err != nil {
		return err
	}

	cursor := status.LastPageCursor
	if cursor == "" {
		// Destructive clear, allowed only when starting from the very
		// beginning.
		s.logger.Printf("No stored page cursor, clearing catalog tables for fresh sync")
		if err = s.store.ClearCatalog(ctx); err != nil {
			return err
		}
	} else {
		s.logger.Printf("Resuming full sync from stored cursor")
	}

	var pages, total int
	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("page %d: %w", pages+1, ctxErr)
			return err
		}

		page, fetchErr := s.api.FetchPage(ctx, cursor, s.pageSize)
		if fetchErr != nil {
			err = fmt.Errorf("page %d: %w", pages+1, fetchErr)
			return err
		}

		stats, applyErr := s.store.ApplyUpserts(ctx, page.Objects, store.ApplyOptions{Bulk: true})
		if applyErr != nil {
			err = fmt.Errorf("page %d: %w", pages+1, applyErr)
			return err
		}

		pages++
		total += len(page.Objects)
		s.logger.Printf("Applied page %d: %d objects (%d unchanged, %d skipped children)",
			pages, len(page.Objects), stats.Unchanged, stats.SkippedChildren)

		// Checkpoint before moving on so a crash resumes here.
		if err = s.store.UpdateSyncProgress(ctx, total, total, page.Cursor); err != nil {
			return err
		}

		cursor = page.Cursor
		if cursor == "" {
			break
		}
	}

	if locErr := s.refreshLocations(ctx); locErr != nil {
		// Locations are a convenience list, not part of the paged
		// catalog; a refresh failure doesn't fail the sync.
		s.logger.Printf("Warning: failed to refresh locations: %v", locErr)
	}

	if err = s.store.FinishFullSync(ctx); err != nil {
		return err
	}

	s.logger.Printf("Full sync complete: %d objects in %d pages (%v)",
		total, pages, time.Since(started).Round(time.Millisecond))
	s.publishSummary(store.SyncTypeFull, total, 0, pages, started)
	return nil
}

// refreshLocations replaces the stored merchant location list.
func (s *Syncer) refreshLocations(ctx context.Context) error {
	locations, err := s.api.FetchLocations(ctx)
	if err != nil {
		return err
	}
	return s.store.ReplaceLocations(ctx, locations)
}
