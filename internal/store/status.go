package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SyncType distinguishes the two sync drivers in the status record.
type SyncType string

const (
	SyncTypeFull        SyncType = "full"
	SyncTypeIncremental SyncType = "incremental"
)

// ErrSyncInProgress is returned by BeginSync when another sync already
// holds the in-progress flag. The flag is advisory (single process), not a
// multi-process lock.
var ErrSyncInProgress = errors.New("a sync is already in progress")

// SyncStatus is the singleton sync-state record (row id = 1). It is
// created at schema initialization and mutated exclusively by the sync
// drivers through the Begin/Progress/Finish/Fail methods below.
type SyncStatus struct {
	LastSyncTime              time.Time
	IsSyncing                 bool
	SyncError                 string
	SyncProgress              int
	SyncTotal                 int
	SyncType                  SyncType
	LastPageCursor            string
	LastIncrementalSyncCursor string
	LastSyncAttempt           time.Time
	SyncAttemptCount          int
	AttemptID                 string
}

// SyncStatus reads the current sync-state record.
func (s *Store) SyncStatus(ctx context.Context) (*SyncStatus, error) {
	var st SyncStatus
	var lastSync, lastAttempt, syncType string
	var isSyncing int

	err := s.conn.QueryRowContext(ctx, `
		SELECT last_sync_time, is_syncing, sync_error, sync_progress, sync_total,
		       sync_type, last_page_cursor, last_incremental_sync_cursor,
		       last_sync_attempt, sync_attempt_count, attempt_id
		FROM sync_status WHERE id = 1
	`).Scan(&lastSync, &isSyncing, &st.SyncError, &st.SyncProgress, &st.SyncTotal,
		&syncType, &st.LastPageCursor, &st.LastIncrementalSyncCursor,
		&lastAttempt, &st.SyncAttemptCount, &st.AttemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to read sync status: %w", err)
	}

	st.IsSyncing = isSyncing != 0
	st.SyncType = SyncType(syncType)
	st.LastSyncTime = parseTimeOrZero(lastSync)
	st.LastSyncAttempt = parseTimeOrZero(lastAttempt)
	return &st, nil
}

// BeginSync atomically claims the in-progress flag for a new sync run.
// Returns ErrSyncInProgress if another run holds it. On success the
// attempt counter is incremented, the error and progress fields are reset,
// and a fresh attempt id is generated for log correlation.
func (s *Store) BeginSync(ctx context.Context, syncType SyncType) (string, error) {
	attemptID := uuid.NewString()

	res, err := s.conn.ExecContext(ctx, `
		UPDATE sync_status SET
			is_syncing = 1,
			sync_type = ?,
			sync_error = '',
			sync_progress = 0,
			sync_total = 0,
			last_sync_attempt = ?,
			sync_attempt_count = sync_attempt_count + 1,
			attempt_id = ?
		WHERE id = 1 AND is_syncing = 0
	`, string(syncType), time.Now().UTC().Format(time.RFC3339), attemptID)
	if err != nil {
		return "", fmt.Errorf("failed to begin %s sync: %w", syncType, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("failed to begin %s sync: %w", syncType, err)
	}
	if n == 0 {
		return "", ErrSyncInProgress
	}
	return attemptID, nil
}

// UpdateSyncProgress persists progress counters and, for full sync, the
// next-page cursor. The cursor is written immediately after each fully
// applied page so an interruption resumes from there instead of starting
// over.
func (s *Store) UpdateSyncProgress(ctx context.Context, progress, total int, pageCursor string) error {
	_, err := s.conn.ExecContext(ctx, `
		UPDATE sync_status SET sync_progress = ?, sync_total = ?, last_page_cursor = ?
		WHERE id = 1
	`, progress, total, pageCursor)
	if err != nil {
		return fmt.Errorf("failed to update sync progress: %w", err)
	}
	return nil
}

// SetIncrementalCursor records the cursor of the most recent fully
// processed incremental page.
func (s *Store) SetIncrementalCursor(ctx context.Context, cursor string) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE sync_status SET last_incremental_sync_cursor = ? WHERE id = 1`, cursor)
	if err != nil {
		return fmt.Errorf("failed to store incremental cursor: %w", err)
	}
	return nil
}

// FinishFullSync marks a successful full sync: the in-progress flag and
// page cursor are cleared, the attempt counter resets, and the completion
// time is recorded.
func (s *Store) FinishFullSync(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, `
		UPDATE sync_status SET
			is_syncing = 0,
			last_sync_time = ?,
			last_page_cursor = '',
			sync_error = '',
			sync_attempt_count = 0
		WHERE id = 1
	`, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to finish full sync: %w", err)
	}
	return nil
}

// FinishIncrementalSync marks a successful incremental sync and persists
// the final cursor for the next delta pull.
func (s *Store) FinishIncrementalSync(ctx context.Context, cursor string) error {
	_, err := s.conn.ExecContext(ctx, `
		UPDATE sync_status SET
			is_syncing = 0,
			last_sync_time = ?,
			last_incremental_sync_cursor = ?,
			sync_error = '',
			sync_attempt_count = 0
		WHERE id = 1
	`, time.Now().UTC().Format(time.RFC3339), cursor)
	if err != nil {
		return fmt.Errorf("failed to finish incremental sync: %w", err)
	}
	return nil
}

// FailSync records a sync failure. The stored cursors, progress counters,
// and attempt counter are deliberately left alone so the next invocation
// is a resumption rather than a restart.
func (s *Store) FailSync(ctx context.Context, message string) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE sync_status SET is_syncing = 0, sync_error = ? WHERE id = 1`, message)
	if err != nil {
		return fmt.Errorf("failed to record sync error: %w", err)
	}
	return nil
}

func parseTimeOrZero(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
