package store

import (
	"context"
	"errors"
	"testing"
)

// TestBeginSyncMutualExclusion verifies the second claim on the
// in-progress flag fails with ErrSyncInProgress.
func TestBeginSyncMutualExclusion(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	first, err := st.BeginSync(ctx, SyncTypeFull)
	if err != nil {
		t.Fatalf("first BeginSync failed: %v", err)
	}
	if first == "" {
		t.Error("BeginSync should return an attempt id")
	}

	if _, err := st.BeginSync(ctx, SyncTypeIncremental); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("second BeginSync error = %v, want ErrSyncInProgress", err)
	}

	if err := st.FinishFullSync(ctx); err != nil {
		t.Fatalf("FinishFullSync failed: %v", err)
	}

	second, err := st.BeginSync(ctx, SyncTypeIncremental)
	if err != nil {
		t.Fatalf("BeginSync after finish failed: %v", err)
	}
	if second == first {
		t.Error("each attempt should get a fresh attempt id")
	}
}

// TestFailSyncPreservesResumeState verifies a failure keeps the cursors
// and attempt counter so the next run resumes.
func TestFailSyncPreservesResumeState(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	if _, err := st.BeginSync(ctx, SyncTypeFull); err != nil {
		t.Fatalf("BeginSync failed: %v", err)
	}
	if err := st.UpdateSyncProgress(ctx, 500, 500, "page-3"); err != nil {
		t.Fatalf("UpdateSyncProgress failed: %v", err)
	}
	if err := st.FailSync(ctx, "network unreachable"); err != nil {
		t.Fatalf("FailSync failed: %v", err)
	}

	status, err := st.SyncStatus(ctx)
	if err != nil {
		t.Fatalf("SyncStatus failed: %v", err)
	}
	if status.IsSyncing {
		t.Error("failed sync should release the in-progress flag")
	}
	if status.SyncError != "network unreachable" {
		t.Errorf("sync error = %q", status.SyncError)
	}
	if status.LastPageCursor != "page-3" {
		t.Errorf("page cursor = %q, want page-3 (resume state must survive failure)", status.LastPageCursor)
	}
	if status.SyncAttemptCount != 1 {
		t.Errorf("attempt count = %d, want 1", status.SyncAttemptCount)
	}
	if status.SyncProgress != 500 {
		t.Errorf("progress = %d, want 500", status.SyncProgress)
	}
}

// TestBeginSyncResetsErrorState verifies a new attempt clears the error
// and progress of the previous one.
func TestBeginSyncResetsErrorState(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	if _, err := st.BeginSync(ctx, SyncTypeFull); err != nil {
		t.Fatalf("BeginSync failed: %v", err)
	}
	if err := st.UpdateSyncProgress(ctx, 100, 100, "page-1"); err != nil {
		t.Fatalf("UpdateSyncProgress failed: %v", err)
	}
	if err := st.FailSync(ctx, "boom"); err != nil {
		t.Fatalf("FailSync failed: %v", err)
	}

	if _, err := st.BeginSync(ctx, SyncTypeFull); err != nil {
		t.Fatalf("retry BeginSync failed: %v", err)
	}

	status, err := st.SyncStatus(ctx)
	if err != nil {
		t.Fatalf("SyncStatus failed: %v", err)
	}
	if status.SyncError != "" {
		t.Errorf("sync error = %q, want cleared on new attempt", status.SyncError)
	}
	if status.SyncProgress != 0 {
		t.Errorf("progress = %d, want reset to 0", status.SyncProgress)
	}
	if status.SyncAttemptCount != 2 {
		t.Errorf("attempt count = %d, want 2", status.SyncAttemptCount)
	}
	if status.LastPageCursor != "page-1" {
		t.Errorf("page cursor = %q, want page-1 (cursor survives retries)", status.LastPageCursor)
	}
}

// TestFinishFullSyncClearsCursor verifies a completed full sync leaves no
// resume cursor and resets the attempt counter.
func TestFinishFullSyncClearsCursor(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	if _, err := st.BeginSync(ctx, SyncTypeFull); err != nil {
		t.Fatalf("BeginSync failed: %v", err)
	}
	if err := st.UpdateSyncProgress(ctx, 100, 100, "page-2"); err != nil {
		t.Fatalf("UpdateSyncProgress failed: %v", err)
	}
	if err := st.FinishFullSync(ctx); err != nil {
		t.Fatalf("FinishFullSync failed: %v", err)
	}

	status, err := st.SyncStatus(ctx)
	if err != nil {
		t.Fatalf("SyncStatus failed: %v", err)
	}
	if status.LastPageCursor != "" {
		t.Errorf("page cursor = %q, want cleared after success", status.LastPageCursor)
	}
	if status.SyncAttemptCount != 0 {
		t.Errorf("attempt count = %d, want 0 after success", status.SyncAttemptCount)
	}
	if status.LastSyncTime.IsZero() {
		t.Error("completion time should be recorded")
	}
}

// TestFinishIncrementalSyncStoresCursor verifies the final change cursor
// is persisted for the next delta pull.
func TestFinishIncrementalSyncStoresCursor(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	if _, err := st.BeginSync(ctx, SyncTypeIncremental); err != nil {
		t.Fatalf("BeginSync failed: %v", err)
	}
	if err := st.FinishIncrementalSync(ctx, "delta-42"); err != nil {
		t.Fatalf("FinishIncrementalSync failed: %v", err)
	}

	status, err := st.SyncStatus(ctx)
	if err != nil {
		t.Fatalf("SyncStatus failed: %v", err)
	}
	if status.LastIncrementalSyncCursor != "delta-42" {
		t.Errorf("incremental cursor = %q, want delta-42", status.LastIncrementalSyncCursor)
	}
	if status.IsSyncing {
		t.Error("finished sync should release the in-progress flag")
	}
}
