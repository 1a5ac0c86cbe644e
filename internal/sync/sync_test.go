package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/joylabs/catsync/internal/catalog"
	"github.com/joylabs/catsync/internal/events"
	"github.com/joylabs/catsync/internal/store"
)

// setupTestStore creates a temporary replica database with its schema
// ensured.
func setupTestStore(t *testing.T) *store.Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("failed to ensure schema: %v", err)
	}
	return st
}

// wireObject builds a catalog object the way the fetch path produces it.
func wireObject(t *testing.T, data string) catalog.Object {
	t.Helper()

	var obj catalog.Object
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		t.Fatalf("failed to decode wire object: %v", err)
	}
	return obj
}

func wireItem(t *testing.T, id, name string) catalog.Object {
	t.Helper()
	return wireObject(t, fmt.Sprintf(`{"type": "ITEM", "id": %q, "item_data": {"name": %q}}`, id, name))
}

func wireTombstone(t *testing.T, id string) catalog.Object {
	t.Helper()
	return wireObject(t, fmt.Sprintf(`{"type": "ITEM", "id": %q, "is_deleted": true}`, id))
}

// fakeAPI serves canned pages keyed by the requested cursor and records
// the cursors it was asked for.
type fakeAPI struct {
	authErr     error
	pages       map[string]*catalog.Page // full listing, keyed by cursor
	changePages map[string]*catalog.Page // change feed, keyed by cursor
	pageErrs    map[string]error
	locations   []catalog.Location

	fetchedCursors []string
}

func (f *fakeAPI) EnsureAuthorized(ctx context.Context) error {
	return f.authErr
}

func (f *fakeAPI) FetchPage(ctx context.Context, cursor string, limit int) (*catalog.Page, error) {
	f.fetchedCursors = append(f.fetchedCursors, cursor)
	if err := f.pageErrs[cursor]; err != nil {
		return nil, err
	}
	page, ok := f.pages[cursor]
	if !ok {
		return &catalog.Page{}, nil
	}
	return page, nil
}

func (f *fakeAPI) FetchChanges(ctx context.Context, cursor string) (*catalog.Page, error) {
	f.fetchedCursors = append(f.fetchedCursors, cursor)
	if err := f.pageErrs[cursor]; err != nil {
		return nil, err
	}
	page, ok := f.changePages[cursor]
	if !ok {
		return &catalog.Page{}, nil
	}
	return page, nil
}

func (f *fakeAPI) FetchLocations(ctx context.Context) ([]catalog.Location, error) {
	return f.locations, nil
}

// TestFullSyncTwoPages verifies pagination, cursor clearing, and the
// recorded completion state.
func TestFullSyncTwoPages(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	api := &fakeAPI{
		pages: map[string]*catalog.Page{
			"":   {Objects: []catalog.Object{wireItem(t, "item-1", "First")}, Cursor: "c2"},
			"c2": {Objects: []catalog.Object{wireItem(t, "item-2", "Second")}, Cursor: ""},
		},
		locations: []catalog.Location{{ID: "loc-1", Name: "Downtown"}},
	}

	syncer := New(st, api, nil, nil)
	if err := syncer.FullSync(ctx); err != nil {
		t.Fatalf("FullSync failed: %v", err)
	}

	if len(api.fetchedCursors) != 2 || api.fetchedCursors[1] != "c2" {
		t.Errorf("fetched cursors = %v, want [\"\" c2]", api.fetchedCursors)
	}

	for _, id := range []string{"item-1", "item-2"} {
		if _, err := st.GetObjectRow(ctx, id); err != nil {
			t.Errorf("object %s missing after sync: %v", id, err)
		}
	}

	status, err := st.SyncStatus(ctx)
	if err != nil {
		t.Fatalf("SyncStatus failed: %v", err)
	}
	if status.IsSyncing {
		t.Error("in-progress flag should be released")
	}
	if status.LastPageCursor != "" {
		t.Errorf("page cursor = %q, want cleared", status.LastPageCursor)
	}
	if status.LastSyncTime.IsZero() {
		t.Error("completion time should be recorded")
	}

	locations, err := st.ListLocations(ctx)
	if err != nil {
		t.Fatalf("ListLocations failed: %v", err)
	}
	if len(locations) != 1 {
		t.Errorf("locations = %+v, want the refreshed list", locations)
	}
}

// TestFullSyncFreshStartClears verifies a from-scratch run empties the
// catalog tables before the first page.
func TestFullSyncFreshStartClears(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	// Pre-existing local state from an earlier replica generation.
	if _, err := st.ApplyUpserts(ctx, []catalog.Object{wireItem(t, "stale", "Stale")}, store.ApplyOptions{Bulk: true}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	api := &fakeAPI{
		pages: map[string]*catalog.Page{
			"": {Objects: []catalog.Object{wireItem(t, "fresh", "Fresh")}},
		},
	}

	if err := New(st, api, nil, nil).FullSync(ctx); err != nil {
		t.Fatalf("FullSync failed: %v", err)
	}

	if _, err := st.GetObjectRow(ctx, "stale"); !errors.Is(err, store.ErrNotFound) {
		t.Error("fresh full sync should have cleared the stale row")
	}
	if _, err := st.GetObjectRow(ctx, "fresh"); err != nil {
		t.Errorf("fresh row missing: %v", err)
	}
}

// TestFullSyncResumeSkipsClear verifies a stored page cursor makes the
// run resume from it without discarding applied progress.
func TestFullSyncResumeSkipsClear(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	// Progress from an interrupted run: page one applied, cursor stored.
	if _, err := st.ApplyUpserts(ctx, []catalog.Object{wireItem(t, "item-1", "First")}, store.ApplyOptions{Bulk: true}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if _, err := st.BeginSync(ctx, store.SyncTypeFull); err != nil {
		t.Fatalf("BeginSync failed: %v", err)
	}
	if err := st.UpdateSyncProgress(ctx, 1, 1, "c2"); err != nil {
		t.Fatalf("UpdateSyncProgress failed: %v", err)
	}
	if err := st.FailSync(ctx, "interrupted"); err != nil {
		t.Fatalf("FailSync failed: %v", err)
	}

	api := &fakeAPI{
		pages: map[string]*catalog.Page{
			"c2": {Objects: []catalog.Object{wireItem(t, "item-2", "Second")}},
		},
	}

	if err := New(st, api, nil, nil).FullSync(ctx); err != nil {
		t.Fatalf("resumed FullSync failed: %v", err)
	}

	if len(api.fetchedCursors) != 1 || api.fetchedCursors[0] != "c2" {
		t.Errorf("fetched cursors = %v, want resume from c2 only", api.fetchedCursors)
	}
	if _, err := st.GetObjectRow(ctx, "item-1"); err != nil {
		t.Error("resume must not re-clear already-applied progress")
	}
	if _, err := st.GetObjectRow(ctx, "item-2"); err != nil {
		t.Errorf("resumed page missing: %v", err)
	}
}

// TestFullSyncFailureKeepsCursor verifies a mid-run failure records the
// error and leaves the last good cursor for the next attempt.
func TestFullSyncFailureKeepsCursor(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	api := &fakeAPI{
		pages: map[string]*catalog.Page{
			"": {Objects: []catalog.Object{wireItem(t, "item-1", "First")}, Cursor: "c2"},
		},
		pageErrs: map[string]error{"c2": errors.New("connection reset")},
	}

	err := New(st, api, nil, nil).FullSync(ctx)
	if err == nil {
		t.Fatal("FullSync should fail when a page fetch fails")
	}

	status, statusErr := st.SyncStatus(ctx)
	if statusErr != nil {
		t.Fatalf("SyncStatus failed: %v", statusErr)
	}
	if status.IsSyncing {
		t.Error("failed run should release the in-progress flag")
	}
	if status.LastPageCursor != "c2" {
		t.Errorf("page cursor = %q, want c2 for resumption", status.LastPageCursor)
	}
	if status.SyncError == "" {
		t.Error("failure should be recorded in sync status")
	}

	// Page one's objects are committed; only the failed page is missing.
	if _, err := st.GetObjectRow(ctx, "item-1"); err != nil {
		t.Error("committed page should survive the failure")
	}
}

// TestFullSyncAuthFailureTouchesNothing verifies a rejected token aborts
// before any sync state changes.
func TestFullSyncAuthFailureTouchesNothing(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	api := &fakeAPI{authErr: errors.New("token rejected")}

	if err := New(st, api, nil, nil).FullSync(ctx); err == nil {
		t.Fatal("FullSync should fail on an auth error")
	}

	status, err := st.SyncStatus(ctx)
	if err != nil {
		t.Fatalf("SyncStatus failed: %v", err)
	}
	if status.SyncAttemptCount != 0 {
		t.Errorf("attempt count = %d, want 0 (no attempt should be recorded)", status.SyncAttemptCount)
	}
	if len(api.fetchedCursors) != 0 {
		t.Error("no pages should be fetched after an auth failure")
	}
}

// TestFullSyncMutualExclusion verifies a held in-progress flag surfaces
// as ErrSyncInProgress.
func TestFullSyncMutualExclusion(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	if _, err := st.BeginSync(ctx, store.SyncTypeIncremental); err != nil {
		t.Fatalf("BeginSync failed: %v", err)
	}

	api := &fakeAPI{}
	if err := New(st, api, nil, nil).FullSync(ctx); !errors.Is(err, store.ErrSyncInProgress) {
		t.Errorf("error = %v, want ErrSyncInProgress", err)
	}
}

// TestIncrementalSyncAppliesChanges verifies tombstones delete before
// upserts apply and the final non-empty cursor is stored.
func TestIncrementalSyncAppliesChanges(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	if _, err := st.ApplyUpserts(ctx, []catalog.Object{
		wireItem(t, "item-1", "Doomed"),
		wireItem(t, "item-2", "Old Name"),
	}, store.ApplyOptions{Bulk: true}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	api := &fakeAPI{
		changePages: map[string]*catalog.Page{
			"": {
				Objects: []catalog.Object{
					wireTombstone(t, "item-1"),
					wireItem(t, "item-2", "New Name"),
				},
				Cursor: "c2",
			},
			"c2": {Objects: nil, Cursor: ""},
		},
	}

	if err := New(st, api, nil, nil).IncrementalSync(ctx); err != nil {
		t.Fatalf("IncrementalSync failed: %v", err)
	}

	if _, err := st.GetObjectRow(ctx, "item-1"); !errors.Is(err, store.ErrNotFound) {
		t.Error("tombstoned object should be deleted")
	}
	row, err := st.GetObjectRow(ctx, "item-2")
	if err != nil {
		t.Fatalf("updated object missing: %v", err)
	}
	if row.ID != "item-2" {
		t.Errorf("row id = %q", row.ID)
	}

	status, err := st.SyncStatus(ctx)
	if err != nil {
		t.Fatalf("SyncStatus failed: %v", err)
	}
	// The empty terminal cursor is never stored; the last non-empty one is.
	if status.LastIncrementalSyncCursor != "c2" {
		t.Errorf("incremental cursor = %q, want c2", status.LastIncrementalSyncCursor)
	}
	if status.LastSyncTime.IsZero() {
		t.Error("completion time should be recorded")
	}
}

// TestIncrementalSyncFailureHoldsCursor verifies the stored cursor never
// advances past a page that failed to apply.
func TestIncrementalSyncFailureHoldsCursor(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	if err := st.SetIncrementalCursor(ctx, "c1"); err != nil {
		t.Fatalf("SetIncrementalCursor failed: %v", err)
	}

	api := &fakeAPI{
		changePages: map[string]*catalog.Page{
			"c1": {Objects: []catalog.Object{wireItem(t, "item-1", "Applied")}, Cursor: "c2"},
		},
		pageErrs: map[string]error{"c2": errors.New("timeout")},
	}

	if err := New(st, api, nil, nil).IncrementalSync(ctx); err == nil {
		t.Fatal("IncrementalSync should fail on the second page")
	}

	status, err := st.SyncStatus(ctx)
	if err != nil {
		t.Fatalf("SyncStatus failed: %v", err)
	}
	// Page c1 was fully applied so its successor cursor is safe to keep.
	if status.LastIncrementalSyncCursor != "c2" {
		t.Errorf("incremental cursor = %q, want c2 (last fully-applied page)", status.LastIncrementalSyncCursor)
	}
	if _, err := st.GetObjectRow(ctx, "item-1"); err != nil {
		t.Error("committed change page should survive the failure")
	}
}

// TestSyncPublishesSummary verifies bulk runs emit exactly one summary
// event instead of per-object notifications.
func TestSyncPublishesSummary(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	bus := events.NewBus(nil)
	ch, cancel := bus.Subscribe(16)
	defer cancel()

	api := &fakeAPI{
		pages: map[string]*catalog.Page{
			"": {Objects: []catalog.Object{wireItem(t, "item-1", "First"), wireItem(t, "item-2", "Second")}},
		},
	}

	if err := New(st, api, bus, nil).FullSync(ctx); err != nil {
		t.Fatalf("FullSync failed: %v", err)
	}

	ev := <-ch
	if ev.Kind != events.KindSyncCompleted {
		t.Fatalf("event kind = %q, want sync_completed", ev.Kind)
	}
	if ev.Objects != 2 || ev.Pages != 1 {
		t.Errorf("summary = %d objects / %d pages, want 2 / 1", ev.Objects, ev.Pages)
	}
	if ev.SyncType != string(store.SyncTypeFull) {
		t.Errorf("sync type = %q, want full", ev.SyncType)
	}

	select {
	case extra := <-ch:
		t.Errorf("unexpected extra event: %+v", extra)
	default:
	}
}

// TestSyncPublishesFailure verifies failed runs emit a failure event.
func TestSyncPublishesFailure(t *testing.T) {
	st := setupTestStore(t)

	bus := events.NewBus(nil)
	ch, cancel := bus.Subscribe(16)
	defer cancel()

	api := &fakeAPI{pageErrs: map[string]error{"": errors.New("unreachable")}}

	if err := New(st, api, bus, nil).FullSync(context.Background()); err == nil {
		t.Fatal("FullSync should fail")
	}

	ev := <-ch
	if ev.Kind != events.KindSyncFailed {
		t.Fatalf("event kind = %q, want sync_failed", ev.Kind)
	}
	if ev.Error == "" {
		t.Error("failure event should carry the error message")
	}
}

// TestPartitionChanges verifies the tombstone/update split.
func TestPartitionChanges(t *testing.T) {
	objs := []catalog.Object{
		wireTombstone(t, "dead-1"),
		wireItem(t, "live-1", "Alive"),
		wireTombstone(t, "dead-2"),
	}

	tombstones, updates := partitionChanges(objs)
	if len(tombstones) != 2 || len(updates) != 1 {
		t.Errorf("partition = %d tombstones / %d updates, want 2 / 1", len(tombstones), len(updates))
	}
}
