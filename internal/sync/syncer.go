package sync

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joylabs/catsync/internal/events"
	"github.com/joylabs/catsync/internal/store"
)

// defaultPageSize is how many objects one full-sync page requests.
const defaultPageSize = 1000

// Syncer owns the two sync drivers. It holds the store, the remote API,
// and the event publisher for run summaries.
type Syncer struct {
	store    *store.Store
	api      RemoteAPI
	bus      EventPublisher
	logger   *log.Logger
	pageSize int
}

// New creates a Syncer.
//
// The store must have its schema ensured before the first sync. If bus is
// nil, no summary events are published. If logger is nil, a default
// logger writing to stderr is used.
func New(st *store.Store, api RemoteAPI, bus EventPublisher, logger *log.Logger) *Syncer {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Syncer{
		store:    st,
		api:      api,
		bus:      bus,
		logger:   logger,
		pageSize: defaultPageSize,
	}
}

// SetPageSize overrides the full-sync page size. Values outside 1..1000
// are clamped to the default.
func (s *Syncer) SetPageSize(n int) {
	if n <= 0 || n > defaultPageSize {
		n = defaultPageSize
	}
	s.pageSize = n
}

// Status returns the current sync status record.
func (s *Syncer) Status(ctx context.Context) (*store.SyncStatus, error) {
	return s.store.SyncStatus(ctx)
}

// publishSummary emits the per-run completion event bulk mode relies on.
func (s *Syncer) publishSummary(syncType store.SyncType, objects, deletes, pages int, started time.Time) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		Kind:     events.KindSyncCompleted,
		SyncType: string(syncType),
		Objects:  objects,
		Deletes:  deletes,
		Pages:    pages,
		Duration: time.Since(started),
	})
}

func (s *Syncer) publishFailure(syncType store.SyncType, err error) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		Kind:     events.KindSyncFailed,
		SyncType: string(syncType),
		Error:    err.Error(),
	})
}
