// Package sync provides the full and incremental sync drivers that keep
// the local catalog replica consistent with the remote source of truth.
//
// Both drivers are pull-based and cursor-checkpointed: every fully
// applied page persists its cursor into the sync status record, so a
// crash or failure resumes from the last committed page instead of
// starting over. The drivers are mutually exclusive via the in-progress
// flag in sync status, checked atomically at the start of each run.
//
// Cancellation is cooperative: a driver observes ctx at page boundaries
// but does not interrupt an in-flight page fetch.
package sync

import (
	"context"

	"github.com/joylabs/catsync/internal/catalog"
	"github.com/joylabs/catsync/internal/events"
)

// RemoteAPI is the remote catalog surface the drivers consume. The remote
// package provides the production HTTP implementation; tests substitute a
// fake.
type RemoteAPI interface {
	// EnsureAuthorized verifies the access token. A failure aborts the
	// sync attempt before any sync state is mutated.
	EnsureAuthorized(ctx context.Context) error

	// FetchPage returns one page of the full catalog listing. An empty
	// returned cursor terminates the full sync loop.
	FetchPage(ctx context.Context, cursor string, limit int) (*catalog.Page, error)

	// FetchChanges returns one page of objects changed since the cursor,
	// tombstones included.
	FetchChanges(ctx context.Context, cursor string) (*catalog.Page, error)

	// FetchLocations returns the merchant location list.
	FetchLocations(ctx context.Context) ([]catalog.Location, error)
}

// EventPublisher receives the per-run summary events the drivers emit in
// place of per-object notifications.
type EventPublisher interface {
	Publish(ev events.Event)
}
