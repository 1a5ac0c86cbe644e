// Package events provides the change-notification bus between the storage
// engine and its observers (dashboard, UI refresh logic, reorder-list
// reconciliation).
//
// The storage layer publishes one event per committed top-level object
// outside bulk sync runs; sync drivers publish a single summary event per
// run instead of flooding observers with thousands of per-object events.
package events

import (
	"log"
	"os"
	"sync"
	"time"
)

// Kind identifies what an event describes.
type Kind string

const (
	// KindObjectUpdated signals a catalog object was inserted or updated.
	KindObjectUpdated Kind = "object_updated"

	// KindObjectDeleted signals a catalog object was removed, either by an
	// explicit delete or by an incoming tombstone.
	KindObjectDeleted Kind = "object_deleted"

	// KindSyncCompleted signals a full or incremental sync run finished.
	KindSyncCompleted Kind = "sync_completed"

	// KindSyncFailed signals a sync run aborted with an error.
	KindSyncFailed Kind = "sync_failed"
)

// Event is one change notification.
type Event struct {
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	// Object fields, set for object_updated / object_deleted.
	ObjectID   string `json:"object_id,omitempty"`
	ObjectType string `json:"object_type,omitempty"`
	Raw        []byte `json:"raw,omitempty"`

	// Summary fields, set for sync_completed / sync_failed.
	SyncType string        `json:"sync_type,omitempty"`
	Objects  int           `json:"objects,omitempty"`
	Deletes  int           `json:"deletes,omitempty"`
	Pages    int           `json:"pages,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event and a warning is logged, matching
// the drop-on-full behavior of the dashboard broadcast channel.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	logger *log.Logger
}

// NewBus creates an event bus. If logger is nil, a default stderr logger
// is used.
func NewBus(logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.New(os.Stderr, "[events] ", log.LstdFlags)
	}
	return &Bus{
		subs:   make(map[int]chan Event),
		logger: logger,
	}
}

// Subscribe registers a new subscriber and returns its channel plus a
// cancel function. The cancel function closes the channel and must be
// called exactly once.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Printf("Warning: subscriber buffer full, dropping %s event", ev.Kind)
		}
	}
}

// ObjectUpdated implements the storage layer's event sink.
func (b *Bus) ObjectUpdated(objectType, id string, raw []byte) {
	b.Publish(Event{Kind: KindObjectUpdated, ObjectType: objectType, ObjectID: id, Raw: raw})
}

// ObjectDeleted implements the storage layer's event sink.
func (b *Bus) ObjectDeleted(objectType, id string, raw []byte) {
	b.Publish(Event{Kind: KindObjectDeleted, ObjectType: objectType, ObjectID: id, Raw: raw})
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
