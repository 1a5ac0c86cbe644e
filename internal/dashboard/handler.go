// Package dashboard provides event handling and message formatting for the dashboard.
package dashboard

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/joylabs/catsync/internal/events"
)

// Handler subscribes to the replica event bus and formats events as
// dashboard messages. It bridges between storage events and the
// WebSocket server.
type Handler struct {
	server *Server
	logger *log.Logger

	// Statistics tracking
	statsMu sync.Mutex
	stats   *StatsData

	cancel func()
	done   chan struct{}
}

// NewHandler creates a new event handler connected to a dashboard server
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}

	return &Handler{
		server: server,
		logger: logger,
		stats: &StatsData{
			ByType: make(map[string]int),
		},
		done: make(chan struct{}),
	}
}

// Attach subscribes the handler to a bus and starts forwarding events.
// Call Detach to stop.
func (h *Handler) Attach(bus *events.Bus) {
	ch, cancel := bus.Subscribe(256)
	h.cancel = cancel

	go func() {
		defer close(h.done)
		for ev := range ch {
			h.handle(ev)
		}
	}()
}

// Detach unsubscribes from the bus and waits for the forwarding
// goroutine to drain.
func (h *Handler) Detach() {
	if h.cancel != nil {
		h.cancel()
		<-h.done
	}
}

// handle dispatches one bus event to the matching formatter.
func (h *Handler) handle(ev events.Event) {
	switch ev.Kind {
	case events.KindObjectUpdated:
		h.onObjectUpdated(ev)
	case events.KindObjectDeleted:
		h.onObjectDeleted(ev)
	case events.KindSyncCompleted:
		h.onSyncCompleted(ev)
	case events.KindSyncFailed:
		h.onSyncFailed(ev)
	default:
		h.logger.Printf("Unknown event kind: %s", ev.Kind)
	}
}

// onObjectUpdated handles catalog object upsert events
func (h *Handler) onObjectUpdated(ev events.Event) {
	h.logger.Printf("Object updated: %s (%s)", ev.ObjectID, ev.ObjectType)

	h.statsMu.Lock()
	h.stats.ObjectUpdates++
	h.stats.ByType[ev.ObjectType]++
	h.statsMu.Unlock()

	data := ObjectUpdateData{
		ObjectID:   ev.ObjectID,
		ObjectType: ev.ObjectType,
		Action:     "updated",
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal object data: %v", err)
		return
	}

	h.server.Broadcast(Message{
		Type:      MessageTypeObjectUpdate,
		Timestamp: ev.Timestamp,
		Data:      dataJSON,
	})

	h.broadcastStats()
}

// onObjectDeleted handles catalog object deletion events
func (h *Handler) onObjectDeleted(ev events.Event) {
	h.logger.Printf("Object deleted: %s (%s)", ev.ObjectID, ev.ObjectType)

	h.statsMu.Lock()
	h.stats.ObjectDeletes++
	h.statsMu.Unlock()

	data := ObjectUpdateData{
		ObjectID:   ev.ObjectID,
		ObjectType: ev.ObjectType,
		Action:     "deleted",
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal object data: %v", err)
		return
	}

	h.server.Broadcast(Message{
		Type:      MessageTypeObjectUpdate,
		Timestamp: ev.Timestamp,
		Data:      dataJSON,
	})

	h.broadcastStats()
}

// onSyncCompleted handles sync run summary events
func (h *Handler) onSyncCompleted(ev events.Event) {
	h.logger.Printf("Sync complete: %d objects, %d deletes across %d pages in %v",
		ev.Objects, ev.Deletes, ev.Pages, ev.Duration)

	h.statsMu.Lock()
	h.stats.SyncRuns++
	h.statsMu.Unlock()

	data := SyncCompleteData{
		SyncType: ev.SyncType,
		Objects:  ev.Objects,
		Deletes:  ev.Deletes,
		Pages:    ev.Pages,
		Duration: ev.Duration,
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal sync data: %v", err)
		return
	}

	h.server.Broadcast(Message{
		Type:      MessageTypeSyncComplete,
		Timestamp: ev.Timestamp,
		Data:      dataJSON,
	})

	h.broadcastStats()
}

// onSyncFailed handles sync failure events
func (h *Handler) onSyncFailed(ev events.Event) {
	h.logger.Printf("Sync failed: %s", ev.Error)

	h.statsMu.Lock()
	h.stats.SyncFailures++
	h.statsMu.Unlock()

	data := SyncFailedData{
		SyncType: ev.SyncType,
		Error:    ev.Error,
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal sync failure data: %v", err)
		return
	}

	h.server.Broadcast(Message{
		Type:      MessageTypeSyncFailed,
		Timestamp: ev.Timestamp,
		Data:      dataJSON,
	})

	h.broadcastStats()
}

// broadcastStats sends current statistics to all clients
func (h *Handler) broadcastStats() {
	h.statsMu.Lock()
	dataJSON, err := json.Marshal(h.stats)
	h.statsMu.Unlock()
	if err != nil {
		h.logger.Printf("Failed to marshal stats: %v", err)
		return
	}

	h.server.Broadcast(Message{
		Type:      MessageTypeStats,
		Timestamp: time.Now(),
		Data:      dataJSON,
	})
}

// GetStats returns a copy of the current statistics
func (h *Handler) GetStats() StatsData {
	h.statsMu.Lock()
	defer h.statsMu.Unlock()

	out := *h.stats
	out.ByType = make(map[string]int, len(h.stats.ByType))
	for k, v := range h.stats.ByType {
		out.ByType[k] = v
	}
	return out
}
