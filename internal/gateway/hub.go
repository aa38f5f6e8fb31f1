package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/homelab/jarvis/pkg/models"
)

// Hub fans a broadcast event out to every subscribed /ws/events connection
// and, when a store is attached, persists it as the durable event-log row.
// It satisfies both monitor.EventSink and the display tool group's
// Publisher — the two interfaces the rest of the plane pushes events
// through share the identical Publish(ctx, models.Event) shape.
type Hub struct {
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[string]chan []byte

	recorder EventRecorder
}

// EventRecorder persists a broadcast event for later retrieval (GET
// /api/memory/events). Satisfied by *store.Store.
type EventRecorder interface {
	RecordEvent(ctx context.Context, event models.Event) error
}

// NewHub constructs an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{logger: logger.With("component", "gateway.hub"), subs: make(map[string]chan []byte)}
}

// SetRecorder attaches the durable event-log sink. Nil-safe: without one,
// Publish only fans the event out live and skips persistence.
func (h *Hub) SetRecorder(r EventRecorder) {
	h.mu.Lock()
	h.recorder = r
	h.mu.Unlock()
}

// Publish assigns an id and timestamp if the caller left them zero,
// persists the event best-effort, and fans it out to every live
// subscriber. A slow or dead subscriber never blocks the others — its
// channel is buffered and a full channel just drops the event for that
// connection.
func (h *Hub) Publish(ctx context.Context, event models.Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	h.mu.RLock()
	recorder := h.recorder
	h.mu.RUnlock()
	if recorder != nil {
		if err := recorder.RecordEvent(ctx, event); err != nil {
			h.logger.Warn("event record failed", "error", err)
		}
	}

	payload, err := json.Marshal(wsEventFrame{Type: "event", Event: event})
	if err != nil {
		h.logger.Warn("event marshal failed", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- payload:
		default:
			h.logger.Warn("event subscriber backlogged, dropping event", "subscriber", id)
		}
	}
}

// subscribe registers a new subscriber channel and returns it along with an
// unsubscribe func the caller must invoke when its connection closes.
func (h *Hub) subscribe() (string, <-chan []byte, func()) {
	id := uuid.NewString()
	ch := make(chan []byte, 32)
	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()
	return id, ch, func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
		close(ch)
	}
}

type wsEventFrame struct {
	Type  string       `json:"type"`
	Event models.Event `json:"event"`
}
