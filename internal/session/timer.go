package session

import (
	"log/slog"
	"time"
)

// RequestTimer records the named monotonic marks of one chat turn's
// pipeline, from receipt through audio delivery, for latency diagnostics.
type RequestTimer struct {
	now    func() time.Time
	start  time.Time
	marks  map[string]time.Time
	order  []string
}

// NewRequestTimer starts a timer at t0 (received).
func NewRequestTimer(now func() time.Time) *RequestTimer {
	if now == nil {
		now = time.Now
	}
	t := &RequestTimer{now: now, marks: make(map[string]time.Time)}
	t.start = now()
	t.Mark("t0_received")
	return t
}

// Mark records the current time under name, if not already recorded.
// Re-marking the same name is a no-op so a mark always reflects its first
// occurrence.
func (t *RequestTimer) Mark(name string) {
	if _, ok := t.marks[name]; ok {
		return
	}
	t.marks[name] = t.now()
	t.order = append(t.order, name)
}

// Breakdown returns each recorded mark's offset from t0 in milliseconds,
// plus "total" for the most recent mark's offset.
func (t *RequestTimer) Breakdown() map[string]int64 {
	out := make(map[string]int64, len(t.marks)+1)
	var last time.Time
	for _, name := range t.order {
		at := t.marks[name]
		out[name] = at.Sub(t.start).Milliseconds()
		last = at
	}
	if !last.IsZero() {
		out["total"] = last.Sub(t.start).Milliseconds()
	}
	return out
}

// Log emits a human-readable summary of the recorded breakdown.
func (t *RequestTimer) Log(logger *slog.Logger, sessionID string) {
	if logger == nil {
		logger = slog.Default()
	}
	args := []any{"session_id", sessionID}
	for _, name := range t.order {
		args = append(args, name, t.marks[name].Sub(t.start).Milliseconds())
	}
	logger.Info("request timing", args...)
}
