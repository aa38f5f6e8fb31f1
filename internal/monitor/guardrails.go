package monitor

import (
	"sync"
	"time"
)

// Preferences reads the runtime-adjustable knobs that live in the
// preferences table and are read fresh on every use rather than cached.
type Preferences interface {
	KillSwitch() (bool, error)
	AutonomyLevel() (int, error)
}

// rateLimiter is the sliding-window attempt log keyed by incident key. It is
// process-global in spirit (one instance shared by the engine) and pruned
// on every read.
type rateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	limit  int
	hits   map[string][]time.Time
	now    func() time.Time
}

func newRateLimiter(now func() time.Time, window time.Duration, limit int) *rateLimiter {
	return &rateLimiter{window: window, limit: limit, hits: make(map[string][]time.Time), now: now}
}

// Count returns the number of attempts recorded for key within the current
// window, pruning stale entries first.
func (r *rateLimiter) Count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune(key)
	return len(r.hits[key])
}

// Allow reports whether a new attempt for key is permitted (fewer than
// limit recorded within the window) and, if so, does NOT record it —
// callers record explicitly via Record once guardrails have otherwise
// passed, so a denied attempt never counts against the window.
func (r *rateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune(key)
	return len(r.hits[key]) < r.limit
}

// Record pushes a new attempt timestamp into key's window.
func (r *rateLimiter) Record(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hits[key] = append(r.hits[key], r.now())
}

func (r *rateLimiter) prune(key string) {
	cutoff := r.now().Add(-r.window)
	hits := r.hits[key]
	i := 0
	for i < len(hits) && hits[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		r.hits[key] = hits[i:]
	}
}

// blastRadiusLock enforces at most one active remediation across the whole
// cluster. Entries older than staleness are swept on every check-and-mark,
// the safety net for a process that crashed mid-remediation.
type blastRadiusLock struct {
	mu        sync.Mutex
	active    map[string]time.Time // node -> marked-at
	staleness time.Duration
	now       func() time.Time
}

func newBlastRadiusLock(now func() time.Time, staleness time.Duration) *blastRadiusLock {
	return &blastRadiusLock{active: make(map[string]time.Time), staleness: staleness, now: now}
}

// TryAcquire sweeps stale entries, then marks node active if no
// remediation is in flight anywhere in the cluster. Returns false if one
// already is.
func (l *blastRadiusLock) TryAcquire(node string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.staleness)
	for n, at := range l.active {
		if at.Before(cutoff) {
			delete(l.active, n)
		}
	}

	if len(l.active) > 0 {
		return false
	}
	l.active[node] = l.now()
	return true
}

// Release clears node's active mark. Safe to call even if the mark is
// already gone (e.g. swept for staleness).
func (l *blastRadiusLock) Release(node string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, node)
}

// Count returns the number of currently-active remediations.
func (l *blastRadiusLock) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.active)
}

// emailGate rate-limits outgoing remediation email to one per window,
// except escalation mail which always bypasses it.
type emailGate struct {
	mu       sync.Mutex
	lastSent time.Time
	window   time.Duration
	now      func() time.Time
}

func newEmailGate(now func() time.Time, window time.Duration) *emailGate {
	return &emailGate{window: window, now: now}
}

// Allow reports whether a non-escalation email may be sent now, and if so
// marks the gate. Racy-safe: at worst two near-simultaneous emails slip
// through, which is an acceptable bound for an alerting path.
func (g *emailGate) Allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if now.Sub(g.lastSent) < g.window {
		return false
	}
	g.lastSent = now
	return true
}
