// Package audio implements the streaming audio pipeline (C6): a
// sentence-by-sentence TTS fallback router for outbound speech and a
// wake-word-gated capture state machine for inbound voice.
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrAllEnginesFailed is returned when both the primary and fallback engines
// fail (or time out) for a given sentence.
var ErrAllEnginesFailed = errors.New("audio: all engines failed")

// EngineName identifies a synthesis engine within a Router.
type EngineName string

const (
	EnginePrimary  EngineName = "primary"
	EngineFallback EngineName = "fallback"
)

// Engine synthesizes speech for a single piece of text. Implementations wrap
// a specific TTS provider.
type Engine interface {
	Synthesize(ctx context.Context, text string) (audio []byte, contentType string, err error)
}

// Chunk is one synthesized sentence, ready for ordered delivery to a
// subscriber.
type Chunk struct {
	Index       int
	Audio       []byte
	ContentType string
	Engine      EngineName
}

type cacheKey struct {
	text   string
	engine EngineName
}

// RouterConfig tunes the fallback router's deadlines and health window.
type RouterConfig struct {
	PrimaryDeadline  time.Duration
	FallbackDeadline time.Duration
	RecoveryInterval time.Duration
}

func (c *RouterConfig) ApplyDefaults() {
	if c.PrimaryDeadline <= 0 {
		c.PrimaryDeadline = 3 * time.Second
	}
	if c.FallbackDeadline <= 0 {
		c.FallbackDeadline = 10 * time.Second
	}
	if c.RecoveryInterval <= 0 {
		c.RecoveryInterval = 30 * time.Second
	}
}

// Router synthesizes one response's sentences against a primary engine with
// deadline-bounded fallback, a per-text-and-engine cache, and a
// health-aware skip that bypasses a recently-failed primary.
//
// A Router is built fresh per response: engineLock and the per-response cache
// must not leak across responses, since voice-consistency is a per-response
// guarantee, not a process-wide one.
type Router struct {
	primary  Engine
	fallback Engine
	cfg      RouterConfig
	now      func() time.Time

	mu              sync.Mutex
	lastPrimaryFail time.Time
	engineLock      EngineName // "" until the first fallback use
	cache           map[cacheKey]Chunk
}

// NewRouter constructs a Router. now is injectable for tests; nil uses
// time.Now.
func NewRouter(primary, fallback Engine, cfg RouterConfig, now func() time.Time) *Router {
	cfg.ApplyDefaults()
	if now == nil {
		now = time.Now
	}
	return &Router{
		primary:  primary,
		fallback: fallback,
		cfg:      cfg,
		now:      now,
		cache:    make(map[cacheKey]Chunk),
	}
}

// shouldTryPrimary reports whether the primary engine may be tried: it has
// never failed, or its failure-recovery window has elapsed.
func (r *Router) shouldTryPrimary() bool {
	if r.lastPrimaryFail.IsZero() {
		return true
	}
	return r.now().Sub(r.lastPrimaryFail) >= r.cfg.RecoveryInterval
}

// Synthesize resolves one sentence's audio. A response that has already
// fallen back to the fallback engine (engineLock set) skips the primary
// entirely, enforcing that the listener never hears a mid-response voice
// switch.
func (r *Router) Synthesize(ctx context.Context, index int, text string) (Chunk, error) {
	r.mu.Lock()
	locked := r.engineLock
	r.mu.Unlock()

	if locked == EngineFallback {
		return r.viaFallback(ctx, index, text)
	}

	if r.tryPrimaryAllowed() {
		if chunk, ok := r.cached(text, EnginePrimary); ok {
			chunk.Index = index
			return chunk, nil
		}
		chunk, err := r.viaEngine(ctx, r.primary, EnginePrimary, r.cfg.PrimaryDeadline, index, text)
		if err == nil {
			return chunk, nil
		}
		r.markPrimaryFailed()
	}

	return r.viaFallback(ctx, index, text)
}

func (r *Router) tryPrimaryAllowed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.primary != nil && r.shouldTryPrimary()
}

func (r *Router) markPrimaryFailed() {
	r.mu.Lock()
	r.lastPrimaryFail = r.now()
	r.mu.Unlock()
}

func (r *Router) viaFallback(ctx context.Context, index int, text string) (Chunk, error) {
	if chunk, ok := r.cached(text, EngineFallback); ok {
		chunk.Index = index
		r.setEngineLock(EngineFallback)
		return chunk, nil
	}
	chunk, err := r.viaEngine(ctx, r.fallback, EngineFallback, r.cfg.FallbackDeadline, index, text)
	if err != nil {
		return Chunk{}, fmt.Errorf("%w: %v", ErrAllEnginesFailed, err)
	}
	r.setEngineLock(EngineFallback)
	return chunk, nil
}

func (r *Router) viaEngine(ctx context.Context, engine Engine, name EngineName, deadline time.Duration, index int, text string) (Chunk, error) {
	if engine == nil {
		return Chunk{}, fmt.Errorf("audio: %s engine not configured", name)
	}
	callCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	audioData, contentType, err := engine.Synthesize(callCtx, text)
	if err != nil {
		return Chunk{}, err
	}
	chunk := Chunk{Index: index, Audio: audioData, ContentType: contentType, Engine: name}
	r.store(text, name, chunk)
	return chunk, nil
}

func (r *Router) cached(text string, name EngineName) (Chunk, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chunk, ok := r.cache[cacheKey{text: text, engine: name}]
	return chunk, ok
}

func (r *Router) store(text string, name EngineName, chunk Chunk) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[cacheKey{text: text, engine: name}] = chunk
}

func (r *Router) setEngineLock(name EngineName) {
	r.mu.Lock()
	r.engineLock = name
	r.mu.Unlock()
}
