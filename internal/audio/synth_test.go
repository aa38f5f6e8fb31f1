package audio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	delay   time.Duration
	err     error
	calls   int
	content string
}

func (f *fakeEngine) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, "", ctx.Err()
		}
	}
	if f.err != nil {
		return nil, "", f.err
	}
	return []byte("audio:" + text), f.content, nil
}

func TestRouter_UsesPrimaryWhenHealthy(t *testing.T) {
	primary := &fakeEngine{content: "audio/mpeg"}
	fallback := &fakeEngine{content: "audio/mpeg"}
	r := NewRouter(primary, fallback, RouterConfig{PrimaryDeadline: 50 * time.Millisecond, FallbackDeadline: 50 * time.Millisecond}, nil)

	chunk, err := r.Synthesize(context.Background(), 0, "hello")
	require.NoError(t, err)
	assert.Equal(t, EnginePrimary, chunk.Engine)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, fallback.calls)
}

func TestRouter_FallsBackOnPrimaryTimeoutAndLocksEngine(t *testing.T) {
	primary := &fakeEngine{delay: 100 * time.Millisecond}
	fallback := &fakeEngine{}
	r := NewRouter(primary, fallback, RouterConfig{PrimaryDeadline: 10 * time.Millisecond, FallbackDeadline: time.Second}, nil)

	chunk, err := r.Synthesize(context.Background(), 0, "sentence one")
	require.NoError(t, err)
	assert.Equal(t, EngineFallback, chunk.Engine)

	// Second sentence of the same response must bypass primary entirely.
	chunk2, err := r.Synthesize(context.Background(), 1, "sentence two")
	require.NoError(t, err)
	assert.Equal(t, EngineFallback, chunk2.Engine)
	assert.Equal(t, 1, primary.calls, "primary must not be retried once engineLock is set to fallback")
}

func TestRouter_HealthAwareSkipBypassesPrimaryDuringRecovery(t *testing.T) {
	primary := &fakeEngine{err: errors.New("boom")}
	fallback := &fakeEngine{}
	current := time.Unix(0, 0)
	now := func() time.Time { return current }
	r := NewRouter(primary, fallback, RouterConfig{RecoveryInterval: time.Minute}, now)

	_, err := r.Synthesize(context.Background(), 0, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls)

	// The same router, with engineLock cleared to simulate a second response
	// within the recovery window, must not retry primary.
	r.engineLock = "" // reset to simulate a fresh response while health state persists
	current = current.Add(5 * time.Second)
	_, err = r.Synthesize(context.Background(), 0, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls, "primary should be skipped during the recovery window")

	current = current.Add(time.Minute)
	r.engineLock = ""
	_, err = r.Synthesize(context.Background(), 0, "c")
	require.NoError(t, err)
	assert.Equal(t, 2, primary.calls, "primary should be probed again after the recovery interval")
}

func TestRouter_CachesByTextAndEngine(t *testing.T) {
	primary := &fakeEngine{}
	r := NewRouter(primary, nil, RouterConfig{}, nil)

	_, err := r.Synthesize(context.Background(), 0, "repeat me")
	require.NoError(t, err)
	_, err = r.Synthesize(context.Background(), 1, "repeat me")
	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls, "second identical sentence must hit the cache")
}

func TestRouter_AllEnginesFailReturnsError(t *testing.T) {
	primary := &fakeEngine{err: errors.New("down")}
	fallback := &fakeEngine{err: errors.New("also down")}
	r := NewRouter(primary, fallback, RouterConfig{}, nil)

	_, err := r.Synthesize(context.Background(), 0, "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllEnginesFailed)
}
