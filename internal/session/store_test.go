package session

import (
	"testing"
	"time"

	"github.com/homelab/jarvis/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AddMessageCreatesSessionLazily(t *testing.T) {
	store := NewStore(nil)
	_, err := store.Get("s1")
	require.ErrorIs(t, err, ErrNotFound)

	store.AddMessage("s1", models.RoleUser, "hello")

	sess, err := store.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, 1, sess.TotalMessageCount)
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, "hello", sess.Messages[0].Content)
}

func TestStore_GetReturnsIndependentCopy(t *testing.T) {
	store := NewStore(nil)
	store.AddMessage("s1", models.RoleUser, "hello")

	sess, err := store.Get("s1")
	require.NoError(t, err)
	sess.Messages[0].Content = "mutated"

	fresh, err := store.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "hello", fresh.Messages[0].Content)
}

func TestStore_ApplySummaryMergesEntitiesAndTruncates(t *testing.T) {
	store := NewStore(nil)
	for i := 0; i < 5; i++ {
		store.AddMessage("s1", models.RoleUser, "msg")
	}

	store.ApplySummary("s1", "narrative", map[string]models.Entity{"vm200": {Key: "vm200", Description: "web server"}}, 3, 42)

	sess, err := store.Get("s1")
	require.NoError(t, err)
	require.NotNil(t, sess.Summary)
	assert.Equal(t, "narrative", *sess.Summary)
	require.Len(t, sess.Messages, 2)
	assert.False(t, sess.Summarizing)
	assert.Equal(t, 42, sess.CachedTokenCount)
	assert.Contains(t, sess.Entities, "vm200")

	// A second summary must merge, never delete, existing entities.
	store.ApplySummary("s1", "narrative 2", map[string]models.Entity{"ip10": {Key: "ip10", Description: "192.168.1.10"}}, 0, 10)
	sess, err = store.Get("s1")
	require.NoError(t, err)
	assert.Contains(t, sess.Entities, "vm200")
	assert.Contains(t, sess.Entities, "ip10")
}

func TestStore_ClearRemovesSession(t *testing.T) {
	store := NewStore(nil)
	store.AddMessage("s1", models.RoleUser, "hello")
	store.Clear("s1")
	_, err := store.Get("s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRequestTimer_BreakdownTracksOffsetsFromStart(t *testing.T) {
	current := time.Unix(0, 0)
	now := func() time.Time { return current }

	timer := NewRequestTimer(now)
	current = current.Add(50 * time.Millisecond)
	timer.Mark("t2_llm_start")
	current = current.Add(100 * time.Millisecond)
	timer.Mark("t7_audio_delivered")

	breakdown := timer.Breakdown()
	assert.Equal(t, int64(0), breakdown["t0_received"])
	assert.Equal(t, int64(50), breakdown["t2_llm_start"])
	assert.Equal(t, int64(150), breakdown["t7_audio_delivered"])
	assert.Equal(t, int64(150), breakdown["total"])
}
