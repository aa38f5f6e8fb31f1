package session

import (
	"context"
	"testing"

	"github.com/homelab/jarvis/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSummaryProvider struct {
	response string
	err      error
}

func (f *fakeSummaryProvider) Complete(ctx context.Context, prompt string) (string, error) {
	return f.response, f.err
}

func TestSummarizer_ShouldSummarizeRespectsThresholdAndFlag(t *testing.T) {
	store := NewStore(nil)
	for i := 0; i < 30; i++ {
		store.AddMessage("s1", models.RoleUser, "hi")
	}
	sm := NewSummarizer(store, &fakeSummaryProvider{}, SummarizeConfig{Threshold: 25}, ContextWindow{})

	assert.True(t, sm.ShouldSummarize("s1"))

	store.SetSummarizing("s1", true)
	assert.False(t, sm.ShouldSummarize("s1"), "already-summarizing session must not be re-triggered")
}

func TestSummarizer_SummarizeParsesNarrativeAndEntitiesAndMerges(t *testing.T) {
	store := NewStore(nil)
	for i := 0; i < 20; i++ {
		store.AddMessage("s1", models.RoleUser, "message about vm 200")
	}
	response := "The user restarted VM 200 after it crashed.\n---ENTITIES---\nvm200: web server, restarted after crash\nnode_pve1: primary hypervisor node\n"
	provider := &fakeSummaryProvider{response: response}
	sm := NewSummarizer(store, provider, SummarizeConfig{Threshold: 5, KeepRecent: 5}, ContextWindow{})

	err := sm.Summarize(context.Background(), "s1")
	require.NoError(t, err)

	sess, err := store.Get("s1")
	require.NoError(t, err)
	require.NotNil(t, sess.Summary)
	assert.Contains(t, *sess.Summary, "VM 200")
	assert.Len(t, sess.Messages, 5)
	assert.False(t, sess.Summarizing)
	require.Contains(t, sess.Entities, "vm200")
	assert.Contains(t, sess.Entities["vm200"].Description, "web server")
	require.Contains(t, sess.Entities, "node_pve1")
}

func TestSummarizer_FailureLeavesStateUnchangedExceptFlag(t *testing.T) {
	store := NewStore(nil)
	for i := 0; i < 20; i++ {
		store.AddMessage("s1", models.RoleUser, "hi")
	}
	provider := &fakeSummaryProvider{err: assertErr{}}
	sm := NewSummarizer(store, provider, SummarizeConfig{Threshold: 5, KeepRecent: 5}, ContextWindow{})

	err := sm.Summarize(context.Background(), "s1")
	require.Error(t, err)

	sess, getErr := store.Get("s1")
	require.NoError(t, getErr)
	assert.Nil(t, sess.Summary)
	assert.Len(t, sess.Messages, 20)
	assert.False(t, sess.Summarizing)
}

type assertErr struct{}

func (assertErr) Error() string { return "provider unavailable" }
