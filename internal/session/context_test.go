package session

import (
	"strings"
	"testing"

	"github.com/homelab/jarvis/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildContextMessages_PrependsSummaryAndEntities(t *testing.T) {
	summary := "the user has been debugging a crashed VM"
	sess := models.Session{
		Summary:  &summary,
		Entities: map[string]models.Entity{"vm200": {Key: "vm200", Description: "web server"}},
		Messages: []models.Message{
			{Role: models.RoleUser, Content: "is it back up?"},
		},
	}

	msgs := BuildContextMessages(sess, ContextWindow{}, 200, 0)
	require.True(t, len(msgs) >= 3)
	assert.Contains(t, msgs[0].Content, "conversation_summary")
	assert.Contains(t, msgs[0].Content, summary)
	assert.Contains(t, msgs[1].Content, "preserved_context")
	assert.Contains(t, msgs[1].Content, "vm200")
	assert.Equal(t, "is it back up?", msgs[len(msgs)-1].Content)
}

func TestBuildContextMessages_WalksNewestToOldestWithinBudget(t *testing.T) {
	var messages []models.Message
	for i := 0; i < 50; i++ {
		messages = append(messages, models.Message{Role: models.RoleUser, Content: strings.Repeat("x", 400)})
	}
	sess := models.Session{Messages: messages}

	cfg := ContextWindow{ContextWindowTokens: 1000, ResponseReserve: 100, RecentRatio: 0.7}
	msgs := BuildContextMessages(sess, cfg, 0, 0)

	// Budget is tight: only a handful of the 50 messages should survive.
	assert.Less(t, len(msgs), len(messages))
	assert.NotEmpty(t, msgs)
}

func TestBuildContextMessages_AlwaysIncludesAtLeastMostRecentMessage(t *testing.T) {
	sess := models.Session{
		Messages: []models.Message{{Role: models.RoleUser, Content: strings.Repeat("y", 100000)}},
	}
	cfg := ContextWindow{ContextWindowTokens: 500, ResponseReserve: 100, RecentRatio: 0.7}
	msgs := BuildContextMessages(sess, cfg, 0, 0)
	require.Len(t, msgs, 1)
}

func TestBuildContextMessages_PreservesChronologicalOrder(t *testing.T) {
	sess := models.Session{
		Messages: []models.Message{
			{Role: models.RoleUser, Content: "first"},
			{Role: models.RoleAssistant, Content: "second"},
			{Role: models.RoleUser, Content: "third"},
		},
	}
	msgs := BuildContextMessages(sess, ContextWindow{}, 0, 0)
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
	assert.Equal(t, "third", msgs[2].Content)
}
