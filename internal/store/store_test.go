package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/homelab/jarvis/internal/config"
	"github.com/homelab/jarvis/internal/tools/reminders"
	"github.com/homelab/jarvis/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(dir, "jarvis.db")}
	cfg.ApplyDefaults()
	cfg.Driver = "sqlite"
	s, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Migrate("sqlite"))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_AppliesWALPragmas(t *testing.T) {
	s := newTestStore(t)
	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestAutonomyActions_RecordAndListAndPrune(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := models.AutonomyAction{
		ID: uuid.NewString(), IncidentKey: "node1:disk", RunbookID: "clear-tmp",
		Action: "clear_tmp", Outcome: models.OutcomeSuccess, AutonomyLevel: 2, Attempt: 1,
		ArgsSnapshot: json.RawMessage(`{"node":"node1"}`), CreatedAt: time.Now().Add(-48 * time.Hour),
	}
	fresh := models.AutonomyAction{
		ID: uuid.NewString(), IncidentKey: "node1:disk", RunbookID: "clear-tmp",
		Action: "clear_tmp", Outcome: models.OutcomeEscalated, AutonomyLevel: 2, Attempt: 2,
		Escalated: true, EmailSent: true, CreatedAt: time.Now(),
	}
	require.NoError(t, s.RecordAutonomyAction(ctx, old))
	require.NoError(t, s.RecordAutonomyAction(ctx, fresh))

	actions, err := s.ListAutonomyActions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, fresh.ID, actions[0].ID) // newest first
	assert.True(t, actions[0].Escalated)
	assert.True(t, actions[0].EmailSent)

	require.NoError(t, s.PruneOlderThan(ctx, time.Now().Add(-24*time.Hour)))
	remaining, err := s.ListAutonomyActions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, fresh.ID, remaining[0].ID)
}

func TestPreferences_KillSwitchAndAutonomyLevelDefaultThenSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	on, err := s.KillSwitch()
	require.NoError(t, err)
	assert.False(t, on)

	level, err := s.AutonomyLevel()
	require.NoError(t, err)
	assert.Equal(t, 0, level)

	require.NoError(t, s.SetKillSwitch(ctx, true))
	require.NoError(t, s.SetAutonomyLevel(ctx, 3))

	on, err = s.KillSwitch()
	require.NoError(t, err)
	assert.True(t, on)

	level, err = s.AutonomyLevel()
	require.NoError(t, err)
	assert.Equal(t, 3, level)
}

func TestEvents_RecordListUnresolvedAndResolve(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := models.Event{
		ID: uuid.NewString(), Type: "test_alert", Severity: models.SeverityWarning,
		Title: "Storage warning", Message: "node1 disk at 90%", Node: "node1",
		Source: models.SourceMonitor, Details: map[string]any{"percent": 90.0}, Timestamp: time.Now(),
	}
	require.NoError(t, s.RecordEvent(ctx, e))

	unresolved, err := s.ListUnresolvedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	assert.Equal(t, e.ID, unresolved[0].ID)
	assert.Equal(t, models.SourceMonitor, unresolved[0].Source)

	require.NoError(t, s.ResolveEvent(ctx, e.ID))
	unresolved, err = s.ListUnresolvedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, unresolved, 0)

	all, err := s.ListEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestMemories_RememberRecallListForget(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Remember(ctx, "wifi_password", "hunter2"))
	entry, err := s.Recall(ctx, "wifi_password")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", entry.Content)

	require.NoError(t, s.Remember(ctx, "wifi_password", "hunter3"))
	entry, err = s.Recall(ctx, "wifi_password")
	require.NoError(t, err)
	assert.Equal(t, "hunter3", entry.Content)

	list, err := s.ListMemories(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.Forget(ctx, "wifi_password"))
	_, err = s.Recall(ctx, "wifi_password")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReminders_SaveAndDueAndMarkFired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	due := reminders.Reminder{ID: uuid.NewString(), SessionID: "sess1", Message: "check the oven", FireAt: time.Now().Add(-time.Minute)}
	future := reminders.Reminder{ID: uuid.NewString(), SessionID: "sess1", Message: "water plants", FireAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.SaveReminder(ctx, due))
	require.NoError(t, s.SaveReminder(ctx, future))

	dueList, err := s.DueReminders(ctx)
	require.NoError(t, err)
	require.Len(t, dueList, 1)
	assert.Equal(t, due.ID, dueList[0].ID)

	require.NoError(t, s.MarkReminderFired(ctx, due.ID))
	dueList, err = s.DueReminders(ctx)
	require.NoError(t, err)
	assert.Len(t, dueList, 0)
}

func TestPresence_RecordAndHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordPresence(ctx, "person.alice", "home"))
	require.NoError(t, s.RecordPresence(ctx, "person.alice", "away"))

	history, err := s.PresenceHistory(ctx, "person.alice", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "away", history[0].State) // newest first
}

func TestConversations_SaveLoadDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := models.Session{ID: "sess1", Messages: []models.Message{{ID: "m1", Role: models.RoleUser, Content: "hi"}}}
	require.NoError(t, s.SaveConversation(ctx, sess))

	loaded, err := s.LoadConversation(ctx, "sess1")
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 1)
	assert.Equal(t, "hi", loaded.Messages[0].Content)

	require.NoError(t, s.DeleteConversation(ctx, "sess1"))
	_, err = s.LoadConversation(ctx, "sess1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClusterSnapshots_SaveAndLatest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	type snapshot struct {
		Nodes int `json:"nodes"`
	}
	require.NoError(t, s.SaveClusterSnapshot(ctx, snapshot{Nodes: 2}))
	time.Sleep(time.Millisecond)
	require.NoError(t, s.SaveClusterSnapshot(ctx, snapshot{Nodes: 3}))

	var out snapshot
	require.NoError(t, s.LatestClusterSnapshot(ctx, &out))
	assert.Equal(t, 3, out.Nodes)
}

func TestMigrate_StatusReportsAppliedVersion(t *testing.T) {
	s := newTestStore(t)
	version, dirty, err := s.Status("sqlite")
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)
}
