package smarthome

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/homelab/jarvis/internal/dispatch"
	"github.com/homelab/jarvis/internal/safety"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	calls []string
}

func (f *fakeRecorder) RecordPresence(ctx context.Context, entityID, state string) error {
	f.calls = append(f.calls, entityID+"="+state)
	return nil
}

func newTestRegistry(t *testing.T, client *Client, recorder PresenceRecorder) *dispatch.Registry {
	t.Helper()
	kernel := safety.New(nil, "confirm-me")
	reg := dispatch.NewRegistry(kernel, nil)
	Register(reg, client, recorder)
	return reg
}

func newFakeHAServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/states":
			_, _ = w.Write([]byte(`[
				{"entity_id":"person.alice","state":"home"},
				{"entity_id":"device_tracker.phone","state":"not_home"},
				{"entity_id":"light.kitchen","state":"on"}
			]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestGetPresence_SummarizesAndRecordsHistory(t *testing.T) {
	server := newFakeHAServer(t)
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, Token: "test-token"})
	require.NoError(t, err)

	recorder := &fakeRecorder{}
	reg := newTestRegistry(t, client, recorder)

	result := reg.ExecuteTool(context.Background(), "get_presence", map[string]any{}, dispatch.CallerAPI)
	require.False(t, result.Blocked)
	require.False(t, result.IsError)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Content), &decoded))
	assert.Equal(t, float64(1), decoded["home"])
	assert.Equal(t, float64(1), decoded["away"])
	assert.Equal(t, true, decoded["anyone_home"])

	assert.ElementsMatch(t, []string{"person.alice=home", "device_tracker.phone=not_home"}, recorder.calls)
}

func TestGetPresence_NilRecorderStillWorks(t *testing.T) {
	server := newFakeHAServer(t)
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, Token: "test-token"})
	require.NoError(t, err)

	reg := newTestRegistry(t, client, nil)
	result := reg.ExecuteTool(context.Background(), "get_presence", map[string]any{}, dispatch.CallerAPI)
	require.False(t, result.Blocked)
	require.False(t, result.IsError)
}
