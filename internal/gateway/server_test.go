package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homelab/jarvis/internal/auth"
	"github.com/homelab/jarvis/internal/dispatch"
	"github.com/homelab/jarvis/internal/llm"
	"github.com/homelab/jarvis/internal/safety"
	"github.com/homelab/jarvis/internal/session"
)

type fakeLLM struct {
	responses []llm.CompletionResponse
	calls     int
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	resp := f.responses[f.calls]
	if f.calls < len(f.responses)-1 {
		f.calls++
	}
	return resp, nil
}

func newTestServer(t *testing.T, fake *fakeLLM) *Server {
	t.Helper()
	kernel := safety.New(nil, "confirm-me")
	registry := dispatch.NewRegistry(kernel, nil)
	registry.RegisterTool(dispatch.Tool{
		Name: "get_presence",
		Tier: safety.TierGreen,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "home=1", nil
		},
	})
	registry.RegisterTool(dispatch.Tool{
		Name: "reboot_node",
		Tier: safety.TierOrange,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "rebooted", nil
		},
	})

	authSvc := auth.NewService(auth.Config{JWTSecret: "", OperatorPassword: "hunter2"})

	cfg := Config{}
	cfg.ApplyDefaults()
	srv := NewServer(cfg, Deps{
		Auth:     authSvc,
		Registry: registry,
		LLM:      fake,
		Sessions: session.NewStore(nil),
	})
	return srv
}

func TestHandleHealth_ReturnsOK(t *testing.T) {
	srv := newTestServer(t, &fakeLLM{})
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleLogin_WrongPasswordRejected(t *testing.T) {
	srv := newTestServer(t, &fakeLLM{})
	router := srv.Router()

	body, _ := json.Marshal(map[string]string{"password": "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleLogin_CorrectPasswordIssuesToken(t *testing.T) {
	srv := newTestServer(t, &fakeLLM{})
	// password login requires a JWT signer configured underneath; rebuild
	// the auth service with both configured for this test.
	srv.auth = auth.NewService(auth.Config{JWTSecret: "test-secret", OperatorPassword: "hunter2"})
	router := srv.Router()

	body, _ := json.Marshal(map[string]string{"password": "hunter2"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.NotEmpty(t, out["token"])
}

func TestListTools_UnauthenticatedPassesWhenAuthDisabled(t *testing.T) {
	srv := newTestServer(t, &fakeLLM{})
	srv.auth = auth.NewService(auth.Config{}) // no credentials configured: auth disabled
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/tools", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunChatTurn_NoToolCallsReturnsText(t *testing.T) {
	fake := &fakeLLM{responses: []llm.CompletionResponse{{Text: "hello there"}}}
	srv := newTestServer(t, fake)

	result, err := srv.runChatTurn(context.Background(), "sess-1", dispatch.CallerChat, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", result.Text)
	assert.Nil(t, result.Pending)
}

func TestRunChatTurn_GreenToolCallRunsThenFinalText(t *testing.T) {
	fake := &fakeLLM{responses: []llm.CompletionResponse{
		{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "get_presence", Args: map[string]any{}}}},
		{Text: "Alice is home."},
	}}
	srv := newTestServer(t, fake)

	result, err := srv.runChatTurn(context.Background(), "sess-1", dispatch.CallerChat, "who's home?")
	require.NoError(t, err)
	assert.Equal(t, "Alice is home.", result.Text)
	require.Len(t, result.ToolEvents, 1)
	assert.Equal(t, "get_presence", result.ToolEvents[0].Name)
}

func TestRunChatTurn_OrangeToolCallReturnsPending(t *testing.T) {
	fake := &fakeLLM{responses: []llm.CompletionResponse{
		{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "reboot_node", Args: map[string]any{"node": "pve1"}}}},
	}}
	srv := newTestServer(t, fake)

	result, err := srv.runChatTurn(context.Background(), "sess-1", dispatch.CallerChat, "reboot pve1")
	require.NoError(t, err)
	require.NotNil(t, result.Pending)
	assert.Equal(t, "reboot_node", result.Pending.ToolName)
}

func TestResumeChatTurn_WithKeywordCompletesTheCall(t *testing.T) {
	fake := &fakeLLM{responses: []llm.CompletionResponse{
		{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "reboot_node", Args: map[string]any{"node": "pve1"}}}},
		{Text: "Rebooted pve1."},
	}}
	srv := newTestServer(t, fake)

	first, err := srv.runChatTurn(context.Background(), "sess-1", dispatch.CallerChat, "reboot pve1")
	require.NoError(t, err)
	require.NotNil(t, first.Pending)

	second, err := srv.resumeChatTurn(context.Background(), first.Pending.ID, "confirm-me")
	require.NoError(t, err)
	assert.Equal(t, "Rebooted pve1.", second.Text)
}
