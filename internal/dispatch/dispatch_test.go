package dispatch

import (
	"context"
	"testing"

	"github.com/homelab/jarvis/internal/audit"
	"github.com/homelab/jarvis/internal/safety"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKernel() *safety.Kernel {
	return safety.New(nil, "confirm-me")
}

func TestRegistry_ExecuteTool_GreenToolRunsHandler(t *testing.T) {
	registry := NewRegistry(newTestKernel(), nil)
	registry.RegisterTool(Tool{
		Name: "echo",
		Tier: safety.TierGreen,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "ok", nil
		},
	})

	result := registry.ExecuteTool(context.Background(), "echo", nil, CallerChat)
	assert.False(t, result.Blocked)
	assert.False(t, result.IsError)
	assert.Equal(t, "ok", result.Content)
}

func TestRegistry_ExecuteTool_UnknownToolIsBlocked(t *testing.T) {
	registry := NewRegistry(newTestKernel(), nil)
	result := registry.ExecuteTool(context.Background(), "missing", nil, CallerChat)
	assert.True(t, result.Blocked)
	assert.Equal(t, safety.TierBlack, result.Tier)
}

func TestRegistry_ExecuteTool_OrangeToolRequiresKeyword(t *testing.T) {
	registry := NewRegistry(newTestKernel(), nil)
	registry.RegisterTool(Tool{
		Name: "reboot_host",
		Tier: safety.TierOrange,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "rebooted", nil
		},
	})

	blocked := registry.ExecuteTool(context.Background(), "reboot_host", map[string]any{}, CallerChat)
	assert.True(t, blocked.Blocked)

	allowed := registry.ExecuteTool(context.Background(), "reboot_host", map[string]any{"keyword": "confirm-me"}, CallerChat)
	assert.False(t, allowed.Blocked)
	assert.Equal(t, "rebooted", allowed.Content)
}

func TestRegistry_ExecuteTool_HandlerPanicRecovers(t *testing.T) {
	registry := NewRegistry(newTestKernel(), nil)
	registry.RegisterTool(Tool{
		Name: "boom",
		Tier: safety.TierGreen,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			panic("handler exploded")
		},
	})

	result := registry.ExecuteTool(context.Background(), "boom", nil, CallerChat)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "internal error")
}

func TestRegistry_ExecuteTool_PostExecuteHookRunsOnSuccess(t *testing.T) {
	registry := NewRegistry(newTestKernel(), nil)
	registry.RegisterTool(Tool{
		Name: "noop",
		Tier: safety.TierGreen,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "done", nil
		},
	})

	var gotName string
	registry.SetPostExecute(func(ctx context.Context, toolName string, args map[string]any, result Result) {
		gotName = toolName
	})

	registry.ExecuteTool(context.Background(), "noop", nil, CallerChat)
	assert.Equal(t, "noop", gotName)
}

func TestRegistry_ExecuteTool_AuditLoggerRecordsInvocationAndCompletion(t *testing.T) {
	cfg := audit.DefaultConfig()
	cfg.Enabled = true
	cfg.Output = "stdout"
	logger, err := audit.NewLogger(cfg)
	require.NoError(t, err)
	defer logger.Close()

	registry := NewRegistry(newTestKernel(), nil)
	registry.SetAuditLogger(logger)
	registry.RegisterTool(Tool{
		Name: "ping",
		Tier: safety.TierGreen,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "pong", nil
		},
	})

	result := registry.ExecuteTool(context.Background(), "ping", map[string]any{"host": "node1"}, CallerMonitor)
	assert.Equal(t, "pong", result.Content)
}

func TestRegistry_ExecuteTool_SchemaRejectsMissingRequiredArg(t *testing.T) {
	registry := NewRegistry(newTestKernel(), nil)
	registry.RegisterTool(Tool{
		Name: "start_vm",
		Tier: safety.TierGreen,
		Schema: map[string]any{
			"node": "string, required",
			"vmid": "integer, required",
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "started", nil
		},
	})

	result := registry.ExecuteTool(context.Background(), "start_vm", map[string]any{"node": "pve1"}, CallerChat)
	assert.True(t, result.Blocked)
	assert.Contains(t, result.Reason, "invalid arguments")
}

func TestRegistry_ExecuteTool_SchemaAllowsWellFormedArgs(t *testing.T) {
	registry := NewRegistry(newTestKernel(), nil)
	registry.RegisterTool(Tool{
		Name: "start_vm",
		Tier: safety.TierGreen,
		Schema: map[string]any{
			"node": "string, required",
			"vmid": "integer, required",
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "started", nil
		},
	})

	result := registry.ExecuteTool(context.Background(), "start_vm", map[string]any{"node": "pve1", "vmid": 200}, CallerChat)
	assert.False(t, result.Blocked)
	assert.Equal(t, "started", result.Content)
}

func TestRegistry_ExecuteTool_SchemaRejectsWrongType(t *testing.T) {
	registry := NewRegistry(newTestKernel(), nil)
	registry.RegisterTool(Tool{
		Name: "start_vm",
		Tier: safety.TierGreen,
		Schema: map[string]any{
			"node": "string, required",
			"vmid": "integer, required",
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "started", nil
		},
	})

	result := registry.ExecuteTool(context.Background(), "start_vm", map[string]any{"node": "pve1", "vmid": "not-a-number"}, CallerChat)
	assert.True(t, result.Blocked)
}

func TestToJSONSchemaDoc_TranslatesShorthand(t *testing.T) {
	doc := toJSONSchemaDoc(map[string]any{
		"node":    "string, required",
		"timeout": "number, optional",
	})
	assert.Equal(t, "object", doc["type"])
	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"type": "string"}, props["node"])
	assert.Equal(t, map[string]any{"type": "number"}, props["timeout"])
	assert.Equal(t, []string{"node"}, doc["required"])
}
