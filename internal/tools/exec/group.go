package exec

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/homelab/jarvis/internal/dispatch"
	"github.com/homelab/jarvis/internal/safety"
)

// Register adds the local process tool group to reg: running a command
// inside the manager's workspace and inspecting processes it started.
// run_local_command is YELLOW — it mutates local state but, unlike
// system.run_command, is confined to one workspace directory rather than an
// arbitrary cluster node.
func Register(reg *dispatch.Registry, manager *Manager) {
	reg.RegisterTool(dispatch.Tool{
		Name:        "run_local_command",
		Description: "Run a shell command inside the control plane's workspace directory and return its output.",
		Tier:        safety.TierYellow,
		Schema: map[string]any{
			"command": "string, required",
			"cwd":     "string, optional — workspace-relative directory",
			"timeout_seconds": "number, optional",
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			command, _ := args["command"].(string)
			if command == "" {
				return "", fmt.Errorf("command is required")
			}
			cwd, _ := args["cwd"].(string)
			timeout := 30 * time.Second
			if secs, ok := args["timeout_seconds"].(float64); ok && secs > 0 {
				timeout = time.Duration(secs) * time.Second
			}
			result, err := manager.RunCommand(ctx, command, cwd, nil, "", timeout)
			if err != nil {
				return "", err
			}
			out, err := json.Marshal(result)
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	})

	reg.RegisterTool(dispatch.Tool{
		Name:        "list_local_processes",
		Description: "List background processes started via run_local_command.",
		Tier:        safety.TierGreen,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			out, err := json.Marshal(manager.list())
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	})
}
