// Package system holds the privileged remote-command tool group: arbitrary
// shell execution on a cluster node, gated ORANGE because it is the single
// widest-blast-radius capability in the tool table.
package system

import (
	"context"
	"fmt"

	"github.com/homelab/jarvis/internal/dispatch"
	"github.com/homelab/jarvis/internal/remoteshell"
	"github.com/homelab/jarvis/internal/safety"
)

// Register adds the system group to reg. kernel is used directly (not just
// via the dispatcher's checkSafety pass) because run_command's own argument
// — the command string — must itself be sanitized; tier gating alone does
// not validate its content.
func Register(reg *dispatch.Registry, kernel *safety.Kernel, pool *remoteshell.Pool) {
	reg.RegisterTool(dispatch.Tool{
		Name:        "run_command",
		Description: "Run a shell command on a cluster node. Requires the approval keyword.",
		Tier:        safety.TierOrange,
		Schema: map[string]any{
			"node":    "string, required",
			"command": "string, required",
			"keyword": "string, required — the configured approval phrase",
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			if pool == nil {
				return "", fmt.Errorf("remote shell not configured")
			}
			node, _ := args["node"].(string)
			command, _ := args["command"].(string)
			if node == "" || command == "" {
				return "", fmt.Errorf("node and command are required")
			}

			nodeName, err := kernel.SanitizeNodeName(node)
			if err != nil {
				return "", err
			}

			override := safety.IsOverrideActive(ctx)
			cmdResult := kernel.SanitizeCommand(command, override)
			if !cmdResult.Safe {
				return "", fmt.Errorf("command rejected: %s", cmdResult.Reason)
			}

			res, err := pool.Run(ctx, nodeName, command)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("exit=%d\nstdout:\n%s\nstderr:\n%s", res.ExitCode, res.Stdout, res.Stderr), nil
		},
	})
}
