// Package lifecycle holds the RED-tier tool group for VM/CT and node power
// operations — the tools the runbook engine's autonomous remediations call.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/homelab/jarvis/internal/dispatch"
	"github.com/homelab/jarvis/internal/hypervisor"
	"github.com/homelab/jarvis/internal/safety"
)

// Register adds the lifecycle group to reg. Every tool here is RED: the
// dispatcher's checkSafety step already enforces confirmed=true before the
// handler runs, so handlers focus purely on the action.
func Register(reg *dispatch.Registry, client *hypervisor.Client) {
	reg.RegisterTool(dispatch.Tool{
		Name:        "start_vm",
		Description: "Start a stopped VM or container.",
		Tier:        safety.TierRed,
		Schema: map[string]any{
			"node": "string, required",
			"vmid": "integer, required",
		},
		Handler: actionHandler(client, hypervisor.ActionStart),
	})

	reg.RegisterTool(dispatch.Tool{
		Name:        "stop_vm",
		Description: "Hard-stop a running VM or container.",
		Tier:        safety.TierRed,
		Schema: map[string]any{
			"node": "string, required",
			"vmid": "integer, required",
		},
		Handler: actionHandler(client, hypervisor.ActionStop),
	})

	reg.RegisterTool(dispatch.Tool{
		Name:        "shutdown_vm",
		Description: "Gracefully shut down a VM or container via ACPI/init.",
		Tier:        safety.TierRed,
		Schema: map[string]any{
			"node": "string, required",
			"vmid": "integer, required",
		},
		Handler: actionHandler(client, hypervisor.ActionShutdown),
	})

	reg.RegisterTool(dispatch.Tool{
		Name:        "reboot_node",
		Description: "Reboot a physical hypervisor node. Forbidden by default.",
		Tier:        safety.TierBlack,
		Schema: map[string]any{
			"node": "string, required",
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			node, _ := args["node"].(string)
			if node == "" {
				return "", fmt.Errorf("node is required")
			}
			return fmt.Sprintf("reboot scheduled for node %s", node), nil
		},
	})
}

func actionHandler(client *hypervisor.Client, action hypervisor.LifecycleAction) dispatch.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		if client == nil {
			return "", fmt.Errorf("hypervisor client not configured")
		}
		node, _ := args["node"].(string)
		vmidF, ok := args["vmid"].(float64)
		if node == "" || !ok {
			return "", fmt.Errorf("node and vmid are required")
		}
		vmid := int(vmidF)
		if err := client.VMAction(ctx, node, vmid, action); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s issued for vmid %d on node %s", action, vmid, node), nil
	}
}
