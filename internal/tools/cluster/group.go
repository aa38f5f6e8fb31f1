// Package cluster holds the GREEN-tier read-only tool group that exposes
// the hypervisor's cluster-resources/status views to the dispatcher.
package cluster

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/homelab/jarvis/internal/dispatch"
	"github.com/homelab/jarvis/internal/hypervisor"
	"github.com/homelab/jarvis/internal/safety"
)

// Register adds the cluster read group to reg.
func Register(reg *dispatch.Registry, client *hypervisor.Client) {
	reg.RegisterTool(dispatch.Tool{
		Name:        "list_nodes",
		Description: "List cluster nodes and their quorum/online status.",
		Tier:        safety.TierGreen,
		Schema:      map[string]any{},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			if client == nil {
				return "", fmt.Errorf("hypervisor client not configured")
			}
			nodes, err := client.ClusterStatus(ctx)
			if err != nil {
				return "", err
			}
			return encode(nodes)
		},
	})

	reg.RegisterTool(dispatch.Tool{
		Name:        "list_vms",
		Description: "List VMs/containers across the cluster, optionally filtered by node.",
		Tier:        safety.TierGreen,
		Schema: map[string]any{
			"node": "string, optional",
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			if client == nil {
				return "", fmt.Errorf("hypervisor client not configured")
			}
			resources, err := client.ClusterResources(ctx, "vm")
			if err != nil {
				return "", err
			}
			node, _ := args["node"].(string)
			if node == "" {
				return encode(resources)
			}
			filtered := resources[:0]
			for _, r := range resources {
				if r.Node == node {
					filtered = append(filtered, r)
				}
			}
			return encode(filtered)
		},
	})

	reg.RegisterTool(dispatch.Tool{
		Name:        "cluster_status",
		Description: "Summarize overall cluster resource utilization.",
		Tier:        safety.TierGreen,
		Schema:      map[string]any{},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			if client == nil {
				return "", fmt.Errorf("hypervisor client not configured")
			}
			resources, err := client.ClusterResources(ctx, "")
			if err != nil {
				return "", err
			}
			return encode(resources)
		},
	})
}

func encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
