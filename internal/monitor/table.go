package monitor

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/homelab/jarvis/internal/cluster"
	"github.com/homelab/jarvis/pkg/models"
)

// BuildDefaultRunbooks returns the static, first-match-wins runbook table.
// NODE_UNREACHABLE has no entry: an unreachable node can't be SSHed into to
// fix itself, so there's nothing useful for autonomy to do beyond the
// alert the critical tier already broadcasts.
func BuildDefaultRunbooks(tracker *cluster.Tracker) []Runbook {
	return []Runbook{
		{
			ID:               uuid.NewString(),
			Trigger:          models.IncidentVMCrashed,
			RequiredAutonomy: models.AutonomyActReport,
			ToolName:         "start_vm",
			ArgsBuilder:      vmArgsBuilder,
			Verify:           verifyRunning(tracker),
			VerifyDelay:      30 * time.Second,
			Cooldown:         5 * time.Minute,
		},
		{
			ID:               uuid.NewString(),
			Trigger:          models.IncidentCTCrashed,
			RequiredAutonomy: models.AutonomyActReport,
			ToolName:         "start_vm",
			ArgsBuilder:      vmArgsBuilder,
			Verify:           verifyRunning(tracker),
			VerifyDelay:      20 * time.Second,
			Cooldown:         5 * time.Minute,
		},
	}
}

func vmArgsBuilder(incident models.Incident) map[string]any {
	vmid, _ := strconv.Atoi(incident.Target)
	return map[string]any{
		"node": incident.Node,
		"vmid": float64(vmid),
	}
}

func verifyRunning(tracker *cluster.Tracker) VerifyFunc {
	return func(ctx context.Context, incident models.Incident) (bool, error) {
		status, ok := tracker.VMStatus(incident.Target)
		if !ok {
			return false, nil
		}
		return status == cluster.Status("running"), nil
	}
}
