package cluster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTracker_FirstObservationEmitsNoChange(t *testing.T) {
	tr := NewTracker(fixedNow(time.Unix(0, 0)))
	changes := tr.UpdateNodes([]NodeObservation{{Name: "pve1", Status: "online"}})
	assert.Empty(t, changes)
}

func TestTracker_NodeUnreachableOnStatusChange(t *testing.T) {
	tr := NewTracker(fixedNow(time.Unix(0, 0)))
	tr.UpdateNodes([]NodeObservation{{Name: "pve1", Status: "online"}})

	changes := tr.UpdateNodes([]NodeObservation{{Name: "pve1", Status: "offline"}})
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeNodeUnreachable, changes[0].Type)
}

func TestTracker_VMCrashedVsCTCrashed(t *testing.T) {
	tr := NewTracker(fixedNow(time.Unix(0, 0)))
	tr.UpdateVMs([]VMObservation{{ID: "200", Node: "pve1", Kind: KindQEMU, Status: "running"}})
	tr.UpdateVMs([]VMObservation{{ID: "300", Node: "pve1", Kind: KindLXC, Status: "running"}})

	changes := tr.UpdateVMs([]VMObservation{
		{ID: "200", Node: "pve1", Kind: KindQEMU, Status: "stopped"},
		{ID: "300", Node: "pve1", Kind: KindLXC, Status: "stopped"},
	})
	require.Len(t, changes, 2)
	byTarget := map[string]ChangeType{}
	for _, c := range changes {
		byTarget[c.Target] = c.Type
	}
	assert.Equal(t, ChangeVMCrashed, byTarget["200"])
	assert.Equal(t, ChangeCTCrashed, byTarget["300"])
}

func TestTracker_NoChangeWhenStatusSame(t *testing.T) {
	tr := NewTracker(fixedNow(time.Unix(0, 0)))
	tr.UpdateNodes([]NodeObservation{{Name: "pve1", Status: "online"}})
	changes := tr.UpdateNodes([]NodeObservation{{Name: "pve1", Status: "online"}})
	assert.Empty(t, changes)
}
