package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdEvaluator_EqualityDoesNotFire(t *testing.T) {
	e := NewThresholdEvaluator()
	v := e.Evaluate([]Metrics{{Node: "pve1", Disk: 95}})
	assert.Empty(t, v)
}

func TestThresholdEvaluator_HysteresisGatesReentry(t *testing.T) {
	e := NewThresholdEvaluator()

	v := e.Evaluate([]Metrics{{Node: "pve1", Disk: 96}})
	require.Len(t, v, 1)
	assert.Equal(t, ConditionDiskCritical, v[0].Condition)

	// Still above threshold on the next tick: no repeat emission.
	v = e.Evaluate([]Metrics{{Node: "pve1", Disk: 97}})
	assert.Empty(t, v)

	// Falls back below: key is cleared.
	v = e.Evaluate([]Metrics{{Node: "pve1", Disk: 50}})
	assert.Empty(t, v)

	// Crosses again: re-enters and emits.
	v = e.Evaluate([]Metrics{{Node: "pve1", Disk: 96}})
	require.Len(t, v, 1)
}

func TestThresholdEvaluator_MultipleConditionsIndependent(t *testing.T) {
	e := NewThresholdEvaluator()
	v := e.Evaluate([]Metrics{{Node: "pve1", Disk: 96, RAM: 90, CPU: 10}})
	require.Len(t, v, 2)
}
