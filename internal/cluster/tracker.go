// Package cluster implements in-memory last-known state of nodes and VMs,
// diff-based change detection, and hysteresis-gated threshold evaluation.
// Maps here are accessed only from monitor tiers — no cross-component
// readers.
package cluster

import (
	"sync"
	"time"
)

// Status is the observed online/offline-ish status of a node or VM.
type Status string

// ChangeType classifies a detected state transition.
type ChangeType string

const (
	ChangeNodeUnreachable ChangeType = "NODE_UNREACHABLE"
	ChangeNodeRecovered   ChangeType = "NODE_RECOVERED"
	ChangeVMCrashed       ChangeType = "VM_CRASHED"
	ChangeCTCrashed       ChangeType = "CT_CRASHED"
	ChangeVMStarted       ChangeType = "VM_STARTED"
)

// Kind distinguishes a VM from a container for crash-type labeling.
type Kind string

const (
	KindQEMU Kind = "qemu"
	KindLXC  Kind = "lxc"
)

// NodeObservation is one poll sample for a node.
type NodeObservation struct {
	Name   string
	Status Status
}

// VMObservation is one poll sample for a VM/container.
type VMObservation struct {
	ID     string
	Node   string
	Kind   Kind
	Status Status
}

// Change is one detected state transition.
type Change struct {
	Type   ChangeType
	Target string // node name or vm id
	Node   string
	Detail string
}

type nodeState struct {
	status   Status
	lastSeen time.Time
	seeded   bool
}

type vmState struct {
	status   Status
	node     string
	kind     Kind
	lastSeen time.Time
	seeded   bool
}

// Tracker maintains last-known state for nodes and VMs and emits the diff
// on each update. The first observation of any entity never emits a
// change — it seeds the state.
type Tracker struct {
	mu    sync.Mutex
	nodes map[string]*nodeState
	vms   map[string]*vmState
	now   func() time.Time
}

// NewTracker constructs an empty Tracker. now is injectable for tests.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		nodes: make(map[string]*nodeState),
		vms:   make(map[string]*vmState),
		now:   now,
	}
}

// UpdateNodes ingests a fresh node observation list and returns detected
// changes.
func (t *Tracker) UpdateNodes(observations []NodeObservation) []Change {
	t.mu.Lock()
	defer t.mu.Unlock()

	var changes []Change
	now := t.now()
	for _, obs := range observations {
		state, ok := t.nodes[obs.Name]
		if !ok {
			t.nodes[obs.Name] = &nodeState{status: obs.Status, lastSeen: now, seeded: true}
			continue
		}
		if state.status != obs.Status {
			changeType := ChangeNodeRecovered
			if obs.Status != "online" {
				changeType = ChangeNodeUnreachable
			}
			changes = append(changes, Change{
				Type:   changeType,
				Target: obs.Name,
				Node:   obs.Name,
				Detail: string(state.status) + " -> " + string(obs.Status),
			})
		}
		state.status = obs.Status
		state.lastSeen = now
	}
	return changes
}

// UpdateVMs ingests a fresh VM/container observation list and returns
// detected changes. A running→stopped transition is typed VM_CRASHED or
// CT_CRASHED by kind.
func (t *Tracker) UpdateVMs(observations []VMObservation) []Change {
	t.mu.Lock()
	defer t.mu.Unlock()

	var changes []Change
	now := t.now()
	for _, obs := range observations {
		state, ok := t.vms[obs.ID]
		if !ok {
			t.vms[obs.ID] = &vmState{status: obs.Status, node: obs.Node, kind: obs.Kind, lastSeen: now, seeded: true}
			continue
		}
		if state.status != obs.Status {
			changeType := ChangeVMStarted
			if state.status == "running" && obs.Status == "stopped" {
				changeType = ChangeVMCrashed
				if obs.Kind == KindLXC {
					changeType = ChangeCTCrashed
				}
			}
			changes = append(changes, Change{
				Type:   changeType,
				Target: obs.ID,
				Node:   obs.Node,
				Detail: string(state.status) + " -> " + string(obs.Status),
			})
		}
		state.status = obs.Status
		state.node = obs.Node
		state.kind = obs.Kind
		state.lastSeen = now
	}
	return changes
}

// NodeStatus returns the tracker's last-known status for a node.
func (t *Tracker) NodeStatus(name string) (Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.nodes[name]
	if !ok {
		return "", false
	}
	return s.status, true
}

// VMStatus returns the tracker's last-known status for a VM/container.
func (t *Tracker) VMStatus(id string) (Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.vms[id]
	if !ok {
		return "", false
	}
	return s.status, true
}

// OnlineNodeCount returns how many tracked nodes are currently online.
func (t *Tracker) OnlineNodeCount() (online, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.nodes {
		total++
		if s.status == "online" {
			online++
		}
	}
	return online, total
}
