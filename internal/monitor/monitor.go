// Package monitor implements the autonomous monitor and runbook engine (C4):
// four independently-ticking polling tiers that feed the state tracker and
// threshold evaluator, plus the guarded remediation pipeline that acts on
// what they find.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/homelab/jarvis/internal/cluster"
	"github.com/homelab/jarvis/internal/hypervisor"
	"github.com/homelab/jarvis/internal/observability"
	"github.com/homelab/jarvis/pkg/models"
)

// Config holds the tier cadences and sweep thresholds. Cadences are
// deliberately irregular (12s/32s/5m/30m) rather than round numbers so the
// four tiers don't all land on the hypervisor at once.
type Config struct {
	CriticalInterval    time.Duration
	ImportantInterval   time.Duration
	RoutineInterval     time.Duration
	BackgroundInterval  time.Duration
	StartupDelay        time.Duration
	StorageWarnPercent  float64
	StorageCritPercent  float64
	AuditRetention      time.Duration
}

// ApplyDefaults fills unset fields with the tier cadences this plane runs
// at in practice.
func (c *Config) ApplyDefaults() {
	if c.CriticalInterval == 0 {
		c.CriticalInterval = 12 * time.Second
	}
	if c.ImportantInterval == 0 {
		c.ImportantInterval = 32 * time.Second
	}
	if c.RoutineInterval == 0 {
		c.RoutineInterval = 5 * time.Minute
	}
	if c.BackgroundInterval == 0 {
		c.BackgroundInterval = 30 * time.Minute
	}
	if c.StartupDelay == 0 {
		c.StartupDelay = 5 * time.Second
	}
	if c.StorageWarnPercent == 0 {
		c.StorageWarnPercent = 85
	}
	if c.StorageCritPercent == 0 {
		c.StorageCritPercent = 95
	}
	if c.AuditRetention == 0 {
		c.AuditRetention = 30 * 24 * time.Hour
	}
}

// Hypervisor is the subset of *hypervisor.Client the monitor tiers poll.
type Hypervisor interface {
	ClusterResources(ctx context.Context, kind string) ([]hypervisor.Resource, error)
	ClusterStatus(ctx context.Context) ([]hypervisor.NodeStatus, error)
}

// ActionAuditPruner prunes autonomy-action and event records older than a
// cutoff, run from the background tier.
type ActionAuditPruner interface {
	PruneOlderThan(ctx context.Context, cutoff time.Time) error
}

// Monitor owns the four polling tiers and the runbook engine they feed
// incidents into.
type Monitor struct {
	logger    *slog.Logger
	hv        Hypervisor
	tracker   *cluster.Tracker
	evaluator *cluster.ThresholdEvaluator
	engine    *RunbookEngine
	sink      EventSink
	pruner    ActionAuditPruner
	metrics   *observability.Metrics
	cfg       Config
	now       func() time.Time
	wg        sync.WaitGroup
}

// Option configures a Monitor.
type Option func(*Monitor)

func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithNow(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

func WithPruner(p ActionAuditPruner) Option {
	return func(m *Monitor) { m.pruner = p }
}

// WithMetrics attaches the Prometheus metric set. Nil is safe — every
// recording method on a nil *observability.Metrics is a no-op.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Monitor) { m.metrics = metrics }
}

// New constructs a Monitor. cfg.ApplyDefaults is the caller's
// responsibility — New does not mutate the config it's given.
func New(hv Hypervisor, tracker *cluster.Tracker, evaluator *cluster.ThresholdEvaluator, engine *RunbookEngine, sink EventSink, cfg Config, opts ...Option) *Monitor {
	m := &Monitor{
		logger:    slog.Default().With("component", "monitor"),
		hv:        hv,
		tracker:   tracker,
		evaluator: evaluator,
		engine:    engine,
		sink:      sink,
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the four tiers as background goroutines. It returns
// immediately; call Wait to block until ctx is cancelled and every tier has
// exited.
func (m *Monitor) Start(ctx context.Context) {
	tiers := []struct {
		name     string
		interval time.Duration
		offset   time.Duration
		poll     func(ctx context.Context)
	}{
		{"critical", m.cfg.CriticalInterval, 0, m.pollCritical},
		{"important", m.cfg.ImportantInterval, 2 * time.Second, m.pollImportant},
		{"routine", m.cfg.RoutineInterval, 5 * time.Second, m.pollRoutine},
		{"background", m.cfg.BackgroundInterval, 8 * time.Second, m.pollBackground},
	}

	m.wg.Add(len(tiers))
	for _, tier := range tiers {
		tier := tier
		go func() {
			defer m.wg.Done()
			m.runTier(ctx, tier.name, tier.interval, m.cfg.StartupDelay+tier.offset, tier.poll)
		}()
	}
}

// Wait blocks until every tier has exited (i.e. ctx was cancelled).
func (m *Monitor) Wait() {
	m.wg.Wait()
}

func (m *Monitor) runTier(ctx context.Context, name string, interval, startDelay time.Duration, poll func(ctx context.Context)) {
	select {
	case <-time.After(startDelay):
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.safePoll(ctx, name, poll)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// safePoll never lets a tier's panic take the process down; the tier keeps
// ticking on the next interval.
func (m *Monitor) safePoll(ctx context.Context, name string, poll func(ctx context.Context)) {
	start := m.now()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("monitor tier panicked", "tier", name, "panic", r)
			m.metrics.RecordMonitorTier(name, "panic", m.now().Sub(start).Seconds())
			return
		}
		m.metrics.RecordMonitorTier(name, "ok", m.now().Sub(start).Seconds())
	}()
	poll(ctx)
}

func (m *Monitor) publish(ctx context.Context, event models.Event) {
	if m.sink == nil {
		return
	}
	defer func() { _ = recover() }()
	m.sink.Publish(ctx, event)
}

// pollCritical fetches nodes and VMs in parallel, feeds the state tracker,
// and for each detected change records an event and fires the runbook
// engine fire-and-forget.
func (m *Monitor) pollCritical(ctx context.Context) {
	var nodeStatuses []hypervisor.NodeStatus
	var vms []hypervisor.Resource
	var nodeErr, vmErr error

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		nodeStatuses, nodeErr = m.hv.ClusterStatus(ctx)
	}()
	go func() {
		defer wg.Done()
		vms, vmErr = m.hv.ClusterResources(ctx, "vm")
	}()
	wg.Wait()

	if nodeErr != nil {
		m.logger.Warn("critical tier: node fetch failed", "error", nodeErr)
	}
	if vmErr != nil {
		m.logger.Warn("critical tier: vm fetch failed", "error", vmErr)
	}

	var nodeObs []cluster.NodeObservation
	for _, n := range nodeStatuses {
		status := cluster.Status("offline")
		if n.Online {
			status = cluster.Status("online")
		}
		nodeObs = append(nodeObs, cluster.NodeObservation{Name: n.Name, Status: status})
	}

	var vmObs []cluster.VMObservation
	for _, v := range vms {
		kind := cluster.KindQEMU
		if v.Type == "lxc" {
			kind = cluster.KindLXC
		}
		vmObs = append(vmObs, cluster.VMObservation{
			ID: strconv.Itoa(v.VMID), Node: v.Node, Kind: kind, Status: cluster.Status(v.Status),
		})
	}

	changes := append(m.tracker.UpdateNodes(nodeObs), m.tracker.UpdateVMs(vmObs)...)
	for _, change := range changes {
		m.handleChange(ctx, change)
	}
}

func (m *Monitor) handleChange(ctx context.Context, change cluster.Change) {
	severity := models.SeverityWarning
	if change.Type == cluster.ChangeNodeRecovered {
		severity = models.SeverityInfo
	}

	m.publish(ctx, models.Event{
		ID:        uuid.NewString(),
		Type:      "state_change",
		Severity:  severity,
		Title:     string(change.Type),
		Message:   fmt.Sprintf("%s on %s: %s", change.Target, change.Node, change.Detail),
		Node:      change.Node,
		Source:    models.SourceMonitor,
		Timestamp: m.now(),
	})

	incidentType, ok := incidentTypeFor(change.Type)
	if !ok {
		return
	}

	incident := models.Incident{
		Key:        fmt.Sprintf("%s:%s", incidentType, change.Target),
		Type:       incidentType,
		Target:     change.Target,
		Node:       change.Node,
		DetectedAt: m.now(),
		Detail:     change.Detail,
	}

	if m.engine != nil {
		go m.engine.Handle(context.Background(), incident)
	}
}

func incidentTypeFor(ct cluster.ChangeType) (models.IncidentType, bool) {
	switch ct {
	case cluster.ChangeNodeUnreachable:
		return models.IncidentNodeUnreachable, true
	case cluster.ChangeVMCrashed:
		return models.IncidentVMCrashed, true
	case cluster.ChangeCTCrashed:
		return models.IncidentCTCrashed, true
	default:
		return "", false
	}
}

// pollImportant fetches node utilization, feeds the threshold evaluator,
// and broadcasts each newly-entered violation. It never dispatches a
// runbook — only the critical tier's incidents trigger remediation.
func (m *Monitor) pollImportant(ctx context.Context) {
	resources, err := m.hv.ClusterResources(ctx, "node")
	if err != nil {
		m.logger.Warn("important tier: fetch failed", "error", err)
		return
	}

	var samples []cluster.Metrics
	for _, r := range resources {
		samples = append(samples, cluster.Metrics{
			Node: r.Node,
			Disk: percent(r.Disk, r.MaxDisk),
			RAM:  percent(r.Mem, r.MaxMem),
			CPU:  r.CPU * 100,
		})
	}

	for _, v := range m.evaluator.Evaluate(samples) {
		severity := models.SeverityWarning
		if v.Severity == cluster.SeverityCritical {
			severity = models.SeverityCritical
		}
		m.publish(ctx, models.Event{
			ID:        uuid.NewString(),
			Type:      "threshold",
			Severity:  severity,
			Title:     string(v.Condition),
			Message:   fmt.Sprintf("%s on %s is at %.1f", v.Condition, v.Node, v.Value),
			Node:      v.Node,
			Source:    models.SourceMonitor,
			Timestamp: m.now(),
		})
	}
}

func percent(value, max int64) float64 {
	if max == 0 {
		return 0
	}
	return (float64(value) / float64(max)) * 100
}

// pollRoutine emits a cluster heartbeat: "systems nominal" if every known
// node is online, "degraded" otherwise.
func (m *Monitor) pollRoutine(ctx context.Context) {
	online, total := m.tracker.OnlineNodeCount()
	severity := models.SeverityInfo
	message := fmt.Sprintf("systems nominal: %d/%d nodes online", online, total)
	if total > 0 && online < total {
		severity = models.SeverityWarning
		message = fmt.Sprintf("degraded: %d/%d nodes online", online, total)
	}

	m.publish(ctx, models.Event{
		ID:        uuid.NewString(),
		Type:      "heartbeat",
		Severity:  severity,
		Title:     "cluster status",
		Message:   message,
		Source:    models.SourceMonitor,
		Timestamp: m.now(),
	})
}

// pollBackground sweeps storage capacity across all known storage
// resources and prunes audit records beyond the retention window.
func (m *Monitor) pollBackground(ctx context.Context) {
	resources, err := m.hv.ClusterResources(ctx, "storage")
	if err != nil {
		m.logger.Warn("background tier: storage fetch failed", "error", err)
	}
	for _, r := range resources {
		used := percent(r.Disk, r.MaxDisk)
		switch {
		case used >= m.cfg.StorageCritPercent:
			m.publish(ctx, models.Event{
				ID: uuid.NewString(), Type: "storage", Severity: models.SeverityCritical,
				Title: "storage critical", Message: fmt.Sprintf("%s at %.1f%% capacity", r.Name, used),
				Node: r.Node, Source: models.SourceMonitor, Timestamp: m.now(),
			})
		case used >= m.cfg.StorageWarnPercent:
			m.publish(ctx, models.Event{
				ID: uuid.NewString(), Type: "storage", Severity: models.SeverityWarning,
				Title: "storage high", Message: fmt.Sprintf("%s at %.1f%% capacity", r.Name, used),
				Node: r.Node, Source: models.SourceMonitor, Timestamp: m.now(),
			})
		}
	}

	if m.pruner != nil {
		cutoff := m.now().Add(-m.cfg.AuditRetention)
		if err := m.pruner.PruneOlderThan(ctx, cutoff); err != nil {
			m.logger.Warn("background tier: audit prune failed", "error", err)
		}
	}
}
