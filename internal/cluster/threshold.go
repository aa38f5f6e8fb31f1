package cluster

import "sync"

// ConditionType names a threshold row's incident condition.
type ConditionType string

const (
	ConditionDiskCritical ConditionType = "DISK_CRITICAL"
	ConditionDiskHigh     ConditionType = "DISK_HIGH"
	ConditionRAMCritical  ConditionType = "RAM_CRITICAL"
	ConditionRAMHigh      ConditionType = "RAM_HIGH"
	ConditionCPUHigh      ConditionType = "CPU_HIGH"
)

// Severity labels a threshold violation.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// thresholdRow is one row of the closed threshold table.
type thresholdRow struct {
	Metric    string // "disk" | "ram" | "cpu"
	Threshold float64
	Severity  Severity
	Condition ConditionType
}

// thresholds is the closed threshold table. Rows are evaluated in order;
// disk/ram each have a critical row ahead of their high/warning row so the
// more severe condition wins when both would otherwise match.
var thresholds = []thresholdRow{
	{Metric: "disk", Threshold: 95, Severity: SeverityCritical, Condition: ConditionDiskCritical},
	{Metric: "disk", Threshold: 90, Severity: SeverityWarning, Condition: ConditionDiskHigh},
	{Metric: "ram", Threshold: 95, Severity: SeverityCritical, Condition: ConditionRAMCritical},
	{Metric: "ram", Threshold: 85, Severity: SeverityWarning, Condition: ConditionRAMHigh},
	{Metric: "cpu", Threshold: 95, Severity: SeverityWarning, Condition: ConditionCPUHigh},
}

// Metrics is one online node's sampled utilization, as fractions 0–100.
type Metrics struct {
	Node string
	Disk float64
	RAM  float64
	CPU  float64
}

// Violation is a newly-entered threshold condition.
type Violation struct {
	Condition ConditionType
	Node      string
	Severity  Severity
	Value     float64
}

type violationKey struct {
	condition ConditionType
	node      string
}

// ThresholdEvaluator maintains the hysteresis-gated active-violations set.
// A violation is emitted only when entering the set; it is removed once
// the metric falls back below the threshold, allowing future re-entry.
type ThresholdEvaluator struct {
	mu     sync.Mutex
	active map[violationKey]bool
}

// NewThresholdEvaluator constructs an empty evaluator.
func NewThresholdEvaluator() *ThresholdEvaluator {
	return &ThresholdEvaluator{active: make(map[violationKey]bool)}
}

// Evaluate ingests one tick's metrics for online nodes only, and returns the
// delta of newly-entered violations.
func (e *ThresholdEvaluator) Evaluate(samples []Metrics) []Violation {
	e.mu.Lock()
	defer e.mu.Unlock()

	var newViolations []Violation
	seenThisTick := make(map[violationKey]bool)

	for _, m := range samples {
		matched := make(map[string]bool)
		for _, row := range thresholds {
			if matched[row.Metric] {
				continue
			}
			var value float64
			switch row.Metric {
			case "disk":
				value = m.Disk
			case "ram":
				value = m.RAM
			case "cpu":
				value = m.CPU
			}
			if value <= row.Threshold {
				continue
			}
			matched[row.Metric] = true
			key := violationKey{condition: row.Condition, node: m.Node}
			seenThisTick[key] = true
			if !e.active[key] {
				e.active[key] = true
				newViolations = append(newViolations, Violation{
					Condition: row.Condition,
					Node:      m.Node,
					Severity:  row.Severity,
					Value:     value,
				})
			}
		}
	}

	for key := range e.active {
		if !seenThisTick[key] {
			delete(e.active, key)
		}
	}

	return newViolations
}
