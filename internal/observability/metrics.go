package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the control plane's Prometheus metric set. It tracks:
//   - tool dispatch volume and outcome (C2)
//   - autonomous monitor poll-tier latency (C4)
//   - LLM request performance and token spend (C5)
//   - TTS fallback behavior (C6)
//   - HTTP and database latency
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.RecordToolExecution("reboot_vm", "success", time.Since(start).Seconds())
type Metrics struct {
	// ToolExecutionCounter counts tool invocations. Labels: tool_name, status (success|error|blocked)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds. Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// MonitorTierDuration measures one poll-tier run's wall time. Labels: tier (critical|important|routine|background)
	MonitorTierDuration *prometheus.HistogramVec

	// MonitorTierRuns counts poll-tier runs by outcome. Labels: tier, outcome (ok|panic)
	MonitorTierRuns *prometheus.CounterVec

	// RunbookExecutions counts autonomous runbook actions taken. Labels: runbook, outcome (success|failure|blocked|escalated)
	RunbookExecutions *prometheus.CounterVec

	// LLMRequestDuration measures LLM API call latency in seconds. Labels: provider, model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests by provider and model. Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption. Labels: provider, model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// ContextWindowUsed tracks context window utilization in tokens. Labels: provider, model
	ContextWindowUsed *prometheus.HistogramVec

	// TTSFallbackTotal counts sentence synthesis calls by engine actually used. Labels: engine (primary|fallback)
	TTSFallbackTotal *prometheus.CounterVec

	// ActiveSessions is a gauge tracking current chat sessions.
	ActiveSessions prometheus.Gauge

	// HTTPRequestDuration measures HTTP API request latency. Labels: method, path, status_code
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestCounter counts HTTP requests. Labels: method, path, status_code
	HTTPRequestCounter *prometheus.CounterVec

	// DatabaseQueryDuration measures database query latency in seconds. Labels: operation, table
	DatabaseQueryDuration *prometheus.HistogramVec

	// DatabaseQueryCounter counts database queries. Labels: operation, table, status (success|error)
	DatabaseQueryCounter *prometheus.CounterVec

	// KillSwitchEngaged reports the kill switch state as 0/1, for alerting.
	KillSwitchEngaged prometheus.Gauge

	// AutonomyLevel reports the current default autonomy level (0-4).
	AutonomyLevel prometheus.Gauge
}

// NewMetrics creates and registers every metric against Prometheus's default
// registry. Call once at startup.
func NewMetrics() *Metrics {
	return &Metrics{
		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jarvis_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),
		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jarvis_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),
		MonitorTierDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jarvis_monitor_tier_duration_seconds",
				Help:    "Duration of one autonomous monitor poll-tier run",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"tier"},
		),
		MonitorTierRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jarvis_monitor_tier_runs_total",
				Help: "Total number of autonomous monitor poll-tier runs by outcome",
			},
			[]string{"tier", "outcome"},
		),
		RunbookExecutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jarvis_runbook_executions_total",
				Help: "Total number of autonomous runbook actions by runbook and outcome",
			},
			[]string{"runbook", "outcome"},
		),
		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jarvis_llm_request_duration_seconds",
				Help:    "Duration of LLM API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),
		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jarvis_llm_requests_total",
				Help: "Total number of LLM requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),
		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jarvis_llm_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),
		ContextWindowUsed: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jarvis_context_window_tokens",
				Help:    "Context window tokens used per completion request",
				Buckets: []float64{1000, 4000, 8000, 16000, 32000, 64000, 128000, 200000},
			},
			[]string{"provider", "model"},
		),
		TTSFallbackTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jarvis_tts_synthesis_total",
				Help: "Total number of synthesized sentences by engine actually used",
			},
			[]string{"engine"},
		),
		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "jarvis_active_sessions",
				Help: "Current number of active chat sessions",
			},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jarvis_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jarvis_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		DatabaseQueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jarvis_database_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"operation", "table"},
		),
		DatabaseQueryCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jarvis_database_queries_total",
				Help: "Total number of database queries",
			},
			[]string{"operation", "table", "status"},
		),
		KillSwitchEngaged: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "jarvis_kill_switch_engaged",
				Help: "1 if the autonomy kill switch is engaged, 0 otherwise",
			},
		),
		AutonomyLevel: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "jarvis_autonomy_level",
				Help: "Current default autonomy level (0-4)",
			},
		),
	}
}

// RecordToolExecution records metrics for a tool execution.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordMonitorTier records one poll-tier run's outcome and duration.
func (m *Metrics) RecordMonitorTier(tier, outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.MonitorTierRuns.WithLabelValues(tier, outcome).Inc()
	m.MonitorTierDuration.WithLabelValues(tier).Observe(durationSeconds)
}

// RecordRunbookExecution records one autonomous runbook action.
func (m *Metrics) RecordRunbookExecution(runbook, outcome string) {
	if m == nil {
		return
	}
	m.RunbookExecutions.WithLabelValues(runbook, outcome).Inc()
}

// RecordLLMRequest records metrics for an LLM API request.
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	if m == nil {
		return
	}
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordContextWindow records context window utilization.
func (m *Metrics) RecordContextWindow(provider, model string, tokensUsed int) {
	if m == nil {
		return
	}
	m.ContextWindowUsed.WithLabelValues(provider, model).Observe(float64(tokensUsed))
}

// RecordTTSSynthesis records which engine actually produced a sentence.
func (m *Metrics) RecordTTSSynthesis(engine string) {
	if m == nil {
		return
	}
	m.TTSFallbackTotal.WithLabelValues(engine).Inc()
}

// SessionStarted increments the active session gauge.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

// SessionEnded decrements the active session gauge.
func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

// RecordHTTPRequest records metrics for an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestCounter.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
}

// RecordDatabaseQuery records metrics for a database query.
func (m *Metrics) RecordDatabaseQuery(operation, table, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.DatabaseQueryCounter.WithLabelValues(operation, table, status).Inc()
	m.DatabaseQueryDuration.WithLabelValues(operation, table).Observe(durationSeconds)
}

// SetGuardrailState reflects the kill switch and autonomy level onto gauges
// so they can be alerted on without polling the API.
func (m *Metrics) SetGuardrailState(killSwitch bool, autonomyLevel int) {
	if m == nil {
		return
	}
	if killSwitch {
		m.KillSwitchEngaged.Set(1)
	} else {
		m.KillSwitchEngaged.Set(0)
	}
	m.AutonomyLevel.Set(float64(autonomyLevel))
}
