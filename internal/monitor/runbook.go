package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/homelab/jarvis/internal/dispatch"
	"github.com/homelab/jarvis/internal/observability"
	"github.com/homelab/jarvis/pkg/models"
)

// Dispatcher is the subset of *dispatch.Registry the runbook engine needs.
type Dispatcher interface {
	ExecuteTool(ctx context.Context, name string, args map[string]any, caller dispatch.Caller) dispatch.Result
}

// VerifyFunc re-checks whether an incident has actually recovered, some
// verifyDelay after the remediation tool ran. A verification failure is not
// an error: it is simply recorded as a failed outcome.
type VerifyFunc func(ctx context.Context, incident models.Incident) (bool, error)

// ArgsBuilder constructs the tool-call arguments for a runbook's target
// tool from the triggering incident.
type ArgsBuilder func(incident models.Incident) map[string]any

// Runbook is one static, first-match-wins remediation entry.
type Runbook struct {
	ID               string
	Trigger          models.IncidentType
	RequiredAutonomy models.AutonomyLevel
	ToolName         string
	ArgsBuilder      ArgsBuilder
	Verify           VerifyFunc
	VerifyDelay      time.Duration
	Cooldown         time.Duration
}

// EventSink is where the engine pushes broadcast events.
type EventSink interface {
	Publish(ctx context.Context, event models.Event)
}

// AuditStore persists autonomy-action records.
type AuditStore interface {
	RecordAutonomyAction(ctx context.Context, action models.AutonomyAction) error
}

// EmailSender sends a notification email, swallowing its own failures into
// a returned error the caller logs and discards.
type EmailSender interface {
	Send(ctx context.Context, subject, htmlBody string) error
}

// RunbookEngine runs the guarded remediation pipeline for incidents
// produced by the critical-tier poll.
type RunbookEngine struct {
	logger     *slog.Logger
	runbooks   []Runbook
	dispatcher Dispatcher
	prefs      Preferences
	sink       EventSink
	audit      AuditStore
	email      EmailSender
	metrics    *observability.Metrics

	rateLimit  *rateLimiter
	blast      *blastRadiusLock
	emailGate  *emailGate
	now        func() time.Time
}

// EngineOption configures a RunbookEngine.
type EngineOption func(*RunbookEngine)

func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *RunbookEngine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithEngineNow(now func() time.Time) EngineOption {
	return func(e *RunbookEngine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithEmail(sender EmailSender) EngineOption {
	return func(e *RunbookEngine) { e.email = sender }
}

func WithAudit(store AuditStore) EngineOption {
	return func(e *RunbookEngine) { e.audit = store }
}

// WithEngineMetrics attaches the Prometheus metric set. Nil is safe.
func WithEngineMetrics(metrics *observability.Metrics) EngineOption {
	return func(e *RunbookEngine) { e.metrics = metrics }
}

// NewRunbookEngine constructs an engine over a static, first-match-wins
// runbook table.
func NewRunbookEngine(runbooks []Runbook, dispatcher Dispatcher, prefs Preferences, sink EventSink, opts ...EngineOption) *RunbookEngine {
	e := &RunbookEngine{
		logger:     slog.Default().With("component", "runbook"),
		runbooks:   runbooks,
		dispatcher: dispatcher,
		prefs:      prefs,
		sink:       sink,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.rateLimit = newRateLimiter(e.now, time.Hour, 3)
	e.blast = newBlastRadiusLock(e.now, 10*time.Minute)
	e.emailGate = newEmailGate(e.now, 5*time.Minute)
	return e
}

func (e *RunbookEngine) lookup(incidentType models.IncidentType) (Runbook, bool) {
	for _, rb := range e.runbooks {
		if rb.Trigger == incidentType {
			return rb, true
		}
	}
	return Runbook{}, false
}

// Handle runs the full guarded remediation pipeline for one incident. It
// never panics: any handler or tool-call panic is recovered and logged.
func (e *RunbookEngine) Handle(ctx context.Context, incident models.Incident) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("runbook pipeline panicked", "incident_key", incident.Key, "panic", r)
		}
	}()

	runbook, ok := e.lookup(incident.Type)
	if !ok {
		return
	}

	if denied, reason := e.checkGuardrails(ctx, incident, runbook); denied {
		e.logger.Warn("remediation denied", "incident_key", incident.Key, "reason", reason)
		return
	}

	e.rateLimit.Record(incident.Key)
	attempt := e.rateLimit.Count(incident.Key)

	if !e.blast.TryAcquire(incident.Node) {
		// Lost the race between the guardrail check and acquisition; treat
		// as blocked rather than proceeding into a second concurrent
		// remediation on the same node.
		e.recordOutcome(ctx, incident, runbook, models.OutcomeBlocked, false, attempt, false, false, nil)
		return
	}
	defer e.blast.Release(incident.Node)

	e.publish(ctx, models.Event{
		ID:        uuid.NewString(),
		Type:      "action",
		Severity:  models.SeverityInfo,
		Title:     "remediation starting",
		Message:   fmt.Sprintf("running %s for %s", runbook.ToolName, incident.Key),
		Node:      incident.Node,
		Source:    models.SourceMonitor,
		Timestamp: e.now(),
	})

	// Re-check the kill switch immediately before executing: this catches
	// an operator flipping it mid-flight between the guardrail check above
	// and the actual tool invocation.
	if killed, err := e.prefs.KillSwitch(); err != nil || killed {
		e.recordOutcome(ctx, incident, runbook, models.OutcomeBlocked, false, attempt, false, false, nil)
		return
	}

	args := runbook.ArgsBuilder(incident)
	result := e.dispatcher.ExecuteTool(ctx, runbook.ToolName, withConfirmed(args), dispatch.CallerMonitor)

	if runbook.VerifyDelay > 0 {
		select {
		case <-time.After(runbook.VerifyDelay):
		case <-ctx.Done():
			return
		}
	}

	verified := true
	var verifyErr error
	if runbook.Verify != nil {
		verified, verifyErr = runbook.Verify(ctx, incident)
		if verifyErr != nil {
			e.logger.Warn("verification check errored", "incident_key", incident.Key, "error", verifyErr)
			verified = false
		}
	}

	success := !result.IsError && verified

	outcome := models.OutcomeFailure
	escalated := false
	if success {
		outcome = models.OutcomeSuccess
	} else if attempt >= 3 {
		outcome = models.OutcomeEscalated
		escalated = true
	}

	emailSent := e.sendNotification(ctx, incident, runbook, success, attempt, escalated)
	e.recordOutcome(ctx, incident, runbook, outcome, verified, attempt, escalated, emailSent, args)

	severity := models.SeverityInfo
	title := "remediation succeeded"
	if !success {
		severity = models.SeverityError
		title = "remediation failed"
	}
	e.publish(ctx, models.Event{
		ID:        uuid.NewString(),
		Type:      "action",
		Severity:  severity,
		Title:     title,
		Message:   fmt.Sprintf("%s for %s: %s", runbook.ToolName, incident.Key, outcomeDetail(result, verified)),
		Node:      incident.Node,
		Source:    models.SourceMonitor,
		Timestamp: e.now(),
	})
}

// checkGuardrails runs the kill switch, rate limiter, blast-radius, and
// autonomy-level checks in order. A rate-limit denial additionally sends an
// escalation email and records its own audit entry, bypassing the 5-minute
// email gate.
func (e *RunbookEngine) checkGuardrails(ctx context.Context, incident models.Incident, runbook Runbook) (bool, string) {
	killed, err := e.prefs.KillSwitch()
	if err != nil || killed {
		e.recordOutcome(ctx, incident, runbook, models.OutcomeBlocked, false, 0, false, false, nil)
		return true, "kill switch engaged"
	}

	if !e.rateLimit.Allow(incident.Key) {
		// Count() reports attempts already recorded in the window (3 at the
		// point the 4th call is denied); the denied call is itself the next
		// attempt number, so the audit row must record Count()+1 — spec.md
		// §8 scenario 5 expects attempt number 4, not a repeat of 3.
		sent := e.trySendEmail(ctx, escalationSubject(incident), escalationBody(incident, runbook), true)
		e.recordOutcome(ctx, incident, runbook, models.OutcomeEscalated, false, e.rateLimit.Count(incident.Key)+1, true, sent, nil)
		return true, "rate limit exceeded"
	}

	if e.blast.Count() > 0 {
		e.recordOutcome(ctx, incident, runbook, models.OutcomeBlocked, false, 0, false, false, nil)
		return true, "blast radius lock held"
	}

	level, err := e.prefs.AutonomyLevel()
	if err != nil {
		e.recordOutcome(ctx, incident, runbook, models.OutcomeBlocked, false, 0, false, false, nil)
		return true, "autonomy level unreadable"
	}
	if models.AutonomyLevel(level) < runbook.RequiredAutonomy {
		e.recordOutcome(ctx, incident, runbook, models.OutcomeBlocked, false, 0, false, false, nil)
		return true, "autonomy level below requirement"
	}

	return false, ""
}

func (e *RunbookEngine) sendNotification(ctx context.Context, incident models.Incident, runbook Runbook, success bool, attempt int, escalated bool) bool {
	if escalated {
		return e.trySendEmail(ctx, escalationSubject(incident), escalationBody(incident, runbook), true)
	}
	if success {
		return e.trySendEmail(ctx, fmt.Sprintf("remediation succeeded: %s", incident.Key),
			fmt.Sprintf("<p>%s ran %s on %s and verified recovery.</p>", runbook.ToolName, incident.Target, incident.Node), false)
	}
	return e.trySendEmail(ctx, fmt.Sprintf("remediation failed: %s", incident.Key),
		fmt.Sprintf("<p>%s ran %s on %s (attempt %d) but recovery did not verify.</p>", runbook.ToolName, incident.Target, incident.Node, attempt), false)
}

func (e *RunbookEngine) trySendEmail(ctx context.Context, subject, body string, bypassGate bool) bool {
	if e.email == nil {
		return false
	}
	if !bypassGate && !e.emailGate.Allow() {
		return false
	}
	if err := e.email.Send(ctx, subject, body); err != nil {
		e.logger.Warn("notification email failed", "error", err)
		return false
	}
	return true
}

func (e *RunbookEngine) recordOutcome(ctx context.Context, incident models.Incident, runbook Runbook, outcome models.AutonomyOutcome, verified bool, attempt int, escalated, emailSent bool, args map[string]any) {
	e.metrics.RecordRunbookExecution(runbook.ID, string(outcome))
	if e.audit == nil {
		return
	}
	var snapshot json.RawMessage
	if args != nil {
		if b, err := json.Marshal(args); err == nil {
			snapshot = b
		}
	}
	rec := models.AutonomyAction{
		ID:             uuid.NewString(),
		IncidentKey:    incident.Key,
		IncidentID:     incident.Key,
		RunbookID:      runbook.ID,
		Action:         runbook.ToolName,
		ArgsSnapshot:   snapshot,
		Outcome:        outcome,
		VerificationOK: verified,
		Attempt:        attempt,
		Escalated:      escalated,
		EmailSent:      emailSent,
		CreatedAt:      e.now(),
	}
	if level, err := e.prefs.AutonomyLevel(); err == nil {
		rec.AutonomyLevel = models.AutonomyLevel(level)
	}
	if err := e.audit.RecordAutonomyAction(ctx, rec); err != nil {
		e.logger.Warn("failed to record autonomy action", "error", err)
	}
}

func (e *RunbookEngine) publish(ctx context.Context, event models.Event) {
	if e.sink == nil {
		return
	}
	defer func() { _ = recover() }()
	e.sink.Publish(ctx, event)
}

// withConfirmed marks the tool call as operator-confirmed: autonomy acting
// within its configured level *is* the confirmation for a RED-tier tool.
func withConfirmed(args map[string]any) map[string]any {
	if args == nil {
		args = make(map[string]any)
	}
	out := make(map[string]any, len(args)+1)
	for k, v := range args {
		out[k] = v
	}
	out["confirmed"] = true
	return out
}

func outcomeDetail(result dispatch.Result, verified bool) string {
	if result.IsError {
		return "tool reported an error: " + result.Reason
	}
	if !verified {
		return "tool ran but recovery did not verify"
	}
	return "verified"
}

func escalationSubject(incident models.Incident) string {
	return fmt.Sprintf("ESCALATION: repeated remediation attempts for %s", incident.Key)
}

func escalationBody(incident models.Incident, runbook Runbook) string {
	return fmt.Sprintf("<p>%s has failed its remediation attempt limit on node %s. Runbook %s (%s) needs operator attention.</p>",
		incident.Key, incident.Node, runbook.ID, runbook.ToolName)
}
