package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/homelab/jarvis/internal/dispatch"
	"github.com/homelab/jarvis/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrefs struct {
	mu        sync.Mutex
	killed    bool
	autonomy  int
	killErr   error
	levelErr  error
}

func (p *fakePrefs) KillSwitch() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed, p.killErr
}

func (p *fakePrefs) AutonomyLevel() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.autonomy, p.levelErr
}

type fakeDispatcher struct {
	mu     sync.Mutex
	calls  int
	result dispatch.Result
}

func (d *fakeDispatcher) ExecuteTool(ctx context.Context, name string, args map[string]any, caller dispatch.Caller) dispatch.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.result
}

type fakeSink struct {
	mu     sync.Mutex
	events []models.Event
}

func (s *fakeSink) Publish(ctx context.Context, event models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

type fakeAudit struct {
	mu      sync.Mutex
	records []models.AutonomyAction
}

func (a *fakeAudit) RecordAutonomyAction(ctx context.Context, action models.AutonomyAction) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, action)
	return nil
}

type fakeEmail struct {
	mu      sync.Mutex
	subjects []string
}

func (e *fakeEmail) Send(ctx context.Context, subject, body string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subjects = append(e.subjects, subject)
	return nil
}

func testRunbook() Runbook {
	return Runbook{
		ID:               "test-start",
		Trigger:          models.IncidentVMCrashed,
		RequiredAutonomy: models.AutonomyActReport,
		ToolName:         "start_vm",
		ArgsBuilder:      func(models.Incident) map[string]any { return map[string]any{} },
		Verify:           func(context.Context, models.Incident) (bool, error) { return true, nil },
	}
}

func testIncident() models.Incident {
	return models.Incident{Key: "VM_CRASHED:200", Type: models.IncidentVMCrashed, Target: "200", Node: "pve1"}
}

func TestRunbookEngine_KillSwitchBlocksRemediation(t *testing.T) {
	prefs := &fakePrefs{killed: true}
	disp := &fakeDispatcher{result: dispatch.Result{}}
	audit := &fakeAudit{}
	engine := NewRunbookEngine([]Runbook{testRunbook()}, disp, prefs, &fakeSink{}, WithAudit(audit))

	engine.Handle(context.Background(), testIncident())

	assert.Equal(t, 0, disp.calls)
	require.Len(t, audit.records, 1)
	assert.Equal(t, models.OutcomeBlocked, audit.records[0].Outcome)
}

func TestRunbookEngine_SuccessPathRecordsAndEmails(t *testing.T) {
	prefs := &fakePrefs{autonomy: int(models.AutonomyActReport)}
	disp := &fakeDispatcher{result: dispatch.Result{Content: "started"}}
	audit := &fakeAudit{}
	email := &fakeEmail{}
	engine := NewRunbookEngine([]Runbook{testRunbook()}, disp, prefs, &fakeSink{}, WithAudit(audit), WithEmail(email))

	engine.Handle(context.Background(), testIncident())

	assert.Equal(t, 1, disp.calls)
	require.Len(t, audit.records, 1)
	assert.Equal(t, models.OutcomeSuccess, audit.records[0].Outcome)
	assert.True(t, audit.records[0].VerificationOK)
	require.Len(t, email.subjects, 1)
}

func TestRunbookEngine_AutonomyBelowRequirementBlocks(t *testing.T) {
	prefs := &fakePrefs{autonomy: int(models.AutonomyRecommend)}
	disp := &fakeDispatcher{result: dispatch.Result{}}
	audit := &fakeAudit{}
	engine := NewRunbookEngine([]Runbook{testRunbook()}, disp, prefs, &fakeSink{}, WithAudit(audit))

	engine.Handle(context.Background(), testIncident())

	assert.Equal(t, 0, disp.calls)
	require.Len(t, audit.records, 1)
	assert.Equal(t, models.OutcomeBlocked, audit.records[0].Outcome)
}

func TestRunbookEngine_RateLimitEscalatesOnFourthAttempt(t *testing.T) {
	current := time.Unix(0, 0)
	now := func() time.Time { return current }

	prefs := &fakePrefs{autonomy: int(models.AutonomyActReport)}
	disp := &fakeDispatcher{result: dispatch.Result{Content: "started"}}
	audit := &fakeAudit{}
	email := &fakeEmail{}
	engine := NewRunbookEngine([]Runbook{testRunbook()}, disp, prefs, &fakeSink{},
		WithAudit(audit), WithEmail(email), WithEngineNow(now))

	incident := testIncident()
	for i := 0; i < 3; i++ {
		engine.Handle(context.Background(), incident)
		current = current.Add(time.Minute)
	}
	assert.Equal(t, 3, disp.calls)

	// Fourth attempt within the hour window is denied and escalates.
	engine.Handle(context.Background(), incident)

	assert.Equal(t, 3, disp.calls, "fourth attempt must not reach the dispatcher")
	last := audit.records[len(audit.records)-1]
	assert.Equal(t, models.OutcomeEscalated, last.Outcome)
	assert.True(t, last.Escalated)
	assert.Equal(t, 4, last.Attempt, "spec.md §8 scenario 5: the escalated row must record attempt number 4, not 3")

	found := false
	for _, subj := range email.subjects {
		if containsEscalation(subj) {
			found = true
		}
	}
	assert.True(t, found, "expected an escalation email to be sent")
}

func containsEscalation(s string) bool {
	for i := 0; i+len("ESCALATION") <= len(s); i++ {
		if s[i:i+len("ESCALATION")] == "ESCALATION" {
			return true
		}
	}
	return false
}

func TestRunbookEngine_BlastRadiusBlocksSecondConcurrentNode(t *testing.T) {
	prefs := &fakePrefs{autonomy: int(models.AutonomyActReport)}
	disp := &fakeDispatcher{result: dispatch.Result{Content: "started"}}
	audit := &fakeAudit{}
	rb := testRunbook()
	rb.VerifyDelay = 50 * time.Millisecond
	engine := NewRunbookEngine([]Runbook{rb}, disp, prefs, &fakeSink{}, WithAudit(audit))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		engine.Handle(context.Background(), models.Incident{Key: "VM_CRASHED:200", Type: models.IncidentVMCrashed, Target: "200", Node: "pve1"})
	}()
	go func() {
		defer wg.Done()
		time.Sleep(5 * time.Millisecond)
		engine.Handle(context.Background(), models.Incident{Key: "VM_CRASHED:201", Type: models.IncidentVMCrashed, Target: "201", Node: "pve2"})
	}()
	wg.Wait()

	assert.Equal(t, 1, disp.calls, "only one remediation should run while the blast-radius lock is held")
}

func TestRunbookEngine_UnknownIncidentTypeStopsSilently(t *testing.T) {
	prefs := &fakePrefs{autonomy: int(models.AutonomyActSilent)}
	disp := &fakeDispatcher{}
	audit := &fakeAudit{}
	engine := NewRunbookEngine([]Runbook{testRunbook()}, disp, prefs, &fakeSink{}, WithAudit(audit))

	engine.Handle(context.Background(), models.Incident{Key: "DISK_HIGH:pve1", Type: models.IncidentDiskHigh, Node: "pve1"})

	assert.Equal(t, 0, disp.calls)
	assert.Empty(t, audit.records)
}
