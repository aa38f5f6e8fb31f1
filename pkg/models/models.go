// Package models contains the data types shared across jarvis's components:
// tools, incidents, runbooks, autonomy audit records, and chat sessions.
package models

import (
	"encoding/json"
	"time"
)

// ActionTier classifies the blast radius of a tool call.
type ActionTier string

const (
	TierGreen  ActionTier = "green"
	TierYellow ActionTier = "yellow"
	TierRed    ActionTier = "red"
	TierOrange ActionTier = "orange"
	TierBlack  ActionTier = "black"
)

// User is the single operator identity authenticated against the control
// plane — there is no multi-tenant user directory, just one (or a handful
// of) operator accounts configured statically.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Role identifies the author of a session message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one turn in a chat session.
type Message struct {
	ID        string         `json:"id"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []ToolCall     `json:"tool_calls,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ToolCall is a model-proposed invocation of a registered tool.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// IncidentType enumerates the closed set of conditions the monitor detects.
type IncidentType string

const (
	IncidentNodeUnreachable IncidentType = "NODE_UNREACHABLE"
	IncidentVMCrashed       IncidentType = "VM_CRASHED"
	IncidentCTCrashed       IncidentType = "CT_CRASHED"
	IncidentDiskHigh        IncidentType = "DISK_HIGH"
	IncidentDiskCritical    IncidentType = "DISK_CRITICAL"
	IncidentRAMHigh         IncidentType = "RAM_HIGH"
	IncidentRAMCritical     IncidentType = "RAM_CRITICAL"
	IncidentCPUHigh         IncidentType = "CPU_HIGH"
	IncidentServiceDown     IncidentType = "SERVICE_DOWN"
	IncidentTempHigh        IncidentType = "TEMP_HIGH"
)

// Incident is a detected condition with a stable deduplication key.
type Incident struct {
	Key         string       `json:"key"`
	Type        IncidentType `json:"type"`
	Target      string       `json:"target"`
	Node        string       `json:"node"`
	DetectedAt  time.Time    `json:"detected_at"`
	Detail      string       `json:"detail"`
}

// AutonomyLevel is the operator-configured ceiling on automated remediation.
type AutonomyLevel int

const (
	AutonomyObserve    AutonomyLevel = 0
	AutonomyAlert      AutonomyLevel = 1
	AutonomyRecommend  AutonomyLevel = 2
	AutonomyActReport  AutonomyLevel = 3
	AutonomyActSilent  AutonomyLevel = 4
)

// AutonomyOutcome is the final disposition of a runbook execution attempt.
type AutonomyOutcome string

const (
	OutcomeSuccess   AutonomyOutcome = "success"
	OutcomeFailure   AutonomyOutcome = "failure"
	OutcomeBlocked   AutonomyOutcome = "blocked"
	OutcomeEscalated AutonomyOutcome = "escalated"
)

// AutonomyAction is the persistent audit record of one runbook attempt.
type AutonomyAction struct {
	ID              string          `json:"id"`
	IncidentKey     string          `json:"incident_key"`
	IncidentID      string          `json:"incident_id"`
	RunbookID       string          `json:"runbook_id"`
	Action          string          `json:"action"`
	ArgsSnapshot    json.RawMessage `json:"args_snapshot"`
	Outcome         AutonomyOutcome `json:"outcome"`
	VerificationOK  bool            `json:"verification_ok"`
	AutonomyLevel   AutonomyLevel   `json:"autonomy_level"`
	Attempt         int             `json:"attempt"`
	Escalated       bool            `json:"escalated"`
	EmailSent       bool            `json:"email_sent"`
	CreatedAt       time.Time       `json:"created_at"`
}

// EventSeverity matches the severity values the realtime event stream emits.
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityError    EventSeverity = "error"
	SeverityCritical EventSeverity = "critical"
)

// EventSource identifies which subsystem produced a broadcast event.
type EventSource string

const (
	SourceMonitor EventSource = "monitor"
	SourceUser    EventSource = "user"
	SourceSystem  EventSource = "system"
	SourceJarvis  EventSource = "jarvis"
)

// Event is a cluster-wide broadcast pushed over the /events namespace.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Severity  EventSeverity  `json:"severity"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Node      string         `json:"node,omitempty"`
	Source    EventSource    `json:"source"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Entity is one preserved identifier surfaced out of summarization — a VM
// id, IP, node name, path, or error code the narrative summary must not be
// allowed to drop.
type Entity struct {
	Key         string `json:"key"`
	Description string `json:"description"`
}

// Session is one conversation's durable state: its ordered message log,
// an optional narrative summary of everything older than the recent
// window, and the entity map the summary must never shed.
type Session struct {
	ID               string            `json:"id"`
	Messages         []Message         `json:"messages"`
	Summary          *string           `json:"summary,omitempty"`
	Entities         map[string]Entity `json:"entities,omitempty"`
	CachedTokenCount int               `json:"cached_token_count"`
	Summarizing      bool              `json:"summarizing"`
	TotalMessageCount int              `json:"total_message_count"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}
