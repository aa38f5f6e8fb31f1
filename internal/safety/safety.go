// Package safety implements the control plane's safety kernel: the single
// choke point every tool call crosses before it is allowed to touch a remote
// system. Every decision here is a pure function of its inputs and the
// in-process tables below — it never performs network or disk I/O itself.
package safety

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// ActionTier classifies the blast radius of a tool. Re-exported locally so
// callers in this package don't need to import pkg/models for the constants
// they compare against constantly.
type ActionTier string

const (
	TierGreen  ActionTier = "green"
	TierYellow ActionTier = "yellow"
	TierRed    ActionTier = "red"
	TierOrange ActionTier = "orange"
	TierBlack  ActionTier = "black"
)

// ProtectedResource is a single row of the closed protected-resource table:
// a specific vmid/id, a service name, or a command substring that must never
// be reachable through an ordinary tool call.
type ProtectedResource struct {
	VMID    string
	Service string
	Label   string
}

// Decision is the outcome of checkSafety.
type Decision struct {
	Allowed bool
	Reason  string
	Tier    ActionTier
}

func allow(tier ActionTier) Decision { return Decision{Allowed: true, Tier: tier} }

func deny(tier ActionTier, reason string) Decision {
	return Decision{Allowed: false, Tier: tier, Reason: reason}
}

// callContextKey is unexported so only this package can mint values for it —
// the override flag rides the request's context.Context, never a package
// global, so concurrent requests never observe each other's overrides.
type callContextKey struct{}

// RunWithContext returns a derived context carrying an active override for
// the duration of fn's logical scope. Callers thread the returned context
// through to checkSafety; there is no global flag to leak across requests.
func RunWithContext(ctx context.Context, overrideActive bool) context.Context {
	return context.WithValue(ctx, callContextKey{}, overrideActive)
}

// IsOverrideActive reports whether ctx carries an active override.
func IsOverrideActive(ctx context.Context) bool {
	v, _ := ctx.Value(callContextKey{}).(bool)
	return v
}

// Kernel holds the static tables the safety evaluation consults: tool tiers,
// protected resources, and the configured approval keyword. It is built once
// at startup and is safe for concurrent read-only use thereafter.
type Kernel struct {
	logger *slog.Logger

	mu        sync.RWMutex
	tiers     map[string]ActionTier
	resources []ProtectedResource
	keyword   string
	sink      AuditSink
}

// New constructs a Kernel. approvalKeyword is the ORANGE-tier confirmation
// phrase (case-insensitive, whitespace-trimmed at comparison time).
func New(logger *slog.Logger, approvalKeyword string) *Kernel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Kernel{
		logger: logger.With("component", "safety"),
		tiers:  make(map[string]ActionTier),
		keyword: approvalKeyword,
	}
}

// RegisterTier records the tier for a tool name. Called once per tool at
// startup from each tool group's registration function.
func (k *Kernel) RegisterTier(toolName string, tier ActionTier) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.tiers[toolName] = tier
}

// SetProtectedResources replaces the protected-resource table wholesale.
// Called once at startup; the table is not reloaded while the process runs.
func (k *Kernel) SetProtectedResources(resources []ProtectedResource) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.resources = resources
}

// GetToolTier looks up a tool's tier. Unknown names return BLACK — fail-safe.
func (k *Kernel) GetToolTier(name string) ActionTier {
	k.mu.RLock()
	defer k.mu.RUnlock()
	tier, ok := k.tiers[name]
	if !ok {
		return TierBlack
	}
	return tier
}

// IsProtectedResource checks a call's canonical argument keys (vmid/id,
// service, or a command string) against the protected table.
func (k *Kernel) IsProtectedResource(args map[string]any) (bool, string) {
	k.mu.RLock()
	resources := k.resources
	k.mu.RUnlock()

	candidates := canonicalIdentifiers(args)
	cmd, _ := args["command"].(string)
	cmd = strings.ToLower(cmd)

	for _, r := range resources {
		if r.VMID != "" && candidates[r.VMID] {
			return true, fmt.Sprintf("%s is a protected resource (vmid %s)", r.Label, r.VMID)
		}
		if r.Service != "" {
			if candidates[r.Service] {
				return true, fmt.Sprintf("%s is a protected resource (service %s)", r.Label, r.Service)
			}
			if cmd != "" && strings.Contains(cmd, strings.ToLower(r.Service)) {
				return true, fmt.Sprintf("%s is a protected resource (referenced in command)", r.Label)
			}
		}
	}
	return false, ""
}

func canonicalIdentifiers(args map[string]any) map[string]bool {
	out := make(map[string]bool, 2)
	for _, key := range []string{"vmid", "id", "service"} {
		v, ok := args[key]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			out[t] = true
		case int:
			out[fmt.Sprintf("%d", t)] = true
		case int64:
			out[fmt.Sprintf("%d", t)] = true
		case float64:
			out[fmt.Sprintf("%d", int64(t))] = true
		}
	}
	return out
}

// ValidateApprovalKeyword compares the given phrase against the configured
// approval keyword, case-insensitively and trimmed.
func (k *Kernel) ValidateApprovalKeyword(given string) bool {
	k.mu.RLock()
	want := k.keyword
	k.mu.RUnlock()
	if want == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(want))
}

// CheckSafety runs the ordered evaluation algorithm from the tool's
// registered tier, the protected-resource table, the confirmed flag, and the
// override carried on ctx. It is total: every recognized failure returns a
// denial with a short, user-facing reason.
func (k *Kernel) CheckSafety(ctx context.Context, toolName string, args map[string]any, confirmed bool) Decision {
	tier := k.GetToolTier(toolName)
	override := IsOverrideActive(ctx)

	if protected, reason := k.IsProtectedResource(args); protected {
		if override {
			k.LogSafetyAudit(ctx, toolName, true, "protected resource allowed under override: "+reason)
			return allow(tier)
		}
		k.LogSafetyAudit(ctx, toolName, false, reason)
		return deny(tier, reason)
	}

	if override {
		k.LogSafetyAudit(ctx, toolName, true, fmt.Sprintf("override active for %s tier %s", toolName, tier))
		return allow(tier)
	}

	switch tier {
	case TierBlack:
		reason := fmt.Sprintf("%s is BLACK tier and forbidden without an active override", toolName)
		k.LogSafetyAudit(ctx, toolName, false, reason)
		return deny(tier, reason)
	case TierOrange:
		keyword, _ := args["keyword"].(string)
		if !k.ValidateApprovalKeyword(keyword) {
			reason := fmt.Sprintf("%s requires the approval keyword", toolName)
			k.LogSafetyAudit(ctx, toolName, false, reason)
			return deny(tier, reason)
		}
		return allow(tier)
	case TierRed:
		if !confirmed {
			reason := fmt.Sprintf("%s is RED tier and requires confirmed=true", toolName)
			k.LogSafetyAudit(ctx, toolName, false, reason)
			return deny(tier, reason)
		}
		return allow(tier)
	case TierYellow, TierGreen:
		return allow(tier)
	default:
		reason := fmt.Sprintf("unrecognized tier %q for %s", tier, toolName)
		k.LogSafetyAudit(ctx, toolName, false, reason)
		return deny(tier, reason)
	}
}

// AuditRecord is the structured shape of a safety audit entry, matching the
// wire format the event stream and store expect:
// {type:'action', severity:'warning', source:'system', summary, details}.
type AuditRecord struct {
	Type     string         `json:"type"`
	Severity string         `json:"severity"`
	Source   string         `json:"source"`
	Summary  string         `json:"summary"`
	Details  map[string]any `json:"details"`
}

// AuditSink receives safety audit records for persistence/broadcast. Nil-safe:
// a Kernel with no sink just logs locally.
type AuditSink interface {
	RecordSafetyAudit(ctx context.Context, rec AuditRecord)
}

// sink is optional; set via SetAuditSink once at startup.
var _ = AuditSink(nil)

func (k *Kernel) SetAuditSink(sink AuditSink) {
	k.mu.Lock()
	k.sink = sink
	k.mu.Unlock()
}

// LogSafetyAudit is best-effort and never throws: logging failures are
// swallowed rather than surfaced, since an audit write must never block or
// fail the action it's recording.
func (k *Kernel) LogSafetyAudit(ctx context.Context, action string, allowed bool, details string) {
	defer func() { _ = recover() }()

	short := details
	if len(short) > 160 {
		short = short[:157] + "..."
	}
	summary := fmt.Sprintf("SAFETY: %s — %s", action, short)

	k.logger.Info("safety audit", "action", action, "allowed", allowed, "detail", details)

	k.mu.RLock()
	sink := k.sink
	k.mu.RUnlock()
	if sink == nil {
		return
	}
	sink.RecordSafetyAudit(ctx, AuditRecord{
		Type:     "action",
		Severity: "warning",
		Source:   "system",
		Summary:  summary,
		Details: map[string]any{
			"action":  action,
			"allowed": allowed,
			"detail":  details,
		},
	})
}
