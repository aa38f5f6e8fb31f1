// Package dispatch implements the tool dispatcher (C2): a typed registry of
// named tool handlers that routes every call through the safety kernel
// before invoking the handler, and records the outcome.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/homelab/jarvis/internal/audit"
	"github.com/homelab/jarvis/internal/observability"
	"github.com/homelab/jarvis/internal/safety"
)

// Caller identifies who initiated a tool call, for audit and routing.
type Caller string

const (
	CallerAPI     Caller = "api"
	CallerMonitor Caller = "monitor"
	CallerVoice   Caller = "voice"
	CallerChat    Caller = "chat"
)

// Handler is the capability set every tool implements: read the argument
// map, invoke an external client, and return structured content or an
// error. Handlers never need to know about tiers or confirmation — the
// dispatcher has already gated the call by the time Handler runs.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Tool is a value describing one named action: its tier, its JSON-schema-
// shaped argument description, and its handler. Tools are registered once
// at startup by each group's registration function and never mutated.
type Tool struct {
	Name        string
	Description string
	Tier        safety.ActionTier
	Schema      map[string]any
	Handler     Handler
}

// Result is the tagged-variant outcome of ExecuteTool, preferred over
// exception control flow.
type Result struct {
	Content string
	IsError bool
	Blocked bool
	Reason  string
	Tier    safety.ActionTier
}

// PostExecuteFunc is invoked best-effort after a successful call so that
// dependent snapshots can be re-emitted to subscribers. A panic or error in
// this hook never fails the originating call.
type PostExecuteFunc func(ctx context.Context, toolName string, args map[string]any, result Result)

// Registry holds the static tool table and the safety kernel every call is
// screened through.
type Registry struct {
	kernel  *safety.Kernel
	logger  *slog.Logger
	audit   *audit.Logger
	metrics *observability.Metrics

	mu          sync.RWMutex
	tools       map[string]*Tool
	schemas     map[string]*jsonschema.Schema
	postExecute PostExecuteFunc
}

// NewRegistry constructs an empty Registry bound to kernel.
func NewRegistry(kernel *safety.Kernel, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		kernel:  kernel,
		logger:  logger.With("component", "dispatch"),
		tools:   make(map[string]*Tool),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// SetAuditLogger installs the structured tool-invocation/permission audit
// trail. Nil-safe: a Registry with no audit logger installed just skips it.
func (r *Registry) SetAuditLogger(l *audit.Logger) {
	r.mu.Lock()
	r.audit = l
	r.mu.Unlock()
}

// SetMetrics installs the Prometheus metric set. Nil-safe: a Registry with
// no metrics installed just skips recording.
func (r *Registry) SetMetrics(m *observability.Metrics) {
	r.mu.Lock()
	r.metrics = m
	r.mu.Unlock()
}

// SetPostExecute installs the best-effort post-execute hook.
func (r *Registry) SetPostExecute(fn PostExecuteFunc) {
	r.mu.Lock()
	r.postExecute = fn
	r.mu.Unlock()
}

// RegisterTool adds a tool to the registry and its tier to the safety
// kernel. Called at startup from each tool group's registration function;
// never called again afterward, so no lock contention concern in steady
// state.
func (r *Registry) RegisterTool(t Tool) {
	r.mu.Lock()
	r.tools[t.Name] = &t
	if len(t.Schema) > 0 {
		if compiled, err := compileToolSchema(t.Name, t.Schema); err != nil {
			r.logger.Warn("tool schema did not compile, argument validation disabled", "tool", t.Name, "error", err)
		} else {
			r.schemas[t.Name] = compiled
		}
	}
	r.mu.Unlock()
	r.kernel.RegisterTier(t.Name, t.Tier)
}

// compileToolSchema compiles a tool's argument description into a validator.
// Tool groups author Schema as "field: \"type, required\"" shorthand, so it
// is translated into a real JSON Schema object before compiling.
func compileToolSchema(name string, schema map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(toJSONSchemaDoc(schema))
	if err != nil {
		return nil, err
	}
	return jsonschema.CompileString(name, string(raw))
}

var toolArgTypes = map[string]string{
	"string": "string", "integer": "integer", "number": "number",
	"boolean": "boolean", "bool": "boolean", "object": "object", "array": "array",
}

// toJSONSchemaDoc turns a tool's "field: \"type, required — note\"" shorthand
// into a JSON Schema object. Fields already authored as a nested schema map
// pass through unchanged.
func toJSONSchemaDoc(schema map[string]any) map[string]any {
	properties := make(map[string]any, len(schema))
	var required []string
	for field, desc := range schema {
		switch v := desc.(type) {
		case string:
			typ, isRequired := parseArgDescriptor(v)
			properties[field] = map[string]any{"type": typ}
			if isRequired {
				required = append(required, field)
			}
		case map[string]any:
			properties[field] = v
		default:
			properties[field] = map[string]any{}
		}
	}
	doc := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		sort.Strings(required)
		doc["required"] = required
	}
	return doc
}

func parseArgDescriptor(desc string) (typ string, required bool) {
	typ = "string"
	head, _, _ := strings.Cut(desc, ",")
	if t, ok := toolArgTypes[strings.TrimSpace(head)]; ok {
		typ = t
	}
	return typ, strings.Contains(desc, "required")
}

// ToolInfo is the read-only projection ListTools returns.
type ToolInfo struct {
	Name        string
	Tier        safety.ActionTier
	Description string
	Schema      map[string]any
}

// ListTools returns the registered tools for introspection (e.g. GET
// /api/tools, or the LLM's tool-use system prompt).
func (r *Registry) ListTools() []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, ToolInfo{Name: t.Name, Tier: t.Tier, Description: t.Description, Schema: t.Schema})
	}
	return out
}

func (r *Registry) lookup(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// ExecuteTool runs the lookup, resolves the override already carried on ctx
// by the caller, checks safety, re-verifies the approval keyword for
// ORANGE-tier tools, invokes the handler with panic recovery, and finally
// makes a best-effort post-execute push.
func (r *Registry) ExecuteTool(ctx context.Context, name string, args map[string]any, caller Caller) Result {
	r.mu.RLock()
	auditLogger := r.audit
	r.mu.RUnlock()
	callID := fmt.Sprintf("%s-%d", name, time.Now().UnixNano())
	sessionKey := string(caller)
	start := time.Now()

	tool := r.lookup(name)
	if tool == nil {
		r.kernel.LogSafetyAudit(ctx, name, false, "tool not found")
		if auditLogger != nil {
			auditLogger.LogToolDenied(ctx, name, callID, "not found", "", sessionKey)
		}
		r.metrics.RecordToolExecution(name, "blocked", time.Since(start).Seconds())
		return Result{Blocked: true, Reason: "not found", Tier: safety.TierBlack}
	}

	if args == nil {
		args = map[string]any{}
	}
	if auditLogger != nil {
		if input, err := json.Marshal(args); err == nil {
			auditLogger.LogToolInvocation(ctx, name, callID, input, sessionKey)
		}
	}

	r.mu.RLock()
	schema := r.schemas[name]
	r.mu.RUnlock()
	if schema != nil {
		if err := validateToolArgs(schema, args); err != nil {
			reason := fmt.Sprintf("invalid arguments: %v", err)
			r.kernel.LogSafetyAudit(ctx, name, false, reason)
			if auditLogger != nil {
				auditLogger.LogToolDenied(ctx, name, callID, reason, string(tool.Tier), sessionKey)
			}
			r.metrics.RecordToolExecution(name, "blocked", time.Since(start).Seconds())
			return Result{Blocked: true, Reason: reason, Tier: tool.Tier}
		}
	}

	confirmed, _ := args["confirmed"].(bool)

	decision := r.kernel.CheckSafety(ctx, name, args, confirmed)
	if !decision.Allowed {
		if auditLogger != nil {
			auditLogger.LogToolDenied(ctx, name, callID, decision.Reason, string(decision.Tier), sessionKey)
		}
		r.metrics.RecordToolExecution(name, "blocked", time.Since(start).Seconds())
		return Result{Blocked: true, Reason: decision.Reason, Tier: decision.Tier}
	}

	if tool.Tier == safety.TierOrange {
		keyword, _ := args["keyword"].(string)
		if !r.kernel.ValidateApprovalKeyword(keyword) {
			reason := fmt.Sprintf("%s requires the approval keyword", name)
			r.kernel.LogSafetyAudit(ctx, name, false, reason)
			if auditLogger != nil {
				auditLogger.LogToolDenied(ctx, name, callID, reason, string(tool.Tier), sessionKey)
			}
			r.metrics.RecordToolExecution(name, "blocked", time.Since(start).Seconds())
			return Result{Blocked: true, Reason: reason, Tier: tool.Tier}
		}
	}

	result := r.invoke(ctx, tool, args)
	if auditLogger != nil {
		auditLogger.LogToolCompletion(ctx, name, callID, !result.IsError, result.Content, time.Since(start), sessionKey)
	}
	status := "success"
	if result.IsError {
		status = "error"
	}
	r.metrics.RecordToolExecution(name, status, time.Since(start).Seconds())

	r.mu.RLock()
	post := r.postExecute
	r.mu.RUnlock()
	if post != nil {
		r.safePostExecute(ctx, post, name, args, result)
	}

	return result
}

// validateToolArgs checks args against a compiled schema. args round-trips
// through JSON first since callers build it with Go-native types (int,
// time.Duration, ...) and jsonschema validates against decoded JSON types.
func validateToolArgs(schema *jsonschema.Schema, args map[string]any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return err
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	return schema.Validate(decoded)
}

func (r *Registry) invoke(ctx context.Context, tool *Tool, args map[string]any) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool handler panicked", "tool", tool.Name, "panic", rec)
			result = Result{IsError: true, Content: fmt.Sprintf("internal error: %v", rec), Tier: tool.Tier}
		}
	}()

	content, err := tool.Handler(ctx, args)
	if err != nil {
		return Result{IsError: true, Content: err.Error(), Tier: tool.Tier}
	}
	return Result{Content: content, Tier: tool.Tier}
}

func (r *Registry) safePostExecute(ctx context.Context, fn PostExecuteFunc, name string, args map[string]any, result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("post-execute hook panicked", "tool", name, "panic", rec)
		}
	}()
	fn(ctx, name, args, result)
}
