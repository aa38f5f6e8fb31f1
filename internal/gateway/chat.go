package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/homelab/jarvis/internal/dispatch"
	"github.com/homelab/jarvis/internal/llm"
	"github.com/homelab/jarvis/internal/safety"
	"github.com/homelab/jarvis/internal/session"
	"github.com/homelab/jarvis/pkg/models"
)

// ToolEvent is one tool call the chat loop made or attempted, surfaced back
// to the caller alongside the final text.
type ToolEvent struct {
	Name    string         `json:"name"`
	Args    map[string]any `json:"args"`
	Result  string         `json:"result,omitempty"`
	Blocked bool           `json:"blocked,omitempty"`
	Reason  string         `json:"reason,omitempty"`
	Tier    string         `json:"tier,omitempty"`
}

// PendingConfirmation describes an ORANGE-tier call the chat loop stopped
// on, waiting for the operator to supply the approval keyword.
type PendingConfirmation struct {
	ID       string `json:"id"`
	ToolName string `json:"tool_name"`
	Reason   string `json:"reason"`
}

// ChatTurnResult is the outcome of one chat turn: either a final assistant
// reply, or a pending confirmation that must be resolved via
// resumeChatTurn before the turn can complete.
type ChatTurnResult struct {
	Text       string                `json:"text,omitempty"`
	ToolEvents []ToolEvent           `json:"tool_events,omitempty"`
	Pending    *PendingConfirmation  `json:"pending,omitempty"`
}

// runChatTurn drives the tool-calling loop for one user message: it
// appends the message to the session, repeatedly calls the model and
// executes any tool calls it proposes through the dispatcher, and stops
// either at a final text reply or at the first call blocked on the
// approval keyword.
func (s *Server) runChatTurn(ctx context.Context, sessionID string, caller dispatch.Caller, userText string) (ChatTurnResult, error) {
	s.sessions.AddMessage(sessionID, models.RoleUser, userText)

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return ChatTurnResult{}, fmt.Errorf("gateway: load session: %w", err)
	}

	window := session.ContextWindow{}
	history := toLLMMessages(session.BuildContextMessages(sess, window, session.EstimateTokens(s.cfg.SystemPrompt), 0))
	tools := s.toolSpecs()

	result, err := s.drive(ctx, sessionID, caller, history, tools)
	if err != nil {
		return ChatTurnResult{}, err
	}
	if result.Pending == nil {
		s.sessions.AddMessage(sessionID, models.RoleAssistant, result.Text)
		s.persistAndMaybeSummarize(ctx, sessionID)
	}
	return result, nil
}

// resumeChatTurn re-executes a pending ORANGE-tier call with the supplied
// approval keyword merged in, then continues the tool loop from where it
// stopped.
func (s *Server) resumeChatTurn(ctx context.Context, pendingID, keyword string) (ChatTurnResult, error) {
	call, ok := s.pending.take(pendingID)
	if !ok {
		return ChatTurnResult{}, fmt.Errorf("gateway: no pending confirmation %s", pendingID)
	}

	args := map[string]any{}
	for k, v := range call.Args {
		args[k] = v
	}
	args["keyword"] = keyword
	args["confirmed"] = true

	toolResult := s.registry.ExecuteTool(ctx, call.ToolName, args, dispatch.CallerChat)
	event := toolEventFromResult(call.ToolName, args, toolResult)

	history := append(call.History, llm.Message{
		Role:       llm.RoleTool,
		ToolResult: &llm.ToolResult{ToolCallID: call.ToolCallID, Content: toolResult.Content, IsError: toolResult.IsError},
	})

	result, err := s.drive(ctx, call.SessionID, dispatch.CallerChat, history, s.toolSpecs())
	if err != nil {
		return ChatTurnResult{}, err
	}
	result.ToolEvents = append([]ToolEvent{event}, result.ToolEvents...)
	if result.Pending == nil {
		s.sessions.AddMessage(call.SessionID, models.RoleAssistant, result.Text)
		s.persistAndMaybeSummarize(ctx, call.SessionID)
	}
	return result, nil
}

// drive runs the bounded tool-calling loop starting from history, calling
// the model and executing each proposed tool call until the model returns
// plain text, a call blocks on confirmation, or the iteration cap is hit.
func (s *Server) drive(ctx context.Context, sessionID string, caller dispatch.Caller, history []llm.Message, tools []llm.ToolSpec) (ChatTurnResult, error) {
	var events []ToolEvent

	for i := 0; i < s.cfg.MaxToolIterations; i++ {
		resp, err := s.completeTraced(ctx, history, tools)
		if err != nil {
			return ChatTurnResult{}, fmt.Errorf("gateway: completion: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			return ChatTurnResult{Text: resp.Text, ToolEvents: events}, nil
		}

		history = append(history, llm.Message{Role: llm.RoleAssistant, Content: resp.Text, ToolCalls: resp.ToolCalls})

		for _, tc := range resp.ToolCalls {
			toolResult := s.executeToolTraced(ctx, tc.Name, tc.Args, caller)
			event := toolEventFromResult(tc.Name, tc.Args, toolResult)
			events = append(events, event)

			if toolResult.Blocked && toolResult.Tier == safety.TierOrange {
				pendingID := s.pending.add(pendingToolCall{
					SessionID:  sessionID,
					ToolName:   tc.Name,
					Args:       tc.Args,
					ToolCallID: tc.ID,
					History:    history,
				})
				return ChatTurnResult{
					ToolEvents: events,
					Pending:    &PendingConfirmation{ID: pendingID, ToolName: tc.Name, Reason: toolResult.Reason},
				}, nil
			}

			content := toolResult.Content
			if toolResult.Blocked {
				content = "blocked: " + toolResult.Reason
			}
			history = append(history, llm.Message{
				Role:       llm.RoleTool,
				ToolResult: &llm.ToolResult{ToolCallID: tc.ID, Content: content, IsError: toolResult.IsError || toolResult.Blocked},
			})
		}
	}

	return ChatTurnResult{Text: "I wasn't able to finish that within the allowed number of tool calls.", ToolEvents: events}, nil
}

// completeTraced wraps one model call with a span and a latency metric, both
// no-ops when the server has no tracer/metrics installed.
func (s *Server) completeTraced(ctx context.Context, history []llm.Message, tools []llm.ToolSpec) (llm.CompletionResponse, error) {
	start := time.Now()
	span := trace.SpanFromContext(ctx)
	if s.tracer != nil {
		ctx, span = s.tracer.TraceLLMRequest(ctx, s.cfg.Provider, s.cfg.Model)
		defer span.End()
	}

	resp, err := s.llmClt.Complete(ctx, llm.CompletionRequest{
		Model:    s.cfg.Model,
		System:   s.cfg.SystemPrompt,
		Messages: history,
		Tools:    tools,
	})
	status := "success"
	if err != nil {
		status = "error"
		if s.tracer != nil {
			s.tracer.RecordError(span, err)
		}
	}
	s.metrics.RecordLLMRequest(s.cfg.Provider, s.cfg.Model, status, time.Since(start).Seconds(), 0, 0)
	return resp, err
}

// executeToolTraced wraps one tool dispatch call with a span; dispatch.Registry
// already records its own execution metric.
func (s *Server) executeToolTraced(ctx context.Context, name string, args map[string]any, caller dispatch.Caller) dispatch.Result {
	span := trace.SpanFromContext(ctx)
	if s.tracer != nil {
		ctx, span = s.tracer.TraceToolExecution(ctx, name)
		defer span.End()
	}
	result := s.registry.ExecuteTool(ctx, name, args, caller)
	if result.IsError && s.tracer != nil {
		s.tracer.RecordError(span, fmt.Errorf("tool %s: %s", name, result.Content))
	}
	return result
}

func toolEventFromResult(name string, args map[string]any, result dispatch.Result) ToolEvent {
	return ToolEvent{
		Name:    name,
		Args:    args,
		Result:  result.Content,
		Blocked: result.Blocked,
		Reason:  result.Reason,
		Tier:    string(result.Tier),
	}
}

func (s *Server) persistAndMaybeSummarize(ctx context.Context, sessionID string) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return
	}
	if s.store != nil {
		if err := s.store.SaveConversation(ctx, sess); err != nil {
			s.logger.Warn("save conversation failed", "error", err)
		}
	}
	if s.summ != nil && s.summ.ShouldSummarize(sessionID) {
		go func() {
			if err := s.summ.Summarize(context.Background(), sessionID); err != nil {
				s.logger.Warn("summarize failed", "session", sessionID, "error", err)
			}
		}()
	}
}

func (s *Server) toolSpecs() []llm.ToolSpec {
	infos := s.registry.ListTools()
	specs := make([]llm.ToolSpec, 0, len(infos))
	for _, info := range infos {
		specs = append(specs, llm.ToolSpec{Name: info.Name, Description: info.Description, Schema: info.Schema})
	}
	return specs
}

func toLLMMessages(messages []models.Message) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		role := llm.Role(m.Role)
		switch m.Role {
		case models.RoleSystem:
			role = llm.RoleUser // folded in as prefix context, never a bare system turn mid-history
		}
		msg := llm.Message{Role: role, Content: m.Content}
		for _, tc := range m.ToolCalls {
			var args map[string]any
			_ = json.Unmarshal(tc.Input, &args)
			msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{ID: tc.ID, Name: tc.Name, Args: args})
		}
		out = append(out, msg)
	}
	return out
}

// cleanSessionID guards against an empty/whitespace session id reaching the
// session store, where it would silently alias every anonymous caller onto
// one shared conversation: such an id is replaced with a fresh random one.
func cleanSessionID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return uuid.NewString()
	}
	return id
}
