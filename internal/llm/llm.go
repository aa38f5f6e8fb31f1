// Package llm provides a provider-agnostic chat completion client over
// Anthropic's Messages API, OpenAI's Chat Completions API, AWS Bedrock's
// Converse API and Google's Gemini API, the model backends the gateway's
// chat/voice paths and the session summarizer call into.
package llm

import (
	"context"
	"fmt"

	"github.com/homelab/jarvis/internal/backoff"
)

// Role mirrors the four roles a completion request passes across the wire.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolResult is a prior tool call's outcome fed back into the conversation.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// Message is one turn of a completion request, optionally carrying the
// tool calls an assistant turn produced or the result a tool turn answers.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolResult *ToolResult
}

// ToolSpec advertises one callable tool's name, description and JSON
// schema to the model.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ToolCall is a model-proposed invocation surfaced in a completion response.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// CompletionRequest is a single turn of the chat loop.
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []Message
	Tools     []ToolSpec
	MaxTokens int
}

// CompletionResponse is the model's reply: free text, proposed tool calls,
// or both (a model may narrate before calling a tool).
type CompletionResponse struct {
	Text       string
	ToolCalls  []ToolCall
	StopReason string
}

// Client completes one non-streaming chat turn against a model provider.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// SummaryAdapter satisfies internal/session.SummaryProvider by wrapping a
// Client behind the single-prompt, single-string shape the summarizer
// calls — summarization never needs tool calls or multi-turn history.
type SummaryAdapter struct {
	Client Client
	Model  string
	System string
}

func (a SummaryAdapter) Complete(ctx context.Context, prompt string) (string, error) {
	if a.Client == nil {
		return "", fmt.Errorf("llm: summary adapter has no client configured")
	}
	resp, err := a.Client.Complete(ctx, CompletionRequest{
		Model:     a.Model,
		System:    a.System,
		Messages:  []Message{{Role: RoleUser, Content: prompt}},
		MaxTokens: 1024,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// retryingComplete wraps a single provider call with the bounded retry this
// plane applies to every outbound model call, so a transient 5xx/timeout
// doesn't fail an entire chat turn.
func retryingComplete(ctx context.Context, maxAttempts int, call func(ctx context.Context) (CompletionResponse, error)) (CompletionResponse, error) {
	result, err := backoff.RetryWithBackoff(ctx, backoff.DefaultPolicy(), maxAttempts, func(int) (CompletionResponse, error) {
		return call(ctx)
	})
	if err != nil {
		return CompletionResponse{}, err
	}
	return result.Value, nil
}
