package llm

import (
	"context"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeOpenAIChoice() openai.ChatCompletionChoice {
	return openai.ChatCompletionChoice{
		FinishReason: openai.FinishReasonToolCalls,
		Message: openai.ChatCompletionMessage{
			Content: "hello",
			ToolCalls: []openai.ToolCall{
				{
					ID:   "call-2",
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      "get_presence",
						Arguments: "{}",
					},
				},
			},
		},
	}
}

type fakeClient struct {
	resp CompletionResponse
	err  error
	req  CompletionRequest
}

func (f *fakeClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

func TestSummaryAdapter_WrapsPromptAsSingleUserMessage(t *testing.T) {
	fake := &fakeClient{resp: CompletionResponse{Text: "a tidy summary"}}
	adapter := SummaryAdapter{Client: fake, Model: "test-model", System: "summarize tersely"}

	out, err := adapter.Complete(context.Background(), "conversation so far...")
	require.NoError(t, err)
	assert.Equal(t, "a tidy summary", out)
	assert.Equal(t, "test-model", fake.req.Model)
	assert.Equal(t, "summarize tersely", fake.req.System)
	require.Len(t, fake.req.Messages, 1)
	assert.Equal(t, RoleUser, fake.req.Messages[0].Role)
	assert.Equal(t, "conversation so far...", fake.req.Messages[0].Content)
}

func TestSummaryAdapter_NilClientErrors(t *testing.T) {
	adapter := SummaryAdapter{}
	_, err := adapter.Complete(context.Background(), "x")
	assert.Error(t, err)
}

func TestConvertMessagesToOpenAI_IncludesSystemAndToolRoundTrip(t *testing.T) {
	messages := []Message{
		{Role: RoleUser, Content: "turn on the kitchen light"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call-1", Name: "ha_call_service", Args: map[string]any{"domain": "light"}}}},
		{Role: RoleTool, ToolResult: &ToolResult{ToolCallID: "call-1", Content: "ok"}},
	}
	out := convertMessagesToOpenAI(messages, "be terse")
	require.Len(t, out, 4)
	assert.Equal(t, "system", out[0].Role)
	assert.Equal(t, "user", out[1].Role)
	assert.Equal(t, "assistant", out[2].Role)
	require.Len(t, out[2].ToolCalls, 1)
	assert.Equal(t, "ha_call_service", out[2].ToolCalls[0].Function.Name)
	assert.Equal(t, "tool", out[3].Role)
	assert.Equal(t, "call-1", out[3].ToolCallID)
}

func TestConvertOpenAIResponse_DecodesToolCallArguments(t *testing.T) {
	resp := convertOpenAIResponse(fakeOpenAIChoice())
	assert.Equal(t, "hello", resp.Text)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "get_presence", resp.ToolCalls[0].Name)
	assert.Equal(t, map[string]any{}, resp.ToolCalls[0].Args)
}
