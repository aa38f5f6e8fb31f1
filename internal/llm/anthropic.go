package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-sonnet-4-20250514"

// AnthropicConfig configures an AnthropicClient.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxRetries   int
}

// AnthropicClient implements Client over Anthropic's Messages API.
type AnthropicClient struct {
	client       anthropic.Client
	defaultModel string
	maxRetries   int
}

// NewAnthropicClient constructs an AnthropicClient.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: anthropic api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.DefaultModel
	if model == "" {
		model = defaultAnthropicModel
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	return &AnthropicClient{
		client:       anthropic.NewClient(opts...),
		defaultModel: model,
		maxRetries:   retries,
	}, nil
}

func (c *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return retryingComplete(ctx, c.maxRetries, func(ctx context.Context) (CompletionResponse, error) {
		return c.completeOnce(ctx, req)
	})
}

func (c *AnthropicClient) completeOnce(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	messages, err := convertMessagesToAnthropic(req.Messages)
	if err != nil {
		return CompletionResponse{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = convertToolsToAnthropic(req.Tools)
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("llm: anthropic completion: %w", err)
	}
	return convertAnthropicResponse(message), nil
}

func convertMessagesToAnthropic(messages []Message) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Args, tc.Name))
			}
			result = append(result, anthropic.NewAssistantMessage(blocks...))
		case RoleTool:
			if msg.ToolResult == nil {
				continue
			}
			result = append(result, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolResult.ToolCallID, msg.ToolResult.Content, msg.ToolResult.IsError),
			))
		default:
			return nil, fmt.Errorf("llm: anthropic does not accept role %q mid-conversation", msg.Role)
		}
	}
	return result, nil
}

func convertToolsToAnthropic(tools []ToolSpec) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		result = append(result, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: t.Schema,
				},
			},
		})
	}
	return result
}

func convertAnthropicResponse(message *anthropic.Message) CompletionResponse {
	resp := CompletionResponse{StopReason: string(message.StopReason)}
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Text += variant.Text
		case anthropic.ToolUseBlock:
			var args map[string]any
			if err := unmarshalInput(variant.Input, &args); err == nil {
				resp.ToolCalls = append(resp.ToolCalls, ToolCall{
					ID:   variant.ID,
					Name: variant.Name,
					Args: args,
				})
			}
		}
	}
	return resp
}
