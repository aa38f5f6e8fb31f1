package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGoogleModel = "gemini-2.0-flash"

// GoogleConfig configures a GoogleClient.
type GoogleConfig struct {
	APIKey       string
	DefaultModel string
	MaxRetries   int
}

// GoogleClient implements Client over Google's Gemini API via the Gen AI SDK.
type GoogleClient struct {
	client       *genai.Client
	defaultModel string
	maxRetries   int
}

// NewGoogleClient constructs a GoogleClient.
func NewGoogleClient(cfg GoogleConfig) (*GoogleClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: google api key is required")
	}
	model := cfg.DefaultModel
	if model == "" {
		model = defaultGoogleModel
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: google: create client: %w", err)
	}
	return &GoogleClient{client: client, defaultModel: model, maxRetries: retries}, nil
}

func (c *GoogleClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return retryingComplete(ctx, c.maxRetries, func(ctx context.Context) (CompletionResponse, error) {
		return c.completeOnce(ctx, req)
	})
}

func (c *GoogleClient) completeOnce(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, convertMessagesToGemini(req.Messages), buildGeminiConfig(req))
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("llm: google generate content: %w", err)
	}
	return convertGeminiResponse(resp), nil
}

func convertMessagesToGemini(messages []Message) []*genai.Content {
	result := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		content := &genai.Content{}
		switch msg.Role {
		case RoleUser, RoleTool:
			content.Role = genai.RoleUser
		case RoleAssistant:
			content.Role = genai.RoleModel
		default:
			continue
		}

		if msg.Content != "" {
			content.Parts = append(content.Parts, &genai.Part{Text: msg.Content})
		}
		for _, tc := range msg.ToolCalls {
			content.Parts = append(content.Parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{Name: tc.Name, Args: tc.Args},
			})
		}
		if msg.ToolResult != nil {
			content.Parts = append(content.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					Name:     msg.ToolResult.ToolCallID,
					Response: map[string]any{"result": msg.ToolResult.Content, "error": msg.ToolResult.IsError},
				},
			})
		}
		if len(content.Parts) > 0 {
			result = append(result, content)
		}
	}
	return result
}

func buildGeminiConfig(req CompletionRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(req.Tools) > 0 {
		cfg.Tools = convertToolsToGemini(req.Tools)
	}
	return cfg
}

func convertToolsToGemini(tools []ToolSpec) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  toGeminiSchema(t.Schema),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// toGeminiSchema converts a JSON-Schema-shaped map into Gemini's typed
// Schema, recursively for nested properties/items.
func toGeminiSchema(schemaMap map[string]any) *genai.Schema {
	if schemaMap == nil {
		return nil
	}
	schema := &genai.Schema{}

	if t, ok := schemaMap["type"].(string); ok {
		schema.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schemaMap["description"].(string); ok {
		schema.Description = desc
	}
	if props, ok := schemaMap["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				schema.Properties[name] = toGeminiSchema(propMap)
			}
		}
	}
	if required, ok := schemaMap["required"].([]string); ok {
		schema.Required = required
	}
	if items, ok := schemaMap["items"].(map[string]any); ok {
		schema.Items = toGeminiSchema(items)
	}
	return schema
}

func convertGeminiResponse(resp *genai.GenerateContentResponse) CompletionResponse {
	out := CompletionResponse{}
	if len(resp.Candidates) == 0 {
		return out
	}
	cand := resp.Candidates[0]
	out.StopReason = string(cand.FinishReason)
	if cand.Content == nil {
		return out
	}
	for _, part := range cand.Content.Parts {
		if part.Text != "" {
			out.Text += part.Text
		}
		if part.FunctionCall != nil {
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:   part.FunctionCall.Name,
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		}
	}
	return out
}
