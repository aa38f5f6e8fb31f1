package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

const defaultBedrockModel = "anthropic.claude-3-sonnet-20240229-v1:0"

// BedrockConfig configures a BedrockClient.
type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	DefaultModel    string
	MaxRetries      int
}

// BedrockClient implements Client over AWS Bedrock's Converse API, giving
// the control plane access to Claude, Titan, Llama and Mistral models
// running behind an AWS account instead of a direct vendor key.
type BedrockClient struct {
	client       *bedrockruntime.Client
	defaultModel string
	maxRetries   int
}

// NewBedrockClient constructs a BedrockClient, resolving AWS credentials
// from the static triple when given or the default provider chain (env,
// shared config, IAM role) otherwise.
func NewBedrockClient(cfg BedrockConfig) (*BedrockClient, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	model := cfg.DefaultModel
	if model == "" {
		model = defaultBedrockModel
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken,
		)))
	}
	awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("llm: bedrock: load aws config: %w", err)
	}

	return &BedrockClient{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: model,
		maxRetries:   retries,
	}, nil
}

func (c *BedrockClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return retryingComplete(ctx, c.maxRetries, func(ctx context.Context) (CompletionResponse, error) {
		return c.completeOnce(ctx, req)
	})
}

func (c *BedrockClient) completeOnce(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	converseReq := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(model),
		Messages: convertMessagesToBedrock(req.Messages),
	}
	if req.System != "" {
		converseReq.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.System},
		}
	}
	if req.MaxTokens > 0 {
		converseReq.InferenceConfig = &types.InferenceConfiguration{MaxTokens: aws.Int32(int32(req.MaxTokens))}
	}
	if len(req.Tools) > 0 {
		converseReq.ToolConfig = convertToolsToBedrock(req.Tools)
	}

	out, err := c.client.Converse(ctx, converseReq)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("llm: bedrock converse: %w", err)
	}
	return convertBedrockResponse(out), nil
}

func convertMessagesToBedrock(messages []Message) []types.Message {
	result := make([]types.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			result = append(result, types.Message{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: msg.Content}},
			})
		case RoleAssistant:
			blocks := make([]types.ContentBlock, 0, 1+len(msg.ToolCalls))
			if msg.Content != "" {
				blocks = append(blocks, &types.ContentBlockMemberText{Value: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, &types.ContentBlockMemberToolUse{
					Value: types.ToolUseBlock{
						ToolUseId: aws.String(tc.ID),
						Name:      aws.String(tc.Name),
						Input:     document.NewLazyDocument(tc.Args),
					},
				})
			}
			result = append(result, types.Message{Role: types.ConversationRoleAssistant, Content: blocks})
		case RoleTool:
			if msg.ToolResult == nil {
				continue
			}
			result = append(result, types.Message{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberToolResult{
					Value: types.ToolResultBlock{
						ToolUseId: aws.String(msg.ToolResult.ToolCallID),
						Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: msg.ToolResult.Content}},
					},
				}},
			})
		}
	}
	return result
}

func convertToolsToBedrock(tools []ToolSpec) *types.ToolConfiguration {
	specs := make([]types.Tool, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(t.Name),
				Description: aws.String(t.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(t.Schema)},
			},
		})
	}
	return &types.ToolConfiguration{Tools: specs}
}

func convertBedrockResponse(out *bedrockruntime.ConverseOutput) CompletionResponse {
	resp := CompletionResponse{StopReason: string(out.StopReason)}
	msgOut, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return resp
	}
	for _, block := range msgOut.Value.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			resp.Text += b.Value
		case *types.ContentBlockMemberToolUse:
			var args map[string]any
			if b.Value.Input != nil {
				raw, err := b.Value.Input.MarshalSmithyDocument()
				if err == nil {
					_ = json.Unmarshal(raw, &args)
				}
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:   aws.ToString(b.Value.ToolUseId),
				Name: aws.ToString(b.Value.Name),
				Args: args,
			})
		}
	}
	return resp
}
