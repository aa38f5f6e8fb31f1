package llm

import (
	"fmt"

	"github.com/homelab/jarvis/internal/config"
)

// NewFromConfig constructs the configured provider's Client.
func NewFromConfig(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "", "anthropic":
		return NewAnthropicClient(AnthropicConfig{APIKey: cfg.APIKey, DefaultModel: cfg.Model})
	case "openai":
		return NewOpenAIClient(OpenAIConfig{APIKey: cfg.APIKey, DefaultModel: cfg.Model})
	case "bedrock":
		return NewBedrockClient(BedrockConfig{
			Region:          cfg.BedrockRegion,
			AccessKeyID:     cfg.BedrockAccessKeyID,
			SecretAccessKey: cfg.BedrockSecretAccessKey,
			DefaultModel:    cfg.Model,
		})
	case "google":
		return NewGoogleClient(GoogleConfig{APIKey: cfg.APIKey, DefaultModel: cfg.Model})
	default:
		return nil, fmt.Errorf("llm: unsupported provider %q", cfg.Provider)
	}
}
