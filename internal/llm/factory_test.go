package llm

import (
	"testing"

	"github.com/homelab/jarvis/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromConfig_DefaultsToAnthropic(t *testing.T) {
	client, err := NewFromConfig(config.LLMConfig{APIKey: "test-key"})
	require.NoError(t, err)
	_, ok := client.(*AnthropicClient)
	assert.True(t, ok)
}

func TestNewFromConfig_SelectsOpenAI(t *testing.T) {
	client, err := NewFromConfig(config.LLMConfig{Provider: "openai", APIKey: "test-key"})
	require.NoError(t, err)
	_, ok := client.(*OpenAIClient)
	assert.True(t, ok)
}

func TestNewFromConfig_SelectsBedrock(t *testing.T) {
	client, err := NewFromConfig(config.LLMConfig{Provider: "bedrock", BedrockRegion: "us-west-2"})
	require.NoError(t, err)
	_, ok := client.(*BedrockClient)
	assert.True(t, ok)
}

func TestNewFromConfig_GoogleRequiresAPIKey(t *testing.T) {
	_, err := NewFromConfig(config.LLMConfig{Provider: "google"})
	assert.Error(t, err)
}

func TestNewFromConfig_SelectsGoogle(t *testing.T) {
	client, err := NewFromConfig(config.LLMConfig{Provider: "google", APIKey: "test-key"})
	require.NoError(t, err)
	_, ok := client.(*GoogleClient)
	assert.True(t, ok)
}

func TestNewFromConfig_UnsupportedProviderErrors(t *testing.T) {
	_, err := NewFromConfig(config.LLMConfig{Provider: "cohere"})
	assert.Error(t, err)
}
