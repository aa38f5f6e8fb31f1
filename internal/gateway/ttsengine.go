package gateway

import (
	"context"
	"fmt"
	"os"

	"github.com/homelab/jarvis/internal/audio"
	"github.com/homelab/jarvis/internal/tts"
)

// ttsEngineAdapter bridges internal/tts's file-producing TextToSpeech call
// into the audio.Engine shape the streaming pipeline's Router expects:
// synthesized bytes in memory, not a path on disk. Each call synthesizes
// to a temp file, reads it back, and removes it — voice replies are short
// enough that this round trip is not a bottleneck.
type ttsEngineAdapter struct {
	cfg     *tts.Config
	channel string
}

// NewTTSEngine constructs the audio.Engine adapter over internal/tts, for
// callers (e.g. cmd/jarvis) building the per-response audio.Router factory
// passed to Deps.NewTTSRouter.
func NewTTSEngine(cfg *tts.Config, channel string) audio.Engine {
	return &ttsEngineAdapter{cfg: cfg, channel: channel}
}

func (e *ttsEngineAdapter) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	result, err := tts.TextToSpeech(ctx, e.cfg, text, e.channel)
	if err != nil {
		return nil, "", fmt.Errorf("gateway: tts: %w", err)
	}
	if !result.Success || result.AudioPath == "" {
		return nil, "", fmt.Errorf("gateway: tts: %s", result.Error)
	}
	defer func() { _ = tts.Cleanup(result) }()

	data, err := os.ReadFile(result.AudioPath)
	if err != nil {
		return nil, "", fmt.Errorf("gateway: tts: read synthesized audio: %w", err)
	}
	return data, contentTypeForFormat(result.OutputFormat), nil
}

func contentTypeForFormat(format string) string {
	switch format {
	case "opus":
		return "audio/opus"
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
