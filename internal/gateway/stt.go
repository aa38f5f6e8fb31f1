package gateway

import (
	"bytes"
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Transcriber converts a captured utterance's WAV audio into text. The
// voice websocket calls this once per utterance before handing the
// transcript into the ordinary chat loop.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// WhisperTranscriber implements Transcriber over OpenAI's Whisper
// transcription endpoint. It is a separate client from the chat
// completion provider — a deployment can run Anthropic for chat and still
// use OpenAI purely for speech-to-text, since Anthropic's API has no
// transcription endpoint.
type WhisperTranscriber struct {
	client *openai.Client
	model  string
}

// NewWhisperTranscriber constructs a WhisperTranscriber. An empty model
// defaults to whisper-1.
func NewWhisperTranscriber(apiKey, model string) (*WhisperTranscriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gateway: whisper api key is required")
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperTranscriber{client: openai.NewClient(apiKey), model: model}, nil
}

func (t *WhisperTranscriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	req := openai.AudioRequest{
		Model:    t.model,
		FilePath: "utterance.wav",
		Reader:   bytes.NewReader(wav),
		Format:   openai.AudioResponseFormatJSON,
	}
	resp, err := t.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", fmt.Errorf("gateway: transcription: %w", err)
	}
	return resp.Text, nil
}
