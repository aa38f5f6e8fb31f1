package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/homelab/jarvis/pkg/models"
)

const entitiesMarker = "---ENTITIES---"

// SummaryProvider generates a non-streaming narrative summary from a
// message slice. Implementations call an LLM's non-streaming completion
// endpoint directly — summarization never contends with the streaming
// response path for the same provider connection.
type SummaryProvider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// SummarizeConfig configures when and how much of a session gets folded
// into its narrative summary.
type SummarizeConfig struct {
	Threshold  int // total message count above which summarization triggers
	KeepRecent int // most-recent messages left out of the summarized batch
}

// ApplyDefaults fills in the thresholds observed to work well in practice.
func (c *SummarizeConfig) ApplyDefaults() {
	if c.Threshold == 0 {
		c.Threshold = 25
	}
	if c.KeepRecent == 0 {
		c.KeepRecent = 10
	}
}

// Summarizer drives background narrative summarization for a Store.
type Summarizer struct {
	store    *Store
	provider SummaryProvider
	cfg      SummarizeConfig
	window   ContextWindow
}

// NewSummarizer constructs a Summarizer bound to store.
func NewSummarizer(store *Store, provider SummaryProvider, cfg SummarizeConfig, window ContextWindow) *Summarizer {
	cfg.ApplyDefaults()
	window.ApplyDefaults()
	return &Summarizer{store: store, provider: provider, cfg: cfg, window: window}
}

// ShouldSummarize reports whether id has crossed the message-count
// threshold and isn't already being summarized.
func (s *Summarizer) ShouldSummarize(id string) bool {
	sess, err := s.store.Get(id)
	if err != nil {
		return false
	}
	return sess.TotalMessageCount > s.cfg.Threshold && !sess.Summarizing
}

// Summarize runs the full summarize-and-merge cycle for id. It is meant to
// be invoked from the "LLM stream complete" callback, never from the
// user-message-received path, so it never contends with response
// generation for LLM concurrency. Any failure is logged by the caller (the
// error is returned) and leaves session state unchanged except for the
// summarizing flag, which is always cleared.
func (s *Summarizer) Summarize(ctx context.Context, id string) error {
	s.store.SetSummarizing(id, true)
	defer s.store.SetSummarizing(id, false)

	sess, err := s.store.Get(id)
	if err != nil {
		return err
	}

	keep := s.cfg.KeepRecent
	if keep > len(sess.Messages) {
		keep = len(sess.Messages)
	}
	older := sess.Messages[:len(sess.Messages)-keep]
	if len(older) == 0 {
		return nil
	}

	prompt := buildSummarizationPrompt(sess, older)
	raw, err := s.provider.Complete(ctx, prompt)
	if err != nil {
		return fmt.Errorf("session: summarize: %w", err)
	}

	narrative, entities := parseSummaryResponse(raw)
	if narrative == "" {
		return fmt.Errorf("session: summarize: empty narrative in response")
	}

	keepFrom := len(sess.Messages) - keep
	recentText := messagesText(sess.Messages[keepFrom:])
	cachedTokens := EstimateTokens(narrative) + EstimateTokens(recentText)

	s.store.ApplySummary(id, narrative, entities, keepFrom, cachedTokens)
	return nil
}

func buildSummarizationPrompt(sess models.Session, older []models.Message) string {
	var sb strings.Builder
	sb.WriteString("Summarize the conversation below in at most 150 words. ")
	sb.WriteString("Never drop identifiers: VM ids, IP addresses, node names, file paths, or error codes ")
	sb.WriteString("must all be preserved somewhere in your output.\n\n")
	if sess.Summary != nil {
		sb.WriteString("Existing summary to extend, not replace:\n")
		sb.WriteString(*sess.Summary)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Conversation:\n")
	sb.WriteString(messagesText(older))
	sb.WriteString("\n\nRespond in exactly this format: a narrative paragraph, then a line containing only ")
	sb.WriteString(entitiesMarker)
	sb.WriteString(", then one `key: description` line per entity worth preserving.\n")
	return sb.String()
}

func messagesText(messages []models.Message) string {
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(fmt.Sprintf("[%s] %s\n", m.Role, m.Content))
	}
	return sb.String()
}

// parseSummaryResponse splits the LLM's output at the entities marker: text
// before becomes the narrative, lines after become entity key/description
// pairs. Malformed entity lines are skipped rather than failing the whole
// summary.
func parseSummaryResponse(raw string) (string, map[string]models.Entity) {
	parts := strings.SplitN(raw, entitiesMarker, 2)
	narrative := strings.TrimSpace(parts[0])

	entities := make(map[string]models.Entity)
	if len(parts) < 2 {
		return narrative, entities
	}
	for _, line := range strings.Split(parts[1], "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kv := strings.SplitN(line, ":", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		desc := strings.TrimSpace(kv[1])
		if key == "" {
			continue
		}
		entities[key] = models.Entity{Key: key, Description: desc}
	}
	return narrative, entities
}
