package session

import (
	"sort"

	"github.com/homelab/jarvis/pkg/models"
)

// Tokenizer estimates the token count of a string. An accurate tokenizer
// should be supplied where available; EstimateTokens below is the
// char-count fallback used when none is.
type Tokenizer interface {
	CountTokens(text string) int
}

// perMessageOverhead accounts for the role/name framing tokens a chat
// completion API charges beyond the raw content length.
const perMessageOverhead = 4

// EstimateTokens is the fallback char-based estimate (~4 chars/token) used
// when no accurate tokenizer is wired in.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// ContextWindow configures context assembly. ContextWindowTokens is
// intentionally conservative (8192) rather than the LLM's maximum
// advertised window, leaving headroom for provider-side accounting
// differences.
type ContextWindow struct {
	ContextWindowTokens int
	ResponseReserve     int
	RecentRatio         float64
	Tokenizer           Tokenizer
}

// ApplyDefaults fills in the conservative defaults.
func (c *ContextWindow) ApplyDefaults() {
	if c.ContextWindowTokens == 0 {
		c.ContextWindowTokens = 8192
	}
	if c.ResponseReserve == 0 {
		c.ResponseReserve = 1024
	}
	if c.RecentRatio == 0 {
		c.RecentRatio = 0.7
	}
}

func (c ContextWindow) countTokens(text string) int {
	if c.Tokenizer != nil {
		return c.Tokenizer.CountTokens(text)
	}
	return EstimateTokens(text)
}

// BuildContextMessages assembles the message list to send the LLM: the
// available budget is the context window minus the system prompt, memory
// context, and response reserve; a standing narrative summary and the
// preserved-entity block are prepended first (since they must never be
// dropped), then recent messages are walked newest-to-oldest until the
// recent-message sub-budget (RecentRatio of what's available) is spent.
func BuildContextMessages(sess models.Session, cfg ContextWindow, systemPromptTokens, memoryContextTokens int) []models.Message {
	cfg.ApplyDefaults()

	available := cfg.ContextWindowTokens - systemPromptTokens - memoryContextTokens - cfg.ResponseReserve
	if available < 0 {
		available = 0
	}

	var prefix []models.Message

	if sess.Summary != nil && *sess.Summary != "" {
		content := "<conversation_summary>\n" + *sess.Summary + "\n</conversation_summary>"
		prefix = append(prefix, models.Message{Role: models.RoleSystem, Content: content})
		available -= cfg.countTokens(content)
	}

	if len(sess.Entities) > 0 {
		content := "<preserved_context>\n" + renderEntities(sess.Entities) + "\n</preserved_context>"
		prefix = append(prefix, models.Message{Role: models.RoleSystem, Content: content})
		available -= cfg.countTokens(content)
	}

	if available < 0 {
		available = 0
	}
	recentBudget := float64(available) * cfg.RecentRatio

	var recent []models.Message
	var spent float64
	for i := len(sess.Messages) - 1; i >= 0; i-- {
		msg := sess.Messages[i]
		cost := float64(cfg.countTokens(msg.Content) + perMessageOverhead)
		if spent+cost >= recentBudget && len(recent) > 0 {
			break
		}
		recent = append(recent, msg)
		spent += cost
	}
	// recent was built newest-to-oldest; restore chronological order.
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}

	return append(prefix, recent...)
}

func renderEntities(entities map[string]models.Entity) string {
	keys := make([]string, 0, len(entities))
	for k := range entities {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := ""
	for _, key := range keys {
		out += key + ": " + entities[key].Description + "\n"
	}
	return out
}
