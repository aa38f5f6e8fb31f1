package audio

import (
	"context"
	"log/slog"
	"strings"
)

// terminalPunctuation are the characters a SentenceSplitter treats as
// sentence boundaries.
const terminalPunctuation = ".!?"

// SentenceSplitter accumulates streamed token text and yields complete
// sentences as terminal punctuation is crossed. A partial sentence stays in
// its internal buffer across Feed calls until it is completed or flushed.
type SentenceSplitter struct {
	buf strings.Builder
}

// Feed appends token to the buffer and returns any newly-completed
// sentences, in order. Incomplete trailing text remains buffered.
func (s *SentenceSplitter) Feed(token string) []string {
	s.buf.WriteString(token)
	return s.drainComplete()
}

// Flush returns the trailing buffered text as a final sentence, if any
// non-whitespace remains. Call once when the LLM stream signals completion.
func (s *SentenceSplitter) Flush() []string {
	remaining := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	if remaining == "" {
		return nil
	}
	return []string{remaining}
}

func (s *SentenceSplitter) drainComplete() []string {
	text := s.buf.String()
	var sentences []string
	start := 0
	for i, r := range text {
		if strings.ContainsRune(terminalPunctuation, r) {
			sentence := strings.TrimSpace(text[start : i+1])
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			start = i + 1
		}
	}
	s.buf.Reset()
	s.buf.WriteString(text[start:])
	return sentences
}

// Subscriber receives ordered chunk deliveries and a final done signal for
// one response's sentence drain.
type Subscriber interface {
	OnChunk(ctx context.Context, chunk Chunk)
	OnSentenceFailed(ctx context.Context, index int, text string, err error)
	OnDone(ctx context.Context, totalChunks int)
}

// Drain runs one response's sentence queue through a Router strictly
// sequentially, so chunk index order is never interleaved. A sentence the
// router cannot synthesize (both engines failed) is reported via
// OnSentenceFailed and skipped; the drain continues with the next sentence
// rather than aborting the whole response.
type Drain struct {
	router *Router
	sub    Subscriber
	logger *slog.Logger
}

// NewDrain constructs a Drain bound to router and sub.
func NewDrain(router *Router, sub Subscriber, logger *slog.Logger) *Drain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Drain{router: router, sub: sub, logger: logger}
}

// Run consumes sentences from queue in order until it closes or ctx is
// cancelled. On cancellation the drain stops producing further chunks;
// chunks already emitted are not recalled.
func (d *Drain) Run(ctx context.Context, queue <-chan string) {
	index := 0
	for {
		select {
		case <-ctx.Done():
			return
		case text, ok := <-queue:
			if !ok {
				d.sub.OnDone(ctx, index)
				return
			}
			chunk, err := d.router.Synthesize(ctx, index, text)
			if err != nil {
				d.logger.Warn("sentence synthesis failed", "index", index, "error", err)
				d.sub.OnSentenceFailed(ctx, index, text, err)
				index++
				continue
			}
			d.sub.OnChunk(ctx, chunk)
			index++
		}
	}
}
