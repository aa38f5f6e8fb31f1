package audio

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentenceSplitter_SplitsOnTerminalPunctuation(t *testing.T) {
	var s SentenceSplitter
	sentences := s.Feed("Hello there. How are")
	require.Len(t, sentences, 1)
	assert.Equal(t, "Hello there.", sentences[0])

	sentences = s.Feed(" you? Fine!")
	require.Len(t, sentences, 2)
	assert.Equal(t, "you?", sentences[0])
	assert.Equal(t, "Fine!", sentences[1])
}

func TestSentenceSplitter_FlushReturnsTrailingIncompleteText(t *testing.T) {
	var s SentenceSplitter
	s.Feed("no terminator yet")
	out := s.Flush()
	require.Len(t, out, 1)
	assert.Equal(t, "no terminator yet", out[0])

	assert.Empty(t, s.Flush(), "flushing an empty buffer yields nothing")
}

type recordingSubscriber struct {
	mu     sync.Mutex
	chunks []Chunk
	failed []int
	done   int
	got    bool
}

func (r *recordingSubscriber) OnChunk(ctx context.Context, chunk Chunk) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, chunk)
}

func (r *recordingSubscriber) OnSentenceFailed(ctx context.Context, index int, text string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, index)
}

func (r *recordingSubscriber) OnDone(ctx context.Context, totalChunks int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = totalChunks
	r.got = true
}

func TestDrain_EmitsChunksInOrderThenDone(t *testing.T) {
	primary := &fakeEngine{}
	router := NewRouter(primary, nil, RouterConfig{}, nil)
	sub := &recordingSubscriber{}
	drain := NewDrain(router, sub, nil)

	queue := make(chan string, 3)
	queue <- "first."
	queue <- "second."
	queue <- "third."
	close(queue)

	drain.Run(context.Background(), queue)

	require.Len(t, sub.chunks, 3)
	assert.Equal(t, 0, sub.chunks[0].Index)
	assert.Equal(t, 1, sub.chunks[1].Index)
	assert.Equal(t, 2, sub.chunks[2].Index)
	assert.True(t, sub.got)
	assert.Equal(t, 3, sub.done)
}

func TestDrain_ContinuesPastAFailedSentence(t *testing.T) {
	failOnce := &sometimesFailEngine{failIndexes: map[int]bool{0: true}}
	fallback := &sometimesFailEngine{failIndexes: map[int]bool{0: true}}
	router := NewRouter(failOnce, fallback, RouterConfig{}, nil)
	sub := &recordingSubscriber{}
	drain := NewDrain(router, sub, nil)

	queue := make(chan string, 2)
	queue <- "bad."
	queue <- "good."
	close(queue)

	drain.Run(context.Background(), queue)

	assert.Equal(t, []int{0}, sub.failed)
	require.Len(t, sub.chunks, 1)
	assert.Equal(t, 1, sub.chunks[0].Index)
}

type sometimesFailEngine struct {
	calls       int
	failIndexes map[int]bool
}

func (s *sometimesFailEngine) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	idx := s.calls
	s.calls++
	if s.failIndexes[idx] {
		return nil, "", errors.New("synthesis failed")
	}
	return []byte(text), "audio/mpeg", nil
}
