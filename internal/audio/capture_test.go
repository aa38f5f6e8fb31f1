package audio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedVAD struct {
	speech map[int]bool
	calls  int
}

func (v *scriptedVAD) IsSpeech(frame Frame) bool {
	idx := v.calls
	v.calls++
	return v.speech[idx]
}

type triggerOnWord struct {
	triggerAt int
	calls     int
}

func (w *triggerOnWord) Detect(frame Frame) bool {
	idx := w.calls
	w.calls++
	return idx == w.triggerAt
}

type recordingSink struct {
	utterances [][]byte
	rate       int
}

func (s *recordingSink) OnUtterance(ctx context.Context, wav []byte, sampleRate int) {
	s.utterances = append(s.utterances, wav)
	s.rate = sampleRate
}

func frameAt(n int) Frame { return Frame{Samples: []int16{int16(n)}} }

func TestCaptureMachine_WakeWordDrainsPreRollIntoUtterance(t *testing.T) {
	vad := &scriptedVAD{speech: map[int]bool{2: true, 3: true}}
	// wake.Detect is only invoked on speech frames, so its internal call
	// counter starts at 0 on the first speech frame (frame index 2).
	wake := &triggerOnWord{triggerAt: 0}
	sink := &recordingSink{}
	current := time.Unix(0, 0)
	now := func() time.Time { return current }

	m := NewCaptureMachine(CaptureConfig{PreRollFrames: 4, TrailingSilence: 50 * time.Millisecond}, vad, wake, sink, nil, now)

	for i := 0; i < 2; i++ {
		m.ProcessFrame(context.Background(), frameAt(i))
	}
	assert.Equal(t, StateIdle, m.State())

	// Frame 2 is speech and triggers the wake word -> CAPTURING.
	m.ProcessFrame(context.Background(), frameAt(2))
	assert.Equal(t, StateCapturing, m.State())

	m.ProcessFrame(context.Background(), frameAt(3))
	current = current.Add(100 * time.Millisecond) // exceeds TrailingSilence
	m.ProcessFrame(context.Background(), frameAt(4))

	assert.Equal(t, StateIdle, m.State())
	require.Len(t, sink.utterances, 1)
	// Pre-roll (frames 0,1) + trigger frame (2) + subsequent frames (3,4).
	assert.Greater(t, len(sink.utterances[0]), 44, "wav should contain header plus sample data")
}

func TestCaptureMachine_HardCeilingEndsUtteranceEvenWithOngoingSpeech(t *testing.T) {
	vad := &scriptedVAD{speech: map[int]bool{0: true, 1: true, 2: true}}
	wake := &triggerOnWord{triggerAt: 0}
	sink := &recordingSink{}
	current := time.Unix(0, 0)
	now := func() time.Time { return current }

	m := NewCaptureMachine(CaptureConfig{TrailingSilence: time.Hour, HardCeiling: 30 * time.Second}, vad, wake, sink, nil, now)

	m.ProcessFrame(context.Background(), frameAt(0))
	assert.Equal(t, StateCapturing, m.State())

	current = current.Add(31 * time.Second)
	m.ProcessFrame(context.Background(), frameAt(1))

	assert.Equal(t, StateIdle, m.State())
	require.Len(t, sink.utterances, 1)
}

func TestCaptureMachine_NonSpeechFramesInIdleNeverTriggerWake(t *testing.T) {
	vad := &scriptedVAD{} // nothing is speech
	wake := &triggerOnWord{triggerAt: 0}
	sink := &recordingSink{}

	m := NewCaptureMachine(CaptureConfig{}, vad, wake, sink, nil, nil)
	for i := 0; i < 5; i++ {
		m.ProcessFrame(context.Background(), frameAt(i))
	}
	assert.Equal(t, StateIdle, m.State())
	assert.Empty(t, sink.utterances)
}
