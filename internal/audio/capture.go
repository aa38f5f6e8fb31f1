package audio

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Frame is one fixed-size block of PCM samples read from the capture
// device, e.g. 512 samples at 16 kHz (32 ms).
type Frame struct {
	Samples   []int16
	CapturedAt time.Time
}

// VAD classifies a frame as speech or silence.
type VAD interface {
	IsSpeech(frame Frame) bool
}

// WakeWordDetector runs on speech frames only, looking for the trigger
// phrase.
type WakeWordDetector interface {
	Detect(frame Frame) bool
}

// CaptureState is one of the two states of the inbound voice capture
// machine.
type CaptureState string

const (
	StateIdle       CaptureState = "idle"
	StateCapturing  CaptureState = "capturing"
)

// CaptureConfig tunes the ring buffer, utterance boundaries, and sample
// format.
type CaptureConfig struct {
	PreRollFrames   int
	SampleRate      int
	TrailingSilence time.Duration
	HardCeiling     time.Duration
}

func (c *CaptureConfig) ApplyDefaults() {
	if c.PreRollFrames <= 0 {
		c.PreRollFrames = 16 // ~500ms at 32ms/frame
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.TrailingSilence <= 0 {
		c.TrailingSilence = 2 * time.Second
	}
	if c.HardCeiling <= 0 {
		c.HardCeiling = 30 * time.Second
	}
}

// UtteranceSink receives a completed utterance's PCM, already wrapped in a
// WAV container, for delivery into a session's voice-in path.
type UtteranceSink interface {
	OnUtterance(ctx context.Context, wav []byte, sampleRate int)
}

// preRollRing is a fixed-capacity ring buffer of recent frames, drained into
// the pending utterance buffer the instant a wake word fires so the user's
// first syllables — spoken before the trigger completed — are preserved.
type preRollRing struct {
	frames []Frame
	cap    int
	next   int
	filled bool
}

func newPreRollRing(capacity int) *preRollRing {
	return &preRollRing{frames: make([]Frame, capacity), cap: capacity}
}

func (r *preRollRing) Push(f Frame) {
	r.frames[r.next] = f
	r.next = (r.next + 1) % r.cap
	if r.next == 0 {
		r.filled = true
	}
}

// Drain returns the buffered frames in chronological order and resets the
// ring to empty.
func (r *preRollRing) Drain() []Frame {
	var out []Frame
	if r.filled {
		out = append(out, r.frames[r.next:]...)
	}
	out = append(out, r.frames[:r.next]...)
	r.next = 0
	r.filled = false
	return out
}

// CaptureMachine is the three-state (IDLE / CAPTURING / back to IDLE)
// utterance boundary detector described for the voice ingress path. It owns
// no I/O itself: frames arrive via ProcessFrame and completed utterances are
// handed to an UtteranceSink.
type CaptureMachine struct {
	cfg    CaptureConfig
	vad    VAD
	wake   WakeWordDetector
	sink   UtteranceSink
	logger *slog.Logger
	now    func() time.Time

	mu           sync.Mutex
	state        CaptureState
	preRoll      *preRollRing
	pending      []Frame
	utteranceStart time.Time
	lastSpeech   time.Time
}

// NewCaptureMachine constructs a CaptureMachine in the IDLE state.
func NewCaptureMachine(cfg CaptureConfig, vad VAD, wake WakeWordDetector, sink UtteranceSink, logger *slog.Logger, now func() time.Time) *CaptureMachine {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &CaptureMachine{
		cfg:     cfg,
		vad:     vad,
		wake:    wake,
		sink:    sink,
		logger:  logger,
		now:     now,
		state:   StateIdle,
		preRoll: newPreRollRing(cfg.PreRollFrames),
	}
}

// ProcessFrame feeds one captured frame through the VAD gate and, in IDLE,
// the wake-word detector; in CAPTURING, it appends to the pending utterance
// and checks the trailing-silence and hard-ceiling boundaries.
func (m *CaptureMachine) ProcessFrame(ctx context.Context, frame Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()

	isSpeech := m.vad != nil && m.vad.IsSpeech(frame)

	switch m.state {
	case StateIdle:
		m.preRoll.Push(frame)
		if !isSpeech {
			return
		}
		if m.wake == nil || !m.wake.Detect(frame) {
			return
		}
		m.beginCapture(frame)

	case StateCapturing:
		m.pending = append(m.pending, frame)
		if isSpeech {
			m.lastSpeech = m.now()
		}
		m.checkBoundary(ctx)
	}
}

// beginCapture drains the pre-roll ring (which already holds the trigger
// frame, pushed by ProcessFrame) into the pending buffer, resets VAD state,
// and transitions IDLE -> CAPTURING. Caller must hold m.mu.
func (m *CaptureMachine) beginCapture(trigger Frame) {
	m.pending = m.preRoll.Drain()
	now := m.now()
	m.utteranceStart = now
	m.lastSpeech = now
	m.state = StateCapturing
	m.logger.Debug("wake word triggered, capture started")
}

// checkBoundary ends the utterance on trailing silence or the hard ceiling.
// Caller must hold m.mu.
func (m *CaptureMachine) checkBoundary(ctx context.Context) {
	now := m.now()
	silentFor := now.Sub(m.lastSpeech)
	elapsed := now.Sub(m.utteranceStart)

	if silentFor < m.cfg.TrailingSilence && elapsed < m.cfg.HardCeiling {
		return
	}

	frames := m.pending
	m.pending = nil
	m.state = StateIdle
	m.preRoll = newPreRollRing(m.cfg.PreRollFrames)

	if len(frames) == 0 {
		return
	}
	wav := encodeWAV(frames, m.cfg.SampleRate)
	if m.sink != nil {
		m.sink.OnUtterance(ctx, wav, m.cfg.SampleRate)
	}
}

// State reports the machine's current state, for diagnostics and tests.
func (m *CaptureMachine) State() CaptureState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
