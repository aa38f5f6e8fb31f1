package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"

	"github.com/homelab/jarvis/internal/audio"
	"github.com/homelab/jarvis/internal/dispatch"
)

// wsVoiceIn is one client-sent frame on /ws/voice.
type wsVoiceIn struct {
	Type      string `json:"type"` // audio_start, audio_chunk, audio_end
	SessionID string `json:"session_id"`
	Seq       int    `json:"seq"`
	Audio     string `json:"audio"` // base64, present on audio_chunk
}

// wsVoiceOut is one server-sent frame on /ws/voice.
type wsVoiceOut struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	Index       int    `json:"index,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Audio       string `json:"audio,omitempty"` // base64
	TotalChunks int    `json:"total_chunks,omitempty"`
	Error       string `json:"error,omitempty"`
}

// wsVoiceSession accumulates one utterance's chunked WAV bytes between
// audio_start and audio_end.
type wsVoiceSession struct {
	sessionID string
	chunks    map[int][]byte
}

// handleWSVoice upgrades to /ws/voice: the client streams one utterance's
// WAV bytes in sequence-numbered chunks bracketed by audio_start/audio_end,
// the server transcribes it, runs the ordinary chat loop, and streams the
// reply back as an ordered sequence of synthesized sentence chunks.
func (s *Server) handleWSVoice(c *gin.Context) {
	if s.transcriber == nil || s.newTTSRouter == nil {
		c.AbortWithStatusJSON(503, gin.H{"error": "voice pipeline not configured"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(32 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	ctx := c.Request.Context()
	var active *wsVoiceSession

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var in wsVoiceIn
		if err := json.Unmarshal(data, &in); err != nil {
			s.wsVoiceSend(conn, wsVoiceOut{Type: "error", Error: err.Error()})
			continue
		}

		switch in.Type {
		case "audio_start":
			active = &wsVoiceSession{sessionID: cleanSessionID(in.SessionID), chunks: make(map[int][]byte)}
			s.wsVoiceSend(conn, wsVoiceOut{Type: "listening"})

		case "audio_chunk":
			if active == nil {
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(in.Audio)
			if err != nil {
				s.wsVoiceSend(conn, wsVoiceOut{Type: "error", Error: "invalid audio chunk encoding"})
				continue
			}
			active.chunks[in.Seq] = raw

		case "audio_end":
			if active == nil {
				continue
			}
			s.handleVoiceUtterance(ctx, conn, active)
			active = nil

		default:
			s.wsVoiceSend(conn, wsVoiceOut{Type: "error", Error: fmt.Sprintf("unknown frame type %q", in.Type)})
		}
	}
}

func (s *Server) handleVoiceUtterance(ctx context.Context, conn *websocket.Conn, session *wsVoiceSession) {
	if s.tracer != nil {
		var span trace.Span
		ctx, span = s.tracer.TraceMessageProcessing(ctx, string(dispatch.CallerVoice), "inbound", session.sessionID)
		defer span.End()
	}

	s.wsVoiceSend(conn, wsVoiceOut{Type: "processing"})

	wav := reassembleChunks(session.chunks)
	text, err := s.transcriber.Transcribe(ctx, wav)
	if err != nil {
		s.wsVoiceSend(conn, wsVoiceOut{Type: "error", Error: err.Error()})
		return
	}
	s.wsVoiceSend(conn, wsVoiceOut{Type: "transcript", Text: text})

	s.wsVoiceSend(conn, wsVoiceOut{Type: "thinking"})
	result, err := s.runChatTurn(ctx, session.sessionID, dispatch.CallerVoice, text)
	if err != nil {
		s.wsVoiceSend(conn, wsVoiceOut{Type: "error", Error: err.Error()})
		return
	}
	if result.Pending != nil {
		// Voice has no confirmation UI of its own: ORANGE-tier calls made
		// over voice simply report back as spoken refusals.
		result.Text = fmt.Sprintf("That needs your confirmation in the app before I can do it: %s", result.Pending.Reason)
	}

	s.synthesizeAndStream(ctx, conn, result.Text)
}

func (s *Server) synthesizeAndStream(ctx context.Context, conn *websocket.Conn, text string) {
	var splitter audio.SentenceSplitter
	sentences := splitter.Feed(text)
	sentences = append(sentences, splitter.Flush()...)
	if len(sentences) == 0 {
		s.wsVoiceSend(conn, wsVoiceOut{Type: "tts_done", TotalChunks: 0})
		return
	}

	router := s.newTTSRouter()
	sub := &voiceSubscriber{server: s, conn: conn}
	drain := audio.NewDrain(router, sub, nil)

	queue := make(chan string, len(sentences))
	for _, sentence := range sentences {
		queue <- sentence
	}
	close(queue)

	drain.Run(ctx, queue)
}

// voiceSubscriber adapts audio.Drain's ordered chunk callbacks onto the
// /ws/voice wire protocol.
type voiceSubscriber struct {
	server *Server
	conn   *websocket.Conn
}

func (v *voiceSubscriber) OnChunk(ctx context.Context, chunk audio.Chunk) {
	v.server.metrics.RecordTTSSynthesis(string(chunk.Engine))
	v.server.wsVoiceSend(v.conn, wsVoiceOut{
		Type:        "tts_chunk",
		Index:       chunk.Index,
		ContentType: chunk.ContentType,
		Audio:       base64.StdEncoding.EncodeToString(chunk.Audio),
	})
}

func (v *voiceSubscriber) OnSentenceFailed(ctx context.Context, index int, text string, err error) {
	v.server.wsVoiceSend(v.conn, wsVoiceOut{Type: "error", Index: index, Error: err.Error()})
}

func (v *voiceSubscriber) OnDone(ctx context.Context, totalChunks int) {
	v.server.wsVoiceSend(v.conn, wsVoiceOut{Type: "tts_done", TotalChunks: totalChunks})
}

func (s *Server) wsVoiceSend(conn *websocket.Conn, out wsVoiceOut) {
	payload, err := json.Marshal(out)
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	_ = conn.WriteMessage(websocket.TextMessage, payload)
}

// reassembleChunks concatenates the client's sequence-numbered audio
// chunks in order, reconstructing the single WAV byte stream they were
// split from.
func reassembleChunks(chunks map[int][]byte) []byte {
	seqs := make([]int, 0, len(chunks))
	for seq := range chunks {
		seqs = append(seqs, seq)
	}
	sort.Ints(seqs)

	var out []byte
	for _, seq := range seqs {
		out = append(out, chunks[seq]...)
	}
	return out
}
