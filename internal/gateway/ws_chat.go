package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"

	"github.com/homelab/jarvis/internal/dispatch"
)

// wsChatIn is one client-sent frame on /ws/chat: either a new message or a
// confirmation of a pending ORANGE-tier call.
type wsChatIn struct {
	Type      string `json:"type"` // "message" or "confirm"
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	PendingID string `json:"pending_id"`
	Keyword   string `json:"keyword"`
}

type wsChatOut struct {
	Type      string      `json:"type"`
	Text      string      `json:"text,omitempty"`
	ToolCall  *ToolEvent  `json:"tool_call,omitempty"`
	Pending   *PendingConfirmation `json:"pending,omitempty"`
	TimingMS  int64       `json:"timing_ms,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// deltaWordsPerChunk bounds how much text each "delta" frame carries. The
// chat loop's completion call is non-streaming, so deltas here are
// server-side pacing over an already-complete reply rather
// than genuine token-by-token streaming from the model.
const deltaWordsPerChunk = 6

// handleWSChat upgrades to /ws/chat: a request/response protocol where each
// inbound "message" frame drives one full chat-loop turn, whose text reply
// is paced out as a series of "delta" frames bracketed by "timing" and
// "done" markers, preceded by one "tool_call" frame for every tool the loop
// invoked. A turn that stops on a pending confirmation sends a
// "confirmation_required" frame instead of the deltas.
func (s *Server) handleWSChat(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	s.metrics.SessionStarted()
	defer s.metrics.SessionEnded()

	conn.SetReadLimit(wsMaxPayloadBytes)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	ctx := c.Request.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var in wsChatIn
		if err := json.Unmarshal(data, &in); err != nil {
			s.wsChatSend(conn, wsChatOut{Type: "error", Error: err.Error()})
			continue
		}

		start := time.Now()
		s.wsChatSend(conn, wsChatOut{Type: "timing"})

		result, err := s.wsChatRunTurn(ctx, in)
		if err != nil {
			s.wsChatSend(conn, wsChatOut{Type: "error", Error: err.Error()})
			continue
		}

		for _, te := range result.ToolEvents {
			te := te
			s.wsChatSend(conn, wsChatOut{Type: "tool_call", ToolCall: &te})
		}

		if result.Pending != nil {
			s.wsChatSend(conn, wsChatOut{Type: "confirmation_required", Pending: result.Pending})
			continue
		}

		s.wsChatSend(conn, wsChatOut{Type: "first_token"})
		for _, chunk := range chunkWords(result.Text, deltaWordsPerChunk) {
			s.wsChatSend(conn, wsChatOut{Type: "delta", Text: chunk})
		}
		s.wsChatSend(conn, wsChatOut{Type: "done", TimingMS: time.Since(start).Milliseconds()})
	}
}

func (s *Server) wsChatRunTurn(ctx context.Context, in wsChatIn) (ChatTurnResult, error) {
	sessionID := cleanSessionID(in.SessionID)
	if s.tracer != nil {
		var span trace.Span
		ctx, span = s.tracer.TraceMessageProcessing(ctx, string(dispatch.CallerChat), "inbound", sessionID)
		defer span.End()
	}

	if in.Type == "confirm" {
		return s.resumeChatTurn(ctx, in.PendingID, in.Keyword)
	}
	return s.runChatTurn(ctx, sessionID, dispatch.CallerChat, in.Text)
}

func (s *Server) wsChatSend(conn *websocket.Conn, out wsChatOut) {
	payload, err := json.Marshal(out)
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	_ = conn.WriteMessage(websocket.TextMessage, payload)
}

// chunkWords splits text into groups of n whitespace-separated words, joined
// by single spaces; the original spacing and line breaks are not kept.
func chunkWords(text string, n int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var chunks []string
	for i := 0; i < len(words); i += n {
		end := i + n
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}
	return chunks
}
