package gateway

import (
	"sync"

	"github.com/google/uuid"

	"github.com/homelab/jarvis/internal/llm"
)

// pendingToolCall is a single ORANGE-tier call blocked on the approval
// keyword, along with enough chat-loop state to resume once it arrives.
type pendingToolCall struct {
	SessionID string
	ToolName  string
	Args      map[string]any
	ToolCallID string
	History   []llm.Message
}

// pendingConfirmations holds ORANGE-tier calls awaiting the operator's
// approval keyword, keyed by an opaque id handed back in the chat
// response. Entries are held in memory only — a restart drops any
// in-flight confirmation, which is acceptable for a single-operator plane.
type pendingConfirmations struct {
	mu    sync.Mutex
	calls map[string]pendingToolCall
}

func newPendingConfirmations() *pendingConfirmations {
	return &pendingConfirmations{calls: make(map[string]pendingToolCall)}
}

func (p *pendingConfirmations) add(call pendingToolCall) string {
	id := uuid.NewString()
	p.mu.Lock()
	p.calls[id] = call
	p.mu.Unlock()
	return id
}

func (p *pendingConfirmations) take(id string) (pendingToolCall, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	call, ok := p.calls[id]
	if ok {
		delete(p.calls, id)
	}
	return call, ok
}
