// Package session implements the session and context manager (C5): durable
// per-conversation message history, token-budgeted context assembly, and
// background narrative summarization.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/homelab/jarvis/pkg/models"
)

// ErrNotFound is returned when a session id has no known state.
var ErrNotFound = errors.New("session: not found")

// Store holds live session state in memory, guarded by a single mutex —
// sessions are few and each operation is cheap, so coarse locking is
// adequate.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	now      func() time.Time
}

// NewStore constructs an empty Store. now is injectable for tests.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{sessions: make(map[string]*models.Session), now: now}
}

// Get returns a point-in-time copy of the session for id, or ErrNotFound.
// Returning a copy rather than the live pointer means callers can read it
// freely without holding the store's lock.
func (s *Store) Get(id string) (models.Session, error) {
	sess, ok := s.snapshot(id)
	if !ok {
		return models.Session{}, ErrNotFound
	}
	return sess, nil
}

// Clear removes a session entirely — called on disconnect or logout.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// AddMessage appends a message to id's history and increments its total
// message count, creating the session if this is its first message.
func (s *Store) AddMessage(id string, role models.Role, content string) models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = &models.Session{ID: id, Entities: make(map[string]models.Entity), CreatedAt: s.now()}
		s.sessions[id] = sess
	}

	msg := models.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: s.now(),
	}
	sess.Messages = append(sess.Messages, msg)
	sess.TotalMessageCount++
	sess.UpdatedAt = s.now()
	return msg
}

// ApplySummary installs a freshly-computed narrative summary and merged
// entity set, truncates the message log to the kept recent tail, and
// clears the summarizing flag. Called only by the Summarizer.
func (s *Store) ApplySummary(id string, summary string, entities map[string]models.Entity, keepFrom int, cachedTokens int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	sess.Summary = &summary
	if sess.Entities == nil {
		sess.Entities = make(map[string]models.Entity)
	}
	for k, v := range entities {
		sess.Entities[k] = v // merge, never delete
	}
	if keepFrom >= 0 && keepFrom <= len(sess.Messages) {
		sess.Messages = append([]models.Message{}, sess.Messages[keepFrom:]...)
	}
	sess.CachedTokenCount = cachedTokens
	sess.Summarizing = false
	sess.UpdatedAt = s.now()
}

// SetSummarizing marks (or clears) the in-progress summarization flag.
func (s *Store) SetSummarizing(id string, summarizing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.Summarizing = summarizing
	}
}

// snapshot returns a shallow copy of the session sufficient for read-only
// context building — messages/entities are copied so callers can't mutate
// store state through the returned value.
func (s *Store) snapshot(id string) (models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return models.Session{}, false
	}
	out := *sess
	out.Messages = append([]models.Message{}, sess.Messages...)
	if sess.Entities != nil {
		out.Entities = make(map[string]models.Entity, len(sess.Entities))
		for k, v := range sess.Entities {
			out.Entities[k] = v
		}
	}
	return out, true
}
