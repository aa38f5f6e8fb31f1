package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/homelab/jarvis/pkg/models"
)

// SaveConversation upserts a conversation's full durable snapshot (message
// log, summary, entity map) — the session package itself stays purely
// in-memory; this is the periodic/shutdown-time persistence path a gateway
// calls so history survives a restart.
func (s *Store) SaveConversation(ctx context.Context, sess models.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("store: marshal conversation: %w", err)
	}
	now := nowRFC3339()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (session_id, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		sess.ID, string(payload), now, now)
	if err != nil {
		return fmt.Errorf("store: save conversation %q: %w", sess.ID, err)
	}
	return nil
}

// LoadConversation returns a previously-saved session snapshot, or
// ErrNotFound.
func (s *Store) LoadConversation(ctx context.Context, sessionID string) (models.Session, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM conversations WHERE session_id = ?`, sessionID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("store: load conversation %q: %w", sessionID, err)
	}
	var sess models.Session
	if err := json.Unmarshal([]byte(payload), &sess); err != nil {
		return models.Session{}, fmt.Errorf("store: decode conversation %q: %w", sessionID, err)
	}
	return sess, nil
}

// DeleteConversation removes a persisted conversation, mirroring
// session.Store.Clear for the durable copy.
func (s *Store) DeleteConversation(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("store: delete conversation %q: %w", sessionID, err)
	}
	return nil
}
