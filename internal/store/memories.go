package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/homelab/jarvis/internal/tools/memory"
)

// Remember upserts a memory entry. Satisfies internal/tools/memory.Store.
func (s *Store) Remember(ctx context.Context, key, content string) error {
	now := nowRFC3339()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memories (key, content, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		key, content, now, now)
	if err != nil {
		return fmt.Errorf("store: remember %q: %w", key, err)
	}
	return nil
}

// Recall returns the memory for key, or ErrNotFound.
func (s *Store) Recall(ctx context.Context, key string) (memory.Entry, error) {
	var content string
	err := s.db.QueryRowContext(ctx, `SELECT content FROM memories WHERE key = ?`, key).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return memory.Entry{}, ErrNotFound
	}
	if err != nil {
		return memory.Entry{}, fmt.Errorf("store: recall %q: %w", key, err)
	}
	return memory.Entry{Key: key, Content: content}, nil
}

// ListMemories returns every remembered entry, for a "what do you remember"
// listing tool.
func (s *Store) ListMemories(ctx context.Context) ([]memory.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, content FROM memories ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("store: list memories: %w", err)
	}
	defer rows.Close()

	var out []memory.Entry
	for rows.Next() {
		var e memory.Entry
		if err := rows.Scan(&e.Key, &e.Content); err != nil {
			return nil, fmt.Errorf("store: scan memory: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Forget removes a remembered entry.
func (s *Store) Forget(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("store: forget %q: %w", key, err)
	}
	return nil
}
