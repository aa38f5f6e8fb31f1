package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PresenceEntry is one row of the presence_logs table: the observed state
// of a single occupancy-tracking entity at a point in time.
type PresenceEntry struct {
	EntityID  string
	State     string
	CreatedAt time.Time
}

// RecordPresence appends a presence observation, populated by the
// get_presence tool's GREEN-tier reads.
func (s *Store) RecordPresence(ctx context.Context, entityID, state string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO presence_logs (id, entity_id, state, created_at) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), entityID, state, nowRFC3339())
	if err != nil {
		return fmt.Errorf("store: record presence for %q: %w", entityID, err)
	}
	return nil
}

// PresenceHistory returns the most recent observations for entityID, newest
// first.
func (s *Store) PresenceHistory(ctx context.Context, entityID string, limit int) ([]PresenceEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, state, created_at FROM presence_logs
		WHERE entity_id = ? ORDER BY created_at DESC LIMIT ?`, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: presence history for %q: %w", entityID, err)
	}
	defer rows.Close()

	var out []PresenceEntry
	for rows.Next() {
		var (
			p       PresenceEntry
			created string
		)
		if err := rows.Scan(&p.EntityID, &p.State, &created); err != nil {
			return nil, fmt.Errorf("store: scan presence entry: %w", err)
		}
		p.CreatedAt = parseRFC3339(created)
		out = append(out, p)
	}
	return out, rows.Err()
}
