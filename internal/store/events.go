package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/homelab/jarvis/pkg/models"
)

// RecordEvent persists a broadcast event for later REST retrieval via
// GET /api/memory/events, independent of the live /ws/events websocket push.
func (s *Store) RecordEvent(ctx context.Context, event models.Event) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("store: marshal event details: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (id, type, severity, title, message, node, source, details, resolved, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		event.ID, event.Type, string(event.Severity), event.Title, event.Message, event.Node,
		string(event.Source), marshalJSONOrEmpty(details), formatTime(event.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("store: record event: %w", err)
	}
	return nil
}

// ListEvents returns the most recent events, newest first.
func (s *Store) ListEvents(ctx context.Context, limit int) ([]models.Event, error) {
	return s.queryEvents(ctx, `
		SELECT id, type, severity, title, message, node, source, details, created_at
		FROM events ORDER BY created_at DESC LIMIT ?`, limit)
}

// ListUnresolvedEvents returns events that have not yet been acknowledged,
// for GET /api/memory/events/unresolved.
func (s *Store) ListUnresolvedEvents(ctx context.Context, limit int) ([]models.Event, error) {
	return s.queryEvents(ctx, `
		SELECT id, type, severity, title, message, node, source, details, created_at
		FROM events WHERE resolved = 0 ORDER BY created_at DESC LIMIT ?`, limit)
}

// ResolveEvent marks an event as acknowledged.
func (s *Store) ResolveEvent(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE events SET resolved = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: resolve event %q: %w", id, err)
	}
	return nil
}

func (s *Store) queryEvents(ctx context.Context, query string, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query events: %w", err)
	}
	defer rows.Close()

	var out []models.Event
	for rows.Next() {
		var (
			e                                 models.Event
			severity, source, details, created string
		)
		if err := rows.Scan(&e.ID, &e.Type, &severity, &e.Title, &e.Message, &e.Node, &source, &details, &created); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		e.Severity = models.EventSeverity(severity)
		e.Source = models.EventSource(source)
		e.Timestamp = parseRFC3339(created)
		if details != "" {
			_ = json.Unmarshal([]byte(details), &e.Details)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
