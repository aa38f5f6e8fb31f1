package store

import (
	"context"
	"fmt"

	"github.com/homelab/jarvis/internal/tools/reminders"
)

// SaveReminder persists a one-shot reminder row. Satisfies
// internal/tools/reminders.Store.
func (s *Store) SaveReminder(ctx context.Context, r reminders.Reminder) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (id, session_id, message, fire_at, fired, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.Message, formatTime(r.FireAt), boolToInt(r.Fired), nowRFC3339())
	if err != nil {
		return fmt.Errorf("store: save reminder %q: %w", r.ID, err)
	}
	return nil
}

// DueReminders returns unfired reminders whose fire time has passed. Nothing
// outside the store's tests calls it.
func (s *Store) DueReminders(ctx context.Context) ([]reminders.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, message, fire_at, fired FROM reminders
		WHERE fired = 0 AND fire_at <= ? ORDER BY fire_at ASC`, nowRFC3339())
	if err != nil {
		return nil, fmt.Errorf("store: list due reminders: %w", err)
	}
	defer rows.Close()

	var out []reminders.Reminder
	for rows.Next() {
		var (
			r       reminders.Reminder
			fireAt  string
			fired   int
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Message, &fireAt, &fired); err != nil {
			return nil, fmt.Errorf("store: scan reminder: %w", err)
		}
		r.FireAt = parseRFC3339(fireAt)
		r.Fired = fired != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkReminderFired sets a reminder's fired flag.
func (s *Store) MarkReminderFired(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE reminders SET fired = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: mark reminder %q fired: %w", id, err)
	}
	return nil
}
