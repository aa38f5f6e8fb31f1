package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

const (
	prefKillSwitch    = "kill_switch"
	prefAutonomyLevel = "autonomy_level"
)

// KillSwitch reports whether the global kill switch is engaged. Satisfies
// internal/monitor.Preferences — read fresh on every call, never cached.
func (s *Store) KillSwitch() (bool, error) {
	v, err := s.getPreference(context.Background(), prefKillSwitch)
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

// SetKillSwitch engages or releases the kill switch.
func (s *Store) SetKillSwitch(ctx context.Context, on bool) error {
	value := "0"
	if on {
		value = "1"
	}
	return s.setPreference(ctx, prefKillSwitch, value)
}

// AutonomyLevel returns the current autonomy level, defaulting to 0 if the
// preference has never been set. Satisfies internal/monitor.Preferences.
func (s *Store) AutonomyLevel() (int, error) {
	v, err := s.getPreference(context.Background(), prefAutonomyLevel)
	if err != nil {
		return 0, err
	}
	if v == "" {
		return 0, nil
	}
	level, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("store: parse autonomy level: %w", err)
	}
	return level, nil
}

// SetAutonomyLevel updates the operator-adjustable autonomy level.
func (s *Store) SetAutonomyLevel(ctx context.Context, level int) error {
	return s.setPreference(ctx, prefAutonomyLevel, strconv.Itoa(level))
}

// GetPreference reads an arbitrary preferences-table key (e.g. the
// per-sentence TTS deadline override), returning "" if unset.
func (s *Store) GetPreference(ctx context.Context, key string) (string, error) {
	return s.getPreference(ctx, key)
}

// SetPreference upserts an arbitrary preferences-table key by value.
func (s *Store) SetPreference(ctx context.Context, key, value string) error {
	return s.setPreference(ctx, key, value)
}

func (s *Store) getPreference(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: get preference %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) setPreference(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, nowRFC3339())
	if err != nil {
		return fmt.Errorf("store: set preference %q: %w", key, err)
	}
	return nil
}
