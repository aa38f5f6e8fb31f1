package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/homelab/jarvis/pkg/models"
)

// RecordAutonomyAction persists one runbook-attempt audit record. Satisfies
// internal/monitor.AuditStore.
func (s *Store) RecordAutonomyAction(ctx context.Context, action models.AutonomyAction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO autonomy_actions
			(id, incident_key, incident_id, runbook_id, action, args_snapshot,
			 outcome, verification_ok, autonomy_level, attempt, escalated, email_sent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		action.ID, action.IncidentKey, action.IncidentID, action.RunbookID, action.Action,
		marshalJSONOrEmpty(action.ArgsSnapshot), string(action.Outcome), boolToInt(action.VerificationOK),
		int(action.AutonomyLevel), action.Attempt, boolToInt(action.Escalated), boolToInt(action.EmailSent),
		formatTime(action.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("store: record autonomy action: %w", err)
	}
	return nil
}

// ListAutonomyActions returns the most recent actions, newest first, for
// GET /api/monitor/actions.
func (s *Store) ListAutonomyActions(ctx context.Context, limit int) ([]models.AutonomyAction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, incident_key, incident_id, runbook_id, action, args_snapshot,
		       outcome, verification_ok, autonomy_level, attempt, escalated, email_sent, created_at
		FROM autonomy_actions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list autonomy actions: %w", err)
	}
	defer rows.Close()

	var out []models.AutonomyAction
	for rows.Next() {
		var (
			a                               models.AutonomyAction
			args, outcome, createdAt        string
			verificationOK, escalated, sent int
			autonomyLevel                   int
		)
		if err := rows.Scan(&a.ID, &a.IncidentKey, &a.IncidentID, &a.RunbookID, &a.Action, &args,
			&outcome, &verificationOK, &autonomyLevel, &a.Attempt, &escalated, &sent, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan autonomy action: %w", err)
		}
		a.ArgsSnapshot = json.RawMessage(args)
		a.Outcome = models.AutonomyOutcome(outcome)
		a.VerificationOK = verificationOK != 0
		a.AutonomyLevel = models.AutonomyLevel(autonomyLevel)
		a.Escalated = escalated != 0
		a.EmailSent = sent != 0
		a.CreatedAt = parseRFC3339(createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// PruneOlderThan deletes autonomy-action and event records older than
// cutoff. Satisfies internal/monitor.ActionAuditPruner, run from the
// background tier.
func (s *Store) PruneOlderThan(ctx context.Context, cutoff time.Time) error {
	cutoffStr := formatTime(cutoff)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM autonomy_actions WHERE created_at < ?`, cutoffStr); err != nil {
		return fmt.Errorf("store: prune autonomy actions: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE created_at < ?`, cutoffStr); err != nil {
		return fmt.Errorf("store: prune events: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return t.UTC().Format(time.RFC3339Nano)
}
