// Package reminders holds the GREEN-tier tool that schedules a one-shot
// reminder: it validates the cron expression and saves the reminder with its
// next fire time. Delivering a due reminder into its session is not done here.
package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"github.com/homelab/jarvis/internal/dispatch"
	"github.com/homelab/jarvis/internal/safety"
)

// Reminder is a persisted one-shot reminder row.
type Reminder struct {
	ID        string
	SessionID string
	Message   string
	FireAt    time.Time
	Fired     bool
}

// Store persists reminders (backed by the `reminders` table).
type Store interface {
	SaveReminder(ctx context.Context, r Reminder) error
}

// Register adds the reminders group to reg.
func Register(reg *dispatch.Registry, store Store) {
	reg.RegisterTool(dispatch.Tool{
		Name:        "set_reminder",
		Description: "Save a one-shot reminder for this session, due at the next fire time of a cron expression.",
		Tier:        safety.TierGreen,
		Schema: map[string]any{
			"message": "string, required",
			"cron":    "string, required — a 5-field cron expression for the fire time",
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			message, _ := args["message"].(string)
			cronExpr, _ := args["cron"].(string)
			sessionID, _ := args["session_id"].(string)
			if message == "" || cronExpr == "" {
				return "", fmt.Errorf("message and cron are required")
			}

			if !gronx.IsValid(cronExpr) {
				return "", fmt.Errorf("invalid cron expression %q", cronExpr)
			}
			next, err := gronx.NextTick(cronExpr, false)
			if err != nil {
				return "", fmt.Errorf("compute next fire time: %w", err)
			}

			r := Reminder{
				ID:        uuid.NewString(),
				SessionID: sessionID,
				Message:   message,
				FireAt:    next,
			}
			if store != nil {
				if err := store.SaveReminder(ctx, r); err != nil {
					return "", err
				}
			}
			return fmt.Sprintf("reminder %s scheduled for %s", r.ID, next.Format(time.RFC3339)), nil
		},
	})
}
