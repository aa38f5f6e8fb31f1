// Package display holds the dashboard-notification tool group. The HUD's
// own rendering lives elsewhere; this group only emits the event the
// dashboard subscribes to.
package display

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/homelab/jarvis/internal/dispatch"
	"github.com/homelab/jarvis/internal/safety"
	"github.com/homelab/jarvis/pkg/models"
)

// Publisher broadcasts an event to /events subscribers.
type Publisher interface {
	Publish(ctx context.Context, event models.Event)
}

// Register adds the display group to reg.
func Register(reg *dispatch.Registry, publisher Publisher) {
	reg.RegisterTool(dispatch.Tool{
		Name:        "show_notification",
		Description: "Push a short message to the dashboard HUD.",
		Tier:        safety.TierGreen,
		Schema: map[string]any{
			"title":   "string, required",
			"message": "string, required",
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			title, _ := args["title"].(string)
			message, _ := args["message"].(string)
			if title == "" || message == "" {
				return "", fmt.Errorf("title and message are required")
			}
			if publisher != nil {
				publisher.Publish(ctx, models.Event{
					ID:        uuid.NewString(),
					Type:      "notification",
					Severity:  models.SeverityInfo,
					Title:     title,
					Message:   message,
					Source:    models.SourceJarvis,
					Timestamp: time.Now(),
				})
			}
			return "notification sent", nil
		},
	})
}
