// Package memory holds the tool group backing the `memories` table: small
// durable facts the operator asks the assistant to remember across
// sessions, distinct from the per-conversation context the session manager
// tracks.
package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/homelab/jarvis/internal/dispatch"
	"github.com/homelab/jarvis/internal/safety"
)

// Entry mirrors one memories-table row.
type Entry struct {
	Key     string
	Content string
}

// Store persists remembered facts, backed by internal/store.
type Store interface {
	Remember(ctx context.Context, key, content string) error
	Recall(ctx context.Context, key string) (Entry, error)
	ListMemories(ctx context.Context) ([]Entry, error)
	Forget(ctx context.Context, key string) error
}

// Register adds the memory group to reg. All operations are GREEN tier:
// remembering and recalling facts carries no blast radius of its own.
func Register(reg *dispatch.Registry, store Store) {
	reg.RegisterTool(dispatch.Tool{
		Name:        "remember",
		Description: "Store a short fact under a key for later recall (e.g. key=wifi_password).",
		Tier:        safety.TierGreen,
		Schema: map[string]any{
			"key":     "string, required",
			"content": "string, required",
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			key, _ := args["key"].(string)
			content, _ := args["content"].(string)
			key = strings.TrimSpace(key)
			if key == "" || content == "" {
				return "", fmt.Errorf("key and content are required")
			}
			if store == nil {
				return "", fmt.Errorf("memory store not configured")
			}
			if err := store.Remember(ctx, key, content); err != nil {
				return "", err
			}
			return fmt.Sprintf("remembered %q", key), nil
		},
	})

	reg.RegisterTool(dispatch.Tool{
		Name:        "recall",
		Description: "Recall a previously remembered fact by key.",
		Tier:        safety.TierGreen,
		Schema: map[string]any{
			"key": "string, required",
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			key, _ := args["key"].(string)
			if key == "" {
				return "", fmt.Errorf("key is required")
			}
			if store == nil {
				return "", fmt.Errorf("memory store not configured")
			}
			entry, err := store.Recall(ctx, key)
			if err != nil {
				return "", err
			}
			return entry.Content, nil
		},
	})

	reg.RegisterTool(dispatch.Tool{
		Name:        "list_memories",
		Description: "List every remembered fact's key.",
		Tier:        safety.TierGreen,
		Schema:      map[string]any{},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			if store == nil {
				return "", fmt.Errorf("memory store not configured")
			}
			entries, err := store.ListMemories(ctx)
			if err != nil {
				return "", err
			}
			keys := make([]string, 0, len(entries))
			for _, e := range entries {
				keys = append(keys, e.Key)
			}
			return strings.Join(keys, ", "), nil
		},
	})

	reg.RegisterTool(dispatch.Tool{
		Name:        "forget",
		Description: "Delete a remembered fact by key.",
		Tier:        safety.TierGreen,
		Schema: map[string]any{
			"key": "string, required",
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			key, _ := args["key"].(string)
			if key == "" {
				return "", fmt.Errorf("key is required")
			}
			if store == nil {
				return "", fmt.Errorf("memory store not configured")
			}
			if err := store.Forget(ctx, key); err != nil {
				return "", err
			}
			return fmt.Sprintf("forgot %q", key), nil
		},
	})
}
