package smarthome

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/homelab/jarvis/internal/dispatch"
	"github.com/homelab/jarvis/internal/safety"
)

// PresenceRecorder persists each occupancy observation get_presence makes,
// backing the presence_logs table's history.
type PresenceRecorder interface {
	RecordPresence(ctx context.Context, entityID, state string) error
}

// Register adds the smart-home tool group to reg: entity listing and state
// reads are GREEN, service calls that change device state are YELLOW.
// recorder may be nil, in which case get_presence reports live state without
// logging history.
func Register(reg *dispatch.Registry, client *Client, recorder PresenceRecorder) {
	reg.RegisterTool(dispatch.Tool{
		Name:        "ha_list_entities",
		Description: "List Home Assistant entities, optionally filtered by domain.",
		Tier:        safety.TierGreen,
		Schema: map[string]any{
			"domain": "string, optional domain filter (e.g. light, switch)",
			"limit":  "integer, optional, default 200",
		},
		Handler: listEntitiesHandler(client),
	})

	reg.RegisterTool(dispatch.Tool{
		Name:        "ha_get_state",
		Description: "Get the current state and attributes for a Home Assistant entity_id.",
		Tier:        safety.TierGreen,
		Schema: map[string]any{
			"entity_id": "string, required",
		},
		Handler: getStateHandler(client),
	})

	reg.RegisterTool(dispatch.Tool{
		Name:        "ha_call_service",
		Description: "Call a Home Assistant service (domain.service) with optional service_data.",
		Tier:        safety.TierYellow,
		Schema: map[string]any{
			"domain":       "string, required",
			"service":      "string, required",
			"service_data": "object, optional",
		},
		Handler: callServiceHandler(client),
	})

	reg.RegisterTool(dispatch.Tool{
		Name:        "get_presence",
		Description: "Summarize occupancy across presence-tracking entities (device_tracker.*, person.*).",
		Tier:        safety.TierGreen,
		Schema:      map[string]any{},
		Handler:     presenceHandler(client, recorder),
	})
}

func listEntitiesHandler(client *Client) dispatch.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		if client == nil {
			return "", fmt.Errorf("smart-home client not configured")
		}
		domain, _ := args["domain"].(string)
		limit := 200
		if v, ok := args["limit"].(float64); ok && v > 0 {
			limit = int(v)
		}

		payload, err := client.ListStates(ctx)
		if err != nil {
			return "", err
		}
		var states []map[string]any
		if err := json.Unmarshal(payload, &states); err != nil {
			return "", fmt.Errorf("decode states: %w", err)
		}

		prefix := ""
		if d := strings.ToLower(strings.TrimSpace(domain)); d != "" {
			prefix = d + "."
		}

		out := make([]map[string]any, 0, limit)
		for _, item := range states {
			entityID, _ := item["entity_id"].(string)
			if entityID == "" {
				continue
			}
			if prefix != "" && !strings.HasPrefix(strings.ToLower(entityID), prefix) {
				continue
			}
			out = append(out, map[string]any{
				"entity_id": entityID,
				"state":     item["state"],
			})
			if len(out) >= limit {
				break
			}
		}

		encoded, err := json.Marshal(map[string]any{"entities": out, "total": len(out)})
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	}
}

func getStateHandler(client *Client) dispatch.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		if client == nil {
			return "", fmt.Errorf("smart-home client not configured")
		}
		entityID, _ := args["entity_id"].(string)
		if entityID == "" {
			return "", fmt.Errorf("entity_id is required")
		}
		payload, err := client.GetState(ctx, entityID)
		if err != nil {
			return "", err
		}
		return string(payload), nil
	}
}

func callServiceHandler(client *Client) dispatch.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		if client == nil {
			return "", fmt.Errorf("smart-home client not configured")
		}
		domain, _ := args["domain"].(string)
		service, _ := args["service"].(string)
		if domain == "" || service == "" {
			return "", fmt.Errorf("domain and service are required")
		}
		data, _ := args["service_data"].(map[string]any)
		payload, err := client.CallService(ctx, domain, service, data)
		if err != nil {
			return "", err
		}
		return string(payload), nil
	}
}

func presenceHandler(client *Client, recorder PresenceRecorder) dispatch.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		if client == nil {
			return "", fmt.Errorf("smart-home client not configured")
		}
		payload, err := client.ListStates(ctx)
		if err != nil {
			return "", err
		}
		var states []map[string]any
		if err := json.Unmarshal(payload, &states); err != nil {
			return "", fmt.Errorf("decode states: %w", err)
		}

		home, away := 0, 0
		people := make([]map[string]any, 0)
		for _, item := range states {
			entityID, _ := item["entity_id"].(string)
			if !strings.HasPrefix(entityID, "person.") && !strings.HasPrefix(entityID, "device_tracker.") {
				continue
			}
			state, _ := item["state"].(string)
			if state == "home" {
				home++
			} else {
				away++
			}
			people = append(people, map[string]any{"entity_id": entityID, "state": state})
			if recorder != nil {
				if err := recorder.RecordPresence(ctx, entityID, state); err != nil {
					return "", fmt.Errorf("record presence for %s: %w", entityID, err)
				}
			}
		}

		encoded, err := json.Marshal(map[string]any{
			"home":        home,
			"away":        away,
			"anyone_home": home > 0,
			"trackers":    people,
		})
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	}
}
