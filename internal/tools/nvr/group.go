package nvr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/homelab/jarvis/internal/dispatch"
	"github.com/homelab/jarvis/internal/safety"
)

// Register adds the camera/NVR tool group to reg. Both operations are
// read-only against the proxy, so both are GREEN.
func Register(reg *dispatch.Registry, client *Client) {
	reg.RegisterTool(dispatch.Tool{
		Name:        "list_cameras",
		Description: "List cameras known to the NVR proxy and whether each is online.",
		Tier:        safety.TierGreen,
		Schema:      map[string]any{},
		Handler:     listCamerasHandler(client),
	})

	reg.RegisterTool(dispatch.Tool{
		Name:        "get_camera_snapshot",
		Description: "Fetch a base64-encoded still frame from one camera.",
		Tier:        safety.TierGreen,
		Schema: map[string]any{
			"camera_id": "string, required",
		},
		Handler: snapshotHandler(client),
	})
}

func listCamerasHandler(client *Client) dispatch.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		if client == nil {
			return "", fmt.Errorf("nvr client not configured")
		}
		cameras, err := client.ListCameras(ctx)
		if err != nil {
			return "", err
		}
		encoded, err := json.Marshal(map[string]any{"cameras": cameras, "total": len(cameras)})
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	}
}

func snapshotHandler(client *Client) dispatch.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		if client == nil {
			return "", fmt.Errorf("nvr client not configured")
		}
		cameraID, _ := args["camera_id"].(string)
		if cameraID == "" {
			return "", fmt.Errorf("camera_id is required")
		}
		data, contentType, err := client.Snapshot(ctx, cameraID)
		if err != nil {
			return "", err
		}
		encoded, err := json.Marshal(map[string]any{
			"camera_id":    cameraID,
			"content_type": contentType,
			"image_base64": base64.StdEncoding.EncodeToString(data),
		})
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	}
}
