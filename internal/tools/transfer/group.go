// Package transfer holds the file-transfer tool group: downloading a
// remote URL to local disk. URLs are validated through the safety kernel's
// SSRF-aware resolver; a single retry is attempted on a transient failure.
package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/homelab/jarvis/internal/dispatch"
	"github.com/homelab/jarvis/internal/safety"
)

// Register adds the transfer group to reg.
func Register(reg *dispatch.Registry, kernel *safety.Kernel, baseDir string) {
	reg.RegisterTool(dispatch.Tool{
		Name:        "download_file",
		Description: "Download a URL to a path within the allowed base directories.",
		Tier:        safety.TierYellow,
		Schema: map[string]any{
			"url":  "string, required",
			"path": "string, required",
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			rawURL, _ := args["url"].(string)
			path, _ := args["path"].(string)
			if rawURL == "" || path == "" {
				return "", fmt.Errorf("url and path are required")
			}

			urlRes := kernel.ValidateURL(rawURL)
			if !urlRes.Safe {
				return "", fmt.Errorf("url rejected: %s", urlRes.Reason)
			}
			pathRes := kernel.SanitizePath(path, baseDir)
			if !pathRes.Safe {
				return "", fmt.Errorf("path rejected: %s", pathRes.Reason)
			}

			n, err := fetchWithRetry(ctx, urlRes.ParsedURL.String(), pathRes.ResolvedPath)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("downloaded %d bytes to %s", n, pathRes.ResolvedPath), nil
		},
	})
}

func fetchWithRetry(ctx context.Context, url, dest string) (int64, error) {
	n, err := fetchOnce(ctx, url, dest)
	if err == nil {
		return n, nil
	}
	// Transient failures (timeout, DNS, 5xx) get exactly one retry.
	time.Sleep(500 * time.Millisecond)
	return fetchOnce(ctx, url, dest)
}

func fetchOnce(ctx context.Context, url, dest string) (int64, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("download failed: status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}
	f, err := os.Create(dest)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return io.Copy(f, resp.Body)
}
