// Package files holds the filesystem tool group: read-only inspection
// (GREEN) and writes (YELLOW), every path argument routed through the
// safety kernel's path sanitizer before touching disk.
package files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/homelab/jarvis/internal/dispatch"
	"github.com/homelab/jarvis/internal/safety"
)

// Register adds the files group to reg, rooted under baseDir (the allowed
// base directory passed to SanitizePath).
func Register(reg *dispatch.Registry, kernel *safety.Kernel, baseDir string) {
	reg.RegisterTool(dispatch.Tool{
		Name:        "read_file",
		Description: "Read a text file within the allowed base directories.",
		Tier:        safety.TierGreen,
		Schema: map[string]any{
			"path": "string, required",
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			if path == "" {
				return "", fmt.Errorf("path is required")
			}
			res := kernel.SanitizePath(path, baseDir)
			if !res.Safe {
				return "", fmt.Errorf("path rejected: %s", res.Reason)
			}
			if blocked, reason := kernel.IsSecretFile(res.ResolvedPath); blocked {
				return "", fmt.Errorf("path rejected: %s", reason)
			}
			data, err := os.ReadFile(res.ResolvedPath)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	})

	reg.RegisterTool(dispatch.Tool{
		Name:        "list_dir",
		Description: "List files within the allowed base directories.",
		Tier:        safety.TierGreen,
		Schema: map[string]any{
			"path": "string, required",
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			if path == "" {
				path = "."
			}
			res := kernel.SanitizePath(path, baseDir)
			if !res.Safe {
				return "", fmt.Errorf("path rejected: %s", res.Reason)
			}
			entries, err := os.ReadDir(res.ResolvedPath)
			if err != nil {
				return "", err
			}
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				name := e.Name()
				if e.IsDir() {
					name += "/"
				}
				names = append(names, name)
			}
			sort.Strings(names)
			out := ""
			for _, n := range names {
				out += n + "\n"
			}
			return out, nil
		},
	})

	reg.RegisterTool(dispatch.Tool{
		Name:        "write_file",
		Description: "Write a text file within the allowed base directories.",
		Tier:        safety.TierYellow,
		Schema: map[string]any{
			"path":    "string, required",
			"content": "string, required",
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			content, _ := args["content"].(string)
			if path == "" {
				return "", fmt.Errorf("path is required")
			}
			res := kernel.SanitizePath(path, baseDir)
			if !res.Safe {
				return "", fmt.Errorf("path rejected: %s", res.Reason)
			}
			if blocked, reason := kernel.IsSecretFile(res.ResolvedPath); blocked {
				return "", fmt.Errorf("path rejected: %s", reason)
			}
			if err := os.MkdirAll(filepath.Dir(res.ResolvedPath), 0o755); err != nil {
				return "", err
			}
			if err := os.WriteFile(res.ResolvedPath, []byte(content), 0o644); err != nil {
				return "", err
			}
			return fmt.Sprintf("wrote %d bytes to %s", len(content), res.ResolvedPath), nil
		},
	})
}
