package safety

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// nopCtx backs the synchronous path/URL checks below, which run without a
// caller-supplied context; audit logging still flows through the Kernel.
func nopCtx() context.Context { return context.Background() }

// PathResult is the outcome of SanitizePath.
type PathResult struct {
	Safe         bool
	ResolvedPath string
	Reason       string
}

func unsafePath(reason string) PathResult { return PathResult{Reason: reason} }
func safePath(resolved string) PathResult { return PathResult{Safe: true, ResolvedPath: resolved} }

// protectedPathPrefixes is the closed deny-list. A trailing separator means
// "and subtree".
var protectedPathPrefixes = []string{
	"/etc/pve/priv/",
	"/etc/shadow",
	"/etc/ssh/ssh_host_",
	"/root/.ssh/",
	"/root/.gnupg/",
}

// allowedPathBases is the closed allow-list of base directories tool calls
// may resolve paths under.
var allowedPathBases = []string{
	"/var/lib/jarvis",
	"/tmp",
	"/mnt",
	"/srv",
}

// SanitizePath URL-decodes the input, resolves it against baseDir, checks
// protected prefixes, checks containment, checks the allow-list, then
// re-validates against the symlink-resolved real path (or its parent, if
// the path does not yet exist).
func (k *Kernel) SanitizePath(userPath string, baseDir string) PathResult {
	if baseDir == "" {
		baseDir = "/"
	}

	decoded, err := url.QueryUnescape(userPath)
	if err != nil {
		k.LogSafetyAudit(nopCtx(), "sanitize_path", false, "malformed URL encoding: "+userPath)
		return unsafePath("malformed path encoding")
	}

	resolved := decoded
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(baseDir, resolved)
	}
	resolved = filepath.Clean(resolved)

	if blocked, reason := matchProtectedPrefix(resolved); blocked {
		k.LogSafetyAudit(nopCtx(), "sanitize_path", false, reason)
		return unsafePath(reason)
	}

	if baseDir != "/" {
		if !(resolved == baseDir || strings.HasPrefix(resolved, baseDir+string(filepath.Separator))) {
			reason := fmt.Sprintf("%s escapes required base %s", resolved, baseDir)
			k.LogSafetyAudit(nopCtx(), "sanitize_path", false, reason)
			return unsafePath(reason)
		}
	}

	if !underAllowedBase(resolved) {
		reason := fmt.Sprintf("%s is outside the allowed base directories", resolved)
		k.LogSafetyAudit(nopCtx(), "sanitize_path", false, reason)
		return unsafePath(reason)
	}

	final := resolved
	if info, err := os.Lstat(resolved); err == nil {
		_ = info
		real, err := filepath.EvalSymlinks(resolved)
		if err != nil {
			reason := "failed to resolve symlink: " + err.Error()
			k.LogSafetyAudit(nopCtx(), "sanitize_path", false, reason)
			return unsafePath(reason)
		}
		if blocked, reason := matchProtectedPrefix(real); blocked {
			k.LogSafetyAudit(nopCtx(), "sanitize_path", false, reason)
			return unsafePath(reason)
		}
		if baseDir != "/" && !(real == baseDir || strings.HasPrefix(real, baseDir+string(filepath.Separator))) {
			reason := fmt.Sprintf("%s resolves outside required base %s", real, baseDir)
			k.LogSafetyAudit(nopCtx(), "sanitize_path", false, reason)
			return unsafePath(reason)
		}
		if !underAllowedBase(real) {
			reason := fmt.Sprintf("%s resolves outside the allowed base directories", real)
			k.LogSafetyAudit(nopCtx(), "sanitize_path", false, reason)
			return unsafePath(reason)
		}
		final = real
	} else {
		parent := filepath.Dir(resolved)
		if realParent, err := filepath.EvalSymlinks(parent); err == nil {
			if blocked, reason := matchProtectedPrefix(realParent); blocked {
				k.LogSafetyAudit(nopCtx(), "sanitize_path", false, reason)
				return unsafePath(reason)
			}
			final = filepath.Join(realParent, filepath.Base(resolved))
		}
	}

	return safePath(final)
}

func matchProtectedPrefix(p string) (bool, string) {
	for _, prefix := range protectedPathPrefixes {
		if strings.HasSuffix(prefix, "/") {
			if p == strings.TrimSuffix(prefix, "/") || strings.HasPrefix(p, prefix) {
				return true, fmt.Sprintf("%s is within the protected path %s", p, prefix)
			}
		} else if p == prefix {
			return true, fmt.Sprintf("%s is a protected path", p)
		}
	}
	return false, ""
}

func underAllowedBase(p string) bool {
	for _, base := range allowedPathBases {
		if p == base || strings.HasPrefix(p, base+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
