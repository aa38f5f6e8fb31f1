package safety

import (
	"fmt"
	"regexp"
	"strings"
)

// blockedCommandPatterns are destructive substrings that are never allowed,
// even under an active override — the override only widens which prefixes
// are acceptable, not this blocklist.
var blockedCommandPatterns = []*regexp.Regexp{
	regexp.MustCompile(`rm\s+-rf\s+/\s*($|[^a-zA-Z0-9._-])`),
	regexp.MustCompile(`mkfs\.\w+`),
	regexp.MustCompile(`\bfdisk\b`),
	regexp.MustCompile(`\bparted\b`),
	regexp.MustCompile(`chmod\s+-R\s+777`),
	regexp.MustCompile(`chown\s+-R\s+.*\s+/\s*($|[^a-zA-Z0-9._-])`),
	regexp.MustCompile(`curl[^|]*\|\s*sh\b`),
	regexp.MustCompile(`wget[^|]*\|\s*sh\b`),
	regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;`), // fork bomb
	regexp.MustCompile(`\bshutdown\b`),
	regexp.MustCompile(`\bpoweroff\b`),
	regexp.MustCompile(`\bhalt\b`),
	regexp.MustCompile(`>\s*/dev/sd[a-z]`),
	regexp.MustCompile("`"),
}

// allowedCommandPrefixes is the closed list of read/monitor/Proxmox/Docker/
// systemd utilities a command (or each `|`-separated segment) must begin
// with once the blocklist has cleared, and no override is active.
var allowedCommandPrefixes = []string{
	"cat ", "ls ", "ls", "df ", "du ", "free", "uptime", "uname",
	"ps ", "top", "systemctl status", "systemctl list", "journalctl",
	"pvesh ", "qm list", "qm status", "pct list", "pct status",
	"docker ps", "docker logs", "docker inspect", "docker stats",
	"grep ", "head ", "tail ", "wc ", "echo ", "sensors", "ip ", "ip",
	"vmstat", "iostat", "netstat", "ss ", "lsblk", "smartctl",
}

// CommandResult is the outcome of SanitizeCommand.
type CommandResult struct {
	Safe   bool
	Reason string
}

// SanitizeCommand trims and rejects an empty command, scans for blocked
// destructive substrings (always enforced, even under override), then —
// absent an override — requires the command (or each pipeline segment) to
// start with an allowed prefix.
// Backticks are always rejected; `$()` is permitted; `;` is not split here.
func (k *Kernel) SanitizeCommand(cmd string, override bool) CommandResult {
	trimmed := strings.TrimSpace(cmd)
	if trimmed == "" {
		return CommandResult{Reason: "empty command"}
	}

	lower := strings.ToLower(trimmed)
	for _, pattern := range blockedCommandPatterns {
		if pattern.MatchString(lower) {
			reason := "command matches a blocked destructive pattern"
			k.LogSafetyAudit(nopCtx(), "sanitize_command", false, reason+": "+trimmed)
			return CommandResult{Reason: reason}
		}
	}

	if override {
		return CommandResult{Safe: true}
	}

	segments := strings.Split(trimmed, "|")
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if !hasAllowedPrefix(seg) {
			reason := fmt.Sprintf("%q is not an allowed command prefix", firstWord(seg))
			k.LogSafetyAudit(nopCtx(), "sanitize_command", false, reason)
			return CommandResult{Reason: reason}
		}
	}

	return CommandResult{Safe: true}
}

func hasAllowedPrefix(seg string) bool {
	for _, prefix := range allowedCommandPrefixes {
		if strings.HasPrefix(seg, prefix) {
			return true
		}
	}
	return false
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return s
	}
	return fields[0]
}

// nodeNamePattern is the closed bare-identifier charset allowed for a
// cluster node name.
var nodeNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,62}$`)

// SanitizeNodeName validates a cluster node name and returns it unchanged
// if safe. Unlike the other sanitizers this one signals failure via a
// non-nil error rather than a result struct.
func (k *Kernel) SanitizeNodeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if !nodeNamePattern.MatchString(trimmed) {
		reason := fmt.Sprintf("%q is not a valid node name", name)
		k.LogSafetyAudit(nopCtx(), "sanitize_node_name", false, reason)
		return "", fmt.Errorf("invalid node name: %s", name)
	}
	return trimmed, nil
}

// secretFilePatterns flags basenames likely to hold credentials or keys.
var secretFilePatterns = []string{
	"key", "secret", "token", "credential", "password", "private",
	".pem", ".key", ".p12", ".pfx",
	"id_rsa", "id_ed25519", "id_ecdsa", "id_dsa",
}

// sensitiveDirSegments are path segments that mark an entire subtree as
// sensitive regardless of basename.
var sensitiveDirSegments = []string{
	".ssh", ".gnupg", ".git", ".aws", ".azure", ".config/gcloud",
}

// IsSecretFile matches a path's basename against the closed secret-pattern
// set and its segments against the closed sensitive-directory set.
func (k *Kernel) IsSecretFile(path string) (bool, string) {
	lower := strings.ToLower(path)
	base := lower
	if idx := strings.LastIndexByte(lower, '/'); idx >= 0 {
		base = lower[idx+1:]
	}
	for _, pattern := range secretFilePatterns {
		if strings.Contains(base, pattern) {
			return true, fmt.Sprintf("%s matches a secret-file pattern", path)
		}
	}
	for _, seg := range sensitiveDirSegments {
		if strings.Contains(lower, "/"+seg+"/") || strings.HasSuffix(lower, "/"+seg) {
			return true, fmt.Sprintf("%s is within a sensitive directory (%s)", path, seg)
		}
	}
	if base == ".env" || strings.HasPrefix(base, ".env.") {
		return true, fmt.Sprintf("%s is an environment file", path)
	}
	return false, ""
}
