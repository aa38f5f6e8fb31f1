package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_AppliesDefaultsForOmittedSections(t *testing.T) {
	dir := t.TempDir()
	path := writeTempConfig(t, dir, "config.yaml", `
server:
  port: 9000
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 8192, cfg.Session.ContextWindowTokens)
	assert.Equal(t, 3, cfg.Monitor.RateLimitMax)
	assert.NotZero(t, cfg.Monitor.CriticalInterval)
}

func TestLoad_ResolvesIncludesAndEnvVars(t *testing.T) {
	dir := t.TempDir()
	writeTempConfig(t, dir, "base.yaml", `
hypervisor:
  base_url: "https://pve.local:8006"
  token: "${PVE_TOKEN}"
`)
	main := writeTempConfig(t, dir, "config.yaml", `
$include: base.yaml
server:
  port: 8443
`)

	t.Setenv("PVE_TOKEN", "secret-token")
	cfg, err := Load(main)
	require.NoError(t, err)
	assert.Equal(t, "https://pve.local:8006", cfg.Hypervisor.BaseURL)
	assert.Equal(t, "secret-token", cfg.Hypervisor.Token)
	assert.Equal(t, 8443, cfg.Server.Port)
}

func TestLoad_UnknownFieldIsRejected(t *testing.T) {
	dir := t.TempDir()
	path := writeTempConfig(t, dir, "config.yaml", `
server:
  bogus_field: true
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_DetectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeTempConfig(t, dir, "a.yaml", `
$include: b.yaml
`)
	b := writeTempConfig(t, dir, "b.yaml", `
$include: a.yaml
`)

	_, err := Load(b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}
