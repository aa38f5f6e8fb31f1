// Package config loads the control plane's single YAML configuration file
// into a root Config struct composed of nested per-concern structs, each
// with its own ApplyDefaults.
package config

import (
	"time"

	"github.com/homelab/jarvis/internal/tts"
)

// Config is the root configuration for the control plane.
type Config struct {
	Version    int              `yaml:"version"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Safety     SafetyConfig     `yaml:"safety"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Session    SessionConfig    `yaml:"session"`
	Audio      AudioConfig      `yaml:"audio"`
	Hypervisor HypervisorConfig `yaml:"hypervisor"`
	SmartHome  SmartHomeConfig  `yaml:"smart_home"`
	NVR        NVRConfig        `yaml:"nvr"`
	LLM        LLMConfig        `yaml:"llm"`
	Email      EmailConfig      `yaml:"email"`
	RemoteShell RemoteShellConfig `yaml:"remote_shell"`
	TTS        tts.Config       `yaml:"tts"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

// ApplyDefaults fills in every nested section's defaults.
func (c *Config) ApplyDefaults() {
	c.Server.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Safety.ApplyDefaults()
	c.Monitor.ApplyDefaults()
	c.Session.ApplyDefaults()
	c.Audio.ApplyDefaults()
	c.Hypervisor.ApplyDefaults()
	c.SmartHome.ApplyDefaults()
	c.NVR.ApplyDefaults()
	c.LLM.ApplyDefaults()
	c.Email.ApplyDefaults()
	c.RemoteShell.ApplyDefaults()
	c.TTS.ApplyDefaults()
	c.Tracing.ApplyDefaults()
}

// ServerConfig configures the REST + realtime gateway.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	JWTSecret        string        `yaml:"jwt_secret"`
	TokenExpiry      time.Duration `yaml:"token_expiry"`
	OperatorPassword string        `yaml:"operator_password"`
}

func (c *ServerConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8443
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.TokenExpiry == 0 {
		c.TokenExpiry = 7 * 24 * time.Hour
	}
}

// DatabaseConfig configures the persistence layer.
type DatabaseConfig struct {
	// Driver is "sqlite" (default, modernc.org/sqlite) or "postgres"
	// (jackc/pgx/v5), selected per deployment.
	Driver string `yaml:"driver"`
	// DSN is the sqlite file path or postgres connection string.
	DSN             string        `yaml:"dsn"`
	MigrationsDir   string        `yaml:"migrations_dir"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

func (c *DatabaseConfig) ApplyDefaults() {
	if c.Driver == "" {
		c.Driver = "sqlite"
	}
	if c.DSN == "" {
		c.DSN = "./jarvis.db"
	}
	if c.MigrationsDir == "" {
		c.MigrationsDir = "./migrations"
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 8
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
}

// ProtectedResourceConfig declares one entry of the protected resource
// table loaded into the safety kernel at startup.
type ProtectedResourceConfig struct {
	VMID    string `yaml:"vmid"`
	Service string `yaml:"service"`
	Label   string `yaml:"label"`
}

// SafetyConfig configures the safety kernel (C1).
type SafetyConfig struct {
	ApprovalKeyword    string                    `yaml:"approval_keyword"`
	AllowedBaseDir     string                    `yaml:"allowed_base_dir"`
	ProtectedResources []ProtectedResourceConfig `yaml:"protected_resources"`
}

func (c *SafetyConfig) ApplyDefaults() {
	if c.AllowedBaseDir == "" {
		c.AllowedBaseDir = "/var/lib/jarvis/files"
	}
}

// MonitorConfig configures the autonomous monitor and runbook engine (C4).
type MonitorConfig struct {
	CriticalInterval   time.Duration `yaml:"critical_interval"`
	ImportantInterval  time.Duration `yaml:"important_interval"`
	RoutineInterval    time.Duration `yaml:"routine_interval"`
	BackgroundInterval time.Duration `yaml:"background_interval"`
	StartupDelay       time.Duration `yaml:"startup_delay"`
	StorageWarnPercent float64       `yaml:"storage_warn_percent"`
	StorageCritPercent float64       `yaml:"storage_crit_percent"`
	AuditRetention     time.Duration `yaml:"audit_retention"`
	DefaultAutonomy    int           `yaml:"default_autonomy_level"`
	RateLimitWindow    time.Duration `yaml:"rate_limit_window"`
	RateLimitMax       int           `yaml:"rate_limit_max"`
}

func (c *MonitorConfig) ApplyDefaults() {
	if c.CriticalInterval == 0 {
		c.CriticalInterval = 12 * time.Second
	}
	if c.ImportantInterval == 0 {
		c.ImportantInterval = 32 * time.Second
	}
	if c.RoutineInterval == 0 {
		c.RoutineInterval = 5 * time.Minute
	}
	if c.BackgroundInterval == 0 {
		c.BackgroundInterval = 30 * time.Minute
	}
	if c.StartupDelay == 0 {
		c.StartupDelay = 5 * time.Second
	}
	if c.StorageWarnPercent == 0 {
		c.StorageWarnPercent = 85
	}
	if c.StorageCritPercent == 0 {
		c.StorageCritPercent = 95
	}
	if c.AuditRetention == 0 {
		c.AuditRetention = 30 * 24 * time.Hour
	}
	if c.RateLimitWindow == 0 {
		c.RateLimitWindow = time.Hour
	}
	if c.RateLimitMax == 0 {
		c.RateLimitMax = 3
	}
}

// SessionConfig configures the session and context manager (C5).
type SessionConfig struct {
	ContextWindowTokens int     `yaml:"context_window_tokens"`
	ResponseReserve     int     `yaml:"response_reserve"`
	RecentRatio         float64 `yaml:"recent_ratio"`
	SummarizeThreshold  int     `yaml:"summarize_threshold"`
	SummarizeKeepRecent int     `yaml:"summarize_keep_recent"`
}

func (c *SessionConfig) ApplyDefaults() {
	if c.ContextWindowTokens == 0 {
		c.ContextWindowTokens = 8192
	}
	if c.ResponseReserve == 0 {
		c.ResponseReserve = 1024
	}
	if c.RecentRatio == 0 {
		c.RecentRatio = 0.7
	}
	if c.SummarizeThreshold == 0 {
		c.SummarizeThreshold = 25
	}
	if c.SummarizeKeepRecent == 0 {
		c.SummarizeKeepRecent = 10
	}
}

// AudioConfig configures the streaming audio pipeline (C6).
type AudioConfig struct {
	Enabled          bool          `yaml:"enabled"`
	PrimaryDeadline  time.Duration `yaml:"primary_deadline"`
	FallbackDeadline time.Duration `yaml:"fallback_deadline"`
	RecoveryInterval time.Duration `yaml:"recovery_interval"`
	PreRollFrames    int           `yaml:"pre_roll_frames"`
	SampleRate       int           `yaml:"sample_rate"`
	TrailingSilence  time.Duration `yaml:"trailing_silence"`
	HardCeiling      time.Duration `yaml:"hard_ceiling"`
	TranscriptionAPIKey string     `yaml:"transcription_api_key"`
	TranscriptionModel  string     `yaml:"transcription_model"`
}

func (c *AudioConfig) ApplyDefaults() {
	if c.PrimaryDeadline == 0 {
		c.PrimaryDeadline = 3 * time.Second
	}
	if c.FallbackDeadline == 0 {
		c.FallbackDeadline = 10 * time.Second
	}
	if c.RecoveryInterval == 0 {
		c.RecoveryInterval = 30 * time.Second
	}
	if c.PreRollFrames == 0 {
		c.PreRollFrames = 16
	}
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.TrailingSilence == 0 {
		c.TrailingSilence = 2 * time.Second
	}
	if c.HardCeiling == 0 {
		c.HardCeiling = 30 * time.Second
	}
}

// HypervisorConfig configures the Proxmox-style hypervisor client.
type HypervisorConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

func (c *HypervisorConfig) ApplyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

// SmartHomeConfig configures the smart-home (Home Assistant-style) client.
type SmartHomeConfig struct {
	BaseURL          string        `yaml:"base_url"`
	Token            string        `yaml:"token"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxResponseBytes int64         `yaml:"max_response_bytes"`
}

func (c *SmartHomeConfig) ApplyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxResponseBytes == 0 {
		c.MaxResponseBytes = 4 << 20
	}
}

// NVRConfig configures the camera / NVR proxy surface.
type NVRConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

func (c *NVRConfig) ApplyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

// TracingConfig configures the OpenTelemetry exporter. Endpoint empty means
// tracing is disabled and a no-op tracer is used.
type TracingConfig struct {
	ServiceName  string  `yaml:"service_name"`
	Endpoint     string  `yaml:"endpoint"`
	Environment  string  `yaml:"environment"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Insecure     bool    `yaml:"insecure"`
}

func (c *TracingConfig) ApplyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "jarvis"
	}
	if c.SamplingRate == 0 {
		c.SamplingRate = 1.0
	}
}

// LLMConfig configures the chat/tool-calling model provider.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // "anthropic", "openai", "bedrock", or "google"
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`

	// Bedrock-only: AWS credentials. Empty AccessKeyID/SecretAccessKey falls
	// back to the default provider chain (env, shared config, IAM role).
	BedrockRegion          string `yaml:"bedrock_region"`
	BedrockAccessKeyID     string `yaml:"bedrock_access_key_id"`
	BedrockSecretAccessKey string `yaml:"bedrock_secret_access_key"`
}

func (c *LLMConfig) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "anthropic"
	}
	if c.Model == "" {
		c.Model = "claude-sonnet-4-5"
	}
}

// EmailConfig configures the outgoing notification path, delegated through
// an SSH command on a configured node (see internal/email).
type EmailConfig struct {
	Node    string `yaml:"node"`
	Command string `yaml:"command"`
	To      string `yaml:"to"`
}

func (c *EmailConfig) ApplyDefaults() {
	if c.Command == "" {
		c.Command = "mail"
	}
}

// RemoteShellNode maps a cluster node name to its SSH address.
type RemoteShellNode struct {
	Node string `yaml:"node"`
	Addr string `yaml:"addr"`
}

// RemoteShellConfig configures the SSH pool the system tool group and the
// email delegate both run commands through.
type RemoteShellConfig struct {
	User           string            `yaml:"user"`
	PrivateKeyPath string            `yaml:"private_key_path"`
	Nodes          []RemoteShellNode `yaml:"nodes"`
	Timeout        time.Duration     `yaml:"timeout"`
}

func (c *RemoteShellConfig) ApplyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 15 * time.Second
	}
}
