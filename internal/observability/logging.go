package observability

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// LogConfig configures the root structured logger.
type LogConfig struct {
	// Level sets the minimum log level: "debug", "info", "warn", "error"
	Level string

	// Format specifies output format: "json" or "text"
	// JSON format is recommended for production; text for development
	Format string

	// Output is the writer for log output (defaults to os.Stdout)
	Output io.Writer

	// AddSource includes file and line number in log records
	AddSource bool

	// RedactPatterns are additional regex patterns for sensitive data
	// redaction, layered on top of DefaultRedactPatterns.
	RedactPatterns []string
}

// ContextKey is the type for context keys used to carry correlation fields
// into the redacting handler's Handle call.
type ContextKey string

const (
	// RequestIDKey is the context key for the gateway's per-request ID.
	RequestIDKey ContextKey = "request_id"

	// SessionIDKey is the context key for the chat/voice session ID.
	SessionIDKey ContextKey = "session_id"

	// UserIDKey is the context key for the authenticated operator's user ID
	// (auth.Entry.UserID).
	UserIDKey ContextKey = "user_id"

	// CallerKey is the context key for the dispatcher's Caller enum
	// (api/monitor/voice/chat) — which surface originated the log line.
	CallerKey ContextKey = "caller"
)

// DefaultRedactPatterns contains regex patterns for sensitive data this
// plane's logs are likely to carry: hypervisor bearer tokens, LLM/TTS
// provider API keys, and the JWTs minted by internal/auth.
var DefaultRedactPatterns = []string{
	`(?i)(api[_-]?key|apikey)[\s:=]+["\']?([a-zA-Z0-9_\-]{16,})["\']?`,
	`(?i)(bearer|token)[\s:]+([a-zA-Z0-9_\-\.]{16,})`,
	`(?i)(secret|password|passwd|pwd)[\s:=]+["\']?([^\s"']{8,})["\']?`,

	// Anthropic API keys
	`sk-ant-[a-zA-Z0-9_-]{95,}`,

	// OpenAI API keys
	`sk-[a-zA-Z0-9]{48,}`,

	// JWT tokens (internal/auth's bearer tokens)
	`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`,

	// Generic hex secrets (32+ chars)
	`(?i)(secret|key|token)[\s:=]+["\']?([a-fA-F0-9]{32,})["\']?`,
}

// sensitiveAttrKeys are attribute/map keys whose value is replaced wholesale
// rather than pattern-matched, since the key alone is enough signal.
var sensitiveAttrKeys = map[string]bool{
	"password":      true,
	"passwd":        true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"private_key":   true,
	"privatekey":    true,
	"auth":          true,
	"authorization": true,
}

// redactingHandler wraps an slog.Handler to redact sensitive substrings from
// the message and every string-valued attribute before the record reaches
// the wrapped handler, and to inject correlation fields carried on the
// record's context (request_id, session_id, user_id, caller).
//
// This is the root handler for the whole process: every package in this
// repo that accepts a *slog.Logger (dispatch, safety, monitor, gateway,
// audio, session) logs through whatever handler cmd/jarvis installed as the
// default, so wiring redaction in here protects every log line without
// touching any of those call sites.
type redactingHandler struct {
	inner   slog.Handler
	redacts []*regexp.Regexp
}

func newRedactingHandler(inner slog.Handler, extraPatterns []string) *redactingHandler {
	all := make([]string, 0, len(DefaultRedactPatterns)+len(extraPatterns))
	all = append(all, DefaultRedactPatterns...)
	all = append(all, extraPatterns...)

	redacts := make([]*regexp.Regexp, 0, len(all))
	for _, pattern := range all {
		if re, err := regexp.Compile(pattern); err == nil {
			redacts = append(redacts, re)
		}
	}
	return &redactingHandler{inner: inner, redacts: redacts}
}

func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *redactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, h.redactString(r.Message), r.PC)

	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redactAttr(a))
		return true
	})

	if v, ok := ctx.Value(RequestIDKey).(string); ok && v != "" {
		out.AddAttrs(slog.String("request_id", v))
	}
	if v, ok := ctx.Value(SessionIDKey).(string); ok && v != "" {
		out.AddAttrs(slog.String("session_id", v))
	}
	if v, ok := ctx.Value(UserIDKey).(string); ok && v != "" {
		out.AddAttrs(slog.String("user_id", v))
	}
	if v, ok := ctx.Value(CallerKey).(string); ok && v != "" {
		out.AddAttrs(slog.String("caller", v))
	}

	return h.inner.Handle(ctx, out)
}

func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redactAttr(a)
	}
	return &redactingHandler{inner: h.inner.WithAttrs(redacted), redacts: h.redacts}
}

func (h *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{inner: h.inner.WithGroup(name), redacts: h.redacts}
}

// redactAttr redacts an individual attribute's value. A key on
// sensitiveAttrKeys is replaced wholesale; anything else is pattern-matched.
func (h *redactingHandler) redactAttr(a slog.Attr) slog.Attr {
	if sensitiveAttrKeys[strings.ToLower(strings.ReplaceAll(a.Key, "-", "_"))] {
		return slog.String(a.Key, "[REDACTED]")
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.redactString(a.Value.String()))
	case slog.KindAny:
		switch v := a.Value.Any().(type) {
		case error:
			return slog.String(a.Key, h.redactString(v.Error()))
		case []byte:
			return slog.String(a.Key, h.redactString(string(v)))
		case map[string]any:
			return slog.Any(a.Key, h.redactMap(v))
		default:
			if b, err := json.Marshal(v); err == nil {
				return slog.String(a.Key, h.redactString(string(b)))
			}
			return a
		}
	default:
		return a
	}
}

func (h *redactingHandler) redactString(s string) string {
	for _, re := range h.redacts {
		s = re.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}

func (h *redactingHandler) redactMap(m map[string]any) map[string]any {
	result := make(map[string]any, len(m))
	for k, v := range m {
		if sensitiveAttrKeys[strings.ToLower(strings.ReplaceAll(k, "-", "_"))] {
			result[k] = "[REDACTED]"
			continue
		}
		switch val := v.(type) {
		case string:
			result[k] = h.redactString(val)
		case map[string]any:
			result[k] = h.redactMap(val)
		default:
			result[k] = val
		}
	}
	return result
}

// NewLogger builds the process's root *slog.Logger: a JSON or text handler
// (per cfg.Format) wrapped in the redacting handler above. Every package
// that takes a *slog.Logger, or falls back to slog.Default(), benefits
// without further changes once cmd/jarvis installs this as the default.
//
// If cfg.Output is nil, logs are written to os.Stdout. If cfg.Level is
// empty or unrecognized, defaults to "info". If cfg.Format is empty or not
// "text", defaults to JSON.
func NewLogger(cfg LogConfig) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:     LogLevelFromString(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var inner slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		inner = slog.NewTextHandler(cfg.Output, opts)
	} else {
		inner = slog.NewJSONHandler(cfg.Output, opts)
	}

	return slog.New(newRedactingHandler(inner, cfg.RedactPatterns))
}

// WithRequestID returns a context carrying a gateway request ID, picked up
// by NewLogger's handler and attached to every log record logged through it
// with *Context-suffixed slog methods (InfoContext, ErrorContext, ...).
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithSessionID returns a context carrying a chat/voice session ID.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// WithUserID returns a context carrying the authenticated operator's user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithCaller returns a context carrying the dispatcher's Caller enum value
// (api/monitor/voice/chat).
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, CallerKey, caller)
}

// LogLevelFromString converts a string to a slog.Level. Returns LevelInfo
// if the string is empty or not recognized.
func LogLevelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
