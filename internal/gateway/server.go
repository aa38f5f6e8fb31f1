// Package gateway implements the REST and realtime surface the operator's
// browser and voice clients talk to: chat and tool execution over HTTP, and
// three websocket namespaces (/ws/chat, /ws/voice, /ws/events) for
// streaming replies, voice turns, and the broadcast event feed.
package gateway

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/homelab/jarvis/internal/audio"
	"github.com/homelab/jarvis/internal/auth"
	"github.com/homelab/jarvis/internal/dispatch"
	"github.com/homelab/jarvis/internal/llm"
	"github.com/homelab/jarvis/internal/monitor"
	"github.com/homelab/jarvis/internal/observability"
	"github.com/homelab/jarvis/internal/session"
	"github.com/homelab/jarvis/internal/store"
)

// Config tunes the chat loop and voice pipeline the gateway drives.
type Config struct {
	Model             string
	Provider          string
	SystemPrompt      string
	MaxToolIterations int
}

// ApplyDefaults fills in the conservative defaults.
func (c *Config) ApplyDefaults() {
	if c.Model == "" {
		c.Model = "claude-sonnet-4-5"
	}
	if c.Provider == "" {
		c.Provider = "anthropic"
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = defaultSystemPrompt
	}
	if c.MaxToolIterations == 0 {
		c.MaxToolIterations = 6
	}
}

const defaultSystemPrompt = "You are the homelab control plane's assistant. " +
	"You can inspect and act on the cluster, smart-home devices, files, and reminders " +
	"through the tools available to you. Be concise. Confirm before anything destructive."

// Server holds every dependency the gateway's handlers need and owns the
// live websocket state (the event hub, the tool-confirmation pending set).
type Server struct {
	cfg Config

	logger   *slog.Logger
	auth     *auth.Service
	registry *dispatch.Registry
	llmClt   llm.Client
	sessions *session.Store
	summ     *session.Summarizer
	store    *store.Store
	monitor  *monitor.Monitor
	tracker  ClusterStatus
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	newTTSRouter func() *audio.Router
	transcriber  Transcriber

	hub *Hub

	pending *pendingConfirmations
}

// ClusterStatus is the subset of *cluster.Tracker the monitor status handler
// reads. Declared here so the gateway doesn't need the full tracker surface.
type ClusterStatus interface {
	OnlineNodeCount() (online, total int)
}

// Deps bundles every collaborator NewServer wires in.
type Deps struct {
	Logger    *slog.Logger
	Auth      *auth.Service
	Registry  *dispatch.Registry
	LLM       llm.Client
	Sessions  *session.Store
	Summarizer *session.Summarizer
	Store     *store.Store
	Monitor   *monitor.Monitor
	Tracker   ClusterStatus
	Metrics   *observability.Metrics
	Tracer    *observability.Tracer
	// NewTTSRouter constructs a fresh audio.Router for one voice response.
	// A Router is deliberately not shared across responses — its per-
	// response engine lock and synthesis cache must not leak between
	// callers (see audio.Router's doc comment).
	NewTTSRouter func() *audio.Router
	Transcriber  Transcriber
}

// NewServer constructs a Server. cfg.ApplyDefaults is the caller's
// responsibility.
func NewServer(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:       cfg,
		logger:    logger.With("component", "gateway"),
		auth:      deps.Auth,
		registry:  deps.Registry,
		llmClt:    deps.LLM,
		sessions:  deps.Sessions,
		summ:      deps.Summarizer,
		store:     deps.Store,
		monitor:      deps.Monitor,
		tracker:      deps.Tracker,
		metrics:      deps.Metrics,
		tracer:       deps.Tracer,
		newTTSRouter: deps.NewTTSRouter,
		transcriber:  deps.Transcriber,
		hub:          NewHub(logger),
		pending:   newPendingConfirmations(),
	}
	return s
}

// Hub returns the event broadcaster, so callers can wire it as both the
// monitor's EventSink and the display tool group's Publisher — both share
// the identical Publish(ctx, models.Event) shape.
func (s *Server) Hub() *Hub { return s.hub }

// SetMonitor attaches the autonomous monitor once it's constructed. The
// monitor itself depends on the gateway's Hub as its EventSink, so it can
// only be built after NewServer returns — this closes that wiring loop.
func (s *Server) SetMonitor(m *monitor.Monitor) { s.monitor = m }

// Router builds the gin engine with every REST route and websocket upgrade
// endpoint mounted.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.tracingMiddleware())
	r.Use(s.requestLogger())

	r.GET("/api/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/api/auth/login", s.handleLogin)

	api := r.Group("/api")
	api.Use(auth.RequireAuth(s.auth, s.logger))
	{
		api.POST("/chat", s.handleChat)
		api.POST("/chat/confirm", s.handleChatConfirm)

		api.GET("/tools", s.handleListTools)
		api.POST("/tools/execute", s.handleExecuteTool)

		api.GET("/memory/events", s.handleListEvents)
		api.GET("/memory/events/unresolved", s.handleListUnresolvedEvents)
		api.POST("/memory/events/:id/resolve", s.handleResolveEvent)
		api.GET("/memory/preferences/kill_switch", s.handleGetKillSwitch)
		api.PUT("/memory/preferences/kill_switch", s.handleSetKillSwitch)
		api.GET("/memory/preferences/autonomy_level", s.handleGetAutonomyLevel)
		api.PUT("/memory/preferences/autonomy_level", s.handleSetAutonomyLevel)

		api.GET("/monitor/status", s.handleMonitorStatus)
		api.PUT("/monitor/killswitch", s.handleSetKillSwitch)
		api.PUT("/monitor/autonomy-level", s.handleSetAutonomyLevel)
		api.GET("/monitor/actions", s.handleMonitorActions)
		api.POST("/monitor/test-alert", s.handleTestAlert)
	}

	ws := r.Group("/ws")
	ws.Use(auth.RequireAuth(s.auth, s.logger))
	{
		ws.GET("/events", s.handleWSEvents)
		ws.GET("/chat", s.handleWSChat)
		ws.GET("/voice", s.handleWSVoice)
	}

	return r
}

// requestLogger is a thin structured-logging middleware, since gin's default
// logger writes plain text rather than slog records.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", duration,
		)
		s.metrics.RecordHTTPRequest(c.Request.Method, c.FullPath(), strconv.Itoa(c.Writer.Status()), duration.Seconds())
	}
}

// tracingMiddleware opens one span per HTTP request, ahead of requestLogger
// so the logged duration and the span duration cover the same window. A nil
// tracer (never constructed, e.g. in tests) leaves the context untouched.
func (s *Server) tracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.tracer == nil {
			c.Next()
			return
		}
		ctx, span := s.tracer.TraceHTTPRequest(c.Request.Context(), c.Request.Method, c.FullPath())
		defer span.End()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		if c.Writer.Status() >= 500 {
			s.tracer.RecordError(span, fmt.Errorf("http %d", c.Writer.Status()))
		}
	}
}

func writeError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}
