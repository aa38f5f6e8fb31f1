package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/homelab/jarvis/internal/audio"
	"github.com/homelab/jarvis/internal/audit"
	"github.com/homelab/jarvis/internal/auth"
	"github.com/homelab/jarvis/internal/cluster"
	"github.com/homelab/jarvis/internal/config"
	"github.com/homelab/jarvis/internal/dispatch"
	"github.com/homelab/jarvis/internal/email"
	"github.com/homelab/jarvis/internal/gateway"
	"github.com/homelab/jarvis/internal/hypervisor"
	"github.com/homelab/jarvis/internal/llm"
	"github.com/homelab/jarvis/internal/monitor"
	"github.com/homelab/jarvis/internal/observability"
	"github.com/homelab/jarvis/internal/remoteshell"
	"github.com/homelab/jarvis/internal/safety"
	"github.com/homelab/jarvis/internal/session"
	"github.com/homelab/jarvis/internal/store"
)

// runtime bundles every constructed collaborator a serve/doctor invocation
// needs, so main's subcommands don't each repeat this wiring.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	kernel  *safety.Kernel
	audit   *audit.Logger
	registry *dispatch.Registry
	llmClt  llm.Client
	tracker *cluster.Tracker
	hv      *hypervisor.Client
	monitor *monitor.Monitor
	gw      *gateway.Server
	tracingShutdown func(context.Context) error
}

// buildRuntime loads config and wires every component (C1-C6) into a single
// process, the way buildServeCmd's runServe does in the teacher CLI.
func buildRuntime(ctx context.Context, logger *slog.Logger) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	db, err := store.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.Migrate(cfg.Database.Driver); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	auditLogger, err := audit.NewLogger(audit.Config{
		Enabled:               true,
		Level:                 audit.LevelInfo,
		Format:                audit.FormatJSON,
		Output:                "stdout",
		IncludeToolInput:      true,
		IncludeToolOutput:     true,
		IncludeMessageContent: false,
		MaxFieldSize:          4096,
		SampleRate:            1.0,
		BufferSize:            256,
	})
	if err != nil {
		return nil, fmt.Errorf("init audit logger: %w", err)
	}

	metrics := observability.NewMetrics()
	tracer, tracingShutdown := observability.NewTracer(observability.TraceConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
		EnableInsecure: cfg.Tracing.Insecure,
	})

	kernel := safety.New(logger, cfg.Safety.ApprovalKeyword)
	resources := make([]safety.ProtectedResource, 0, len(cfg.Safety.ProtectedResources))
	for _, r := range cfg.Safety.ProtectedResources {
		resources = append(resources, safety.ProtectedResource{VMID: r.VMID, Service: r.Service, Label: r.Label})
	}
	kernel.SetProtectedResources(resources)

	registry := dispatch.NewRegistry(kernel, logger)
	registry.SetAuditLogger(auditLogger)
	registry.SetMetrics(metrics)

	hv, err := hypervisor.NewClient(hypervisor.Config{
		BaseURL: cfg.Hypervisor.BaseURL,
		Token:   cfg.Hypervisor.Token,
		Timeout: cfg.Hypervisor.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("build hypervisor client: %w", err)
	}

	var remoteShellPool *remoteshell.Pool
	if cfg.RemoteShell.PrivateKeyPath != "" {
		key, err := os.ReadFile(cfg.RemoteShell.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read remote shell key: %w", err)
		}
		nodes := make([]remoteshell.NodeAddr, 0, len(cfg.RemoteShell.Nodes))
		for _, n := range cfg.RemoteShell.Nodes {
			nodes = append(nodes, remoteshell.NodeAddr{Node: n.Node, Addr: n.Addr})
		}
		remoteShellPool, err = remoteshell.NewPool(remoteshell.Config{
			User:       cfg.RemoteShell.User,
			PrivateKey: key,
			Nodes:      nodes,
			Timeout:    cfg.RemoteShell.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("build remote shell pool: %w", err)
		}
	}

	llmClt, err := llm.NewFromConfig(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("build llm client: %w", err)
	}

	tracker := cluster.NewTracker(nil)
	evaluator := cluster.NewThresholdEvaluator()

	sessions := session.NewStore(nil)
	summCfg := session.SummarizeConfig{Threshold: cfg.Session.SummarizeThreshold, KeepRecent: cfg.Session.SummarizeKeepRecent}
	window := session.ContextWindow{
		ContextWindowTokens: cfg.Session.ContextWindowTokens,
		ResponseReserve:     cfg.Session.ResponseReserve,
		RecentRatio:         cfg.Session.RecentRatio,
	}
	summarizer := session.NewSummarizer(sessions, llm.SummaryAdapter{Client: llmClt, Model: cfg.LLM.Model}, summCfg, window)

	gwCfg := gateway.Config{Model: cfg.LLM.Model, Provider: cfg.LLM.Provider}
	gwCfg.ApplyDefaults()
	authSvc := auth.NewService(auth.Config{
		JWTSecret:        cfg.Server.JWTSecret,
		TokenExpiry:      cfg.Server.TokenExpiry,
		OperatorPassword: cfg.Server.OperatorPassword,
	})

	var newTTSRouter func() *audio.Router
	var transcriber gateway.Transcriber
	if cfg.Audio.Enabled {
		newTTSRouter = func() *audio.Router {
			engine := gateway.NewTTSEngine(&cfg.TTS, "voice")
			return audio.NewRouter(engine, engine, audio.RouterConfig{
				PrimaryDeadline:  cfg.Audio.PrimaryDeadline,
				FallbackDeadline: cfg.Audio.FallbackDeadline,
				RecoveryInterval: cfg.Audio.RecoveryInterval,
			}, nil)
		}
		if cfg.Audio.TranscriptionAPIKey != "" {
			t, err := gateway.NewWhisperTranscriber(cfg.Audio.TranscriptionAPIKey, cfg.Audio.TranscriptionModel)
			if err != nil {
				return nil, fmt.Errorf("build transcriber: %w", err)
			}
			transcriber = t
		}
	}

	gw := gateway.NewServer(gwCfg, gateway.Deps{
		Logger:       logger,
		Auth:         authSvc,
		Registry:     registry,
		LLM:          llmClt,
		Sessions:     sessions,
		Summarizer:   summarizer,
		Store:        db,
		Tracker:      tracker,
		Metrics:      metrics,
		Tracer:       tracer,
		NewTTSRouter: newTTSRouter,
		Transcriber:  transcriber,
	})
	gw.Hub().SetRecorder(db)

	runbooks := monitor.BuildDefaultRunbooks(tracker)
	var emailSender monitor.EmailSender
	if remoteShellPool != nil && cfg.Email.Node != "" {
		emailSender = email.New(remoteShellPool, email.Config{Node: cfg.Email.Node, Command: cfg.Email.Command, To: cfg.Email.To})
	}
	engine := monitor.NewRunbookEngine(runbooks, registry, db, gw.Hub(),
		monitor.WithEngineLogger(logger),
		monitor.WithEmail(emailSender),
		monitor.WithAudit(db),
		monitor.WithEngineMetrics(metrics),
	)

	monCfg := monitor.Config{
		CriticalInterval:   cfg.Monitor.CriticalInterval,
		ImportantInterval:  cfg.Monitor.ImportantInterval,
		RoutineInterval:    cfg.Monitor.RoutineInterval,
		BackgroundInterval: cfg.Monitor.BackgroundInterval,
		StartupDelay:       cfg.Monitor.StartupDelay,
		StorageWarnPercent: cfg.Monitor.StorageWarnPercent,
		StorageCritPercent: cfg.Monitor.StorageCritPercent,
		AuditRetention:     cfg.Monitor.AuditRetention,
	}
	mon := monitor.New(hv, tracker, evaluator, engine, gw.Hub(), monCfg,
		monitor.WithLogger(logger),
		monitor.WithPruner(db),
		monitor.WithMetrics(metrics),
	)
	gw.SetMonitor(mon)

	registerToolGroups(registry, kernel, cfg, hv, remoteShellPool, db, gw.Hub(), logger)

	return &runtime{
		cfg:             cfg,
		logger:          logger,
		store:           db,
		kernel:          kernel,
		audit:           auditLogger,
		registry:        registry,
		llmClt:          llmClt,
		tracker:         tracker,
		hv:              hv,
		monitor:         mon,
		gw:              gw,
		tracingShutdown: tracingShutdown,
	}, nil
}
