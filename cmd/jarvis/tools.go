package main

import (
	"log/slog"

	"github.com/homelab/jarvis/internal/config"
	"github.com/homelab/jarvis/internal/dispatch"
	"github.com/homelab/jarvis/internal/gateway"
	"github.com/homelab/jarvis/internal/hypervisor"
	"github.com/homelab/jarvis/internal/remoteshell"
	"github.com/homelab/jarvis/internal/safety"
	"github.com/homelab/jarvis/internal/store"
	"github.com/homelab/jarvis/internal/tools/cluster"
	"github.com/homelab/jarvis/internal/tools/display"
	"github.com/homelab/jarvis/internal/tools/exec"
	"github.com/homelab/jarvis/internal/tools/files"
	"github.com/homelab/jarvis/internal/tools/lifecycle"
	"github.com/homelab/jarvis/internal/tools/memory"
	"github.com/homelab/jarvis/internal/tools/nvr"
	"github.com/homelab/jarvis/internal/tools/reminders"
	"github.com/homelab/jarvis/internal/tools/smarthome"
	"github.com/homelab/jarvis/internal/tools/system"
	"github.com/homelab/jarvis/internal/tools/transfer"
)

// registerToolGroups registers every tool group the dispatcher (C2) serves
// up to the chat loop, in the teacher's one-Register-call-per-group style.
func registerToolGroups(
	reg *dispatch.Registry,
	kernel *safety.Kernel,
	cfg *config.Config,
	hv *hypervisor.Client,
	shellPool *remoteshell.Pool,
	db *store.Store,
	hub *gateway.Hub,
	logger *slog.Logger,
) {
	cluster.Register(reg, hv)
	lifecycle.Register(reg, hv)
	files.Register(reg, kernel, cfg.Safety.AllowedBaseDir)
	transfer.Register(reg, kernel, cfg.Safety.AllowedBaseDir)
	memory.Register(reg, db)
	reminders.Register(reg, db)
	display.Register(reg, hub)
	exec.Register(reg, exec.NewManager(cfg.Safety.AllowedBaseDir))

	if shellPool != nil {
		system.Register(reg, kernel, shellPool)
	}

	if cfg.SmartHome.BaseURL != "" {
		shClient, err := smarthome.NewClient(smarthome.Config{
			BaseURL:          cfg.SmartHome.BaseURL,
			Token:            cfg.SmartHome.Token,
			Timeout:          cfg.SmartHome.Timeout,
			MaxResponseBytes: cfg.SmartHome.MaxResponseBytes,
		})
		if err != nil {
			logger.Warn("smart-home client not wired", "error", err)
		} else {
			smarthome.Register(reg, shClient, db)
		}
	}

	if cfg.NVR.BaseURL != "" {
		nvrClient, err := nvr.NewClient(nvr.Config{BaseURL: cfg.NVR.BaseURL, Token: cfg.NVR.Token, Timeout: cfg.NVR.Timeout})
		if err != nil {
			logger.Warn("nvr client not wired", "error", err)
		} else {
			nvr.Register(reg, nvrClient)
		}
	}
}
