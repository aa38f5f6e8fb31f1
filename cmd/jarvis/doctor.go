package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/homelab/jarvis/internal/config"
	"github.com/homelab/jarvis/internal/hypervisor"
	"github.com/homelab/jarvis/internal/store"
	"github.com/homelab/jarvis/internal/tools/nvr"
	"github.com/homelab/jarvis/internal/tools/smarthome"
)

func buildDoctorCmd() *cobra.Command {
	var printSchema bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration and probe every configured backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			if printSchema {
				schema, err := config.JSONSchema()
				if err != nil {
					return fmt.Errorf("build config schema: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(schema))
				return nil
			}
			return runDoctor(cmd.Context(), cmd)
		},
	}
	cmd.Flags().BoolVar(&printSchema, "schema", false, "print the JSON Schema for jarvis.yaml and exit")
	return cmd
}

func runDoctor(ctx context.Context, cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config did not load: %w", err)
	}
	fmt.Fprintln(out, "config: ok")

	db, err := store.Open(cfg.Database)
	if err != nil {
		fmt.Fprintf(out, "database: FAILED (%v)\n", err)
	} else {
		fmt.Fprintln(out, "database: ok")
		_ = db.Close()
	}

	if cfg.Safety.ApprovalKeyword == "" {
		fmt.Fprintln(out, "safety.approval_keyword: WARNING — unset, ORANGE-tier actions cannot be confirmed")
	} else {
		fmt.Fprintln(out, "safety.approval_keyword: ok")
	}

	if cfg.LLM.APIKey == "" {
		fmt.Fprintln(out, "llm.api_key: WARNING — unset, chat will fail")
	} else {
		fmt.Fprintln(out, "llm.api_key: ok")
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if cfg.Hypervisor.BaseURL != "" {
		hv, err := hypervisor.NewClient(hypervisor.Config{BaseURL: cfg.Hypervisor.BaseURL, Token: cfg.Hypervisor.Token, Timeout: cfg.Hypervisor.Timeout})
		if err != nil {
			fmt.Fprintf(out, "hypervisor: FAILED to build client (%v)\n", err)
		} else if _, err := hv.ClusterStatus(probeCtx); err != nil {
			fmt.Fprintf(out, "hypervisor: unreachable (%v)\n", err)
		} else {
			fmt.Fprintln(out, "hypervisor: ok")
		}
	} else {
		fmt.Fprintln(out, "hypervisor: not configured")
	}

	if cfg.SmartHome.BaseURL != "" {
		sh, err := smarthome.NewClient(smarthome.Config{BaseURL: cfg.SmartHome.BaseURL, Token: cfg.SmartHome.Token, Timeout: cfg.SmartHome.Timeout, MaxResponseBytes: cfg.SmartHome.MaxResponseBytes})
		if err != nil {
			fmt.Fprintf(out, "smart_home: FAILED to build client (%v)\n", err)
		} else if _, err := sh.ListStates(probeCtx); err != nil {
			fmt.Fprintf(out, "smart_home: unreachable (%v)\n", err)
		} else {
			fmt.Fprintln(out, "smart_home: ok")
		}
	} else {
		fmt.Fprintln(out, "smart_home: not configured")
	}

	if cfg.NVR.BaseURL != "" {
		nc, err := nvr.NewClient(nvr.Config{BaseURL: cfg.NVR.BaseURL, Token: cfg.NVR.Token, Timeout: cfg.NVR.Timeout})
		if err != nil {
			fmt.Fprintf(out, "nvr: FAILED to build client (%v)\n", err)
		} else if _, err := nc.ListCameras(probeCtx); err != nil {
			fmt.Fprintf(out, "nvr: unreachable (%v)\n", err)
		} else {
			fmt.Fprintln(out, "nvr: ok")
		}
	} else {
		fmt.Fprintln(out, "nvr: not configured")
	}

	if cfg.RemoteShell.PrivateKeyPath != "" {
		if _, err := os.Stat(cfg.RemoteShell.PrivateKeyPath); err != nil {
			fmt.Fprintf(out, "remote_shell: key unreadable (%v)\n", err)
		} else {
			fmt.Fprintln(out, "remote_shell: ok")
		}
	} else {
		fmt.Fprintln(out, "remote_shell: not configured")
	}

	return nil
}
