package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/homelab/jarvis/internal/config"
	"github.com/homelab/jarvis/internal/store"
)

func buildMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Inspect and control the autonomous monitor's guardrails",
	}
	cmd.AddCommand(buildMonitorStatusCmd(), buildMonitorKillswitchCmd(), buildMonitorAutonomyCmd())
	return cmd
}

func openStoreForCLI() (*store.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return store.Open(cfg.Database)
}

func buildMonitorStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the kill switch, autonomy level, and unresolved event count",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStoreForCLI()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			killSwitch, err := db.KillSwitch()
			if err != nil {
				return fmt.Errorf("read kill switch: %w", err)
			}
			level, err := db.AutonomyLevel()
			if err != nil {
				return fmt.Errorf("read autonomy level: %w", err)
			}
			unresolved, err := db.ListUnresolvedEvents(cmd.Context(), 1000)
			if err != nil {
				return fmt.Errorf("list unresolved events: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "kill_switch: %t\n", killSwitch)
			fmt.Fprintf(out, "autonomy_level: %d\n", level)
			fmt.Fprintf(out, "unresolved_events: %d\n", len(unresolved))
			return nil
		},
	}
}

func buildMonitorKillswitchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "killswitch [on|off]",
		Short: "Show or set the monitor's kill switch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStoreForCLI()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				on, err := db.KillSwitch()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "kill_switch: %t\n", on)
				return nil
			}

			var on bool
			switch args[0] {
			case "on":
				on = true
			case "off":
				on = false
			default:
				return fmt.Errorf("expected \"on\" or \"off\", got %q", args[0])
			}
			if err := db.SetKillSwitch(cmd.Context(), on); err != nil {
				return fmt.Errorf("set kill switch: %w", err)
			}
			fmt.Fprintf(out, "kill_switch: %t\n", on)
			return nil
		},
	}
}

func buildMonitorAutonomyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "autonomy-level [0-4]",
		Short: "Show or set the monitor's default autonomy level",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStoreForCLI()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				level, err := db.AutonomyLevel()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "autonomy_level: %d\n", level)
				return nil
			}

			level, err := strconv.Atoi(args[0])
			if err != nil || level < 0 || level > 4 {
				return fmt.Errorf("autonomy level must be an integer 0-4")
			}
			if err := db.SetAutonomyLevel(cmd.Context(), level); err != nil {
				return fmt.Errorf("set autonomy level: %w", err)
			}
			fmt.Fprintf(out, "autonomy_level: %d\n", level)
			return nil
		},
	}
}
