package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/loykin/hostprep"
	"github.com/loykin/hostprep/internal/logger"
	"github.com/spf13/cobra"
)

// Exit codes for CI pipelines: 0 success, 1 contention or phase failure,
// 2 wait timeout.
const (
	exitOK      = 0
	exitFailure = 1
	exitTimeout = 2
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, hostprep.ErrWaitTimeout) {
		return exitTimeout
	}
	return exitFailure
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	statusFlags := &StatusFlags{}
	waitFlags := &WaitFlags{}
	resetFlags := &ResetFlags{}
	serveFlags := &ServeFlags{}

	hostprepCommand := command{}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createRunCommand(hostprepCommand, globalFlags, "setup", hostprep.FamilyProvision,
			"Run the provisioning sequence, resuming from the persisted phase"),
		createRunCommand(hostprepCommand, globalFlags, "deploy", hostprep.FamilyRedeploy,
			"Run the redeployment sequence (stage, deploy, cleanup)"),
		createRunCommand(hostprepCommand, globalFlags, "cleanup", hostprep.FamilyCleanup,
			"Run the standalone cleanup phase"),
		createStatusCommand(hostprepCommand, globalFlags, statusFlags),
		createWaitCommand(hostprepCommand, globalFlags, waitFlags),
		createResetCommand(hostprepCommand, globalFlags, resetFlags),
		createServeCommand(hostprepCommand, globalFlags, serveFlags),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "hostprep",
		Short: "Crash-safe host provisioning and redeployment orchestrator",
		Long: `Hostprep drives multi-phase host preparation as a resumable state
machine: every invocation picks up from the persisted phase marker, so a
crash, reboot or re-run continues where the previous one stopped.

Examples:
  hostprep setup --config /etc/hostprep/hostprep.toml
  hostprep deploy --config /etc/hostprep/hostprep.toml
  hostprep wait --timeout 10m          # block until the host is ready
  hostprep status --watch`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Setup(flags.LogLevel, !flags.NoColor)
		},
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	root.PersistentFlags().BoolVar(&flags.NoColor, "no-color", false, "disable colored log output")
	return root
}

// createRunCommand builds setup/deploy/cleanup; they differ only in family.
func createRunCommand(c command, g *GlobalFlags, use, family, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.RunFamily(family, RunFlags{ConfigPath: g.ConfigPath})
		},
	}
}

func createStatusCommand(c command, g *GlobalFlags, f *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the current orchestration status record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Status(StatusFlags{
				ConfigPath: g.ConfigPath,
				Watch:      f.Watch,
				Interval:   f.Interval,
			})
		},
	}
	cmd.Flags().BoolVar(&f.Watch, "watch", false, "keep printing the record until interrupted")
	cmd.Flags().DurationVar(&f.Interval, "interval", 2*time.Second, "watch refresh interval")
	return cmd
}

func createWaitCommand(c command, g *GlobalFlags, f *WaitFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Block until the host is ready (readiness marker absent)",
		Long: `Wait polls for the readiness marker to disappear and exits 0 once it
does. Exits 2 on timeout so pipelines can distinguish "not ready yet"
from a hard failure.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Wait(WaitFlags{
				ConfigPath: g.ConfigPath,
				Timeout:    f.Timeout,
				Interval:   f.Interval,
			})
		},
	}
	cmd.Flags().DurationVar(&f.Timeout, "timeout", 0, "overall wait timeout (overrides config)")
	cmd.Flags().DurationVar(&f.Interval, "interval", 0, "poll interval (overrides config)")
	return cmd
}

func createResetCommand(c command, g *GlobalFlags, f *ResetFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the phase marker so the next run starts from the first phase",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Reset(ResetFlags{ConfigPath: g.ConfigPath, Force: f.Force})
		},
	}
	cmd.Flags().BoolVar(&f.Force, "force", false, "actually discard the persisted marker")
	return cmd
}

func createServeCommand(c command, g *GlobalFlags, f *ServeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only status HTTP API (and metrics when enabled)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Serve(ServeFlags{
				ConfigPath:    g.ConfigPath,
				Listen:        f.Listen,
				BasePath:      f.BasePath,
				MetricsListen: f.MetricsListen,
			})
		},
	}
	cmd.Flags().StringVar(&f.Listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&f.BasePath, "base-path", "", "base path for API routes (overrides config)")
	cmd.Flags().StringVar(&f.MetricsListen, "metrics-listen", "", "metrics listen address (enables metrics)")
	return cmd
}
