package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/psantana5/timers/pkg/metrics"
	"github.com/psantana5/timers/pkg/timers"
)

var execCmd = &cobra.Command{
	Use:   "exec -- <command> [args...]",
	Short: "Run a command and report how long it took",
	Long: `Runs a command with timers around the whole run ("exec") and the process
spawn ("exec.start"), reports them to the log and prints them.

Capture is always enabled for exec.

Example:
  timers exec -- sleep 1
  timers exec --output json -- make build`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

func init() {
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Close()

	reg := cfg.NewRegistry()
	reg.Enable()

	var collector *metrics.TimerCollector
	if cfg.Metrics.Enabled {
		collector, err = metrics.NewTimerCollector(cfg.Metrics.Namespace, nil)
		if err != nil {
			return fmt.Errorf("failed to create metrics collector: %w", err)
		}
		reg.AddObserver(collector)
	}

	var flushed *timers.Timers
	reg.AddObserver(timers.ObserverFunc(func(t *timers.Timers) { flushed = t }))

	runErr := timeCommand(cmd, reg, args)

	reg.Report(cfg.NewReportSink(logger), cfg.Timers.ReportLevel)

	if flushed != nil {
		if err := renderTimers(cmd.OutOrStdout(), outputFormat, flushed, collector); err != nil {
			return err
		}
	}
	return runErr
}

// timeCommand runs args under the "exec" and "exec.start" timers.
func timeCommand(cmd *cobra.Command, reg *timers.Registry, args []string) error {
	total, err := reg.Start("exec")
	if err != nil {
		return err
	}
	defer total.Stop()

	spawn, err := reg.Start("exec.start")
	if err != nil {
		return err
	}

	c := exec.CommandContext(cmd.Context(), args[0], args[1:]...)
	c.Stdin = os.Stdin
	c.Stdout = cmd.OutOrStdout()
	c.Stderr = cmd.ErrOrStderr()

	err = c.Start()
	spawn.Stop()
	if err != nil {
		return fmt.Errorf("failed to start %s: %w", args[0], err)
	}

	if err := c.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%s exited with code %d", args[0], exitErr.ExitCode())
		}
		return fmt.Errorf("failed to run %s: %w", args[0], err)
	}
	return nil
}
