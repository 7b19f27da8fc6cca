package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/pkg/log"
	"github.com/sandevgo/tuskmem/pkg/srv"
	"github.com/spf13/cobra"
)

var interval time.Duration

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the background poller",
	Long: `Polls every configured source on an interval, capturing new conversations
into the cache and writing their analysis to the configured sinks. Runs in the
foreground until interrupted or stopped with 'tuskmem stop'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// logger setup
		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)

		pidPath := pidFilePath()
		if err := writePidFile(pidPath); err != nil {
			return err
		}
		defer os.Remove(pidPath)

		logger.Info().Int("pid", os.Getpid()).Msg("starting tuskmem")

		services := NewServices(ctx, interval)

		// Start services
		srv.StartServices(ctx, services)

		// Wait for shutdown signal
		srv.ShutdownServices(ctx, services)
		logger.Info().Msg("tuskmem has been shut down gracefully")

		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running poller",
	RunE: func(cmd *cobra.Command, args []string) error {
		pidPath := pidFilePath()
		pid, err := readPidFile(pidPath)
		if err != nil {
			return err
		}

		proc, err := os.FindProcess(pid)
		if err != nil {
			return fmt.Errorf("failed to find process %d: %w", pid, err)
		}
		if err := proc.Signal(os.Interrupt); err != nil {
			if errors.Is(err, os.ErrProcessDone) {
				os.Remove(pidPath)
				return fmt.Errorf("poller %d is not running, removed stale pid file", pid)
			}
			return fmt.Errorf("failed to signal process %d: %w", pid, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Sent stop signal to poller %d\n", pid)
		return nil
	},
}

func init() {
	startCmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default from TUSKMEM_POLL_INTERVAL, 5m)")
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
}

// writePidFile refuses to start a second poller while the recorded one is
// still alive.
func writePidFile(path string) error {
	if pid, err := readPidFile(path); err == nil && processAlive(pid) {
		return fmt.Errorf("poller already running with pid %d", pid)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create runtime directory: %w", err)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644)
}

func pidFilePath() string {
	return config.AppConfig{RuntimePath: config.GetRuntimePath()}.GetPidPath()
}

func readPidFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("no running poller (missing %s)", path)
		}
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file %s", path)
	}
	return pid, nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
