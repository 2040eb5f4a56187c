package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/inboxvault/inboxvault/internal/api"
	"github.com/inboxvault/inboxvault/internal/scheduler"
	"github.com/inboxvault/inboxvault/internal/thumb"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run inboxvault as a daemon with the HTTP API",
	Long: `Run inboxvault as a long-running daemon.

The daemon runs in the foreground and performs:
  - HTTP API server on the configured port (default: 8080)
  - Scheduled thumbnail repair when [schedule] thumb_repair is set

Configure the repair schedule in config.toml:
  [schedule]
  thumb_repair = "0 3 * * *"   # 3am daily (cron format)

Cron format: minute hour day-of-month month day-of-week
  Examples:
    0 3 * * *     = 3:00 AM daily
    */30 * * * *  = Every 30 minutes
    0 0 * * 0     = Midnight on Sundays

Use Ctrl+C to stop the daemon gracefully.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Validate security posture before doing any work
	if err := cfg.Server.ValidateSecure(); err != nil {
		return err
	}

	root := cfg.InboxRoot()
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("create inbox root %s: %w", root, err)
	}

	// Repair sweep for the scheduler
	sweep := func(ctx context.Context) (string, error) {
		stats, err := thumb.RepairAll(ctx, root, thumbOptions(), logger)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d checked, %d generated, %d failed",
			stats.Checked, stats.Generated, stats.Failed), nil
	}

	sched := scheduler.New(sweep).WithLogger(logger)
	if expr := cfg.Schedule.ThumbRepair; expr != "" {
		if err := sched.Schedule(expr); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sched.Start()

	apiServer := api.NewServer(cfg, api.Services{
		Ingest:   ingestService(),
		Send:     sendService(),
		Deletion: deletionService(),
	}, sched, logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	bindAddr := cfg.Server.BindAddr
	if bindAddr == "" {
		bindAddr = "127.0.0.1"
	}
	fmt.Printf("inboxvault daemon started\n")
	fmt.Printf("  API server: http://%s\n", net.JoinHostPort(bindAddr, strconv.Itoa(cfg.Server.APIPort)))
	fmt.Printf("  Inbox root: %s\n", root)
	if st := sched.Status(); st.Schedule != "" {
		fmt.Printf("  Thumbnail repair: %s (next at %s)\n",
			st.Schedule, st.NextRun.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
		fmt.Printf("\nReceived %s, shutting down...\n", sig)
	case err := <-serverErr:
		logger.Error("API server error", "error", err)
		fmt.Printf("\nAPI server error: %v\n", err)
	case <-ctx.Done():
		logger.Info("context cancelled")
	}

	// Graceful shutdown
	fmt.Println("Shutting down API server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown error", "error", err)
	}

	fmt.Println("Waiting for running jobs to complete...")
	schedCtx := sched.Stop()

	select {
	case <-schedCtx.Done():
		fmt.Println("Shutdown complete.")
	case <-time.After(30 * time.Second):
		fmt.Println("Shutdown timed out after 30 seconds.")
	}

	return nil
}
