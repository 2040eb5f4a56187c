package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/inboxvault/inboxvault/internal/config"
	"github.com/inboxvault/inboxvault/internal/deletion"
	"github.com/inboxvault/inboxvault/internal/ingest"
	"github.com/inboxvault/inboxvault/internal/send"
	"github.com/inboxvault/inboxvault/internal/thumb"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "inboxvault",
	Short: "Per-user file Inbox with a SQLite catalog",
	Long: `inboxvault manages per-user file Inboxes: every stored file is
cataloged in a per-user SQLite database with kind classification, tags,
view tracking, quotas and thumbnails, and can be listed, filtered,
copied between users and exported from the command line or over HTTP.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))
		slog.SetDefault(logger)

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// Ensure home directory exists on first use
		if err := cfg.EnsureHomeDir(); err != nil {
			return fmt.Errorf("create data directory %s: %w", cfg.HomeDir, err)
		}

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: <home>/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command with a background context.
// Prefer ExecuteContext for signal-aware execution.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with the given context,
// enabling graceful shutdown when the context is cancelled.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func thumbOptions() thumb.Options {
	return thumb.Options{
		Width:   cfg.Thumb.Width,
		Height:  cfg.Thumb.Height,
		Quality: cfg.Thumb.Quality,
	}
}

func ingestService() *ingest.Service {
	return &ingest.Service{
		InboxRoot:    cfg.InboxRoot(),
		QuotaForUser: cfg.QuotaForUser,
		Thumb:        thumbOptions(),
		Logger:       logger,
	}
}

func sendService() *send.Service {
	return &send.Service{
		InboxRoot:    cfg.InboxRoot(),
		QuotaForUser: cfg.QuotaForUser,
		Thumb:        thumbOptions(),
		Logger:       logger,
	}
}

func deletionService() *deletion.Service {
	return &deletion.Service{
		InboxRoot: cfg.InboxRoot(),
		Logger:    logger,
	}
}
