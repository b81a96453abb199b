// SPDX-License-Identifier: MIT

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/avtoolkit/encodarr/internal/config"
	xglog "github.com/avtoolkit/encodarr/internal/log"
	"github.com/avtoolkit/encodarr/internal/queue"
	"github.com/avtoolkit/encodarr/internal/supervisor"
	"github.com/avtoolkit/encodarr/internal/validation"
)

var runOpts supervisor.Options

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the transcoding pipeline daemon",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runDaemon(cmd.Context())
	},
}

func init() {
	runCmd.Flags().BoolVar(&runOpts.DryRun, "dry-run", false,
		"log what would be enqueued without queueing or encoding")
	runCmd.Flags().BoolVar(&runOpts.ProcessExisting, "process-existing", false,
		"scan watch folders once at startup and enqueue existing files")
	rootCmd.AddCommand(runCmd)
}

func runDaemon(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	caps, err := validation.Detect(ctx)
	if err != nil {
		return fmt.Errorf("capability detection failed: %w", err)
	}

	path := configPath()
	cfg, err := config.LoadAndValidate(path, caps)
	if err != nil {
		var vErr *config.ValidationError
		if errors.As(err, &vErr) {
			fmt.Fprintln(os.Stderr, validation.FormatReport(vErr.Result))
		}
		return err
	}

	xglog.Configure(xglog.Config{Level: cfg.Global.LogLevel})
	logger := xglog.WithComponent("main")
	logger.Info().
		Str(xglog.FieldEvent, "startup").
		Str("config_path", path).
		Int("profiles", len(cfg.Profiles)).
		Msg("starting encodarr")

	q, err := queue.NewManager(cfg.Global.Redis)
	if err != nil {
		return fmt.Errorf("redis connect failed: %w", err)
	}
	defer func() { _ = q.Close() }()

	holder := config.NewHolder(cfg, path, caps)
	sup := supervisor.New(holder, q, runOpts)

	if err := sup.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info().Msg("pipeline stopped")
	return nil
}
