// SPDX-License-Identifier: MIT

// Package cmd implements the CLI commands for encodarr.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avtoolkit/encodarr/internal/config"
	xglog "github.com/avtoolkit/encodarr/internal/log"
	"github.com/avtoolkit/encodarr/internal/queue"
)

const defaultConfigPath = "/config/pipeline.yaml"

var (
	cfgFile   string
	verbosity int
)

var rootCmd = &cobra.Command{
	Use:   "encodarr",
	Short: "Folder-watching AV1 transcoding pipeline",
	Long: `encodarr watches media folders, queues finished files in Redis, and
transcodes them with av1an/ffmpeg/mkvmerge using VMAF-targeted quality.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// Without -v the level comes from the loaded config (or the
		// LOG_LEVEL environment default).
		if verbosity > 0 {
			xglog.Configure(xglog.Config{Level: verbosityLevel()})
		}
	},
}

// Execute runs the root command. Errors are logged here so main only
// decides the exit code.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"path to pipeline config (env CONFIG_PATH, default "+defaultConfigPath+")")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v",
		"increase log verbosity (-v debug, -vv trace)")
}

// configPath resolves the config file location: flag, then the
// CONFIG_PATH environment variable, then the container default.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return defaultConfigPath
}

func verbosityLevel() string {
	switch verbosity {
	case 0:
		return "info"
	case 1:
		return "debug"
	default:
		return "trace"
	}
}

// openQueue loads the config without host-capability validation and
// connects to Redis. Used by the queue inspection commands.
func openQueue() (*config.AppConfig, *queue.Manager, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, nil, err
	}
	q, err := queue.NewManager(cfg.Global.Redis)
	if err != nil {
		return nil, nil, err
	}
	return cfg, q, nil
}
