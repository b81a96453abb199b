// SPDX-License-Identifier: MIT

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/avtoolkit/encodarr/internal/config"
	xglog "github.com/avtoolkit/encodarr/internal/log"
	"github.com/avtoolkit/encodarr/internal/validation"
)

var configValidateCmd = &cobra.Command{
	Use:   "config-validate",
	Short: "Validate the pipeline configuration and print a report",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath())
		if err != nil {
			return err
		}

		// Host capabilities are optional here so the config can be
		// checked on machines without the encoding tools installed.
		caps, err := validation.Detect(cmd.Context())
		if err != nil {
			logger := xglog.WithComponent("cli")
			logger.Warn().Err(err).
				Msg("capability detection unavailable, skipping host checks")
			caps = nil
		}

		result := config.ValidateConfig(cfg, caps)
		fmt.Println(validation.FormatReport(result))
		if result.ErrorCount() > 0 {
			return fmt.Errorf("config validation failed with %d error(s)", result.ErrorCount())
		}
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "config-show",
	Short: "Print the effective configuration with defaults applied",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath())
		if err != nil {
			return err
		}

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer func() { _ = enc.Close() }()
		return enc.Encode(cfg)
	},
}

func init() {
	rootCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configShowCmd)
}
