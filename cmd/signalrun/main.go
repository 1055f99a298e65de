// Command signalrun scans a crypto universe for confidence-scored trading
// signals. One engine runs every strategy; strategies and their relaxation
// ladders come from built-in presets plus optional YAML overrides.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sawpanic/signalrun/internal/logging"
)

const appName = "signalrun"

// Overridden at build time via -ldflags.
var (
	version = "v1.2.0"
	commit  = "dev"
)

var (
	flagConfig   string
	flagLogLevel string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "Multi-timeframe trading signal scanner",
		Long:          "signalrun scans a turnover-ranked symbol universe through a strict-to-relaxed profile ladder and emits confidence-scored, risk/reward-gated trading signals.",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(flagLogLevel)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to config.yaml")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (trace..error), overrides config")

	rootCmd.AddCommand(
		newScanCmd(),
		newLoopCmd(),
		newServeCmd(),
		newUniverseCmd(),
		newStreamCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
