package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sawpanic/signalrun/internal/domain"
	"github.com/sawpanic/signalrun/internal/engine"
)

func newScanCmd() *cobra.Command {
	var (
		flagStrategy string
		flagFake     bool
		flagSeed     int64
		flagJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one scan pass and print the signals",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, flagFake, flagSeed)
			if err != nil {
				return err
			}
			defer a.close()

			if flagStrategy != "" {
				a.cfg.Scan.Strategies = []string{flagStrategy}
				if err := a.selectStrategies(); err != nil {
					return err
				}
			}

			var results []*engine.ScanResult
			err = a.scanAll(ctx, func(res *engine.ScanResult) {
				results = append(results, res)
			})
			if err != nil {
				return err
			}

			if flagJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			for _, res := range results {
				printScanResult(res)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&flagStrategy, "strategy", "s", "", "run a single strategy instead of the configured set")
	cmd.Flags().BoolVar(&flagFake, "fake", false, "use the deterministic fake provider (no network)")
	cmd.Flags().Int64Var(&flagSeed, "seed", 0, "fake provider seed (implies nothing unless --fake or config fake)")
	cmd.Flags().BoolVar(&flagJSON, "json", false, "emit raw JSON instead of a table")
	return cmd
}

func printScanResult(res *engine.ScanResult) {
	fmt.Printf("\n%s — %d signals (universe %d, evaluated %d, profiles %v, %.2fs)\n",
		res.Strategy, len(res.Signals), res.Universe, res.Evaluated, res.ProfilesRun, res.Duration.Seconds())

	if len(res.Signals) == 0 {
		fmt.Println("  no qualifying setups after the full ladder")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  SYMBOL\tDIR\tSETUP\tSCORE\tR/R\tENTRY\tSTOP\tT1\tT2\tT3\tPROFILE")
	for _, s := range res.Signals {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%.0f\t%.2f\t%.6g-%.6g\t%.6g\t%.6g\t%.6g\t%.6g\t%s\n",
			s.Symbol, arrow(s.Direction), s.Setup, s.Score, s.RiskReward,
			s.EntryMin, s.EntryMax, s.Stop, s.Target1, s.Target2, s.Target3, s.Profile)
	}
	w.Flush()
}

func arrow(d domain.Direction) string {
	if d == domain.Long {
		return "LONG ↑"
	}
	return "SHORT ↓"
}
