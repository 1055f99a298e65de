package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sawpanic/signalrun/internal/universe"
)

func newUniverseCmd() *cobra.Command {
	var (
		flagFake        bool
		flagTop         int
		flagMinTurnover float64
	)

	cmd := &cobra.Command{
		Use:   "universe",
		Short: "Print the tradable universe ranked by 24h turnover",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, flagFake, 0)
			if err != nil {
				return err
			}
			defer a.close()

			instruments, err := a.md.Universe(ctx)
			if err != nil {
				return err
			}

			pool := universe.Filter(instruments, flagMinTurnover)
			pool = universe.TopByTurnover(pool, flagTop)

			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RANK\tSYMBOL\tLAST\tTURNOVER_24H")
			for i, ins := range pool {
				fmt.Fprintf(w, "%d\t%s\t%.6g\t%.0f\n", i+1, ins.Symbol, ins.LastPrice, ins.Turnover)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&flagFake, "fake", false, "use the deterministic fake provider (no network)")
	cmd.Flags().IntVar(&flagTop, "top", 50, "show the top N by turnover (0 = all)")
	cmd.Flags().Float64Var(&flagMinTurnover, "min-turnover", 0, "24h turnover floor")
	return cmd
}
