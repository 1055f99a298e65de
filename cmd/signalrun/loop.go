package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/signalrun/internal/sched"
)

func newLoopCmd() *cobra.Command {
	var flagFake bool

	cmd := &cobra.Command{
		Use:   "loop",
		Short: "Scan on the configured interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, flagFake, 0)
			if err != nil {
				return err
			}
			defer a.close()

			log.Info().
				Dur("interval", a.cfg.Scheduler.Interval).
				Dur("jitter", a.cfg.Scheduler.Jitter).
				Int("strategies", len(a.strategies)).
				Msg("scan loop starting")

			loop := sched.New(a.cfg.Scheduler.Interval, a.cfg.Scheduler.Jitter, nil)
			err = loop.Run(ctx, func(ctx context.Context) error {
				return a.scanAll(ctx, nil)
			})
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&flagFake, "fake", false, "use the deterministic fake provider (no network)")
	return cmd
}
