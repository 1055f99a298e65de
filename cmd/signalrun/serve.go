package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sawpanic/signalrun/internal/httpapi"
	"github.com/sawpanic/signalrun/internal/sched"
)

func newServeCmd() *cobra.Command {
	var (
		flagAddr string
		flagFake bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scan loop and serve signals over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, flagFake, 0)
			if err != nil {
				return err
			}
			defer a.close()

			if flagAddr != "" {
				a.cfg.HTTP.Addr = flagAddr
			}

			srv := httpapi.New(httpapi.Options{
				Addr:            a.cfg.HTTP.Addr,
				ShutdownTimeout: a.cfg.HTTP.ShutdownTimeout,
				Metrics:         a.metrics,
				Universe:        a.md,
				Health:          a.healthSnapshots,
			})

			loop := sched.New(a.cfg.Scheduler.Interval, a.cfg.Scheduler.Jitter, nil)
			loopDone := make(chan struct{})
			go func() {
				defer close(loopDone)
				loop.Run(ctx, func(ctx context.Context) error {
					return a.scanAll(ctx, srv.Publish)
				})
			}()

			err = srv.Run(ctx)
			<-loopDone
			return err
		},
	}

	cmd.Flags().StringVar(&flagAddr, "addr", "", "listen address, overrides config (default :8080)")
	cmd.Flags().BoolVar(&flagFake, "fake", false, "use the deterministic fake provider (no network)")
	return cmd
}
