package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/signalrun/internal/provider"
)

func newStreamCmd() *cobra.Command {
	var (
		flagSymbols  []string
		flagInterval string
		flagAll      bool
	)

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Follow live kline closes over the public websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			symbols := make([]string, 0, len(flagSymbols))
			for _, s := range flagSymbols {
				symbols = append(symbols, strings.ToUpper(strings.TrimSpace(s)))
			}
			if len(symbols) == 0 {
				symbols = []string{"BTCUSDT", "ETHUSDT"}
			}

			stream := provider.NewStream(provider.StreamOptions{})
			if err := stream.Subscribe(symbols, flagInterval); err != nil {
				return err
			}
			defer stream.Close()

			log.Info().Strs("symbols", symbols).Str("interval", flagInterval).Msg("streaming klines")

			for {
				select {
				case <-ctx.Done():
					return nil
				case evt, ok := <-stream.Events():
					if !ok {
						return nil
					}
					if !evt.Confirmed && !flagAll {
						continue
					}
					log.Info().
						Str("symbol", evt.Symbol).
						Str("interval", evt.Interval).
						Float64("open", evt.Candle.Open).
						Float64("high", evt.Candle.High).
						Float64("low", evt.Candle.Low).
						Float64("close", evt.Candle.Close).
						Float64("volume", evt.Candle.Volume).
						Bool("confirmed", evt.Confirmed).
						Msg("kline")
				}
			}
		},
	}

	cmd.Flags().StringSliceVar(&flagSymbols, "symbols", nil, "symbols to follow (default BTCUSDT,ETHUSDT)")
	cmd.Flags().StringVar(&flagInterval, "interval", "5", "kline interval in venue minute notation")
	cmd.Flags().BoolVar(&flagAll, "all", false, "log unconfirmed (repainting) updates too")
	return cmd
}
