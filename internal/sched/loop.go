// Package sched runs the periodic scan loop. Jitter spreads passes out so
// multiple instances sharing a venue do not synchronize their request
// bursts.
package sched

import (
	"context"
	"math/rand"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
)

// Pass is one unit of scheduled work. Errors are logged and the loop keeps
// going; only ctx cancellation stops it.
type Pass func(ctx context.Context) error

// Loop fires a Pass on a fixed interval with random jitter. The clock is
// injected so tests drive time.
type Loop struct {
	interval time.Duration
	jitter   time.Duration
	clk      clock.Clock
	rng      *rand.Rand
}

// New builds a loop. A nil clock uses the wall clock; jitter must be below
// interval (validated by config).
func New(interval, jitter time.Duration, clk clock.Clock) *Loop {
	if clk == nil {
		clk = clock.New()
	}
	return &Loop{
		interval: interval,
		jitter:   jitter,
		clk:      clk,
		rng:      rand.New(rand.NewSource(clk.Now().UnixNano())),
	}
}

// Run executes pass immediately, then every interval±jitter until ctx is
// cancelled. Returns ctx.Err().
func (l *Loop) Run(ctx context.Context, pass Pass) error {
	for n := 1; ; n++ {
		start := l.clk.Now()
		if err := pass(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Int("pass", n).Msg("scheduled pass failed")
		}
		log.Debug().
			Int("pass", n).
			Dur("took", l.clk.Now().Sub(start)).
			Msg("scheduled pass complete")

		timer := l.clk.Timer(l.next())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// next returns the delay before the following pass: interval plus a jitter
// drawn uniformly from [-jitter, +jitter].
func (l *Loop) next() time.Duration {
	if l.jitter <= 0 {
		return l.interval
	}
	offset := time.Duration(l.rng.Int63n(int64(2*l.jitter))) - l.jitter
	return l.interval + offset
}
