package provider

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// BreakerConfig tunes when a venue breaker trips and how long it stays open.
type BreakerConfig struct {
	MaxRequests         uint32        // probes allowed while half-open
	Interval            time.Duration // closed-state count reset window
	Timeout             time.Duration // open -> half-open delay
	ErrorRateThreshold  float64       // percent, evaluated once MinRequests seen
	MinRequests         uint32        // samples before the rate threshold applies
	ConsecutiveFailures uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         2,
		Interval:            60 * time.Second,
		Timeout:             60 * time.Second,
		ErrorRateThreshold:  20.0,
		MinRequests:         20,
		ConsecutiveFailures: 3,
	}
}

// NewBreaker builds a circuit breaker for a single venue. It trips on a run
// of consecutive failures or on a sustained error rate, and logs every state
// transition so operators can see a venue going dark. Zero fields take the
// defaults so a partially filled config never produces a hair-trigger
// breaker.
func NewBreaker(venue string, cfg BreakerConfig) *gobreaker.CircuitBreaker {
	def := DefaultBreakerConfig()
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = def.MaxRequests
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.ErrorRateThreshold <= 0 {
		cfg.ErrorRateThreshold = def.ErrorRateThreshold
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = def.MinRequests
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = def.ConsecutiveFailures
	}
	settings := gobreaker.Settings{
		Name:        venue,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
				return true
			}
			if counts.Requests >= cfg.MinRequests {
				errorRate := float64(counts.TotalFailures) / float64(counts.Requests) * 100
				if errorRate >= cfg.ErrorRateThreshold {
					return true
				}
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			evt := log.Warn()
			if to == gobreaker.StateClosed {
				evt = log.Info()
			}
			evt.Str("venue", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	}
	return gobreaker.NewCircuitBreaker(settings)
}
