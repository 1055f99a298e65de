package main

import (
	"context"
	"fmt"

	redisv8 "github.com/go-redis/redis/v8"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/signalrun/internal/config"
	"github.com/sawpanic/signalrun/internal/cooldown"
	"github.com/sawpanic/signalrun/internal/engine"
	"github.com/sawpanic/signalrun/internal/journal"
	"github.com/sawpanic/signalrun/internal/logging"
	"github.com/sawpanic/signalrun/internal/metrics"
	"github.com/sawpanic/signalrun/internal/provider"
	"github.com/sawpanic/signalrun/internal/strategy"
	"github.com/sawpanic/signalrun/internal/universe"
)

// app bundles the wired collaborators every command shares.
type app struct {
	cfg        config.Config
	md         provider.MarketData
	bybit      *provider.Bybit // nil when running on the fake
	tracker    *cooldown.Tracker
	metrics    *metrics.Set
	journal    *journal.Journal
	strategies []strategy.Config
}

// buildApp loads configuration and wires the provider, cooldown store,
// metrics, journal and strategy set. fakeOverride forces the deterministic
// provider regardless of config.
func buildApp(ctx context.Context, fakeOverride bool, seedOverride int64) (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagLogLevel == "" {
		logging.Setup(cfg.LogLevel)
	}

	a := &app{cfg: cfg, metrics: metrics.NewSet()}

	if fakeOverride || cfg.Provider.Fake {
		seed := cfg.Provider.FakeSeed
		if seedOverride != 0 {
			seed = seedOverride
		}
		fake := provider.NewFake(seed)
		fake.SetTrendBias(1.5)
		a.md = fake
		log.Info().Int64("seed", seed).Msg("running on deterministic fake market data")
	} else {
		var cache provider.Cache
		if cfg.Provider.RedisAddr != "" {
			client := redisv9.NewClient(&redisv9.Options{Addr: cfg.Provider.RedisAddr})
			cache = provider.NewRedisCache(client, "signalrun:md")
			log.Info().Str("addr", cfg.Provider.RedisAddr).Msg("market data cache on redis")
		}
		b := provider.NewBybit(provider.BybitOptions{
			BaseURL:           cfg.Provider.BaseURL,
			Category:          cfg.Provider.Category,
			RequestsPerSecond: cfg.Provider.RequestsPerSecond,
			Burst:             cfg.Provider.Burst,
			Timeout:           cfg.Provider.Timeout,
		}, cache)
		b.SetMetrics(a.metrics)
		a.bybit = b
		a.md = b
	}

	var store cooldown.Store
	if cfg.Cooldown.RedisAddr != "" {
		client := redisv8.NewClient(&redisv8.Options{Addr: cfg.Cooldown.RedisAddr})
		store = cooldown.NewRedisStore(client, "signalrun:cooldown")
		log.Info().Str("addr", cfg.Cooldown.RedisAddr).Msg("cooldown store on redis")
	}
	a.tracker = cooldown.NewTracker(store, nil)

	a.journal, err = journal.Open(ctx, cfg.Journal.DSN)
	if err != nil {
		return nil, err
	}
	if a.journal != nil {
		log.Info().Msg("signal journal enabled")
	}

	if err := a.selectStrategies(); err != nil {
		return nil, err
	}
	return a, nil
}

// selectStrategies resolves cfg.Scan.Strategies against the presets merged
// with the optional overrides file, validating each.
func (a *app) selectStrategies() error {
	var overrides []strategy.Config
	if a.cfg.Scan.StrategiesFile != "" {
		var err error
		overrides, err = strategy.LoadFile(a.cfg.Scan.StrategiesFile)
		if err != nil {
			return err
		}
	}
	a.strategies = a.strategies[:0]
	for _, name := range a.cfg.Scan.Strategies {
		sc, err := strategy.ByName(name, overrides)
		if err != nil {
			return err
		}
		if issues := sc.Validate(); len(issues) > 0 {
			return fmt.Errorf("invalid strategy %q: %v", name, issues)
		}
		a.strategies = append(a.strategies, sc)
	}
	return nil
}

func (a *app) close() {
	if err := a.journal.Close(); err != nil {
		log.Warn().Err(err).Msg("journal close failed")
	}
}

// engineFor builds one strategy's engine over the shared collaborators.
func (a *app) engineFor(sc strategy.Config) *engine.Engine {
	return engine.New(sc, a.md, a.tracker, nil, engine.Options{
		Workers:       a.cfg.Scan.Workers,
		SymbolTimeout: a.cfg.Scan.SymbolTimeout,
		Sampler:       universe.Sampler{Size: a.cfg.Scan.SampleSize, Seed: a.cfg.Scan.SampleSeed},
		Metrics:       a.metrics,
	})
}

// scanAll runs every configured strategy once, journaling as it goes.
// Per-strategy failures are logged; the pass itself only fails when every
// strategy failed.
func (a *app) scanAll(ctx context.Context, publish func(*engine.ScanResult)) error {
	var lastErr error
	failures := 0
	for _, sc := range a.strategies {
		res, err := a.engineFor(sc).Scan(ctx)
		if err != nil {
			failures++
			lastErr = err
			log.Error().Err(err).Str("strategy", sc.Name).Msg("scan failed")
			continue
		}
		if publish != nil {
			publish(res)
		}
		if n := a.journal.RecordAll(ctx, res.Signals); n > 0 {
			log.Debug().Int("journaled", n).Str("strategy", sc.Name).Msg("signals journaled")
		}
	}
	if failures == len(a.strategies) && failures > 0 {
		return lastErr
	}
	return nil
}

func (a *app) healthSnapshots() []provider.HealthSnapshot {
	if a.bybit == nil {
		return nil
	}
	return []provider.HealthSnapshot{a.bybit.Health()}
}
