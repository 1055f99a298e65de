package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/signalrun/internal/cooldown"
	"github.com/sawpanic/signalrun/internal/domain"
	"github.com/sawpanic/signalrun/internal/metrics"
	"github.com/sawpanic/signalrun/internal/profile"
	"github.com/sawpanic/signalrun/internal/provider"
	"github.com/sawpanic/signalrun/internal/strategy"
	"github.com/sawpanic/signalrun/internal/universe"
)

// Options tune scan execution. Zero values take defaults; a nil Metrics set
// disables instrumentation.
type Options struct {
	Workers       int
	SymbolTimeout time.Duration
	Sampler       universe.Sampler
	Metrics       *metrics.Set
}

const (
	defaultWorkers       = 8
	defaultSymbolTimeout = 10 * time.Second
)

// symbolEvaluator is the per-symbol pipeline the engine fans out over.
type symbolEvaluator interface {
	Evaluate(ctx context.Context, symbol string, prof profile.Profile) Outcome
}

// Engine drives one strategy's scan: universe admission, the profile
// ladder, bounded-concurrency evaluation, ranking and assembly.
type Engine struct {
	cfg  strategy.Config
	md   provider.MarketData
	ev   symbolEvaluator
	opts Options
	clk  clock.Clock
}

func New(cfg strategy.Config, md provider.MarketData, tracker *cooldown.Tracker, clk clock.Clock, opts Options) *Engine {
	if clk == nil {
		clk = clock.New()
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.SymbolTimeout <= 0 {
		opts.SymbolTimeout = defaultSymbolTimeout
	}
	return &Engine{
		cfg:  cfg,
		md:   md,
		ev:   NewEvaluator(cfg, md, tracker, clk),
		opts: opts,
		clk:  clk,
	}
}

// GenerateSignals runs one scan and returns just the ranked signals. It is
// idempotent per invocation apart from cooldown writes, so callers may
// invoke it on a timer.
func (e *Engine) GenerateSignals(ctx context.Context) ([]domain.TradingSignal, error) {
	res, err := e.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return res.Signals, nil
}

// ScanResult summarizes one full scan.
type ScanResult struct {
	Strategy    string                 `json:"strategy"`
	StartedAt   time.Time              `json:"started_at"`
	Duration    time.Duration          `json:"duration"`
	ProfilesRun []string               `json:"profiles_run"`
	Universe    int                    `json:"universe"`
	Evaluated   int                    `json:"evaluated"`
	Accepted    int                    `json:"accepted"`
	Skipped     int                    `json:"skipped"`
	Rejections  map[string]int         `json:"rejections"`
	Signals     []domain.TradingSignal `json:"signals"`
}

// Scan walks the profile ladder strict-first. Each rung admits a universe
// slice, evaluates it with bounded concurrency and accumulates accepted
// candidates; the ladder stops after the first rung whose completed batch
// brings the total to the strategy's target. Accumulated candidates are
// then ranked by score (symbol breaks ties) and capped. A scan never
// returns zero signals without having degraded through every rung first.
func (e *Engine) Scan(ctx context.Context) (*ScanResult, error) {
	start := e.clk.Now()
	e.opts.Metrics.ScanStarted()

	res := &ScanResult{
		Strategy:   e.cfg.Name,
		StartedAt:  start.UTC(),
		Rejections: make(map[string]int),
	}
	defer func() {
		res.Duration = e.clk.Now().Sub(start)
		e.opts.Metrics.ScanFinished(e.cfg.Name, res.Duration)
	}()

	instruments, err := e.md.Universe(ctx)
	if err != nil {
		return res, fmt.Errorf("universe: %w", err)
	}
	res.Universe = len(instruments)

	var accumulated []domain.SignalCandidate
	seen := make(map[string]bool)

	for _, prof := range e.cfg.Profiles {
		if ctx.Err() != nil {
			break
		}
		res.ProfilesRun = append(res.ProfilesRun, prof.Name)

		pool := universe.Filter(instruments, prof.MinTurnover)
		pool = universe.TopByTurnover(pool, prof.TopVolume)
		pool = e.opts.Sampler.Apply(pool)

		symbols := make([]string, 0, len(pool))
		for _, inst := range pool {
			if !seen[inst.Symbol] {
				symbols = append(symbols, inst.Symbol)
			}
		}

		outcomes := e.evaluateBatch(ctx, symbols, prof)

		var batch []*Outcome
		for i := range outcomes {
			out := &outcomes[i]
			res.Evaluated++
			e.opts.Metrics.IncEvaluated(e.cfg.Name, prof.Name)
			switch {
			case out.Err != nil:
				res.Skipped++
				e.opts.Metrics.IncSkipped(e.cfg.Name, errCode(out.Err))
				log.Warn().Err(out.Err).
					Str("symbol", out.Symbol).
					Str("profile", prof.Name).
					Msg("symbol skipped")
			case out.Accepted:
				batch = append(batch, out)
			default:
				res.Rejections[out.Step]++
				e.opts.Metrics.IncRejected(e.cfg.Name, out.Step)
			}
		}

		// The rung cap keeps the best of the whole batch, not the first
		// evaluated, so a strong late symbol is never displaced by a
		// weaker early one.
		sort.SliceStable(batch, func(i, j int) bool {
			if batch[i].Candidate.Score != batch[j].Candidate.Score {
				return batch[i].Candidate.Score > batch[j].Candidate.Score
			}
			return batch[i].Symbol < batch[j].Symbol
		})

		acceptedHere := 0
		for _, out := range batch {
			if acceptedHere >= prof.MaxSignals {
				res.Rejections["profile_cap"]++
				e.opts.Metrics.IncRejected(e.cfg.Name, "profile_cap")
				continue
			}
			acceptedHere++
			seen[out.Symbol] = true
			accumulated = append(accumulated, *out.Candidate)
			res.Accepted++
			e.opts.Metrics.IncAccepted(e.cfg.Name, prof.Name)
		}

		log.Debug().
			Str("strategy", e.cfg.Name).
			Str("profile", prof.Name).
			Int("pool", len(symbols)).
			Int("accepted", acceptedHere).
			Int("accumulated", len(accumulated)).
			Msg("profile batch complete")

		if len(accumulated) >= e.cfg.TargetCandidates {
			break
		}
	}

	sort.SliceStable(accumulated, func(i, j int) bool {
		if accumulated[i].Score != accumulated[j].Score {
			return accumulated[i].Score > accumulated[j].Score
		}
		return accumulated[i].Symbol < accumulated[j].Symbol
	})
	if len(accumulated) > e.cfg.MaxSignalsPerScan {
		accumulated = accumulated[:e.cfg.MaxSignalsPerScan]
	}

	res.Signals = make([]domain.TradingSignal, 0, len(accumulated))
	for _, cand := range accumulated {
		res.Signals = append(res.Signals, Assemble(cand))
	}
	e.opts.Metrics.AddSignals(e.cfg.Name, len(res.Signals))

	evt := log.Info()
	if len(res.Signals) == 0 {
		evt = log.Warn()
	}
	evt.Str("strategy", e.cfg.Name).
		Int("universe", res.Universe).
		Int("evaluated", res.Evaluated).
		Int("signals", len(res.Signals)).
		Strs("profiles_run", res.ProfilesRun).
		Dur("duration", e.clk.Now().Sub(start)).
		Msg("scan complete")

	return res, ctx.Err()
}

// evaluateBatch runs the pipeline over symbols with at most Workers in
// flight. Results land at the symbol's index so batch order, and therefore
// acceptance order, stays deterministic regardless of goroutine timing.
func (e *Engine) evaluateBatch(ctx context.Context, symbols []string, prof profile.Profile) []Outcome {
	outcomes := make([]Outcome, len(symbols))
	sem := make(chan struct{}, e.opts.Workers)
	var wg sync.WaitGroup

	for i, symbol := range symbols {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, symbol string) {
			defer wg.Done()
			defer func() { <-sem }()
			symCtx, cancel := context.WithTimeout(ctx, e.opts.SymbolTimeout)
			defer cancel()
			outcomes[i] = e.ev.Evaluate(symCtx, symbol, prof)
		}(i, symbol)
	}
	wg.Wait()
	return outcomes
}

func errCode(err error) string {
	var perr *provider.Error
	if errors.As(err, &perr) {
		return string(perr.Code)
	}
	return "error"
}
