package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/signalrun/internal/domain"
	"github.com/sawpanic/signalrun/internal/profile"
	"github.com/sawpanic/signalrun/internal/provider"
	"github.com/sawpanic/signalrun/internal/strategy"
	"github.com/sawpanic/signalrun/internal/universe"
)

// universeMD serves a fixed instrument list; the stub evaluator never
// touches klines.
type universeMD struct {
	instruments []universe.Instrument
	err         error
}

func (m *universeMD) Universe(context.Context) ([]universe.Instrument, error) {
	return m.instruments, m.err
}

func (m *universeMD) Klines(context.Context, string, string, int) ([]domain.Candle, error) {
	return nil, errors.New("not used")
}

func (m *universeMD) OrderBook(context.Context, string, int) (*domain.OrderBook, error) {
	return nil, errors.New("not used")
}

// scriptEval returns canned outcomes keyed by profile then symbol. Unknown
// symbols reject at the trend step.
type scriptEval struct {
	mu       sync.Mutex
	outcomes map[string]map[string]Outcome // profile -> symbol -> outcome
	calls    []string

	inFlight    int64
	maxInFlight int64
	delay       time.Duration
}

func (s *scriptEval) Evaluate(_ context.Context, symbol string, prof profile.Profile) Outcome {
	cur := atomic.AddInt64(&s.inFlight, 1)
	for {
		max := atomic.LoadInt64(&s.maxInFlight)
		if cur <= max || atomic.CompareAndSwapInt64(&s.maxInFlight, max, cur) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	atomic.AddInt64(&s.inFlight, -1)

	s.mu.Lock()
	s.calls = append(s.calls, prof.Name+"/"+symbol)
	s.mu.Unlock()

	if byProfile, ok := s.outcomes[prof.Name]; ok {
		if out, ok := byProfile[symbol]; ok {
			out.Symbol = symbol
			out.Profile = prof.Name
			if out.Candidate != nil {
				cand := *out.Candidate
				cand.Symbol = symbol
				cand.Profile = prof.Name
				out.Candidate = &cand
			}
			return out
		}
	}
	return Outcome{Symbol: symbol, Profile: prof.Name, Step: StepTrend}
}

func accepted(score float64) Outcome {
	return Outcome{
		Accepted: true,
		Candidate: &domain.SignalCandidate{
			Score:       score,
			Direction:   domain.Long,
			Setup:       domain.SetupPullback,
			EvaluatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func instruments(symbols ...string) []universe.Instrument {
	out := make([]universe.Instrument, 0, len(symbols))
	turnover := 100_000_000.0
	for _, s := range symbols {
		out = append(out, universe.Instrument{Symbol: s, Turnover: turnover})
		turnover -= 1_000_000
	}
	return out
}

// twoRungConfig is a minimal strict->relaxed ladder for sequencer tests.
func twoRungConfig() strategy.Config {
	cfg := strategy.ClassicV2()
	cfg.Profiles = []profile.Profile{
		{
			Name: "strict", MinTurnover: 10, TopVolume: 10,
			MinRR: 2.0, StopATRCoeff: 0.8,
			VolumeZ: 2.0, VolumeMultiple: 2.0, PullbackVolumeZ: 1.2, PullbackVolumeMultiple: 1.5,
			TouchTolerance: 0.005, SRDistanceMult: 1.5, MinScore: 70,
			BlockDivergence: true, MaxSignals: 3,
		},
		{
			Name: "relaxed", MinTurnover: 5, TopVolume: 10,
			MinRR: 1.5, StopATRCoeff: 0.8,
			VolumeZ: 1.2, VolumeMultiple: 1.5, PullbackVolumeZ: 0.8, PullbackVolumeMultiple: 1.2,
			TouchTolerance: 0.01, SRDistanceMult: 1.0, MinScore: 60,
			MaxSignals: 5,
		},
	}
	cfg.TargetCandidates = 2
	return cfg
}

func newTestEngine(cfg strategy.Config, md provider.MarketData, ev symbolEvaluator) *Engine {
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	return &Engine{
		cfg:  cfg,
		md:   md,
		ev:   ev,
		opts: Options{Workers: 4, SymbolTimeout: time.Second},
		clk:  clk,
	}
}

func TestScanStopsAfterStrictRungHitsTarget(t *testing.T) {
	md := &universeMD{instruments: instruments("AAA", "BBB", "CCC")}
	ev := &scriptEval{outcomes: map[string]map[string]Outcome{
		"strict": {"AAA": accepted(80), "BBB": accepted(75)},
	}}
	e := newTestEngine(twoRungConfig(), md, ev)

	res, err := e.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"strict"}, res.ProfilesRun)
	require.Len(t, res.Signals, 2)
	// ranked by score descending
	assert.Equal(t, 80.0, res.Signals[0].Score)
	assert.Equal(t, 75.0, res.Signals[1].Score)
}

func TestScanDegradesToRelaxedRung(t *testing.T) {
	md := &universeMD{instruments: instruments("AAA", "BBB")}
	ev := &scriptEval{outcomes: map[string]map[string]Outcome{
		"relaxed": {"AAA": accepted(62)},
	}}
	e := newTestEngine(twoRungConfig(), md, ev)

	res, err := e.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"strict", "relaxed"}, res.ProfilesRun)
	require.Len(t, res.Signals, 1)
	assert.Equal(t, "relaxed", ev.calls[len(ev.calls)-1][:7])
	assert.Greater(t, res.Rejections[StepTrend], 0)
}

func TestScanEmptyAfterFullLadderIsNotAnError(t *testing.T) {
	md := &universeMD{instruments: instruments("AAA", "BBB")}
	ev := &scriptEval{}
	e := newTestEngine(twoRungConfig(), md, ev)

	res, err := e.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Signals)
	assert.Equal(t, []string{"strict", "relaxed"}, res.ProfilesRun)
}

func TestScanUniverseFailureIsFatal(t *testing.T) {
	md := &universeMD{err: provider.NewError("bybit", "universe", provider.CodeUnavailable, errors.New("down"))}
	e := newTestEngine(twoRungConfig(), md, &scriptEval{})

	_, err := e.Scan(context.Background())
	require.Error(t, err)
}

func TestScanSkipsSymbolOnProviderError(t *testing.T) {
	md := &universeMD{instruments: instruments("AAA", "BBB")}
	ev := &scriptEval{outcomes: map[string]map[string]Outcome{
		"strict": {
			"AAA": {Err: provider.NewError("bybit", "klines", provider.CodeTimeout, errors.New("deadline"))},
			"BBB": accepted(80),
		},
		"relaxed": {"BBB": accepted(80)},
	}}
	cfg := twoRungConfig()
	cfg.TargetCandidates = 1
	e := newTestEngine(cfg, md, ev)

	res, err := e.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Signals, 1)
}

func TestScanSymbolNotReevaluatedAfterAcceptance(t *testing.T) {
	md := &universeMD{instruments: instruments("AAA", "BBB", "CCC")}
	ev := &scriptEval{outcomes: map[string]map[string]Outcome{
		"strict":  {"AAA": accepted(80)},
		"relaxed": {"AAA": accepted(80), "BBB": accepted(70)},
	}}
	cfg := twoRungConfig()
	cfg.TargetCandidates = 2
	e := newTestEngine(cfg, md, ev)

	res, err := e.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Signals, 2)

	for _, call := range ev.calls {
		assert.NotEqual(t, "relaxed/AAA", call, "accepted symbol re-entered the pipeline")
	}
}

func TestScanRankingAndCap(t *testing.T) {
	md := &universeMD{instruments: instruments("AAA", "BBB", "CCC", "DDD")}
	ev := &scriptEval{outcomes: map[string]map[string]Outcome{
		"strict": {
			"AAA": accepted(71),
			"BBB": accepted(90),
			"CCC": accepted(71),
			"DDD": accepted(85),
		},
	}}
	cfg := twoRungConfig()
	cfg.TargetCandidates = 1
	cfg.MaxSignalsPerScan = 3
	e := newTestEngine(cfg, md, ev)

	res, err := e.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Signals, 3)
	assert.Equal(t, 90.0, res.Signals[0].Score)
	assert.Equal(t, 85.0, res.Signals[1].Score)
	// equal scores break ties on symbol ascending; AAA beats CCC
	assert.Equal(t, 71.0, res.Signals[2].Score)
}

func TestScanRungCapKeepsHighestScores(t *testing.T) {
	// BBB sits after AAA in universe order but outscores it; the rung cap
	// must keep BBB, not the first candidate evaluated.
	md := &universeMD{instruments: instruments("AAA", "BBB")}
	ev := &scriptEval{outcomes: map[string]map[string]Outcome{
		"strict": {"AAA": accepted(65), "BBB": accepted(92)},
	}}
	cfg := twoRungConfig()
	cfg.Profiles = cfg.Profiles[:1]
	cfg.Profiles[0].MaxSignals = 1
	cfg.TargetCandidates = 1
	e := newTestEngine(cfg, md, ev)

	res, err := e.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Signals, 1)
	assert.Equal(t, "BBB", res.Signals[0].Symbol)
	assert.Equal(t, 92.0, res.Signals[0].Score)
	assert.Equal(t, 1, res.Rejections["profile_cap"])
}

func TestScanProfileAcceptanceCap(t *testing.T) {
	md := &universeMD{instruments: instruments("AAA", "BBB", "CCC", "DDD")}
	ev := &scriptEval{outcomes: map[string]map[string]Outcome{
		"strict": {
			"AAA": accepted(80), "BBB": accepted(80),
			"CCC": accepted(80), "DDD": accepted(80),
		},
	}}
	cfg := twoRungConfig()
	cfg.Profiles[0].MaxSignals = 2
	cfg.TargetCandidates = 2
	e := newTestEngine(cfg, md, ev)

	res, err := e.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Signals, 2)
	assert.Equal(t, 2, res.Rejections["profile_cap"])
}

func TestScanTurnoverFloorExcludesSymbols(t *testing.T) {
	md := &universeMD{instruments: []universe.Instrument{
		{Symbol: "AAA", Turnover: 100},
		{Symbol: "TINY", Turnover: 1}, // below both rungs' floors
	}}
	ev := &scriptEval{}
	e := newTestEngine(twoRungConfig(), md, ev)

	_, err := e.Scan(context.Background())
	require.NoError(t, err)
	for _, call := range ev.calls {
		assert.NotContains(t, call, "TINY")
	}
}

func TestScanBoundsWorkerConcurrency(t *testing.T) {
	md := &universeMD{instruments: instruments("A1", "A2", "A3", "A4", "A5", "A6", "A7", "A8")}
	ev := &scriptEval{delay: 20 * time.Millisecond}
	cfg := twoRungConfig()
	cfg.Profiles = cfg.Profiles[:1]
	e := newTestEngine(cfg, md, ev)
	e.opts.Workers = 2

	_, err := e.Scan(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt64(&ev.maxInFlight), int64(2))
}

func TestGenerateSignalsEndToEndWithFakeProvider(t *testing.T) {
	fake := provider.NewFake(99)
	fake.SetTrendBias(2.0)

	cfg := strategy.ClassicV2()
	e := New(cfg, fake, nil, clock.NewMock(), Options{Workers: 4, SymbolTimeout: time.Second})

	signals, err := e.GenerateSignals(context.Background())
	require.NoError(t, err)

	for _, s := range signals {
		assert.GreaterOrEqual(t, s.Score, 0.0)
		assert.LessOrEqual(t, s.Score, 100.0)
		assert.GreaterOrEqual(t, s.Confidence, 0.0)
		assert.LessOrEqual(t, s.Confidence, 1.0)
		assert.NotEmpty(t, s.ID)
		assert.NotEmpty(t, s.Rationale)
	}
	// ranked by score descending
	for i := 1; i < len(signals); i++ {
		assert.GreaterOrEqual(t, signals[i-1].Score, signals[i].Score)
	}
}

func TestScanDeterministicWithSameSeed(t *testing.T) {
	run := func() *ScanResult {
		fake := provider.NewFake(123)
		fake.SetTrendBias(2.0)
		e := New(strategy.ClassicV2(), fake, nil, clock.NewMock(), Options{Workers: 4, SymbolTimeout: time.Second})
		res, err := e.Scan(context.Background())
		require.NoError(t, err)
		return res
	}

	a, b := run(), run()
	require.Equal(t, len(a.Signals), len(b.Signals))
	for i := range a.Signals {
		// ids differ only by random suffix; everything else matches
		assert.Equal(t, a.Signals[i].Symbol, b.Signals[i].Symbol)
		assert.Equal(t, a.Signals[i].Score, b.Signals[i].Score)
		assert.Equal(t, a.Signals[i].Profile, b.Signals[i].Profile)
		assert.Equal(t, a.Signals[i].Rationale, b.Signals[i].Rationale)
	}
	assert.Equal(t, a.ProfilesRun, b.ProfilesRun)
	assert.Equal(t, a.Rejections, b.Rejections)
}
