package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/signalrun/internal/cooldown"
	"github.com/sawpanic/signalrun/internal/domain"
	"github.com/sawpanic/signalrun/internal/indicators"
	"github.com/sawpanic/signalrun/internal/profile"
	"github.com/sawpanic/signalrun/internal/provider"
	"github.com/sawpanic/signalrun/internal/strategy"
	"github.com/sawpanic/signalrun/internal/universe"
)

// countingMD fails every call but counts them, proving the cooldown gate
// short-circuits before any fetch.
type countingMD struct {
	klineCalls int64
}

func (m *countingMD) Universe(context.Context) ([]universe.Instrument, error) {
	return nil, provider.NewError("test", "universe", provider.CodeUnavailable, context.Canceled)
}

func (m *countingMD) Klines(context.Context, string, string, int) ([]domain.Candle, error) {
	atomic.AddInt64(&m.klineCalls, 1)
	return nil, provider.NewError("test", "klines", provider.CodeUnavailable, context.Canceled)
}

func (m *countingMD) OrderBook(context.Context, string, int) (*domain.OrderBook, error) {
	return nil, provider.NewError("test", "orderbook", provider.CodeUnavailable, context.Canceled)
}

func testProfile() profile.Profile {
	return profile.Profile{
		Name: "standard", MinTurnover: 1_000_000, TopVolume: 50,
		MinRR: 1.6, StopATRCoeff: 0.8,
		VolumeZ: 2.0, VolumeMultiple: 2.0, PullbackVolumeZ: 1.2, PullbackVolumeMultiple: 1.5,
		TouchTolerance: 0.01, SRDistanceMult: 1.0, MinScore: 60,
		MaxSignals: 5,
	}
}

// pullbackSeries builds an execution-timeframe uptrend whose last candle
// dips to 98.5 and closes at 99.2, matching the pullback trigger.
func pullbackSeries(t *testing.T) domain.KlineSeries {
	t.Helper()
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	var candles []domain.Candle
	price := 95.0
	for i := 0; i < 30; i++ {
		open := price
		price += 0.15
		candles = append(candles, domain.Candle{
			OpenTime: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:     open,
			High:     price + 0.2,
			Low:      open - 0.2,
			Close:    price,
			Volume:   120,
		})
	}
	candles = append(candles, domain.Candle{
		OpenTime: start.Add(30 * 5 * time.Minute),
		Open:     99.4,
		High:     99.5,
		Low:      98.5,
		Close:    99.2,
		Volume:   260,
	})
	s, err := domain.NewSeries("BTCUSDT", "5", candles)
	require.NoError(t, err)
	return s
}

func trendSnap() indicators.Snapshot {
	return indicators.Snapshot{
		Symbol: "BTCUSDT", Interval: "15",
		Close: 101.5, EMAFast: 101, EMAMid: 100, EMASlow: 99,
	}
}

func execSnap() indicators.Snapshot {
	return indicators.Snapshot{
		Symbol: "BTCUSDT", Interval: "5",
		Close: 99.2, EMAFast: 99.0, EMAMid: 98.8, EMASlow: 98.6,
		ATR:    2.0,
		MACD:   indicators.MACDResult{IsValid: true, Slope: 1, Histogram: 0.4},
		VWAP:   indicators.VWAPResult{IsValid: true, Value: 98.9, Above: true},
		Volume: indicators.VolumeMetrics{IsValid: true, Current: 260, ZScore: 1.4, Multiple: 1.3},
	}
}

func newTestEvaluator(t *testing.T) (*Evaluator, *cooldown.Tracker, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC))
	tracker := cooldown.NewTracker(nil, clk)
	ev := NewEvaluator(strategy.ClassicV2(), &countingMD{}, tracker, clk)
	return ev, tracker, clk
}

func TestTrendDirection(t *testing.T) {
	long := trendSnap()
	d, ok := trendDirection(long)
	require.True(t, ok)
	assert.Equal(t, domain.Long, d)

	short := indicators.Snapshot{Close: 97, EMAFast: 98, EMAMid: 99, EMASlow: 100}
	d, ok = trendDirection(short)
	require.True(t, ok)
	assert.Equal(t, domain.Short, d)

	// stacked long but close under the fast EMA is no trend
	flat := indicators.Snapshot{Close: 100.5, EMAFast: 101, EMAMid: 100, EMASlow: 99}
	_, ok = trendDirection(flat)
	assert.False(t, ok)

	_, ok = trendDirection(indicators.Snapshot{Close: 100, EMAFast: 100, EMAMid: 100, EMASlow: 100})
	assert.False(t, ok)
}

func TestDecideAcceptsPullbackScenario(t *testing.T) {
	ev, tracker, clk := newTestEvaluator(t)
	series := pullbackSeries(t)

	out := ev.decide(context.Background(), "BTCUSDT", testProfile(), domain.Long, trendSnap(), execSnap(), series)

	require.True(t, out.Accepted, "step=%s", out.Step)
	c := out.Candidate
	require.NotNil(t, c)

	assert.Equal(t, domain.Long, c.Direction)
	assert.Equal(t, domain.SetupPullback, c.Setup)
	assert.Equal(t, "standard", c.Profile)

	// stop is the tighter of swing low and EMA21 - 0.8*ATR
	assert.InDelta(t, 98.5, c.Stop, 1e-9)
	assert.InDelta(t, 103.5, c.Targets[0], 1e-9)
	assert.InDelta(t, 105.5, c.Targets[1], 1e-9)
	assert.InDelta(t, 107.5, c.Targets[2], 1e-9)
	assert.GreaterOrEqual(t, c.RiskReward, 1.6)

	// stack +25, vwap +15, macd +15, pullback +15, r/r bonus +15; volume
	// misses the breakout-grade threshold
	assert.InDelta(t, 85, c.Score, 1e-9)
	assert.GreaterOrEqual(t, c.Score, 60.0)
	assert.LessOrEqual(t, c.Score, 100.0)

	require.NotEmpty(t, c.Reasons)
	assert.Equal(t, "[standard]", c.Reasons[0])

	// acceptance opened the cooldown window
	assert.False(t, tracker.Eligible(context.Background(), "classic_v2", "BTCUSDT"))
	assert.Equal(t, clk.Now().Add(25*time.Minute), c.CooldownUntil)
}

func TestDecideRejectionSteps(t *testing.T) {
	ev, _, _ := newTestEvaluator(t)
	series := pullbackSeries(t)
	ctx := context.Background()

	t.Run("exec stack disagrees without vwap flip", func(t *testing.T) {
		snap := execSnap()
		snap.EMAFast, snap.EMASlow = snap.EMASlow, snap.EMAFast // break the stack
		snap.VWAP.Reclaimed = false
		out := ev.decide(ctx, "BTCUSDT", testProfile(), domain.Long, trendSnap(), snap, series)
		assert.Equal(t, StepExecAlign, out.Step)
	})

	t.Run("vwap reclaim substitutes for the stack", func(t *testing.T) {
		snap := execSnap()
		snap.EMAFast, snap.EMASlow = snap.EMASlow, snap.EMAFast
		snap.VWAP.Reclaimed = true
		// trigger needs EMASlow back under the close; the swapped stack
		// puts EMASlow at 99.0, still within 1% of the 98.5 low
		out := ev.decide(ctx, "ETHUSDT", testProfile(), domain.Long, trendSnap(), snap, series)
		assert.True(t, out.Accepted, "step=%s", out.Step)
	})

	t.Run("macd slope against direction", func(t *testing.T) {
		snap := execSnap()
		snap.MACD.Slope = -1
		out := ev.decide(ctx, "BTCUSDT", testProfile(), domain.Long, trendSnap(), snap, series)
		assert.Equal(t, StepMACD, out.Step)
	})

	t.Run("zero macd slope is neutral, not momentum", func(t *testing.T) {
		snap := execSnap()
		snap.MACD.Slope = 0
		out := ev.decide(ctx, "BTCUSDT", testProfile(), domain.Long, trendSnap(), snap, series)
		assert.Equal(t, StepMACD, out.Step)
	})

	t.Run("no entry trigger", func(t *testing.T) {
		snap := execSnap()
		snap.Volume.ZScore = 0.1
		snap.Volume.Multiple = 0.5
		out := ev.decide(ctx, "BTCUSDT", testProfile(), domain.Long, trendSnap(), snap, series)
		assert.Equal(t, StepEntry, out.Step)
	})

	t.Run("blocked divergence", func(t *testing.T) {
		snap := execSnap()
		snap.Diverge = indicators.DivergenceResult{Bearish: true, Confirmed: true}
		prof := testProfile()
		prof.BlockDivergence = true
		out := ev.decide(ctx, "BTCUSDT", prof, domain.Long, trendSnap(), snap, series)
		assert.Equal(t, StepDivergence, out.Step)
	})

	t.Run("unblocked divergence only penalizes", func(t *testing.T) {
		snap := execSnap()
		snap.Diverge = indicators.DivergenceResult{Bearish: true, Confirmed: true}
		out := ev.decide(ctx, "SOLUSDT", testProfile(), domain.Long, trendSnap(), snap, series)
		require.True(t, out.Accepted, "step=%s", out.Step)
		assert.InDelta(t, 75, out.Candidate.Score, 1e-9) // 85 - 10
	})

	t.Run("resistance too close", func(t *testing.T) {
		snap := execSnap()
		trend := trendSnap()
		// reject distance = 2.0 * 0.8 * 1.0 = 1.6; level 0.8 away
		trend.Pivots = []indicators.PivotLevel{{Price: 100.0, Kind: indicators.LevelResistance}}
		out := ev.decide(ctx, "BTCUSDT", testProfile(), domain.Long, trend, snap, series)
		assert.Equal(t, StepProximity, out.Step)
	})

	t.Run("proximity check skipped when multiplier is zero", func(t *testing.T) {
		snap := execSnap()
		trend := trendSnap()
		trend.Pivots = []indicators.PivotLevel{{Price: 100.0, Kind: indicators.LevelResistance}}
		prof := testProfile()
		prof.SRDistanceMult = 0
		out := ev.decide(ctx, "ADAUSDT", prof, domain.Long, trend, snap, series)
		require.True(t, out.Accepted, "step=%s", out.Step)
		// nearby level still costs the proximity penalty
		assert.InDelta(t, 75, out.Candidate.Score, 1e-9)
	})

	t.Run("risk reward below floor", func(t *testing.T) {
		prof := testProfile()
		prof.MinRR = 10 // swing-low stop gives r/r around 6
		out := ev.decide(ctx, "BTCUSDT", prof, domain.Long, trendSnap(), execSnap(), series)
		assert.Equal(t, StepRiskReward, out.Step)
	})

	t.Run("score below profile floor", func(t *testing.T) {
		prof := testProfile()
		prof.MinScore = 90
		out := ev.decide(ctx, "BTCUSDT", prof, domain.Long, trendSnap(), execSnap(), series)
		assert.Equal(t, StepScore, out.Step)
	})
}

// The volume weight rewards a genuine surge: a pullback that clears only
// the looser pullback floor fires without it, while breakout-grade volume
// earns it on either setup.
func TestVolumeWeightNeedsBreakoutGradeSurge(t *testing.T) {
	ev, _, _ := newTestEvaluator(t)
	series := pullbackSeries(t)
	ctx := context.Background()

	modest := ev.decide(ctx, "BTCUSDT", testProfile(), domain.Long, trendSnap(), execSnap(), series)
	require.True(t, modest.Accepted, "step=%s", modest.Step)
	assert.InDelta(t, 85, modest.Candidate.Score, 1e-9)

	snap := execSnap()
	snap.Volume.ZScore = 2.3
	snap.Volume.Multiple = 2.1
	surge := ev.decide(ctx, "ETHUSDT", testProfile(), domain.Long, trendSnap(), snap, series)
	require.True(t, surge.Accepted, "step=%s", surge.Step)
	assert.InDelta(t, 100, surge.Candidate.Score, 1e-9)
}

// Every candidate accepted by a stricter rung must also pass each looser
// rung of the same ladder over the same market snapshot.
func TestMonotonicRelaxation(t *testing.T) {
	ev, _, _ := newTestEvaluator(t)
	series := pullbackSeries(t)
	ladder := strategy.ClassicV2().Profiles

	strict := ev.decide(context.Background(), "AAAUSDT", ladder[0], domain.Long, trendSnap(), execSnap(), series)
	require.True(t, strict.Accepted, "step=%s", strict.Step)

	for _, prof := range ladder[1:] {
		out := ev.decide(context.Background(), "BBB"+prof.Name, prof, domain.Long, trendSnap(), execSnap(), series)
		assert.True(t, out.Accepted, "profile %s rejected at %s", prof.Name, out.Step)
	}
}

func TestEvaluateCooldownShortCircuitsBeforeFetch(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC))
	tracker := cooldown.NewTracker(nil, clk)
	md := &countingMD{}
	cfg := strategy.ClassicV2()
	ev := NewEvaluator(cfg, md, tracker, clk)

	tracker.Record(context.Background(), cfg.Name, "BTCUSDT", cfg.CooldownWindow())

	out := ev.Evaluate(context.Background(), "BTCUSDT", testProfile())
	assert.Equal(t, StepCooldown, out.Step)
	assert.Zero(t, atomic.LoadInt64(&md.klineCalls))

	// 10 minutes into a 25-minute window: still blocked
	clk.Add(10 * time.Minute)
	out = ev.Evaluate(context.Background(), "BTCUSDT", testProfile())
	assert.Equal(t, StepCooldown, out.Step)
	assert.Zero(t, atomic.LoadInt64(&md.klineCalls))

	// 26 minutes: eligible again, so the evaluator reaches the kline fetch
	clk.Add(16 * time.Minute)
	out = ev.Evaluate(context.Background(), "BTCUSDT", testProfile())
	assert.NotEqual(t, StepCooldown, out.Step)
	assert.NotZero(t, atomic.LoadInt64(&md.klineCalls))
}

func TestEvaluateSkipsOnProviderError(t *testing.T) {
	ev, _, _ := newTestEvaluator(t)
	out := ev.Evaluate(context.Background(), "BTCUSDT", testProfile())
	require.Error(t, out.Err)
	assert.False(t, out.Accepted)
}

func TestShortSideMirror(t *testing.T) {
	ev, _, _ := newTestEvaluator(t)

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	var candles []domain.Candle
	price := 105.0
	for i := 0; i < 30; i++ {
		open := price
		price -= 0.15
		candles = append(candles, domain.Candle{
			OpenTime: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:     open, High: open + 0.2, Low: price - 0.2, Close: price, Volume: 120,
		})
	}
	// rally into EMA21 at 101.4 that gets sold back under the fast EMA
	candles = append(candles, domain.Candle{
		OpenTime: start.Add(30 * 5 * time.Minute),
		Open:     100.6, High: 101.5, Low: 100.5, Close: 100.8, Volume: 260,
	})
	series, err := domain.NewSeries("BTCUSDT", "5", candles)
	require.NoError(t, err)

	trend := indicators.Snapshot{Close: 98.5, EMAFast: 99, EMAMid: 100, EMASlow: 101}
	exec := indicators.Snapshot{
		Close: 100.8, EMAFast: 101.0, EMAMid: 101.2, EMASlow: 101.4,
		ATR:    2.0,
		MACD:   indicators.MACDResult{IsValid: true, Slope: -1},
		VWAP:   indicators.VWAPResult{IsValid: true, Value: 101.1, Above: false},
		Volume: indicators.VolumeMetrics{IsValid: true, ZScore: 1.4, Multiple: 1.3},
	}

	out := ev.decide(context.Background(), "BTCUSDT", testProfile(), domain.Short, trend, exec, series)
	require.True(t, out.Accepted, "step=%s", out.Step)
	c := out.Candidate
	assert.Equal(t, domain.Short, c.Direction)
	assert.Equal(t, domain.SetupPullback, c.Setup)
	assert.Greater(t, c.Stop, c.Entry.Max)
	assert.Less(t, c.Targets[0], c.Entry.Min)
	assert.InDelta(t, 96.5, c.Targets[0], 1e-9)
}
