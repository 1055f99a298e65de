package engine

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/benbjohnson/clock"

	"github.com/sawpanic/signalrun/internal/cooldown"
	"github.com/sawpanic/signalrun/internal/domain"
	"github.com/sawpanic/signalrun/internal/indicators"
	"github.com/sawpanic/signalrun/internal/micro"
	"github.com/sawpanic/signalrun/internal/profile"
	"github.com/sawpanic/signalrun/internal/provider"
	"github.com/sawpanic/signalrun/internal/strategy"
)

// Pipeline steps, in evaluation order. A rejected Outcome names the step
// that ended it so scan summaries can show where candidates die.
const (
	StepCooldown   = "cooldown"
	StepHistory    = "history"
	StepTrend      = "trend"
	StepExecAlign  = "exec_alignment"
	StepMACD       = "macd"
	StepEntry      = "entry_trigger"
	StepDivergence = "divergence"
	StepProximity  = "sr_proximity"
	StepRiskReward = "risk_reward"
	StepScore      = "score"
)

const bookDepth = 25

// Outcome is the result of evaluating one symbol against one profile.
// Exactly one of Accepted, Step or Err is meaningful: accepted candidates
// carry the Candidate, rejections carry the step name, provider failures
// carry the error and the symbol is skipped, never failing the scan.
type Outcome struct {
	Symbol    string
	Profile   string
	Accepted  bool
	Step      string
	Err       error
	Candidate *domain.SignalCandidate
}

// Evaluator runs the per-symbol entry pipeline for one strategy. It is
// stateless between calls except for the cooldown tracker, so one instance
// serves all worker goroutines.
type Evaluator struct {
	cfg     strategy.Config
	md      provider.MarketData
	tracker *cooldown.Tracker
	scorer  *micro.Scorer
	clk     clock.Clock
}

func NewEvaluator(cfg strategy.Config, md provider.MarketData, tracker *cooldown.Tracker, clk clock.Clock) *Evaluator {
	if tracker == nil {
		tracker = cooldown.NewTracker(nil, clk)
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Evaluator{
		cfg:     cfg,
		md:      md,
		tracker: tracker,
		scorer:  micro.NewScorer(0, 0, 0),
		clk:     clk,
	}
}

// Evaluate walks one symbol through the full pipeline under the given
// profile. The cooldown gate runs before any data is fetched so suppressed
// symbols cost nothing, and the exec timeframe is only fetched once the
// trend timeframe has picked a side.
func (e *Evaluator) Evaluate(ctx context.Context, symbol string, prof profile.Profile) Outcome {
	out := Outcome{Symbol: symbol, Profile: prof.Name}

	if !e.tracker.Eligible(ctx, e.cfg.Name, symbol) {
		out.Step = StepCooldown
		return out
	}

	trendSeries, err := e.fetchSeries(ctx, symbol, e.cfg.TrendInterval)
	if err != nil {
		out.Err = err
		return out
	}
	if trendSeries.Len() < indicators.EMASlowPeriod {
		out.Step = StepHistory
		return out
	}
	trend := indicators.Compute(trendSeries)

	direction, ok := trendDirection(trend)
	if !ok {
		out.Step = StepTrend
		return out
	}

	execSeries, err := e.fetchSeries(ctx, symbol, e.cfg.ExecInterval)
	if err != nil {
		out.Err = err
		return out
	}
	if execSeries.Len() < indicators.EMASlowPeriod {
		out.Step = StepHistory
		return out
	}
	exec := indicators.Compute(execSeries)

	return e.decide(ctx, symbol, prof, direction, trend, exec, execSeries)
}

// decide applies the alignment, trigger, structure and scoring stages to
// already-computed snapshots and returns the final verdict for the symbol.
func (e *Evaluator) decide(ctx context.Context, symbol string, prof profile.Profile, direction domain.Direction, trend, exec indicators.Snapshot, execSeries domain.KlineSeries) Outcome {
	out := Outcome{Symbol: symbol, Profile: prof.Name}

	execStacked := stackAgrees(exec, direction)
	vwapSub := false
	if !execStacked {
		vwapSub = (direction == domain.Long && exec.VWAP.Reclaimed) ||
			(direction == domain.Short && exec.VWAP.Rejected)
		if !vwapSub && !prof.ExecTFOptional {
			out.Step = StepExecAlign
			return out
		}
	}

	if !macdAgrees(exec.MACD, direction) {
		out.Step = StepMACD
		return out
	}

	trig, ok := e.entryTrigger(direction, prof, execSeries, exec)
	if !ok {
		out.Step = StepEntry
		return out
	}

	opposingDiv := exec.Diverge.Confirmed &&
		((direction == domain.Long && exec.Diverge.Bearish) ||
			(direction == domain.Short && exec.Diverge.Bullish))
	if opposingDiv && prof.BlockDivergence {
		out.Step = StepDivergence
		return out
	}

	srDist, srPrice, srFound := opposingLevel(trend.Pivots, direction, exec.Close)
	srPenalty := false
	if srFound {
		if prof.SRDistanceMult > 0 {
			rejectDist := exec.ATR * prof.StopATRCoeff * prof.SRDistanceMult
			if srDist < rejectDist {
				out.Step = StepProximity
				return out
			}
			srPenalty = srDist < 2*rejectDist
		} else {
			srPenalty = srDist < exec.ATR*prof.StopATRCoeff
		}
	}

	lv, ok := ComputeLevels(LevelInputs{
		Direction:    direction,
		EntryPrice:   exec.Close,
		CurrentPrice: trend.Close,
		ATR:          exec.ATR,
		EMASlow:      exec.EMASlow,
		SwingLow:     execSeries.LowestLow(e.cfg.SwingLookback),
		SwingHigh:    execSeries.HighestHigh(e.cfg.SwingLookback),
		StopATRCoeff: prof.StopATRCoeff,
	})
	if !ok || lv.RiskReward < prof.MinRR {
		out.Step = StepRiskReward
		return out
	}

	w := e.cfg.Weights
	sc := newScoreCard(prof.Name)
	sc.note(fmt.Sprintf("%sm trend stacked %s", e.cfg.TrendInterval, strings.ToLower(string(direction))))

	switch {
	case execStacked:
		sc.add(w.EMAStack, "exec ema stack aligned")
	case vwapSub:
		sc.note("vwap flip stands in for exec stack")
	default:
		sc.note("exec alignment waived")
	}

	scoreVWAP(sc, w.VWAP, exec.VWAP, direction)

	if direction == domain.Long {
		sc.add(w.MACD, "macd histogram rising")
	} else {
		sc.add(w.MACD, "macd histogram falling")
	}

	if trig.breakoutVolume {
		sc.add(w.Volume, fmt.Sprintf("volume surge z %.1f x%.1f", exec.Volume.ZScore, exec.Volume.Multiple))
	}

	if trig.setup == domain.SetupPullback {
		sc.add(w.Pullback, trig.reason)
	} else {
		sc.add(w.Breakout, trig.reason)
	}

	if lv.RiskReward >= e.cfg.RRBonusThreshold {
		sc.add(w.RiskReward, fmt.Sprintf("r/r %.2f", lv.RiskReward))
	}

	if e.cfg.UseOrderBook && w.OrderBook > 0 {
		e.scoreOrderBook(ctx, sc, symbol, direction)
	}

	if opposingDiv {
		if direction == domain.Long {
			sc.penalize(w.DivergencePenalty, "bearish divergence against entry")
		} else {
			sc.penalize(w.DivergencePenalty, "bullish divergence against entry")
		}
	}

	if srPenalty {
		sc.penalize(w.ProximityPenalty, fmt.Sprintf("opposing level %.6g nearby", srPrice))
	}

	score := sc.score()
	if score < prof.MinScore {
		out.Step = StepScore
		return out
	}

	// cooldown starts at acceptance and stands even if ranking later caps
	// the candidate out of the final set
	until := e.tracker.Record(ctx, e.cfg.Name, symbol, e.cfg.CooldownWindow())

	out.Accepted = true
	out.Candidate = &domain.SignalCandidate{
		Symbol:        symbol,
		Strategy:      e.cfg.Name,
		Profile:       prof.Name,
		Direction:     direction,
		Setup:         trig.setup,
		Entry:         entryZone(trig.setup, exec.EMASlow, trig.rangeBound, exec.Close),
		Stop:          lv.Stop,
		Targets:       lv.Targets,
		Score:         score,
		RiskReward:    lv.RiskReward,
		Price:         trend.Close,
		Reasons:       sc.reasons,
		TrendInterval: e.cfg.TrendInterval,
		ExecInterval:  e.cfg.ExecInterval,
		EvaluatedAt:   e.clk.Now().UTC(),
		CooldownUntil: until,
	}
	return out
}

func (e *Evaluator) fetchSeries(ctx context.Context, symbol, interval string) (domain.KlineSeries, error) {
	raw, err := e.md.Klines(ctx, symbol, interval, e.cfg.KlineLimit)
	if err != nil {
		return domain.KlineSeries{}, err
	}
	s, err := domain.NewSeries(symbol, interval, raw)
	if err != nil {
		return domain.KlineSeries{}, fmt.Errorf("normalize %s %sm klines: %w", symbol, interval, err)
	}
	return s, nil
}

// trendDirection derives the trade side from the trend timeframe: a full
// EMA stack with price leading the fast EMA.
func trendDirection(s indicators.Snapshot) (domain.Direction, bool) {
	if s.StackedLong() && s.Close > s.EMAFast {
		return domain.Long, true
	}
	if s.StackedShort() && s.Close < s.EMAFast {
		return domain.Short, true
	}
	return "", false
}

func stackAgrees(s indicators.Snapshot, d domain.Direction) bool {
	if d == domain.Long {
		return s.StackedLong()
	}
	return s.StackedShort()
}

func macdAgrees(m indicators.MACDResult, d domain.Direction) bool {
	if !m.IsValid {
		return false
	}
	if d == domain.Long {
		return m.Slope > 0
	}
	return m.Slope < 0
}

// trigger describes the entry that fired. breakoutVolume reports whether
// the stricter breakout-grade volume threshold was met, which earns the
// volume score even for pullback entries.
type trigger struct {
	setup          domain.SetupType
	reason         string
	rangeBound     float64
	breakoutVolume bool
}

// entryTrigger checks pullback first, then breakout. A pullback needs the
// last candle to touch the slow EMA within tolerance, close back above the
// fast EMA (below, for shorts) and clear the looser pullback volume floor.
// A breakout needs a close beyond the prior range with breakout-grade
// volume.
func (e *Evaluator) entryTrigger(d domain.Direction, prof profile.Profile, series domain.KlineSeries, snap indicators.Snapshot) (trigger, bool) {
	last, ok := series.Last()
	if !ok || snap.EMASlow <= 0 {
		return trigger{}, false
	}
	vol := snap.Volume
	pullVolOK := vol.IsValid &&
		(vol.ZScore >= prof.PullbackVolumeZ || vol.Multiple >= prof.PullbackVolumeMultiple)
	breakVolOK := vol.IsValid &&
		(vol.ZScore >= prof.VolumeZ || vol.Multiple >= prof.VolumeMultiple)

	prior := domain.KlineSeries{Candles: series.Candles[:series.Len()-1]}

	if d == domain.Long {
		touched := math.Abs(last.Low-snap.EMASlow) <= prof.TouchTolerance*snap.EMASlow
		if touched && last.Close > snap.EMAFast && pullVolOK {
			return trigger{domain.SetupPullback, "pullback to ema21 held", snap.EMASlow, breakVolOK}, true
		}
		rangeHigh := prior.HighestHigh(e.cfg.BreakoutLookback)
		if last.Close > rangeHigh && breakVolOK {
			reason := fmt.Sprintf("breakout above %d-candle high", e.cfg.BreakoutLookback)
			return trigger{domain.SetupBreakout, reason, rangeHigh, true}, true
		}
		return trigger{}, false
	}

	touched := math.Abs(last.High-snap.EMASlow) <= prof.TouchTolerance*snap.EMASlow
	if touched && last.Close < snap.EMAFast && pullVolOK {
		return trigger{domain.SetupPullback, "pullback to ema21 rejected", snap.EMASlow, breakVolOK}, true
	}
	rangeLow := prior.LowestLow(e.cfg.BreakoutLookback)
	if rangeLow > 0 && last.Close < rangeLow && breakVolOK {
		reason := fmt.Sprintf("breakdown below %d-candle low", e.cfg.BreakoutLookback)
		return trigger{domain.SetupBreakout, reason, rangeLow, true}, true
	}
	return trigger{}, false
}

// opposingLevel finds the nearest structural level working against the
// trade: resistance above a long entry, support below a short entry.
func opposingLevel(levels []indicators.PivotLevel, d domain.Direction, price float64) (dist, levelPrice float64, found bool) {
	if d == domain.Long {
		lvl, ok := indicators.NearestAbove(levels, price)
		if !ok {
			return 0, 0, false
		}
		return lvl.Price - price, lvl.Price, true
	}
	lvl, ok := indicators.NearestBelow(levels, price)
	if !ok {
		return 0, 0, false
	}
	return price - lvl.Price, lvl.Price, true
}

func scoreVWAP(sc *scoreCard, weight float64, v indicators.VWAPResult, d domain.Direction) {
	if !v.IsValid {
		return
	}
	if d == domain.Long {
		switch {
		case v.Reclaimed:
			sc.add(weight, "vwap reclaimed")
		case v.Above:
			sc.add(weight, "price above vwap")
		}
		return
	}
	switch {
	case v.Rejected:
		sc.add(weight, "vwap rejected")
	case !v.Above:
		sc.add(weight, "price below vwap")
	}
}

func (e *Evaluator) scoreOrderBook(ctx context.Context, sc *scoreCard, symbol string, d domain.Direction) {
	book, err := e.md.OrderBook(ctx, symbol, bookDepth)
	if err != nil {
		sc.note("order book unavailable")
		return
	}
	a := e.scorer.Assess(book)
	switch {
	case e.scorer.Favors(a, d):
		sc.add(e.cfg.Weights.OrderBook, "order book depth favors entry")
	case e.scorer.Opposes(a, d):
		sc.penalize(e.cfg.Weights.OrderBook, "order book depth opposes entry")
	}
}
