// Package strategy carries the per-strategy scan parameterization. The
// three historical scanner variants (classic_v2, classic_crypto_pro_v3,
// monster_v2) are presets of the same Config consumed by one engine.
package strategy

import (
	"fmt"
	"strconv"
	"time"

	"github.com/sawpanic/signalrun/internal/profile"
)

// Weights are the additive confidence score contributions. Points accrue on
// a 0..100 scale; penalties subtract.
type Weights struct {
	EMAStack          float64 `yaml:"ema_stack"`          // execution timeframe stack agrees with trend
	VWAP              float64 `yaml:"vwap"`               // VWAP condition satisfied
	MACD              float64 `yaml:"macd"`               // histogram slope favors direction
	Volume            float64 `yaml:"volume"`             // entry volume threshold met
	Pullback          float64 `yaml:"pullback"`           // pullback entry bonus
	Breakout          float64 `yaml:"breakout"`           // breakout entry bonus
	RiskReward        float64 `yaml:"risk_reward"`        // R/R at or above the bonus threshold
	OrderBook         float64 `yaml:"order_book"`         // depth imbalance favors direction
	DivergencePenalty float64 `yaml:"divergence_penalty"` // confirmed divergence against trend
	ProximityPenalty  float64 `yaml:"proximity_penalty"`  // close to opposing S/R level
}

// DefaultWeights returns the standard scoring model.
func DefaultWeights() Weights {
	return Weights{
		EMAStack:          25,
		VWAP:              15,
		MACD:              15,
		Volume:            15,
		Pullback:          15,
		Breakout:          10,
		RiskReward:        15,
		DivergencePenalty: 10,
		ProximityPenalty:  10,
	}
}

func (w Weights) zero() bool {
	return w == Weights{}
}

// Config parameterizes one strategy: timeframe pair, scoring weights, the
// relaxation ladder and the scan stopping rule.
type Config struct {
	Name          string `yaml:"name"`
	TrendInterval string `yaml:"trend_interval"` // higher timeframe, venue minute notation
	ExecInterval  string `yaml:"exec_interval"`  // execution timeframe, must be lower

	KlineLimit       int     `yaml:"kline_limit"`
	BreakoutLookback int     `yaml:"breakout_lookback"` // prior-range candles for breakout detection
	SwingLookback    int     `yaml:"swing_lookback"`    // candles for the swing-extreme stop bound
	RRBonusThreshold float64 `yaml:"rr_bonus_threshold"`

	TargetCandidates  int  `yaml:"target_candidates"` // ladder stops once this many accumulated
	MaxSignalsPerScan int  `yaml:"max_signals_per_scan"`
	CooldownCandles   int  `yaml:"cooldown_candles"` // in execution timeframe candles
	UseOrderBook      bool `yaml:"use_order_book"`

	Weights  Weights           `yaml:"weights"`
	Profiles []profile.Profile `yaml:"profiles"`
}

// ExecMinutes parses the execution interval into minutes.
func (c Config) ExecMinutes() int {
	n, _ := strconv.Atoi(c.ExecInterval)
	return n
}

// TrendMinutes parses the trend interval into minutes.
func (c Config) TrendMinutes() int {
	n, _ := strconv.Atoi(c.TrendInterval)
	return n
}

// CooldownWindow is the duration a symbol stays blocked after acceptance.
func (c Config) CooldownWindow() time.Duration {
	return time.Duration(c.CooldownCandles*c.ExecMinutes()) * time.Minute
}

// FillDefaults populates unset optional fields so operator YAML can stay
// minimal. Name, intervals and profiles are deliberately not defaulted.
func (c *Config) FillDefaults() {
	if c.KlineLimit == 0 {
		c.KlineLimit = 150
	}
	if c.BreakoutLookback == 0 {
		c.BreakoutLookback = 20
	}
	if c.SwingLookback == 0 {
		c.SwingLookback = 5
	}
	if c.RRBonusThreshold == 0 {
		c.RRBonusThreshold = 2.0
	}
	if c.TargetCandidates == 0 {
		c.TargetCandidates = 5
	}
	if c.MaxSignalsPerScan == 0 {
		c.MaxSignalsPerScan = 10
	}
	if c.CooldownCandles == 0 {
		c.CooldownCandles = 5
	}
	if c.Weights.zero() {
		c.Weights = DefaultWeights()
	}
}

// Validate returns every configuration issue found. A non-empty result is
// fatal at startup; nothing here is recoverable mid-scan.
func (c Config) Validate() []string {
	var issues []string
	if c.Name == "" {
		issues = append(issues, "strategy name is required")
	}
	trend, errT := strconv.Atoi(c.TrendInterval)
	exec, errE := strconv.Atoi(c.ExecInterval)
	if errT != nil || trend <= 0 {
		issues = append(issues, fmt.Sprintf("%s: trend_interval %q is not a minute interval", c.Name, c.TrendInterval))
	}
	if errE != nil || exec <= 0 {
		issues = append(issues, fmt.Sprintf("%s: exec_interval %q is not a minute interval", c.Name, c.ExecInterval))
	}
	if errT == nil && errE == nil && exec >= trend {
		issues = append(issues, fmt.Sprintf("%s: exec_interval %q must be below trend_interval %q", c.Name, c.ExecInterval, c.TrendInterval))
	}
	if c.KlineLimit < 50 {
		issues = append(issues, fmt.Sprintf("%s: kline_limit %d too small for the indicator battery", c.Name, c.KlineLimit))
	}
	if c.BreakoutLookback <= 0 {
		issues = append(issues, fmt.Sprintf("%s: breakout_lookback must be positive", c.Name))
	}
	if c.SwingLookback <= 0 {
		issues = append(issues, fmt.Sprintf("%s: swing_lookback must be positive", c.Name))
	}
	if c.RRBonusThreshold <= 0 {
		issues = append(issues, fmt.Sprintf("%s: rr_bonus_threshold must be positive", c.Name))
	}
	if c.TargetCandidates <= 0 {
		issues = append(issues, fmt.Sprintf("%s: target_candidates must be positive", c.Name))
	}
	if c.MaxSignalsPerScan <= 0 {
		issues = append(issues, fmt.Sprintf("%s: max_signals_per_scan must be positive", c.Name))
	}
	if c.CooldownCandles < 0 {
		issues = append(issues, fmt.Sprintf("%s: cooldown_candles must be >= 0", c.Name))
	}
	for _, w := range []float64{c.Weights.EMAStack, c.Weights.VWAP, c.Weights.MACD, c.Weights.Volume,
		c.Weights.Pullback, c.Weights.Breakout, c.Weights.RiskReward, c.Weights.OrderBook,
		c.Weights.DivergencePenalty, c.Weights.ProximityPenalty} {
		if w < 0 {
			issues = append(issues, fmt.Sprintf("%s: weights must be >= 0", c.Name))
			break
		}
	}
	for _, issue := range profile.ValidateLadder(c.Profiles) {
		issues = append(issues, fmt.Sprintf("%s: %s", c.Name, issue))
	}
	return issues
}
