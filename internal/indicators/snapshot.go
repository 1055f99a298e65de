package indicators

import "github.com/sawpanic/signalrun/internal/domain"

// EMA stack periods shared by the trend and execution timeframes.
const (
	EMAFastPeriod = 9
	EMAMidPeriod  = 14
	EMASlowPeriod = 21
)

// Snapshot is one timeframe's complete indicator read. The evaluator
// computes it once per symbol per timeframe and works off the struct, so no
// indicator is recalculated mid-pipeline.
type Snapshot struct {
	Symbol    string           `json:"symbol"`
	Interval  string           `json:"interval"`
	Close     float64          `json:"close"`
	EMAFast   float64          `json:"ema_fast"`
	EMAMid    float64          `json:"ema_mid"`
	EMASlow   float64          `json:"ema_slow"`
	RSI       float64          `json:"rsi"`
	MACD      MACDResult       `json:"macd"`
	ATR       float64          `json:"atr"`
	VWAP      VWAPResult       `json:"vwap"`
	Volume    VolumeMetrics    `json:"volume"`
	Pivots    []PivotLevel     `json:"pivots"`
	Diverge   DivergenceResult `json:"divergence"`
	DataCount int              `json:"data_count"`
}

// Compute assembles the full indicator snapshot for a series.
func Compute(series domain.KlineSeries) Snapshot {
	closes := series.Closes()
	snap := Snapshot{
		Symbol:    series.Symbol,
		Interval:  series.Interval,
		EMAFast:   EMA(closes, EMAFastPeriod),
		EMAMid:    EMA(closes, EMAMidPeriod),
		EMASlow:   EMA(closes, EMASlowPeriod),
		RSI:       RSI(closes, DefaultRSIPeriod),
		MACD:      MACD(closes),
		ATR:       ATR(series.Candles, DefaultATRPeriod),
		VWAP:      VWAP(series.Candles, DefaultVWAPWindow),
		Volume:    Volume(series.Candles, DefaultVolumeWindow),
		Pivots:    Pivots(series.Candles, DefaultPivotWindow, DefaultPivotSpan),
		DataCount: series.Len(),
	}
	if last, ok := series.Last(); ok {
		snap.Close = last.Close
	}
	snap.Diverge = Divergence(closes, MACDHistogramSeries(closes), DefaultDivergenceWindow, DefaultDivergenceSpan)
	return snap
}

// StackedLong reports a bullish EMA alignment: fast above mid above slow.
func (s Snapshot) StackedLong() bool {
	return s.EMAFast > s.EMAMid && s.EMAMid > s.EMASlow
}

// StackedShort reports a bearish EMA alignment: fast below mid below slow.
func (s Snapshot) StackedShort() bool {
	return s.EMAFast < s.EMAMid && s.EMAMid < s.EMASlow
}
