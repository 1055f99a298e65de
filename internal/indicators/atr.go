package indicators

import "github.com/sawpanic/signalrun/internal/domain"

// DefaultATRPeriod is the standard lookback for average true range.
const DefaultATRPeriod = 14

// ATR returns the simple mean of true range over the most recent period
// candles. True range needs the prior close, so period+1 candles are
// required; with less ATR returns 0 and range-derived checks degrade.
func ATR(candles []domain.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}

	start := len(candles) - period
	var sum float64
	for i := start; i < len(candles); i++ {
		sum += candles[i].TrueRange(candles[i-1].Close)
	}
	return sum / float64(period)
}
