// Package indicators implements the technical indicator battery used by the
// scan engine: moving averages, oscillators, volatility, volume statistics,
// pivot levels and divergence. Every function operates on chronological
// (oldest-first) series and degrades to a neutral value on insufficient
// history instead of returning an error.
package indicators

// EMA returns the exponential moving average of prices at the given period.
// The average is seeded with the simple mean of the first period values and
// smoothed with k = 2/(period+1). With fewer than period prices the last
// price is returned so downstream comparisons degrade to neutral.
func EMA(prices []float64, period int) float64 {
	if len(prices) == 0 || period <= 0 {
		return 0
	}
	if len(prices) < period {
		return prices[len(prices)-1]
	}

	var seed float64
	for _, p := range prices[:period] {
		seed += p
	}
	ema := seed / float64(period)

	k := 2.0 / (float64(period) + 1.0)
	for _, p := range prices[period:] {
		ema = ema + k*(p-ema)
	}
	return ema
}

// EMASeries returns the running EMA for every index of prices. Indices
// before period-1 carry the progressive simple mean of the values seen so
// far, index period-1 carries the seed mean, and later indices follow the
// EMA recurrence. The result is aligned with the input, which keeps
// derived series (MACD line, histogram) index-compatible with prices.
func EMASeries(prices []float64, period int) []float64 {
	if len(prices) == 0 || period <= 0 {
		return nil
	}

	out := make([]float64, len(prices))
	var sum float64
	for i, p := range prices {
		if i < period {
			sum += p
			out[i] = sum / float64(i+1)
			continue
		}
		k := 2.0 / (float64(period) + 1.0)
		out[i] = out[i-1] + k*(p-out[i-1])
	}
	return out
}
