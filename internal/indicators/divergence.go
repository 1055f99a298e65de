package indicators

// Divergence detection defaults. The confirmation epsilon is relative to
// the largest indicator magnitude in the window so it scales with price.
const (
	DefaultDivergenceWindow = 30
	DefaultDivergenceSpan   = 2
	divergenceEpsilonFrac   = 0.1
)

// DivergenceResult flags price/indicator disagreement at recent extrema.
// Bullish: price printed a lower low while the indicator printed a higher
// low. Bearish is the mirror at highs. Confirmed means the indicator gap
// cleared the noise epsilon.
type DivergenceResult struct {
	Bullish   bool `json:"bullish"`
	Bearish   bool `json:"bearish"`
	Confirmed bool `json:"confirmed"`
}

// Divergence compares the slope between the last two price extrema inside
// the trailing window against the slope between the indicator values at the
// same indices. Closes and indicator must be index-aligned; fewer than two
// extrema found means no divergence.
func Divergence(closes, indicator []float64, window, span int) DivergenceResult {
	var res DivergenceResult
	if len(closes) != len(indicator) || len(closes) < 2*span+1 || span <= 0 {
		return res
	}

	start := len(closes) - window
	if start < span {
		start = span
	}
	end := len(closes) - 1 - span

	var lows, highs []int
	for i := start; i <= end; i++ {
		if isSeriesLow(closes, i, span) {
			lows = append(lows, i)
		}
		if isSeriesHigh(closes, i, span) {
			highs = append(highs, i)
		}
	}

	epsilon := divergenceEpsilonFrac * maxAbsIn(indicator, start, end)

	if n := len(lows); n >= 2 {
		a, b := lows[n-2], lows[n-1]
		if closes[b] < closes[a] && indicator[b] > indicator[a] {
			res.Bullish = true
			res.Confirmed = indicator[b]-indicator[a] >= epsilon
		}
	}
	if n := len(highs); n >= 2 {
		a, b := highs[n-2], highs[n-1]
		if closes[b] > closes[a] && indicator[b] < indicator[a] {
			res.Bearish = true
			if indicator[a]-indicator[b] >= epsilon {
				res.Confirmed = true
			}
		}
	}
	return res
}

func isSeriesLow(vals []float64, i, span int) bool {
	for j := i - span; j <= i+span; j++ {
		if j == i {
			continue
		}
		if vals[j] <= vals[i] {
			return false
		}
	}
	return true
}

func isSeriesHigh(vals []float64, i, span int) bool {
	for j := i - span; j <= i+span; j++ {
		if j == i {
			continue
		}
		if vals[j] >= vals[i] {
			return false
		}
	}
	return true
}

func maxAbsIn(vals []float64, start, end int) float64 {
	var m float64
	for i := start; i <= end && i < len(vals); i++ {
		v := vals[i]
		if v < 0 {
			v = -v
		}
		if v > m {
			m = v
		}
	}
	return m
}
