package indicators

// MACD periods follow the conventional 12/26/9 setup.
const (
	macdFastPeriod   = 12
	macdSlowPeriod   = 26
	macdSignalPeriod = 9
)

// MACDResult is one point-in-time MACD read.
type MACDResult struct {
	Value     float64 `json:"value"`     // EMA12 - EMA26
	Signal    float64 `json:"signal"`    // EMA9 of the value series
	Histogram float64 `json:"histogram"` // Value - Signal
	Slope     int     `json:"slope"`     // sign of the most recent histogram delta
	IsValid   bool    `json:"is_valid"`
	DataCount int     `json:"data_count"`
}

// MACD computes the moving average convergence/divergence of prices. It
// needs slow+signal periods of history for a fully converged read; with
// less it returns a zeroed, not-valid result that downstream trend checks
// treat as neutral.
func MACD(prices []float64) MACDResult {
	res := MACDResult{DataCount: len(prices)}
	if len(prices) < macdSlowPeriod+macdSignalPeriod {
		return res
	}

	hist := MACDHistogramSeries(prices)
	line, signal := macdLineAndSignal(prices)

	last := len(hist) - 1
	res.Value = line[last]
	res.Signal = signal[last]
	res.Histogram = hist[last]
	res.IsValid = true

	delta := hist[last] - hist[last-1]
	switch {
	case delta > 0:
		res.Slope = 1
	case delta < 0:
		res.Slope = -1
	}
	return res
}

// MACDHistogramSeries returns the histogram (line minus signal) aligned
// with prices. Divergence detection walks this series against closes.
func MACDHistogramSeries(prices []float64) []float64 {
	line, signal := macdLineAndSignal(prices)
	if line == nil {
		return nil
	}
	hist := make([]float64, len(line))
	for i := range line {
		hist[i] = line[i] - signal[i]
	}
	return hist
}

func macdLineAndSignal(prices []float64) (line, signal []float64) {
	if len(prices) == 0 {
		return nil, nil
	}
	fast := EMASeries(prices, macdFastPeriod)
	slow := EMASeries(prices, macdSlowPeriod)

	line = make([]float64, len(prices))
	for i := range prices {
		line[i] = fast[i] - slow[i]
	}
	signal = EMASeries(line, macdSignalPeriod)
	return line, signal
}
