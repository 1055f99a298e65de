package indicators

import (
	"math"

	"github.com/sawpanic/signalrun/internal/domain"
)

// DefaultVolumeWindow is the baseline window for volume statistics.
const DefaultVolumeWindow = 20

// VolumeMetrics describes the last candle's volume against its trailing
// baseline. The baseline excludes the current candle so a burst does not
// inflate its own reference. ZScore is 0 when the baseline has no variance
// and Multiple is 1 when it has no mean, keeping thresholds neutral.
type VolumeMetrics struct {
	Current  float64 `json:"current"`
	Average  float64 `json:"average"`
	ZScore   float64 `json:"z_score"`
	Multiple float64 `json:"multiple"`
	IsValid  bool    `json:"is_valid"`
}

// Volume computes volume statistics for the most recent candle over a
// trailing window of prior candles.
func Volume(candles []domain.Candle, window int) VolumeMetrics {
	if len(candles) == 0 || window <= 0 {
		return VolumeMetrics{Multiple: 1}
	}

	cur := candles[len(candles)-1].Volume
	res := VolumeMetrics{Current: cur, Multiple: 1}

	baseEnd := len(candles) - 1
	baseStart := baseEnd - window
	if baseStart < 0 {
		baseStart = 0
	}
	base := candles[baseStart:baseEnd]
	if len(base) == 0 {
		return res
	}

	var sum float64
	for _, c := range base {
		sum += c.Volume
	}
	mean := sum / float64(len(base))
	res.Average = mean

	var variance float64
	for _, c := range base {
		d := c.Volume - mean
		variance += d * d
	}
	stddev := math.Sqrt(variance / float64(len(base)))

	if stddev > 0 {
		res.ZScore = (cur - mean) / stddev
	}
	if mean > 0 {
		res.Multiple = cur / mean
	}
	res.IsValid = len(base) >= window
	return res
}
