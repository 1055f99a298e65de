package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/signalrun/internal/domain"
)

func volumeCandles(volumes []float64) []domain.Candle {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Candle, len(volumes))
	for i, v := range volumes {
		out[i] = domain.Candle{
			OpenTime: base.Add(time.Duration(i) * 5 * time.Minute),
			High:     101,
			Low:      99,
			Close:    100,
			Volume:   v,
		}
	}
	return out
}

func TestVolumeHandComputed(t *testing.T) {
	// Baseline [10, 12, 8, 10]: mean 10, population stddev sqrt(2).
	// Current 16: z = 6/sqrt(2) = 4.2426, multiple = 1.6.
	res := Volume(volumeCandles([]float64{10, 12, 8, 10, 16}), 4)

	assert.True(t, res.IsValid)
	assert.Equal(t, 16.0, res.Current)
	assert.InDelta(t, 10.0, res.Average, 1e-9)
	assert.InDelta(t, 4.242640687, res.ZScore, 1e-6)
	assert.InDelta(t, 1.6, res.Multiple, 1e-9)
}

func TestVolumeZeroVarianceBaseline(t *testing.T) {
	res := Volume(volumeCandles([]float64{10, 10, 10, 10, 20}), 4)

	assert.Equal(t, 0.0, res.ZScore) // no variance, z stays neutral
	assert.InDelta(t, 2.0, res.Multiple, 1e-9)
}

func TestVolumeShortBaselineNotValid(t *testing.T) {
	res := Volume(volumeCandles([]float64{10, 14}), 20)

	assert.False(t, res.IsValid)
	assert.Equal(t, 14.0, res.Current)
	assert.InDelta(t, 10.0, res.Average, 1e-9)
}

func TestVolumeEmpty(t *testing.T) {
	res := Volume(nil, 20)

	assert.False(t, res.IsValid)
	assert.Equal(t, 1.0, res.Multiple)
}
