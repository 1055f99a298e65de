package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/signalrun/internal/domain"
)

func pivotCandles(highs, lows []float64, lastClose float64) []domain.Candle {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Candle, len(highs))
	for i := range highs {
		close := (highs[i] + lows[i]) / 2
		if i == len(highs)-1 {
			close = lastClose
		}
		out[i] = domain.Candle{
			OpenTime: base.Add(time.Duration(i) * 5 * time.Minute),
			High:     highs[i],
			Low:      lows[i],
			Close:    close,
			Volume:   100,
		}
	}
	return out
}

func TestPivotsFindsAndClassifiesExtrema(t *testing.T) {
	highs := []float64{100, 101, 110, 101, 100, 99, 98, 97, 96}
	lows := []float64{99, 100, 109, 100, 99, 98, 90, 96, 95}

	levels := Pivots(pivotCandles(highs, lows, 95.5), 40, 1)

	require.Len(t, levels, 2)
	assert.Equal(t, 90.0, levels[0].Price)
	assert.Equal(t, LevelSupport, levels[0].Kind)
	assert.Equal(t, 110.0, levels[1].Price)
	assert.Equal(t, LevelResistance, levels[1].Kind)
}

func TestPivotsMergesNearbyLevels(t *testing.T) {
	highs := []float64{99, 98, 100, 97, 96, 98, 100.2, 97, 96}
	lows := make([]float64, len(highs))
	for i := range lows {
		lows[i] = 50 // flat floor, no local lows
	}

	levels := Pivots(pivotCandles(highs, lows, 60), 40, 1)

	require.Len(t, levels, 1)
	assert.InDelta(t, 100.1, levels[0].Price, 1e-9)
	assert.Equal(t, 2, levels[0].Touches)
	assert.Equal(t, LevelResistance, levels[0].Kind)
}

func TestPivotsFlatSeriesHasNoLevels(t *testing.T) {
	highs := []float64{100, 100, 100, 100, 100}
	lows := []float64{99, 99, 99, 99, 99}

	assert.Nil(t, Pivots(pivotCandles(highs, lows, 99.5), 40, 1))
}

func TestNearestAboveAndBelow(t *testing.T) {
	levels := []PivotLevel{
		{Price: 90, Kind: LevelSupport},
		{Price: 95, Kind: LevelSupport},
		{Price: 105, Kind: LevelResistance},
	}

	up, ok := NearestAbove(levels, 100)
	require.True(t, ok)
	assert.Equal(t, 105.0, up.Price)

	down, ok := NearestBelow(levels, 100)
	require.True(t, ok)
	assert.Equal(t, 95.0, down.Price)

	_, ok = NearestAbove(levels, 106)
	assert.False(t, ok)

	_, ok = NearestBelow(levels, 89)
	assert.False(t, ok)
}
