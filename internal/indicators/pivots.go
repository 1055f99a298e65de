package indicators

import (
	"sort"

	"github.com/sawpanic/signalrun/internal/domain"
)

// Pivot detection defaults. Span is the number of strictly lower/higher
// neighbors required on each side of a local extremum; nearby extrema are
// merged into one level when within the tolerance of each other.
const (
	DefaultPivotWindow  = 40
	DefaultPivotSpan    = 3
	pivotMergeTolerance = 0.003
)

// LevelKind classifies a pivot level relative to the reference price.
type LevelKind string

const (
	LevelSupport    LevelKind = "SUPPORT"
	LevelResistance LevelKind = "RESISTANCE"
)

// PivotLevel is a clustered support/resistance price level. Touches counts
// the extrema merged into the cluster.
type PivotLevel struct {
	Price   float64   `json:"price"`
	Kind    LevelKind `json:"kind"`
	Touches int       `json:"touches"`
}

// Pivots finds local high/low extrema over a trailing window, clusters
// nearby levels and classifies each cluster against the last close: above
// it resistance, below it support. Levels are returned in ascending price
// order. An empty result means no extremum qualified, not an error.
func Pivots(candles []domain.Candle, window, span int) []PivotLevel {
	if len(candles) == 0 || span <= 0 || len(candles) < 2*span+1 {
		return nil
	}

	start := len(candles) - window
	if start < span {
		start = span
	}
	end := len(candles) - 1 - span

	var prices []float64
	for i := start; i <= end; i++ {
		if isLocalHigh(candles, i, span) {
			prices = append(prices, candles[i].High)
		}
		if isLocalLow(candles, i, span) {
			prices = append(prices, candles[i].Low)
		}
	}
	if len(prices) == 0 {
		return nil
	}

	sort.Float64s(prices)
	ref := candles[len(candles)-1].Close

	var levels []PivotLevel
	clusterSum, clusterN := prices[0], 1
	flush := func() {
		price := clusterSum / float64(clusterN)
		kind := LevelSupport
		if price > ref {
			kind = LevelResistance
		}
		levels = append(levels, PivotLevel{Price: price, Kind: kind, Touches: clusterN})
	}
	for _, p := range prices[1:] {
		mean := clusterSum / float64(clusterN)
		if mean > 0 && (p-mean)/mean <= pivotMergeTolerance {
			clusterSum += p
			clusterN++
			continue
		}
		flush()
		clusterSum, clusterN = p, 1
	}
	flush()
	return levels
}

func isLocalHigh(candles []domain.Candle, i, span int) bool {
	for j := i - span; j <= i+span; j++ {
		if j == i {
			continue
		}
		if candles[j].High >= candles[i].High {
			return false
		}
	}
	return true
}

func isLocalLow(candles []domain.Candle, i, span int) bool {
	for j := i - span; j <= i+span; j++ {
		if j == i {
			continue
		}
		if candles[j].Low <= candles[i].Low {
			return false
		}
	}
	return true
}

// NearestAbove returns the closest level strictly above price.
func NearestAbove(levels []PivotLevel, price float64) (PivotLevel, bool) {
	for _, l := range levels {
		if l.Price > price {
			return l, true
		}
	}
	return PivotLevel{}, false
}

// NearestBelow returns the closest level strictly below price.
func NearestBelow(levels []PivotLevel, price float64) (PivotLevel, bool) {
	var found PivotLevel
	ok := false
	for _, l := range levels {
		if l.Price < price {
			found, ok = l, true
			continue
		}
		break
	}
	return found, ok
}
