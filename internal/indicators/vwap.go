package indicators

import "github.com/sawpanic/signalrun/internal/domain"

// DefaultVWAPWindow is the trailing candle count VWAP is computed over.
const DefaultVWAPWindow = 20

// VWAPResult carries the rolling VWAP and the close's relation to it.
// Reclaimed and Rejected flag a cross within the last two candles: a close
// moving from below to above the concurrent VWAP (reclaim) or the mirror
// (reject). Both are cleared again once the close crosses back.
type VWAPResult struct {
	Value     float64 `json:"value"`
	Above     bool    `json:"above"`
	Reclaimed bool    `json:"reclaimed"`
	Rejected  bool    `json:"rejected"`
	IsValid   bool    `json:"is_valid"`
}

// VWAP computes the volume-weighted typical price over a trailing window
// ending at the last candle. With no volume in the window the last close is
// returned as a neutral value.
func VWAP(candles []domain.Candle, window int) VWAPResult {
	if len(candles) == 0 || window <= 0 {
		return VWAPResult{}
	}

	last := len(candles) - 1
	value, ok := vwapAt(candles, window, last)
	if !ok {
		return VWAPResult{Value: candles[last].Close}
	}

	res := VWAPResult{Value: value, IsValid: true}
	res.Above = candles[last].Close > value

	if res.Above {
		res.Reclaimed = crossedUpAt(candles, window, last) || crossedUpAt(candles, window, last-1)
	} else {
		res.Rejected = crossedDownAt(candles, window, last) || crossedDownAt(candles, window, last-1)
	}
	return res
}

// vwapAt computes the rolling VWAP for the window ending at index end.
func vwapAt(candles []domain.Candle, window, end int) (float64, bool) {
	if end < 0 || end >= len(candles) {
		return 0, false
	}
	start := end - window + 1
	if start < 0 {
		start = 0
	}
	var pv, vol float64
	for _, c := range candles[start : end+1] {
		pv += c.TypicalPrice() * c.Volume
		vol += c.Volume
	}
	if vol == 0 {
		return 0, false
	}
	return pv / vol, true
}

func crossedUpAt(candles []domain.Candle, window, i int) bool {
	if i < 1 {
		return false
	}
	cur, okCur := vwapAt(candles, window, i)
	prev, okPrev := vwapAt(candles, window, i-1)
	if !okCur || !okPrev {
		return false
	}
	return candles[i].Close > cur && candles[i-1].Close <= prev
}

func crossedDownAt(candles []domain.Candle, window, i int) bool {
	if i < 1 {
		return false
	}
	cur, okCur := vwapAt(candles, window, i)
	prev, okPrev := vwapAt(candles, window, i-1)
	if !okCur || !okPrev {
		return false
	}
	return candles[i].Close < cur && candles[i-1].Close >= prev
}
