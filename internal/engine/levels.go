// Package engine runs the scan: it walks the strategy's profile ladder over
// the filtered universe, evaluates each symbol through the entry pipeline,
// scores survivors and assembles ranked trading signals.
package engine

import (
	"github.com/sawpanic/signalrun/internal/domain"
)

// LevelInputs carries everything the price-level math needs. ATR, the slow
// EMA and the swing extremes come from the execution timeframe; the current
// price is the trend timeframe's last close.
type LevelInputs struct {
	Direction    domain.Direction
	EntryPrice   float64 // execution timeframe last close
	CurrentPrice float64 // trend timeframe last close
	ATR          float64
	EMASlow      float64
	SwingLow     float64
	SwingHigh    float64
	StopATRCoeff float64
}

// Levels is the computed stop/target geometry for a candidate.
type Levels struct {
	Stop       float64
	Targets    [3]float64
	Risk       float64
	Reward     float64
	RiskReward float64
}

// ComputeLevels derives stop, targets and risk/reward. The stop is the
// tighter of the swing extreme and the slow EMA offset by ATR; targets sit
// at 1x/2x/3x ATR from the current price. Returns false when ATR is not
// positive or the stop lands on the wrong side of the entry, which makes
// the candidate untradeable.
func ComputeLevels(in LevelInputs) (Levels, bool) {
	if in.ATR <= 0 || in.EntryPrice <= 0 {
		return Levels{}, false
	}

	var lv Levels
	offset := in.ATR * in.StopATRCoeff

	if in.Direction == domain.Long {
		lv.Stop = in.EMASlow - offset
		if in.SwingLow > lv.Stop {
			lv.Stop = in.SwingLow
		}
		for i := 0; i < 3; i++ {
			lv.Targets[i] = in.CurrentPrice + float64(i+1)*in.ATR
		}
		lv.Risk = in.EntryPrice - lv.Stop
		lv.Reward = lv.Targets[0] - in.EntryPrice
	} else {
		lv.Stop = in.EMASlow + offset
		if in.SwingHigh > 0 && in.SwingHigh < lv.Stop {
			lv.Stop = in.SwingHigh
		}
		for i := 0; i < 3; i++ {
			lv.Targets[i] = in.CurrentPrice - float64(i+1)*in.ATR
		}
		lv.Risk = lv.Stop - in.EntryPrice
		lv.Reward = in.EntryPrice - lv.Targets[0]
	}

	if lv.Risk <= 0 {
		return Levels{}, false
	}
	lv.RiskReward = lv.Reward / lv.Risk
	return lv, true
}

// entryZone bounds the fillable range for a candidate. Pullback entries
// span from the slow EMA to the close; breakout entries span from the
// broken range bound to the close. Bounds are ordered so Min <= Max for
// both directions.
func entryZone(setup domain.SetupType, emaSlow, rangeBound, close float64) domain.EntryZone {
	anchor := emaSlow
	if setup == domain.SetupBreakout {
		anchor = rangeBound
	}
	if anchor <= close {
		return domain.EntryZone{Min: anchor, Max: close}
	}
	return domain.EntryZone{Min: close, Max: anchor}
}
