// Package micro scores order-book quality around a prospective entry:
// bid/ask spread and depth imbalance inside a band around mid. A missing or
// unusable book yields a neutral assessment that contributes nothing to a
// candidate's score; order-book absence never rejects a candidate.
package micro

import (
	"fmt"

	"github.com/sawpanic/signalrun/internal/domain"
)

// Default thresholds for the assessment band and what counts as a lean.
const (
	DefaultBandPct      = 0.02 // depth counted within ±2% of mid
	DefaultMaxSpreadBps = 25.0
	DefaultMinImbalance = 0.15
)

// Assessment is one book read. Imbalance is (bid-ask)/(bid+ask) depth in
// the band, so +1 is all bids and -1 all asks.
type Assessment struct {
	SpreadBps float64 `json:"spread_bps"`
	Imbalance float64 `json:"imbalance"`
	BidDepth  float64 `json:"bid_depth"` // quote units within the band
	AskDepth  float64 `json:"ask_depth"`
	Neutral   bool    `json:"neutral"`
	Reason    string  `json:"reason,omitempty"`
}

// Scorer assesses order books against fixed thresholds.
type Scorer struct {
	bandPct      float64
	maxSpreadBps float64
	minImbalance float64
}

// NewScorer builds a scorer; non-positive arguments fall back to defaults.
func NewScorer(bandPct, maxSpreadBps, minImbalance float64) *Scorer {
	if bandPct <= 0 {
		bandPct = DefaultBandPct
	}
	if maxSpreadBps <= 0 {
		maxSpreadBps = DefaultMaxSpreadBps
	}
	if minImbalance <= 0 {
		minImbalance = DefaultMinImbalance
	}
	return &Scorer{bandPct: bandPct, maxSpreadBps: maxSpreadBps, minImbalance: minImbalance}
}

// Assess reads spread and banded depth from a book snapshot.
func (s *Scorer) Assess(book *domain.OrderBook) Assessment {
	bid, okBid := book.BestBid()
	ask, okAsk := book.BestAsk()
	if !okBid || !okAsk {
		return Assessment{Neutral: true, Reason: "order book unavailable"}
	}
	if bid.Price <= 0 || ask.Price <= bid.Price {
		return Assessment{Neutral: true, Reason: fmt.Sprintf("unusable book: bid=%.8f ask=%.8f", bid.Price, ask.Price)}
	}

	mid := (bid.Price + ask.Price) / 2.0
	a := Assessment{SpreadBps: (ask.Price - bid.Price) / mid * 10000.0}

	bidFloor := mid * (1 - s.bandPct)
	askCeil := mid * (1 + s.bandPct)
	for _, l := range book.Bids {
		if l.Price < bidFloor {
			break
		}
		a.BidDepth += l.Price * l.Size
	}
	for _, l := range book.Asks {
		if l.Price > askCeil {
			break
		}
		a.AskDepth += l.Price * l.Size
	}

	total := a.BidDepth + a.AskDepth
	if total == 0 {
		a.Neutral = true
		a.Reason = "no depth inside band"
		return a
	}
	a.Imbalance = (a.BidDepth - a.AskDepth) / total
	return a
}

// Favors reports that the book leans with the direction and the spread is
// tight enough to matter.
func (s *Scorer) Favors(a Assessment, d domain.Direction) bool {
	if a.Neutral || a.SpreadBps > s.maxSpreadBps {
		return false
	}
	if d == domain.Long {
		return a.Imbalance >= s.minImbalance
	}
	return a.Imbalance <= -s.minImbalance
}

// Opposes reports a lean against the direction strong enough to penalize.
func (s *Scorer) Opposes(a Assessment, d domain.Direction) bool {
	if a.Neutral {
		return false
	}
	if d == domain.Long {
		return a.Imbalance <= -s.minImbalance
	}
	return a.Imbalance >= s.minImbalance
}
