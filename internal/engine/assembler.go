package engine

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/sawpanic/signalrun/internal/domain"
)

// Assemble converts an accepted candidate into the emitted signal record.
// The id is symbol-strategy-unixms plus a random suffix so two signals for
// the same symbol in the same millisecond still get distinct ids.
// Confidence is the raw score normalized into [0,1].
func Assemble(c domain.SignalCandidate) domain.TradingSignal {
	suffix := uuid.NewString()[:8]
	id := fmt.Sprintf("%s-%s-%d-%s", c.Symbol, c.Strategy, c.EvaluatedAt.UnixMilli(), suffix)

	confidence := c.Score / 100
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return domain.TradingSignal{
		ID:            id,
		Symbol:        c.Symbol,
		Strategy:      c.Strategy,
		Profile:       c.Profile,
		Direction:     c.Direction,
		Setup:         c.Setup,
		EntryMin:      c.Entry.Min,
		EntryMax:      c.Entry.Max,
		Stop:          c.Stop,
		Target1:       c.Targets[0],
		Target2:       c.Targets[1],
		Target3:       c.Targets[2],
		Confidence:    confidence,
		Score:         c.Score,
		RiskReward:    c.RiskReward,
		Rationale:     c.Rationale(),
		TrendInterval: c.TrendInterval,
		ExecInterval:  c.ExecInterval,
		CreatedAt:     c.EvaluatedAt,
	}
}
