package domain

import (
	"strings"
	"time"
)

// Direction is the trade side a signal recommends.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Opposite returns the mirrored direction.
func (d Direction) Opposite() Direction {
	if d == Long {
		return Short
	}
	return Long
}

// SetupType names the entry trigger that produced a candidate.
type SetupType string

const (
	SetupPullback SetupType = "PULLBACK"
	SetupBreakout SetupType = "BREAKOUT"
)

// EntryZone bounds the price range a signal considers fillable.
type EntryZone struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// SignalCandidate is an accepted evaluation before assembly into the final
// signal record. Reasons hold the itemized scoring trail, profile tag first.
type SignalCandidate struct {
	Symbol        string
	Strategy      string
	Profile       string
	Direction     Direction
	Setup         SetupType
	Entry         EntryZone
	Stop          float64
	Targets       [3]float64
	Score         float64
	RiskReward    float64
	Price         float64
	Reasons       []string
	TrendInterval string
	ExecInterval  string
	EvaluatedAt   time.Time
	CooldownUntil time.Time
}

// Rationale joins the itemized reasons into the human-readable explanation
// carried on the emitted signal.
func (c SignalCandidate) Rationale() string {
	return strings.Join(c.Reasons, "; ")
}

// TradingSignal is the flat, JSON-serializable record handed to sinks and
// the HTTP API. Confidence is the raw score normalized into [0,1].
type TradingSignal struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Strategy      string    `json:"strategy"`
	Profile       string    `json:"profile"`
	Direction     Direction `json:"direction"`
	Setup         SetupType `json:"setup"`
	EntryMin      float64   `json:"entry_min"`
	EntryMax      float64   `json:"entry_max"`
	Stop          float64   `json:"stop"`
	Target1       float64   `json:"target1"`
	Target2       float64   `json:"target2"`
	Target3       float64   `json:"target3"`
	Confidence    float64   `json:"confidence"`
	Score         float64   `json:"score"`
	RiskReward    float64   `json:"risk_reward"`
	Rationale     string    `json:"rationale"`
	TrendInterval string    `json:"trend_interval"`
	ExecInterval  string    `json:"exec_interval"`
	CreatedAt     time.Time `json:"created_at"`
}
