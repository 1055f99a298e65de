package engine

import "fmt"

// scoreCard accumulates confidence points and the matching itemized reason
// trail. The profile tag is always the first reason so a reader can tell
// which rung admitted the signal.
type scoreCard struct {
	total   float64
	reasons []string
}

func newScoreCard(profileName string) *scoreCard {
	return &scoreCard{reasons: []string{"[" + profileName + "]"}}
}

func (sc *scoreCard) add(points float64, reason string) {
	if points <= 0 {
		return
	}
	sc.total += points
	sc.reasons = append(sc.reasons, fmt.Sprintf("%s (+%g)", reason, points))
}

func (sc *scoreCard) penalize(points float64, reason string) {
	if points <= 0 {
		return
	}
	sc.total -= points
	sc.reasons = append(sc.reasons, fmt.Sprintf("%s (-%g)", reason, points))
}

// note records a reason that carries no points.
func (sc *scoreCard) note(reason string) {
	sc.reasons = append(sc.reasons, reason)
}

// score returns the accumulated total clamped to [0,100].
func (sc *scoreCard) score() float64 {
	if sc.total < 0 {
		return 0
	}
	if sc.total > 100 {
		return 100
	}
	return sc.total
}
