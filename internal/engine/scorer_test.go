package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreCardTrail(t *testing.T) {
	sc := newScoreCard("strict")
	sc.add(25, "exec ema stack aligned")
	sc.add(0, "zero weight stays silent")
	sc.penalize(10, "opposing level 101.5 nearby")
	sc.note("order book unavailable")

	assert.Equal(t, 15.0, sc.score())
	assert.Equal(t, []string{
		"[strict]",
		"exec ema stack aligned (+25)",
		"opposing level 101.5 nearby (-10)",
		"order book unavailable",
	}, sc.reasons)
}

func TestScoreCardClampsLow(t *testing.T) {
	sc := newScoreCard("relaxed")
	sc.add(5, "small bonus")
	sc.penalize(30, "heavy penalty")
	assert.Equal(t, 0.0, sc.score())
}

func TestScoreCardClampsHigh(t *testing.T) {
	sc := newScoreCard("relaxed")
	for i := 0; i < 6; i++ {
		sc.add(25, "bonus")
	}
	assert.Equal(t, 100.0, sc.score())
}

func TestScoreCardZeroPenaltyIgnored(t *testing.T) {
	sc := newScoreCard("p")
	sc.penalize(0, "disabled penalty")
	assert.Equal(t, 0.0, sc.score())
	assert.Equal(t, []string{"[p]"}, sc.reasons)
}
