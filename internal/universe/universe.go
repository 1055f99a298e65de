// Package universe selects the symbols a scan pass evaluates: turnover
// filtering, deterministic ranking and optional seeded downsampling.
package universe

import (
	"math/rand"
	"sort"
)

// Instrument is one tradable symbol with its 24h quote turnover.
type Instrument struct {
	Symbol    string  `json:"symbol"`
	LastPrice float64 `json:"last_price"`
	Turnover  float64 `json:"turnover"`
}

// Filter returns the instruments with turnover at or above the floor.
func Filter(list []Instrument, minTurnover float64) []Instrument {
	out := make([]Instrument, 0, len(list))
	for _, ins := range list {
		if ins.Turnover >= minTurnover {
			out = append(out, ins)
		}
	}
	return out
}

// TopByTurnover ranks instruments by turnover descending and truncates to
// n. Ties break on symbol ascending so runs over identical market data
// order identically.
func TopByTurnover(list []Instrument, n int) []Instrument {
	ranked := make([]Instrument, len(list))
	copy(ranked, list)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Turnover != ranked[j].Turnover {
			return ranked[i].Turnover > ranked[j].Turnover
		}
		return ranked[i].Symbol < ranked[j].Symbol
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Sampler downsamples oversized universes. The zero value passes input
// through; a fixed seed yields the same sample for the same input, keeping
// scans reproducible.
type Sampler struct {
	Size int
	Seed int64
}

// Apply returns at most Size instruments, preserving the incoming order.
func (s Sampler) Apply(list []Instrument) []Instrument {
	if s.Size <= 0 || len(list) <= s.Size {
		return list
	}
	rng := rand.New(rand.NewSource(s.Seed))
	picked := rng.Perm(len(list))[:s.Size]
	sort.Ints(picked)

	out := make([]Instrument, 0, s.Size)
	for _, i := range picked {
		out = append(out, list[i])
	}
	return out
}
