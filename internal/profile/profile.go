// Package profile defines the scan relaxation ladder: an ordered list of
// profiles walked strict-first, each loosening admission thresholds so a
// scan degrades gracefully instead of silently returning nothing.
package profile

import "fmt"

// Profile is one rung of the relaxation ladder. Every field that governs a
// rejection is relaxable; ValidateLadder enforces that later rungs never
// tighten any of them.
type Profile struct {
	Name string `yaml:"name"`

	// Universe admission.
	MinTurnover float64 `yaml:"min_turnover"` // 24h quote turnover floor
	TopVolume   int     `yaml:"top_volume"`   // candidate pool size after turnover ranking

	// Entry thresholds.
	MinRR                  float64 `yaml:"min_rr"`
	StopATRCoeff           float64 `yaml:"stop_atr_coeff"`
	VolumeZ                float64 `yaml:"volume_z"`                 // breakout volume z-score floor
	VolumeMultiple         float64 `yaml:"volume_multiple"`          // breakout volume vs baseline floor
	PullbackVolumeZ        float64 `yaml:"pullback_volume_z"`        // looser floor for pullback entries
	PullbackVolumeMultiple float64 `yaml:"pullback_volume_multiple"` //
	TouchTolerance         float64 `yaml:"touch_tolerance"`          // EMA21 touch band, fraction (0.01 = 1%)

	// Filters.
	SRDistanceMult  float64 `yaml:"sr_distance_mult"` // 0 skips the proximity check entirely
	MinScore        float64 `yaml:"min_score"`        // confidence floor, raw 0..100
	BlockDivergence bool    `yaml:"block_divergence"` // confirmed opposing divergence rejects
	ExecTFOptional  bool    `yaml:"exec_tf_optional"` // execution timeframe agreement is advisory

	// Acceptance.
	MaxSignals int `yaml:"max_signals"` // cap on candidates accepted from this rung
}

// Validate returns a list of issues with a single profile. Empty means fine.
func (p Profile) Validate() []string {
	var issues []string
	if p.Name == "" {
		issues = append(issues, "profile name is required")
	}
	if p.MinTurnover < 0 {
		issues = append(issues, fmt.Sprintf("%s: min_turnover must be >= 0", p.Name))
	}
	if p.TopVolume <= 0 {
		issues = append(issues, fmt.Sprintf("%s: top_volume must be positive", p.Name))
	}
	if p.MinRR <= 0 {
		issues = append(issues, fmt.Sprintf("%s: min_rr must be positive", p.Name))
	}
	if p.StopATRCoeff <= 0 {
		issues = append(issues, fmt.Sprintf("%s: stop_atr_coeff must be positive", p.Name))
	}
	if p.VolumeZ < 0 || p.VolumeMultiple < 0 || p.PullbackVolumeZ < 0 || p.PullbackVolumeMultiple < 0 {
		issues = append(issues, fmt.Sprintf("%s: volume thresholds must be >= 0", p.Name))
	}
	if p.PullbackVolumeZ > p.VolumeZ {
		issues = append(issues, fmt.Sprintf("%s: pullback_volume_z %.2f must not exceed volume_z %.2f", p.Name, p.PullbackVolumeZ, p.VolumeZ))
	}
	if p.PullbackVolumeMultiple > p.VolumeMultiple {
		issues = append(issues, fmt.Sprintf("%s: pullback_volume_multiple %.2f must not exceed volume_multiple %.2f", p.Name, p.PullbackVolumeMultiple, p.VolumeMultiple))
	}
	if p.TouchTolerance < 0 || p.TouchTolerance > 0.1 {
		issues = append(issues, fmt.Sprintf("%s: touch_tolerance must be in [0, 0.1]", p.Name))
	}
	if p.SRDistanceMult < 0 {
		issues = append(issues, fmt.Sprintf("%s: sr_distance_mult must be >= 0", p.Name))
	}
	if p.MinScore < 0 || p.MinScore > 100 {
		issues = append(issues, fmt.Sprintf("%s: min_score must be in [0, 100]", p.Name))
	}
	if p.MaxSignals <= 0 {
		issues = append(issues, fmt.Sprintf("%s: max_signals must be positive", p.Name))
	}
	return issues
}

// ValidateLadder validates each profile and the strict-to-relaxed ordering:
// a later rung must never be stricter than an earlier one in any dimension.
func ValidateLadder(ladder []Profile) []string {
	var issues []string
	if len(ladder) == 0 {
		return []string{"ladder must contain at least one profile"}
	}

	seen := map[string]bool{}
	for _, p := range ladder {
		issues = append(issues, p.Validate()...)
		if seen[p.Name] {
			issues = append(issues, fmt.Sprintf("duplicate profile name %q", p.Name))
		}
		seen[p.Name] = true
	}

	for i := 1; i < len(ladder); i++ {
		prev, cur := ladder[i-1], ladder[i]
		at := fmt.Sprintf("%s -> %s", prev.Name, cur.Name)

		if cur.MinTurnover > prev.MinTurnover {
			issues = append(issues, at+": min_turnover tightened")
		}
		if cur.TopVolume < prev.TopVolume {
			issues = append(issues, at+": top_volume shrank")
		}
		if cur.MinRR > prev.MinRR {
			issues = append(issues, at+": min_rr tightened")
		}
		if cur.VolumeZ > prev.VolumeZ {
			issues = append(issues, at+": volume_z tightened")
		}
		if cur.VolumeMultiple > prev.VolumeMultiple {
			issues = append(issues, at+": volume_multiple tightened")
		}
		if cur.PullbackVolumeZ > prev.PullbackVolumeZ {
			issues = append(issues, at+": pullback_volume_z tightened")
		}
		if cur.PullbackVolumeMultiple > prev.PullbackVolumeMultiple {
			issues = append(issues, at+": pullback_volume_multiple tightened")
		}
		if cur.TouchTolerance < prev.TouchTolerance {
			issues = append(issues, at+": touch_tolerance tightened")
		}
		if cur.SRDistanceMult > prev.SRDistanceMult {
			issues = append(issues, at+": sr_distance_mult tightened")
		}
		if cur.MinScore > prev.MinScore {
			issues = append(issues, at+": min_score tightened")
		}
		if cur.BlockDivergence && !prev.BlockDivergence {
			issues = append(issues, at+": block_divergence re-enabled")
		}
		if !cur.ExecTFOptional && prev.ExecTFOptional {
			issues = append(issues, at+": exec_tf_optional revoked")
		}
		if cur.MaxSignals < prev.MaxSignals {
			issues = append(issues, at+": max_signals shrank")
		}
	}
	return issues
}
