package profile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strictRung() Profile {
	return Profile{
		Name:                   "strict",
		MinTurnover:            5_000_000,
		TopVolume:              30,
		MinRR:                  2.0,
		StopATRCoeff:           0.8,
		VolumeZ:                2.0,
		VolumeMultiple:         2.0,
		PullbackVolumeZ:        1.2,
		PullbackVolumeMultiple: 1.5,
		TouchTolerance:         0.005,
		SRDistanceMult:         1.5,
		MinScore:               70,
		BlockDivergence:        true,
		MaxSignals:             3,
	}
}

func relaxedRung() Profile {
	p := strictRung()
	p.Name = "relaxed"
	p.MinTurnover = 1_000_000
	p.TopVolume = 75
	p.MinRR = 1.6
	p.VolumeZ = 1.2
	p.VolumeMultiple = 1.5
	p.PullbackVolumeZ = 0.8
	p.PullbackVolumeMultiple = 1.2
	p.TouchTolerance = 0.01
	p.SRDistanceMult = 0
	p.MinScore = 60
	p.BlockDivergence = false
	p.ExecTFOptional = true
	p.MaxSignals = 5
	return p
}

func TestValidateLadderAccepts(t *testing.T) {
	assert.Empty(t, ValidateLadder([]Profile{strictRung(), relaxedRung()}))
}

func TestValidateLadderRejectsTightenedRung(t *testing.T) {
	tightened := relaxedRung()
	tightened.MinRR = 2.5 // stricter than the rung before it

	issues := ValidateLadder([]Profile{strictRung(), tightened})

	require.NotEmpty(t, issues)
	assert.True(t, containsIssue(issues, "min_rr tightened"))
}

func TestValidateLadderRejectsRevokedRelaxations(t *testing.T) {
	first := relaxedRung()
	first.Name = "first"
	second := strictRung()
	second.Name = "second"
	second.SRDistanceMult = 1.5

	issues := ValidateLadder([]Profile{first, second})

	assert.True(t, containsIssue(issues, "block_divergence re-enabled"))
	assert.True(t, containsIssue(issues, "exec_tf_optional revoked"))
	assert.True(t, containsIssue(issues, "sr_distance_mult tightened"))
}

func TestValidateLadderRejectsDuplicateNames(t *testing.T) {
	a := strictRung()
	b := strictRung()

	issues := ValidateLadder([]Profile{a, b})
	assert.True(t, containsIssue(issues, "duplicate profile name"))
}

func TestValidateProfileFieldChecks(t *testing.T) {
	p := strictRung()
	p.Name = ""
	p.TopVolume = 0
	p.MinRR = -1
	p.MinScore = 120
	p.PullbackVolumeZ = 5 // looser threshold must not exceed the strict one

	issues := p.Validate()

	assert.True(t, containsIssue(issues, "name is required"))
	assert.True(t, containsIssue(issues, "top_volume"))
	assert.True(t, containsIssue(issues, "min_rr"))
	assert.True(t, containsIssue(issues, "min_score"))
	assert.True(t, containsIssue(issues, "pullback_volume_z"))
}

func TestValidateEmptyLadder(t *testing.T) {
	assert.NotEmpty(t, ValidateLadder(nil))
}

func containsIssue(issues []string, substr string) bool {
	for _, s := range issues {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
