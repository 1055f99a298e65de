package strategy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/sawpanic/signalrun/internal/profile"
)

// ClassicV2 is the baseline 15m/5m trend-pullback scanner.
func ClassicV2() Config {
	return Config{
		Name:              "classic_v2",
		TrendInterval:     "15",
		ExecInterval:      "5",
		KlineLimit:        150,
		BreakoutLookback:  20,
		SwingLookback:     5,
		RRBonusThreshold:  2.0,
		TargetCandidates:  5,
		MaxSignalsPerScan: 10,
		CooldownCandles:   5,
		Weights:           DefaultWeights(),
		Profiles: []profile.Profile{
			{
				Name: "strict", MinTurnover: 5_000_000, TopVolume: 30,
				MinRR: 2.0, StopATRCoeff: 0.8,
				VolumeZ: 2.0, VolumeMultiple: 2.0, PullbackVolumeZ: 1.2, PullbackVolumeMultiple: 1.5,
				TouchTolerance: 0.005, SRDistanceMult: 1.5, MinScore: 70,
				BlockDivergence: true, MaxSignals: 3,
			},
			{
				Name: "standard", MinTurnover: 3_000_000, TopVolume: 50,
				MinRR: 1.8, StopATRCoeff: 0.8,
				VolumeZ: 1.6, VolumeMultiple: 1.8, PullbackVolumeZ: 1.0, PullbackVolumeMultiple: 1.3,
				TouchTolerance: 0.0075, SRDistanceMult: 1.2, MinScore: 65,
				BlockDivergence: true, MaxSignals: 4,
			},
			{
				Name: "relaxed", MinTurnover: 1_000_000, TopVolume: 75,
				MinRR: 1.6, StopATRCoeff: 0.8,
				VolumeZ: 1.2, VolumeMultiple: 1.5, PullbackVolumeZ: 0.8, PullbackVolumeMultiple: 1.2,
				TouchTolerance: 0.01, SRDistanceMult: 1.0, MinScore: 60,
				ExecTFOptional: true, MaxSignals: 5,
			},
			{
				Name: "exploratory", MinTurnover: 500_000, TopVolume: 100,
				MinRR: 1.4, StopATRCoeff: 0.8,
				VolumeZ: 1.0, VolumeMultiple: 1.2, PullbackVolumeZ: 0.6, PullbackVolumeMultiple: 1.0,
				TouchTolerance: 0.015, SRDistanceMult: 0, MinScore: 55,
				ExecTFOptional: true, MaxSignals: 6,
			},
		},
	}
}

// ClassicCryptoProV3 adds the order-book micro confirmation on top of the
// classic ladder and runs a tighter universe.
func ClassicCryptoProV3() Config {
	w := DefaultWeights()
	w.OrderBook = 10
	return Config{
		Name:              "classic_crypto_pro_v3",
		TrendInterval:     "15",
		ExecInterval:      "5",
		KlineLimit:        150,
		BreakoutLookback:  20,
		SwingLookback:     5,
		RRBonusThreshold:  2.0,
		TargetCandidates:  5,
		MaxSignalsPerScan: 8,
		CooldownCandles:   6,
		UseOrderBook:      true,
		Weights:           w,
		Profiles: []profile.Profile{
			{
				Name: "strict", MinTurnover: 10_000_000, TopVolume: 20,
				MinRR: 2.0, StopATRCoeff: 0.9,
				VolumeZ: 2.2, VolumeMultiple: 2.2, PullbackVolumeZ: 1.4, PullbackVolumeMultiple: 1.6,
				TouchTolerance: 0.004, SRDistanceMult: 1.5, MinScore: 72,
				BlockDivergence: true, MaxSignals: 3,
			},
			{
				Name: "standard", MinTurnover: 5_000_000, TopVolume: 40,
				MinRR: 1.8, StopATRCoeff: 0.9,
				VolumeZ: 1.8, VolumeMultiple: 1.9, PullbackVolumeZ: 1.1, PullbackVolumeMultiple: 1.4,
				TouchTolerance: 0.006, SRDistanceMult: 1.2, MinScore: 66,
				BlockDivergence: true, MaxSignals: 4,
			},
			{
				Name: "relaxed", MinTurnover: 2_000_000, TopVolume: 60,
				MinRR: 1.5, StopATRCoeff: 0.9,
				VolumeZ: 1.3, VolumeMultiple: 1.5, PullbackVolumeZ: 0.9, PullbackVolumeMultiple: 1.2,
				TouchTolerance: 0.009, SRDistanceMult: 1.0, MinScore: 60,
				ExecTFOptional: true, MaxSignals: 5,
			},
		},
	}
}

// MonsterV2 hunts larger moves on the 60m/15m pair with a wider ladder.
func MonsterV2() Config {
	return Config{
		Name:              "monster_v2",
		TrendInterval:     "60",
		ExecInterval:      "15",
		KlineLimit:        200,
		BreakoutLookback:  24,
		SwingLookback:     5,
		RRBonusThreshold:  2.0,
		TargetCandidates:  5,
		MaxSignalsPerScan: 12,
		CooldownCandles:   4,
		Weights:           DefaultWeights(),
		Profiles: []profile.Profile{
			{
				Name: "strict", MinTurnover: 8_000_000, TopVolume: 25,
				MinRR: 2.2, StopATRCoeff: 1.0,
				VolumeZ: 2.0, VolumeMultiple: 2.0, PullbackVolumeZ: 1.2, PullbackVolumeMultiple: 1.5,
				TouchTolerance: 0.006, SRDistanceMult: 1.5, MinScore: 72,
				BlockDivergence: true, MaxSignals: 3,
			},
			{
				Name: "standard", MinTurnover: 4_000_000, TopVolume: 50,
				MinRR: 1.9, StopATRCoeff: 1.0,
				VolumeZ: 1.5, VolumeMultiple: 1.7, PullbackVolumeZ: 1.0, PullbackVolumeMultiple: 1.3,
				TouchTolerance: 0.009, SRDistanceMult: 1.2, MinScore: 65,
				BlockDivergence: true, MaxSignals: 5,
			},
			{
				Name: "relaxed", MinTurnover: 1_500_000, TopVolume: 80,
				MinRR: 1.6, StopATRCoeff: 1.0,
				VolumeZ: 1.1, VolumeMultiple: 1.4, PullbackVolumeZ: 0.8, PullbackVolumeMultiple: 1.1,
				TouchTolerance: 0.012, SRDistanceMult: 1.0, MinScore: 58,
				ExecTFOptional: true, MaxSignals: 6,
			},
			{
				Name: "exploratory", MinTurnover: 750_000, TopVolume: 120,
				MinRR: 1.5, StopATRCoeff: 1.0,
				VolumeZ: 0.9, VolumeMultiple: 1.2, PullbackVolumeZ: 0.6, PullbackVolumeMultiple: 1.0,
				TouchTolerance: 0.02, SRDistanceMult: 0, MinScore: 55,
				ExecTFOptional: true, MaxSignals: 8,
			},
		},
	}
}

// Presets returns the built-in strategies.
func Presets() []Config {
	return []Config{ClassicV2(), ClassicCryptoProV3(), MonsterV2()}
}

// ByName resolves a strategy from the presets merged with an optional
// operator file: file entries override presets sharing their name.
func ByName(name string, overrides []Config) (Config, error) {
	for _, c := range overrides {
		if c.Name == name {
			return c, nil
		}
	}
	for _, c := range Presets() {
		if c.Name == name {
			return c, nil
		}
	}
	return Config{}, fmt.Errorf("unknown strategy %q", name)
}

type strategiesFile struct {
	Strategies []Config `yaml:"strategies"`
}

// LoadFile reads operator strategy definitions. Unset optional fields are
// defaulted, then every entry is validated; any issue fails the load.
func LoadFile(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read strategies file: %w", err)
	}

	var doc strategiesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse strategies file: %w", err)
	}

	for i := range doc.Strategies {
		doc.Strategies[i].FillDefaults()
		if issues := doc.Strategies[i].Validate(); len(issues) > 0 {
			return nil, fmt.Errorf("invalid strategy %q: %v", doc.Strategies[i].Name, issues)
		}
	}
	return doc.Strategies, nil
}
