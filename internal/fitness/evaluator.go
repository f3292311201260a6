package fitness

import (
	"fmt"

	"melodyevo/internal/model"
)

// Weights is the fixed weight table applied to each heuristic sub-score.
type Weights struct {
	PitchDiversity    float64 `json:"pitch_diversity" yaml:"pitch_diversity"`
	LargeLeap         float64 `json:"large_leap" yaml:"large_leap"`
	ScalePreference   float64 `json:"scale_preference" yaml:"scale_preference"`
	RhythmVariety     float64 `json:"rhythm_variety" yaml:"rhythm_variety"`
	MotifRepetition   float64 `json:"motif_repetition" yaml:"motif_repetition"`
	StableEnding      float64 `json:"stable_ending" yaml:"stable_ending"`
	ContinuousRepeat  float64 `json:"continuous_repeat" yaml:"continuous_repeat"`
	HarmonyHint       float64 `json:"harmony_hint" yaml:"harmony_hint"`
	PitchDistribution float64 `json:"pitch_distribution" yaml:"pitch_distribution"`
	Smoothness        float64 `json:"smoothness" yaml:"smoothness"`
	VeryLargeLeap     float64 `json:"very_large_leap" yaml:"very_large_leap"`
	NoteDensity       float64 `json:"note_density" yaml:"note_density"`
	BeatAlignment     float64 `json:"beat_alignment" yaml:"beat_alignment"`
}

func DefaultWeights() Weights {
	return Weights{
		PitchDiversity:    1.0,
		LargeLeap:         1.5,
		ScalePreference:   1.2,
		RhythmVariety:     1.0,
		MotifRepetition:   2.0,
		StableEnding:      1.5,
		ContinuousRepeat:  1.0,
		HarmonyHint:       1.0,
		PitchDistribution: 1.2,
		Smoothness:        1.3,
		VeryLargeLeap:     1.0,
		NoteDensity:       1.0,
		BeatAlignment:     0.9,
	}
}

// SubScores holds one value per heuristic, each on a nominal 0-10 scale.
type SubScores struct {
	PitchDiversity    float64 `json:"pitch_diversity"`
	LargeLeap         float64 `json:"large_leap"`
	ScalePreference   float64 `json:"scale_preference"`
	RhythmVariety     float64 `json:"rhythm_variety"`
	MotifRepetition   float64 `json:"motif_repetition"`
	StableEnding      float64 `json:"stable_ending"`
	ContinuousRepeat  float64 `json:"continuous_repeat"`
	HarmonyHint       float64 `json:"harmony_hint"`
	PitchDistribution float64 `json:"pitch_distribution"`
	Smoothness        float64 `json:"smoothness"`
	VeryLargeLeap     float64 `json:"very_large_leap"`
	NoteDensity       float64 `json:"note_density"`
	BeatAlignment     float64 `json:"beat_alignment"`
}

func (s SubScores) Weighted(w Weights) float64 {
	return w.PitchDiversity*s.PitchDiversity +
		w.LargeLeap*s.LargeLeap +
		w.ScalePreference*s.ScalePreference +
		w.RhythmVariety*s.RhythmVariety +
		w.MotifRepetition*s.MotifRepetition +
		w.StableEnding*s.StableEnding +
		w.ContinuousRepeat*s.ContinuousRepeat +
		w.HarmonyHint*s.HarmonyHint +
		w.PitchDistribution*s.PitchDistribution +
		w.Smoothness*s.Smoothness +
		w.VeryLargeLeap*s.VeryLargeLeap +
		w.NoteDensity*s.NoteDensity +
		w.BeatAlignment*s.BeatAlignment
}

// Named lists the sub-scores in table order for reporting.
func (s SubScores) Named() []NamedScore {
	return []NamedScore{
		{"pitch_diversity", s.PitchDiversity},
		{"large_leap", s.LargeLeap},
		{"scale_preference", s.ScalePreference},
		{"rhythm_variety", s.RhythmVariety},
		{"motif_repetition", s.MotifRepetition},
		{"stable_ending", s.StableEnding},
		{"continuous_repeat", s.ContinuousRepeat},
		{"harmony_hint", s.HarmonyHint},
		{"pitch_distribution", s.PitchDistribution},
		{"smoothness", s.Smoothness},
		{"very_large_leap", s.VeryLargeLeap},
		{"note_density", s.NoteDensity},
		{"beat_alignment", s.BeatAlignment},
	}
}

type NamedScore struct {
	Name  string
	Value float64
}

// EndingMode selects how the stable-ending heuristic locates the tonic.
type EndingMode string

const (
	// EndingRootEstimate scores the last pitch against an estimated tonal root.
	EndingRootEstimate EndingMode = "root_estimate"
	// EndingNaive treats any pitched final note as a tonic.
	EndingNaive EndingMode = "naive"
)

func ParseEndingMode(s string) (EndingMode, error) {
	switch EndingMode(s) {
	case "", EndingRootEstimate:
		return EndingRootEstimate, nil
	case EndingNaive:
		return EndingNaive, nil
	default:
		return "", fmt.Errorf("unsupported ending mode: %s", s)
	}
}

// Evaluator scores melodies. It holds no mutable state and is safe for
// concurrent use.
type Evaluator struct {
	Weights Weights
	Ending  EndingMode
}

func NewEvaluator(weights Weights) Evaluator {
	return Evaluator{Weights: weights, Ending: EndingRootEstimate}
}

func (e Evaluator) Evaluate(m model.Melody) float64 {
	return e.Breakdown(m).Weighted(e.Weights)
}

func (e Evaluator) Breakdown(m model.Melody) SubScores {
	pitched := m.Pitched()
	ending := stableEnding(m, pitched)
	if e.Ending == EndingNaive {
		ending = naiveEnding(m, pitched)
	}
	return SubScores{
		PitchDiversity:    pitchDiversity(pitched),
		LargeLeap:         largeLeap(pitched),
		ScalePreference:   scalePreference(pitched),
		RhythmVariety:     rhythmVariety(m.Notes),
		MotifRepetition:   motifRepetition(pitched),
		StableEnding:      ending,
		ContinuousRepeat:  continuousRepeat(pitched),
		HarmonyHint:       harmonyHint(pitched),
		PitchDistribution: pitchDistribution(pitched),
		Smoothness:        smoothness(pitched),
		VeryLargeLeap:     veryLargeLeap(pitched),
		NoteDensity:       noteDensity(m),
		BeatAlignment:     beatAlignment(m.Notes),
	}
}

const neutralScore = 5.0
