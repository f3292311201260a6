package fitness

import (
	"math"

	"melodyevo/internal/model"
)

// Interval heuristics walk the pitched notes only; a rest does not break the
// melodic line.

func intervals(pitched []model.Note) []int {
	if len(pitched) < 2 {
		return nil
	}
	out := make([]int, 0, len(pitched)-1)
	for i := 1; i < len(pitched); i++ {
		out = append(out, pitched[i].Absolute()-pitched[i-1].Absolute())
	}
	return out
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func pitchDiversity(pitched []model.Note) float64 {
	if len(pitched) == 0 {
		return neutralScore
	}
	type key struct{ octave, pitchClass int }
	seen := make(map[key]struct{}, len(pitched))
	for _, n := range pitched {
		seen[key{n.Octave, n.PitchClass}] = struct{}{}
	}
	count := len(seen)
	switch {
	case count >= 8 && count <= 15:
		return 10
	case count < 8:
		return float64(count)
	default:
		return math.Max(0, 10-0.5*float64(count-15))
	}
}

func largeLeap(pitched []model.Note) float64 {
	if len(pitched) < 2 {
		return 10
	}
	penalty := 0.0
	for _, iv := range intervals(pitched) {
		if d := absInt(iv); d > 7 {
			penalty += float64(d-7) * 0.5
		}
	}
	return math.Max(0, 10-penalty)
}

func veryLargeLeap(pitched []model.Note) float64 {
	if len(pitched) < 2 {
		return 10
	}
	count := 0
	for _, iv := range intervals(pitched) {
		if absInt(iv) > 12 {
			count++
		}
	}
	return math.Max(0, 10-3*float64(count))
}

func continuousRepeat(pitched []model.Note) float64 {
	if len(pitched) < 2 {
		return 10
	}
	count := 0
	for i := 1; i < len(pitched); i++ {
		if pitched[i].Octave == pitched[i-1].Octave && pitched[i].PitchClass == pitched[i-1].PitchClass {
			count++
		}
	}
	return math.Max(0, 10-1.5*float64(count))
}

func smoothness(pitched []model.Note) float64 {
	if len(pitched) < 2 {
		return 10
	}
	ivs := intervals(pitched)
	stepwise := 0
	for _, iv := range ivs {
		if absInt(iv) <= 3 {
			stepwise++
		}
	}
	ratio := float64(stepwise) / float64(len(ivs))
	switch {
	case ratio >= 0.6 && ratio <= 0.8:
		return 10
	case ratio >= 0.4 && ratio < 0.6:
		return 8
	case ratio > 0.8 && ratio <= 0.9:
		return 8
	default:
		return 6
	}
}

// motifKey identifies an interval pattern of up to three steps.
type motifKey struct {
	length int
	deltas [3]int
}

func motifRepetition(pitched []model.Note) float64 {
	if len(pitched) < 3 {
		return neutralScore
	}
	ivs := intervals(pitched)
	maxRepeat := 0
	for window := 2; window <= 4; window++ {
		steps := window - 1
		if len(ivs) < steps {
			continue
		}
		counts := make(map[motifKey]int)
		for i := 0; i+steps <= len(ivs); i++ {
			key := motifKey{length: steps}
			copy(key.deltas[:], ivs[i:i+steps])
			counts[key]++
			maxRepeat = max(maxRepeat, counts[key])
		}
	}
	switch {
	case maxRepeat == 2:
		return 10
	case maxRepeat == 3:
		return 9
	case maxRepeat >= 4:
		return 7
	default:
		return neutralScore
	}
}
