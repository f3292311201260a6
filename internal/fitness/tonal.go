package fitness

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"melodyevo/internal/model"
)

var (
	majorScale      = []int{0, 2, 4, 5, 7, 9, 11}
	pentatonicScale = []int{0, 2, 4, 7, 9}
)

func scaleSet(root int, degrees []int) [model.PitchClasses]bool {
	var set [model.PitchClasses]bool
	for _, d := range degrees {
		set[(root+d)%model.PitchClasses] = true
	}
	return set
}

func coverage(pitched []model.Note, set [model.PitchClasses]bool) float64 {
	hits := 0
	for _, n := range pitched {
		if set[n.Chroma()] {
			hits++
		}
	}
	return float64(hits) / float64(len(pitched))
}

func scalePreference(pitched []model.Note) float64 {
	if len(pitched) == 0 {
		return neutralScore
	}
	best := 0.0
	for root := 0; root < model.PitchClasses; root++ {
		major := coverage(pitched, scaleSet(root, majorScale))
		penta := coverage(pitched, scaleSet(root, pentatonicScale))
		best = math.Max(best, math.Max(major*10, penta*12))
	}
	return best
}

// EstimateRoot returns the zero-based chroma of the most plausible tonal
// root. Pentatonic coverage is favored by 5% and a small bonus goes to
// roots that actually occur; ties resolve to the lowest root. An empty
// input yields 0.
func EstimateRoot(pitched []model.Note) int {
	if len(pitched) == 0 {
		return 0
	}
	bestRoot := 0
	bestScore := math.Inf(-1)
	for root := 0; root < model.PitchClasses; root++ {
		major := coverage(pitched, scaleSet(root, majorScale))
		penta := coverage(pitched, scaleSet(root, pentatonicScale))
		tonic := 0
		for _, n := range pitched {
			if n.Chroma() == root {
				tonic++
			}
		}
		score := math.Max(major, 1.05*penta) + 0.02*float64(tonic)/float64(len(pitched))
		if score > bestScore {
			bestScore = score
			bestRoot = root
		}
	}
	return bestRoot
}

func stableEnding(m model.Melody, pitched []model.Note) float64 {
	if len(m.Notes) == 0 {
		return 0
	}
	if len(pitched) == 0 {
		return neutralScore
	}
	root := EstimateRoot(pitched)
	last := pitched[len(pitched)-1]
	switch (last.Chroma() - root + model.PitchClasses) % model.PitchClasses {
	case 0:
		return 10
	case 7:
		return 8
	case 3, 4:
		return 6.5
	default:
		return 5
	}
}

func naiveEnding(m model.Melody, pitched []model.Note) float64 {
	if len(m.Notes) == 0 {
		return 0
	}
	if len(pitched) == 0 {
		return neutralScore
	}
	return 10
}

// harmonyHint needs at least three pitched notes to imply a triad.
func harmonyHint(pitched []model.Note) float64 {
	if len(pitched) < 3 {
		return neutralScore
	}
	var present [model.PitchClasses]bool
	for _, n := range pitched {
		present[n.Chroma()] = true
	}
	matches := func(root int, third int) int {
		count := 0
		for _, iv := range []int{0, third, 7} {
			if present[(root+iv)%model.PitchClasses] {
				count++
			}
		}
		return count
	}
	best := neutralScore
	for root := 0; root < model.PitchClasses; root++ {
		major, minor := matches(root, 4), matches(root, 3)
		if major == 3 || minor == 3 {
			return 10
		}
		if major == 2 || minor == 2 {
			best = 7
		}
	}
	return best
}

func pitchDistribution(pitched []model.Note) float64 {
	if len(pitched) == 0 {
		return neutralScore
	}
	probs := make([]float64, model.PitchClasses)
	for _, n := range pitched {
		probs[n.Chroma()]++
	}
	for i := range probs {
		probs[i] /= float64(len(pitched))
	}
	entropy := stat.Entropy(probs) / math.Ln2
	switch {
	case entropy < 2.0:
		return 10
	case entropy < 2.5:
		return 8
	case entropy < 3.0:
		return 6
	default:
		return 4
	}
}
