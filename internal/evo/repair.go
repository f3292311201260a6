package evo

import (
	"math/rand"

	"melodyevo/internal/model"
)

type pitchChoice struct {
	octave     int
	pitchClass int
}

// rangePool narrows the outer octaves toward a singable range: octave 3
// from F up, octave 5 up to G.
var rangePool = buildRangePool()

func buildRangePool() []pitchChoice {
	pool := make([]pitchChoice, 0, 27)
	for octave := model.MinOctave; octave <= model.MaxOctave; octave++ {
		for pc := 1; pc <= model.PitchClasses; pc++ {
			if octave == model.MinOctave && pc < 6 {
				continue
			}
			if octave == model.MaxOctave && pc > 8 {
				continue
			}
			pool = append(pool, pitchChoice{octave: octave, pitchClass: pc})
		}
	}
	return pool
}

func randomPitch(rng *rand.Rand) pitchChoice {
	return rangePool[rng.Intn(len(rangePool))]
}

func fittingDurations(remaining float64) []float64 {
	out := make([]float64, 0, len(model.Durations))
	for _, d := range model.Durations {
		if d <= remaining+model.DurationEpsilon {
			out = append(out, d)
		}
	}
	return out
}

// Repair restores the melody's total duration to target. Short melodies are
// padded with random in-range notes; long ones are trimmed from the end. If
// no quantum fits the remaining gap the melody is returned slightly short.
// Repairing a melody that already meets target returns an unchanged copy.
func Repair(rng *rand.Rand, m model.Melody, target float64) model.Melody {
	total := m.TotalDuration()
	if withinEpsilon(total, target) {
		return m.CloneScored()
	}

	out := m.Clone()
	if total < target {
		for {
			remaining := target - out.TotalDuration()
			if remaining <= model.DurationEpsilon {
				break
			}
			fits := fittingDurations(remaining)
			if len(fits) == 0 {
				break
			}
			p := randomPitch(rng)
			out.Notes = append(out.Notes, model.Note{
				Octave:     p.octave,
				PitchClass: p.pitchClass,
				Duration:   fits[rng.Intn(len(fits))],
			})
		}
		return out
	}

	for len(out.Notes) > 0 {
		excess := out.TotalDuration() - target
		if excess <= model.DurationEpsilon {
			break
		}
		last := len(out.Notes) - 1
		if out.Notes[last].Duration <= excess+model.DurationEpsilon {
			out.Notes = out.Notes[:last]
			continue
		}
		out.Notes[last].Duration -= excess
		if out.Notes[last].Duration <= 0 {
			out.Notes = out.Notes[:last]
		}
	}
	return out
}

func withinEpsilon(a, b float64) bool {
	d := a - b
	return d <= model.DurationEpsilon && d >= -model.DurationEpsilon
}
