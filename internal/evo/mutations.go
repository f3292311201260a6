package evo

import (
	"math/rand"

	"melodyevo/internal/model"
)

// Crossover recombines two parents at independent cut points and repairs
// both children. Parents shorter than two notes are returned as copies.
func Crossover(rng *rand.Rand, parent1, parent2 model.Melody, target float64) (model.Melody, model.Melody) {
	if len(parent1.Notes) < 2 || len(parent2.Notes) < 2 {
		return parent1.Clone(), parent2.Clone()
	}
	p1 := 1 + rng.Intn(len(parent1.Notes)-1)
	p2 := 1 + rng.Intn(len(parent2.Notes)-1)

	child1 := model.Melody{Notes: make([]model.Note, 0, p1+len(parent2.Notes)-p2)}
	child1.Notes = append(child1.Notes, parent1.Notes[:p1]...)
	child1.Notes = append(child1.Notes, parent2.Notes[p2:]...)

	child2 := model.Melody{Notes: make([]model.Note, 0, p2+len(parent1.Notes)-p1)}
	child2.Notes = append(child2.Notes, parent2.Notes[:p2]...)
	child2.Notes = append(child2.Notes, parent1.Notes[p1:]...)

	return Repair(rng, child1, target), Repair(rng, child2, target)
}

const (
	mutatePitch = iota
	mutateOctave
	mutateDuration
)

// Mutate perturbs each note with probability rate using exactly one of a
// chroma shift, an octave shift or a duration resample, then repairs.
func Mutate(rng *rand.Rand, m model.Melody, rate, target float64) model.Melody {
	out := m.Clone()
	for i := range out.Notes {
		if rng.Float64() >= rate {
			continue
		}
		note := &out.Notes[i]
		switch rng.Intn(3) {
		case mutatePitch:
			if note.IsRest() {
				note.PitchClass = 1 + rng.Intn(model.PitchClasses)
				continue
			}
			delta := rng.Intn(5) - 2
			note.PitchClass = (note.Chroma()+delta+model.PitchClasses)%model.PitchClasses + 1
		case mutateOctave:
			note.Octave = model.ClampOctave(note.Octave + 2*rng.Intn(2) - 1)
		case mutateDuration:
			note.Duration = model.Durations[rng.Intn(len(model.Durations))]
		}
	}
	return Repair(rng, out, target)
}

// Transpose shifts every pitched note by semitones. The octave is clamped
// into range; the pitch class is kept as computed.
func Transpose(m model.Melody, semitones int) model.Melody {
	out := m.Clone()
	for i, n := range out.Notes {
		if n.IsRest() {
			continue
		}
		out.Notes[i] = model.FromAbsolute(n.Absolute()+semitones, n.Duration)
	}
	return out
}

// Invert mirrors every pitched note around the first pitched note.
func Invert(m model.Melody) model.Melody {
	out := m.Clone()
	axisIdx := -1
	for i, n := range out.Notes {
		if !n.IsRest() {
			axisIdx = i
			break
		}
	}
	if axisIdx < 0 {
		return out
	}
	axis := out.Notes[axisIdx].Absolute()
	for i, n := range out.Notes {
		if i == axisIdx || n.IsRest() {
			continue
		}
		out.Notes[i] = model.FromAbsolute(2*axis-n.Absolute(), n.Duration)
	}
	return out
}

// Retrograde reverses note order. The duration sum is unchanged.
func Retrograde(m model.Melody) model.Melody {
	out := model.Melody{Notes: make([]model.Note, len(m.Notes))}
	for i, n := range m.Notes {
		out.Notes[len(m.Notes)-1-i] = n
	}
	return out
}
