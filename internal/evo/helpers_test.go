package evo

import (
	"math/rand"

	"melodyevo/internal/model"
)

func note(octave, pitchClass int, duration float64) model.Note {
	return model.Note{Octave: octave, PitchClass: pitchClass, Duration: duration}
}

func melody(notes ...model.Note) model.Melody {
	return model.Melody{Notes: notes}
}

// randomRawMelody builds an unrepaired melody of arbitrary length and total.
func randomRawMelody(rng *rand.Rand) model.Melody {
	count := rng.Intn(20)
	m := model.Melody{}
	for i := 0; i < count; i++ {
		pc := rng.Intn(model.PitchClasses + 1)
		m.Notes = append(m.Notes, note(3+rng.Intn(3), pc, model.Durations[rng.Intn(len(model.Durations))]))
	}
	return m
}

// midRangeMelody stays in octave 4 so no octave clamping can trigger.
func midRangeMelody() model.Melody {
	return melody(
		note(4, 5, 1), note(4, 7, 1), note(4, model.Rest, 2),
		note(4, 8, 0.5), note(4, 6, 0.5), note(4, 7, 1),
		note(4, 5, 4), note(4, 3, 2), note(4, 5, 4),
	)
}
