package evo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"melodyevo/internal/fitness"
	"melodyevo/internal/model"
)

func TestRepairRestoresTargetDuration(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		raw := randomRawMelody(rng)
		repaired := Repair(rng, raw, model.TargetDuration)
		require.InDelta(t, model.TargetDuration, repaired.TotalDuration(), model.DurationEpsilon, "raw=%s", raw)
		for _, n := range repaired.Notes {
			require.GreaterOrEqual(t, n.Octave, model.MinOctave)
			require.LessOrEqual(t, n.Octave, model.MaxOctave)
		}
	}
}

func TestRepairIsIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 500; i++ {
		once := Repair(rng, randomRawMelody(rng), model.TargetDuration)
		twice := Repair(rng, once, model.TargetDuration)
		require.Equal(t, once.Notes, twice.Notes)
	}
}

func TestRepairValidMelodyIsNoop(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	m := midRangeMelody()
	m.Fitness = 12.5
	require.Equal(t, model.TargetDuration, m.TotalDuration())

	before := rng.Int63()
	rng = rand.New(rand.NewSource(1))
	out := Repair(rng, m, model.TargetDuration)
	assert.Equal(t, m.Notes, out.Notes)
	assert.Equal(t, 12.5, out.Fitness)
	assert.Equal(t, before, rng.Int63(), "no-op repair must not consume randomness")

	out.Notes[0].PitchClass = 1
	assert.Equal(t, 5, m.Notes[0].PitchClass)
}

func TestRepairTrimsFromTheEnd(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	dropped := Repair(rng, melody(note(4, 1, 4), note(4, 1, 4), note(4, 1, 4), note(4, 1, 4), note(4, 3, 2)), 16)
	assert.Equal(t, melody(note(4, 1, 4), note(4, 1, 4), note(4, 1, 4), note(4, 1, 4)).Notes, dropped.Notes)

	shrunk := Repair(rng, melody(note(4, 1, 4), note(4, 1, 4), note(4, 1, 4), note(4, 1, 2), note(4, 3, 4)), 16)
	require.Len(t, shrunk.Notes, 5)
	assert.Equal(t, 2.0, shrunk.Notes[4].Duration)
	assert.Equal(t, 16.0, shrunk.TotalDuration())
}

func TestRepairToleratesUnfillableRemainder(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	m := melody(note(4, 1, 4), note(4, 1, 4), note(4, 1, 4), note(4, 1, 3.75))

	out := Repair(rng, m, 16)
	assert.InDelta(t, 15.75, out.TotalDuration(), 1e-12)
	assert.Equal(t, m.Notes, out.Notes)
}

func TestFitnessInvariantUnderNoopRepair(t *testing.T) {
	eval := fitness.NewEvaluator(fitness.DefaultWeights())
	rng := rand.New(rand.NewSource(5))
	m := midRangeMelody()
	assert.Equal(t, eval.Evaluate(m), eval.Evaluate(Repair(rng, m, model.TargetDuration)))
}
