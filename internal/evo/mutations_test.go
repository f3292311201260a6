package evo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"melodyevo/internal/model"
)

func TestCrossoverSingleNoteParentsReturnCopies(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := melody(note(4, 1, 16))
	b := melody(note(5, 3, 16))

	c1, c2 := Crossover(rng, a, b, 16)
	assert.Equal(t, a.Notes, c1.Notes)
	assert.Equal(t, b.Notes, c2.Notes)

	c1.Notes[0].PitchClass = 9
	assert.Equal(t, 1, a.Notes[0].PitchClass)
}

func TestCrossoverChildrenMeetTarget(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 200; i++ {
		a := Repair(rng, randomRawMelody(rng), 16)
		b := Repair(rng, randomRawMelody(rng), 16)
		snapshotA := a.Clone()

		c1, c2 := Crossover(rng, a, b, 16)
		require.InDelta(t, 16, c1.TotalDuration(), model.DurationEpsilon)
		require.InDelta(t, 16, c2.TotalDuration(), model.DurationEpsilon)
		require.Equal(t, snapshotA.Notes, a.Notes, "parent must not be modified")
	}
}

func TestCrossoverKeepsParentPrefixes(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	a := melody(note(4, 1, 4), note(4, 3, 4), note(4, 5, 4), note(4, 6, 4))
	b := melody(note(5, 1, 4), note(5, 3, 4), note(5, 5, 4), note(5, 6, 4))

	for i := 0; i < 50; i++ {
		c1, c2 := Crossover(rng, a, b, 16)
		require.NotEmpty(t, c1.Notes)
		require.NotEmpty(t, c2.Notes)
		assert.Equal(t, a.Notes[0], c1.Notes[0])
		assert.Equal(t, b.Notes[0], c2.Notes[0])
		assert.Equal(t, 16.0, c1.TotalDuration())
		assert.Equal(t, 16.0, c2.TotalDuration())
	}
}

func TestMutateZeroRateIsIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	m := midRangeMelody()
	assert.Equal(t, m.Notes, Mutate(rng, m, 0, 16).Notes)
}

func TestMutateFullRateKeepsInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	for i := 0; i < 200; i++ {
		m := Repair(rng, randomRawMelody(rng), 16)
		snapshot := m.Clone()
		out := Mutate(rng, m, 1, 16)
		require.InDelta(t, 16, out.TotalDuration(), model.DurationEpsilon)
		require.Equal(t, snapshot.Notes, m.Notes)
		for _, n := range out.Notes {
			require.GreaterOrEqual(t, n.PitchClass, 0)
			require.LessOrEqual(t, n.PitchClass, model.PitchClasses)
			require.GreaterOrEqual(t, n.Octave, model.MinOctave)
			require.LessOrEqual(t, n.Octave, model.MaxOctave)
		}
	}
}

func TestMutatePromotesRestsToPitches(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	rests := melody(note(4, 0, 4), note(4, 0, 4), note(4, 0, 4), note(4, 0, 4))
	promoted := 0
	for i := 0; i < 100; i++ {
		for _, n := range Mutate(rng, rests, 1, 16).Notes {
			if !n.IsRest() {
				promoted++
			}
		}
	}
	assert.Positive(t, promoted)
}

func TestRetrogradeIsInvolution(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	for i := 0; i < 100; i++ {
		m := randomRawMelody(rng)
		r := Retrograde(m)
		require.Equal(t, m.TotalDuration(), r.TotalDuration())
		if len(m.Notes) > 0 {
			require.Equal(t, m.Notes[0], r.Notes[len(r.Notes)-1])
		}
		require.Equal(t, len(m.Notes), len(Retrograde(r).Notes))
		if len(m.Notes) > 0 {
			require.Equal(t, m.Notes, Retrograde(r).Notes)
		}
	}
}

func TestTransposeZeroIsIdentity(t *testing.T) {
	m := midRangeMelody()
	assert.Equal(t, m.Notes, Transpose(m, 0).Notes)
}

func TestTransposeWrapsIntoNextOctaveAndClamps(t *testing.T) {
	m := melody(note(4, 12, 4), note(4, 0, 4), note(5, 8, 4), note(3, 6, 4))
	out := Transpose(m, 2)
	assert.Equal(t, note(5, 2, 4), out.Notes[0])
	assert.Equal(t, note(4, 0, 4), out.Notes[1])
	assert.Equal(t, note(5, 10, 4), out.Notes[2])
	assert.Equal(t, note(3, 8, 4), out.Notes[3])

	down := Transpose(melody(note(3, 6, 4)), -6)
	assert.Equal(t, note(3, 12, 4), down.Notes[0])
}

func TestInversionTwiceRestoresPitches(t *testing.T) {
	m := midRangeMelody()
	once := Invert(m)
	assert.NotEqual(t, m.Notes, once.Notes)
	assert.Equal(t, m.Notes, Invert(once).Notes)
}

func TestInversionMirrorsAroundFirstPitchedNote(t *testing.T) {
	m := melody(note(4, 0, 4), note(4, 5, 4), note(4, 8, 4), note(4, 3, 4))
	out := Invert(m)
	assert.Equal(t, note(4, 0, 4), out.Notes[0])
	assert.Equal(t, note(4, 5, 4), out.Notes[1])
	assert.Equal(t, note(4, 2, 4), out.Notes[2])
	assert.Equal(t, note(4, 7, 4), out.Notes[3])

	rests := melody(note(4, 0, 8), note(4, 0, 8))
	assert.Equal(t, rests.Notes, Invert(rests).Notes)
}

func TestSecondaryOperatorsPreserveDuration(t *testing.T) {
	rng := rand.New(rand.NewSource(14))
	m := midRangeMelody()
	for _, name := range DefaultSecondaryOperators() {
		op, err := ResolveOperator(name)
		require.NoError(t, err)
		assert.Equal(t, name, op.Name())
		assert.Equal(t, m.TotalDuration(), op.Apply(rng, m).TotalDuration())
	}
}
