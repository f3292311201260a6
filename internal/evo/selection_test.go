package evo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"melodyevo/internal/model"
)

func scoredPopulation(fitness ...float64) []model.Melody {
	out := make([]model.Melody, len(fitness))
	for i, f := range fitness {
		out[i] = model.Melody{Notes: []model.Note{note(4, i+1, 16)}, Fitness: f}
	}
	return out
}

func TestTournamentSelectorIsUniformOnTies(t *testing.T) {
	population := scoredPopulation(5, 5, 5)
	selector := TournamentSelector{TournamentSize: 3}
	rng := rand.New(rand.NewSource(21))

	counts := map[int]int{}
	const trials = 3000
	for i := 0; i < trials; i++ {
		picked, err := selector.PickParent(rng, population)
		require.NoError(t, err)
		counts[picked.Notes[0].PitchClass]++
	}
	require.Len(t, counts, 3)
	for pc, c := range counts {
		assert.InDelta(t, trials/3, c, trials*0.05, "pitch class %d picked %d times", pc, c)
	}
}

func TestTournamentSelectorFullTournamentPicksBest(t *testing.T) {
	population := scoredPopulation(1, 9, 3, 4)
	selector := TournamentSelector{TournamentSize: 4}
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		picked, err := selector.PickParent(rng, population)
		require.NoError(t, err)
		assert.Equal(t, 9.0, picked.Fitness)
	}
}

func TestTournamentSelectorClampsOversizedTournament(t *testing.T) {
	population := scoredPopulation(2, 1)
	picked, err := TournamentSelector{TournamentSize: 10}.PickParent(rand.New(rand.NewSource(1)), population)
	require.NoError(t, err)
	assert.Equal(t, 2.0, picked.Fitness)
}

func TestTournamentSelectorFavorsFitter(t *testing.T) {
	population := scoredPopulation(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	selector := TournamentSelector{TournamentSize: 3}
	rng := rand.New(rand.NewSource(8))
	low, high := 0, 0
	for i := 0; i < 2000; i++ {
		picked, err := selector.PickParent(rng, population)
		require.NoError(t, err)
		if picked.Fitness <= 2 {
			low++
		}
		if picked.Fitness >= 9 {
			high++
		}
	}
	assert.Greater(t, high, low)
}

func TestTournamentSelectorRejectsBadInput(t *testing.T) {
	_, err := TournamentSelector{}.PickParent(nil, scoredPopulation(1))
	require.Error(t, err)
	_, err = TournamentSelector{}.PickParent(rand.New(rand.NewSource(1)), nil)
	require.Error(t, err)
}
