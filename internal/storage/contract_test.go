package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"melodyevo/internal/model"
)

func sampleMelody(fitness float64) model.Melody {
	return model.Melody{
		Notes: []model.Note{
			{Octave: 4, PitchClass: 1, Duration: 4},
			{Octave: 4, PitchClass: model.Rest, Duration: 4},
			{Octave: 5, PitchClass: 8, Duration: 8},
		},
		Fitness: fitness,
	}
}

func sampleRun(id string, created time.Time) model.RunRecord {
	return model.RunRecord{
		VersionedRecord: CurrentVersion(),
		ID:              id,
		CreatedAtUTC:    created,
		Seed:            42,
		PopulationSize:  20,
		Generations:     150,
		InitMode:        "procedural",
		BestFitness:     120.5,
	}
}

// exerciseStore runs the behaviour every Store implementation must share.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Init(ctx))

	older := sampleRun("run-a", time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC))
	newer := sampleRun("run-b", time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC))
	require.NoError(t, store.SaveRun(ctx, older))
	require.NoError(t, store.SaveRun(ctx, newer))
	require.Error(t, store.SaveRun(ctx, model.RunRecord{}))

	got, ok, err := store.GetRun(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, older, got)

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-b", runs[0].ID)

	history := []model.GenerationStats{
		{Generation: 0, BestFitness: 100, AverageFitness: 80, MinFitness: 60, Diversity: 20, SpeciesCount: 4},
		{Generation: 1, BestFitness: 101.5, AverageFitness: 90, MinFitness: 70, Diversity: 19, SpeciesCount: 3},
	}
	require.NoError(t, store.SaveGenerationStats(ctx, "run-a", history))
	loadedHistory, ok, err := store.GetGenerationStats(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, history, loadedHistory)

	top := []model.TopMelody{
		{Rank: 1, Fitness: 101.5, Melody: sampleMelody(101.5)},
		{Rank: 2, Fitness: 99, Melody: sampleMelody(99)},
	}
	require.NoError(t, store.SaveTopMelodies(ctx, "run-a", top))
	loadedTop, ok, err := store.GetTopMelodies(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, top, loadedTop)

	snapshot := model.PopulationSnapshot{
		VersionedRecord: CurrentVersion(),
		RunID:           "run-a",
		Generation:      2,
		Melodies:        []model.Melody{sampleMelody(101.5), sampleMelody(99)},
	}
	require.NoError(t, store.SavePopulation(ctx, snapshot))
	loadedSnapshot, ok, err := store.GetPopulation(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snapshot, loadedSnapshot)

	stale := snapshot
	stale.VersionedRecord = model.VersionedRecord{SchemaVersion: 0, CodecVersion: 1}
	assert.True(t, errors.Is(store.SavePopulation(ctx, stale), ErrVersionMismatch))

	_, ok, err = store.GetRun(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = store.GetTopMelodies(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Reset(ctx))
	runs, err = store.ListRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)
	_, ok, err = store.GetGenerationStats(ctx, "run-a")
	require.NoError(t, err)
	assert.False(t, ok)
}
