package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreContract(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	err := store.SaveRun(context.Background(), sampleRun("x", timeZero()))
	assert.ErrorIs(t, err, errNotInitialized)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Init(ctx))

	snapshot := sampleSnapshot()
	require.NoError(t, store.SavePopulation(ctx, snapshot))
	snapshot.Melodies[0].Notes[0].Octave = 3

	loaded, ok, err := store.GetPopulation(ctx, snapshot.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, loaded.Melodies[0].Notes[0].Octave)

	loaded.Melodies[0].Notes[0].Octave = 5
	again, _, _ := store.GetPopulation(ctx, snapshot.RunID)
	assert.Equal(t, 4, again.Melodies[0].Notes[0].Octave)
}

func TestMemoryStoreInitKeepsData(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.SaveRun(ctx, sampleRun("keep", timeZero())))
	require.NoError(t, store.Init(ctx))

	_, ok, err := store.GetRun(ctx, "keep")
	require.NoError(t, err)
	assert.True(t, ok)
}
