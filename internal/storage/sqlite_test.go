//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStoreContract(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "melodyevo.db"))
	t.Cleanup(func() { _ = store.Close() })
	exerciseStore(t, store)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "melodyevo.db")

	first := NewSQLiteStore(path)
	require.NoError(t, first.Init(ctx))
	require.NoError(t, first.SaveRun(ctx, sampleRun("run-1", timeZero())))
	require.NoError(t, first.SavePopulation(ctx, sampleSnapshot()))
	require.NoError(t, first.Close())

	second := NewSQLiteStore(path)
	require.NoError(t, second.Init(ctx))
	t.Cleanup(func() { _ = second.Close() })

	run, ok, err := second.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleRun("run-1", timeZero()), run)

	snapshot, ok, err := second.GetPopulation(ctx, "run-x")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleSnapshot(), snapshot)
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "melodyevo.db"))
	_, _, err := store.GetRun(context.Background(), "x")
	assert.ErrorIs(t, err, errNotInitialized)
	assert.Error(t, NewSQLiteStore("").Init(context.Background()))
}
