package stats

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"melodyevo/internal/evo"
	"melodyevo/internal/fitness"
	"melodyevo/internal/model"
)

func sampleHistory() []model.GenerationStats {
	return []model.GenerationStats{
		{Generation: 0, BestFitness: 90.5, AverageFitness: 70.25, MinFitness: 50, Diversity: 20, SpeciesCount: 5},
		{Generation: 1, BestFitness: 95, AverageFitness: 80, MinFitness: 60, Diversity: 18, SpeciesCount: 4},
		{Generation: 2, BestFitness: 95, AverageFitness: 85.125, MinFitness: 70, Diversity: 15, SpeciesCount: 4},
	}
}

func sampleArtifacts(runID string) RunArtifacts {
	return RunArtifacts{
		Config: RunConfig{
			RunID:      runID,
			InitMode:   evo.InitProcedural,
			EndingMode: string(fitness.EndingRootEstimate),
			Evolution:  evo.DefaultConfig(),
			Weights:    fitness.DefaultWeights(),
		},
		Generations:      sampleHistory(),
		FinalBestFitness: 95,
		TopMelodies: []model.TopMelody{{
			Rank:    1,
			Fitness: 95,
			Melody:  model.Melody{Notes: []model.Note{{Octave: 4, PitchClass: 1, Duration: 16}}, Fitness: 95},
		}},
		Checkpoints: []Checkpoint{{Generation: 0, Fitness: 90.5, File: "gen_00_best.mid"}},
	}
}

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	runDir, err := WriteRunArtifacts(baseDir, sampleArtifacts("run-123"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "gen_00_best.mid"), []byte("MThd"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "scratch.tmp"), []byte("x"), 0o644))

	expected := []string{configFile, historyFile, chartFile, topMelodiesFile, checkpointsFile, summaryFile}
	for _, file := range expected {
		assert.FileExists(t, filepath.Join(runDir, file))
	}

	png, err := os.ReadFile(filepath.Join(runDir, chartFile))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	exportedDir, err := ExportRunArtifacts(baseDir, "run-123", outDir)
	require.NoError(t, err)
	for _, file := range append(expected, "gen_00_best.mid") {
		assert.FileExists(t, filepath.Join(exportedDir, file))
	}
	assert.NoFileExists(t, filepath.Join(exportedDir, "scratch.tmp"))

	_, err = ExportRunArtifacts(baseDir, "missing", outDir)
	assert.Error(t, err)
}

func TestReadBackRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	_, err := WriteRunArtifacts(baseDir, sampleArtifacts("run-1"))
	require.NoError(t, err)

	cfg, ok, err := ReadRunConfig(baseDir, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleArtifacts("run-1").Config, cfg)

	history, ok, err := ReadFitnessHistory(baseDir, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleHistory(), history)

	top, ok, err := ReadTopMelodies(baseDir, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleArtifacts("run-1").TopMelodies, top)

	checkpoints, ok, err := ReadCheckpoints(baseDir, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "gen_00_best.mid", checkpoints[0].File)

	_, ok, err = ReadRunConfig(baseDir, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = ReadFitnessHistory(baseDir, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestZeroGenerationRunSkipsChart(t *testing.T) {
	artifacts := sampleArtifacts("run-0")
	artifacts.Generations = nil
	runDir, err := WriteRunArtifacts(t.TempDir(), artifacts)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(runDir, chartFile))
	assert.FileExists(t, filepath.Join(runDir, historyFile))
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	_, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{})
	assert.Error(t, err)
	assert.Error(t, AppendRunIndex(t.TempDir(), RunIndexEntry{}))
	assert.Error(t, WriteFitnessChart(filepath.Join(t.TempDir(), "x.png"), "", nil))
}

func TestRunIndexOrderingAndReplace(t *testing.T) {
	baseDir := t.TempDir()
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "a", CreatedAtUTC: "2026-01-01T00:00:00Z"}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "b", CreatedAtUTC: "2026-01-02T00:00:00Z"}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "c", CreatedAtUTC: "2026-01-02T00:00:00Z"}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "a", CreatedAtUTC: "2026-01-01T00:00:00Z", FinalBestFitness: 99}))

	entries, err := ListRunIndex(baseDir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{entries[0].RunID, entries[1].RunID, entries[2].RunID})
	assert.Equal(t, 99.0, entries[2].FinalBestFitness)

	stored, err := readRunIndex(baseDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, []string{stored[0].RunID, stored[1].RunID, stored[2].RunID})

	empty, err := ListRunIndex(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRunIndexReplaceKeepsLatestOnTiedTimestamps(t *testing.T) {
	baseDir := t.TempDir()
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "a", CreatedAtUTC: "2026-01-01T00:00:00Z"}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "b", CreatedAtUTC: "2026-01-02T00:00:00Z"}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "c", CreatedAtUTC: "2026-01-02T00:00:00Z"}))

	for n := 0; n < 3; n++ {
		entries, err := ListRunIndex(baseDir)
		require.NoError(t, err)
		require.NotEmpty(t, entries)
		assert.Equal(t, "c", entries[0].RunID)
		require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "a", CreatedAtUTC: "2026-01-01T00:00:00Z", FinalBestFitness: 1}))
	}
}
