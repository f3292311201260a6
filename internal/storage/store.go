package storage

import (
	"context"

	"melodyevo/internal/model"
)

// Store persists runs and their per-generation results.
type Store interface {
	Init(ctx context.Context) error
	// Reset removes every stored record.
	Reset(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveGenerationStats(ctx context.Context, runID string, history []model.GenerationStats) error
	GetGenerationStats(ctx context.Context, runID string) ([]model.GenerationStats, bool, error)
	SaveTopMelodies(ctx context.Context, runID string, top []model.TopMelody) error
	GetTopMelodies(ctx context.Context, runID string) ([]model.TopMelody, bool, error)
	SavePopulation(ctx context.Context, snapshot model.PopulationSnapshot) error
	GetPopulation(ctx context.Context, runID string) (model.PopulationSnapshot, bool, error)
}
