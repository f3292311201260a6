package storage

import (
	"context"
	"errors"
	"sync"

	"melodyevo/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

// MemoryStore keeps records for the lifetime of the process. Stored values
// are deep-copied on the way in and out.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	history     map[string][]model.GenerationStats
	topMelodies map[string][]model.TopMelody
	populations map[string]model.PopulationSnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.reset()
	return nil
}

func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	return nil
}

func (s *MemoryStore) reset() {
	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.history = make(map[string][]model.GenerationStats)
	s.topMelodies = make(map[string][]model.TopMelody)
	s.populations = make(map[string]model.PopulationSnapshot)
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	if run.ID == "" {
		return errors.New("run id is required")
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run)
	}
	sortRunsNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) SaveGenerationStats(_ context.Context, runID string, history []model.GenerationStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.history[runID] = append([]model.GenerationStats(nil), history...)
	return nil
}

func (s *MemoryStore) GetGenerationStats(_ context.Context, runID string) ([]model.GenerationStats, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.GenerationStats(nil), history...), true, nil
}

func (s *MemoryStore) SaveTopMelodies(_ context.Context, runID string, top []model.TopMelody) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.topMelodies[runID] = cloneTopMelodies(top)
	return nil
}

func (s *MemoryStore) GetTopMelodies(_ context.Context, runID string) ([]model.TopMelody, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	top, ok := s.topMelodies[runID]
	if !ok {
		return nil, false, nil
	}
	return cloneTopMelodies(top), true, nil
}

func (s *MemoryStore) SavePopulation(_ context.Context, snapshot model.PopulationSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	if err := checkVersion(snapshot.VersionedRecord); err != nil {
		return err
	}
	s.populations[snapshot.RunID] = clonePopulation(snapshot)
	return nil
}

func (s *MemoryStore) GetPopulation(_ context.Context, runID string) (model.PopulationSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.populations[runID]
	if !ok {
		return model.PopulationSnapshot{}, false, nil
	}
	return clonePopulation(snapshot), true, nil
}

func cloneTopMelodies(top []model.TopMelody) []model.TopMelody {
	out := make([]model.TopMelody, len(top))
	for i, t := range top {
		out[i] = t
		out[i].Melody = t.Melody.CloneScored()
	}
	return out
}

func clonePopulation(snapshot model.PopulationSnapshot) model.PopulationSnapshot {
	out := snapshot
	out.Melodies = make([]model.Melody, len(snapshot.Melodies))
	for i, m := range snapshot.Melodies {
		out.Melodies[i] = m.CloneScored()
	}
	return out
}
