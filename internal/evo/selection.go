package evo

import (
	"fmt"
	"math/rand"

	"melodyevo/internal/model"
)

// Selector chooses a parent from the current population.
type Selector interface {
	Name() string
	PickParent(rng *rand.Rand, population []model.Melody) (model.Melody, error)
}

// TournamentSelector draws TournamentSize distinct individuals and returns
// the fittest; ties go to the first drawn. A tournament larger than the
// population is clamped to the population size.
type TournamentSelector struct {
	TournamentSize int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) PickParent(rng *rand.Rand, population []model.Melody) (model.Melody, error) {
	if rng == nil {
		return model.Melody{}, fmt.Errorf("random source is required")
	}
	if len(population) == 0 {
		return model.Melody{}, fmt.Errorf("population is empty")
	}

	size := s.TournamentSize
	if size <= 0 {
		size = 3
	}
	if size > len(population) {
		size = len(population)
	}

	indices := make([]int, len(population))
	for i := range indices {
		indices[i] = i
	}
	best := -1
	for i := 0; i < size; i++ {
		j := i + rng.Intn(len(indices)-i)
		indices[i], indices[j] = indices[j], indices[i]
		candidate := indices[i]
		if best < 0 || population[candidate].Fitness > population[best].Fitness {
			best = candidate
		}
	}
	return population[best], nil
}
