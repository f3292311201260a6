package evo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"

	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/stat"

	"melodyevo/internal/model"
)

// State is the lifecycle position of a PopulationMonitor.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateEvolving
	StateDone
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateEvolving:
		return "evolving"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrNotInitialized = errors.New("population is not initialized")
	ErrRunComplete    = errors.New("all generations have run")
)

// Evaluator scores a melody. Implementations must be pure.
type Evaluator interface {
	Evaluate(m model.Melody) float64
}

// Observer receives per-generation statistics.
type Observer interface {
	ObserveGeneration(stats model.GenerationStats)
}

type RunResult struct {
	BestByGeneration    []float64
	AverageByGeneration []float64
	Generations         []model.GenerationStats
	FinalPopulation     []model.Melody
}

type MonitorConfig struct {
	Config
	Initializer Initializer
	Evaluator   Evaluator
	Selector    Selector
	// Rand overrides the generator seeded from Config.Seed.
	Rand      *rand.Rand
	Logger    *slog.Logger
	Observers []Observer
}

// PopulationMonitor owns the population and drives generational replacement.
// It is not safe for concurrent use.
type PopulationMonitor struct {
	cfg       MonitorConfig
	rng       *rand.Rand
	logger    *slog.Logger
	secondary []Operator
	species   *AdaptiveSpeciation

	state      State
	generation int
	population []model.Melody
	history    []model.GenerationStats
}

func NewPopulationMonitor(cfg MonitorConfig) (*PopulationMonitor, error) {
	if cfg.SecondaryOperators == nil {
		cfg.SecondaryOperators = DefaultSecondaryOperators()
	}
	if err := cfg.Config.Validate(); err != nil {
		return nil, err
	}
	if cfg.Initializer == nil {
		return nil, configError("initializer", "is required")
	}
	if cfg.Evaluator == nil {
		return nil, configError("evaluator", "is required")
	}
	if seed, ok := cfg.Initializer.(SeedInitializer); ok && len(seed.Corpus) == 0 {
		return nil, &ConfigurationError{Field: "corpus", Reason: ErrEmptyCorpus.Error(), Err: ErrEmptyCorpus}
	}
	if cfg.Selector == nil {
		cfg.Selector = TournamentSelector{TournamentSize: cfg.TournamentSize}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	secondary, err := ResolveOperators(cfg.SecondaryOperators)
	if err != nil {
		return nil, &ConfigurationError{Field: "secondary_operators", Reason: err.Error(), Err: err}
	}

	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &PopulationMonitor{
		cfg:       cfg,
		rng:       rng,
		logger:    logger,
		secondary: secondary,
		species:   NewAdaptiveSpeciation(cfg.PopulationSize),
		state:     StateUninitialized,
	}, nil
}

func (m *PopulationMonitor) State() State {
	return m.state
}

// Generation returns the number of completed evolution steps.
func (m *PopulationMonitor) Generation() int {
	return m.generation
}

// Initialize builds and scores generation zero.
func (m *PopulationMonitor) Initialize(ctx context.Context) error {
	if m.state != StateUninitialized {
		return fmt.Errorf("initialize from state %s", m.state)
	}
	population, err := m.cfg.Initializer.Initialize(m.rng, m.cfg.PopulationSize)
	if err != nil {
		return fmt.Errorf("initialize population (%s): %w", m.cfg.Initializer.Name(), err)
	}
	if len(population) != m.cfg.PopulationSize {
		return fmt.Errorf("initial population mismatch: got=%d want=%d", len(population), m.cfg.PopulationSize)
	}
	if err := m.evaluate(ctx, population); err != nil {
		return err
	}
	m.population = population
	m.state = StateReady
	if m.cfg.Generations == 0 {
		m.state = StateDone
	}
	m.logger.Info("population initialized",
		"mode", m.cfg.Initializer.Name(),
		"size", len(population),
		"seed", m.cfg.Seed,
	)
	return nil
}

// Step runs one generation: elitism, offspring production, replacement and
// evaluation.
func (m *PopulationMonitor) Step(ctx context.Context) (model.GenerationStats, error) {
	switch m.state {
	case StateUninitialized:
		return model.GenerationStats{}, ErrNotInitialized
	case StateDone:
		return model.GenerationStats{}, ErrRunComplete
	}
	if err := ctx.Err(); err != nil {
		return model.GenerationStats{}, err
	}
	m.state = StateEvolving

	next, err := m.nextGeneration()
	if err != nil {
		return model.GenerationStats{}, err
	}
	if err := m.evaluate(ctx, next); err != nil {
		return model.GenerationStats{}, err
	}
	m.population = next

	stats := summarizeGeneration(next, m.generation)
	_, speciation := m.species.Assign(next)
	stats.SpeciesCount = speciation.SpeciesCount
	m.history = append(m.history, stats)
	m.generation++
	for _, obs := range m.cfg.Observers {
		obs.ObserveGeneration(stats)
	}
	m.logger.Debug("generation evaluated",
		"generation", stats.Generation,
		"best", stats.BestFitness,
		"average", stats.AverageFitness,
		"diversity", stats.Diversity,
	)

	if m.generation >= m.cfg.Generations {
		m.state = StateDone
	}
	return stats, nil
}

// Run initializes if needed and steps until all generations have run. On
// cancellation it returns the result gathered so far along with ctx.Err().
func (m *PopulationMonitor) Run(ctx context.Context) (RunResult, error) {
	if m.state == StateUninitialized {
		if err := m.Initialize(ctx); err != nil {
			return RunResult{}, err
		}
	}
	for m.state != StateDone {
		if _, err := m.Step(ctx); err != nil {
			if ctx.Err() != nil {
				m.logger.Warn("run cancelled", "generation", m.generation, "err", err)
			}
			return m.Result(), err
		}
	}
	best, _ := m.Best()
	m.logger.Info("run complete", "generations", m.generation, "best", best.Fitness)
	return m.Result(), nil
}

func (m *PopulationMonitor) Result() RunResult {
	best := make([]float64, 0, len(m.history))
	avg := make([]float64, 0, len(m.history))
	for _, s := range m.history {
		best = append(best, s.BestFitness)
		avg = append(avg, s.AverageFitness)
	}
	return RunResult{
		BestByGeneration:    best,
		AverageByGeneration: avg,
		Generations:         append([]model.GenerationStats(nil), m.history...),
		FinalPopulation:     m.Top(len(m.population)),
	}
}

// Population returns copies of the current individuals in population order.
func (m *PopulationMonitor) Population() []model.Melody {
	out := make([]model.Melody, len(m.population))
	for i, mel := range m.population {
		out[i] = mel.CloneScored()
	}
	return out
}

func (m *PopulationMonitor) History() []model.GenerationStats {
	return append([]model.GenerationStats(nil), m.history...)
}

// Best returns the highest-scoring individual of the current population.
func (m *PopulationMonitor) Best() (model.Melody, bool) {
	top := m.Top(1)
	if len(top) == 0 {
		return model.Melody{}, false
	}
	return top[0], true
}

// Top returns up to n copies ranked by fitness descending.
func (m *PopulationMonitor) Top(n int) []model.Melody {
	ranked := rankByFitness(m.population)
	if n > len(ranked) {
		n = len(ranked)
	}
	if n < 0 {
		n = 0
	}
	out := make([]model.Melody, n)
	for i := 0; i < n; i++ {
		out[i] = ranked[i].CloneScored()
	}
	return out
}

func rankByFitness(population []model.Melody) []model.Melody {
	ranked := make([]model.Melody, len(population))
	copy(ranked, population)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Fitness > ranked[j].Fitness
	})
	return ranked
}

func (m *PopulationMonitor) nextGeneration() ([]model.Melody, error) {
	size := m.cfg.PopulationSize
	target := m.cfg.TargetDuration
	next := make([]model.Melody, 0, size)

	ranked := rankByFitness(m.population)
	for i := 0; i < m.cfg.EliteSize; i++ {
		next = append(next, ranked[i].CloneScored())
	}

	for len(next) < size {
		parent1, err := m.cfg.Selector.PickParent(m.rng, m.population)
		if err != nil {
			return nil, err
		}
		parent2, err := m.cfg.Selector.PickParent(m.rng, m.population)
		if err != nil {
			return nil, err
		}

		var child1, child2 model.Melody
		if m.rng.Float64() < m.cfg.PCrossover {
			child1, child2 = Crossover(m.rng, parent1, parent2, target)
		} else {
			child1, child2 = parent1.Clone(), parent2.Clone()
		}
		child1 = Mutate(m.rng, child1, m.cfg.MutationRate, target)
		child2 = Mutate(m.rng, child2, m.cfg.MutationRate, target)

		if len(m.secondary) > 0 && m.rng.Float64() < m.cfg.PSecondary {
			op := m.secondary[m.rng.Intn(len(m.secondary))]
			child1 = op.Apply(m.rng, child1)
		}

		next = append(next, child1)
		if len(next) < size {
			next = append(next, child2)
		}
	}
	return next, nil
}

// evaluate scores a static snapshot; each worker writes a distinct index.
func (m *PopulationMonitor) evaluate(ctx context.Context, population []model.Melody) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.cfg.Workers <= 1 || len(population) < 2 {
		for i := range population {
			population[i].Fitness = m.cfg.Evaluator.Evaluate(population[i])
		}
		return nil
	}

	p := pool.New().WithMaxGoroutines(m.cfg.Workers)
	for i := range population {
		i := i
		p.Go(func() {
			population[i].Fitness = m.cfg.Evaluator.Evaluate(population[i])
		})
	}
	p.Wait()
	return nil
}

func summarizeGeneration(population []model.Melody, generation int) model.GenerationStats {
	if len(population) == 0 {
		return model.GenerationStats{Generation: generation}
	}
	fitnesses := make([]float64, len(population))
	best, worst := population[0].Fitness, population[0].Fitness
	for i, mel := range population {
		fitnesses[i] = mel.Fitness
		best = max(best, mel.Fitness)
		worst = min(worst, mel.Fitness)
	}
	return model.GenerationStats{
		Generation:     generation,
		BestFitness:    best,
		AverageFitness: stat.Mean(fitnesses, nil),
		MinFitness:     worst,
		Diversity:      Diversity(population),
	}
}
