package evo

import (
	"errors"
	"fmt"
	"math"
)

// ErrEmptyCorpus reports a seed-mode run with no phrases to build from.
var ErrEmptyCorpus = errors.New("seed corpus is empty")

// ConfigurationError reports an invalid setting detected before a run starts.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func configError(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Config is the numeric configuration surface consumed by the evolution loop.
type Config struct {
	PopulationSize     int      `json:"population_size" yaml:"population_size"`
	Generations        int      `json:"generations" yaml:"generations"`
	MutationRate       float64  `json:"mutation_rate" yaml:"mutation_rate"`
	EliteSize          int      `json:"elite_size" yaml:"elite_size"`
	TournamentSize     int      `json:"tournament_size" yaml:"tournament_size"`
	PCrossover         float64  `json:"p_crossover" yaml:"p_crossover"`
	PSecondary         float64  `json:"p_secondary" yaml:"p_secondary"`
	RestProbability    float64  `json:"rest_probability" yaml:"rest_probability"`
	TargetDuration     float64  `json:"target_duration" yaml:"target_duration"`
	Seed               int64    `json:"seed" yaml:"seed"`
	Workers            int      `json:"workers" yaml:"workers"`
	SecondaryOperators []string `json:"secondary_operators,omitempty" yaml:"secondary_operators,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		PopulationSize:     20,
		Generations:        150,
		MutationRate:       0.2,
		EliteSize:          2,
		TournamentSize:     3,
		PCrossover:         0.8,
		PSecondary:         0.1,
		RestProbability:    0.15,
		TargetDuration:     16,
		Seed:               42,
		Workers:            1,
		SecondaryOperators: DefaultSecondaryOperators(),
	}
}

// Validate checks every setting and returns the first *ConfigurationError.
func (c Config) Validate() error {
	if c.PopulationSize < 1 {
		return configError("population_size", "must be >= 1, got %d", c.PopulationSize)
	}
	if c.Generations < 0 {
		return configError("generations", "must be >= 0, got %d", c.Generations)
	}
	if c.EliteSize < 0 || c.EliteSize > c.PopulationSize {
		return configError("elite_size", "must be in [0, population_size], got %d", c.EliteSize)
	}
	if c.TournamentSize < 1 {
		return configError("tournament_size", "must be >= 1, got %d", c.TournamentSize)
	}
	rates := []struct {
		field string
		value float64
	}{
		{"mutation_rate", c.MutationRate},
		{"p_crossover", c.PCrossover},
		{"p_secondary", c.PSecondary},
		{"rest_probability", c.RestProbability},
	}
	for _, r := range rates {
		if math.IsNaN(r.value) || r.value < 0 || r.value > 1 {
			return configError(r.field, "must be in [0, 1], got %g", r.value)
		}
	}
	if math.IsNaN(c.TargetDuration) || c.TargetDuration <= 0 {
		return configError("target_duration", "must be > 0, got %g", c.TargetDuration)
	}
	if c.Workers < 0 {
		return configError("workers", "must be >= 0, got %d", c.Workers)
	}
	for _, name := range c.SecondaryOperators {
		if _, err := ResolveOperator(name); err != nil {
			return &ConfigurationError{Field: "secondary_operators", Reason: err.Error(), Err: err}
		}
	}
	return nil
}
