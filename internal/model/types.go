package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Note is a single pitched note or rest. PitchClass 0 denotes a rest and
// 1..12 map to C..B.
type Note struct {
	Octave     int     `json:"octave" yaml:"octave"`
	PitchClass int     `json:"pitch_class" yaml:"pitch_class"`
	Duration   float64 `json:"duration" yaml:"duration"`
}

// Melody is an ordered note sequence with the fitness cached by the last
// evaluation.
type Melody struct {
	Notes   []Note  `json:"notes"`
	Fitness float64 `json:"fitness"`
}

// RunRecord describes one persisted evolution run.
type RunRecord struct {
	VersionedRecord
	ID             string    `json:"id"`
	CreatedAtUTC   time.Time `json:"created_at_utc"`
	Seed           int64     `json:"seed"`
	PopulationSize int       `json:"population_size"`
	Generations    int       `json:"generations"`
	InitMode       string    `json:"init_mode"`
	BestFitness    float64   `json:"best_fitness"`
	ArtifactsDir   string    `json:"artifacts_dir,omitempty"`
}

// GenerationStats summarizes one evaluated generation. Generation is
// zero-based and counts evolution steps.
type GenerationStats struct {
	Generation     int     `json:"generation"`
	BestFitness    float64 `json:"best_fitness"`
	AverageFitness float64 `json:"average_fitness"`
	MinFitness     float64 `json:"min_fitness"`
	Diversity      int     `json:"diversity"`
	SpeciesCount   int     `json:"species_count"`
}

// TopMelody is a ranked member of a final population.
type TopMelody struct {
	Rank    int     `json:"rank"`
	Fitness float64 `json:"fitness"`
	Melody  Melody  `json:"melody"`
}

// PopulationSnapshot is a persisted population at a given generation.
type PopulationSnapshot struct {
	VersionedRecord
	RunID      string   `json:"run_id"`
	Generation int      `json:"generation"`
	Melodies   []Melody `json:"melodies"`
}
