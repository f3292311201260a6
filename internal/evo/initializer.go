package evo

import (
	"fmt"
	"math/rand"

	"melodyevo/internal/model"
)

const (
	InitProcedural = "procedural"
	InitSeed       = "seed"
)

// Initializer produces generation zero. Returned melodies are unscored.
type Initializer interface {
	Name() string
	Initialize(rng *rand.Rand, size int) ([]model.Melody, error)
}

// ProceduralInitializer builds random melodies note by note.
type ProceduralInitializer struct {
	RestProbability float64
	Target          float64
}

func (ProceduralInitializer) Name() string {
	return InitProcedural
}

func (p ProceduralInitializer) Initialize(rng *rand.Rand, size int) ([]model.Melody, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	out := make([]model.Melody, 0, size)
	for len(out) < size {
		out = append(out, p.randomMelody(rng))
	}
	return out, nil
}

func (p ProceduralInitializer) randomMelody(rng *rand.Rand) model.Melody {
	var m model.Melody
	total := 0.0
	for total < p.Target-model.DurationEpsilon {
		fits := fittingDurations(p.Target - total)
		if len(fits) == 0 {
			fits = model.Durations[:1]
		}
		duration := fits[rng.Intn(len(fits))]
		note := model.Note{Octave: 4, PitchClass: model.Rest, Duration: duration}
		if rng.Float64() >= p.RestProbability {
			pitch := randomPitch(rng)
			note.Octave = pitch.octave
			note.PitchClass = pitch.pitchClass
		}
		m.Notes = append(m.Notes, note)
		total += duration
	}
	return Repair(rng, m, p.Target)
}

// SeedInitializer adapts a fixed corpus of phrases, padding with copies of
// randomly chosen phrases or truncating to reach the population size.
type SeedInitializer struct {
	Corpus []model.Melody
	Target float64
}

// NewSeedInitializer rejects an empty corpus up front.
func NewSeedInitializer(corpus []model.Melody, target float64) (SeedInitializer, error) {
	if len(corpus) == 0 {
		return SeedInitializer{}, &ConfigurationError{Field: "corpus", Reason: ErrEmptyCorpus.Error(), Err: ErrEmptyCorpus}
	}
	return SeedInitializer{Corpus: corpus, Target: target}, nil
}

func (SeedInitializer) Name() string {
	return InitSeed
}

func (s SeedInitializer) Initialize(rng *rand.Rand, size int) ([]model.Melody, error) {
	if size <= 0 {
		return nil, nil
	}
	if len(s.Corpus) == 0 {
		return nil, &ConfigurationError{Field: "corpus", Reason: ErrEmptyCorpus.Error(), Err: ErrEmptyCorpus}
	}
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}

	repaired := make([]model.Melody, 0, len(s.Corpus))
	for _, phrase := range s.Corpus {
		repaired = append(repaired, Repair(rng, phrase.Clone(), s.Target))
	}
	if len(repaired) >= size {
		return repaired[:size], nil
	}

	out := repaired
	for len(out) < size {
		out = append(out, repaired[rng.Intn(len(repaired))].Clone())
	}
	return out, nil
}
