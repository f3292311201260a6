package evo

import (
	"math/rand"

	"melodyevo/internal/model"
)

const (
	OperatorTranspose  = "transpose"
	OperatorInversion  = "inversion"
	OperatorRetrograde = "retrograde"
)

// Operator is an auxiliary transformation applied to a single child.
type Operator interface {
	Name() string
	Apply(rng *rand.Rand, melody model.Melody) model.Melody
}

// TransposeOperator shifts by a uniform offset in [-MaxSemitones, MaxSemitones].
type TransposeOperator struct {
	MaxSemitones int
}

func (TransposeOperator) Name() string {
	return OperatorTranspose
}

func (o TransposeOperator) Apply(rng *rand.Rand, melody model.Melody) model.Melody {
	span := o.MaxSemitones
	if span <= 0 {
		span = 3
	}
	return Transpose(melody, rng.Intn(2*span+1)-span)
}

type InversionOperator struct{}

func (InversionOperator) Name() string {
	return OperatorInversion
}

func (InversionOperator) Apply(_ *rand.Rand, melody model.Melody) model.Melody {
	return Invert(melody)
}

type RetrogradeOperator struct{}

func (RetrogradeOperator) Name() string {
	return OperatorRetrograde
}

func (RetrogradeOperator) Apply(_ *rand.Rand, melody model.Melody) model.Melody {
	return Retrograde(melody)
}
