package evo

import (
	"fmt"

	"melodyevo/internal/fitness"
	"melodyevo/internal/model"
)

// SpecieIdentifier assigns a stable species key to a melody.
type SpecieIdentifier interface {
	Name() string
	Identify(m model.Melody) string
}

// TonalSpecieIdentifier groups melodies by estimated tonic and final note.
type TonalSpecieIdentifier struct{}

func (TonalSpecieIdentifier) Name() string {
	return "tonal"
}

func (TonalSpecieIdentifier) Identify(m model.Melody) string {
	pitched := m.Pitched()
	if len(pitched) == 0 {
		return "silent"
	}
	root := fitness.EstimateRoot(pitched)
	last := pitched[len(pitched)-1].Chroma()
	return fmt.Sprintf("key:%s-end:%s", model.ChromaName(root), model.ChromaName(last))
}

// KeyName returns the note name of the estimated tonic, or "-" for a melody
// without pitched notes.
func KeyName(m model.Melody) string {
	pitched := m.Pitched()
	if len(pitched) == 0 {
		return "-"
	}
	return model.ChromaName(fitness.EstimateRoot(pitched))
}
