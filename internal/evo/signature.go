package evo

import (
	"encoding/binary"
	"hash/fnv"
	"math"

	"melodyevo/internal/model"
)

// Fingerprint hashes the note sequence; equal melodies share a fingerprint.
func Fingerprint(m model.Melody) uint64 {
	h := fnv.New64a()
	var buf [24]byte
	for _, n := range m.Notes {
		binary.LittleEndian.PutUint64(buf[0:8], uint64(n.Octave))
		binary.LittleEndian.PutUint64(buf[8:16], uint64(n.PitchClass))
		binary.LittleEndian.PutUint64(buf[16:24], math.Float64bits(n.Duration))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

// Diversity counts distinct melodies in a population.
func Diversity(population []model.Melody) int {
	seen := make(map[uint64]struct{}, len(population))
	for _, m := range population {
		seen[Fingerprint(m)] = struct{}{}
	}
	return len(seen)
}
