package evo

import (
	"fmt"
	"math"

	"melodyevo/internal/model"
)

// SpeciationStats captures per-generation species partitioning diagnostics.
type SpeciationStats struct {
	SpeciesCount       int
	TargetSpeciesCount int
	Threshold          float64
	MeanSpeciesSize    float64
	LargestSpeciesSize int
}

// AdaptiveSpeciation tracks a compatibility threshold and nudges it toward a
// target species count each generation. Species representatives persist
// across calls so keys stay stable while a lineage survives. It only
// observes the population; selection never reads species membership.
type AdaptiveSpeciation struct {
	TargetSpeciesCount int
	Threshold          float64
	MinThreshold       float64
	MaxThreshold       float64
	AdjustStep         float64

	representatives []speciesRepresentative
	nextSpeciesID   int
}

type speciesRepresentative struct {
	key    string
	melody model.Melody
}

func NewAdaptiveSpeciation(populationSize int) *AdaptiveSpeciation {
	target := int(math.Sqrt(float64(populationSize)))
	if target < 2 {
		target = 2
	}
	return &AdaptiveSpeciation{
		TargetSpeciesCount: target,
		Threshold:          0.6,
		MinThreshold:       0.05,
		MaxThreshold:       4.0,
		AdjustStep:         0.05,
		nextSpeciesID:      1,
	}
}

func (s *AdaptiveSpeciation) Assign(melodies []model.Melody) (map[string][]model.Melody, SpeciationStats) {
	if len(melodies) == 0 {
		return map[string][]model.Melody{}, SpeciationStats{
			TargetSpeciesCount: s.TargetSpeciesCount,
			Threshold:          s.Threshold,
		}
	}
	if s.nextSpeciesID < 1 {
		s.nextSpeciesID = 1
	}

	type speciesGroup struct {
		key            string
		representative model.Melody
		members        []model.Melody
	}
	groups := make([]*speciesGroup, 0, len(s.representatives)+len(melodies))
	for _, rep := range s.representatives {
		groups = append(groups, &speciesGroup{key: rep.key, representative: rep.melody})
	}

	for _, mel := range melodies {
		bestIdx := -1
		bestDistance := math.MaxFloat64
		for i, grp := range groups {
			dist := MelodyDistance(mel, grp.representative)
			if dist < bestDistance {
				bestDistance = dist
				bestIdx = i
			}
		}
		if bestIdx == -1 || bestDistance > s.Threshold {
			key := fmt.Sprintf("sp-%03d", s.nextSpeciesID)
			s.nextSpeciesID++
			groups = append(groups, &speciesGroup{
				key:            key,
				representative: mel,
				members:        []model.Melody{mel},
			})
			continue
		}
		groups[bestIdx].members = append(groups[bestIdx].members, mel)
	}

	speciesByKey := make(map[string][]model.Melody, len(groups))
	s.representatives = s.representatives[:0]
	largest := 0
	for _, group := range groups {
		if len(group.members) == 0 {
			continue
		}
		speciesByKey[group.key] = group.members
		// The first member of this generation represents the species next time.
		s.representatives = append(s.representatives, speciesRepresentative{
			key:    group.key,
			melody: group.members[0].Clone(),
		})
		largest = max(largest, len(group.members))
	}

	count := len(speciesByKey)
	if count > s.TargetSpeciesCount {
		s.Threshold = math.Min(s.MaxThreshold, s.Threshold+s.AdjustStep)
	} else if count < s.TargetSpeciesCount {
		s.Threshold = math.Max(s.MinThreshold, s.Threshold-s.AdjustStep)
	}

	return speciesByKey, SpeciationStats{
		SpeciesCount:       count,
		TargetSpeciesCount: s.TargetSpeciesCount,
		Threshold:          s.Threshold,
		MeanSpeciesSize:    float64(len(melodies)) / float64(count),
		LargestSpeciesSize: largest,
	}
}

// MelodyDistance compares duration-weighted chroma profiles and duration
// mixes. Rests count toward the duration mix only. The result is in [0, 4].
func MelodyDistance(a, b model.Melody) float64 {
	ca, da := melodyProfile(a)
	cb, db := melodyProfile(b)
	dist := 0.0
	for i := range ca {
		dist += math.Abs(ca[i] - cb[i])
	}
	for i := range da {
		dist += math.Abs(da[i] - db[i])
	}
	return dist
}

func melodyProfile(m model.Melody) (chroma [model.PitchClasses]float64, durations [4]float64) {
	pitchedTotal := 0.0
	for _, n := range m.Notes {
		for i, d := range model.Durations {
			if n.Duration == d {
				durations[i]++
				break
			}
		}
		if n.IsRest() {
			continue
		}
		chroma[n.Chroma()] += n.Duration
		pitchedTotal += n.Duration
	}
	if pitchedTotal > 0 {
		for i := range chroma {
			chroma[i] /= pitchedTotal
		}
	}
	if len(m.Notes) > 0 {
		for i := range durations {
			durations[i] /= float64(len(m.Notes))
		}
	}
	return chroma, durations
}
