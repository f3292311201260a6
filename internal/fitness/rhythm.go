package fitness

import (
	"math"

	"melodyevo/internal/model"
)

const beatTolerance = 0.05

func rhythmVariety(notes []model.Note) float64 {
	distinct := make(map[float64]struct{}, len(notes))
	for _, n := range notes {
		distinct[n.Duration] = struct{}{}
	}
	switch count := len(distinct); {
	case count >= 3 && count <= 4:
		return 10
	case count == 2:
		return 7
	case count == 1:
		return 3
	default:
		return 8
	}
}

// noteDensity scores notes per 4-beat measure; rests count as events.
func noteDensity(m model.Melody) float64 {
	total := m.TotalDuration()
	if len(m.Notes) == 0 || total <= 0 {
		return neutralScore
	}
	density := float64(len(m.Notes)) / (total / model.BeatsPerBar)
	switch {
	case density >= 4 && density <= 12:
		return 10
	case density < 4:
		return density * 2.5
	default:
		return math.Max(0, 10-(density-12))
	}
}

// beatAlignment rewards onsets on strong beats (1 and 3 of the bar) and, to
// a lesser degree, weak beats; runs of more than two off-beat onsets are
// penalized progressively.
func beatAlignment(notes []model.Note) float64 {
	if len(notes) == 0 {
		return neutralScore
	}
	onset := 0.0
	sum := 0.0
	run := 0
	penalty := 0.0
	for _, n := range notes {
		pos := math.Mod(onset, model.BeatsPerBar)
		nearest := math.Round(pos)
		if math.Abs(pos-nearest) <= beatTolerance {
			switch int(nearest) % model.BeatsPerBar {
			case 0, 2:
				sum += 2
			default:
				sum += 1
			}
			run = 0
		} else {
			run++
			if run > 2 {
				penalty += float64(run - 2)
			}
		}
		onset += n.Duration
	}
	avg := sum / float64(len(notes))
	return math.Min(10, math.Max(0, 10*(avg/2)-penalty))
}
