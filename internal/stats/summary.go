package stats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"melodyevo/internal/model"
)

// RunSummary condenses a best-fitness series.
type RunSummary struct {
	RunID       string  `json:"run_id"`
	Generations int     `json:"generations"`
	InitialBest float64 `json:"initial_best"`
	FinalBest   float64 `json:"final_best"`
	BestMean    float64 `json:"best_mean"`
	BestStd     float64 `json:"best_std"`
	BestMax     float64 `json:"best_max"`
	Improvement float64 `json:"improvement"`
	// PlateauFrom is the first generation whose best equals the final best.
	PlateauFrom int `json:"plateau_from"`
}

func Summarize(runID string, history []model.GenerationStats) RunSummary {
	summary := RunSummary{RunID: runID, Generations: len(history)}
	if len(history) == 0 {
		return summary
	}
	best := make([]float64, len(history))
	for i, s := range history {
		best[i] = s.BestFitness
	}
	summary.InitialBest = best[0]
	summary.FinalBest = best[len(best)-1]
	summary.BestMean, summary.BestStd = stat.MeanStdDev(best, nil)
	if len(best) == 1 {
		summary.BestStd = 0
	}
	summary.BestMax = floats.Max(best)
	summary.Improvement = summary.FinalBest - summary.InitialBest

	summary.PlateauFrom = history[len(history)-1].Generation
	for i := len(best) - 1; i >= 0 && best[i] == summary.FinalBest; i-- {
		summary.PlateauFrom = history[i].Generation
	}
	return summary
}
