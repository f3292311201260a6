package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	s := Summarize("run-1", sampleHistory())
	assert.Equal(t, 3, s.Generations)
	assert.Equal(t, 90.5, s.InitialBest)
	assert.Equal(t, 95.0, s.FinalBest)
	assert.Equal(t, 95.0, s.BestMax)
	assert.InDelta(t, 4.5, s.Improvement, 1e-9)
	assert.InDelta(t, 93.5, s.BestMean, 1e-9)
	assert.Positive(t, s.BestStd)
	assert.Equal(t, 1, s.PlateauFrom)
}

func TestSummarizeEdgeCases(t *testing.T) {
	assert.Equal(t, RunSummary{RunID: "empty"}, Summarize("empty", nil))

	single := Summarize("one", sampleHistory()[:1])
	assert.Zero(t, single.BestStd)
	assert.Zero(t, single.Improvement)
	assert.Equal(t, 0, single.PlateauFrom)
}
