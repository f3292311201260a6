package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"melodyevo/internal/model"
)

func TestCollectorObservesGenerations(t *testing.T) {
	c := NewCollector("run-1")
	c.ObserveGeneration(model.GenerationStats{Generation: 0, BestFitness: 90, AverageFitness: 70, MinFitness: 50, Diversity: 18, SpeciesCount: 4})
	c.ObserveGeneration(model.GenerationStats{Generation: 1, BestFitness: 95, AverageFitness: 80, MinFitness: 60, Diversity: 15, SpeciesCount: 3})
	c.ObserveGeneration(model.GenerationStats{Generation: 2, BestFitness: 95, AverageFitness: 82, MinFitness: 61, Diversity: 14, SpeciesCount: 3})

	assert.Equal(t, 95.0, testutil.ToFloat64(c.BestFitness))
	assert.Equal(t, 82.0, testutil.ToFloat64(c.AverageFitness))
	assert.Equal(t, 61.0, testutil.ToFloat64(c.MinFitness))
	assert.Equal(t, 14.0, testutil.ToFloat64(c.Diversity))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.Species))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.Generations))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.BestImprovements))
	assert.Equal(t, 1, testutil.CollectAndCount(c.FitnessSpread))
}

func TestCollectorsHaveIndependentRegistries(t *testing.T) {
	a := NewCollector("a")
	b := NewCollector("b")
	a.ObserveGeneration(model.GenerationStats{BestFitness: 1})
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Generations))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Generations))
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector("run-h")
	c.ObserveGeneration(model.GenerationStats{BestFitness: 101.5})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `melodyevo_evolution_best_fitness{run_id="run-h"} 101.5`)
	assert.Contains(t, body, "melodyevo_evolution_generations_total")
}

func TestServeStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewCollector("run-s")
	addr, err := c.Serve(ctx, "127.0.0.1:0", nil)
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "melodyevo_evolution_species"))
}
