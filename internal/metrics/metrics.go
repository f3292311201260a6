// Package metrics exposes evolution progress as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"melodyevo/internal/model"
)

const (
	metricsNamespace   = "melodyevo"
	evolutionSubsystem = "evolution"
)

// Collector records per-generation statistics. It implements evo.Observer
// and owns its registry so several collectors can coexist in tests.
type Collector struct {
	registry *prometheus.Registry

	BestFitness      prometheus.Gauge
	AverageFitness   prometheus.Gauge
	MinFitness       prometheus.Gauge
	Diversity        prometheus.Gauge
	Species          prometheus.Gauge
	Generations      prometheus.Counter
	BestImprovements prometheus.Counter
	FitnessSpread    prometheus.Histogram

	lastBest float64
	seen     bool
}

func NewCollector(runID string) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := prometheus.Labels{"run_id": runID}
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Subsystem:   evolutionSubsystem,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}
	return &Collector{
		registry:       reg,
		BestFitness:    gauge("best_fitness", "Best fitness in the latest generation."),
		AverageFitness: gauge("average_fitness", "Mean fitness in the latest generation."),
		MinFitness:     gauge("min_fitness", "Lowest fitness in the latest generation."),
		Diversity:      gauge("distinct_melodies", "Distinct melodies in the latest generation."),
		Species:        gauge("species", "Species observed in the latest generation."),
		Generations: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   evolutionSubsystem,
			Name:        "generations_total",
			Help:        "Evolution steps completed.",
			ConstLabels: labels,
		}),
		BestImprovements: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   evolutionSubsystem,
			Name:        "best_improvements_total",
			Help:        "Generations whose best fitness beat the previous best.",
			ConstLabels: labels,
		}),
		FitnessSpread: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   metricsNamespace,
			Subsystem:   evolutionSubsystem,
			Name:        "fitness_spread",
			Help:        "Best minus lowest fitness per generation.",
			Buckets:     prometheus.LinearBuckets(0, 10, 12),
			ConstLabels: labels,
		}),
	}
}

func (c *Collector) ObserveGeneration(stats model.GenerationStats) {
	c.BestFitness.Set(stats.BestFitness)
	c.AverageFitness.Set(stats.AverageFitness)
	c.MinFitness.Set(stats.MinFitness)
	c.Diversity.Set(float64(stats.Diversity))
	c.Species.Set(float64(stats.SpeciesCount))
	c.Generations.Inc()
	c.FitnessSpread.Observe(stats.BestFitness - stats.MinFitness)
	if c.seen && stats.BestFitness > c.lastBest {
		c.BestImprovements.Inc()
	}
	c.lastBest, c.seen = stats.BestFitness, true
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled. The returned
// address is the bound listener address, useful with ":0".
func (c *Collector) Serve(ctx context.Context, addr string, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("metrics listening", "addr", ln.Addr().String())
	return ln.Addr().String(), nil
}
