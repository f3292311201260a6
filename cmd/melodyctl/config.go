package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"melodyevo/internal/evo"
	"melodyevo/internal/fitness"
	api "melodyevo/pkg/melodyevo"
)

// runFile is the YAML run configuration. Unset keys keep their defaults.
type runFile struct {
	evo.Config  `yaml:",inline"`
	InitMode    string          `yaml:"init_mode"`
	Corpus      string          `yaml:"corpus"`
	SeedRun     string          `yaml:"seed_run"`
	EndingMode  string          `yaml:"ending_mode"`
	Checkpoints []int           `yaml:"checkpoints"`
	Top         int             `yaml:"top"`
	Weights     fitness.Weights `yaml:"weights"`
}

func defaultRunFile() runFile {
	return runFile{
		Config:   evo.DefaultConfig(),
		InitMode: evo.InitProcedural,
		Top:      5,
		Weights:  fitness.DefaultWeights(),
	}
}

func loadRunFile(path string) (runFile, error) {
	rf := defaultRunFile()
	if path == "" {
		return rf, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return runFile{}, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rf); err != nil {
		return runFile{}, fmt.Errorf("parse run config %s: %w", path, err)
	}
	return rf, nil
}

// runFlags mirrors the run command's flags.
type runFlags struct {
	configPath      string
	population      int
	generations     int
	mutationRate    float64
	elite           int
	tournament      int
	pCrossover      float64
	pSecondary      float64
	restProbability float64
	seed            int64
	workers         int
	secondaryOps    []string
	initMode        string
	corpus          string
	seedRun         string
	endingMode      string
	checkpoints     []int
	top             int
	runID           string
	metricsAddr     string
}

func bindRunFlags(cmd *cobra.Command, f *runFlags) {
	def := defaultRunFile()
	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "", "YAML run configuration; flags override its values")
	fs.IntVar(&f.population, "population", def.PopulationSize, "population size")
	fs.IntVar(&f.generations, "generations", def.Generations, "evolution steps")
	fs.Float64Var(&f.mutationRate, "mutation-rate", def.MutationRate, "per-note mutation probability")
	fs.IntVar(&f.elite, "elite", def.EliteSize, "elites copied unchanged each generation")
	fs.IntVar(&f.tournament, "tournament", def.TournamentSize, "tournament size")
	fs.Float64Var(&f.pCrossover, "p-crossover", def.PCrossover, "crossover probability")
	fs.Float64Var(&f.pSecondary, "p-secondary", def.PSecondary, "probability of a transpose/inversion/retrograde pass")
	fs.Float64Var(&f.restProbability, "rest-probability", def.RestProbability, "rest probability for procedural initialization")
	fs.Int64Var(&f.seed, "seed", def.Seed, "random seed")
	fs.IntVar(&f.workers, "workers", def.Workers, "parallel fitness evaluators")
	fs.StringSliceVar(&f.secondaryOps, "secondary-ops", def.SecondaryOperators, "secondary operators to draw from")
	fs.StringVar(&f.initMode, "init-mode", def.InitMode, "initialization: procedural|seed")
	fs.StringVar(&f.corpus, "corpus", "", "seed corpus YAML (seed mode)")
	fs.StringVar(&f.seedRun, "seed-run", "", "seed from the final population of a stored run (seed mode)")
	fs.StringVar(&f.endingMode, "ending-mode", string(fitness.EndingRootEstimate), "stable ending heuristic: root_estimate|naive")
	fs.IntSliceVar(&f.checkpoints, "checkpoints", nil, "generations whose best melody is exported as MIDI")
	fs.IntVar(&f.top, "top", def.Top, "ranked melodies to keep and export")
	fs.StringVar(&f.runID, "run-id", "", "run identifier (default: random UUID)")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
}

// buildRunRequest loads the run file and applies explicitly set flags.
func buildRunRequest(cmd *cobra.Command, f runFlags) (api.RunRequest, error) {
	rf, err := loadRunFile(f.configPath)
	if err != nil {
		return api.RunRequest{}, err
	}

	changed := cmd.Flags().Changed
	if changed("population") {
		rf.PopulationSize = f.population
	}
	if changed("generations") {
		rf.Generations = f.generations
	}
	if changed("mutation-rate") {
		rf.MutationRate = f.mutationRate
	}
	if changed("elite") {
		rf.EliteSize = f.elite
	}
	if changed("tournament") {
		rf.TournamentSize = f.tournament
	}
	if changed("p-crossover") {
		rf.PCrossover = f.pCrossover
	}
	if changed("p-secondary") {
		rf.PSecondary = f.pSecondary
	}
	if changed("rest-probability") {
		rf.RestProbability = f.restProbability
	}
	if changed("seed") {
		rf.Seed = f.seed
	}
	if changed("workers") {
		rf.Workers = f.workers
	}
	if changed("secondary-ops") {
		rf.SecondaryOperators = f.secondaryOps
	}
	if changed("init-mode") {
		rf.InitMode = f.initMode
	}
	if changed("corpus") {
		rf.Corpus = f.corpus
	}
	if changed("seed-run") {
		rf.SeedRun = f.seedRun
	}
	if changed("ending-mode") {
		rf.EndingMode = f.endingMode
	}
	if changed("checkpoints") {
		rf.Checkpoints = f.checkpoints
	}
	if changed("top") {
		rf.Top = f.top
	}
	if rf.Corpus != "" || rf.SeedRun != "" {
		if rf.InitMode == evo.InitProcedural && !changed("init-mode") {
			rf.InitMode = evo.InitSeed
		}
	}

	weights := rf.Weights
	return api.RunRequest{
		RunID:       f.runID,
		Config:      rf.Config,
		Weights:     &weights,
		EndingMode:  rf.EndingMode,
		InitMode:    rf.InitMode,
		CorpusPath:  rf.Corpus,
		SeedRunID:   rf.SeedRun,
		Checkpoints: rf.Checkpoints,
		TopN:        rf.Top,
	}, nil
}
