package melodyevo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"melodyevo/internal/corpus"
	"melodyevo/internal/evo"
	"melodyevo/internal/export"
	"melodyevo/internal/fitness"
	"melodyevo/internal/model"
	"melodyevo/internal/stats"
	"melodyevo/internal/storage"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "melodyevo.db"
	defaultTopN         = 5
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *slog.Logger
}

type Client struct {
	store  storage.Store
	logger *slog.Logger

	artifactsDir string
	exportsDir   string
}

type RunRequest struct {
	// RunID defaults to a random UUID.
	RunID  string
	Config evo.Config
	// Weights defaults to fitness.DefaultWeights.
	Weights    *fitness.Weights
	EndingMode string
	InitMode   string
	// CorpusPath selects a YAML corpus for seed mode; the built-in corpus is
	// used when both it and SeedRunID are empty.
	CorpusPath string
	// SeedRunID seeds from the stored final population of an earlier run.
	SeedRunID string
	// Checkpoints lists generations whose best melody is exported as
	// gen_NN_best.mid. Generation 0 is the initial population.
	Checkpoints []int
	TopN        int
	Observers   []evo.Observer
}

type RunSummary struct {
	RunID               string
	ArtifactsDir        string
	BestByGeneration    []float64
	AverageByGeneration []float64
	FinalBestFitness    float64
	Best                model.Melody
	Top                 []model.TopMelody
	Checkpoints         []stats.Checkpoint
	Cancelled           bool
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	InitMode         string
	Seed             int64
	Population       int
	Generations      int
	FinalBestFitness float64
}

type FitnessHistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type TopMelodiesRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type TopMelodyItem struct {
	Rank      int
	Fitness   float64
	Key       string
	Species   string
	Melody    model.Melody
	Breakdown []fitness.NamedScore
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type CheckpointsRequest struct {
	RunID  string
	Latest bool
}

type ExportMelodyRequest struct {
	RunID  string
	Latest bool
	Rank   int
	Path   string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		logger:       logger,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

func (c *Client) Reset(ctx context.Context) error {
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	return c.store.Reset(ctx)
}

// Run evolves a population, exports checkpoints and the top melodies as
// MIDI, writes run artifacts and persists the results. A cancelled run
// still persists what it reached and returns the summary with ctx.Err().
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if err := c.store.Init(ctx); err != nil {
		return RunSummary{}, err
	}
	if req.InitMode == "" {
		req.InitMode = evo.InitProcedural
	}
	if req.TopN <= 0 {
		req.TopN = defaultTopN
	}
	weights := fitness.DefaultWeights()
	if req.Weights != nil {
		weights = *req.Weights
	}
	ending, err := fitness.ParseEndingMode(req.EndingMode)
	if err != nil {
		return RunSummary{}, &evo.ConfigurationError{Field: "ending_mode", Reason: err.Error(), Err: err}
	}
	evaluator := fitness.NewEvaluator(weights)
	evaluator.Ending = ending

	wanted := make(map[int]bool, len(req.Checkpoints))
	for _, g := range req.Checkpoints {
		if g < 0 || g > req.Config.Generations {
			return RunSummary{}, &evo.ConfigurationError{
				Field:  "checkpoints",
				Reason: fmt.Sprintf("generation %d outside [0, %d]", g, req.Config.Generations),
			}
		}
		wanted[g] = true
	}

	initializer, seedPhrases, err := c.initializer(ctx, req)
	if err != nil {
		return RunSummary{}, err
	}
	var seedDoc []byte
	if len(seedPhrases) > 0 {
		if seedDoc, err = corpus.Encode(seedPhrases); err != nil {
			return RunSummary{}, fmt.Errorf("encode seed corpus: %w", err)
		}
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	runDir := stats.RunDir(c.artifactsDir, runID)
	logger := c.logger.With("run_id", runID)

	monitor, err := evo.NewPopulationMonitor(evo.MonitorConfig{
		Config:      req.Config,
		Initializer: initializer,
		Evaluator:   evaluator,
		Logger:      logger,
		Observers:   req.Observers,
	})
	if err != nil {
		return RunSummary{}, err
	}

	startedAt := time.Now().UTC()
	if err := monitor.Initialize(ctx); err != nil {
		return RunSummary{}, err
	}

	var checkpoints []stats.Checkpoint
	saveCheckpoint := func() error {
		if !wanted[monitor.Generation()] {
			return nil
		}
		best, _ := monitor.Best()
		cp, err := writeCheckpoint(runDir, monitor.Generation(), best)
		if err != nil {
			return err
		}
		checkpoints = append(checkpoints, cp)
		logger.Info("checkpoint exported", "generation", cp.Generation, "fitness", cp.Fitness, "file", cp.File)
		return nil
	}
	if err := saveCheckpoint(); err != nil {
		return RunSummary{}, err
	}

	var runErr error
	for monitor.State() != evo.StateDone {
		if _, err := monitor.Step(ctx); err != nil {
			runErr = err
			break
		}
		if err := saveCheckpoint(); err != nil {
			return RunSummary{}, err
		}
	}
	cancelled := runErr != nil && ctx.Err() != nil
	if runErr != nil && !cancelled {
		return RunSummary{}, runErr
	}
	if cancelled {
		logger.Warn("run cancelled", "generation", monitor.Generation())
	}

	result := monitor.Result()
	top := rankTop(monitor.Top(req.TopN))
	for _, t := range top {
		path := filepath.Join(runDir, fmt.Sprintf("melody_top%d.mid", t.Rank))
		if err := export.WriteMIDIFile(path, t.Melody, export.MIDIOptions{TrackName: fmt.Sprintf("top %d", t.Rank)}); err != nil {
			return RunSummary{}, err
		}
	}
	best, _ := monitor.Best()

	if _, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:      runID,
			InitMode:   req.InitMode,
			CorpusPath: req.CorpusPath,
			SeedRunID:  req.SeedRunID,
			EndingMode: string(ending),
			Evolution:  req.Config,
			Weights:    weights,
		},
		Generations:      result.Generations,
		FinalBestFitness: best.Fitness,
		TopMelodies:      top,
		Checkpoints:      checkpoints,
		SeedCorpus:       seedDoc,
	}); err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:            runID,
		InitMode:         req.InitMode,
		PopulationSize:   req.Config.PopulationSize,
		Generations:      monitor.Generation(),
		Seed:             req.Config.Seed,
		Workers:          req.Config.Workers,
		EliteSize:        req.Config.EliteSize,
		FinalBestFitness: best.Fitness,
		CreatedAtUTC:     startedAt.Format(time.RFC3339Nano),
	}); err != nil {
		return RunSummary{}, err
	}
	// Persist even when the run was cancelled.
	if err := c.persist(context.WithoutCancel(ctx), runID, runDir, startedAt, req, monitor, top); err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{
		RunID:               runID,
		ArtifactsDir:        filepath.Clean(runDir),
		BestByGeneration:    result.BestByGeneration,
		AverageByGeneration: result.AverageByGeneration,
		FinalBestFitness:    best.Fitness,
		Best:                best,
		Top:                 top,
		Checkpoints:         checkpoints,
		Cancelled:           cancelled,
	}
	if cancelled {
		return summary, fmt.Errorf("run %s stopped after %d generations: %w", runID, monitor.Generation(), ctx.Err())
	}
	return summary, nil
}

// initializer also returns the phrases a seed-mode run starts from.
func (c *Client) initializer(ctx context.Context, req RunRequest) (evo.Initializer, []corpus.Phrase, error) {
	switch req.InitMode {
	case evo.InitProcedural:
		return evo.ProceduralInitializer{
			RestProbability: req.Config.RestProbability,
			Target:          req.Config.TargetDuration,
		}, nil, nil
	case evo.InitSeed:
		phrases, err := c.seedCorpus(ctx, req)
		if err != nil {
			return nil, nil, err
		}
		seeded, err := evo.NewSeedInitializer(corpus.ToMelodies(phrases), req.Config.TargetDuration)
		if err != nil {
			return nil, nil, err
		}
		return seeded, phrases, nil
	default:
		return nil, nil, &evo.ConfigurationError{Field: "init_mode", Reason: fmt.Sprintf("unknown mode %q", req.InitMode)}
	}
}

func (c *Client) seedCorpus(ctx context.Context, req RunRequest) ([]corpus.Phrase, error) {
	switch {
	case req.SeedRunID != "" && req.CorpusPath != "":
		return nil, errors.New("use either a corpus file or a seed run")
	case req.SeedRunID != "":
		snapshot, ok, err := c.store.GetPopulation(ctx, req.SeedRunID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("population not found for run id: %s", req.SeedRunID)
		}
		return corpus.FromMelodies(req.SeedRunID, snapshot.Melodies), nil
	case req.CorpusPath != "":
		phrases, err := corpus.LoadFile(req.CorpusPath)
		if err != nil {
			if errors.Is(err, corpus.ErrNoPhrases) {
				return nil, &evo.ConfigurationError{Field: "corpus", Reason: err.Error(), Err: evo.ErrEmptyCorpus}
			}
			return nil, err
		}
		return phrases, nil
	default:
		return corpus.Builtin(), nil
	}
}

func (c *Client) persist(ctx context.Context, runID, runDir string, startedAt time.Time, req RunRequest, monitor *evo.PopulationMonitor, top []model.TopMelody) error {
	best, _ := monitor.Best()
	if err := c.store.SaveRun(ctx, model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              runID,
		CreatedAtUTC:    startedAt,
		Seed:            req.Config.Seed,
		PopulationSize:  req.Config.PopulationSize,
		Generations:     monitor.Generation(),
		InitMode:        req.InitMode,
		BestFitness:     best.Fitness,
		ArtifactsDir:    filepath.Clean(runDir),
	}); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if err := c.store.SaveGenerationStats(ctx, runID, monitor.History()); err != nil {
		return fmt.Errorf("save generation stats: %w", err)
	}
	if err := c.store.SaveTopMelodies(ctx, runID, top); err != nil {
		return fmt.Errorf("save top melodies: %w", err)
	}
	if err := c.store.SavePopulation(ctx, model.PopulationSnapshot{
		VersionedRecord: storage.CurrentVersion(),
		RunID:           runID,
		Generation:      monitor.Generation(),
		Melodies:        monitor.Population(),
	}); err != nil {
		return fmt.Errorf("save population: %w", err)
	}
	return nil
}

func writeCheckpoint(runDir string, generation int, best model.Melody) (stats.Checkpoint, error) {
	name := fmt.Sprintf("gen_%02d_best.mid", generation)
	opts := export.MIDIOptions{TrackName: fmt.Sprintf("generation %d", generation)}
	if err := export.WriteMIDIFile(filepath.Join(runDir, name), best, opts); err != nil {
		return stats.Checkpoint{}, err
	}
	return stats.Checkpoint{Generation: generation, Fitness: best.Fitness, File: name}, nil
}

func rankTop(melodies []model.Melody) []model.TopMelody {
	out := make([]model.TopMelody, len(melodies))
	for i, m := range melodies {
		out[i] = model.TopMelody{Rank: i + 1, Fitness: m.Fitness, Melody: m}
	}
	return out
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:            e.RunID,
			CreatedAtUTC:     e.CreatedAtUTC,
			InitMode:         e.InitMode,
			Seed:             e.Seed,
			Population:       e.PopulationSize,
			Generations:      e.Generations,
			FinalBestFitness: e.FinalBestFitness,
		})
	}
	return out, nil
}

// FitnessHistory reads from the store and falls back to the run's
// artifacts, which outlive an in-memory store.
func (c *Client) FitnessHistory(ctx context.Context, req FitnessHistoryRequest) ([]model.GenerationStats, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "fitness history")
	if err != nil {
		return nil, err
	}
	if err := c.store.Init(ctx); err != nil {
		return nil, err
	}

	history, ok, err := c.store.GetGenerationStats(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		history, ok, err = stats.ReadFitnessHistory(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]model.GenerationStats(nil), history...), nil
}

// TopMelodies returns the ranked melodies of a run with their per-heuristic
// breakdown under the run's own weights.
func (c *Client) TopMelodies(ctx context.Context, req TopMelodiesRequest) ([]TopMelodyItem, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "top melodies")
	if err != nil {
		return nil, err
	}
	top, err := c.loadTop(ctx, runID)
	if err != nil {
		return nil, err
	}
	if req.Limit > 0 && len(top) > req.Limit {
		top = top[:req.Limit]
	}

	evaluator, err := c.runEvaluator(runID)
	if err != nil {
		return nil, err
	}
	species := evo.TonalSpecieIdentifier{}
	out := make([]TopMelodyItem, 0, len(top))
	for _, t := range top {
		out = append(out, TopMelodyItem{
			Rank:      t.Rank,
			Fitness:   t.Fitness,
			Key:       evo.KeyName(t.Melody),
			Species:   species.Identify(t.Melody),
			Melody:    t.Melody,
			Breakdown: evaluator.Breakdown(t.Melody).Named(),
		})
	}
	return out, nil
}

func (c *Client) loadTop(ctx context.Context, runID string) ([]model.TopMelody, error) {
	if err := c.store.Init(ctx); err != nil {
		return nil, err
	}
	top, ok, err := c.store.GetTopMelodies(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		top, ok, err = stats.ReadTopMelodies(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("top melodies not found for run id: %s", runID)
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].Rank < top[j].Rank })
	return top, nil
}

func (c *Client) runEvaluator(runID string) (fitness.Evaluator, error) {
	evaluator := fitness.NewEvaluator(fitness.DefaultWeights())
	cfg, ok, err := stats.ReadRunConfig(c.artifactsDir, runID)
	if err != nil || !ok {
		return evaluator, err
	}
	ending, err := fitness.ParseEndingMode(cfg.EndingMode)
	if err != nil {
		return fitness.Evaluator{}, err
	}
	evaluator = fitness.NewEvaluator(cfg.Weights)
	evaluator.Ending = ending
	return evaluator, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "export")
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// Checkpoints lists the best-so-far melodies a run exported, in generation
// order. A run without checkpoints yields an empty list.
func (c *Client) Checkpoints(_ context.Context, req CheckpointsRequest) ([]stats.Checkpoint, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "checkpoints")
	if err != nil {
		return nil, err
	}
	checkpoints, ok, err := stats.ReadCheckpoints(c.artifactsDir, runID)
	if err != nil {
		return nil, err
	}
	if ok {
		return checkpoints, nil
	}
	_, found, err := stats.ReadRunConfig(c.artifactsDir, runID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	return []stats.Checkpoint{}, nil
}

// ExportMelody writes one ranked melody of a run as a MIDI file.
func (c *Client) ExportMelody(ctx context.Context, req ExportMelodyRequest) (string, error) {
	if req.Rank <= 0 {
		req.Rank = 1
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "melody export")
	if err != nil {
		return "", err
	}
	top, err := c.loadTop(ctx, runID)
	if err != nil {
		return "", err
	}
	if req.Rank > len(top) {
		return "", fmt.Errorf("run %s has %d ranked melodies, rank %d requested", runID, len(top), req.Rank)
	}
	path := req.Path
	if path == "" {
		path = filepath.Join(c.exportsDir, runID, fmt.Sprintf("melody_top%d.mid", req.Rank))
	}
	opts := export.MIDIOptions{TrackName: fmt.Sprintf("%s top %d", runID, req.Rank)}
	if err := export.WriteMIDIFile(path, top[req.Rank-1].Melody, opts); err != nil {
		return "", err
	}
	return filepath.Clean(path), nil
}

func (c *Client) resolveRunID(runID string, latest bool, what string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if latest {
		entries, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", errors.New("no runs available")
		}
		return entries[0].RunID, nil
	}
	if runID == "" {
		return "", fmt.Errorf("%s requires run id or latest", what)
	}
	return runID, nil
}
