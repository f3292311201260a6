package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"melodyevo/internal/evo"
	"melodyevo/internal/fitness"
	"melodyevo/internal/model"
)

const (
	runIndexFile       = "run_index.json"
	configFile         = "config.json"
	historyFile        = "fitness_history.csv"
	chartFile          = "fitness_history.png"
	topMelodiesFile    = "top_melodies.json"
	checkpointsFile    = "checkpoints.json"
	summaryFile        = "summary.json"
	seedCorpusFile     = "seed_corpus.yaml"
	midiFileExtension  = ".mid"
	historyColumnCount = 6
)

type RunConfig struct {
	RunID      string          `json:"run_id"`
	InitMode   string          `json:"init_mode"`
	CorpusPath string          `json:"corpus_path,omitempty"`
	SeedRunID  string          `json:"seed_run_id,omitempty"`
	EndingMode string          `json:"ending_mode"`
	Evolution  evo.Config      `json:"evolution"`
	Weights    fitness.Weights `json:"weights"`
}

// Checkpoint records a best-so-far melody exported mid-run.
type Checkpoint struct {
	Generation int     `json:"generation"`
	Fitness    float64 `json:"fitness"`
	File       string  `json:"file"`
}

type RunArtifacts struct {
	Config           RunConfig               `json:"config"`
	Generations      []model.GenerationStats `json:"generations"`
	FinalBestFitness float64                 `json:"final_best_fitness"`
	TopMelodies      []model.TopMelody       `json:"top_melodies"`
	Checkpoints      []Checkpoint            `json:"checkpoints,omitempty"`
	// SeedCorpus is the encoded corpus a seed-mode run started from.
	SeedCorpus []byte `json:"-"`
}

type RunIndexEntry struct {
	RunID            string  `json:"run_id"`
	InitMode         string  `json:"init_mode"`
	PopulationSize   int     `json:"population_size"`
	Generations      int     `json:"generations"`
	Seed             int64   `json:"seed"`
	Workers          int     `json:"workers"`
	EliteSize        int     `json:"elite_size"`
	FinalBestFitness float64 `json:"final_best_fitness"`
	CreatedAtUTC     string  `json:"created_at_utc"`
}

// RunDir is where WriteRunArtifacts places the files of runID.
func RunDir(baseDir, runID string) string {
	return filepath.Join(baseDir, runID)
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := RunDir(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := WriteFitnessHistory(filepath.Join(runDir, historyFile), artifacts.Generations); err != nil {
		return "", err
	}
	if len(artifacts.Generations) > 0 {
		if err := WriteFitnessChart(filepath.Join(runDir, chartFile), artifacts.Config.RunID, artifacts.Generations); err != nil {
			return "", err
		}
	}
	if err := writeJSON(filepath.Join(runDir, topMelodiesFile), artifacts.TopMelodies); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, summaryFile), Summarize(artifacts.Config.RunID, artifacts.Generations)); err != nil {
		return "", err
	}
	if len(artifacts.Checkpoints) > 0 {
		if err := writeJSON(filepath.Join(runDir, checkpointsFile), artifacts.Checkpoints); err != nil {
			return "", err
		}
	}

	if len(artifacts.SeedCorpus) > 0 {
		if err := os.WriteFile(filepath.Join(runDir, seedCorpusFile), artifacts.SeedCorpus, 0o644); err != nil {
			return "", err
		}
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := readRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// readRunIndex returns entries in append order.
func readRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ListRunIndex returns entries newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	entries, err := readRunIndex(baseDir)
	if err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run's files, MIDI renderings included, into
// outDir/<runID>.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := RunDir(baseDir, runID)
	entries, err := os.ReadDir(src)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, entry := range entries {
		if entry.IsDir() || !exportable(entry.Name()) {
			continue
		}
		if err := copyFile(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func exportable(name string) bool {
	switch name {
	case configFile, historyFile, chartFile, topMelodiesFile, checkpointsFile, summaryFile, seedCorpusFile:
		return true
	}
	return strings.HasSuffix(name, midiFileExtension)
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(RunDir(baseDir, runID), configFile), &cfg)
	return cfg, ok, err
}

func ReadTopMelodies(baseDir, runID string) ([]model.TopMelody, bool, error) {
	var top []model.TopMelody
	ok, err := readJSON(filepath.Join(RunDir(baseDir, runID), topMelodiesFile), &top)
	return top, ok, err
}

func ReadCheckpoints(baseDir, runID string) ([]Checkpoint, bool, error) {
	var checkpoints []Checkpoint
	ok, err := readJSON(filepath.Join(RunDir(baseDir, runID), checkpointsFile), &checkpoints)
	return checkpoints, ok, err
}

func WriteFitnessHistory(path string, history []model.GenerationStats) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"generation", "best_fitness", "average_fitness", "min_fitness", "diversity", "species_count"}); err != nil {
		return err
	}
	for _, s := range history {
		if err := writer.Write([]string{
			strconv.Itoa(s.Generation),
			strconv.FormatFloat(s.BestFitness, 'f', -1, 64),
			strconv.FormatFloat(s.AverageFitness, 'f', -1, 64),
			strconv.FormatFloat(s.MinFitness, 'f', -1, 64),
			strconv.Itoa(s.Diversity),
			strconv.Itoa(s.SpeciesCount),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadFitnessHistory(baseDir, runID string) ([]model.GenerationStats, bool, error) {
	path := filepath.Join(RunDir(baseDir, runID), historyFile)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return []model.GenerationStats{}, true, nil
		}
		return nil, false, err
	}

	history := make([]model.GenerationStats, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < historyColumnCount {
			return nil, false, fmt.Errorf("fitness history row must have %d columns", historyColumnCount)
		}
		s, err := parseHistoryRow(record)
		if err != nil {
			return nil, false, fmt.Errorf("fitness history row %d: %w", len(history)+1, err)
		}
		history = append(history, s)
	}
	return history, true, nil
}

func parseHistoryRow(record []string) (model.GenerationStats, error) {
	var (
		s   model.GenerationStats
		err error
	)
	if s.Generation, err = strconv.Atoi(record[0]); err != nil {
		return s, err
	}
	if s.BestFitness, err = strconv.ParseFloat(record[1], 64); err != nil {
		return s, err
	}
	if s.AverageFitness, err = strconv.ParseFloat(record[2], 64); err != nil {
		return s, err
	}
	if s.MinFitness, err = strconv.ParseFloat(record[3], 64); err != nil {
		return s, err
	}
	if s.Diversity, err = strconv.Atoi(record[4]); err != nil {
		return s, err
	}
	if s.SpeciesCount, err = strconv.Atoi(record[5]); err != nil {
		return s, err
	}
	return s, nil
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
