package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"melodyevo/internal/evo"
	"melodyevo/internal/export"
	"melodyevo/internal/metrics"
	"melodyevo/internal/model"
	"melodyevo/internal/storage"
	api "melodyevo/pkg/melodyevo"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "melodyevo.db"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	return execute(ctx, args, os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	storeKind    string
	dbPath       string
	artifactsDir string
	exportsDir   string
	logLevel     string

	stderr io.Writer
}

func (g *globalOptions) logger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(g.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", g.logLevel, err)
	}
	return slog.New(slog.NewTextHandler(g.stderr, &slog.HandlerOptions{Level: level})), nil
}

func (g *globalOptions) client() (*api.Client, error) {
	logger, err := g.logger()
	if err != nil {
		return nil, err
	}
	return api.New(api.Options{
		StoreKind:    g.storeKind,
		DBPath:       g.dbPath,
		ArtifactsDir: g.artifactsDir,
		ExportsDir:   g.exportsDir,
		Logger:       logger,
	})
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	g := &globalOptions{stderr: stderr}
	root := &cobra.Command{
		Use:           "melodyctl",
		Short:         "Evolve short melodies with a genetic algorithm",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&g.storeKind, "store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	pf.StringVar(&g.dbPath, "db-path", defaultDBPath, "sqlite database path")
	pf.StringVar(&g.artifactsDir, "artifacts-dir", defaultArtifactsDir, "directory for run artifacts")
	pf.StringVar(&g.exportsDir, "exports-dir", defaultExportsDir, "directory for exported runs")
	pf.StringVar(&g.logLevel, "log-level", "warn", "log level: debug|info|warn|error")

	root.AddCommand(
		newInitCommand(g),
		newResetCommand(g),
		newRunCommand(g),
		newRunsCommand(g),
		newFitnessCommand(g),
		newTopCommand(g),
		newCheckpointsCommand(g),
		newExportCommand(g),
	)
	return root
}

func newInitCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()
			if err := client.Init(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "initialized %s store\n", g.storeKind)
			return nil
		},
	}
}

func newResetCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete every stored run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()
			if err := client.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset %s store\n", g.storeKind)
			return nil
		},
	}
}

func newRunCommand(g *globalOptions) *cobra.Command {
	var f runFlags
	var quiet bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evolve a population and write its artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := buildRunRequest(cmd, f)
			if err != nil {
				return err
			}
			if req.RunID == "" {
				req.RunID = uuid.NewString()
			}
			out := cmd.OutOrStdout()

			ctx := cmd.Context()
			if f.metricsAddr != "" {
				logger, err := g.logger()
				if err != nil {
					return err
				}
				collector := metrics.NewCollector(req.RunID)
				metricsCtx, stopMetrics := context.WithCancel(ctx)
				defer stopMetrics()
				addr, err := collector.Serve(metricsCtx, f.metricsAddr, logger)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "metrics: http://%s/metrics\n", addr)
				req.Observers = append(req.Observers, collector)
			}
			progress := !quiet && isTerminal(out)
			if progress {
				req.Observers = append(req.Observers, &progressObserver{w: out, total: req.Config.Generations})
			}

			client, err := g.client()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			summary, err := client.Run(ctx, req)
			if progress {
				fmt.Fprintln(out)
			}
			if err != nil && !summary.Cancelled {
				return err
			}
			printRunSummary(out, summary)
			return err
		},
	}
	bindRunFlags(cmd, &f)
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress per-generation progress")
	return cmd
}

func printRunSummary(w io.Writer, s api.RunSummary) {
	fmt.Fprintf(w, "run_id=%s generations=%d best=%.4f artifacts=%s\n",
		s.RunID, len(s.BestByGeneration), s.FinalBestFitness, s.ArtifactsDir)
	if s.Cancelled {
		fmt.Fprintln(w, "run cancelled; partial results were saved")
	}
	if len(s.Best.Notes) > 0 {
		fmt.Fprintf(w, "best melody (key %s):\n", evo.KeyName(s.Best))
		_ = export.WriteBars(w, s.Best)
	}
	for _, cp := range s.Checkpoints {
		fmt.Fprintf(w, "checkpoint gen=%d best=%.4f file=%s\n", cp.Generation, cp.Fitness, cp.File)
	}
}

// progressObserver rewrites a single status line per generation.
type progressObserver struct {
	w     io.Writer
	total int
}

func (p *progressObserver) ObserveGeneration(s model.GenerationStats) {
	fmt.Fprintf(p.w, "\rgeneration %d/%d best=%.4f avg=%.4f diversity=%d species=%d",
		s.Generation+1, p.total, s.BestFitness, s.AverageFitness, s.Diversity, s.SpeciesCount)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newRunsCommand(g *globalOptions) *cobra.Command {
	var limit int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return errors.New("limit must be > 0")
			}
			client, err := g.client()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			items, err := client.Runs(cmd.Context(), api.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, items)
			}
			if len(items) == 0 {
				fmt.Fprintln(out, "no runs found")
				return nil
			}
			for _, item := range items {
				fmt.Fprintf(out, "%s created=%s init=%s pop=%d gens=%s seed=%d best=%.4f\n",
					item.RunID,
					relativeTime(item.CreatedAtUTC),
					item.InitMode,
					item.Population,
					humanize.Comma(int64(item.Generations)),
					item.Seed,
					item.FinalBestFitness,
				)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit runs as JSON")
	return cmd
}

func relativeTime(stamp string) string {
	t, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return stamp
	}
	return strings.ReplaceAll(humanize.Time(t), " ", "_")
}

// runSelector is the --run-id/--latest pair shared by the read commands.
type runSelector struct {
	runID  string
	latest bool
}

func (s *runSelector) bind(cmd *cobra.Command, what string) {
	cmd.Flags().StringVar(&s.runID, "run-id", "", "run id")
	cmd.Flags().BoolVar(&s.latest, "latest", false, "use the most recent run from the run index for "+what)
	cmd.MarkFlagsMutuallyExclusive("run-id", "latest")
	cmd.MarkFlagsOneRequired("run-id", "latest")
}

func newFitnessCommand(g *globalOptions) *cobra.Command {
	var sel runSelector
	var limit int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "fitness",
		Short: "Print per-generation fitness statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			history, err := client.FitnessHistory(cmd.Context(), api.FitnessHistoryRequest{
				RunID:  sel.runID,
				Latest: sel.latest,
				Limit:  max(limit, 0),
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, history)
			}
			if len(history) == 0 {
				fmt.Fprintln(out, "no fitness history")
				return nil
			}
			for _, s := range history {
				fmt.Fprintf(out, "generation=%d best=%.4f avg=%.4f min=%.4f diversity=%d species=%d\n",
					s.Generation, s.BestFitness, s.AverageFitness, s.MinFitness, s.Diversity, s.SpeciesCount)
			}
			return nil
		},
	}
	sel.bind(cmd, "fitness history")
	cmd.Flags().IntVar(&limit, "limit", 50, "max generations to print (<=0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit fitness history as JSON")
	return cmd
}

func newTopCommand(g *globalOptions) *cobra.Command {
	var sel runSelector
	var limit int
	var jsonOut, breakdown bool
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Print the best melodies of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			items, err := client.TopMelodies(cmd.Context(), api.TopMelodiesRequest{
				RunID:  sel.runID,
				Latest: sel.latest,
				Limit:  max(limit, 0),
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, items)
			}
			if len(items) == 0 {
				fmt.Fprintln(out, "no top melodies")
				return nil
			}
			for _, item := range items {
				fmt.Fprintf(out, "%s fitness=%.4f key=%s species=%s notes=%d\n",
					humanize.Ordinal(item.Rank), item.Fitness, item.Key, item.Species, item.Melody.Len())
				if err := export.WriteBars(out, item.Melody); err != nil {
					return err
				}
				if breakdown {
					for _, s := range item.Breakdown {
						fmt.Fprintf(out, "    %-18s %7.3f\n", s.Name, s.Value)
					}
				}
			}
			return nil
		},
	}
	sel.bind(cmd, "top melodies")
	cmd.Flags().IntVar(&limit, "limit", 5, "max melodies to print (<=0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit top melodies as JSON")
	cmd.Flags().BoolVar(&breakdown, "breakdown", false, "print the per-heuristic sub-scores")
	return cmd
}

func newCheckpointsCommand(g *globalOptions) *cobra.Command {
	var sel runSelector
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "checkpoints",
		Short: "List the best melodies exported at checkpoint generations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			checkpoints, err := client.Checkpoints(cmd.Context(), api.CheckpointsRequest{
				RunID:  sel.runID,
				Latest: sel.latest,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, checkpoints)
			}
			if len(checkpoints) == 0 {
				fmt.Fprintln(out, "no checkpoints")
				return nil
			}
			for _, cp := range checkpoints {
				fmt.Fprintf(out, "generation=%d best=%.4f file=%s\n", cp.Generation, cp.Fitness, cp.File)
			}
			return nil
		},
	}
	sel.bind(cmd, "checkpoints")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit checkpoints as JSON")
	return cmd
}

func newExportCommand(g *globalOptions) *cobra.Command {
	var sel runSelector
	var rank int
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy a run's artifacts, or write one ranked melody as MIDI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()
			out := cmd.OutOrStdout()

			if cmd.Flags().Changed("rank") || cmd.Flags().Changed("out") {
				path, err := client.ExportMelody(cmd.Context(), api.ExportMelodyRequest{
					RunID:  sel.runID,
					Latest: sel.latest,
					Rank:   rank,
					Path:   outPath,
				})
				if err != nil {
					return err
				}
				info, err := os.Stat(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "wrote %s (%s)\n", path, humanize.Bytes(uint64(info.Size())))
				return nil
			}

			summary, err := client.Export(cmd.Context(), api.ExportRequest{
				RunID:  sel.runID,
				Latest: sel.latest,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "exported %s to %s\n", summary.RunID, summary.Directory)
			return nil
		},
	}
	sel.bind(cmd, "export")
	cmd.Flags().IntVar(&rank, "rank", 1, "rank of the melody to write as MIDI")
	cmd.Flags().StringVar(&outPath, "out", "", "MIDI output path (default: <exports-dir>/<run-id>/melody_topN.mid)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
