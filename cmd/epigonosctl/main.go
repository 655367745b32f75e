package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"epigonos/internal/stats"
	"epigonos/internal/storage"
	epiapi "epigonos/pkg/epigonos"
)

const (
	benchmarksDir = "benchmarks"
	exportsDir    = "exports"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "population":
		return runPopulation(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "batch":
		return runBatch(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "problems":
		return runProblems(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "top":
		return runTop(ctx, args[1:])
	case "summary":
		return runSummary(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(message string) error {
	return fmt.Errorf("%s\nusage: epigonosctl <init|reset|run|batch|runs|problems|population|fitness|diagnostics|top|summary|export> [flags]", message)
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func newClient(storeKind, dbPath string, log zerolog.Logger) (*epiapi.Client, error) {
	return epiapi.New(epiapi.Options{
		StoreKind:     storeKind,
		DBPath:        dbPath,
		BenchmarksDir: benchmarksDir,
		ExportsDir:    exportsDir,
		Logger:        &log,
	})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "epigonos.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.NewStore(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	if err := store.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "epigonos.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, zerolog.Nop())
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Reset(ctx); err != nil {
		return err
	}

	fmt.Printf("reset store=%s\n", *storeKind)
	return nil
}

func runPopulation(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("population requires a subcommand: delete")
	}
	switch args[0] {
	case "delete":
		fs := flag.NewFlagSet("population delete", flag.ContinueOnError)
		populationID := fs.String("id", "", "population id")
		storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
		dbPath := fs.String("db-path", "epigonos.db", "sqlite database path")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *populationID == "" {
			return errors.New("population delete requires --id")
		}

		client, err := newClient(*storeKind, *dbPath, zerolog.Nop())
		if err != nil {
			return err
		}
		defer func() {
			_ = client.Close()
		}()

		if err := client.DeletePopulation(ctx, epiapi.DeletePopulationRequest{PopulationID: *populationID}); err != nil {
			return err
		}
		fmt.Printf("population deleted id=%s\n", *populationID)
		return nil
	default:
		return fmt.Errorf("unsupported population subcommand: %s", args[0])
	}
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config TOML path")
	problemName := fs.String("problem", "poly", "problem name")
	population := fs.Int("pop", 50, "population size")
	generations := fs.Int("gens", 100, "generation count")
	seed := fs.Int64("seed", 1, "rng seed")
	workers := fs.Int("workers", 4, "worker count")
	selectionName := fs.String("selection", "tournament", "parent selection: tournament|proportional|fair|slight_preference_for_fit|preference_for_fit|strong_preference_for_fit (and unfit variants)")
	eliteCount := fs.Int("elites", 0, "elite count (0 derives from population size)")
	crossoverRate := fs.Float64("crossover-rate", 0.7, "per-child crossover probability")
	mutationRate := fs.Float64("mutation-rate", 0.2, "per-instruction mutation probability")
	fuel := fs.Int64("fuel", 10000, "instruction budget per execution")
	timeBudgetMS := fs.Int("time-budget-ms", 0, "wall-clock budget for the whole run in milliseconds (0 disables)")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "epigonos.db", "sqlite database path")
	verbose := fs.Bool("verbose", false, "log per-generation progress")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req := epiapi.RunRequest{
		Problem:       *problemName,
		Population:    *population,
		Generations:   *generations,
		Seed:          *seed,
		Workers:       *workers,
		Selection:     *selectionName,
		EliteCount:    *eliteCount,
		CrossoverRate: *crossoverRate,
		MutationRate:  *mutationRate,
		Fuel:          *fuel,
		TimeBudget:    time.Duration(*timeBudgetMS) * time.Millisecond,
	}
	if *configPath != "" {
		if err := applyRunConfig(&req, *configPath, setFlags); err != nil {
			return err
		}
	}

	client, err := newClient(*storeKind, *dbPath, newLogger(*verbose))
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	evaluations := int64(summary.Generations) * int64(req.Population)
	fmt.Printf("run completed run_id=%s problem=%s pop=%d gens=%d seed=%d evaluations=%s\n",
		summary.RunID, summary.Problem, req.Population, summary.Generations, req.Seed, humanize.Comma(evaluations))
	for i, best := range summary.BestByGeneration {
		fmt.Printf("generation=%d best_score=%.6f\n", i+1, best)
	}
	fmt.Printf("stop_reason=%s final_best_score=%.6f elapsed=%s\n", summary.StopReason, summary.FinalBestScore, summary.Elapsed)
	fmt.Printf("artifacts_dir=%s\n", filepath.Clean(summary.ArtifactsDir))
	return nil
}

func runBatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	problemName := fs.String("problem", "poly", "problem name")
	runCount := fs.Int("runs", 10, "number of runs in the batch")
	baseSeed := fs.Int64("base-seed", 1, "seed of the first run; later runs increment from it")
	population := fs.Int("pop", 50, "population size")
	generations := fs.Int("gens", 100, "generation count")
	workers := fs.Int("workers", 4, "worker count")
	selectionName := fs.String("selection", "tournament", "parent selection policy")
	goal := fs.Float64("goal", 0, "score goal for batch success statistics")
	hasGoal := fs.Bool("with-goal", false, "treat -goal as a success threshold")
	evalLimit := fs.Int("eval-limit", 0, "evaluation limit per run for success statistics (0 disables)")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "epigonos.db", "sqlite database path")
	verbose := fs.Bool("verbose", false, "log per-generation progress")
	jsonOut := fs.Bool("json", false, "emit batch statistics as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runCount <= 0 {
		return errors.New("runs must be > 0")
	}

	client, err := newClient(*storeKind, *dbPath, newLogger(*verbose))
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runIDs := make([]string, 0, *runCount)
	for i := 0; i < *runCount; i++ {
		summary, err := client.Run(ctx, epiapi.RunRequest{
			Problem:     *problemName,
			Population:  *population,
			Generations: *generations,
			Seed:        *baseSeed + int64(i),
			Workers:     *workers,
			Selection:   *selectionName,
		})
		if err != nil {
			return fmt.Errorf("batch run %d: %w", i+1, err)
		}
		runIDs = append(runIDs, summary.RunID)
	}

	var goalPtr *float64
	if *hasGoal {
		goalPtr = goal
	}
	var limitPtr *int
	if *evalLimit > 0 {
		limitPtr = evalLimit
	}
	batch, err := stats.BuildBatchStats(benchmarksDir, runIDs, goalPtr, limitPtr)
	if err != nil {
		return err
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(batch)
	}

	fmt.Printf("batch problem=%s runs=%d success=%d success_rate=%.2f avg_evaluations=%s\n",
		*problemName, batch.TotalRuns, batch.SuccessRuns, batch.SuccessRate, humanize.Comma(int64(batch.AvgEvaluations)))
	for _, run := range batch.Runs {
		fmt.Printf("run_id=%s success=%t evaluations=%s reached_generation=%d final_best=%.6f\n",
			run.RunID, run.Success, humanize.Comma(int64(run.Evaluations)), run.ReachedGeneration, run.FinalBest)
	}
	return nil
}

func runRuns(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	entries, err := stats.ListRunIndex(benchmarksDir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if len(entries) > *limit {
		entries = entries[:*limit]
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	for _, e := range entries {
		fmt.Printf("run_id=%s created_at=%s problem=%s seed=%d pop=%d gens=%d stop_reason=%s final_best_score=%.6f\n",
			e.RunID,
			e.CreatedAtUTC,
			e.Problem,
			e.Seed,
			e.PopulationSize,
			e.Generations,
			e.StopReason,
			e.FinalBestScore,
		)
	}
	return nil
}

func runProblems(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("problems", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "emit problem list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient("memory", "", zerolog.Nop())
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	problems, err := client.Problems(ctx)
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(problems)
	}

	for _, p := range problems {
		fmt.Printf("problem=%s params=%v results=%v cases=%d description=%q\n",
			p.Name, p.Params, p.Results, p.Cases, p.Description)
	}
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show fitness history for the most recent run from run index")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit fitness history as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "epigonos.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, zerolog.Nop())
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, epiapi.FitnessHistoryRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Println("no fitness history")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(history)
	}

	for i, best := range history {
		fmt.Printf("generation=%d best_score=%.6f\n", i+1, best)
	}
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show diagnostics for the most recent run from run index")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit diagnostics as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "epigonos.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, zerolog.Nop())
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diagnostics, err := client.Diagnostics(ctx, epiapi.DiagnosticsRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(diagnostics) == 0 {
		fmt.Println("no diagnostics")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(diagnostics)
	}

	for _, d := range diagnostics {
		fmt.Printf("generation=%d best=%.6f mean=%.6f min=%.6f traps=%d timeouts=%d zero_fitness=%d\n",
			d.Generation,
			d.BestScore,
			d.MeanScore,
			d.MinScore,
			d.TrapCount,
			d.TimeoutCount,
			d.ZeroFitness,
		)
	}
	return nil
}

func runTop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show top genomes for the most recent run from run index")
	limit := fs.Int("limit", 5, "max top genomes to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit top genomes as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "epigonos.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, zerolog.Nop())
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	top, err := client.TopGenomes(ctx, epiapi.TopGenomesRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(top) == 0 {
		fmt.Println("no top genomes")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(top)
	}

	for _, item := range top {
		fmt.Printf("rank=%d score=%.6f zero_fitness=%t genome_id=%s instructions=%d registers=%d\n",
			item.Rank,
			item.Record.Score,
			item.Record.ZeroFitness,
			item.Genome.ID,
			len(item.Genome.Instructions),
			len(item.Genome.Registers),
		)
	}
	return nil
}

func runSummary(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the most recent run from run index")
	jsonOut := fs.Bool("json", false, "emit summary as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "epigonos.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, zerolog.Nop())
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Summary(ctx, *runID, *latest)
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Printf("run_id=%s problem=%s seed=%d generations=%d stop_reason=%s best_score=%.6f elapsed_ms=%d\n",
		summary.RunID,
		summary.Problem,
		summary.Seed,
		summary.Generations,
		summary.StopReason,
		summary.BestScore,
		summary.ElapsedMillis,
	)
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "epigonos.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, zerolog.Nop())
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, epiapi.ExportRequest{
		RunID:  *runID,
		Latest: *latest,
		OutDir: *outDir,
	})
	if err != nil {
		return err
	}

	fmt.Printf("exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
	return nil
}
