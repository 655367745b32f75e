package epigonos

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"epigonos/internal/evo"
	"epigonos/internal/exec"
	"epigonos/internal/model"
	"epigonos/internal/problem"
	"epigonos/internal/stats"
	"epigonos/internal/storage"
)

const (
	defaultBenchmarksDir = "benchmarks"
	defaultExportsDir    = "exports"
	defaultDBPath        = "epigonos.db"
	defaultTopCount      = 5
)

type Options struct {
	StoreKind     string
	DBPath        string
	BenchmarksDir string
	ExportsDir    string
	Logger        *zerolog.Logger
}

// Client is the embedding surface: it owns the store, writes run artifacts
// under the benchmarks directory, and runs registered problems end to end.
type Client struct {
	store storage.Store
	log   zerolog.Logger

	benchmarksDir string
	exportsDir    string

	initMu      sync.Mutex
	initialized bool
}

type RunRequest struct {
	Problem       string
	Population    int
	Generations   int
	Seed          int64
	Workers       int
	Selection     string
	EliteCount    int
	CrossoverRate float64
	MutationRate  float64
	Fuel          int64
	WallClock     time.Duration
	TimeBudget    time.Duration
}

type RunSummary struct {
	RunID            string
	Problem          string
	ArtifactsDir     string
	StopReason       string
	Generations      int
	BestByGeneration []float64
	FinalBestScore   float64
	HasScore         bool
	Elapsed          time.Duration
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID          string
	CreatedAtUTC   string
	Problem        string
	Seed           int64
	Population     int
	Generations    int
	StopReason     string
	FinalBestScore float64
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

type FitnessHistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type DiagnosticsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type TopGenomesRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ProblemItem struct {
	Name        string
	Description string
	Params      []model.ValueType
	Results     []model.ValueType
	Cases       int
}

func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	benchmarksDir := opts.BenchmarksDir
	if benchmarksDir == "" {
		benchmarksDir = defaultBenchmarksDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:         store,
		log:           log,
		benchmarksDir: benchmarksDir,
		exportsDir:    exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureStore(ctx)
}

// ensureStore initializes the store once per client. Later calls are no-ops
// so queries within one client never wipe state a prior run persisted.
func (c *Client) ensureStore(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

// Reset wipes all persisted run state and re-initializes the store.
func (c *Client) Reset(ctx context.Context) error {
	if err := c.ensureStore(ctx); err != nil {
		return err
	}
	return storage.ResetIfSupported(ctx, c.store)
}

type DeletePopulationRequest struct {
	PopulationID string
}

func (c *Client) DeletePopulation(ctx context.Context, req DeletePopulationRequest) error {
	if req.PopulationID == "" {
		return errors.New("population id is required")
	}
	if err := c.ensureStore(ctx); err != nil {
		return err
	}
	return c.store.DeletePopulation(ctx, req.PopulationID)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.Problem == "" {
		req.Problem = "poly"
	}
	if req.Population <= 0 {
		req.Population = 50
	}
	if req.Generations <= 0 {
		req.Generations = 100
	}
	if req.Workers <= 0 {
		req.Workers = 4
	}
	if req.EliteCount <= 0 {
		req.EliteCount = req.Population / 5
		if req.EliteCount < 1 {
			req.EliteCount = 1
		}
	}
	if req.CrossoverRate == 0 && req.MutationRate == 0 {
		req.CrossoverRate = 0.7
		req.MutationRate = 0.2
	}
	if req.Fuel <= 0 {
		req.Fuel = 10000
	}

	selector, err := evo.SelectorByName(req.Selection)
	if err != nil {
		return RunSummary{}, err
	}
	p, err := problem.Resolve(req.Problem)
	if err != nil {
		return RunSummary{}, err
	}
	cat, err := p.Catalogue()
	if err != nil {
		return RunSummary{}, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}

	interp := &exec.Interp{NewState: p.NewState}
	now := time.Now().UTC()
	runID := fmt.Sprintf("%s-%s", p.Name, uuid.NewString())

	engine, err := evo.New(evo.Config{
		Signature:      p.Signature,
		Catalogue:      cat,
		Work:           p.Work,
		Length:         p.Length,
		Cases:          p.Cases,
		Compiler:       interp,
		Sandbox:        interp,
		Imports:        p.Imports,
		Memory:         p.Memory,
		Limits:         exec.ResourceLimits{Fuel: req.Fuel, WallClock: req.WallClock},
		Compare:        p.Compare,
		Score:          p.Score,
		ZeroFitness:    p.ZeroFitness,
		Selector:       selector,
		PopulationSize: req.Population,
		EliteCount:     req.EliteCount,
		Generations:    req.Generations,
		Target:         p.Target,
		TimeBudget:     req.TimeBudget,
		CrossoverRate:  req.CrossoverRate,
		MutationRate:   req.MutationRate,
		Seed:           req.Seed,
		Workers:        req.Workers,
		OnGeneration: func(ev evo.GenerationEvent) {
			c.log.Debug().
				Str("run_id", runID).
				Int("generation", ev.Generation).
				Float64("best_score", ev.Diagnostics.BestScore).
				Int("traps", ev.Diagnostics.TrapCount).
				Msg("generation complete")
		},
	})
	if err != nil {
		return RunSummary{}, err
	}

	c.log.Info().
		Str("run_id", runID).
		Str("problem", p.Name).
		Int("population", req.Population).
		Int("generations", req.Generations).
		Int64("seed", req.Seed).
		Msg("run started")

	result, err := engine.Run(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	if len(result.Final) == 0 {
		return RunSummary{}, fmt.Errorf("run %s completed no generation", runID)
	}

	best := result.Final[0].Record
	bestByGeneration := make([]float64, 0, len(result.BestByGeneration))
	for _, record := range result.BestByGeneration {
		bestByGeneration = append(bestByGeneration, record.Record.Score)
	}

	if err := c.persistRun(ctx, runID, p.Name, req, result); err != nil {
		return RunSummary{}, err
	}

	top := topRecords(result.Final)

	selection := req.Selection
	if selection == "" {
		selection = "tournament"
	}
	runDir, err := stats.WriteRunArtifacts(c.benchmarksDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:          runID,
			Problem:        p.Name,
			PopulationSize: req.Population,
			Generations:    req.Generations,
			Seed:           req.Seed,
			Workers:        req.Workers,
			EliteCount:     req.EliteCount,
			Selection:      selection,
			CrossoverRate:  req.CrossoverRate,
			MutationRate:   req.MutationRate,
			MinLength:      p.Length.Min,
			MaxLength:      p.Length.Max,
			Fuel:           req.Fuel,
			TimeBudgetMS:   req.TimeBudget.Milliseconds(),
		},
		BestByGeneration:      bestByGeneration,
		GenerationDiagnostics: result.Diagnostics,
		FinalBestScore:        best.Score,
		StopReason:            string(result.Reason),
		TopGenomes:            top,
	})
	if err != nil {
		return RunSummary{}, err
	}

	if err := stats.AppendRunIndex(c.benchmarksDir, stats.RunIndexEntry{
		RunID:          runID,
		Problem:        p.Name,
		PopulationSize: req.Population,
		Generations:    req.Generations,
		Seed:           req.Seed,
		Workers:        req.Workers,
		EliteCount:     req.EliteCount,
		StopReason:     string(result.Reason),
		FinalBestScore: best.Score,
		CreatedAtUTC:   now.Format(time.RFC3339Nano),
	}); err != nil {
		return RunSummary{}, err
	}

	c.log.Info().
		Str("run_id", runID).
		Str("stop_reason", string(result.Reason)).
		Int("generations", result.Generations).
		Float64("best_score", best.Score).
		Dur("elapsed", result.Elapsed).
		Msg("run finished")

	return RunSummary{
		RunID:            runID,
		Problem:          p.Name,
		ArtifactsDir:     filepath.Clean(runDir),
		StopReason:       string(result.Reason),
		Generations:      result.Generations,
		BestByGeneration: bestByGeneration,
		FinalBestScore:   best.Score,
		HasScore:         best.HasScore,
		Elapsed:          result.Elapsed,
	}, nil
}

// persistRun writes the run's durable records: the summary, the final
// population with its genomes, the fitness history, the per-generation
// diagnostics, and the ranked top genomes.
func (c *Client) persistRun(ctx context.Context, runID, problemName string, req RunRequest, result *evo.RunResult) error {
	best := result.Final[0].Record

	summary := model.RunSummary{
		RunID:         runID,
		Problem:       problemName,
		Seed:          req.Seed,
		Generations:   result.Generations,
		StopReason:    string(result.Reason),
		BestScore:     best.Score,
		HasScore:      best.HasScore,
		ElapsedMillis: result.Elapsed.Milliseconds(),
	}
	stamp(&summary.VersionedRecord)
	if err := c.store.SaveRunSummary(ctx, summary); err != nil {
		return err
	}

	population := model.Population{
		ID:         runID,
		Generation: result.Generations - 1,
		GenomeIDs:  make([]string, 0, len(result.Final)),
	}
	stamp(&population.VersionedRecord)
	for _, scored := range result.Final {
		g := scored.Genome
		stamp(&g.VersionedRecord)
		if err := c.store.SaveGenome(ctx, g); err != nil {
			return err
		}
		population.GenomeIDs = append(population.GenomeIDs, g.ID)
	}
	if err := c.store.SavePopulation(ctx, population); err != nil {
		return err
	}

	history := make([]float64, 0, len(result.BestByGeneration))
	for _, record := range result.BestByGeneration {
		history = append(history, record.Record.Score)
	}
	if err := c.store.SaveFitnessHistory(ctx, runID, history); err != nil {
		return err
	}
	if err := c.store.SaveGenerationDiagnostics(ctx, runID, result.Diagnostics); err != nil {
		return err
	}

	return c.store.SaveTopGenomes(ctx, runID, topRecords(result.Final))
}

// topRecords takes the leading ranked genomes, stamped for persistence.
func topRecords(final []evo.ScoredGenome) []model.TopGenomeRecord {
	count := defaultTopCount
	if count > len(final) {
		count = len(final)
	}
	top := make([]model.TopGenomeRecord, 0, count)
	for i := 0; i < count; i++ {
		g := final[i].Genome
		stamp(&g.VersionedRecord)
		top = append(top, model.TopGenomeRecord{Rank: i, Genome: g, Record: final[i].Record})
	}
	return top
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:          e.RunID,
			CreatedAtUTC:   e.CreatedAtUTC,
			Problem:        e.Problem,
			Seed:           e.Seed,
			Population:     e.PopulationSize,
			Generations:    e.Generations,
			StopReason:     e.StopReason,
			FinalBestScore: e.FinalBestScore,
		})
	}
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.benchmarksDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) FitnessHistory(ctx context.Context, req FitnessHistoryRequest) ([]float64, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}

	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]float64(nil), history...), nil
}

func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]model.GenerationDiagnostics, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}

	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	out := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(out, diagnostics)
	return out, nil
}

func (c *Client) TopGenomes(ctx context.Context, req TopGenomesRequest) ([]model.TopGenomeRecord, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}

	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	top, ok, err := c.store.GetTopGenomes(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("top genomes not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(top) > req.Limit {
		top = top[:req.Limit]
	}
	out := make([]model.TopGenomeRecord, len(top))
	copy(out, top)
	return out, nil
}

func (c *Client) Summary(ctx context.Context, runID string, latest bool) (model.RunSummary, error) {
	resolved, err := c.resolveRunID(runID, latest)
	if err != nil {
		return model.RunSummary{}, err
	}

	if err := c.ensureStore(ctx); err != nil {
		return model.RunSummary{}, err
	}
	summary, ok, err := c.store.GetRunSummary(ctx, resolved)
	if err != nil {
		return model.RunSummary{}, err
	}
	if !ok {
		return model.RunSummary{}, fmt.Errorf("run summary not found for run id: %s", resolved)
	}
	return summary, nil
}

// Problems lists the registered problems with their entry signatures.
func (c *Client) Problems(_ context.Context) ([]ProblemItem, error) {
	names := problem.List()
	out := make([]ProblemItem, 0, len(names))
	for _, name := range names {
		p, err := problem.Resolve(name)
		if err != nil {
			return nil, err
		}
		out = append(out, ProblemItem{
			Name:        p.Name,
			Description: p.Description,
			Params:      append([]model.ValueType(nil), p.Signature.Params...),
			Results:     append([]model.ValueType(nil), p.Signature.Results...),
			Cases:       len(p.Cases),
		})
	}
	return out, nil
}

// resolveRunID turns a run id or the latest flag into a concrete run id.
// Exactly one of the two must be given.
func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", errors.New("run id or latest is required")
	}

	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

func stamp(v *model.VersionedRecord) {
	v.SchemaVersion = storage.CurrentSchemaVersion
	v.CodecVersion = storage.CurrentCodecVersion
}
