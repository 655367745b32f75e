package evo

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"epigonos/internal/catalog"
	"epigonos/internal/exec"
	"epigonos/internal/genome"
	"epigonos/internal/model"
)

// StopReason records why a run ended.
type StopReason string

const (
	StopGenerations StopReason = "generation_limit"
	StopTarget      StopReason = "target_reached"
	StopTimeBudget  StopReason = "time_budget"
	StopCancelled   StopReason = "cancelled"
)

// GenerationEvent is handed to the OnGeneration callback after each
// generation's evaluation completes, before breeding begins.
type GenerationEvent struct {
	Generation  int
	Ranked      []ScoredGenome
	Diagnostics model.GenerationDiagnostics
}

// Config gathers everything a run needs. New validates the whole struct up
// front so Run never fails on configuration.
type Config struct {
	Signature model.Signature
	Catalogue *catalog.Catalogue
	Work      model.WorkSet
	Length    genome.LengthRange

	Cases []model.TestCase

	Compiler exec.Compiler
	Sandbox  exec.Sandbox
	Imports  []exec.ImportBinding
	Memory   exec.MemoryConfig
	Limits   exec.ResourceLimits

	Compare     CompareFunc
	Score       ScoreFunc
	ZeroFitness ZeroFitnessFunc

	Selector       Selector
	PopulationSize int
	EliteCount     int

	// Stopping conditions. Generations caps the loop; Target, when set,
	// ends the run early once the best record satisfies it; TimeBudget,
	// when positive, ends the run after the current generation overruns it.
	Generations int
	Target      func(model.FitnessRecord) bool
	TimeBudget  time.Duration

	CrossoverRate float64
	MutationRate  float64

	Seed    int64
	Workers int

	// OnGeneration, when set, observes each completed generation.
	OnGeneration func(GenerationEvent)
}

// RunResult is the full outcome of one evolution run.
type RunResult struct {
	Reason           StopReason
	Generations      int
	Elapsed          time.Duration
	Final            []ScoredGenome
	BestByGeneration []model.TopGenomeRecord
	Diagnostics      []model.GenerationDiagnostics
}

// Engine runs the evolution loop: initialize, then evaluate, rank, breed,
// replace, until a stopping condition fires.
type Engine struct {
	cfg       Config
	evaluator *Evaluator
	rng       *rand.Rand
}

// New validates cfg and builds an engine. The catalogue must be able to
// produce every output type the signature declares; everything else is a
// range or presence check.
func New(cfg Config) (*Engine, error) {
	if cfg.Catalogue == nil {
		return nil, fmt.Errorf("%w: catalogue is required", ErrConfiguration)
	}
	if err := cfg.Catalogue.Satisfies(cfg.Signature); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if cfg.Compiler == nil || cfg.Sandbox == nil {
		return nil, fmt.Errorf("%w: compiler and sandbox are required", ErrConfiguration)
	}
	if cfg.Compare == nil {
		return nil, fmt.Errorf("%w: comparator is required", ErrConfiguration)
	}
	if len(cfg.Cases) == 0 {
		return nil, fmt.Errorf("%w: at least one test case is required", ErrConfiguration)
	}
	if cfg.PopulationSize < 1 {
		return nil, fmt.Errorf("%w: population size must be at least 1, got %d", ErrConfiguration, cfg.PopulationSize)
	}
	if cfg.EliteCount < 0 || cfg.EliteCount > cfg.PopulationSize {
		return nil, fmt.Errorf("%w: elite count %d out of range [0, %d]", ErrConfiguration, cfg.EliteCount, cfg.PopulationSize)
	}
	if cfg.Generations < 1 {
		return nil, fmt.Errorf("%w: generations must be at least 1, got %d", ErrConfiguration, cfg.Generations)
	}
	if cfg.Length.Min < 1 || cfg.Length.Max < cfg.Length.Min {
		return nil, fmt.Errorf("%w: invalid genome length range [%d, %d]", ErrConfiguration, cfg.Length.Min, cfg.Length.Max)
	}
	if cfg.CrossoverRate < 0 || cfg.CrossoverRate > 1 {
		return nil, fmt.Errorf("%w: crossover rate %v out of [0, 1]", ErrConfiguration, cfg.CrossoverRate)
	}
	if cfg.MutationRate < 0 || cfg.MutationRate > 1 {
		return nil, fmt.Errorf("%w: mutation rate %v out of [0, 1]", ErrConfiguration, cfg.MutationRate)
	}
	if cfg.Selector == nil {
		cfg.Selector = TournamentSelector{}
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	return &Engine{
		cfg: cfg,
		evaluator: &Evaluator{
			Compiler:    cfg.Compiler,
			Sandbox:     cfg.Sandbox,
			Imports:     cfg.Imports,
			Memory:      cfg.Memory,
			Limits:      cfg.Limits,
			Score:       cfg.Score,
			ZeroFitness: cfg.ZeroFitness,
		},
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Run executes the evolution loop to completion. A cancelled context is a
// clean stop once at least one generation has been evaluated: in-flight
// evaluations drain and the result carries everything observed up to that
// point. Cancellation before the first generation completes returns the
// context's error.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	start := time.Now()

	genomes, err := Initialize(e.cfg.PopulationSize, e.cfg.Signature, e.cfg.Catalogue, e.cfg.Work, e.cfg.Length, e.rng)
	if err != nil {
		return nil, err
	}

	breeder := &Breeder{
		Signature:     e.cfg.Signature,
		Catalogue:     e.cfg.Catalogue,
		Selector:      e.cfg.Selector,
		EliteCount:    e.cfg.EliteCount,
		CrossoverRate: e.cfg.CrossoverRate,
		MutationRate:  e.cfg.MutationRate,
	}

	result := &RunResult{Reason: StopGenerations}

	for gen := 0; gen < e.cfg.Generations; gen++ {
		scored, err := e.evaluator.EvaluatePopulation(ctx, genomes, e.cfg.Signature, e.cfg.Cases, e.cfg.Workers)
		if err != nil {
			if ctx.Err() != nil {
				result.Reason = StopCancelled
				break
			}
			return nil, err
		}
		ranked := Rank(scored, e.cfg.Compare)

		result.Generations = gen + 1
		result.Final = ranked
		result.BestByGeneration = append(result.BestByGeneration, model.TopGenomeRecord{
			Rank:   0,
			Genome: ranked[0].Genome,
			Record: ranked[0].Record,
		})
		diag := diagnose(gen, ranked)
		result.Diagnostics = append(result.Diagnostics, diag)

		if e.cfg.OnGeneration != nil {
			e.cfg.OnGeneration(GenerationEvent{Generation: gen, Ranked: ranked, Diagnostics: diag})
		}

		if e.cfg.Target != nil && targetReached(ranked, e.cfg.Target) {
			result.Reason = StopTarget
			break
		}
		if ctx.Err() != nil {
			result.Reason = StopCancelled
			break
		}
		if e.cfg.TimeBudget > 0 && time.Since(start) >= e.cfg.TimeBudget {
			result.Reason = StopTimeBudget
			break
		}
		if gen == e.cfg.Generations-1 {
			break
		}

		genomes, err = breeder.Advance(gen+1, ranked, e.rng)
		if err != nil {
			return nil, err
		}
	}

	// Cancellation before the first evaluation completes leaves nothing
	// observed to report.
	if result.Reason == StopCancelled && len(result.Final) == 0 {
		return nil, ctx.Err()
	}

	result.Elapsed = time.Since(start)
	return result, nil
}

// targetReached reports whether any genome in the generation satisfies the
// target predicate. The predicate need not agree with the comparator, so
// every record is checked, not just the ranked best.
func targetReached(ranked []ScoredGenome, target func(model.FitnessRecord) bool) bool {
	for _, sg := range ranked {
		if target(sg.Record) {
			return true
		}
	}
	return false
}

// diagnose summarizes one ranked generation.
func diagnose(generation int, ranked []ScoredGenome) model.GenerationDiagnostics {
	diag := model.GenerationDiagnostics{Generation: generation}
	var scoredCount int
	var sum float64
	for _, sg := range ranked {
		rec := sg.Record
		if rec.HasScore {
			if scoredCount == 0 {
				diag.BestScore = rec.Score
				diag.MinScore = rec.Score
			}
			if rec.Score > diag.BestScore {
				diag.BestScore = rec.Score
			}
			if rec.Score < diag.MinScore {
				diag.MinScore = rec.Score
			}
			sum += rec.Score
			scoredCount++
		}
		if rec.ZeroFitness {
			diag.ZeroFitness++
		}
		for _, out := range rec.Outcomes {
			switch out.Kind {
			case model.OutcomeTrap:
				diag.TrapCount++
			case model.OutcomeTimeout:
				diag.TimeoutCount++
			}
		}
	}
	if scoredCount > 0 {
		diag.MeanScore = sum / float64(scoredCount)
	}
	return diag
}
