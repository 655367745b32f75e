package storage

import (
	"context"

	"epigonos/internal/model"
)

// Store persists the artifacts of evolution runs: genomes, population
// snapshots, run summaries, and per-run fitness history.
type Store interface {
	Init(ctx context.Context) error
	SaveGenome(ctx context.Context, genome model.Genome) error
	GetGenome(ctx context.Context, id string) (model.Genome, bool, error)
	SavePopulation(ctx context.Context, population model.Population) error
	GetPopulation(ctx context.Context, id string) (model.Population, bool, error)
	DeletePopulation(ctx context.Context, id string) error
	SaveRunSummary(ctx context.Context, summary model.RunSummary) error
	GetRunSummary(ctx context.Context, runID string) (model.RunSummary, bool, error)
	ListRunSummaries(ctx context.Context) ([]model.RunSummary, error)
	SaveFitnessHistory(ctx context.Context, runID string, history []float64) error
	GetFitnessHistory(ctx context.Context, runID string) ([]float64, bool, error)
	SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error
	GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error)
	SaveTopGenomes(ctx context.Context, runID string, top []model.TopGenomeRecord) error
	GetTopGenomes(ctx context.Context, runID string) ([]model.TopGenomeRecord, bool, error)
}

// Resetter wipes all persisted state. Stores that can destructively
// reset themselves implement it.
type Resetter interface {
	Reset(ctx context.Context) error
}

// ResetIfSupported resets stores that implement Resetter and is a no-op
// for the rest.
func ResetIfSupported(ctx context.Context, store Store) error {
	if resetter, ok := store.(Resetter); ok {
		return resetter.Reset(ctx)
	}
	return nil
}
