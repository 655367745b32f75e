package stats

import (
	"testing"
)

func writeBatchRun(t *testing.T, baseDir, runID string, populationSize int, series []float64) {
	t.Helper()
	_, err := WriteRunArtifacts(baseDir, RunArtifacts{
		Config: RunConfig{
			RunID:          runID,
			Problem:        "poly",
			PopulationSize: populationSize,
			Generations:    len(series),
			Seed:           1,
		},
		BestByGeneration: series,
		FinalBestScore:   series[len(series)-1],
		StopReason:       "generation_limit",
	})
	if err != nil {
		t.Fatalf("write artifacts for %s: %v", runID, err)
	}
}

func TestBuildBatchStatsCountsEvaluationsToGoal(t *testing.T) {
	baseDir := t.TempDir()
	writeBatchRun(t, baseDir, "run-1", 10, []float64{-30, -5, 0, 0})
	writeBatchRun(t, baseDir, "run-2", 10, []float64{-30, -20, -20, -10})

	goal := 0.0
	batch, err := BuildBatchStats(baseDir, []string{"run-1", "run-2"}, &goal, nil)
	if err != nil {
		t.Fatalf("build batch stats: %v", err)
	}

	if batch.TotalRuns != 2 || batch.SuccessRuns != 1 {
		t.Fatalf("unexpected run counts: %+v", batch)
	}
	if batch.SuccessRate != 0.5 {
		t.Fatalf("expected success rate 0.5, got %f", batch.SuccessRate)
	}
	// run-1 hits the goal in generation 3 with 10 genomes per generation.
	if batch.AvgEvaluations != 30 {
		t.Fatalf("expected 30 evaluations, got %f", batch.AvgEvaluations)
	}
	if !batch.Runs[0].Success || batch.Runs[0].ReachedGeneration != 3 {
		t.Fatalf("unexpected run-1 outcome: %+v", batch.Runs[0])
	}
	if batch.Runs[1].Success {
		t.Fatalf("run-2 should not succeed: %+v", batch.Runs[1])
	}
}

func TestBuildBatchStatsEvalLimitFailsRun(t *testing.T) {
	baseDir := t.TempDir()
	writeBatchRun(t, baseDir, "run-1", 10, []float64{-30, -20, -10, 0})

	goal := 0.0
	limit := 20
	batch, err := BuildBatchStats(baseDir, []string{"run-1"}, &goal, &limit)
	if err != nil {
		t.Fatalf("build batch stats: %v", err)
	}
	if batch.SuccessRuns != 0 {
		t.Fatalf("expected no successes under eval limit, got %+v", batch)
	}
}

func TestBuildBatchStatsNoGoalMeansEveryRunSucceeds(t *testing.T) {
	baseDir := t.TempDir()
	writeBatchRun(t, baseDir, "run-1", 4, []float64{-30, -20})

	batch, err := BuildBatchStats(baseDir, []string{"run-1"}, nil, nil)
	if err != nil {
		t.Fatalf("build batch stats: %v", err)
	}
	if batch.SuccessRuns != 1 || batch.SuccessRate != 1 {
		t.Fatalf("unexpected batch: %+v", batch)
	}
}

func TestBuildBatchStatsMissingRunFails(t *testing.T) {
	if _, err := BuildBatchStats(t.TempDir(), []string{"run-missing"}, nil, nil); err == nil {
		t.Fatal("expected error for missing run")
	}
}
