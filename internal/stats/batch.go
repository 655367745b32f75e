package stats

import (
	"fmt"
	"math"
)

// BatchRun is the per-run outcome inside a multi-seed batch report. The
// evaluation count follows the usual convention of one evaluation per
// genome per generation.
type BatchRun struct {
	RunID             string  `json:"run_id"`
	Evaluations       int     `json:"evaluations"`
	Success           bool    `json:"success"`
	ReachedGeneration int     `json:"reached_generation,omitempty"`
	FinalBest         float64 `json:"final_best"`
	Goal              float64 `json:"goal,omitempty"`
	EvalLimit         int     `json:"eval_limit,omitempty"`
}

type BatchStats struct {
	TotalRuns        int        `json:"total_runs"`
	SuccessRuns      int        `json:"success_runs"`
	SuccessRate      float64    `json:"success_rate"`
	AvgEvaluations   float64    `json:"avg_evaluations"`
	StdEvaluations   float64    `json:"std_evaluations"`
	MinEvaluations   float64    `json:"min_evaluations"`
	MaxEvaluations   float64    `json:"max_evaluations"`
	ScoreGoal        *float64   `json:"score_goal,omitempty"`
	EvaluationsLimit *int       `json:"evaluations_limit,omitempty"`
	Runs             []BatchRun `json:"runs"`
}

// BuildBatchStats aggregates stored run artifacts into success-rate and
// evaluations-to-solution statistics across a set of runs.
func BuildBatchStats(baseDir string, runIDs []string, scoreGoal *float64, evalLimit *int) (BatchStats, error) {
	result := BatchStats{
		TotalRuns:        len(runIDs),
		ScoreGoal:        cloneFloat64Ptr(scoreGoal),
		EvaluationsLimit: cloneIntPtr(evalLimit),
		Runs:             make([]BatchRun, 0, len(runIDs)),
	}
	successValues := make([]float64, 0, len(runIDs))
	for _, runID := range runIDs {
		cfg, ok, err := ReadRunConfig(baseDir, runID)
		if err != nil {
			return BatchStats{}, err
		}
		if !ok {
			return BatchStats{}, fmt.Errorf("run config not found for run id: %s", runID)
		}
		series, ok, err := ReadScoreSeries(baseDir, runID)
		if err != nil {
			return BatchStats{}, err
		}
		if !ok {
			return BatchStats{}, fmt.Errorf("score series not found for run id: %s", runID)
		}

		run := evaluateScoreSeries(runID, series, cfg.PopulationSize, scoreGoal, evalLimit)
		result.Runs = append(result.Runs, run)
		if run.Success {
			result.SuccessRuns++
			successValues = append(successValues, float64(run.Evaluations))
		}
	}
	if result.TotalRuns > 0 {
		result.SuccessRate = float64(result.SuccessRuns) / float64(result.TotalRuns)
	}
	if len(successValues) > 0 {
		result.AvgEvaluations = mean(successValues)
		result.StdEvaluations = stddev(successValues)
		result.MinEvaluations = successValues[0]
		result.MaxEvaluations = successValues[0]
		for _, value := range successValues[1:] {
			if value < result.MinEvaluations {
				result.MinEvaluations = value
			}
			if value > result.MaxEvaluations {
				result.MaxEvaluations = value
			}
		}
	}
	return result, nil
}

func evaluateScoreSeries(runID string, series []float64, populationSize int, scoreGoal *float64, evalLimit *int) BatchRun {
	if populationSize <= 0 {
		populationSize = 1
	}
	run := BatchRun{RunID: runID}
	if scoreGoal != nil {
		run.Goal = *scoreGoal
	}
	if evalLimit != nil {
		run.EvalLimit = *evalLimit
	}
	if len(series) > 0 {
		run.FinalBest = series[len(series)-1]
	}

	for generation, best := range series {
		run.Evaluations += populationSize
		run.ReachedGeneration = generation + 1
		if scoreGoal != nil && best >= *scoreGoal {
			run.Success = true
			return run
		}
		if scoreGoal != nil && evalLimit != nil && run.Evaluations > *evalLimit {
			run.Success = false
			return run
		}
	}
	run.Success = scoreGoal == nil
	return run
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	avg := mean(values)
	acc := 0.0
	for _, v := range values {
		d := v - avg
		acc += d * d
	}
	return math.Sqrt(acc / float64(len(values)-1))
}

func cloneFloat64Ptr(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) {
		return nil
	}
	value := *v
	return &value
}

func cloneIntPtr(v *int) *int {
	if v == nil {
		return nil
	}
	value := *v
	return &value
}
