package evo

import (
	"context"
	"fmt"
	"sync"

	"epigonos/internal/exec"
	"epigonos/internal/model"
)

// ScoreFunc reduces a genome's full outcome set to one scalar.
type ScoreFunc func(cases []model.TestCase, outcomes []model.CaseOutcome) float64

// ZeroFitnessFunc reports whether the genome's designated outputs never
// carried a meaningful value across the test cases.
type ZeroFitnessFunc func(outcomes []model.CaseOutcome) bool

// CompareFunc reports whether record a ranks strictly better than record b.
// It must behave as a strict weak ordering; the engine consults nothing
// else when ranking.
type CompareFunc func(a, b model.FitnessRecord) bool

// DefaultZeroFitness flags a record when no test case produced a non-default
// output value: every execution trapped, timed out, or only ever yielded the
// zero value of its output types.
func DefaultZeroFitness(outcomes []model.CaseOutcome) bool {
	for _, out := range outcomes {
		if out.Kind != model.OutcomeValue {
			continue
		}
		for _, v := range out.Values {
			if !v.IsZero() {
				return false
			}
		}
	}
	return true
}

// Evaluator drives the compile and run collaborators for one genome at a
// time and produces fitness records. It holds only immutable, shareable
// state, so one Evaluator serves all workers concurrently.
type Evaluator struct {
	Compiler exec.Compiler
	Sandbox  exec.Sandbox
	Imports  []exec.ImportBinding
	Memory   exec.MemoryConfig
	Limits   exec.ResourceLimits

	Score       ScoreFunc
	ZeroFitness ZeroFitnessFunc
}

// Evaluate compiles the genome once and runs it against every test case.
// Traps and timeouts become that case's recorded outcome and never abort
// the remaining cases. Compile failures are fatal: a validated genome the
// generator rejects means the catalogue over-promised.
func (e *Evaluator) Evaluate(ctx context.Context, g model.Genome, sig model.Signature, cases []model.TestCase) (model.FitnessRecord, error) {
	module, err := e.Compiler.Compile(g, sig, e.Imports, e.Memory)
	if err != nil {
		return model.FitnessRecord{}, fmt.Errorf("compile genome %s: %w", g.ID, err)
	}

	record := model.FitnessRecord{
		GenomeID: g.ID,
		Outcomes: make([]model.CaseOutcome, 0, len(cases)),
	}
	for _, tc := range cases {
		if err := ctx.Err(); err != nil {
			return model.FitnessRecord{}, err
		}
		record.Outcomes = append(record.Outcomes, e.Sandbox.Run(ctx, module, tc.Inputs, e.Limits))
	}

	if e.Score != nil {
		record.Score = e.Score(cases, record.Outcomes)
		record.HasScore = true
	}
	if e.ZeroFitness != nil {
		record.ZeroFitness = e.ZeroFitness(record.Outcomes)
	}
	return record, nil
}

// EvaluatePopulation fans genome evaluations out over a worker pool. Every
// genome's record lands in its own slot, so concurrent evaluation cannot
// leak outcomes between genomes. Workers stop picking up new genomes once
// the context is cancelled and in-flight evaluations drain.
func (e *Evaluator) EvaluatePopulation(ctx context.Context, genomes []model.Genome, sig model.Signature, cases []model.TestCase, workers int) ([]ScoredGenome, error) {
	type job struct {
		idx    int
		genome model.Genome
	}
	type result struct {
		idx    int
		scored ScoredGenome
		err    error
	}

	jobs := make(chan job)
	results := make(chan result, len(genomes))

	if workers <= 0 {
		workers = 1
	}
	if workers > len(genomes) {
		workers = len(genomes)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					results <- result{idx: j.idx, err: err}
					continue
				}
				record, err := e.Evaluate(ctx, j.genome, sig, cases)
				if err != nil {
					results <- result{idx: j.idx, err: err}
					continue
				}
				results <- result{idx: j.idx, scored: ScoredGenome{Genome: j.genome, Record: record}}
			}
		}()
	}

	for i := range genomes {
		jobs <- job{idx: i, genome: genomes[i]}
	}
	close(jobs)

	wg.Wait()
	close(results)

	scored := make([]ScoredGenome, len(genomes))
	for res := range results {
		if res.err != nil {
			return nil, res.err
		}
		scored[res.idx] = res.scored
	}
	return scored, nil
}
