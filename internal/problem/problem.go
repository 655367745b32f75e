package problem

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"epigonos/internal/catalog"
	"epigonos/internal/evo"
	"epigonos/internal/exec"
	"epigonos/internal/genome"
	"epigonos/internal/model"
)

var (
	ErrProblemExists   = errors.New("problem already registered")
	ErrProblemNotFound = errors.New("problem not found")
)

// Problem bundles everything a run needs to evolve programs for one named
// task: the entry signature, the opcode vocabulary, the test cases, host
// bindings, and the fitness policy.
type Problem struct {
	Name        string
	Description string

	Signature model.Signature
	// Kernels names the built-in opcodes admitted into the catalogue.
	Kernels []string
	// Imports are host functions available to genomes; ImportOpcodes are
	// their catalogue descriptors, one per binding.
	Imports       []exec.ImportBinding
	ImportOpcodes []model.Opcode
	// NewState builds the private host state for one execution.
	NewState func() any

	Work   model.WorkSet
	Length genome.LengthRange
	Memory exec.MemoryConfig
	Cases  []model.TestCase

	Score       evo.ScoreFunc
	ZeroFitness evo.ZeroFitnessFunc
	Compare     evo.CompareFunc
	Target      func(model.FitnessRecord) bool
}

// Catalogue assembles the problem's opcode vocabulary: the named kernels
// plus one descriptor per host import.
func (p *Problem) Catalogue() (*catalog.Catalogue, error) {
	ops := make([]model.Opcode, 0, len(p.Kernels)+len(p.ImportOpcodes))
	for _, name := range p.Kernels {
		op, ok := exec.Kernel(name)
		if !ok {
			return nil, fmt.Errorf("problem %s: unknown kernel %q", p.Name, name)
		}
		ops = append(ops, op)
	}
	ops = append(ops, p.ImportOpcodes...)
	cat, err := catalog.New(ops)
	if err != nil {
		return nil, fmt.Errorf("problem %s: %w", p.Name, err)
	}
	return cat, nil
}

var registry = struct {
	mu sync.RWMutex
	m  map[string]Problem
}{
	m: make(map[string]Problem),
}

// Register adds a problem under its name. Names are unique for the life of
// the process.
func Register(p Problem) error {
	if p.Name == "" {
		return errors.New("problem name is required")
	}
	if len(p.Cases) == 0 {
		return fmt.Errorf("problem %s has no test cases", p.Name)
	}
	if p.Compare == nil {
		return fmt.Errorf("problem %s has no comparator", p.Name)
	}
	if len(p.Imports) != len(p.ImportOpcodes) {
		return fmt.Errorf("problem %s declares %d imports but %d import opcodes", p.Name, len(p.Imports), len(p.ImportOpcodes))
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, exists := registry.m[p.Name]; exists {
		return fmt.Errorf("%w: %s", ErrProblemExists, p.Name)
	}
	registry.m[p.Name] = p
	return nil
}

// Resolve looks a problem up by name.
func Resolve(name string) (Problem, error) {
	registry.mu.RLock()
	p, ok := registry.m[name]
	registry.mu.RUnlock()

	if !ok {
		return Problem{}, fmt.Errorf("%w: %s", ErrProblemNotFound, name)
	}
	return p, nil
}

// List returns the registered problem names in sorted order.
func List() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.m))
	for name := range registry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func mustRegister(p Problem) {
	if err := Register(p); err != nil {
		panic(err)
	}
}

// negAbsError scores a genome by the negated sum of absolute errors against
// want(inputs); non-value outcomes carry a flat penalty. A perfect genome
// scores exactly zero.
func negAbsError(want func(inputs []model.Value) int64) evo.ScoreFunc {
	const faultPenalty = 1 << 20
	return func(cases []model.TestCase, outcomes []model.CaseOutcome) float64 {
		score := 0.0
		for i, out := range outcomes {
			if out.Kind != model.OutcomeValue || len(out.Values) != 1 {
				score -= faultPenalty
				continue
			}
			diff := out.Values[0].Int - want(cases[i].Inputs)
			if diff < 0 {
				diff = -diff
			}
			score -= float64(diff)
		}
		return score
	}
}

// higherScore is the default ordering: meaningful genomes before
// zero-fitness ones, then by score descending.
func higherScore(a, b model.FitnessRecord) bool {
	if a.ZeroFitness != b.ZeroFitness {
		return !a.ZeroFitness
	}
	if a.HasScore != b.HasScore {
		return a.HasScore
	}
	return a.Score > b.Score
}

// exactScore stops a run once the best genome reaches the given score.
func exactScore(target float64) func(model.FitnessRecord) bool {
	return func(r model.FitnessRecord) bool {
		return r.HasScore && r.Score >= target
	}
}
