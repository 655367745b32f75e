package evo

import (
	"fmt"
	"math/rand"
	"sort"

	"epigonos/internal/model"
)

// ScoredGenome pairs a genome with the fitness record it earned in the
// current generation. Ranked slices are ordered best first.
type ScoredGenome struct {
	Genome model.Genome
	Record model.FitnessRecord
}

// Selector chooses parents from ranked genomes for reproduction. Given the
// same rng stream and fitness records, selection is deterministic.
type Selector interface {
	Name() string
	PickParent(rng *rand.Rand, ranked []ScoredGenome) (model.Genome, error)
}

// TournamentSelector samples Size candidates uniformly and picks the best
// ranked among them.
type TournamentSelector struct {
	Size int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) PickParent(rng *rand.Rand, ranked []ScoredGenome) (model.Genome, error) {
	if rng == nil {
		return model.Genome{}, fmt.Errorf("random source is required")
	}
	if len(ranked) == 0 {
		return model.Genome{}, fmt.Errorf("ranked pool is empty")
	}

	size := s.Size
	if size <= 0 {
		size = 3
	}
	if size > len(ranked) {
		size = len(ranked)
	}

	best := rng.Intn(len(ranked))
	for i := 1; i < size; i++ {
		candidate := rng.Intn(len(ranked))
		if candidate < best {
			best = candidate
		}
	}
	return ranked[best].Genome, nil
}

// ProportionalSelector picks parents with probability proportional to their
// scalar score. Records without scores, or a pool whose scores sum to
// nothing after shifting, fall back to uniform selection.
type ProportionalSelector struct{}

func (ProportionalSelector) Name() string {
	return "proportional"
}

func (ProportionalSelector) PickParent(rng *rand.Rand, ranked []ScoredGenome) (model.Genome, error) {
	if rng == nil {
		return model.Genome{}, fmt.Errorf("random source is required")
	}
	if len(ranked) == 0 {
		return model.Genome{}, fmt.Errorf("ranked pool is empty")
	}

	scored := true
	minScore := 0.0
	for i, item := range ranked {
		if !item.Record.HasScore {
			scored = false
			break
		}
		if i == 0 || item.Record.Score < minScore {
			minScore = item.Record.Score
		}
	}
	if !scored {
		return ranked[rng.Intn(len(ranked))].Genome, nil
	}

	shift := 0.0
	if minScore <= 0 {
		shift = -minScore + 1e-9
	}
	total := 0.0
	for _, item := range ranked {
		total += item.Record.Score + shift
	}
	if total <= 0 {
		return ranked[rng.Intn(len(ranked))].Genome, nil
	}

	pick := rng.Float64() * total
	acc := 0.0
	for _, item := range ranked {
		acc += item.Record.Score + shift
		if pick <= acc {
			return item.Genome, nil
		}
	}
	return ranked[len(ranked)-1].Genome, nil
}

// SelectionCurve shapes how strongly a curve-based pick favors one end of a
// ranked pool.
type SelectionCurve string

const (
	CurveFair                     SelectionCurve = "fair"
	CurveSlightPreferenceForFit   SelectionCurve = "slight_preference_for_fit"
	CurvePreferenceForFit         SelectionCurve = "preference_for_fit"
	CurveStrongPreferenceForFit   SelectionCurve = "strong_preference_for_fit"
	CurveSlightPreferenceForUnfit SelectionCurve = "slight_preference_for_unfit"
	CurvePreferenceForUnfit       SelectionCurve = "preference_for_unfit"
	CurveStrongPreferenceForUnfit SelectionCurve = "strong_preference_for_unfit"
)

// PickIndex selects an index into a best-first pool of n entries according
// to the curve: fit-preferring curves skew exponentially toward index zero.
func (c SelectionCurve) PickIndex(rng *rand.Rand, n int) int {
	pick := rng.Float64()

	switch c {
	case CurveSlightPreferenceForFit, CurveSlightPreferenceForUnfit:
		pick = pick * pick
	case CurvePreferenceForFit, CurvePreferenceForUnfit:
		pick = pick * pick * pick
	case CurveStrongPreferenceForFit, CurveStrongPreferenceForUnfit:
		pick = pick * pick * pick * pick * pick * pick
	}

	switch c {
	case CurveSlightPreferenceForUnfit, CurvePreferenceForUnfit, CurveStrongPreferenceForUnfit:
		pick = 1 - pick
	}

	if pick >= 1 {
		pick = 0.9999999999
	}
	return int(pick * float64(n))
}

// CurveSelector picks parents by drawing an index from a selection curve
// over the ranked pool.
type CurveSelector struct {
	Curve SelectionCurve
}

func (s CurveSelector) Name() string {
	return "curve:" + string(s.Curve)
}

func (s CurveSelector) PickParent(rng *rand.Rand, ranked []ScoredGenome) (model.Genome, error) {
	if rng == nil {
		return model.Genome{}, fmt.Errorf("random source is required")
	}
	if len(ranked) == 0 {
		return model.Genome{}, fmt.Errorf("ranked pool is empty")
	}
	return ranked[s.Curve.PickIndex(rng, len(ranked))].Genome, nil
}

// SelectorByName resolves the configured selection policy.
func SelectorByName(name string) (Selector, error) {
	switch name {
	case "", "tournament":
		return TournamentSelector{}, nil
	case "proportional":
		return ProportionalSelector{}, nil
	case string(CurveFair),
		string(CurveSlightPreferenceForFit), string(CurvePreferenceForFit), string(CurveStrongPreferenceForFit),
		string(CurveSlightPreferenceForUnfit), string(CurvePreferenceForUnfit), string(CurveStrongPreferenceForUnfit):
		return CurveSelector{Curve: SelectionCurve(name)}, nil
	default:
		return nil, fmt.Errorf("unknown selection policy: %s", name)
	}
}

// Rank orders the scored genomes best-first under cmp. The sort is stable,
// so genomes the comparator deems equivalent keep their evaluation order.
func Rank(scored []ScoredGenome, cmp CompareFunc) []ScoredGenome {
	ranked := make([]ScoredGenome, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(i, j int) bool {
		return cmp(ranked[i].Record, ranked[j].Record)
	})
	return ranked
}
