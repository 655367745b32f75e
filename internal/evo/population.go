package evo

import (
	"fmt"
	"math/rand"

	"epigonos/internal/catalog"
	"epigonos/internal/genome"
	"epigonos/internal/model"
)

// initRetries bounds how often one population slot may reject a random
// genome before initialization gives up on the configuration.
const initRetries = 32

// Initialize fills a population with freshly generated genomes, each
// re-checked by the validator before admission. A slot that cannot produce
// a valid genome within the retry budget means the catalogue, signature,
// and work set cannot express the requested programs.
func Initialize(size int, sig model.Signature, cat *catalog.Catalogue, work model.WorkSet, length genome.LengthRange, rng *rand.Rand) ([]model.Genome, error) {
	genomes := make([]model.Genome, 0, size)
	for i := 0; i < size; i++ {
		var admitted bool
		for attempt := 0; attempt < initRetries; attempt++ {
			g, err := genome.Random(sig, cat, work, length, rng)
			if err != nil {
				return nil, fmt.Errorf("%w: generate genome %d: %v", ErrConfiguration, i, err)
			}
			g.ID = fmt.Sprintf("g0-i%d", i)
			if err := genome.Validate(g, sig, cat); err != nil {
				continue
			}
			genomes = append(genomes, g)
			admitted = true
			break
		}
		if !admitted {
			return nil, fmt.Errorf("%w: slot %d produced no valid genome in %d attempts", ErrConfiguration, i, initRetries)
		}
	}
	return genomes, nil
}

// Breeder derives each next generation from a ranked one. All randomness
// flows through the single engine-owned source, so a fixed seed replays
// the exact same lineage.
type Breeder struct {
	Signature     model.Signature
	Catalogue     *catalog.Catalogue
	Selector      Selector
	EliteCount    int
	CrossoverRate float64
	MutationRate  float64
}

// Advance produces the successor population from a best-first ranking.
// Elites carry over as fresh copies under their original IDs; every other
// slot is bred from selected parents and re-validated before admission.
func (b *Breeder) Advance(generation int, ranked []ScoredGenome, rng *rand.Rand) ([]model.Genome, error) {
	if len(ranked) == 0 {
		return nil, fmt.Errorf("%w: advance from empty population", ErrConfiguration)
	}

	next := make([]model.Genome, 0, len(ranked))

	elites := b.EliteCount
	if elites > len(ranked) {
		elites = len(ranked)
	}
	for i := 0; i < elites; i++ {
		next = append(next, genome.Clone(ranked[i].Genome, ranked[i].Genome.ID))
	}

	for i := elites; i < len(ranked); i++ {
		parentA, err := b.Selector.PickParent(rng, ranked)
		if err != nil {
			return nil, err
		}

		childID := fmt.Sprintf("g%d-i%d", generation, i)
		var child model.Genome
		if rng.Float64() < b.CrossoverRate {
			parentB, err := b.Selector.PickParent(rng, ranked)
			if err != nil {
				return nil, err
			}
			child = Crossover(parentA, parentB, b.Signature, rng)
		} else {
			child = genome.Clone(parentA, parentA.ID)
		}
		child.ID = childID

		child = Mutate(child, b.MutationRate, b.Signature, b.Catalogue, rng)

		if err := genome.Validate(child, b.Signature, b.Catalogue); err != nil {
			return nil, fmt.Errorf("%w: child %s: %v", ErrValidation, childID, err)
		}
		next = append(next, child)
	}
	return next, nil
}
