package evo

import (
	"math/rand"
	"testing"

	"epigonos/internal/model"
)

func rankedFixture(n int) []ScoredGenome {
	ranked := make([]ScoredGenome, n)
	for i := 0; i < n; i++ {
		ranked[i] = ScoredGenome{
			Genome: model.Genome{ID: string(rune('a' + i))},
			Record: model.FitnessRecord{
				GenomeID: string(rune('a' + i)),
				Score:    float64(n - i),
				HasScore: true,
			},
		}
	}
	return ranked
}

func TestTournamentFavorsHigherRanks(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	ranked := rankedFixture(20)
	sel := TournamentSelector{Size: 4}

	counts := make(map[string]int)
	for i := 0; i < 4000; i++ {
		g, err := sel.PickParent(rng, ranked)
		if err != nil {
			t.Fatalf("pick parent: %v", err)
		}
		counts[g.ID]++
	}
	if counts["a"] <= counts["t"] {
		t.Fatalf("best genome picked %d times, worst %d times", counts["a"], counts["t"])
	}
}

func TestTournamentRejectsEmptyPool(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if _, err := (TournamentSelector{}).PickParent(rng, nil); err == nil {
		t.Fatal("expected error for empty pool")
	}
}

func TestProportionalHandlesNegativeScores(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	ranked := []ScoredGenome{
		{Genome: model.Genome{ID: "hi"}, Record: model.FitnessRecord{Score: -1, HasScore: true}},
		{Genome: model.Genome{ID: "lo"}, Record: model.FitnessRecord{Score: -10, HasScore: true}},
	}
	counts := make(map[string]int)
	for i := 0; i < 2000; i++ {
		g, err := (ProportionalSelector{}).PickParent(rng, ranked)
		if err != nil {
			t.Fatalf("pick parent: %v", err)
		}
		counts[g.ID]++
	}
	if counts["hi"] <= counts["lo"] {
		t.Fatalf("higher score picked %d times, lower %d times", counts["hi"], counts["lo"])
	}
}

func TestCurvePickIndexStaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	curves := []SelectionCurve{
		CurveFair,
		CurveSlightPreferenceForFit, CurvePreferenceForFit, CurveStrongPreferenceForFit,
		CurveSlightPreferenceForUnfit, CurvePreferenceForUnfit, CurveStrongPreferenceForUnfit,
	}
	for _, curve := range curves {
		for i := 0; i < 500; i++ {
			idx := curve.PickIndex(rng, 7)
			if idx < 0 || idx >= 7 {
				t.Fatalf("curve %s picked index %d out of range", curve, idx)
			}
		}
	}
}

func TestCurveSkewDirections(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	sum := func(curve SelectionCurve) int {
		total := 0
		for i := 0; i < 5000; i++ {
			total += curve.PickIndex(rng, 10)
		}
		return total
	}

	fit := sum(CurveStrongPreferenceForFit)
	fair := sum(CurveFair)
	unfit := sum(CurveStrongPreferenceForUnfit)
	if !(fit < fair && fair < unfit) {
		t.Fatalf("expected fit skew < fair < unfit skew, got %d, %d, %d", fit, fair, unfit)
	}
}

func TestSelectorByName(t *testing.T) {
	for _, name := range []string{
		"", "tournament", "proportional",
		string(CurveFair), string(CurveStrongPreferenceForFit),
	} {
		if _, err := SelectorByName(name); err != nil {
			t.Errorf("SelectorByName(%q): %v", name, err)
		}
	}
	if _, err := SelectorByName("roulette-of-doom"); err == nil {
		t.Error("expected error for unknown policy name")
	}
}

func TestRankIsStableAndBestFirst(t *testing.T) {
	scored := []ScoredGenome{
		{Genome: model.Genome{ID: "mid"}, Record: model.FitnessRecord{Score: 5, HasScore: true}},
		{Genome: model.Genome{ID: "top"}, Record: model.FitnessRecord{Score: 9, HasScore: true}},
		{Genome: model.Genome{ID: "tie1"}, Record: model.FitnessRecord{Score: 2, HasScore: true}},
		{Genome: model.Genome{ID: "tie2"}, Record: model.FitnessRecord{Score: 2, HasScore: true}},
	}
	higherScore := func(a, b model.FitnessRecord) bool { return a.Score > b.Score }

	ranked := Rank(scored, higherScore)
	got := []string{ranked[0].Genome.ID, ranked[1].Genome.ID, ranked[2].Genome.ID, ranked[3].Genome.ID}
	want := []string{"top", "mid", "tie1", "tie2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rank order = %v, want %v", got, want)
		}
	}
	if scored[0].Genome.ID != "mid" {
		t.Fatal("Rank reordered its input slice")
	}
}
