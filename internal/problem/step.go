package problem

import (
	"epigonos/internal/evo"
	"epigonos/internal/genome"
	"epigonos/internal/model"
)

func init() {
	mustRegister(stepProblem())
}

const stepThreshold = 2.5

// stepProblem asks for a threshold classifier: emit 1 when the input is at
// or above 2.5, otherwise 0. The vocabulary leans on comparisons and
// selection rather than arithmetic.
func stepProblem() Problem {
	inputs := []float64{-4, -1.5, 0, 1, 2, 2.4, 2.5, 2.6, 3, 5.5, 8}
	cases := make([]model.TestCase, 0, len(inputs))
	for _, x := range inputs {
		cases = append(cases, model.TestCase{
			Inputs: []model.Value{model.FloatValue(model.F64, x)},
		})
	}

	return Problem{
		Name:        "step",
		Description: "classify inputs against a fixed threshold",
		Signature: model.Signature{
			Name:    "step",
			Params:  []model.ValueType{model.F64},
			Results: []model.ValueType{model.I32},
		},
		Kernels: []string{
			"f64.lt", "f64.le", "f64.gt", "f64.ge", "f64.eq",
			"f64.copy", "f64.min", "f64.max",
			"i32.copy", "i32.select", "i32.eqz",
		},
		Work:   model.WorkSet{I32: 2, F64: 2},
		Length: genome.LengthRange{Min: 1, Max: 8},
		Cases:  cases,
		Score: func(cases []model.TestCase, outcomes []model.CaseOutcome) float64 {
			correct := 0.0
			for i, out := range outcomes {
				if out.Kind != model.OutcomeValue || len(out.Values) != 1 {
					continue
				}
				want := int64(0)
				if cases[i].Inputs[0].Float >= stepThreshold {
					want = 1
				}
				if out.Values[0].Int == want {
					correct++
				}
			}
			return correct
		},
		ZeroFitness: evo.DefaultZeroFitness,
		Compare:     higherScore,
		Target:      exactScore(float64(len(inputs))),
	}
}
