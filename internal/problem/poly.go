package problem

import (
	"epigonos/internal/evo"
	"epigonos/internal/genome"
	"epigonos/internal/model"
)

func init() {
	mustRegister(polyProblem())
}

// polyProblem asks for a program computing x*x + 3x + 2 from pure integer
// arithmetic.
func polyProblem() Problem {
	cases := make([]model.TestCase, 0, 11)
	for x := int64(-5); x <= 5; x++ {
		cases = append(cases, model.TestCase{
			Inputs: []model.Value{model.IntValue(model.I32, x)},
		})
	}

	return Problem{
		Name:        "poly",
		Description: "fit the polynomial x^2 + 3x + 2 over integer inputs",
		Signature: model.Signature{
			Name:    "poly",
			Params:  []model.ValueType{model.I32},
			Results: []model.ValueType{model.I32},
		},
		Kernels: []string{
			"i32.copy", "i32.add", "i32.sub", "i32.mul",
			"i32.min", "i32.max",
		},
		Work:   model.WorkSet{I32: 4},
		Length: genome.LengthRange{Min: 2, Max: 12},
		Cases:  cases,
		Score: negAbsError(func(inputs []model.Value) int64 {
			x := inputs[0].Int
			return x*x + 3*x + 2
		}),
		ZeroFitness: evo.DefaultZeroFitness,
		Compare:     higherScore,
		Target:      exactScore(0),
	}
}
