package problem

import (
	"encoding/binary"

	"epigonos/internal/evo"
	"epigonos/internal/exec"
	"epigonos/internal/genome"
	"epigonos/internal/model"
)

func init() {
	mustRegister(tallyProblem())
}

// tallyState is the private accumulator each execution starts with.
type tallyState struct {
	total int64
}

// tallyBias is preloaded into linear memory at offset zero.
const tallyBias int32 = 5

// tallyProblem exercises stateful host calls and preloaded memory: the
// target program feeds its input to the accumulator twice and adds the
// bias stored in memory, producing 2x + 5.
func tallyProblem() Problem {
	cases := make([]model.TestCase, 0, 8)
	for x := int64(0); x < 8; x++ {
		cases = append(cases, model.TestCase{
			Inputs: []model.Value{model.IntValue(model.I32, x)},
		})
	}

	preload := make([]byte, 4)
	binary.LittleEndian.PutUint32(preload, uint32(tallyBias))

	addOpcode := model.Opcode{
		Name:     "tally.add",
		Operands: []model.ValueType{model.I32},
		Result:   model.I32,
		Category: model.CategoryAction,
	}

	return Problem{
		Name:        "tally",
		Description: "accumulate inputs through a stateful host counter plus a bias held in memory",
		Signature: model.Signature{
			Name:    "tally",
			Params:  []model.ValueType{model.I32},
			Results: []model.ValueType{model.I32},
		},
		Kernels: []string{
			"i32.copy", "i32.add", "mem.load.i32",
		},
		Imports: []exec.ImportBinding{
			{
				Name:    "tally.add",
				Params:  []model.ValueType{model.I32},
				Results: []model.ValueType{model.I32},
				Func: func(state any, _ *exec.Memory, args []model.Value) ([]model.Value, error) {
					s := state.(*tallyState)
					s.total += args[0].Int
					return []model.Value{model.IntValue(model.I32, s.total)}, nil
				},
			},
		},
		ImportOpcodes: []model.Opcode{addOpcode},
		NewState:      func() any { return &tallyState{} },
		Work:          model.WorkSet{I32: 3},
		Length:        genome.LengthRange{Min: 2, Max: 10},
		Memory:        exec.MemoryConfig{Pages: 1, Preload: []exec.DataBlock{{Offset: 0, Bytes: preload}}},
		Cases:         cases,
		Score: negAbsError(func(inputs []model.Value) int64 {
			return 2*inputs[0].Int + int64(tallyBias)
		}),
		ZeroFitness: evo.DefaultZeroFitness,
		Compare:     higherScore,
		Target:      exactScore(0),
	}
}
