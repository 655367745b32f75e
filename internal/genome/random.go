package genome

import (
	"fmt"
	"math"
	"math/rand"

	"epigonos/internal/catalog"
	"epigonos/internal/model"
)

// Probability of drawing an inline constant for an operand position that
// could also be served by a register. Taken low so genomes mostly compose
// register dataflow instead of literal tables.
const constOperandChance = 0.2

// LengthRange bounds the number of instructions Random draws for the body of
// a new genome, before any output back-fill instructions.
type LengthRange struct {
	Min int
	Max int
}

func (r LengthRange) valid() bool {
	return r.Min >= 1 && r.Max >= r.Min
}

// Random builds a new valid genome instruction by instruction. At every step
// it samples only from opcodes whose operand types can be served by already
// defined registers or by constants, and whose result type has a register in
// the file, so no post-hoc rejection is needed. After the body, any output
// register still unwritten gets one extra producing instruction appended.
func Random(sig model.Signature, cat *catalog.Catalogue, work model.WorkSet, length LengthRange, rng *rand.Rand) (model.Genome, error) {
	if rng == nil {
		return model.Genome{}, fmt.Errorf("random source is required")
	}
	if !length.valid() {
		return model.Genome{}, fmt.Errorf("invalid length range [%d, %d]", length.Min, length.Max)
	}

	regs := model.Registers(sig, work)
	g := model.Genome{
		Signature: sig.Name,
		Registers: regs,
	}

	defined := make([]bool, len(regs))
	for i := range sig.Params {
		defined[i] = true
	}

	byType := registerIndexesByType(regs)
	eligible := eligibleOpcodes(cat, byType)
	if len(eligible) == 0 {
		return model.Genome{}, fmt.Errorf("no catalogue opcode produces a type present in the register file")
	}

	n := length.Min + rng.Intn(length.Max-length.Min+1)
	g.Instructions = make([]model.Instruction, 0, n+len(sig.Results))
	for i := 0; i < n; i++ {
		op := pickWeighted(eligible, rng)
		ins := buildInstruction(op, byType, defined, rng, -1)
		g.Instructions = append(g.Instructions, ins)
		defined[ins.Result] = true
	}

	// Output registers left unwritten would fail validation, so force one
	// producing instruction per missing output.
	for _, out := range model.OutputRegisters(sig) {
		if defined[out] {
			continue
		}
		producers := filterWeighted(eligible, regs[out])
		if len(producers) == 0 {
			return model.Genome{}, fmt.Errorf("no eligible opcode produces output type %s", regs[out])
		}
		op := pickWeighted(producers, rng)
		ins := buildInstruction(op, byType, defined, rng, out)
		g.Instructions = append(g.Instructions, ins)
		defined[out] = true
	}

	return g, nil
}

// RandomValue draws a small constant of the given type. The range is kept
// narrow so arithmetic over constants stays in comparable magnitude with
// register values.
func RandomValue(t model.ValueType, rng *rand.Rand) model.Value {
	if t.IsFloat() {
		v := math.Round((rng.Float64()*20-10)*100) / 100
		return model.FloatValue(t, v)
	}
	return model.IntValue(t, int64(rng.Intn(21)-10))
}

func registerIndexesByType(regs []model.ValueType) map[model.ValueType][]int {
	byType := map[model.ValueType][]int{}
	for i, t := range regs {
		byType[t] = append(byType[t], i)
	}
	return byType
}

// eligibleOpcodes keeps the opcodes whose result type has at least one
// register to land in. Operand types are always satisfiable because a
// constant can serve any position.
func eligibleOpcodes(cat *catalog.Catalogue, byType map[model.ValueType][]int) []model.Opcode {
	out := make([]model.Opcode, 0, cat.Len())
	for _, op := range cat.All() {
		if len(byType[op.Result]) > 0 {
			out = append(out, op)
		}
	}
	return out
}

func filterWeighted(ops []model.Opcode, result model.ValueType) []model.Opcode {
	out := make([]model.Opcode, 0, len(ops))
	for _, op := range ops {
		if op.Result == result {
			out = append(out, op)
		}
	}
	return out
}

// pickWeighted draws one opcode with probability proportional to its weight.
func pickWeighted(ops []model.Opcode, rng *rand.Rand) model.Opcode {
	total := 0
	for _, op := range ops {
		total += op.Weight
	}
	pick := rng.Intn(total)
	acc := 0
	for _, op := range ops {
		acc += op.Weight
		if pick < acc {
			return op
		}
	}
	return ops[len(ops)-1]
}

// buildInstruction fills the operand list of op from defined registers or
// constants and picks the result register. forceResult pins the result
// register when >= 0; otherwise it is sampled among registers of the result
// type.
func buildInstruction(op model.Opcode, byType map[model.ValueType][]int, defined []bool, rng *rand.Rand, forceResult int) model.Instruction {
	operands := make([]model.Operand, len(op.Operands))
	for pos, want := range op.Operands {
		candidates := definedOfType(byType[want], defined)
		if len(candidates) == 0 || rng.Float64() < constOperandChance {
			operands[pos] = model.ConstOperand(RandomValue(want, rng))
			continue
		}
		operands[pos] = model.RegisterOperand(candidates[rng.Intn(len(candidates))])
	}

	result := forceResult
	if result < 0 {
		targets := byType[op.Result]
		result = targets[rng.Intn(len(targets))]
	}
	return model.Instruction{Opcode: op.Name, Operands: operands, Result: result}
}

func definedOfType(indexes []int, defined []bool) []int {
	out := make([]int, 0, len(indexes))
	for _, i := range indexes {
		if defined[i] {
			out = append(out, i)
		}
	}
	return out
}
