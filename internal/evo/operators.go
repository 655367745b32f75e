package evo

import (
	"math/rand"

	"epigonos/internal/catalog"
	"epigonos/internal/genome"
	"epigonos/internal/model"
)

// Crossover splices a prefix of parentA onto a suffix of parentB. A cut
// pair (i, j) is compatible when the registers defined by A's first i
// instructions cover everything B's suffix reads before writing, and the
// combined halves still write every output register. The pair is chosen
// uniformly among all compatible pairs; if none exists the child is an
// unmodified copy of one parent chosen uniformly.
//
// For two valid parents the pair (len(A), len(B)) is always compatible, so
// the fallback only fires on degenerate input.
func Crossover(parentA, parentB model.Genome, sig model.Signature, rng *rand.Rand) model.Genome {
	outputs := model.OutputRegisters(sig)

	type cut struct{ i, j int }
	var compatible []cut

	needsAt := make([][]int, len(parentB.Instructions)+1)
	writesAt := make([][]bool, len(parentB.Instructions)+1)
	for j := range needsAt {
		needsAt[j] = genome.SuffixNeeds(parentB, j)
		writesAt[j] = genome.WritesFrom(parentB, j)
	}

	defined := genome.DefinedAt(parentA, sig, 0)
	for i := 0; i <= len(parentA.Instructions); i++ {
		if i > 0 {
			defined[parentA.Instructions[i-1].Result] = true
		}
		for j := 0; j <= len(parentB.Instructions); j++ {
			ok := true
			for _, need := range needsAt[j] {
				if !defined[need] {
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
			for _, out := range outputs {
				if !defined[out] && !writesAt[j][out] {
					ok = false
					break
				}
			}
			if ok {
				compatible = append(compatible, cut{i: i, j: j})
			}
		}
	}

	if len(compatible) == 0 {
		if rng.Intn(2) == 0 {
			return genome.Clone(parentA, parentA.ID)
		}
		return genome.Clone(parentB, parentB.ID)
	}

	chosen := compatible[rng.Intn(len(compatible))]
	child := model.Genome{
		Signature: parentA.Signature,
		Registers: append([]model.ValueType(nil), parentA.Registers...),
	}
	child.Instructions = make([]model.Instruction, 0, chosen.i+len(parentB.Instructions)-chosen.j)
	for _, ins := range parentA.Instructions[:chosen.i] {
		copied := ins
		copied.Operands = append([]model.Operand(nil), ins.Operands...)
		child.Instructions = append(child.Instructions, copied)
	}
	for _, ins := range parentB.Instructions[chosen.j:] {
		copied := ins
		copied.Operands = append([]model.Operand(nil), ins.Operands...)
		child.Instructions = append(child.Instructions, copied)
	}
	return child
}

// Mutate walks a copy of g and, with the given per-instruction probability,
// either swaps the opcode for another with an identical type signature or
// swaps one operand source for another of the same type in scope at that
// point. Result registers never change, so everything written before the
// mutation is still written after it and the result stays valid without a
// repair pass.
func Mutate(g model.Genome, rate float64, sig model.Signature, cat *catalog.Catalogue, rng *rand.Rand) model.Genome {
	out := genome.Clone(g, g.ID)

	defined := genome.DefinedAt(out, sig, 0)
	for i := range out.Instructions {
		if rng.Float64() < rate {
			op, ok := cat.ByName(out.Instructions[i].Opcode)
			if ok {
				if rng.Intn(2) == 0 {
					mutateOpcode(&out.Instructions[i], op, cat, rng)
				} else {
					mutateOperand(&out.Instructions[i], op, out.Registers, defined, rng)
				}
			}
		}
		defined[out.Instructions[i].Result] = true
	}
	return out
}

// mutateOpcode replaces the opcode with another catalogue entry of the same
// operand and result types. Leaves the instruction alone when the opcode has
// no siblings.
func mutateOpcode(ins *model.Instruction, op model.Opcode, cat *catalog.Catalogue, rng *rand.Rand) {
	var siblings []model.Opcode
	for _, candidate := range cat.Compatible(op.Result) {
		if candidate.Name == op.Name || len(candidate.Operands) != len(op.Operands) {
			continue
		}
		same := true
		for pos := range candidate.Operands {
			if candidate.Operands[pos] != op.Operands[pos] {
				same = false
				break
			}
		}
		if same {
			siblings = append(siblings, candidate)
		}
	}
	if len(siblings) == 0 {
		return
	}
	ins.Opcode = siblings[rng.Intn(len(siblings))].Name
}

// mutateOperand replaces one operand with another source of the same type:
// a register already defined at this point, or a fresh constant.
func mutateOperand(ins *model.Instruction, op model.Opcode, registers []model.ValueType, defined []bool, rng *rand.Rand) {
	if len(ins.Operands) == 0 {
		return
	}
	pos := rng.Intn(len(ins.Operands))
	want := op.Operands[pos]

	var candidates []int
	for r, t := range registers {
		if t == want && defined[r] {
			candidates = append(candidates, r)
		}
	}

	if len(candidates) == 0 || rng.Intn(4) == 0 {
		ins.Operands[pos] = model.ConstOperand(genome.RandomValue(want, rng))
		return
	}
	ins.Operands[pos] = model.RegisterOperand(candidates[rng.Intn(len(candidates))])
}
