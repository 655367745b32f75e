package genome

import "epigonos/internal/model"

// DefinedAt returns which registers are defined after executing the first
// cut instructions of g. Parameters are defined from the start.
func DefinedAt(g model.Genome, sig model.Signature, cut int) []bool {
	defined := make([]bool, len(g.Registers))
	for i := range sig.Params {
		defined[i] = true
	}
	if cut > len(g.Instructions) {
		cut = len(g.Instructions)
	}
	for i := 0; i < cut; i++ {
		defined[g.Instructions[i].Result] = true
	}
	return defined
}

// SuffixNeeds returns the registers that the instructions of g from index
// `from` onward read before writing. These are the pre-existing inputs a
// crossover prefix has to supply.
func SuffixNeeds(g model.Genome, from int) []int {
	written := make([]bool, len(g.Registers))
	needed := make([]bool, len(g.Registers))
	for i := from; i < len(g.Instructions); i++ {
		ins := g.Instructions[i]
		for _, operand := range ins.Operands {
			if operand.Kind != model.OperandRegister {
				continue
			}
			if !written[operand.Register] {
				needed[operand.Register] = true
			}
		}
		written[ins.Result] = true
	}

	out := make([]int, 0, len(g.Registers))
	for i, need := range needed {
		if need {
			out = append(out, i)
		}
	}
	return out
}

// WritesFrom returns which registers the instructions of g from index `from`
// onward write.
func WritesFrom(g model.Genome, from int) []bool {
	written := make([]bool, len(g.Registers))
	for i := from; i < len(g.Instructions); i++ {
		written[g.Instructions[i].Result] = true
	}
	return written
}
