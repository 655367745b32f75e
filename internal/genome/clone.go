package genome

import "epigonos/internal/model"

// Clone returns a deep, independently owned copy of g under the given ID.
// Mutating the copy never aliases the original's instructions or operands.
func Clone(g model.Genome, id string) model.Genome {
	out := g
	out.ID = id
	out.Registers = append([]model.ValueType(nil), g.Registers...)
	out.Instructions = make([]model.Instruction, len(g.Instructions))
	for i, ins := range g.Instructions {
		copied := ins
		copied.Operands = append([]model.Operand(nil), ins.Operands...)
		out.Instructions[i] = copied
	}
	return out
}
