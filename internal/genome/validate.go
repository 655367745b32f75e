package genome

import (
	"fmt"

	"epigonos/internal/catalog"
	"epigonos/internal/model"
)

// TypeError reports the first instruction that breaks a genome's type
// invariants. Index is -1 when the failure is not tied to one instruction.
type TypeError struct {
	Index  int
	Reason string
}

func (e *TypeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid genome: %s", e.Reason)
	}
	return fmt.Sprintf("invalid genome at instruction %d: %s", e.Index, e.Reason)
}

func typeErrorf(index int, format string, args ...any) error {
	return &TypeError{Index: index, Reason: fmt.Sprintf(format, args...)}
}

// Validate walks the instruction sequence once and checks that every operand
// resolves to a defined, type-matching register or constant, that every
// result register matches its opcode's declared result type, and that every
// output register the signature designates has been written by the end of
// the sequence.
//
// Parameters count as defined from the start; every other register must be
// written before it is read.
func Validate(g model.Genome, sig model.Signature, cat *catalog.Catalogue) error {
	if g.Signature != sig.Name {
		return typeErrorf(-1, "genome is bound to signature %q, want %q", g.Signature, sig.Name)
	}
	if len(g.Registers) < len(sig.Params)+len(sig.Results) {
		return typeErrorf(-1, "register file has %d slots, signature needs at least %d", len(g.Registers), len(sig.Params)+len(sig.Results))
	}
	for i, t := range sig.Params {
		if g.Registers[i] != t {
			return typeErrorf(-1, "register %d has type %s, parameter %d requires %s", i, g.Registers[i], i, t)
		}
	}
	for i, t := range sig.Results {
		idx := len(sig.Params) + i
		if g.Registers[idx] != t {
			return typeErrorf(-1, "register %d has type %s, result %d requires %s", idx, g.Registers[idx], i, t)
		}
	}

	defined := make([]bool, len(g.Registers))
	for i := range sig.Params {
		defined[i] = true
	}

	for i, ins := range g.Instructions {
		op, ok := cat.ByName(ins.Opcode)
		if !ok {
			return typeErrorf(i, "opcode %q is not in the catalogue", ins.Opcode)
		}
		if len(ins.Operands) != len(op.Operands) {
			return typeErrorf(i, "opcode %s takes %d operands, got %d", op.Name, len(op.Operands), len(ins.Operands))
		}
		for pos, operand := range ins.Operands {
			want := op.Operands[pos]
			switch operand.Kind {
			case model.OperandRegister:
				r := operand.Register
				if r < 0 || r >= len(g.Registers) {
					return typeErrorf(i, "operand %d references register %d, register file has %d slots", pos, r, len(g.Registers))
				}
				if !defined[r] {
					return typeErrorf(i, "operand %d reads register %d before it is written", pos, r)
				}
				if g.Registers[r] != want {
					return typeErrorf(i, "operand %d has type %s, opcode %s requires %s", pos, g.Registers[r], op.Name, want)
				}
			case model.OperandConst:
				if operand.Const.Type != want {
					return typeErrorf(i, "operand %d constant has type %s, opcode %s requires %s", pos, operand.Const.Type, op.Name, want)
				}
			default:
				return typeErrorf(i, "operand %d has unknown kind %q", pos, operand.Kind)
			}
		}

		r := ins.Result
		if r < 0 || r >= len(g.Registers) {
			return typeErrorf(i, "result register %d is out of range", r)
		}
		if g.Registers[r] != op.Result {
			return typeErrorf(i, "result register %d has type %s, opcode %s produces %s", r, g.Registers[r], op.Name, op.Result)
		}
		defined[r] = true
	}

	for _, out := range model.OutputRegisters(sig) {
		if !defined[out] {
			return typeErrorf(-1, "output register %d is never written", out)
		}
	}
	return nil
}
