package exec

import (
	"context"
	"fmt"
	"time"

	"epigonos/internal/model"
)

// Interp is a typed register-machine interpreter that doubles as the Code
// Generator and Execution Sandbox for runs that do not bring their own. Its
// capability is the fixed kernel table plus whatever import bindings the
// host supplies at compile time.
//
// NewState, when set, builds a fresh private host state for every execution;
// import bindings receive it alongside the execution's private memory copy.
type Interp struct {
	NewState func() any
}

type stepKind int

const (
	stepKernel stepKind = iota
	stepImport
)

type step struct {
	kind     stepKind
	operands []model.Operand
	result   int
	kernel   kernelFn
	imp      *ImportBinding
}

// program is a compiled genome: the instruction sequence resolved against
// the interpreter's kernels and the host's import bindings.
type program struct {
	genomeID  string
	registers []model.ValueType
	outputs   []int
	params    []model.ValueType
	steps     []step
	memory    *Memory
}

func (p *program) GenomeID() string {
	return p.genomeID
}

// Compile resolves every instruction of the genome to a kernel or import
// binding. A descriptor that names neither, or whose declared types diverge
// from the kernel or binding signature, is a CodegenError: the catalogue
// promised something this generator cannot deliver.
func (i *Interp) Compile(g model.Genome, sig model.Signature, imports []ImportBinding, mem MemoryConfig) (Module, error) {
	template, err := NewMemory(mem)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*ImportBinding, len(imports))
	for idx := range imports {
		byName[imports[idx].Name] = &imports[idx]
	}

	p := &program{
		genomeID:  g.ID,
		registers: append([]model.ValueType(nil), g.Registers...),
		outputs:   model.OutputRegisters(sig),
		params:    append([]model.ValueType(nil), sig.Params...),
		steps:     make([]step, 0, len(g.Instructions)),
		memory:    template,
	}

	for _, ins := range g.Instructions {
		if spec, ok := kernels[ins.Opcode]; ok {
			if !typesEqual(operandTypes(g, ins), spec.operands) || g.Registers[ins.Result] != spec.result {
				return nil, &CodegenError{GenomeID: g.ID, Opcode: ins.Opcode, Reason: "declared types do not match kernel signature"}
			}
			if spec.needsMemory && template.Size() == 0 {
				return nil, &CodegenError{GenomeID: g.ID, Opcode: ins.Opcode, Reason: "memory opcode with no memory configured"}
			}
			p.steps = append(p.steps, step{
				kind:     stepKernel,
				operands: append([]model.Operand(nil), ins.Operands...),
				result:   ins.Result,
				kernel:   spec.fn,
			})
			continue
		}
		if imp, ok := byName[ins.Opcode]; ok {
			if len(imp.Results) != 1 {
				return nil, &CodegenError{GenomeID: g.ID, Opcode: ins.Opcode, Reason: "import bindings must declare exactly one result"}
			}
			if !typesEqual(operandTypes(g, ins), imp.Params) || g.Registers[ins.Result] != imp.Results[0] {
				return nil, &CodegenError{GenomeID: g.ID, Opcode: ins.Opcode, Reason: "declared types do not match import signature"}
			}
			p.steps = append(p.steps, step{
				kind:     stepImport,
				operands: append([]model.Operand(nil), ins.Operands...),
				result:   ins.Result,
				imp:      imp,
			})
			continue
		}
		return nil, &CodegenError{GenomeID: g.ID, Opcode: ins.Opcode, Reason: "no kernel or import binding with this name"}
	}

	return p, nil
}

// Run executes the compiled module against one input. Traps and timeouts
// are recorded in the outcome, never returned as errors.
func (i *Interp) Run(ctx context.Context, m Module, input []model.Value, limits ResourceLimits) model.CaseOutcome {
	p, ok := m.(*program)
	if !ok {
		return trap("module was not compiled by this interpreter")
	}
	if len(input) != len(p.params) {
		return trap(fmt.Sprintf("input has %d values, entry point takes %d", len(input), len(p.params)))
	}

	regs := make([]model.Value, len(p.registers))
	for r, t := range p.registers {
		regs[r] = model.Value{Type: t}
	}
	for r, v := range input {
		if v.Type != p.params[r] {
			return trap(fmt.Sprintf("input %d has type %s, parameter requires %s", r, v.Type, p.params[r]))
		}
		regs[r] = v
	}

	mem := p.memory.Copy()
	var state any
	if i.NewState != nil {
		state = i.NewState()
	}

	var deadline time.Time
	if limits.WallClock > 0 {
		deadline = time.Now().Add(limits.WallClock)
	}
	fuel := limits.Fuel

	for n, s := range p.steps {
		if limits.Fuel > 0 {
			if fuel == 0 {
				return model.CaseOutcome{Kind: model.OutcomeTimeout, Reason: "instruction budget exhausted"}
			}
			fuel--
		}
		if n%64 == 0 {
			if err := ctx.Err(); err != nil {
				return model.CaseOutcome{Kind: model.OutcomeTimeout, Reason: "cancelled"}
			}
			if !deadline.IsZero() && time.Now().After(deadline) {
				return model.CaseOutcome{Kind: model.OutcomeTimeout, Reason: "wall clock budget exhausted"}
			}
		}

		args := make([]model.Value, len(s.operands))
		for pos, operand := range s.operands {
			if operand.Kind == model.OperandConst {
				args[pos] = operand.Const
			} else {
				args[pos] = regs[operand.Register]
			}
		}

		switch s.kind {
		case stepKernel:
			if out, wrote := s.kernel(mem, args); wrote {
				regs[s.result] = out
			}
		case stepImport:
			results, err := s.imp.Func(state, mem, args)
			if err != nil {
				return trap(fmt.Sprintf("import %s: %v", s.imp.Name, err))
			}
			if len(results) != 1 {
				return trap(fmt.Sprintf("import %s returned %d values, want 1", s.imp.Name, len(results)))
			}
			regs[s.result] = normalize(p.registers[s.result], results[0])
		}
	}

	out := make([]model.Value, len(p.outputs))
	for n, r := range p.outputs {
		out[n] = regs[r]
	}
	return model.CaseOutcome{Kind: model.OutcomeValue, Values: out}
}

func trap(reason string) model.CaseOutcome {
	return model.CaseOutcome{Kind: model.OutcomeTrap, Reason: reason}
}

func operandTypes(g model.Genome, ins model.Instruction) []model.ValueType {
	out := make([]model.ValueType, len(ins.Operands))
	for pos, operand := range ins.Operands {
		if operand.Kind == model.OperandConst {
			out[pos] = operand.Const.Type
		} else {
			out[pos] = g.Registers[operand.Register]
		}
	}
	return out
}

func typesEqual(a, b []model.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// normalize coerces a host-returned value onto the register's declared type,
// truncating or converting the payload as needed.
func normalize(t model.ValueType, v model.Value) model.Value {
	if v.Type == t {
		if t == model.I32 {
			return model.IntValue(t, int64(int32(v.Int)))
		}
		return v
	}
	if t.IsFloat() {
		if v.Type.IsFloat() {
			return model.FloatValue(t, v.Float)
		}
		return model.FloatValue(t, float64(v.Int))
	}
	n := v.Int
	if v.Type.IsFloat() {
		n = int64(v.Float)
	}
	if t == model.I32 {
		n = int64(int32(n))
	}
	return model.IntValue(t, n)
}

func boolValue(b bool) model.Value {
	if b {
		return model.IntValue(model.I32, 1)
	}
	return model.IntValue(model.I32, 0)
}

func f32(v float64) float64 {
	return float64(float32(v))
}
