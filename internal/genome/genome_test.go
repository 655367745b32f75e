package genome

import (
	"math/rand"
	"testing"

	"epigonos/internal/catalog"
	"epigonos/internal/model"
)

func testCatalogue(t *testing.T) *catalog.Catalogue {
	t.Helper()
	c, err := catalog.New([]model.Opcode{
		{Name: "i32.add", Operands: []model.ValueType{model.I32, model.I32}, Result: model.I32, Pure: true, Category: model.CategorySet},
		{Name: "i32.sub", Operands: []model.ValueType{model.I32, model.I32}, Result: model.I32, Pure: true, Category: model.CategorySet},
		{Name: "i32.lt", Operands: []model.ValueType{model.I32, model.I32}, Result: model.I32, Pure: true, Category: model.CategoryComparison},
		{Name: "i32.select", Operands: []model.ValueType{model.I32, model.I32, model.I32}, Result: model.I32, Pure: true, Category: model.CategoryDecision},
		{Name: "f64.add", Operands: []model.ValueType{model.F64, model.F64}, Result: model.F64, Pure: true, Category: model.CategorySet},
	})
	if err != nil {
		t.Fatalf("new catalogue: %v", err)
	}
	return c
}

func testSignature() model.Signature {
	return model.Signature{Name: "main", Params: []model.ValueType{model.I32}, Results: []model.ValueType{model.I32}}
}

func TestValidateAcceptsHandBuiltGenome(t *testing.T) {
	cat := testCatalogue(t)
	sig := testSignature()
	g := model.Genome{
		Signature: "main",
		Registers: model.Registers(sig, model.WorkSet{I32: 2}),
		Instructions: []model.Instruction{
			{Opcode: "i32.add", Operands: []model.Operand{model.RegisterOperand(0), model.ConstOperand(model.IntValue(model.I32, 3))}, Result: 2},
			{Opcode: "i32.sub", Operands: []model.Operand{model.RegisterOperand(2), model.RegisterOperand(0)}, Result: 1},
		},
	}
	if err := Validate(g, sig, cat); err != nil {
		t.Fatalf("expected valid genome: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cat := testCatalogue(t)
	sig := testSignature()
	regs := model.Registers(sig, model.WorkSet{I32: 2})

	cases := []struct {
		name string
		g    model.Genome
	}{
		{
			name: "wrong signature binding",
			g:    model.Genome{Signature: "other", Registers: regs},
		},
		{
			name: "unknown opcode",
			g: model.Genome{Signature: "main", Registers: regs, Instructions: []model.Instruction{
				{Opcode: "i32.nope", Operands: []model.Operand{model.RegisterOperand(0), model.RegisterOperand(0)}, Result: 1},
			}},
		},
		{
			name: "operand arity mismatch",
			g: model.Genome{Signature: "main", Registers: regs, Instructions: []model.Instruction{
				{Opcode: "i32.add", Operands: []model.Operand{model.RegisterOperand(0)}, Result: 1},
			}},
		},
		{
			name: "read before write",
			g: model.Genome{Signature: "main", Registers: regs, Instructions: []model.Instruction{
				{Opcode: "i32.add", Operands: []model.Operand{model.RegisterOperand(2), model.RegisterOperand(0)}, Result: 1},
			}},
		},
		{
			name: "operand type mismatch",
			g: model.Genome{Signature: "main", Registers: append(append([]model.ValueType(nil), regs...), model.F64), Instructions: []model.Instruction{
				{Opcode: "f64.add", Operands: []model.Operand{model.RegisterOperand(0), model.RegisterOperand(0)}, Result: 4},
			}},
		},
		{
			name: "constant type mismatch",
			g: model.Genome{Signature: "main", Registers: regs, Instructions: []model.Instruction{
				{Opcode: "i32.add", Operands: []model.Operand{model.ConstOperand(model.FloatValue(model.F64, 1)), model.RegisterOperand(0)}, Result: 1},
			}},
		},
		{
			name: "result register type mismatch",
			g: model.Genome{Signature: "main", Registers: append(append([]model.ValueType(nil), regs...), model.F64), Instructions: []model.Instruction{
				{Opcode: "i32.add", Operands: []model.Operand{model.RegisterOperand(0), model.RegisterOperand(0)}, Result: 4},
			}},
		},
		{
			name: "output never written",
			g:    model.Genome{Signature: "main", Registers: regs},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := Validate(tc.g, sig, cat); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestRandomGenomesAlwaysValidate(t *testing.T) {
	cat := testCatalogue(t)
	sig := testSignature()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		g, err := Random(sig, cat, model.WorkSet{I32: 4}, LengthRange{Min: 1, Max: 12}, rng)
		if err != nil {
			t.Fatalf("random genome %d: %v", i, err)
		}
		if err := Validate(g, sig, cat); err != nil {
			t.Fatalf("random genome %d failed validation: %v", i, err)
		}
	}
}

func TestRandomIsDeterministicPerSeed(t *testing.T) {
	cat := testCatalogue(t)
	sig := testSignature()

	a, err := Random(sig, cat, model.WorkSet{I32: 4}, LengthRange{Min: 3, Max: 8}, rand.New(rand.NewSource(99)))
	if err != nil {
		t.Fatalf("random: %v", err)
	}
	b, err := Random(sig, cat, model.WorkSet{I32: 4}, LengthRange{Min: 3, Max: 8}, rand.New(rand.NewSource(99)))
	if err != nil {
		t.Fatalf("random: %v", err)
	}

	if len(a.Instructions) != len(b.Instructions) {
		t.Fatalf("lengths differ: %d vs %d", len(a.Instructions), len(b.Instructions))
	}
	for i := range a.Instructions {
		ai, bi := a.Instructions[i], b.Instructions[i]
		if ai.Opcode != bi.Opcode || ai.Result != bi.Result || len(ai.Operands) != len(bi.Operands) {
			t.Fatalf("instruction %d differs: %+v vs %+v", i, ai, bi)
		}
		for p := range ai.Operands {
			if ai.Operands[p] != bi.Operands[p] {
				t.Fatalf("instruction %d operand %d differs", i, p)
			}
		}
	}
}

func TestRandomRespectsLengthRange(t *testing.T) {
	cat := testCatalogue(t)
	sig := testSignature()
	rng := rand.New(rand.NewSource(5))

	for i := 0; i < 50; i++ {
		g, err := Random(sig, cat, model.WorkSet{I32: 4}, LengthRange{Min: 2, Max: 6}, rng)
		if err != nil {
			t.Fatalf("random: %v", err)
		}
		// One extra instruction may be appended per unwritten output.
		if len(g.Instructions) < 2 || len(g.Instructions) > 6+len(sig.Results) {
			t.Fatalf("length %d outside expected bounds", len(g.Instructions))
		}
	}
}

func TestCloneIsDeepAndIndependent(t *testing.T) {
	sig := testSignature()
	g := model.Genome{
		ID:        "parent",
		Signature: "main",
		Registers: model.Registers(sig, model.WorkSet{I32: 2}),
		Instructions: []model.Instruction{
			{Opcode: "i32.add", Operands: []model.Operand{model.RegisterOperand(0), model.RegisterOperand(0)}, Result: 1},
		},
	}

	clone := Clone(g, "child")
	if clone.ID != "child" {
		t.Fatalf("clone id = %q", clone.ID)
	}
	clone.Instructions[0].Opcode = "i32.sub"
	clone.Instructions[0].Operands[0] = model.ConstOperand(model.IntValue(model.I32, 42))
	clone.Registers[0] = model.F64

	if g.Instructions[0].Opcode != "i32.add" {
		t.Fatal("clone aliases parent instructions")
	}
	if g.Instructions[0].Operands[0].Kind != model.OperandRegister {
		t.Fatal("clone aliases parent operands")
	}
	if g.Registers[0] != model.I32 {
		t.Fatal("clone aliases parent registers")
	}
}

func TestScopeHelpers(t *testing.T) {
	sig := testSignature()
	g := model.Genome{
		Signature: "main",
		Registers: model.Registers(sig, model.WorkSet{I32: 2}),
		Instructions: []model.Instruction{
			{Opcode: "i32.add", Operands: []model.Operand{model.RegisterOperand(0), model.RegisterOperand(0)}, Result: 2},
			{Opcode: "i32.add", Operands: []model.Operand{model.RegisterOperand(2), model.RegisterOperand(3)}, Result: 1},
		},
	}

	defined := DefinedAt(g, sig, 1)
	if !defined[0] || !defined[2] || defined[1] || defined[3] {
		t.Fatalf("unexpected defined set after cut 1: %v", defined)
	}

	needs := SuffixNeeds(g, 1)
	if len(needs) != 2 || needs[0] != 2 || needs[1] != 3 {
		t.Fatalf("unexpected suffix needs: %v", needs)
	}

	writes := WritesFrom(g, 1)
	if !writes[1] || writes[2] {
		t.Fatalf("unexpected suffix writes: %v", writes)
	}
}
