package evo

import (
	"context"
	"fmt"
	"testing"

	"epigonos/internal/exec"
	"epigonos/internal/model"
)

// constGenome writes a fixed i32 into the single output register.
func constGenome(id string, v int64) model.Genome {
	sig := i32TestSig()
	return model.Genome{
		ID:        id,
		Signature: sig.Name,
		Registers: model.Registers(sig, model.WorkSet{}),
		Instructions: []model.Instruction{
			{
				Opcode:   "i32.copy",
				Operands: []model.Operand{model.ConstOperand(model.IntValue(model.I32, v))},
				Result:   1,
			},
		},
	}
}

// boomGenome routes its input through a host function that traps on
// negative arguments.
func boomGenome(id string) model.Genome {
	sig := i32TestSig()
	return model.Genome{
		ID:        id,
		Signature: sig.Name,
		Registers: model.Registers(sig, model.WorkSet{}),
		Instructions: []model.Instruction{
			{
				Opcode:   "check.positive",
				Operands: []model.Operand{model.RegisterOperand(0)},
				Result:   1,
			},
		},
	}
}

func positiveOnlyImport() exec.ImportBinding {
	return exec.ImportBinding{
		Name:    "check.positive",
		Params:  []model.ValueType{model.I32},
		Results: []model.ValueType{model.I32},
		Func: func(_ any, _ *exec.Memory, args []model.Value) ([]model.Value, error) {
			if args[0].Int < 0 {
				return nil, fmt.Errorf("negative input %d", args[0].Int)
			}
			return []model.Value{model.IntValue(model.I32, args[0].Int)}, nil
		},
	}
}

func i32Cases(inputs ...int64) []model.TestCase {
	cases := make([]model.TestCase, 0, len(inputs))
	for _, v := range inputs {
		cases = append(cases, model.TestCase{Inputs: []model.Value{model.IntValue(model.I32, v)}})
	}
	return cases
}

func sumOfOutputs(_ []model.TestCase, outcomes []model.CaseOutcome) float64 {
	total := 0.0
	for _, out := range outcomes {
		if out.Kind != model.OutcomeValue {
			continue
		}
		for _, v := range out.Values {
			total += float64(v.Int)
		}
	}
	return total
}

func TestEvaluateRecordsPerCaseOutcomes(t *testing.T) {
	interp := &exec.Interp{}
	ev := &Evaluator{
		Compiler:    interp,
		Sandbox:     interp,
		Imports:     []exec.ImportBinding{positiveOnlyImport()},
		Score:       sumOfOutputs,
		ZeroFitness: DefaultZeroFitness,
	}

	record, err := ev.Evaluate(context.Background(), boomGenome("b1"), i32TestSig(), i32Cases(3, -2, 5))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(record.Outcomes) != 3 {
		t.Fatalf("len(outcomes) = %d, want 3", len(record.Outcomes))
	}

	// The trapping middle case is an outcome, not an abort, and the
	// remaining cases still ran.
	wantKinds := []model.OutcomeKind{model.OutcomeValue, model.OutcomeTrap, model.OutcomeValue}
	for i, want := range wantKinds {
		if record.Outcomes[i].Kind != want {
			t.Errorf("case %d outcome = %s, want %s", i, record.Outcomes[i].Kind, want)
		}
	}
	if !record.HasScore || record.Score != 8 {
		t.Errorf("score = %v (has=%v), want 8", record.Score, record.HasScore)
	}
	if record.ZeroFitness {
		t.Error("record flagged zero fitness despite non-zero outputs")
	}
}

func TestEvaluateFailsOnCompileError(t *testing.T) {
	interp := &exec.Interp{}
	ev := &Evaluator{Compiler: interp, Sandbox: interp}

	g := constGenome("bad", 1)
	g.Instructions[0].Opcode = "no.such.op"
	if _, err := ev.Evaluate(context.Background(), g, i32TestSig(), i32Cases(1)); err == nil {
		t.Fatal("expected compile failure to surface as an error")
	}
}

func TestEvaluatePopulationKeepsRecordsInOwnSlots(t *testing.T) {
	interp := &exec.Interp{}
	ev := &Evaluator{
		Compiler: interp,
		Sandbox:  interp,
		Score:    sumOfOutputs,
	}

	genomes := make([]model.Genome, 16)
	for i := range genomes {
		genomes[i] = constGenome(fmt.Sprintf("c%d", i), int64(i))
	}

	scored, err := ev.EvaluatePopulation(context.Background(), genomes, i32TestSig(), i32Cases(0), 4)
	if err != nil {
		t.Fatalf("evaluate population: %v", err)
	}
	for i, sg := range scored {
		if sg.Genome.ID != genomes[i].ID {
			t.Fatalf("slot %d holds genome %s, want %s", i, sg.Genome.ID, genomes[i].ID)
		}
		if sg.Record.Score != float64(i) {
			t.Errorf("genome %s score = %v, want %d", sg.Genome.ID, sg.Record.Score, i)
		}
	}
}

func TestEvaluatePopulationOneFaultyGenomeDoesNotPoisonOthers(t *testing.T) {
	interp := &exec.Interp{}
	ev := &Evaluator{
		Compiler:    interp,
		Sandbox:     interp,
		Imports:     []exec.ImportBinding{positiveOnlyImport()},
		Score:       sumOfOutputs,
		ZeroFitness: DefaultZeroFitness,
	}

	genomes := []model.Genome{
		constGenome("good1", 7),
		boomGenome("faulty"),
		constGenome("good2", 9),
	}

	scored, err := ev.EvaluatePopulation(context.Background(), genomes, i32TestSig(), i32Cases(-1), 2)
	if err != nil {
		t.Fatalf("evaluate population: %v", err)
	}
	if scored[1].Record.Outcomes[0].Kind != model.OutcomeTrap {
		t.Fatalf("faulty genome outcome = %s, want trap", scored[1].Record.Outcomes[0].Kind)
	}
	if scored[0].Record.Score != 7 || scored[2].Record.Score != 9 {
		t.Errorf("neighbor scores = %v, %v, want 7, 9", scored[0].Record.Score, scored[2].Record.Score)
	}
}

func TestDefaultZeroFitness(t *testing.T) {
	value := func(v int64) model.CaseOutcome {
		return model.CaseOutcome{Kind: model.OutcomeValue, Values: []model.Value{model.IntValue(model.I32, v)}}
	}
	trap := model.CaseOutcome{Kind: model.OutcomeTrap, Reason: "boom"}
	timeout := model.CaseOutcome{Kind: model.OutcomeTimeout, Reason: "slow"}

	tests := []struct {
		name     string
		outcomes []model.CaseOutcome
		want     bool
	}{
		{"no outcomes", nil, true},
		{"all traps", []model.CaseOutcome{trap, trap}, true},
		{"all timeouts", []model.CaseOutcome{timeout}, true},
		{"only zero values", []model.CaseOutcome{value(0), trap, value(0)}, true},
		{"one meaningful value", []model.CaseOutcome{trap, value(3)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultZeroFitness(tt.outcomes); got != tt.want {
				t.Errorf("DefaultZeroFitness = %v, want %v", got, tt.want)
			}
		})
	}
}
