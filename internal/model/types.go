package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// ValueType is the runtime type of a register, constant, or opcode slot.
type ValueType string

const (
	I32 ValueType = "i32"
	I64 ValueType = "i64"
	F32 ValueType = "f32"
	F64 ValueType = "f64"
)

func (t ValueType) Valid() bool {
	switch t {
	case I32, I64, F32, F64:
		return true
	}
	return false
}

// IsFloat reports whether values of this type carry a floating-point payload.
func (t ValueType) IsFloat() bool {
	return t == F32 || t == F64
}

// Category is the logic-engine classification of an opcode.
type Category string

const (
	CategorySet        Category = "set"
	CategoryProperty   Category = "property"
	CategoryComparison Category = "comparison"
	CategoryDecision   Category = "decision"
	CategoryOrdering   Category = "ordering"
	CategoryAction     Category = "action"
)

func (c Category) Valid() bool {
	switch c {
	case CategorySet, CategoryProperty, CategoryComparison, CategoryDecision, CategoryOrdering, CategoryAction:
		return true
	}
	return false
}

// Opcode describes one entry of the host-declared instruction catalogue.
// Descriptors are immutable once the catalogue is built.
type Opcode struct {
	Name     string      `json:"name"`
	Operands []ValueType `json:"operands"`
	Result   ValueType   `json:"result"`
	Pure     bool        `json:"pure"`
	Category Category    `json:"category"`

	// Weight biases random sampling toward or away from this opcode.
	// Zero means the default weight of one.
	Weight int `json:"weight,omitempty"`
}

// Value is a typed scalar. Integer types carry Int, float types carry Float.
type Value struct {
	Type  ValueType `json:"type"`
	Int   int64     `json:"int,omitempty"`
	Float float64   `json:"float,omitempty"`
}

func IntValue(t ValueType, v int64) Value     { return Value{Type: t, Int: v} }
func FloatValue(t ValueType, v float64) Value { return Value{Type: t, Float: v} }

// IsZero reports whether the value equals the default value of its type.
func (v Value) IsZero() bool {
	if v.Type.IsFloat() {
		return v.Float == 0
	}
	return v.Int == 0
}

// OperandKind discriminates the two operand sources.
type OperandKind string

const (
	OperandRegister OperandKind = "register"
	OperandConst    OperandKind = "const"
)

// Operand is one input of an instruction: either a register index or an
// inline constant.
type Operand struct {
	Kind     OperandKind `json:"kind"`
	Register int         `json:"register,omitempty"`
	Const    Value       `json:"const,omitempty"`
}

func RegisterOperand(index int) Operand { return Operand{Kind: OperandRegister, Register: index} }
func ConstOperand(v Value) Operand      { return Operand{Kind: OperandConst, Const: v} }

// Instruction applies one catalogue opcode to its operand sources and writes
// the result register.
type Instruction struct {
	Opcode   string    `json:"opcode"`
	Operands []Operand `json:"operands"`
	Result   int       `json:"result"`
}

// Signature is the entry point every genome of a run is bound to.
type Signature struct {
	Name    string      `json:"name"`
	Params  []ValueType `json:"params"`
	Results []ValueType `json:"results"`
}

// WorkSet configures how many scratch registers of each type a genome gets
// beyond its parameter and result registers.
type WorkSet struct {
	I32 int `json:"i32"`
	I64 int `json:"i64"`
	F32 int `json:"f32"`
	F64 int `json:"f64"`
}

func (w WorkSet) Total() int {
	return w.I32 + w.I64 + w.F32 + w.F64
}

// Registers returns the full register file for a genome: parameters first,
// then result registers, then work registers grouped by type.
func Registers(sig Signature, work WorkSet) []ValueType {
	regs := make([]ValueType, 0, len(sig.Params)+len(sig.Results)+work.Total())
	regs = append(regs, sig.Params...)
	regs = append(regs, sig.Results...)
	for i := 0; i < work.I32; i++ {
		regs = append(regs, I32)
	}
	for i := 0; i < work.I64; i++ {
		regs = append(regs, I64)
	}
	for i := 0; i < work.F32; i++ {
		regs = append(regs, F32)
	}
	for i := 0; i < work.F64; i++ {
		regs = append(regs, F64)
	}
	return regs
}

// OutputRegisters returns the indices the signature designates as outputs.
// Result registers sit immediately after the parameters.
func OutputRegisters(sig Signature) []int {
	out := make([]int, len(sig.Results))
	for i := range sig.Results {
		out[i] = len(sig.Params) + i
	}
	return out
}

// Genome is one candidate program: an ordered instruction sequence over a
// fixed typed register file, bound to exactly one entry signature.
type Genome struct {
	VersionedRecord
	ID           string        `json:"id"`
	Signature    string        `json:"signature"`
	Registers    []ValueType   `json:"registers"`
	Instructions []Instruction `json:"instructions"`
}

// Population is the persistent view of one generation.
type Population struct {
	VersionedRecord
	ID         string   `json:"id"`
	GenomeIDs  []string `json:"genome_ids"`
	Generation int      `json:"generation"`
}

// RunSummary is the persisted header of one evolution run.
type RunSummary struct {
	VersionedRecord
	RunID         string  `json:"run_id"`
	Problem       string  `json:"problem"`
	Seed          int64   `json:"seed"`
	Generations   int     `json:"generations"`
	StopReason    string  `json:"stop_reason"`
	BestScore     float64 `json:"best_score"`
	HasScore      bool    `json:"has_score"`
	ElapsedMillis int64   `json:"elapsed_millis"`
}

// TestCase binds concrete entry-point inputs to whatever oracle context the
// host's score and compare functions need. Context is opaque to the engine.
type TestCase struct {
	Inputs  []Value `json:"inputs"`
	Context any     `json:"-"`
}

// OutcomeKind classifies a single sandboxed execution.
type OutcomeKind string

const (
	OutcomeValue   OutcomeKind = "value"
	OutcomeTrap    OutcomeKind = "trap"
	OutcomeTimeout OutcomeKind = "timeout"
)

// CaseOutcome records one test-case execution for one genome.
type CaseOutcome struct {
	Kind   OutcomeKind `json:"kind"`
	Values []Value     `json:"values,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

// FitnessRecord bundles everything the host comparator may consult when
// ranking a genome. The engine never interprets Score or ZeroFitness on its
// own.
type FitnessRecord struct {
	GenomeID    string        `json:"genome_id"`
	Outcomes    []CaseOutcome `json:"outcomes"`
	Score       float64       `json:"score"`
	HasScore    bool          `json:"has_score"`
	ZeroFitness bool          `json:"zero_fitness"`
}

// TopGenomeRecord pairs a persisted genome with the record it earned.
type TopGenomeRecord struct {
	Rank   int           `json:"rank"`
	Genome Genome        `json:"genome"`
	Record FitnessRecord `json:"record"`
}

// GenerationDiagnostics summarizes one completed generation of a run.
type GenerationDiagnostics struct {
	Generation   int     `json:"generation"`
	BestScore    float64 `json:"best_score"`
	MeanScore    float64 `json:"mean_score"`
	MinScore     float64 `json:"min_score"`
	TrapCount    int     `json:"trap_count"`
	TimeoutCount int     `json:"timeout_count"`
	ZeroFitness  int     `json:"zero_fitness_count"`
}
