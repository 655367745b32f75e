package exec

import (
	"context"
	"fmt"
	"time"

	"epigonos/internal/model"
)

// Compiler translates a validated genome into a runnable module. A genome is
// compiled exactly once per evaluation regardless of how many test cases it
// runs against.
type Compiler interface {
	Compile(g model.Genome, sig model.Signature, imports []ImportBinding, mem MemoryConfig) (Module, error)
}

// Module is an opaque compiled genome, produced by a Compiler and consumed
// by the Sandbox that understands it.
type Module interface {
	GenomeID() string
}

// Sandbox executes a compiled module against one input under resource
// limits. Execution faults never surface as errors: traps and timeouts are
// reported inside the outcome so one failing candidate cannot corrupt a run.
type Sandbox interface {
	Run(ctx context.Context, m Module, input []model.Value, limits ResourceLimits) model.CaseOutcome
}

// ResourceLimits bounds one execution. Fuel caps the number of executed
// instructions; WallClock bounds elapsed time. Zero means unlimited.
type ResourceLimits struct {
	Fuel      int64
	WallClock time.Duration
}

// HostFunc is the body of an import binding. state is the sandbox's private
// per-execution host state, mem the execution's private memory instance.
// Returning an error traps the execution.
type HostFunc func(state any, mem *Memory, args []model.Value) ([]model.Value, error)

// ImportBinding declares one host function available to genomes by name.
type ImportBinding struct {
	Name    string
	Params  []model.ValueType
	Results []model.ValueType
	Func    HostFunc
}

// DataBlock preloads bytes into linear memory at a fixed offset.
type DataBlock struct {
	Offset int
	Bytes  []byte
}

// MemoryConfig sizes the linear memory template shared read-only across
// executions. Every execution receives its own mutable copy.
type MemoryConfig struct {
	Pages   int
	Preload []DataBlock
}

// CodegenError reports a genome the code generator rejected even though it
// passed validation: the catalogue's declared contract diverges from the
// generator's real capability. It is fatal for the run.
type CodegenError struct {
	GenomeID string
	Opcode   string
	Reason   string
}

func (e *CodegenError) Error() string {
	return fmt.Sprintf("codegen rejected genome %s: opcode %q: %s", e.GenomeID, e.Opcode, e.Reason)
}
