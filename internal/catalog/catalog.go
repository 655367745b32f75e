package catalog

import (
	"errors"
	"fmt"

	"epigonos/internal/model"
)

// ErrUnsatisfiable marks a catalogue that cannot meet the type requirements
// of an entry signature. It is a setup-time configuration failure.
var ErrUnsatisfiable = errors.New("catalogue cannot satisfy signature")

// Catalogue is the closed, immutable table of opcode descriptors available
// to a run. It is validated once when built and never changes afterwards.
type Catalogue struct {
	ops        []model.Opcode
	byName     map[string]model.Opcode
	byResult   map[model.ValueType][]model.Opcode
	byCategory map[model.Category][]model.Opcode
}

// New validates the descriptors and builds the lookup indexes.
func New(ops []model.Opcode) (*Catalogue, error) {
	if len(ops) == 0 {
		return nil, fmt.Errorf("catalogue requires at least one opcode")
	}

	c := &Catalogue{
		ops:        make([]model.Opcode, 0, len(ops)),
		byName:     make(map[string]model.Opcode, len(ops)),
		byResult:   map[model.ValueType][]model.Opcode{},
		byCategory: map[model.Category][]model.Opcode{},
	}
	for i, op := range ops {
		if op.Name == "" {
			return nil, fmt.Errorf("opcode name is required at index %d", i)
		}
		if _, exists := c.byName[op.Name]; exists {
			return nil, fmt.Errorf("duplicate opcode name: %s", op.Name)
		}
		if !op.Result.Valid() {
			return nil, fmt.Errorf("opcode %s: invalid result type %q", op.Name, op.Result)
		}
		for pos, t := range op.Operands {
			if !t.Valid() {
				return nil, fmt.Errorf("opcode %s: invalid operand type %q at position %d", op.Name, t, pos)
			}
		}
		if !op.Category.Valid() {
			return nil, fmt.Errorf("opcode %s: invalid category %q", op.Name, op.Category)
		}
		if op.Weight < 0 {
			return nil, fmt.Errorf("opcode %s: weight must be >= 0", op.Name)
		}
		if op.Weight == 0 {
			op.Weight = 1
		}

		c.ops = append(c.ops, op)
		c.byName[op.Name] = op
		c.byResult[op.Result] = append(c.byResult[op.Result], op)
		c.byCategory[op.Category] = append(c.byCategory[op.Category], op)
	}
	return c, nil
}

// Len returns the number of descriptors in the catalogue.
func (c *Catalogue) Len() int {
	return len(c.ops)
}

// All returns every descriptor in declaration order.
func (c *Catalogue) All() []model.Opcode {
	out := make([]model.Opcode, len(c.ops))
	copy(out, c.ops)
	return out
}

// Lookup returns the descriptors tagged with the given category, or every
// descriptor when the category is empty.
func (c *Catalogue) Lookup(category model.Category) []model.Opcode {
	if category == "" {
		return c.All()
	}
	ops := c.byCategory[category]
	out := make([]model.Opcode, len(ops))
	copy(out, ops)
	return out
}

// Compatible returns the descriptors whose result type equals t.
func (c *Catalogue) Compatible(t model.ValueType) []model.Opcode {
	ops := c.byResult[t]
	out := make([]model.Opcode, len(ops))
	copy(out, ops)
	return out
}

// ByName resolves a descriptor by opcode name.
func (c *Catalogue) ByName(name string) (model.Opcode, bool) {
	op, ok := c.byName[name]
	return op, ok
}

// Satisfies checks that every result type the signature requires is
// producible from the signature's parameters and constants through some
// chain of catalogue opcodes. It must run once at setup, before any
// population is built.
func (c *Catalogue) Satisfies(sig model.Signature) error {
	if len(sig.Results) == 0 {
		return fmt.Errorf("%w: signature %q declares no results", ErrUnsatisfiable, sig.Name)
	}

	// Constants may be drawn for any operand position, so an output type is
	// producible exactly when some opcode declares it as a result.
	for _, want := range sig.Results {
		if len(c.byResult[want]) == 0 {
			return fmt.Errorf("%w: no opcode produces result type %s required by signature %q", ErrUnsatisfiable, want, sig.Name)
		}
	}
	return nil
}
