package exec

import (
	"math"

	"epigonos/internal/model"
)

// kernelFn computes one instruction. The bool is false when the kernel
// declines to write the result register, which mirrors the division-by-zero
// rule: the result is left untouched instead of trapping.
type kernelFn func(mem *Memory, args []model.Value) (model.Value, bool)

type kernelSpec struct {
	operands    []model.ValueType
	result      model.ValueType
	category    model.Category
	pure        bool
	needsMemory bool
	fn          kernelFn
}

// kernels is the interpreter's full capability, keyed by opcode name.
// Catalogues reference a subset of these names (or import-binding names).
var kernels = buildKernels()

// Kernel returns the catalogue descriptor for a named interpreter kernel,
// so hosts can assemble catalogues over the interpreter's capability.
func Kernel(name string) (model.Opcode, bool) {
	spec, ok := kernels[name]
	if !ok {
		return model.Opcode{}, false
	}
	return model.Opcode{
		Name:     name,
		Operands: append([]model.ValueType(nil), spec.operands...),
		Result:   spec.result,
		Pure:     spec.pure,
		Category: spec.category,
	}, true
}

// KernelNames returns the names of every interpreter kernel.
func KernelNames() []string {
	out := make([]string, 0, len(kernels))
	for name := range kernels {
		out = append(out, name)
	}
	return out
}

func buildKernels() map[string]kernelSpec {
	table := map[string]kernelSpec{}

	add := func(name string, operands []model.ValueType, result model.ValueType, category model.Category, fn kernelFn) {
		table[name] = kernelSpec{operands: operands, result: result, category: category, pure: true, fn: fn}
	}

	intTypes := []model.ValueType{model.I32, model.I64}
	floatTypes := []model.ValueType{model.F32, model.F64}
	allTypes := []model.ValueType{model.I32, model.I64, model.F32, model.F64}

	for _, t := range allTypes {
		t := t
		two := []model.ValueType{t, t}
		one := []model.ValueType{t}

		add(string(t)+".copy", one, t, model.CategorySet, func(_ *Memory, a []model.Value) (model.Value, bool) {
			return a[0], true
		})
		add(string(t)+".add", two, t, model.CategorySet, arith(t, func(x, y int64) int64 { return x + y }, func(x, y float64) float64 { return x + y }))
		add(string(t)+".sub", two, t, model.CategorySet, arith(t, func(x, y int64) int64 { return x - y }, func(x, y float64) float64 { return x - y }))
		add(string(t)+".mul", two, t, model.CategorySet, arith(t, func(x, y int64) int64 { return x * y }, func(x, y float64) float64 { return x * y }))
		add(string(t)+".div", two, t, model.CategorySet, div(t))
		add(string(t)+".neg", one, t, model.CategorySet, unary(t, func(x int64) int64 { return -x }, func(x float64) float64 { return -x }))
		add(string(t)+".abs", one, t, model.CategoryProperty, unary(t, absInt, math.Abs))

		add(string(t)+".min", two, t, model.CategoryOrdering, arith(t, minInt, math.Min))
		add(string(t)+".max", two, t, model.CategoryOrdering, arith(t, maxInt, math.Max))
		add(string(t)+".clamp", []model.ValueType{t, t, t}, t, model.CategoryOrdering, clamp(t))

		add(string(t)+".eq", two, model.I32, model.CategoryComparison, compare(t, func(c int) bool { return c == 0 }))
		add(string(t)+".ne", two, model.I32, model.CategoryComparison, compare(t, func(c int) bool { return c != 0 }))
		add(string(t)+".lt", two, model.I32, model.CategoryComparison, compare(t, func(c int) bool { return c < 0 }))
		add(string(t)+".gt", two, model.I32, model.CategoryComparison, compare(t, func(c int) bool { return c > 0 }))
		add(string(t)+".le", two, model.I32, model.CategoryComparison, compare(t, func(c int) bool { return c <= 0 }))
		add(string(t)+".ge", two, model.I32, model.CategoryComparison, compare(t, func(c int) bool { return c >= 0 }))
		add(string(t)+".eqz", one, model.I32, model.CategoryComparison, func(_ *Memory, a []model.Value) (model.Value, bool) {
			return boolValue(a[0].IsZero()), true
		})

		add(string(t)+".select", []model.ValueType{model.I32, t, t}, t, model.CategoryDecision, func(_ *Memory, a []model.Value) (model.Value, bool) {
			if a[0].Int != 0 {
				return a[1], true
			}
			return a[2], true
		})

		loadName := "mem.load." + string(t)
		spec := kernelSpec{operands: []model.ValueType{model.I32}, result: t, category: model.CategoryProperty, pure: true, needsMemory: true, fn: load(t)}
		table[loadName] = spec

		storeName := "mem.store." + string(t)
		table[storeName] = kernelSpec{operands: []model.ValueType{model.I32, t}, result: t, category: model.CategoryAction, needsMemory: true, fn: store(t)}
	}

	for _, t := range intTypes {
		t := t
		two := []model.ValueType{t, t}
		add(string(t)+".rem", two, t, model.CategorySet, rem(t))
		add(string(t)+".and", two, t, model.CategorySet, arith(t, func(x, y int64) int64 { return x & y }, nil))
		add(string(t)+".or", two, t, model.CategorySet, arith(t, func(x, y int64) int64 { return x | y }, nil))
		add(string(t)+".xor", two, t, model.CategorySet, arith(t, func(x, y int64) int64 { return x ^ y }, nil))
		add(string(t)+".shl", two, t, model.CategorySet, shift(t, false))
		add(string(t)+".shr", two, t, model.CategorySet, shift(t, true))
	}

	for _, t := range floatTypes {
		t := t
		one := []model.ValueType{t}
		add(string(t)+".sqrt", one, t, model.CategorySet, unary(t, nil, math.Sqrt))
		add(string(t)+".floor", one, t, model.CategorySet, unary(t, nil, math.Floor))
		add(string(t)+".ceil", one, t, model.CategorySet, unary(t, nil, math.Ceil))
		add(string(t)+".nearest", one, t, model.CategorySet, unary(t, nil, math.RoundToEven))
	}

	// Conversions between the integer and float families.
	add("f64.of.i32", []model.ValueType{model.I32}, model.F64, model.CategorySet, func(_ *Memory, a []model.Value) (model.Value, bool) {
		return model.FloatValue(model.F64, float64(a[0].Int)), true
	})
	add("i32.of.f64", []model.ValueType{model.F64}, model.I32, model.CategorySet, func(_ *Memory, a []model.Value) (model.Value, bool) {
		return model.IntValue(model.I32, int64(int32(a[0].Float))), true
	})
	add("i64.of.i32", []model.ValueType{model.I32}, model.I64, model.CategorySet, func(_ *Memory, a []model.Value) (model.Value, bool) {
		return model.IntValue(model.I64, a[0].Int), true
	})
	add("i32.of.i64", []model.ValueType{model.I64}, model.I32, model.CategorySet, func(_ *Memory, a []model.Value) (model.Value, bool) {
		return model.IntValue(model.I32, int64(int32(a[0].Int))), true
	})

	return table
}

func arith(t model.ValueType, ints func(x, y int64) int64, floats func(x, y float64) float64) kernelFn {
	return func(_ *Memory, a []model.Value) (model.Value, bool) {
		if t.IsFloat() {
			return fit(t, 0, floats(a[0].Float, a[1].Float)), true
		}
		return fit(t, ints(a[0].Int, a[1].Int), 0), true
	}
}

func unary(t model.ValueType, ints func(x int64) int64, floats func(x float64) float64) kernelFn {
	return func(_ *Memory, a []model.Value) (model.Value, bool) {
		if t.IsFloat() {
			return fit(t, 0, floats(a[0].Float)), true
		}
		return fit(t, ints(a[0].Int), 0), true
	}
}

// div leaves the result untouched when the divisor is zero.
func div(t model.ValueType) kernelFn {
	return func(_ *Memory, a []model.Value) (model.Value, bool) {
		if a[1].IsZero() {
			return model.Value{}, false
		}
		if t.IsFloat() {
			return fit(t, 0, a[0].Float/a[1].Float), true
		}
		return fit(t, a[0].Int/a[1].Int, 0), true
	}
}

func rem(t model.ValueType) kernelFn {
	return func(_ *Memory, a []model.Value) (model.Value, bool) {
		if a[1].Int == 0 {
			return model.Value{}, false
		}
		return fit(t, a[0].Int%a[1].Int, 0), true
	}
}

func shift(t model.ValueType, right bool) kernelFn {
	width := uint64(64)
	if t == model.I32 {
		width = 32
	}
	return func(_ *Memory, a []model.Value) (model.Value, bool) {
		by := uint64(a[1].Int) % width
		if right {
			return fit(t, a[0].Int>>by, 0), true
		}
		return fit(t, a[0].Int<<by, 0), true
	}
}

func clamp(t model.ValueType) kernelFn {
	return func(_ *Memory, a []model.Value) (model.Value, bool) {
		if t.IsFloat() {
			lo, hi := a[1].Float, a[2].Float
			if lo > hi {
				lo, hi = hi, lo
			}
			return fit(t, 0, math.Min(math.Max(a[0].Float, lo), hi)), true
		}
		lo, hi := a[1].Int, a[2].Int
		if lo > hi {
			lo, hi = hi, lo
		}
		return fit(t, minInt(maxInt(a[0].Int, lo), hi), 0), true
	}
}

func compare(t model.ValueType, pred func(c int) bool) kernelFn {
	return func(_ *Memory, a []model.Value) (model.Value, bool) {
		c := 0
		if t.IsFloat() {
			if a[0].Float < a[1].Float {
				c = -1
			} else if a[0].Float > a[1].Float {
				c = 1
			}
		} else {
			if a[0].Int < a[1].Int {
				c = -1
			} else if a[0].Int > a[1].Int {
				c = 1
			}
		}
		return boolValue(pred(c)), true
	}
}

func load(t model.ValueType) kernelFn {
	return func(mem *Memory, a []model.Value) (model.Value, bool) {
		offset := a[0].Int
		switch t {
		case model.I32:
			return model.IntValue(t, int64(int32(mem.LoadUint64(offset, 4)))), true
		case model.I64:
			return model.IntValue(t, int64(mem.LoadUint64(offset, 8))), true
		case model.F32:
			return model.FloatValue(t, float64(mem.LoadFloat32(offset))), true
		default:
			return model.FloatValue(t, mem.LoadFloat64(offset)), true
		}
	}
}

// store writes the value through to memory and also returns it, so every
// instruction keeps the single-result shape.
func store(t model.ValueType) kernelFn {
	return func(mem *Memory, a []model.Value) (model.Value, bool) {
		offset := a[0].Int
		v := a[1]
		switch t {
		case model.I32:
			mem.StoreUint64(offset, uint64(uint32(v.Int)), 4)
		case model.I64:
			mem.StoreUint64(offset, uint64(v.Int), 8)
		case model.F32:
			mem.StoreFloat32(offset, float32(v.Float))
		default:
			mem.StoreFloat64(offset, v.Float)
		}
		return v, true
	}
}

// fit wraps a raw result onto the kernel's result type.
func fit(t model.ValueType, i int64, f float64) model.Value {
	switch t {
	case model.I32:
		return model.IntValue(t, int64(int32(i)))
	case model.I64:
		return model.IntValue(t, i)
	case model.F32:
		return model.FloatValue(t, f32(f))
	default:
		return model.FloatValue(t, f)
	}
}

func absInt(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

func minInt(x, y int64) int64 {
	if x < y {
		return x
	}
	return y
}

func maxInt(x, y int64) int64 {
	if x > y {
		return x
	}
	return y
}
