package vm

import "math"

func registerFloatArithmetic() {
	register(OpF32Add, binF32(func(a, b float32) float32 { return a + b }))
	register(OpF32Sub, binF32(func(a, b float32) float32 { return a - b }))
	register(OpF32Mul, binF32(func(a, b float32) float32 { return a * b }))
	register(OpF32Div, binF32(func(a, b float32) float32 { return a / b }))
	register(OpF32Eq, cmpF32(func(a, b float32) bool { return a == b }))
	register(OpF32Ne, cmpF32(func(a, b float32) bool { return a != b }))
	register(OpF32Lt, cmpF32(func(a, b float32) bool { return a < b }))
	register(OpF32Gt, cmpF32(func(a, b float32) bool { return a > b }))
	register(OpF32Le, cmpF32(func(a, b float32) bool { return a <= b }))
	register(OpF32Ge, cmpF32(func(a, b float32) bool { return a >= b }))
	register(OpF32Abs, unaryF32(func(a float32) float32 { return float32(math.Abs(float64(a))) }))
	register(OpF32Neg, unaryF32(func(a float32) float32 { return -a }))
	register(OpF32Ceil, unaryF32(func(a float32) float32 { return float32(math.Ceil(float64(a))) }))
	register(OpF32Floor, unaryF32(func(a float32) float32 { return float32(math.Floor(float64(a))) }))
	register(OpF32Trunc, unaryF32(func(a float32) float32 { return float32(math.Trunc(float64(a))) }))
	register(OpF32Sqrt, unaryF32(func(a float32) float32 { return float32(math.Sqrt(float64(a))) }))
	register(OpF32Min, binF32(f32Min))
	register(OpF32Max, binF32(f32Max))
	register(OpF32Copysign, binF32(func(a, b float32) float32 { return float32(math.Copysign(float64(a), float64(b))) }))

	register(OpF64Add, binF64(func(a, b float64) float64 { return a + b }))
	register(OpF64Sub, binF64(func(a, b float64) float64 { return a - b }))
	register(OpF64Mul, binF64(func(a, b float64) float64 { return a * b }))
	register(OpF64Div, binF64(func(a, b float64) float64 { return a / b }))
	register(OpF64Eq, cmpF64(func(a, b float64) bool { return a == b }))
	register(OpF64Ne, cmpF64(func(a, b float64) bool { return a != b }))
	register(OpF64Lt, cmpF64(func(a, b float64) bool { return a < b }))
	register(OpF64Gt, cmpF64(func(a, b float64) bool { return a > b }))
	register(OpF64Le, cmpF64(func(a, b float64) bool { return a <= b }))
	register(OpF64Ge, cmpF64(func(a, b float64) bool { return a >= b }))
	register(OpF64Abs, unaryF64(math.Abs))
	register(OpF64Neg, unaryF64(func(a float64) float64 { return -a }))
	register(OpF64Ceil, unaryF64(math.Ceil))
	register(OpF64Floor, unaryF64(math.Floor))
	register(OpF64Trunc, unaryF64(math.Trunc))
	register(OpF64Sqrt, unaryF64(math.Sqrt))
	register(OpF64Min, binF64(f64Min))
	register(OpF64Max, binF64(f64Max))
	register(OpF64Copysign, binF64(math.Copysign))
}

// f32Min/f32Max/f64Min/f64Max follow IEEE-754 minNum/maxNum: NaN is not
// propagated unless both operands are NaN (spec.md §4.4.6 "IEEE-754 float
// semantics").
func f32Min(a, b float32) float32 { return float32(f64Min(float64(a), float64(b))) }
func f32Max(a, b float32) float32 { return float32(f64Max(float64(a), float64(b))) }

func f64Min(a, b float64) float64 {
	if math.IsNaN(a) {
		return b
	}
	if math.IsNaN(b) {
		return a
	}
	return math.Min(a, b)
}

func f64Max(a, b float64) float64 {
	if math.IsNaN(a) {
		return b
	}
	if math.IsNaN(b) {
		return a
	}
	return math.Max(a, b)
}

func pop2F32(t *Thread) (float32, float32, bool) {
	b, ok2 := t.stack.popFloat32()
	a, ok1 := t.stack.popFloat32()
	return a, b, ok1 && ok2
}

func pop2F64(t *Thread) (float64, float64, bool) {
	b, ok2 := t.stack.popFloat64()
	a, ok1 := t.stack.popFloat64()
	return a, b, ok1 && ok2
}

func binF32(f func(a, b float32) float32) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		a, b, ok := pop2F32(t)
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		t.stack.pushFloat32(f(a, b))
		return advance(0), nil
	}
}

func unaryF32(f func(a float32) float32) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		a, ok := t.stack.popFloat32()
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		t.stack.pushFloat32(f(a))
		return advance(0), nil
	}
}

func cmpF32(f func(a, b float32) bool) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		a, b, ok := pop2F32(t)
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		t.stack.pushBool(f(a, b))
		return advance(0), nil
	}
}

func binF64(f func(a, b float64) float64) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		a, b, ok := pop2F64(t)
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		t.stack.pushFloat64(f(a, b))
		return advance(0), nil
	}
}

func unaryF64(f func(a float64) float64) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		a, ok := t.stack.popFloat64()
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		t.stack.pushFloat64(f(a))
		return advance(0), nil
	}
}

func cmpF64(f func(a, b float64) bool) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		a, b, ok := pop2F64(t)
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		t.stack.pushBool(f(a, b))
		return advance(0), nil
	}
}
