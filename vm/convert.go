package vm

import "math"

// registerConversions wires the numeric width/kind conversions (spec.md
// §4.4.6): integer truncation/extension, float widening/narrowing, and
// float<->integer conversion. Float-to-int conversions saturate at the
// target type's bounds and map NaN to 0, rather than trapping.
func registerConversions() {
	register(OpI32TruncateI64, unaryI64ToI32(func(a int64) int32 { return int32(a) }))
	register(OpI64ExtendI32S, unaryI32ToI64(func(a int32) int64 { return int64(a) }))
	register(OpI64ExtendI32U, unaryI32ToI64(func(a int32) int64 { return int64(uint32(a)) }))
	register(OpF32DemoteF64, unaryF64ToF32(func(a float64) float32 { return float32(a) }))
	register(OpF64PromoteF32, unaryF32ToF64(func(a float32) float64 { return float64(a) }))

	register(OpI32ConvertF32S, f32ToI32(func(a float64) int64 { return saturateI64(a, math.MinInt32, math.MaxInt32) }))
	register(OpI32ConvertF32U, f32ToI32(func(a float64) int64 { return int64(saturateU64(a, math.MaxUint32)) }))
	register(OpI32ConvertF64S, f64ToI32(func(a float64) int64 { return saturateI64(a, math.MinInt32, math.MaxInt32) }))
	register(OpI32ConvertF64U, f64ToI32(func(a float64) int64 { return int64(saturateU64(a, math.MaxUint32)) }))

	register(OpI64ConvertF32S, f32ToI64(func(a float64) int64 { return saturateI64(a, math.MinInt64, math.MaxInt64) }))
	register(OpI64ConvertF32U, f32ToI64(func(a float64) int64 { return int64(saturateU64(a, math.MaxUint64)) }))
	register(OpI64ConvertF64S, f64ToI64(func(a float64) int64 { return saturateI64(a, math.MinInt64, math.MaxInt64) }))
	register(OpI64ConvertF64U, f64ToI64(func(a float64) int64 { return int64(saturateU64(a, math.MaxUint64)) }))

	register(OpF32ConvertI32S, i32ToF32(func(a int32) float32 { return float32(a) }))
	register(OpF32ConvertI32U, i32ToF32(func(a int32) float32 { return float32(uint32(a)) }))
	register(OpF32ConvertI64S, i64ToF32(func(a int64) float32 { return float32(a) }))
	register(OpF32ConvertI64U, i64ToF32(func(a int64) float32 { return float32(uint64(a)) }))
	register(OpF64ConvertI32S, i32ToF64(func(a int32) float64 { return float64(a) }))
	register(OpF64ConvertI32U, i32ToF64(func(a int32) float64 { return float64(uint32(a)) }))
	register(OpF64ConvertI64S, i64ToF64(func(a int64) float64 { return float64(a) }))
	register(OpF64ConvertI64U, i64ToF64(func(a int64) float64 { return float64(uint64(a)) }))
}

// saturateI64 clamps a float to [lo, hi], mapping NaN to 0 (spec.md §4.4.6
// "saturating float-to-int conversion; NaN converts to zero").
func saturateI64(a float64, lo, hi int64) int64 {
	if math.IsNaN(a) {
		return 0
	}
	if a <= float64(lo) {
		return lo
	}
	if a >= float64(hi) {
		return hi
	}
	return int64(a)
}

func saturateU64(a float64, hi uint64) uint64 {
	if math.IsNaN(a) || a <= 0 {
		return 0
	}
	if a >= float64(hi) {
		return hi
	}
	return uint64(a)
}

func unaryI64ToI32(f func(a int64) int32) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		a, ok := t.stack.popInt64()
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		t.stack.pushInt32(f(a))
		return advance(0), nil
	}
}

func unaryI32ToI64(f func(a int32) int64) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		a, ok := t.stack.popInt32()
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		t.stack.pushInt64(f(a))
		return advance(0), nil
	}
}

func unaryF64ToF32(f func(a float64) float32) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		a, ok := t.stack.popFloat64()
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		t.stack.pushFloat32(f(a))
		return advance(0), nil
	}
}

func unaryF32ToF64(f func(a float32) float64) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		a, ok := t.stack.popFloat32()
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		t.stack.pushFloat64(f(a))
		return advance(0), nil
	}
}

func f32ToI32(f func(a float64) int64) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		a, ok := t.stack.popFloat32()
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		t.stack.pushInt32(int32(f(float64(a))))
		return advance(0), nil
	}
}

func f64ToI32(f func(a float64) int64) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		a, ok := t.stack.popFloat64()
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		t.stack.pushInt32(int32(f(a)))
		return advance(0), nil
	}
}

func f32ToI64(f func(a float64) int64) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		a, ok := t.stack.popFloat32()
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		t.stack.pushInt64(f(float64(a)))
		return advance(0), nil
	}
}

func f64ToI64(f func(a float64) int64) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		a, ok := t.stack.popFloat64()
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		t.stack.pushInt64(f(a))
		return advance(0), nil
	}
}

func i32ToF32(f func(a int32) float32) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		a, ok := t.stack.popInt32()
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		t.stack.pushFloat32(f(a))
		return advance(0), nil
	}
}

func i64ToF32(f func(a int64) float32) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		a, ok := t.stack.popInt64()
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		t.stack.pushFloat32(f(a))
		return advance(0), nil
	}
}

func i32ToF64(f func(a int32) float64) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		a, ok := t.stack.popInt32()
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		t.stack.pushFloat64(f(a))
		return advance(0), nil
	}
}

func i64ToF64(f func(a int64) float64) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		a, ok := t.stack.popInt64()
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		t.stack.pushFloat64(f(a))
		return advance(0), nil
	}
}
