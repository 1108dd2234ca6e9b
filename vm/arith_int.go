package vm

import "math/bits"

// registerArithmetic wires the arithmetic/bitwise/comparison/float/
// conversion instructions (0x02xx, spec.md §4.4.6). Integer arithmetic
// wraps on overflow except division/remainder, which trap; comparisons and
// eqz/nez push a boolean 0/1 (spec.md §4.4.6 "two's-complement wraparound
// arithmetic").
func registerArithmetic() {
	registerI32Arithmetic()
	registerI64Arithmetic()
	registerFloatArithmetic()
	registerConversions()
}

func registerI32Arithmetic() {
	register(OpI32Add, binI32(func(a, b int32) int32 { return a + b }))
	register(OpI32Sub, binI32(func(a, b int32) int32 { return a - b }))
	register(OpI32Mul, binI32(func(a, b int32) int32 { return a * b }))
	register(OpI32DivS, i32DivS)
	register(OpI32DivU, i32DivU)
	register(OpI32RemS, i32RemS)
	register(OpI32RemU, i32RemU)

	register(OpI32Eqz, unaryI32Bool(func(a int32) bool { return a == 0 }))
	register(OpI32Nez, unaryI32Bool(func(a int32) bool { return a != 0 }))
	register(OpI32Eq, cmpI32(func(a, b int32) bool { return a == b }))
	register(OpI32Ne, cmpI32(func(a, b int32) bool { return a != b }))
	register(OpI32LtS, cmpI32(func(a, b int32) bool { return a < b }))
	register(OpI32LtU, cmpU32(func(a, b uint32) bool { return a < b }))
	register(OpI32GtS, cmpI32(func(a, b int32) bool { return a > b }))
	register(OpI32GtU, cmpU32(func(a, b uint32) bool { return a > b }))
	register(OpI32LeS, cmpI32(func(a, b int32) bool { return a <= b }))
	register(OpI32LeU, cmpU32(func(a, b uint32) bool { return a <= b }))
	register(OpI32GeS, cmpI32(func(a, b int32) bool { return a >= b }))
	register(OpI32GeU, cmpU32(func(a, b uint32) bool { return a >= b }))

	register(OpI32And, binU32(func(a, b uint32) uint32 { return a & b }))
	register(OpI32Or, binU32(func(a, b uint32) uint32 { return a | b }))
	register(OpI32Xor, binU32(func(a, b uint32) uint32 { return a ^ b }))
	register(OpI32Not, unaryU32(func(a uint32) uint32 { return ^a }))
	register(OpI32ShiftLeft, binU32(func(a, b uint32) uint32 { return a << (b & 31) }))
	register(OpI32ShiftRightS, binI32(func(a, b int32) int32 { return a >> (uint32(b) & 31) }))
	register(OpI32ShiftRightU, binU32(func(a, b uint32) uint32 { return a >> (b & 31) }))
	register(OpI32RotateLeft, binU32(func(a, b uint32) uint32 { return bits.RotateLeft32(a, int(b&31)) }))
	register(OpI32RotateRight, binU32(func(a, b uint32) uint32 { return bits.RotateLeft32(a, -int(b&31)) }))
	register(OpI32CountLeadingZeros, unaryU32(func(a uint32) uint32 { return uint32(bits.LeadingZeros32(a)) }))
	register(OpI32CountLeadingOnes, unaryU32(func(a uint32) uint32 { return uint32(bits.LeadingZeros32(^a)) }))
	register(OpI32CountTrailingZeros, unaryU32(func(a uint32) uint32 { return uint32(bits.TrailingZeros32(a)) }))
	register(OpI32CountOnes, unaryU32(func(a uint32) uint32 { return uint32(bits.OnesCount32(a)) }))
	register(OpI32Abs, unaryI32(func(a int32) int32 {
		if a < 0 {
			return -a
		}
		return a
	}))
	register(OpI32Neg, unaryI32(func(a int32) int32 { return -a }))
}

func registerI64Arithmetic() {
	register(OpI64Add, binI64(func(a, b int64) int64 { return a + b }))
	register(OpI64Sub, binI64(func(a, b int64) int64 { return a - b }))
	register(OpI64Mul, binI64(func(a, b int64) int64 { return a * b }))
	register(OpI64DivS, i64DivS)
	register(OpI64DivU, i64DivU)
	register(OpI64RemS, i64RemS)
	register(OpI64RemU, i64RemU)

	register(OpI64Eqz, unaryI64Bool(func(a int64) bool { return a == 0 }))
	register(OpI64Nez, unaryI64Bool(func(a int64) bool { return a != 0 }))
	register(OpI64Eq, cmpI64(func(a, b int64) bool { return a == b }))
	register(OpI64Ne, cmpI64(func(a, b int64) bool { return a != b }))
	register(OpI64LtS, cmpI64(func(a, b int64) bool { return a < b }))
	register(OpI64LtU, cmpU64(func(a, b uint64) bool { return a < b }))
	register(OpI64GtS, cmpI64(func(a, b int64) bool { return a > b }))
	register(OpI64GtU, cmpU64(func(a, b uint64) bool { return a > b }))
	register(OpI64LeS, cmpI64(func(a, b int64) bool { return a <= b }))
	register(OpI64LeU, cmpU64(func(a, b uint64) bool { return a <= b }))
	register(OpI64GeS, cmpI64(func(a, b int64) bool { return a >= b }))
	register(OpI64GeU, cmpU64(func(a, b uint64) bool { return a >= b }))

	register(OpI64And, binU64(func(a, b uint64) uint64 { return a & b }))
	register(OpI64Or, binU64(func(a, b uint64) uint64 { return a | b }))
	register(OpI64Xor, binU64(func(a, b uint64) uint64 { return a ^ b }))
	register(OpI64Not, unaryU64(func(a uint64) uint64 { return ^a }))
	register(OpI64ShiftLeft, binU64(func(a, b uint64) uint64 { return a << (b & 63) }))
	register(OpI64ShiftRightS, binI64(func(a, b int64) int64 { return a >> (uint64(b) & 63) }))
	register(OpI64ShiftRightU, binU64(func(a, b uint64) uint64 { return a >> (b & 63) }))
	register(OpI64RotateLeft, binU64(func(a, b uint64) uint64 { return bits.RotateLeft64(a, int(b&63)) }))
	register(OpI64RotateRight, binU64(func(a, b uint64) uint64 { return bits.RotateLeft64(a, -int(b&63)) }))
	register(OpI64CountLeadingZeros, unaryU64ToU32(func(a uint64) uint32 { return uint32(bits.LeadingZeros64(a)) }))
	register(OpI64CountLeadingOnes, unaryU64ToU32(func(a uint64) uint32 { return uint32(bits.LeadingZeros64(^a)) }))
	register(OpI64CountTrailingZeros, unaryU64ToU32(func(a uint64) uint32 { return uint32(bits.TrailingZeros64(a)) }))
	register(OpI64CountOnes, unaryU64ToU32(func(a uint64) uint32 { return uint32(bits.OnesCount64(a)) }))
	register(OpI64Abs, unaryI64(func(a int64) int64 {
		if a < 0 {
			return -a
		}
		return a
	}))
	register(OpI64Neg, unaryI64(func(a int64) int64 { return -a }))
}

func pop2I32(t *Thread) (int32, int32, bool) {
	b, ok2 := t.stack.popInt32()
	a, ok1 := t.stack.popInt32()
	return a, b, ok1 && ok2
}

func pop2I64(t *Thread) (int64, int64, bool) {
	b, ok2 := t.stack.popInt64()
	a, ok1 := t.stack.popInt64()
	return a, b, ok1 && ok2
}

func binI32(f func(a, b int32) int32) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		a, b, ok := pop2I32(t)
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		t.stack.pushInt32(f(a, b))
		return advance(0), nil
	}
}

func binU32(f func(a, b uint32) uint32) handlerFunc {
	return binI32(func(a, b int32) int32 { return int32(f(uint32(a), uint32(b))) })
}

func binI64(f func(a, b int64) int64) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		a, b, ok := pop2I64(t)
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		t.stack.pushInt64(f(a, b))
		return advance(0), nil
	}
}

func binU64(f func(a, b uint64) uint64) handlerFunc {
	return binI64(func(a, b int64) int64 { return int64(f(uint64(a), uint64(b))) })
}

func unaryI32(f func(a int32) int32) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		a, ok := t.stack.popInt32()
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		t.stack.pushInt32(f(a))
		return advance(0), nil
	}
}

func unaryU32(f func(a uint32) uint32) handlerFunc {
	return unaryI32(func(a int32) int32 { return int32(f(uint32(a))) })
}

func unaryI64(f func(a int64) int64) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		a, ok := t.stack.popInt64()
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		t.stack.pushInt64(f(a))
		return advance(0), nil
	}
}

func unaryU64(f func(a uint64) uint64) handlerFunc {
	return unaryI64(func(a int64) int64 { return int64(f(uint64(a))) })
}

func unaryU64ToU32(f func(a uint64) uint32) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		a, ok := t.stack.popUint64()
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		t.stack.pushUint32(f(a))
		return advance(0), nil
	}
}

func unaryI32Bool(f func(a int32) bool) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		a, ok := t.stack.popInt32()
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		t.stack.pushBool(f(a))
		return advance(0), nil
	}
}

func unaryI64Bool(f func(a int64) bool) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		a, ok := t.stack.popInt64()
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		t.stack.pushBool(f(a))
		return advance(0), nil
	}
}

func cmpI32(f func(a, b int32) bool) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		a, b, ok := pop2I32(t)
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		t.stack.pushBool(f(a, b))
		return advance(0), nil
	}
}

func cmpU32(f func(a, b uint32) bool) handlerFunc {
	return cmpI32(func(a, b int32) bool { return f(uint32(a), uint32(b)) })
}

func cmpI64(f func(a, b int64) bool) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		a, b, ok := pop2I64(t)
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		t.stack.pushBool(f(a, b))
		return advance(0), nil
	}
}

func cmpU64(f func(a, b uint64) bool) handlerFunc {
	return cmpI64(func(a, b int64) bool { return f(uint64(a), uint64(b)) })
}

// i32DivS traps DivisionByZero on a zero divisor and IntegerOverflow on the
// one signed overflow case, INT32_MIN / -1 (spec.md §4.4.6).
func i32DivS(t *Thread, operands []byte) (progress, *Trap) {
	a, b, ok := pop2I32(t)
	if !ok {
		return progress{}, t.trap(TrapStackUnderflow, 0)
	}
	if b == 0 {
		return progress{}, t.trap(TrapDivisionByZero, 0)
	}
	if a == -2147483648 && b == -1 {
		return progress{}, t.trap(TrapIntegerOverflow, 0)
	}
	t.stack.pushInt32(a / b)
	return advance(0), nil
}

func i32DivU(t *Thread, operands []byte) (progress, *Trap) {
	a, b, ok := pop2I32(t)
	if !ok {
		return progress{}, t.trap(TrapStackUnderflow, 0)
	}
	if b == 0 {
		return progress{}, t.trap(TrapDivisionByZero, 0)
	}
	t.stack.pushUint32(uint32(a) / uint32(b))
	return advance(0), nil
}

// i32RemS takes the dividend's sign (spec.md §4.4.6), which is Go's native
// % behavior for signed integers.
func i32RemS(t *Thread, operands []byte) (progress, *Trap) {
	a, b, ok := pop2I32(t)
	if !ok {
		return progress{}, t.trap(TrapStackUnderflow, 0)
	}
	if b == 0 {
		return progress{}, t.trap(TrapDivisionByZero, 0)
	}
	if a == -2147483648 && b == -1 {
		t.stack.pushInt32(0)
		return advance(0), nil
	}
	t.stack.pushInt32(a % b)
	return advance(0), nil
}

func i32RemU(t *Thread, operands []byte) (progress, *Trap) {
	a, b, ok := pop2I32(t)
	if !ok {
		return progress{}, t.trap(TrapStackUnderflow, 0)
	}
	if b == 0 {
		return progress{}, t.trap(TrapDivisionByZero, 0)
	}
	t.stack.pushUint32(uint32(a) % uint32(b))
	return advance(0), nil
}

func i64DivS(t *Thread, operands []byte) (progress, *Trap) {
	a, b, ok := pop2I64(t)
	if !ok {
		return progress{}, t.trap(TrapStackUnderflow, 0)
	}
	if b == 0 {
		return progress{}, t.trap(TrapDivisionByZero, 0)
	}
	if a == -9223372036854775808 && b == -1 {
		return progress{}, t.trap(TrapIntegerOverflow, 0)
	}
	t.stack.pushInt64(a / b)
	return advance(0), nil
}

func i64DivU(t *Thread, operands []byte) (progress, *Trap) {
	a, b, ok := pop2I64(t)
	if !ok {
		return progress{}, t.trap(TrapStackUnderflow, 0)
	}
	if b == 0 {
		return progress{}, t.trap(TrapDivisionByZero, 0)
	}
	t.stack.pushUint64(uint64(a) / uint64(b))
	return advance(0), nil
}

func i64RemS(t *Thread, operands []byte) (progress, *Trap) {
	a, b, ok := pop2I64(t)
	if !ok {
		return progress{}, t.trap(TrapStackUnderflow, 0)
	}
	if b == 0 {
		return progress{}, t.trap(TrapDivisionByZero, 0)
	}
	if a == -9223372036854775808 && b == -1 {
		t.stack.pushInt64(0)
		return advance(0), nil
	}
	t.stack.pushInt64(a % b)
	return advance(0), nil
}

func i64RemU(t *Thread, operands []byte) (progress, *Trap) {
	a, b, ok := pop2I64(t)
	if !ok {
		return progress{}, t.trap(TrapStackUnderflow, 0)
	}
	if b == 0 {
		return progress{}, t.trap(TrapDivisionByZero, 0)
	}
	t.stack.pushUint64(uint64(a) % uint64(b))
	return advance(0), nil
}
