package vm

func registerFundamental() {
	register(OpNop, opNop)
	register(OpEnd, opEnd)
	register(OpDrop, opDrop)
	register(OpDuplicate, opDuplicate)
	register(OpSelectNez, opSelectNez)
	register(OpZero, opZero)
	register(OpImmI32, opImmI32)
	register(OpImmI64, opImmI64)
	register(OpImmF32, opImmF32)
	register(OpImmF64, opImmF64)
	register(OpPanic, opPanic)
	register(OpUnreachable, opUnreachable)
	register(OpDebug, opDebug)
}

func opNop(t *Thread, operands []byte) (progress, *Trap) {
	return advance(0), nil
}

// opEnd is the implicit function/block terminator (spec.md §4.4.4
// "Return is the implicit end at function end"). At block level it pops
// the block frame, checking/copying its result shape; at the outermost
// call-frame level it performs a function return.
func opEnd(t *Thread, operands []byte) (progress, *Trap) {
	if t.frames.top().kind == frameKindCall {
		if err := t.functionReturn(); err != nil {
			return progress{}, err
		}
		return jumped(), nil
	}
	idx := t.frames.depth() - 1
	f := t.frames.frames[idx]
	if err := t.checkResultShape(f.resultTypes, f.stackBase); err != nil {
		return progress{}, err
	}
	t.copyResultsDown(f.resultTypes, f.stackBase)
	t.locals = t.locals[:f.localBase]
	t.frames.popTo(idx, true)
	return advance(0), nil
}

func opDrop(t *Thread, operands []byte) (progress, *Trap) {
	if _, ok := t.stack.popUint64(); !ok {
		return progress{}, t.trap(TrapStackUnderflow, 0)
	}
	return advance(0), nil
}

func opDuplicate(t *Thread, operands []byte) (progress, *Trap) {
	v, ok := t.stack.peekUint64(0)
	if !ok {
		return progress{}, t.trap(TrapStackUnderflow, 0)
	}
	t.stack.pushUint64(v)
	return advance(0), nil
}

// opSelectNez pops (condition, onZero, onNonZero) and pushes onNonZero if
// condition is non-zero, else onZero.
func opSelectNez(t *Thread, operands []byte) (progress, *Trap) {
	cond, ok1 := t.stack.popUint64()
	onNonZero, ok2 := t.stack.popUint64()
	onZero, ok3 := t.stack.popUint64()
	if !ok1 || !ok2 || !ok3 {
		return progress{}, t.trap(TrapStackUnderflow, 0)
	}
	if cond != 0 {
		t.stack.pushUint64(onNonZero)
	} else {
		t.stack.pushUint64(onZero)
	}
	return advance(0), nil
}

func opZero(t *Thread, operands []byte) (progress, *Trap) {
	t.stack.pushUint64(0)
	return advance(0), nil
}

func opImmI32(t *Thread, operands []byte) (progress, *Trap) {
	t.stack.pushUint32(getU32(operands))
	return advance(4), nil
}

func opImmI64(t *Thread, operands []byte) (progress, *Trap) {
	t.stack.pushUint64(getU64(operands))
	return advance(8), nil
}

func opImmF32(t *Thread, operands []byte) (progress, *Trap) {
	// f32 immediates are zero-extended into the 8-byte slot (spec.md §4.4.2).
	t.stack.pushUint32(getU32(operands))
	return advance(8), nil
}

func opImmF64(t *Thread, operands []byte) (progress, *Trap) {
	t.stack.pushUint64(getU64(operands))
	return advance(8), nil
}

func opPanic(t *Thread, operands []byte) (progress, *Trap) {
	code, ok := t.stack.popUint32()
	if !ok {
		return progress{}, t.trap(TrapStackUnderflow, 0)
	}
	return progress{}, t.trap(TrapPanic, code)
}

func opUnreachable(t *Thread, operands []byte) (progress, *Trap) {
	return progress{}, t.trap(TrapUnreachableCode, 0)
}

// opDebug is a no-op breakpoint marker; it carries a u32 identifying
// number the host may use to correlate with a source map, but the
// interpreter itself does not act on it.
func opDebug(t *Thread, operands []byte) (progress, *Trap) {
	return advance(4), nil
}
