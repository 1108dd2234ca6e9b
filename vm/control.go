package vm

func registerControlFlow() {
	register(OpBlock, opBlockInst)
	register(OpBlockAlt, opBlockAlt)
	register(OpBlockNez, opBlockNez)
	register(OpBreak, opBreak)
	register(OpRecur, opRecur)
}

// enterBlock pushes a block frame of the given type/local-list, moving the
// type's param operands off the outer stack into the block's own local
// area (spec.md §4.4.3 "block T L pushes a block frame").
func (t *Thread) enterBlock(typeIndex, localListIndex uint32) *Trap {
	mod := t.Program.Modules[t.pcModule]
	typ, err := mod.GetTypeEntry(typeIndex)
	if err != nil {
		return t.trap(TrapTypeMismatch, typeIndex)
	}
	localList, err := mod.GetLocalListEntry(localListIndex)
	if err != nil {
		return t.trap(TrapTypeMismatch, localListIndex)
	}
	paramCount := len(typ.Params)
	if t.stack.len() < paramCount {
		return t.trap(TrapStackUnderflow, 0)
	}

	size, offsets := computeLocalLayout(localList)
	localBase := len(t.locals)
	t.locals = append(t.locals, make([]byte, size)...)
	if trap := t.copyParamsIntoLocals(localList, offsets, localBase, paramCount); trap != nil {
		return trap
	}

	t.frames.pushBlock(frame{
		kind:           frameKindBlock,
		stackBase:      t.stack.len(),
		localBase:      localBase,
		localListIndex: localListIndex,
		resultTypes:    typ.Results,
		paramCount:     paramCount,
		entryOffset:    t.pcOffset,
	})
	return nil
}

func opBlockInst(t *Thread, operands []byte) (progress, *Trap) {
	typeIndex := getU32(operands[0:4])
	localListIndex := getU32(operands[4:8])
	if trap := t.enterBlock(typeIndex, localListIndex); trap != nil {
		return progress{}, trap
	}
	return advance(8), nil
}

// opBlockAlt is the if/else primitive: both branches share one block frame
// (pushed regardless of the condition); when the popped condition is zero,
// control jumps into the alternate branch by off instead of falling
// through into the consequent (spec.md §4.4.3). The consequent is expected
// to end with an explicit break past the alternate; the alternate ends
// with the ordinary implicit end.
func opBlockAlt(t *Thread, operands []byte) (progress, *Trap) {
	typeIndex := getU32(operands[0:4])
	localListIndex := getU32(operands[4:8])
	off := getI32(operands[8:12])
	instStart := t.pcOffset

	cond, ok := t.stack.popUint64()
	if !ok {
		return progress{}, t.trap(TrapStackUnderflow, 0)
	}
	if trap := t.enterBlock(typeIndex, localListIndex); trap != nil {
		return progress{}, trap
	}
	if cond == 0 {
		t.pcOffset = uint32(int64(instStart) + int64(off))
		return jumped(), nil
	}
	return advance(12), nil
}

// opBlockNez is the "when" primitive: no declared results, pops a
// condition and skips by off when zero (spec.md §4.4.3).
func opBlockNez(t *Thread, operands []byte) (progress, *Trap) {
	localListIndex := getU32(operands[0:4])
	off := getI32(operands[4:8])

	cond, ok := t.stack.popUint64()
	if !ok {
		return progress{}, t.trap(TrapStackUnderflow, 0)
	}
	if cond == 0 {
		t.pcOffset = uint32(int64(t.pcOffset) + int64(off))
		return jumped(), nil
	}

	mod := t.Program.Modules[t.pcModule]
	localList, err := mod.GetLocalListEntry(localListIndex)
	if err != nil {
		return progress{}, t.trap(TrapTypeMismatch, localListIndex)
	}
	size, _ := computeLocalLayout(localList)
	localBase := len(t.locals)
	t.locals = append(t.locals, make([]byte, size)...)
	t.frames.pushBlock(frame{
		kind:           frameKindBlock,
		stackBase:      t.stack.len(),
		localBase:      localBase,
		localListIndex: localListIndex,
		entryOffset:    t.pcOffset,
	})
	return advance(8), nil
}

// opBreak unwinds r block frames (GLOSSARY "Reverse index": r+1 frames are
// popped in total) and advances by off; a reverse-index that escapes the
// current call frame returns from the function instead (spec.md §4.4.1).
func opBreak(t *Thread, operands []byte) (progress, *Trap) {
	r := getU16(operands[0:2])
	off := getI32(operands[2:6])
	breakPC := t.pcOffset

	target, escapes := t.frames.unwindTarget(r)
	if escapes {
		if err := t.functionReturn(); err != nil {
			return progress{}, err
		}
		return jumped(), nil
	}

	f := t.frames.frames[target]
	if err := t.checkResultShape(f.resultTypes, f.stackBase); err != nil {
		return progress{}, err
	}
	t.copyResultsDown(f.resultTypes, f.stackBase)
	t.locals = t.locals[:f.localBase]
	t.frames.popTo(target, true)

	t.pcOffset = uint32(int64(breakPC) + int64(off))
	return jumped(), nil
}

// opRecur unwinds to block r's start and rewinds by off, restarting that
// block's body with the current operand-stack top as its fresh params; a
// reverse-index that escapes the call frame restarts the whole function
// (spec.md §4.4.1/§4.4.3).
func opRecur(t *Thread, operands []byte) (progress, *Trap) {
	r := getU16(operands[0:2])
	off := getI32(operands[2:6])
	recurPC := t.pcOffset

	target, escapes := t.frames.unwindTarget(r)
	if escapes {
		if err := t.functionRestart(); err != nil {
			return progress{}, err
		}
		return jumped(), nil
	}

	f := t.frames.frames[target]
	if t.stack.len()-f.stackBase < f.paramCount {
		return progress{}, t.trap(TrapStackUnderflow, 0)
	}
	argBase := t.stack.len() - f.paramCount
	args := append([]uint64(nil), t.stack.slots[argBase:]...)
	t.stack.truncate(f.stackBase)
	t.stack.slots = append(t.stack.slots, args...)

	mod := t.Program.Modules[t.pcModule]
	localList, err := mod.GetLocalListEntry(f.localListIndex)
	if err != nil {
		return progress{}, t.trap(TrapTypeMismatch, 0)
	}
	_, offsets := computeLocalLayout(localList)
	if trap := t.copyParamsIntoLocals(localList, offsets, f.localBase, f.paramCount); trap != nil {
		return progress{}, trap
	}

	t.frames.popTo(target, false)
	t.pcOffset = uint32(int64(recurPC) + int64(off))
	return jumped(), nil
}
