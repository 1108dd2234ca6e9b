package vm

// registerHeapMemory wires linear-memory load/store and the
// resize/capacity/fill/copy primitives (0x06xx, spec.md §4.4.5 "Linear
// memory"). Loads and stores carry a static byte-offset u16 added to a
// dynamic base address popped off the stack; resize/fill/copy take their
// operands entirely from the stack.
func registerHeapMemory() {
	register(OpMemoryLoadI32S, memoryLoad(loadWidthI32, true))
	register(OpMemoryLoadI32U, memoryLoad(loadWidthI32, false))
	register(OpMemoryLoadI64, memoryLoad(loadWidthI64, false))
	register(OpMemoryLoadF32, memoryLoad(loadWidthF32, false))
	register(OpMemoryLoadF64, memoryLoad(loadWidthF64, false))
	register(OpMemoryLoadI16S, memoryLoad(loadWidthI16, true))
	register(OpMemoryLoadI16U, memoryLoad(loadWidthI16, false))
	register(OpMemoryLoadI8S, memoryLoad(loadWidthI8, true))
	register(OpMemoryLoadI8U, memoryLoad(loadWidthI8, false))

	register(OpMemoryStoreI32, memoryStore(loadWidthI32))
	register(OpMemoryStoreI64, memoryStore(loadWidthI64))
	register(OpMemoryStoreF32, memoryStore(loadWidthF32))
	register(OpMemoryStoreF64, memoryStore(loadWidthF64))
	register(OpMemoryStoreI16, memoryStore(loadWidthI16))
	register(OpMemoryStoreI8, memoryStore(loadWidthI8))

	register(OpMemoryResize, opMemoryResize)
	register(OpMemoryCapacity, opMemoryCapacity)
	register(OpMemoryFill, opMemoryFill)
	register(OpMemoryCopy, opMemoryCopy)
}

func memoryLoad(w loadWidth, signed bool) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		byteOffset := getU16(operands[0:2])
		addr, ok := t.stack.popUint64()
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		if !regionInBounds(addr, uint64(byteOffset), uint64(w.bytes()), len(t.memory)) {
			return progress{}, t.trap(TrapMemoryOutOfBounds, 0)
		}
		t.stack.pushUint64(readWidth(t.memory, int(addr+uint64(byteOffset)), w, signed))
		return advance(2), nil
	}
}

func memoryStore(w loadWidth) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		byteOffset := getU16(operands[0:2])
		v, ok1 := t.stack.popUint64()
		addr, ok2 := t.stack.popUint64()
		if !ok1 || !ok2 {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		if !regionInBounds(addr, uint64(byteOffset), uint64(w.bytes()), len(t.memory)) {
			return progress{}, t.trap(TrapMemoryOutOfBounds, 0)
		}
		writeWidth(t.memory, int(addr+uint64(byteOffset)), w, v)
		return advance(2), nil
	}
}

// opMemoryResize sets capacity in 64KiB pages and pushes the previous page
// count (spec.md §4.4.5).
func opMemoryResize(t *Thread, operands []byte) (progress, *Trap) {
	pages, ok := t.stack.popUint32()
	if !ok {
		return progress{}, t.trap(TrapStackUnderflow, 0)
	}
	previous := t.resizeMemory(pages)
	t.stack.pushUint32(previous)
	return advance(0), nil
}

func opMemoryCapacity(t *Thread, operands []byte) (progress, *Trap) {
	t.stack.pushUint32(t.MemoryCapacityPages())
	return advance(0), nil
}

// opMemoryFill pops (addr, value, length) and fills length bytes at addr
// with value's low byte.
func opMemoryFill(t *Thread, operands []byte) (progress, *Trap) {
	length, ok1 := t.stack.popUint32()
	value, ok2 := t.stack.popUint32()
	addr, ok3 := t.stack.popUint64()
	if !ok1 || !ok2 || !ok3 {
		return progress{}, t.trap(TrapStackUnderflow, 0)
	}
	if !regionInBounds(addr, 0, uint64(length), len(t.memory)) {
		return progress{}, t.trap(TrapMemoryOutOfBounds, 0)
	}
	region := t.memory[addr : addr+uint64(length)]
	for i := range region {
		region[i] = byte(value)
	}
	return advance(0), nil
}

// opMemoryCopy pops (dstAddr, srcAddr, length) and copies length bytes,
// tolerating overlap (spec.md §4.4.5).
func opMemoryCopy(t *Thread, operands []byte) (progress, *Trap) {
	length, ok1 := t.stack.popUint32()
	srcAddr, ok2 := t.stack.popUint64()
	dstAddr, ok3 := t.stack.popUint64()
	if !ok1 || !ok2 || !ok3 {
		return progress{}, t.trap(TrapStackUnderflow, 0)
	}
	if !regionInBounds(srcAddr, 0, uint64(length), len(t.memory)) || !regionInBounds(dstAddr, 0, uint64(length), len(t.memory)) {
		return progress{}, t.trap(TrapMemoryOutOfBounds, 0)
	}
	copy(t.memory[dstAddr:dstAddr+uint64(length)], t.memory[srcAddr:srcAddr+uint64(length)])
	return advance(0), nil
}
