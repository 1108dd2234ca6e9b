package vm

// Host addresses are a tagged 64-bit reference into one of the three
// storage spaces an interpreter thread owns (spec.md §4.4.5's local/data/
// heap split has no single flat address space to return a plain offset
// into), so host.addr_* opcodes push a fat pointer: the top 4 bits name
// the space, the low 60 bits are space-specific payload. extcall/syscall
// handlers resolve one back to bytes via Thread.ResolveHostAddr without
// needing to know which addr_* opcode produced it.
const (
	hostAddrKindHeap uint64 = iota
	hostAddrKindLocal
	hostAddrKindData
)

const hostAddrPayloadMask = 1<<60 - 1

func encodeHostAddr(kind, payload uint64) uint64 {
	return kind<<60 | (payload & hostAddrPayloadMask)
}

// ResolveHostAddr turns a value produced by host.addr_local/data/heap into
// the backing byte slice starting at the addressed position, for an
// envcall/syscall/extcall handler to read or write through.
func (t *Thread) ResolveHostAddr(v uint64) ([]byte, *Trap) {
	kind := v >> 60
	payload := v & hostAddrPayloadMask
	switch kind {
	case hostAddrKindHeap:
		if payload > uint64(len(t.memory)) {
			return nil, t.trap(TrapMemoryOutOfBounds, 0)
		}
		return t.memory[payload:], nil
	case hostAddrKindLocal:
		if payload > uint64(len(t.locals)) {
			return nil, t.trap(TrapMemoryOutOfBounds, 0)
		}
		return t.locals[payload:], nil
	case hostAddrKindData:
		publicIndex := uint32(payload >> 16)
		byteOffset := uint32(payload & 0xffff)
		buf, _, trap := t.dataBytes(publicIndex)
		if trap != nil {
			return nil, trap
		}
		if byteOffset > uint32(len(buf)) {
			return nil, t.trap(TrapMemoryOutOfBounds, publicIndex)
		}
		return buf[byteOffset:], nil
	default:
		return nil, t.trap(TrapTypeMismatch, uint32(kind))
	}
}

func registerHostAddr() {
	register(OpHostAddrLocal, opHostAddrLocal)
	register(OpHostAddrData, opHostAddrData)
	register(OpHostAddrHeap, opHostAddrHeap)
}

func opHostAddrLocal(t *Thread, operands []byte) (progress, *Trap) {
	r := getU16(operands[0:2])
	slotIndex := getU16(operands[2:4])
	byteOffset := getU16(operands[4:6])

	f, trap := t.resolveLocalFrame(r)
	if trap != nil {
		return progress{}, trap
	}
	addr, _, trap := t.localSlotAddr(f, uint32(slotIndex), uint32(byteOffset), loadWidthI8)
	if trap != nil {
		return progress{}, trap
	}
	t.stack.pushUint64(encodeHostAddr(hostAddrKindLocal, uint64(addr)))
	return advance(6), nil
}

func opHostAddrData(t *Thread, operands []byte) (progress, *Trap) {
	publicIndex := getU32(operands[0:4])
	byteOffset := getU16(operands[4:6])
	t.stack.pushUint64(encodeHostAddr(hostAddrKindData, uint64(publicIndex)<<16|uint64(byteOffset)))
	return advance(6), nil
}

func opHostAddrHeap(t *Thread, operands []byte) (progress, *Trap) {
	byteOffset := getU16(operands[0:2])
	addr, ok := t.stack.popUint64()
	if !ok {
		return progress{}, t.trap(TrapStackUnderflow, 0)
	}
	t.stack.pushUint64(encodeHostAddr(hostAddrKindHeap, addr+uint64(byteOffset)))
	return advance(2), nil
}
