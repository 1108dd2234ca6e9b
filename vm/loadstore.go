package vm

import "github.com/hemashushu/ancvm/loader"

// registerLoadStore wires the local-variable and data-section addressing
// instructions (spec.md §4.4.5). Local operands are (reverse-index u16,
// slot-index u16, byte-offset u16); their "extend" siblings drop the static
// byte-offset for one popped off the operand stack, widening slot-index to
// u32 in its place. Data operands mirror local ones but address a
// data-public-index directly instead of walking the frame stack.
func registerLoadStore() {
	register(OpLocalLoadI32S, localLoad(loadWidthI32, true))
	register(OpLocalLoadI32U, localLoad(loadWidthI32, false))
	register(OpLocalLoadI64, localLoad(loadWidthI64, false))
	register(OpLocalLoadF32, localLoad(loadWidthF32, false))
	register(OpLocalLoadF64, localLoad(loadWidthF64, false))
	register(OpLocalLoadI16S, localLoad(loadWidthI16, true))
	register(OpLocalLoadI16U, localLoad(loadWidthI16, false))
	register(OpLocalLoadI8S, localLoad(loadWidthI8, true))
	register(OpLocalLoadI8U, localLoad(loadWidthI8, false))

	register(OpLocalStoreI32, localStore(loadWidthI32))
	register(OpLocalStoreI64, localStore(loadWidthI64))
	register(OpLocalStoreF32, localStore(loadWidthF32))
	register(OpLocalStoreF64, localStore(loadWidthF64))
	register(OpLocalStoreI16, localStore(loadWidthI16))
	register(OpLocalStoreI8, localStore(loadWidthI8))

	register(OpLocalLoadExtendI32S, localLoadExtend(loadWidthI32, true))
	register(OpLocalLoadExtendI32U, localLoadExtend(loadWidthI32, false))
	register(OpLocalLoadExtendI64, localLoadExtend(loadWidthI64, false))
	register(OpLocalLoadExtendF32, localLoadExtend(loadWidthF32, false))
	register(OpLocalLoadExtendF64, localLoadExtend(loadWidthF64, false))

	register(OpLocalStoreExtendI32, localStoreExtend(loadWidthI32))
	register(OpLocalStoreExtendI64, localStoreExtend(loadWidthI64))
	register(OpLocalStoreExtendF32, localStoreExtend(loadWidthF32))
	register(OpLocalStoreExtendF64, localStoreExtend(loadWidthF64))

	register(OpDataLoadI32S, dataLoad(loadWidthI32, true))
	register(OpDataLoadI32U, dataLoad(loadWidthI32, false))
	register(OpDataLoadI64, dataLoad(loadWidthI64, false))
	register(OpDataLoadF32, dataLoad(loadWidthF32, false))
	register(OpDataLoadF64, dataLoad(loadWidthF64, false))
	register(OpDataLoadI16S, dataLoad(loadWidthI16, true))
	register(OpDataLoadI16U, dataLoad(loadWidthI16, false))
	register(OpDataLoadI8S, dataLoad(loadWidthI8, true))
	register(OpDataLoadI8U, dataLoad(loadWidthI8, false))

	register(OpDataStoreI32, dataStore(loadWidthI32))
	register(OpDataStoreI64, dataStore(loadWidthI64))
	register(OpDataStoreF32, dataStore(loadWidthF32))
	register(OpDataStoreF64, dataStore(loadWidthF64))
	register(OpDataStoreI16, dataStore(loadWidthI16))
	register(OpDataStoreI8, dataStore(loadWidthI8))

	register(OpDataLoadExtendI32S, dataLoadExtend(loadWidthI32, true))
	register(OpDataLoadExtendI32U, dataLoadExtend(loadWidthI32, false))
	register(OpDataLoadExtendI64, dataLoadExtend(loadWidthI64, false))
	register(OpDataLoadExtendF32, dataLoadExtend(loadWidthF32, false))
	register(OpDataLoadExtendF64, dataLoadExtend(loadWidthF64, false))

	register(OpDataStoreExtendI32, dataStoreExtend(loadWidthI32))
	register(OpDataStoreExtendI64, dataStoreExtend(loadWidthI64))
	register(OpDataStoreExtendF32, dataStoreExtend(loadWidthF32))
	register(OpDataStoreExtendF64, dataStoreExtend(loadWidthF64))
}

type loadWidth uint8

const (
	loadWidthI8 loadWidth = iota
	loadWidthI16
	loadWidthI32
	loadWidthI64
	loadWidthF32
	loadWidthF64
)

func (w loadWidth) bytes() int {
	switch w {
	case loadWidthI8:
		return 1
	case loadWidthI16:
		return 2
	case loadWidthI32, loadWidthF32:
		return 4
	default:
		return 8
	}
}

// readWidth decodes w-wide bytes at buf[off:] into a 64-bit stack slot,
// sign- or zero-extending sub-word integers to 32 bits per signed (spec.md
// §4.4.5 "loads of sub-word widths come in signed and unsigned variants");
// the result is an i32 with the slot's upper 32 bits zero, as pushInt32
// leaves them.
func readWidth(buf []byte, off int, w loadWidth, signed bool) uint64 {
	switch w {
	case loadWidthI8:
		v := buf[off]
		if signed {
			return uint64(uint32(int32(int8(v))))
		}
		return uint64(v)
	case loadWidthI16:
		v := getU16(buf[off : off+2])
		if signed {
			return uint64(uint32(int32(int16(v))))
		}
		return uint64(v)
	case loadWidthI32, loadWidthF32:
		return uint64(getU32(buf[off : off+4]))
	default:
		return getU64(buf[off : off+8])
	}
}

// regionInBounds reports whether a region of length bytes starting
// offset bytes past addr fits within a buffer of bufLen bytes. addr and
// offset are both guest-controlled and may be any 64-bit value, so the
// check never forms addr+offset (it would wrap silently and pass a
// region that's actually out of range); it only ever subtracts from the
// trusted bufLen.
func regionInBounds(addr, offset, length uint64, bufLen int) bool {
	if addr > uint64(bufLen) {
		return false
	}
	remaining := uint64(bufLen) - addr
	if offset > remaining {
		return false
	}
	remaining -= offset
	return length <= remaining
}

func writeWidth(buf []byte, off int, w loadWidth, v uint64) {
	switch w {
	case loadWidthI8:
		buf[off] = byte(v)
	case loadWidthI16:
		buf[off] = byte(v)
		buf[off+1] = byte(v >> 8)
	case loadWidthI32, loadWidthF32:
		putU32(buf[off:], uint32(v))
	default:
		putU64(buf[off:], v)
	}
}

// resolveLocalFrame walks r block frames up from the top of the current
// call frame (spec.md §4.4.5 "reverse-index selects a block frame within
// the current call frame"); it cannot escape the call frame boundary.
func (t *Thread) resolveLocalFrame(r uint16) (*frame, *Trap) {
	idx := t.frames.depth() - 1 - int(r)
	if idx < t.frames.callBase {
		return nil, t.trap(TrapTypeMismatch, uint32(r))
	}
	return &t.frames.frames[idx], nil
}

func (t *Thread) localSlotAddr(f *frame, slotIndex uint32, byteOffset uint32, w loadWidth) (int, loader.LocalSlot, *Trap) {
	mod := t.Program.Modules[t.pcModule]
	localList, err := mod.GetLocalListEntry(f.localListIndex)
	if err != nil || int(slotIndex) >= len(localList.Slots) {
		return 0, loader.LocalSlot{}, t.trap(TrapTypeMismatch, slotIndex)
	}
	_, offsets := computeLocalLayout(localList)
	addr := f.localBase + offsets[slotIndex] + int(byteOffset)
	if addr+w.bytes() > len(t.locals) {
		return 0, loader.LocalSlot{}, t.trap(TrapMemoryOutOfBounds, slotIndex)
	}
	return addr, localList.Slots[slotIndex], nil
}

func localLoad(w loadWidth, signed bool) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		r := getU16(operands[0:2])
		slotIndex := getU16(operands[2:4])
		byteOffset := getU16(operands[4:6])

		f, trap := t.resolveLocalFrame(r)
		if trap != nil {
			return progress{}, trap
		}
		addr, _, trap := t.localSlotAddr(f, uint32(slotIndex), uint32(byteOffset), w)
		if trap != nil {
			return progress{}, trap
		}
		t.stack.pushUint64(readWidth(t.locals, addr, w, signed))
		return advance(6), nil
	}
}

func localStore(w loadWidth) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		r := getU16(operands[0:2])
		slotIndex := getU16(operands[2:4])
		byteOffset := getU16(operands[4:6])

		v, ok := t.stack.popUint64()
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		f, trap := t.resolveLocalFrame(r)
		if trap != nil {
			return progress{}, trap
		}
		addr, _, trap := t.localSlotAddr(f, uint32(slotIndex), uint32(byteOffset), w)
		if trap != nil {
			return progress{}, trap
		}
		writeWidth(t.locals, addr, w, v)
		return advance(6), nil
	}
}

func localLoadExtend(w loadWidth, signed bool) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		r := getU16(operands[0:2])
		slotIndex := getU32(operands[2:6])

		byteOffset, ok := t.stack.popUint64()
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		f, trap := t.resolveLocalFrame(r)
		if trap != nil {
			return progress{}, trap
		}
		addr, _, trap := t.localSlotAddr(f, slotIndex, uint32(byteOffset), w)
		if trap != nil {
			return progress{}, trap
		}
		t.stack.pushUint64(readWidth(t.locals, addr, w, signed))
		return advance(6), nil
	}
}

func localStoreExtend(w loadWidth) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		r := getU16(operands[0:2])
		slotIndex := getU32(operands[2:6])

		v, ok1 := t.stack.popUint64()
		byteOffset, ok2 := t.stack.popUint64()
		if !ok1 || !ok2 {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		f, trap := t.resolveLocalFrame(r)
		if trap != nil {
			return progress{}, trap
		}
		addr, _, trap := t.localSlotAddr(f, slotIndex, uint32(byteOffset), w)
		if trap != nil {
			return progress{}, trap
		}
		writeWidth(t.locals, addr, w, v)
		return advance(6), nil
	}
}

// dataBytes resolves a data-public-index to its backing bytes: read-only
// data is shared directly from the owning module, read-write/uninit data
// comes from this thread's private copy (spec.md §4.4.5, §4.5).
func (t *Thread) dataBytes(publicIndex uint32) ([]byte, bool, *Trap) {
	if int(publicIndex) >= len(t.Program.DataTable) {
		return nil, false, t.trap(TrapTypeMismatch, publicIndex)
	}
	ref := t.Program.DataTable[publicIndex]
	switch ref.Kind {
	case loader.DataKindReadOnly:
		mod := t.Program.Modules[ref.ModuleIndex]
		entry, err := mod.GetDataEntry(ref.Kind, ref.InternalIndex)
		if err != nil {
			return nil, false, t.trap(TrapTypeMismatch, publicIndex)
		}
		return entry.Data, true, nil
	case loader.DataKindReadWrite:
		return t.rwData[publicIndex], false, nil
	default:
		return t.uninitData[publicIndex], false, nil
	}
}

func dataLoad(w loadWidth, signed bool) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		publicIndex := getU32(operands[0:4])
		byteOffset := getU16(operands[4:6])

		buf, _, trap := t.dataBytes(publicIndex)
		if trap != nil {
			return progress{}, trap
		}
		if int(byteOffset)+w.bytes() > len(buf) {
			return progress{}, t.trap(TrapMemoryOutOfBounds, publicIndex)
		}
		t.stack.pushUint64(readWidth(buf, int(byteOffset), w, signed))
		return advance(6), nil
	}
}

func dataStore(w loadWidth) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		publicIndex := getU32(operands[0:4])
		byteOffset := getU16(operands[4:6])

		v, ok := t.stack.popUint64()
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		buf, readOnly, trap := t.dataBytes(publicIndex)
		if trap != nil {
			return progress{}, trap
		}
		if readOnly {
			return progress{}, t.trap(TrapWriteReadOnly, publicIndex)
		}
		if int(byteOffset)+w.bytes() > len(buf) {
			return progress{}, t.trap(TrapMemoryOutOfBounds, publicIndex)
		}
		writeWidth(buf, int(byteOffset), w, v)
		return advance(6), nil
	}
}

func dataLoadExtend(w loadWidth, signed bool) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		publicIndex := getU32(operands[0:4])

		byteOffset, ok := t.stack.popUint64()
		if !ok {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		buf, _, trap := t.dataBytes(publicIndex)
		if trap != nil {
			return progress{}, trap
		}
		if !regionInBounds(byteOffset, 0, uint64(w.bytes()), len(buf)) {
			return progress{}, t.trap(TrapMemoryOutOfBounds, publicIndex)
		}
		t.stack.pushUint64(readWidth(buf, int(byteOffset), w, signed))
		return advance(6), nil
	}
}

func dataStoreExtend(w loadWidth) handlerFunc {
	return func(t *Thread, operands []byte) (progress, *Trap) {
		publicIndex := getU32(operands[0:4])

		v, ok1 := t.stack.popUint64()
		byteOffset, ok2 := t.stack.popUint64()
		if !ok1 || !ok2 {
			return progress{}, t.trap(TrapStackUnderflow, 0)
		}
		buf, readOnly, trap := t.dataBytes(publicIndex)
		if trap != nil {
			return progress{}, trap
		}
		if readOnly {
			return progress{}, t.trap(TrapWriteReadOnly, publicIndex)
		}
		if !regionInBounds(byteOffset, 0, uint64(w.bytes()), len(buf)) {
			return progress{}, t.trap(TrapMemoryOutOfBounds, publicIndex)
		}
		writeWidth(buf, int(byteOffset), w, v)
		return advance(6), nil
	}
}
