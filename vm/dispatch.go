package vm

import "encoding/binary"

// handlerFunc is the contract every instruction handler implements
// (spec.md §9): given the thread and the bytes immediately following the
// 2-byte opcode, execute the instruction and report how far to advance, or
// that the handler already repositioned the program counter itself.
type handlerFunc func(t *Thread, operands []byte) (progress, *Trap)

// dispatchTable is addressed [category][low byte], the eight-range,
// [256]handlerFunc-per-range scheme SPEC_FULL.md §4.4 describes, grounded
// on go-interpreter/wagon's exec.VM.funcTable [256]func() idiom.
var dispatchTable [8][256]handlerFunc

func register(op Opcode, h handlerFunc) {
	dispatchTable[category(op)][low(op)] = h
}

func init() {
	registerFundamental()
	registerLoadStore()
	registerArithmetic()
	registerControlFlow()
	registerCall()
	registerEnvSysExt()
	registerHeapMemory()
	registerHostAddr()
}

func getU16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }
func getU32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
func getU64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }
func getI32(b []byte) int32  { return int32(getU32(b)) }

func (t *Thread) currentModuleIndex() uint32 { return t.pcModule }

func (t *Thread) currentCode() ([]byte, *Trap) {
	mod := t.Program.Modules[t.pcModule]
	fn, err := mod.GetFunctionEntry(t.pcFunction)
	if err != nil {
		return nil, t.trap(TrapTypeMismatch, 0)
	}
	return fn.Code, nil
}

// Run executes the thread starting at entryPublicIndex until its outermost
// call frame returns or a trap occurs. It returns the function's result
// operands (spec.md §6.4: for the program entry function, the low 32 bits
// of its i64 result is the process exit code).
func (t *Thread) Run(entryPublicIndex uint32) ([]uint64, *Trap) {
	if tr := t.pushCall(entryPublicIndex); tr != nil {
		return nil, tr
	}

	for {
		if t.terminationRequested() {
			return nil, nil
		}

		code, tr := t.currentCode()
		if tr != nil {
			return nil, tr
		}
		if int(t.pcOffset)+2 > len(code) {
			return nil, t.trap(TrapUnreachableCode, 0)
		}

		opHigh := code[t.pcOffset]
		opLow := code[t.pcOffset+1]
		var handler handlerFunc
		if int(opHigh) < len(dispatchTable) {
			handler = dispatchTable[opHigh][opLow]
		}
		if handler == nil {
			return nil, t.trap(TrapUnreachableCode, uint32(uint16(opHigh)<<8|uint16(opLow)))
		}

		operands := code[t.pcOffset+2:]
		pr, tr := handler(t, operands)
		if tr != nil {
			return nil, tr
		}

		if t.frames.depth() == 0 {
			// functionReturn popped the outermost call frame: done.
			return append([]uint64(nil), t.stack.slots...), nil
		}

		if pr.jump {
			continue
		}
		t.pcOffset += 2 + pr.n
	}
}
