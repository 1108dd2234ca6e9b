package vm

import "github.com/hemashushu/ancvm/loader"

// progress is a handler's report of how the program counter moved: either
// "advance n bytes past the opcode and its operands" or "the handler
// already set t.pcModule/pcFunction/pcOffset itself" (spec.md §9's
// Advance(n_bytes) / Jump(new_pc)).
type progress struct {
	jump bool
	n    uint32
}

func advance(n uint32) progress { return progress{n: n} }
func jumped() progress          { return progress{jump: true} }

// EnvCallHandler services envcall instructions (threading, runtime info,
// time primitives — spec.md §4.5/§6.3). Implemented by package runtime and
// attached to a Thread before Run to avoid a vm→runtime import cycle.
type EnvCallHandler interface {
	EnvCall(t *Thread, number uint32) *Trap
}

// SysCallHandler services syscall instructions (spec.md §4.4.4/§6.5): args
// are popped by the caller in declaration order, and the handler returns
// the two-word (value, errno) result spec.md §4.4.7 describes for soft
// failures.
type SysCallHandler interface {
	SysCall(number uint32, args []uint64) (value uint64, errno uint64)
}

// ExtCallHandler resolves a unified external-function call (spec.md
// §4.4.4/§9 "external library handles"): args are marshalled from the
// unified function's declared type and results pushed back the same way.
type ExtCallHandler interface {
	ExtCall(t *Thread, unifiedIndex uint32, argTypeIndex uint32, args []uint64) (results []uint64, trap *Trap)
}

// pushCall pushes a call frame for targetPublicIndex and positions pc at
// its first instruction, copying the top N operands (N = param count) into
// the new frame's leading local slots and zero-initialising the rest
// (spec.md §4.4.4 "call idx").
func (t *Thread) pushCall(targetPublicIndex uint32) *Trap {
	if int(targetPublicIndex) >= len(t.Program.FunctionTable) {
		return t.trap(TrapTypeMismatch, targetPublicIndex)
	}
	ref := t.Program.FunctionTable[targetPublicIndex]
	mod := t.Program.Modules[ref.ModuleIndex]

	fn, err := mod.GetFunctionEntry(ref.InternalIndex)
	if err != nil {
		return t.trap(TrapTypeMismatch, targetPublicIndex)
	}
	typ, err := mod.GetTypeEntry(fn.TypeIndex)
	if err != nil {
		return t.trap(TrapTypeMismatch, targetPublicIndex)
	}
	localList, err := mod.GetLocalListEntry(fn.LocalIndex)
	if err != nil {
		return t.trap(TrapTypeMismatch, targetPublicIndex)
	}

	paramCount := len(typ.Params)
	if t.stack.len() < paramCount {
		return t.trap(TrapStackUnderflow, 0)
	}

	size, offsets := computeLocalLayout(localList)
	localBase := len(t.locals)
	t.locals = append(t.locals, make([]byte, size)...)
	if err := t.copyParamsIntoLocals(localList, offsets, localBase, paramCount); err != nil {
		return err
	}

	f := frame{
		kind:                frameKindCall,
		stackBase:           t.stack.len(), // copyParamsIntoLocals already removed the params
		localBase:           localBase,
		localListIndex:      fn.LocalIndex,
		resultTypes:         typ.Results,
		paramCount:          paramCount,
		entryOffset:         0,
		moduleIndex:         ref.ModuleIndex,
		functionIndex:       ref.InternalIndex,
		typeIndex:           fn.TypeIndex,
		returnModuleIndex:   t.pcModule,
		returnFunctionIndex: t.pcFunction,
		returnOffset:        t.pcOffset,
	}
	t.frames.pushCall(f)

	t.pcModule = ref.ModuleIndex
	t.pcFunction = ref.InternalIndex
	t.pcOffset = 0
	return nil
}

// copyParamsIntoLocals writes the top paramCount operand-stack slots into
// the leading local slots of the frame being entered; the width written is
// the leading slots' own declared data type; a function's or block's
// parameter count is guaranteed by the assembler to match its leading
// local slots one for one.
func (t *Thread) copyParamsIntoLocals(localList loader.LocalListEntry, offsets []int, localBase, paramCount int) *Trap {
	base := t.stack.len() - paramCount
	for i := 0; i < paramCount; i++ {
		v := t.stack.slots[base+i]
		off := localBase + offsets[i]
		switch localList.Slots[i].DataType {
		case loader.MemoryDataTypeI32, loader.MemoryDataTypeF32:
			putU32(t.locals[off:], uint32(v))
		default:
			putU64(t.locals[off:], v)
		}
	}
	t.stack.truncate(base)
	return nil
}

// functionReturn pops the current call frame (and any open block frames
// above it), copying the top resultCount operands down to the call
// frame's entry height, and resumes at the caller's recorded return
// address. If the popped frame was the outermost one, the thread has
// finished and its results are left on an otherwise-empty stack.
func (t *Thread) functionReturn() *Trap {
	f := t.frames.frames[t.frames.callBase]
	if err := t.checkResultShape(f.resultTypes, f.stackBase); err != nil {
		return err
	}
	t.copyResultsDown(f.resultTypes, f.stackBase)
	t.locals = t.locals[:f.localBase]

	wasOutermost := t.frames.callBase == 0
	t.frames.popTo(t.frames.callBase, true)

	if wasOutermost {
		return nil
	}
	t.pcModule = f.returnModuleIndex
	t.pcFunction = f.returnFunctionIndex
	t.pcOffset = f.returnOffset
	return nil
}

// functionRestart implements a recur that escapes the call frame (spec.md
// §4.4.1 "acts as ... function tail-call"): it resets the operand stack
// and locals to the function's entry state, keeping the current top
// paramCount operands as the new argument values, and jumps to offset 0.
func (t *Thread) functionRestart() *Trap {
	f := t.frames.frames[t.frames.callBase]
	if t.stack.len()-f.stackBase < f.paramCount {
		return t.trap(TrapStackUnderflow, 0)
	}
	argBase := t.stack.len() - f.paramCount
	args := append([]uint64(nil), t.stack.slots[argBase:]...)
	t.stack.truncate(f.stackBase)
	t.stack.slots = append(t.stack.slots, args...)

	mod := t.Program.Modules[f.moduleIndex]
	localList, err := mod.GetLocalListEntry(f.localListIndex)
	if err != nil {
		return t.trap(TrapTypeMismatch, 0)
	}
	_, err = mod.GetTypeEntry(f.typeIndex)
	if err != nil {
		return t.trap(TrapTypeMismatch, 0)
	}
	size, offsets := computeLocalLayout(localList)
	t.locals = t.locals[:f.localBase]
	t.locals = append(t.locals, make([]byte, size)...)
	if err := t.copyParamsIntoLocals(localList, offsets, f.localBase, f.paramCount); err != nil {
		return err
	}

	t.pcModule = f.moduleIndex
	t.pcFunction = f.functionIndex
	t.pcOffset = 0
	return nil
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
