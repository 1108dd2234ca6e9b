package vm

// This file is the exported surface envcall/syscall/extcall handlers use to
// move values and bytes across the package boundary (spec.md §4.5's threading
// primitives and §6.5's host syscalls both need it). Grounded on the same
// push/pop shape wagon's exec.VM uses internally, widened from unexported
// methods to an exported API since here the handler lives in a separate
// package (runtime) rather than inside the interpreter itself.

// PopUint32 pops the top operand-stack value as a uint32, or reports
// underflow via ok.
func (t *Thread) PopUint32() (v uint32, ok bool) { return t.stack.popUint32() }

// PopUint64 pops the top operand-stack value as a uint64, or reports
// underflow via ok.
func (t *Thread) PopUint64() (v uint64, ok bool) { return t.stack.popUint64() }

// PopInt64 pops the top operand-stack value as an int64, or reports
// underflow via ok.
func (t *Thread) PopInt64() (v int64, ok bool) { return t.stack.popInt64() }

// PushUint32 pushes v zero-extended into a 64-bit operand slot.
func (t *Thread) PushUint32(v uint32) { t.stack.pushUint32(v) }

// PushUint64 pushes v as a 64-bit operand slot.
func (t *Thread) PushUint64(v uint64) { t.stack.pushUint64(v) }

// PushInt64 pushes v as a 64-bit operand slot.
func (t *Thread) PushInt64(v int64) { t.stack.pushInt64(v) }

// PushBool pushes 1 for true, 0 for false, matching the comparison
// opcodes' result convention.
func (t *Thread) PushBool(v bool) { t.stack.pushBool(v) }

// Trap builds a Trap anchored at the instruction currently executing,
// for a handler outside this package to report a failure the same way an
// instruction handler would.
func (t *Thread) Trap(kind TrapKind, code uint32) *Trap { return t.trap(kind, code) }

// ModuleIndex, FunctionIndex and InstrOffset expose the thread's current
// program-counter components, for a handler that wants to attach them to
// its own diagnostics (e.g. structured log fields).
func (t *Thread) ModuleIndex() uint32   { return t.pcModule }
func (t *Thread) FunctionIndex() uint32 { return t.pcFunction }
func (t *Thread) InstrOffset() uint32   { return t.pcOffset }
