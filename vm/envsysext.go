package vm

import "github.com/hemashushu/ancvm/loader"

// registerEnvSysExt wires the three host-boundary instructions (0x05xx,
// spec.md §4.4.4): envcall into runtime primitives, syscall into the host
// kernel, extcall into a unified external-library function.
func registerEnvSysExt() {
	register(OpEnvCall, opEnvCall)
	register(OpSysCall, opSysCall)
	register(OpExtCall, opExtCall)
}

// opEnvCall dispatches a numbered runtime primitive (spec.md §4.4.4/§6.3).
// The handler itself manages operand-stack effects, since primitives like
// thread_receive_msg have result shapes envcall numbers alone don't fix.
func opEnvCall(t *Thread, operands []byte) (progress, *Trap) {
	number := getU32(operands[0:4])
	if t.EnvCalls == nil {
		return progress{}, t.trap(TrapUnreachableCode, number)
	}
	if trap := t.EnvCalls.EnvCall(t, number); trap != nil {
		return progress{}, trap
	}
	return advance(4), nil
}

// syscallArgCount is the fixed arity syscall pops and passes to
// unix.Syscall6-shaped handlers (spec.md §4.4.7, SPEC_FULL.md §6.5);
// unused trailing arguments are zero.
const syscallArgCount = 6

func opSysCall(t *Thread, operands []byte) (progress, *Trap) {
	number := getU32(operands[0:4])
	if t.SysCalls == nil {
		return progress{}, t.trap(TrapUnreachableCode, number)
	}
	if t.stack.len() < syscallArgCount {
		return progress{}, t.trap(TrapStackUnderflow, 0)
	}
	args := make([]uint64, syscallArgCount)
	base := t.stack.len() - syscallArgCount
	copy(args, t.stack.slots[base:])
	t.stack.truncate(base)

	value, errno := t.SysCalls.SysCall(number, args)
	t.stack.pushUint64(value)
	t.stack.pushUint64(errno)
	return advance(4), nil
}

// opExtCall resolves a module-local external-function index to the
// program's unified table, marshals its declared argument types off the
// operand stack, and pushes back the declared result types (spec.md
// §4.4.4 "argument types are marshalled according to the external
// function's declared type").
func opExtCall(t *Thread, operands []byte) (progress, *Trap) {
	externalIndex := getU32(operands[0:4])
	mod := t.Program.Modules[t.pcModule]
	linkage := t.Program.Linkage[t.pcModule]
	if int(externalIndex) >= len(linkage.ExternalFunctionIndices) {
		return progress{}, t.trap(TrapTypeMismatch, externalIndex)
	}
	link := linkage.ExternalFunctionIndices[externalIndex]

	typ, err := mod.GetTypeEntry(link.TypeIndex)
	if err != nil {
		return progress{}, t.trap(TrapTypeMismatch, link.TypeIndex)
	}
	if t.ExtCalls == nil {
		return progress{}, t.trap(TrapUnreachableCode, externalIndex)
	}

	n := len(typ.Params)
	if t.stack.len() < n {
		return progress{}, t.trap(TrapStackUnderflow, 0)
	}
	args := make([]uint64, n)
	base := t.stack.len() - n
	copy(args, t.stack.slots[base:])
	t.stack.truncate(base)

	results, trap := t.ExtCalls.ExtCall(t, link.UnifiedIndex, link.TypeIndex, args)
	if trap != nil {
		return progress{}, trap
	}
	if len(results) != len(typ.Results) {
		return progress{}, t.trap(TrapTypeMismatch, uint32(len(results)))
	}
	for i, r := range results {
		if typ.Results[i] == loader.ValueTypeF32 {
			t.stack.pushUint32(uint32(r))
		} else {
			t.stack.pushUint64(r)
		}
	}
	return advance(4), nil
}
