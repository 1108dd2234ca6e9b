package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemashushu/ancvm/loader"
	"github.com/hemashushu/ancvm/vm"
)

// fakeEnvCalls is a test-only EnvCallHandler: number 1 is recognized and
// falls through without effect, any other number traps as unreachable.
type fakeEnvCalls struct{}

func (fakeEnvCalls) EnvCall(t *vm.Thread, number uint32) *vm.Trap {
	if number != 1 {
		return &vm.Trap{Kind: vm.TrapUnreachableCode, Code: number}
	}
	return nil
}

func TestEnvCallDispatchesToHandler(t *testing.T) {
	code := (&asm{}).
		op(vm.OpEnvCall).u32(1).
		op(vm.OpImmI32).u32(5).
		op(vm.OpEnd).code()

	mod := buildModule(
		typeSection(noneI32),
		functionSection(fn{typeIndex: 0, localIndex: 0, code: code}),
		localListSection(nil),
	)
	prog := linkSingle(t, mod)
	th := newThread(t, prog)
	th.EnvCalls = fakeEnvCalls{}

	results, trap := th.Run(0)
	require.Nil(t, trap)
	assert.Equal(t, []uint64{5}, results)
}

func TestEnvCallWithNoHandlerTraps(t *testing.T) {
	code := (&asm{}).op(vm.OpEnvCall).u32(1).op(vm.OpEnd).code()
	_, trap := run(t, noneI32, nil, code)
	require.NotNil(t, trap)
	assert.Equal(t, vm.TrapUnreachableCode, trap.Kind)
}

// fakeSysCalls is a test-only SysCallHandler: number 42 reports success
// (value=args[0]+1, errno=0); anything else reports errno=1.
type fakeSysCalls struct{}

func (fakeSysCalls) SysCall(number uint32, args []uint64) (uint64, uint64) {
	if number == 42 {
		return args[0] + 1, 0
	}
	return 0, 1
}

func TestSysCallPopsSixArgsAndPushesValueThenErrno(t *testing.T) {
	types := [2][]loader.ValueType{nil, {loader.ValueTypeI64, loader.ValueTypeI64}}
	code := (&asm{}).
		op(vm.OpImmI64).u64(6).
		op(vm.OpImmI64).u64(0).
		op(vm.OpImmI64).u64(0).
		op(vm.OpImmI64).u64(0).
		op(vm.OpImmI64).u64(0).
		op(vm.OpImmI64).u64(0).
		op(vm.OpSysCall).u32(42).
		op(vm.OpEnd).code()

	mod := buildModule(
		typeSection(types),
		functionSection(fn{typeIndex: 0, localIndex: 0, code: code}),
		localListSection(nil),
	)
	prog := linkSingle(t, mod)
	th := newThread(t, prog)
	th.SysCalls = fakeSysCalls{}

	results, trap := th.Run(0)
	require.Nil(t, trap)
	assert.Equal(t, []uint64{7, 0}, results)
}

// fakeExtCalls is a test-only ExtCallHandler: every call returns its first
// argument doubled as a single i32 result.
type fakeExtCalls struct{}

func (fakeExtCalls) ExtCall(t *vm.Thread, unifiedIndex uint32, argTypeIndex uint32, args []uint64) ([]uint64, *vm.Trap) {
	return []uint64{args[0] * 2}, nil
}

func TestExtCallMarshalsArgsAndResult(t *testing.T) {
	types := [][2][]loader.ValueType{
		{nil, {loader.ValueTypeI32}},
		{{loader.ValueTypeI32}, {loader.ValueTypeI32}}, // the external function's own type
	}
	code := (&asm{}).
		op(vm.OpImmI32).u32(21).
		op(vm.OpExtCall).u32(0). // external-function-index 0 within this module
		op(vm.OpEnd).code()

	mod := buildModule(
		typeSection(types...),
		functionSection(fn{typeIndex: 0, localIndex: 0, code: code}),
		localListSection(nil),
		externalLibrarySection(loader.ExternalLibraryEntry{Name: "libm.so.6", Kind: loader.LibraryKindSystem}),
		externalFunctionSection(externalFn{libraryIndex: 0, name: "double", typeIndex: 1}),
	)
	prog := linkSingle(t, mod)
	th := newThread(t, prog)
	th.ExtCalls = fakeExtCalls{}

	results, trap := th.Run(0)
	require.Nil(t, trap)
	assert.Equal(t, []uint64{42}, results)
}

func TestExtCallWithNoHandlerTraps(t *testing.T) {
	types := [][2][]loader.ValueType{
		{nil, {loader.ValueTypeI32}},
		{{loader.ValueTypeI32}, {loader.ValueTypeI32}},
	}
	code := (&asm{}).
		op(vm.OpImmI32).u32(1).
		op(vm.OpExtCall).u32(0).
		op(vm.OpEnd).code()

	mod := buildModule(
		typeSection(types...),
		functionSection(fn{typeIndex: 0, localIndex: 0, code: code}),
		localListSection(nil),
		externalLibrarySection(loader.ExternalLibraryEntry{Name: "libm.so.6", Kind: loader.LibraryKindSystem}),
		externalFunctionSection(externalFn{libraryIndex: 0, name: "double", typeIndex: 1}),
	)
	prog := linkSingle(t, mod)
	th := newThread(t, prog)

	_, trap := th.Run(0)
	require.NotNil(t, trap)
	assert.Equal(t, vm.TrapUnreachableCode, trap.Kind)
}
