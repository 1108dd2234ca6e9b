package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemashushu/ancvm/loader"
	"github.com/hemashushu/ancvm/vm"
)

func TestCallPassesArgsAndReturnsResult(t *testing.T) {
	types := [][2][]loader.ValueType{
		{nil, {loader.ValueTypeI32}},                                    // type 0: entry, () -> i32
		{{loader.ValueTypeI32, loader.ValueTypeI32}, {loader.ValueTypeI32}}, // type 1: add(i32,i32) -> i32
	}
	localLists := [][]loader.LocalSlot{
		nil,
		localsOf(loader.MemoryDataTypeI32, loader.MemoryDataTypeI32), // add's two params live as its own locals
	}

	addFn := (&asm{}).
		op(vm.OpLocalLoadI32U).u16(0).u16(0).u16(0).
		op(vm.OpLocalLoadI32U).u16(0).u16(1).u16(0).
		op(vm.OpI32Add).
		op(vm.OpEnd).code()

	entryFn := (&asm{}).
		op(vm.OpImmI32).u32(3).
		op(vm.OpImmI32).u32(4).
		op(vm.OpCall).u32(1). // public index 1 = addFn
		op(vm.OpEnd).code()

	results, trap := buildAndRun(t, types, localLists,
		fn{typeIndex: 0, localIndex: 0, code: entryFn},
		fn{typeIndex: 1, localIndex: 1, code: addFn},
	)
	require.Nil(t, trap)
	assert.Equal(t, []uint64{7}, results)
}

func TestDynCallResolvesTargetFromStack(t *testing.T) {
	types := [][2][]loader.ValueType{
		{nil, {loader.ValueTypeI32}},
		{nil, {loader.ValueTypeI32}},
	}
	localLists := [][]loader.LocalSlot{nil, nil}

	calleeFn := (&asm{}).op(vm.OpImmI32).u32(99).op(vm.OpEnd).code()
	entryFn := (&asm{}).
		op(vm.OpImmI32).u32(1). // callee's public index
		op(vm.OpDynCall).
		op(vm.OpEnd).code()

	results, trap := buildAndRun(t, types, localLists,
		fn{typeIndex: 0, localIndex: 0, code: entryFn},
		fn{typeIndex: 1, localIndex: 1, code: calleeFn},
	)
	require.Nil(t, trap)
	assert.Equal(t, []uint64{99}, results)
}

func TestNestedCallReturnsToCaller(t *testing.T) {
	// entry calls middle, middle calls leaf, leaf's result flows back
	// through middle unchanged to entry.
	types := [][2][]loader.ValueType{
		{nil, {loader.ValueTypeI32}},
		{nil, {loader.ValueTypeI32}},
		{nil, {loader.ValueTypeI32}},
	}
	localLists := [][]loader.LocalSlot{nil, nil, nil}

	leaf := (&asm{}).op(vm.OpImmI32).u32(5).op(vm.OpEnd).code()
	middle := (&asm{}).op(vm.OpCall).u32(2).op(vm.OpEnd).code() // public index 2 = leaf
	entry := (&asm{}).op(vm.OpCall).u32(1).op(vm.OpEnd).code() // public index 1 = middle

	results, trap := buildAndRun(t, types, localLists,
		fn{typeIndex: 0, localIndex: 0, code: entry},
		fn{typeIndex: 1, localIndex: 1, code: middle},
		fn{typeIndex: 2, localIndex: 2, code: leaf},
	)
	require.Nil(t, trap)
	assert.Equal(t, []uint64{5}, results)
}

func TestCallUnknownPublicIndexTraps(t *testing.T) {
	code := (&asm{}).op(vm.OpCall).u32(99).op(vm.OpEnd).code()
	_, trap := run(t, noneI32, nil, code)
	require.NotNil(t, trap)
	assert.Equal(t, vm.TrapTypeMismatch, trap.Kind)
}
