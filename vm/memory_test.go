package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemashushu/ancvm/vm"
)

func TestMemoryResizeThenStoreAndLoad(t *testing.T) {
	code := (&asm{}).
		op(vm.OpImmI32).u32(1). // one page
		op(vm.OpMemoryResize).
		op(vm.OpDrop). // discard previous page count
		op(vm.OpImmI64).u64(0).
		op(vm.OpImmI32).u32(0xbeef).
		op(vm.OpMemoryStoreI32).u16(0).
		op(vm.OpImmI64).u64(0).
		op(vm.OpMemoryLoadI32U).u16(0).
		op(vm.OpEnd).code()

	results, trap := run(t, noneI32, nil, code)
	require.Nil(t, trap)
	assert.Equal(t, []uint64{0xbeef}, results)
}

func TestMemoryResizeReturnsPreviousCapacity(t *testing.T) {
	code := (&asm{}).
		op(vm.OpImmI32).u32(2).
		op(vm.OpMemoryResize).
		op(vm.OpDrop).
		op(vm.OpImmI32).u32(3).
		op(vm.OpMemoryResize). // previous capacity is 2 pages
		op(vm.OpEnd).code()

	results, trap := run(t, noneI32, nil, code)
	require.Nil(t, trap)
	assert.Equal(t, []uint64{2}, results)
}

func TestMemoryCapacityReflectsResize(t *testing.T) {
	code := (&asm{}).
		op(vm.OpImmI32).u32(4).
		op(vm.OpMemoryResize).
		op(vm.OpDrop).
		op(vm.OpMemoryCapacity).
		op(vm.OpEnd).code()

	results, trap := run(t, noneI32, nil, code)
	require.Nil(t, trap)
	assert.Equal(t, []uint64{4}, results)
}

func TestMemoryLoadOutOfBoundsTraps(t *testing.T) {
	code := (&asm{}).
		op(vm.OpImmI64).u64(0). // no pages allocated yet
		op(vm.OpMemoryLoadI32U).u16(0).
		op(vm.OpEnd).code()

	_, trap := run(t, noneI32, nil, code)
	require.NotNil(t, trap)
	assert.Equal(t, vm.TrapMemoryOutOfBounds, trap.Kind)
}

func TestMemoryFillWritesRepeatedByte(t *testing.T) {
	code := (&asm{}).
		op(vm.OpImmI32).u32(1).
		op(vm.OpMemoryResize).
		op(vm.OpDrop).
		op(vm.OpImmI64).u64(0). // addr
		op(vm.OpImmI32).u32(0x7a). // value
		op(vm.OpImmI32).u32(4). // length
		op(vm.OpMemoryFill).
		op(vm.OpImmI64).u64(0).
		op(vm.OpMemoryLoadI32U).u16(0).
		op(vm.OpEnd).code()

	results, trap := run(t, noneI32, nil, code)
	require.Nil(t, trap)
	assert.Equal(t, []uint64{0x7a7a7a7a}, results)
}

func TestMemoryFillOutOfBoundsTraps(t *testing.T) {
	code := (&asm{}).
		op(vm.OpImmI32).u32(1).
		op(vm.OpMemoryResize).
		op(vm.OpDrop).
		op(vm.OpImmI64).u64(0).
		op(vm.OpImmI32).u32(0).
		op(vm.OpImmI32).u32(1 << 20). // far beyond the one page allocated
		op(vm.OpMemoryFill).
		op(vm.OpEnd).code()

	_, trap := run(t, noneI32, nil, code)
	require.NotNil(t, trap)
	assert.Equal(t, vm.TrapMemoryOutOfBounds, trap.Kind)
}

func TestMemoryCopyMovesBytes(t *testing.T) {
	code := (&asm{}).
		op(vm.OpImmI32).u32(1).
		op(vm.OpMemoryResize).
		op(vm.OpDrop).
		op(vm.OpImmI64).u64(0).
		op(vm.OpImmI32).u32(0xcafe).
		op(vm.OpMemoryStoreI32).u16(0).
		op(vm.OpImmI64).u64(100). // dst
		op(vm.OpImmI64).u64(0).   // src
		op(vm.OpImmI32).u32(4).   // length
		op(vm.OpMemoryCopy).
		op(vm.OpImmI64).u64(100).
		op(vm.OpMemoryLoadI32U).u16(0).
		op(vm.OpEnd).code()

	results, trap := run(t, noneI32, nil, code)
	require.Nil(t, trap)
	assert.Equal(t, []uint64{0xcafe}, results)
}

func TestMemoryCopyOverlappingRegionsTolerated(t *testing.T) {
	// shift a 4-byte value one byte forward within the same page; the
	// implementation must not corrupt the tail on overlap.
	code := (&asm{}).
		op(vm.OpImmI32).u32(1).
		op(vm.OpMemoryResize).
		op(vm.OpDrop).
		op(vm.OpImmI64).u64(0).
		op(vm.OpImmI32).u32(0x01020304).
		op(vm.OpMemoryStoreI32).u16(0).
		op(vm.OpImmI64).u64(1). // dst
		op(vm.OpImmI64).u64(0). // src
		op(vm.OpImmI32).u32(4). // length
		op(vm.OpMemoryCopy).
		op(vm.OpImmI64).u64(1).
		op(vm.OpMemoryLoadI32U).u16(0).
		op(vm.OpEnd).code()

	results, trap := run(t, noneI32, nil, code)
	require.Nil(t, trap)
	assert.Equal(t, []uint64{0x01020304}, results)
}
