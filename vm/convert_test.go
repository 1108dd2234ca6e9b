package vm_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemashushu/ancvm/loader"
	"github.com/hemashushu/ancvm/vm"
)

func TestI32TruncateI64DropsHighBits(t *testing.T) {
	code := (&asm{}).
		op(vm.OpImmI64).u64(0x1_0000_0007).
		op(vm.OpI32TruncateI64).
		op(vm.OpEnd).code()
	results, trap := run(t, noneI32, nil, code)
	require.Nil(t, trap)
	assert.Equal(t, []uint64{7}, results)
}

func TestI64ExtendI32SSignExtends(t *testing.T) {
	code := (&asm{}).
		op(vm.OpImmI32).i32(-1).
		op(vm.OpI64ExtendI32S).
		op(vm.OpEnd).code()
	results, trap := run(t, noneI64, nil, code)
	require.Nil(t, trap)
	assert.Equal(t, ^uint64(0), results[0])
}

func TestI64ExtendI32UZeroExtends(t *testing.T) {
	code := (&asm{}).
		op(vm.OpImmI32).i32(-1).
		op(vm.OpI64ExtendI32U).
		op(vm.OpEnd).code()
	results, trap := run(t, noneI64, nil, code)
	require.Nil(t, trap)
	assert.Equal(t, uint64(0xffffffff), results[0])
}

func TestI32ConvertF64SSaturatesAboveMax(t *testing.T) {
	code := (&asm{}).
		op(vm.OpImmF64).u64(math.Float64bits(1e30)).
		op(vm.OpI32ConvertF64S).
		op(vm.OpEnd).code()
	results, trap := run(t, noneI32, nil, code)
	require.Nil(t, trap)
	assert.Equal(t, uint64(uint32(math.MaxInt32)), results[0])
}

func TestI32ConvertF64SSaturatesBelowMin(t *testing.T) {
	code := (&asm{}).
		op(vm.OpImmF64).u64(math.Float64bits(-1e30)).
		op(vm.OpI32ConvertF64S).
		op(vm.OpEnd).code()
	results, trap := run(t, noneI32, nil, code)
	require.Nil(t, trap)
	assert.Equal(t, uint64(uint32(math.MinInt32)), results[0])
}

func TestI32ConvertF64SNaNMapsToZero(t *testing.T) {
	code := (&asm{}).
		op(vm.OpImmF64).u64(0x7ff8000000000000).
		op(vm.OpI32ConvertF64S).
		op(vm.OpEnd).code()
	results, trap := run(t, noneI32, nil, code)
	require.Nil(t, trap)
	assert.Equal(t, uint64(0), results[0])
}

func TestI64ConvertF64USaturatesNegativeToZero(t *testing.T) {
	code := (&asm{}).
		op(vm.OpImmF64).u64(math.Float64bits(-5.0)).
		op(vm.OpI64ConvertF64U).
		op(vm.OpEnd).code()
	results, trap := run(t, noneI64, nil, code)
	require.Nil(t, trap)
	assert.Equal(t, uint64(0), results[0])
}

func TestF64ConvertI32SRoundTrips(t *testing.T) {
	code := (&asm{}).
		op(vm.OpImmI32).i32(-42).
		op(vm.OpF64ConvertI32S).
		op(vm.OpEnd).code()
	results, trap := run(t, noneF64, nil, code)
	require.Nil(t, trap)
	assert.Equal(t, -42.0, math.Float64frombits(results[0]))
}

func TestF32DemoteF64NarrowsPrecision(t *testing.T) {
	noneF32 := [2][]loader.ValueType{nil, {loader.ValueTypeF32}}
	code := (&asm{}).
		op(vm.OpImmF64).u64(math.Float64bits(1.5)).
		op(vm.OpF32DemoteF64).
		op(vm.OpEnd).code()
	results, trap := run(t, noneF32, nil, code)
	require.Nil(t, trap)
	assert.Equal(t, float32(1.5), math.Float32frombits(uint32(results[0])))
}
