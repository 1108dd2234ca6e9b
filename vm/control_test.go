package vm_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemashushu/ancvm/loader"
	"github.com/hemashushu/ancvm/vm"
)

// buildAndRun links a single module with the given type table, one function
// per fns (all sharing localLists in the same order), and runs function 0.
func buildAndRun(t *testing.T, types [][2][]loader.ValueType, localLists [][]loader.LocalSlot, fns ...fn) ([]uint64, *vm.Trap) {
	t.Helper()
	mod := buildModule(
		typeSection(types...),
		functionSection(fns...),
		localListSection(localLists...),
	)
	prog := linkSingle(t, mod)
	th := newThread(t, prog)
	return th.Run(0)
}

func TestBlockProducesResult(t *testing.T) {
	types := [][2][]loader.ValueType{
		{nil, {loader.ValueTypeI32}}, // type 0: function's own type
		{nil, {loader.ValueTypeI32}}, // type 1: block's type
	}
	code := (&asm{}).
		op(vm.OpBlock).u32(1).u32(1).
		op(vm.OpImmI32).u32(99).
		op(vm.OpEnd).
		op(vm.OpEnd).code()
	results, trap := buildAndRun(t, types, [][]loader.LocalSlot{nil, nil}, fn{typeIndex: 0, localIndex: 0, code: code})
	require.Nil(t, trap)
	assert.Equal(t, []uint64{99}, results)
}

// blockAltInstrSize/breakInstrSize/blockNezInstrSize name the fixed wire
// sizes (opcode + operands) of each instruction, so jump-offset arithmetic
// below is computed from real encoded lengths rather than copied constants.
const (
	blockAltInstrSize = 2 + 4 + 4 + 4 // op, type-index, local-list-index, off
	breakInstrSize    = 2 + 2 + 4     // op, reverse-index, off
	blockNezInstrSize = 2 + 4 + 4     // op, local-list-index, off
)

func TestBlockAltTrueBranch(t *testing.T) {
	types := [][2][]loader.ValueType{
		{nil, {loader.ValueTypeI32}},
		{nil, {loader.ValueTypeI32}},
	}
	// if (1) { 1 } else { 2 }
	alt := (&asm{}).op(vm.OpImmI32).u32(2).op(vm.OpEnd).code()
	cons := (&asm{}).op(vm.OpImmI32).u32(1).
		op(vm.OpBreak).u16(0).i32(int32(breakInstrSize + len(alt))). // break past the alt branch
		code()
	altOffsetFromInst := int32(blockAltInstrSize + len(cons))

	code := (&asm{}).
		op(vm.OpImmI32).u32(1). // condition: true
		op(vm.OpBlockAlt).u32(1).u32(1).i32(altOffsetFromInst)
	code.buf = append(code.buf, cons...)
	code.buf = append(code.buf, alt...)
	code = code.op(vm.OpEnd)

	results, trap := buildAndRun(t, types, [][]loader.LocalSlot{nil, nil}, fn{typeIndex: 0, localIndex: 0, code: code.code()})
	require.Nil(t, trap)
	assert.Equal(t, []uint64{1}, results)
}

func TestBlockAltFalseBranch(t *testing.T) {
	types := [][2][]loader.ValueType{
		{nil, {loader.ValueTypeI32}},
		{nil, {loader.ValueTypeI32}},
	}
	alt := (&asm{}).op(vm.OpImmI32).u32(2).op(vm.OpEnd).code()
	cons := (&asm{}).op(vm.OpImmI32).u32(1).
		op(vm.OpBreak).u16(0).i32(int32(breakInstrSize + len(alt))).
		code()
	altOffsetFromInst := int32(blockAltInstrSize + len(cons))

	code := (&asm{}).
		op(vm.OpImmI32).u32(0). // condition: false
		op(vm.OpBlockAlt).u32(1).u32(1).i32(altOffsetFromInst)
	code.buf = append(code.buf, cons...)
	code.buf = append(code.buf, alt...)
	code = code.op(vm.OpEnd)

	results, trap := buildAndRun(t, types, [][]loader.LocalSlot{nil, nil}, fn{typeIndex: 0, localIndex: 0, code: code.code()})
	require.Nil(t, trap)
	assert.Equal(t, []uint64{2}, results)
}

func TestBlockNezSkipsWhenZero(t *testing.T) {
	types := [][2][]loader.ValueType{{nil, {loader.ValueTypeI32}}}
	body := (&asm{}).op(vm.OpImmI32).u32(1).op(vm.OpDrop).op(vm.OpEnd).code()
	code := (&asm{}).
		op(vm.OpImmI32).u32(0). // condition: false -> skip body
		op(vm.OpBlockNez).u32(0).i32(int32(blockNezInstrSize+len(body))).
		code()
	code = append(code, body...)
	code = append(code, (&asm{}).op(vm.OpImmI32).u32(7).op(vm.OpEnd).code()...)

	results, trap := buildAndRun(t, types, [][]loader.LocalSlot{nil}, fn{typeIndex: 0, localIndex: 0, code: code})
	require.Nil(t, trap)
	assert.Equal(t, []uint64{7}, results)
}

func TestBreakEscapesToFunctionReturn(t *testing.T) {
	types := [][2][]loader.ValueType{
		{nil, {loader.ValueTypeI32}},
		{nil, {loader.ValueTypeI32}},
	}
	// block that immediately breaks 1 level (escaping to function return)
	// with the function's own result already on the stack.
	code := (&asm{}).
		op(vm.OpImmI32).u32(55).
		op(vm.OpBlock).u32(1).u32(1).
		op(vm.OpBreak).u16(1).i32(0).
		op(vm.OpEnd). // unreachable, block's own end
		op(vm.OpEnd).code()

	results, trap := buildAndRun(t, types, [][]loader.LocalSlot{nil, nil}, fn{typeIndex: 0, localIndex: 0, code: code})
	require.Nil(t, trap)
	assert.Equal(t, []uint64{55}, results)
}

// TestRecurLoopsToBlockStart builds, byte-by-byte, a counted-down loop:
//
//	imm_i32 3                      ; seed n = 3
//	block T(i32)->i32 L(1 local)   ; n becomes the loop block's own local
//	  local_load_i32u n            ; loop start
//	  i32_nez                      ; cond = (n != 0)
//	  block_nez L(empty), +after   ; skip straight to "after" when n == 0
//	    local_load_i32u 1, n       ; r=1 reaches past block_nez's own frame
//	    imm_i32 1
//	    i32_sub
//	    recur 1, -recurOffset      ; r=1 reaches the outer loop block
//	  after:
//	  local_load_i32u n            ; n is 0 here
//	  end                          ; closes the loop block, result = n
//	end                            ; function return
//
// recur targets the loop block (not its own block_nez frame) with r=1, and
// jumps back to the loop start by an offset relative to its own position,
// matching the instruction set's relative-delta convention.
func TestRecurLoopsToBlockStart(t *testing.T) {
	types := [][2][]loader.ValueType{
		{nil, {loader.ValueTypeI32}},                   // type 0: function, () -> i32
		{{loader.ValueTypeI32}, {loader.ValueTypeI32}}, // type 1: loop block, (i32) -> i32
	}
	localLists := [][]loader.LocalSlot{
		nil,
		localsOf(loader.MemoryDataTypeI32), // loop block's own local: n
		nil,                                // block_nez's own (empty) local list
	}

	loadN := func() *asm { return (&asm{}).op(vm.OpLocalLoadI32U).u16(0).u16(0).u16(0) }

	recurBody := (&asm{}).op(vm.OpLocalLoadI32U).u16(1).u16(0).u16(0).op(vm.OpImmI32).u32(1).op(vm.OpI32Sub).code()
	recurInstrOffsetWithinNezBody := len(recurBody)
	recurInstr := (&asm{}).op(vm.OpRecur).u16(1).i32(0).code() // placeholder, patched below

	nezBody := append(append([]byte{}, recurBody...), recurInstr...)

	loopStart := (&asm{}).
		op(vm.OpLocalLoadI32U).u16(0).u16(0).u16(0).
		op(vm.OpI32Nez).code()
	blockNezInstr := (&asm{}).op(vm.OpBlockNez).u32(2).i32(int32(10 + len(nezBody))).code()

	afterCode := loadN().op(vm.OpEnd).code()

	loopBody := append(append(append([]byte{}, loopStart...), blockNezInstr...), nezBody...)
	loopBody = append(loopBody, afterCode...)

	// Patch recur's offset now that loopBody's absolute layout is known: the
	// recur instruction starts right after loopStart+blockNezInstr+recurBody.
	recurInstrAbsOffset := len(loopStart) + len(blockNezInstr) + recurInstrOffsetWithinNezBody
	binary.LittleEndian.PutUint32(loopBody[recurInstrAbsOffset+4:recurInstrAbsOffset+8], uint32(int32(-recurInstrAbsOffset)))

	full := (&asm{}).op(vm.OpImmI32).u32(3).op(vm.OpBlock).u32(1).u32(1).code()
	full = append(full, loopBody...)
	full = append(full, (&asm{}).op(vm.OpEnd).code()...) // function's own end

	results, trap := buildAndRun(t, types, localLists, fn{typeIndex: 0, localIndex: 0, code: full})
	require.Nil(t, trap)
	assert.Equal(t, []uint64{0}, results)
}
