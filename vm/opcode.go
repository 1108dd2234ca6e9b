// Package vm is the interpreter core (spec.md §4.4): operand stack, frame
// stack, opcode dispatch, and the numeric/control-flow/call instruction
// handlers that execute a linked program's function bodies.
package vm

import "fmt"

// Opcode identifies an instruction. The wire encoding is two bytes
// (spec.md §6.2); the high byte selects one of eight category ranges and
// the low byte selects the handler within that range's [256]handlerFunc
// table (SPEC_FULL.md §4.4, grounded on go-interpreter/wagon's
// exec.VM.funcTable [256]func() dispatch idiom).
type Opcode uint16

// Category high bytes (spec.md §6.2).
const (
	categoryFundamental = 0x00
	categoryLoadStore   = 0x01
	categoryArithmetic  = 0x02
	categoryControlFlow = 0x03
	categoryCall        = 0x04
	categoryEnvSysExt   = 0x05
	categoryHeapMemory  = 0x06
	categoryHostAddr    = 0x07
)

func category(op Opcode) byte { return byte(op >> 8) }
func low(op Opcode) byte      { return byte(op) }

// Fundamental instructions (0x00xx): stack shape and immediates.
const (
	OpNop Opcode = categoryFundamental<<8 | iota
	OpEnd
	OpDrop
	OpDuplicate
	OpSelectNez
	OpZero
	OpImmI32
	OpImmI64
	OpImmF32
	OpImmF64
	OpPanic
	OpUnreachable
	OpDebug
)

// Load-store instructions (0x01xx): local and data section access.
const (
	OpLocalLoadI32S Opcode = categoryLoadStore<<8 | iota
	OpLocalLoadI32U
	OpLocalLoadI64
	OpLocalLoadF32
	OpLocalLoadF64
	OpLocalLoadI16S
	OpLocalLoadI16U
	OpLocalLoadI8S
	OpLocalLoadI8U
	OpLocalStoreI32
	OpLocalStoreI64
	OpLocalStoreF32
	OpLocalStoreF64
	OpLocalStoreI16
	OpLocalStoreI8
	OpLocalLoadExtendI32S
	OpLocalLoadExtendI32U
	OpLocalLoadExtendI64
	OpLocalLoadExtendF32
	OpLocalLoadExtendF64
	OpLocalStoreExtendI32
	OpLocalStoreExtendI64
	OpLocalStoreExtendF32
	OpLocalStoreExtendF64

	OpDataLoadI32S
	OpDataLoadI32U
	OpDataLoadI64
	OpDataLoadF32
	OpDataLoadF64
	OpDataLoadI16S
	OpDataLoadI16U
	OpDataLoadI8S
	OpDataLoadI8U
	OpDataStoreI32
	OpDataStoreI64
	OpDataStoreF32
	OpDataStoreF64
	OpDataStoreI16
	OpDataStoreI8
	OpDataLoadExtendI32S
	OpDataLoadExtendI32U
	OpDataLoadExtendI64
	OpDataLoadExtendF32
	OpDataLoadExtendF64
	OpDataStoreExtendI32
	OpDataStoreExtendI64
	OpDataStoreExtendF32
	OpDataStoreExtendF64
)

// Arithmetic, bitwise, comparison, float, and conversion instructions
// (0x02xx). Numeric semantics are spec.md §4.4.6.
const (
	OpI32Add Opcode = categoryArithmetic<<8 | iota
	OpI32Sub
	OpI32Mul
	OpI32DivS
	OpI32DivU
	OpI32RemS
	OpI32RemU
	OpI32Eqz
	OpI32Nez
	OpI32Eq
	OpI32Ne
	OpI32LtS
	OpI32LtU
	OpI32GtS
	OpI32GtU
	OpI32LeS
	OpI32LeU
	OpI32GeS
	OpI32GeU
	OpI32And
	OpI32Or
	OpI32Xor
	OpI32Not
	OpI32ShiftLeft
	OpI32ShiftRightS
	OpI32ShiftRightU
	OpI32RotateLeft
	OpI32RotateRight
	OpI32CountLeadingZeros
	OpI32CountLeadingOnes
	OpI32CountTrailingZeros
	OpI32CountOnes
	OpI32Abs
	OpI32Neg

	OpI64Add
	OpI64Sub
	OpI64Mul
	OpI64DivS
	OpI64DivU
	OpI64RemS
	OpI64RemU
	OpI64Eqz
	OpI64Nez
	OpI64Eq
	OpI64Ne
	OpI64LtS
	OpI64LtU
	OpI64GtS
	OpI64GtU
	OpI64LeS
	OpI64LeU
	OpI64GeS
	OpI64GeU
	OpI64And
	OpI64Or
	OpI64Xor
	OpI64Not
	OpI64ShiftLeft
	OpI64ShiftRightS
	OpI64ShiftRightU
	OpI64RotateLeft
	OpI64RotateRight
	OpI64CountLeadingZeros
	OpI64CountLeadingOnes
	OpI64CountTrailingZeros
	OpI64CountOnes
	OpI64Abs
	OpI64Neg

	OpF32Add
	OpF32Sub
	OpF32Mul
	OpF32Div
	OpF32Eq
	OpF32Ne
	OpF32Lt
	OpF32Gt
	OpF32Le
	OpF32Ge
	OpF32Abs
	OpF32Neg
	OpF32Ceil
	OpF32Floor
	OpF32Trunc
	OpF32Sqrt
	OpF32Min
	OpF32Max
	OpF32Copysign

	OpF64Add
	OpF64Sub
	OpF64Mul
	OpF64Div
	OpF64Eq
	OpF64Ne
	OpF64Lt
	OpF64Gt
	OpF64Le
	OpF64Ge
	OpF64Abs
	OpF64Neg
	OpF64Ceil
	OpF64Floor
	OpF64Trunc
	OpF64Sqrt
	OpF64Min
	OpF64Max
	OpF64Copysign

	OpI32TruncateI64
	OpI64ExtendI32S
	OpI64ExtendI32U
	OpF32DemoteF64
	OpF64PromoteF32
	OpI32ConvertF32S
	OpI32ConvertF32U
	OpI32ConvertF64S
	OpI32ConvertF64U
	OpI64ConvertF32S
	OpI64ConvertF32U
	OpI64ConvertF64S
	OpI64ConvertF64U
	OpF32ConvertI32S
	OpF32ConvertI32U
	OpF32ConvertI64S
	OpF32ConvertI64U
	OpF64ConvertI32S
	OpF64ConvertI32U
	OpF64ConvertI64S
	OpF64ConvertI64U
)

// Control-flow instructions (0x03xx): spec.md §4.4.3.
const (
	OpBlock Opcode = categoryControlFlow<<8 | iota
	OpBlockAlt
	OpBlockNez
	OpBreak
	OpRecur
)

// Call instructions (0x04xx): spec.md §4.4.4.
const (
	OpCall Opcode = categoryCall<<8 | iota
	OpDynCall
)

// Env/sys/ext call instructions (0x05xx): spec.md §4.4.4/§6.3/§6.5.
const (
	OpEnvCall Opcode = categoryEnvSysExt<<8 | iota
	OpSysCall
	OpExtCall
)

// Heap/memory instructions (0x06xx): spec.md §4.4.5 "Linear memory".
const (
	OpMemoryLoadI32S Opcode = categoryHeapMemory<<8 | iota
	OpMemoryLoadI32U
	OpMemoryLoadI64
	OpMemoryLoadF32
	OpMemoryLoadF64
	OpMemoryLoadI16S
	OpMemoryLoadI16U
	OpMemoryLoadI8S
	OpMemoryLoadI8U
	OpMemoryStoreI32
	OpMemoryStoreI64
	OpMemoryStoreF32
	OpMemoryStoreF64
	OpMemoryStoreI16
	OpMemoryStoreI8
	OpMemoryResize
	OpMemoryCapacity
	OpMemoryFill
	OpMemoryCopy
)

// Host addressing instructions (0x07xx): yield a tagged host address
// (hostaddr.go) for local/data/heap operands, for marshalling
// extcall/syscall arguments.
const (
	OpHostAddrLocal Opcode = categoryHostAddr<<8 | iota
	OpHostAddrData
	OpHostAddrHeap
)

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("opcode(%#04x)", uint16(op))
}

var opcodeNames = map[Opcode]string{
	OpNop: "nop", OpEnd: "end", OpDrop: "drop", OpDuplicate: "duplicate",
	OpSelectNez: "select_nez", OpZero: "zero", OpImmI32: "imm_i32",
	OpImmI64: "imm_i64", OpImmF32: "imm_f32", OpImmF64: "imm_f64",
	OpPanic: "panic", OpUnreachable: "unreachable", OpDebug: "debug",
	OpBlock: "block", OpBlockAlt: "block_alt", OpBlockNez: "block_nez",
	OpBreak: "break", OpRecur: "recur",
	OpCall: "call", OpDynCall: "dyncall",
	OpEnvCall: "envcall", OpSysCall: "syscall", OpExtCall: "extcall",
	OpMemoryResize: "memory_resize", OpMemoryCapacity: "memory_capacity",
	OpMemoryFill: "memory_fill", OpMemoryCopy: "memory_copy",
}
