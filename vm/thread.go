package vm

import (
	"sync/atomic"

	"github.com/hemashushu/ancvm/linker"
	"github.com/hemashushu/ancvm/loader"
)

const memoryPageSize = 65536 // spec.md §4.4.5 "memory_resize(pages) sets capacity in 64KiB pages"

// Thread is one interpreter instance (spec.md §4.5): an operand stack,
// frame stack, linear memory, and a private copy of the program's
// read-write/uninitialised data, all thread-exclusive. The loaded program
// and its linker tables are shared, read-only state (spec.md §5).
type Thread struct {
	Program *linker.LinkedProgram
	ID      uint32

	// Debug enables the stack-shape check spec.md §4.4.3 allows in debug
	// mode: every block/function exit must leave exactly the type's result
	// arity on the stack.
	Debug bool

	stack  operandStack
	frames frameStack
	locals []byte
	memory []byte

	rwData     map[uint32][]byte // private copies, keyed by data-public-index
	uninitData map[uint32][]byte

	// Handlers service envcall/syscall/extcall instructions; nil until the
	// owning runtime attaches them, so a VM-only Thread can still run code
	// that never reaches those instructions.
	EnvCalls EnvCallHandler
	SysCalls SysCallHandler
	ExtCalls ExtCallHandler

	// StartData is the private copy of the byte range thread_create's
	// caller passed as (start_data_ptr, start_data_len), read back through
	// thread_start_data_length/thread_start_data_read (spec.md §4.5).
	StartData []byte

	pcModule   uint32
	pcFunction uint32
	pcOffset   uint32

	// terminating is set by Terminate and polled between instructions
	// (spec.md §4.5 "cooperative at instruction boundaries").
	terminating int32
}

// NewThread builds a thread over program; Run picks the function to
// execute. It takes a private copy of every module's read-write and uninitialised
// data entries up front, per spec.md §4.5's "private copy" model.
func NewThread(program *linker.LinkedProgram, id uint32) (*Thread, error) {
	t := &Thread{
		Program:    program,
		ID:         id,
		rwData:     make(map[uint32][]byte),
		uninitData: make(map[uint32][]byte),
	}
	for publicIndex, ref := range program.DataTable {
		mod := program.Modules[ref.ModuleIndex]
		entry, err := mod.GetDataEntry(ref.Kind, ref.InternalIndex)
		if err != nil {
			return nil, err
		}
		switch ref.Kind {
		case loader.DataKindReadWrite:
			buf := make([]byte, entry.Length)
			copy(buf, entry.Data)
			t.rwData[uint32(publicIndex)] = buf
		case loader.DataKindUninit:
			t.uninitData[uint32(publicIndex)] = make([]byte, entry.Length)
		}
	}
	return t, nil
}

// Terminate asynchronously requests the thread to stop; it takes effect
// at the next instruction boundary (spec.md §4.5 "Cancellation").
func (t *Thread) Terminate() { atomic.StoreInt32(&t.terminating, 1) }

func (t *Thread) terminationRequested() bool {
	return atomic.LoadInt32(&t.terminating) != 0
}

// MemoryCapacityPages returns the current linear-memory size in 64KiB pages.
func (t *Thread) MemoryCapacityPages() uint32 {
	return uint32(len(t.memory) / memoryPageSize)
}

func (t *Thread) resizeMemory(pages uint32) uint32 {
	previous := t.MemoryCapacityPages()
	newSize := int(pages) * memoryPageSize
	if newSize <= len(t.memory) {
		t.memory = t.memory[:newSize]
		return previous
	}
	grown := make([]byte, newSize)
	copy(grown, t.memory)
	t.memory = grown
	return previous
}

func (t *Thread) trap(kind TrapKind, code uint32) *Trap {
	return &Trap{
		Kind:          kind,
		ModuleIndex:   t.pcModule,
		FunctionIndex: t.pcFunction,
		InstrOffset:   t.pcOffset,
		Code:          code,
	}
}

// computeLocalLayout returns the frame-relative byte offset of each slot in
// entry and the frame's total local-area size, aligning each slot to its
// declared alignment (spec.md §3 "alignment, power of two, 1..=8").
func computeLocalLayout(entry loader.LocalListEntry) (size int, offsets []int) {
	offsets = make([]int, len(entry.Slots))
	cursor := 0
	for i, slot := range entry.Slots {
		align := int(slot.Alignment)
		if align < 1 {
			align = 1
		}
		if rem := cursor % align; rem != 0 {
			cursor += align - rem
		}
		offsets[i] = cursor
		cursor += int(slot.Length)
	}
	return cursor, offsets
}
