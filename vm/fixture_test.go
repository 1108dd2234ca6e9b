package vm_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hemashushu/ancvm/image"
	"github.com/hemashushu/ancvm/linker"
	"github.com/hemashushu/ancvm/loader"
	"github.com/hemashushu/ancvm/vm"
)

// --- section builders, grounded on linker_test.go's "mirror an
// assembler's output" fixture style ---------------------------------

func typeSection(entries ...[2][]loader.ValueType) image.Section {
	var items, pool []byte
	for _, e := range entries {
		params, results := e[0], e[1]
		item := make([]byte, 12)
		item[0] = byte(len(params))
		item[1] = byte(len(results))
		binary.LittleEndian.PutUint32(item[4:8], uint32(len(pool)))
		pool = append(pool, valueTypeBytes(params)...)
		binary.LittleEndian.PutUint32(item[8:12], uint32(len(pool)))
		pool = append(pool, valueTypeBytes(results)...)
		items = append(items, item...)
	}
	return image.Section{ID: image.SectionType, Data: image.EncodeItemTable(12, items, pool)}
}

func valueTypeBytes(vts []loader.ValueType) []byte {
	out := make([]byte, len(vts))
	for i, vt := range vts {
		out[i] = byte(vt)
	}
	return out
}

// fn is one function fixture: its type, local-list, and bytecode.
type fn struct {
	typeIndex  uint32
	localIndex uint32
	code       []byte
}

func functionSection(fns ...fn) image.Section {
	var items, pool []byte
	for _, f := range fns {
		item := make([]byte, 16)
		binary.LittleEndian.PutUint32(item[0:4], f.typeIndex)
		binary.LittleEndian.PutUint32(item[4:8], f.localIndex)
		binary.LittleEndian.PutUint32(item[8:12], uint32(len(pool)))
		binary.LittleEndian.PutUint32(item[12:16], uint32(len(f.code)))
		pool = append(pool, f.code...)
		items = append(items, item...)
	}
	return image.Section{ID: image.SectionFunction, Data: image.EncodeItemTable(16, items, pool)}
}

func localListSection(lists ...[]loader.LocalSlot) image.Section {
	var items, pool []byte
	for _, slots := range lists {
		item := make([]byte, 8)
		item[0] = byte(len(slots))
		binary.LittleEndian.PutUint32(item[4:8], uint32(len(pool)))
		for _, s := range slots {
			srec := make([]byte, 8)
			srec[0] = byte(s.DataType)
			srec[1] = s.Alignment
			binary.LittleEndian.PutUint32(srec[4:8], s.Length)
			pool = append(pool, srec...)
		}
		items = append(items, item...)
	}
	return image.Section{ID: image.SectionLocalVariable, Data: image.EncodeItemTable(8, items, pool)}
}

// localsOf builds a local-list with one slot per given data type, each
// with its type's natural size and alignment (used as both a function's
// params and working locals in these fixtures).
func localsOf(types ...loader.MemoryDataType) []loader.LocalSlot {
	slots := make([]loader.LocalSlot, len(types))
	for i, t := range types {
		length, align := uint32(8), uint8(8)
		switch t {
		case loader.MemoryDataTypeI8:
			length, align = 1, 1
		case loader.MemoryDataTypeI16:
			length, align = 2, 2
		case loader.MemoryDataTypeI32, loader.MemoryDataTypeF32:
			length, align = 4, 4
		}
		slots[i] = loader.LocalSlot{DataType: t, Length: length, Alignment: align}
	}
	return slots
}

func dataSection(id image.SectionID, kind loader.DataKind, entries ...struct {
	dataType loader.MemoryDataType
	data     []byte
}) image.Section {
	var items, pool []byte
	for _, e := range entries {
		item := make([]byte, 12)
		item[0] = byte(e.dataType)
		item[1] = 8
		binary.LittleEndian.PutUint32(item[4:8], uint32(len(e.data)))
		binary.LittleEndian.PutUint32(item[8:12], uint32(len(pool)))
		if kind != loader.DataKindUninit {
			pool = append(pool, e.data...)
		}
		items = append(items, item...)
	}
	return image.Section{ID: id, Data: image.EncodeItemTable(12, items, pool)}
}

func externalLibrarySection(libs ...loader.ExternalLibraryEntry) image.Section {
	var items, pool []byte
	for _, lib := range libs {
		item := make([]byte, 12)
		binary.LittleEndian.PutUint32(item[0:4], uint32(len(pool)))
		binary.LittleEndian.PutUint32(item[4:8], uint32(len(lib.Name)))
		item[8] = byte(lib.Kind)
		pool = append(pool, lib.Name...)
		items = append(items, item...)
	}
	return image.Section{ID: image.SectionExternalLibrary, Data: image.EncodeItemTable(12, items, pool)}
}

type externalFn struct {
	libraryIndex uint32
	name         string
	typeIndex    uint32
}

func externalFunctionSection(fns ...externalFn) image.Section {
	var items, pool []byte
	for _, f := range fns {
		item := make([]byte, 16)
		binary.LittleEndian.PutUint32(item[0:4], f.libraryIndex)
		binary.LittleEndian.PutUint32(item[4:8], uint32(len(pool)))
		binary.LittleEndian.PutUint32(item[8:12], uint32(len(f.name)))
		binary.LittleEndian.PutUint32(item[12:16], f.typeIndex)
		pool = append(pool, f.name...)
		items = append(items, item...)
	}
	return image.Section{ID: image.SectionExternalFunction, Data: image.EncodeItemTable(16, items, pool)}
}

// buildModule assembles a single-module image.Image out of the given
// sections and decodes it through the loader, the way an assembler's
// output would be consumed.
func buildModule(sections ...image.Section) *loader.Module {
	img := image.Image{
		MajorVersion: 1,
		Type:         image.ImageTypeApplication,
		Sections:     sections,
	}
	return loader.New(img)
}

// linkSingle links one module alone; newThread builds a thread to run it.
func linkSingle(t *testing.T, mod *loader.Module) *linker.LinkedProgram {
	t.Helper()
	p, err := linker.Link([]*loader.Module{mod})
	require.NoError(t, err)
	return p
}

func newThread(t *testing.T, p *linker.LinkedProgram) *vm.Thread {
	t.Helper()
	th, err := vm.NewThread(p, 0)
	require.NoError(t, err)
	return th
}

// run builds a single-function, single-type module out of code/locals,
// links it alone, and runs it from function 0.
func run(t *testing.T, typ [2][]loader.ValueType, locals []loader.LocalSlot, code []byte) ([]uint64, *vm.Trap) {
	t.Helper()
	mod := buildModule(
		typeSection(typ),
		functionSection(fn{typeIndex: 0, localIndex: 0, code: code}),
		localListSection(locals),
	)
	prog := linkSingle(t, mod)
	th := newThread(t, prog)
	return th.Run(0)
}

// --- bytecode assembly helpers --------------------------------------

type asm struct {
	buf []byte
}

// op encodes an instruction's 2-byte opcode: the category (high byte)
// first, then the within-category selector (low byte), matching how
// Thread.Run reads code[pcOffset] as the category index and
// code[pcOffset+1] as the handler index within it.
func (a *asm) op(op vm.Opcode) *asm {
	a.buf = append(a.buf, byte(op>>8), byte(op))
	return a
}

func (a *asm) u16(v uint16) *asm {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	a.buf = append(a.buf, b[:]...)
	return a
}

func (a *asm) u32(v uint32) *asm {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	a.buf = append(a.buf, b[:]...)
	return a
}

func (a *asm) i32(v int32) *asm { return a.u32(uint32(v)) }

func (a *asm) u64(v uint64) *asm {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	a.buf = append(a.buf, b[:]...)
	return a
}

func (a *asm) code() []byte { return a.buf }
