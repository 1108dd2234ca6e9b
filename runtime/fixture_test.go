package runtime

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hemashushu/ancvm/image"
	"github.com/hemashushu/ancvm/linker"
	"github.com/hemashushu/ancvm/loader"
	"github.com/hemashushu/ancvm/vm"
)

// Grounded on vm/fixture_test.go's "mirror an assembler's output" style,
// trimmed to the sections these tests actually exercise.

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

func buildModule(sections ...image.Section) *loader.Module {
	img := image.Image{
		MajorVersion: 1,
		Type:         image.ImageTypeApplication,
		Sections:     sections,
	}
	return loader.New(img)
}

func linkSingle(t *testing.T, mod *loader.Module) *linker.LinkedProgram {
	t.Helper()
	p, err := linker.Link([]*loader.Module{mod})
	require.NoError(t, err)
	return p
}

type asm struct {
	buf []byte
}

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
