package cmd

import (
	"encoding/binary"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/hemashushu/ancvm/image"
	"github.com/hemashushu/ancvm/loader"
	"github.com/hemashushu/ancvm/vm"
)

// Grounded on runtime/fixture_test.go's own trim of vm/fixture_test.go's
// "mirror an assembler's output" style, extended with a CommonProperty
// section builder since the CLI (unlike the runtime package's own tests)
// drives the entry function through linker.Link's CommonProperty lookup,
// not a function index passed in directly.

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

// localListSection hand-assembles a LocalVariable section; every function
// names a local-list index, so a runnable image needs one entry per index.
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

// commonPropertySection hand-assembles a CommonProperty section per
// loader/common.go's documented layout, naming entryFn as the module's
// entry function (or loader.NoFunctionIndex for none) and no imports.
func commonPropertySection(name string, entryFn uint32, imports ...string) image.Section {
	prefix := make([]byte, 32)
	binary.LittleEndian.PutUint32(prefix[4:8], uint32(len(name)))
	binary.LittleEndian.PutUint32(prefix[16:20], entryFn)
	binary.LittleEndian.PutUint32(prefix[20:24], loader.NoFunctionIndex)
	binary.LittleEndian.PutUint32(prefix[24:28], loader.NoFunctionIndex)
	binary.LittleEndian.PutUint32(prefix[28:32], uint32(len(imports)))

	table := make([]byte, len(imports)*8)
	pool := []byte(name)
	for i, imp := range imports {
		binary.LittleEndian.PutUint32(table[i*8:i*8+4], uint32(len(pool)))
		binary.LittleEndian.PutUint32(table[i*8+4:i*8+8], uint32(len(imp)))
		pool = append(pool, imp...)
	}

	data := append(prefix, table...)
	data = append(data, pool...)
	return image.Section{ID: image.SectionCommonProperty, Data: data}
}

func buildImage(sections ...image.Section) image.Image {
	return image.Image{MajorVersion: 1, Type: image.ImageTypeApplication, Sections: sections}
}

func writeImage(t *testing.T, gs *GlobalState, path string, sections ...image.Section) {
	t.Helper()
	buf, err := image.Encode(buildImage(sections...), image.EncodeOptions{})
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(gs.FS, path, buf, 0o644))
}

type asm struct {
	buf []byte
}

func (a *asm) op(op vm.Opcode) *asm {
	a.buf = append(a.buf, byte(op>>8), byte(op))
	return a
}

func (a *asm) u32(v uint32) *asm {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	a.buf = append(a.buf, b[:]...)
	return a
}

func (a *asm) i32(v int32) *asm { return a.u32(uint32(v)) }

func (a *asm) code() []byte { return a.buf }
