// Package loader turns a decoded image.Image into typed, validated
// accessors (spec.md §4.2): type entries, function entries, local-variable
// lists, data entries, name paths, and (for Application images) the
// already-linked index tables.
//
// Validation is lazy and cached per section: the first out-of-range or
// malformed access to a section fails permanently for that section, the
// way the teacher's config loader (cmd/state/state.go) parses its config
// file once on first use and remembers a parse failure rather than
// re-attempting it on every subsequent read.
package loader

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/spf13/afero"

	"github.com/hemashushu/ancvm/image"
)

// ValueType is one of the four operand types the machine works with.
type ValueType uint8

// The four operand value types (spec.md §3).
const (
	ValueTypeI32 ValueType = iota
	ValueTypeI64
	ValueTypeF32
	ValueTypeF64
)

func (v ValueType) String() string {
	switch v {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(v))
	}
}

// MemoryDataType is the storage kind of a local slot or data entry; it is a
// superset of ValueType adding raw byte buffers.
type MemoryDataType uint8

// The memory data type kinds (spec.md §3: "i8|i16|i32|i64|f32|f64|bytes").
const (
	MemoryDataTypeI8 MemoryDataType = iota
	MemoryDataTypeI16
	MemoryDataTypeI32
	MemoryDataTypeI64
	MemoryDataTypeF32
	MemoryDataTypeF64
	MemoryDataTypeBytes
)

// TypeEntry is an ordered sequence of parameter and result operand types.
type TypeEntry struct {
	Params  []ValueType
	Results []ValueType
}

// FunctionEntry references a type index, a local-list index, and owns a
// contiguous bytecode blob.
type FunctionEntry struct {
	TypeIndex  uint32
	LocalIndex uint32
	Code       []byte
}

// LocalSlot is one entry of a Local Variable List Entry.
type LocalSlot struct {
	DataType  MemoryDataType
	Length    uint32
	Alignment uint8
}

// LocalListEntry is an ordered list of local-variable slots; function
// parameters occupy the leading slots.
type LocalListEntry struct {
	Slots []LocalSlot
}

// DataKind distinguishes the three Data Entry flavors.
type DataKind uint8

// The three data section kinds, in the order data-public-indices are
// assigned across them (spec.md §4.3 "Data linking").
const (
	DataKindReadOnly DataKind = iota
	DataKindReadWrite
	DataKindUninit
)

// DataEntry is one Data Entry: a memory data type, length, alignment and
// (for ReadOnly/ReadWrite) its initial bytes.
type DataEntry struct {
	Kind      DataKind
	DataType  MemoryDataType
	Length    uint32
	Alignment uint8
	Data      []byte // nil for DataKindUninit
}

// LibraryKind is the provenance of an External Library Entry.
type LibraryKind uint8

// The three external-library kinds.
const (
	LibraryKindSystem LibraryKind = iota
	LibraryKindUser
	LibraryKindShared
)

// ExternalLibraryEntry names a shared object or system library an external
// function is resolved against.
type ExternalLibraryEntry struct {
	Name string
	Kind LibraryKind
}

// ExternalFunctionEntry names a function within an external library and its
// call-site type.
type ExternalFunctionEntry struct {
	LibraryIndex uint32
	Name         string
	TypeIndex    uint32
}

// ImportFunctionEntry is a fully-qualified function name resolved at link
// time against another module's exported name path.
type ImportFunctionEntry struct {
	FullName  string
	TypeIndex uint32
}

// ImportDataEntry is a fully-qualified data name resolved at link time.
type ImportDataEntry struct {
	FullName string
}

// NamePathEntry maps an internal index to its exported fully-qualified name.
type NamePathEntry struct {
	FullName string
	Exported bool
}

// Module is the validated, typed view of one decoded image. Accessors fail
// permanently (caching the failure) once a section is found malformed.
type Module struct {
	Image image.Image

	mu sync.Mutex

	types     []TypeEntry
	typesErr  error
	typesDone bool

	functions     []FunctionEntry
	functionsErr  error
	functionsDone bool

	localLists     []LocalListEntry
	localListsErr  error
	localListsDone bool

	readOnlyData     []DataEntry
	readOnlyErr      error
	readOnlyDone     bool
	readWriteData    []DataEntry
	readWriteErr     error
	readWriteDone    bool
	uninitData       []DataEntry
	uninitErr        error
	uninitDone       bool

	externalLibraries     []ExternalLibraryEntry
	externalLibrariesErr  error
	externalLibrariesDone bool

	externalFunctions     []ExternalFunctionEntry
	externalFunctionsErr  error
	externalFunctionsDone bool

	importFunctions     []ImportFunctionEntry
	importFunctionsErr  error
	importFunctionsDone bool

	importData     []ImportDataEntry
	importDataErr  error
	importDataDone bool

	functionNamePaths     []NamePathEntry
	functionNamePathsErr  error
	functionNamePathsDone bool

	dataNamePaths     []NamePathEntry
	dataNamePathsErr  error
	dataNamePathsDone bool

	commonProperty     CommonProperty
	commonPropertyErr  error
	commonPropertyDone bool
}

// Open reads path from fs, decodes it, and returns a Module wrapping the
// decoded image. The returned Module performs no section validation yet —
// that happens lazily, per section, on first accessor call.
func Open(fs afero.Fs, path string) (*Module, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("loader: reading %s: %w", path, err)
	}
	img, err := image.Decode(raw)
	if err != nil {
		return nil, err
	}
	return New(img), nil
}

// New wraps an already-decoded image.Image in a Module.
func New(img image.Image) *Module {
	return &Module{Image: img}
}

func indexOutOfRange(section image.SectionID, index, count uint32) error {
	return &image.Error{
		Kind:    image.ErrorIndexOutOfRange,
		Section: section,
		Detail:  fmt.Sprintf("index %d out of range (%d entries)", index, count),
	}
}

// GetTypeEntry returns the type table entry at i.
func (m *Module) GetTypeEntry(i uint32) (TypeEntry, error) {
	entries, err := m.typeEntries()
	if err != nil {
		return TypeEntry{}, err
	}
	if int(i) >= len(entries) {
		return TypeEntry{}, indexOutOfRange(image.SectionType, i, uint32(len(entries)))
	}
	return entries[i], nil
}

// GetFunctionEntry returns the function table entry at i.
func (m *Module) GetFunctionEntry(i uint32) (FunctionEntry, error) {
	entries, err := m.functionEntries()
	if err != nil {
		return FunctionEntry{}, err
	}
	if int(i) >= len(entries) {
		return FunctionEntry{}, indexOutOfRange(image.SectionFunction, i, uint32(len(entries)))
	}
	return entries[i], nil
}

// GetLocalListEntry returns the local-variable-list entry at i.
func (m *Module) GetLocalListEntry(i uint32) (LocalListEntry, error) {
	entries, err := m.localListEntries()
	if err != nil {
		return LocalListEntry{}, err
	}
	if int(i) >= len(entries) {
		return LocalListEntry{}, indexOutOfRange(image.SectionLocalVariable, i, uint32(len(entries)))
	}
	return entries[i], nil
}

// GetDataEntry returns the data entry at i within the given data section
// kind (ReadOnly, ReadWrite, or Uninit).
func (m *Module) GetDataEntry(kind DataKind, i uint32) (DataEntry, error) {
	var entries []DataEntry
	var err error
	var sectionID image.SectionID
	switch kind {
	case DataKindReadOnly:
		entries, err = m.readOnlyDataEntries()
		sectionID = image.SectionReadOnlyData
	case DataKindReadWrite:
		entries, err = m.readWriteDataEntries()
		sectionID = image.SectionReadWriteData
	case DataKindUninit:
		entries, err = m.uninitDataEntries()
		sectionID = image.SectionUninitData
	default:
		return DataEntry{}, fmt.Errorf("loader: unknown data kind %d", kind)
	}
	if err != nil {
		return DataEntry{}, err
	}
	if int(i) >= len(entries) {
		return DataEntry{}, indexOutOfRange(sectionID, i, uint32(len(entries)))
	}
	return entries[i], nil
}

// GetExternalLibraryEntry returns the external-library entry at i.
func (m *Module) GetExternalLibraryEntry(i uint32) (ExternalLibraryEntry, error) {
	entries, err := m.externalLibraryEntries()
	if err != nil {
		return ExternalLibraryEntry{}, err
	}
	if int(i) >= len(entries) {
		return ExternalLibraryEntry{}, indexOutOfRange(image.SectionExternalLibrary, i, uint32(len(entries)))
	}
	return entries[i], nil
}

// GetExternalFunctionEntry returns the external-function entry at i.
func (m *Module) GetExternalFunctionEntry(i uint32) (ExternalFunctionEntry, error) {
	entries, err := m.externalFunctionEntries()
	if err != nil {
		return ExternalFunctionEntry{}, err
	}
	if int(i) >= len(entries) {
		return ExternalFunctionEntry{}, indexOutOfRange(image.SectionExternalFunction, i, uint32(len(entries)))
	}
	return entries[i], nil
}

// GetImportFunctionEntry returns the import-function entry at i.
func (m *Module) GetImportFunctionEntry(i uint32) (ImportFunctionEntry, error) {
	entries, err := m.importFunctionEntries()
	if err != nil {
		return ImportFunctionEntry{}, err
	}
	if int(i) >= len(entries) {
		return ImportFunctionEntry{}, indexOutOfRange(image.SectionImportFunction, i, uint32(len(entries)))
	}
	return entries[i], nil
}

// GetImportDataEntry returns the import-data entry at i.
func (m *Module) GetImportDataEntry(i uint32) (ImportDataEntry, error) {
	entries, err := m.importDataEntries()
	if err != nil {
		return ImportDataEntry{}, err
	}
	if int(i) >= len(entries) {
		return ImportDataEntry{}, indexOutOfRange(image.SectionImportData, i, uint32(len(entries)))
	}
	return entries[i], nil
}

// GetFunctionNamePath returns the exported-name entry for function index i.
func (m *Module) GetFunctionNamePath(i uint32) (NamePathEntry, error) {
	entries, err := m.functionNamePathEntries()
	if err != nil {
		return NamePathEntry{}, err
	}
	if int(i) >= len(entries) {
		return NamePathEntry{}, indexOutOfRange(image.SectionFunctionNamePath, i, uint32(len(entries)))
	}
	return entries[i], nil
}

// GetDataNamePath returns the exported-name entry for data index i.
func (m *Module) GetDataNamePath(i uint32) (NamePathEntry, error) {
	entries, err := m.dataNamePathEntries()
	if err != nil {
		return NamePathEntry{}, err
	}
	if int(i) >= len(entries) {
		return NamePathEntry{}, indexOutOfRange(image.SectionDataNamePath, i, uint32(len(entries)))
	}
	return entries[i], nil
}

// FunctionNamePathCount returns the number of function name-path entries.
func (m *Module) FunctionNamePathCount() (int, error) {
	entries, err := m.functionNamePathEntries()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// DataNamePathCount returns the number of data name-path entries.
func (m *Module) DataNamePathCount() (int, error) {
	entries, err := m.dataNamePathEntries()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// ImportFunctionCount returns the number of import-function entries.
func (m *Module) ImportFunctionCount() (int, error) {
	entries, err := m.importFunctionEntries()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// ImportDataCount returns the number of import-data entries.
func (m *Module) ImportDataCount() (int, error) {
	entries, err := m.importDataEntries()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// ReadOnlyDataCount returns the number of read-only data entries.
func (m *Module) ReadOnlyDataCount() (int, error) {
	entries, err := m.readOnlyDataEntries()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// ReadWriteDataCount returns the number of read-write data entries.
func (m *Module) ReadWriteDataCount() (int, error) {
	entries, err := m.readWriteDataEntries()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// UninitDataCount returns the number of uninitialised data entries.
func (m *Module) UninitDataCount() (int, error) {
	entries, err := m.uninitDataEntries()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// ExternalLibraryCount returns the number of external-library entries.
func (m *Module) ExternalLibraryCount() (int, error) {
	entries, err := m.externalLibraryEntries()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// ExternalFunctionCount returns the number of external-function entries.
func (m *Module) ExternalFunctionCount() (int, error) {
	entries, err := m.externalFunctionEntries()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// FunctionCount returns the number of function entries, validating the
// section on first call.
func (m *Module) FunctionCount() (int, error) {
	entries, err := m.functionEntries()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// TypeCount returns the number of type entries, validating the section on
// first call.
func (m *Module) TypeCount() (int, error) {
	entries, err := m.typeEntries()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func decodeValueType(b byte) (ValueType, error) {
	if b > byte(ValueTypeF64) {
		return 0, fmt.Errorf("loader: invalid value type byte %#x", b)
	}
	return ValueType(b), nil
}

func decodeMemoryDataType(b byte) (MemoryDataType, error) {
	if b > byte(MemoryDataTypeBytes) {
		return 0, fmt.Errorf("loader: invalid memory data type byte %#x", b)
	}
	return MemoryDataType(b), nil
}

// typeEntries decodes and caches the Type section. Each item record is:
// param_count:u8, result_count:u8, pad:u16, params_offset:u32,
// results_offset:u32 — params/results bytes (one ValueType byte each) live
// in the data pool.
func (m *Module) typeEntries() ([]TypeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.typesDone {
		return m.types, m.typesErr
	}
	m.typesDone = true

	sec, ok := m.Image.Section(image.SectionType)
	if !ok {
		m.types = nil
		return m.types, nil
	}

	const itemSize = 12
	items, pool, err := image.DecodeItemTable(sec.Data, itemSize)
	if err != nil {
		m.typesErr = err
		return nil, err
	}

	count := len(items) / itemSize
	entries := make([]TypeEntry, count)
	for i := 0; i < count; i++ {
		rec := items[i*itemSize : (i+1)*itemSize]
		paramCount := int(rec[0])
		resultCount := int(rec[1])
		paramsOffset := binary.LittleEndian.Uint32(rec[4:8])
		resultsOffset := binary.LittleEndian.Uint32(rec[8:12])

		params, err := decodeValueTypes(pool, paramsOffset, paramCount)
		if err != nil {
			m.typesErr = err
			return nil, err
		}
		results, err := decodeValueTypes(pool, resultsOffset, resultCount)
		if err != nil {
			m.typesErr = err
			return nil, err
		}
		entries[i] = TypeEntry{Params: params, Results: results}
	}

	m.types = entries
	return entries, nil
}

func decodeValueTypes(pool []byte, offset uint32, count int) ([]ValueType, error) {
	if count == 0 {
		return nil, nil
	}
	end := int(offset) + count
	if int(offset) < 0 || end > len(pool) {
		return nil, &image.Error{Kind: image.ErrorSectionOutOfRange, Section: image.SectionType, Detail: "value-type slice out of data pool range"}
	}
	out := make([]ValueType, count)
	for i, b := range pool[offset:end] {
		vt, err := decodeValueType(b)
		if err != nil {
			return nil, err
		}
		out[i] = vt
	}
	return out, nil
}

// functionEntries decodes and caches the Function section. Each item record
// is: type_index:u32, local_index:u32, code_offset:u32, code_length:u32;
// the code bytes live in the data pool.
func (m *Module) functionEntries() ([]FunctionEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.functionsDone {
		return m.functions, m.functionsErr
	}
	m.functionsDone = true

	sec, ok := m.Image.Section(image.SectionFunction)
	if !ok {
		return nil, nil
	}

	const itemSize = 16
	items, pool, err := image.DecodeItemTable(sec.Data, itemSize)
	if err != nil {
		m.functionsErr = err
		return nil, err
	}

	count := len(items) / itemSize
	entries := make([]FunctionEntry, count)
	for i := 0; i < count; i++ {
		rec := items[i*itemSize : (i+1)*itemSize]
		typeIndex := binary.LittleEndian.Uint32(rec[0:4])
		localIndex := binary.LittleEndian.Uint32(rec[4:8])
		codeOffset := binary.LittleEndian.Uint32(rec[8:12])
		codeLength := binary.LittleEndian.Uint32(rec[12:16])

		end := int(codeOffset) + int(codeLength)
		if end > len(pool) || end < int(codeOffset) {
			err := &image.Error{Kind: image.ErrorSectionOutOfRange, Section: image.SectionFunction, Detail: "code blob out of data pool range"}
			m.functionsErr = err
			return nil, err
		}
		code := make([]byte, codeLength)
		copy(code, pool[codeOffset:end])
		entries[i] = FunctionEntry{TypeIndex: typeIndex, LocalIndex: localIndex, Code: code}
	}

	m.functions = entries
	return entries, nil
}

// localListEntries decodes and caches the LocalVariable section. Each item
// record is: slot_count:u8, pad:u8, pad:u16, slots_offset:u32; each slot in
// the pool is data_type:u8, alignment:u8, pad:u16, length:u32 (8 bytes).
func (m *Module) localListEntries() ([]LocalListEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.localListsDone {
		return m.localLists, m.localListsErr
	}
	m.localListsDone = true

	sec, ok := m.Image.Section(image.SectionLocalVariable)
	if !ok {
		return nil, nil
	}

	const itemSize = 8
	const slotSize = 8
	items, pool, err := image.DecodeItemTable(sec.Data, itemSize)
	if err != nil {
		m.localListsErr = err
		return nil, err
	}

	count := len(items) / itemSize
	entries := make([]LocalListEntry, count)
	for i := 0; i < count; i++ {
		rec := items[i*itemSize : (i+1)*itemSize]
		slotCount := int(rec[0])
		slotsOffset := binary.LittleEndian.Uint32(rec[4:8])

		end := int(slotsOffset) + slotCount*slotSize
		if end > len(pool) || end < int(slotsOffset) {
			err := &image.Error{Kind: image.ErrorSectionOutOfRange, Section: image.SectionLocalVariable, Detail: "local slot list out of data pool range"}
			m.localListsErr = err
			return nil, err
		}
		slots := make([]LocalSlot, slotCount)
		for s := 0; s < slotCount; s++ {
			srec := pool[int(slotsOffset)+s*slotSize : int(slotsOffset)+(s+1)*slotSize]
			dt, err := decodeMemoryDataType(srec[0])
			if err != nil {
				m.localListsErr = err
				return nil, err
			}
			alignment := srec[1]
			if alignment != 1 && alignment != 2 && alignment != 4 && alignment != 8 {
				err := fmt.Errorf("loader: local slot alignment %d is not a power of two in 1..=8", alignment)
				m.localListsErr = err
				return nil, err
			}
			length := binary.LittleEndian.Uint32(srec[4:8])
			slots[s] = LocalSlot{DataType: dt, Length: length, Alignment: alignment}
		}
		entries[i] = LocalListEntry{Slots: slots}
	}

	m.localLists = entries
	return entries, nil
}
