package loader

import (
	"encoding/binary"

	"github.com/hemashushu/ancvm/image"
)

func decodeString(pool []byte, offset, length uint32, sectionID image.SectionID) (string, error) {
	end := int(offset) + int(length)
	if end > len(pool) || end < int(offset) {
		return "", &image.Error{Kind: image.ErrorSectionOutOfRange, Section: sectionID, Detail: "string out of data pool range"}
	}
	return string(pool[offset:end]), nil
}

// externalLibraryEntries decodes the ExternalLibrary section. Item record:
// name_offset:u32, name_length:u32, kind:u8, pad:u8, pad:u16 (12 bytes).
func (m *Module) externalLibraryEntries() ([]ExternalLibraryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.externalLibrariesDone {
		return m.externalLibraries, m.externalLibrariesErr
	}
	m.externalLibrariesDone = true

	sec, ok := m.Image.Section(image.SectionExternalLibrary)
	if !ok {
		return nil, nil
	}

	const itemSize = 12
	items, pool, err := image.DecodeItemTable(sec.Data, itemSize)
	if err != nil {
		m.externalLibrariesErr = err
		return nil, err
	}

	count := len(items) / itemSize
	entries := make([]ExternalLibraryEntry, count)
	for i := 0; i < count; i++ {
		rec := items[i*itemSize : (i+1)*itemSize]
		nameOffset := binary.LittleEndian.Uint32(rec[0:4])
		nameLength := binary.LittleEndian.Uint32(rec[4:8])
		kind := LibraryKind(rec[8])

		name, err := decodeString(pool, nameOffset, nameLength, sec.ID)
		if err != nil {
			m.externalLibrariesErr = err
			return nil, err
		}
		if kind > LibraryKindShared {
			err := &image.Error{Kind: image.ErrorMalformedTable, Section: sec.ID, Detail: "invalid library kind byte"}
			m.externalLibrariesErr = err
			return nil, err
		}
		entries[i] = ExternalLibraryEntry{Name: name, Kind: kind}
	}

	m.externalLibraries = entries
	return entries, nil
}

// externalFunctionEntries decodes the ExternalFunction section. Item
// record: library_index:u32, name_offset:u32, name_length:u32,
// type_index:u32 (16 bytes).
func (m *Module) externalFunctionEntries() ([]ExternalFunctionEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.externalFunctionsDone {
		return m.externalFunctions, m.externalFunctionsErr
	}
	m.externalFunctionsDone = true

	sec, ok := m.Image.Section(image.SectionExternalFunction)
	if !ok {
		return nil, nil
	}

	const itemSize = 16
	items, pool, err := image.DecodeItemTable(sec.Data, itemSize)
	if err != nil {
		m.externalFunctionsErr = err
		return nil, err
	}

	count := len(items) / itemSize
	entries := make([]ExternalFunctionEntry, count)
	for i := 0; i < count; i++ {
		rec := items[i*itemSize : (i+1)*itemSize]
		libraryIndex := binary.LittleEndian.Uint32(rec[0:4])
		nameOffset := binary.LittleEndian.Uint32(rec[4:8])
		nameLength := binary.LittleEndian.Uint32(rec[8:12])
		typeIndex := binary.LittleEndian.Uint32(rec[12:16])

		name, err := decodeString(pool, nameOffset, nameLength, sec.ID)
		if err != nil {
			m.externalFunctionsErr = err
			return nil, err
		}
		entries[i] = ExternalFunctionEntry{LibraryIndex: libraryIndex, Name: name, TypeIndex: typeIndex}
	}

	m.externalFunctions = entries
	return entries, nil
}

// importFunctionEntries decodes the ImportFunction section. Item record:
// name_offset:u32, name_length:u32, type_index:u32 (12 bytes).
func (m *Module) importFunctionEntries() ([]ImportFunctionEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.importFunctionsDone {
		return m.importFunctions, m.importFunctionsErr
	}
	m.importFunctionsDone = true

	sec, ok := m.Image.Section(image.SectionImportFunction)
	if !ok {
		return nil, nil
	}

	const itemSize = 12
	items, pool, err := image.DecodeItemTable(sec.Data, itemSize)
	if err != nil {
		m.importFunctionsErr = err
		return nil, err
	}

	count := len(items) / itemSize
	entries := make([]ImportFunctionEntry, count)
	for i := 0; i < count; i++ {
		rec := items[i*itemSize : (i+1)*itemSize]
		nameOffset := binary.LittleEndian.Uint32(rec[0:4])
		nameLength := binary.LittleEndian.Uint32(rec[4:8])
		typeIndex := binary.LittleEndian.Uint32(rec[8:12])

		name, err := decodeString(pool, nameOffset, nameLength, sec.ID)
		if err != nil {
			m.importFunctionsErr = err
			return nil, err
		}
		entries[i] = ImportFunctionEntry{FullName: name, TypeIndex: typeIndex}
	}

	m.importFunctions = entries
	return entries, nil
}

// importDataEntries decodes the ImportData section. Item record:
// name_offset:u32, name_length:u32 (8 bytes).
func (m *Module) importDataEntries() ([]ImportDataEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.importDataDone {
		return m.importData, m.importDataErr
	}
	m.importDataDone = true

	sec, ok := m.Image.Section(image.SectionImportData)
	if !ok {
		return nil, nil
	}

	const itemSize = 8
	items, pool, err := image.DecodeItemTable(sec.Data, itemSize)
	if err != nil {
		m.importDataErr = err
		return nil, err
	}

	count := len(items) / itemSize
	entries := make([]ImportDataEntry, count)
	for i := 0; i < count; i++ {
		rec := items[i*itemSize : (i+1)*itemSize]
		nameOffset := binary.LittleEndian.Uint32(rec[0:4])
		nameLength := binary.LittleEndian.Uint32(rec[4:8])

		name, err := decodeString(pool, nameOffset, nameLength, sec.ID)
		if err != nil {
			m.importDataErr = err
			return nil, err
		}
		entries[i] = ImportDataEntry{FullName: name}
	}

	m.importData = entries
	return entries, nil
}

// functionNamePathEntries decodes the FunctionNamePath section. Item
// record: name_offset:u32, name_length:u32, exported:u8, pad:u8, pad:u16
// (12 bytes).
func (m *Module) functionNamePathEntries() ([]NamePathEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.functionNamePathsDone {
		return m.functionNamePaths, m.functionNamePathsErr
	}
	m.functionNamePathsDone = true

	sec, ok := m.Image.Section(image.SectionFunctionNamePath)
	if !ok {
		return nil, nil
	}
	entries, err := decodeNamePathSection(sec)
	m.functionNamePaths, m.functionNamePathsErr = entries, err
	return entries, err
}

// dataNamePathEntries decodes the DataNamePath section (same layout as
// FunctionNamePath).
func (m *Module) dataNamePathEntries() ([]NamePathEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dataNamePathsDone {
		return m.dataNamePaths, m.dataNamePathsErr
	}
	m.dataNamePathsDone = true

	sec, ok := m.Image.Section(image.SectionDataNamePath)
	if !ok {
		return nil, nil
	}
	entries, err := decodeNamePathSection(sec)
	m.dataNamePaths, m.dataNamePathsErr = entries, err
	return entries, err
}

func decodeNamePathSection(sec image.Section) ([]NamePathEntry, error) {
	const itemSize = 12
	items, pool, err := image.DecodeItemTable(sec.Data, itemSize)
	if err != nil {
		return nil, err
	}

	count := len(items) / itemSize
	entries := make([]NamePathEntry, count)
	for i := 0; i < count; i++ {
		rec := items[i*itemSize : (i+1)*itemSize]
		nameOffset := binary.LittleEndian.Uint32(rec[0:4])
		nameLength := binary.LittleEndian.Uint32(rec[4:8])
		exported := rec[8] != 0

		name, err := decodeString(pool, nameOffset, nameLength, sec.ID)
		if err != nil {
			return nil, err
		}
		entries[i] = NamePathEntry{FullName: name, Exported: exported}
	}
	return entries, nil
}
