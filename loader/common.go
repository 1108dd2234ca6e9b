package loader

import (
	"encoding/binary"

	"github.com/hemashushu/ancvm/image"
)

// NoFunctionIndex marks an absent constructor/destructor/entry-function
// reference in CommonProperty.
const NoFunctionIndex = ^uint32(0)

// CommonProperty is the module-level metadata carried by the
// CommonProperty section: the module's own name and version, which
// function (if any) the linker should treat as the program's start,
// optional constructor/destructor hooks, and the list of dependency module
// names in link order.
type CommonProperty struct {
	Name                        string
	VersionMajor                uint16
	VersionMinor                uint16
	VersionPatch                uint16
	EntryFunctionInternalIndex  uint32 // NoFunctionIndex if absent
	ConstructorInternalIndex    uint32 // NoFunctionIndex if absent
	DestructorInternalIndex     uint32 // NoFunctionIndex if absent
	ImportModules               []string
}

// GetCommonProperty returns the module's CommonProperty metadata. A module
// with no CommonProperty section returns a zero-value CommonProperty (an
// empty name, no entry/constructor/destructor, no imports) rather than an
// error — the section is optional for plain object files with no linkage
// requirements.
func (m *Module) GetCommonProperty() (CommonProperty, error) {
	return m.commonPropertyValue()
}

// commonPropertySectionLayout: the section is a single fixed-prefix record
// (not the item-array two-table convention, since it holds one record, not
// a list) followed by a data pool:
//
//	name_offset:u32        name_length:u32
//	version_major:u16      version_minor:u16
//	version_patch:u16      pad:u16
//	entry_function_index:u32
//	constructor_index:u32
//	destructor_index:u32
//	import_module_count:u32
//	import_module_table: [(offset:u32, length:u32); import_module_count]
//	pool: name bytes, then each import module's name bytes
const commonPropertyPrefixSize = 32

func (m *Module) commonPropertyValue() (CommonProperty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commonPropertyDone {
		return m.commonProperty, m.commonPropertyErr
	}
	m.commonPropertyDone = true

	sec, ok := m.Image.Section(image.SectionCommonProperty)
	if !ok {
		m.commonProperty = CommonProperty{
			EntryFunctionInternalIndex: NoFunctionIndex,
			ConstructorInternalIndex:   NoFunctionIndex,
			DestructorInternalIndex:    NoFunctionIndex,
		}
		return m.commonProperty, nil
	}

	data := sec.Data
	if len(data) < commonPropertyPrefixSize {
		err := &image.Error{Kind: image.ErrorMalformedTable, Section: sec.ID, Detail: "CommonProperty section shorter than its fixed prefix"}
		m.commonPropertyErr = err
		return CommonProperty{}, err
	}

	nameOffset := binary.LittleEndian.Uint32(data[0:4])
	nameLength := binary.LittleEndian.Uint32(data[4:8])
	versionMajor := binary.LittleEndian.Uint16(data[8:10])
	versionMinor := binary.LittleEndian.Uint16(data[10:12])
	versionPatch := binary.LittleEndian.Uint16(data[12:14])
	entryFn := binary.LittleEndian.Uint32(data[16:20])
	ctorFn := binary.LittleEndian.Uint32(data[20:24])
	dtorFn := binary.LittleEndian.Uint32(data[24:28])
	importCount := binary.LittleEndian.Uint32(data[28:32])

	tableEnd := commonPropertyPrefixSize + int(importCount)*8
	if tableEnd > len(data) {
		err := &image.Error{Kind: image.ErrorMalformedTable, Section: sec.ID, Detail: "CommonProperty import-module table runs past section end"}
		m.commonPropertyErr = err
		return CommonProperty{}, err
	}
	pool := data[tableEnd:]

	name, err := decodeString(pool, nameOffset, nameLength, sec.ID)
	if err != nil {
		m.commonPropertyErr = err
		return CommonProperty{}, err
	}

	imports := make([]string, importCount)
	for i := uint32(0); i < importCount; i++ {
		rec := data[commonPropertyPrefixSize+int(i)*8 : commonPropertyPrefixSize+int(i+1)*8]
		off := binary.LittleEndian.Uint32(rec[0:4])
		length := binary.LittleEndian.Uint32(rec[4:8])
		name, err := decodeString(pool, off, length, sec.ID)
		if err != nil {
			m.commonPropertyErr = err
			return CommonProperty{}, err
		}
		imports[i] = name
	}

	m.commonProperty = CommonProperty{
		Name:                       name,
		VersionMajor:               versionMajor,
		VersionMinor:               versionMinor,
		VersionPatch:               versionPatch,
		EntryFunctionInternalIndex: entryFn,
		ConstructorInternalIndex:   ctorFn,
		DestructorInternalIndex:    dtorFn,
		ImportModules:              imports,
	}
	return m.commonProperty, nil
}
