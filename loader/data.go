package loader

import (
	"encoding/binary"

	"github.com/hemashushu/ancvm/image"
)

// Each of the three data sections shares one item record layout:
// data_type:u8, alignment:u8, pad:u16, length:u32, offset:u32 (12 bytes).
// ReadOnly and ReadWrite sections carry their initial bytes in the data
// pool at offset; Uninit carries no bytes (offset/pool are unused).
const dataItemSize = 12

func decodeDataSection(sec image.Section, kind DataKind, withBytes bool) ([]DataEntry, error) {
	items, pool, err := image.DecodeItemTable(sec.Data, dataItemSize)
	if err != nil {
		return nil, err
	}

	count := len(items) / dataItemSize
	entries := make([]DataEntry, count)
	for i := 0; i < count; i++ {
		rec := items[i*dataItemSize : (i+1)*dataItemSize]
		dt, err := decodeMemoryDataType(rec[0])
		if err != nil {
			return nil, err
		}
		alignment := rec[1]
		if alignment != 1 && alignment != 2 && alignment != 4 && alignment != 8 {
			return nil, &image.Error{Kind: image.ErrorMalformedTable, Section: sec.ID, Detail: "data alignment is not a power of two in 1..=8"}
		}
		length := binary.LittleEndian.Uint32(rec[4:8])
		offset := binary.LittleEndian.Uint32(rec[8:12])

		entry := DataEntry{Kind: kind, DataType: dt, Length: length, Alignment: alignment}
		if withBytes {
			end := int(offset) + int(length)
			if end > len(pool) || end < int(offset) {
				return nil, &image.Error{Kind: image.ErrorSectionOutOfRange, Section: sec.ID, Detail: "data entry bytes out of data pool range"}
			}
			data := make([]byte, length)
			copy(data, pool[offset:end])
			entry.Data = data
		}
		entries[i] = entry
	}
	return entries, nil
}

func (m *Module) readOnlyDataEntries() ([]DataEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readOnlyDone {
		return m.readOnlyData, m.readOnlyErr
	}
	m.readOnlyDone = true

	sec, ok := m.Image.Section(image.SectionReadOnlyData)
	if !ok {
		return nil, nil
	}
	entries, err := decodeDataSection(sec, DataKindReadOnly, true)
	m.readOnlyData, m.readOnlyErr = entries, err
	return entries, err
}

func (m *Module) readWriteDataEntries() ([]DataEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readWriteDone {
		return m.readWriteData, m.readWriteErr
	}
	m.readWriteDone = true

	sec, ok := m.Image.Section(image.SectionReadWriteData)
	if !ok {
		return nil, nil
	}
	entries, err := decodeDataSection(sec, DataKindReadWrite, true)
	m.readWriteData, m.readWriteErr = entries, err
	return entries, err
}

func (m *Module) uninitDataEntries() ([]DataEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uninitDone {
		return m.uninitData, m.uninitErr
	}
	m.uninitDone = true

	sec, ok := m.Image.Section(image.SectionUninitData)
	if !ok {
		return nil, nil
	}
	entries, err := decodeDataSection(sec, DataKindUninit, false)
	m.uninitData, m.uninitErr = entries, err
	return entries, err
}
