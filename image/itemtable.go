package image

import "encoding/binary"

// The "two-table" convention used by most section payloads (spec §6.1):
//
//	item_count:u32  pad:u32  items:[item;item_count]  data_pool:[u8]
//
// Every section that follows this convention encodes its own fixed-size
// item records (e.g. a FunctionEntry or TypeEntry); this file only handles
// the shared envelope — the item count, the padding, and splitting the
// trailing variable-length data pool back out. Grounded on the
// count-prefixed, pool-trailing layout read by go-interpreter/wagon's
// section reader.
const itemTableHeaderSize = 8

// EncodeItemTable assembles the two-table envelope around already-encoded,
// fixed-width item records and a variable-length data pool. itemSize is the
// encoded width of one item record; len(items) must be a multiple of it.
func EncodeItemTable(itemSize int, items []byte, pool []byte) []byte {
	var itemCount uint32
	if itemSize > 0 {
		itemCount = uint32(len(items) / itemSize)
	}

	buf := make([]byte, itemTableHeaderSize+len(items)+len(pool))
	binary.LittleEndian.PutUint32(buf[0:4], itemCount)
	binary.LittleEndian.PutUint32(buf[4:8], 0) // pad
	copy(buf[8:8+len(items)], items)
	copy(buf[8+len(items):], pool)
	return buf
}

// DecodeItemTable splits a two-table envelope back into its raw item-record
// bytes and data pool. itemSize is the expected width of one item record.
func DecodeItemTable(data []byte, itemSize int) (items []byte, pool []byte, err error) {
	if len(data) < itemTableHeaderSize {
		return nil, nil, &Error{Kind: ErrorMalformedTable, Detail: "item table shorter than its own header"}
	}
	itemCount := binary.LittleEndian.Uint32(data[0:4])
	itemsLen := int(itemCount) * itemSize
	if itemsLen < 0 || itemTableHeaderSize+itemsLen > len(data) {
		return nil, nil, &Error{Kind: ErrorMalformedTable, Detail: "item table declares more items than it has bytes for"}
	}
	items = data[itemTableHeaderSize : itemTableHeaderSize+itemsLen]
	pool = data[itemTableHeaderSize+itemsLen:]
	return items, pool, nil
}
