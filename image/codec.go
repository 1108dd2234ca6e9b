package image

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/klauspost/compress/zstd"
)

// headerSize is the fixed prefix before the section directory: magic(8) +
// major(2) + minor(2) + type(4) + section_count(4).
const headerSize = 20

// directoryEntrySize is one (id:u32, offset:u32, length:u32) record.
const directoryEntrySize = 12

// compressedFlag marks a directory entry's length field as describing a
// zstd-compressed payload rather than the section's literal bytes. The data
// pool itself stays self-describing (zstd frames carry their own
// decompressed size), so no separate "original length" field is needed.
const compressedFlag = uint32(1) << 31

// checksumSize is the trailing CRC32 (IEEE) of every byte preceding it.
const checksumSize = 4

// EncodeOptions controls section-payload compression. A section whose id is
// present and true in Compress is zstd-compressed before being written;
// Decode transparently reverses this regardless of the option used to
// produce the file.
type EncodeOptions struct {
	Compress map[SectionID]bool
}

// Encode serialises img to its on-disk byte representation.
func Encode(img Image, opts EncodeOptions) ([]byte, error) {
	n := len(img.Sections)
	payloads := make([][]byte, n)
	lengths := make([]uint32, n)

	var enc *zstd.Encoder
	for i, sec := range img.Sections {
		data := sec.Data
		flag := uint32(0)
		if opts.Compress != nil && opts.Compress[sec.ID] {
			if enc == nil {
				var err error
				enc, err = zstd.NewWriter(nil)
				if err != nil {
					return nil, &Error{Kind: ErrorMalformedTable, Section: sec.ID, Detail: err.Error()}
				}
				defer enc.Close()
			}
			data = enc.EncodeAll(sec.Data, nil)
			flag = compressedFlag
		}
		if uint32(len(data))&compressedFlag != 0 {
			return nil, &Error{Kind: ErrorMalformedTable, Section: sec.ID, Detail: "section payload too large to encode its length"}
		}
		payloads[i] = data
		lengths[i] = uint32(len(data)) | flag
	}

	directorySize := n * directoryEntrySize
	payloadSize := 0
	for _, p := range payloads {
		payloadSize += len(p)
	}

	buf := make([]byte, headerSize+directorySize+payloadSize+checksumSize)
	copy(buf[0:8], Magic[:])
	binary.LittleEndian.PutUint16(buf[8:10], img.MajorVersion)
	binary.LittleEndian.PutUint16(buf[10:12], img.MinorVersion)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(img.Type))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(n))

	payloadStart := headerSize + directorySize
	offset := 0
	for i, sec := range img.Sections {
		entry := buf[headerSize+i*directoryEntrySize : headerSize+(i+1)*directoryEntrySize]
		binary.LittleEndian.PutUint32(entry[0:4], uint32(sec.ID))
		binary.LittleEndian.PutUint32(entry[4:8], uint32(offset))
		binary.LittleEndian.PutUint32(entry[8:12], lengths[i])
		copy(buf[payloadStart+offset:payloadStart+offset+len(payloads[i])], payloads[i])
		offset += len(payloads[i])
	}

	sum := crc32.ChecksumIEEE(buf[:payloadStart+payloadSize])
	binary.LittleEndian.PutUint32(buf[payloadStart+payloadSize:], sum)
	return buf, nil
}

// Decode parses a byte slice into an Image, validating the magic, version,
// image type, section directory ranges, and trailing checksum.
func Decode(data []byte) (Image, error) {
	if len(data) < headerSize+checksumSize {
		return Image{}, &Error{Kind: ErrorTruncated, Detail: "shorter than a bare header"}
	}

	if string(data[0:8]) != string(Magic[:]) {
		return Image{}, &Error{Kind: ErrorBadMagic}
	}

	major := binary.LittleEndian.Uint16(data[8:10])
	minor := binary.LittleEndian.Uint16(data[10:12])
	if major != SupportedMajorVersion {
		return Image{}, &Error{Kind: ErrorVersionMismatch}
	}

	imgType := ImageType(binary.LittleEndian.Uint32(data[12:16]))
	if !imgType.Valid() {
		return Image{}, &Error{Kind: ErrorBadImageType}
	}

	count := binary.LittleEndian.Uint32(data[16:20])
	directorySize := int(count) * directoryEntrySize
	if headerSize+directorySize+checksumSize > len(data) {
		return Image{}, &Error{Kind: ErrorTruncated, Detail: "section directory runs past end of file"}
	}

	payloadStart := headerSize + directorySize
	payloadEnd := len(data) - checksumSize

	wantSum := binary.LittleEndian.Uint32(data[payloadEnd:])
	gotSum := crc32.ChecksumIEEE(data[:payloadEnd])
	if wantSum != gotSum {
		return Image{}, &Error{Kind: ErrorChecksumMismatch}
	}

	type span struct {
		start, end int
	}
	var spans []span

	var dec *zstd.Decoder
	sections := make([]Section, 0, count)
	for i := uint32(0); i < count; i++ {
		entry := data[headerSize+int(i)*directoryEntrySize : headerSize+int(i+1)*directoryEntrySize]
		id := SectionID(binary.LittleEndian.Uint32(entry[0:4]))
		rawOffset := binary.LittleEndian.Uint32(entry[4:8])
		rawLength := binary.LittleEndian.Uint32(entry[8:12])
		compressed := rawLength&compressedFlag != 0
		length := rawLength &^ compressedFlag

		start := payloadStart + int(rawOffset)
		end := start + int(length)
		if start < payloadStart || end > payloadEnd || end < start {
			return Image{}, &Error{Kind: ErrorSectionOutOfRange, Section: id}
		}
		for _, s := range spans {
			if start < s.end && s.start < end {
				return Image{}, &Error{Kind: ErrorSectionOverlap, Section: id}
			}
		}
		spans = append(spans, span{start, end})

		body := data[start:end]
		if compressed {
			if dec == nil {
				var err error
				dec, err = zstd.NewReader(nil)
				if err != nil {
					return Image{}, &Error{Kind: ErrorMalformedTable, Section: id, Detail: err.Error()}
				}
				defer dec.Close()
			}
			decoded, err := dec.DecodeAll(body, nil)
			if err != nil {
				return Image{}, &Error{Kind: ErrorMalformedTable, Section: id, Detail: err.Error()}
			}
			body = decoded
		}

		owned := make([]byte, len(body))
		copy(owned, body)
		sections = append(sections, Section{ID: id, Data: owned})
	}

	return Image{
		MajorVersion: major,
		MinorVersion: minor,
		Type:         imgType,
		Sections:     sections,
	}, nil
}
