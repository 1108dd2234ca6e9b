// Package image implements the ancvm module image format: a self-describing
// binary container of named, length-prefixed sections (spec §4.1/§6.1).
//
// Grounded on the section-directory convention shown by
// go-interpreter/wagon's wasm.Section reader and tetratelabs/wazero's
// internal decoder — both read a fixed header, then a directory of
// (id, offset, length) triples pointing into a shared payload, tolerating
// unknown section ids rather than rejecting the file.
package image

import "fmt"

// ImageType tags what an image is for.
type ImageType uint32

// The three image kinds a module can be.
const (
	ImageTypeObject      ImageType = 1
	ImageTypeApplication ImageType = 2
	ImageTypeShared      ImageType = 3
)

func (t ImageType) String() string {
	switch t {
	case ImageTypeObject:
		return "object"
	case ImageTypeApplication:
		return "application"
	case ImageTypeShared:
		return "shared"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
}

// Valid reports whether t is one of the three known image types.
func (t ImageType) Valid() bool {
	switch t {
	case ImageTypeObject, ImageTypeApplication, ImageTypeShared:
		return true
	default:
		return false
	}
}

// SectionID identifies a section's contents; well-known ids are listed in
// spec §6.1. Unknown ids are preserved verbatim by Encode/Decode.
type SectionID uint32

// Well-known section ids.
const (
	SectionType                   SectionID = 0x10
	SectionLocalVariable          SectionID = 0x11
	SectionFunction               SectionID = 0x12
	SectionReadOnlyData           SectionID = 0x20
	SectionReadWriteData          SectionID = 0x21
	SectionUninitData             SectionID = 0x22
	SectionExternalLibrary        SectionID = 0x30
	SectionExternalFunction       SectionID = 0x31
	SectionImportFunction         SectionID = 0x32
	SectionImportData             SectionID = 0x33
	SectionFunctionNamePath       SectionID = 0x40
	SectionDataNamePath           SectionID = 0x41
	SectionCommonProperty         SectionID = 0x50
	SectionFunctionIndex          SectionID = 0x60
	SectionDataIndex              SectionID = 0x61
	SectionUnifiedExternalLibrary SectionID = 0x62
	SectionUnifiedExternalFunction SectionID = 0x63
	SectionExternalFunctionIndex  SectionID = 0x64
	SectionIndexProperty          SectionID = 0x65
)

// Magic is the fixed 8-byte signature every image starts with.
var Magic = [8]byte{'A', 'N', 'C', 'M', 0, 0, 0, 0}

// SupportedMajorVersion is the only major version this codec recognises.
// Decode rejects any other major version with VersionMismatch.
const SupportedMajorVersion = 1

// Section is one named, contiguous byte range of an image.
type Section struct {
	ID   SectionID
	Data []byte
}

// Image is the fully decoded, in-memory form of a module image: a header
// plus an ordered list of sections. It carries no interpretation of section
// contents — that is the Loader's job (spec §4.2).
type Image struct {
	MajorVersion uint16
	MinorVersion uint16
	Type         ImageType
	Sections     []Section
}

// Section returns the first section with the given id, if present.
func (img *Image) Section(id SectionID) (Section, bool) {
	for _, s := range img.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}
