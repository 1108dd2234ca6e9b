package image

import (
	"fmt"

	"github.com/hemashushu/ancvm/errext/exitcodes"
)

// ErrorKind classifies the static, structural errors Decode can return.
type ErrorKind int

// The static error kinds a malformed image can fail with (spec §7).
const (
	ErrorTruncated ErrorKind = iota
	ErrorBadMagic
	ErrorVersionMismatch
	ErrorBadImageType
	ErrorSectionOutOfRange
	ErrorSectionOverlap
	ErrorChecksumMismatch
	ErrorMalformedTable
	ErrorIndexOutOfRange
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorTruncated:
		return "truncated"
	case ErrorBadMagic:
		return "bad magic"
	case ErrorVersionMismatch:
		return "version mismatch"
	case ErrorBadImageType:
		return "bad image type"
	case ErrorSectionOutOfRange:
		return "section out of range"
	case ErrorSectionOverlap:
		return "section overlap"
	case ErrorChecksumMismatch:
		return "checksum mismatch"
	case ErrorMalformedTable:
		return "malformed item table"
	case ErrorIndexOutOfRange:
		return "index out of range"
	default:
		return "unknown image error"
	}
}

// Error is returned by Decode and Encode for any structural problem with an
// image's bytes. It satisfies errext.HasExitCode and errext.HasHint so a CLI
// entry point can surface it without special-casing this package.
type Error struct {
	Kind    ErrorKind
	Section SectionID // zero value when not section-specific
	Detail  string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("image: %s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("image: %s", e.Kind)
}

// ExitCode implements errext.HasExitCode.
func (e *Error) ExitCode() exitcodes.ExitCode { return exitcodes.ImageError }

// Hint implements errext.HasHint.
func (e *Error) Hint() string {
	switch e.Kind {
	case ErrorBadMagic:
		return "this does not look like an ancvm module image"
	case ErrorVersionMismatch:
		return "rebuild the image with a toolchain matching this runtime's major version"
	case ErrorChecksumMismatch:
		return "the image file is corrupt or was truncated in transit"
	default:
		return ""
	}
}
