package linker

import (
	"fmt"

	"github.com/hemashushu/ancvm/errext/exitcodes"
	"github.com/hemashushu/ancvm/loader"
)

// ErrorKind classifies the static errors Link can return (spec.md §4.3).
type ErrorKind int

const (
	// ErrorUnresolvedImport: an imported function or data symbol was not
	// found in the exports of any dependency module.
	ErrorUnresolvedImport ErrorKind = iota
	// ErrorTypeMismatch: an imported function resolved to a symbol whose
	// parameter/result types don't match the importer's declared type.
	ErrorTypeMismatch
	// ErrorDuplicateExport: two entries in the same module's name-path
	// table export the same fully-qualified name.
	ErrorDuplicateExport
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorUnresolvedImport:
		return "unresolved import"
	case ErrorTypeMismatch:
		return "type mismatch"
	case ErrorDuplicateExport:
		return "duplicate export"
	default:
		return "unknown link error"
	}
}

// Error is returned by Link for any static linking failure.
type Error struct {
	Kind   ErrorKind
	Symbol string // the fully-qualified name involved, when applicable
	Detail string
}

func (e *Error) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("link: %s: %s", e.Kind, e.Symbol)
	}
	return fmt.Sprintf("link: %s", e.Kind)
}

// ExitCode implements errext.HasExitCode.
func (e *Error) ExitCode() exitcodes.ExitCode { return exitcodes.LinkError }

// Hint implements errext.HasHint.
func (e *Error) Hint() string {
	switch e.Kind {
	case ErrorUnresolvedImport:
		return fmt.Sprintf("no loaded module exports %q", e.Symbol)
	case ErrorTypeMismatch:
		return fmt.Sprintf("%q resolved to a function with a different parameter/result signature", e.Symbol)
	default:
		return ""
	}
}

func dataKindName(kind loader.DataKind) string {
	switch kind {
	case loader.DataKindReadOnly:
		return "read-only"
	case loader.DataKindReadWrite:
		return "read-write"
	default:
		return "uninitialised"
	}
}
