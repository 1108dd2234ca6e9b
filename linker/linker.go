// Package linker combines a set of loaded modules into the global dispatch
// tables an interpreter thread actually calls through (spec.md §4.3):
// function/data public indices, unified external-library and
// external-function tables, and the program's entry function.
//
// No Go example in the pack implements this exact dispatch-table-building
// step; the shape — dedupe distinct keys into one table while remembering
// each caller's own view of it — mirrors the "register by key, resolve by
// key" idiom in the teacher's actions/registry.Registry.
package linker

import (
	"fmt"

	"github.com/hemashushu/ancvm/loader"
)

// FunctionRef is one entry of the global function-public-index table: the
// concrete (module, internal function) a public index dispatches to.
type FunctionRef struct {
	ModuleIndex   uint32
	InternalIndex uint32
	TypeIndex     uint32
}

// DataRef is one entry of the global data-public-index table.
type DataRef struct {
	ModuleIndex   uint32
	Kind          loader.DataKind
	InternalIndex uint32
}

// UnifiedFunctionRef is one entry of the unified external-function table:
// the library it lives in plus the name the first module to reference it
// declared.
type UnifiedFunctionRef struct {
	LibraryIndex uint32
	Name         string
}

// ExternalFunctionLink maps a module's own external-function-index to the
// unified table plus the type that module's own type table assigns it.
type ExternalFunctionLink struct {
	UnifiedIndex uint32
	TypeIndex    uint32
}

// ModuleLinkage is one module's view of the global tables: its own
// function/data indices resolved to public indices, and its external
// functions resolved to unified indices.
type ModuleLinkage struct {
	// FunctionIndices[i] is the function-public-index of the module's
	// local function index i. Local indices 0..internalCount-1 address the
	// module's own FunctionEntry table; indices at or beyond internalCount
	// address its ImportFunctionEntry table, resolved against a
	// dependency's exports.
	FunctionIndices []uint32

	// DataIndices[i] is the data-public-index of the module's local data
	// index i, ordered read-only, read-write, uninitialised, then imports,
	// symmetric with FunctionIndices.
	DataIndices []uint32

	// ExternalFunctionIndices[i] resolves the module's external-function
	// index i (into its own ExternalFunctionEntry table) to the unified
	// table.
	ExternalFunctionIndices []ExternalFunctionLink
}

// LinkedProgram is the linker's output: global dispatch tables plus each
// module's private view into them.
type LinkedProgram struct {
	Modules []*loader.Module

	FunctionTable []FunctionRef
	DataTable     []DataRef

	UnifiedLibraries []loader.ExternalLibraryEntry
	UnifiedFunctions []UnifiedFunctionRef

	Linkage []ModuleLinkage

	// EntryFunctionPublicIndex is the program's start function, from the
	// entry module's (module 0) CommonProperty metadata. Equals
	// loader.NoFunctionIndex if the entry module declares none.
	EntryFunctionPublicIndex uint32

	linked bool
}

// Link combines modules (the entry module must be modules[0]) into a new
// LinkedProgram; every call builds fresh tables. Relinking an
// already-linked program without rebuilding it goes through Relink.
func Link(modules []*loader.Module) (*LinkedProgram, error) {
	if len(modules) == 0 {
		return nil, fmt.Errorf("link: no modules given")
	}

	p := &LinkedProgram{Modules: modules}

	if err := p.linkFunctions(); err != nil {
		return nil, err
	}
	if err := p.linkData(); err != nil {
		return nil, err
	}
	if err := p.linkExternalFunctions(); err != nil {
		return nil, err
	}
	if err := p.linkEntryFunction(); err != nil {
		return nil, err
	}

	p.linked = true
	return p, nil
}

// Relink re-links an already-built program (spec.md §8.2's link(link(M)) ==
// link(M) round-trip law); a program that is already linked is returned
// unchanged.
func Relink(p *LinkedProgram) (*LinkedProgram, error) {
	if p.linked {
		return p, nil
	}
	return Link(p.Modules)
}

