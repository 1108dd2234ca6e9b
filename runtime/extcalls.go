package runtime

import (
	"os"
	"sync"

	"github.com/hemashushu/ancvm/linker"
	"github.com/hemashushu/ancvm/loader"
	"github.com/hemashushu/ancvm/vm"
)

// extKey identifies one external symbol the way spec.md §9's "external
// library handle cache" does: by (library kind, library name, symbol).
type extKey struct {
	kind loader.LibraryKind
	lib  string
	name string
}

// extFunc is a resolved external symbol: it receives the extcall's already
// marshalled arguments and returns its raw word results.
type extFunc func(args []uint64) []uint64

// builtinLibc emulates the value-returning subset of libc
// original_source/crates/assembler/tests/extcall.rs exercises (getuid).
// Symbols whose result is a pointer (getenv) or that live in a user .so
// aren't modeled: there's no faithful way to hand back a native pointer
// into VM-addressable memory without extending the host-address space
// (spec.md §4.4.5's three storage spaces), and no example repo in the
// pack provides a portable, non-cgo dynamic-library loader to resolve a
// real user library against (see DESIGN.md).
var builtinLibc = map[string]extFunc{
	"getuid": func(args []uint64) []uint64 {
		return []uint64{uint64(uint32(os.Getuid()))}
	},
}

// extCallHandler resolves a unified external-function index against the
// linked program's tables, looks the symbol up in a process-wide cache
// (the map is made with the handler; each symbol is added on its first
// use, and the cache is scoped to the registry's lifetime per spec.md §9),
// and calls it.
type extCallHandler struct {
	program *linker.LinkedProgram

	mu    sync.Mutex
	cache map[extKey]extFunc
}

func newExtCallHandler(program *linker.LinkedProgram) *extCallHandler {
	return &extCallHandler{program: program, cache: make(map[extKey]extFunc)}
}

func (e *extCallHandler) resolve(unifiedIndex uint32) (extFunc, *vm.Trap) {
	if int(unifiedIndex) >= len(e.program.UnifiedFunctions) {
		return nil, &vm.Trap{Kind: vm.TrapTypeMismatch, Code: unifiedIndex}
	}
	ref := e.program.UnifiedFunctions[unifiedIndex]
	if int(ref.LibraryIndex) >= len(e.program.UnifiedLibraries) {
		return nil, &vm.Trap{Kind: vm.TrapTypeMismatch, Code: ref.LibraryIndex}
	}
	lib := e.program.UnifiedLibraries[ref.LibraryIndex]
	key := extKey{kind: lib.Kind, lib: lib.Name, name: ref.Name}

	e.mu.Lock()
	defer e.mu.Unlock()
	if fn, ok := e.cache[key]; ok {
		return fn, nil
	}

	var fn extFunc
	if lib.Kind == loader.LibraryKindSystem {
		fn = builtinLibc[ref.Name]
	}
	if fn == nil {
		return nil, nil
	}
	e.cache[key] = fn
	return fn, nil
}

// ExtCall implements vm.ExtCallHandler.
func (e *extCallHandler) ExtCall(t *vm.Thread, unifiedIndex uint32, argTypeIndex uint32, args []uint64) ([]uint64, *vm.Trap) {
	fn, trap := e.resolve(unifiedIndex)
	if trap != nil {
		return nil, trap
	}
	if fn == nil {
		return nil, t.Trap(vm.TrapUnreachableCode, unifiedIndex)
	}
	return fn(args), nil
}
