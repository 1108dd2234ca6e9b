package linker

import "github.com/hemashushu/ancvm/loader"

type libraryKey struct {
	kind loader.LibraryKind
	name string
}

type functionKey struct {
	libraryIndex uint32
	name         string
}

// linkExternalFunctions unifies external libraries and functions across
// all modules (spec.md §4.3 "External-function unification"): two
// external-library entries from different modules are the same unified
// library when their (library_kind, name) pair is equal; within a unified
// library, external functions with equal name collapse to one unified
// entry, and only the first occurrence populates the table.
func (p *LinkedProgram) linkExternalFunctions() error {
	libraryIndexByKey := make(map[libraryKey]uint32)
	functionIndexByKey := make(map[functionKey]uint32)

	for i, mod := range p.Modules {
		libCount, err := mod.ExternalLibraryCount()
		if err != nil {
			return err
		}
		localLibraryUnified := make([]uint32, libCount)
		for li := 0; li < libCount; li++ {
			lib, err := mod.GetExternalLibraryEntry(uint32(li))
			if err != nil {
				return err
			}
			key := libraryKey{kind: lib.Kind, name: lib.Name}
			unifiedIndex, ok := libraryIndexByKey[key]
			if !ok {
				unifiedIndex = uint32(len(p.UnifiedLibraries))
				p.UnifiedLibraries = append(p.UnifiedLibraries, lib)
				libraryIndexByKey[key] = unifiedIndex
			}
			localLibraryUnified[li] = unifiedIndex
		}

		fnCount, err := mod.ExternalFunctionCount()
		if err != nil {
			return err
		}
		links := make([]ExternalFunctionLink, fnCount)
		for fi := 0; fi < fnCount; fi++ {
			fn, err := mod.GetExternalFunctionEntry(uint32(fi))
			if err != nil {
				return err
			}
			unifiedLibraryIndex := localLibraryUnified[fn.LibraryIndex]
			fnKey := functionKey{libraryIndex: unifiedLibraryIndex, name: fn.Name}
			unifiedFnIndex, ok := functionIndexByKey[fnKey]
			if !ok {
				unifiedFnIndex = uint32(len(p.UnifiedFunctions))
				p.UnifiedFunctions = append(p.UnifiedFunctions, UnifiedFunctionRef{LibraryIndex: unifiedLibraryIndex, Name: fn.Name})
				functionIndexByKey[fnKey] = unifiedFnIndex
			}
			links[fi] = ExternalFunctionLink{UnifiedIndex: unifiedFnIndex, TypeIndex: fn.TypeIndex}
		}
		p.Linkage[i].ExternalFunctionIndices = links
	}
	return nil
}

// linkEntryFunction records the entry-function-public-index from the
// entry module's (modules[0]) CommonProperty metadata. Module 0's internal
// functions are always assigned first by linkFunctions, so its
// function-public-index base is 0 and the entry function's internal index
// doubles as its public index.
func (p *LinkedProgram) linkEntryFunction() error {
	entryModule := p.Modules[0]
	cp, err := entryModule.GetCommonProperty()
	if err != nil {
		return err
	}
	if cp.EntryFunctionInternalIndex == loader.NoFunctionIndex {
		p.EntryFunctionPublicIndex = loader.NoFunctionIndex
		return nil
	}
	p.EntryFunctionPublicIndex = cp.EntryFunctionInternalIndex
	return nil
}
