package linker

import (
	"fmt"

	"github.com/hemashushu/ancvm/loader"
)

// linkFunctions assigns a function-public-index to every internal function
// across all modules (module order, then internal index order), then
// resolves each module's imports against the exports of the module named
// in the import's fully-qualified name.
func (p *LinkedProgram) linkFunctions() error {
	byModuleName := make(map[string]int, len(p.Modules))
	exportsByModule := make([]map[string]uint32, len(p.Modules))

	for i, mod := range p.Modules {
		cp, err := mod.GetCommonProperty()
		if err != nil {
			return err
		}
		if cp.Name != "" {
			byModuleName[cp.Name] = i
		}

		mod := mod
		exports, err := exportIndex(namePathGetter{
			count: mod.FunctionNamePathCount,
			get: func(i uint32) (namePathEntry, error) {
				e, err := mod.GetFunctionNamePath(i)
				return namePathEntry{FullName: e.FullName, Exported: e.Exported}, err
			},
		})
		if err != nil {
			return err
		}
		exportsByModule[i] = exports
	}

	// Pass 1: assign public indices to every internal function.
	base := make([]uint32, len(p.Modules))
	var table []FunctionRef
	for i, mod := range p.Modules {
		base[i] = uint32(len(table))
		count, err := mod.FunctionCount()
		if err != nil {
			return err
		}
		for j := 0; j < count; j++ {
			fn, err := mod.GetFunctionEntry(uint32(j))
			if err != nil {
				return err
			}
			table = append(table, FunctionRef{ModuleIndex: uint32(i), InternalIndex: uint32(j), TypeIndex: fn.TypeIndex})
		}
	}
	p.FunctionTable = table

	// Pass 2: build each module's local function-index list: its own
	// internal functions first, then its resolved imports.
	p.Linkage = make([]ModuleLinkage, len(p.Modules))
	for i, mod := range p.Modules {
		count, err := mod.FunctionCount()
		if err != nil {
			return err
		}
		importCount, err := mod.ImportFunctionCount()
		if err != nil {
			return err
		}

		indices := make([]uint32, count+importCount)
		for j := 0; j < count; j++ {
			indices[j] = base[i] + uint32(j)
		}

		for j := 0; j < importCount; j++ {
			imp, err := mod.GetImportFunctionEntry(uint32(j))
			if err != nil {
				return err
			}
			pubIndex, err := p.resolveFunctionImport(mod, imp, byModuleName, exportsByModule, base)
			if err != nil {
				return err
			}
			indices[count+j] = pubIndex
		}

		p.Linkage[i].FunctionIndices = indices
	}

	return nil
}

// resolveFunctionImport resolves one import against the dependency module
// named in its fully-qualified name, then enforces type compatibility
// between the importer's declared type and the target function's actual
// type (spec.md §4.3).
func (p *LinkedProgram) resolveFunctionImport(
	importer *loader.Module,
	imp loader.ImportFunctionEntry,
	byModuleName map[string]int,
	exportsByModule []map[string]uint32,
	base []uint32,
) (uint32, error) {
	moduleName, namePath, ok := splitFullName(imp.FullName)
	if !ok {
		return 0, &Error{Kind: ErrorUnresolvedImport, Symbol: imp.FullName, Detail: "not a \"module::name\" fully-qualified name"}
	}

	depIndex, ok := byModuleName[moduleName]
	if !ok {
		return 0, &Error{Kind: ErrorUnresolvedImport, Symbol: imp.FullName, Detail: fmt.Sprintf("no loaded module named %q", moduleName)}
	}
	depModule := p.Modules[depIndex]

	internalIndex, ok := exportsByModule[depIndex][namePath]
	if !ok {
		return 0, &Error{Kind: ErrorUnresolvedImport, Symbol: imp.FullName}
	}

	targetFn, err := depModule.GetFunctionEntry(internalIndex)
	if err != nil {
		return 0, err
	}

	importerType, err := importer.GetTypeEntry(imp.TypeIndex)
	if err != nil {
		return 0, err
	}
	targetType, err := depModule.GetTypeEntry(targetFn.TypeIndex)
	if err != nil {
		return 0, err
	}
	if !typesEqual(importerType, targetType) {
		return 0, &Error{Kind: ErrorTypeMismatch, Symbol: imp.FullName}
	}

	return base[depIndex] + internalIndex, nil
}

func typesEqual(a, b loader.TypeEntry) bool {
	if len(a.Params) != len(b.Params) || len(a.Results) != len(b.Results) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	for i := range a.Results {
		if a.Results[i] != b.Results[i] {
			return false
		}
	}
	return true
}
