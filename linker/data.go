package linker

import (
	"fmt"

	"github.com/hemashushu/ancvm/loader"
)

// linkData assigns a data-public-index to every data entry across all
// modules (module order, then read-only/read-write/uninitialised order),
// then resolves each module's data imports the same way linkFunctions
// resolves function imports.
func (p *LinkedProgram) linkData() error {
	byModuleName := make(map[string]int, len(p.Modules))
	exportsByModule := make([]map[string]uint32, len(p.Modules))
	combined := make([][]DataRef, len(p.Modules))

	for i, mod := range p.Modules {
		cp, err := mod.GetCommonProperty()
		if err != nil {
			return err
		}
		if cp.Name != "" {
			byModuleName[cp.Name] = i
		}

		refs, err := flatDataRefs(mod)
		if err != nil {
			return err
		}
		combined[i] = refs

		mod := mod
		exports, err := exportIndex(namePathGetter{
			count: mod.DataNamePathCount,
			get: func(i uint32) (namePathEntry, error) {
				e, err := mod.GetDataNamePath(i)
				return namePathEntry{FullName: e.FullName, Exported: e.Exported}, err
			},
		})
		if err != nil {
			return err
		}
		exportsByModule[i] = exports
	}

	base := make([]uint32, len(p.Modules))
	var table []DataRef
	for i := range p.Modules {
		base[i] = uint32(len(table))
		for _, ref := range combined[i] {
			ref.ModuleIndex = uint32(i)
			table = append(table, ref)
		}
	}
	p.DataTable = table

	for i, mod := range p.Modules {
		importCount, err := mod.ImportDataCount()
		if err != nil {
			return err
		}

		indices := make([]uint32, len(combined[i])+importCount)
		for j := range combined[i] {
			indices[j] = base[i] + uint32(j)
		}

		for j := 0; j < importCount; j++ {
			imp, err := mod.GetImportDataEntry(uint32(j))
			if err != nil {
				return err
			}
			pubIndex, err := resolveDataImport(imp, byModuleName, exportsByModule, base)
			if err != nil {
				return err
			}
			indices[len(combined[i])+j] = pubIndex
		}

		p.Linkage[i].DataIndices = indices
	}

	return nil
}

// flatDataRefs enumerates a module's own data entries in read-only,
// read-write, uninitialised order (spec.md §4.3 "Data linking") — the
// same flat space a module's DataNamePathEntry and ImportDataEntry
// internal indices address, symmetric with how function name-paths index
// a module's function table.
func flatDataRefs(mod *loader.Module) ([]DataRef, error) {
	var refs []DataRef
	kinds := [...]loader.DataKind{loader.DataKindReadOnly, loader.DataKindReadWrite, loader.DataKindUninit}
	counts := [...]func() (int, error){mod.ReadOnlyDataCount, mod.ReadWriteDataCount, mod.UninitDataCount}
	for k, kind := range kinds {
		n, err := counts[k]()
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			refs = append(refs, DataRef{Kind: kind, InternalIndex: uint32(i)})
		}
	}
	return refs, nil
}

func resolveDataImport(
	imp loader.ImportDataEntry,
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

	internalIndex, ok := exportsByModule[depIndex][namePath]
	if !ok {
		return 0, &Error{Kind: ErrorUnresolvedImport, Symbol: imp.FullName}
	}

	return base[depIndex] + internalIndex, nil
}
