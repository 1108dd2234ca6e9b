package linker

import "strings"

// splitFullName splits a "module_name::name_path" fully-qualified symbol
// into its target module and local name-path parts, per
// original_source's ast.rs convention (a module's own NamePathEntry table
// stores only the bare name_path half; the module prefix is added back by
// whoever imports it).
func splitFullName(fullName string) (moduleName, namePath string, ok bool) {
	i := strings.Index(fullName, "::")
	if i < 0 {
		return "", "", false
	}
	return fullName[:i], fullName[i+2:], true
}

// namePathGetter abstracts loader.Module's function/data name-path
// accessors so exportIndex can build either table with the same loop.
type namePathGetter struct {
	count func() (int, error)
	get   func(uint32) (namePathEntry, error)
}

type namePathEntry struct {
	FullName string
	Exported bool
}

// exportIndex builds a name_path -> internal index map from a module's
// name-path table, including only entries marked exported. A duplicate
// exported name is reported as *Error so a module's own malformed export
// table surfaces before it misleads an importer.
func exportIndex(g namePathGetter) (map[string]uint32, error) {
	n, err := g.count()
	if err != nil {
		return nil, err
	}
	out := make(map[string]uint32, n)
	for i := 0; i < n; i++ {
		entry, err := g.get(uint32(i))
		if err != nil {
			return nil, err
		}
		if !entry.Exported {
			continue
		}
		if _, dup := out[entry.FullName]; dup {
			return nil, &Error{Kind: ErrorDuplicateExport, Symbol: entry.FullName}
		}
		out[entry.FullName] = uint32(i)
	}
	return out, nil
}
