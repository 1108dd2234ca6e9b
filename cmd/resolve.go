package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/hemashushu/ancvm/errext"
	"github.com/hemashushu/ancvm/errext/exitcodes"
	"github.com/hemashushu/ancvm/loader"
)

// resolveModules loads entryPath and every module it (transitively)
// imports by CommonProperty.ImportModules, searching first alongside
// entryPath and then gs.Config.LibraryPaths, the knob named for exactly
// this purpose in spec.md §4.4's External Library resolution. The entry
// module is always modules[0], satisfying linker.Link's contract.
func resolveModules(gs *GlobalState, entryPath string) ([]*loader.Module, error) {
	entry, err := loader.Open(gs.FS, entryPath)
	if err != nil {
		return nil, errext.WithExitCodeIfNone(err, exitcodes.LoaderError)
	}

	searchDirs := append([]string{filepath.Dir(entryPath)}, gs.Config.LibraryPaths...)

	modules := []*loader.Module{entry}
	seen := map[string]bool{}
	queue := []*loader.Module{entry}

	for len(queue) > 0 {
		mod := queue[0]
		queue = queue[1:]

		cp, err := mod.GetCommonProperty()
		if err != nil {
			return nil, errext.WithExitCodeIfNone(err, exitcodes.LoaderError)
		}
		if cp.Name != "" {
			seen[cp.Name] = true
		}

		for _, dep := range cp.ImportModules {
			if seen[dep] {
				continue
			}
			depMod, err := findModule(gs, searchDirs, dep)
			if err != nil {
				return nil, errext.WithExitCodeIfNone(err, exitcodes.LinkError)
			}
			seen[dep] = true
			modules = append(modules, depMod)
			queue = append(queue, depMod)
		}
	}

	return modules, nil
}

func findModule(gs *GlobalState, dirs []string, name string) (*loader.Module, error) {
	for _, dir := range dirs {
		path := filepath.Join(dir, name+".ancm")
		if ok, _ := afero.Exists(gs.FS, path); ok {
			return loader.Open(gs.FS, path)
		}
	}
	return nil, fmt.Errorf("resolve: module %q not found in %v", name, dirs)
}
