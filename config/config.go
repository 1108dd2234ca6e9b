// Package config is the ambient configuration layer shared by every ancvm
// subcommand: defaults, overridden by ANCVM_* environment variables,
// overridden last by command-line flags. Grounded on the teacher's
// cmd/state.GlobalOptions/consolidateGlobalFlags shape: a plain struct of
// defaults plus a pure function that folds an env map onto it.
package config

import (
	"path/filepath"
	"strconv"
	"strings"
)

// defaults mirroring spec.md §4.2's linear-memory model and §4.5's thread
// stack, tunable without recompiling. Both are kept in Options only: the
// vm and runtime packages do not read them, and a thread's linear memory
// starts at zero pages.
const (
	DefaultMemoryPages  = 16   // 16 * 64KiB = 1MiB
	DefaultStackSizeKiB = 256  // per-thread data-stack reserve
	defaultConfigName   = "config.json"
)

// Options holds the host-side knobs every ancvm component reads instead of
// touching os.Getenv/os.Args directly, the way GlobalOptions centralizes
// k6's equivalent surface.
type Options struct {
	ConfigFilePath string

	// LibraryPaths is searched, in order after the entry image's own
	// directory, for an imported module's <name>.ancm image. External
	// Library entries are not resolved through it.
	LibraryPaths []string

	MemoryPages  uint32
	StackSizeKiB uint32

	LogOutput string
	LogFormat string
	NoColor   bool
	Verbose   bool
}

// Default returns Options with ancvm's built-in defaults, rooted under
// homeDir the way GetDefaultGlobalOptions roots k6's config file under the
// user's config directory.
func Default(homeDir string) Options {
	return Options{
		ConfigFilePath: filepath.Join(homeDir, "ancvm", defaultConfigName),
		LibraryPaths:   []string{"/usr/lib", "/usr/local/lib"},
		MemoryPages:    DefaultMemoryPages,
		StackSizeKiB:   DefaultStackSizeKiB,
		LogOutput:      "stderr",
		LogFormat:      "text",
	}
}

// Consolidate folds env on top of defaults, the way consolidateGlobalFlags
// folds k6's K6_* variables onto GetDefaultGlobalOptions' result. Flags are
// folded on top of this by the CLI layer, last, since they're the most
// specific source.
func Consolidate(defaults Options, env map[string]string) Options {
	result := defaults

	if val, ok := env["ANCVM_CONFIG"]; ok {
		result.ConfigFilePath = val
	}
	if val, ok := env["ANCVM_LIBRARY_PATH"]; ok {
		result.LibraryPaths = splitPathList(val)
	}
	if val, ok := env["ANCVM_MEMORY_PAGES"]; ok {
		if n, err := strconv.ParseUint(val, 10, 32); err == nil {
			result.MemoryPages = uint32(n)
		}
	}
	if val, ok := env["ANCVM_STACK_SIZE_KIB"]; ok {
		if n, err := strconv.ParseUint(val, 10, 32); err == nil {
			result.StackSizeKiB = uint32(n)
		}
	}
	if val, ok := env["ANCVM_LOG_OUTPUT"]; ok {
		result.LogOutput = val
	}
	if val, ok := env["ANCVM_LOG_FORMAT"]; ok {
		result.LogFormat = val
	}
	if env["ANCVM_NO_COLOR"] != "" {
		result.NoColor = true
	}
	// Support https://no-color.org/ regardless of ancvm's own prefix, same
	// as the teacher does for its own NO_COLOR check.
	if _, ok := env["NO_COLOR"]; ok {
		result.NoColor = true
	}
	if _, ok := env["ANCVM_VERBOSE"]; ok {
		result.Verbose = true
	}

	return result
}

func splitPathList(val string) []string {
	parts := strings.Split(val, string(filepath.ListSeparator))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
