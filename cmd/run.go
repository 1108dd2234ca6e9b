package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/hemashushu/ancvm/errext"
	"github.com/hemashushu/ancvm/errext/exitcodes"
	"github.com/hemashushu/ancvm/linker"
	"github.com/hemashushu/ancvm/runtime"
)

// newRunCmd builds `ancvm run <image> [args...]`: load the entry image and
// its imports, link them, and run the program's entry function on the main
// thread, mirroring cmd/run.go's shape (load -> build -> execute) with the
// JS bundle/engine swapped for loader.Open/linker.Link/runtime.Registry.
func newRunCmd(gs *GlobalState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <image> [args...]",
		Short: "run a module image",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modules, err := resolveModules(gs, args[0])
			if err != nil {
				return err
			}

			program, err := linker.Link(modules)
			if err != nil {
				return errext.WithExitCodeIfNone(err, exitcodes.LinkError)
			}

			startData := []byte(strings.Join(args[1:], "\x00"))

			registry := runtime.NewRegistry(program)
			exitCode, trap := registry.RunMain(program.EntryFunctionPublicIndex, startData)
			if trap != nil {
				return errext.WithHint(trap, "the entry thread trapped before returning normally")
			}

			gs.Logger.Debugf("entry thread exited with code %d", exitCode)
			if exitCode != 0 {
				return &programExitError{code: int(exitCode)}
			}
			return nil
		},
	}
	return cmd
}

// programExitError carries the guest program's own exit code (spec.md
// §6.4's "low 32 bits of the i64 result"), distinct from the small,
// fixed exitcodes.ExitCode enum ancvm's own failures use: RawExitCode lets
// Execute propagate it verbatim instead of folding it into that enum.
type programExitError struct{ code int }

func (e *programExitError) Error() string    { return "" }
func (e *programExitError) RawExitCode() int { return e.code }
