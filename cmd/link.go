package cmd

import (
	"encoding/json"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/hemashushu/ancvm/errext"
	"github.com/hemashushu/ancvm/errext/exitcodes"
	"github.com/hemashushu/ancvm/linker"
	"github.com/hemashushu/ancvm/loader"
)

// linkReport is what `ancvm link` writes: there is no on-disk format for a
// linker.LinkedProgram (spec.md never defines one — a program is linked
// fresh from its images each run), so link's job is to validate that the
// given images resolve cleanly and report the resulting dispatch-table
// shape, the same information `ancvm image inspect` renders for one image.
type linkReport struct {
	Modules                  []string `json:"modules"`
	FunctionCount            int      `json:"function_count"`
	DataCount                int      `json:"data_count"`
	UnifiedLibraryCount      int      `json:"unified_library_count"`
	UnifiedFunctionCount     int      `json:"unified_function_count"`
	EntryFunctionPublicIndex uint32   `json:"entry_function_public_index"`
}

// newLinkCmd builds `ancvm link <images...> -o <out>`.
func newLinkCmd(gs *GlobalState) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "link <images...>",
		Short: "link module images and report the resulting dispatch tables",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modules := make([]*loader.Module, 0, len(args))
			for _, path := range args {
				mod, err := loader.Open(gs.FS, path)
				if err != nil {
					return errext.WithExitCodeIfNone(err, exitcodes.LoaderError)
				}
				modules = append(modules, mod)
			}

			program, err := linker.Link(modules)
			if err != nil {
				return errext.WithExitCodeIfNone(err, exitcodes.LinkError)
			}

			report := linkReport{
				Modules:                  args,
				FunctionCount:            len(program.FunctionTable),
				DataCount:                len(program.DataTable),
				UnifiedLibraryCount:      len(program.UnifiedLibraries),
				UnifiedFunctionCount:     len(program.UnifiedFunctions),
				EntryFunctionPublicIndex: program.EntryFunctionPublicIndex,
			}
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			data = append(data, '\n')

			if outPath == "" {
				_, err = gs.Stdout.Write(data)
				return err
			}
			return afero.WriteFile(gs.FS, outPath, data, 0o644)
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write the link report to this path instead of stdout")
	return cmd
}
