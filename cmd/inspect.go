package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/hemashushu/ancvm/errext"
	"github.com/hemashushu/ancvm/errext/exitcodes"
	"github.com/hemashushu/ancvm/loader"
)

// inspectSection is one section's identity and size, without decoding its
// payload — image inspect's role is to show what's there, not to
// second-guess the loader's lazy, per-section validation.
type inspectSection struct {
	ID     string `json:"id"`
	Length int    `json:"length"`
}

// inspectReport is the JSON document `ancvm image inspect` renders,
// grounded on cmd/inspect.go's "decode, then json.MarshalIndent the
// result" shape, generalized from k6's js.Bundle options to ancvm's own
// decoded sections and typed counts.
type inspectReport struct {
	MajorVersion          int               `json:"major_version"`
	MinorVersion          int               `json:"minor_version"`
	Type                  string            `json:"type"`
	Name                  string            `json:"name,omitempty"`
	Version               string            `json:"version,omitempty"`
	EntryIndex            *uint32           `json:"entry_function_internal_index,omitempty"`
	ImportModules         []string          `json:"import_modules,omitempty"`
	TypeCount             int               `json:"type_count"`
	FunctionCount         int               `json:"function_count"`
	ReadOnlyDataCount     int               `json:"read_only_data_count"`
	ReadWriteDataCount    int               `json:"read_write_data_count"`
	UninitDataCount       int               `json:"uninit_data_count"`
	ExternalLibraryCount  int               `json:"external_library_count"`
	ExternalFunctionCount int               `json:"external_function_count"`
	Sections              []inspectSection `json:"sections"`
}

// newInspectCmd builds `ancvm image inspect <image> [--query <path>]`.
func newInspectCmd(gs *GlobalState) *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "inspect <image>",
		Short: "decode a module image and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mod, err := loader.Open(gs.FS, args[0])
			if err != nil {
				return errext.WithExitCodeIfNone(err, exitcodes.ImageError)
			}

			report, err := buildInspectReport(mod)
			if err != nil {
				return errext.WithExitCodeIfNone(err, exitcodes.LoaderError)
			}

			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}

			if query != "" {
				result := gjson.GetBytes(data, query)
				fmt.Fprintln(gs.Stdout, result.String())
				return nil
			}
			_, err = gs.Stdout.Write(append(data, '\n'))
			return err
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "a gjson path expression selecting one field to print")
	return cmd
}

func buildInspectReport(mod *loader.Module) (inspectReport, error) {
	cp, err := mod.GetCommonProperty()
	if err != nil {
		return inspectReport{}, err
	}
	typeCount, err := mod.TypeCount()
	if err != nil {
		return inspectReport{}, err
	}
	fnCount, err := mod.FunctionCount()
	if err != nil {
		return inspectReport{}, err
	}
	roCount, err := mod.ReadOnlyDataCount()
	if err != nil {
		return inspectReport{}, err
	}
	rwCount, err := mod.ReadWriteDataCount()
	if err != nil {
		return inspectReport{}, err
	}
	uninitCount, err := mod.UninitDataCount()
	if err != nil {
		return inspectReport{}, err
	}
	extLibCount, err := mod.ExternalLibraryCount()
	if err != nil {
		return inspectReport{}, err
	}
	extFnCount, err := mod.ExternalFunctionCount()
	if err != nil {
		return inspectReport{}, err
	}

	sections := make([]inspectSection, 0, len(mod.Image.Sections))
	for _, s := range mod.Image.Sections {
		sections = append(sections, inspectSection{ID: fmt.Sprintf("0x%02x", uint32(s.ID)), Length: len(s.Data)})
	}

	report := inspectReport{
		MajorVersion:          int(mod.Image.MajorVersion),
		MinorVersion:          int(mod.Image.MinorVersion),
		Type:                  mod.Image.Type.String(),
		Name:                  cp.Name,
		ImportModules:         cp.ImportModules,
		TypeCount:             typeCount,
		FunctionCount:         fnCount,
		ReadOnlyDataCount:     roCount,
		ReadWriteDataCount:    rwCount,
		UninitDataCount:       uninitCount,
		ExternalLibraryCount:  extLibCount,
		ExternalFunctionCount: extFnCount,
		Sections:              sections,
	}
	if cp.VersionMajor != 0 || cp.VersionMinor != 0 || cp.VersionPatch != 0 {
		report.Version = fmt.Sprintf("%d.%d.%d", cp.VersionMajor, cp.VersionMinor, cp.VersionPatch)
	}
	if cp.EntryFunctionInternalIndex != loader.NoFunctionIndex {
		idx := cp.EntryFunctionInternalIndex
		report.EntryIndex = &idx
	}
	return report, nil
}
