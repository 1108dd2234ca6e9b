package cmd

import (
	"errors"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hemashushu/ancvm/errext"
	ancvmlog "github.com/hemashushu/ancvm/log"
)

// NewRootCommand builds the ancvm root cobra command with its persistent
// flags bound to gs.Config, and every subcommand attached, mirroring
// cmd/root.go's newRootCommand shape (one globalState threaded through a
// tree of subcommands, bound via closures rather than package globals).
func NewRootCommand(gs *GlobalState) *cobra.Command {
	root := &cobra.Command{
		Use:           "ancvm",
		Short:         "a stack-based bytecode VM, linker, and thread runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(gs.Stdout)
	root.SetErr(gs.Stderr)
	root.SetIn(gs.Stdin)
	if len(gs.Args) > 1 {
		root.SetArgs(gs.Args[1:])
	} else {
		root.SetArgs(nil)
	}

	root.PersistentFlags().AddFlagSet(persistentFlagSet(gs))

	// NewGlobalState built the logger before flags were parsed; rebuild it
	// from the flag-merged config before any subcommand runs.
	root.PersistentPreRun = func(*cobra.Command, []string) {
		out := gs.Stderr
		if gs.Config.LogOutput == "stdout" {
			out = gs.Stdout
		}
		gs.Logger = ancvmlog.New(ancvmlog.Options{
			Output: out, Format: gs.Config.LogFormat, NoColor: gs.Config.NoColor, Verbose: gs.Config.Verbose,
		})
	}

	imageCmd := &cobra.Command{
		Use:   "image",
		Short: "inspect module images",
	}
	imageCmd.AddCommand(newInspectCmd(gs))

	root.AddCommand(
		newRunCmd(gs),
		newLinkCmd(gs),
		imageCmd,
	)

	return root
}

// persistentFlagSet mirrors rootCmdPersistentFlagSet: flags bind directly
// to gs.Config fields already seeded by defaults + ANCVM_* env vars, so a
// flag's default in --help reflects what the environment already set.
func persistentFlagSet(gs *GlobalState) *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)

	flags.StringVar(&gs.Config.LogOutput, "log-output", gs.Config.LogOutput,
		"where to write log output: stderr or stdout (any other value writes to stderr)")
	flags.StringVar(&gs.Config.LogFormat, "log-format", gs.Config.LogFormat,
		"log output format: text, json, or raw")
	flags.StringVarP(&gs.Config.ConfigFilePath, "config", "c", gs.Config.ConfigFilePath,
		"path to a JSON config file")
	flags.BoolVar(&gs.Config.NoColor, "no-color", gs.Config.NoColor, "disable colored output")
	flags.BoolVarP(&gs.Config.Verbose, "verbose", "v", gs.Config.Verbose, "enable verbose logging")
	flags.Uint32Var(&gs.Config.MemoryPages, "memory-pages", gs.Config.MemoryPages,
		"linear-memory page count, kept in the config only (threads start with zero pages and grow through memory_resize)")
	flags.Uint32Var(&gs.Config.StackSizeKiB, "stack-size-kib", gs.Config.StackSizeKiB,
		"per-thread data-stack reserve in KiB, kept in the config only (the interpreter does not read it)")
	flags.StringSliceVar(&gs.Config.LibraryPaths, "library-path", gs.Config.LibraryPaths,
		"directories searched, in order after the entry image's own directory, for an imported module's <name>.ancm (external libraries are not looked up here)")

	return flags
}

// Execute runs the root command and translates a returned error into a
// process exit code, the way Execute() does in cmd/root.go: an
// errext.HasExitCode wins, a HasHint is logged as a structured field, and
// an Exception's StackTrace() is logged in place of Error().
func Execute(gs *GlobalState) int {
	root := NewRootCommand(gs)
	if err := root.Execute(); err != nil {
		if raw, ok := err.(interface{ RawExitCode() int }); ok {
			return raw.RawExitCode()
		}

		var ecerr errext.HasExitCode
		code := 1
		if errors.As(err, &ecerr) {
			code = int(ecerr.ExitCode())
		}

		text, fields := errext.Format(err)
		gs.Logger.WithFields(logrus.Fields(fields)).Error(text)
		return code
	}
	return 0
}

// Main is the CLI's process entry point.
func Main() {
	gs := NewGlobalState()
	os.Exit(Execute(gs))
}
