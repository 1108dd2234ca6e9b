// Package log sets up the structured logger the CLI (package cmd) logs
// through: a *logrus.Logger configured here, the way the teacher wires
// logrus once in its process entry point. The loader, linker, vm and
// runtime packages do not log.
package log

import (
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// Options configures the process-wide logger.
type Options struct {
	Output  io.Writer // defaults to a colorable wrapper around os.Stderr
	Format  string    // "text" (default), "json", or "raw"
	NoColor bool
	Verbose bool
}

// New builds a logrus.Logger from Options.
func New(opts Options) *logrus.Logger {
	out := opts.Output
	isTTY := false
	if out == nil {
		out = colorable.NewColorable(os.Stderr)
		isTTY = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	} else if f, ok := out.(interface{ Fd() uintptr }); ok {
		isTTY = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	level := logrus.InfoLevel
	if opts.Verbose {
		level = logrus.DebugLevel
	}

	logger := &logrus.Logger{
		Out:   out,
		Hooks: make(logrus.LevelHooks),
		Level: level,
	}

	switch opts.Format {
	case "json":
		logger.Formatter = &logrus.JSONFormatter{}
	case "raw":
		logger.Formatter = &rawFormatter{}
	default:
		logger.Formatter = &logrus.TextFormatter{
			ForceColors:   isTTY && !opts.NoColor,
			DisableColors: opts.NoColor || !isTTY,
		}
	}

	return logger
}

// rawFormatter prints only the log message, no level/timestamp/fields —
// useful when ancvm's stdout is piped into another tool.
type rawFormatter struct{}

func (rawFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return append([]byte(entry.Message), '\n'), nil
}
