// Package cmd wires the image codec, loader, linker, and thread runtime
// into a small CLI: `ancvm run`, `ancvm link`, and `ancvm image inspect`.
// Grounded on the teacher's cmd/root.go and cmd/state package: a
// GlobalState that holds every piece of process-external state (the
// filesystem, argv, env, std streams, the logger) so the subcommands never
// reach for `os` directly, keeping them mockable in tests.
package cmd

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/hemashushu/ancvm/config"
	ancvmlog "github.com/hemashushu/ancvm/log"
)

// consoleWriter wraps an output stream with a shared mutex, matching
// cmd/ui.go's consoleWriter: the root command's stdout and a logger built
// over stderr share one process-wide lock so interleaved writes from the
// CLI and the logger don't tear.
type consoleWriter struct {
	io.Writer
	IsTTY bool
	Mutex *sync.Mutex
}

func (w *consoleWriter) Write(p []byte) (int, error) {
	w.Mutex.Lock()
	defer w.Mutex.Unlock()
	return w.Writer.Write(p)
}

// GlobalState groups every piece of process-external state the CLI reads,
// mirroring cmd/state.GlobalState: real os.* values in production,
// substitutable ones in tests.
type GlobalState struct {
	FS    afero.Fs
	Getwd func() (string, error)
	Args  []string
	Env   map[string]string

	Stdout, Stderr *consoleWriter
	Stdin          io.Reader

	Config config.Options
	Logger *logrus.Logger
}

// NewGlobalState builds a GlobalState from the real process environment,
// exactly as NewGlobalState does in the teacher's cmd/state. Apart from
// Main's os.Exit, it is the only place in this package that touches the
// os package directly.
func NewGlobalState() *GlobalState {
	isDumbTerm := os.Getenv("TERM") == "dumb"
	stdoutTTY := !isDumbTerm && (isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))
	stderrTTY := !isDumbTerm && (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()))
	outMutex := &sync.Mutex{}

	stdout := &consoleWriter{Writer: colorable.NewColorable(os.Stdout), IsTTY: stdoutTTY, Mutex: outMutex}
	stderr := &consoleWriter{Writer: colorable.NewColorable(os.Stderr), IsTTY: stderrTTY, Mutex: outMutex}

	env := buildEnvMap(os.Environ())

	homeDir, err := os.UserConfigDir()
	if err != nil {
		homeDir = "."
	}
	cfg := config.Consolidate(config.Default(homeDir), env)

	logger := ancvmlog.New(ancvmlog.Options{
		Output:  stderr,
		Format:  cfg.LogFormat,
		NoColor: cfg.NoColor,
		Verbose: cfg.Verbose,
	})

	return &GlobalState{
		FS:      afero.NewOsFs(),
		Getwd:   os.Getwd,
		Args:    os.Args,
		Env:     env,
		Stdout:  stdout,
		Stderr:  stderr,
		Stdin:   os.Stdin,
		Config:  cfg,
		Logger:  logger,
	}
}

// NewTestGlobalState builds a GlobalState over an in-memory filesystem and
// buffers, the way newGlobalTestState lets the teacher's command tests run
// without touching the real OS.
func NewTestGlobalState() (*GlobalState, *bytes.Buffer, *bytes.Buffer) {
	var outBuf, errBuf bytes.Buffer
	outMutex := &sync.Mutex{}
	stdout := &consoleWriter{Writer: &outBuf, Mutex: outMutex}
	stderr := &consoleWriter{Writer: &errBuf, Mutex: outMutex}

	cfg := config.Default("/home/test/.config")
	logger := ancvmlog.New(ancvmlog.Options{Output: stderr, Format: "text", NoColor: true})

	return &GlobalState{
		FS:     afero.NewMemMapFs(),
		Getwd:  func() (string, error) { return "/", nil },
		Args:   []string{"ancvm"},
		Env:    map[string]string{},
		Stdout: stdout,
		Stderr: stderr,
		Stdin:  bytes.NewReader(nil),
		Config: cfg,
		Logger: logger,
	}, &outBuf, &errBuf
}

func parseEnvKeyValue(kv string) (string, string) {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:]
		}
	}
	return kv, ""
}

func buildEnvMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v := parseEnvKeyValue(kv)
		env[k] = v
	}
	return env
}
