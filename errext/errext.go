// Package errext provides small error-wrapping helpers that let any layer
// of ancvm (image decode, link, interpreter) attach an operator-facing hint
// and a process exit code to a plain error, without every caller having to
// define its own wrapper type.
package errext

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/hemashushu/ancvm/errext/exitcodes"
)

// HasHint is implemented by errors that carry an extra, human-oriented
// remediation hint alongside the normal error text.
type HasHint interface {
	error
	Hint() string
}

// HasExitCode is implemented by errors that dictate the process exit code
// ancvm should terminate with when they reach the top of main().
type HasExitCode interface {
	error
	ExitCode() exitcodes.ExitCode
}

// AbortReason classifies why an Exception unwound a thread or the whole
// process, for callers that want to distinguish causes without parsing text.
type AbortReason int

// Exception is an error carrying a formatted stack/backtrace distinct from
// its plain Error() text; Format and Fprint prefer StackTrace() when present.
type Exception interface {
	error
	StackTrace() string
}

type hintError struct {
	error
	hint string
}

// WithHint wraps err with hint, merging it with any hint err already
// carries: wrapping a hinted error again yields "newHint (oldHint)". WithHint
// returns nil if err is nil.
func WithHint(err error, hint string) error {
	if err == nil {
		return nil
	}
	var existing HasHint
	if errors.As(err, &existing) {
		hint = fmt.Sprintf("%s (%s)", hint, existing.Hint())
	}
	return &hintError{error: err, hint: hint}
}

func (e *hintError) Hint() string { return e.hint }
func (e *hintError) Unwrap() error { return e.error }

type exitCodeError struct {
	error
	code exitcodes.ExitCode
}

// WithExitCodeIfNone wraps err with code unless err already carries an exit
// code, in which case the existing one wins. Returns nil if err is nil.
func WithExitCodeIfNone(err error, code exitcodes.ExitCode) error {
	if err == nil {
		return nil
	}
	var existing HasExitCode
	if errors.As(err, &existing) {
		return err
	}
	return &exitCodeError{error: err, code: code}
}

func (e *exitCodeError) ExitCode() exitcodes.ExitCode { return e.code }
func (e *exitCodeError) Unwrap() error { return e.error }

// Format extracts the display text and structured fields (currently just
// "hint", if present) for an error, preferring an Exception's StackTrace()
// over its plain Error() text.
func Format(err error) (string, map[string]interface{}) {
	if err == nil {
		return "", nil
	}

	text := err.Error()
	var exc Exception
	if errors.As(err, &exc) {
		text = exc.StackTrace()
	}

	var fields map[string]interface{}
	var h HasHint
	if errors.As(err, &h) {
		fields = map[string]interface{}{"hint": h.Hint()}
	}
	return text, fields
}

// Fprint logs err to logger at error level, using an Exception's
// StackTrace() in place of Error() when available and attaching a "hint"
// field when err carries one. It is a no-op when err is nil.
func Fprint(logger logrus.FieldLogger, err error) {
	if err == nil {
		return
	}
	text, fields := Format(err)
	logger.WithFields(logrus.Fields(fields)).Error(text)
}
