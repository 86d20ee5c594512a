// Package exec provides shell command execution helpers.
package exec

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Error reports a command that could not be run or
// exited with a non-zero status. Output holds the
// combined stdout+stderr of the command.
type Error struct {
	Name   string
	Args   []string
	Output string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf(
		"executing command: %s %s: %v",
		e.Name, strings.Join(e.Args, " "), e.Err,
	)

	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}

	return msg
}

// Unwrap returns the underlying process error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Details returns the raw diagnostic text printed by the
// command, falling back to the process error.
func (e *Error) Details() string {
	if out := strings.TrimSpace(e.Output); out != "" {
		return out
	}

	return e.Err.Error()
}

// ExitCode returns the exit status of the command, or -1
// when the command did not run to completion.
func (e *Error) ExitCode() int {
	if ee, ok := e.Err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}

	return -1
}

// Ex executes the named command in the given directory and
// returns combined stdout+stderr output. Pass empty dir to
// use the current working directory. A failed command is
// reported as *Error.
func Ex(
	ctx context.Context,
	dir string,
	name string,
	arg ...string,
) (string, error) {
	slog.Info(
		"executing",
		"cmd", name,
		"args", strings.Join(arg, " "),
	)

	cmd := exec.CommandContext(ctx, name, arg...)
	if dir != "" {
		cmd.Dir = dir
	}

	by, err := cmd.CombinedOutput()

	slog.Info("output", "result", string(by))

	if err != nil {
		return string(by), &Error{
			Name:   name,
			Args:   arg,
			Output: string(by),
			Err:    err,
		}
	}

	return string(by), nil
}
