// Package runner executes the external tools leanproject orchestrates
// (git, leanpkg, lean, dot).
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Runner runs external commands in a working directory.
type Runner interface {
	// Run executes name with args in dir and returns combined stdout and stderr.
	Run(ctx context.Context, dir, name string, args ...string) (string, error)

	// RunEcho executes name with args in dir, streaming output to the terminal.
	RunEcho(ctx context.Context, dir, name string, args ...string) error
}

// Exec runs commands with os/exec.
type Exec struct {
	// Env is appended to the current process environment.
	Env []string
}

// Default is the Runner used when none is injected.
var Default Runner = &Exec{}

func (e *Exec) command(ctx context.Context, dir, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	return cmd
}

func (e *Exec) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := e.command(ctx, dir, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	slog.Debug("running command", "dir", dir, "cmd", name, "args", args)
	if err := cmd.Run(); err != nil {
		return out.String(), NewCommandError(commandLine(name, args), exitCode(err), out.String(), err)
	}
	return out.String(), nil
}

func (e *Exec) RunEcho(ctx context.Context, dir, name string, args ...string) error {
	cmd := e.command(ctx, dir, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	slog.Debug("running command", "dir", dir, "cmd", name, "args", args)
	if err := cmd.Run(); err != nil {
		return NewCommandError(commandLine(name, args), exitCode(err), "", err)
	}
	return nil
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func commandLine(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

// CommandError wraps a command execution failure with its output.
//
//	var cmdErr *CommandError
//	if errors.As(err, &cmdErr) {
//	    fmt.Println(cmdErr.Output)
//	}
type CommandError struct {
	// Command is the command line that was executed.
	Command string

	// ExitCode is the process exit code (-1 if unknown).
	ExitCode int

	// Output is the trimmed combined output, empty for streamed commands.
	Output string

	// Wrapped is the underlying error.
	Wrapped error
}

func (e *CommandError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s (exit %d): %s", e.Command, e.ExitCode, e.Output)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s (exit %d): %v", e.Command, e.ExitCode, e.Wrapped)
	}
	return fmt.Sprintf("%s (exit %d)", e.Command, e.ExitCode)
}

func (e *CommandError) Unwrap() error {
	return e.Wrapped
}

// NewCommandError creates a CommandError, trimming surrounding whitespace
// from the captured output.
func NewCommandError(command string, exitCode int, output string, wrapped error) *CommandError {
	return &CommandError{
		Command:  command,
		ExitCode: exitCode,
		Output:   strings.TrimSpace(output),
		Wrapped:  wrapped,
	}
}
