// Package cmdutil runs external commands (git, git-annex) with the
// distinction between "the command could not be started", "the command
// started but exited non-zero", and "the command's output could not be
// decoded" kept as separate, inspectable error types, ported from
// CommandError/CommandOutputError in
// _examples/original_source/src/cmd.rs and src/util.rs.
package cmdutil

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"unicode/utf8"
)

// StartError means the subprocess could not even be launched (binary not
// found, permission denied, etc).
type StartError struct {
	Name string
	Args []string
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("cmdutil: start %s: %v", formatCmd(e.Name, e.Args), e.Err)
}
func (e *StartError) Unwrap() error { return e.Err }

// ExitError means the subprocess ran to completion but returned a non-zero
// exit status.
type ExitError struct {
	Name   string
	Args   []string
	Status int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("cmdutil: %s exited with status %d", formatCmd(e.Name, e.Args), e.Status)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

// DecodeError means the subprocess exited successfully but its stdout
// could not be decoded the way the caller expected (e.g. not valid UTF-8).
type DecodeError struct {
	Name string
	Args []string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cmdutil: decode output of %s: %v", formatCmd(e.Name, e.Args), e.Err)
}
func (e *DecodeError) Unwrap() error { return e.Err }

func formatCmd(name string, args []string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}

// Run executes name with args in dir, logging it at debug level first.
// Stdout/stderr are both captured; a non-zero exit produces an *ExitError
// carrying stderr for diagnostics.
func Run(ctx context.Context, logger *slog.Logger, dir, name string, args ...string) error {
	_, err := Output(ctx, logger, dir, name, args...)
	return err
}

// Output behaves like Run but returns captured, trimmed stdout on success.
func Output(ctx context.Context, logger *slog.Logger, dir, name string, args ...string) (string, error) {
	if logger != nil {
		logger.Debug("running command", "name", name, "args", args, "dir", dir)
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", &StartError{Name: name, Args: args, Err: err}
	}

	if err := cmd.Wait(); err != nil {
		status := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			status = exitErr.ExitCode()
		}
		return "", &ExitError{Name: name, Args: args, Status: status, Stderr: stderr.String()}
	}

	if !utf8.Valid(stdout.Bytes()) {
		return "", &DecodeError{Name: name, Args: args, Err: fmt.Errorf("stdout is not valid UTF-8")}
	}
	return strings.TrimSpace(stdout.String()), nil
}
