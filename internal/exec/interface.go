// Package exec provides an interface for command execution.
package exec

import (
	"context"
)

// Command describes a process to start.
type Command struct {
	// Name is the program to run.
	Name string
	// Args are the arguments after the program name.
	Args []string
	// Env entries are added on top of the current environment.
	Env []string
}

// CommandRunner defines the interface for running external commands.
// This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Run executes a command attached to this process's stdin, stdout and
	// stderr and returns its exit code. The error is non-nil only when the
	// command could not be run at all.
	Run(ctx context.Context, cmd Command) (exitCode int, err error)

	// Output executes a command and returns combined stdout/stderr output.
	Output(ctx context.Context, name string, args ...string) (output []byte, err error)
}
