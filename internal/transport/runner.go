package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Result is what a finished process reported.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Runner executes a process from an argument vector. argv[0] is the program;
// the remaining elements are passed to it literally. stdin may be nil.
//
// A non-nil error means the process could not be run to completion (start
// failure, context cancellation). A process that ran and exited non-zero is
// reported through Result.ExitCode with a nil error.
type Runner interface {
	Run(ctx context.Context, argv []string, stdin []byte) (Result, error)
}

// ExecRunner runs processes with os/exec. No shell is involved.
type ExecRunner struct{}

// Run starts argv[0] with argv[1:] and waits for it to exit.
func (ExecRunner) Run(ctx context.Context, argv []string, stdin []byte) (Result, error) {
	if len(argv) == 0 {
		return Result{ExitCode: -1}, errors.New("empty argument vector")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}

	res.ExitCode = -1
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, fmt.Errorf("running %s: %w", argv[0], err)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, argv []string, stdin []byte) (Result, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, argv []string, stdin []byte) (Result, error) {
	return f(ctx, argv, stdin)
}
