package internal

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// waitDelay bounds how long a killed scanner may keep its pipes open.
const waitDelay = 5 * time.Second

// execResult holds the output and exit status of one external command.
type execResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

type runFunc func(ctx context.Context, program string, args ...string) *execResult

// runCommand runs program to completion and captures both streams.
// ExitCode is -1 when the process could not be started or was killed.
func runCommand(ctx context.Context, program string, args ...string) *execResult {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	err := cmd.Run()

	res := &execResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
		Err:    err,
	}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.ExitCode = 0
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
	}
	return res
}
