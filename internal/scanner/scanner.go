package scanner

import (
	"context"
)

// Command is the resolved external scanner executable.
type Command struct {
	Name   string // clamdscan / clamscan
	Path   string
	Daemon bool // backed by clamd, cheaper per invocation
}

// Infection is a single file flagged by the external scanner.
type Infection struct {
	Path    string
	Message string
}

// BatchResult is what one scanner invocation over one batch reports back.
type BatchResult struct {
	Files      int
	Infections []Infection
	ExitCode   int
	Err        error
	// Killed is set when the process was torn down by a hard stop.
	Killed bool
}

// Scanner is the interface for batch scanners.
type Scanner interface {
	ScanBatch(ctx context.Context, batch []string) BatchResult
}

// Func adapts a plain function to Scanner.
type Func func(ctx context.Context, batch []string) BatchResult

func (f Func) ScanBatch(ctx context.Context, batch []string) BatchResult { return f(ctx, batch) }
