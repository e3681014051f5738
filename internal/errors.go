package internal

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrScannerNotFound      = errors.New("neither clamdscan nor clamscan found, please install ClamAV")
	ErrNoTargets            = errors.New("no valid directories to scan")
)

// BatchScanError reports a scanner process that exited with a status other
// than 0 (clean) or 1 (infections found), or that could not be started.
type BatchScanError struct {
	Files    int
	ExitCode int
	Stderr   string
	Err      error
}

func (e *BatchScanError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "scan of %d files failed", e.Files)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	} else {
		fmt.Fprintf(&b, ": exit status %d", e.ExitCode)
	}
	if e.Stderr != "" {
		fmt.Fprintf(&b, ": %s", e.Stderr)
	}
	return b.String()
}

func (e *BatchScanError) Unwrap() error { return e.Err }

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
