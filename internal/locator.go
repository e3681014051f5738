package internal

import (
	"fmt"
	"os/exec"
	"path/filepath"

	"ClamBatch/internal/scanner"
)

// Scanner binaries in order of preference. clamdscan hands files to a running
// clamd and avoids loading the signature database per invocation.
var scannerCandidates = []struct {
	name   string
	daemon bool
}{
	{"clamdscan", true},
	{"clamscan", false},
}

// Locator resolves which ClamAV frontend is installed.
type Locator struct {
	// Explicit path, skips probing when set.
	Override string
	lookPath func(string) (string, error)
}

func NewLocator(override string) *Locator {
	return &Locator{Override: override, lookPath: exec.LookPath}
}

// Locate returns the scanner command or ErrScannerNotFound.
func (l *Locator) Locate() (scanner.Command, error) {
	if l.Override != "" {
		p, err := l.lookPath(l.Override)
		if err != nil {
			return scanner.Command{}, fmt.Errorf("%w: %s: %v", ErrScannerNotFound, l.Override, err)
		}
		name := filepath.Base(p)
		return scanner.Command{Name: name, Path: p, Daemon: name == "clamdscan"}, nil
	}
	for _, c := range scannerCandidates {
		if p, err := l.lookPath(c.name); err == nil {
			return scanner.Command{Name: c.name, Path: p, Daemon: c.daemon}, nil
		}
	}
	return scanner.Command{}, ErrScannerNotFound
}
