package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"ClamBatch/internal/scanner"
)

// fakeClamScript behaves like clamscan for the options we pass: every file
// containing EICAR is reported as infected and the exit status is 1 if any
// was found. Each invocation appends one line to <script>.calls.
const fakeClamScript = `#!/bin/sh
echo "$*" >> "$0.calls"
found=0
for a in "$@"; do
  case "$a" in
    --*) continue ;;
  esac
  if grep -q EICAR "$a" 2>/dev/null; then
    echo "$a: Eicar-Test-Signature FOUND"
    found=1
  else
    echo "$a: OK"
  fi
done
exit $found
`

// writeScript installs an executable script called name into a temp dir.
func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return p
}

func fakeClam(t *testing.T) string {
	return writeScript(t, "clamscan", fakeClamScript)
}

// scriptCalls returns the argument lines of every recorded invocation.
func scriptCalls(t *testing.T, script string) []string {
	t.Helper()
	b, err := os.ReadFile(script + ".calls")
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimSpace(string(b)), "\n")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// realDir resolves symlinks in a temp dir (macOS /var -> /private/var).
func realDir(t *testing.T) string {
	t.Helper()
	d, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func stubLocator(found ...string) *Locator {
	return &Locator{lookPath: func(name string) (string, error) {
		for _, f := range found {
			if f == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", os.ErrNotExist
	}}
}

// withFunc plugs a plain function in as the batch scanner.
func withFunc(f func(ctx context.Context, batch []string) scanner.BatchResult) CoordinatorOption {
	return WithScanner(func(scanner.Command, logrus.FieldLogger) scanner.Scanner {
		return scanner.Func(f)
	})
}

func cleanBatch(_ context.Context, batch []string) scanner.BatchResult {
	return scanner.BatchResult{Files: len(batch)}
}

func targets(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("/data/f%03d", i)
	}
	return out
}

func testLogger() logrus.FieldLogger {
	return DiscardLogger()
}
