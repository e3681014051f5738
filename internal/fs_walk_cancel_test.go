package internal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestWalkWithDepth_CallbackErrorStopsWalk(t *testing.T) {
	errStop := errors.New("stop")
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0644)

	gotErr := WalkWithDepth(context.Background(), dir, 0, func(path string, d os.DirEntry, err error) error {
		// trigger only on first file
		if !d.IsDir() {
			return errStop
		}
		return nil
	})
	if !errors.Is(gotErr, errStop) {
		t.Fatalf("expected errStop, got %v", gotErr)
	}
}

func TestEnumerate_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0644)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := ScanOptions{}
	opts.Prepare()
	_, err := NewEnumerator(&opts, testLogger()).Enumerate(ctx, []string{dir})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
