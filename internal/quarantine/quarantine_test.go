package quarantine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, map[string]string{"b.exe": "bb", "a.bin": "a"})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	ents, err := List(dir)
	require.NoError(t, err)
	require.Len(t, ents, 2)
	assert.Equal(t, "a.bin", ents[0].Name)
	assert.Equal(t, int64(1), ents[0].Size)
	assert.Equal(t, "b.exe", ents[1].Name)

	_, err = List(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestRestore(t *testing.T) {
	dir, dest := t.TempDir(), t.TempDir()
	seed(t, dir, map[string]string{"a.bin": "payload"})

	got, err := Restore(dir, "a.bin", dest, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "a.bin"), got)

	b, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(b))
	st, err := os.Stat(got)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), st.Mode().Perm())

	_, err = os.Stat(filepath.Join(dir, "a.bin"))
	assert.True(t, os.IsNotExist(err))
}

func TestRestore_ExistingDestination(t *testing.T) {
	dir, dest := t.TempDir(), t.TempDir()
	seed(t, dir, map[string]string{"a.bin": "new"})
	seed(t, dest, map[string]string{"a.bin": "old"})

	_, err := Restore(dir, "a.bin", dest, false)
	assert.True(t, errors.Is(err, ErrExists))

	got, err := Restore(dir, "a.bin", dest, true)
	require.NoError(t, err)
	b, _ := os.ReadFile(got)
	assert.Equal(t, "new", string(b))
}

func TestRestore_RejectsPaths(t *testing.T) {
	dir, dest := t.TempDir(), t.TempDir()
	for _, name := range []string{"../etc/passwd", "sub/a", ".", ".."} {
		_, err := Restore(dir, name, dest, false)
		assert.Error(t, err, name)
	}
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	seed(t, dir, map[string]string{"a.bin": "a", "b.exe": "b"})
	out := filepath.Join(t.TempDir(), "samples.tar.gz")

	n, err := Export(ctx, dir, out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	names, err := ReadExport(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.bin", "b.exe"}, names)
}

func TestExport_Empty(t *testing.T) {
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "empty.tar.gz")
	n, err := Export(ctx, t.TempDir(), out)
	require.NoError(t, err)
	assert.Zero(t, n)
}
