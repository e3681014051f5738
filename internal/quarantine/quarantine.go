// Package quarantine manages the directory clamscan moves infected files into.
package quarantine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mholt/archives"
)

var ErrExists = errors.New("destination already exists")

// Entry is one quarantined file.
type Entry struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// List returns the files in dir sorted by name.
func List(dir string) ([]Entry, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(ents))
	for _, e := range ents {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Restore moves name out of the quarantine into destDir and makes it
// readable again. An existing destination is replaced only with overwrite.
func Restore(dir, name, destDir string, overwrite bool) (string, error) {
	if name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid quarantine entry %q", name)
	}
	src := filepath.Join(dir, name)
	dst := filepath.Join(destDir, name)

	if _, err := os.Lstat(dst); err == nil {
		if !overwrite {
			return "", fmt.Errorf("%w: %s", ErrExists, dst)
		}
		if err := os.Remove(dst); err != nil {
			return "", fmt.Errorf("remove existing %s: %w", dst, err)
		}
	}
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("restore %s: %w", name, err)
	}
	if err := os.Chmod(dst, 0o644); err != nil {
		return dst, fmt.Errorf("chmod %s: %w", dst, err)
	}
	return dst, nil
}

// Export writes every quarantined file into a gzip-compressed tarball at out,
// e.g. for handing samples to an analyst.
func Export(ctx context.Context, dir, out string) (int, error) {
	ents, err := List(dir)
	if err != nil {
		return 0, err
	}
	names := make(map[string]string, len(ents))
	for _, e := range ents {
		names[filepath.Join(dir, e.Name)] = e.Name
	}
	files, err := archives.FilesFromDisk(ctx, nil, names)
	if err != nil {
		return 0, fmt.Errorf("collect quarantine files: %w", err)
	}

	f, err := os.Create(out)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	format := archives.CompressedArchive{
		Compression: archives.Gz{},
		Archival:    archives.Tar{},
	}
	if err := format.Archive(ctx, f, files); err != nil {
		return 0, fmt.Errorf("write %s: %w", out, err)
	}
	return len(files), f.Close()
}

// ReadExport lists the file names stored in an export produced by Export.
func ReadExport(ctx context.Context, path string) ([]string, error) {
	fsys, err := archives.FileSystem(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	var names []string
	err = fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			names = append(names, p)
		}
		return nil
	})
	sort.Strings(names)
	return names, err
}
