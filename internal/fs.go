package internal

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Enumerator collects scan targets under a set of roots.
// One Enumerator covers one run: directories already visited through any root
// are not walked again.
type Enumerator struct {
	opts     *ScanOptions
	log      logrus.FieldLogger
	visited  map[string]struct{}
	readable func(path string) bool
}

func NewEnumerator(opts *ScanOptions, log logrus.FieldLogger) *Enumerator {
	return &Enumerator{
		opts:     opts,
		log:      log,
		visited:  make(map[string]struct{}),
		readable: canRead,
	}
}

// Enumerate walks roots in order and returns every readable regular file.
// Missing roots are skipped with a warning; ErrNoTargets is returned only
// when none of the roots is a usable directory.
func (e *Enumerator) Enumerate(ctx context.Context, roots []string) ([]string, error) {
	var (
		targets []string
		valid   int
	)
	for _, r := range roots {
		if ctx.Err() != nil {
			return targets, ctx.Err()
		}
		root, err := resolveRoot(r)
		if err != nil {
			e.log.WithError(err).Warnf("Directory not found: %s", r)
			continue
		}
		valid++
		if e.opts.excluded(root) {
			e.log.Warnf("%s is in the exclusion list, scanning it because it was named as a root", root)
		}
		e.log.Infof("Collecting files from %s", root)
		err = WalkWithDepth(ctx, root, e.opts.Depth, func(path string, d fs.DirEntry, err error) error {
			return e.visit(root, path, d, err, &targets)
		})
		if err != nil {
			return targets, err
		}
	}
	if valid == 0 {
		return nil, ErrNoTargets
	}
	return targets, nil
}

// visit applies the walk policy to one entry. Exclusions apply below root
// only: a root named by the caller is always walked.
func (e *Enumerator) visit(root, path string, d fs.DirEntry, err error, targets *[]string) error {
	if err != nil {
		e.log.WithError(err).Warnf("Skip unreadable path: %s", path)
		return nil
	}
	typ := d.Type()
	if typ&fs.ModeSymlink != 0 {
		e.log.Debugf("Skip symlink: %s", path)
		return nil
	}
	if d.IsDir() {
		if path != root && e.opts.excluded(path) {
			e.log.Debugf("Skip excluded dir: %s", path)
			return filepath.SkipDir
		}
		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			e.log.WithError(err).Warnf("Skip dir: %s", path)
			return filepath.SkipDir
		}
		if _, seen := e.visited[real]; seen {
			e.log.Debugf("Skip already visited dir: %s", path)
			return filepath.SkipDir
		}
		e.visited[real] = struct{}{}
		return nil
	}
	if !typ.IsRegular() {
		return nil
	}
	if !e.readable(path) {
		e.log.Warnf("Permission denied: %s", path)
		return nil
	}
	*targets = append(*targets, path)
	return nil
}

// resolveRoot returns the absolute, symlink-free form of a root directory.
// Roots are named explicitly by the caller, so a symlinked root is resolved
// once here; links below it are never followed.
func resolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	st, err := os.Stat(real)
	if err != nil {
		return "", err
	}
	if !st.IsDir() {
		return "", errors.New("not a directory")
	}
	return real, nil
}

// WalkWithDepth uses WalkDir and cuts branches by depth.
func WalkWithDepth(ctx context.Context, root string, maxDepth int, fn fs.WalkDirFunc) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return fn(path, d, err)
		}
		if maxDepth > 0 {
			rel, _ := filepath.Rel(root, path)
			if rel != "." && depthCount(rel) > maxDepth {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		return fn(path, d, nil)
	})
}

func depthCount(rel string) int {
	if rel == "" {
		return 0
	}
	return strings.Count(rel, string(os.PathSeparator)) + 1
}
