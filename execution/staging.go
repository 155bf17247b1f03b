package execution

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"
)

// StagingArea is a private copy of a module's directory.
type StagingArea struct {
	dir string
	fs  FileSystem
}

// Stage copies srcDir into root/name, leaving out paths matching excludes.
// Symlinks and special files are not copied. On failure nothing is left
// behind.
func Stage(fsys FileSystem, root, name, srcDir string, excludes []string) (*StagingArea, error) {
	if root == "" {
		root = os.TempDir()
	}
	for _, pattern := range excludes {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: invalid staging exclude pattern %q", ErrArgument, pattern)
		}
	}

	dir, err := filepath.Abs(filepath.Join(root, name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve staging area: %w", err)
	}
	src, err := filepath.Abs(srcDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", srcDir, err)
	}
	srcDir = src

	s := &StagingArea{dir: dir, fs: fsys}
	if err := fsys.MkdirAll(s.dir, StagingPermission); err != nil {
		return nil, fmt.Errorf("failed to create staging area: %w", err)
	}

	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		// The staging area may live inside srcDir.
		if within(p, s.dir) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		if shouldExclude(filepath.ToSlash(rel), excludes) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		target := filepath.Join(s.dir, rel)
		switch {
		case d.IsDir():
			return fsys.MkdirAll(target, DirPermission)
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return err
			}
			// Sibling callbacks run concurrently with their parent's.
			if err := fsys.MkdirAll(filepath.Dir(target), DirPermission); err != nil {
				return err
			}
			return fsys.CopyFile(p, target, info.Mode().Perm())
		default:
			return nil
		}
	})
	if err != nil {
		if rmErr := fsys.RemoveAll(s.dir); rmErr != nil {
			err = fmt.Errorf("%w (cleanup: %w)", err, rmErr)
		}
		return nil, fmt.Errorf("failed to stage %s: %w", srcDir, err)
	}

	return s, nil
}

// Dir returns the staging directory.
func (s *StagingArea) Dir() string {
	return s.dir
}

// Path maps a path inside the staged source directory to its copy.
func (s *StagingArea) Path(rel string) string {
	return filepath.Join(s.dir, rel)
}

// Remove deletes the staging area. Failures are logged and dropped.
func (s *StagingArea) Remove(logger *zap.Logger) {
	if err := s.fs.RemoveAll(s.dir); err != nil {
		logger.Warn("failed to remove staging area", zap.String("dir", s.dir), zap.Error(err))
		return
	}
	logger.Debug("staging area removed", zap.String("dir", s.dir))
}

// within reports whether p is dir or lies below it. Both must be clean.
func within(p, dir string) bool {
	return p == dir || strings.HasPrefix(p, dir+string(filepath.Separator))
}

// shouldExclude reports whether relPath (slash separated) matches a pattern.
// Patterns without a slash also match the base name at any depth.
func shouldExclude(relPath string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return true
		}
		if !strings.Contains(pattern, "/") {
			if ok, _ := doublestar.Match(pattern, path.Base(relPath)); ok {
				return true
			}
		}
	}
	return false
}
