package execution

import (
	"fmt"
	"io"
	"os"
)

// File permission constants
const (
	DirPermission     = 0o755
	StagingPermission = 0o700
)

// FileSystem defines an interface for file system operations
type FileSystem interface {
	// FileExists reports whether path names a regular file.
	FileExists(path string) (bool, error)
	MkdirAll(path string, perm os.FileMode) error
	CopyFile(src, dst string, perm os.FileMode) error
	RemoveAll(path string) error
}

// RealFileSystem implements FileSystem using actual file system operations
type RealFileSystem struct{}

func (RealFileSystem) FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (RealFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (RealFileSystem) CopyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}

func (RealFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}
