package filestore

import (
	"bytes"
	"errors"
	"io/fs"
	"os"

	"github.com/natefinch/atomic"
)

// FS is the slice of the filesystem the store needs. Tests substitute a
// spy to count reads or inject failures.
type FS interface {
	ReadFile(name string) ([]byte, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	Stat(name string) (fs.FileInfo, error)
	Remove(name string) error
	MkdirAll(path string, perm fs.FileMode) error
	// WriteFileAtomic replaces name with data so that readers observe either
	// the previous content or the new content, never a partial write.
	WriteFileAtomic(name string, data []byte, perm fs.FileMode) error
}

// OSFS is the real filesystem.
type OSFS struct{}

var _ FS = OSFS{}

func (OSFS) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) } //nolint:gosec // G304: sandboxed path

func (OSFS) ReadDir(name string) ([]fs.DirEntry, error) { return os.ReadDir(name) }

func (OSFS) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

func (OSFS) Remove(name string) error { return os.Remove(name) }

func (OSFS) MkdirAll(path string, perm fs.FileMode) error { return os.MkdirAll(path, perm) }

// WriteFileAtomic writes to a uniquely named temp sibling, fsyncs it and
// renames it over name. The temp file is removed on any failure. New files
// get perm; replaced files keep their existing mode.
func (OSFS) WriteFileAtomic(name string, data []byte, perm fs.FileMode) error {
	_, statErr := os.Stat(name)
	if err := atomic.WriteFile(name, bytes.NewReader(data)); err != nil {
		return err
	}
	if errors.Is(statErr, fs.ErrNotExist) {
		// atomic.WriteFile leaves new files with the temp file's 0600.
		if err := os.Chmod(name, perm); err != nil {
			return err
		}
	}
	return nil
}
