package writer

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mcncl/json2csv/internal/errors"
)

// StdoutName is the output path that selects standard output.
const StdoutName = "-"

// File is an output destination that only appears once it is committed.
// Rows go to a temporary file in the destination directory which Commit
// renames into place, so a failed run never leaves partial output behind.
type File struct {
	path string
	tmp  *os.File
	buf  *bufio.Writer
	done bool
}

// CreateFile prepares path for writing, creating parent directories as
// needed. An empty path or "-" writes to standard output directly.
func CreateFile(path string) (*File, error) {
	if path == "" || path == StdoutName {
		return &File{buf: bufio.NewWriter(os.Stdout)}, nil
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil, errors.NewOutputError(fmt.Sprintf("output '%s' is a directory", path), errors.ErrInvalidFilePath)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewOutputError(fmt.Sprintf("failed to create output directory '%s'", dir), err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, errors.NewOutputError(fmt.Sprintf("failed to create temporary file in '%s'", dir), err)
	}

	return &File{path: path, tmp: tmp, buf: bufio.NewWriter(tmp)}, nil
}

// Name returns the destination path, or "-" for standard output
func (f *File) Name() string {
	if f.tmp == nil {
		return StdoutName
	}
	return f.path
}

func (f *File) Write(p []byte) (int, error) {
	return f.buf.Write(p)
}

// Commit flushes the output and moves it to its destination
func (f *File) Commit() error {
	if f.done {
		return nil
	}
	f.done = true

	if err := f.buf.Flush(); err != nil {
		f.remove()
		return errors.NewOutputError(fmt.Sprintf("failed to write '%s'", f.Name()), err)
	}
	if f.tmp == nil {
		return nil
	}

	if err := f.tmp.Close(); err != nil {
		f.remove()
		return errors.NewOutputError(fmt.Sprintf("failed to write '%s'", f.path), err)
	}
	if err := os.Chmod(f.tmp.Name(), 0o644); err != nil {
		f.remove()
		return errors.NewOutputError(fmt.Sprintf("failed to set permissions on '%s'", f.path), err)
	}
	if err := os.Rename(f.tmp.Name(), f.path); err != nil {
		f.remove()
		return errors.NewOutputError(fmt.Sprintf("failed to move output into '%s'", f.path), err)
	}
	return nil
}

// Abort discards everything written. It is a no-op after Commit.
func (f *File) Abort() {
	if f.done {
		return
	}
	f.done = true
	if f.tmp == nil {
		// Rows already sent to stdout cannot be taken back.
		_ = f.buf.Flush()
		return
	}
	f.remove()
}

func (f *File) remove() {
	if f.tmp != nil {
		_ = f.tmp.Close()
		_ = os.Remove(f.tmp.Name())
	}
}
