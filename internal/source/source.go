// Package source finds the input files of a run and opens them, decompressing
// them transparently based on their extension.
package source

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/mcncl/json2csv/internal/errors"
)

// StdinName is the path that selects standard input.
const StdinName = "-"

// Input is one source of JSON records. Rewindable inputs can be opened more
// than once, which two-pass streaming requires.
type Input struct {
	Name       string
	open       func() (io.ReadCloser, error)
	rewindable bool
}

// Open returns a fresh reader positioned at the start of the input
func (in Input) Open() (io.ReadCloser, error) {
	return in.open()
}

// Rewindable reports whether Open may be called repeatedly
func (in Input) Rewindable() bool {
	return in.rewindable
}

// File returns an Input reading the file at path
func File(path string) Input {
	return Input{
		Name:       path,
		rewindable: true,
		open: func() (io.ReadCloser, error) {
			return openFile(path)
		},
	}
}

// Reader returns a one-shot Input over r. A second Open fails with ErrNotRewindable.
func Reader(name string, r io.Reader) Input {
	var once sync.Once
	return Input{
		Name: name,
		open: func() (io.ReadCloser, error) {
			var rc io.ReadCloser
			once.Do(func() { rc = io.NopCloser(r) })
			if rc == nil {
				return nil, errors.NewInputError(fmt.Sprintf("'%s' was already consumed", name), errors.ErrNotRewindable)
			}
			return rc, nil
		},
	}
}

// Discover resolves path into the ordered list of inputs for a run: the file
// itself, every regular non-hidden file of a directory sorted by name, or
// standard input for "-".
func Discover(path string) ([]Input, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.NewInputError("input path is empty", errors.ErrNoInput)
	}
	if path == StdinName {
		return []Input{Reader("stdin", os.Stdin)}, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewInputError(fmt.Sprintf("input '%s' not found", path), errors.ErrFileNotFound)
		}
		return nil, errors.NewInputError(fmt.Sprintf("failed to stat input '%s'", path), err)
	}

	if !info.IsDir() {
		return []Input{File(path)}, nil
	}

	// os.ReadDir returns entries sorted by filename.
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, errors.NewInputError(fmt.Sprintf("failed to list directory '%s'", path), err)
	}

	var inputs []Input
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		inputs = append(inputs, File(filepath.Join(path, entry.Name())))
	}
	if len(inputs) == 0 {
		return nil, errors.NewInputError(fmt.Sprintf("directory '%s' contains no input files", path), errors.ErrEmptyInput)
	}
	return inputs, nil
}

func openFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewInputError(fmt.Sprintf("file '%s' not found", path), errors.ErrFileNotFound)
		}
		return nil, errors.NewInputError(fmt.Sprintf("failed to open file '%s'", path), err)
	}

	rc, err := Decompress(path, f)
	if err != nil {
		_ = f.Close()
		return nil, errors.NewInputError(fmt.Sprintf("failed to open compressed file '%s'", path), err)
	}
	return rc, nil
}

// readCloser pairs a decoding reader with the cleanup of its layers.
type readCloser struct {
	io.Reader
	close func() error
}

func (r readCloser) Close() error {
	return r.close()
}

// Decompress wraps rc in a decoder chosen by the extension of name. Unknown
// extensions are returned unchanged. Closing the result closes rc.
func Decompress(name string, rc io.ReadCloser) (io.ReadCloser, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz", ".gzip":
		zr, err := gzip.NewReader(rc)
		if err != nil {
			return nil, err
		}
		return readCloser{Reader: zr, close: func() error {
			zerr := zr.Close()
			if err := rc.Close(); err != nil {
				return err
			}
			return zerr
		}}, nil
	case ".zst", ".zstd":
		dec, err := zstd.NewReader(rc, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return readCloser{Reader: dec, close: func() error {
			dec.Close()
			return rc.Close()
		}}, nil
	case ".lz4":
		return readCloser{Reader: lz4.NewReader(rc), close: rc.Close}, nil
	case ".s2", ".sz":
		return readCloser{Reader: s2.NewReader(rc), close: rc.Close}, nil
	default:
		return rc, nil
	}
}

// Spool copies a one-shot input into a zstd-compressed temporary file so it
// can be read twice. The returned cleanup removes the file.
func Spool(in Input, dir string) (Input, func() error, error) {
	noop := func() error { return nil }

	src, err := in.Open()
	if err != nil {
		return Input{}, noop, err
	}
	defer func() { _ = src.Close() }()

	f, err := os.CreateTemp(dir, "json2csv-spool-*.zst")
	if err != nil {
		return Input{}, noop, errors.NewOutputError("failed to create spool file", err)
	}
	path := f.Name()
	cleanup := func() error {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		_ = cleanup()
		return Input{}, noop, errors.NewOutputError("failed to start spool encoder", err)
	}

	if _, err := io.Copy(enc, src); err != nil {
		_ = enc.Close()
		_ = f.Close()
		_ = cleanup()
		return Input{}, noop, errors.NewInputError(fmt.Sprintf("failed to spool '%s'", in.Name), err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		_ = cleanup()
		return Input{}, noop, errors.NewOutputError("failed to finish spool file", err)
	}
	if err := f.Close(); err != nil {
		_ = cleanup()
		return Input{}, noop, errors.NewOutputError("failed to close spool file", err)
	}

	spooled := File(path)
	spooled.Name = in.Name
	return spooled, cleanup, nil
}
