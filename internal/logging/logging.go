// Package logging builds the run logger: text lines on stderr, optionally
// copied to a log file, each tagged with the id of the run.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/mcncl/json2csv/internal/errors"
)

// Options controls where logs go
type Options struct {
	// File, if set, receives a copy of every line. It is appended to.
	File  string
	Debug bool
	// Console defaults to os.Stderr.
	Console io.Writer
}

// Logger is a slog.Logger that owns its log file.
type Logger struct {
	*slog.Logger
	RunID string
	file  *os.File
}

// New creates the run logger. The caller must Close it.
func New(opts Options) (*Logger, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	var file *os.File
	out := console
	if opts.File != "" {
		if dir := filepath.Dir(opts.File); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.NewConfigError(fmt.Sprintf("failed to create log directory '%s'", dir), err)
			}
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, errors.NewConfigError(fmt.Sprintf("failed to open log file '%s'", opts.File), err)
		}
		file = f
		out = io.MultiWriter(console, f)
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	runID := uuid.NewString()
	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})

	return &Logger{
		Logger: slog.New(handler).With("run_id", runID),
		RunID:  runID,
		file:   file,
	}, nil
}

// Discard returns a logger that drops everything, for tests and library use.
func Discard() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Close closes the log file, if any
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
