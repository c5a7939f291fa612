// Package tokenizer splits a byte stream into complete top-level JSON values
// without holding more than one read buffer and one pending value in memory.
package tokenizer

import (
	"fmt"
	"io"

	"github.com/mcncl/json2csv/internal/errors"
)

// DefaultBufferSize is the read size used when none is given.
const DefaultBufferSize = 1 << 20

// byteOrderMark is skipped when it opens the stream.
const byteOrderMark = "\xEF\xBB\xBF"

// Mode selects how top-level values are delimited.
type Mode int

const (
	// ModeNDJSON treats every non-blank line as one value.
	ModeNDJSON Mode = iota
	// ModeArray accepts a bracketed array of objects, or a sequence of objects.
	// Only whitespace may follow the closing bracket.
	ModeArray
	// ModeSingle accepts exactly one object; anything after it is an error.
	ModeSingle
)

// String returns the mode name used in log lines.
func (m Mode) String() string {
	switch m {
	case ModeNDJSON:
		return "ndjson"
	case ModeArray:
		return "array"
	case ModeSingle:
		return "single"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Token is the raw text of one complete top-level value.
type Token struct {
	Raw []byte
	// Line is the 1-based line on which the value starts.
	Line int
	// Index is the 0-based position of the value in the stream.
	Index int
}

// State is the scanning automaton. It is carried across buffer reads so a
// value split between two reads resumes exactly where it stopped.
type State struct {
	Depth        int
	InString     bool
	EscapeParity int
	Acc          []byte

	// Done is set once the closing bracket (array) or the only value (single) is seen.
	Done bool

	newlines  int
	startLine int
	index     int
	// bom counts the byte order mark bytes matched so far; len(byteOrderMark)
	// once the start of the stream is behind us.
	bom int
}

// Pending reports whether a value has been started but not completed.
func (s *State) Pending() bool {
	return len(s.Acc) > 0
}

// Line returns the current 1-based line.
func (s *State) Line() int {
	return s.newlines + 1
}

// StartLine returns the line on which the pending value started.
func (s *State) StartLine() int {
	return s.startLine
}

// Advance consumes bytes from chunk until a value completes, the stream ends
// (Done), or chunk is exhausted. It returns how many bytes were consumed.
func (s *State) Advance(mode Mode, chunk []byte) (n int, complete bool) {
	skip := 0
	if s.bom < len(byteOrderMark) {
		skip = s.skipBOM(chunk)
		chunk = chunk[skip:]
	}

	if mode == ModeNDJSON {
		n, complete = s.advanceLines(chunk)
	} else {
		n, complete = s.advanceValues(chunk)
	}
	return skip + n, complete
}

// skipBOM consumes the leading byte order mark, which may arrive split over
// several chunks. The first byte that does not match closes the window.
func (s *State) skipBOM(chunk []byte) int {
	n := 0
	for n < len(chunk) && s.bom < len(byteOrderMark) && chunk[n] == byteOrderMark[s.bom] {
		s.bom++
		n++
	}
	if n < len(chunk) {
		s.bom = len(byteOrderMark)
	}
	return n
}

func (s *State) advanceValues(chunk []byte) (int, bool) {
	for i, c := range chunk {
		if c == '\n' {
			s.newlines++
		}

		if !s.InString && s.Depth == 0 {
			if isSpace(c) || c == ',' || c == '[' {
				s.EscapeParity = 0
				continue
			}
			if c == ']' {
				s.Done = true
				return i + 1, false
			}
		}

		if len(s.Acc) == 0 {
			s.startLine = s.Line()
		}

		if c == '\\' {
			s.EscapeParity++
			s.Acc = append(s.Acc, c)
			continue
		}

		if c == '"' && s.EscapeParity%2 == 0 {
			s.InString = !s.InString
		}
		s.EscapeParity = 0

		if !s.InString {
			switch c {
			case '{':
				s.Depth++
			case '}':
				s.Depth--
			}
		}
		s.Acc = append(s.Acc, c)

		// A stray closing brace is handed on as its own fragment so the
		// parser rejects it instead of the automaton never returning to zero.
		if c == '}' && !s.InString && s.Depth <= 0 {
			s.Depth = 0
			return i + 1, true
		}
	}

	return len(chunk), false
}

// advanceLines implements ModeNDJSON: JSON strings cannot hold a raw newline,
// so every newline ends the pending value regardless of quoting.
func (s *State) advanceLines(chunk []byte) (int, bool) {
	for i, c := range chunk {
		if c == '\n' {
			s.newlines++
			if len(s.Acc) > 0 {
				return i + 1, true
			}
			continue
		}
		if len(s.Acc) == 0 {
			if isSpace(c) {
				continue
			}
			s.startLine = s.Line()
		}
		s.Acc = append(s.Acc, c)
	}
	return len(chunk), false
}

// Take returns the pending value and resets the automaton for the next one.
func (s *State) Take() Token {
	raw := make([]byte, len(s.Acc))
	copy(raw, s.Acc)

	tok := Token{Raw: raw, Line: s.startLine, Index: s.index}
	s.index++
	s.Acc = s.Acc[:0]
	s.Depth = 0
	s.InString = false
	s.EscapeParity = 0
	return tok
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// Tokenizer yields the top-level values of a stream one at a time.
type Tokenizer struct {
	r     io.Reader
	mode  Mode
	buf   []byte
	pos   int
	end   int
	eof   bool
	state State
	err   error
}

// New creates a Tokenizer reading r in chunks of bufSize bytes.
func New(r io.Reader, mode Mode, bufSize int) *Tokenizer {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Tokenizer{
		r:    r,
		mode: mode,
		buf:  make([]byte, bufSize),
	}
}

// Line returns the line the tokenizer has reached.
func (t *Tokenizer) Line() int {
	return t.state.Line()
}

// Next returns the next complete value. It returns io.EOF once the stream is
// finished. A value left unterminated at the end of the stream is reported as
// an ErrTokenizerDesync error, and data after the end of an array or single
// value as an ErrTrailingData error. Every value returned before either is valid.
func (t *Tokenizer) Next() (Token, error) {
	if t.err != nil {
		return Token{}, t.err
	}

	for {
		if t.state.Done {
			return t.finish()
		}
		if t.pos == t.end {
			if t.eof {
				return t.finish()
			}
			if err := t.fill(); err != nil {
				t.err = err
				return Token{}, err
			}
			continue
		}

		n, complete := t.state.Advance(t.mode, t.buf[t.pos:t.end])
		t.pos += n
		if complete {
			tok := t.state.Take()
			if t.mode == ModeSingle {
				t.state.Done = true
			}
			return tok, nil
		}
	}
}

func (t *Tokenizer) fill() error {
	n, err := t.r.Read(t.buf)
	t.pos, t.end = 0, n
	if err == io.EOF {
		t.eof = true
		return nil
	}
	if err != nil {
		return errors.NewInputError(fmt.Sprintf("failed to read near line %d", t.state.Line()), err)
	}
	return nil
}

func (t *Tokenizer) finish() (Token, error) {
	if t.state.Pending() {
		if t.mode == ModeNDJSON {
			// The last line needs no trailing newline.
			return t.state.Take(), nil
		}
		t.err = errors.NewTokenizerError(
			fmt.Sprintf("unterminated value starting at line %d", t.state.StartLine()),
			errors.ErrTokenizerDesync,
		)
		return Token{}, t.err
	}

	// Only whitespace may follow the closing bracket or the single value.
	if t.mode != ModeNDJSON && t.state.Done {
		if err := t.checkTrailing(); err != nil {
			t.err = err
			return Token{}, err
		}
	}

	t.err = io.EOF
	return Token{}, io.EOF
}

// checkTrailing drains the stream and fails on anything but whitespace.
func (t *Tokenizer) checkTrailing() error {
	for {
		for _, c := range t.buf[t.pos:t.end] {
			if c == '\n' {
				t.state.newlines++
			}
			if !isSpace(c) {
				return errors.NewTokenizerError(
					fmt.Sprintf("unexpected data at line %d", t.state.Line()),
					errors.ErrTrailingData,
				)
			}
		}
		t.pos = t.end
		if t.eof {
			return nil
		}
		if err := t.fill(); err != nil {
			return err
		}
	}
}
