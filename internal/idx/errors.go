package idx

import (
	"errors"
	"fmt"
)

// Failure kinds. Every error returned by this package matches exactly one
// of these via errors.Is.
var (
	ErrIO            = errors.New("idx: read failure")
	ErrMalformedLine = errors.New("idx: malformed line")
	ErrCorruptIndex  = errors.New("idx: corrupt index")
)

// LineError describes a line that could not be decoded.
type LineError struct {
	Line   int    // 1-based line number; 0 when decoded outside a stream
	Text   string // raw line
	Reason string
}

func (e *LineError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed idx line %d: %s: %q", e.Line, e.Reason, e.Text)
	}
	return fmt.Sprintf("malformed idx line: %s: %q", e.Reason, e.Text)
}

func (e *LineError) Unwrap() error {
	return ErrMalformedLine
}

// CorruptIndexError reports a pair of adjacent records whose offsets go
// backwards, or a record handed to Build before it was resolved.
type CorruptIndexError struct {
	Seq       uint64
	Start     uint64
	NextSeq   uint64
	NextStart uint64
	Message   string
}

func (e *CorruptIndexError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("corrupt idx: record %d: %s", e.Seq, e.Message)
	}
	return fmt.Sprintf("corrupt idx: record %d starts at %d, after record %d at %d",
		e.NextSeq, e.NextStart, e.Seq, e.Start)
}

func (e *CorruptIndexError) Unwrap() error {
	return ErrCorruptIndex
}

func newLineError(text, reasonFmt string, args ...any) *LineError {
	return &LineError{
		Text:   text,
		Reason: fmt.Sprintf(reasonFmt, args...),
	}
}
