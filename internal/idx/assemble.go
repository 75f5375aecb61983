package idx

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

// maxLineSize bounds a single idx line. Real lines are well under 200 bytes.
const maxLineSize = 64 << 10

// Lines yields the newline-delimited lines of r without their terminators.
// A read failure, or cancellation of ctx, is yielded once as the error of a
// final pair. The consumer may stop at any line boundary.
func Lines(ctx context.Context, r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 4096), maxLineSize)
		for sc.Scan() {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(sc.Text(), nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield("", err)
		}
	}
}

// Assemble decodes every line in order. It stops at the first failure and
// returns no records in that case: a skipped line would shift the derived
// end offset of its predecessor.
//
// Blank lines are not records and are skipped.
func Assemble(lines iter.Seq2[string, error]) ([]IndexRecord, error) {
	var records []IndexRecord
	n := 0
	for line, err := range lines {
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIO, err)
		}
		n++
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := Decode(line)
		if err != nil {
			var le *LineError
			if errors.As(err, &le) {
				le.Line = n
			}
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
