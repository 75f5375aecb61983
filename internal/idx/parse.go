package idx

import (
	"context"
	"io"
)

// Parse reads a complete idx file from r and builds its index. Either a
// complete, consistent index is returned or an error matching one of
// ErrIO, ErrMalformedLine or ErrCorruptIndex.
func Parse(ctx context.Context, r io.Reader) (*GribIndex, error) {
	records, err := Assemble(Lines(ctx, r))
	if err != nil {
		return nil, err
	}
	if err := Resolve(records); err != nil {
		return nil, err
	}
	return Build(records)
}
