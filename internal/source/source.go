// Package source provides the byte streams that idx files are read from.
//
// An Opener is bound to one bucket (or directory) at construction and opens
// objects by key. Providers live in subpackages: s3, gcs, azure, file and
// memory. Openers do not retry; the caller decides whether a failed build
// is worth repeating.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
)

// ErrNotFound is returned (wrapped) by every provider when the key does not exist.
var ErrNotFound = errors.New("object not found")

// Opener opens an object for reading. The caller must close the returned
// reader. Implementations must be safe for concurrent use.
type Opener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, key string) (io.ReadCloser, error)

func (f OpenerFunc) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return f(ctx, key)
}

// Factory creates an Opener from configuration parameters.
type Factory func(ctx context.Context, params map[string]string, logger *slog.Logger) (Opener, error)

// New looks up typ in factories and builds an Opener with it.
func New(ctx context.Context, factories map[string]Factory, typ string, params map[string]string, logger *slog.Logger) (Opener, error) {
	f, ok := factories[typ]
	if !ok {
		names := make([]string, 0, len(factories))
		for name := range factories {
			names = append(names, name)
		}
		slices.Sort(names)
		return nil, fmt.Errorf("unknown source type %q (available: %v)", typ, names)
	}
	return f(ctx, params, logger)
}

// Close closes o if it holds resources (e.g. an SDK client).
func Close(o Opener) error {
	if c, ok := o.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// BoolParam reads a boolean factory parameter. Missing or empty means def.
func BoolParam(params map[string]string, key string, def bool) (bool, error) {
	v, ok := params[key]
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
