// Package file serves idx files from a local directory.
//
// Keys are slash-separated paths relative to the directory, matching the
// object keys used by the cloud providers, so a mirrored bucket can be read
// offline. When the plain file is missing, compressed siblings are tried in
// order: <key>.zst, <key>.gz, <key>.br.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gribidx/internal/logging"
	"gribidx/internal/source"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Factory parameter keys.
const (
	ParamDir = "dir"
)

var ErrMissingDirParam = errors.New("missing required parameter: dir")

// decoders maps a file suffix to a constructor for its decompressing reader.
var decoders = []struct {
	suffix string
	open   func(io.Reader) (io.ReadCloser, error)
}{
	{".zst", func(r io.Reader) (io.ReadCloser, error) {
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	}},
	{".gz", func(r io.Reader) (io.ReadCloser, error) {
		return gzip.NewReader(r)
	}},
	{".br", func(r io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(brotli.NewReader(r)), nil
	}},
}

// Source opens files below a root directory.
type Source struct {
	root   *os.Root
	dir    string
	logger *slog.Logger
}

// New opens dir for reading. Keys can never resolve outside it.
func New(dir string, logger *slog.Logger) (*Source, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open source directory: %w", err)
	}
	return &Source{
		root:   root,
		dir:    dir,
		logger: logging.Default(logger).With("component", "source", "type", "file", "dir", dir),
	}, nil
}

// NewFactory returns a factory for directory-backed sources.
func NewFactory() source.Factory {
	return func(_ context.Context, params map[string]string, logger *slog.Logger) (source.Opener, error) {
		dir := params[ParamDir]
		if dir == "" {
			return nil, ErrMissingDirParam
		}
		return New(dir, logger)
	}
}

func (s *Source) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := filepath.FromSlash(key)

	f, err := s.root.Open(name)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}

	for _, d := range decoders {
		f, err := s.root.Open(name + d.suffix)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("open %s%s: %w", key, d.suffix, err)
		}
		rc, err := d.open(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("decompress %s%s: %w", key, d.suffix, err)
		}
		s.logger.Debug("reading compressed idx", "key", key, "suffix", d.suffix)
		return &stackedCloser{ReadCloser: rc, file: f}, nil
	}

	return nil, fmt.Errorf("%w: %s in %s", source.ErrNotFound, key, s.dir)
}

// Close releases the directory handle.
func (s *Source) Close() error {
	return s.root.Close()
}

// stackedCloser closes the decompressor and then the underlying file.
type stackedCloser struct {
	io.ReadCloser
	file *os.File
}

func (c *stackedCloser) Close() error {
	return errors.Join(c.ReadCloser.Close(), c.file.Close())
}
