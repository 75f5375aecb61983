// Package cache keeps built indexes on disk so that an idx file is fetched
// and parsed once per object key.
//
// Each entry is one file named after the xxhash of its object key:
//
//	<dir>/<16 hex digits>.gidx
//
// holding a format.Header (type 'x') followed by a msgpack body. The body
// repeats the object key so that a hash collision reads as a miss. GFS
// objects are immutable once published, so entries never expire; Clear
// removes them all.
package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gribidx/internal/format"
	"gribidx/internal/idx"
	"gribidx/internal/logging"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	fileVersion = 1
	fileSuffix  = ".gidx"
)

var errKeyMismatch = errors.New("cache entry belongs to another key")

type cachedIndex struct {
	Key     string        `msgpack:"key"`
	RefTime time.Time     `msgpack:"ref"`
	Entries []cachedEntry `msgpack:"entries"`
}

type cachedEntry struct {
	Variable string `msgpack:"v"`
	Level    string `msgpack:"l"`
	Start    uint64 `msgpack:"s"`
	End      uint64 `msgpack:"e,omitempty"`
	Open     bool   `msgpack:"o,omitempty"`
}

// Cache is a directory of cached indexes. Safe for concurrent use: writes
// go through a temp file and a rename.
type Cache struct {
	dir    string
	logger *slog.Logger
}

// New returns a cache rooted at dir. The directory is created on first Put.
func New(dir string, logger *slog.Logger) *Cache {
	return &Cache{
		dir:    dir,
		logger: logging.Default(logger).With("component", "cache"),
	}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Path returns the file that holds the entry for key.
func (c *Cache) Path(key string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%016x%s", xxhash.Sum64String(key), fileSuffix))
}

// Get returns the cached index for key. A missing entry is (nil, false,
// nil). An unreadable or stale entry is removed and reported as a miss.
func (c *Cache) Get(key string) (*idx.GribIndex, bool, error) {
	path := c.Path(key)
	data, err := os.ReadFile(path) //nolint:gosec // G304: path derived from cache dir + hash
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}

	g, err := decode(key, data)
	if err != nil {
		c.logger.Warn("discarding cache entry", "key", key, "path", path, "error", err)
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			return nil, false, fmt.Errorf("remove bad cache entry: %w", rmErr)
		}
		return nil, false, nil
	}
	return g, true, nil
}

// Put stores g under key, replacing any existing entry.
func (c *Cache) Put(key string, g *idx.GribIndex) error {
	data, err := encode(key, g)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := os.MkdirAll(c.dir, 0o750); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, "*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close cache entry: %w", err)
	}
	if err := os.Rename(tmpPath, c.Path(key)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename cache entry: %w", err)
	}
	return nil
}

// Clear removes every cache entry and returns how many were removed.
func (c *Cache) Clear() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("list cache directory: %w", err)
	}
	n := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, fileSuffix) || strings.HasSuffix(name, ".tmp")) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return n, fmt.Errorf("remove %s: %w", name, err)
		}
		n++
	}
	return n, nil
}

func encode(key string, g *idx.GribIndex) ([]byte, error) {
	entries := g.Entries()
	body := cachedIndex{
		Key:     key,
		RefTime: g.RefTime(),
		Entries: make([]cachedEntry, len(entries)),
	}
	for i, e := range entries {
		body.Entries[i] = cachedEntry{
			Variable: e.Variable,
			Level:    e.Level,
			Start:    e.Range.Start,
			End:      e.Range.End,
			Open:     e.Range.Open,
		}
	}

	var flags byte
	if len(entries) == 0 {
		flags |= format.FlagEmpty
	}
	hdr := format.Header{Type: format.TypeIndexCache, Version: fileVersion, Flags: flags}.Encode()

	var buf bytes.Buffer
	buf.Write(hdr[:])
	if err := msgpack.NewEncoder(&buf).Encode(&body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(key string, data []byte) (*idx.GribIndex, error) {
	hdr, err := format.DecodeAndValidate(data, format.TypeIndexCache, fileVersion)
	if err != nil {
		return nil, err
	}

	var body cachedIndex
	if err := msgpack.Unmarshal(data[format.HeaderSize:], &body); err != nil {
		return nil, err
	}
	if body.Key != key {
		return nil, errKeyMismatch
	}
	if (hdr.Flags&format.FlagEmpty != 0) != (len(body.Entries) == 0) {
		return nil, errors.New("entry count does not match header flags")
	}

	entries := make([]idx.Entry, len(body.Entries))
	for i, e := range body.Entries {
		entries[i] = idx.Entry{
			Variable: e.Variable,
			Level:    e.Level,
			Range:    idx.Range{Start: e.Start, End: e.End, Open: e.Open},
		}
	}
	return idx.NewGribIndex(body.RefTime.UTC(), entries), nil
}
