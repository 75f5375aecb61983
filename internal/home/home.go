// Package home manages the gribidx home directory layout.
//
// Layout:
//
//	<root>/
//	  config.json                      (optional, see internal/config)
//	  cache/
//	    <xxhash of object key>.gidx    (cached built indexes)
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir represents a gribidx home directory.
type Dir struct {
	root string
}

// New creates a Dir with an explicit root path.
func New(root string) Dir {
	return Dir{root: root}
}

// Default returns a Dir using the platform-appropriate default location:
//   - Linux:   ~/.config/gribidx
//   - macOS:   ~/Library/Application Support/gribidx
//   - Windows: %APPDATA%/gribidx
func Default() (Dir, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return Dir{}, fmt.Errorf("determine config directory: %w", err)
	}
	return Dir{root: filepath.Join(base, "gribidx")}, nil
}

// Root returns the home directory path.
func (d Dir) Root() string {
	return d.root
}

// ConfigPath returns the path to the JSON config file.
func (d Dir) ConfigPath() string {
	return filepath.Join(d.root, "config.json")
}

// CacheDir returns the directory holding cached indexes.
func (d Dir) CacheDir() string {
	return filepath.Join(d.root, "cache")
}

// EnsureExists creates the home directory (and parents) if it doesn't exist.
func (d Dir) EnsureExists() error {
	if err := os.MkdirAll(d.root, 0o750); err != nil {
		return fmt.Errorf("create home directory %s: %w", d.root, err)
	}
	return nil
}
