// Package memory provides an in-memory Opener for tests. It is not
// registered as a CLI source type.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"gribidx/internal/source"
)

// Source serves objects from a map. Safe for concurrent use.
type Source struct {
	mu      sync.RWMutex
	objects map[string][]byte
	opens   map[string]int
}

// New returns an empty Source.
func New() *Source {
	return &Source{
		objects: make(map[string][]byte),
		opens:   make(map[string]int),
	}
}

// Put stores data under key, replacing any previous object.
func (s *Source) Put(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = bytes.Clone(data)
}

// Opens reports how many times key has been opened successfully.
func (s *Source) Opens(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opens[key]
}

func (s *Source) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", source.ErrNotFound, key)
	}
	s.opens[key]++
	return io.NopCloser(bytes.NewReader(data)), nil
}
