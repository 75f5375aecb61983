// Package indexer fetches idx files through a source.Opener and turns them
// into idx.GribIndex values, with optional on-disk caching.
//
// Concurrent requests for the same object key share one fetch. A whole
// model run is indexed by fanning out over its forecast hours.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gribidx/internal/cache"
	"gribidx/internal/callgroup"
	"gribidx/internal/idx"
	"gribidx/internal/logging"
	"gribidx/internal/runkey"
	"gribidx/internal/source"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Defaults for Config fields left at zero.
const (
	DefaultConcurrency  = 4
	DefaultBuildTimeout = 2 * time.Minute
)

// Config configures an Indexer.
type Config struct {
	Opener source.Opener
	Cache  *cache.Cache // nil disables caching
	Logger *slog.Logger

	// Concurrency bounds parallel builds within one IndexRun.
	Concurrency int

	// BuildTimeout bounds a single fetch+parse. A build is shared by every
	// caller waiting on the same key, so it does not inherit any one
	// caller's cancellation.
	BuildTimeout time.Duration
}

// Indexer builds indexes. Safe for concurrent use.
type Indexer struct {
	opener       source.Opener
	cache        *cache.Cache
	logger       *slog.Logger
	concurrency  int
	buildTimeout time.Duration

	group callgroup.Group[string, *idx.GribIndex]
}

// New creates an Indexer. cfg.Opener is required.
func New(cfg Config) *Indexer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.BuildTimeout <= 0 {
		cfg.BuildTimeout = DefaultBuildTimeout
	}
	return &Indexer{
		opener:       cfg.Opener,
		cache:        cfg.Cache,
		logger:       logging.Default(cfg.Logger).With("component", "indexer"),
		concurrency:  cfg.Concurrency,
		buildTimeout: cfg.BuildTimeout,
	}
}

// Index returns the index of the idx object at key. Errors match
// idx.ErrIO, idx.ErrMalformedLine or idx.ErrCorruptIndex; a missing object
// additionally matches source.ErrNotFound. If ctx ends while waiting,
// Index returns ctx.Err() and the build continues for other callers.
func (ix *Indexer) Index(ctx context.Context, key string) (*idx.GribIndex, error) {
	if ix.cache != nil {
		g, ok, err := ix.cache.Get(key)
		if err != nil {
			ix.logger.Warn("cache lookup failed", "key", key, "error", err)
		} else if ok {
			ix.logger.Debug("cache hit", "key", key, "entries", g.Len())
			return g, nil
		}
	}

	g, shared, err := ix.group.Do(ctx, key, func() (*idx.GribIndex, error) {
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ix.buildTimeout)
		defer cancel()
		return ix.build(bctx, key)
	})
	if shared && err == nil {
		ix.logger.Debug("joined in-flight build", "key", key)
	}
	return g, err
}

func (ix *Indexer) build(ctx context.Context, key string) (*idx.GribIndex, error) {
	logger := ix.logger.With("build", uuid.Must(uuid.NewV7()).String(), "key", key)
	start := time.Now()
	logger.Debug("index build started")

	rc, err := ix.opener.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", idx.ErrIO, key, err)
	}
	defer func() { _ = rc.Close() }()

	g, err := idx.Parse(ctx, rc)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", key, err)
	}
	logger.Info("index built", "entries", g.Len(), "duration", time.Since(start))

	if ix.cache != nil {
		if err := ix.cache.Put(key, g); err != nil {
			logger.Warn("cache store failed", "error", err)
		}
	}
	return g, nil
}

// Result is the index of one forecast hour.
type Result struct {
	Key   runkey.Key
	Index *idx.GribIndex
}

// IndexRun indexes the given forecast hours of one model run in parallel.
// Results are in the order of hours. The first failure cancels the
// remaining work and is returned alone; there are no partial results.
func (ix *Indexer) IndexRun(ctx context.Context, run time.Time, hours []int) ([]Result, error) {
	keys := make([]runkey.Key, len(hours))
	for i, h := range hours {
		k, err := runkey.New(run, h)
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}

	start := time.Now()
	results := make([]Result, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)
	for i, k := range keys {
		g.Go(func() error {
			gi, err := ix.Index(gctx, k.IndexKey())
			if err != nil {
				return fmt.Errorf("forecast hour %d: %w", k.Hour, err)
			}
			results[i] = Result{Key: k, Index: gi}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ix.logger.Info("run indexed",
		"run", run.UTC().Format(time.RFC3339),
		"hours", len(keys),
		"duration", time.Since(start))
	return results, nil
}
