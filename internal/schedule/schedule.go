// Package schedule follows the GFS cycle: on a cron schedule it works out
// the newest model run that should be complete and indexes it.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gribidx/internal/indexer"
	"gribidx/internal/logging"
	"gribidx/internal/runkey"

	"github.com/go-co-op/gocron/v2"
)

const jobName = "follow-cycle"

var ErrNoHours = errors.New("schedule: no forecast hours")

// RunIndexer indexes the forecast hours of one model run.
type RunIndexer interface {
	IndexRun(ctx context.Context, run time.Time, hours []int) ([]indexer.Result, error)
}

// Config configures a Follower.
type Config struct {
	Indexer RunIndexer
	Cron    string
	Hours   []int
	Delay   time.Duration
	Logger  *slog.Logger

	// OnRun is called after a run has been indexed. Optional.
	OnRun func(run time.Time, results []indexer.Result)

	// Now defaults to time.Now.
	Now func() time.Time
}

// Follower indexes each new model run once.
type Follower struct {
	indexer RunIndexer
	cron    string
	hours   []int
	delay   time.Duration
	logger  *slog.Logger
	onRun   func(time.Time, []indexer.Result)
	now     func() time.Time

	scheduler gocron.Scheduler
	job       gocron.Job

	mu   sync.Mutex
	last time.Time // newest run indexed successfully
}

// New creates a Follower. The cron job is registered but not started.
func New(cfg Config) (*Follower, error) {
	if len(cfg.Hours) == 0 {
		return nil, ErrNoHours
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.OnRun == nil {
		cfg.OnRun = func(time.Time, []indexer.Result) {}
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create cron scheduler: %w", err)
	}
	f := &Follower{
		indexer:   cfg.Indexer,
		cron:      cfg.Cron,
		hours:     cfg.Hours,
		delay:     cfg.Delay,
		logger:    logging.Default(cfg.Logger).With("component", "schedule"),
		onRun:     cfg.OnRun,
		now:       cfg.Now,
		scheduler: s,
	}
	return f, nil
}

// Start registers the cron job and starts the scheduler. Each tick polls
// with ctx.
func (f *Follower) Start(ctx context.Context) error {
	j, err := f.scheduler.NewJob(
		gocron.CronJob(f.cron, true),
		gocron.NewTask(f.tick, ctx),
		gocron.WithName(jobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("create scheduled job %s: %w", jobName, err)
	}
	f.job = j
	f.scheduler.Start()
	f.logger.Info("scheduler started", "cron", f.cron, "hours", len(f.hours), "delay", f.delay)
	return nil
}

// Stop shuts down the scheduler and waits for a running poll to finish.
func (f *Follower) Stop() error {
	return f.scheduler.Shutdown()
}

// NextRun reports when the job fires next. Only valid after Start.
func (f *Follower) NextRun() (time.Time, error) {
	if f.job == nil {
		return time.Time{}, errors.New("scheduler not started")
	}
	return f.job.NextRun()
}

// Last returns the newest run indexed so far, or the zero time.
func (f *Follower) Last() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *Follower) tick(ctx context.Context) {
	if _, err := f.Poll(ctx); err != nil {
		f.logger.Warn("poll failed", "error", err)
	}
}

// Poll indexes the latest complete run unless it was already indexed.
// indexed reports whether work was done. A failed run is retried on the
// next poll.
func (f *Follower) Poll(ctx context.Context) (indexed bool, err error) {
	run := runkey.LatestRun(f.now(), f.delay)

	f.mu.Lock()
	if !run.After(f.last) {
		f.mu.Unlock()
		f.logger.Debug("run already indexed", "run", run.Format(time.RFC3339))
		return false, nil
	}
	f.mu.Unlock()

	f.logger.Info("indexing run", "run", run.Format(time.RFC3339))
	results, err := f.indexer.IndexRun(ctx, run, f.hours)
	if err != nil {
		return false, fmt.Errorf("run %s: %w", run.Format(time.RFC3339), err)
	}

	f.mu.Lock()
	if run.After(f.last) {
		f.last = run
	}
	f.mu.Unlock()

	f.onRun(run, results)
	return true, nil
}
