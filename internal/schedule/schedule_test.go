package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gribidx/internal/indexer"
	"gribidx/internal/runkey"
)

type fakeIndexer struct {
	mu    sync.Mutex
	runs  []time.Time
	hours []int
	err   error
}

func (f *fakeIndexer) IndexRun(_ context.Context, run time.Time, hours []int) ([]indexer.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	f.hours = hours
	if f.err != nil {
		return nil, f.err
	}
	out := make([]indexer.Result, len(hours))
	for i, h := range hours {
		out[i] = indexer.Result{Key: runkey.Key{Run: run, Hour: h}}
	}
	return out, nil
}

func (f *fakeIndexer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func TestNewRequiresHours(t *testing.T) {
	if _, err := New(Config{Indexer: &fakeIndexer{}, Cron: "* * * * *"}); !errors.Is(err, ErrNoHours) {
		t.Errorf("err = %v, want ErrNoHours", err)
	}
}

func TestPoll(t *testing.T) {
	idx := &fakeIndexer{}
	clk := &clock{t: time.Date(2022, 12, 15, 22, 0, 0, 0, time.UTC)}
	var got []time.Time
	f, err := New(Config{
		Indexer: idx,
		Cron:    "* * * * *",
		Hours:   []int{0, 1, 2},
		Delay:   3*time.Hour + 30*time.Minute,
		Now:     clk.now,
		OnRun:   func(run time.Time, results []indexer.Result) { got = append(got, run) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// 22:00 minus 3h30m is 18:30: the 18z run is due.
	indexed, err := f.Poll(context.Background())
	if err != nil || !indexed {
		t.Fatalf("Poll = %v, %v; want true, nil", indexed, err)
	}
	want := time.Date(2022, 12, 15, 18, 0, 0, 0, time.UTC)
	if len(got) != 1 || !got[0].Equal(want) {
		t.Fatalf("OnRun runs = %v, want [%v]", got, want)
	}
	if len(idx.hours) != 3 {
		t.Errorf("hours = %v", idx.hours)
	}

	// Same cycle again: skipped.
	clk.set(time.Date(2022, 12, 16, 1, 0, 0, 0, time.UTC))
	indexed, err = f.Poll(context.Background())
	if err != nil || indexed {
		t.Fatalf("Poll = %v, %v; want false, nil", indexed, err)
	}
	if idx.calls() != 1 {
		t.Errorf("calls = %d, want 1", idx.calls())
	}

	// Next cycle.
	clk.set(time.Date(2022, 12, 16, 4, 0, 0, 0, time.UTC))
	indexed, err = f.Poll(context.Background())
	if err != nil || !indexed {
		t.Fatalf("Poll = %v, %v; want true, nil", indexed, err)
	}
	if want := time.Date(2022, 12, 16, 0, 0, 0, 0, time.UTC); !f.Last().Equal(want) {
		t.Errorf("Last = %v, want %v", f.Last(), want)
	}
}

func TestPollRetriesAfterFailure(t *testing.T) {
	boom := errors.New("boom")
	idx := &fakeIndexer{err: boom}
	now := time.Date(2022, 12, 15, 22, 0, 0, 0, time.UTC)
	f, err := New(Config{
		Indexer: idx,
		Cron:    "* * * * *",
		Hours:   []int{0},
		Delay:   time.Hour,
		Now:     func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := f.Poll(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if !f.Last().IsZero() {
		t.Errorf("Last = %v, want zero", f.Last())
	}

	idx.mu.Lock()
	idx.err = nil
	idx.mu.Unlock()
	indexed, err := f.Poll(context.Background())
	if err != nil || !indexed {
		t.Fatalf("Poll = %v, %v; want true, nil", indexed, err)
	}
	if idx.calls() != 2 {
		t.Errorf("calls = %d, want 2", idx.calls())
	}
}

func TestStartInvalidCron(t *testing.T) {
	f, err := New(Config{Indexer: &fakeIndexer{}, Cron: "not a cron", Hours: []int{0}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := f.Start(context.Background()); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestStartRunsJob(t *testing.T) {
	idx := &fakeIndexer{}
	f, err := New(Config{
		Indexer: idx,
		Cron:    "* * * * * *", // every second
		Hours:   []int{0},
		Delay:   time.Hour,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := f.NextRun(); err != nil {
		t.Errorf("NextRun: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for idx.calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if err := f.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	if idx.calls() == 0 {
		t.Fatal("job never ran")
	}
}
