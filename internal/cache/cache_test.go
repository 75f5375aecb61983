package cache

import (
	"context"
	"os"
	"slices"
	"strings"
	"testing"
	"time"

	"gribidx/internal/idx"
)

const key = "gfs.20221215/18/atmos/gfs.t18z.pgrb2.0p25.f001.idx"

func buildIndex(t *testing.T, input string) *idx.GribIndex {
	t.Helper()
	g, err := idx.Parse(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return g
}

func TestPutGet(t *testing.T) {
	c := New(t.TempDir(), nil)
	g := buildIndex(t, ""+
		"1:0:d=2022121518:UGRD:10 m above ground:1 hour fcst:\n"+
		"2:100:d=2022121518:VGRD:10 m above ground:1 hour fcst:\n"+
		"3:250:d=2022121518:TMP:2 m above ground:1 hour fcst:\n")

	if err := c.Put(key, g); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := c.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit")
	}
	if !slices.Equal(got.Entries(), g.Entries()) {
		t.Errorf("entries = %v, want %v", got.Entries(), g.Entries())
	}
	want := time.Date(2022, 12, 15, 18, 0, 0, 0, time.UTC)
	if !got.RefTime().Equal(want) {
		t.Errorf("RefTime = %v, want %v", got.RefTime(), want)
	}
	r, _ := got.Lookup("TMP", "2 m above ground")
	if !r.Open || r.Start != 250 {
		t.Errorf("TMP range = %v", r)
	}
}

func TestGetMiss(t *testing.T) {
	c := New(t.TempDir(), nil)
	g, ok, err := c.Get(key)
	if err != nil || ok || g != nil {
		t.Errorf("Get on empty cache = %v, %v, %v", g, ok, err)
	}
}

func TestEmptyIndex(t *testing.T) {
	c := New(t.TempDir(), nil)
	if err := c.Put(key, buildIndex(t, "")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := c.Get(key)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if got.Len() != 0 {
		t.Errorf("Len = %d, want 0", got.Len())
	}
}

func TestCorruptEntryIsRemoved(t *testing.T) {
	c := New(t.TempDir(), nil)
	if err := c.Put(key, buildIndex(t, "1:0:d=2022121518:TMP:surface:anl\n")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := os.WriteFile(c.Path(key), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	g, ok, err := c.Get(key)
	if err != nil || ok || g != nil {
		t.Fatalf("Get on corrupt entry = %v, %v, %v", g, ok, err)
	}
	if _, err := os.Stat(c.Path(key)); !os.IsNotExist(err) {
		t.Errorf("corrupt entry should be removed, stat err = %v", err)
	}
}

func TestKeyMismatchIsMiss(t *testing.T) {
	c := New(t.TempDir(), nil)
	other := strings.Replace(key, "f001", "f002", 1)
	if err := c.Put(other, buildIndex(t, "1:0:d=2022121518:TMP:surface:anl\n")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// Simulate a hash collision by moving the entry under key's name.
	if err := os.Rename(c.Path(other), c.Path(key)); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.Get(key); ok || err != nil {
		t.Errorf("Get = %v, %v; want miss", ok, err)
	}
}

func TestClear(t *testing.T) {
	c := New(t.TempDir(), nil)
	for _, k := range []string{"a", "b", "c"} {
		if err := c.Put(k, buildIndex(t, "1:0:d=2022121518:TMP:surface:anl\n")); err != nil {
			t.Fatalf("Put(%s): %v", k, err)
		}
	}
	// Unrelated files are left alone.
	if err := os.WriteFile(c.Dir()+"/README", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := c.Clear()
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 3 {
		t.Errorf("Clear removed %d, want 3", n)
	}
	if _, ok, _ := c.Get("a"); ok {
		t.Error("entry survived Clear")
	}
	if _, err := os.Stat(c.Dir() + "/README"); err != nil {
		t.Errorf("unrelated file removed: %v", err)
	}
}

func TestClearMissingDir(t *testing.T) {
	c := New(t.TempDir()+"/nope", nil)
	if n, err := c.Clear(); n != 0 || err != nil {
		t.Errorf("Clear = %d, %v", n, err)
	}
}
