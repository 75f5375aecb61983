package idx

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func TestBuildLastOccurrenceWins(t *testing.T) {
	recs := []IndexRecord{
		{Seq: 1, Start: 0, End: ClosedEnd(10), Variable: "TMP", Level: "surface"},
		{Seq: 2, Start: 10, End: ClosedEnd(50), Variable: "RH", Level: "surface"},
		{Seq: 3, Start: 50, End: ClosedEnd(60), Variable: "TMP", Level: "surface"},
	}
	g, err := Build(recs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	r, ok := g.Lookup("TMP", "surface")
	if !ok {
		t.Fatal("TMP/surface missing")
	}
	if r != (Range{Start: 50, End: 60}) {
		t.Errorf("TMP/surface = %v, want [50, 60)", r)
	}
	if g.Len() != 2 {
		t.Errorf("Len = %d, want 2", g.Len())
	}
}

func TestBuildUnresolved(t *testing.T) {
	recs := []IndexRecord{{Seq: 7, Start: 0, Variable: "TMP", Level: "surface"}}
	_, err := Build(recs)
	if !errors.Is(err, ErrCorruptIndex) {
		t.Fatalf("error = %v, want ErrCorruptIndex", err)
	}
}

func TestBuildEmpty(t *testing.T) {
	g, err := Build(nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if g.Len() != 0 {
		t.Errorf("Len = %d, want 0", g.Len())
	}
	if len(g.Variables()) != 0 || len(g.Entries()) != 0 {
		t.Error("empty index should have no variables or entries")
	}
	if !g.RefTime().IsZero() {
		t.Error("empty index should have zero RefTime")
	}
}

func TestIndexQueries(t *testing.T) {
	ref := time.Date(2022, 12, 15, 18, 0, 0, 0, time.UTC)
	recs := []IndexRecord{
		{Seq: 1, Start: 0, End: ClosedEnd(5), RefTime: ref, Variable: "UGRD", Level: "850 mb"},
		{Seq: 2, Start: 5, End: ClosedEnd(9), RefTime: ref, Variable: "UGRD", Level: "10 m above ground"},
		{Seq: 3, Start: 9, End: OpenEnd(), RefTime: ref, Variable: "HGT", Level: "500 mb"},
	}
	g, err := Build(recs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !g.RefTime().Equal(ref) {
		t.Errorf("RefTime = %v", g.RefTime())
	}
	if got := g.Variables(); !slices.Equal(got, []string{"HGT", "UGRD"}) {
		t.Errorf("Variables = %v", got)
	}
	if got := g.Levels("UGRD"); !slices.Equal(got, []string{"10 m above ground", "850 mb"}) {
		t.Errorf("Levels = %v", got)
	}
	if got := g.Levels("nope"); len(got) != 0 {
		t.Errorf("Levels(nope) = %v", got)
	}
	if _, ok := g.Lookup("UGRD", "surface"); ok {
		t.Error("unexpected UGRD/surface")
	}
	if _, ok := g.Lookup("nope", "surface"); ok {
		t.Error("unexpected nope/surface")
	}

	entries := g.Entries()
	if len(entries) != 3 {
		t.Fatalf("Entries len = %d", len(entries))
	}
	for i, want := range []uint64{0, 5, 9} {
		if entries[i].Range.Start != want {
			t.Errorf("entries[%d].Start = %d, want %d", i, entries[i].Range.Start, want)
		}
	}
	if !entries[2].Range.Open {
		t.Error("last entry should be open")
	}
}

func TestNewGribIndex(t *testing.T) {
	ref := time.Date(2022, 12, 15, 18, 0, 0, 0, time.UTC)
	src, err := Build([]IndexRecord{
		{Seq: 1, Start: 0, End: ClosedEnd(5), RefTime: ref, Variable: "UGRD", Level: "850 mb"},
		{Seq: 2, Start: 5, End: OpenEnd(), RefTime: ref, Variable: "VGRD", Level: "850 mb"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	g := NewGribIndex(src.RefTime(), src.Entries())
	if !slices.Equal(g.Entries(), src.Entries()) {
		t.Errorf("entries differ: %v vs %v", g.Entries(), src.Entries())
	}
	if !g.RefTime().Equal(ref) {
		t.Errorf("RefTime = %v", g.RefTime())
	}
}

func TestRange(t *testing.T) {
	tests := []struct {
		name   string
		r      Range
		header string
		length uint64
		closed bool
		str    string
	}{
		{"closed", Range{Start: 0, End: 100}, "bytes=0-99", 100, true, "[0, 100)"},
		{"open", Range{Start: 250, Open: true}, "bytes=250-", 0, false, "[250, EOF)"},
		{"empty", Range{Start: 7, End: 7}, "", 0, true, "[7, 7)"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.r.Header(); got != tc.header {
				t.Errorf("Header = %q, want %q", got, tc.header)
			}
			n, ok := tc.r.Len()
			if n != tc.length || ok != tc.closed {
				t.Errorf("Len = %d, %v; want %d, %v", n, ok, tc.length, tc.closed)
			}
			if got := tc.r.String(); got != tc.str {
				t.Errorf("String = %q, want %q", got, tc.str)
			}
		})
	}
}
