package idx

import (
	"errors"
	"testing"
)

func recordsAt(starts ...uint64) []IndexRecord {
	out := make([]IndexRecord, len(starts))
	for i, s := range starts {
		out[i] = IndexRecord{Seq: uint64(i + 1), Start: s, Variable: "TMP", Level: "surface"}
	}
	return out
}

func TestResolve(t *testing.T) {
	recs := recordsAt(0, 100, 100, 250, 900)
	if err := Resolve(recs); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for i := 0; i < len(recs)-1; i++ {
		end, ok := recs[i].End.Offset()
		if !ok {
			t.Fatalf("record %d: end not closed", i)
		}
		if end != recs[i+1].Start {
			t.Errorf("record %d: end = %d, want %d", i, end, recs[i+1].Start)
		}
		if end < recs[i].Start {
			t.Errorf("record %d: negative width", i)
		}
	}
	if !recs[len(recs)-1].End.IsOpen() {
		t.Error("last record should be open")
	}
}

func TestResolveSingle(t *testing.T) {
	recs := recordsAt(42)
	if err := Resolve(recs); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !recs[0].End.IsOpen() {
		t.Error("single record should be open")
	}
}

func TestResolveEmpty(t *testing.T) {
	if err := Resolve(nil); err != nil {
		t.Fatalf("Resolve(nil): %v", err)
	}
	if err := Resolve([]IndexRecord{}); err != nil {
		t.Fatalf("Resolve(empty): %v", err)
	}
}

func TestResolveDecreasingOffset(t *testing.T) {
	recs := recordsAt(0, 300, 250)
	err := Resolve(recs)
	if !errors.Is(err, ErrCorruptIndex) {
		t.Fatalf("error = %v, want ErrCorruptIndex", err)
	}
	var ce *CorruptIndexError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CorruptIndexError, got %T", err)
	}
	if ce.Seq != 2 || ce.Start != 300 || ce.NextSeq != 3 || ce.NextStart != 250 {
		t.Errorf("got %+v", ce)
	}
}
