package idx

import (
	"errors"
	"testing"
	"time"
)

func TestDecode(t *testing.T) {
	rec, err := Decode("1:0:d=2022120918:UGRD:10 m above ground:anl")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if rec.Seq != 1 {
		t.Errorf("Seq = %d, want 1", rec.Seq)
	}
	if rec.Start != 0 {
		t.Errorf("Start = %d, want 0", rec.Start)
	}
	want := time.Date(2022, 12, 9, 18, 0, 0, 0, time.UTC)
	if !rec.RefTime.Equal(want) {
		t.Errorf("RefTime = %v, want %v", rec.RefTime, want)
	}
	if rec.Variable != "UGRD" || rec.Level != "10 m above ground" || rec.Forecast != "anl" {
		t.Errorf("got %q/%q/%q", rec.Variable, rec.Level, rec.Forecast)
	}
	if rec.End.IsSet() {
		t.Error("End should be unset after Decode")
	}
}

func TestDecodeTrailingFields(t *testing.T) {
	tests := []string{
		"636:418155963:d=2022121518:TMP:2 m above ground:1 hour fcst:",
		"636:418155963:d=2022121518:TMP:2 m above ground:1 hour fcst:extra:more",
		"636:418155963:d=2022121518:TMP:2 m above ground:1 hour fcst\r",
	}
	for _, line := range tests {
		t.Run(line, func(t *testing.T) {
			rec, err := Decode(line)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if rec.Start != 418155963 {
				t.Errorf("Start = %d", rec.Start)
			}
			if rec.Forecast != "1 hour fcst" {
				t.Errorf("Forecast = %q", rec.Forecast)
			}
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"missing field", "1:0:d=2022120918:UGRD:10 m above ground"},
		{"non-digit seq", "1a:0:d=2022120918:UGRD:10 m above ground:anl"},
		{"sub-message seq", "1.2:0:d=2022120918:UGRD:10 m above ground:anl"},
		{"negative start", "1:-5:d=2022120918:UGRD:10 m above ground:anl"},
		{"signed start", "1:+5:d=2022120918:UGRD:10 m above ground:anl"},
		{"empty start", "1::d=2022120918:UGRD:10 m above ground:anl"},
		{"spaced start", "1: 5:d=2022120918:UGRD:10 m above ground:anl"},
		{"overflow", "1:99999999999999999999:d=2022120918:UGRD:10 m above ground:anl"},
		{"missing d= marker", "1:0:2022120918:UGRD:10 m above ground:anl"},
		{"wrong marker", "1:0:t=2022120918:UGRD:10 m above ground:anl"},
		{"bad timestamp", "1:0:d=20221209:UGRD:10 m above ground:anl"},
		{"bad hour", "1:0:d=2022120925:UGRD:10 m above ground:anl"},
		{"short timestamp", "1:0:d=202212091:UGRD:10 m above ground:anl"},
		{"long timestamp", "1:0:d=20221209180:UGRD:10 m above ground:anl"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.line)
			if !errors.Is(err, ErrMalformedLine) {
				t.Fatalf("Decode(%q) error = %v, want ErrMalformedLine", tc.line, err)
			}
			var le *LineError
			if !errors.As(err, &le) {
				t.Fatalf("expected *LineError, got %T", err)
			}
			if le.Line != 0 {
				t.Errorf("Line = %d, want 0 outside a stream", le.Line)
			}
		})
	}
}

func TestEndOffset(t *testing.T) {
	var unset EndOffset
	if unset.IsSet() || unset.IsOpen() {
		t.Error("zero EndOffset should be unset")
	}
	if _, ok := unset.Offset(); ok {
		t.Error("unset Offset should not be ok")
	}

	open := OpenEnd()
	if !open.IsSet() || !open.IsOpen() {
		t.Error("OpenEnd should be set and open")
	}
	if _, ok := open.Offset(); ok {
		t.Error("open Offset should not be ok")
	}

	closed := ClosedEnd(42)
	if !closed.IsSet() || closed.IsOpen() {
		t.Error("ClosedEnd should be set and closed")
	}
	if off, ok := closed.Offset(); !ok || off != 42 {
		t.Errorf("Offset = %d, %v; want 42, true", off, ok)
	}
}
