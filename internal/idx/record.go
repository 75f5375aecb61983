// Package idx parses GRIB2 sidecar index files and resolves the byte range
// of every record inside the binary object they describe.
//
// An idx file has one line per GRIB message:
//
//	<seq>:<start>:d=<YYYYMMDDHH>:<variable>:<level>:<forecast>
//
// The format only states where each message starts. The end of a message is
// the start of the next one, and the last message runs to the end of the
// object, whose length the idx file does not record.
//
// Parsing runs in four stages, each a plain function over the output of the
// previous one: Decode (one line), Assemble (a stream of lines), Resolve
// (end offsets) and Build (the variable/level lookup). Parse chains them.
package idx

import (
	"strconv"
	"strings"
	"time"
)

const (
	// minFields is the number of colon-separated fields a line must carry.
	// Anything after the sixth field is ignored so that newer producers can
	// append columns; GFS idx lines already end with a trailing colon.
	minFields = 6

	refTimePrefix = "d="
	refTimeLayout = "2006010215"
)

type endState uint8

const (
	endUnset endState = iota
	endOpen
	endClosed
)

// EndOffset is the exclusive upper bound of a record. It starts unset and is
// filled in once by Resolve, either with a concrete offset or as open (the
// record runs to the end of the object).
type EndOffset struct {
	state  endState
	offset uint64
}

// ClosedEnd returns an end bound at the given exclusive offset.
func ClosedEnd(offset uint64) EndOffset {
	return EndOffset{state: endClosed, offset: offset}
}

// OpenEnd returns the end bound of a record that runs to the end of the object.
func OpenEnd() EndOffset {
	return EndOffset{state: endOpen}
}

func (e EndOffset) IsSet() bool  { return e.state != endUnset }
func (e EndOffset) IsOpen() bool { return e.state == endOpen }

// Offset returns the exclusive end offset. ok is false for open or unset bounds.
func (e EndOffset) Offset() (offset uint64, ok bool) {
	return e.offset, e.state == endClosed
}

// IndexRecord is one line of an idx file.
type IndexRecord struct {
	Seq      uint64
	Start    uint64
	End      EndOffset
	RefTime  time.Time
	Variable string
	Level    string
	Forecast string
}

// Decode parses a single idx line. The returned record has an unset End.
func Decode(line string) (IndexRecord, error) {
	line = strings.TrimSuffix(line, "\r")

	fields := strings.Split(line, ":")
	if len(fields) < minFields {
		return IndexRecord{}, newLineError(line, "want at least %d fields, got %d", minFields, len(fields))
	}

	seq, err := parseOffset(fields[0])
	if err != nil {
		return IndexRecord{}, newLineError(line, "sequence number %q: %v", fields[0], err)
	}
	start, err := parseOffset(fields[1])
	if err != nil {
		return IndexRecord{}, newLineError(line, "start offset %q: %v", fields[1], err)
	}

	ts, ok := strings.CutPrefix(fields[2], refTimePrefix)
	if !ok {
		return IndexRecord{}, newLineError(line, "reference time %q lacks %q prefix", fields[2], refTimePrefix)
	}
	// The layout parser accepts a one-digit hour, so pin the width first.
	if len(ts) != len(refTimeLayout) {
		return IndexRecord{}, newLineError(line, "reference time %q: want YYYYMMDDHH", ts)
	}
	refTime, err := time.ParseInLocation(refTimeLayout, ts, time.UTC)
	if err != nil {
		return IndexRecord{}, newLineError(line, "reference time %q: want YYYYMMDDHH", ts)
	}

	return IndexRecord{
		Seq:      seq,
		Start:    start,
		RefTime:  refTime,
		Variable: fields[3],
		Level:    fields[4],
		Forecast: fields[5],
	}, nil
}

// parseOffset accepts ASCII digits only: no sign, no spaces.
func parseOffset(s string) (uint64, error) {
	if s == "" {
		return 0, strconv.ErrSyntax
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.ParseUint(s, 10, 64)
}
