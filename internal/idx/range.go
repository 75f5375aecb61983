package idx

import (
	"fmt"
	"strconv"
)

// Range is the byte range of one record inside the GRIB2 object. End is
// exclusive and meaningless when Open is set.
type Range struct {
	Start uint64
	End   uint64
	Open  bool
}

// Len returns the number of bytes in the range. ok is false for open ranges.
func (r Range) Len() (n uint64, ok bool) {
	if r.Open {
		return 0, false
	}
	return r.End - r.Start, true
}

// Header formats r as the value of an HTTP Range request header. Closed
// ranges become the inclusive "bytes=start-(end-1)", open ranges the suffix
// form "bytes=start-". A closed empty range has no valid header and yields "".
func (r Range) Header() string {
	if r.Open {
		return "bytes=" + strconv.FormatUint(r.Start, 10) + "-"
	}
	if r.End <= r.Start {
		return ""
	}
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End-1)
}

func (r Range) String() string {
	if r.Open {
		return fmt.Sprintf("[%d, EOF)", r.Start)
	}
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

func rangeOf(rec IndexRecord) Range {
	end, ok := rec.End.Offset()
	return Range{Start: rec.Start, End: end, Open: !ok}
}
