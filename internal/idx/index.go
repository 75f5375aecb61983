package idx

import (
	"cmp"
	"slices"
	"time"
)

// GribIndex maps variable -> level -> byte range. It is built once per idx
// file and never modified afterwards, so it is safe for concurrent readers.
type GribIndex struct {
	refTime time.Time
	vars    map[string]map[string]Range
}

// Entry is one (variable, level) pair and its range.
type Entry struct {
	Variable string
	Level    string
	Range    Range
}

// Build folds resolved records into a GribIndex.
//
// When a (variable, level) pair occurs more than once, the record that
// appears last in file order wins. Records are walked forwards and every
// occurrence overwrites the previous one, so the ordering of records is
// the only input to the decision.
//
// Every record must have been through Resolve; an unresolved record is
// reported as a *CorruptIndexError.
func Build(records []IndexRecord) (*GribIndex, error) {
	g := &GribIndex{vars: make(map[string]map[string]Range)}
	for _, rec := range records {
		if !rec.End.IsSet() {
			return nil, &CorruptIndexError{Seq: rec.Seq, Start: rec.Start, Message: "end offset not resolved"}
		}
		if g.refTime.IsZero() {
			g.refTime = rec.RefTime
		}
		levels, ok := g.vars[rec.Variable]
		if !ok {
			levels = make(map[string]Range)
			g.vars[rec.Variable] = levels
		}
		levels[rec.Level] = rangeOf(rec)
	}
	return g, nil
}

// NewGribIndex assembles an index from entries that were produced by an
// earlier Build, e.g. after a round trip through a cache. Later entries
// replace earlier ones with the same key.
func NewGribIndex(refTime time.Time, entries []Entry) *GribIndex {
	g := &GribIndex{refTime: refTime, vars: make(map[string]map[string]Range)}
	for _, e := range entries {
		levels, ok := g.vars[e.Variable]
		if !ok {
			levels = make(map[string]Range)
			g.vars[e.Variable] = levels
		}
		levels[e.Level] = e.Range
	}
	return g
}

// RefTime returns the model run time of the first record, or the zero time
// for an empty index.
func (g *GribIndex) RefTime() time.Time {
	return g.refTime
}

// Lookup returns the byte range of variable at level.
func (g *GribIndex) Lookup(variable, level string) (Range, bool) {
	r, ok := g.vars[variable][level]
	return r, ok
}

// Len returns the number of (variable, level) pairs.
func (g *GribIndex) Len() int {
	n := 0
	for _, levels := range g.vars {
		n += len(levels)
	}
	return n
}

// Variables returns the variable codes in lexical order.
func (g *GribIndex) Variables() []string {
	out := make([]string, 0, len(g.vars))
	for v := range g.vars {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// Levels returns the levels recorded for variable in lexical order.
func (g *GribIndex) Levels(variable string) []string {
	levels := g.vars[variable]
	out := make([]string, 0, len(levels))
	for l := range levels {
		out = append(out, l)
	}
	slices.Sort(out)
	return out
}

// Entries returns every pair ordered by start offset, which is the order of
// the messages inside the GRIB2 object.
func (g *GribIndex) Entries() []Entry {
	out := make([]Entry, 0, g.Len())
	for v, levels := range g.vars {
		for l, r := range levels {
			out = append(out, Entry{Variable: v, Level: l, Range: r})
		}
	}
	slices.SortFunc(out, func(a, b Entry) int {
		return cmp.Or(
			cmp.Compare(a.Range.Start, b.Range.Start),
			cmp.Compare(a.Variable, b.Variable),
			cmp.Compare(a.Level, b.Level),
		)
	})
	return out
}
