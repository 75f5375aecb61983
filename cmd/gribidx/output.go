package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"gribidx/internal/idx"
	"gribidx/internal/indexer"
	"gribidx/internal/runkey"
	"gribidx/internal/watch"
)

// printer handles table or JSON output.
type printer struct {
	format string
	w      io.Writer
}

func newPrinter(w io.Writer, format string) (*printer, error) {
	switch format {
	case "table", "json":
		return &printer{format: format, w: w}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want table or json)", format)
	}
}

// json marshals v as indented JSON.
func (p *printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table writes rows using tabwriter. header is the first row.
func (p *printer) table(header []string, rows [][]string) {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	for i, h := range header {
		if i > 0 {
			_, _ = fmt.Fprint(tw, "\t")
		}
		_, _ = fmt.Fprint(tw, h)
	}
	_, _ = fmt.Fprintln(tw)
	for _, row := range rows {
		for i, col := range row {
			if i > 0 {
				_, _ = fmt.Fprint(tw, "\t")
			}
			_, _ = fmt.Fprint(tw, col)
		}
		_, _ = fmt.Fprintln(tw)
	}
	_ = tw.Flush()
}

// kv prints a key-value detail view.
func (p *printer) kv(pairs [][2]string) {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	for _, pair := range pairs {
		_, _ = fmt.Fprintf(tw, "%s:\t%s\n", pair[0], pair[1])
	}
	_ = tw.Flush()
}

// rangeJSON is the JSON form of a byte range. End and Length are omitted
// for the open range of the last record.
type rangeJSON struct {
	Start  uint64  `json:"start"`
	End    *uint64 `json:"end,omitempty"`
	Length *uint64 `json:"length,omitempty"`
	Header string  `json:"header"`
}

func toRangeJSON(r idx.Range) rangeJSON {
	out := rangeJSON{Start: r.Start, Header: r.Header()}
	if n, ok := r.Len(); ok {
		end := r.End
		out.End = &end
		out.Length = &n
	}
	return out
}

func endString(r idx.Range) string {
	if r.Open {
		return "EOF"
	}
	return strconv.FormatUint(r.End, 10)
}

func lenString(r idx.Range) string {
	if n, ok := r.Len(); ok {
		return strconv.FormatUint(n, 10)
	}
	return "-"
}

func (p *printer) key(k runkey.Key) error {
	if p.format == "json" {
		return p.json(struct {
			Run      time.Time `json:"run"`
			Hour     int       `json:"hour"`
			DataKey  string    `json:"dataKey"`
			IndexKey string    `json:"indexKey"`
		}{k.Run, k.Hour, k.DataKey(), k.IndexKey()})
	}
	p.kv([][2]string{
		{"Run", k.Run.Format(time.RFC3339)},
		{"Hour", strconv.Itoa(k.Hour)},
		{"Data", k.DataKey()},
		{"Index", k.IndexKey()},
	})
	return nil
}

func (p *printer) rangeOf(dataKey, variable, level string, r idx.Range) error {
	if p.format == "json" {
		return p.json(struct {
			Key      string `json:"key"`
			Variable string `json:"variable"`
			Level    string `json:"level"`
			rangeJSON
		}{dataKey, variable, level, toRangeJSON(r)})
	}
	p.kv([][2]string{
		{"Key", dataKey},
		{"Variable", variable},
		{"Level", level},
		{"Start", strconv.FormatUint(r.Start, 10)},
		{"End", endString(r)},
		{"Length", lenString(r)},
		{"Header", r.Header()},
	})
	return nil
}

type entryJSON struct {
	Variable string `json:"variable"`
	Level    string `json:"level"`
	rangeJSON
}

func (p *printer) entries(g *idx.GribIndex, variable string) error {
	var selected []idx.Entry
	for _, e := range g.Entries() {
		if variable == "" || e.Variable == variable {
			selected = append(selected, e)
		}
	}

	if p.format == "json" {
		out := struct {
			RefTime time.Time   `json:"refTime"`
			Entries []entryJSON `json:"entries"`
		}{RefTime: g.RefTime(), Entries: make([]entryJSON, 0, len(selected))}
		for _, e := range selected {
			out.Entries = append(out.Entries, entryJSON{e.Variable, e.Level, toRangeJSON(e.Range)})
		}
		return p.json(out)
	}

	rows := make([][]string, 0, len(selected))
	for _, e := range selected {
		rows = append(rows, []string{
			e.Variable, e.Level,
			strconv.FormatUint(e.Range.Start, 10), endString(e.Range), lenString(e.Range),
		})
	}
	p.table([]string{"VARIABLE", "LEVEL", "START", "END", "LENGTH"}, rows)
	return nil
}

func (p *printer) results(results []indexer.Result) error {
	if p.format == "json" {
		type resultJSON struct {
			Hour      int       `json:"hour"`
			Key       string    `json:"key"`
			RefTime   time.Time `json:"refTime"`
			Entries   int       `json:"entries"`
			Variables int       `json:"variables"`
		}
		out := make([]resultJSON, 0, len(results))
		for _, r := range results {
			out = append(out, resultJSON{r.Key.Hour, r.Key.IndexKey(), r.Index.RefTime(), r.Index.Len(), len(r.Index.Variables())})
		}
		return p.json(out)
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			strconv.Itoa(r.Key.Hour),
			r.Key.IndexKey(),
			strconv.Itoa(r.Index.Len()),
			strconv.Itoa(len(r.Index.Variables())),
		})
	}
	p.table([]string{"HOUR", "KEY", "ENTRIES", "VARIABLES"}, rows)
	return nil
}

// watchEvent prints one line (or JSON object) per indexed file.
func (p *printer) watchEvent(ev watch.Event) {
	if p.format == "json" {
		out := struct {
			Path    string `json:"path"`
			Entries int    `json:"entries,omitempty"`
			Error   string `json:"error,omitempty"`
		}{Path: ev.Path}
		if ev.Err != nil {
			out.Error = ev.Err.Error()
		} else {
			out.Entries = ev.Index.Len()
		}
		enc := json.NewEncoder(p.w)
		_ = enc.Encode(out)
		return
	}
	if ev.Err != nil {
		_, _ = fmt.Fprintf(p.w, "%s\terror: %v\n", ev.Path, ev.Err)
		return
	}
	_, _ = fmt.Fprintf(p.w, "%s\t%d entries\n", ev.Path, ev.Index.Len())
}

func (p *printer) cleared(dir string, n int) error {
	if p.format == "json" {
		return p.json(struct {
			Dir     string `json:"dir"`
			Removed int    `json:"removed"`
		}{dir, n})
	}
	p.kv([][2]string{{"Dir", dir}, {"Removed", strconv.Itoa(n)}})
	return nil
}
