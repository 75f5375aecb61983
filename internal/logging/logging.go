// Package logging provides utilities for structured logging across gribidx.
//
// Design principles:
//   - Logging is dependency-injected, never global
//   - Each component owns its own scoped logger ("component" attribute)
//   - If no logger is provided, a discard logger is used
//
// Global configuration (output format, level, destination) belongs only in
// main(). Components must never call slog.SetDefault.
//
// Logging is sparse: an index build logs when it starts and when it ends,
// never per idx line.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// discardHandler is a handler that discards all log records.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Discard returns a logger that discards all output.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// Default returns the provided logger if non-nil, otherwise a discard logger:
//
//	func New(cfg Config) *Indexer {
//	    logger := logging.Default(cfg.Logger)
//	    return &Indexer{logger: logger.With("component", "indexer")}
//	}
func Default(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return Discard()
}

// ParseLevel parses "debug", "info", "warn" or "error" (case-insensitive).
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

// ParseLevels parses a level flag of the form "info" or
// "warn,indexer=debug,source=error": an optional default level followed by
// per-component overrides. The default is info when omitted.
func ParseLevels(s string) (slog.Level, map[string]slog.Level, error) {
	def := slog.LevelInfo
	overrides := make(map[string]slog.Level)
	for item := range strings.SplitSeq(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		component, levelText, ok := strings.Cut(item, "=")
		if !ok {
			l, err := ParseLevel(item)
			if err != nil {
				return 0, nil, err
			}
			def = l
			continue
		}
		component = strings.TrimSpace(component)
		if component == "" {
			return 0, nil, fmt.Errorf("missing component in log level %q", item)
		}
		l, err := ParseLevel(levelText)
		if err != nil {
			return 0, nil, err
		}
		overrides[component] = l
	}
	return def, overrides, nil
}

// NewHandler builds the base handler for main: "text" or "json" output to w.
// The handler admits every level; filtering is left to a
// ComponentFilterHandler wrapped around it.
func NewHandler(w io.Writer, format string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	switch format {
	case "", "text":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", format)
	}
}
