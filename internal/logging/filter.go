package logging

import (
	"context"
	"log/slog"
	"sync"
)

const componentKey = "component"

// filterState is shared by a ComponentFilterHandler and every handler
// derived from it via WithAttrs/WithGroup.
type filterState struct {
	mu           sync.RWMutex
	defaultLevel slog.Level
	levels       map[string]slog.Level
}

func (s *filterState) level(component string) slog.Level {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.levels[component]; ok {
		return l
	}
	return s.defaultLevel
}

func (s *filterState) minLevel() slog.Level {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lowest := s.defaultLevel
	for _, l := range s.levels {
		lowest = min(lowest, l)
	}
	return lowest
}

// ComponentFilterHandler filters records by a per-component minimum level.
// The component is taken from a "component" attribute attached with
// Logger.With, or failing that from the record itself. Components without
// an override use the default level.
type ComponentFilterHandler struct {
	next      slog.Handler
	state     *filterState
	component string
}

// NewComponentFilterHandler wraps next with per-component level filtering.
func NewComponentFilterHandler(next slog.Handler, defaultLevel slog.Level) *ComponentFilterHandler {
	return &ComponentFilterHandler{
		next: next,
		state: &filterState{
			defaultLevel: defaultLevel,
			levels:       make(map[string]slog.Level),
		},
	}
}

// SetLevel overrides the minimum level for component.
func (h *ComponentFilterHandler) SetLevel(component string, level slog.Level) {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	h.state.levels[component] = level
}

// Level returns the effective minimum level for component.
func (h *ComponentFilterHandler) Level(component string) slog.Level {
	return h.state.level(component)
}

func (h *ComponentFilterHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.component != "" {
		if level < h.state.level(h.component) {
			return false
		}
	} else if level < h.state.minLevel() {
		return false
	}
	return h.next.Enabled(ctx, level)
}

func (h *ComponentFilterHandler) Handle(ctx context.Context, r slog.Record) error {
	component := h.component
	if component == "" {
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == componentKey {
				component = a.Value.String()
				return false
			}
			return true
		})
	}
	if r.Level < h.state.level(component) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *ComponentFilterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	component := h.component
	for _, a := range attrs {
		if a.Key == componentKey {
			component = a.Value.String()
		}
	}
	return &ComponentFilterHandler{
		next:      h.next.WithAttrs(attrs),
		state:     h.state,
		component: component,
	}
}

func (h *ComponentFilterHandler) WithGroup(name string) slog.Handler {
	return &ComponentFilterHandler{
		next:      h.next.WithGroup(name),
		state:     h.state,
		component: h.component,
	}
}
