package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// SwappableHandler is a slog.Handler whose delegate can be replaced at
// runtime. Loggers derived with With or WithGroup before a swap keep the
// delegate they were created from.
type SwappableHandler struct {
	inner atomic.Pointer[slog.Handler]
}

// NewSwappableHandler creates a SwappableHandler wrapping h.
func NewSwappableHandler(h slog.Handler) *SwappableHandler {
	s := &SwappableHandler{}
	s.inner.Store(&h)
	return s
}

// Swap replaces the delegate.
func (s *SwappableHandler) Swap(h slog.Handler) {
	s.inner.Store(&h)
}

func (s *SwappableHandler) load() slog.Handler {
	return *s.inner.Load()
}

// Enabled implements slog.Handler.
func (s *SwappableHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return s.load().Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (s *SwappableHandler) Handle(ctx context.Context, r slog.Record) error {
	return s.load().Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (s *SwappableHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewSwappableHandler(s.load().WithAttrs(attrs))
}

// WithGroup implements slog.Handler.
func (s *SwappableHandler) WithGroup(name string) slog.Handler {
	return NewSwappableHandler(s.load().WithGroup(name))
}
