// Package log wires slog so that attributes stored in a context are
// attached to every record logged with that context. Job goroutines set
// job_id and tenant_id once and every log line below carries them.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type slogKeyT struct{}

var slogKey slogKeyT

// ContextHandler decorates another slog.Handler with the attrs carried
// by the record's context, see ContextAttrs.
type ContextHandler struct {
	inner slog.Handler
}

func NewContextHandler(handler slog.Handler) ContextHandler {
	return ContextHandler{
		inner: handler,
	}
}

func (h ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if a, ok := ctx.Value(slogKey).([]slog.Attr); ok {
		r.AddAttrs(a...)
	}

	return h.inner.Handle(ctx, r)
}

// WithAttrs keeps the wrapper, plain embedding would return the inner
// handler and drop context attrs for loggers made via Logger.With.
func (h ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return ContextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h ContextHandler) WithGroup(name string) slog.Handler {
	return ContextHandler{inner: h.inner.WithGroup(name)}
}

// ContextAttrs returns a context that carries attrs in addition to those
// already present. The stored slice is never appended to in place, so
// sibling contexts do not see each other's attrs.
func ContextAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	a, _ := ctx.Value(slogKey).([]slog.Attr)
	merged := make([]slog.Attr, 0, len(a)+len(attrs))
	merged = append(merged, a...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, slogKey, merged)
}

// New builds the process logger: JSON on stderr, Debug when verbose.
func New(verbose bool) *slog.Logger {
	return NewAt(os.Stderr, verbose)
}

func NewAt(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	base := slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: false,
		Level:     level,
	})
	return slog.New(NewContextHandler(base))
}
