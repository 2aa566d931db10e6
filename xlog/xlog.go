// Package xlog provides the shared silent-by-default slog.Logger used
// across the engine's packages, grounded on gogpu-gg's logger.go: a
// nopHandler that reports itself disabled so callers pay no formatting cost
// when logging isn't configured.
package xlog

import (
	"context"
	"log/slog"
)

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// Discard returns a logger that silently discards all output. Package
// constructors use this whenever the caller passes a nil *slog.Logger, so
// logging is opt-in rather than defaulting to stderr.
func Discard() *slog.Logger {
	return slog.New(nopHandler{})
}

// OrDiscard returns log if non-nil, otherwise Discard().
func OrDiscard(log *slog.Logger) *slog.Logger {
	if log == nil {
		return Discard()
	}
	return log
}
