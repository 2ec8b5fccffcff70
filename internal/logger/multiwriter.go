package logger

import (
	"context"
	"errors"
	"log/slog"
)

// multiWriterHandler fans one record out to several handlers (console text + JSON file).
type multiWriterHandler []slog.Handler

func newMultiWriterHandler(handlers ...slog.Handler) slog.Handler {
	return multiWriterHandler(handlers)
}

func (h multiWriterHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

//nolint:gocritic // slog.Handler interface requires record by value
func (h multiWriterHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range h {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h multiWriterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(multiWriterHandler, len(h))
	for i, handler := range h {
		out[i] = handler.WithAttrs(attrs)
	}
	return out
}

func (h multiWriterHandler) WithGroup(name string) slog.Handler {
	out := make(multiWriterHandler, len(h))
	for i, handler := range h {
		out[i] = handler.WithGroup(name)
	}
	return out
}
