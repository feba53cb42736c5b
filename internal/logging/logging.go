// Package logging configures the process-wide slog logger.
package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
)

// Options configures Setup.
type Options struct {
	// Console replaces the default stderr text handler, e.g. to route
	// records into the progress UI.
	Console slog.Handler
	Verbose bool
	// File, if set, receives every record at debug level.
	File io.Writer
}

// Setup builds the logger described by opts and installs it as the default.
func Setup(opts Options) *slog.Logger {
	console := opts.Console
	if console == nil {
		level := slog.LevelInfo
		if opts.Verbose {
			level = slog.LevelDebug
		}
		console = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	handler := console
	if opts.File != nil {
		file := slog.NewTextHandler(opts.File, &slog.HandlerOptions{Level: slog.LevelDebug})
		handler = NewFanoutHandler(console, file)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// Discard silences all logging. The MCP server uses stdio, so nothing may
// be written to the terminal.
func Discard() {
	slog.SetDefault(slog.New(slog.DiscardHandler))
}

// OpenFile opens path for appending log records.
func OpenFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// FanoutHandler sends each record to every handler that accepts its level.
type FanoutHandler struct {
	handlers []slog.Handler
}

func NewFanoutHandler(handlers ...slog.Handler) *FanoutHandler {
	return &FanoutHandler{handlers: handlers}
}

func (h *FanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *FanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := handler.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *FanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &FanoutHandler{handlers: handlers}
}

func (h *FanoutHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &FanoutHandler{handlers: handlers}
}
