package progress

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// sender is the part of *tea.Program the handler needs.
type sender interface {
	Send(msg tea.Msg)
}

// BubbleTeaHandler is a slog handler that routes log records into the UI
// activity log.
type BubbleTeaHandler struct {
	program sender
	level   slog.Leveler
	attrs   []slog.Attr
}

// NewBubbleTeaHandler creates a handler sending records at or above level to program.
func NewBubbleTeaHandler(program *tea.Program, level slog.Leveler) *BubbleTeaHandler {
	return &BubbleTeaHandler{program: program, level: level}
}

func (h *BubbleTeaHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.level == nil {
		return level >= slog.LevelInfo
	}
	return level >= h.level.Level()
}

func (h *BubbleTeaHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	if r.Level >= slog.LevelError {
		b.WriteString("❌ ")
	}
	b.WriteString(r.Message)

	// key=value pairs, handler attrs first
	first := true
	write := func(a slog.Attr) bool {
		if first {
			b.WriteString(" ")
			first = false
		} else {
			b.WriteString(", ")
		}
		b.WriteString(fmt.Sprintf("%s=%v", a.Key, a.Value))
		return true
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(write)

	if h.program != nil {
		h.program.Send(logMsg(b.String()))
	}
	return nil
}

func (h *BubbleTeaHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &BubbleTeaHandler{program: h.program, level: h.level, attrs: merged}
}

// WithGroup is a no-op; the activity log has no room for nested keys.
func (h *BubbleTeaHandler) WithGroup(name string) slog.Handler {
	return h
}
