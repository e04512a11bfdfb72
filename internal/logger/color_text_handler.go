package logger

import (
	"context"
	"io"
	"log/slog"
)

const ansiReset = "\033[0m"

// ColorTextHandler wraps slog.TextHandler, prefixing each message with its
// level in an ANSI color for interactive CLI use.
type ColorTextHandler struct {
	*slog.TextHandler
}

func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions) *ColorTextHandler {
	return &ColorTextHandler{TextHandler: slog.NewTextHandler(w, opts)}
}

// Handle implements slog.Handler.
func (h *ColorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	r.Message = levelColor(r.Level) + r.Level.String() + ansiReset + "  " + r.Message
	return h.TextHandler.Handle(ctx, r)
}

func levelColor(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "\033[31m" // red
	case l >= slog.LevelWarn:
		return "\033[33m" // yellow
	case l >= slog.LevelInfo:
		return "\033[32m" // green
	default:
		return "\033[36m" // cyan
	}
}
