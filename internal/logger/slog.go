package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs the process-wide slog default used by CLI commands.
// level accepts debug/info/warn/error; anything else falls back to info.
func Setup(level string, color bool) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var h slog.Handler
	if color {
		h = NewColorTextHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
