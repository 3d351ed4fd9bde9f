package app

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is the app-wide logger type (slog).
type Logger = *slog.Logger

// NewLogger creates the agora JSON logger on stderr and installs it as the
// slog default. Source locations are attached only at debug level; at normal
// levels the dotted event names carry enough context and the extra fields
// just inflate log volume.
func NewLogger(level string) *slog.Logger {
	lvl := parseLogLevel(level)

	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	})

	log := slog.New(h).With("service", "agora")
	slog.SetDefault(log)
	return log
}

// parseLogLevel maps a config string to a slog level, defaulting to info.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
