package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New builds the process-wide JSON logger. An explicit level from config
// wins; with no level set, dev environments log at debug and everything
// else at info.
func New(env, level string) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(env, level)})
	return slog.New(h)
}

func parseLevel(env, level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if env == "dev" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
