package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		env, level string
		want       slog.Level
	}{
		{"prod", "", slog.LevelInfo},
		{"dev", "", slog.LevelDebug},
		{"prod", "debug", slog.LevelDebug},
		{"dev", "error", slog.LevelError},
		{"prod", " WARN ", slog.LevelWarn},
		{"prod", "verbose", slog.LevelInfo},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, parseLevel(c.env, c.level), "env=%q level=%q", c.env, c.level)
	}
}

func TestNewHonoursLevel(t *testing.T) {
	ctx := context.Background()
	log := New("prod", "warn")
	assert.False(t, log.Enabled(ctx, slog.LevelInfo))
	assert.True(t, log.Enabled(ctx, slog.LevelWarn))
}
