package log_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dukex/cleanup/pkg/log"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelDebug, log.ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, log.ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, log.ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, log.ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, log.ParseLevel("verbose"))
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.Default(), log.FromContext(context.Background()))

	logger := log.WithModule("test")
	ctx := log.WithContext(context.Background(), logger)

	assert.Same(t, logger, log.FromContext(ctx))

	fallback := log.WithModule("fallback")
	assert.Same(t, fallback, log.FromContextOr(context.Background(), fallback))
	assert.Same(t, logger, log.FromContextOr(ctx, fallback))
}
