package cmd_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dukex/cleanup/pkg/cmd"
	"github.com/dukex/cleanup/pkg/config"
	"github.com/dukex/cleanup/pkg/effects"
	"github.com/dukex/cleanup/pkg/models"
	"github.com/dukex/cleanup/pkg/persistence/file"
	"github.com/dukex/cleanup/pkg/persistence/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPersistence(t *testing.T) {
	t.Parallel()

	ctx := t.Context()

	store, err := cmd.NewPersistence(ctx, slog.Default(), "file://"+t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &file.Persistence{}, store)

	store, err = cmd.NewPersistence(ctx, slog.Default(), t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &file.Persistence{}, store)

	mr := miniredis.RunT(t)
	store, err = cmd.NewPersistence(ctx, slog.Default(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	assert.IsType(t, &redis.Persistence{}, store)
	require.NoError(t, store.Close(ctx))

	_, err = cmd.NewPersistence(ctx, slog.Default(), "mongodb://localhost")
	require.Error(t, err)
}

func TestNewEventBus(t *testing.T) {
	t.Parallel()

	bus, err := cmd.NewEventBus("gochannel", nil, "cleanup", slog.Default())
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	_, err = cmd.NewEventBus("kafka", nil, "cleanup", slog.Default())
	require.Error(t, err)

	_, err = cmd.NewEventBus("nats", nil, "cleanup", slog.Default())
	require.Error(t, err)
}

func TestNewEffects(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Effects.Type = "log"

	fx, err := cmd.NewEffects(cfg)
	require.NoError(t, err)
	assert.IsType(t, &effects.Logging{}, fx.Reducer)

	cfg.Effects.Type = "webhook"
	cfg.Effects.WebhookURL = "https://traffic.example.com/hooks"
	cfg.Effects.WebhookAttempts = 2

	fx, err = cmd.NewEffects(cfg)
	require.NoError(t, err)
	assert.IsType(t, &effects.Webhook{}, fx.Transformer)

	cfg.Effects.WebhookURL = ""
	_, err = cmd.NewEffects(cfg)
	require.ErrorIs(t, err, effects.ErrNoWebhookURL)
}

func TestNewCleanupProvider(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Workflow.DefaultWait = 15 * time.Minute
	cfg.Workflow.Stages = []config.StageTemplate{
		{Name: "canary", TargetAllocation: 50},
		{Name: "global", TargetAllocation: 0, WaitDuration: time.Hour},
	}

	provider := cmd.NewCleanupProvider(cfg, effects.NewLogging(nil).Effects())

	c, err := provider.CreateContext(models.CleanupRequest{
		ConfigurationName:        "feature.a",
		WorkflowType:             models.WorkflowTypeStagedArchive,
		CurrentTrafficPercentage: 100,
	})
	require.NoError(t, err)
	require.Len(t, c.StageSet.Stages, 2)
	assert.Equal(t, 15*time.Minute, c.StageSet.Stages[0].WaitDuration)
	assert.Equal(t, 50, c.StageSet.Stages[1].CurrentAllocation)
}
