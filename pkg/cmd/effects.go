package cmd

import (
	"fmt"
	"time"

	"github.com/dukex/cleanup/pkg/config"
	"github.com/dukex/cleanup/pkg/effects"
	"github.com/dukex/cleanup/pkg/providers/cleanup"
	"github.com/dukex/cleanup/pkg/workflow"
	"github.com/dukex/cleanup/pkg/workflow/factory"
)

// NewEffects builds the configured traffic reducer and transformer.
func NewEffects(cfg *config.Config) (workflow.Effects, error) {
	switch cfg.Effects.Type {
	case "webhook":
		hook, err := effects.NewWebhook(cfg.Effects.WebhookURL,
			effects.WithTimeout(cfg.Effects.WebhookTimeout),
			effects.WithRetry(effects.RetryConfig{Attempts: cfg.Effects.WebhookAttempts, Delay: time.Second}))
		if err != nil {
			return workflow.Effects{}, fmt.Errorf("failed to create webhook effects: %w", err)
		}

		return hook.Effects(), nil
	default:
		return effects.NewLogging(nil).Effects(), nil
	}
}

// NewCleanupProvider builds the cleanup provider with the configured stage
// templates and default wait.
func NewCleanupProvider(cfg *config.Config, fx workflow.Effects) *cleanup.Provider {
	templates := make([]cleanup.StageTemplate, 0, len(cfg.Workflow.Stages))
	for _, stage := range cfg.Workflow.Stages {
		templates = append(templates, cleanup.StageTemplate{
			Name:             stage.Name,
			TargetAllocation: stage.TargetAllocation,
			WaitDuration:     stage.WaitDuration,
		})
	}

	opts := []cleanup.Option{cleanup.WithStageTemplates(templates)}
	if cfg.Workflow.DefaultWait > 0 {
		opts = append(opts, cleanup.WithDefaultWait(cfg.Workflow.DefaultWait))
	}

	return cleanup.New(factory.Dependencies{Effects: fx}, opts...)
}
