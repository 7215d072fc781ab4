package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/cleanup/pkg/cmd"
	"github.com/dukex/cleanup/pkg/config"
	"github.com/dukex/cleanup/pkg/eventbus"
	"github.com/dukex/cleanup/pkg/events"
	"github.com/dukex/cleanup/pkg/otelhelper"
	"github.com/dukex/cleanup/pkg/persistence"
	"github.com/dukex/cleanup/pkg/providers/codeupdate"
	"github.com/dukex/cleanup/pkg/services"
)

// runtime is the wired service graph shared by the commands.
type runtime struct {
	cfg      *config.Config
	store    persistence.Persistence
	bus      *eventbus.WatermillEventBus
	cleanups *services.ArchiveHost
	updates  *services.CodeUpdateHost
	projects *services.Project
	logger   *slog.Logger
}

func newRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	store, err := cmd.NewPersistence(ctx, logger, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	bus, err := cmd.NewEventBus(cfg.EventBus.Type, cfg.EventBus.KafkaBrokers, cfg.ServiceName, logger)
	if err != nil {
		return nil, errors.Join(err, store.Close(ctx))
	}

	fx, err := cmd.NewEffects(cfg)
	if err != nil {
		return nil, errors.Join(err, bus.Close(), store.Close(ctx))
	}

	tracer := otelhelper.NoopTracer()
	if cfg.Tracing.Enabled {
		tracer, err = otelhelper.NewTracer(ctx, cfg.ServiceName)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to initialize tracer: %w", err), bus.Close(), store.Close(ctx))
		}
	}

	opts := []services.Option{
		services.WithCacheTTL(cfg.Workflow.CacheTTL),
		services.WithPublisher(bus),
		services.WithTracer(tracer),
	}

	cleanups := services.NewArchiveHost(store.WorkflowRepository(), cmd.NewCleanupProvider(cfg, fx), opts...)

	return &runtime{
		cfg:      cfg,
		store:    store,
		bus:      bus,
		cleanups: cleanups,
		updates:  services.NewCodeUpdateHost(store.WorkflowRepository(), codeupdate.New(nil), opts...),
		projects: services.NewProject(store.ProjectRepository(), cleanups),
		logger:   logger,
	}, nil
}

func (r *runtime) Close(ctx context.Context) {
	err := r.bus.Close()
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
	}

	err = r.store.Close(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
	}
}

// listen routes external events from the bus to the workflow hosts.
func (r *runtime) listen(ctx context.Context) error {
	router := newEventRouter(r.logger, r.cleanups, r.updates)

	err := r.bus.Handle(events.ExternalEventReceivedEvent, router.handle)
	if err != nil {
		return fmt.Errorf("failed to register external event handler: %w", err)
	}

	return r.bus.Subscribe(ctx)
}
