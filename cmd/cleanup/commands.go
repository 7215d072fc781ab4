package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/cleanup/pkg/config"
	"github.com/dukex/cleanup/pkg/log"
	"github.com/dukex/cleanup/pkg/scheduler"
	"github.com/urfave/cli/v3"
)

func loadRuntime(ctx context.Context, command *cli.Command) (*runtime, error) {
	cfg, err := config.Load(command.String("config"))
	if err != nil {
		return nil, err
	}

	if command.IsSet("database-url") {
		cfg.DatabaseURL = command.String("database-url")
	}

	if command.IsSet("log-level") {
		cfg.LogLevel = command.String("log-level")
	}

	log.Setup(cfg.LogLevel)

	return newRuntime(ctx, cfg, log.WithModule("cleanup"))
}

func RunAPICommand() *cli.Command {
	return &cli.Command{
		Name:    "api",
		Aliases: []string{"a"},
		Usage:   "Serve the HTTP API and wake waiting workflows",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Sources: cli.EnvVars("PORT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := loadRuntime(ctx, command)
			if err != nil {
				return err
			}
			defer rt.Close(context.WithoutCancel(ctx))

			rt.logger.InfoContext(ctx, "Initializing Cleanup API")

			sched, err := scheduler.New(rt.cleanups, scheduler.WithSweepSpec(rt.cfg.SweepSpec()))
			if err != nil {
				return err
			}

			rt.cleanups.UseTimers(sched)

			err = sched.Start(ctx)
			if err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}

			defer func() {
				if err := sched.Stop(context.WithoutCancel(ctx)); err != nil {
					rt.logger.ErrorContext(ctx, "Failed to stop scheduler", "error", err)
				}
			}()

			err = rt.listen(ctx)
			if err != nil {
				return err
			}

			port := rt.cfg.Port
			if command.IsSet("port") {
				port = int(command.Int("port"))
			}

			app := NewAPI(rt).App()

			go func() {
				<-ctx.Done()

				if err := app.Shutdown(); err != nil {
					rt.logger.Error("Failed to shut down API", "error", err)
				}
			}()

			return app.Listen(fmt.Sprintf(":%d", port))
		},
	}
}

func SweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Wake every waiting workflow whose wait has elapsed, then exit",
		Action: func(ctx context.Context, command *cli.Command) error {
			rt, err := loadRuntime(ctx, command)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			woken, err := rt.cleanups.Sweep(ctx)
			rt.logger.InfoContext(ctx, "Sweep finished", "woken", woken)

			return err
		},
	}
}

func SummaryCommand() *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "Print workflow counts as JSON",
		Action: func(ctx context.Context, command *cli.Command) error {
			rt, err := loadRuntime(ctx, command)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			cleanups, err := rt.cleanups.Summary(ctx)
			if err != nil {
				return err
			}

			updates, err := rt.updates.Summary(ctx)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(command.Root().Writer)
			encoder.SetIndent("", "  ")

			return encoder.Encode(map[string]any{
				"cleanups":     cleanups,
				"code_updates": updates,
			})
		},
	}
}
