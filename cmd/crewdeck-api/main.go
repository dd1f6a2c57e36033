package main

import (
	"context"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/crewdeck/crewdeck/pkg/audit"
	"github.com/crewdeck/crewdeck/pkg/callback"
	"github.com/crewdeck/crewdeck/pkg/cmd"
	"github.com/crewdeck/crewdeck/pkg/engine"
	"github.com/crewdeck/crewdeck/pkg/log"
	"github.com/crewdeck/crewdeck/pkg/otelhelper"
)

const defaultPort = 9091

const engineTimeout = 30 * time.Second

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "crewdeck-api",
		Usage:                 "Manage digital worker workflows and human reviews",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "engine-url",
				Usage:    "Base URL of the workflow execution engine",
				Required: true,
				Sources:  cli.EnvVars("ENGINE_URL"),
			},
			&cli.StringFlag{
				Name:    "engine-api-key",
				Usage:   "API key for the workflow execution engine",
				Sources: cli.EnvVars("ENGINE_API_KEY"),
			},
			&cli.StringFlag{
				Name:     "base-callback-url",
				Usage:    "Public base URL compiled into workflow callback nodes",
				Required: true,
				Sources:  cli.EnvVars("BASE_CALLBACK_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Crewdeck API")

			if command.Bool("tracing") {
				if _, err := otelhelper.NewTracer(ctx, "crewdeck-api"); err != nil {
					logger.ErrorContext(ctx, "Failed to initialize tracer", "error", err)
				}
			}

			allowList, err := callback.NewAllowList(command.String("engine-url"))
			if err != nil {
				return err
			}

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			auditLogger := audit.NewLogger(eventBus, logger)
			if err := auditLogger.Start(ctx); err != nil {
				return err
			}

			engineClient := engine.NewClient(
				command.String("engine-url"),
				command.String("engine-api-key"),
				engineTimeout,
			)

			api := NewAPI(
				logger,
				persistence,
				eventBus,
				engineClient,
				allowList,
				command.String("base-callback-url"),
			)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
