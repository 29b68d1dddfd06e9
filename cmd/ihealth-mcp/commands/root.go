package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/ihealth-mcp/internal/app"
	"github.com/florianilch/ihealth-mcp/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	cmd := &cli.Command{
		Name:    "ihealth-mcp",
		Usage:   "F5 iHealth diagnostics as MCP tools",
		Version: app.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
				Sources: cli.EnvVars(envPrefix + "CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "log--exporter",
				Usage: "additional log exporter (none|stdout|otlp-grpc|otlp-http)",
				Value: app.DefaultConfigLogExporter,
			},
			&cli.StringFlag{
				Name:  "credentials--storage",
				Usage: "where client credentials are stored (env|file|keyring)",
				Value: string(app.DefaultConfigCredentialStorage),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			credentialsCommand(),
		},
	}

	return cmd.Run(ctx, args)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the iHealth tools to an MCP host",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "transport",
				Usage: "host transport (stdio|http)",
				Value: string(app.DefaultConfigTransport),
			},
			&cli.StringFlag{
				Name:  "server--host",
				Usage: "HTTP transport host",
				Value: app.DefaultConfigServerHost,
			},
			&cli.IntFlag{
				Name:  "server--port",
				Usage: "HTTP transport port",
				Value: int(app.DefaultConfigServerPort),
			},
			&cli.StringFlag{
				Name:  "upstream--base-url",
				Usage: "iHealth API base URL",
				Value: app.DefaultConfigUpstreamBaseURL,
			},
			&cli.StringFlag{
				Name:  "auth--token-url",
				Usage: "OAuth2 token endpoint",
				Value: app.DefaultConfigAuthTokenURL,
			},
		},
		Action: serveAction,
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, flush, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer flush()

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	slog.InfoContext(ctx, "starting", "version", app.Version)

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("app failed to start: %w", err)
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}

// setup loads the config and installs logging. The returned func flushes
// buffered log records and must be called before exiting.
func setup(ctx context.Context, cmd *cli.Command) (*app.Config, func(), error) {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Set up observability before creating app
	shutdown, err := observability.Instrument(ctx, observability.Config{
		Level:    cfg.LogLevel,
		Format:   string(cfg.LogFormat),
		Exporter: cfg.Log.Exporter,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}

	flush := func() {
		// ctx may already be cancelled by a signal
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Shutdown.Timeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			fmt.Fprintln(os.Stderr, "failed to flush logs:", err)
		}
	}

	return cfg, flush, nil
}
