package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/cdprunbooker/runbooker/internal/app"
	"github.com/cdprunbooker/runbooker/internal/console"
	"github.com/cdprunbooker/runbooker/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	return rootCommand().Run(ctx, args)
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:  "runbooker",
		Usage: "CDP Runbooker credential management",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json|otel|otlp)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "verbose logging and error detail",
			},
			&cli.StringFlag{
				Name:  "api--base-url",
				Usage: "platform API base URL",
				Value: app.DefaultConfigAPIBaseURL,
			},
			&cli.StringFlag{
				Name:  "credentials--storage",
				Usage: "where the encrypted token is kept (file|keyring)",
				Value: string(app.DefaultConfigStorage),
			},
			&cli.StringFlag{
				Name:  "credentials--file",
				Usage: "path of the encrypted token record",
			},
			&cli.IntFlag{
				Name:  "credentials--max-retries",
				Usage: "validation attempts on network errors",
				Value: app.DefaultConfigMaxRetries,
			},
			&cli.DurationFlag{
				Name:  "credentials--retry-backoff",
				Usage: "linear backoff step between validation attempts",
				Value: app.DefaultConfigRetryBackoff,
			},
			&cli.BoolFlag{
				Name:  "credentials--no-browser",
				Usage: "print the token page URL instead of opening a browser",
			},
			&cli.BoolFlag{
				Name:  "legacy--disabled",
				Usage: "skip scanning shell configuration files for plaintext tokens",
			},
		},
		Commands: []*cli.Command{
			loginCommand(),
			whoamiCommand(),
			diagnoseCommand(),
			statusCommand(),
			logoutCommand(),
		},
	}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "set up, migrate or verify the stored API token",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "discard the stored token and set up a new one",
			},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			return a.Login(ctx, cmd.Bool("force"))
		}),
	}
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "show the platform identity of the stored token",
		Action: withApp(func(ctx context.Context, _ *cli.Command, a *app.App) error {
			_, err := a.WhoAmI(ctx)
			return err
		}),
	}
}

func diagnoseCommand() *cli.Command {
	return &cli.Command{
		Name:  "diagnose",
		Usage: "check connectivity and token validity step by step",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "token",
				Usage: "token to test instead of the stored one",
			},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			return a.Diagnose(ctx, cmd.String("token"))
		}),
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "show the stored token record without contacting the platform",
		Action: withApp(func(ctx context.Context, _ *cli.Command, a *app.App) error {
			return a.Status(ctx)
		}),
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "delete the stored token",
		Action: withApp(func(ctx context.Context, _ *cli.Command, a *app.App) error {
			return a.Logout(ctx)
		}),
	}
}

// withApp loads configuration, sets up logging and builds the App before
// running action.
func withApp(action func(context.Context, *cli.Command, *app.App) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Set up observability before creating app
		shutdown, err := observability.Instrument(cfg.LogLevel, string(cfg.LogFormat))
		if err != nil {
			return fmt.Errorf("failed to set up observability layer: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				fmt.Fprintln(os.Stderr, "failed to flush logs:", err)
			}
		}()

		application, err := app.New(cfg, console.Stdio())
		if err != nil {
			return fmt.Errorf("failed to create app: %w", err)
		}

		slog.DebugContext(ctx, "running command", "command", cmd.Name)
		return action(ctx, cmd, application)
	}
}
