// Package app wires the bootstrap phases together behind a small Application
// type that cmd/envboot drives.
package app

import (
	"context"
	"errors"
	"flag"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/envboot/envboot/internal/cli"
	"github.com/envboot/envboot/internal/config"
	apperrors "github.com/envboot/envboot/internal/errors"
	"github.com/envboot/envboot/internal/fetch"
	"github.com/envboot/envboot/internal/logging"
	"github.com/envboot/envboot/internal/metrics"
	"github.com/envboot/envboot/internal/sysdeps"
	"github.com/envboot/envboot/internal/ui"
)

// Application represents the envboot application instance.
type Application struct {
	Config    config.AppConfig
	Runner    sysdeps.Runner
	Fetcher   fetch.Fetcher
	Log       logging.Logger
	ErrWriter io.Writer
}

// AppOption configures an Application during construction.
type AppOption func(*Application)

// WithRunner sets a custom command runner, used by tests to keep the
// bootstrap away from the real package manager.
func WithRunner(r sysdeps.Runner) AppOption {
	return func(a *Application) { a.Runner = r }
}

// WithFetcher sets a custom download fetcher, used by tests to keep the
// bootstrap away from the network.
func WithFetcher(f fetch.Fetcher) AppOption {
	return func(a *Application) { a.Fetcher = f }
}

// WithLogger sets a custom logger.
func WithLogger(l logging.Logger) AppOption {
	return func(a *Application) { a.Log = l }
}

// New creates a new Application instance by parsing command-line arguments.
//
// Parameters:
//   - args: The full argument vector including the program name.
//   - errWriter: The writer for usage and error output.
//   - opts: Optional construction overrides.
//
// Returns:
//   - *Application: The configured application.
//   - error: flag.ErrHelp for help invocations, a ConfigError otherwise.
func New(args []string, errWriter io.Writer, opts ...AppOption) (*Application, error) {
	app := &Application{ErrWriter: errWriter}
	for _, opt := range opts {
		opt(app)
	}

	programName := "envboot"
	var cmdArgs []string
	if len(args) > 0 {
		programName = args[0]
		cmdArgs = args[1:]
	}

	cfg, err := config.ParseConfig(programName, cmdArgs, errWriter)
	if err != nil {
		return nil, err
	}
	app.Config = cfg

	if app.Log == nil {
		console := logging.NewDefaultLogger()
		if cfg.LogFile != "" {
			app.Log = logging.MultiLogger(console, logging.NewFileLogger(cfg.LogFile, "envboot"))
		} else {
			app.Log = console
		}
	}
	if app.Runner == nil {
		app.Runner = sysdeps.NewRunner(app.Log)
	}
	return app, nil
}

// Run executes the bootstrap and returns the process exit code.
func (a *Application) Run(ctx context.Context, out io.Writer) int {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	ui.InitTheme(a.Config.NoColor)

	if a.Config.MetricsAddr != "" {
		metrics.Register()
		metrics.Serve(a.Config.MetricsAddr)
	}

	ctx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	start := time.Now()
	err := a.runBootstrap(ctx, out)
	if !a.Config.Quiet {
		cli.PrintRunResult(out, err == nil, time.Since(start))
	}
	if err != nil {
		a.Log.Error("bootstrap failed", err)
	}
	return apperrors.ExitCodeFor(err)
}

// IsHelpError checks if the error is a help flag error (--help was used).
func IsHelpError(err error) bool {
	return errors.Is(err, flag.ErrHelp)
}
