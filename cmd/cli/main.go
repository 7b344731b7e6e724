package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/de-tools/policy-atlas/pkg/runtime/app"
	"github.com/de-tools/policy-atlas/pkg/runtime/terminal"
	"github.com/de-tools/policy-atlas/pkg/runtime/terminal/commands"
	"github.com/de-tools/policy-atlas/pkg/services/config"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// exitViolations signals a completed audit that found violations.
const exitViolations = 2

func main() {
	// A missing .env file is not an error for the CLI.
	_ = godotenv.Load()

	cli := terminal.NewCLI(terminal.Options{
		Connect: connect,
		Output:  os.Stdout,
	})

	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, commands.ErrViolationsFound) {
			os.Exit(exitViolations)
		}
		os.Exit(1)
	}
}

func connect(ctx context.Context, path string) (*commands.Services, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	logger := app.NewLogger(cfg.Log, os.Stderr)
	if cfg.Log.Level == "" || cfg.Log.Level == zerolog.InfoLevel.String() {
		// Keep service chatter out of the terminal report unless asked for.
		logger = logger.Level(zerolog.WarnLevel)
	}
	ctx = logger.WithContext(ctx)

	a, err := app.Build(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &commands.Services{
		Auditor:  a.Auditor,
		Reports:  a.Reports,
		Catalog:  a.Catalog,
		Defaults: a.Defaults,
		Close:    a.Close,
	}, nil
}
