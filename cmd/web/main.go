package main

import (
	"fmt"
	"os"

	"github.com/de-tools/policy-atlas/pkg/runtime/app"
	"github.com/de-tools/policy-atlas/pkg/server"
	"github.com/de-tools/policy-atlas/pkg/services/config"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var cfgPath string

func main() {
	var rootCmd = &cobra.Command{
		Use:   "web",
		Short: "Start the web server for Policy Atlas",
		RunE:  runServer,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "",
		"Path to a config file (environment variables apply either way)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("No .env file loaded: %v\n", err)
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := app.NewLogger(cfg.Log, os.Stdout)
	ctx := logger.WithContext(cmd.Context())

	a, err := app.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close report index")
		}
	}()

	logSettings(logger, cfg)

	return server.NewWebAPI(logger, a.ServerConfig()).Start()
}

func logSettings(logger zerolog.Logger, cfg *config.Config) {
	if cfgPath != "" {
		logger.Info().Msgf("Configuration at `%s` successfully loaded.", cfgPath)
	}
	logger.Info().
		Str("engine", cfg.Engine.Kind).
		Str("rule_root", cfg.Engine.RuleRoot).
		Str("package_prefix", cfg.Engine.PackagePrefix).
		Int("workers", cfg.Audit.Workers).
		Msg("audit engine configured")
	if cfg.Remediation.APIKey == "" {
		logger.Warn().Msg("remediation API key not set, AI remediation disabled")
	}
}
