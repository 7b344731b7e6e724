// Package app assembles the audit services from a loaded configuration.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/de-tools/policy-atlas/pkg/server"
	"github.com/de-tools/policy-atlas/pkg/services/audit"
	"github.com/de-tools/policy-atlas/pkg/services/config"
	"github.com/de-tools/policy-atlas/pkg/services/httpclient"
	"github.com/de-tools/policy-atlas/pkg/services/notify"
	"github.com/de-tools/policy-atlas/pkg/services/policy"
	"github.com/de-tools/policy-atlas/pkg/services/policy/opa"
	"github.com/de-tools/policy-atlas/pkg/services/policy/rego"
	"github.com/de-tools/policy-atlas/pkg/services/remediation"
	"github.com/de-tools/policy-atlas/pkg/services/report"
	"github.com/de-tools/policy-atlas/pkg/services/reports"
	"github.com/de-tools/policy-atlas/pkg/services/rules"
	"github.com/de-tools/policy-atlas/pkg/store/blob"
	"github.com/de-tools/policy-atlas/pkg/store/duckdb"
	reportindex "github.com/de-tools/policy-atlas/pkg/store/duckdb/reports"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// App holds the services shared by the web server and the command line.
type App struct {
	Config   *config.Config
	Auditor  *audit.Auditor
	Reports  *reports.Service
	Catalog  *rules.Catalog
	Defaults audit.Options

	db *sql.DB
}

// NewLogger builds the process logger. Pretty output is meant for terminals.
func NewLogger(cfg config.LogConfig, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Build wires every service described by cfg. The report index is rebuilt
// from blob storage before Build returns.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	return build(ctx, cfg, afero.NewOsFs())
}

func build(ctx context.Context, cfg *config.Config, fs afero.Fs) (*App, error) {
	logger := zerolog.Ctx(ctx)

	evaluator, err := policy.NewEvaluator(newEngine(cfg.Engine, fs), policy.Settings{
		RuleRoot:      cfg.Engine.RuleRoot,
		PackagePrefix: cfg.Engine.PackagePrefix,
		Timeout:       cfg.Engine.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create policy evaluator: %w", err)
	}

	blobs, err := blob.DefaultRegistry(fs).Create(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create %q report storage: %w", cfg.Storage.Backend, err)
	}

	db, err := duckdb.NewDB(duckdb.Settings{
		DbPath: cfg.Index.DbPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB instance: %w", err)
	}

	app, err := assemble(ctx, cfg, fs, evaluator, blobs, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	indexed, err := app.Reports.Reindex(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to index stored reports: %w", err)
	}

	logger.Info().
		Str("engine", cfg.Engine.Kind).
		Str("rule_root", cfg.Engine.RuleRoot).
		Str("storage", cfg.Storage.Backend).
		Int("reports", indexed).
		Bool("remediation", cfg.Remediation.APIKey != "").
		Bool("notify", len(cfg.Notify.Recipients) > 0).
		Msg("audit services ready")

	return app, nil
}

func assemble(
	ctx context.Context,
	cfg *config.Config,
	fs afero.Fs,
	evaluator *policy.Evaluator,
	blobs blob.Store,
	db *sql.DB,
) (*App, error) {
	index, err := reportindex.NewStore(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create report index: %w", err)
	}

	httpClient := httpclient.New(cfg.HTTP, *zerolog.Ctx(ctx))

	deps := audit.Dependencies{
		Evaluator: evaluator,
		Assembler: report.NewAssembler(cfg.Scoring.Policy()),
	}

	// Optional collaborators stay nil interfaces when they are not configured.
	var reportSuggester reports.Suggester
	if cfg.Remediation.APIKey != "" {
		suggester, err := remediation.NewClient(cfg.Remediation, httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create remediation client: %w", err)
		}
		deps.Suggester = suggester
		reportSuggester = suggester
	}

	if len(cfg.Notify.Recipients) > 0 {
		mailer, err := notify.NewMailer(cfg.Notify, httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create mailer: %w", err)
		}
		deps.Notifier = mailer
	}

	service, err := reports.NewService(blobs, index, reportSuggester)
	if err != nil {
		return nil, fmt.Errorf("failed to create report service: %w", err)
	}
	deps.Saver = service

	auditor, err := audit.NewAuditor(deps, audit.Settings{
		Workers:            cfg.Audit.Workers,
		RemediationWorkers: cfg.Audit.RemediationWorkers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create auditor: %w", err)
	}

	tags := cfg.Audit.Tags
	if tags == nil {
		tags = []string{}
	}

	return &App{
		Config:  cfg,
		Auditor: auditor,
		Reports: service,
		Catalog: rules.NewCatalog(fs, cfg.Engine.RuleRoot),
		Defaults: audit.Options{
			Owner:    cfg.Audit.Owner,
			Tags:     tags,
			Provider: cfg.Audit.Provider,
		},
		db: db,
	}, nil
}

func newEngine(cfg config.EngineConfig, fs afero.Fs) policy.RuleEngine {
	if cfg.Kind == config.EngineRego {
		return rego.NewEngine(fs)
	}
	return opa.NewEngine(cfg.Binary)
}

// ServerConfig describes the web API backed by the app.
func (a *App) ServerConfig() server.Config {
	return server.Config{
		Addr: fmt.Sprintf("%s:%d", a.Config.Server.Host, a.Config.Server.Port),
		Dependencies: server.Dependencies{
			Auditor:  a.Auditor,
			Reports:  a.Reports,
			Catalog:  a.Catalog,
			Defaults: a.Defaults,
		},
	}
}

func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
