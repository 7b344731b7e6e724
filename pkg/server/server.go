package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	audithandler "github.com/de-tools/policy-atlas/pkg/handlers/audit"
	policyhandler "github.com/de-tools/policy-atlas/pkg/handlers/policies"
	reporthandler "github.com/de-tools/policy-atlas/pkg/handlers/reports"
	auditsvc "github.com/de-tools/policy-atlas/pkg/services/audit"

	atlasmiddleware "github.com/de-tools/policy-atlas/pkg/server/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const defaultShutdownTimeout = 10 * time.Second

type WebAPI struct {
	router          http.Handler
	logger          *zerolog.Logger
	server          *http.Server
	shutdownTimeout time.Duration
}

type Dependencies struct {
	Auditor audithandler.Auditor
	Reports reporthandler.Service
	Catalog policyhandler.Catalog
	// Defaults fill audit options a request leaves empty.
	Defaults auditsvc.Options
}

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	Dependencies    Dependencies
}

// ConfigureRouter mounts every API route under /api.
func ConfigureRouter(logger zerolog.Logger, config Config) http.Handler {
	deps := config.Dependencies
	auditHandler := audithandler.NewHandler(deps.Auditor, deps.Defaults)
	reportHandler := reporthandler.NewHandler(deps.Reports)
	policyHandler := policyhandler.NewHandler(deps.Catalog)

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(atlasmiddleware.Logger(&logger))
	router.Use(middleware.Recoverer)

	router.Route("/api", func(r chi.Router) {
		r.Get("/health", auditHandler.Health)
		r.Post("/audit", auditHandler.Audit)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/", reportHandler.List)
			r.Get("/{id}", reportHandler.Get)
			r.Delete("/{id}", reportHandler.Delete)
			r.Post("/{id}/remediate", reportHandler.Remediate)
		})

		r.Route("/policies/{provider}", func(r chi.Router) {
			r.Get("/", policyHandler.List)
			r.Get("/{name}", policyHandler.Get)
			r.Put("/{name}", policyHandler.Put)
			r.Post("/{name}", policyHandler.Put)
			r.Delete("/{name}", policyHandler.Delete)
		})
	})

	return router
}

func NewWebAPI(logger zerolog.Logger, config Config) *WebAPI {
	router := ConfigureRouter(logger, config)

	timeout := config.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	return &WebAPI{
		router: router,
		logger: &logger,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: timeout,
	}
}

func (w *WebAPI) Start() error {
	serverErrors := make(chan error, 1)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		w.logger.Info().Str("addr", w.server.Addr).Msg("starting server")
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-shutdown:
		w.logger.Info().Msg("shutdown initiated")

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
		defer cancel()

		err := w.server.Shutdown(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("graceful shutdown failed")
			err = w.server.Close()
		}

		if err != nil {
			return err
		}
	}

	return nil
}
