package commands

import (
	"context"
	"fmt"

	"github.com/de-tools/policy-atlas/pkg/models/domain"
	"github.com/de-tools/policy-atlas/pkg/services/audit"
	"github.com/de-tools/policy-atlas/pkg/services/rules"
)

type Auditor interface {
	Run(ctx context.Context, plan *domain.Plan, opts audit.Options) (*domain.ScoredReport, error)
}

type ReportService interface {
	List(ctx context.Context) ([]domain.ReportEntry, error)
	Get(ctx context.Context, reportID string) (domain.ScoredReport, error)
	Delete(ctx context.Context, reportID string) error
}

type Catalog interface {
	List(ctx context.Context, provider string, q rules.Query) (rules.Page, error)
	Read(ctx context.Context, provider, name string) (domain.PolicyFile, []byte, error)
}

// Services are the backends a command talks to.
type Services struct {
	Auditor  Auditor
	Reports  ReportService
	Catalog  Catalog
	Defaults audit.Options
	Close    func() error
}

// Connector opens the services described by the config file at path.
type Connector func(ctx context.Context, path string) (*Services, error)

// Session connects lazily so that commands which fail flag validation never
// touch storage.
type Session struct {
	ConfigPath string

	connect  Connector
	services *Services
}

func NewSession(connect Connector) *Session {
	return &Session{connect: connect}
}

func (s *Session) Services(ctx context.Context) (*Services, error) {
	if s.services != nil {
		return s.services, nil
	}
	if s.connect == nil {
		return nil, fmt.Errorf("no service connector configured")
	}
	services, err := s.connect(ctx, s.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	s.services = services
	return services, nil
}

func (s *Session) Close() error {
	if s.services == nil || s.services.Close == nil {
		return nil
	}
	return s.services.Close()
}
