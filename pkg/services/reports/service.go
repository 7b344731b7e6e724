// Package reports persists scored reports and serves them back in canonical form.
package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/de-tools/policy-atlas/pkg/adapters"
	"github.com/de-tools/policy-atlas/pkg/models/domain"
	"github.com/de-tools/policy-atlas/pkg/services/remediation"
	"github.com/de-tools/policy-atlas/pkg/services/report"
	"github.com/de-tools/policy-atlas/pkg/store/blob"
	reportindex "github.com/de-tools/policy-atlas/pkg/store/duckdb/reports"
	"github.com/rs/zerolog"
)

const (
	KeyPrefix = "reports/"

	keyTimeFormat = "20060102T150405Z"
)

var (
	ErrNotFound            = errors.New("report not found")
	ErrRemediationDisabled = errors.New("remediation is not configured")
)

type Suggester interface {
	Suggest(ctx context.Context, v domain.Violation) (string, error)
}

// Service stores report documents in a blob store and keeps a queryable
// index of them. Reports read back always pass through report.Normalize.
type Service struct {
	blobs     blob.Store
	index     reportindex.Store
	suggester Suggester
	now       func() time.Time
}

// NewService wires the report repository. suggester may be nil, which
// disables Remediate.
func NewService(blobs blob.Store, index reportindex.Store, suggester Suggester) (*Service, error) {
	if blobs == nil {
		return nil, fmt.Errorf("blob store is nil")
	}
	if index == nil {
		return nil, fmt.Errorf("report index is nil")
	}
	return &Service{
		blobs:     blobs,
		index:     index,
		suggester: suggester,
		now:       time.Now,
	}, nil
}

// Key returns the blob key a report is stored under.
func Key(r domain.ScoredReport, now time.Time) string {
	at, err := time.Parse(time.RFC3339, r.GeneratedAt)
	if err != nil {
		at = now
	}
	return fmt.Sprintf("%s%s-%s.json", KeyPrefix, at.UTC().Format(keyTimeFormat), r.ReportID)
}

// Save writes the report and indexes it. It returns the storage location.
func (s *Service) Save(ctx context.Context, r domain.ScoredReport) (string, error) {
	return s.put(ctx, Key(r, s.now()), r)
}

func (s *Service) put(ctx context.Context, key string, r domain.ScoredReport) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report %s: %w", r.ReportID, err)
	}

	location, err := s.blobs.Put(ctx, key, data)
	if err != nil {
		return "", err
	}
	if err := s.index.Upsert(ctx, adapters.MapReportEntryDomainToStore(r.Entry(key), s.now())); err != nil {
		return "", err
	}
	return location, nil
}

// Get loads a stored report by id.
func (s *Service) Get(ctx context.Context, reportID string) (domain.ScoredReport, error) {
	_, r, err := s.load(ctx, reportID)
	return r, err
}

func (s *Service) load(ctx context.Context, reportID string) (string, domain.ScoredReport, error) {
	record, err := s.index.Get(ctx, reportID)
	if err != nil {
		if errors.Is(err, reportindex.ErrNotFound) {
			return "", domain.ScoredReport{}, fmt.Errorf("%w: %s", ErrNotFound, reportID)
		}
		return "", domain.ScoredReport{}, err
	}

	r, err := s.read(ctx, record.StorageKey)
	if err != nil {
		return "", domain.ScoredReport{}, err
	}
	return record.StorageKey, r, nil
}

func (s *Service) read(ctx context.Context, key string) (domain.ScoredReport, error) {
	data, err := s.blobs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return domain.ScoredReport{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return domain.ScoredReport{}, err
	}

	doc, err := report.Decode(data)
	if err != nil {
		return domain.ScoredReport{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return report.Normalize(doc, s.now()), nil
}

// List returns the indexed reports, newest first.
func (s *Service) List(ctx context.Context) ([]domain.ReportEntry, error) {
	records, err := s.index.List(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.ReportEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, adapters.MapReportRecordStoreToDomain(record))
	}
	return entries, nil
}

// Delete removes the report blob and its index entry. A blob that is already
// gone does not block removing the entry.
func (s *Service) Delete(ctx context.Context, reportID string) error {
	record, err := s.index.Get(ctx, reportID)
	if err != nil {
		if errors.Is(err, reportindex.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, reportID)
		}
		return err
	}

	if err := s.blobs.Delete(ctx, record.StorageKey); err != nil && !errors.Is(err, blob.ErrNotFound) {
		return err
	}
	if err := s.index.Delete(ctx, reportID); err != nil && !errors.Is(err, reportindex.ErrNotFound) {
		return err
	}
	return nil
}

// Remediate asks for a fix to every finding of a stored report, records the
// answers as remediation steps and saves the report in place. A failed
// suggestion is recorded as remediation.Unavailable.
func (s *Service) Remediate(ctx context.Context, reportID string) (domain.ScoredReport, error) {
	if s.suggester == nil {
		return domain.ScoredReport{}, ErrRemediationDisabled
	}

	key, r, err := s.load(ctx, reportID)
	if err != nil {
		return domain.ScoredReport{}, err
	}

	logger := zerolog.Ctx(ctx)
	steps := make([]domain.RemediationStep, 0, len(r.Findings))
	for i, f := range r.Findings {
		if err := ctx.Err(); err != nil {
			return domain.ScoredReport{}, err
		}
		suggestion, err := s.suggester.Suggest(ctx, f)
		if err != nil {
			logger.Warn().Err(err).Str("resource_name", f.ResourceName).Msg("remediation suggestion failed")
			suggestion = remediation.Unavailable
		}
		r.Findings[i].Remediation = suggestion
		steps = append(steps, domain.RemediationStep{
			RuleID:       f.RuleID,
			ResourceName: f.ResourceName,
			Remediation:  suggestion,
		})
	}
	r.RemediationSteps = steps
	r.Metadata.LastUpdated = s.now().UTC().Format(time.RFC3339)

	if _, err := s.put(ctx, key, r); err != nil {
		return domain.ScoredReport{}, err
	}
	return r, nil
}

// Reindex rebuilds the index from the blob store and returns the number of
// indexed reports. Unreadable blobs are skipped. Index writes commit together.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	keys, err := s.blobs.List(ctx, KeyPrefix)
	if err != nil {
		return 0, err
	}

	logger := zerolog.Ctx(ctx)
	entries := make([]domain.ReportEntry, 0, len(keys))
	for _, key := range keys {
		if path.Ext(key) != ".json" {
			continue
		}
		r, err := s.read(ctx, key)
		if err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("skipping unreadable report")
			continue
		}
		entry := r.Entry(key)
		if entry.ReportID == report.UnknownValue {
			// Legacy documents without an id are addressed by their file name.
			entry.ReportID = strings.TrimSuffix(path.Base(key), ".json")
		}
		entries = append(entries, entry)
	}

	err = s.index.InTransaction(ctx, func(ctx context.Context) error {
		for _, entry := range entries {
			if err := s.index.Upsert(ctx, adapters.MapReportEntryDomainToStore(entry, s.now())); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to index reports: %w", err)
	}
	return len(entries), nil
}
