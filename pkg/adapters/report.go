package adapters

import (
	"time"

	"github.com/de-tools/policy-atlas/pkg/models/api"
	"github.com/de-tools/policy-atlas/pkg/models/domain"
	"github.com/de-tools/policy-atlas/pkg/models/store"
)

func MapSummaryDomainToMap(s domain.AuditSummary) map[string]int {
	res := make(map[string]int, len(domain.Severities))
	for _, sev := range domain.Severities {
		res[string(sev)] = s.BySeverity[sev]
	}
	return res
}

func MapReportEntryDomainToApi(e domain.ReportEntry) api.ReportListItem {
	return api.ReportListItem{
		ReportID:        e.ReportID,
		GeneratedAt:     e.GeneratedAt,
		SourceFile:      e.SourceFile,
		Status:          e.Status,
		Score:           e.Score,
		TotalViolations: e.Summary.TotalViolations,
		BySeverity:      MapSummaryDomainToMap(e.Summary),
	}
}

// MapReportEntryDomainToStore converts a listing entry into an index row.
// An unparsable generated_at is indexed as now.
func MapReportEntryDomainToStore(e domain.ReportEntry, now time.Time) store.ReportRecord {
	generatedAt, err := time.Parse(time.RFC3339, e.GeneratedAt)
	if err != nil {
		generatedAt = now
	}
	return store.ReportRecord{
		ReportID:        e.ReportID,
		StorageKey:      e.Key,
		SourceFile:      e.SourceFile,
		Status:          e.Status,
		Score:           e.Score,
		TotalViolations: e.Summary.TotalViolations,
		BySeverity:      MapSummaryDomainToMap(e.Summary),
		GeneratedAt:     generatedAt.UTC(),
	}
}

func MapReportRecordStoreToDomain(r store.ReportRecord) domain.ReportEntry {
	bySeverity := make(map[domain.Severity]int, len(domain.Severities))
	for _, sev := range domain.Severities {
		bySeverity[sev] = r.BySeverity[string(sev)]
	}
	return domain.ReportEntry{
		ReportID:    r.ReportID,
		Key:         r.StorageKey,
		GeneratedAt: r.GeneratedAt.UTC().Format(time.RFC3339),
		SourceFile:  r.SourceFile,
		Status:      r.Status,
		Score:       r.Score,
		Summary: domain.AuditSummary{
			TotalViolations: r.TotalViolations,
			BySeverity:      bySeverity,
		},
	}
}
