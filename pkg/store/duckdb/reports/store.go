package reports

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/de-tools/policy-atlas/pkg/models/store"
	"github.com/de-tools/policy-atlas/pkg/store/duckdb"
)

var ErrNotFound = errors.New("report not found")

// Store indexes stored reports so listings do not have to read every blob.
// Writes join the transaction carried in ctx, if any.
type Store interface {
	Upsert(ctx context.Context, record store.ReportRecord) error
	Get(ctx context.Context, reportID string) (*store.ReportRecord, error)
	List(ctx context.Context) ([]store.ReportRecord, error)
	Delete(ctx context.Context, reportID string) error
	// InTransaction runs fn so that every write it makes commits together.
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type reportStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &reportStore{
		db: db,
	}, nil
}

func (s *reportStore) exec(ctx context.Context) execer {
	if tx := duckdb.GetTransaction(ctx); tx != nil {
		return tx
	}
	return s.db
}

func (s *reportStore) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return duckdb.RunInTransaction(ctx, s.db, fn)
}

func (s *reportStore) Upsert(ctx context.Context, record store.ReportRecord) error {
	if record.ReportID == "" {
		return fmt.Errorf("report id is required")
	}

	bySeverity, err := json.Marshal(record.BySeverity)
	if err != nil {
		return fmt.Errorf("marshal severity summary: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO audit_reports (
			report_id, storage_key, source_file, status, score,
			total_violations, by_severity, generated_at
		) VALUES (
			?, ?, ?, ?, ?, ?, ?, ?
		)`

	_, err = s.exec(ctx).ExecContext(ctx, query,
		record.ReportID,
		record.StorageKey,
		record.SourceFile,
		record.Status,
		record.Score,
		record.TotalViolations,
		string(bySeverity),
		record.GeneratedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert report %s: %w", record.ReportID, err)
	}
	return nil
}

func (s *reportStore) Get(ctx context.Context, reportID string) (*store.ReportRecord, error) {
	query := `
		SELECT report_id, storage_key, source_file, status, score, total_violations, by_severity, generated_at
		FROM audit_reports
		WHERE report_id = ?
	`
	rows, err := s.db.QueryContext(ctx, query, reportID)
	if err != nil {
		return nil, fmt.Errorf("query report %s: %w", reportID, err)
	}
	defer rows.Close()

	records, err := scanReportRows(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, reportID)
	}
	return &records[0], nil
}

func (s *reportStore) List(ctx context.Context) ([]store.ReportRecord, error) {
	query := `
		SELECT report_id, storage_key, source_file, status, score, total_violations, by_severity, generated_at
		FROM audit_reports
		ORDER BY generated_at DESC, report_id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()
	return scanReportRows(rows)
}

func (s *reportStore) Delete(ctx context.Context, reportID string) error {
	res, err := s.exec(ctx).ExecContext(ctx, `DELETE FROM audit_reports WHERE report_id = ?`, reportID)
	if err != nil {
		return fmt.Errorf("delete report %s: %w", reportID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete report %s: %w", reportID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, reportID)
	}
	return nil
}

func scanReportRows(rows *sql.Rows) ([]store.ReportRecord, error) {
	records := make([]store.ReportRecord, 0)
	for rows.Next() {
		var (
			id, key                sql.NullString
			sourceFile, status     sql.NullString
			bySeverityRaw          sql.NullString
			score, totalViolations int
			generatedAt            time.Time
		)
		if err := rows.Scan(&id, &key, &sourceFile, &status, &score, &totalViolations, &bySeverityRaw, &generatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		bySeverity := map[string]int{}
		if bySeverityRaw.Valid && bySeverityRaw.String != "" {
			_ = json.Unmarshal([]byte(bySeverityRaw.String), &bySeverity)
		}
		records = append(records, store.ReportRecord{
			ReportID:        id.String,
			StorageKey:      key.String,
			SourceFile:      sourceFile.String,
			Status:          status.String,
			Score:           score,
			TotalViolations: totalViolations,
			BySeverity:      bySeverity,
			GeneratedAt:     generatedAt.UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return records, nil
}
