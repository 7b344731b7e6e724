package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/marcboeker/go-duckdb/v2"
)

const AuditReportsSchema = `
	CREATE TABLE IF NOT EXISTS audit_reports (
		report_id VARCHAR NOT NULL PRIMARY KEY,
		storage_key VARCHAR NOT NULL,
		source_file VARCHAR,
		status VARCHAR,
		score INTEGER NOT NULL,
		total_violations INTEGER NOT NULL,
		by_severity VARCHAR,
		generated_at TIMESTAMP NOT NULL
	);
`

var bootQueries = []string{
	AuditReportsSchema,
}

type Settings struct {
	DbPath string
}

func NewDB(settings Settings) (*sql.DB, error) {
	c, err := duckdb.NewConnector(fmt.Sprintf("%s?threads=4", settings.DbPath), func(exec driver.ExecerContext) error {
		bootQueries := append([]string{}, bootQueries...)

		for _, query := range bootQueries {
			_, err := exec.ExecContext(context.Background(), query, nil)
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(c)
	return db, nil
}
