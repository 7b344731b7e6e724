package reports

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/de-tools/policy-atlas/pkg/models/store"
	"github.com/de-tools/policy-atlas/pkg/store/duckdb"
	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db    *sql.DB
	store Store
}

func setupTestDB(t *testing.T) *sql.DB {
	db, err := duckdb.NewDB(duckdb.Settings{DbPath: ":memory:"})
	require.NoError(t, err)
	return db
}

func setupFixture(t *testing.T) *fixture {
	db := setupTestDB(t)
	store, err := NewStore(db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return &fixture{
		db:    db,
		store: store,
	}
}

func record(id string, generatedAt time.Time) store.ReportRecord {
	return store.ReportRecord{
		ReportID:        id,
		StorageKey:      "reports/" + id + ".json",
		SourceFile:      "plan.json",
		Status:          "Completed",
		Score:           90,
		TotalViolations: 2,
		BySeverity:      map[string]int{"high": 1, "medium": 0, "low": 0, "unknown": 1},
		GeneratedAt:     generatedAt,
	}
}

func TestNewStore(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := setupFixture(t)
		assert.NotNil(t, f.store)
	})

	t.Run("nil db", func(t *testing.T) {
		store, err := NewStore(nil)
		assert.Error(t, err)
		assert.Nil(t, store)
	})
}

func TestReportStore_UpsertGet(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("insert", func(t *testing.T) {
		require.NoError(t, f.store.Upsert(ctx, record("r1", at)))

		got, err := f.store.Get(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "reports/r1.json", got.StorageKey)
		assert.Equal(t, 90, got.Score)
		assert.Equal(t, 1, got.BySeverity["high"])
		assert.True(t, at.Equal(got.GeneratedAt))
	})

	t.Run("replace", func(t *testing.T) {
		updated := record("r1", at)
		updated.Score = 75
		require.NoError(t, f.store.Upsert(ctx, updated))

		got, err := f.store.Get(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, 75, got.Score)

		all, err := f.store.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("missing id", func(t *testing.T) {
		assert.Error(t, f.store.Upsert(ctx, record("", at)))
	})

	t.Run("not found", func(t *testing.T) {
		_, err := f.store.Get(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestReportStore_ListNewestFirst(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, f.store.Upsert(ctx, record("old", base)))
	require.NoError(t, f.store.Upsert(ctx, record("new", base.Add(time.Hour))))
	require.NoError(t, f.store.Upsert(ctx, record("mid", base.Add(time.Minute))))

	records, err := f.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "new", records[0].ReportID)
	assert.Equal(t, "mid", records[1].ReportID)
	assert.Equal(t, "old", records[2].ReportID)
}

func TestReportStore_Delete(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Upsert(ctx, record("r1", time.Now())))
	require.NoError(t, f.store.Delete(ctx, "r1"))

	_, err := f.store.Get(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, f.store.Delete(ctx, "r1"), ErrNotFound)
}

func TestReportStore_UpsertInTransaction(t *testing.T) {
	f := setupFixture(t)

	tx, err := f.db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	ctx := duckdb.WithTransaction(context.Background(), tx)

	require.NoError(t, f.store.Upsert(ctx, record("r1", time.Now())))
	require.NoError(t, tx.Rollback())

	_, err = f.store.Get(context.Background(), "r1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReportStore_InTransaction(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	err := f.store.InTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, f.store.Upsert(ctx, record("r1", time.Now())))
		require.NoError(t, f.store.Upsert(ctx, record("r2", time.Now())))
		return errors.New("abort")
	})
	require.Error(t, err)

	records, err := f.store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	err = f.store.InTransaction(ctx, func(ctx context.Context) error {
		return f.store.Upsert(ctx, record("r1", time.Now()))
	})
	require.NoError(t, err)

	records, err = f.store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestReportStore_DatabaseErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s, err := NewStore(db)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("list", func(t *testing.T) {
		mock.ExpectQuery("SELECT report_id").WillReturnError(errors.New("connection reset"))

		_, err := s.List(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
	})

	t.Run("upsert", func(t *testing.T) {
		mock.ExpectExec("INSERT OR REPLACE INTO audit_reports").WillReturnError(errors.New("disk full"))

		err := s.Upsert(ctx, record("r1", time.Now()))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})

	t.Run("scan legacy rows", func(t *testing.T) {
		at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		rows := sqlmock.NewRows([]string{
			"report_id", "storage_key", "source_file", "status", "score", "total_violations", "by_severity", "generated_at",
		}).AddRow("r1", "reports/r1.json", nil, nil, 100, 0, nil, at)
		mock.ExpectQuery("SELECT report_id").WithArgs("r1").WillReturnRows(rows)

		got, err := s.Get(ctx, "r1")
		require.NoError(t, err)
		assert.Empty(t, got.SourceFile)
		assert.Empty(t, got.BySeverity)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}
