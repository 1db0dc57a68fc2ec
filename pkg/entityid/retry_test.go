package entityid

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/stockroom/pkg/observability"
)

var mappingColumns = []string{"id", "organization_id", "entity_type", "prefix", "sequence", "internal_id", "created_at", "updated_at"}

func expectAttempt(mock sqlmock.Sqlmock, next int64, insertErr error) {
	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("entity_ids:1:item").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM entity_ids WHERE organization_id = \$1 AND entity_type = \$2 AND internal_id = \$3`).
		WithArgs(int64(1), "item", int64(501)).
		WillReturnRows(sqlmock.NewRows(mappingColumns))
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(int64(1), "item").
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(next))

	insert := mock.ExpectQuery("INSERT INTO entity_ids")
	if insertErr != nil {
		insert.WillReturnError(insertErr)
		mock.ExpectRollback()
		return
	}
	insert.WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectCommit()
}

func TestGeneratePublicID_RetriesConflicts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	alloc := NewAllocator(db, WithBackoff(time.Microsecond), WithMetrics(metrics))

	expectAttempt(mock, 4, &pq.Error{Code: "23505"})
	expectAttempt(mock, 5, &pq.Error{Code: "40P01"})
	expectAttempt(mock, 5, nil)

	id, err := alloc.GeneratePublicID(context.Background(), 1, "item", 501)
	require.NoError(t, err)
	assert.Equal(t, int64(5), id.Sequence)
	assert.Equal(t, "ITM-00000005", id.PublicID())
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.EntityIDAllocationRetries.WithLabelValues("item")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EntityIDAllocationsTotal.WithLabelValues("item", "allocated")))
}

func TestGeneratePublicID_RetriesExhausted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	alloc := NewAllocator(db, WithBackoff(time.Microsecond), WithMaxAttempts(2))

	expectAttempt(mock, 1, &pq.Error{Code: "40001"})
	expectAttempt(mock, 1, &pq.Error{Code: "40001"})

	_, err = alloc.GeneratePublicID(context.Background(), 1, "item", 501)
	require.Error(t, err)

	var allocErr *AllocationError
	require.True(t, errors.As(err, &allocErr))
	assert.Equal(t, 2, allocErr.Attempts)
	assert.Equal(t, "item", allocErr.EntityType)
	assert.Equal(t, int64(501), allocErr.InternalID)
	assert.True(t, errors.Is(err, ErrRetriesExhausted))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGeneratePublicID_NonRetryableError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	alloc := NewAllocator(db, WithBackoff(time.Microsecond))
	expectAttempt(mock, 1, errors.New("relation \"entity_ids\" does not exist"))

	_, err = alloc.GeneratePublicID(context.Background(), 1, "item", 501)
	require.Error(t, err)

	var allocErr *AllocationError
	require.True(t, errors.As(err, &allocErr))
	assert.Equal(t, 1, allocErr.Attempts)
	assert.False(t, errors.Is(err, ErrRetriesExhausted))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGeneratePublicID_ExistingMapping(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	alloc := NewAllocator(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM entity_ids").
		WillReturnRows(sqlmock.NewRows(mappingColumns).AddRow(3, 1, "item", "ITM", 7, 501, now, now))
	mock.ExpectCommit()

	id, err := alloc.GeneratePublicID(context.Background(), 1, "item", 501)
	require.NoError(t, err)
	assert.Equal(t, "ITM-00000007", id.PublicID())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDialects(t *testing.T) {
	pg := Postgres{}
	assert.True(t, pg.IsRetryable(&pq.Error{Code: "23505"}))
	assert.True(t, pg.IsRetryable(&pq.Error{Code: "40001"}))
	assert.True(t, pg.IsRetryable(&pq.Error{Code: "55P03"}))
	assert.False(t, pg.IsRetryable(&pq.Error{Code: "23503"}))
	assert.False(t, pg.IsRetryable(errors.New("boom")))

	lite := SQLite{}
	assert.True(t, lite.IsRetryable(errors.New("UNIQUE constraint failed: entity_ids.organization_id")))
	assert.True(t, lite.IsRetryable(errors.New("database is locked")))
	assert.True(t, lite.IsRetryable(fmt.Errorf("insert: %w", errors.New("database table is locked: entity_ids"))))
	assert.False(t, lite.IsRetryable(errors.New("no such table: entity_ids")))
	assert.False(t, lite.IsRetryable(errors.New("item scanner busy")))
	assert.False(t, lite.IsRetryable(errors.New("FOREIGN KEY constraint failed")))
	assert.False(t, lite.IsRetryable(nil))

	d, err := DialectFor("postgres")
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())
	d, err = DialectFor("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())
	_, err = DialectFor("mysql")
	assert.Error(t, err)
}
