package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wisdom-oss/service-water-usage-history/internal/domain/usage"
)

var recordColumns = []string{"time", "amount", "usage_type", "consumer", "municipality"}

func setupRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	return NewRepository(db, "water_usage"), mock
}

func TestRepository_LastModified(t *testing.T) {
	repo, mock := setupRepository(t)

	ts := time.Date(2024, 3, 1, 12, 30, 15, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(queryLastModified)).
		WithArgs("water_usage").
		WillReturnRows(sqlmock.NewRows([]string{"timestamp"}).AddRow(ts))

	got, err := repo.LastModified(context.Background())
	require.NoError(t, err)
	assert.True(t, ts.Equal(got))
}

func TestRepository_LastModified_EmptyAuditLog(t *testing.T) {
	repo, mock := setupRepository(t)
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	repo.now = func() time.Time { return now }

	mock.ExpectQuery(regexp.QuoteMeta(queryLastModified)).
		WithArgs("water_usage").
		WillReturnError(sql.ErrNoRows)

	got, err := repo.LastModified(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now, got)
}

func TestRepository_LastModified_Error(t *testing.T) {
	repo, mock := setupRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta(queryLastModified)).
		WillReturnError(errors.New("connection refused"))

	_, err := repo.LastModified(context.Background())
	assert.Error(t, err)
}

func TestRepository_List(t *testing.T) {
	repo, mock := setupRepository(t)

	ts := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(queryUsages)).
		WithArgs(10, 20).
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow(ts, 12.5, "a5d4c6b2-1111-4e8f-9a3b-000000000001", nil, "033510001001").
			AddRow(ts, 3.0, nil, nil, nil))

	records, err := repo.List(context.Background(), usage.Page{Size: 10, Number: 3})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, 12.5, records[0].Amount)
	require.NotNil(t, records[0].UsageType)
	assert.Equal(t, "a5d4c6b2-1111-4e8f-9a3b-000000000001", *records[0].UsageType)
	assert.Nil(t, records[0].ConsumerID)
	require.NotNil(t, records[0].ARS)
	assert.Equal(t, "033510001001", *records[0].ARS)

	assert.Nil(t, records[1].UsageType)
	assert.Nil(t, records[1].ARS)
}

func TestRepository_List_Empty(t *testing.T) {
	repo, mock := setupRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta(queryUsages)).
		WithArgs(5, 0).
		WillReturnRows(sqlmock.NewRows(recordColumns))

	records, err := repo.List(context.Background(), usage.Page{Size: 5, Number: 1})
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestRepository_ConsumerExists(t *testing.T) {
	repo, mock := setupRepository(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(queryConsumerExists)).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ConsumerExists(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRepository_ListByConsumer(t *testing.T) {
	repo, mock := setupRepository(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(queryConsumerUsages)).
		WithArgs(id.String(), 100, 0).
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow(time.Now(), 1.0, nil, id.String(), nil))

	records, err := repo.ListByConsumer(context.Background(), id, usage.Page{Size: 100, Number: 1})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].ConsumerID)
	assert.Equal(t, id.String(), *records[0].ConsumerID)
}

func TestRepository_ListByConsumer_QueryError(t *testing.T) {
	repo, mock := setupRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta(queryConsumerUsages)).
		WillReturnError(errors.New("timeout"))

	_, err := repo.ListByConsumer(context.Background(), uuid.New(), usage.Page{Size: 1, Number: 1})
	assert.Error(t, err)
}

func TestRepository_ListByMunicipality(t *testing.T) {
	repo, mock := setupRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta(queryMunicipalUsages)).
		WithArgs("033510001001", 20, 40).
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow(time.Now(), 4.2, nil, nil, "033510001001"))

	records, err := repo.ListByMunicipality(context.Background(), "033510001001", usage.Page{Size: 20, Number: 3})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].ARS)
	assert.Equal(t, "033510001001", *records[0].ARS)
}

func TestRepository_ListByUsageType(t *testing.T) {
	repo, mock := setupRepository(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(queryTypedUsages)).
		WithArgs(id.String(), 10, 0).
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow(time.Now(), 1.0, id.String(), nil, nil).
			AddRow(time.Now(), 2.0, id.String(), nil, nil))

	records, err := repo.ListByUsageType(context.Background(), id, usage.Page{Size: 10, Number: 1})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.NotNil(t, records[1].UsageType)
	assert.Equal(t, id.String(), *records[1].UsageType)
}

func TestRepository_ListByUsageType_ScanError(t *testing.T) {
	repo, mock := setupRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta(queryTypedUsages)).
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow(time.Now(), "not-a-number", nil, nil, nil))

	_, err := repo.ListByUsageType(context.Background(), uuid.New(), usage.Page{Size: 10, Number: 1})
	assert.Error(t, err)
}
