package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dataportal-api/internal/models"
)

var revisionColumns = []string{
	"uuid", "checksum", "filename", "s3key", "bucket", "site_id", "product_id", "model_id", "optimum_order",
	"measurement_date", "format", "size", "volatile_override", "legacy", "pid", "superseded_by", "source_file_ids",
	"created_at", "updated_at", "released_at",
}

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func addRevisionRow(rows *sqlmock.Rows, uuid, model string, order interface{}) *sqlmock.Rows {
	now := time.Date(2018, 6, 10, 8, 0, 0, 0, time.UTC)
	var modelID interface{}
	if model != "" {
		modelID = model
	}
	return rows.AddRow(uuid, "c1", "20180609_mace-head_classification.nc", "20180609_mace-head_classification.nc", "cloudnet-product-volatile",
		"mace-head", "classification", modelID, order, time.Date(2018, 6, 9, 0, 0, 0, 0, time.UTC), "HDF5 (NetCDF4)", 1024,
		nil, false, nil, nil, "{}", now, now, now)
}

func TestFileRevisionRepositoryGetByUUID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFileRevisionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM file_revision f LEFT JOIN model_types m ON m.id = f.model_id WHERE f.uuid = $1")).
		WithArgs("u1").
		WillReturnRows(addRevisionRow(sqlmock.NewRows(revisionColumns), "u1", "", nil))

	rev, err := repo.GetByUUID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", rev.UUID)
	assert.Nil(t, rev.OptimumOrder)
	assert.Nil(t, rev.VolatileOverride)
	assert.Empty(t, rev.SourceFileIDs)
	assert.Equal(t, "mace-head/classification/2018-06-09", rev.Key().String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRevisionRepositoryGetByUUIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFileRevisionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE f.uuid = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByUUID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRevisionRepositorySearchBuildsFilter(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFileRevisionRepository(db)

	from := time.Date(2018, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2018, 6, 30, 15, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE f.site_id = ANY($1) AND f.product_id = ANY($2) AND f.measurement_date >= $3 AND f.measurement_date <= $4 AND f.legacy = FALSE AND f.superseded_by IS NULL ORDER BY f.measurement_date DESC, m.optimum_order ASC NULLS FIRST, f.updated_at DESC, f.uuid ASC")).
		WithArgs(pq.Array([]string{"mace-head"}), pq.Array([]string{"classification"}), from, time.Date(2018, 6, 30, 0, 0, 0, 0, time.UTC)).
		WillReturnRows(addRevisionRow(sqlmock.NewRows(revisionColumns), "u1", "", nil))

	list, err := repo.Search(context.Background(), models.FileRevisionFilter{
		SiteIDs:    []string{"mace-head"},
		ProductIDs: []string{"classification"},
		DateFrom:   &from,
		DateTo:     &to,
	})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRevisionRepositorySearchIncludesLegacyAndSuperseded(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFileRevisionRepository(db)

	mock.ExpectQuery(`LEFT JOIN model_types m ON m.id = f.model_id ORDER BY f.measurement_date DESC.* LIMIT 5$`).
		WillReturnRows(sqlmock.NewRows(revisionColumns))

	list, err := repo.Search(context.Background(), models.FileRevisionFilter{IncludeLegacy: true, IncludeSuperseded: true, Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRevisionRepositoryLockAndListActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFileRevisionRepository(db)
	key := models.NewRevisionKey("bucharest", "model", time.Date(2020, 8, 11, 0, 0, 0, 0, time.UTC))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("bucharest/model/2020-08-11").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE f.site_id = $1 AND f.product_id = $2 AND f.measurement_date = $3 AND f.superseded_by IS NULL")).
		WithArgs("bucharest", "model", key.MeasurementDate).
		WillReturnRows(addRevisionRow(addRevisionRow(sqlmock.NewRows(revisionColumns), "u1", "ecmwf", 1), "u2", "gdas1", 3))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.LockKey(context.Background(), tx, key))
	list, err := repo.ListActiveByKey(context.Background(), tx, key)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	require.Len(t, list, 2)
	assert.Equal(t, 1, list[0].Rank())
	assert.Equal(t, "gdas1", list[1].Model())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRevisionRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFileRevisionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO file_revision")).
		WithArgs("u1", "c1", "f.nc", "f.nc", "cloudnet-product-volatile", "mace-head", "classification", nil,
			sqlmock.AnyArg(), "HDF5 (NetCDF4)", int64(10), nil, false, nil, nil, sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rev := &models.FileRevision{
		UUID: "u1", Checksum: "c1", Filename: "f.nc", S3Key: "f.nc", Bucket: "cloudnet-product-volatile",
		SiteID: "mace-head", ProductID: "classification", MeasurementDate: time.Date(2018, 6, 9, 0, 0, 0, 0, time.UTC),
		Format: "HDF5 (NetCDF4)", Size: 10,
	}
	require.NoError(t, repo.Insert(context.Background(), nil, rev))
	assert.False(t, rev.CreatedAt.IsZero())
	assert.Equal(t, rev.UpdatedAt, rev.ReleasedAt)
	assert.NotNil(t, rev.SourceFileIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRevisionRepositoryUpdateContentNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFileRevisionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE file_revision SET checksum = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateContent(context.Background(), nil, &models.FileRevision{UUID: "gone"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRevisionRepositoryMarkSuperseded(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFileRevisionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE file_revision SET superseded_by = $1 WHERE uuid = $2 AND superseded_by IS NULL")).
		WithArgs("u2", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkSuperseded(context.Background(), nil, "u1", "u2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRevisionRepositorySetAttributes(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFileRevisionRepository(db)

	pid := "https://hdl.handle.net/21.12132/1.abc"
	frozen := false
	mock.ExpectExec(regexp.QuoteMeta("UPDATE file_revision SET pid = $1, volatile_override = $2 WHERE uuid = $3")).
		WithArgs(pid, false, "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetAttributes(context.Background(), nil, "u1", RevisionAttributes{PID: &pid, VolatileOverride: &frozen}))
	require.NoError(t, repo.SetAttributes(context.Background(), nil, "u1", RevisionAttributes{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRevisionRepositoryListKeys(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFileRevisionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT f.site_id, f.product_id, f.measurement_date FROM file_revision f WHERE f.site_id = ANY($1) ORDER BY")).
		WithArgs(pq.Array([]string{"mace-head"})).
		WillReturnRows(sqlmock.NewRows([]string{"site_id", "product_id", "measurement_date"}).
			AddRow("mace-head", "classification", time.Date(2018, 6, 9, 0, 0, 0, 0, time.UTC)))

	keys, err := repo.ListKeys(context.Background(), models.FileRevisionFilter{SiteIDs: []string{"mace-head"}})
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "mace-head/classification/2018-06-09", keys[0].String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRevisionRepositoryCountExisting(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFileRevisionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM file_revision WHERE uuid = ANY($1::uuid[])")).
		WithArgs(pq.Array([]string{"a", "b"})).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	count, err := repo.CountExisting(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = repo.CountExisting(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
