package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dataportal-api/internal/models"
)

func TestBestVersionRepositoryUpsertAndDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBestVersionRepository(db)
	key := models.NewRevisionKey("mace-head", "classification", time.Date(2018, 6, 9, 12, 0, 0, 0, time.UTC))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (site_id, product_id, measurement_date) DO UPDATE SET uuid = EXCLUDED.uuid")).
		WithArgs("mace-head", "classification", time.Date(2018, 6, 9, 0, 0, 0, 0, time.UTC), "u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM best_version_index WHERE site_id = $1 AND product_id = $2 AND measurement_date = $3")).
		WithArgs("mace-head", "classification", key.MeasurementDate).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(context.Background(), tx, key, "u1"))
	require.NoError(t, repo.Delete(context.Background(), tx, key))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBestVersionRepositoryGetMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBestVersionRepository(db)
	key := models.NewRevisionKey("mace-head", "classification", time.Date(2018, 6, 9, 0, 0, 0, 0, time.UTC))

	mock.ExpectQuery(regexp.QuoteMeta("FROM best_version_index")).
		WithArgs("mace-head", "classification", key.MeasurementDate).
		WillReturnRows(sqlmock.NewRows([]string{"site_id", "product_id", "measurement_date", "uuid", "updated_at"}))

	_, err := repo.Get(context.Background(), nil, key)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBestVersionRepositorySearchBest(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBestVersionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM best_version_index b\nJOIN file_revision f ON f.uuid = b.uuid\nLEFT JOIN model_types m ON m.id = f.model_id WHERE f.site_id = ANY($1) AND f.legacy = FALSE ORDER BY")).
		WithArgs(pq.Array([]string{"mace-head"})).
		WillReturnRows(addRevisionRow(sqlmock.NewRows(revisionColumns), "u1", "", nil))

	list, err := repo.SearchBest(context.Background(), models.FileRevisionFilter{SiteIDs: []string{"mace-head"}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "u1", list[0].UUID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBestVersionRepositoryListEntries(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBestVersionRepository(db)
	date := time.Date(2018, 6, 9, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT f.site_id, f.product_id, f.measurement_date, f.uuid, f.updated_at FROM best_version_index f WHERE f.product_id = ANY($1) AND f.measurement_date = $2 ORDER BY")).
		WithArgs(pq.Array([]string{"classification"}), date).
		WillReturnRows(sqlmock.NewRows([]string{"site_id", "product_id", "measurement_date", "uuid", "updated_at"}).
			AddRow("mace-head", "classification", date, "u1", time.Now()))

	entries, err := repo.ListEntries(context.Background(), models.FileRevisionFilter{ProductIDs: []string{"classification"}, Date: &date, ModelIDs: []string{"ignored"}})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "mace-head/classification/2018-06-09", entries[0].Key().String())
	assert.NoError(t, mock.ExpectationsWereMet())
}
