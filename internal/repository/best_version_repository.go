package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/dataportal-api/internal/models"
)

// BestVersionRepository maintains the materialised best-version index.
type BestVersionRepository struct {
	db *sqlx.DB
}

// NewBestVersionRepository constructs the repository.
func NewBestVersionRepository(db *sqlx.DB) *BestVersionRepository {
	return &BestVersionRepository{db: db}
}

func (r *BestVersionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Get returns the entry for key or sql.ErrNoRows.
func (r *BestVersionRepository) Get(ctx context.Context, exec sqlx.ExtContext, key models.RevisionKey) (*models.BestVersionEntry, error) {
	const query = `SELECT site_id, product_id, measurement_date, uuid, updated_at FROM best_version_index
WHERE site_id = $1 AND product_id = $2 AND measurement_date = $3`
	var entry models.BestVersionEntry
	if err := sqlx.GetContext(ctx, r.exec(exec), &entry, query, key.SiteID, key.ProductID, key.MeasurementDate); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Upsert points key at uuid.
func (r *BestVersionRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, key models.RevisionKey, uuid string) error {
	const query = `INSERT INTO best_version_index (site_id, product_id, measurement_date, uuid, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (site_id, product_id, measurement_date) DO UPDATE SET uuid = EXCLUDED.uuid, updated_at = EXCLUDED.updated_at`
	if _, err := r.exec(exec).ExecContext(ctx, query, key.SiteID, key.ProductID, key.MeasurementDate, uuid, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert best version %s: %w", key, err)
	}
	return nil
}

// Delete drops the entry for key. Deleting a missing entry is not an error.
func (r *BestVersionRepository) Delete(ctx context.Context, exec sqlx.ExtContext, key models.RevisionKey) error {
	const query = `DELETE FROM best_version_index WHERE site_id = $1 AND product_id = $2 AND measurement_date = $3`
	if _, err := r.exec(exec).ExecContext(ctx, query, key.SiteID, key.ProductID, key.MeasurementDate); err != nil {
		return fmt.Errorf("delete best version %s: %w", key, err)
	}
	return nil
}

// SearchBest serves the fast read path: the indexed revision of every matching key.
func (r *BestVersionRepository) SearchBest(ctx context.Context, filter models.FileRevisionFilter) ([]models.FileRevision, error) {
	filter.IncludeSuperseded = true
	conditions, args := revisionConditions(filter)

	var builder strings.Builder
	builder.WriteString("SELECT ")
	builder.WriteString(fileRevisionColumns)
	builder.WriteString(` FROM best_version_index b
JOIN file_revision f ON f.uuid = b.uuid
LEFT JOIN model_types m ON m.id = f.model_id`)
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(fileRevisionOrder)
	if filter.Limit > 0 {
		builder.WriteString(fmt.Sprintf(" LIMIT %d", filter.Limit))
	}

	var revisions []models.FileRevision
	if err := r.db.SelectContext(ctx, &revisions, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("search best versions: %w", err)
	}
	return revisions, nil
}

// ListEntries returns index entries for the sites, products and date range in filter.
func (r *BestVersionRepository) ListEntries(ctx context.Context, filter models.FileRevisionFilter) ([]models.BestVersionEntry, error) {
	indexFilter := models.FileRevisionFilter{
		SiteIDs:           filter.SiteIDs,
		ProductIDs:        filter.ProductIDs,
		DateFrom:          filter.DateFrom,
		DateTo:            filter.DateTo,
		Date:              filter.Date,
		IncludeLegacy:     true,
		IncludeSuperseded: true,
	}
	conditions, args := revisionConditions(indexFilter)

	query := "SELECT f.site_id, f.product_id, f.measurement_date, f.uuid, f.updated_at FROM best_version_index f"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY f.measurement_date DESC, f.site_id, f.product_id"

	var entries []models.BestVersionEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list best version entries: %w", err)
	}
	return entries, nil
}
