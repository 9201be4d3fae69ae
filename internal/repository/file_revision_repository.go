package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/dataportal-api/internal/models"
)

const fileRevisionColumns = `f.uuid, f.checksum, f.filename, f.s3key, f.bucket, f.site_id, f.product_id, f.model_id, m.optimum_order,
f.measurement_date, f.format, f.size, f.volatile_override, f.legacy, f.pid, f.superseded_by, f.source_file_ids,
f.created_at, f.updated_at, f.released_at`

const fileRevisionFrom = `FROM file_revision f LEFT JOIN model_types m ON m.id = f.model_id`

const fileRevisionOrder = ` ORDER BY f.measurement_date DESC, m.optimum_order ASC NULLS FIRST, f.updated_at DESC, f.uuid ASC`

// RevisionAttributes carries the non-content fields an amendment may touch.
type RevisionAttributes struct {
	PID              *string
	Legacy           *bool
	VolatileOverride *bool
}

// FileRevisionRepository persists every submitted file revision.
type FileRevisionRepository struct {
	db *sqlx.DB
}

// NewFileRevisionRepository constructs the repository.
func NewFileRevisionRepository(db *sqlx.DB) *FileRevisionRepository {
	return &FileRevisionRepository{db: db}
}

func (r *FileRevisionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// GetByUUID loads one revision, returning sql.ErrNoRows when absent.
func (r *FileRevisionRepository) GetByUUID(ctx context.Context, uuid string) (*models.FileRevision, error) {
	return r.Find(ctx, nil, uuid)
}

// Find loads one revision through exec, so callers may read inside a transaction.
func (r *FileRevisionRepository) Find(ctx context.Context, exec sqlx.ExtContext, uuid string) (*models.FileRevision, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE f.uuid = $1", fileRevisionColumns, fileRevisionFrom)
	var rev models.FileRevision
	if err := sqlx.GetContext(ctx, r.exec(exec), &rev, query, uuid); err != nil {
		return nil, err
	}
	return &rev, nil
}

// Search lists revisions matching filter ordered by date, model rank and recency.
func (r *FileRevisionRepository) Search(ctx context.Context, filter models.FileRevisionFilter) ([]models.FileRevision, error) {
	conditions, args := revisionConditions(filter)

	var builder strings.Builder
	builder.WriteString("SELECT ")
	builder.WriteString(fileRevisionColumns)
	builder.WriteString(" ")
	builder.WriteString(fileRevisionFrom)
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
		return nil, fmt.Errorf("search file revisions: %w", err)
	}
	return revisions, nil
}

// LockKey takes a transaction scoped advisory lock serialising writers of one key.
func (r *FileRevisionRepository) LockKey(ctx context.Context, exec sqlx.ExtContext, key models.RevisionKey) error {
	if _, err := r.exec(exec).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key.String()); err != nil {
		return fmt.Errorf("lock revision key %s: %w", key, err)
	}
	return nil
}

// ListActiveByKey returns the non-superseded revisions competing for key.
func (r *FileRevisionRepository) ListActiveByKey(ctx context.Context, exec sqlx.ExtContext, key models.RevisionKey) ([]models.FileRevision, error) {
	query := fmt.Sprintf(`SELECT %s %s
WHERE f.site_id = $1 AND f.product_id = $2 AND f.measurement_date = $3 AND f.superseded_by IS NULL`+fileRevisionOrder,
		fileRevisionColumns, fileRevisionFrom)
	var revisions []models.FileRevision
	if err := sqlx.SelectContext(ctx, r.exec(exec), &revisions, query, key.SiteID, key.ProductID, key.MeasurementDate); err != nil {
		return nil, fmt.Errorf("list revisions for %s: %w", key, err)
	}
	return revisions, nil
}

// Insert stores a new revision.
func (r *FileRevisionRepository) Insert(ctx context.Context, exec sqlx.ExtContext, rev *models.FileRevision) error {
	if rev == nil {
		return fmt.Errorf("file revision payload is nil")
	}
	now := time.Now().UTC()
	if rev.CreatedAt.IsZero() {
		rev.CreatedAt = now
	}
	if rev.UpdatedAt.IsZero() {
		rev.UpdatedAt = now
	}
	if rev.ReleasedAt.IsZero() {
		rev.ReleasedAt = rev.UpdatedAt
	}
	if rev.SourceFileIDs == nil {
		rev.SourceFileIDs = pq.StringArray{}
	}

	const query = `
INSERT INTO file_revision (uuid, checksum, filename, s3key, bucket, site_id, product_id, model_id, measurement_date, format, size,
volatile_override, legacy, pid, superseded_by, source_file_ids, created_at, updated_at, released_at)
VALUES (:uuid, :checksum, :filename, :s3key, :bucket, :site_id, :product_id, :model_id, :measurement_date, :format, :size,
:volatile_override, :legacy, :pid, :superseded_by, :source_file_ids, :created_at, :updated_at, :released_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, rev); err != nil {
		return fmt.Errorf("insert file revision: %w", err)
	}
	return nil
}

// UpdateContent rewrites the content fields of a volatile revision in place.
func (r *FileRevisionRepository) UpdateContent(ctx context.Context, exec sqlx.ExtContext, rev *models.FileRevision) error {
	if rev == nil {
		return fmt.Errorf("file revision payload is nil")
	}
	if rev.SourceFileIDs == nil {
		rev.SourceFileIDs = pq.StringArray{}
	}
	const query = `UPDATE file_revision SET checksum = $1, filename = $2, s3key = $3, bucket = $4, format = $5, size = $6,
volatile_override = $7, legacy = $8, source_file_ids = $9, updated_at = $10, released_at = $11 WHERE uuid = $12`
	result, err := r.exec(exec).ExecContext(ctx, query,
		rev.Checksum, rev.Filename, rev.S3Key, rev.Bucket, rev.Format, rev.Size,
		rev.VolatileOverride, rev.Legacy, rev.SourceFileIDs, rev.UpdatedAt, rev.ReleasedAt, rev.UUID)
	if err != nil {
		return fmt.Errorf("update file revision: %w", err)
	}
	return requireAffected(result, "update file revision")
}

// MarkSuperseded points uuid at the revision that replaced it.
func (r *FileRevisionRepository) MarkSuperseded(ctx context.Context, exec sqlx.ExtContext, uuid, supersededBy string) error {
	const query = `UPDATE file_revision SET superseded_by = $1 WHERE uuid = $2 AND superseded_by IS NULL`
	result, err := r.exec(exec).ExecContext(ctx, query, supersededBy, uuid)
	if err != nil {
		return fmt.Errorf("supersede file revision: %w", err)
	}
	return requireAffected(result, "supersede file revision")
}

// SetAttributes applies an amendment. Content and timestamps are left untouched.
func (r *FileRevisionRepository) SetAttributes(ctx context.Context, exec sqlx.ExtContext, uuid string, attrs RevisionAttributes) error {
	sets := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)
	if attrs.PID != nil {
		args = append(args, *attrs.PID)
		sets = append(sets, fmt.Sprintf("pid = $%d", len(args)))
	}
	if attrs.Legacy != nil {
		args = append(args, *attrs.Legacy)
		sets = append(sets, fmt.Sprintf("legacy = $%d", len(args)))
	}
	if attrs.VolatileOverride != nil {
		args = append(args, *attrs.VolatileOverride)
		sets = append(sets, fmt.Sprintf("volatile_override = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, uuid)
	query := fmt.Sprintf("UPDATE file_revision SET %s WHERE uuid = $%d", strings.Join(sets, ", "), len(args))
	result, err := r.exec(exec).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("amend file revision: %w", err)
	}
	return requireAffected(result, "amend file revision")
}

// ListKeys returns the distinct keys with at least one revision matching filter.
func (r *FileRevisionRepository) ListKeys(ctx context.Context, filter models.FileRevisionFilter) ([]models.RevisionKey, error) {
	filter.IncludeLegacy = true
	filter.IncludeSuperseded = true
	conditions, args := revisionConditions(filter)

	query := "SELECT DISTINCT f.site_id, f.product_id, f.measurement_date FROM file_revision f"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY f.measurement_date DESC, f.site_id, f.product_id"

	var rows []struct {
		SiteID          string    `db:"site_id"`
		ProductID       string    `db:"product_id"`
		MeasurementDate time.Time `db:"measurement_date"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list revision keys: %w", err)
	}
	keys := make([]models.RevisionKey, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, models.NewRevisionKey(row.SiteID, row.ProductID, row.MeasurementDate))
	}
	return keys, nil
}

// CountExisting counts how many of uuids are stored revisions.
func (r *FileRevisionRepository) CountExisting(ctx context.Context, uuids []string) (int, error) {
	if len(uuids) == 0 {
		return 0, nil
	}
	var count int
	const query = `SELECT COUNT(*) FROM file_revision WHERE uuid = ANY($1::uuid[])`
	if err := r.db.GetContext(ctx, &count, query, pq.Array(uuids)); err != nil {
		return 0, fmt.Errorf("count source files: %w", err)
	}
	return count, nil
}

// revisionConditions renders filter against the file_revision alias f.
func revisionConditions(filter models.FileRevisionFilter) ([]string, []interface{}) {
	conditions := make([]string, 0, 8)
	args := make([]interface{}, 0, 8)

	if len(filter.SiteIDs) > 0 {
		args = append(args, pq.Array(filter.SiteIDs))
		conditions = append(conditions, fmt.Sprintf("f.site_id = ANY($%d)", len(args)))
	}
	if len(filter.ProductIDs) > 0 {
		args = append(args, pq.Array(filter.ProductIDs))
		conditions = append(conditions, fmt.Sprintf("f.product_id = ANY($%d)", len(args)))
	}
	if len(filter.ModelIDs) > 0 {
		args = append(args, pq.Array(filter.ModelIDs))
		conditions = append(conditions, fmt.Sprintf("f.model_id = ANY($%d)", len(args)))
	}
	if filter.Date != nil {
		args = append(args, models.TruncateDay(*filter.Date))
		conditions = append(conditions, fmt.Sprintf("f.measurement_date = $%d", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, models.TruncateDay(*filter.DateFrom))
		conditions = append(conditions, fmt.Sprintf("f.measurement_date >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, models.TruncateDay(*filter.DateTo))
		conditions = append(conditions, fmt.Sprintf("f.measurement_date <= $%d", len(args)))
	}
	if filter.ReleasedBefore != nil {
		args = append(args, *filter.ReleasedBefore)
		conditions = append(conditions, fmt.Sprintf("f.released_at < $%d", len(args)))
	}
	if !filter.IncludeLegacy {
		conditions = append(conditions, "f.legacy = FALSE")
	}
	if !filter.IncludeSuperseded {
		conditions = append(conditions, "f.superseded_by IS NULL")
	}
	return conditions, args
}

func requireAffected(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
