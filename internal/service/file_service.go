package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/dataportal-api/internal/dto"
	"github.com/noah-isme/dataportal-api/internal/models"
	appErrors "github.com/noah-isme/dataportal-api/pkg/errors"
	"github.com/noah-isme/dataportal-api/pkg/export"
	"github.com/noah-isme/dataportal-api/pkg/storage"
)

const (
	resolvePathIndex = "index"
	resolvePathStore = "store"
)

type fileReader interface {
	GetByUUID(ctx context.Context, uuid string) (*models.FileRevision, error)
	Search(ctx context.Context, filter models.FileRevisionFilter) ([]models.FileRevision, error)
}

type bestVersionReader interface {
	SearchBest(ctx context.Context, filter models.FileRevisionFilter) ([]models.FileRevision, error)
}

type blobOpener interface {
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

type downloadSigner interface {
	Generate(fileUUID string) (string, time.Time, error)
	Verify(fileUUID, expires, token string) error
}

var fileCSVHeaders = []string{
	"uuid", "site", "product", "model", "measurementDate", "filename", "checksum",
	"size", "format", "volatile", "legacy", "pid", "updatedAt", "downloadUrl",
}

// FileService serves the read side of the catalog.
type FileService struct {
	files     fileReader
	best      bestVersionReader
	blobs     blobOpener
	signer    downloadSigner
	resolver  *BestVersionResolver
	exporter  *export.CSVExporter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFileService constructs the read service. signer and blobs may be nil,
// in which case responses carry no download link and downloads are refused.
func NewFileService(files fileReader, best bestVersionReader, blobs blobOpener, signer downloadSigner, resolver *BestVersionResolver, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *FileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if resolver == nil {
		resolver = NewBestVersionResolver(NewVolatilityPolicy(0), nil)
	}
	return &FileService{
		files:     files,
		best:      best,
		blobs:     blobs,
		signer:    signer,
		resolver:  resolver,
		exporter:  export.NewCSVExporter(),
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// ResolveBest answers a listing query. Plain best-version queries are served
// from the index; anything asking for versions, models, legacy files or a
// model filter is resolved from the full revision store.
func (s *FileService) ResolveBest(ctx context.Context, query dto.FileQuery) ([]models.FileRevision, error) {
	filter, opts, err := s.parseQuery(query)
	if err != nil {
		return nil, err
	}
	if opts.collapses() && !opts.ShowLegacy && len(filter.ModelIDs) == 0 {
		return s.fromIndex(ctx, filter, opts)
	}
	return s.fromStore(ctx, filter, opts)
}

// Search is the index view: only the current best revision of each key.
func (s *FileService) Search(ctx context.Context, query dto.FileQuery) ([]models.FileRevision, error) {
	if query.AllVersions || query.AllModels || query.ShowLegacy || len(query.Model) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "search only serves current best versions; use /files for version or model listings")
	}
	filter, opts, err := s.parseQuery(query)
	if err != nil {
		return nil, err
	}
	return s.fromIndex(ctx, filter, opts)
}

func (s *FileService) fromIndex(ctx context.Context, filter models.FileRevisionFilter, opts ResolveOptions) ([]models.FileRevision, error) {
	limit := filter.Limit
	if !opts.IncludeVolatile {
		filter.Limit = 0
	}
	start := time.Now()
	revisions, err := s.best.SearchBest(ctx, filter)
	s.metrics.ObserveDBQuery("search_best_versions", time.Since(start))
	if err != nil {
		return nil, s.internal(err, "failed to search best versions")
	}
	s.metrics.RecordResolvePath(resolvePathIndex)

	if !opts.IncludeVolatile {
		revisions = s.dropVolatile(revisions)
	}
	return s.finish(revisions, limit)
}

func (s *FileService) fromStore(ctx context.Context, filter models.FileRevisionFilter, opts ResolveOptions) ([]models.FileRevision, error) {
	limit := filter.Limit
	filter.Limit = 0
	filter.IncludeLegacy = opts.ShowLegacy
	filter.IncludeSuperseded = opts.AllVersions

	start := time.Now()
	candidates, err := s.files.Search(ctx, filter)
	s.metrics.ObserveDBQuery("search_file_revisions", time.Since(start))
	if err != nil {
		return nil, s.internal(err, "failed to search file revisions")
	}
	s.metrics.RecordResolvePath(resolvePathStore)
	return s.finish(s.resolver.Resolve(candidates, opts), limit)
}

func (s *FileService) finish(revisions []models.FileRevision, limit int) ([]models.FileRevision, error) {
	if len(revisions) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no files match the query")
	}
	if limit > 0 && len(revisions) > limit {
		revisions = revisions[:limit]
	}
	return revisions, nil
}

func (s *FileService) dropVolatile(revisions []models.FileRevision) []models.FileRevision {
	now := s.resolver.now()
	kept := revisions[:0]
	for _, rev := range revisions {
		if !s.resolver.Policy().IsVolatile(rev, now) {
			kept = append(kept, rev)
		}
	}
	return kept
}

// GetByUUID returns one revision regardless of its best-version status.
func (s *FileService) GetByUUID(ctx context.Context, uuid string) (*models.FileRevision, error) {
	rev, err := s.files.GetByUUID(ctx, strings.ToLower(uuid))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, s.internal(err, "failed to load file revision")
	}
	return rev, nil
}

// Responses renders revisions with their derived volatility and a signed link.
func (s *FileService) Responses(revisions []models.FileRevision) []dto.FileResponse {
	now := s.resolver.now()
	out := make([]dto.FileResponse, 0, len(revisions))
	for _, rev := range revisions {
		out = append(out, dto.NewFileResponse(rev, s.resolver.Policy().IsVolatile(rev, now), s.downloadURL(rev.UUID)))
	}
	return out
}

// Response renders a single revision.
func (s *FileService) Response(rev models.FileRevision) dto.FileResponse {
	return s.Responses([]models.FileRevision{rev})[0]
}

func (s *FileService) downloadURL(uuid string) string {
	if s.signer == nil {
		return ""
	}
	link, _, err := s.signer.Generate(uuid)
	if err != nil {
		s.logger.Warn("failed to sign download url", zap.String("uuid", uuid), zap.Error(err))
		return ""
	}
	return link
}

// ExportCSV renders a listing for format=csv.
func (s *FileService) ExportCSV(revisions []models.FileRevision) ([]byte, error) {
	dataset := export.Dataset{Headers: fileCSVHeaders}
	for _, resp := range s.Responses(revisions) {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"uuid":            resp.UUID,
			"site":            resp.Site,
			"product":         resp.Product,
			"model":           resp.Model,
			"measurementDate": resp.MeasurementDate,
			"filename":        resp.Filename,
			"checksum":        resp.Checksum,
			"size":            strconv.FormatInt(resp.Size, 10),
			"format":          resp.Format,
			"volatile":        strconv.FormatBool(resp.Volatile),
			"legacy":          strconv.FormatBool(resp.Legacy),
			"pid":             resp.PID,
			"updatedAt":       resp.UpdatedAt.UTC().Format(time.RFC3339),
			"downloadUrl":     resp.DownloadURL,
		})
	}
	body, err := s.exporter.Render(dataset)
	if err != nil {
		return nil, s.internal(err, "failed to render csv")
	}
	return body, nil
}

// Download checks a signed link and opens the file content.
func (s *FileService) Download(ctx context.Context, uuid, expires, token string) (*models.FileRevision, io.ReadCloser, error) {
	if s.signer == nil || s.blobs == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "downloads are disabled")
	}
	uuid = strings.ToLower(uuid)
	if err := s.signer.Verify(uuid, expires, token); err != nil {
		if errors.Is(err, storage.ErrLinkExpired) {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}

	rev, err := s.GetByUUID(ctx, uuid)
	if err != nil {
		return nil, nil, err
	}
	body, err := s.blobs.Open(ctx, rev.Bucket, rev.S3Key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "file content not found")
		}
		s.logger.Error("failed to open file content", zap.String("uuid", rev.UUID), zap.String("bucket", rev.Bucket), zap.Error(err))
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, appErrors.ErrStorageUnavailable.Message)
	}
	return rev, body, nil
}

func (s *FileService) parseQuery(query dto.FileQuery) (models.FileRevisionFilter, ResolveOptions, error) {
	var filter models.FileRevisionFilter
	if err := s.validator.Struct(query); err != nil {
		return filter, ResolveOptions{}, appErrors.Clone(appErrors.ErrValidation, describeValidation(err))
	}

	opts := ResolveOptions{
		AllVersions:     query.AllVersions,
		AllModels:       query.AllModels,
		ShowLegacy:      query.ShowLegacy,
		IncludeVolatile: query.IncludeVolatile == nil || *query.IncludeVolatile,
	}
	filter = models.FileRevisionFilter{
		SiteIDs:    splitValues(query.Site),
		ProductIDs: splitValues(query.Product),
		ModelIDs:   splitValues(query.Model),
		Limit:      query.Limit,
	}

	var err error
	if filter.Date, err = parseOptionalDate(query.Date, "date"); err != nil {
		return filter, opts, err
	}
	if filter.DateFrom, err = parseOptionalDate(query.DateFrom, "dateFrom"); err != nil {
		return filter, opts, err
	}
	if filter.DateTo, err = parseOptionalDate(query.DateTo, "dateTo"); err != nil {
		return filter, opts, err
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateFrom.After(*filter.DateTo) {
		return filter, opts, appErrors.Clone(appErrors.ErrValidation, "dateFrom must not be after dateTo")
	}
	if query.ReleasedBefore != "" {
		released, err := parseTimestamp(query.ReleasedBefore)
		if err != nil {
			return filter, opts, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid releasedBefore %q", query.ReleasedBefore))
		}
		filter.ReleasedBefore = &released
	}
	return filter, opts, nil
}

func (s *FileService) internal(err error, message string) error {
	s.logger.Error(message, zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// splitValues accepts both repeated parameters and comma separated lists.
func splitValues(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseTimestamp(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
