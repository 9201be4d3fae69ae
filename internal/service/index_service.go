package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/dataportal-api/internal/dto"
	"github.com/noah-isme/dataportal-api/internal/models"
	appErrors "github.com/noah-isme/dataportal-api/pkg/errors"
	"github.com/noah-isme/dataportal-api/pkg/jobs"
)

type indexAction string

const (
	indexUpserted  indexAction = "upserted"
	indexDeleted   indexAction = "deleted"
	indexUnchanged indexAction = "unchanged"
)

type activeRevisionLister interface {
	ListActiveByKey(ctx context.Context, exec sqlx.ExtContext, key models.RevisionKey) ([]models.FileRevision, error)
}

type indexRevisionStore interface {
	activeRevisionLister
	LockKey(ctx context.Context, exec sqlx.ExtContext, key models.RevisionKey) error
	ListKeys(ctx context.Context, filter models.FileRevisionFilter) ([]models.RevisionKey, error)
}

type indexEntryStore interface {
	bestVersionWriter
	ListEntries(ctx context.Context, filter models.FileRevisionFilter) ([]models.BestVersionEntry, error)
}

// syncIndexEntry recomputes the best revision of key and rewrites its index
// entry through exec. Callers hold the key lock.
func syncIndexEntry(ctx context.Context, exec sqlx.ExtContext, store activeRevisionLister, index bestVersionWriter, resolver *BestVersionResolver, key models.RevisionKey) (indexAction, error) {
	active, err := store.ListActiveByKey(ctx, exec, key)
	if err != nil {
		return "", err
	}
	best := resolver.Best(active, false)

	current, err := index.Get(ctx, exec, key)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("load best version %s: %w", key, err)
	}

	switch {
	case best == nil && current == nil:
		return indexUnchanged, nil
	case best == nil:
		if err := index.Delete(ctx, exec, key); err != nil {
			return "", err
		}
		return indexDeleted, nil
	case current != nil && current.UUID == best.UUID:
		return indexUnchanged, nil
	default:
		if err := index.Upsert(ctx, exec, key, best.UUID); err != nil {
			return "", err
		}
		return indexUpserted, nil
	}
}

// IndexService rebuilds and verifies the materialised best-version index.
type IndexService struct {
	tx       txProvider
	store    indexRevisionStore
	index    indexEntryStore
	resolver *BestVersionResolver
	metrics  *MetricsService
	logger   *zap.Logger
	queue    *jobs.Queue[dto.IndexRebuildRequest]
	now      func() time.Time
}

// NewIndexService wires the index maintenance service and its rebuild queue.
func NewIndexService(tx txProvider, store indexRevisionStore, index indexEntryStore, resolver *BestVersionResolver, metrics *MetricsService, logger *zap.Logger, queueCfg jobs.QueueConfig) *IndexService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if resolver == nil {
		resolver = NewBestVersionResolver(NewVolatilityPolicy(0), nil)
	}
	svc := &IndexService{
		tx:       tx,
		store:    store,
		index:    index,
		resolver: resolver,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
	if queueCfg.Logger == nil {
		queueCfg.Logger = logger
	}
	svc.queue = jobs.NewQueue("index-rebuild", svc.handleRebuildJob, queueCfg)
	return svc
}

// Start launches the rebuild workers.
func (s *IndexService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the rebuild workers.
func (s *IndexService) Stop() {
	s.queue.Stop()
}

// Rebuild replays the resolver over every key in scope, one transaction per key.
// A failing key is logged and counted; the rebuild continues with the next one.
func (s *IndexService) Rebuild(ctx context.Context, req dto.IndexRebuildRequest) (*models.RebuildReport, error) {
	filter, err := indexFilter(req)
	if err != nil {
		return nil, err
	}
	keys, err := s.scopeKeys(ctx, filter)
	if err != nil {
		return nil, err
	}

	started := s.now()
	report := &models.RebuildReport{Keys: len(keys), StartedAt: started.UTC()}
	for _, key := range keys {
		action, err := s.rebuildKey(ctx, key)
		if err != nil {
			report.Failed++
			s.logger.Error("failed to rebuild best version", zap.String("key", key.String()), zap.Error(err))
			continue
		}
		switch action {
		case indexUpserted:
			report.Upserted++
		case indexDeleted:
			report.Deleted++
		default:
			report.Unchanged++
		}
	}
	report.Duration = s.now().Sub(started).String()

	s.metrics.RecordIndexRebuild(string(indexUpserted), report.Upserted)
	s.metrics.RecordIndexRebuild(string(indexDeleted), report.Deleted)
	s.metrics.RecordIndexRebuild(string(indexUnchanged), report.Unchanged)
	s.metrics.RecordIndexRebuild("failed", report.Failed)
	s.logger.Info("best version index rebuilt",
		zap.Int("keys", report.Keys),
		zap.Int("upserted", report.Upserted),
		zap.Int("deleted", report.Deleted),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *IndexService) rebuildKey(ctx context.Context, key models.RevisionKey) (action indexAction, err error) {
	if s.tx == nil {
		return "", errors.New("transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.store.LockKey(ctx, tx, key); err != nil {
		return "", err
	}
	action, err = syncIndexEntry(ctx, tx, s.store, s.index, s.resolver, key)
	if err != nil {
		return "", err
	}
	if err = tx.Commit(); err != nil {
		return "", err
	}
	return action, nil
}

// Verify compares every index entry in scope with a fresh replay of the
// resolver and returns the keys that disagree.
func (s *IndexService) Verify(ctx context.Context, req dto.IndexRebuildRequest) ([]models.IndexMismatch, error) {
	filter, err := indexFilter(req)
	if err != nil {
		return nil, err
	}
	keys, err := s.scopeKeys(ctx, filter)
	if err != nil {
		return nil, err
	}
	entries, err := s.index.ListEntries(ctx, filter)
	if err != nil {
		return nil, s.internal(err, "failed to list best version index")
	}
	indexed := make(map[string]string, len(entries))
	for _, entry := range entries {
		indexed[entry.Key().String()] = entry.UUID
	}

	mismatches := make([]models.IndexMismatch, 0)
	for _, key := range keys {
		active, err := s.store.ListActiveByKey(ctx, nil, key)
		if err != nil {
			return nil, s.internal(err, "failed to load revisions")
		}
		var expected *string
		if best := s.resolver.Best(active, false); best != nil {
			id := best.UUID
			expected = &id
		}
		var actual *string
		if id, ok := indexed[key.String()]; ok {
			actual = &id
		}
		if equalOptional(expected, actual) {
			continue
		}
		mismatches = append(mismatches, models.IndexMismatch{
			SiteID:          key.SiteID,
			ProductID:       key.ProductID,
			MeasurementDate: key.MeasurementDate.Format(models.DateLayout),
			IndexedUUID:     actual,
			ExpectedUUID:    expected,
		})
	}
	if len(mismatches) > 0 {
		s.logger.Warn("best version index out of sync", zap.Int("mismatches", len(mismatches)))
	}
	return mismatches, nil
}

// ScheduleRebuild enqueues a background rebuild and returns its job id.
func (s *IndexService) ScheduleRebuild(req dto.IndexRebuildRequest) (string, error) {
	if _, err := indexFilter(req); err != nil {
		return "", err
	}
	job := jobs.Job[dto.IndexRebuildRequest]{ID: uuid.NewString(), Payload: req}
	if err := s.queue.Enqueue(job); err != nil {
		if errors.Is(err, jobs.ErrQueueFull) {
			return "", appErrors.Clone(appErrors.ErrConflict, "an index rebuild is already queued")
		}
		return "", s.internal(err, "failed to schedule index rebuild")
	}
	s.logger.Info("index rebuild scheduled", zap.String("job_id", job.ID))
	return job.ID, nil
}

func (s *IndexService) handleRebuildJob(ctx context.Context, job jobs.Job[dto.IndexRebuildRequest]) error {
	report, err := s.Rebuild(ctx, job.Payload)
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d keys failed to rebuild", report.Failed)
	}
	return nil
}

// scopeKeys unions keys that have revisions with keys that only have an index
// entry, so orphaned entries are found too.
func (s *IndexService) scopeKeys(ctx context.Context, filter models.FileRevisionFilter) ([]models.RevisionKey, error) {
	keys, err := s.store.ListKeys(ctx, filter)
	if err != nil {
		return nil, s.internal(err, "failed to list revision keys")
	}
	entries, err := s.index.ListEntries(ctx, filter)
	if err != nil {
		return nil, s.internal(err, "failed to list best version index")
	}
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		seen[key.String()] = struct{}{}
	}
	for _, entry := range entries {
		key := entry.Key()
		if _, ok := seen[key.String()]; ok {
			continue
		}
		seen[key.String()] = struct{}{}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *IndexService) internal(err error, message string) error {
	s.logger.Error(message, zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func indexFilter(req dto.IndexRebuildRequest) (models.FileRevisionFilter, error) {
	filter := models.FileRevisionFilter{SiteIDs: req.Site, ProductIDs: req.Product}
	var err error
	if filter.DateFrom, err = parseOptionalDate(req.DateFrom, "dateFrom"); err != nil {
		return filter, err
	}
	if filter.DateTo, err = parseOptionalDate(req.DateTo, "dateTo"); err != nil {
		return filter, err
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateFrom.After(*filter.DateTo) {
		return filter, appErrors.Clone(appErrors.ErrValidation, "dateFrom must not be after dateTo")
	}
	return filter, nil
}

func parseOptionalDate(raw, field string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid %s %q", field, raw))
	}
	day := models.TruncateDay(t)
	return &day, nil
}

func equalOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
