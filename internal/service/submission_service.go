package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/dataportal-api/internal/dto"
	"github.com/noah-isme/dataportal-api/internal/models"
	"github.com/noah-isme/dataportal-api/internal/repository"
	appErrors "github.com/noah-isme/dataportal-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type revisionStore interface {
	Find(ctx context.Context, exec sqlx.ExtContext, uuid string) (*models.FileRevision, error)
	LockKey(ctx context.Context, exec sqlx.ExtContext, key models.RevisionKey) error
	ListActiveByKey(ctx context.Context, exec sqlx.ExtContext, key models.RevisionKey) ([]models.FileRevision, error)
	Insert(ctx context.Context, exec sqlx.ExtContext, rev *models.FileRevision) error
	UpdateContent(ctx context.Context, exec sqlx.ExtContext, rev *models.FileRevision) error
	MarkSuperseded(ctx context.Context, exec sqlx.ExtContext, uuid, supersededBy string) error
	SetAttributes(ctx context.Context, exec sqlx.ExtContext, uuid string, attrs repository.RevisionAttributes) error
	CountExisting(ctx context.Context, uuids []string) (int, error)
}

type bestVersionWriter interface {
	Get(ctx context.Context, exec sqlx.ExtContext, key models.RevisionKey) (*models.BestVersionEntry, error)
	Upsert(ctx context.Context, exec sqlx.ExtContext, key models.RevisionKey, uuid string) error
	Delete(ctx context.Context, exec sqlx.ExtContext, key models.RevisionKey) error
}

type referenceLookup interface {
	Site(ctx context.Context, id string) (*models.Site, error)
	Product(ctx context.Context, id string) (*models.Product, error)
}

type modelRanker interface {
	Rank(ctx context.Context, modelType string) (int, error)
}

type blobChecker interface {
	Exists(ctx context.Context, bucket, key string) (bool, error)
}

// SubmissionConfig names the buckets and bounds the write transaction.
type SubmissionConfig struct {
	ProductBucket      string
	VolatileBucket     string
	TransactionTimeout time.Duration
}

// SubmissionService is the write path: it classifies each incoming revision
// against the stored state of its key and applies the outcome atomically
// together with the best-version index.
type SubmissionService struct {
	tx        txProvider
	store     revisionStore
	index     bestVersionWriter
	refs      referenceLookup
	ranks     modelRanker
	blobs     blobChecker
	resolver  *BestVersionResolver
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       SubmissionConfig
	now       func() time.Time
}

// SubmissionOption customises the service.
type SubmissionOption func(*SubmissionService)

// WithSubmissionClock overrides time.Now.
func WithSubmissionClock(now func() time.Time) SubmissionOption {
	return func(s *SubmissionService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSubmissionMetrics records outcomes on metrics.
func WithSubmissionMetrics(metrics *MetricsService) SubmissionOption {
	return func(s *SubmissionService) { s.metrics = metrics }
}

// NewSubmissionService wires the reconciler.
func NewSubmissionService(tx txProvider, store revisionStore, index bestVersionWriter, refs referenceLookup, ranks modelRanker, blobs blobChecker, resolver *BestVersionResolver, validate *validator.Validate, logger *zap.Logger, cfg SubmissionConfig, opts ...SubmissionOption) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if resolver == nil {
		resolver = NewBestVersionResolver(NewVolatilityPolicy(0), nil)
	}
	if cfg.TransactionTimeout <= 0 {
		cfg.TransactionTimeout = 30 * time.Second
	}
	svc := &SubmissionService{
		tx:        tx,
		store:     store,
		index:     index,
		refs:      refs,
		ranks:     ranks,
		blobs:     blobs,
		resolver:  resolver,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Submit accepts one revision draft and reports whether it created a new
// revision or updated an existing one. Rejections carry DUPLICATE_REVISION or
// IMMUTABLE_REVISION.
func (s *SubmissionService) Submit(ctx context.Context, req dto.SubmitFileRequest) (*models.SubmissionResult, error) {
	draft, site, err := s.prepare(ctx, req)
	if err != nil {
		s.recordRejection(err)
		return nil, err
	}

	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.TransactionTimeout)
	defer cancel()

	result, err := s.reconcile(txCtx, draft, site, req.Legacy != nil)
	if err != nil {
		s.recordRejection(err)
		if appErrors.HasCode(err, appErrors.ErrDuplicateRevision.Code) || appErrors.HasCode(err, appErrors.ErrImmutableRevision.Code) {
			s.logger.Info("submission rejected", zap.String("uuid", draft.UUID), zap.String("key", draft.Key().String()), zap.String("reason", appErrors.FromError(err).Code))
		}
		return nil, err
	}

	s.metrics.RecordSubmission(string(result.Result))
	s.logger.Info("submission accepted",
		zap.String("uuid", draft.UUID),
		zap.String("key", draft.Key().String()),
		zap.String("result", string(result.Result)),
	)
	return result, nil
}

// prepare validates the draft and its references and checks the object exists.
func (s *SubmissionService) prepare(ctx context.Context, req dto.SubmitFileRequest) (*models.FileRevision, *models.Site, error) {
	req.Checksum = strings.ToLower(req.Checksum)
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, describeValidation(err))
	}
	date, err := time.Parse(models.DateLayout, req.MeasurementDate)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid measurement date %q", req.MeasurementDate))
	}

	site, err := s.refs.Site(ctx, req.Site)
	if err != nil {
		return nil, nil, err
	}
	if req.Volatile != nil && *req.Volatile && !site.IsTestSite {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "only files from test sites can be submitted as volatile")
	}
	product, err := s.refs.Product(ctx, req.Product)
	if err != nil {
		return nil, nil, err
	}

	draft := &models.FileRevision{
		UUID:             strings.ToLower(req.UUID),
		Checksum:         req.Checksum,
		Filename:         req.Filename,
		S3Key:            req.S3Key,
		SiteID:           site.ID,
		ProductID:        product.ID,
		MeasurementDate:  models.TruncateDay(date),
		Format:           req.Format,
		Size:             req.Size,
		VolatileOverride: req.Volatile,
		Legacy:           req.Legacy != nil && *req.Legacy,
		SourceFileIDs:    pq.StringArray(uniqueStrings(req.SourceFileIDs)),
	}

	switch {
	case product.IsModel && req.Model == "":
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("model type is required for product %q", product.ID))
	case !product.IsModel && req.Model != "":
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("product %q does not take a model type", product.ID))
	case product.IsModel:
		rank, err := s.ranks.Rank(ctx, req.Model)
		if err != nil {
			return nil, nil, err
		}
		model := req.Model
		draft.ModelID = &model
		draft.OptimumOrder = &rank
	}

	if len(draft.SourceFileIDs) > 0 {
		count, err := s.store.CountExisting(ctx, draft.SourceFileIDs)
		if err != nil {
			s.logger.Error("failed to verify source files", zap.String("uuid", draft.UUID), zap.Error(err))
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify source files")
		}
		if count != len(draft.SourceFileIDs) {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "one or more source files do not exist")
		}
	}

	draft.Bucket = s.bucketFor(draft)
	exists, err := s.blobs.Exists(ctx, draft.Bucket, draft.S3Key)
	if err != nil {
		s.logger.Error("storage existence check failed", zap.String("bucket", draft.Bucket), zap.String("key", draft.S3Key), zap.Error(err))
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, appErrors.ErrStorageUnavailable.Message)
	}
	if !exists {
		return nil, nil, appErrors.Clone(appErrors.ErrStorageObject, fmt.Sprintf("%s: %s", appErrors.ErrStorageObject.Message, draft.S3Key))
	}

	return draft, site, nil
}

// bucketFor keeps drafts submitted as frozen in the product bucket.
func (s *SubmissionService) bucketFor(draft *models.FileRevision) string {
	if draft.VolatileOverride != nil && !*draft.VolatileOverride {
		return s.cfg.ProductBucket
	}
	return s.cfg.VolatileBucket
}

func (s *SubmissionService) reconcile(ctx context.Context, draft *models.FileRevision, site *models.Site, legacySet bool) (result *models.SubmissionResult, err error) {
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, s.transactionError(err, draft, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	key := draft.Key()
	if err = s.store.LockKey(ctx, tx, key); err != nil {
		return nil, s.transactionError(err, draft, "failed to lock revision key")
	}
	active, err := s.store.ListActiveByKey(ctx, tx, key)
	if err != nil {
		return nil, s.transactionError(err, draft, "failed to load revisions")
	}
	match, err := s.findMatch(ctx, tx, draft, active)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	draft.CreatedAt, draft.UpdatedAt, draft.ReleasedAt = now, now, now

	var outcome models.SubmissionOutcome
	switch {
	case match == nil:
		if err = s.store.Insert(ctx, tx, draft); err != nil {
			return nil, s.transactionError(err, draft, "failed to insert file revision")
		}
		outcome = models.SubmissionCreated

	case match.UUID == draft.UUID:
		if err = s.checkReplaceable(*match, draft, site, now); err != nil {
			return nil, err
		}
		draft.CreatedAt = match.CreatedAt
		draft.PID = match.PID
		if !legacySet {
			draft.Legacy = match.Legacy
		}
		if draft.VolatileOverride == nil {
			draft.VolatileOverride = match.VolatileOverride
		}
		if err = s.store.UpdateContent(ctx, tx, draft); err != nil {
			return nil, s.transactionError(err, draft, "failed to update file revision")
		}
		outcome = models.SubmissionUpdated

	case draft.ModelID != nil:
		if err = s.checkReplaceable(*match, draft, site, now); err != nil {
			return nil, err
		}
		if err = s.store.Insert(ctx, tx, draft); err != nil {
			return nil, s.transactionError(err, draft, "failed to insert file revision")
		}
		if err = s.store.MarkSuperseded(ctx, tx, match.UUID, draft.UUID); err != nil {
			return nil, s.transactionError(err, draft, "failed to supersede model file")
		}
		outcome = models.SubmissionUpdated

	default:
		if err = s.store.Insert(ctx, tx, draft); err != nil {
			return nil, s.transactionError(err, draft, "failed to insert file revision")
		}
		candidates := append(append([]models.FileRevision{}, active...), *draft)
		if best := s.resolver.Best(candidates, false); best != nil && best.UUID == draft.UUID {
			if err = s.store.MarkSuperseded(ctx, tx, match.UUID, draft.UUID); err != nil {
				return nil, s.transactionError(err, draft, "failed to supersede file revision")
			}
		}
		outcome = models.SubmissionCreated
	}

	if _, err = syncIndexEntry(ctx, tx, s.store, s.index, s.resolver, key); err != nil {
		return nil, s.transactionError(err, draft, "failed to update best version index")
	}
	if err = tx.Commit(); err != nil {
		return nil, s.transactionError(err, draft, "failed to commit submission")
	}

	stored := *draft
	return &models.SubmissionResult{Result: outcome, Revision: &stored}, nil
}

// findMatch returns the existing revision the draft competes with. For model
// products that is the row of the same model type; otherwise the row with the
// same uuid, or the indexed best of the key when the uuid is new. Legacy rows
// never compete.
func (s *SubmissionService) findMatch(ctx context.Context, exec sqlx.ExtContext, draft *models.FileRevision, active []models.FileRevision) (*models.FileRevision, error) {
	existing, err := s.store.Find(ctx, exec, draft.UUID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, s.transactionError(err, draft, "failed to load file revision")
	}
	if existing != nil {
		switch {
		case existing.Key().String() != draft.Key().String():
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("uuid %s already belongs to %s", draft.UUID, existing.Key()))
		case existing.Superseded():
			return nil, appErrors.Clone(appErrors.ErrImmutableRevision, fmt.Sprintf("file %s has been superseded by %s", draft.UUID, *existing.SupersededBy))
		case existing.Model() != draft.Model():
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("uuid %s already belongs to model %q", draft.UUID, existing.Model()))
		}
		return existing, nil
	}

	if draft.ModelID != nil {
		for i := range active {
			if active[i].Model() == draft.Model() {
				match := active[i]
				return &match, nil
			}
		}
		return nil, nil
	}
	return s.resolver.Best(active, false), nil
}

// checkReplaceable enforces the freeze and the duplicate rule for a match
// the draft would replace.
func (s *SubmissionService) checkReplaceable(match models.FileRevision, draft *models.FileRevision, site *models.Site, now time.Time) error {
	if !s.resolver.Policy().IsVolatile(match, now) && !site.IsTestSite {
		return appErrors.Clone(appErrors.ErrImmutableRevision, fmt.Sprintf("%s: %s", appErrors.ErrImmutableRevision.Message, draft.Filename))
	}
	if match.Checksum == draft.Checksum {
		return appErrors.Clone(appErrors.ErrDuplicateRevision, fmt.Sprintf("%s: %s", appErrors.ErrDuplicateRevision.Message, draft.Filename))
	}
	return nil
}

// Amend applies a partial update of non-content attributes.
func (s *SubmissionService) Amend(ctx context.Context, uuid string, req dto.AmendFileRequest) (*models.FileRevision, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, describeValidation(err))
	}
	if req.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no attributes to update")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.TransactionTimeout)
	defer cancel()

	rev, err := s.amend(txCtx, strings.ToLower(uuid), req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("file revision amended", zap.String("uuid", rev.UUID), zap.String("key", rev.Key().String()))
	return rev, nil
}

func (s *SubmissionService) amend(ctx context.Context, uuid string, req dto.AmendFileRequest) (rev *models.FileRevision, err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, s.transactionError(err, &models.FileRevision{UUID: uuid}, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rev, err = s.store.Find(ctx, tx, uuid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, s.transactionError(err, &models.FileRevision{UUID: uuid}, "failed to load file revision")
	}
	key := rev.Key()
	if err = s.store.LockKey(ctx, tx, key); err != nil {
		return nil, s.transactionError(err, rev, "failed to lock revision key")
	}

	site, err := s.refs.Site(ctx, rev.SiteID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	attrs := repository.RevisionAttributes{Legacy: req.Legacy}
	if req.Volatile != nil {
		if *req.Volatile && !site.IsTestSite {
			return nil, appErrors.Clone(appErrors.ErrImmutableRevision, "only files from test sites can be unfrozen")
		}
		attrs.VolatileOverride = req.Volatile
		rev.VolatileOverride = req.Volatile
	}
	if req.PID != nil {
		switch {
		case rev.PID != nil && *rev.PID != *req.PID:
			return nil, appErrors.Clone(appErrors.ErrImmutableRevision, "pid is already assigned")
		case s.resolver.Policy().IsVolatile(*rev, now):
			return nil, appErrors.Clone(appErrors.ErrValidation, "pid can only be assigned to frozen files")
		case rev.PID == nil:
			attrs.PID = req.PID
			rev.PID = req.PID
		}
	}
	if req.Legacy != nil {
		rev.Legacy = *req.Legacy
	}

	if err = s.store.SetAttributes(ctx, tx, uuid, attrs); err != nil {
		return nil, s.transactionError(err, rev, "failed to amend file revision")
	}
	if _, err = syncIndexEntry(ctx, tx, s.store, s.index, s.resolver, key); err != nil {
		return nil, s.transactionError(err, rev, "failed to update best version index")
	}
	if err = tx.Commit(); err != nil {
		return nil, s.transactionError(err, rev, "failed to commit amendment")
	}
	return rev, nil
}

func (s *SubmissionService) transactionError(err error, rev *models.FileRevision, message string) error {
	s.logger.Error(message, zap.String("uuid", rev.UUID), zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrTransaction.Code, appErrors.ErrTransaction.Status, message)
}

func (s *SubmissionService) recordRejection(err error) {
	s.metrics.RecordSubmission(appErrors.FromError(err).Code)
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func uniqueStrings(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
