package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/noah-isme/dataportal-api/internal/models"
	appErrors "github.com/noah-isme/dataportal-api/pkg/errors"
)

type modelTypeLister interface {
	ListModelTypes(ctx context.Context) ([]models.ModelType, error)
}

// ModelRankService serves modelType -> optimumOrder from a per-process cache.
// Model types only change by deployment, so entries never expire.
type ModelRankService struct {
	repo   modelTypeLister
	cache  *expirable.LRU[string, int]
	logger *zap.Logger

	mu     sync.Mutex
	loaded bool
	all    []models.ModelType
}

// NewModelRankService constructs the service with room for size model types.
func NewModelRankService(repo modelTypeLister, size int, logger *zap.Logger) *ModelRankService {
	if size <= 0 {
		size = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelRankService{
		repo:   repo,
		cache:  expirable.NewLRU[string, int](size, nil, 0),
		logger: logger,
	}
}

// Rank returns the optimum order of modelType. Unknown types are a validation error.
func (s *ModelRankService) Rank(ctx context.Context, modelType string) (int, error) {
	if rank, ok := s.cache.Get(modelType); ok {
		return rank, nil
	}
	if err := s.load(ctx, false); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.all {
		if t.ID == modelType {
			s.cache.Add(t.ID, t.OptimumOrder)
			return t.OptimumOrder, nil
		}
	}
	return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid model type %q", modelType))
}

// List returns every model type ordered by rank.
func (s *ModelRankService) List(ctx context.Context) ([]models.ModelType, error) {
	if err := s.load(ctx, false); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ModelType, len(s.all))
	copy(out, s.all)
	return out, nil
}

// Reload refreshes the table from the database.
func (s *ModelRankService) Reload(ctx context.Context) error {
	return s.load(ctx, true)
}

func (s *ModelRankService) load(ctx context.Context, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded && !force {
		return nil
	}
	if s.repo == nil {
		return appErrors.Clone(appErrors.ErrInternal, "model type repository unavailable")
	}
	types, err := s.repo.ListModelTypes(ctx)
	if err != nil {
		s.logger.Error("failed to load model types", zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load model types")
	}
	s.cache.Purge()
	for _, t := range types {
		s.cache.Add(t.ID, t.OptimumOrder)
	}
	s.all = types
	s.loaded = true
	return nil
}
