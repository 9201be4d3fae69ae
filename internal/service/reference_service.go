package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/dataportal-api/internal/models"
	appErrors "github.com/noah-isme/dataportal-api/pkg/errors"
)

const (
	sitesCacheKey    = "reference:sites"
	productsCacheKey = "reference:products"
)

type referenceStore interface {
	ListSites(ctx context.Context) ([]models.Site, error)
	GetSite(ctx context.Context, id string) (*models.Site, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
}

type modelTypeProvider interface {
	List(ctx context.Context) ([]models.ModelType, error)
}

// ReferenceService exposes site, product and model type reference data.
// Listings are served through the Redis cache; single lookups used to
// validate writes always hit the database.
type ReferenceService struct {
	repo   referenceStore
	ranks  modelTypeProvider
	cache  *CacheService
	logger *zap.Logger
}

// NewReferenceService constructs the service. cache may be nil.
func NewReferenceService(repo referenceStore, ranks modelTypeProvider, cache *CacheService, logger *zap.Logger) *ReferenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferenceService{repo: repo, ranks: ranks, cache: cache, logger: logger}
}

func (s *ReferenceService) Sites(ctx context.Context) ([]models.Site, error) {
	sites, err := cached(ctx, s.cache, sitesCacheKey, s.repo.ListSites)
	if err != nil {
		s.logger.Error("failed to list sites", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sites")
	}
	return sites, nil
}

func (s *ReferenceService) Products(ctx context.Context) ([]models.Product, error) {
	products, err := cached(ctx, s.cache, productsCacheKey, s.repo.ListProducts)
	if err != nil {
		s.logger.Error("failed to list products", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list products")
	}
	return products, nil
}

func (s *ReferenceService) ModelTypes(ctx context.Context) ([]models.ModelType, error) {
	return s.ranks.List(ctx)
}

// Site returns a validation error for unknown ids.
func (s *ReferenceService) Site(ctx context.Context, id string) (*models.Site, error) {
	site, err := s.repo.GetSite(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid site %q", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load site")
	}
	return site, nil
}

// Product returns a validation error for unknown ids.
func (s *ReferenceService) Product(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid product %q", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load product")
	}
	return product, nil
}

// Invalidate drops cached listings, used after reference data deployments.
func (s *ReferenceService) Invalidate(ctx context.Context) {
	s.cache.Invalidate(ctx, "reference:*")
}
