package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/dataportal-api/internal/models"
)

// ReferenceRepository reads the site, product and model type catalogues.
type ReferenceRepository struct {
	db *sqlx.DB
}

// NewReferenceRepository constructs the repository.
func NewReferenceRepository(db *sqlx.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

func (r *ReferenceRepository) ListSites(ctx context.Context) ([]models.Site, error) {
	const query = `SELECT id, human_readable_name, is_test_site FROM sites ORDER BY id`
	var sites []models.Site
	if err := r.db.SelectContext(ctx, &sites, query); err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	return sites, nil
}

// GetSite returns sql.ErrNoRows for an unknown site.
func (r *ReferenceRepository) GetSite(ctx context.Context, id string) (*models.Site, error) {
	const query = `SELECT id, human_readable_name, is_test_site FROM sites WHERE id = $1`
	var site models.Site
	if err := r.db.GetContext(ctx, &site, query, id); err != nil {
		return nil, err
	}
	return &site, nil
}

func (r *ReferenceRepository) ListProducts(ctx context.Context) ([]models.Product, error) {
	const query = `SELECT id, human_readable_name, level, is_model FROM products ORDER BY level, id`
	var products []models.Product
	if err := r.db.SelectContext(ctx, &products, query); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// GetProduct returns sql.ErrNoRows for an unknown product.
func (r *ReferenceRepository) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	const query = `SELECT id, human_readable_name, level, is_model FROM products WHERE id = $1`
	var product models.Product
	if err := r.db.GetContext(ctx, &product, query, id); err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *ReferenceRepository) ListModelTypes(ctx context.Context) ([]models.ModelType, error) {
	const query = `SELECT id, optimum_order FROM model_types ORDER BY optimum_order, id`
	var types []models.ModelType
	if err := r.db.SelectContext(ctx, &types, query); err != nil {
		return nil, fmt.Errorf("list model types: %w", err)
	}
	return types, nil
}
