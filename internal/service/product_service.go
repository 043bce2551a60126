package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nursery-api/internal/models"
	"nursery-api/internal/store"
	"nursery-api/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductService serves the catalog
type ProductService struct {
	store    ProductStore
	cache    ProductCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewProductService creates a new product service. cache may be nil.
func NewProductService(store ProductStore, cache ProductCache, cacheTTL time.Duration) *ProductService {
	return &ProductService{
		store:    store,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   util.GetLogger(),
	}
}

// CreateProductRequest is the body of a product creation
type CreateProductRequest struct {
	Name       string          `json:"name" binding:"required"`
	Price      decimal.Decimal `json:"price"`
	Stock      int             `json:"stock"`
	CategoryID *int64          `json:"category_id,omitempty"`
}

// CreateCategoryRequest is the body of a category creation
type CreateCategoryRequest struct {
	Name string `json:"name" binding:"required"`
}

// UpdateProductRequest holds the fields to change; nil fields are kept
type UpdateProductRequest struct {
	Name       *string          `json:"name,omitempty"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	Stock      *int             `json:"stock,omitempty"`
	CategoryID *int64           `json:"category_id,omitempty"`
}

func validateProduct(p *models.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return validationErrorf("product name is required")
	}
	if p.Price.IsNegative() {
		return validationErrorf("price must not be negative")
	}
	if p.Stock < 0 {
		return validationErrorf("stock must not be negative")
	}
	return nil
}

// GetProduct retrieves a product, consulting the cache first
func (ps *ProductService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	if ps.cache != nil {
		cached, err := ps.cache.GetProduct(ctx, id)
		if err != nil {
			ps.logger.Warn("Product cache read failed", zap.Int64("product_id", id), zap.Error(err))
		}
		if cached != nil {
			util.ProductCacheRequestsTotal.WithLabelValues("hit").Inc()
			return cached, nil
		}
		util.ProductCacheRequestsTotal.WithLabelValues("miss").Inc()
	}

	product, err := ps.store.GetProductByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product %d: %w", id, err)
	}

	if ps.cache != nil {
		if err := ps.cache.SetProduct(ctx, product, ps.cacheTTL); err != nil {
			ps.logger.Warn("Product cache write failed", zap.Int64("product_id", id), zap.Error(err))
		}
	}
	return product, nil
}

// ListProducts lists the catalog, optionally for a single category
func (ps *ProductService) ListProducts(ctx context.Context, categoryID *int64) ([]models.Product, error) {
	products, err := ps.store.ListProducts(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// CreateProduct adds a product to the catalog
func (ps *ProductService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*models.Product, error) {
	product := &models.Product{
		Name:       strings.TrimSpace(req.Name),
		Price:      models.NewMoney(req.Price),
		Stock:      req.Stock,
		CategoryID: req.CategoryID,
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := ps.store.CreateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	ps.logger.Info("Product created", zap.Int64("product_id", product.ID), zap.String("name", product.Name))
	return product, nil
}

// UpdateProduct changes name, price, stock or category of a product. Only
// the fields present in req are written. Price changes never touch line
// items already placed.
func (ps *ProductService) UpdateProduct(ctx context.Context, id int64, req *UpdateProductRequest) (*models.Product, error) {
	patch := models.ProductPatch{
		Stock:      req.Stock,
		CategoryID: req.CategoryID,
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, validationErrorf("product name is required")
		}
		patch.Name = &name
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return nil, validationErrorf("price must not be negative")
		}
		price := models.NewMoney(*req.Price)
		patch.Price = &price
	}
	if req.Stock != nil && *req.Stock < 0 {
		return nil, validationErrorf("stock must not be negative")
	}

	product, err := ps.store.UpdateProduct(ctx, id, patch)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update product %d: %w", id, err)
	}

	ps.InvalidateProducts(ctx, id)
	ps.logger.Info("Product updated", zap.Int64("product_id", id), zap.Int("stock", product.Stock))
	return product, nil
}

// ListCategories lists the catalog categories
func (ps *ProductService) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := ps.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// CreateCategory adds a category. Names are unique.
func (ps *ProductService) CreateCategory(ctx context.Context, req *CreateCategoryRequest) (*models.Category, error) {
	category := &models.Category{Name: strings.TrimSpace(req.Name)}
	if category.Name == "" {
		return nil, validationErrorf("category name is required")
	}

	err := ps.store.CreateCategory(ctx, category)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, validationErrorf("category %q already exists", category.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return category, nil
}

// InvalidateProducts drops cached copies of the given products
func (ps *ProductService) InvalidateProducts(ctx context.Context, ids ...int64) {
	if ps.cache == nil || len(ids) == 0 {
		return
	}
	if err := ps.cache.InvalidateProducts(ctx, ids...); err != nil {
		ps.logger.Warn("Product cache invalidation failed", zap.Int64s("product_ids", ids), zap.Error(err))
	}
}
