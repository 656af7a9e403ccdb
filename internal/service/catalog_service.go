package service

import (
	"context"
	"fmt"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/redisclient"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// CatalogService handles product and category management and queries.
type CatalogService struct {
	store  store.Store
	cache  *redisclient.Client // optional
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store store.Store, cache *redisclient.Client) *CatalogService {
	return &CatalogService{
		store:  store,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// loadProduct reads a product through the cache when one is configured.
// Cache failures fall back to the store, they never fail the read.
func loadProduct(ctx context.Context, st store.Store, cache *redisclient.Client, id int64) (*models.Product, error) {
	if cache != nil {
		p, err := cache.GetCachedProduct(ctx, id)
		if err != nil {
			util.GetLogger().Warn("Product cache read failed", zap.Int64("product_id", id), zap.Error(err))
		} else if p != nil {
			util.ProductCacheRequests.WithLabelValues("hit").Inc()
			return p, nil
		} else {
			util.ProductCacheRequests.WithLabelValues("miss").Inc()
		}
	}

	p, err := st.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if cache != nil {
		if err := cache.CacheProduct(ctx, p); err != nil {
			util.GetLogger().Warn("Product cache write failed", zap.Int64("product_id", id), zap.Error(err))
		}
	}
	return p, nil
}

func (s *CatalogService) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateProduct(ctx, id); err != nil {
		s.logger.Warn("Product cache invalidation failed", zap.Int64("product_id", id), zap.Error(err))
	}
}

// QueryProducts runs a filtered, sorted, paginated catalog query. A page
// past the end returns an empty item list, not an error.
func (s *CatalogService) QueryProducts(ctx context.Context, q models.ProductQuery) (*models.ProductPage, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.QueryProducts")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CatalogQueryLatency.Observe(time.Since(start).Seconds())
	}()

	return s.store.QueryProducts(ctx, q)
}

// GetProduct retrieves a single product by ID.
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return loadProduct(ctx, s.store, s.cache, id)
}

// GetProductBySlug retrieves a single product by its URL slug.
func (s *CatalogService) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	return s.store.GetProductBySlug(ctx, slug)
}

// ProductCreateRequest is the admin payload for a new product.
type ProductCreateRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Price       int64    `json:"price" binding:"min=0"`
	Currency    string   `json:"currency"`
	Discount    float64  `json:"discount" binding:"min=0,max=100"`
	CategoryID  *int64   `json:"category_id"`
	Brand       string   `json:"brand"`
	Tags        []string `json:"tags"`
	Images      []string `json:"images"`
	Stock       int      `json:"stock" binding:"min=0"`
}

// ProductUpdateRequest carries a partial product update; nil fields are
// left unchanged.
type ProductUpdateRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Price       *int64    `json:"price"`
	Currency    *string   `json:"currency"`
	Discount    *float64  `json:"discount"`
	CategoryID  *int64    `json:"category_id"`
	Brand       *string   `json:"brand"`
	Tags        *[]string `json:"tags"`
	Images      *[]string `json:"images"`
	Stock       *int      `json:"stock"`
}

// CreateProduct creates a catalog entry with a generated unique slug.
func (s *CatalogService) CreateProduct(ctx context.Context, req ProductCreateRequest) (*models.Product, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name required", models.ErrValidation)
	}
	if req.Price < 0 {
		return nil, fmt.Errorf("%w: price must be >= 0", models.ErrValidation)
	}
	if req.Discount < 0 || req.Discount > 100 {
		return nil, fmt.Errorf("%w: discount must be between 0 and 100", models.ErrValidation)
	}
	if req.Stock < 0 {
		return nil, fmt.Errorf("%w: stock must be >= 0", models.ErrValidation)
	}

	slug, err := s.uniqueSlug(ctx, req.Name, s.store.ProductSlugExists)
	if err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = "VND"
	}

	p := &models.Product{
		Name:        req.Name,
		Slug:        slug,
		Description: req.Description,
		Price:       req.Price,
		Currency:    currency,
		Discount:    req.Discount,
		CategoryID:  req.CategoryID,
		Brand:       req.Brand,
		Tags:        req.Tags,
		Images:      req.Images,
		Stock:       req.Stock,
	}

	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created", zap.Int64("product_id", p.ID), zap.String("slug", p.Slug))
	return p, nil
}

// UpdateProduct applies a partial update and refreshes the slug when the
// name changes.
func (s *CatalogService) UpdateProduct(ctx context.Context, id int64, req ProductUpdateRequest) (*models.Product, error) {
	p, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, fmt.Errorf("%w: name required", models.ErrValidation)
		}
		p.Name = *req.Name
		slug, err := s.uniqueSlug(ctx, p.Name, s.store.ProductSlugExists)
		if err != nil {
			return nil, err
		}
		p.Slug = slug
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return nil, fmt.Errorf("%w: price must be >= 0", models.ErrValidation)
		}
		p.Price = *req.Price
	}
	if req.Currency != nil {
		p.Currency = *req.Currency
	}
	if req.Discount != nil {
		if *req.Discount < 0 || *req.Discount > 100 {
			return nil, fmt.Errorf("%w: discount must be between 0 and 100", models.ErrValidation)
		}
		p.Discount = *req.Discount
	}
	if req.CategoryID != nil {
		p.CategoryID = req.CategoryID
	}
	if req.Brand != nil {
		p.Brand = *req.Brand
	}
	if req.Tags != nil {
		p.Tags = *req.Tags
	}
	if req.Images != nil {
		p.Images = *req.Images
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return nil, fmt.Errorf("%w: stock must be >= 0", models.ErrValidation)
		}
		p.Stock = *req.Stock
	}

	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	return p, nil
}

// DeleteProduct removes a product. Historical orders keep their snapshots.
func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// CategoryCreateRequest is the admin payload for a new category.
type CategoryCreateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// CategoryUpdateRequest carries a partial category update.
type CategoryUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

// ListCategories returns categories; activeOnly hides deactivated ones.
func (s *CatalogService) ListCategories(ctx context.Context, activeOnly bool) ([]models.Category, error) {
	return s.store.ListCategories(ctx, activeOnly)
}

// GetCategory retrieves a single category by ID.
func (s *CatalogService) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	return s.store.GetCategoryByID(ctx, id)
}

// CreateCategory creates a category with a generated unique slug.
func (s *CatalogService) CreateCategory(ctx context.Context, req CategoryCreateRequest) (*models.Category, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name required", models.ErrValidation)
	}

	slug, err := s.uniqueSlug(ctx, req.Name, s.store.CategorySlugExists)
	if err != nil {
		return nil, err
	}

	c := &models.Category{
		Name:        req.Name,
		Slug:        slug,
		Description: req.Description,
		IsActive:    true,
	}

	if err := s.store.CreateCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return c, nil
}

// UpdateCategory applies a partial category update.
func (s *CatalogService) UpdateCategory(ctx context.Context, id int64, req CategoryUpdateRequest) (*models.Category, error) {
	c, err := s.store.GetCategoryByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, fmt.Errorf("%w: name required", models.ErrValidation)
		}
		c.Name = *req.Name
		slug, err := s.uniqueSlug(ctx, c.Name, s.store.CategorySlugExists)
		if err != nil {
			return nil, err
		}
		c.Slug = slug
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}

	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCategory removes a category. Products referencing it keep the
// dangling reference and read back as uncategorized.
func (s *CatalogService) DeleteCategory(ctx context.Context, id int64) error {
	return s.store.DeleteCategory(ctx, id)
}

// uniqueSlug slugifies the name and disambiguates collisions with a
// timestamp suffix.
func (s *CatalogService) uniqueSlug(ctx context.Context, name string, exists func(context.Context, string) (bool, error)) (string, error) {
	slug := util.Slugify(name)
	taken, err := exists(ctx, slug)
	if err != nil {
		return "", err
	}
	if taken {
		slug = fmt.Sprintf("%s-%d", slug, time.Now().Unix())
	}
	return slug, nil
}
