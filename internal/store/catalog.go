package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"storefront-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const productColumns = `id, name, slug, description, price, currency, discount,
	category_id, brand, tags, images, stock, rating, reviews_count,
	created_at, updated_at`

// CreateProduct inserts a product and fills in its id and timestamps.
func (s *SQLStore) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (name, slug, description, price, currency, discount,
			category_id, brand, tags, images, stock, rating, reviews_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		p.Name, p.Slug, p.Description, p.Price, p.Currency, p.Discount,
		p.CategoryID, p.Brand, p.Tags, p.Images, p.Stock, p.Rating, p.ReviewsCount,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// GetProductByID retrieves a product by ID
func (s *SQLStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product
	err := s.db.GetContext(ctx, &p, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProductBySlug retrieves a product by slug
func (s *SQLStore) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var p models.Product
	err := s.db.GetContext(ctx, &p, "SELECT "+productColumns+" FROM products WHERE slug = $1", slug)
	if err == sql.ErrNoRows {
		return nil, models.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *SQLStore) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT "+productColumns+" FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// ProductSlugExists reports whether a slug is already taken.
func (s *SQLStore) ProductSlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM products WHERE slug = $1)", slug)
	return exists, err
}

var productSortColumns = map[string]string{
	"created_at": "created_at",
	"price":      "price",
	"rating":     "rating",
	"name":       "name",
}

// QueryProducts runs the filtered, sorted, paginated catalog query.
func (s *SQLStore) QueryProducts(ctx context.Context, q models.ProductQuery) (*models.ProductPage, error) {
	where := []string{}
	args := []interface{}{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Search != "" {
		p := arg("%" + q.Search + "%")
		where = append(where, fmt.Sprintf("(name ILIKE %s OR description ILIKE %s OR brand ILIKE %s)", p, p, p))
	}
	if q.CategoryID != 0 {
		where = append(where, "category_id = "+arg(q.CategoryID))
	}
	if q.MinPrice != nil {
		where = append(where, "price >= "+arg(*q.MinPrice))
	}
	if q.MaxPrice != nil {
		where = append(where, "price <= "+arg(*q.MaxPrice))
	}
	if q.Brand != "" {
		where = append(where, "brand ILIKE "+arg("%"+q.Brand+"%"))
	}
	if len(q.Tags) > 0 {
		where = append(where, "tags && "+arg(pq.StringArray(q.Tags)))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM products"+whereClause, args...); err != nil {
		return nil, err
	}

	sortCol, ok := productSortColumns[q.SortBy]
	if !ok {
		sortCol = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(q.SortOrder, "asc") {
		dir = "ASC"
	}

	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	offset := (page - 1) * limit

	// stable tie-break by id so pagination never shuffles equal rows
	query := fmt.Sprintf("SELECT "+productColumns+" FROM products%s ORDER BY %s %s, id ASC LIMIT %s OFFSET %s",
		whereClause, sortCol, dir, arg(limit), arg(offset))

	items := []models.Product{}
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, err
	}

	return &models.ProductPage{
		Items: items,
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

// UpdateProduct saves a full product row.
func (s *SQLStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	query := `
		UPDATE products
		SET name = $1, slug = $2, description = $3, price = $4, currency = $5,
			discount = $6, category_id = $7, brand = $8, tags = $9, images = $10,
			stock = $11, rating = $12, reviews_count = $13, updated_at = NOW()
		WHERE id = $14
		RETURNING updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		p.Name, p.Slug, p.Description, p.Price, p.Currency, p.Discount,
		p.CategoryID, p.Brand, p.Tags, p.Images, p.Stock, p.Rating, p.ReviewsCount,
		p.ID,
	).Scan(&p.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.ErrProductNotFound
	}
	return err
}

// DeleteProduct removes a product from the catalog.
func (s *SQLStore) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrProductNotFound
	}
	return nil
}

// DecrementStock conditionally takes stock in a single statement, so two
// concurrent checkouts can never drive stock negative.
func (s *SQLStore) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE id = $2 AND stock >= $1",
		quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var available int
		if err := s.db.GetContext(ctx, &available,
			"SELECT stock FROM products WHERE id = $1", productID); err != nil {
			if err == sql.ErrNoRows {
				return models.ErrProductNotFound
			}
			return err
		}
		return &models.OutOfStockError{ProductID: productID, Requested: quantity, Available: available}
	}
	return nil
}

// IncrementStock returns stock, used as compensation when a checkout fails
// after some decrements already applied.
func (s *SQLStore) IncrementStock(ctx context.Context, productID int64, quantity int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE products SET stock = stock + $1, updated_at = NOW() WHERE id = $2",
		quantity, productID)
	return err
}

// CreateCategory inserts a category and fills in its id and timestamps.
func (s *SQLStore) CreateCategory(ctx context.Context, c *models.Category) error {
	query := `
		INSERT INTO categories (name, slug, description, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		c.Name, c.Slug, c.Description, c.IsActive,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// GetCategoryByID retrieves a category by ID
func (s *SQLStore) GetCategoryByID(ctx context.Context, id int64) (*models.Category, error) {
	var c models.Category
	err := s.db.GetContext(ctx, &c, "SELECT * FROM categories WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrCategoryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCategories returns categories sorted by name.
func (s *SQLStore) ListCategories(ctx context.Context, activeOnly bool) ([]models.Category, error) {
	query := "SELECT * FROM categories"
	if activeOnly {
		query += " WHERE is_active"
	}
	query += " ORDER BY name ASC"

	categories := []models.Category{}
	err := s.db.SelectContext(ctx, &categories, query)
	return categories, err
}

// UpdateCategory saves a full category row.
func (s *SQLStore) UpdateCategory(ctx context.Context, c *models.Category) error {
	query := `
		UPDATE categories
		SET name = $1, slug = $2, description = $3, is_active = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		c.Name, c.Slug, c.Description, c.IsActive, c.ID,
	).Scan(&c.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.ErrCategoryNotFound
	}
	return err
}

// DeleteCategory removes a category. Products keep their category_id; the
// dangling reference is read back as uncategorized, never an error.
func (s *SQLStore) DeleteCategory(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM categories WHERE id = $1", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrCategoryNotFound
	}
	return nil
}

// CategorySlugExists reports whether a slug is already taken.
func (s *SQLStore) CategorySlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM categories WHERE slug = $1)", slug)
	return exists, err
}
