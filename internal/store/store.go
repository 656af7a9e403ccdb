package store

import (
	"context"
	"fmt"
	"time"

	"storefront-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Store is the persistence boundary for the catalog, carts and orders.
// SQLStore backs it with Postgres; MemStore backs it with maps for tests.
type Store interface {
	// catalog
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	QueryProducts(ctx context.Context, q models.ProductQuery) (*models.ProductPage, error)
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	ProductSlugExists(ctx context.Context, slug string) (bool, error)

	// DecrementStock is the atomic check-and-decrement used at checkout.
	// It fails with *models.OutOfStockError when stock is insufficient and
	// never leaves stock partially applied.
	DecrementStock(ctx context.Context, productID int64, quantity int) error
	IncrementStock(ctx context.Context, productID int64, quantity int) error

	// categories
	CreateCategory(ctx context.Context, c *models.Category) error
	GetCategoryByID(ctx context.Context, id int64) (*models.Category, error)
	ListCategories(ctx context.Context, activeOnly bool) ([]models.Category, error)
	UpdateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, id int64) error
	CategorySlugExists(ctx context.Context, slug string) (bool, error)

	// carts
	GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error)
	// UpsertCartItem adds quantity to an existing line (keeping one line
	// per product) or inserts a new one; the captured price is refreshed
	// either way. The accumulate is atomic.
	UpsertCartItem(ctx context.Context, userID int64, item models.CartItem) error
	SetCartItemQuantity(ctx context.Context, userID, productID int64, quantity int) error
	DeleteCartItem(ctx context.Context, userID, productID int64) error
	ClearCart(ctx context.Context, userID int64) error

	// orders
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	// UpdateOrderStatus applies a status transition as a compare-and-swap
	// on the expected current status, so concurrent transitions cannot
	// overwrite each other and no order leaves a terminal state. It fails
	// with *models.InvalidTransitionError when the order is no longer in
	// fromStatus, and appends noteEntry to the audit trail when non-empty.
	UpdateOrderStatus(ctx context.Context, orderID int64, fromStatus, status, noteEntry string) error
}

// SQLStore is the Postgres-backed store.
type SQLStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLStore)(nil)

// NewStore connects to Postgres and returns a SQLStore.
func NewStore(databaseURL string) (*SQLStore, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *SQLStore) GetDB() *sqlx.DB {
	return s.db
}
