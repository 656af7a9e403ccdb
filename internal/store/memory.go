package store

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront-service/internal/models"
)

// MemStore is a map-backed Store used by unit tests and local development.
// One mutex serializes every operation, which also gives multi-statement
// sequences the same effective atomicity the SQL store gets per statement.
type MemStore struct {
	mu sync.Mutex

	products   map[int64]*models.Product
	categories map[int64]*models.Category
	carts      map[int64][]models.CartItem // insertion order preserved
	orders     map[int64]*models.Order

	nextProductID  int64
	nextCategoryID int64
	nextOrderID    int64
	nextItemID     int64
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		products:   make(map[int64]*models.Product),
		categories: make(map[int64]*models.Category),
		carts:      make(map[int64][]models.CartItem),
		orders:     make(map[int64]*models.Order),
	}
}

func (s *MemStore) CreateProduct(ctx context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextProductID++
	p.ID = s.nextProductID
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *MemStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, models.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemStore) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.products {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, models.ErrProductNotFound
}

func (s *MemStore) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Product{}
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *MemStore) ProductSlugExists(ctx context.Context, slug string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.products {
		if p.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func (s *MemStore) QueryProducts(ctx context.Context, q models.ProductQuery) (*models.ProductPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := []models.Product{}
	for _, p := range s.products {
		if q.Search != "" &&
			!containsFold(p.Name, q.Search) &&
			!containsFold(p.Description, q.Search) &&
			!containsFold(p.Brand, q.Search) {
			continue
		}
		if q.CategoryID != 0 && (p.CategoryID == nil || *p.CategoryID != q.CategoryID) {
			continue
		}
		if q.MinPrice != nil && p.Price < *q.MinPrice {
			continue
		}
		if q.MaxPrice != nil && p.Price > *q.MaxPrice {
			continue
		}
		if q.Brand != "" && !containsFold(p.Brand, q.Brand) {
			continue
		}
		if len(q.Tags) > 0 && !anyTagMatch(p.Tags, q.Tags) {
			continue
		}
		matched = append(matched, *p)
	}

	asc := strings.EqualFold(q.SortOrder, "asc")
	sortBy := q.SortBy
	if _, ok := map[string]bool{"created_at": true, "price": true, "rating": true, "name": true}[sortBy]; !ok {
		sortBy = "created_at"
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		var less, eq bool
		switch sortBy {
		case "price":
			less, eq = a.Price < b.Price, a.Price == b.Price
		case "rating":
			less, eq = a.Rating < b.Rating, a.Rating == b.Rating
		case "name":
			less, eq = a.Name < b.Name, a.Name == b.Name
		default:
			less, eq = a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
		}
		if eq {
			return a.ID < b.ID
		}
		if asc {
			return less
		}
		return !less
	})

	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	total := len(matched)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &models.ProductPage{
		Items: matched[start:end],
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

func anyTagMatch(have []string, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

func (s *MemStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.products[p.ID]
	if !ok {
		return models.ErrProductNotFound
	}
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *MemStore) DeleteProduct(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return models.ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *MemStore) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return models.ErrProductNotFound
	}
	if p.Stock < quantity {
		return &models.OutOfStockError{ProductID: productID, Requested: quantity, Available: p.Stock}
	}
	p.Stock -= quantity
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemStore) IncrementStock(ctx context.Context, productID int64, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return models.ErrProductNotFound
	}
	p.Stock += quantity
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemStore) CreateCategory(ctx context.Context, c *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextCategoryID++
	c.ID = s.nextCategoryID
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	cp := *c
	s.categories[c.ID] = &cp
	return nil
}

func (s *MemStore) GetCategoryByID(ctx context.Context, id int64) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, models.ErrCategoryNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemStore) ListCategories(ctx context.Context, activeOnly bool) ([]models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Category{}
	for _, c := range s.categories {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemStore) UpdateCategory(ctx context.Context, c *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.categories[c.ID]
	if !ok {
		return models.ErrCategoryNotFound
	}
	c.CreatedAt = cur.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	cp := *c
	s.categories[c.ID] = &cp
	return nil
}

func (s *MemStore) DeleteCategory(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return models.ErrCategoryNotFound
	}
	delete(s.categories, id)
	return nil
}

func (s *MemStore) CategorySlugExists(ctx context.Context, slug string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.categories {
		if c.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemStore) GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.carts[userID]
	out := make([]models.CartItem, len(items))
	copy(out, items)
	return out, nil
}

func (s *MemStore) UpsertCartItem(ctx context.Context, userID int64, item models.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.carts[userID]
	for i := range items {
		if items[i].ProductID == item.ProductID {
			items[i].Quantity += item.Quantity
			items[i].Price = item.Price
			return nil
		}
	}
	s.carts[userID] = append(items, item)
	return nil
}

func (s *MemStore) SetCartItemQuantity(ctx context.Context, userID, productID int64, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.carts[userID]
	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity = quantity
			return nil
		}
	}
	return models.ErrCartItemNotFound
}

func (s *MemStore) DeleteCartItem(ctx context.Context, userID, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.carts[userID]
	for i := range items {
		if items[i].ProductID == productID {
			s.carts[userID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return models.ErrCartItemNotFound
}

func (s *MemStore) ClearCart(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.carts[userID] = nil
	return nil
}

func (s *MemStore) CreateOrder(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextOrderID++
	order.ID = s.nextOrderID
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	cp := *order
	cp.Items = make([]models.OrderItem, len(order.Items))
	for i, item := range order.Items {
		s.nextItemID++
		item.ID = s.nextItemID
		item.OrderID = order.ID
		cp.Items[i] = item
		order.Items[i] = item
	}
	cp.StatusNotes = append([]string(nil), order.StatusNotes...)
	s.orders[order.ID] = &cp
	return nil
}

func (s *MemStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (s *MemStore) ListOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Order{}
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, *copyOrder(o))
		}
	}
	sortOrdersNewestFirst(out)
	return out, nil
}

func (s *MemStore) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Order{}
	for _, o := range s.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.Search != "" &&
			!containsFold(o.Shipping.FullName, filter.Search) &&
			!containsFold(o.Shipping.Email, filter.Search) {
			continue
		}
		if filter.StartDate != nil && o.CreatedAt.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && o.CreatedAt.After(*filter.EndDate) {
			continue
		}
		out = append(out, *copyOrder(o))
	}
	sortOrdersNewestFirst(out)
	return out, nil
}

func (s *MemStore) UpdateOrderStatus(ctx context.Context, orderID int64, fromStatus, status, noteEntry string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return models.ErrOrderNotFound
	}
	// Re-check under the lock: the caller validated against a snapshot
	// that may be stale by now.
	if o.Status != fromStatus || !models.CanTransition(o.Status, status) {
		return &models.InvalidTransitionError{OrderID: orderID, From: o.Status, To: status}
	}
	o.Status = status
	if noteEntry != "" {
		o.StatusNotes = append(o.StatusNotes, noteEntry)
	}
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func copyOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	cp.StatusNotes = append([]string(nil), o.StatusNotes...)
	return &cp
}

func sortOrdersNewestFirst(orders []models.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
