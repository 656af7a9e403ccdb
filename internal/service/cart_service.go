package service

import (
	"context"
	"fmt"

	"storefront-service/internal/models"
	"storefront-service/internal/redisclient"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// CartService owns one cart per user and keeps its derived total
// consistent under concurrent mutation.
type CartService struct {
	store  store.Store
	cache  *redisclient.Client // optional
	locks  *userLocks
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(store store.Store, cache *redisclient.Client) *CartService {
	return &CartService{
		store:  store,
		cache:  cache,
		locks:  newUserLocks(cache),
		logger: util.GetLogger(),
	}
}

// GetCart returns the user's cart with its derived total. A user without
// a cart gets an implicit empty one.
func (s *CartService) GetCart(ctx context.Context, userID int64) (*models.Cart, error) {
	items, err := s.store.GetCartItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return &models.Cart{
		UserID: userID,
		Items:  items,
		Total:  models.CalculateTotal(items),
	}, nil
}

// AddItem adds quantity of a product to the cart. An already-present
// product accumulates quantity instead of creating a second line, and the
// captured unit price is refreshed from the current discounted price.
// Products with zero stock are refused; stock is not re-checked while the
// item sits in the cart.
func (s *CartService) AddItem(ctx context.Context, userID, productID int64, quantity int) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	if quantity < 1 {
		return nil, models.ErrInvalidQuantity
	}

	unlock := s.locks.lock(ctx, userID)
	defer unlock()

	product, err := loadProduct(ctx, s.store, s.cache, productID)
	if err != nil {
		return nil, err
	}
	if product.Stock == 0 {
		util.StockConflictsTotal.Inc()
		return nil, &models.OutOfStockError{ProductID: productID, Requested: quantity, Available: 0}
	}

	item := models.CartItem{
		ProductID: productID,
		Quantity:  quantity,
		Price:     product.DiscountedPrice(),
	}
	if err := s.store.UpsertCartItem(ctx, userID, item); err != nil {
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}

	util.CartMutationsTotal.WithLabelValues("add").Inc()
	s.logger.Info("Cart item added",
		zap.Int64("user_id", userID),
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity))

	return s.GetCart(ctx, userID)
}

// UpdateItem overwrites the quantity of an existing cart line. Dropping to
// zero is not an implicit delete; callers use RemoveItem for that.
func (s *CartService) UpdateItem(ctx context.Context, userID, productID int64, quantity int) (*models.Cart, error) {
	if quantity < 1 {
		return nil, models.ErrInvalidQuantity
	}

	unlock := s.locks.lock(ctx, userID)
	defer unlock()

	if err := s.store.SetCartItemQuantity(ctx, userID, productID, quantity); err != nil {
		return nil, err
	}

	util.CartMutationsTotal.WithLabelValues("update").Inc()
	return s.GetCart(ctx, userID)
}

// RemoveItem deletes one line from the cart; removing an absent item
// fails with ErrCartItemNotFound.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID int64) error {
	unlock := s.locks.lock(ctx, userID)
	defer unlock()

	if err := s.store.DeleteCartItem(ctx, userID, productID); err != nil {
		return err
	}

	util.CartMutationsTotal.WithLabelValues("remove").Inc()
	return nil
}

// Clear empties the cart. Clearing an empty cart is a no-op.
func (s *CartService) Clear(ctx context.Context, userID int64) error {
	unlock := s.locks.lock(ctx, userID)
	defer unlock()

	if err := s.store.ClearCart(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	util.CartMutationsTotal.WithLabelValues("clear").Inc()
	return nil
}
