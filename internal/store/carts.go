package store

import (
	"context"

	"storefront-service/internal/models"
)

// GetCartItems returns the user's cart lines in insertion order.
func (s *SQLStore) GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error) {
	items := []models.CartItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT product_id, quantity, price FROM cart_items WHERE user_id = $1 ORDER BY id ASC",
		userID)
	return items, err
}

// UpsertCartItem accumulates quantity into the existing line for the
// product, or inserts a new line. The single-statement upsert keeps
// concurrent adds from overwriting each other.
func (s *SQLStore) UpsertCartItem(ctx context.Context, userID int64, item models.CartItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity,
			price = EXCLUDED.price`,
		userID, item.ProductID, item.Quantity, item.Price)
	return err
}

// SetCartItemQuantity overwrites the quantity of an existing line.
func (s *SQLStore) SetCartItemQuantity(ctx context.Context, userID, productID int64, quantity int) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1 WHERE user_id = $2 AND product_id = $3",
		quantity, userID, productID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrCartItemNotFound
	}
	return nil
}

// DeleteCartItem removes one line from the cart.
func (s *SQLStore) DeleteCartItem(ctx context.Context, userID, productID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2",
		userID, productID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrCartItemNotFound
	}
	return nil
}

// ClearCart empties the user's cart. No-op when already empty.
func (s *SQLStore) ClearCart(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID)
	return err
}
