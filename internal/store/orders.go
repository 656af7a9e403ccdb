package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"storefront-service/internal/models"

	"github.com/lib/pq"
)

// CreateOrder inserts an order and its item snapshots in one transaction.
func (s *SQLStore) CreateOrder(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (user_id, total, status, full_name, email, phone, address, note, status_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err = tx.QueryRowxContext(ctx, query,
		order.UserID, order.Total, order.Status,
		order.Shipping.FullName, order.Shipping.Email, order.Shipping.Phone, order.Shipping.Address,
		order.Note, pq.StringArray(order.StatusNotes),
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err = tx.QueryRowxContext(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, price, quantity, image)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			item.OrderID, item.ProductID, item.ProductName, item.Price, item.Quantity, item.Image,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return tx.Commit()
}

const orderColumns = `id, user_id, total, status, full_name "shipping.full_name",
	email "shipping.email", phone "shipping.phone", address "shipping.address",
	note, status_notes, created_at, updated_at`

// GetOrderByID retrieves an order with its items.
func (s *SQLStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.attachItems(ctx, []*models.Order{&order}); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrdersByUser returns a user's orders, newest first, with items.
func (s *SQLStore) ListOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC",
		userID)
	if err != nil {
		return nil, err
	}
	return orders, s.attachItemsSlice(ctx, orders)
}

// ListOrders returns all orders matching the filter, newest first, with
// items. Unset filter fields impose no constraint.
func (s *SQLStore) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	where := []string{}
	args := []interface{}{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != "" {
		where = append(where, "status = "+arg(filter.Status))
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		where = append(where, fmt.Sprintf("(full_name ILIKE %s OR email ILIKE %s)", p, p))
	}
	if filter.StartDate != nil {
		where = append(where, "created_at >= "+arg(*filter.StartDate))
	}
	if filter.EndDate != nil {
		where = append(where, "created_at <= "+arg(*filter.EndDate))
	}

	query := "SELECT " + orderColumns + " FROM orders"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	orders := []models.Order{}
	if err := s.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, err
	}
	return orders, s.attachItemsSlice(ctx, orders)
}

// UpdateOrderStatus sets the status and appends the note entry when given.
// The audit trail is append-only. The write is conditional on the expected
// current status, same single-statement guard as the stock decrement, so a
// transition racing another one fails instead of clobbering it.
func (s *SQLStore) UpdateOrderStatus(ctx context.Context, orderID int64, fromStatus, status, noteEntry string) error {
	var res sql.Result
	var err error
	if noteEntry != "" {
		res, err = s.db.ExecContext(ctx,
			"UPDATE orders SET status = $1, status_notes = array_append(status_notes, $2), updated_at = NOW() WHERE id = $3 AND status = $4",
			status, noteEntry, orderID, fromStatus)
	} else {
		res, err = s.db.ExecContext(ctx,
			"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
			status, orderID, fromStatus)
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var current string
		if err := s.db.GetContext(ctx, &current,
			"SELECT status FROM orders WHERE id = $1", orderID); err != nil {
			if err == sql.ErrNoRows {
				return models.ErrOrderNotFound
			}
			return err
		}
		return &models.InvalidTransitionError{OrderID: orderID, From: current, To: status}
	}
	return nil
}

func (s *SQLStore) attachItemsSlice(ctx context.Context, orders []models.Order) error {
	ptrs := make([]*models.Order, len(orders))
	for i := range orders {
		ptrs[i] = &orders[i]
	}
	return s.attachItems(ctx, ptrs)
}

func (s *SQLStore) attachItems(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	byID := make(map[int64]*models.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
		o.Items = []models.OrderItem{}
	}

	items := []models.OrderItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT id, order_id, product_id, product_name, price, quantity, image FROM order_items WHERE order_id = ANY($1) ORDER BY id ASC",
		pq.Int64Array(ids))
	if err != nil {
		return err
	}

	for _, item := range items {
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return nil
}
