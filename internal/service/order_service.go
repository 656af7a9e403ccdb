package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/redisclient"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService converts carts into immutable orders and owns the order
// status workflow.
type OrderService struct {
	store          store.Store
	cache          *redisclient.Client    // optional
	eventPublisher *broker.EventPublisher // optional
	locks          *userLocks
	logger         *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(store store.Store, cache *redisclient.Client, eventPublisher *broker.EventPublisher) *OrderService {
	return &OrderService{
		store:          store,
		cache:          cache,
		eventPublisher: eventPublisher,
		locks:          newUserLocks(cache),
		logger:         util.GetLogger(),
	}
}

// CreateOrderRequest is the checkout payload: shipping contact plus an
// optional customer note.
type CreateOrderRequest struct {
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone" binding:"required"`
	Address  string `json:"address" binding:"required"`
	Note     string `json:"note"`
}

func (r *CreateOrderRequest) validate() error {
	if strings.TrimSpace(r.FullName) == "" {
		return fmt.Errorf("%w: full_name required", models.ErrValidation)
	}
	if strings.TrimSpace(r.Email) == "" {
		return fmt.Errorf("%w: email required", models.ErrValidation)
	}
	if strings.TrimSpace(r.Phone) == "" {
		return fmt.Errorf("%w: phone required", models.ErrValidation)
	}
	if strings.TrimSpace(r.Address) == "" {
		return fmt.Errorf("%w: address required", models.ErrValidation)
	}
	return nil
}

// CreateOrder snapshots the user's cart into a pending order. Stock is
// authoritative here: every line is re-checked and decremented atomically
// per product, and any failure rolls back the decrements already applied,
// so callers observe all-or-nothing.
func (s *OrderService) CreateOrder(ctx context.Context, userID int64, req CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	if err := req.validate(); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_shipping").Inc()
		return nil, err
	}

	unlock := s.locks.lock(ctx, userID)
	defer unlock()

	cartItems, err := s.store.GetCartItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(cartItems) == 0 {
		util.OrdersFailedTotal.WithLabelValues("empty_cart").Inc()
		return nil, models.ErrEmptyCart
	}

	productIDs := make([]int64, len(cartItems))
	for i, item := range cartItems {
		productIDs[i] = item.ProductID
	}

	products, err := s.store.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	productMap := make(map[int64]*models.Product, len(products))
	for i := range products {
		productMap[products[i].ID] = &products[i]
	}
	for _, item := range cartItems {
		if _, ok := productMap[item.ProductID]; !ok {
			util.OrdersFailedTotal.WithLabelValues("product_missing").Inc()
			return nil, fmt.Errorf("product %d: %w", item.ProductID, models.ErrProductNotFound)
		}
	}

	if err := s.takeStock(ctx, cartItems); err != nil {
		return nil, err
	}

	orderItems := make([]models.OrderItem, 0, len(cartItems))
	for _, item := range cartItems {
		product := productMap[item.ProductID]
		orderItems = append(orderItems, models.OrderItem{
			ProductID:   item.ProductID,
			ProductName: product.Name,
			Price:       item.Price,
			Quantity:    item.Quantity,
			Image:       product.FirstImage(),
		})
	}

	order := &models.Order{
		UserID: userID,
		Items:  orderItems,
		Total:  models.CalculateTotal(orderItems),
		Status: models.OrderStatusPending,
		Shipping: models.ShippingInfo{
			FullName: req.FullName,
			Email:    req.Email,
			Phone:    req.Phone,
			Address:  req.Address,
		},
		Note:        req.Note,
		StatusNotes: []string{},
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		s.restoreStock(ctx, cartItems)
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if err := s.store.ClearCart(ctx, userID); err != nil {
		// The order exists and stock is taken; an unclean cart is the
		// lesser evil, surface it in the logs only.
		s.logger.Error("Failed to clear cart after checkout",
			zap.Int64("user_id", userID),
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}

	if s.cache != nil {
		if err := s.cache.InvalidateProducts(ctx, productIDs); err != nil {
			s.logger.Warn("Failed to invalidate product cache after checkout", zap.Error(err))
		}
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", userID),
		zap.Int64("total", order.Total))

	s.publishOrderCreated(ctx, order)

	return order, nil
}

// takeStock decrements stock for every line, compensating already-applied
// decrements when one fails.
func (s *OrderService) takeStock(ctx context.Context, items []models.CartItem) error {
	taken := make([]models.CartItem, 0, len(items))
	for _, item := range items {
		if err := s.store.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			s.restoreStock(ctx, taken)
			var oos *models.OutOfStockError
			if errors.As(err, &oos) {
				util.StockConflictsTotal.Inc()
				util.OrdersFailedTotal.WithLabelValues("out_of_stock").Inc()
			}
			return err
		}
		taken = append(taken, item)
	}
	return nil
}

// restoreStock rolls back stock decrements (compensation).
func (s *OrderService) restoreStock(ctx context.Context, items []models.CartItem) {
	for _, item := range items {
		if err := s.store.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			s.logger.Error("Failed to restore stock",
				zap.Int64("product_id", item.ProductID),
				zap.Int("quantity", item.Quantity),
				zap.Error(err))
		}
	}
}

func (s *OrderService) publishOrderCreated(ctx context.Context, order *models.Order) {
	if s.eventPublisher == nil {
		return
	}

	items := make([]models.OrderItemData, len(order.Items))
	for i, item := range order.Items {
		items[i] = models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
		}
	}

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		OrderID: order.ID,
		UserID:  order.UserID,
		Total:   order.Total,
		Items:   items,
	}

	if err := s.eventPublisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}
}

// GetOrder returns one order; non-admin callers only see their own.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID int64, isAdmin bool) (*models.Order, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && order.UserID != userID {
		return nil, models.ErrForbidden
	}
	return order, nil
}

// ListOrders returns the user's own orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	return s.store.ListOrdersByUser(ctx, userID)
}

// ListAllOrders is the admin listing across users, newest first.
func (s *OrderService) ListAllOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	if filter.Status != "" && !models.IsValidStatus(filter.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrValidation, filter.Status)
	}
	return s.store.ListOrders(ctx, filter)
}

// UpdateStatus applies one step of the order workflow. A non-empty note
// is appended to the audit trail with a timestamp prefix; notes are never
// overwritten or removed.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, newStatus, note string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	if !models.IsValidStatus(newStatus) {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrValidation, newStatus)
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !models.CanTransition(order.Status, newStatus) {
		util.InvalidTransitionsTotal.Inc()
		return nil, &models.InvalidTransitionError{OrderID: orderID, From: order.Status, To: newStatus}
	}

	noteEntry := ""
	if strings.TrimSpace(note) != "" {
		noteEntry = fmt.Sprintf("%s - %s", time.Now().UTC().Format(time.RFC3339), note)
	}

	// The store applies the write conditionally on the status we read
	// above, so a transition that lost a race fails here instead of
	// overwriting the winner.
	if err := s.store.UpdateOrderStatus(ctx, orderID, order.Status, newStatus, noteEntry); err != nil {
		var invalid *models.InvalidTransitionError
		if errors.As(err, &invalid) {
			util.InvalidTransitionsTotal.Inc()
		}
		return nil, err
	}

	util.OrderStatusTransitionsTotal.WithLabelValues(order.Status, newStatus).Inc()
	s.logger.Info("Order status updated",
		zap.Int64("order_id", orderID),
		zap.String("from", order.Status),
		zap.String("to", newStatus))

	if s.eventPublisher != nil {
		event := &models.OrderStatusChangedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderStatusChanged,
				Timestamp: time.Now(),
			},
			OrderID: orderID,
			From:    order.Status,
			To:      newStatus,
			Note:    note,
		}
		if err := s.eventPublisher.PublishOrderStatusChanged(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
		}
	}

	return s.store.GetOrderByID(ctx, orderID)
}
