package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testShipping = CreateOrderRequest{
	FullName: "Nguyễn Văn An",
	Email:    "an.nguyen@example.com",
	Phone:    "0901234567",
	Address:  "123 Lê Lợi, Quận 1, TP.HCM",
}

func TestCreateOrderHappyPath(t *testing.T) {
	st := store.NewMemStore()
	carts := NewCartService(st, nil)
	orders := NewOrderService(st, nil, nil)
	ctx := context.Background()

	p := seedProduct(t, st, models.Product{
		Name:   "Laptop gaming",
		Price:  25_000_000,
		Stock:  5,
		Images: []string{"laptop-front.jpg", "laptop-side.jpg"},
	})

	_, err := carts.AddItem(ctx, 7, p.ID, 2)
	require.NoError(t, err)

	req := testShipping
	req.Note = "Giao giờ hành chính"
	order, err := orders.CreateOrder(ctx, 7, req)
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, int64(7), order.UserID)
	assert.Equal(t, int64(2*25_000_000), order.Total)
	assert.Equal(t, "Giao giờ hành chính", order.Note)
	assert.Equal(t, req.FullName, order.Shipping.FullName)
	assert.Empty(t, order.StatusNotes)

	require.Len(t, order.Items, 1)
	assert.Equal(t, p.ID, order.Items[0].ProductID)
	assert.Equal(t, "Laptop gaming", order.Items[0].ProductName)
	assert.Equal(t, "laptop-front.jpg", order.Items[0].Image)

	// stock decremented, cart cleared
	got, err := st.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)

	cart, err := carts.GetCart(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestCreateOrderEmptyCart(t *testing.T) {
	st := store.NewMemStore()
	orders := NewOrderService(st, nil, nil)

	_, err := orders.CreateOrder(context.Background(), 1, testShipping)
	assert.ErrorIs(t, err, models.ErrEmptyCart)
}

func TestCreateOrderValidation(t *testing.T) {
	st := store.NewMemStore()
	orders := NewOrderService(st, nil, nil)

	req := testShipping
	req.Email = "   "
	_, err := orders.CreateOrder(context.Background(), 1, req)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestCreateOrderInsufficientStockRollsBack(t *testing.T) {
	st := store.NewMemStore()
	carts := NewCartService(st, nil)
	orders := NewOrderService(st, nil, nil)
	ctx := context.Background()

	a := seedProduct(t, st, models.Product{Name: "Sản phẩm A", Price: 100_000, Stock: 10})
	b := seedProduct(t, st, models.Product{Name: "Sản phẩm B", Price: 200_000, Stock: 3})

	_, err := carts.AddItem(ctx, 1, a.ID, 2)
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, 1, b.ID, 3)
	require.NoError(t, err)

	// another customer drains product B between add and checkout
	require.NoError(t, st.DecrementStock(ctx, b.ID, 2))

	_, err = orders.CreateOrder(ctx, 1, testShipping)
	var oos *models.OutOfStockError
	require.True(t, errors.As(err, &oos))
	assert.Equal(t, b.ID, oos.ProductID)
	assert.Equal(t, 3, oos.Requested)
	assert.Equal(t, 1, oos.Available)

	// the decrement already applied to A was rolled back
	gotA, err := st.GetProductByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, gotA.Stock)
	gotB, err := st.GetProductByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gotB.Stock)

	// cart untouched, no order recorded
	cart, err := carts.GetCart(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)

	all, err := st.ListOrders(ctx, models.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestConcurrentCheckoutSingleUnit(t *testing.T) {
	st := store.NewMemStore()
	carts := NewCartService(st, nil)
	orders := NewOrderService(st, nil, nil)
	ctx := context.Background()

	p := seedProduct(t, st, models.Product{Name: "Hàng hiếm", Price: 100_000, Stock: 1})

	_, err := carts.AddItem(ctx, 1, p.ID, 1)
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, 2, p.ID, 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, userID := range []int64{1, 2} {
		wg.Add(1)
		go func(i int, userID int64) {
			defer wg.Done()
			_, errs[i] = orders.CreateOrder(ctx, userID, testShipping)
		}(i, userID)
	}
	wg.Wait()

	var okCount, oosCount int
	for _, err := range errs {
		var oos *models.OutOfStockError
		switch {
		case err == nil:
			okCount++
		case errors.As(err, &oos):
			oosCount++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, okCount)
	assert.Equal(t, 1, oosCount)

	got, err := st.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)

	all, err := st.ListOrders(ctx, models.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, int64(100_000), all[0].Total)
}

func TestOrderSnapshotSurvivesCatalogEdits(t *testing.T) {
	st := store.NewMemStore()
	carts := NewCartService(st, nil)
	catalog := NewCatalogService(st, nil)
	orders := NewOrderService(st, nil, nil)
	ctx := context.Background()

	p := seedProduct(t, st, models.Product{Name: "Tên cũ", Price: 800_000, Stock: 10})

	_, err := carts.AddItem(ctx, 1, p.ID, 1)
	require.NoError(t, err)

	order, err := orders.CreateOrder(ctx, 1, testShipping)
	require.NoError(t, err)

	newName := "Tên mới"
	newPrice := int64(1_000_000)
	_, err = catalog.UpdateProduct(ctx, p.ID, ProductUpdateRequest{Name: &newName, Price: &newPrice})
	require.NoError(t, err)

	got, err := orders.GetOrder(ctx, order.ID, 1, false)
	require.NoError(t, err)
	assert.Equal(t, "Tên cũ", got.Items[0].ProductName)
	assert.Equal(t, int64(800_000), got.Items[0].Price)
	assert.Equal(t, int64(800_000), got.Total)
}

func TestGetOrderOwnership(t *testing.T) {
	st := store.NewMemStore()
	carts := NewCartService(st, nil)
	orders := NewOrderService(st, nil, nil)
	ctx := context.Background()

	p := seedProduct(t, st, models.Product{Name: "Sách", Price: 90_000, Stock: 10})
	_, err := carts.AddItem(ctx, 1, p.ID, 1)
	require.NoError(t, err)
	order, err := orders.CreateOrder(ctx, 1, testShipping)
	require.NoError(t, err)

	// owner sees it
	_, err = orders.GetOrder(ctx, order.ID, 1, false)
	assert.NoError(t, err)

	// another user does not
	_, err = orders.GetOrder(ctx, order.ID, 2, false)
	assert.ErrorIs(t, err, models.ErrForbidden)

	// admin sees everything
	_, err = orders.GetOrder(ctx, order.ID, 2, true)
	assert.NoError(t, err)

	_, err = orders.GetOrder(ctx, 999, 1, true)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}

func placeOrder(t *testing.T, st store.Store, carts *CartService, orders *OrderService, userID, productID int64, qty int) *models.Order {
	t.Helper()
	ctx := context.Background()
	_, err := carts.AddItem(ctx, userID, productID, qty)
	require.NoError(t, err)
	order, err := orders.CreateOrder(ctx, userID, testShipping)
	require.NoError(t, err)
	return order
}

func TestUpdateStatusTransitions(t *testing.T) {
	st := store.NewMemStore()
	carts := NewCartService(st, nil)
	orders := NewOrderService(st, nil, nil)
	ctx := context.Background()

	p := seedProduct(t, st, models.Product{Name: "Bút bi", Price: 5_000, Stock: 100})

	tests := []struct {
		name string
		path []string
		to   string
		ok   bool
	}{
		{"pending to processing", nil, models.OrderStatusProcessing, true},
		{"pending to cancelled", nil, models.OrderStatusCancelled, true},
		{"pending to completed skips processing", nil, models.OrderStatusCompleted, false},
		{"processing to completed", []string{models.OrderStatusProcessing}, models.OrderStatusCompleted, true},
		{"processing to cancelled", []string{models.OrderStatusProcessing}, models.OrderStatusCancelled, true},
		{"completed is terminal", []string{models.OrderStatusProcessing, models.OrderStatusCompleted}, models.OrderStatusCancelled, false},
		{"cancelled is terminal", []string{models.OrderStatusCancelled}, models.OrderStatusProcessing, false},
		{"same status rejected", nil, models.OrderStatusPending, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := placeOrder(t, st, carts, orders, 1, p.ID, 1)
			for _, step := range tt.path {
				_, err := orders.UpdateStatus(ctx, order.ID, step, "")
				require.NoError(t, err)
			}

			updated, err := orders.UpdateStatus(ctx, order.ID, tt.to, "")
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.to, updated.Status)
				return
			}
			var inv *models.InvalidTransitionError
			require.True(t, errors.As(err, &inv))
			assert.Equal(t, tt.to, inv.To)
		})
	}
}

func TestUpdateStatusUnknownStatus(t *testing.T) {
	st := store.NewMemStore()
	carts := NewCartService(st, nil)
	orders := NewOrderService(st, nil, nil)

	p := seedProduct(t, st, models.Product{Name: "Vở", Price: 10_000, Stock: 10})
	order := placeOrder(t, st, carts, orders, 1, p.ID, 1)

	_, err := orders.UpdateStatus(context.Background(), order.ID, "shipped", "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestUpdateStatusConcurrentCancelAndProcess(t *testing.T) {
	st := store.NewMemStore()
	carts := NewCartService(st, nil)
	orders := NewOrderService(st, nil, nil)
	ctx := context.Background()

	p := seedProduct(t, st, models.Product{Name: "Bút bi", Price: 5_000, Stock: 1000})

	for i := 0; i < 200; i++ {
		order := placeOrder(t, st, carts, orders, 1, p.ID, 1)

		var wg sync.WaitGroup
		var cancelErr, processErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, cancelErr = orders.UpdateStatus(ctx, order.ID, models.OrderStatusCancelled, "")
		}()
		go func() {
			defer wg.Done()
			_, processErr = orders.UpdateStatus(ctx, order.ID, models.OrderStatusProcessing, "")
		}()
		wg.Wait()

		got, err := st.GetOrderByID(ctx, order.ID)
		require.NoError(t, err)

		// Either the cancel won (the order must stay cancelled: processing
		// is not reachable from a terminal state) or processing got there
		// first, in which case a later cancel is still legal.
		switch got.Status {
		case models.OrderStatusCancelled:
			require.NoError(t, cancelErr)
		case models.OrderStatusProcessing:
			require.NoError(t, processErr)
			var invalid *models.InvalidTransitionError
			require.ErrorAs(t, cancelErr, &invalid)
		default:
			t.Fatalf("unexpected final status %q", got.Status)
		}
		if cancelErr == nil {
			assert.Equal(t, models.OrderStatusCancelled, got.Status,
				"a cancelled order must not end up in another state")
		}
	}
}

func TestStatusNotesAppended(t *testing.T) {
	st := store.NewMemStore()
	carts := NewCartService(st, nil)
	orders := NewOrderService(st, nil, nil)
	ctx := context.Background()

	p := seedProduct(t, st, models.Product{Name: "Hộp quà", Price: 150_000, Stock: 10})
	order := placeOrder(t, st, carts, orders, 1, p.ID, 1)

	updated, err := orders.UpdateStatus(ctx, order.ID, models.OrderStatusProcessing, "đang đóng gói")
	require.NoError(t, err)
	require.Len(t, updated.StatusNotes, 1)
	assert.True(t, strings.HasSuffix(updated.StatusNotes[0], " - đang đóng gói"))

	prefix := strings.SplitN(updated.StatusNotes[0], " - ", 2)[0]
	_, err = time.Parse(time.RFC3339, prefix)
	assert.NoError(t, err, "note prefix should be an RFC3339 timestamp")

	// blank note changes status without touching the trail
	updated, err = orders.UpdateStatus(ctx, order.ID, models.OrderStatusCompleted, "   ")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, updated.Status)
	assert.Len(t, updated.StatusNotes, 1)
}

func TestListOrdersScopedToUser(t *testing.T) {
	st := store.NewMemStore()
	carts := NewCartService(st, nil)
	orders := NewOrderService(st, nil, nil)
	ctx := context.Background()

	p := seedProduct(t, st, models.Product{Name: "Áo thun", Price: 120_000, Stock: 50})

	placeOrder(t, st, carts, orders, 1, p.ID, 1)
	placeOrder(t, st, carts, orders, 1, p.ID, 2)
	placeOrder(t, st, carts, orders, 2, p.ID, 1)

	mine, err := orders.ListOrders(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	for _, o := range mine {
		assert.Equal(t, int64(1), o.UserID)
	}

	all, err := orders.ListAllOrders(ctx, models.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestListAllOrdersFilters(t *testing.T) {
	st := store.NewMemStore()
	carts := NewCartService(st, nil)
	orders := NewOrderService(st, nil, nil)
	ctx := context.Background()

	p := seedProduct(t, st, models.Product{Name: "Quần jean", Price: 350_000, Stock: 50})

	o1 := placeOrder(t, st, carts, orders, 1, p.ID, 1)
	placeOrder(t, st, carts, orders, 2, p.ID, 1)

	_, err := orders.UpdateStatus(ctx, o1.ID, models.OrderStatusProcessing, "")
	require.NoError(t, err)

	processing, err := orders.ListAllOrders(ctx, models.OrderFilter{Status: models.OrderStatusProcessing})
	require.NoError(t, err)
	require.Len(t, processing, 1)
	assert.Equal(t, o1.ID, processing[0].ID)

	_, err = orders.ListAllOrders(ctx, models.OrderFilter{Status: "refunded"})
	assert.ErrorIs(t, err, models.ErrValidation)

	byName, err := orders.ListAllOrders(ctx, models.OrderFilter{Search: "văn an"})
	require.NoError(t, err)
	assert.Len(t, byName, 2)
}
