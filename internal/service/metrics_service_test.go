package service

import (
	"context"
	"testing"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryEmpty(t *testing.T) {
	st := store.NewMemStore()
	metrics := NewMetricsService(st, 7, 5)

	summary, err := metrics.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.TotalOrders)
	assert.Equal(t, int64(0), summary.TotalRevenue)
	require.Len(t, summary.StatusCounts, len(models.OrderStatuses))
	for _, status := range models.OrderStatuses {
		assert.Equal(t, 0, summary.StatusCounts[status], status)
	}
}

func TestSummaryCountsEveryOrder(t *testing.T) {
	st := store.NewMemStore()
	carts := NewCartService(st, nil)
	orders := NewOrderService(st, nil, nil)
	metrics := NewMetricsService(st, 7, 5)
	ctx := context.Background()

	p := seedProduct(t, st, models.Product{Name: "Nồi chiên", Price: 1_800_000, Stock: 50})

	placeOrder(t, st, carts, orders, 1, p.ID, 1)
	o2 := placeOrder(t, st, carts, orders, 2, p.ID, 2)
	o3 := placeOrder(t, st, carts, orders, 3, p.ID, 1)

	_, err := orders.UpdateStatus(ctx, o2.ID, models.OrderStatusProcessing, "")
	require.NoError(t, err)
	_, err = orders.UpdateStatus(ctx, o3.ID, models.OrderStatusCancelled, "")
	require.NoError(t, err)

	summary, err := metrics.Summary(ctx)
	require.NoError(t, err)

	all, err := orders.ListAllOrders(ctx, models.OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, len(all), summary.TotalOrders)

	// cancelled orders still count toward revenue
	assert.Equal(t, int64(4*1_800_000), summary.TotalRevenue)
	assert.Equal(t, 1, summary.StatusCounts[models.OrderStatusPending])
	assert.Equal(t, 1, summary.StatusCounts[models.OrderStatusProcessing])
	assert.Equal(t, 0, summary.StatusCounts[models.OrderStatusCompleted])
	assert.Equal(t, 1, summary.StatusCounts[models.OrderStatusCancelled])
}

func TestMetricsEmptyWindowIsZeroFilled(t *testing.T) {
	st := store.NewMemStore()
	metrics := NewMetricsService(st, 7, 5)
	metrics.now = func() time.Time {
		return time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)
	}

	got, err := metrics.Metrics(context.Background())
	require.NoError(t, err)

	require.Len(t, got.RevenueByDate, 7)
	assert.Equal(t, "2025-03-04", got.RevenueByDate[0].Date)
	assert.Equal(t, "2025-03-10", got.RevenueByDate[6].Date)
	for i, point := range got.RevenueByDate {
		assert.Equal(t, int64(0), point.Total, point.Date)
		if i > 0 {
			prev, _ := time.Parse("2006-01-02", got.RevenueByDate[i-1].Date)
			curr, _ := time.Parse("2006-01-02", point.Date)
			assert.Equal(t, 24*time.Hour, curr.Sub(prev), "series must be contiguous")
		}
	}
	assert.Empty(t, got.TopProducts)
}

func TestMetricsBucketsRevenueByDay(t *testing.T) {
	st := store.NewMemStore()
	carts := NewCartService(st, nil)
	orders := NewOrderService(st, nil, nil)
	metrics := NewMetricsService(st, 7, 5)
	ctx := context.Background()

	p := seedProduct(t, st, models.Product{Name: "Máy xay", Price: 600_000, Stock: 50})

	placeOrder(t, st, carts, orders, 1, p.ID, 1)
	placeOrder(t, st, carts, orders, 2, p.ID, 2)

	// pin "today" two days after the orders were created
	created := time.Now().UTC()
	metrics.now = func() time.Time { return created.AddDate(0, 0, 2) }

	got, err := metrics.Metrics(ctx)
	require.NoError(t, err)

	require.Len(t, got.RevenueByDate, 7)
	orderDate := created.Format("2006-01-02")
	var found bool
	for _, point := range got.RevenueByDate {
		if point.Date == orderDate {
			found = true
			assert.Equal(t, int64(3*600_000), point.Total)
		} else {
			assert.Equal(t, int64(0), point.Total, point.Date)
		}
	}
	assert.True(t, found, "order date must fall inside the window")
}

func TestMetricsRankingCoversAllTimeAndTruncates(t *testing.T) {
	st := store.NewMemStore()
	carts := NewCartService(st, nil)
	orders := NewOrderService(st, nil, nil)
	metrics := NewMetricsService(st, 7, 2)
	ctx := context.Background()

	a := seedProduct(t, st, models.Product{Name: "Sản phẩm A", Price: 100_000, Stock: 50})
	b := seedProduct(t, st, models.Product{Name: "Sản phẩm B", Price: 300_000, Stock: 50})
	c := seedProduct(t, st, models.Product{Name: "Sản phẩm C", Price: 50_000, Stock: 50})

	_, err := carts.AddItem(ctx, 1, a.ID, 2) // 200k
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, 1, b.ID, 3) // 900k
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, 1, c.ID, 1) // 50k
	require.NoError(t, err)
	_, err = orders.CreateOrder(ctx, 1, testShipping)
	require.NoError(t, err)

	placeOrder(t, st, carts, orders, 2, a.ID, 1) // A up to 300k

	// push the orders far outside the revenue window; the ranking still
	// sees them while the series goes flat
	metrics.now = func() time.Time { return time.Now().UTC().AddDate(0, 0, 30) }

	got, err := metrics.Metrics(ctx)
	require.NoError(t, err)

	for _, point := range got.RevenueByDate {
		assert.Equal(t, int64(0), point.Total)
	}

	require.Len(t, got.TopProducts, 2)
	assert.Equal(t, b.ID, got.TopProducts[0].ProductID)
	assert.Equal(t, int64(900_000), got.TopProducts[0].Revenue)
	assert.Equal(t, 3, got.TopProducts[0].Quantity)
	assert.Equal(t, a.ID, got.TopProducts[1].ProductID)
	assert.Equal(t, int64(300_000), got.TopProducts[1].Revenue)
}
