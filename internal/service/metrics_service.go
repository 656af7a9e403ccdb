package service

import (
	"context"
	"sort"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"
)

// MetricsService derives admin-facing order aggregates on demand. It only
// reads; a latest-committed view is acceptable, so it takes no locks.
type MetricsService struct {
	store       store.Store
	windowDays  int
	topProducts int
	now         func() time.Time
}

// NewMetricsService creates a new metrics service
func NewMetricsService(store store.Store, windowDays, topProducts int) *MetricsService {
	if windowDays < 1 {
		windowDays = 7
	}
	if topProducts < 1 {
		topProducts = 5
	}
	return &MetricsService{
		store:       store,
		windowDays:  windowDays,
		topProducts: topProducts,
		now:         time.Now,
	}
}

// Summary counts orders and sums revenue across the whole order set.
// Cancelled orders count toward revenue; all four statuses are present in
// the counts even at zero.
func (s *MetricsService) Summary(ctx context.Context) (*models.OrderSummary, error) {
	ctx, span := util.StartSpan(ctx, "MetricsService.Summary")
	defer span.End()

	orders, err := s.store.ListOrders(ctx, models.OrderFilter{})
	if err != nil {
		return nil, err
	}

	summary := &models.OrderSummary{
		TotalOrders:  len(orders),
		StatusCounts: make(map[string]int, len(models.OrderStatuses)),
	}
	for _, status := range models.OrderStatuses {
		summary.StatusCounts[status] = 0
	}
	for _, order := range orders {
		summary.TotalRevenue += order.Total
		summary.StatusCounts[order.Status]++
	}
	return summary, nil
}

// Metrics builds the trailing revenue series and the top-product ranking.
// The series has one bucket per calendar day (UTC) over the window,
// zero-filled and chronological; the ranking covers all orders.
func (s *MetricsService) Metrics(ctx context.Context) (*models.OrderMetrics, error) {
	ctx, span := util.StartSpan(ctx, "MetricsService.Metrics")
	defer span.End()

	orders, err := s.store.ListOrders(ctx, models.OrderFilter{})
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	windowStart := today.AddDate(0, 0, -(s.windowDays - 1))

	byDate := make(map[string]int64, s.windowDays)
	for _, order := range orders {
		created := order.CreatedAt.UTC()
		if created.Before(windowStart) {
			continue
		}
		byDate[created.Format("2006-01-02")] += order.Total
	}

	revenue := make([]models.RevenuePoint, 0, s.windowDays)
	for d := 0; d < s.windowDays; d++ {
		date := windowStart.AddDate(0, 0, d).Format("2006-01-02")
		revenue = append(revenue, models.RevenuePoint{Date: date, Total: byDate[date]})
	}

	return &models.OrderMetrics{
		RevenueByDate: revenue,
		TopProducts:   s.rankProducts(orders),
	}, nil
}

func (s *MetricsService) rankProducts(orders []models.Order) []models.TopProduct {
	byProduct := make(map[int64]*models.TopProduct)
	for _, order := range orders {
		for _, item := range order.Items {
			tp, ok := byProduct[item.ProductID]
			if !ok {
				tp = &models.TopProduct{ProductID: item.ProductID, Name: item.ProductName}
				byProduct[item.ProductID] = tp
			}
			tp.Quantity += item.Quantity
			tp.Revenue += item.LineTotal()
		}
	}

	ranked := make([]models.TopProduct, 0, len(byProduct))
	for _, tp := range byProduct {
		ranked = append(ranked, *tp)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Revenue == ranked[j].Revenue {
			return ranked[i].ProductID < ranked[j].ProductID
		}
		return ranked[i].Revenue > ranked[j].Revenue
	})

	if len(ranked) > s.topProducts {
		ranked = ranked[:s.topProducts]
	}
	return ranked
}
