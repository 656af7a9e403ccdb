package models

import (
	"math"
	"time"

	"github.com/lib/pq"
)

// Product is a catalog entry. Prices are integer amounts of the store
// currency (VND), discount is a percentage in [0,100].
type Product struct {
	ID           int64          `db:"id" json:"id"`
	Name         string         `db:"name" json:"name"`
	Slug         string         `db:"slug" json:"slug"`
	Description  string         `db:"description" json:"description"`
	Price        int64          `db:"price" json:"price"`
	Currency     string         `db:"currency" json:"currency"`
	Discount     float64        `db:"discount" json:"discount"`
	CategoryID   *int64         `db:"category_id" json:"category_id,omitempty"`
	Brand        string         `db:"brand" json:"brand,omitempty"`
	Tags         pq.StringArray `db:"tags" json:"tags"`
	Images       pq.StringArray `db:"images" json:"images"`
	Stock        int            `db:"stock" json:"stock"`
	Rating       float64        `db:"rating" json:"rating"`
	ReviewsCount int            `db:"reviews_count" json:"reviews_count"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// DiscountedPrice is the effective unit price after the percent discount,
// rounded to the nearest whole amount. Never negative.
func (p *Product) DiscountedPrice() int64 {
	if p.Discount <= 0 {
		return p.Price
	}
	d := float64(p.Price) * (1 - p.Discount/100)
	if d < 0 {
		return 0
	}
	return int64(math.Round(d))
}

// FirstImage returns the lead image URL, if any.
func (p *Product) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Category groups products. Products reference it weakly: deleting a
// category leaves its products uncategorized, never deleted.
type Category struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Slug        string    `db:"slug" json:"slug"`
	Description string    `db:"description" json:"description,omitempty"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CartItem is one line of a user's cart. Price is the unit price captured
// from the catalog at the time of the last add for that product.
type CartItem struct {
	ProductID int64 `db:"product_id" json:"product_id"`
	Quantity  int   `db:"quantity" json:"quantity"`
	Price     int64 `db:"price" json:"price"`
}

// Cart is a user's current cart. Total is derived, never stored.
type Cart struct {
	UserID int64      `json:"user_id"`
	Items  []CartItem `json:"items"`
	Total  int64      `json:"total"`
}

// Line is the shape shared by cart and order lines so totals are always
// computed by the same function.
type Line interface {
	LineTotal() int64
}

func (i CartItem) LineTotal() int64 { return i.Price * int64(i.Quantity) }

// OrderItem is a frozen snapshot of a product at checkout time. Later
// catalog edits never alter it.
type OrderItem struct {
	ID          int64  `db:"id" json:"-"`
	OrderID     int64  `db:"order_id" json:"-"`
	ProductID   int64  `db:"product_id" json:"product_id"`
	ProductName string `db:"product_name" json:"product_name"`
	Price       int64  `db:"price" json:"price"`
	Quantity    int    `db:"quantity" json:"quantity"`
	Image       string `db:"image" json:"image,omitempty"`
}

func (i OrderItem) LineTotal() int64 { return i.Price * int64(i.Quantity) }

// ShippingInfo is the customer-supplied delivery contact on an order.
type ShippingInfo struct {
	FullName string `db:"full_name" json:"full_name"`
	Email    string `db:"email" json:"email"`
	Phone    string `db:"phone" json:"phone"`
	Address  string `db:"address" json:"address"`
}

// Order is immutable after creation except for Status and the appended
// StatusNotes audit trail.
type Order struct {
	ID          int64          `db:"id" json:"id"`
	UserID      int64          `db:"user_id" json:"user_id"`
	Items       []OrderItem    `json:"items"`
	Total       int64          `db:"total" json:"total"`
	Status      string         `db:"status" json:"status"`
	Shipping    ShippingInfo   `json:"shipping"`
	Note        string         `db:"note" json:"note,omitempty"`
	StatusNotes pq.StringArray `db:"status_notes" json:"status_notes"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

// OrderStatuses lists every status in workflow order.
var OrderStatuses = []string{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// IsValidStatus reports whether s is a known order status.
func IsValidStatus(s string) bool {
	for _, v := range OrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// statusTransitions encodes pending -> processing -> completed with a
// cancellation branch out of the two non-terminal states.
var statusTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusCompleted:  {},
	OrderStatusCancelled:  {},
}

// CanTransition reports whether an order may move from one status to
// another. Terminal states allow nothing.
func CanTransition(from, to string) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CalculateTotal sums line totals. Cart and order engines both go through
// this so the derived-total invariant holds at every observation point.
func CalculateTotal[T Line](lines []T) int64 {
	var total int64
	for _, l := range lines {
		total += l.LineTotal()
	}
	return total
}

// OrderSummary is the admin dashboard headline, derived on demand.
type OrderSummary struct {
	TotalOrders  int            `json:"total_orders"`
	TotalRevenue int64          `json:"total_revenue"`
	StatusCounts map[string]int `json:"status_counts"`
}

// RevenuePoint is one calendar-day bucket of the revenue series.
type RevenuePoint struct {
	Date  string `json:"date"`
	Total int64  `json:"total"`
}

// TopProduct is one row of the revenue ranking.
type TopProduct struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Revenue   int64  `json:"revenue"`
}

// OrderMetrics is the admin chart payload, derived on demand.
type OrderMetrics struct {
	RevenueByDate []RevenuePoint `json:"revenue_by_date"`
	TopProducts   []TopProduct   `json:"top_products"`
}

// ProductQuery carries catalog filter, sort and pagination parameters.
// Zero values impose no constraint.
type ProductQuery struct {
	Search     string
	CategoryID int64
	MinPrice   *int64
	MaxPrice   *int64
	Brand      string
	Tags       []string
	SortBy     string // created_at | price | rating | name
	SortOrder  string // asc | desc
	Page       int
	Limit      int
}

// ProductPage is one page of a catalog query result.
type ProductPage struct {
	Items []Product `json:"items"`
	Total int       `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
	Pages int       `json:"pages"`
}

// OrderFilter narrows the admin order listing. Zero values match all.
type OrderFilter struct {
	Status    string
	Search    string // substring of shipping full_name or email
	StartDate *time.Time
	EndDate   *time.Time
}
