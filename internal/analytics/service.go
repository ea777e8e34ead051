package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/awibowo/backend-storefront/internal/store"
)

// AnalyticsStore runs the dashboard aggregate queries.
type AnalyticsStore interface {
	SalesSeries(ctx context.Context, from, to time.Time) ([]store.SalesPoint, error)
	TopProducts(ctx context.Context, limit int32) ([]store.TopProduct, error)
	GetOverview(ctx context.Context) (store.Overview, error)
}

// Service serves admin dashboard reports. Results are cached in Redis: the
// aggregates scan the full orders table and the dashboard polls.
type Service struct {
	Store AnalyticsStore
	Redis *redis.Client
	TTL   time.Duration
}

// SalesPoint is one day of the sales chart.
type SalesPoint struct {
	Day     string          `json:"day"`
	Orders  int64           `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

// TopProduct is one row of the best-sellers report.
type TopProduct struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Units     int64           `json:"units"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// Overview holds the dashboard headline numbers.
type Overview struct {
	Orders        int64           `json:"orders"`
	Revenue       decimal.Decimal `json:"revenue"`
	Customers     int64           `json:"customers"`
	AvgOrderValue decimal.Decimal `json:"avg_order_value"`
}

// Sales returns the daily series over [from, to).
func (s *Service) Sales(ctx context.Context, from, to time.Time) ([]SalesPoint, error) {
	key := fmt.Sprintf("analytics:sales:%s:%s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	var cached []SalesPoint
	if s.getJSON(ctx, key, &cached) {
		return cached, nil
	}
	rows, err := s.Store.SalesSeries(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("sales series: %w", err)
	}
	out := make([]SalesPoint, 0, len(rows))
	for _, p := range rows {
		out = append(out, SalesPoint{
			Day:     p.Day.Format("2006-01-02"),
			Orders:  p.Orders,
			Revenue: p.Revenue,
		})
	}
	s.setJSON(ctx, key, out)
	return out, nil
}

// TopProducts returns the best sellers by units.
func (s *Service) TopProducts(ctx context.Context, limit int32) ([]TopProduct, error) {
	if limit < 1 || limit > 50 {
		limit = 10
	}
	key := fmt.Sprintf("analytics:top:%d", limit)
	var cached []TopProduct
	if s.getJSON(ctx, key, &cached) {
		return cached, nil
	}
	rows, err := s.Store.TopProducts(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	out := make([]TopProduct, 0, len(rows))
	for _, p := range rows {
		out = append(out, TopProduct{
			ProductID: p.ProductID,
			Name:      p.Name,
			Units:     p.Units,
			Revenue:   p.Revenue,
		})
	}
	s.setJSON(ctx, key, out)
	return out, nil
}

// Overview returns the headline totals.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	const key = "analytics:overview"
	var cached Overview
	if s.getJSON(ctx, key, &cached) {
		return cached, nil
	}
	o, err := s.Store.GetOverview(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("overview: %w", err)
	}
	out := Overview{
		Orders:        o.Orders,
		Revenue:       o.Revenue,
		Customers:     o.Customers,
		AvgOrderValue: o.AvgOrderValue,
	}
	s.setJSON(ctx, key, out)
	return out, nil
}

// Cache misses and Redis failures both fall through to Postgres.
func (s *Service) getJSON(ctx context.Context, key string, dst any) bool {
	if s.Redis == nil {
		return false
	}
	raw, err := s.Redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func (s *Service) setJSON(ctx context.Context, key string, v any) {
	if s.Redis == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	_ = s.Redis.Set(ctx, key, raw, ttl).Err()
}
