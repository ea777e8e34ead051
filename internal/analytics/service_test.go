package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/awibowo/backend-storefront/internal/store"
)

type countingStore struct {
	salesCalls    int
	overviewCalls int
}

func (c *countingStore) SalesSeries(_ context.Context, from, _ time.Time) ([]store.SalesPoint, error) {
	c.salesCalls++
	return []store.SalesPoint{
		{Day: from, Orders: 3, Revenue: decimal.RequireFromString("1619.91")},
	}, nil
}

func (c *countingStore) TopProducts(_ context.Context, limit int32) ([]store.TopProduct, error) {
	return []store.TopProduct{
		{ProductID: "p1", Name: "Headphones", Units: 42, Revenue: decimal.RequireFromString("8399.58")},
	}[:min(1, int(limit))], nil
}

func (c *countingStore) GetOverview(context.Context) (store.Overview, error) {
	c.overviewCalls++
	return store.Overview{
		Orders: 12, Revenue: decimal.RequireFromString("6479.64"),
		Customers: 7, AvgOrderValue: decimal.RequireFromString("539.97"),
	}, nil
}

func newTestService(t *testing.T) (*Service, *countingStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	st := &countingStore{}
	return &Service{Store: st, Redis: client, TTL: time.Minute}, st
}

func TestSalesCached(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	for i := 0; i < 3; i++ {
		points, err := svc.Sales(ctx, from, to)
		require.NoError(t, err)
		require.Len(t, points, 1)
		require.Equal(t, "2026-08-01", points[0].Day)
		require.Equal(t, "1619.91", points[0].Revenue.String())
	}
	require.Equal(t, 1, st.salesCalls, "repeat reads come from cache")

	// A different range is its own cache entry.
	_, err := svc.Sales(ctx, from.AddDate(0, -1, 0), to)
	require.NoError(t, err)
	require.Equal(t, 2, st.salesCalls)
}

func TestOverviewCached(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	first, err := svc.Overview(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(12), first.Orders)
	require.Equal(t, "539.97", first.AvgOrderValue.String())

	_, err = svc.Overview(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, st.overviewCalls)
}

func TestOverviewWithoutRedis(t *testing.T) {
	st := &countingStore{}
	svc := &Service{Store: st}

	for i := 0; i < 2; i++ {
		_, err := svc.Overview(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, 2, st.overviewCalls, "no cache, every read hits the store")
}

func TestTopProductsClampsLimit(t *testing.T) {
	svc, _ := newTestService(t)

	rows, err := svc.TopProducts(context.Background(), 9999)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, int64(42), rows[0].Units)
}
