package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/centuary/backend-dealer/internal/analytics"
	"github.com/centuary/backend-dealer/internal/crm"
	"github.com/centuary/backend-dealer/internal/pricing"
)

const dealerID = "DLR-1001"

type countingClient struct {
	crm.Client
	orderCalls int
}

func (c *countingClient) QueryOrders(ctx context.Context, dealer string) ([]crm.Order, error) {
	c.orderCalls++
	return c.Client.QueryOrders(ctx, dealer)
}

func newService(t *testing.T) (*analytics.Service, *countingClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	counting := &countingClient{Client: crm.NewMock()}
	svc := &analytics.Service{
		CRM: counting,
		R:   client,
		TTL: 10 * time.Minute,
	}
	return svc, counting
}

func window() (time.Time, time.Time) {
	now := time.Now().UTC()
	return now.AddDate(0, 0, -30), now.Add(time.Hour)
}

func TestSalesRangeAggregatesOrders(t *testing.T) {
	svc, counting := newService(t)
	ctx := context.Background()
	from, to := window()

	summary, err := svc.SalesRange(ctx, dealerID, from, to)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Orders)
	require.Equal(t, 13, summary.Units)
	// 2_735_000 net for the discounted king order plus 7_000_000 for the
	// single-size bulk order.
	require.Equal(t, pricing.Money(9_735_000), summary.Value)

	// Second read comes from the cache.
	_, err = svc.SalesRange(ctx, dealerID, from, to)
	require.NoError(t, err)
	require.Equal(t, 1, counting.orderCalls)
}

func TestSalesRangeWindowExcludes(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// Only the 6-day-old order falls inside the last fortnight.
	summary, err := svc.SalesRange(ctx, dealerID, now.AddDate(0, 0, -14), now)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Orders)
	require.Equal(t, 10, summary.Units)
}

func TestTopProductsOrdering(t *testing.T) {
	svc, _ := newService(t)
	from, to := window()

	rows, err := svc.TopProducts(context.Background(), dealerID, from, to, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "P-102", rows[0].ProductID)
	require.Equal(t, 10, rows[0].Units)
	require.Equal(t, "P-104", rows[1].ProductID)
}

func TestTargetsAchievement(t *testing.T) {
	svc, _ := newService(t)
	rows, err := svc.Targets(context.Background(), dealerID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "2024-Q1", rows[0].Period)
	require.Equal(t, 10833, rows[0].AchievedBps)
	require.Equal(t, 6889, rows[1].AchievedBps)
}
