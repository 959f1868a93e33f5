package cart

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/centuary/backend-dealer/internal/crm"
	"github.com/centuary/backend-dealer/internal/scheme"
)

func newTestService(t *testing.T) (*Service, *crm.Mock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mock := crm.NewMock()
	return &Service{
		Store:   &Store{R: client, TTL: time.Hour},
		Schemes: &scheme.Service{CRM: mock},
	}, mock
}

func withCustomer(t *testing.T, svc *Service, dealerID string) {
	t.Helper()
	_, err := svc.SetCustomer(context.Background(), dealerID, "C-201", "Anita Verma")
	require.NoError(t, err)
}

func TestAddItemRequiresCustomer(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.AddItem(context.Background(), "DLR-1001", crm.Product{ID: "P-100", DealerPrice: 2_500_000})
	require.ErrorIs(t, err, ErrNoCustomer)
}

func TestAddItemIncrementsExisting(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	withCustomer(t, svc, "DLR-1001")

	product := crm.Product{ID: "P-102", Name: "Sleepables Single", DealerPrice: 700_000}
	c, err := svc.AddItem(ctx, "DLR-1001", product)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	require.Equal(t, 1, c.Items[0].Qty)

	c, err = svc.AddItem(ctx, "DLR-1001", product)
	require.NoError(t, err)
	require.Len(t, c.Items, 1, "re-adding must not create a duplicate line")
	require.Equal(t, 2, c.Items[0].Qty)
}

func TestAddItemSeedsSchemeDiscount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	withCustomer(t, svc, "DLR-1001")

	// P-103 is covered by the mock's 10% spring clearance scheme.
	c, err := svc.AddItem(ctx, "DLR-1001", crm.Product{ID: "P-103", Name: "Pocket Spring King", Category: "Spring", DealerPrice: 3_600_000})
	require.NoError(t, err)
	require.Equal(t, 1000, c.Items[0].DiscountBps)
}

func TestUpdateQuantityFloorsAtOne(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	withCustomer(t, svc, "DLR-1001")
	_, err := svc.AddItem(ctx, "DLR-1001", crm.Product{ID: "P-100", DealerPrice: 2_500_000})
	require.NoError(t, err)

	c, err := svc.UpdateQuantity(ctx, "DLR-1001", "P-100", -5)
	require.NoError(t, err)
	require.Equal(t, 1, c.Items[0].Qty)

	c, err = svc.UpdateQuantity(ctx, "DLR-1001", "P-100", 3)
	require.NoError(t, err)
	require.Equal(t, 4, c.Items[0].Qty)
}

func TestUpdateQuantityUnknownProductNoop(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	withCustomer(t, svc, "DLR-1001")
	_, err := svc.AddItem(ctx, "DLR-1001", crm.Product{ID: "P-100", DealerPrice: 2_500_000})
	require.NoError(t, err)

	c, err := svc.UpdateQuantity(ctx, "DLR-1001", "P-999", 3)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	require.Equal(t, 1, c.Items[0].Qty)
}

func TestSetDiscountClamps(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	withCustomer(t, svc, "DLR-1001")
	_, err := svc.AddItem(ctx, "DLR-1001", crm.Product{ID: "P-100", DealerPrice: 2_500_000})
	require.NoError(t, err)

	c, err := svc.SetDiscount(ctx, "DLR-1001", "P-100", 150)
	require.NoError(t, err)
	require.Equal(t, 10000, c.Items[0].DiscountBps)

	c, err = svc.SetDiscount(ctx, "DLR-1001", "P-100", -10)
	require.NoError(t, err)
	require.Zero(t, c.Items[0].DiscountBps)

	c, err = svc.SetDiscount(ctx, "DLR-1001", "P-100", 12.5)
	require.NoError(t, err)
	require.Equal(t, 1250, c.Items[0].DiscountBps)
}

func TestCartSurvivesReload(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	withCustomer(t, svc, "DLR-1001")
	_, err := svc.AddItem(ctx, "DLR-1001", crm.Product{ID: "P-100", Name: "Ortho Plus King", DealerPrice: 2_500_000})
	require.NoError(t, err)

	// A fresh service over the same store sees the same cart.
	again := &Service{Store: svc.Store}
	c, err := again.Get(ctx, "DLR-1001")
	require.NoError(t, err)
	require.Equal(t, "C-201", c.CustomerID)
	require.Len(t, c.Items, 1)
	require.Equal(t, "Ortho Plus King", c.Items[0].Name)
}

func TestClearResetsEverything(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	withCustomer(t, svc, "DLR-1001")
	_, err := svc.AddItem(ctx, "DLR-1001", crm.Product{ID: "P-100", DealerPrice: 2_500_000})
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, "DLR-1001"))

	c, err := svc.Get(ctx, "DLR-1001")
	require.NoError(t, err)
	require.Empty(t, c.Items)
	require.Empty(t, c.CustomerID)
	require.Empty(t, c.PaymentTerms)
}

func TestRemoveItem(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	withCustomer(t, svc, "DLR-1001")
	_, err := svc.AddItem(ctx, "DLR-1001", crm.Product{ID: "P-100", DealerPrice: 2_500_000})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "DLR-1001", crm.Product{ID: "P-101", DealerPrice: 2_100_000})
	require.NoError(t, err)

	c, err := svc.RemoveItem(ctx, "DLR-1001", "P-100")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	require.Equal(t, "P-101", c.Items[0].ProductID)
}
