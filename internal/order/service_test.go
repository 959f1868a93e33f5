package order_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/centuary/backend-dealer/internal/common"
	"github.com/centuary/backend-dealer/internal/crm"
	"github.com/centuary/backend-dealer/internal/order"
	"github.com/centuary/backend-dealer/internal/pricing"
)

const dealerID = "DLR-1001"

func newService() *order.Service {
	return &order.Service{CRM: crm.NewMock(), TaxBps: 1800}
}

func TestListAndSearch(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	all, err := svc.List(ctx, dealerID, "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	byNumber, err := svc.List(ctx, dealerID, "0117")
	require.NoError(t, err)
	require.Len(t, byNumber, 1)
	require.Equal(t, "O-301", byNumber[0].ID)

	byCustomer, err := svc.List(ctx, dealerID, "lakshmi")
	require.NoError(t, err)
	require.Len(t, byCustomer, 1)
	require.Equal(t, "O-302", byCustomer[0].ID)
}

func TestGetRecomputesTotals(t *testing.T) {
	svc := newService()
	view, err := svc.Get(context.Background(), dealerID, "O-301")
	require.NoError(t, err)
	require.Equal(t, "ORD-2024-0117", view.Number)

	// 1 x 2_500_000 at 5% off plus 2 x 180_000 at list.
	require.Equal(t, pricing.Money(2_860_000), view.Summary.Subtotal)
	require.Equal(t, pricing.Money(125_000), view.Summary.Discount)
	require.Equal(t, pricing.Money(492_300), view.Summary.Tax)
	require.Equal(t, pricing.Money(3_227_300), view.Summary.Total)
}

func TestGetByNumber(t *testing.T) {
	svc := newService()
	view, err := svc.Get(context.Background(), dealerID, "ORD-2024-0123")
	require.NoError(t, err)
	require.Equal(t, "O-302", view.ID)
}

func TestGetUnknownOrder(t *testing.T) {
	svc := newService()
	_, err := svc.Get(context.Background(), dealerID, "O-999")
	require.ErrorIs(t, err, common.ErrNotFound)
}
