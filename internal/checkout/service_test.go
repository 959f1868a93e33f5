package checkout_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/centuary/backend-dealer/internal/cart"
	"github.com/centuary/backend-dealer/internal/checkout"
	"github.com/centuary/backend-dealer/internal/common"
	"github.com/centuary/backend-dealer/internal/crm"
	"github.com/centuary/backend-dealer/internal/events"
	"github.com/centuary/backend-dealer/internal/lock"
	"github.com/centuary/backend-dealer/internal/pricing"
	"github.com/centuary/backend-dealer/internal/scheme"
)

type fixture struct {
	svc    *checkout.Service
	mock   *crm.Mock
	cart   *cart.Service
	stream *events.StreamStore
	client *redis.Client
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mock := crm.NewMock()
	cartSvc := &cart.Service{
		Store:   &cart.Store{R: client},
		Schemes: &scheme.Service{CRM: mock},
	}
	stream := &events.StreamStore{R: client}
	svc := &checkout.Service{
		CRM:    mock,
		Cart:   cartSvc,
		Locks:  lock.Locker{R: client},
		Events: &events.Bus{Store: stream},
		TaxBps: 1800,
	}
	return fixture{svc: svc, mock: mock, cart: cartSvc, stream: stream, client: client}
}

var testDealer = common.Dealer{ID: "DLR-1001", Code: "DLR-1001", Name: "Sharma Home Comforts"}

func productByID(t *testing.T, mock *crm.Mock, id string) crm.Product {
	t.Helper()
	products, err := mock.QueryProducts(context.Background())
	require.NoError(t, err)
	for _, p := range products {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("product %s not seeded", id)
	return crm.Product{}
}

func fillCart(t *testing.T, fx fixture) {
	t.Helper()
	ctx := context.Background()
	_, err := fx.cart.SetCustomer(ctx, testDealer.ID, "C-201", "Anita Verma")
	require.NoError(t, err)
	_, err = fx.cart.SetPaymentTerms(ctx, testDealer.ID, "Net 30")
	require.NoError(t, err)
	_, err = fx.cart.SetDeliveryMode(ctx, testDealer.ID, "Company Transport")
	require.NoError(t, err)
	_, err = fx.cart.AddItem(ctx, testDealer.ID, productByID(t, fx.mock, "P-100"))
	require.NoError(t, err)
}

func TestPlaceOrderValidationOrder(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.PlaceOrder(ctx, testDealer)
	require.ErrorIs(t, err, checkout.ErrMissingCustomer)

	_, err = fx.cart.SetCustomer(ctx, testDealer.ID, "C-201", "Anita Verma")
	require.NoError(t, err)
	_, err = fx.svc.PlaceOrder(ctx, testDealer)
	require.ErrorIs(t, err, checkout.ErrMissingPaymentTerms)

	_, err = fx.cart.SetPaymentTerms(ctx, testDealer.ID, "Net 30")
	require.NoError(t, err)
	_, err = fx.svc.PlaceOrder(ctx, testDealer)
	require.ErrorIs(t, err, checkout.ErrMissingDeliveryMode)

	_, err = fx.cart.SetDeliveryMode(ctx, testDealer.ID, "Company Transport")
	require.NoError(t, err)
	_, err = fx.svc.PlaceOrder(ctx, testDealer)
	require.ErrorIs(t, err, checkout.ErrEmptyCart)

	require.Empty(t, fx.mock.CreatedAcks)
}

func TestPlaceOrderSuccessClearsCart(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fillCart(t, fx)

	out, err := fx.svc.PlaceOrder(ctx, testDealer)
	require.NoError(t, err)
	require.NotEmpty(t, out.OrderID)
	require.NotEmpty(t, out.OrderNumber)
	require.Equal(t, pricing.Money(2_500_000), out.Summary.Subtotal)
	require.Equal(t, out.Summary.Subtotal-out.Summary.Discount+out.Summary.Tax, out.Summary.Total)

	c, err := fx.cart.Get(ctx, testDealer.ID)
	require.NoError(t, err)
	require.Empty(t, c.Items)
	require.Empty(t, c.CustomerID)
	require.Empty(t, c.PaymentTerms)

	require.Len(t, fx.mock.CreatedAcks, 1)
	require.Equal(t, out.OrderID, fx.mock.CreatedAcks[0].ID)

	orders, err := fx.mock.QueryOrders(ctx, testDealer.ID)
	require.NoError(t, err)
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	require.Contains(t, ids, out.OrderID)

	recent, err := fx.stream.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, events.TopicOrderPlaced, recent[0].Topic)
	require.Equal(t, testDealer.ID, recent[0].DealerID)
}

func TestPlaceOrderFailureKeepsCart(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fillCart(t, fx)
	fx.mock.FailWrites = true

	_, err := fx.svc.PlaceOrder(ctx, testDealer)
	require.ErrorIs(t, err, common.ErrUnavailable)

	c, err := fx.cart.Get(ctx, testDealer.ID)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	require.Equal(t, "C-201", c.CustomerID)
	require.Equal(t, "Net 30", c.PaymentTerms)
}

func TestPlaceOrderRejectsInFlightSubmission(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fillCart(t, fx)

	require.NoError(t, fx.client.Set(ctx, "dealer:order:submit:"+testDealer.ID, "token", time.Minute).Err())

	_, err := fx.svc.PlaceOrder(ctx, testDealer)
	require.ErrorIs(t, err, lock.ErrHeld)
	require.Empty(t, fx.mock.CreatedAcks)

	c, err := fx.cart.Get(ctx, testDealer.ID)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
}
