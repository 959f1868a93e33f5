package warranty_test

import (
	"context"
	"testing"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/centuary/backend-dealer/internal/common"
	"github.com/centuary/backend-dealer/internal/crm"
	"github.com/centuary/backend-dealer/internal/events"
	"github.com/centuary/backend-dealer/internal/warranty"
)

const dealerID = "DLR-1001"

// resolver serves products straight from the mock, no cache.
type resolver struct {
	mock *crm.Mock
}

func (r resolver) Product(ctx context.Context, id string) (crm.Product, error) {
	products, err := r.mock.QueryProducts(ctx)
	if err != nil {
		return crm.Product{}, err
	}
	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	return crm.Product{}, common.ErrNotFound
}

type captureStore struct {
	events []events.Event
}

func (c *captureStore) Append(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return nil
}

func newService(t *testing.T) (*warranty.Service, *captureStore) {
	t.Helper()
	mock := crm.NewMock()
	store := &captureStore{}
	svc := &warranty.Service{
		CRM:      mock,
		Products: resolver{mock: mock},
		Events:   &events.Bus{Store: store},
		Validate: validator.New(),
		Now:      func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) },
	}
	return svc, store
}

func TestRegisterComputesExpiry(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	saved, err := svc.Register(ctx, dealerID, warranty.RegisterInput{
		CustomerID:  "C-202",
		ProductID:   "P-103",
		ProductCode: "SPRING-K78",
		InvoiceNo:   "INV-2024-0562",
	})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	require.Equal(t, "Rohit Malhotra", saved.CustomerName)
	// Pocket Spring King carries a 10 year warranty.
	require.Equal(t, time.Date(2036, 3, 1, 0, 0, 0, 0, time.UTC), saved.ExpiresAt)

	warranties, err := svc.List(ctx, dealerID, "")
	require.NoError(t, err)
	require.Len(t, warranties, 2)

	require.Len(t, store.events, 1)
	require.Equal(t, events.TopicWarrantyRegistered, store.events[0].Topic)
}

func TestRegisterRequiresAllFields(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, dealerID, warranty.RegisterInput{
		CustomerID: "C-201",
		ProductID:  "P-100",
		InvoiceNo:  "INV-2024-0541",
	})
	require.ErrorIs(t, err, common.ErrInvalidInput)
	require.Empty(t, store.events)
}

func TestRegisterUnknownCustomerOrProduct(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, dealerID, warranty.RegisterInput{
		CustomerID:  "C-999",
		ProductID:   "P-100",
		ProductCode: "ORTHO-K78",
		InvoiceNo:   "INV-1",
	})
	require.ErrorIs(t, err, common.ErrNotFound)

	_, err = svc.Register(ctx, dealerID, warranty.RegisterInput{
		CustomerID:  "C-201",
		ProductID:   "P-999",
		ProductCode: "ORTHO-K78",
		InvoiceNo:   "INV-1",
	})
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestListSearch(t *testing.T) {
	svc, _ := newService(t)
	byInvoice, err := svc.List(context.Background(), dealerID, "0541")
	require.NoError(t, err)
	require.Len(t, byInvoice, 1)
	require.Equal(t, "W-601", byInvoice[0].ID)
}
