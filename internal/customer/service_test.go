package customer_test

import (
	"context"
	"testing"

	validator "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/centuary/backend-dealer/internal/common"
	"github.com/centuary/backend-dealer/internal/crm"
	"github.com/centuary/backend-dealer/internal/customer"
)

const dealerID = "DLR-1001"

func newService() (*customer.Service, *crm.Mock) {
	mock := crm.NewMock()
	return &customer.Service{CRM: mock, Validate: validator.New()}, mock
}

func TestListAndSearch(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	all, err := svc.List(ctx, dealerID, "")
	require.NoError(t, err)
	require.Len(t, all, 3)

	byName, err := svc.List(ctx, dealerID, "anita")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	require.Equal(t, "C-201", byName[0].ID)

	byCity, err := svc.List(ctx, dealerID, "warangal")
	require.NoError(t, err)
	require.Len(t, byCity, 1)
	require.Equal(t, "Lakshmi Traders", byCity[0].Name)

	none, err := svc.List(ctx, dealerID, "zzz")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestUpsertCreatesAndUpdates(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	created, err := svc.Upsert(ctx, dealerID, customer.UpsertInput{
		Name:    "Meena Furnishings",
		Contact: "+91 90909 12121",
		City:    "Karimnagar",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	created.City = "Nizamabad"
	updated, err := svc.Upsert(ctx, dealerID, customer.UpsertInput{
		ID:      created.ID,
		Name:    created.Name,
		Contact: created.Contact,
		City:    created.City,
	})
	require.NoError(t, err)
	require.Equal(t, created.ID, updated.ID)

	got, err := svc.Get(ctx, dealerID, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Nizamabad", got.City)
}

func TestUpsertValidation(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.Upsert(ctx, dealerID, customer.UpsertInput{Contact: "+91 90909 12121"})
	require.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = svc.Upsert(ctx, dealerID, customer.UpsertInput{
		Name:    "Meena Furnishings",
		Contact: "+91 90909 12121",
		Email:   "not-an-email",
	})
	require.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestGetUnknownCustomer(t *testing.T) {
	svc, _ := newService()
	_, err := svc.Get(context.Background(), dealerID, "C-999")
	require.ErrorIs(t, err, common.ErrNotFound)
}
