package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/centuary/backend-dealer/internal/catalog"
	"github.com/centuary/backend-dealer/internal/common"
	"github.com/centuary/backend-dealer/internal/crm"
)

// countingClient counts product queries so cache hits are observable.
type countingClient struct {
	crm.Client
	productCalls int
}

func (c *countingClient) QueryProducts(ctx context.Context) ([]crm.Product, error) {
	c.productCalls++
	return c.Client.QueryProducts(ctx)
}

func newTestService(t *testing.T) (*catalog.Service, *countingClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	counting := &countingClient{Client: crm.NewMock()}
	svc := &catalog.Service{
		CRM:   counting,
		Cache: catalog.NewCache(client, 5*time.Minute),
	}
	return svc, counting
}

func TestListServesFromCache(t *testing.T) {
	svc, counting := newTestService(t)
	ctx := context.Background()

	first, err := svc.List(ctx, catalog.ListParams{})
	require.NoError(t, err)
	require.Len(t, first, 5)

	second, err := svc.List(ctx, catalog.ListParams{})
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, counting.productCalls)

	require.NoError(t, svc.Refresh(ctx))
	_, err = svc.List(ctx, catalog.ListParams{})
	require.NoError(t, err)
	require.Equal(t, 2, counting.productCalls)
}

func TestListFilters(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	byQuery, err := svc.List(ctx, catalog.ListParams{Query: "ortho"})
	require.NoError(t, err)
	require.Len(t, byQuery, 2)
	for _, p := range byQuery {
		require.Equal(t, "Orthopaedic", p.Category)
	}

	byCode, err := svc.List(ctx, catalog.ListParams{Query: "spring-k78"})
	require.NoError(t, err)
	require.Len(t, byCode, 1)
	require.Equal(t, "P-103", byCode[0].ID)

	byCategory, err := svc.List(ctx, catalog.ListParams{Category: "foam"})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	require.Equal(t, "P-102", byCategory[0].ID)

	none, err := svc.List(ctx, catalog.ListParams{Query: "no-such-product"})
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestCategoriesSortedDistinct(t *testing.T) {
	svc, _ := newTestService(t)
	categories, err := svc.Categories(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"Accessories", "Foam", "Orthopaedic", "Spring"}, categories)
}

func TestProductLookup(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.Product(ctx, "P-104")
	require.NoError(t, err)
	require.Equal(t, "Memory Foam Pillow", p.Name)

	_, err = svc.Product(ctx, "P-999")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestPriceListMargins(t *testing.T) {
	svc, _ := newTestService(t)
	rows, err := svc.PriceList(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 5)

	byID := map[string]catalog.PriceRow{}
	for _, row := range rows {
		byID[row.ProductID] = row
	}
	// 700_000 margin over 3_200_000 MRP.
	require.Equal(t, 2188, byID["P-100"].MarginBps)
	// 70_000 over 250_000.
	require.Equal(t, 2800, byID["P-104"].MarginBps)
}

func TestHandlerRoutes(t *testing.T) {
	svc, _ := newTestService(t)
	handler := &catalog.Handler{Svc: svc}
	server := httptest.NewServer(handler.Routes())
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/?category=Spring")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Get(server.URL + "/P-999")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestHandlerListPagination(t *testing.T) {
	svc, _ := newTestService(t)
	handler := &catalog.Handler{Svc: svc}
	server := httptest.NewServer(handler.Routes())
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/?page=2&limit=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data []crm.Product     `json:"data"`
		Meta common.Pagination `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Data, 2)
	require.Equal(t, 2, body.Meta.Page)
	require.Equal(t, 5, body.Meta.TotalItems)
}
