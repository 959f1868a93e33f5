package audit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/centuary/backend-dealer/internal/common"
	"github.com/centuary/backend-dealer/internal/obs"
)

type captureStore struct {
	entries []Entry
}

func (s *captureStore) Append(_ context.Context, e Entry) error {
	s.entries = append(s.entries, e)
	return nil
}

func (s *captureStore) Recent(_ context.Context, dealerID string, limit int) ([]Entry, error) {
	return s.entries, nil
}

func TestServiceRecord(t *testing.T) {
	store := &captureStore{}
	svc := Service{Store: store, Enabled: true, SamplingRate: 1}

	req := httptest.NewRequest(http.MethodPost, "https://api.test/api/v1/orders?source=web", nil)
	req.Header.Set("User-Agent", "tester")
	req.Header.Set("X-Request-ID", "req-123")
	req.RemoteAddr = "10.0.0.2:54321"
	ctx := common.WithDealer(req.Context(), common.Dealer{ID: "DLR-1001", Code: "DLR-1001"})
	ctx = obs.WithRoutePattern(ctx, "/api/v1/orders")
	req = req.WithContext(ctx)

	err := svc.Record(req.Context(), Actor{Kind: ActorKindDealer, DealerID: "DLR-1001"}, "", "", "", req, http.StatusCreated, nil)
	require.NoError(t, err)
	require.Len(t, store.entries, 1)

	e := store.entries[0]
	require.Equal(t, string(ActorKindDealer), e.ActorKind)
	require.Equal(t, "DLR-1001", e.DealerID)
	require.Equal(t, "POST /api/v1/orders", e.Action)
	require.Equal(t, "orders", e.ResourceType)
	require.Equal(t, http.StatusCreated, e.Status)
	require.Equal(t, "10.0.0.2", e.IP)
	require.Equal(t, "req-123", e.RequestID)
	require.NotEmpty(t, e.ID)
}

func TestServiceRecordDisabled(t *testing.T) {
	store := &captureStore{}
	svc := Service{Store: store, Enabled: false}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil)
	err := svc.Record(req.Context(), Actor{Kind: ActorKindDealer, DealerID: "DLR-1001"}, "", "", "", req, http.StatusOK, nil)
	require.NoError(t, err)
	require.Empty(t, store.entries)
}

func TestStreamStoreRecentFiltersByDealer(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := StreamStore{R: client}
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, dealer := range []string{"DLR-1001", "DLR-2002", "DLR-1001"} {
		err := store.Append(ctx, Entry{
			ID:         string(rune('a' + i)),
			ActorKind:  string(ActorKindDealer),
			DealerID:   dealer,
			Action:     "POST /api/v1/orders",
			Status:     http.StatusOK,
			OccurredAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	entries, err := store.Recent(ctx, "DLR-1001", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// newest first
	require.Equal(t, "c", entries[0].ID)
	require.Equal(t, "a", entries[1].ID)

	all, err := store.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestMiddlewareRecordsAfterHandler(t *testing.T) {
	store := &captureStore{}
	recorder := HTTPRecorder{Service: &Service{Store: store, Enabled: true}}

	handler := recorder.Middleware(HTTPConfig{ResourceType: "checkout"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	req = req.WithContext(common.WithDealer(req.Context(), common.Dealer{ID: "DLR-1001"}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Len(t, store.entries, 1)
	require.Equal(t, "checkout", store.entries[0].ResourceType)
	require.Equal(t, http.StatusAccepted, store.entries[0].Status)
	require.Equal(t, "DLR-1001", store.entries[0].DealerID)
}
