package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/centuary/backend-dealer/internal/events"
)

type captureStore struct {
	events []events.Event
}

func (c *captureStore) Append(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return nil
}

type captureNotifier struct {
	events []events.Event
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return nil
}

func TestEmitPersistsAndFansOut(t *testing.T) {
	store := &captureStore{}
	notifier := &captureNotifier{}
	bus := events.Bus{
		Store:     store,
		Notifiers: []events.Notifier{notifier},
	}

	payload := map[string]any{"orderId": "ORD-001"}
	event, err := bus.Emit(context.Background(), events.TopicOrderPlaced, "DLR-1001", payload)
	require.NoError(t, err)
	require.NotEmpty(t, event.ID)
	require.Len(t, store.events, 1)
	require.Len(t, notifier.events, 1)
	require.Equal(t, event.ID, notifier.events[0].ID)
	require.JSONEq(t, `{"orderId":"ORD-001"}`, string(store.events[0].Payload))
}

func TestEmitRequiresTopicAndDealer(t *testing.T) {
	bus := events.Bus{Store: &captureStore{}}
	_, err := bus.Emit(context.Background(), "  ", "DLR-1001", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderPlaced, "", nil)
	require.Error(t, err)
}

func TestStreamStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := &events.StreamStore{R: client}
	bus := events.Bus{
		Store: store,
		Now:   func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) },
	}

	ctx := context.Background()
	_, err := bus.Emit(ctx, events.TopicOrderPlaced, "DLR-1001", json.RawMessage(`{"orderId":"ORD-001"}`))
	require.NoError(t, err)
	_, err = bus.Emit(ctx, events.TopicWarrantyRegistered, "DLR-1001", map[string]any{"serial": "SN-1"})
	require.NoError(t, err)

	recent, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, events.TopicWarrantyRegistered, recent[0].Topic)
	require.Equal(t, events.TopicOrderPlaced, recent[1].Topic)
	require.Equal(t, "DLR-1001", recent[1].DealerID)
	require.JSONEq(t, `{"orderId":"ORD-001"}`, string(recent[1].Payload))
	require.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), recent[1].OccurredAt)
}
