package notify_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/centuary/backend-dealer/internal/common"
	"github.com/centuary/backend-dealer/internal/events"
	"github.com/centuary/backend-dealer/internal/notify"
)

func TestEmailNotifierSendsForRecipient(t *testing.T) {
	mail := &common.InMemoryEmail{}
	notifier := notify.EmailNotifier{Mail: mail, Enabled: true}

	event := events.Event{
		Topic:      events.TopicOrderPlaced,
		DealerID:   "DLR-1001",
		Payload:    json.RawMessage(`{"orderId":"ORD-001","dealerEmail":"dealer@example.com"}`),
		OccurredAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, notifier.Notify(context.Background(), event))
	require.Len(t, mail.Outbox, 1)
	require.Equal(t, "dealer@example.com", mail.Outbox[0].To)
	require.Equal(t, "Order placed with Centuary", mail.Outbox[0].Subject)
	require.Contains(t, mail.Outbox[0].HTML, "ORD-001")
}

func TestEmailNotifierSkipsWithoutRecipientOrToggle(t *testing.T) {
	mail := &common.InMemoryEmail{}
	notifier := notify.EmailNotifier{Mail: mail, Enabled: true}

	event := events.Event{Topic: events.TopicOrderPlaced, Payload: json.RawMessage(`{"orderId":"ORD-001"}`)}
	require.NoError(t, notifier.Notify(context.Background(), event))
	require.Empty(t, mail.Outbox)

	notifier.TopicToggles = map[string]bool{events.TopicOrderPlaced: false}
	event.Payload = json.RawMessage(`{"dealerEmail":"dealer@example.com"}`)
	require.NoError(t, notifier.Notify(context.Background(), event))
	require.Empty(t, mail.Outbox)
}
