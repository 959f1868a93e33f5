package inventory_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/centuary/backend-dealer/internal/common"
	"github.com/centuary/backend-dealer/internal/crm"
	"github.com/centuary/backend-dealer/internal/grn"
	"github.com/centuary/backend-dealer/internal/inventory"
	"github.com/centuary/backend-dealer/internal/queue"
)

const dealerID = "DLR-1001"

func TestSnapshotStockMath(t *testing.T) {
	svc := &inventory.Service{CRM: crm.NewMock()}
	view, err := svc.Snapshot(context.Background(), dealerID, "")
	require.NoError(t, err)
	require.Equal(t, 5, view.Summary.Products)
	require.Equal(t, 48, view.Summary.TotalUnits)
	require.Equal(t, 2, view.Summary.LowStock)

	byID := map[string]inventory.Row{}
	for _, row := range view.Rows {
		byID[row.ProductID] = row
	}

	// 12 + 5 - 9, comfortably above the reorder level of 4.
	require.Equal(t, 8, byID["P-100"].Closing)
	require.Equal(t, inventory.StatusGood, byID["P-100"].Status)
	require.Equal(t, 66, byID["P-100"].StockLevelPct)

	// 10 + 8 - 15 leaves 3 against a reorder level of 5.
	require.Equal(t, 3, byID["P-101"].Closing)
	require.Equal(t, inventory.StatusLowStock, byID["P-101"].Status)
	require.Equal(t, 20, byID["P-101"].StockLevelPct)

	require.Equal(t, inventory.StatusLowStock, byID["P-102"].Status)
	require.Equal(t, inventory.StatusGood, byID["P-103"].Status)
}

func TestSnapshotSearchKeepsSummary(t *testing.T) {
	svc := &inventory.Service{CRM: crm.NewMock()}
	view, err := svc.Snapshot(context.Background(), dealerID, "pillow")
	require.NoError(t, err)
	require.Len(t, view.Rows, 1)
	require.Equal(t, "P-104", view.Rows[0].ProductID)
	// The summary header keeps describing the whole inventory.
	require.Equal(t, 5, view.Summary.Products)
}

func taskFor(t *testing.T, payload grn.InventoryTask) queue.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return queue.Task{Kind: grn.TaskKindInventoryUpdate, Payload: data, Attempt: 1, MaxAttempts: 5}
}

func TestPusherAppliesDelta(t *testing.T) {
	mock := crm.NewMock()
	pusher := &inventory.Pusher{CRM: mock}

	task := taskFor(t, grn.InventoryTask{DealerID: dealerID, ProductID: "P-103", Received: 3})
	require.NoError(t, pusher.Handle(context.Background(), task))

	items, err := mock.QueryInventory(context.Background(), dealerID)
	require.NoError(t, err)
	for _, item := range items {
		if item.ProductID == "P-103" {
			require.Equal(t, 6, item.Received)
			return
		}
	}
	t.Fatal("P-103 missing from inventory")
}

func TestPusherRetriesOnCRMFailure(t *testing.T) {
	mock := crm.NewMock()
	mock.FailWrites = true
	pusher := &inventory.Pusher{CRM: mock}

	task := taskFor(t, grn.InventoryTask{DealerID: dealerID, ProductID: "P-100", Received: 1})
	err := pusher.Handle(context.Background(), task)
	require.ErrorIs(t, err, common.ErrUnavailable)
}

func TestPusherDropsMalformedPayload(t *testing.T) {
	pusher := &inventory.Pusher{CRM: crm.NewMock()}
	task := queue.Task{Kind: grn.TaskKindInventoryUpdate, Payload: []byte("{not json"), Attempt: 1, MaxAttempts: 5}
	require.NoError(t, pusher.Handle(context.Background(), task))
}
