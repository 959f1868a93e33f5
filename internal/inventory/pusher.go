package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/centuary/backend-dealer/internal/crm"
	"github.com/centuary/backend-dealer/internal/grn"
	"github.com/centuary/backend-dealer/internal/obs"
	"github.com/centuary/backend-dealer/internal/queue"
)

// Pusher drains accepted receipt quantities to the CRM. It runs inside the
// queue worker, so a returned error means "retry later", not "give up".
type Pusher struct {
	CRM    crm.Client
	Logger zerolog.Logger
}

// Handle processes one inventory-update task.
func (p *Pusher) Handle(ctx context.Context, task queue.Task) error {
	if p == nil || p.CRM == nil {
		return errors.New("inventory pusher not configured")
	}
	var payload grn.InventoryTask
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		// A malformed payload will never succeed; count it dead instead of
		// burning retries.
		p.countPush("malformed")
		p.countDLQ()
		p.Logger.Error().Err(err).Str("kind", task.Kind).Msg("inventory_task_malformed")
		return nil
	}
	if err := p.CRM.UpdateInventory(ctx, crm.InventoryDelta{
		DealerID:  payload.DealerID,
		ProductID: payload.ProductID,
		Received:  payload.Received,
	}); err != nil {
		p.countPush("error")
		if task.Attempt >= task.MaxAttempts {
			p.countDLQ()
		}
		return fmt.Errorf("inventory: push update: %w", err)
	}
	p.countPush("ok")
	p.Logger.Info().
		Str("dealer_id", payload.DealerID).
		Str("product_id", payload.ProductID).
		Int("received", payload.Received).
		Msg("inventory_pushed")
	return nil
}

func (p *Pusher) countPush(result string) {
	if obs.InventoryPushTotal == nil {
		return
	}
	obs.InventoryPushTotal.WithLabelValues(result).Inc()
}

func (p *Pusher) countDLQ() {
	if obs.InventoryPushDLQ == nil {
		return
	}
	obs.InventoryPushDLQ.Inc()
}
