package grn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/centuary/backend-dealer/internal/common"
	"github.com/centuary/backend-dealer/internal/crm"
	"github.com/centuary/backend-dealer/internal/obs"
	"github.com/centuary/backend-dealer/internal/pricing"
	"github.com/centuary/backend-dealer/internal/queue"
)

// TaskKindInventoryUpdate is the queue kind carrying stock notifications to
// the CRM after receipt lines are accepted.
const TaskKindInventoryUpdate = "inventory-update"

// InventoryTask is the payload enqueued for each accepted receipt line.
type InventoryTask struct {
	DealerID  string `json:"dealerId"`
	ProductID string `json:"productId"`
	Received  int    `json:"received"`
}

// LineView is a receipt line joined with its received quantity.
type LineView struct {
	ProductID     string        `json:"productId"`
	Name          string        `json:"name"`
	Ordered       int           `json:"ordered"`
	Received      int           `json:"received"`
	UnitValue     pricing.Money `json:"unitValue"`
	ReceivedValue pricing.Money `json:"receivedValue"`
}

// View is a goods receipt with reconciliation state folded in.
type View struct {
	ID            string        `json:"id"`
	OrderNumber   string        `json:"orderNumber"`
	Supplier      string        `json:"supplier"`
	Status        Status        `json:"status"`
	TotalOrdered  int           `json:"totalOrdered"`
	TotalReceived int           `json:"totalReceived"`
	ReceivedValue pricing.Money `json:"receivedValue"`
	Lines         []LineView    `json:"lines"`
}

// Service reconciles goods receipts. Receipt definitions come from the CRM;
// received quantities are tracked in Redis while a receipt is being worked,
// and accepted quantities are pushed to the CRM asynchronously through the
// task queue.
type Service struct {
	CRM    crm.Client
	R      *redis.Client
	Queue  queue.Enqueuer
	Logger zerolog.Logger
}

func receivedKey(dealerID, recordID string) string {
	return fmt.Sprintf("dealer:grn:%s:%s", dealerID, recordID)
}

// List returns all receipts for the dealer with their reconciliation status.
func (s *Service) List(ctx context.Context, dealerID string) ([]View, error) {
	if s == nil || s.CRM == nil {
		return nil, errors.New("grn service not configured")
	}
	receipts, err := s.CRM.QueryGoodsReceipts(ctx, dealerID)
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(receipts))
	for _, receipt := range receipts {
		received, err := s.loadReceived(ctx, dealerID, receipt.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, buildView(receipt, received))
	}
	return views, nil
}

// Get returns one receipt with its reconciliation status.
func (s *Service) Get(ctx context.Context, dealerID, recordID string) (View, error) {
	receipt, err := s.findReceipt(ctx, dealerID, recordID)
	if err != nil {
		return View{}, err
	}
	received, err := s.loadReceived(ctx, dealerID, recordID)
	if err != nil {
		return View{}, err
	}
	return buildView(receipt, received), nil
}

// SetReceived records qty units received for one line. Negative quantities
// and over-receipt are rejected without touching state. On success the new
// quantity is persisted and an inventory notification is enqueued
// best-effort: a queue failure is logged, never surfaced, and never rolls
// the receipt state back.
func (s *Service) SetReceived(ctx context.Context, dealerID, recordID, productID string, qty int) (View, error) {
	if s == nil || s.CRM == nil || s.R == nil {
		return View{}, errors.New("grn service not configured")
	}
	receipt, err := s.findReceipt(ctx, dealerID, recordID)
	if err != nil {
		return View{}, err
	}
	var line *crm.GoodsReceiptLine
	for i := range receipt.Lines {
		if receipt.Lines[i].ProductID == productID {
			line = &receipt.Lines[i]
			break
		}
	}
	if line == nil {
		s.countUpdate("unknown_line")
		return View{}, fmt.Errorf("grn: line %s not on receipt %s: %w", productID, recordID, common.ErrNotFound)
	}
	if qty < 0 {
		s.countUpdate("rejected")
		return View{}, fmt.Errorf("grn: received quantity cannot be negative: %w", common.ErrInvalidInput)
	}
	if qty > line.Ordered {
		s.countUpdate("rejected")
		return View{}, fmt.Errorf("grn: received %d exceeds ordered %d: %w", qty, line.Ordered, common.ErrInvalidInput)
	}

	received, err := s.loadReceived(ctx, dealerID, recordID)
	if err != nil {
		return View{}, err
	}
	received[productID] = qty
	if err := s.saveReceived(ctx, dealerID, recordID, received); err != nil {
		return View{}, err
	}
	s.countUpdate("ok")

	// Fire-and-forget stock push. The receipt is the source of truth for
	// what was received; the CRM catches up through the worker.
	task := InventoryTask{DealerID: dealerID, ProductID: productID, Received: qty}
	payload, err := json.Marshal(task)
	if err == nil {
		err = s.Queue.Enqueue(ctx, queue.Task{
			Kind:           TaskKindInventoryUpdate,
			Payload:        payload,
			IdempotencyKey: fmt.Sprintf("%s:%s:%d", recordID, productID, qty),
			MaxAttempts:    5,
		})
	}
	if err != nil {
		s.Logger.Warn().
			Str("record_id", recordID).
			Str("product_id", productID).
			Int("received", qty).
			Err(err).
			Msg("inventory_update_enqueue_failed")
	}

	return buildView(receipt, received), nil
}

// AcceptAll marks the full ordered quantity of a line as received. Repeating
// the call leaves the state unchanged.
func (s *Service) AcceptAll(ctx context.Context, dealerID, recordID, productID string) (View, error) {
	receipt, err := s.findReceipt(ctx, dealerID, recordID)
	if err != nil {
		return View{}, err
	}
	for _, line := range receipt.Lines {
		if line.ProductID == productID {
			return s.SetReceived(ctx, dealerID, recordID, productID, line.Ordered)
		}
	}
	return View{}, fmt.Errorf("grn: line %s not on receipt %s: %w", productID, recordID, common.ErrNotFound)
}

func (s *Service) findReceipt(ctx context.Context, dealerID, recordID string) (crm.GoodsReceipt, error) {
	if s == nil || s.CRM == nil {
		return crm.GoodsReceipt{}, errors.New("grn service not configured")
	}
	receipts, err := s.CRM.QueryGoodsReceipts(ctx, dealerID)
	if err != nil {
		return crm.GoodsReceipt{}, err
	}
	for _, r := range receipts {
		if r.ID == recordID {
			return r, nil
		}
	}
	return crm.GoodsReceipt{}, fmt.Errorf("grn: receipt %s: %w", recordID, common.ErrNotFound)
}

func (s *Service) loadReceived(ctx context.Context, dealerID, recordID string) (map[string]int, error) {
	if s.R == nil {
		return map[string]int{}, nil
	}
	raw, err := s.R.Get(ctx, receivedKey(dealerID, recordID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return map[string]int{}, nil
		}
		return nil, fmt.Errorf("grn: load state: %w", err)
	}
	received := map[string]int{}
	if err := json.Unmarshal(raw, &received); err != nil {
		return map[string]int{}, nil
	}
	return received, nil
}

func (s *Service) saveReceived(ctx context.Context, dealerID, recordID string, received map[string]int) error {
	raw, err := json.Marshal(received)
	if err != nil {
		return fmt.Errorf("grn: encode state: %w", err)
	}
	if err := s.R.Set(ctx, receivedKey(dealerID, recordID), raw, 0).Err(); err != nil {
		return fmt.Errorf("grn: save state: %w", err)
	}
	return nil
}

func (s *Service) countUpdate(result string) {
	if obs.GRNUpdateTotal != nil {
		obs.GRNUpdateTotal.WithLabelValues(result).Inc()
	}
}

func buildView(receipt crm.GoodsReceipt, received map[string]int) View {
	view := View{
		ID:          receipt.ID,
		OrderNumber: receipt.OrderNumber,
		Supplier:    receipt.Supplier,
		Lines:       make([]LineView, 0, len(receipt.Lines)),
	}
	for _, line := range receipt.Lines {
		got := received[line.ProductID]
		if got > line.Ordered {
			got = line.Ordered
		}
		value := pricing.Money(got) * line.UnitValue
		view.Lines = append(view.Lines, LineView{
			ProductID:     line.ProductID,
			Name:          line.Name,
			Ordered:       line.Ordered,
			Received:      got,
			UnitValue:     line.UnitValue,
			ReceivedValue: value,
		})
		view.TotalOrdered += line.Ordered
		view.TotalReceived += got
		view.ReceivedValue += value
	}
	view.Status = StatusOf(view.TotalReceived, view.TotalOrdered)
	return view
}
