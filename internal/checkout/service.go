package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/centuary/backend-dealer/internal/cart"
	"github.com/centuary/backend-dealer/internal/common"
	"github.com/centuary/backend-dealer/internal/crm"
	"github.com/centuary/backend-dealer/internal/events"
	"github.com/centuary/backend-dealer/internal/lock"
	"github.com/centuary/backend-dealer/internal/obs"
	"github.com/centuary/backend-dealer/internal/pricing"
)

// Validation failures for order submission. Checks run in a fixed order and
// the first failure is returned on its own.
var (
	ErrMissingCustomer     = errors.New("select a customer before placing the order")
	ErrMissingPaymentTerms = errors.New("select payment terms before placing the order")
	ErrMissingDeliveryMode = errors.New("select a delivery mode before placing the order")
	ErrEmptyCart           = errors.New("cart is empty")
)

// Output is the acknowledgement returned after a successful submission.
type Output struct {
	OrderID     string          `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	Summary     pricing.Summary `json:"summary"`
}

type Service struct {
	CRM       crm.Client
	Cart      *cart.Service
	Locks     lock.Locker
	Events    *events.Bus
	TaxBps    int
	SubmitTTL time.Duration
	Logger    zerolog.Logger
}

func submitLockKey(dealerID string) string {
	return "dealer:order:submit:" + dealerID
}

// PlaceOrder validates the dealer's cart, submits it to the CRM and, only on
// an acknowledged success, clears the cart. A failed submission leaves the
// cart untouched so the dealer can retry deliberately.
func (s *Service) PlaceOrder(ctx context.Context, dealer common.Dealer) (Output, error) {
	if s == nil || s.CRM == nil || s.Cart == nil {
		return Output{}, errors.New("checkout service not configured")
	}
	c, err := s.Cart.Get(ctx, dealer.ID)
	if err != nil {
		return Output{}, fmt.Errorf("checkout: load cart: %w", err)
	}
	if err := validate(c); err != nil {
		s.countSubmit("validation")
		return Output{}, err
	}

	ttl := s.SubmitTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	var out Output
	err = s.Locks.TryWithLock(ctx, submitLockKey(dealer.ID), ttl, func(ctx context.Context) error {
		ack, submitErr := s.CRM.CreateOrder(ctx, buildOrder(dealer.ID, c))
		if submitErr != nil {
			return fmt.Errorf("checkout: submit order: %w", submitErr)
		}
		out = Output{
			OrderID:     ack.ID,
			OrderNumber: ack.Number,
			Summary:     pricing.Compute(cart.Lines(c), s.TaxBps),
		}
		if clearErr := s.Cart.Clear(ctx, dealer.ID); clearErr != nil {
			// The order is already accepted; a stale cart is recoverable.
			s.Logger.Warn().Err(clearErr).Str("dealer_id", dealer.ID).Msg("cart_clear_failed")
		}
		s.emitPlaced(ctx, dealer, c, out)
		return nil
	})
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			s.countSubmit("in_flight")
			return Output{}, err
		}
		s.countSubmit("error")
		return Output{}, err
	}
	s.countSubmit("ok")
	return out, nil
}

func validate(c cart.Cart) error {
	switch {
	case c.CustomerID == "":
		return ErrMissingCustomer
	case c.PaymentTerms == "":
		return ErrMissingPaymentTerms
	case c.DeliveryMode == "":
		return ErrMissingDeliveryMode
	case len(c.Items) == 0:
		return ErrEmptyCart
	}
	return nil
}

func buildOrder(dealerID string, c cart.Cart) crm.NewOrder {
	lines := make([]crm.OrderLine, 0, len(c.Items))
	for _, it := range c.Items {
		lines = append(lines, crm.OrderLine{
			ProductID:   it.ProductID,
			Name:        it.Name,
			Qty:         it.Qty,
			UnitPrice:   it.UnitPrice,
			DiscountBps: it.DiscountBps,
		})
	}
	return crm.NewOrder{
		DealerID:     dealerID,
		CustomerRef:  c.CustomerID,
		PaymentTerms: c.PaymentTerms,
		DeliveryMode: c.DeliveryMode,
		Lines:        lines,
	}
}

func (s *Service) emitPlaced(ctx context.Context, dealer common.Dealer, c cart.Cart, out Output) {
	if s.Events == nil {
		return
	}
	payload := map[string]any{
		"orderId":      out.OrderID,
		"orderNumber":  out.OrderNumber,
		"customerId":   c.CustomerID,
		"customerName": c.CustomerName,
		"total":        out.Summary.Total,
	}
	if _, err := s.Events.Emit(ctx, events.TopicOrderPlaced, dealer.ID, payload); err != nil {
		s.Logger.Warn().Err(err).Str("order_id", out.OrderID).Msg("order_event_emit_failed")
	}
}

func (s *Service) countSubmit(result string) {
	if obs.OrderSubmitTotal == nil {
		return
	}
	obs.OrderSubmitTotal.WithLabelValues(result).Inc()
}
