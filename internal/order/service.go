package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/centuary/backend-dealer/internal/common"
	"github.com/centuary/backend-dealer/internal/crm"
	"github.com/centuary/backend-dealer/internal/pricing"
)

// View is an order detail with its pricing recomputed from the lines, so the
// portal shows the same arithmetic the cart showed at submission time.
type View struct {
	crm.Order
	Summary pricing.Summary `json:"summary"`
}

type Service struct {
	CRM    crm.Client
	TaxBps int
}

// List returns the dealer's order history, newest first as reported by the
// CRM, optionally filtered by order number or customer name.
func (s *Service) List(ctx context.Context, dealerID, query string) ([]crm.Order, error) {
	if s == nil || s.CRM == nil {
		return nil, errors.New("order service not configured")
	}
	orders, err := s.CRM.QueryOrders(ctx, dealerID)
	if err != nil {
		return nil, fmt.Errorf("order: list: %w", err)
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return orders, nil
	}
	out := make([]crm.Order, 0, len(orders))
	for _, o := range orders {
		if matches(o, query) {
			out = append(out, o)
		}
	}
	return out, nil
}

func matches(o crm.Order, query string) bool {
	return strings.Contains(strings.ToLower(o.Number), query) ||
		strings.Contains(strings.ToLower(o.CustomerName), query)
}

// Get returns one order with its recomputed totals.
func (s *Service) Get(ctx context.Context, dealerID, orderID string) (View, error) {
	orders, err := s.List(ctx, dealerID, "")
	if err != nil {
		return View{}, err
	}
	for _, o := range orders {
		if o.ID == orderID || o.Number == orderID {
			return View{Order: o, Summary: pricing.Compute(lines(o), s.TaxBps)}, nil
		}
	}
	return View{}, fmt.Errorf("order %s: %w", orderID, common.ErrNotFound)
}

func lines(o crm.Order) []pricing.LineItem {
	items := make([]pricing.LineItem, 0, len(o.Lines))
	for _, l := range o.Lines {
		items = append(items, pricing.LineItem{
			Qty:         l.Qty,
			UnitPrice:   l.UnitPrice,
			DiscountBps: l.DiscountBps,
		})
	}
	return items
}
