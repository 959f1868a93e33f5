package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/centuary/backend-dealer/internal/common"
	"github.com/centuary/backend-dealer/internal/crm"
	"github.com/centuary/backend-dealer/internal/obs"
	"github.com/centuary/backend-dealer/internal/pricing"
	"github.com/centuary/backend-dealer/internal/scheme"
)

// ErrNoCustomer is returned when a line is added before a customer is chosen.
var ErrNoCustomer = errors.New("select a customer before adding products")

// Service applies cart mutations. Every mutation loads the stored cart,
// applies the change and saves, so concurrent tabs converge on Redis state.
type Service struct {
	Store   *Store
	Schemes *scheme.Service
}

// Get returns the dealer's current cart.
func (s *Service) Get(ctx context.Context, dealerID string) (Cart, error) {
	if s == nil || s.Store == nil {
		return Cart{}, errors.New("cart service not configured")
	}
	return s.Store.Load(ctx, dealerID)
}

// AddItem puts the product in the cart. Adding a product already present
// increments its quantity instead of creating a second line. New lines start
// at quantity 1 with the best active scheme discount, zero when none applies.
func (s *Service) AddItem(ctx context.Context, dealerID string, p crm.Product) (Cart, error) {
	if s == nil || s.Store == nil {
		return Cart{}, errors.New("cart service not configured")
	}
	c, err := s.Store.Load(ctx, dealerID)
	if err != nil {
		return Cart{}, err
	}
	if c.CustomerID == "" {
		return Cart{}, ErrNoCustomer
	}
	found := false
	for i := range c.Items {
		if c.Items[i].ProductID == p.ID {
			c.Items[i].Qty++
			found = true
			break
		}
	}
	if !found {
		discountBps := 0
		if s.Schemes != nil {
			if bps, err := s.Schemes.DiscountFor(ctx, p.ID, p.Category); err == nil {
				discountBps = pricing.ClampBps(bps)
			}
		}
		c.Items = append(c.Items, Item{
			ProductID:   p.ID,
			Name:        p.Name,
			UnitPrice:   p.DealerPrice,
			MRP:         p.MRP,
			Qty:         1,
			DiscountBps: discountBps,
		})
	}
	s.countMutation("add_item")
	return c, s.Store.Save(ctx, c)
}

// UpdateQuantity moves the line quantity by delta, never below one. Unknown
// product ids leave the cart untouched.
func (s *Service) UpdateQuantity(ctx context.Context, dealerID, productID string, delta int) (Cart, error) {
	if s == nil || s.Store == nil {
		return Cart{}, errors.New("cart service not configured")
	}
	c, err := s.Store.Load(ctx, dealerID)
	if err != nil {
		return Cart{}, err
	}
	for i := range c.Items {
		if c.Items[i].ProductID != productID {
			continue
		}
		next := c.Items[i].Qty + delta
		if next < 1 {
			next = 1
		}
		c.Items[i].Qty = next
		s.countMutation("update_qty")
		return c, s.Store.Save(ctx, c)
	}
	return c, nil
}

// SetDiscount sets the line discount from a percentage, clamped to [0, 100].
func (s *Service) SetDiscount(ctx context.Context, dealerID, productID string, percent float64) (Cart, error) {
	if s == nil || s.Store == nil {
		return Cart{}, errors.New("cart service not configured")
	}
	c, err := s.Store.Load(ctx, dealerID)
	if err != nil {
		return Cart{}, err
	}
	for i := range c.Items {
		if c.Items[i].ProductID != productID {
			continue
		}
		c.Items[i].DiscountBps = pricing.PercentToBps(percent)
		s.countMutation("set_discount")
		return c, s.Store.Save(ctx, c)
	}
	return c, nil
}

// RemoveItem drops the line for the product.
func (s *Service) RemoveItem(ctx context.Context, dealerID, productID string) (Cart, error) {
	if s == nil || s.Store == nil {
		return Cart{}, errors.New("cart service not configured")
	}
	c, err := s.Store.Load(ctx, dealerID)
	if err != nil {
		return Cart{}, err
	}
	kept := c.Items[:0]
	for _, it := range c.Items {
		if it.ProductID != productID {
			kept = append(kept, it)
		}
	}
	c.Items = kept
	s.countMutation("remove_item")
	return c, s.Store.Save(ctx, c)
}

// Clear empties the lines and resets customer, terms and delivery selections.
func (s *Service) Clear(ctx context.Context, dealerID string) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	s.countMutation("clear")
	return s.Store.Delete(ctx, dealerID)
}

// SetCustomer selects the customer the order is being built for.
func (s *Service) SetCustomer(ctx context.Context, dealerID, customerID, customerName string) (Cart, error) {
	return s.mutate(ctx, dealerID, "set_customer", func(c *Cart) error {
		if customerID == "" {
			return fmt.Errorf("customer id required: %w", common.ErrInvalidInput)
		}
		c.CustomerID = customerID
		c.CustomerName = customerName
		return nil
	})
}

// SetPaymentTerms records the chosen payment terms.
func (s *Service) SetPaymentTerms(ctx context.Context, dealerID, terms string) (Cart, error) {
	return s.mutate(ctx, dealerID, "set_payment_terms", func(c *Cart) error {
		c.PaymentTerms = terms
		return nil
	})
}

// SetDeliveryMode records the chosen delivery mode.
func (s *Service) SetDeliveryMode(ctx context.Context, dealerID, mode string) (Cart, error) {
	return s.mutate(ctx, dealerID, "set_delivery_mode", func(c *Cart) error {
		c.DeliveryMode = mode
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, dealerID, kind string, fn func(*Cart) error) (Cart, error) {
	if s == nil || s.Store == nil {
		return Cart{}, errors.New("cart service not configured")
	}
	c, err := s.Store.Load(ctx, dealerID)
	if err != nil {
		return Cart{}, err
	}
	if err := fn(&c); err != nil {
		return Cart{}, err
	}
	s.countMutation(kind)
	return c, s.Store.Save(ctx, c)
}

func (s *Service) countMutation(kind string) {
	if obs.CartMutationTotal != nil {
		obs.CartMutationTotal.WithLabelValues(kind).Inc()
	}
}

// Lines converts cart items into pricing line items.
func Lines(c Cart) []pricing.LineItem {
	out := make([]pricing.LineItem, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, pricing.LineItem{Qty: it.Qty, UnitPrice: it.UnitPrice, DiscountBps: it.DiscountBps})
	}
	return out
}
