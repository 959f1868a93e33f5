package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/centuary/backend-dealer/internal/pricing"
)

// Item is one product line in a dealer's working cart.
type Item struct {
	ProductID   string        `json:"productId"`
	Name        string        `json:"name"`
	UnitPrice   pricing.Money `json:"unitPrice"`
	MRP         pricing.Money `json:"mrp,omitempty"`
	Qty         int           `json:"qty"`
	DiscountBps int           `json:"discountBps"`
}

// Cart is the per-dealer working state: selected customer, terms and lines.
// It lives in Redis so it survives page reloads and portal restarts.
type Cart struct {
	DealerID     string    `json:"dealerId"`
	CustomerID   string    `json:"customerId,omitempty"`
	CustomerName string    `json:"customerName,omitempty"`
	PaymentTerms string    `json:"paymentTerms,omitempty"`
	DeliveryMode string    `json:"deliveryMode,omitempty"`
	Items        []Item    `json:"items"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Store persists carts as JSON values with a sliding TTL.
type Store struct {
	R   *redis.Client
	TTL time.Duration
}

func cartKey(dealerID string) string {
	return "dealer:cart:" + dealerID
}

func (s *Store) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

// Load returns the dealer's cart, or an empty one when none is stored.
func (s *Store) Load(ctx context.Context, dealerID string) (Cart, error) {
	if s == nil || s.R == nil {
		return Cart{}, errors.New("cart store not configured")
	}
	raw, err := s.R.Get(ctx, cartKey(dealerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Cart{DealerID: dealerID}, nil
		}
		return Cart{}, fmt.Errorf("load cart: %w", err)
	}
	var c Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		// a corrupt value should not wedge the dealer; start fresh
		return Cart{DealerID: dealerID}, nil
	}
	c.DealerID = dealerID
	return c, nil
}

// Save writes the cart back and refreshes the TTL.
func (s *Store) Save(ctx context.Context, c Cart) error {
	if s == nil || s.R == nil {
		return errors.New("cart store not configured")
	}
	c.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.R.Set(ctx, cartKey(c.DealerID), raw, s.ttl()).Err(); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// Delete removes the dealer's cart entirely.
func (s *Store) Delete(ctx context.Context, dealerID string) error {
	if s == nil || s.R == nil {
		return errors.New("cart store not configured")
	}
	if err := s.R.Del(ctx, cartKey(dealerID)).Err(); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
