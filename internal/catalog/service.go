package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/centuary/backend-dealer/internal/common"
	"github.com/centuary/backend-dealer/internal/crm"
	"github.com/centuary/backend-dealer/internal/pricing"
)

const productsCacheKey = "dealer:catalog:products"

// ListParams captures filters for product listing.
type ListParams struct {
	Query    string
	Category string
}

// PriceRow is one entry of the dealer price list.
type PriceRow struct {
	ProductID   string        `json:"productId"`
	Code        string        `json:"code"`
	Name        string        `json:"name"`
	Category    string        `json:"category"`
	Size        string        `json:"size,omitempty"`
	MRP         pricing.Money `json:"mrp"`
	DealerPrice pricing.Money `json:"dealerPrice"`
	MarginBps   int           `json:"marginBps"`
}

// Service serves the product catalog from the CRM with a Redis read-through
// cache in front of it.
type Service struct {
	CRM   crm.Client
	Cache *Cache
}

func (s *Service) products(ctx context.Context) ([]crm.Product, error) {
	if s == nil || s.CRM == nil {
		return nil, errors.New("catalog service not configured")
	}
	var cached []crm.Product
	if ok, err := s.Cache.GetJSON(ctx, productsCacheKey, &cached); err == nil && ok {
		return cached, nil
	}
	products, err := s.CRM.QueryProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: load products: %w", err)
	}
	_ = s.Cache.SetJSON(ctx, productsCacheKey, products)
	return products, nil
}

// List returns catalog entries matching the provided filters.
func (s *Service) List(ctx context.Context, params ListParams) ([]crm.Product, error) {
	products, err := s.products(ctx)
	if err != nil {
		return nil, err
	}
	query := strings.ToLower(strings.TrimSpace(params.Query))
	category := strings.TrimSpace(params.Category)
	out := make([]crm.Product, 0, len(products))
	for _, p := range products {
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		if query != "" && !matches(p, query) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func matches(p crm.Product, query string) bool {
	return strings.Contains(strings.ToLower(p.Name), query) ||
		strings.Contains(strings.ToLower(p.Code), query)
}

// Categories returns the distinct product categories, sorted.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	products, err := s.products(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(products))
	for _, p := range products {
		if p.Category == "" || seen[p.Category] {
			continue
		}
		seen[p.Category] = true
		out = append(out, p.Category)
	}
	sort.Strings(out)
	return out, nil
}

// Product returns a single catalog entry by id.
func (s *Service) Product(ctx context.Context, id string) (crm.Product, error) {
	products, err := s.products(ctx)
	if err != nil {
		return crm.Product{}, err
	}
	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	return crm.Product{}, fmt.Errorf("catalog: product %s: %w", id, common.ErrNotFound)
}

// PriceList returns the full price list with the dealer margin per product.
func (s *Service) PriceList(ctx context.Context) ([]PriceRow, error) {
	products, err := s.products(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]PriceRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, PriceRow{
			ProductID:   p.ID,
			Code:        p.Code,
			Name:        p.Name,
			Category:    p.Category,
			Size:        p.Size,
			MRP:         p.MRP,
			DealerPrice: p.DealerPrice,
			MarginBps:   marginBps(p.MRP, p.DealerPrice),
		})
	}
	return rows, nil
}

// marginBps is the dealer margin over MRP in basis points, rounded half up.
func marginBps(mrp, dealerPrice pricing.Money) int {
	if mrp <= 0 || dealerPrice > mrp {
		return 0
	}
	margin := int64(mrp - dealerPrice)
	return int((margin*10_000 + int64(mrp)/2) / int64(mrp))
}

// Refresh drops the cached product list.
func (s *Service) Refresh(ctx context.Context) error {
	if s == nil {
		return errors.New("catalog service not configured")
	}
	return s.Cache.Invalidate(ctx, productsCacheKey)
}
