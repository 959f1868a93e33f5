package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/centuary/backend-dealer/internal/crm"
	"github.com/centuary/backend-dealer/internal/pricing"
)

// SalesSummary aggregates the dealer's orders inside a date range. Values are
// net of line discounts, before tax.
type SalesSummary struct {
	From   time.Time     `json:"from"`
	To     time.Time     `json:"to"`
	Orders int           `json:"orders"`
	Units  int           `json:"units"`
	Value  pricing.Money `json:"value"`
}

// TopProduct is one row of the best-sellers report.
type TopProduct struct {
	ProductID string        `json:"productId"`
	Name      string        `json:"name"`
	Units     int           `json:"units"`
	Value     pricing.Money `json:"value"`
}

// TargetStatus compares achieved sales against the CRM-set target.
type TargetStatus struct {
	Period      string        `json:"period"`
	Target      pricing.Money `json:"target"`
	Achieved    pricing.Money `json:"achieved"`
	AchievedBps int           `json:"achievedBps"`
}

// Service computes dealer reports from CRM order history, cached briefly in
// Redis because the source queries are the expensive kind.
type Service struct {
	CRM          crm.Client
	R            *redis.Client
	TTL          time.Duration
	DefaultRange int
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

// SalesRange returns the sales summary between from (inclusive) and to
// (exclusive).
func (s *Service) SalesRange(ctx context.Context, dealerID string, from, to time.Time) (SalesSummary, error) {
	if s == nil || s.CRM == nil {
		return SalesSummary{}, fmt.Errorf("analytics service not configured")
	}
	key := cacheKey("dealer:an", "sales", dealerID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	var summary SalesSummary
	if s.fetch(ctx, key, &summary) {
		return summary, nil
	}
	orders, err := s.CRM.QueryOrders(ctx, dealerID)
	if err != nil {
		return SalesSummary{}, err
	}
	summary = SalesSummary{From: from, To: to}
	for _, o := range orders {
		if o.PlacedAt.Before(from) || !o.PlacedAt.Before(to) {
			continue
		}
		summary.Orders++
		for _, l := range o.Lines {
			summary.Units += l.Qty
			summary.Value += lineNet(l)
		}
	}
	s.store(ctx, key, summary)
	return summary, nil
}

// TopProducts returns products ordered by units sold inside the range.
func (s *Service) TopProducts(ctx context.Context, dealerID string, from, to time.Time, limit int) ([]TopProduct, error) {
	if s == nil || s.CRM == nil {
		return nil, fmt.Errorf("analytics service not configured")
	}
	if limit <= 0 {
		limit = 10
	}
	key := cacheKey("dealer:an", "top", dealerID, from.Format("2006-01-02"), to.Format("2006-01-02"), limit)
	var cached []TopProduct
	if s.fetch(ctx, key, &cached) {
		return cached, nil
	}
	orders, err := s.CRM.QueryOrders(ctx, dealerID)
	if err != nil {
		return nil, err
	}
	byProduct := map[string]*TopProduct{}
	for _, o := range orders {
		if o.PlacedAt.Before(from) || !o.PlacedAt.Before(to) {
			continue
		}
		for _, l := range o.Lines {
			row, ok := byProduct[l.ProductID]
			if !ok {
				row = &TopProduct{ProductID: l.ProductID, Name: l.Name}
				byProduct[l.ProductID] = row
			}
			row.Units += l.Qty
			row.Value += lineNet(l)
		}
	}
	rows := make([]TopProduct, 0, len(byProduct))
	for _, row := range byProduct {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Units != rows[j].Units {
			return rows[i].Units > rows[j].Units
		}
		return rows[i].ProductID < rows[j].ProductID
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	s.store(ctx, key, rows)
	return rows, nil
}

// Targets returns the dealer's target achievement per period.
func (s *Service) Targets(ctx context.Context, dealerID string) ([]TargetStatus, error) {
	if s == nil || s.CRM == nil {
		return nil, fmt.Errorf("analytics service not configured")
	}
	key := cacheKey("dealer:an", "targets", dealerID)
	var cached []TargetStatus
	if s.fetch(ctx, key, &cached) {
		return cached, nil
	}
	targets, err := s.CRM.QueryTargets(ctx, dealerID)
	if err != nil {
		return nil, err
	}
	rows := make([]TargetStatus, 0, len(targets))
	for _, tgt := range targets {
		rows = append(rows, TargetStatus{
			Period:      tgt.Period,
			Target:      tgt.Target,
			Achieved:    tgt.Achieved,
			AchievedBps: achievedBps(tgt.Target, tgt.Achieved),
		})
	}
	s.store(ctx, key, rows)
	return rows, nil
}

func lineNet(l crm.OrderLine) pricing.Money {
	gross := int64(l.UnitPrice) * int64(l.Qty)
	discount := (gross*int64(l.DiscountBps) + 5_000) / 10_000
	return pricing.Money(gross - discount)
}

func achievedBps(target, achieved pricing.Money) int {
	if target <= 0 {
		return 0
	}
	return int((int64(achieved)*10_000 + int64(target)/2) / int64(target))
}

func (s *Service) fetch(ctx context.Context, key string, dst any) bool {
	if s.R == nil || s.TTL <= 0 {
		return false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}
