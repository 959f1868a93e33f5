package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/centuary/backend-dealer/internal/crm"
)

// Stock status values shown against each inventory row.
const (
	StatusGood     = "Good"
	StatusLowStock = "Low Stock"
)

// Row is one product's stock position at the dealer.
type Row struct {
	ProductID     string `json:"productId"`
	Name          string `json:"name"`
	Opening       int    `json:"opening"`
	Received      int    `json:"received"`
	Sold          int    `json:"sold"`
	Closing       int    `json:"closing"`
	ReorderLevel  int    `json:"reorderLevel"`
	Status        string `json:"status"`
	StockLevelPct int    `json:"stockLevelPct"`
}

// Summary aggregates the stock position across all products.
type Summary struct {
	Products   int `json:"products"`
	TotalUnits int `json:"totalUnits"`
	LowStock   int `json:"lowStock"`
}

// View is the full inventory payload.
type View struct {
	Summary Summary `json:"summary"`
	Rows    []Row   `json:"rows"`
}

type Service struct {
	CRM crm.Client
}

// Snapshot returns the dealer's stock position, optionally filtered by a
// search query on product name.
func (s *Service) Snapshot(ctx context.Context, dealerID, query string) (View, error) {
	if s == nil || s.CRM == nil {
		return View{}, errors.New("inventory service not configured")
	}
	items, err := s.CRM.QueryInventory(ctx, dealerID)
	if err != nil {
		return View{}, fmt.Errorf("inventory: load: %w", err)
	}
	query = strings.ToLower(strings.TrimSpace(query))
	view := View{Rows: make([]Row, 0, len(items))}
	for _, item := range items {
		row := buildRow(item)
		view.Summary.Products++
		view.Summary.TotalUnits += row.Closing
		if row.Status == StatusLowStock {
			view.Summary.LowStock++
		}
		if query != "" && !strings.Contains(strings.ToLower(item.Name), query) {
			continue
		}
		view.Rows = append(view.Rows, row)
	}
	return view, nil
}

func buildRow(item crm.InventoryItem) Row {
	closing := item.Opening + item.Received - item.Sold
	if closing < 0 {
		closing = 0
	}
	status := StatusGood
	if closing <= item.ReorderLevel {
		status = StatusLowStock
	}
	return Row{
		ProductID:     item.ProductID,
		Name:          item.Name,
		Opening:       item.Opening,
		Received:      item.Received,
		Sold:          item.Sold,
		Closing:       closing,
		ReorderLevel:  item.ReorderLevel,
		Status:        status,
		StockLevelPct: stockLevelPct(closing, item.ReorderLevel),
	}
}

// stockLevelPct scales the closing stock against three times the reorder
// level, clamped to 100, so the gauge fills up well above the danger zone.
func stockLevelPct(closing, reorderLevel int) int {
	if reorderLevel <= 0 {
		if closing > 0 {
			return 100
		}
		return 0
	}
	pct := closing * 100 / (3 * reorderLevel)
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}
