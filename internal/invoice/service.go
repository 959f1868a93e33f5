package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/centuary/backend-dealer/internal/crm"
	"github.com/centuary/backend-dealer/internal/pricing"
)

// Invoice status values as reported by the CRM.
const (
	StatusPaid    = "Paid"
	StatusPending = "Pending"
	StatusOverdue = "Overdue"
)

// StatusTotal aggregates invoices sharing a status.
type StatusTotal struct {
	Count  int           `json:"count"`
	Amount pricing.Money `json:"amount"`
}

// Summary is the per-status breakdown shown above the invoice list.
type Summary struct {
	Paid        StatusTotal   `json:"paid"`
	Pending     StatusTotal   `json:"pending"`
	Overdue     StatusTotal   `json:"overdue"`
	Outstanding pricing.Money `json:"outstanding"`
}

// View is the invoice listing payload.
type View struct {
	Summary  Summary       `json:"summary"`
	Invoices []crm.Invoice `json:"invoices"`
}

type Service struct {
	CRM crm.Client
}

// ListParams filters the invoice listing.
type ListParams struct {
	Query  string
	Status string
}

// List returns the dealer's invoices with a per-status summary. The summary
// always covers every invoice; filters only narrow the visible list.
func (s *Service) List(ctx context.Context, dealerID string, params ListParams) (View, error) {
	if s == nil || s.CRM == nil {
		return View{}, errors.New("invoice service not configured")
	}
	invoices, err := s.CRM.QueryInvoices(ctx, dealerID)
	if err != nil {
		return View{}, fmt.Errorf("invoice: list: %w", err)
	}
	query := strings.ToLower(strings.TrimSpace(params.Query))
	status := strings.TrimSpace(params.Status)
	view := View{Invoices: make([]crm.Invoice, 0, len(invoices))}
	for _, inv := range invoices {
		tally(&view.Summary, inv)
		if status != "" && !strings.EqualFold(inv.Status, status) {
			continue
		}
		if query != "" && !matches(inv, query) {
			continue
		}
		view.Invoices = append(view.Invoices, inv)
	}
	return view, nil
}

func matches(inv crm.Invoice, query string) bool {
	return strings.Contains(strings.ToLower(inv.Number), query) ||
		strings.Contains(strings.ToLower(inv.CustomerName), query)
}

func tally(summary *Summary, inv crm.Invoice) {
	switch inv.Status {
	case StatusPaid:
		summary.Paid.Count++
		summary.Paid.Amount += inv.Amount
	case StatusPending:
		summary.Pending.Count++
		summary.Pending.Amount += inv.Amount
		summary.Outstanding += inv.Amount
	case StatusOverdue:
		summary.Overdue.Count++
		summary.Overdue.Amount += inv.Amount
		summary.Outstanding += inv.Amount
	}
}
