package warranty

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/centuary/backend-dealer/internal/common"
	"github.com/centuary/backend-dealer/internal/crm"
	"github.com/centuary/backend-dealer/internal/events"
)

// RegisterInput is the payload for registering a product warranty. Every
// field is required; registrations without an invoice are not accepted.
type RegisterInput struct {
	CustomerID  string `json:"customerId" validate:"required"`
	ProductID   string `json:"productId" validate:"required"`
	ProductCode string `json:"productCode" validate:"required"`
	InvoiceNo   string `json:"invoiceNo" validate:"required"`
}

// ProductResolver resolves catalog entries for warranty terms.
type ProductResolver interface {
	Product(ctx context.Context, id string) (crm.Product, error)
}

type Service struct {
	CRM      crm.Client
	Products ProductResolver
	Events   *events.Bus
	Validate *validator.Validate
	Logger   zerolog.Logger
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// List returns the dealer's registered warranties, optionally filtered by a
// query matched against customer name, product code and invoice number.
func (s *Service) List(ctx context.Context, dealerID, query string) ([]crm.Warranty, error) {
	if s == nil || s.CRM == nil {
		return nil, errors.New("warranty service not configured")
	}
	warranties, err := s.CRM.QueryWarranties(ctx, dealerID)
	if err != nil {
		return nil, fmt.Errorf("warranty: list: %w", err)
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return warranties, nil
	}
	out := make([]crm.Warranty, 0, len(warranties))
	for _, w := range warranties {
		if matches(w, query) {
			out = append(out, w)
		}
	}
	return out, nil
}

func matches(w crm.Warranty, query string) bool {
	return strings.Contains(strings.ToLower(w.CustomerName), query) ||
		strings.Contains(strings.ToLower(w.ProductCode), query) ||
		strings.Contains(strings.ToLower(w.InvoiceNo), query)
}

// Register validates the input, resolves warranty terms from the catalog and
// writes the registration through to the CRM. The expiry is the registration
// date plus the product's warranty period.
func (s *Service) Register(ctx context.Context, dealerID string, in RegisterInput) (crm.Warranty, error) {
	if s == nil || s.CRM == nil || s.Products == nil {
		return crm.Warranty{}, errors.New("warranty service not configured")
	}
	if s.Validate != nil {
		if err := s.Validate.Struct(in); err != nil {
			return crm.Warranty{}, fmt.Errorf("warranty: all fields are required: %w", common.ErrInvalidInput)
		}
	}
	customer, err := s.findCustomer(ctx, dealerID, in.CustomerID)
	if err != nil {
		return crm.Warranty{}, err
	}
	product, err := s.Products.Product(ctx, in.ProductID)
	if err != nil {
		return crm.Warranty{}, fmt.Errorf("warranty: resolve product: %w", err)
	}
	registeredAt := s.now().UTC()
	saved, err := s.CRM.CreateWarranty(ctx, dealerID, crm.Warranty{
		CustomerID:   customer.ID,
		CustomerName: customer.Name,
		ProductID:    product.ID,
		ProductCode:  strings.TrimSpace(in.ProductCode),
		InvoiceNo:    strings.TrimSpace(in.InvoiceNo),
		RegisteredAt: registeredAt,
		ExpiresAt:    registeredAt.AddDate(product.WarrantyYears, 0, 0),
	})
	if err != nil {
		return crm.Warranty{}, fmt.Errorf("warranty: register: %w", err)
	}
	s.emitRegistered(ctx, dealerID, customer, saved)
	return saved, nil
}

func (s *Service) findCustomer(ctx context.Context, dealerID, customerID string) (crm.Customer, error) {
	customers, err := s.CRM.QueryCustomers(ctx, dealerID)
	if err != nil {
		return crm.Customer{}, fmt.Errorf("warranty: resolve customer: %w", err)
	}
	for _, c := range customers {
		if c.ID == customerID {
			return c, nil
		}
	}
	return crm.Customer{}, fmt.Errorf("warranty: customer %s: %w", customerID, common.ErrNotFound)
}

func (s *Service) emitRegistered(ctx context.Context, dealerID string, customer crm.Customer, w crm.Warranty) {
	if s.Events == nil {
		return
	}
	payload := map[string]any{
		"warrantyId":  w.ID,
		"productCode": w.ProductCode,
		"invoiceNo":   w.InvoiceNo,
		"expiresAt":   w.ExpiresAt,
	}
	if customer.Email != "" {
		payload["customerEmail"] = customer.Email
	}
	if _, err := s.Events.Emit(ctx, events.TopicWarrantyRegistered, dealerID, payload); err != nil {
		s.Logger.Warn().Err(err).Str("warranty_id", w.ID).Msg("warranty_event_emit_failed")
	}
}
