package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/centuary/backend-dealer/internal/common"
	"github.com/centuary/backend-dealer/internal/crm"
)

// UpsertInput is the payload for creating or editing a retail customer.
type UpsertInput struct {
	ID      string `json:"id"`
	Name    string `json:"name" validate:"required,min=2"`
	Contact string `json:"contact" validate:"required,min=8"`
	Email   string `json:"email" validate:"omitempty,email"`
	City    string `json:"city"`
	Address string `json:"address"`
}

// Service manages the dealer's retail customers. The CRM stays the system of
// record; nothing is cached here because customer edits must be visible on
// the next read.
type Service struct {
	CRM      crm.Client
	Validate *validator.Validate
}

// List returns the dealer's customers, optionally filtered by a search query
// matched against name, contact and city.
func (s *Service) List(ctx context.Context, dealerID, query string) ([]crm.Customer, error) {
	if s == nil || s.CRM == nil {
		return nil, errors.New("customer service not configured")
	}
	customers, err := s.CRM.QueryCustomers(ctx, dealerID)
	if err != nil {
		return nil, fmt.Errorf("customer: list: %w", err)
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return customers, nil
	}
	out := make([]crm.Customer, 0, len(customers))
	for _, c := range customers {
		if matches(c, query) {
			out = append(out, c)
		}
	}
	return out, nil
}

func matches(c crm.Customer, query string) bool {
	return strings.Contains(strings.ToLower(c.Name), query) ||
		strings.Contains(strings.ToLower(c.Contact), query) ||
		strings.Contains(strings.ToLower(c.City), query)
}

// Get returns a single customer by id.
func (s *Service) Get(ctx context.Context, dealerID, customerID string) (crm.Customer, error) {
	customers, err := s.List(ctx, dealerID, "")
	if err != nil {
		return crm.Customer{}, err
	}
	for _, c := range customers {
		if c.ID == customerID {
			return c, nil
		}
	}
	return crm.Customer{}, fmt.Errorf("customer %s: %w", customerID, common.ErrNotFound)
}

// Upsert validates the payload and writes it through to the CRM. An empty ID
// creates a new customer; a known ID updates it in place.
func (s *Service) Upsert(ctx context.Context, dealerID string, in UpsertInput) (crm.Customer, error) {
	if s == nil || s.CRM == nil {
		return crm.Customer{}, errors.New("customer service not configured")
	}
	if s.Validate != nil {
		if err := s.Validate.Struct(in); err != nil {
			return crm.Customer{}, fmt.Errorf("customer: %s: %w", validationMessage(err), common.ErrInvalidInput)
		}
	}
	saved, err := s.CRM.UpsertCustomer(ctx, dealerID, crm.Customer{
		ID:      strings.TrimSpace(in.ID),
		Name:    strings.TrimSpace(in.Name),
		Contact: strings.TrimSpace(in.Contact),
		Email:   strings.TrimSpace(in.Email),
		City:    strings.TrimSpace(in.City),
		Address: strings.TrimSpace(in.Address),
	})
	if err != nil {
		return crm.Customer{}, fmt.Errorf("customer: upsert: %w", err)
	}
	return saved, nil
}

func validationMessage(err error) string {
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		return fmt.Sprintf("invalid field %s", strings.ToLower(fields[0].Field()))
	}
	return "invalid payload"
}
