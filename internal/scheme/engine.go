package scheme

import (
	"context"
	"errors"
	"time"

	"github.com/centuary/backend-dealer/internal/crm"
)

// ErrNotConfigured is returned when the service is used without a CRM client.
var ErrNotConfigured = errors.New("scheme service not configured")

// Applicable reports whether the scheme covers the product at the given
// instant. A scheme with neither product IDs nor a category applies to the
// whole catalog.
func Applicable(s crm.Scheme, productID, category string, now time.Time) bool {
	if s.PercentBps <= 0 {
		return false
	}
	if !s.StartsAt.IsZero() && now.Before(s.StartsAt) {
		return false
	}
	if !s.EndsAt.IsZero() && now.After(s.EndsAt) {
		return false
	}
	scoped := len(s.ProductIDs) > 0 || s.Category != ""
	if !scoped {
		return true
	}
	for _, id := range s.ProductIDs {
		if id == productID {
			return true
		}
	}
	return s.Category != "" && s.Category == category
}

// Best returns the highest-percentage scheme applicable to the product, or
// false when none applies.
func Best(schemes []crm.Scheme, productID, category string, now time.Time) (crm.Scheme, bool) {
	var best crm.Scheme
	found := false
	for _, s := range schemes {
		if !Applicable(s, productID, category, now) {
			continue
		}
		if !found || s.PercentBps > best.PercentBps {
			best = s
			found = true
		}
	}
	return best, found
}

// Service resolves active discount schemes from the CRM.
type Service struct {
	CRM crm.Client
	Now func() time.Time
}

// Active returns all schemes currently inside their validity window.
func (s *Service) Active(ctx context.Context) ([]crm.Scheme, error) {
	if s == nil || s.CRM == nil {
		return nil, ErrNotConfigured
	}
	all, err := s.CRM.QuerySchemes(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]crm.Scheme, 0, len(all))
	for _, sc := range all {
		if !sc.StartsAt.IsZero() && now.Before(sc.StartsAt) {
			continue
		}
		if !sc.EndsAt.IsZero() && now.After(sc.EndsAt) {
			continue
		}
		out = append(out, sc)
	}
	return out, nil
}

// DiscountFor returns the basis-point discount the best applicable scheme
// grants the product, zero when none does.
func (s *Service) DiscountFor(ctx context.Context, productID, category string) (int, error) {
	if s == nil || s.CRM == nil {
		return 0, ErrNotConfigured
	}
	schemes, err := s.CRM.QuerySchemes(ctx)
	if err != nil {
		return 0, err
	}
	best, ok := Best(schemes, productID, category, s.now())
	if !ok {
		return 0, nil
	}
	return best.PercentBps, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
