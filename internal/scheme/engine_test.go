package scheme

import (
	"testing"
	"time"

	"github.com/centuary/backend-dealer/internal/crm"
)

func TestApplicableWindow(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	s := crm.Scheme{PercentBps: 500, StartsAt: now.AddDate(0, 0, -5), EndsAt: now.AddDate(0, 0, 5)}
	if !Applicable(s, "P-1", "Foam", now) {
		t.Fatal("expected unscoped scheme inside window to apply")
	}
	if Applicable(s, "P-1", "Foam", now.AddDate(0, 1, 0)) {
		t.Fatal("expected expired scheme to be rejected")
	}
	if Applicable(crm.Scheme{PercentBps: 0}, "P-1", "Foam", now) {
		t.Fatal("expected zero-percent scheme to be rejected")
	}
}

func TestApplicableScoped(t *testing.T) {
	now := time.Now()
	byProduct := crm.Scheme{PercentBps: 500, ProductIDs: []string{"P-2"}}
	if Applicable(byProduct, "P-1", "", now) {
		t.Fatal("product-scoped scheme should not apply to other products")
	}
	if !Applicable(byProduct, "P-2", "", now) {
		t.Fatal("product-scoped scheme should apply to its product")
	}
	byCategory := crm.Scheme{PercentBps: 300, Category: "Orthopaedic"}
	if !Applicable(byCategory, "P-1", "Orthopaedic", now) {
		t.Fatal("category-scoped scheme should apply inside the category")
	}
	if Applicable(byCategory, "P-1", "Spring", now) {
		t.Fatal("category-scoped scheme should not apply outside the category")
	}
}

func TestBestPicksHighestPercent(t *testing.T) {
	now := time.Now()
	schemes := []crm.Scheme{
		{ID: "S-1", PercentBps: 300},
		{ID: "S-2", PercentBps: 1000, ProductIDs: []string{"P-1"}},
		{ID: "S-3", PercentBps: 500, Category: "Orthopaedic"},
	}
	best, ok := Best(schemes, "P-1", "Orthopaedic", now)
	if !ok {
		t.Fatal("expected an applicable scheme")
	}
	if best.ID != "S-2" {
		t.Fatalf("expected S-2, got %s", best.ID)
	}

	_, ok = Best(nil, "P-1", "", now)
	if ok {
		t.Fatal("expected no scheme for empty input")
	}
}
