package crm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRupeesToPaise(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"25000", 2_500_000},
		{"25000.50", 2_500_050},
		{"0.005", 1},
		{"", 0},
		{"not-a-number", 0},
	}
	for _, tc := range cases {
		got := RupeesToPaise(json.Number(tc.in))
		require.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestPaiseToRupees(t *testing.T) {
	require.Equal(t, "25000.00", PaiseToRupees(2_500_000))
	require.Equal(t, "0.05", PaiseToRupees(5))
}

func TestProductNormalizeDefaults(t *testing.T) {
	var w productWire
	require.NoError(t, json.Unmarshal([]byte(`{"Id":"P-9","MRP":"1200.75"}`), &w))
	p := w.normalize()
	require.Equal(t, UnknownProductName, p.Name)
	require.Equal(t, int64(120_075), p.MRP)
	require.Zero(t, p.WarrantyYears)
}

func TestOrderLineNormalizeDefaults(t *testing.T) {
	var w orderLineWire
	require.NoError(t, json.Unmarshal([]byte(`{"ProductId":"P-1","UnitPrice":"999.99","DiscountPercent":"5"}`), &w))
	l := w.normalize()
	require.Equal(t, UnknownProductName, l.Name)
	require.Zero(t, l.Qty)
	require.Equal(t, int64(99_999), l.UnitPrice)
	require.Equal(t, 500, l.DiscountBps)
}

func TestInventoryNormalizeNegativeCounts(t *testing.T) {
	neg := -5
	w := inventoryWire{ProductID: "P-1", Name: "Ortho Plus King", Sold: &neg}
	item := w.normalize()
	require.Zero(t, item.Sold)
	require.Zero(t, item.Opening)
}
