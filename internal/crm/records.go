package crm

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/centuary/backend-dealer/internal/pricing"
)

// Product is a sellable catalog entry owned by the CRM.
type Product struct {
	ID            string        `json:"id"`
	Code          string        `json:"code"`
	Name          string        `json:"name"`
	Category      string        `json:"category"`
	Size          string        `json:"size,omitempty"`
	MRP           pricing.Money `json:"mrp"`
	DealerPrice   pricing.Money `json:"dealerPrice"`
	WarrantyYears int           `json:"warrantyYears"`
}

// Customer is a dealer-scoped account record.
type Customer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Email   string `json:"email,omitempty"`
	City    string `json:"city,omitempty"`
	Address string `json:"address,omitempty"`
}

// OrderLine is one line of a placed or historical order.
type OrderLine struct {
	ProductID   string        `json:"productId"`
	Name        string        `json:"name"`
	Qty         int           `json:"quantity"`
	UnitPrice   pricing.Money `json:"unitPrice"`
	DiscountBps int           `json:"discountBps"`
}

// Order is a historical order as returned by the CRM.
type Order struct {
	ID           string      `json:"id"`
	Number       string      `json:"number"`
	CustomerID   string      `json:"customerId"`
	CustomerName string      `json:"customerName"`
	PaymentTerms string      `json:"paymentTerms"`
	DeliveryMode string      `json:"deliveryMode"`
	Status       string      `json:"status"`
	PlacedAt     time.Time   `json:"placedAt"`
	Lines        []OrderLine `json:"lines"`
}

// NewOrder is the payload submitted when a dealer places an order.
type NewOrder struct {
	DealerID     string      `json:"dealerId"`
	CustomerRef  string      `json:"customerRef"`
	PaymentTerms string      `json:"paymentTerms"`
	DeliveryMode string      `json:"deliveryMode"`
	Lines        []OrderLine `json:"lines"`
}

// OrderAck is the CRM acknowledgement for a created order.
type OrderAck struct {
	ID     string `json:"id"`
	Number string `json:"number"`
}

// GoodsReceiptLine is one ordered line on a goods receipt note.
type GoodsReceiptLine struct {
	ProductID string        `json:"productId"`
	Name      string        `json:"name"`
	Ordered   int           `json:"ordered"`
	UnitValue pricing.Money `json:"unitValue"`
}

// GoodsReceipt is an inbound shipment awaiting reconciliation.
type GoodsReceipt struct {
	ID          string             `json:"id"`
	OrderNumber string             `json:"orderNumber"`
	Supplier    string             `json:"supplier"`
	CreatedAt   time.Time          `json:"createdAt"`
	Lines       []GoodsReceiptLine `json:"lines"`
}

// Invoice is a billing document issued to the dealer.
type Invoice struct {
	ID           string        `json:"id"`
	Number       string        `json:"number"`
	CustomerName string        `json:"customerName"`
	Amount       pricing.Money `json:"amount"`
	IssuedAt     time.Time     `json:"issuedAt"`
	DueAt        time.Time     `json:"dueAt"`
	Status       string        `json:"status"`
}

// Warranty is a registered product warranty.
type Warranty struct {
	ID           string    `json:"id"`
	CustomerID   string    `json:"customerId"`
	CustomerName string    `json:"customerName"`
	ProductID    string    `json:"productId"`
	ProductCode  string    `json:"productCode,omitempty"`
	InvoiceNo    string    `json:"invoiceNo"`
	RegisteredAt time.Time `json:"registeredAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// InventoryItem is the CRM's stock view for one product at the dealer.
type InventoryItem struct {
	ProductID    string `json:"productId"`
	Name         string `json:"name"`
	Opening      int    `json:"opening"`
	Received     int    `json:"received"`
	Sold         int    `json:"sold"`
	ReorderLevel int    `json:"reorderLevel"`
}

// InventoryDelta notifies the CRM of received stock after GRN processing.
type InventoryDelta struct {
	DealerID  string `json:"dealerId"`
	ProductID string `json:"productId"`
	Received  int    `json:"received"`
}

// Scheme is a discount scheme active for a validity window.
type Scheme struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	PercentBps int       `json:"percentBps"`
	StartsAt   time.Time `json:"startsAt"`
	EndsAt     time.Time `json:"endsAt"`
	Category   string    `json:"category,omitempty"`
	ProductIDs []string  `json:"productIds,omitempty"`
}

// Target is a sales target period with achievement so far.
type Target struct {
	Period   string        `json:"period"`
	Target   pricing.Money `json:"target"`
	Achieved pricing.Money `json:"achieved"`
}

// Dealer is the portal login record.
type Dealer struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	Region     string `json:"region,omitempty"`
	PortalHash string `json:"-"`
}

// UnknownProductName substitutes for records the CRM returns without a name.
const UnknownProductName = "Unknown Product"

// wire types decode the CRM's loosely-typed record payloads. Amounts arrive
// as decimal rupees; quantities may be absent. Normalisation applies the
// boundary defaults so downstream code never sees zero values it cannot trust.

type productWire struct {
	ID            string      `json:"Id"`
	Code          string      `json:"ProductCode"`
	Name          string      `json:"Name"`
	Category      string      `json:"Category"`
	Size          string      `json:"Size"`
	MRP           json.Number `json:"MRP"`
	DealerPrice   json.Number `json:"DealerPrice"`
	WarrantyYears *int        `json:"WarrantyYears"`
}

func (w productWire) normalize() Product {
	years := 0
	if w.WarrantyYears != nil && *w.WarrantyYears > 0 {
		years = *w.WarrantyYears
	}
	return Product{
		ID:            w.ID,
		Code:          w.Code,
		Name:          nameOrUnknown(w.Name),
		Category:      w.Category,
		Size:          w.Size,
		MRP:           RupeesToPaise(w.MRP),
		DealerPrice:   RupeesToPaise(w.DealerPrice),
		WarrantyYears: years,
	}
}

type orderLineWire struct {
	ProductID   string      `json:"ProductId"`
	Name        string      `json:"Name"`
	Qty         *int        `json:"Quantity"`
	UnitPrice   json.Number `json:"UnitPrice"`
	DiscountPct json.Number `json:"DiscountPercent"`
}

func (w orderLineWire) normalize() OrderLine {
	qty := 0
	if w.Qty != nil && *w.Qty > 0 {
		qty = *w.Qty
	}
	pct, _ := w.DiscountPct.Float64()
	return OrderLine{
		ProductID:   w.ProductID,
		Name:        nameOrUnknown(w.Name),
		Qty:         qty,
		UnitPrice:   RupeesToPaise(w.UnitPrice),
		DiscountBps: pricing.PercentToBps(pct),
	}
}

type customerWire struct {
	ID      string `json:"Id"`
	Name    string `json:"Name"`
	Contact string `json:"Contact"`
	Email   string `json:"Email"`
	City    string `json:"City"`
	Address string `json:"Address"`
}

func (w customerWire) normalize() Customer {
	return Customer{
		ID:      w.ID,
		Name:    strings.TrimSpace(w.Name),
		Contact: strings.TrimSpace(w.Contact),
		Email:   strings.TrimSpace(w.Email),
		City:    strings.TrimSpace(w.City),
		Address: strings.TrimSpace(w.Address),
	}
}

type orderWire struct {
	ID           string          `json:"Id"`
	Number       string          `json:"OrderNumber"`
	CustomerID   string          `json:"CustomerId"`
	CustomerName string          `json:"CustomerName"`
	PaymentTerms string          `json:"PaymentTerms"`
	DeliveryMode string          `json:"DeliveryMode"`
	Status       string          `json:"Status"`
	PlacedAt     time.Time       `json:"PlacedAt"`
	Lines        []orderLineWire `json:"Lines"`
}

func (w orderWire) normalize() Order {
	lines := make([]OrderLine, 0, len(w.Lines))
	for _, l := range w.Lines {
		lines = append(lines, l.normalize())
	}
	return Order{
		ID:           w.ID,
		Number:       w.Number,
		CustomerID:   w.CustomerID,
		CustomerName: w.CustomerName,
		PaymentTerms: w.PaymentTerms,
		DeliveryMode: w.DeliveryMode,
		Status:       w.Status,
		PlacedAt:     w.PlacedAt,
		Lines:        lines,
	}
}

type receiptLineWire struct {
	ProductID string      `json:"ProductId"`
	Name      string      `json:"Name"`
	Ordered   *int        `json:"Ordered"`
	UnitValue json.Number `json:"UnitValue"`
}

type receiptWire struct {
	ID          string            `json:"Id"`
	OrderNumber string            `json:"OrderNumber"`
	Supplier    string            `json:"Supplier"`
	CreatedAt   time.Time         `json:"CreatedAt"`
	Lines       []receiptLineWire `json:"Lines"`
}

func (w receiptWire) normalize() GoodsReceipt {
	lines := make([]GoodsReceiptLine, 0, len(w.Lines))
	for _, l := range w.Lines {
		ordered := 0
		if l.Ordered != nil && *l.Ordered > 0 {
			ordered = *l.Ordered
		}
		lines = append(lines, GoodsReceiptLine{
			ProductID: l.ProductID,
			Name:      nameOrUnknown(l.Name),
			Ordered:   ordered,
			UnitValue: RupeesToPaise(l.UnitValue),
		})
	}
	return GoodsReceipt{
		ID:          w.ID,
		OrderNumber: w.OrderNumber,
		Supplier:    w.Supplier,
		CreatedAt:   w.CreatedAt,
		Lines:       lines,
	}
}

type invoiceWire struct {
	ID           string      `json:"Id"`
	Number       string      `json:"InvoiceNumber"`
	CustomerName string      `json:"CustomerName"`
	Amount       json.Number `json:"Amount"`
	IssuedAt     time.Time   `json:"IssuedAt"`
	DueAt        time.Time   `json:"DueAt"`
	Status       string      `json:"Status"`
}

func (w invoiceWire) normalize() Invoice {
	return Invoice{
		ID:           w.ID,
		Number:       w.Number,
		CustomerName: w.CustomerName,
		Amount:       RupeesToPaise(w.Amount),
		IssuedAt:     w.IssuedAt,
		DueAt:        w.DueAt,
		Status:       w.Status,
	}
}

type inventoryWire struct {
	ProductID    string `json:"ProductId"`
	Name         string `json:"Name"`
	Opening      *int   `json:"Opening"`
	Received     *int   `json:"Received"`
	Sold         *int   `json:"Sold"`
	ReorderLevel *int   `json:"ReorderLevel"`
}

func (w inventoryWire) normalize() InventoryItem {
	return InventoryItem{
		ProductID:    w.ProductID,
		Name:         nameOrUnknown(w.Name),
		Opening:      intOrZero(w.Opening),
		Received:     intOrZero(w.Received),
		Sold:         intOrZero(w.Sold),
		ReorderLevel: intOrZero(w.ReorderLevel),
	}
}

type warrantyWire struct {
	ID           string    `json:"Id"`
	CustomerID   string    `json:"CustomerId"`
	CustomerName string    `json:"CustomerName"`
	ProductID    string    `json:"ProductId"`
	ProductCode  string    `json:"ProductCode"`
	InvoiceNo    string    `json:"InvoiceNo"`
	RegisteredAt time.Time `json:"RegisteredAt"`
	ExpiresAt    time.Time `json:"ExpiresAt"`
}

func (w warrantyWire) normalize() Warranty {
	return Warranty{
		ID:           w.ID,
		CustomerID:   w.CustomerID,
		CustomerName: w.CustomerName,
		ProductID:    w.ProductID,
		ProductCode:  w.ProductCode,
		InvoiceNo:    w.InvoiceNo,
		RegisteredAt: w.RegisteredAt,
		ExpiresAt:    w.ExpiresAt,
	}
}

type schemeWire struct {
	ID         string      `json:"Id"`
	Name       string      `json:"Name"`
	Percent    json.Number `json:"Percent"`
	StartsAt   time.Time   `json:"StartsAt"`
	EndsAt     time.Time   `json:"EndsAt"`
	Category   string      `json:"Category"`
	ProductIDs []string    `json:"ProductIds"`
}

func (w schemeWire) normalize() Scheme {
	pct, _ := w.Percent.Float64()
	return Scheme{
		ID:         w.ID,
		Name:       w.Name,
		PercentBps: pricing.PercentToBps(pct),
		StartsAt:   w.StartsAt,
		EndsAt:     w.EndsAt,
		Category:   w.Category,
		ProductIDs: w.ProductIDs,
	}
}

type targetWire struct {
	Period   string      `json:"Period"`
	Target   json.Number `json:"Target"`
	Achieved json.Number `json:"Achieved"`
}

func (w targetWire) normalize() Target {
	return Target{
		Period:   w.Period,
		Target:   RupeesToPaise(w.Target),
		Achieved: RupeesToPaise(w.Achieved),
	}
}

type dealerWire struct {
	ID         string `json:"Id"`
	Code       string `json:"DealerCode"`
	Name       string `json:"Name"`
	Region     string `json:"Region"`
	PortalHash string `json:"PortalHash"`
}

func (w dealerWire) normalize() Dealer {
	return Dealer{
		ID:         w.ID,
		Code:       w.Code,
		Name:       w.Name,
		Region:     w.Region,
		PortalHash: w.PortalHash,
	}
}

func intOrZero(v *int) int {
	if v == nil || *v < 0 {
		return 0
	}
	return *v
}

func nameOrUnknown(name string) string {
	if strings.TrimSpace(name) == "" {
		return UnknownProductName
	}
	return name
}

// RupeesToPaise converts a decimal rupee amount from the CRM into paise.
// Malformed or absent amounts become zero; fractions beyond the paisa are
// rounded half up.
func RupeesToPaise(n json.Number) pricing.Money {
	raw := strings.TrimSpace(n.String())
	if raw == "" {
		return 0
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0
	}
	return d.Shift(2).Round(0).IntPart()
}

// PaiseToRupees renders a paise amount as the decimal-rupee string the CRM
// expects on writes.
func PaiseToRupees(m pricing.Money) string {
	return decimal.New(m, -2).StringFixed(2)
}
