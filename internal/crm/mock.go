package crm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"

	"github.com/centuary/backend-dealer/internal/common"
)

// MockDealerPassword is the portal password for the demo dealer DLR-1001.
const MockDealerPassword = "welcome@dealer"

// Mock serves a fixed demo dataset from memory. Selected with CRM_MODE=mock
// so the API can run without CRM connectivity; also the double used in
// service tests.
type Mock struct {
	mu          sync.Mutex
	products    []Product
	schemes     []Scheme
	customers   map[string][]Customer
	orders      map[string][]Order
	receipts    map[string][]GoodsReceipt
	invoices    map[string][]Invoice
	inventory   map[string][]InventoryItem
	warranties  map[string][]Warranty
	targets     map[string][]Target
	dealers     map[string]Dealer
	orderSeq    int
	FailWrites  bool
	CreatedAcks []OrderAck
}

// NewMock builds a mock pre-loaded with the demo dataset for dealer DLR-1001.
func NewMock() *Mock {
	now := time.Now().UTC()
	m := &Mock{
		customers:  map[string][]Customer{},
		orders:     map[string][]Order{},
		receipts:   map[string][]GoodsReceipt{},
		invoices:   map[string][]Invoice{},
		inventory:  map[string][]InventoryItem{},
		warranties: map[string][]Warranty{},
		targets:    map[string][]Target{},
		dealers:    map[string]Dealer{},
	}
	m.products = []Product{
		{ID: "P-100", Code: "ORTHO-K78", Name: "Ortho Plus King", Category: "Orthopaedic", Size: "78x72x6", MRP: 3_200_000, DealerPrice: 2_500_000, WarrantyYears: 7},
		{ID: "P-101", Code: "ORTHO-Q75", Name: "Ortho Plus Queen", Category: "Orthopaedic", Size: "75x60x6", MRP: 2_700_000, DealerPrice: 2_100_000, WarrantyYears: 7},
		{ID: "P-102", Code: "SLEEP-S72", Name: "Sleepables Single", Category: "Foam", Size: "72x36x5", MRP: 900_000, DealerPrice: 700_000, WarrantyYears: 3},
		{ID: "P-103", Code: "SPRING-K78", Name: "Pocket Spring King", Category: "Spring", Size: "78x72x8", MRP: 4_500_000, DealerPrice: 3_600_000, WarrantyYears: 10},
		{ID: "P-104", Code: "PILLOW-MF", Name: "Memory Foam Pillow", Category: "Accessories", MRP: 250_000, DealerPrice: 180_000, WarrantyYears: 1},
	}
	m.schemes = []Scheme{
		{ID: "S-1", Name: "Monsoon Ortho Offer", PercentBps: 500, StartsAt: now.AddDate(0, -1, 0), EndsAt: now.AddDate(0, 1, 0), Category: "Orthopaedic"},
		{ID: "S-2", Name: "Spring Clearance", PercentBps: 1000, StartsAt: now.AddDate(0, 0, -10), EndsAt: now.AddDate(0, 0, 20), ProductIDs: []string{"P-103"}},
	}
	const dealer = "DLR-1001"
	hash, err := argon2id.CreateHash(MockDealerPassword, argon2id.DefaultParams)
	if err != nil {
		hash = ""
	}
	m.dealers["DLR-1001"] = Dealer{
		ID: dealer, Code: "DLR-1001", Name: "Sharma Home Comforts", Region: "Hyderabad",
		PortalHash: hash,
	}
	m.customers[dealer] = []Customer{
		{ID: "C-201", Name: "Anita Verma", Contact: "+91 98480 11223", Email: "anita.verma@example.com", City: "Hyderabad", Address: "12-4-56 Begumpet"},
		{ID: "C-202", Name: "Rohit Malhotra", Contact: "+91 99890 44556", Email: "rohit.m@example.com", City: "Secunderabad", Address: "8-1-22 Paradise Circle"},
		{ID: "C-203", Name: "Lakshmi Traders", Contact: "+91 90000 77889", City: "Warangal", Address: "Main Rd, Hanamkonda"},
	}
	m.orders[dealer] = []Order{
		{
			ID: "O-301", Number: "ORD-2024-0117", CustomerID: "C-201", CustomerName: "Anita Verma",
			PaymentTerms: "Net 30", DeliveryMode: "Company Delivery", Status: "Delivered",
			PlacedAt: now.AddDate(0, 0, -21),
			Lines: []OrderLine{
				{ProductID: "P-100", Name: "Ortho Plus King", Qty: 1, UnitPrice: 2_500_000, DiscountBps: 500},
				{ProductID: "P-104", Name: "Memory Foam Pillow", Qty: 2, UnitPrice: 180_000},
			},
		},
		{
			ID: "O-302", Number: "ORD-2024-0123", CustomerID: "C-203", CustomerName: "Lakshmi Traders",
			PaymentTerms: "Advance", DeliveryMode: "Dealer Pickup", Status: "In Transit",
			PlacedAt: now.AddDate(0, 0, -6),
			Lines: []OrderLine{
				{ProductID: "P-102", Name: "Sleepables Single", Qty: 10, UnitPrice: 700_000},
			},
		},
	}
	m.receipts[dealer] = []GoodsReceipt{
		{
			ID: "GRN-401", OrderNumber: "ORD-2024-0109", Supplier: "Centuary Factory - Medchal",
			CreatedAt: now.AddDate(0, 0, -3),
			Lines: []GoodsReceiptLine{
				{ProductID: "P-100", Name: "Ortho Plus King", Ordered: 5, UnitValue: 2_500_000},
				{ProductID: "P-101", Name: "Ortho Plus Queen", Ordered: 8, UnitValue: 2_100_000},
				{ProductID: "P-104", Name: "Memory Foam Pillow", Ordered: 20, UnitValue: 180_000},
			},
		},
		{
			ID: "GRN-402", OrderNumber: "ORD-2024-0114", Supplier: "Centuary Factory - Medchal",
			CreatedAt: now.AddDate(0, 0, -1),
			Lines: []GoodsReceiptLine{
				{ProductID: "P-103", Name: "Pocket Spring King", Ordered: 3, UnitValue: 3_600_000},
			},
		},
	}
	m.invoices[dealer] = []Invoice{
		{ID: "INV-501", Number: "INV-2024-0541", CustomerName: "Anita Verma", Amount: 3_139_600, IssuedAt: now.AddDate(0, 0, -20), DueAt: now.AddDate(0, 0, 10), Status: "Paid"},
		{ID: "INV-502", Number: "INV-2024-0562", CustomerName: "Lakshmi Traders", Amount: 8_260_000, IssuedAt: now.AddDate(0, 0, -5), DueAt: now.AddDate(0, 0, 25), Status: "Pending"},
		{ID: "INV-503", Number: "INV-2024-0533", CustomerName: "Rohit Malhotra", Amount: 2_950_000, IssuedAt: now.AddDate(0, 0, -45), DueAt: now.AddDate(0, 0, -15), Status: "Overdue"},
	}
	m.inventory[dealer] = []InventoryItem{
		{ProductID: "P-100", Name: "Ortho Plus King", Opening: 12, Received: 5, Sold: 9, ReorderLevel: 4},
		{ProductID: "P-101", Name: "Ortho Plus Queen", Opening: 10, Received: 8, Sold: 15, ReorderLevel: 5},
		{ProductID: "P-102", Name: "Sleepables Single", Opening: 25, Received: 0, Sold: 18, ReorderLevel: 10},
		{ProductID: "P-103", Name: "Pocket Spring King", Opening: 4, Received: 3, Sold: 2, ReorderLevel: 2},
		{ProductID: "P-104", Name: "Memory Foam Pillow", Opening: 40, Received: 20, Sold: 35, ReorderLevel: 15},
	}
	m.warranties[dealer] = []Warranty{
		{ID: "W-601", CustomerID: "C-201", CustomerName: "Anita Verma", ProductID: "P-100", ProductCode: "ORTHO-K78", InvoiceNo: "INV-2024-0541", RegisteredAt: now.AddDate(0, 0, -19), ExpiresAt: now.AddDate(7, 0, -19)},
	}
	m.targets[dealer] = []Target{
		{Period: "2024-Q1", Target: 150_000_000, Achieved: 162_500_000},
		{Period: "2024-Q2", Target: 180_000_000, Achieved: 124_000_000},
	}
	return m
}

func (m *Mock) QueryProducts(context.Context) ([]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Product(nil), m.products...), nil
}

func (m *Mock) QuerySchemes(context.Context) ([]Scheme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Scheme(nil), m.schemes...), nil
}

func (m *Mock) QueryCustomers(_ context.Context, dealerID string) ([]Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Customer(nil), m.customers[dealerID]...), nil
}

func (m *Mock) QueryOrders(_ context.Context, dealerID string) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Order(nil), m.orders[dealerID]...), nil
}

func (m *Mock) QueryGoodsReceipts(_ context.Context, dealerID string) ([]GoodsReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GoodsReceipt(nil), m.receipts[dealerID]...), nil
}

func (m *Mock) QueryInvoices(_ context.Context, dealerID string) ([]Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Invoice(nil), m.invoices[dealerID]...), nil
}

func (m *Mock) QueryInventory(_ context.Context, dealerID string) ([]InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]InventoryItem(nil), m.inventory[dealerID]...), nil
}

func (m *Mock) QueryWarranties(_ context.Context, dealerID string) ([]Warranty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Warranty(nil), m.warranties[dealerID]...), nil
}

func (m *Mock) QueryTargets(_ context.Context, dealerID string) ([]Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Target(nil), m.targets[dealerID]...), nil
}

func (m *Mock) GetDealer(_ context.Context, code string) (Dealer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.dealers[strings.TrimSpace(code)]
	if !ok {
		return Dealer{}, fmt.Errorf("crm: dealer %q: %w", code, common.ErrNotFound)
	}
	return d, nil
}

// SetDealer overrides a dealer record, used by auth tests to install a known
// portal hash.
func (m *Mock) SetDealer(d Dealer) {
	m.mu.Lock()
	m.dealers[d.Code] = d
	m.mu.Unlock()
}

func (m *Mock) CreateOrder(_ context.Context, order NewOrder) (OrderAck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return OrderAck{}, fmt.Errorf("crm: order rejected: %w", common.ErrUnavailable)
	}
	if order.CustomerRef == "" || len(order.Lines) == 0 {
		return OrderAck{}, fmt.Errorf("crm: incomplete order: %w", common.ErrInvalidInput)
	}
	m.orderSeq++
	ack := OrderAck{
		ID:     uuid.NewString(),
		Number: fmt.Sprintf("ORD-%d-%04d", time.Now().Year(), 200+m.orderSeq),
	}
	lines := append([]OrderLine(nil), order.Lines...)
	m.orders[order.DealerID] = append([]Order{{
		ID:           ack.ID,
		Number:       ack.Number,
		CustomerID:   order.CustomerRef,
		PaymentTerms: order.PaymentTerms,
		DeliveryMode: order.DeliveryMode,
		Status:       "Placed",
		PlacedAt:     time.Now().UTC(),
		Lines:        lines,
	}}, m.orders[order.DealerID]...)
	m.CreatedAcks = append(m.CreatedAcks, ack)
	return ack, nil
}

func (m *Mock) UpdateInventory(_ context.Context, delta InventoryDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return fmt.Errorf("crm: inventory update rejected: %w", common.ErrUnavailable)
	}
	items := m.inventory[delta.DealerID]
	for i := range items {
		if items[i].ProductID == delta.ProductID {
			items[i].Received += delta.Received
			return nil
		}
	}
	m.inventory[delta.DealerID] = append(items, InventoryItem{
		ProductID: delta.ProductID,
		Name:      UnknownProductName,
		Received:  delta.Received,
	})
	return nil
}

func (m *Mock) UpsertCustomer(_ context.Context, dealerID string, customer Customer) (Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return Customer{}, fmt.Errorf("crm: customer upsert rejected: %w", common.ErrUnavailable)
	}
	existing := m.customers[dealerID]
	if customer.ID != "" {
		for i := range existing {
			if existing[i].ID == customer.ID {
				existing[i] = customer
				return customer, nil
			}
		}
	}
	customer.ID = uuid.NewString()
	m.customers[dealerID] = append(existing, customer)
	return customer, nil
}

func (m *Mock) CreateWarranty(_ context.Context, dealerID string, warranty Warranty) (Warranty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return Warranty{}, fmt.Errorf("crm: warranty rejected: %w", common.ErrUnavailable)
	}
	warranty.ID = uuid.NewString()
	m.warranties[dealerID] = append([]Warranty{warranty}, m.warranties[dealerID]...)
	return warranty, nil
}
