package crm

import "context"

// Client is the behaviour the rest of the service needs from the CRM. The
// CRM stays the system of record for catalog, accounts, orders, receipts,
// invoices, warranties and stock; this service never persists any of those
// locally.
type Client interface {
	QueryProducts(ctx context.Context) ([]Product, error)
	QuerySchemes(ctx context.Context) ([]Scheme, error)
	QueryCustomers(ctx context.Context, dealerID string) ([]Customer, error)
	QueryOrders(ctx context.Context, dealerID string) ([]Order, error)
	QueryGoodsReceipts(ctx context.Context, dealerID string) ([]GoodsReceipt, error)
	QueryInvoices(ctx context.Context, dealerID string) ([]Invoice, error)
	QueryInventory(ctx context.Context, dealerID string) ([]InventoryItem, error)
	QueryWarranties(ctx context.Context, dealerID string) ([]Warranty, error)
	QueryTargets(ctx context.Context, dealerID string) ([]Target, error)
	GetDealer(ctx context.Context, code string) (Dealer, error)

	CreateOrder(ctx context.Context, order NewOrder) (OrderAck, error)
	UpdateInventory(ctx context.Context, delta InventoryDelta) error
	UpsertCustomer(ctx context.Context, dealerID string, customer Customer) (Customer, error)
	CreateWarranty(ctx context.Context, dealerID string, warranty Warranty) (Warranty, error)
}
