package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/centuary/backend-dealer/internal/common"
	"github.com/centuary/backend-dealer/internal/obs"
	"github.com/centuary/backend-dealer/internal/resilience"
)

// REST talks to the CRM's query and sobjects endpoints. Reads go through a
// retrying client; writes get exactly one attempt so a timed-out order
// submission is never silently resubmitted.
type REST struct {
	BaseURL string
	Tokens  *TokenSource
	Reads   resilience.HTTPClient
	Writes  resilience.HTTPClient
	Logger  zerolog.Logger
}

// NewREST wires the resilient HTTP clients around a shared circuit breaker.
func NewREST(baseURL string, tokens *TokenSource, timeout time.Duration, logger zerolog.Logger) *REST {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	breaker := resilience.NewBreaker(5, 0.5, 30*time.Second).
		WithTarget("crm").
		WithLogger(logger)
	httpClient := &http.Client{Timeout: timeout}
	return &REST{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Tokens:  tokens,
		Reads: resilience.HTTPClient{
			Client:      httpClient,
			Breaker:     breaker,
			MaxAttempts: 3,
			BaseBackoff: 200 * time.Millisecond,
			Jitter:      0.2,
			Timeout:     timeout,
		},
		Writes: resilience.HTTPClient{
			Client:      httpClient,
			Breaker:     breaker,
			MaxAttempts: 1,
			Timeout:     timeout,
		},
		Logger: logger,
	}
}

type queryEnvelope struct {
	TotalSize int             `json:"totalSize"`
	Done      bool            `json:"done"`
	Records   json.RawMessage `json:"records"`
}

type crmError struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

func (c *REST) QueryProducts(ctx context.Context) ([]Product, error) {
	var wires []productWire
	soql := "SELECT Id, ProductCode, Name, Category, Size, MRP, DealerPrice, WarrantyYears FROM Product2 WHERE IsActive = true"
	if err := c.query(ctx, "products", soql, &wires); err != nil {
		return nil, err
	}
	out := make([]Product, 0, len(wires))
	for _, w := range wires {
		out = append(out, w.normalize())
	}
	return out, nil
}

func (c *REST) QuerySchemes(ctx context.Context) ([]Scheme, error) {
	var wires []schemeWire
	soql := "SELECT Id, Name, Percent, StartsAt, EndsAt, Category, ProductIds FROM DiscountScheme WHERE Active = true"
	if err := c.query(ctx, "schemes", soql, &wires); err != nil {
		return nil, err
	}
	out := make([]Scheme, 0, len(wires))
	for _, w := range wires {
		out = append(out, w.normalize())
	}
	return out, nil
}

func (c *REST) QueryCustomers(ctx context.Context, dealerID string) ([]Customer, error) {
	var wires []customerWire
	soql := fmt.Sprintf("SELECT Id, Name, Contact, Email, City, Address FROM Account WHERE DealerId = '%s'", soqlEscape(dealerID))
	if err := c.query(ctx, "customers", soql, &wires); err != nil {
		return nil, err
	}
	out := make([]Customer, 0, len(wires))
	for _, w := range wires {
		out = append(out, w.normalize())
	}
	return out, nil
}

func (c *REST) QueryOrders(ctx context.Context, dealerID string) ([]Order, error) {
	var wires []orderWire
	soql := fmt.Sprintf("SELECT Id, OrderNumber, CustomerId, CustomerName, PaymentTerms, DeliveryMode, Status, PlacedAt, Lines FROM DealerOrder WHERE DealerId = '%s' ORDER BY PlacedAt DESC", soqlEscape(dealerID))
	if err := c.query(ctx, "orders", soql, &wires); err != nil {
		return nil, err
	}
	out := make([]Order, 0, len(wires))
	for _, w := range wires {
		out = append(out, w.normalize())
	}
	return out, nil
}

func (c *REST) QueryGoodsReceipts(ctx context.Context, dealerID string) ([]GoodsReceipt, error) {
	var wires []receiptWire
	soql := fmt.Sprintf("SELECT Id, OrderNumber, Supplier, CreatedAt, Lines FROM GoodsReceipt WHERE DealerId = '%s' ORDER BY CreatedAt DESC", soqlEscape(dealerID))
	if err := c.query(ctx, "goods_receipts", soql, &wires); err != nil {
		return nil, err
	}
	out := make([]GoodsReceipt, 0, len(wires))
	for _, w := range wires {
		out = append(out, w.normalize())
	}
	return out, nil
}

func (c *REST) QueryInvoices(ctx context.Context, dealerID string) ([]Invoice, error) {
	var wires []invoiceWire
	soql := fmt.Sprintf("SELECT Id, InvoiceNumber, CustomerName, Amount, IssuedAt, DueAt, Status FROM Invoice WHERE DealerId = '%s' ORDER BY IssuedAt DESC", soqlEscape(dealerID))
	if err := c.query(ctx, "invoices", soql, &wires); err != nil {
		return nil, err
	}
	out := make([]Invoice, 0, len(wires))
	for _, w := range wires {
		out = append(out, w.normalize())
	}
	return out, nil
}

func (c *REST) QueryInventory(ctx context.Context, dealerID string) ([]InventoryItem, error) {
	var wires []inventoryWire
	soql := fmt.Sprintf("SELECT ProductId, Name, Opening, Received, Sold, ReorderLevel FROM DealerStock WHERE DealerId = '%s'", soqlEscape(dealerID))
	if err := c.query(ctx, "inventory", soql, &wires); err != nil {
		return nil, err
	}
	out := make([]InventoryItem, 0, len(wires))
	for _, w := range wires {
		out = append(out, w.normalize())
	}
	return out, nil
}

func (c *REST) QueryWarranties(ctx context.Context, dealerID string) ([]Warranty, error) {
	var wires []warrantyWire
	soql := fmt.Sprintf("SELECT Id, CustomerId, CustomerName, ProductId, ProductCode, InvoiceNo, RegisteredAt, ExpiresAt FROM Warranty WHERE DealerId = '%s' ORDER BY RegisteredAt DESC", soqlEscape(dealerID))
	if err := c.query(ctx, "warranties", soql, &wires); err != nil {
		return nil, err
	}
	out := make([]Warranty, 0, len(wires))
	for _, w := range wires {
		out = append(out, w.normalize())
	}
	return out, nil
}

func (c *REST) QueryTargets(ctx context.Context, dealerID string) ([]Target, error) {
	var wires []targetWire
	soql := fmt.Sprintf("SELECT Period, Target, Achieved FROM SalesTarget WHERE DealerId = '%s' ORDER BY Period DESC", soqlEscape(dealerID))
	if err := c.query(ctx, "targets", soql, &wires); err != nil {
		return nil, err
	}
	out := make([]Target, 0, len(wires))
	for _, w := range wires {
		out = append(out, w.normalize())
	}
	return out, nil
}

func (c *REST) GetDealer(ctx context.Context, code string) (Dealer, error) {
	var wires []dealerWire
	soql := fmt.Sprintf("SELECT Id, DealerCode, Name, Region, PortalHash FROM Dealer WHERE DealerCode = '%s' LIMIT 1", soqlEscape(code))
	if err := c.query(ctx, "dealer", soql, &wires); err != nil {
		return Dealer{}, err
	}
	if len(wires) == 0 {
		return Dealer{}, fmt.Errorf("crm: dealer %q: %w", code, common.ErrNotFound)
	}
	return wires[0].normalize(), nil
}

func (c *REST) CreateOrder(ctx context.Context, order NewOrder) (OrderAck, error) {
	lines := make([]map[string]any, 0, len(order.Lines))
	for _, l := range order.Lines {
		lines = append(lines, map[string]any{
			"ProductId":       l.ProductID,
			"Quantity":        l.Qty,
			"UnitPrice":       PaiseToRupees(l.UnitPrice),
			"DiscountPercent": bpsToPercentString(l.DiscountBps),
		})
	}
	payload := map[string]any{
		"DealerId":     order.DealerID,
		"CustomerId":   order.CustomerRef,
		"PaymentTerms": order.PaymentTerms,
		"DeliveryMode": order.DeliveryMode,
		"Lines":        lines,
	}
	var ack struct {
		ID     string `json:"id"`
		Number string `json:"orderNumber"`
	}
	if err := c.write(ctx, "create_order", "/sobjects/DealerOrder", payload, &ack); err != nil {
		return OrderAck{}, err
	}
	return OrderAck{ID: ack.ID, Number: ack.Number}, nil
}

func (c *REST) UpdateInventory(ctx context.Context, delta InventoryDelta) error {
	payload := map[string]any{
		"DealerId":  delta.DealerID,
		"ProductId": delta.ProductID,
		"Received":  delta.Received,
	}
	return c.write(ctx, "update_inventory", "/sobjects/StockReceipt", payload, nil)
}

func (c *REST) UpsertCustomer(ctx context.Context, dealerID string, customer Customer) (Customer, error) {
	payload := map[string]any{
		"Id":       customer.ID,
		"DealerId": dealerID,
		"Name":     customer.Name,
		"Contact":  customer.Contact,
		"Email":    customer.Email,
		"City":     customer.City,
		"Address":  customer.Address,
	}
	var ack struct {
		ID string `json:"id"`
	}
	if err := c.write(ctx, "upsert_customer", "/sobjects/Account", payload, &ack); err != nil {
		return Customer{}, err
	}
	if customer.ID == "" {
		customer.ID = ack.ID
	}
	return customer, nil
}

func (c *REST) CreateWarranty(ctx context.Context, dealerID string, warranty Warranty) (Warranty, error) {
	payload := map[string]any{
		"DealerId":     dealerID,
		"CustomerId":   warranty.CustomerID,
		"ProductId":    warranty.ProductID,
		"ProductCode":  warranty.ProductCode,
		"InvoiceNo":    warranty.InvoiceNo,
		"RegisteredAt": warranty.RegisteredAt.Format(time.RFC3339),
		"ExpiresAt":    warranty.ExpiresAt.Format(time.RFC3339),
	}
	var ack struct {
		ID string `json:"id"`
	}
	if err := c.write(ctx, "create_warranty", "/sobjects/Warranty", payload, &ack); err != nil {
		return Warranty{}, err
	}
	warranty.ID = ack.ID
	return warranty, nil
}

func (c *REST) query(ctx context.Context, operation, soql string, out any) error {
	start := time.Now()
	err := c.doJSON(ctx, c.Reads, http.MethodGet, "/query?q="+url.QueryEscape(soql), nil, out, true)
	c.observe(operation, start, err)
	return err
}

func (c *REST) write(ctx context.Context, operation, path string, payload, out any) error {
	start := time.Now()
	err := c.doJSON(ctx, c.Writes, http.MethodPost, path, payload, out, false)
	c.observe(operation, start, err)
	return err
}

func (c *REST) doJSON(ctx context.Context, client resilience.HTTPClient, method, path string, payload, out any, envelope bool) error {
	token, err := c.Tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s", common.ErrUnavailable, err)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("crm: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("crm: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %s", common.ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("crm: read response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		c.Tokens.Invalidate()
		return fmt.Errorf("%w: crm rejected access token", common.ErrUnavailable)
	}
	if resp.StatusCode >= 400 {
		return c.statusError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if envelope {
		var env queryEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return fmt.Errorf("crm: decode query envelope: %w", err)
		}
		if len(env.Records) == 0 {
			return nil
		}
		if err := json.Unmarshal(env.Records, out); err != nil {
			return fmt.Errorf("crm: decode records: %w", err)
		}
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("crm: decode response: %w", err)
	}
	return nil
}

func (c *REST) statusError(status int, body []byte) error {
	message := ""
	var errs []crmError
	if json.Unmarshal(body, &errs) == nil && len(errs) > 0 {
		message = errs[0].Message
	}
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("crm: %s: %w", nonEmpty(message, "record not found"), common.ErrNotFound)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return fmt.Errorf("crm: %s: %w", nonEmpty(message, "request rejected"), common.ErrInvalidInput)
	default:
		return fmt.Errorf("crm: status %d %s: %w", status, message, common.ErrUnavailable)
	}
}

func (c *REST) observe(operation string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	if obs.CRMOperationTotal != nil {
		obs.CRMOperationTotal.WithLabelValues(operation, result).Inc()
	}
	if obs.CRMOperationLatency != nil {
		obs.CRMOperationLatency.WithLabelValues(operation).Observe(obs.DurationMillis(time.Since(start)))
	}
	if err != nil {
		c.Logger.Warn().Str("operation", operation).Err(err).Msg("crm_call_failed")
	}
}

func soqlEscape(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, "'", `\'`)
}

func nonEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func bpsToPercentString(bps int) string {
	whole := bps / 100
	frac := bps % 100
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	return fmt.Sprintf("%d.%02d", whole, frac)
}
