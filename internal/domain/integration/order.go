package integration

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultOrderSyncedTag marks storefront orders already pushed to the ERP
const DefaultOrderSyncedTag = "moysklad-synced"

// DefaultCustomerName is used for orders without a named customer
const DefaultCustomerName = "Shopify Customer"

// ---------------------------------------------------------------------------
// Storefront orders
// ---------------------------------------------------------------------------

// Order is a storefront order as seen by the order push
type Order struct {
	// PlatformID is the storefront order id
	PlatformID string
	// Name is the display number, e.g. #1001
	Name      string
	CreatedAt time.Time
	Customer  *OrderCustomer
	// ShippingAddress is nil for orders without shipping
	ShippingAddress *OrderAddress
	LineItems       []OrderLine
	Tags            []string
}

// HasTag reports whether the order carries tag, ignoring case and spacing
func (o Order) HasTag(tag string) bool {
	tag = strings.TrimSpace(tag)
	return slices.ContainsFunc(o.Tags, func(t string) bool {
		return strings.EqualFold(strings.TrimSpace(t), tag)
	})
}

// OrderCustomer is the buyer of an order
type OrderCustomer struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	// Tags are attached to the counterparty when it is created
	Tags []string
}

// DisplayName joins first and last name, falling back to DefaultCustomerName
func (c OrderCustomer) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
	if name == "" {
		return DefaultCustomerName
	}
	return name
}

// OrderAddress is a shipping address
type OrderAddress struct {
	Address1 string
	Address2 string
	City     string
	Zip      string
	Country  string
}

// String renders the address on one line, skipping empty parts
func (a OrderAddress) String() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{a.Address1, a.Address2, a.City, a.Zip, a.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// OrderLine is one line item of an order. Price is in storefront units.
type OrderLine struct {
	Title    string
	SKU      string
	Quantity int64
	Price    decimal.Decimal
}

// ---------------------------------------------------------------------------
// ERP customer orders
// ---------------------------------------------------------------------------

// CustomerOrder is the ERP document created for a storefront order
type CustomerOrder struct {
	Name string
	// ExternalCode is the storefront order id. The ERP adapter treats it as
	// the idempotency key of the document.
	ExternalCode    string
	Moment          time.Time
	CustomerID      string
	ShipmentAddress string
	Description     string
	Positions       []OrderPosition
}

// OrderPosition is one ERP order line. Price is in ERP units.
type OrderPosition struct {
	ProductID string
	Quantity  int64
	Price     decimal.Decimal
}

// UnmatchedLine is a line item that has no ERP product
type UnmatchedLine struct {
	Title string
	SKU   string
}

// BuildCustomerOrder maps a storefront order to an ERP document. Lines are
// matched to ERP products by SKU through products; lines without a match are
// left out and returned separately. convert maps a storefront price to ERP units.
func BuildCustomerOrder(
	o Order,
	customerID string,
	products CatalogIndex,
	convert func(decimal.Decimal) decimal.Decimal,
) (CustomerOrder, []UnmatchedLine) {
	out := CustomerOrder{
		Name:         o.Name,
		ExternalCode: o.PlatformID,
		Moment:       o.CreatedAt,
		CustomerID:   customerID,
		Description:  "Shopify order " + o.Name,
	}
	if o.ShippingAddress != nil {
		out.ShipmentAddress = o.ShippingAddress.String()
	}

	var unmatched []UnmatchedLine
	for _, line := range o.LineItems {
		product, found := products.Lookup(line.SKU)
		if !found || product.PlatformID == "" {
			unmatched = append(unmatched, UnmatchedLine{Title: line.Title, SKU: line.SKU})
			continue
		}
		qty := line.Quantity
		if qty <= 0 {
			qty = 1
		}
		out.Positions = append(out.Positions, OrderPosition{
			ProductID: product.PlatformID,
			Quantity:  qty,
			Price:     convert(line.Price),
		})
	}
	return out, unmatched
}

// ---------------------------------------------------------------------------
// Order ports
// ---------------------------------------------------------------------------

// OrderFetchOptions scopes an order read
type OrderFetchOptions struct {
	// ExcludeTag drops orders carrying this tag
	ExcludeTag string
	// CreatedSince limits the read to orders created at or after the cutoff.
	// Nil reads every open order.
	CreatedSince *time.Time
}

// OrderSource is the storefront side of the order push
type OrderSource interface {
	// FetchOrders reads orders, following pagination
	FetchOrders(ctx context.Context, opts OrderFetchOptions) ([]Order, error)

	// TagOrder adds tag to the order, keeping its existing tags
	TagOrder(ctx context.Context, orderID, tag string) error
}

// OrderTarget is the ERP side of the order push
type OrderTarget interface {
	// GetOrCreateCustomer returns the id of the counterparty matching the
	// customer's email, then name, creating it when neither matches
	GetOrCreateCustomer(ctx context.Context, customer OrderCustomer) (string, error)

	// CreateCustomerOrder creates the document and returns its id. An
	// existing document with the same ExternalCode is returned instead.
	CreateCustomerOrder(ctx context.Context, order CustomerOrder) (string, error)
}

// ProductLookup reads the ERP catalog that order lines are matched against
type ProductLookup interface {
	Name() string
	FetchProducts(ctx context.Context, opts FetchOptions) ([]CatalogRecord, error)
}

// ---------------------------------------------------------------------------
// OrderSyncReport
// ---------------------------------------------------------------------------

// OrderFailure represents an order that could not be pushed
type OrderFailure struct {
	OrderID      string `json:"order_id"`
	OrderName    string `json:"order_name"`
	ErrorMessage string `json:"error_message"`
}

// OrderSyncReport aggregates one order push run
type OrderSyncReport struct {
	RunID        string         `json:"run_id"`
	Status       SyncStatus     `json:"status"`
	CreatedSince *time.Time     `json:"created_since,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
	TotalCount   int            `json:"total_count"`
	SuccessCount int            `json:"success_count"`
	FailedCount  int            `json:"failed_count"`
	SkippedCount int            `json:"skipped_count"`
	FailedOrders []OrderFailure `json:"failed_orders,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// NewOrderSyncReport creates an in-progress report
func NewOrderSyncReport(runID string, createdSince *time.Time, startedAt time.Time) *OrderSyncReport {
	return &OrderSyncReport{
		RunID:        runID,
		Status:       SyncStatusInProgress,
		CreatedSince: createdSince,
		StartedAt:    startedAt,
	}
}

// Succeeded counts a pushed order
func (r *OrderSyncReport) Succeeded() {
	r.TotalCount++
	r.SuccessCount++
}

// Skipped counts an order that needed no push
func (r *OrderSyncReport) Skipped() {
	r.TotalCount++
	r.SkippedCount++
}

// Failed counts an order that could not be pushed
func (r *OrderSyncReport) Failed(o Order, err error) {
	r.TotalCount++
	r.FailedCount++
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	r.FailedOrders = append(r.FailedOrders, OrderFailure{
		OrderID:      o.PlatformID,
		OrderName:    o.Name,
		ErrorMessage: msg,
	})
}

// Finish stamps the finish time and derives the status from the counts
func (r *OrderSyncReport) Finish(at time.Time) {
	r.FinishedAt = at
	switch {
	case r.FailedCount == 0:
		r.Status = SyncStatusSuccess
	case r.SuccessCount > 0:
		r.Status = SyncStatusPartial
	default:
		r.Status = SyncStatusFailed
	}
}

// Abort marks the run as failed by a systemic error
func (r *OrderSyncReport) Abort(at time.Time, err error) {
	r.FinishedAt = at
	r.Status = SyncStatusFailed
	r.Error = err.Error()
}

// Duration returns how long the run took
func (r *OrderSyncReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
