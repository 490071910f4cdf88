package ecommerce

import (
	"strconv"
	"time"
)

// ---------------------------------------------------------------------------
// Shopify Admin REST API Types
// ---------------------------------------------------------------------------

// ShopifyProductsResponse is the response of GET /products.json
type ShopifyProductsResponse struct {
	Products []ShopifyProduct `json:"products"`
}

// ShopifyProductEnvelope wraps a single product in requests and responses
type ShopifyProductEnvelope struct {
	Product ShopifyProduct `json:"product"`
}

// ShopifyProduct represents a product resource
type ShopifyProduct struct {
	ID          int64            `json:"id,omitempty"`
	Title       string           `json:"title,omitempty"`
	BodyHTML    string           `json:"body_html,omitempty"`
	Vendor      string           `json:"vendor,omitempty"`
	ProductType string           `json:"product_type,omitempty"`
	Handle      string           `json:"handle,omitempty"`
	Status      string           `json:"status,omitempty"`
	UpdatedAt   *time.Time       `json:"updated_at,omitempty"`
	Variants    []ShopifyVariant `json:"variants,omitempty"`
}

// ShopifyVariant represents a product variant resource
type ShopifyVariant struct {
	ID                  int64      `json:"id,omitempty"`
	ProductID           int64      `json:"product_id,omitempty"`
	SKU                 string     `json:"sku,omitempty"`
	Barcode             string     `json:"barcode,omitempty"`
	Price               string     `json:"price,omitempty"`
	InventoryItemID     int64      `json:"inventory_item_id,omitempty"`
	InventoryQuantity   *int64     `json:"inventory_quantity,omitempty"`
	InventoryManagement string     `json:"inventory_management,omitempty"`
	UpdatedAt           *time.Time `json:"updated_at,omitempty"`
}

// ShopifyVariantEnvelope wraps a single variant
type ShopifyVariantEnvelope struct {
	Variant ShopifyVariant `json:"variant"`
}

// ShopifyLocationsResponse is the response of GET /locations.json
type ShopifyLocationsResponse struct {
	Locations []ShopifyLocation `json:"locations"`
}

// ShopifyLocation represents an inventory location
type ShopifyLocation struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// ShopifyInventoryLevelSet is the body of POST /inventory_levels/set.json
type ShopifyInventoryLevelSet struct {
	LocationID      int64 `json:"location_id"`
	InventoryItemID int64 `json:"inventory_item_id"`
	Available       int64 `json:"available"`
}

// ShopifyOrdersResponse is the response of GET /orders.json
type ShopifyOrdersResponse struct {
	Orders []ShopifyOrder `json:"orders"`
}

// ShopifyOrderEnvelope wraps a single order in requests and responses
type ShopifyOrderEnvelope struct {
	Order ShopifyOrder `json:"order"`
}

// ShopifyOrder represents an order resource. Tags is a comma separated list.
type ShopifyOrder struct {
	ID              int64             `json:"id"`
	Name            string            `json:"name,omitempty"`
	Email           string            `json:"email,omitempty"`
	Phone           string            `json:"phone,omitempty"`
	Tags            string            `json:"tags"`
	CreatedAt       *time.Time        `json:"created_at,omitempty"`
	Customer        *ShopifyCustomer  `json:"customer,omitempty"`
	ShippingAddress *ShopifyAddress   `json:"shipping_address,omitempty"`
	LineItems       []ShopifyLineItem `json:"line_items,omitempty"`
}

// ShopifyCustomer is the customer embedded in an order
type ShopifyCustomer struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// ShopifyAddress is a postal address embedded in an order
type ShopifyAddress struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2"`
	City      string `json:"city"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
	Phone     string `json:"phone"`
}

// ShopifyLineItem is one order line
type ShopifyLineItem struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	SKU       string `json:"sku"`
	Quantity  int64  `json:"quantity"`
	Price     string `json:"price"`
	VariantID int64  `json:"variant_id"`
}

// formatID renders a numeric resource id, empty for zero
func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

// parseID parses a numeric resource id
func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
