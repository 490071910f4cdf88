package ecommerce

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/domain/integration"
)

// Payload keys used by the storefront adapter
const (
	PayloadVendor      = "vendor"
	PayloadProductType = "product_type"
	PayloadHandle      = "handle"
	PayloadBarcode     = "barcode"
	PayloadStatus      = "status"
)

var linkNextPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// ShopifyAdapter implements integration.SourcePlatform over the Shopify Admin REST API.
// The first variant of a product carries its SKU, price and inventory item.
type ShopifyAdapter struct {
	config *ShopifyConfig
	client *apiClient
	logger *zap.Logger

	locationMu sync.Mutex
	locationID int64
}

var _ integration.SourcePlatform = (*ShopifyAdapter)(nil)

// NewShopifyAdapter creates a new Shopify adapter with the given configuration
func NewShopifyAdapter(config *ShopifyConfig, logger *zap.Logger) (*ShopifyAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := newAPIClient("shopify", config.APIBaseURL,
		time.Duration(config.TimeoutSeconds)*time.Second,
		config.RequestsPerSecond, config.Burst, config.MaxThrottleRetries,
		logger.Named("shopify"),
	)
	client.authorize = func(req *http.Request) {
		req.Header.Set("X-Shopify-Access-Token", config.AccessToken)
	}

	a := &ShopifyAdapter{
		config: config,
		client: client,
		logger: logger,
	}
	if config.LocationID != "" {
		id, err := parseID(config.LocationID)
		if err != nil {
			return nil, fmt.Errorf("%w: location id: %v", ErrShopifyConfigInvalid, err)
		}
		a.locationID = id
	}
	return a, nil
}

// Name returns the platform name
func (a *ShopifyAdapter) Name() string {
	return "shopify"
}

// FetchProducts reads every product page, following Link pagination
func (a *ShopifyAdapter) FetchProducts(ctx context.Context, opts integration.FetchOptions) ([]integration.CatalogRecord, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(shopifyPageLimit))
	if opts.ModifiedSince != nil {
		query.Set("updated_at_min", opts.ModifiedSince.UTC().Format(time.RFC3339))
	}

	var records []integration.CatalogRecord
	next := "products.json"
	for next != "" {
		var page ShopifyProductsResponse
		resp, err := a.client.getJSON(ctx, next, query, &page)
		if err != nil {
			return nil, err
		}
		for _, p := range page.Products {
			records = append(records, shopifyToRecord(p, opts.IncludeStock))
		}

		next = nextPageLink(resp.Header)
		// page_info links carry their own query; other filters are rejected
		query = nil
	}

	a.logger.Debug("Fetched storefront products",
		zap.Int("count", len(records)),
		zap.Bool("filtered", opts.ModifiedSince != nil),
	)
	return records, nil
}

// CreateProduct creates a product with a single variant
func (a *ShopifyAdapter) CreateProduct(ctx context.Context, payload integration.CatalogRecord) (integration.CatalogRecord, error) {
	if !payload.HasIdentity() {
		return integration.CatalogRecord{}, fmt.Errorf("%w: missing sku", integration.ErrProductSyncInvalidProduct)
	}

	product := recordToShopify(payload)
	product.Status = "active"
	if product.Handle == "" {
		product.Handle = Slugify(payload.Title)
	}

	var out ShopifyProductEnvelope
	if err := a.client.sendJSON(ctx, http.MethodPost, "products.json", ShopifyProductEnvelope{Product: product}, &out); err != nil {
		return integration.CatalogRecord{}, err
	}
	return shopifyToRecord(out.Product, true), nil
}

// UpdateProduct overwrites product metadata and the first variant's SKU
func (a *ShopifyAdapter) UpdateProduct(ctx context.Context, payload integration.CatalogRecord) (integration.CatalogRecord, error) {
	id, err := parseID(payload.PlatformID)
	if err != nil {
		return integration.CatalogRecord{}, fmt.Errorf("%w: product id %q", integration.ErrProductSyncInvalidProduct, payload.PlatformID)
	}

	product := recordToShopify(payload)
	product.ID = id
	// Price and stock have their own phases
	for i := range product.Variants {
		product.Variants[i].Price = ""
		product.Variants[i].InventoryQuantity = nil
	}

	var out ShopifyProductEnvelope
	path := fmt.Sprintf("products/%d.json", id)
	if err := a.client.sendJSON(ctx, http.MethodPut, path, ShopifyProductEnvelope{Product: product}, &out); err != nil {
		return integration.CatalogRecord{}, err
	}
	return shopifyToRecord(out.Product, true), nil
}

// UpdateInventory sets the available quantity at the configured location
func (a *ShopifyAdapter) UpdateInventory(ctx context.Context, productID, inventoryItemID string, quantity int64) error {
	itemID, err := parseID(inventoryItemID)
	if err != nil {
		return fmt.Errorf("%w: inventory item id %q of product %s", integration.ErrProductSyncInvalidProduct, inventoryItemID, productID)
	}
	locationID, err := a.resolveLocation(ctx)
	if err != nil {
		return err
	}

	body := ShopifyInventoryLevelSet{
		LocationID:      locationID,
		InventoryItemID: itemID,
		Available:       quantity,
	}
	return a.client.sendJSON(ctx, http.MethodPost, "inventory_levels/set.json", body, nil)
}

// UpdatePrice sets the variant price
func (a *ShopifyAdapter) UpdatePrice(ctx context.Context, productID, variantID string, price decimal.Decimal) error {
	id, err := parseID(variantID)
	if err != nil {
		return fmt.Errorf("%w: variant id %q of product %s", integration.ErrProductSyncInvalidProduct, variantID, productID)
	}
	body := ShopifyVariantEnvelope{Variant: ShopifyVariant{ID: id, Price: price.StringFixed(2)}}
	return a.client.sendJSON(ctx, http.MethodPut, fmt.Sprintf("variants/%d.json", id), body, nil)
}

// resolveLocation returns the configured location or the first active one
func (a *ShopifyAdapter) resolveLocation(ctx context.Context) (int64, error) {
	a.locationMu.Lock()
	defer a.locationMu.Unlock()
	if a.locationID != 0 {
		return a.locationID, nil
	}

	var out ShopifyLocationsResponse
	if _, err := a.client.getJSON(ctx, "locations.json", nil, &out); err != nil {
		return 0, err
	}
	for _, loc := range out.Locations {
		if loc.Active {
			a.locationID = loc.ID
			a.logger.Info("Using storefront inventory location",
				zap.Int64("location_id", loc.ID),
				zap.String("location_name", loc.Name),
			)
			return loc.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: shopify: no active inventory location", integration.ErrPlatformNotConfigured)
}

// nextPageLink extracts the rel="next" URL from a Link header
func nextPageLink(h http.Header) string {
	for _, link := range h.Values("Link") {
		if m := linkNextPattern.FindStringSubmatch(link); m != nil {
			return m[1]
		}
	}
	return ""
}

// shopifyToRecord converts a product to a catalog record
func shopifyToRecord(p ShopifyProduct, includeStock bool) integration.CatalogRecord {
	r := integration.CatalogRecord{
		PlatformID:  formatID(p.ID),
		Title:       p.Title,
		Description: p.BodyHTML,
		UpdatedAt:   p.UpdatedAt,
		Payload: map[string]string{
			PayloadVendor:      p.Vendor,
			PayloadProductType: p.ProductType,
			PayloadHandle:      p.Handle,
			PayloadStatus:      p.Status,
		},
	}
	if len(p.Variants) == 0 {
		return r
	}

	v := p.Variants[0]
	r.IdentityKey = v.SKU
	r.VariantID = formatID(v.ID)
	r.InventoryItemID = formatID(v.InventoryItemID)
	r.Payload[PayloadBarcode] = v.Barcode
	if v.Price != "" {
		if price, err := decimal.NewFromString(v.Price); err == nil {
			r.Price = decimal.NewNullDecimal(price)
		}
	}
	if includeStock && v.InventoryQuantity != nil {
		q := *v.InventoryQuantity
		r.StockQuantity = &q
	}
	if v.UpdatedAt != nil && (r.UpdatedAt == nil || v.UpdatedAt.After(*r.UpdatedAt)) {
		r.UpdatedAt = v.UpdatedAt
	}
	return r
}

// recordToShopify converts a catalog record to a product request
func recordToShopify(r integration.CatalogRecord) ShopifyProduct {
	p := ShopifyProduct{
		Title:       r.Title,
		BodyHTML:    r.Description,
		Vendor:      r.Payload[PayloadVendor],
		ProductType: r.Payload[PayloadProductType],
		Handle:      r.Payload[PayloadHandle],
	}
	v := ShopifyVariant{
		SKU:                 strings.TrimSpace(r.IdentityKey),
		Barcode:             r.Payload[PayloadBarcode],
		InventoryManagement: "shopify",
	}
	if id, err := parseID(r.VariantID); err == nil {
		v.ID = id
	}
	if r.Price.Valid {
		v.Price = r.Price.Decimal.StringFixed(2)
	}
	p.Variants = []ShopifyVariant{v}
	return p
}
