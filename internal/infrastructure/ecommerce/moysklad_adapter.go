package ecommerce

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/domain/integration"
)

// Payload keys used by the ERP adapter
const (
	PayloadArticle = "article"
)

// MoySkladAdapter implements integration.TargetPlatform over the MoySklad JSON API.
// The product code is the identity key; prices are in minor currency units.
type MoySkladAdapter struct {
	config *MoySkladConfig
	client *apiClient
	logger *zap.Logger

	priceTypeMu sync.Mutex
	priceType   *MoySkladPriceType

	orderRefsMu  sync.Mutex
	organization *MoySkladMetaRef
	store        *MoySkladMetaRef
}

var _ integration.TargetPlatform = (*MoySkladAdapter)(nil)

// NewMoySkladAdapter creates a new MoySklad adapter with the given configuration
func NewMoySkladAdapter(config *MoySkladConfig, logger *zap.Logger) (*MoySkladAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := newAPIClient("moysklad", config.APIBaseURL,
		time.Duration(config.TimeoutSeconds)*time.Second,
		config.RequestsPerSecond, config.Burst, config.MaxThrottleRetries,
		logger.Named("moysklad"),
	)
	client.authorize = moySkladAuthorizer(config)
	client.cooldown = moySkladCooldown

	return &MoySkladAdapter{
		config: config,
		client: client,
		logger: logger,
	}, nil
}

// Name returns the platform name
func (a *MoySkladAdapter) Name() string {
	return "moysklad"
}

// FetchProducts reads every product page and, when requested, merges stock
// from the stock report
func (a *MoySkladAdapter) FetchProducts(ctx context.Context, opts integration.FetchOptions) ([]integration.CatalogRecord, error) {
	priceType, err := a.resolvePriceType(ctx)
	if err != nil {
		return nil, err
	}

	base := url.Values{}
	if opts.ModifiedSince != nil {
		base.Set("filter", "updated>="+opts.ModifiedSince.In(moscow).Format(moySkladFilterLayout))
	}

	var records []integration.CatalogRecord
	for offset := 0; ; {
		query := paged(base, offset)
		var page MoySkladProductList
		if _, err := a.client.getJSON(ctx, "entity/product", query, &page); err != nil {
			return nil, err
		}
		for _, p := range page.Rows {
			records = append(records, moySkladToRecord(p, priceType))
		}

		offset += len(page.Rows)
		if len(page.Rows) == 0 || offset >= page.Meta.Size {
			break
		}
	}

	if opts.IncludeStock && len(records) > 0 {
		stock, err := a.fetchStock(ctx)
		if err != nil {
			return nil, err
		}
		for i := range records {
			if q, ok := stock.lookup(records[i].PlatformID, records[i].IdentityKey); ok {
				records[i].StockQuantity = &q
			}
		}
	}

	a.logger.Debug("Fetched ERP products",
		zap.Int("count", len(records)),
		zap.Bool("filtered", opts.ModifiedSince != nil),
		zap.Bool("with_stock", opts.IncludeStock),
	)
	return records, nil
}

// CreateProduct creates a product
func (a *MoySkladAdapter) CreateProduct(ctx context.Context, payload integration.CatalogRecord) (integration.CatalogRecord, error) {
	if !payload.HasIdentity() {
		return integration.CatalogRecord{}, fmt.Errorf("%w: missing code", integration.ErrProductSyncInvalidProduct)
	}
	priceType, err := a.resolvePriceType(ctx)
	if err != nil {
		return integration.CatalogRecord{}, err
	}

	body := recordToMoySklad(payload, priceType)
	var out MoySkladProduct
	if err := a.client.sendJSON(ctx, http.MethodPost, "entity/product", body, &out); err != nil {
		return integration.CatalogRecord{}, err
	}
	return moySkladToRecord(out, priceType), nil
}

// UpdateProduct overwrites product metadata. Prices are left to the price phase.
func (a *MoySkladAdapter) UpdateProduct(ctx context.Context, payload integration.CatalogRecord) (integration.CatalogRecord, error) {
	if payload.PlatformID == "" {
		return integration.CatalogRecord{}, fmt.Errorf("%w: missing product id", integration.ErrProductSyncInvalidProduct)
	}
	priceType, err := a.resolvePriceType(ctx)
	if err != nil {
		return integration.CatalogRecord{}, err
	}

	body := recordToMoySklad(payload, priceType)
	body.SalePrices = nil
	var out MoySkladProduct
	path := "entity/product/" + url.PathEscape(payload.PlatformID)
	if err := a.client.sendJSON(ctx, http.MethodPut, path, body, &out); err != nil {
		return integration.CatalogRecord{}, err
	}
	return moySkladToRecord(out, priceType), nil
}

// UpdatePrice sets the sale price of the configured price type
func (a *MoySkladAdapter) UpdatePrice(ctx context.Context, productID string, price decimal.Decimal) error {
	if productID == "" {
		return fmt.Errorf("%w: missing product id", integration.ErrProductSyncInvalidProduct)
	}
	priceType, err := a.resolvePriceType(ctx)
	if err != nil {
		return err
	}

	body := MoySkladProduct{SalePrices: []MoySkladSalePrice{newSalePrice(price, priceType)}}
	return a.client.sendJSON(ctx, http.MethodPut, "entity/product/"+url.PathEscape(productID), body, nil)
}

// resolvePriceType loads and caches the sale price type prices are read from and written to
func (a *MoySkladAdapter) resolvePriceType(ctx context.Context) (*MoySkladPriceType, error) {
	a.priceTypeMu.Lock()
	defer a.priceTypeMu.Unlock()
	if a.priceType != nil {
		return a.priceType, nil
	}

	var pt MoySkladPriceType
	if a.config.PriceTypeName == "" {
		if _, err := a.client.getJSON(ctx, "context/companysettings/pricetype/default", nil, &pt); err != nil {
			return nil, err
		}
	} else {
		var all []MoySkladPriceType
		if _, err := a.client.getJSON(ctx, "context/companysettings/pricetype", nil, &all); err != nil {
			return nil, err
		}
		found := false
		for _, candidate := range all {
			if strings.EqualFold(candidate.Name, a.config.PriceTypeName) {
				pt, found = candidate, true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: moysklad: price type %q not found", integration.ErrPlatformNotConfigured, a.config.PriceTypeName)
		}
	}

	a.priceType = &pt
	a.logger.Info("Using ERP sale price type", zap.String("price_type", pt.Name), zap.String("price_type_id", pt.ID))
	return a.priceType, nil
}

// stockLevels maps product ids and codes to quantities
type stockLevels struct {
	byID   map[string]int64
	byCode map[string]int64
}

func (s stockLevels) lookup(id, code string) (int64, bool) {
	if q, ok := s.byID[id]; ok {
		return q, true
	}
	q, ok := s.byCode[integration.NormalizeIdentityKey(code)]
	return q, ok
}

// fetchStock reads the full stock report
func (a *MoySkladAdapter) fetchStock(ctx context.Context) (stockLevels, error) {
	levels := stockLevels{byID: map[string]int64{}, byCode: map[string]int64{}}
	for offset := 0; ; {
		var page MoySkladStockList
		if _, err := a.client.getJSON(ctx, "report/stock/all", paged(nil, offset), &page); err != nil {
			return levels, err
		}
		for _, row := range page.Rows {
			q := int64(math.Floor(row.Stock))
			if id := row.ProductID(); id != "" {
				levels.byID[id] = q
			}
			if code := integration.NormalizeIdentityKey(row.Code); code != "" {
				levels.byCode[code] = q
			}
		}

		offset += len(page.Rows)
		if len(page.Rows) == 0 || offset >= page.Meta.Size {
			return levels, nil
		}
	}
}

// paged copies base and adds limit/offset
func paged(base url.Values, offset int) url.Values {
	q := url.Values{}
	for k, v := range base {
		q[k] = append([]string(nil), v...)
	}
	q.Set("limit", strconv.Itoa(moySkladPageLimit))
	q.Set("offset", strconv.Itoa(offset))
	return q
}

// moySkladAuthorizer prefers a bearer token and falls back to basic credentials
func moySkladAuthorizer(config *MoySkladConfig) func(req *http.Request) {
	var header string
	if config.Token != "" {
		header = "Bearer " + config.Token
	} else {
		header = "Basic " + base64.StdEncoding.EncodeToString([]byte(config.Login+":"+config.Password))
	}
	return func(req *http.Request) {
		req.Header.Set("Authorization", header)
	}
}

// moySkladCooldown reads X-Lognex-Retry-TimeInterval (milliseconds), then Retry-After
func moySkladCooldown(h http.Header) (time.Duration, bool) {
	if v := strings.TrimSpace(h.Get("X-Lognex-Retry-TimeInterval")); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond, true
		}
	}
	return retryAfterCooldown(h)
}

// moySkladToRecord converts a product to a catalog record
func moySkladToRecord(p MoySkladProduct, priceType *MoySkladPriceType) integration.CatalogRecord {
	r := integration.CatalogRecord{
		IdentityKey: p.Code,
		PlatformID:  p.ID,
		Title:       p.Name,
		Description: p.Description,
		UpdatedAt:   p.Updated.Ptr(),
		Payload: map[string]string{
			PayloadArticle: p.Article,
		},
	}
	if barcode := firstBarcode(p.Barcodes); barcode != "" {
		r.Payload[PayloadBarcode] = barcode
	}
	if sp, ok := selectSalePrice(p.SalePrices, priceType); ok {
		if v, err := decimal.NewFromString(sp.Value.String()); err == nil {
			r.Price = decimal.NewNullDecimal(v)
		}
	}
	return r
}

// recordToMoySklad converts a catalog record to a product request
func recordToMoySklad(r integration.CatalogRecord, priceType *MoySkladPriceType) MoySkladProduct {
	p := MoySkladProduct{
		Name:        r.Title,
		Code:        strings.TrimSpace(r.IdentityKey),
		Article:     r.Payload[PayloadArticle],
		Description: r.Description,
	}
	if barcode := r.Payload[PayloadBarcode]; barcode != "" {
		p.Barcodes = []map[string]string{{barcodeKind(barcode): barcode}}
	}
	if r.Price.Valid {
		p.SalePrices = []MoySkladSalePrice{newSalePrice(r.Price.Decimal, priceType)}
	}
	return p
}

func newSalePrice(price decimal.Decimal, priceType *MoySkladPriceType) MoySkladSalePrice {
	sp := MoySkladSalePrice{Value: json.Number(price.Round(0).String())}
	if priceType != nil {
		sp.PriceType = &MoySkladPriceType{Meta: priceType.Meta}
	}
	return sp
}

// selectSalePrice picks the price of the configured type, or the first one
func selectSalePrice(prices []MoySkladSalePrice, priceType *MoySkladPriceType) (MoySkladSalePrice, bool) {
	if len(prices) == 0 {
		return MoySkladSalePrice{}, false
	}
	if priceType != nil {
		for _, sp := range prices {
			if sp.PriceType != nil && sp.PriceType.ID != "" && sp.PriceType.ID == priceType.ID {
				return sp, true
			}
		}
	}
	return prices[0], true
}

func firstBarcode(barcodes []map[string]string) string {
	for _, b := range barcodes {
		for _, kind := range []string{"ean13", "ean8", "code128", "gtin", "upc"} {
			if v := b[kind]; v != "" {
				return v
			}
		}
	}
	return ""
}

// barcodeKind guesses the barcode type from its length
func barcodeKind(code string) string {
	switch len(code) {
	case 13:
		return "ean13"
	case 8:
		return "ean8"
	case 12:
		return "upc"
	case 14:
		return "gtin"
	default:
		return "code128"
	}
}
