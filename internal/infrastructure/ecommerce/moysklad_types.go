package ecommerce

import (
	"encoding/json"
	"strings"
	"time"
)

// moySkladTimeLayout is the timestamp format of the API, in Moscow time
const moySkladTimeLayout = "2006-01-02 15:04:05.000"

// moySkladFilterLayout is the timestamp format accepted by filters
const moySkladFilterLayout = "2006-01-02 15:04:05"

// moscow is the fixed time zone the API reports timestamps in
var moscow = time.FixedZone("MSK", 3*60*60)

// ---------------------------------------------------------------------------
// MoySklad JSON API Types
// ---------------------------------------------------------------------------

// MoySkladMeta is the metadata object attached to every entity
type MoySkladMeta struct {
	Href      string `json:"href"`
	Type      string `json:"type,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	Size      int    `json:"size,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// MoySkladMetaRef wraps a meta reference to another entity
type MoySkladMetaRef struct {
	Meta MoySkladMeta `json:"meta"`
}

// MoySkladProductList is a page of products
type MoySkladProductList struct {
	Meta MoySkladMeta      `json:"meta"`
	Rows []MoySkladProduct `json:"rows"`
}

// MoySkladProduct represents a product entity
type MoySkladProduct struct {
	Meta        *MoySkladMeta       `json:"meta,omitempty"`
	ID          string              `json:"id,omitempty"`
	Name        string              `json:"name,omitempty"`
	Code        string              `json:"code,omitempty"`
	Article     string              `json:"article,omitempty"`
	Description string              `json:"description,omitempty"`
	Updated     *MoySkladTime       `json:"updated,omitempty"`
	SalePrices  []MoySkladSalePrice `json:"salePrices,omitempty"`
	Barcodes    []map[string]string `json:"barcodes,omitempty"`
}

// MoySkladSalePrice is one sale price in minor currency units
type MoySkladSalePrice struct {
	Value     json.Number        `json:"value"`
	PriceType *MoySkladPriceType `json:"priceType,omitempty"`
}

// MoySkladPriceType represents a price type
type MoySkladPriceType struct {
	Meta MoySkladMeta `json:"meta"`
	ID   string       `json:"id,omitempty"`
	Name string       `json:"name,omitempty"`
}

// MoySkladStockList is a page of the stock report
type MoySkladStockList struct {
	Meta MoySkladMeta       `json:"meta"`
	Rows []MoySkladStockRow `json:"rows"`
}

// MoySkladStockRow is one line of report/stock/all
type MoySkladStockRow struct {
	Meta  MoySkladMeta `json:"meta"`
	Code  string       `json:"code"`
	Stock float64      `json:"stock"`
}

// ProductID extracts the product id from the row's href
func (r MoySkladStockRow) ProductID() string {
	return entityIDFromHref(r.Meta.Href)
}

// MoySkladEntity is the common shape of organizations and stores
type MoySkladEntity struct {
	Meta MoySkladMeta `json:"meta"`
	ID   string       `json:"id"`
	Name string       `json:"name"`
}

// MoySkladEntityList is a page of organizations or stores
type MoySkladEntityList struct {
	Meta MoySkladMeta     `json:"meta"`
	Rows []MoySkladEntity `json:"rows"`
}

// MoySkladCounterparty represents a counterparty entity
type MoySkladCounterparty struct {
	Meta        *MoySkladMeta `json:"meta,omitempty"`
	ID          string        `json:"id,omitempty"`
	Name        string        `json:"name"`
	Email       string        `json:"email,omitempty"`
	Phone       string        `json:"phone,omitempty"`
	CompanyType string        `json:"companyType,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
}

// MoySkladCounterpartyList is a page of counterparties
type MoySkladCounterpartyList struct {
	Meta MoySkladMeta           `json:"meta"`
	Rows []MoySkladCounterparty `json:"rows"`
}

// MoySkladCustomerOrder represents a customer order document
type MoySkladCustomerOrder struct {
	Meta            *MoySkladMeta           `json:"meta,omitempty"`
	ID              string                  `json:"id,omitempty"`
	Name            string                  `json:"name,omitempty"`
	ExternalCode    string                  `json:"externalCode,omitempty"`
	Moment          *MoySkladTime           `json:"moment,omitempty"`
	Description     string                  `json:"description,omitempty"`
	ShipmentAddress string                  `json:"shipmentAddress,omitempty"`
	Organization    *MoySkladMetaRef        `json:"organization,omitempty"`
	Agent           *MoySkladMetaRef        `json:"agent,omitempty"`
	Store           *MoySkladMetaRef        `json:"store,omitempty"`
	Positions       []MoySkladOrderPosition `json:"positions,omitempty"`
}

// MoySkladCustomerOrderList is a page of customer orders
type MoySkladCustomerOrderList struct {
	Meta MoySkladMeta            `json:"meta"`
	Rows []MoySkladCustomerOrder `json:"rows"`
}

// MoySkladOrderPosition is one order line. Price is in minor currency units.
type MoySkladOrderPosition struct {
	Quantity   float64         `json:"quantity"`
	Price      json.Number     `json:"price"`
	Assortment MoySkladMetaRef `json:"assortment"`
}

// MoySkladTime parses the API timestamp format
type MoySkladTime struct {
	time.Time
}

// UnmarshalJSON parses "2006-01-02 15:04:05.000" in Moscow time
func (t *MoySkladTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	for _, layout := range []string{moySkladTimeLayout, moySkladFilterLayout} {
		if parsed, err := time.ParseInLocation(layout, s, moscow); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return &time.ParseError{Layout: moySkladTimeLayout, Value: s}
}

// MarshalJSON renders the API timestamp format
func (t MoySkladTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`null`), nil
	}
	return []byte(`"` + t.In(moscow).Format(moySkladTimeLayout) + `"`), nil
}

// Ptr returns the time or nil when unset
func (t *MoySkladTime) Ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

// entityIDFromHref returns the last path segment of an entity href
func entityIDFromHref(href string) string {
	if i := strings.IndexByte(href, '?'); i >= 0 {
		href = href[:i]
	}
	href = strings.TrimRight(href, "/")
	if i := strings.LastIndexByte(href, '/'); i >= 0 {
		return href[i+1:]
	}
	return href
}
