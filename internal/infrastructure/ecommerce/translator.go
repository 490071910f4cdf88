package ecommerce

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/domain/integration"
)

// minorUnitsPerMajor is the ERP price scale (kopecks per rouble)
var minorUnitsPerMajor = decimal.NewFromInt(100)

// CatalogTranslator maps records between the Shopify and MoySklad adapters.
// Storefront prices are in major units with two decimals, ERP prices in
// integral minor units.
type CatalogTranslator struct{}

var _ integration.RecordTranslator = CatalogTranslator{}

// NewCatalogTranslator creates a translator
func NewCatalogTranslator() CatalogTranslator {
	return CatalogTranslator{}
}

// SourceToTarget maps a storefront record to an ERP payload
func (t CatalogTranslator) SourceToTarget(r integration.CatalogRecord) integration.CatalogRecord {
	out := translateCommon(r)
	out.Payload[PayloadBarcode] = r.Payload[PayloadBarcode]
	if r.Price.Valid {
		out.Price = decimal.NewNullDecimal(t.ConvertPrice(integration.DirectionSourceToTarget, r.Price.Decimal))
	}
	return out
}

// TargetToSource maps an ERP record to a storefront payload
func (t CatalogTranslator) TargetToSource(r integration.CatalogRecord) integration.CatalogRecord {
	out := translateCommon(r)
	out.Payload[PayloadBarcode] = r.Payload[PayloadBarcode]
	out.Payload[PayloadHandle] = Slugify(r.Title)
	if r.Price.Valid {
		out.Price = decimal.NewNullDecimal(t.ConvertPrice(integration.DirectionTargetToSource, r.Price.Decimal))
	}
	return out
}

// ConvertPrice converts major to minor units for source_to_target and minor
// to major units for target_to_source
func (t CatalogTranslator) ConvertPrice(dir integration.Direction, price decimal.Decimal) decimal.Decimal {
	if dir == integration.DirectionTargetToSource {
		return price.DivRound(minorUnitsPerMajor, 2)
	}
	return price.Mul(minorUnitsPerMajor).Round(0)
}

// translateCommon copies the fields both platforms share. Ids are never carried
// over and the identity key keeps its case.
func translateCommon(r integration.CatalogRecord) integration.CatalogRecord {
	out := integration.CatalogRecord{
		IdentityKey: strings.TrimSpace(r.IdentityKey),
		Title:       r.Title,
		Description: r.Description,
		Payload:     map[string]string{},
	}
	if r.StockQuantity != nil {
		q := *r.StockQuantity
		out.StockQuantity = &q
	}
	if r.UpdatedAt != nil {
		at := *r.UpdatedAt
		out.UpdatedAt = &at
	}
	return out
}

var (
	slugInvalid   = regexp.MustCompile(`[^\w\s-]`)
	slugSeparator = regexp.MustCompile(`[-\s_]+`)
)

// Slugify builds a storefront handle: diacritics stripped, non-ASCII
// dropped, lower case, words joined with dashes
func Slugify(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	ascii, _, err := transform.String(t, s)
	if err != nil {
		ascii = s
	}
	ascii = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, ascii)

	ascii = slugInvalid.ReplaceAllString(strings.ToLower(ascii), "")
	ascii = slugSeparator.ReplaceAllString(ascii, "-")
	return strings.Trim(ascii, "-")
}
