package integration

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CatalogRecord is the platform-neutral view of one product on either side
// of the sync. Values are in the owning platform's native units.
type CatalogRecord struct {
	// IdentityKey matches a record to its counterpart (SKU on the storefront,
	// product code on the ERP). Empty means the record cannot take part in sync.
	IdentityKey string
	// PlatformID is the id assigned by the owning platform. Empty for records
	// that have not been created yet.
	PlatformID string
	// VariantID and InventoryItemID are storefront auxiliary ids.
	VariantID       string
	InventoryItemID string
	Title           string
	Description     string
	Price           decimal.NullDecimal
	StockQuantity   *int64
	// UpdatedAt is nil when the platform does not report modification time,
	// which disables staleness comparison for the record.
	UpdatedAt *time.Time
	// Payload carries platform-specific fields the core does not interpret.
	Payload map[string]string
}

// HasIdentity returns true if the record can be matched against the other catalog
func (r CatalogRecord) HasIdentity() bool {
	return NormalizeIdentityKey(r.IdentityKey) != ""
}

// Key returns the normalized identity key
func (r CatalogRecord) Key() string {
	return NormalizeIdentityKey(r.IdentityKey)
}

// IsNewerThan reports whether r was modified strictly after other.
// Records without modification times are always considered newer.
func (r CatalogRecord) IsNewerThan(other CatalogRecord) bool {
	if r.UpdatedAt == nil || other.UpdatedAt == nil {
		return true
	}
	return r.UpdatedAt.After(*other.UpdatedAt)
}

// Stock returns the known stock quantity, or zero when unknown
func (r CatalogRecord) Stock() int64 {
	if r.StockQuantity == nil {
		return 0
	}
	return *r.StockQuantity
}

// Clone returns a copy that does not share the payload map or pointers
func (r CatalogRecord) Clone() CatalogRecord {
	c := r
	if r.StockQuantity != nil {
		q := *r.StockQuantity
		c.StockQuantity = &q
	}
	if r.UpdatedAt != nil {
		t := *r.UpdatedAt
		c.UpdatedAt = &t
	}
	if r.Payload != nil {
		c.Payload = make(map[string]string, len(r.Payload))
		for k, v := range r.Payload {
			c.Payload[k] = v
		}
	}
	return c
}

// NormalizeIdentityKey trims whitespace and upper-cases the key so that
// "ab-1 " on one side matches "AB-1" on the other.
func NormalizeIdentityKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// ---------------------------------------------------------------------------
// CatalogIndex
// ---------------------------------------------------------------------------

// CatalogIndex maps normalized identity keys to records
type CatalogIndex struct {
	records    map[string]CatalogRecord
	duplicates []string
}

// BuildCatalogIndex indexes records by identity key. Records without a key
// are excluded. When two records share a key the later one wins and the key
// is reported by Duplicates.
func BuildCatalogIndex(records []CatalogRecord) CatalogIndex {
	idx := CatalogIndex{records: make(map[string]CatalogRecord, len(records))}
	for _, r := range records {
		key := r.Key()
		if key == "" {
			continue
		}
		if _, exists := idx.records[key]; exists {
			idx.duplicates = append(idx.duplicates, key)
		}
		idx.records[key] = r
	}
	return idx
}

// Lookup returns the record with the given identity key
func (idx CatalogIndex) Lookup(key string) (CatalogRecord, bool) {
	r, ok := idx.records[NormalizeIdentityKey(key)]
	return r, ok
}

// Len returns the number of indexed records
func (idx CatalogIndex) Len() int {
	return len(idx.records)
}

// Duplicates returns the keys that appeared more than once
func (idx CatalogIndex) Duplicates() []string {
	return idx.duplicates
}
