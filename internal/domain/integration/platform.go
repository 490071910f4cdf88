package integration

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Platform ports
// ---------------------------------------------------------------------------

// FetchOptions scopes a catalog read
type FetchOptions struct {
	// ModifiedSince limits the read to records changed at or after the cutoff.
	// Nil reads the whole catalog.
	ModifiedSince *time.Time
	// IncludeStock asks the platform to populate StockQuantity
	IncludeStock bool
}

// SourcePlatform is the storefront side of the sync.
// Implementations must return ErrPlatformUnavailable or ErrPlatformRateLimited
// (wrapped) for retryable failures and absorb throttling cooldowns internally.
type SourcePlatform interface {
	// Name returns the platform name used in logs and metrics
	Name() string

	// FetchProducts reads the catalog
	FetchProducts(ctx context.Context, opts FetchOptions) ([]CatalogRecord, error)

	// CreateProduct creates a product and returns it with its new ids
	CreateProduct(ctx context.Context, payload CatalogRecord) (CatalogRecord, error)

	// UpdateProduct overwrites the product identified by payload.PlatformID
	UpdateProduct(ctx context.Context, payload CatalogRecord) (CatalogRecord, error)

	// UpdateInventory sets the available quantity of an inventory item
	UpdateInventory(ctx context.Context, productID, inventoryItemID string, quantity int64) error

	// UpdatePrice sets the price of a product variant
	UpdatePrice(ctx context.Context, productID, variantID string, price decimal.Decimal) error
}

// TargetPlatform is the ERP side of the sync.
// The same error and throttling contract as SourcePlatform applies.
type TargetPlatform interface {
	// Name returns the platform name used in logs and metrics
	Name() string

	// FetchProducts reads the catalog, with stock levels when requested
	FetchProducts(ctx context.Context, opts FetchOptions) ([]CatalogRecord, error)

	// CreateProduct creates a product and returns it with its new id
	CreateProduct(ctx context.Context, payload CatalogRecord) (CatalogRecord, error)

	// UpdateProduct overwrites the product identified by payload.PlatformID
	UpdateProduct(ctx context.Context, payload CatalogRecord) (CatalogRecord, error)

	// UpdatePrice sets the sale price of a product
	UpdatePrice(ctx context.Context, productID string, price decimal.Decimal) error
}

// RecordTranslator maps records and prices between the two platforms.
// Translated records never carry the originating platform's ids.
type RecordTranslator interface {
	SourceToTarget(record CatalogRecord) CatalogRecord
	TargetToSource(record CatalogRecord) CatalogRecord
	// ConvertPrice converts a price from the sending side's unit to the
	// receiving side's unit for the given direction
	ConvertPrice(dir Direction, price decimal.Decimal) decimal.Decimal
}

// TranslateFunc returns the record mapping for a direction
func TranslateFunc(t RecordTranslator, dir Direction) func(CatalogRecord) CatalogRecord {
	if dir == DirectionTargetToSource {
		return t.TargetToSource
	}
	return t.SourceToTarget
}

// ConvertFunc returns the price conversion for a direction
func ConvertFunc(t RecordTranslator, dir Direction) func(decimal.Decimal) decimal.Decimal {
	return func(p decimal.Decimal) decimal.Decimal {
		return t.ConvertPrice(dir, p)
	}
}

// SyncLock serializes sync runs across processes sharing the same catalogs
type SyncLock interface {
	// TryLock acquires the lock without waiting. It returns false when
	// another holder owns it.
	TryLock(ctx context.Context) (bool, error)
	// Unlock releases the lock if still owned by this holder
	Unlock(ctx context.Context) error
}
