package integration

import (
	"context"
	"errors"
)

// ---------------------------------------------------------------------------
// Catalog Sync Errors
// ---------------------------------------------------------------------------

var (
	// Platform errors
	ErrPlatformNotConfigured   = errors.New("integration: platform not configured")
	ErrPlatformUnavailable     = errors.New("integration: platform temporarily unavailable")
	ErrPlatformRequestFailed   = errors.New("integration: platform request failed")
	ErrPlatformInvalidResponse = errors.New("integration: invalid platform response")
	ErrPlatformAuthFailed      = errors.New("integration: platform authentication failed")
	ErrPlatformRateLimited     = errors.New("integration: platform rate limited")

	// Product sync errors
	ErrProductSyncInvalidProduct = errors.New("integration: invalid product for sync")
	ErrProductSyncFailed         = errors.New("integration: product sync failed")

	// Inventory sync errors
	ErrInventorySyncFailed = errors.New("integration: inventory sync failed")

	// Price sync errors
	ErrPriceSyncFailed           = errors.New("integration: price sync failed")
	ErrInvalidPriceSyncDirection = errors.New("integration: invalid price sync direction")

	// Order push errors
	ErrOrderFetchFailed = errors.New("integration: order fetch failed")
	ErrOrderSyncFailed  = errors.New("integration: order sync failed")

	// Run errors
	ErrCatalogFetchFailed = errors.New("integration: catalog fetch failed")
	ErrSyncInProgress     = errors.New("integration: sync already in progress")
)

// IsTransient reports whether err is worth retrying: network failures,
// server-side errors and throttling that outlived the client's cooldown.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrPlatformUnavailable) || errors.Is(err, ErrPlatformRateLimited)
}

// IsRetryable reports whether a failed mutation may be attempted again.
// Everything is retried except invalid payloads, rejected credentials and
// cancellation.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrProductSyncInvalidProduct),
		errors.Is(err, ErrPlatformAuthFailed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
