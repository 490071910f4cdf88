package ecommerce

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	// ShopifyDefaultAPIVersion is the Admin REST API version used when none is configured
	ShopifyDefaultAPIVersion = "2025-01"
	// shopifyPageLimit is the maximum page size accepted by the products endpoint
	shopifyPageLimit = 250
)

// Errors for Shopify configuration
var (
	ErrShopifyConfigInvalid = errors.New("shopify: invalid configuration")
)

// ShopifyConfig holds configuration for the Shopify Admin API
type ShopifyConfig struct {
	// ShopDomain is the myshopify.com domain of the store
	ShopDomain string `validate:"required_without=APIBaseURL"`
	// AccessToken is the Admin API access token
	AccessToken string `validate:"required"`
	// APIVersion is the Admin API version, e.g. 2025-01
	APIVersion string
	// APIBaseURL overrides the URL derived from ShopDomain and APIVersion
	APIBaseURL string `validate:"omitempty,url"`
	// LocationID is the inventory location stock is written to.
	// Empty selects the first active location of the shop.
	LocationID string `validate:"omitempty,numeric"`
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int `validate:"gte=0"`
	// RequestsPerSecond paces outbound requests, 0 disables pacing
	RequestsPerSecond float64 `validate:"gte=0"`
	// Burst is the token bucket size
	Burst int `validate:"gte=0"`
	// MaxThrottleRetries is how many 429 responses are absorbed per request
	MaxThrottleRetries int `validate:"gte=0"`
}

// NewShopifyConfig creates a new Shopify configuration with defaults
func NewShopifyConfig(shopDomain, accessToken string) *ShopifyConfig {
	return &ShopifyConfig{
		ShopDomain:         shopDomain,
		AccessToken:        accessToken,
		APIVersion:         ShopifyDefaultAPIVersion,
		TimeoutSeconds:     30,
		RequestsPerSecond:  2,
		Burst:              4,
		MaxThrottleRetries: 3,
	}
}

// Validate validates the configuration and fills defaults
func (c *ShopifyConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrShopifyConfigInvalid, err)
	}
	if c.APIVersion == "" {
		c.APIVersion = ShopifyDefaultAPIVersion
	}
	if c.APIBaseURL == "" {
		domain := strings.TrimSuffix(strings.TrimPrefix(c.ShopDomain, "https://"), "/")
		c.APIBaseURL = fmt.Sprintf("https://%s/admin/api/%s", domain, c.APIVersion)
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}
