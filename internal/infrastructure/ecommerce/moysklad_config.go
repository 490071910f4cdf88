package ecommerce

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	// MoySkladAPIURL is the JSON API 1.2 endpoint
	MoySkladAPIURL = "https://api.moysklad.ru/api/remap/1.2"
	// moySkladPageLimit is the maximum page size of entity and report endpoints
	moySkladPageLimit = 1000
)

// Errors for MoySklad configuration
var (
	ErrMoySkladConfigInvalid     = errors.New("moysklad: invalid configuration")
	ErrMoySkladConfigMissingAuth = errors.New("moysklad: api token or login and password are required")
)

// MoySkladConfig holds configuration for the MoySklad JSON API
type MoySkladConfig struct {
	// Token is a bearer access token. Takes precedence over Login/Password.
	Token string
	// Login and Password are used for basic authentication when Token is empty
	Login    string `validate:"required_with=Password"`
	Password string `validate:"required_with=Login"`
	// APIBaseURL is the API endpoint
	APIBaseURL string `validate:"omitempty,url"`
	// PriceTypeName selects the sale price type; empty uses the account default
	PriceTypeName string
	// OrganizationName selects the legal entity customer orders are issued by;
	// empty uses the first one
	OrganizationName string
	// StoreName selects the warehouse customer orders ship from; empty uses the first one
	StoreName string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int `validate:"gte=0"`
	// RequestsPerSecond paces outbound requests, 0 disables pacing
	RequestsPerSecond float64 `validate:"gte=0"`
	// Burst is the token bucket size
	Burst int `validate:"gte=0"`
	// MaxThrottleRetries is how many 429 responses are absorbed per request
	MaxThrottleRetries int `validate:"gte=0"`
}

// NewMoySkladConfig creates a new MoySklad configuration with defaults
func NewMoySkladConfig(token string) *MoySkladConfig {
	return &MoySkladConfig{
		Token:              token,
		APIBaseURL:         MoySkladAPIURL,
		TimeoutSeconds:     30,
		RequestsPerSecond:  5,
		Burst:              5,
		MaxThrottleRetries: 3,
	}
}

// Validate validates the configuration and fills defaults
func (c *MoySkladConfig) Validate() error {
	if c.Token == "" && (c.Login == "" || c.Password == "") {
		return ErrMoySkladConfigMissingAuth
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrMoySkladConfigInvalid, err)
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = MoySkladAPIURL
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}
