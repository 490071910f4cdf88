package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Redis     RedisConfig
	Telemetry TelemetryConfig
	Sync      SyncConfig
	Orders    OrdersConfig
	Shopify   ShopifyConfig
	MoySklad  MoySkladConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds admin HTTP server configuration
type HTTPConfig struct {
	Enabled         bool
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// RedisConfig holds Redis connection settings. Redis backs the distributed
// sync lock and is optional.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// TelemetryConfig holds OpenTelemetry metrics and tracing configuration
type TelemetryConfig struct {
	Enabled           bool          // Whether to export metrics
	CollectorEndpoint string        // OTEL Collector endpoint (e.g., "localhost:4317")
	ServiceName       string        // Service name resource attribute
	Insecure          bool          // Use insecure (non-TLS) connection (development only)
	ExportInterval    time.Duration // Periodic reader interval
	SamplingRatio     float64       // Trace sampling ratio, 0.0 to 1.0
}

// SyncConfig holds the sync engine settings
type SyncConfig struct {
	PriceSyncDirection string        // source_to_target or target_to_source
	BatchSize          int           // Actions per batch
	Concurrency        int           // Actions in flight within a batch
	BatchPacing        time.Duration // Delay between batches
	Lookback           time.Duration // Incremental window when no watermark exists
	RetryAttempts      int           // Attempts per mutation, including the first
	RetryDelay         time.Duration // Delay between attempts
	SchedulerEnabled   bool          // Run the periodic trigger
	Interval           time.Duration // Incremental cycle interval
	FullSyncHour       int           // Hour of day for the daily complete cycle, negative disables
	FullSyncOnStart    bool          // Run a complete cycle when the trigger starts
	LockTTL            time.Duration // Distributed lock expiry
}

// OrdersConfig holds the order push settings
type OrdersConfig struct {
	Enabled      bool          // Run the periodic order push
	Interval     time.Duration // Push interval
	RunOnStart   bool          // Push pending orders when the trigger starts
	SyncedTag    string        // Storefront tag marking pushed orders
	CustomerTag  string        // Tag attached to counterparties created for buyers
	Lookback     time.Duration // Only orders created within the window, 0 for all
	Organization string        // ERP legal entity name, empty for the first one
	Store        string        // ERP warehouse name, empty for the first one
}

// ShopifyConfig holds storefront credentials and client tuning
type ShopifyConfig struct {
	ShopDomain         string
	AccessToken        string
	APIVersion         string
	APIBaseURL         string
	LocationID         string
	TimeoutSeconds     int
	RequestsPerSecond  float64
	Burst              int
	MaxThrottleRetries int
}

// MoySkladConfig holds ERP credentials and client tuning
type MoySkladConfig struct {
	Token              string
	Login              string
	Password           string
	APIBaseURL         string
	PriceTypeName      string
	TimeoutSeconds     int
	RequestsPerSecond  float64
	Burst              int
	MaxThrottleRetries int
}

// Load loads configuration from a .env file, TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with SYNCD_ prefix (e.g., SYNCD_SHOPIFY_ACCESS_TOKEN)
// 2. .env in the working directory (never overrides variables already set)
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/syncd")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("SYNCD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Zero is a meaningful value for these keys, so applyDefaults cannot fill them
	v.SetDefault("http.enabled", true)
	v.SetDefault("sync.scheduler_enabled", true)
	v.SetDefault("sync.full_sync_hour", 3)
	v.SetDefault("sync.full_sync_on_start", true)
	v.SetDefault("telemetry.sampling_ratio", 1.0)
	v.SetDefault("orders.run_on_start", true)
	v.SetDefault("orders.customer_tag", "Shopify")

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			Enabled:         v.GetBool("http.enabled"),
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
		},
		Sync: SyncConfig{
			PriceSyncDirection: v.GetString("sync.price_sync_direction"),
			BatchSize:          v.GetInt("sync.batch_size"),
			Concurrency:        v.GetInt("sync.concurrency"),
			BatchPacing:        v.GetDuration("sync.batch_pacing"),
			Lookback:           v.GetDuration("sync.lookback"),
			RetryAttempts:      v.GetInt("sync.retry_attempts"),
			RetryDelay:         v.GetDuration("sync.retry_delay"),
			SchedulerEnabled:   v.GetBool("sync.scheduler_enabled"),
			Interval:           v.GetDuration("sync.interval"),
			FullSyncHour:       v.GetInt("sync.full_sync_hour"),
			FullSyncOnStart:    v.GetBool("sync.full_sync_on_start"),
			LockTTL:            v.GetDuration("sync.lock_ttl"),
		},
		Orders: OrdersConfig{
			Enabled:      v.GetBool("orders.enabled"),
			Interval:     v.GetDuration("orders.interval"),
			RunOnStart:   v.GetBool("orders.run_on_start"),
			SyncedTag:    v.GetString("orders.synced_tag"),
			CustomerTag:  v.GetString("orders.customer_tag"),
			Lookback:     v.GetDuration("orders.lookback"),
			Organization: v.GetString("orders.organization"),
			Store:        v.GetString("orders.store"),
		},
		Shopify: ShopifyConfig{
			ShopDomain:         v.GetString("shopify.shop_domain"),
			AccessToken:        v.GetString("shopify.access_token"),
			APIVersion:         v.GetString("shopify.api_version"),
			APIBaseURL:         v.GetString("shopify.api_base_url"),
			LocationID:         v.GetString("shopify.location_id"),
			TimeoutSeconds:     v.GetInt("shopify.timeout_seconds"),
			RequestsPerSecond:  v.GetFloat64("shopify.requests_per_second"),
			Burst:              v.GetInt("shopify.burst"),
			MaxThrottleRetries: v.GetInt("shopify.max_throttle_retries"),
		},
		MoySklad: MoySkladConfig{
			Token:              v.GetString("moysklad.token"),
			Login:              v.GetString("moysklad.login"),
			Password:           v.GetString("moysklad.password"),
			APIBaseURL:         v.GetString("moysklad.api_base_url"),
			PriceTypeName:      v.GetString("moysklad.price_type_name"),
			TimeoutSeconds:     v.GetInt("moysklad.timeout_seconds"),
			RequestsPerSecond:  v.GetFloat64("moysklad.requests_per_second"),
			Burst:              v.GetInt("moysklad.burst"),
			MaxThrottleRetries: v.GetInt("moysklad.max_throttle_retries"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadDotEnv reads KEY=VALUE pairs from path into the process environment.
// A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error reading %s: %w", path, err)
	}
	return nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "catalog-syncd"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Minute // manual runs respond when the cycle ends
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 30 * time.Second
	}

	if cfg.Sync.PriceSyncDirection == "" {
		cfg.Sync.PriceSyncDirection = "target_to_source"
	}
	if cfg.Sync.BatchSize == 0 {
		cfg.Sync.BatchSize = 50
	}
	if cfg.Sync.Concurrency == 0 {
		cfg.Sync.Concurrency = 5
	}
	if cfg.Sync.BatchPacing == 0 {
		cfg.Sync.BatchPacing = 500 * time.Millisecond
	}
	if cfg.Sync.Lookback == 0 {
		cfg.Sync.Lookback = 24 * time.Hour
	}
	if cfg.Sync.RetryAttempts == 0 {
		cfg.Sync.RetryAttempts = 3
	}
	if cfg.Sync.RetryDelay == 0 {
		cfg.Sync.RetryDelay = 2 * time.Second
	}
	if cfg.Sync.Interval == 0 {
		cfg.Sync.Interval = 15 * time.Minute
	}
	if cfg.Sync.LockTTL == 0 {
		cfg.Sync.LockTTL = 2 * time.Hour
	}

	if cfg.Orders.Interval == 0 {
		cfg.Orders.Interval = 15 * time.Minute
	}
	if cfg.Orders.SyncedTag == "" {
		cfg.Orders.SyncedTag = "moysklad-synced"
	}

	if cfg.Shopify.APIVersion == "" {
		cfg.Shopify.APIVersion = "2025-01"
	}
	if cfg.Shopify.TimeoutSeconds == 0 {
		cfg.Shopify.TimeoutSeconds = 30
	}
	if cfg.Shopify.RequestsPerSecond == 0 {
		cfg.Shopify.RequestsPerSecond = 2 // REST Admin API leaky bucket drain rate
	}
	if cfg.Shopify.Burst == 0 {
		cfg.Shopify.Burst = 4
	}
	if cfg.Shopify.MaxThrottleRetries == 0 {
		cfg.Shopify.MaxThrottleRetries = 3
	}

	if cfg.MoySklad.APIBaseURL == "" {
		cfg.MoySklad.APIBaseURL = "https://api.moysklad.ru/api/remap/1.2"
	}
	if cfg.MoySklad.TimeoutSeconds == 0 {
		cfg.MoySklad.TimeoutSeconds = 30
	}
	if cfg.MoySklad.RequestsPerSecond == 0 {
		cfg.MoySklad.RequestsPerSecond = 5
	}
	if cfg.MoySklad.Burst == 0 {
		cfg.MoySklad.Burst = 5
	}
	if cfg.MoySklad.MaxThrottleRetries == 0 {
		cfg.MoySklad.MaxThrottleRetries = 3
	}
}

// validate performs validation on the configuration.
// The price sync direction is checked by the sync service, which skips only
// the price phase when it is invalid.
func (c *Config) validate() error {
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("sync.batch_size must be positive")
	}
	if c.Sync.Concurrency <= 0 {
		return fmt.Errorf("sync.concurrency must be positive")
	}
	if c.Sync.Concurrency > c.Sync.BatchSize {
		return fmt.Errorf("sync.concurrency (%d) cannot exceed sync.batch_size (%d)",
			c.Sync.Concurrency, c.Sync.BatchSize)
	}
	if c.Sync.BatchPacing < 0 {
		return fmt.Errorf("sync.batch_pacing cannot be negative")
	}
	if c.Sync.Lookback < 0 {
		return fmt.Errorf("sync.lookback cannot be negative")
	}
	if c.Sync.RetryAttempts < 1 {
		return fmt.Errorf("sync.retry_attempts must be at least 1")
	}
	if c.Sync.RetryDelay < 0 {
		return fmt.Errorf("sync.retry_delay cannot be negative")
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive")
	}
	if c.Sync.FullSyncHour > 23 {
		return fmt.Errorf("sync.full_sync_hour must be between 0 and 23 or negative to disable, got %d", c.Sync.FullSyncHour)
	}

	if c.Orders.Interval <= 0 {
		return fmt.Errorf("orders.interval must be positive")
	}
	if c.Orders.Lookback < 0 {
		return fmt.Errorf("orders.lookback cannot be negative")
	}

	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0 and 1")
	}

	if c.Shopify.RequestsPerSecond < 0 || c.MoySklad.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second cannot be negative")
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Shopify.AccessToken == "" {
			return fmt.Errorf("shopify.access_token is required in production")
		}
		if c.Shopify.ShopDomain == "" && c.Shopify.APIBaseURL == "" {
			return fmt.Errorf("shopify.shop_domain is required in production")
		}
		if c.MoySklad.Token == "" && (c.MoySklad.Login == "" || c.MoySklad.Password == "") {
			return fmt.Errorf("moysklad.token or moysklad.login and moysklad.password are required in production")
		}
		if c.Telemetry.Enabled && c.Telemetry.Insecure {
			return fmt.Errorf("telemetry.insecure must be false in production")
		}
	}

	return nil
}
