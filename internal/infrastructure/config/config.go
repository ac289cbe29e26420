package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Identity  IdentityConfig
	Telemetry TelemetryConfig
	Checkout  CheckoutConfig
	Payment   PaymentConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	Output     string // stdout, stderr, or file path
	TimeFormat string // time layout for console output
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings. An empty host disables
// Redis and the in-memory stores are used instead.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
	APIVersion       string // mounted as /api/<version>
}

// IdentityConfig holds the settings used to verify tokens issued by the
// identity provider
type IdentityConfig struct {
	Secret string
	Issuer string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string
	Insecure          bool // Use insecure (non-TLS) connection
	MetricsInterval   time.Duration
	// Database tracing options
	DBTraceEnabled    bool
	DBLogFullSQL      bool
	DBSlowQueryThresh time.Duration
}

// CheckoutConfig holds cart and order placement settings
type CheckoutConfig struct {
	StorePrefix       string // memo prefix, "<prefix>-<code>"
	ShippingThreshold int64  // subtotal in VND from which shipping is free
	ShippingFee       int64  // flat fee in VND below the threshold
	CodeAttempts      int
	SubmitTimeout     time.Duration
	ClaimTTL          time.Duration
	PaymentWindow     time.Duration // zero keeps the payment step open forever
	SessionIdleTTL    time.Duration
	SessionCleanup    time.Duration
	CartTTL           time.Duration // zero keeps snapshots forever
	SubmitRateLimit   int           // submissions per session and client per period, 0 disables
	SubmitRatePeriod  time.Duration
}

// PaymentConfig holds the store's transfer recipient accounts
type PaymentConfig struct {
	BankCode    string
	BankAccount string
	AccountName string
	MomoAccount string
	QRSize      int
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with SHOP_ prefix (e.g., SHOP_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("SHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Output:     v.GetString("log.output"),
			TimeFormat: v.GetString("log.time_format"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
			APIVersion:       v.GetString("http.api_version"),
		},
		Identity: IdentityConfig{
			Secret: v.GetString("identity.secret"),
			Issuer: v.GetString("identity.issuer"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
		Checkout: CheckoutConfig{
			StorePrefix:       v.GetString("checkout.store_prefix"),
			ShippingThreshold: v.GetInt64("checkout.shipping_threshold"),
			ShippingFee:       v.GetInt64("checkout.shipping_fee"),
			CodeAttempts:      v.GetInt("checkout.code_attempts"),
			SubmitTimeout:     v.GetDuration("checkout.submit_timeout"),
			ClaimTTL:          v.GetDuration("checkout.claim_ttl"),
			PaymentWindow:     v.GetDuration("checkout.payment_window"),
			SessionIdleTTL:    v.GetDuration("checkout.session_idle_ttl"),
			SessionCleanup:    v.GetDuration("checkout.session_cleanup_interval"),
			CartTTL:           v.GetDuration("checkout.cart_ttl"),
			SubmitRateLimit:   v.GetInt("checkout.submit_rate_limit"),
			SubmitRatePeriod:  v.GetDuration("checkout.submit_rate_period"),
		},
		Payment: PaymentConfig{
			BankCode:    v.GetString("payment.bank_code"),
			BankAccount: v.GetString("payment.bank_account"),
			AccountName: v.GetString("payment.account_name"),
			MomoAccount: v.GetString("payment.momo_account"),
			QRSize:      v.GetInt("payment.qr_size"),
		},
	}

	// payment_window = 0 and submit_rate_limit = 0 are meaningful, so only
	// unset keys get the defaults
	if !v.IsSet("checkout.payment_window") {
		cfg.Checkout.PaymentWindow = 30 * time.Minute
	}
	if !v.IsSet("checkout.submit_rate_limit") {
		cfg.Checkout.SubmitRateLimit = 10
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "kiendrone-storefront"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "storefront"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}

	if cfg.Redis.Host != "" && cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
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
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.HTTP.APIVersion == "" {
		cfg.HTTP.APIVersion = "v1"
	}
	// No default origins: cross-origin requests stay blocked until configured
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-Cart-Session", "Idempotency-Key"}
	}

	if cfg.Identity.Issuer == "" {
		cfg.Identity.Issuer = "kiendrone-identity"
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}

	if cfg.Checkout.StorePrefix == "" {
		cfg.Checkout.StorePrefix = "KIENDRONE"
	}
	if cfg.Checkout.ShippingThreshold == 0 {
		cfg.Checkout.ShippingThreshold = 10_000_000
	}
	if cfg.Checkout.ShippingFee == 0 {
		cfg.Checkout.ShippingFee = 50_000
	}
	if cfg.Checkout.CodeAttempts == 0 {
		cfg.Checkout.CodeAttempts = 5
	}
	if cfg.Checkout.SubmitTimeout == 0 {
		cfg.Checkout.SubmitTimeout = 15 * time.Second
	}
	if cfg.Checkout.ClaimTTL == 0 {
		cfg.Checkout.ClaimTTL = time.Minute
	}
	if cfg.Checkout.SessionIdleTTL == 0 {
		cfg.Checkout.SessionIdleTTL = 2 * time.Hour
	}
	if cfg.Checkout.SessionCleanup == 0 {
		cfg.Checkout.SessionCleanup = 5 * time.Minute
	}
	if cfg.Checkout.CartTTL == 0 {
		cfg.Checkout.CartTTL = 30 * 24 * time.Hour
	}
	if cfg.Checkout.SubmitRatePeriod == 0 {
		cfg.Checkout.SubmitRatePeriod = time.Minute
	}

	if cfg.Payment.BankCode == "" {
		cfg.Payment.BankCode = "MB"
	}
	if cfg.Payment.QRSize == 0 {
		cfg.Payment.QRSize = 256
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Checkout.ShippingFee < 0 || c.Checkout.ShippingThreshold < 0 {
		return fmt.Errorf("checkout.shipping_fee and checkout.shipping_threshold cannot be negative")
	}
	if c.Checkout.CodeAttempts < 1 {
		return fmt.Errorf("checkout.code_attempts must be at least 1")
	}
	if c.Checkout.SubmitRateLimit < 0 {
		return fmt.Errorf("checkout.submit_rate_limit cannot be negative")
	}
	if c.Checkout.PaymentWindow < 0 {
		return fmt.Errorf("checkout.payment_window cannot be negative")
	}
	if c.Payment.QRSize < 64 || c.Payment.QRSize > 2048 {
		return fmt.Errorf("payment.qr_size must be between 64 and 2048, got %d", c.Payment.QRSize)
	}

	if c.App.Env == "production" {
		if c.Identity.Secret == "" {
			return fmt.Errorf("identity.secret is required in production")
		}
		if len(c.Identity.Secret) < 32 {
			return fmt.Errorf("identity.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("http.cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Payment.BankAccount == "" {
			return fmt.Errorf("payment.bank_account is required in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to keep customer data out of traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// IsProduction reports whether the app runs in production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
