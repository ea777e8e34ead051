package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv        string
	Port          string
	PublicBaseURL string

	DatabaseURL    string
	RedisURL       string
	MigrationsPath string
	MigrateOnStart bool

	JWTSecret        string
	JWTIssuer        string
	JWTAudience      string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	PasswordResetTTL time.Duration
	OTPTTL           time.Duration

	CORSAllowedOrigins []string

	// Pricing policy. The original screens hard-coded 8% tax, a $50
	// free-shipping threshold, and a $5.99 flat fee; they are deployment
	// configuration here with those values as defaults.
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
	CurrencyCode          string

	CartTTL             time.Duration
	CatalogCacheTTL     time.Duration
	CatalogDefaultLimit int
	CatalogMaxLimit     int
	AnalyticsCacheTTL   time.Duration
	IdempotencyTTL      time.Duration

	AuthRateLimit string
	OTPRateLimit  string

	PaymentProvider string

	NotifyEmailFrom   string
	WorkerConcurrency int
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:        valueOrDefault(k.String("APP_ENV"), "development"),
		Port:          valueOrDefault(k.String("PORT"), "8080"),
		PublicBaseURL: strings.TrimSpace(k.String("PUBLIC_BASE_URL")),

		DatabaseURL:    k.String("DATABASE_URL"),
		RedisURL:       k.String("REDIS_URL"),
		MigrationsPath: valueOrDefault(k.String("MIGRATIONS_PATH"), "migrations"),
		MigrateOnStart: parseBool(k.String("MIGRATE_ON_START")),

		JWTSecret:        k.String("JWT_SECRET"),
		JWTIssuer:        valueOrDefault(k.String("JWT_ISSUER"), "backend-storefront"),
		JWTAudience:      valueOrDefault(k.String("JWT_AUDIENCE"), "storefront-app"),
		AccessTokenTTL:   parseDuration(k.String("ACCESS_TOKEN_TTL"), "15m"),
		RefreshTokenTTL:  parseDuration(k.String("REFRESH_TOKEN_TTL"), "720h"),
		PasswordResetTTL: parseDuration(k.String("PASSWORD_RESET_TTL"), "1h"),
		OTPTTL:           parseDuration(k.String("OTP_TTL"), "5m"),

		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		TaxRate:               parseDecimal(k.String("PRICING_TAX_RATE"), "0.08"),
		FreeShippingThreshold: parseDecimal(k.String("PRICING_FREE_SHIPPING_THRESHOLD"), "50"),
		FlatShippingFee:       parseDecimal(k.String("PRICING_FLAT_SHIPPING_FEE"), "5.99"),
		CurrencyCode:          valueOrDefault(k.String("CURRENCY_CODE"), "USD"),

		CartTTL:             parseDuration(k.String("CART_TTL"), "168h"),
		CatalogCacheTTL:     parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		CatalogDefaultLimit: intOrDefault(k.Int("CATALOG_DEFAULT_LIMIT"), 20),
		CatalogMaxLimit:     intOrDefault(k.Int("CATALOG_MAX_LIMIT"), 100),
		AnalyticsCacheTTL:   parseDuration(k.String("ANALYTICS_CACHE_TTL"), "10m"),
		IdempotencyTTL:      parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		AuthRateLimit: valueOrDefault(k.String("AUTH_RATE_LIMIT"), "10-M"),
		OTPRateLimit:  valueOrDefault(k.String("OTP_RATE_LIMIT"), "3-M"),

		PaymentProvider: valueOrDefault(k.String("PAYMENT_PROVIDER"), "sandbox"),

		NotifyEmailFrom:   valueOrDefault(k.String("NOTIFY_EMAIL_FROM"), "no-reply@storefront.local"),
		WorkerConcurrency: intOrDefault(k.Int("WORKER_CONCURRENCY"), 10),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.TaxRate.IsNegative() {
		return nil, errors.New("PRICING_TAX_RATE must not be negative")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func intOrDefault(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseDecimal(value, fallback string) decimal.Decimal {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := decimal.NewFromString(base)
	if err != nil {
		d, _ = decimal.NewFromString(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
