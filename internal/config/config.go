package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/pricing"
	"github.com/fjod/storefront/internal/repository"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	HTTPPort           string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64

	LogLevel  string
	LogFormat string

	OrderStore string
	Postgres   repository.Credentials

	CatalogDBPath         string
	CatalogMigrationsPath string

	KafkaBrokers []string
	KafkaTopic   string

	RedisAddr  string
	SessionTTL time.Duration

	OrderAPIURL    string
	PayPalClientID string

	Pricing pricing.Rules
}

// Load reads the environment, after merging a .env file when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	requestTimeout, err := time.ParseDuration(getEnv("REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}
	sessionTTL, err := time.ParseDuration(getEnv("SESSION_TTL", "30m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}
	rules, err := loadPricing()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		RequestTimeout:     requestTimeout,
		ShutdownTimeout:    10 * time.Second,
		MaxRequestBodySize: 1 << 20, // 1MB

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		OrderStore: strings.ToLower(getEnv("ORDER_STORE", StoreMemory)),
		Postgres: repository.Credentials{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              dbPort,
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", "postgres"),
			DBName:            getEnv("DB_NAME", "orders"),
			MigrationsDirPath: getEnv("MIGRATIONS_PATH", "./internal/repository/migrations"),
		},

		CatalogDBPath:         getEnv("CATALOG_DB_PATH", "./catalog.db"),
		CatalogMigrationsPath: getEnv("CATALOG_MIGRATIONS_PATH", "./internal/catalog/migrations"),

		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "order-events"),

		RedisAddr:  getEnv("REDIS_ADDR", "localhost:6379"),
		SessionTTL: sessionTTL,

		OrderAPIURL:    getEnv("ORDER_API_URL", "http://localhost:8080"),
		PayPalClientID: os.Getenv("PAYPAL_CLIENT_ID"),

		Pricing: rules,
	}

	if cfg.OrderStore != StoreMemory && cfg.OrderStore != StorePostgres {
		return nil, fmt.Errorf("invalid ORDER_STORE %q: want %s or %s", cfg.OrderStore, StoreMemory, StorePostgres)
	}
	return cfg, nil
}

func loadPricing() (pricing.Rules, error) {
	defaults := pricing.DefaultRules()
	rules := pricing.Rules{Scale: defaults.Scale}
	var err error

	if rules.FreeShippingThreshold, err = getDecimal("FREE_SHIPPING_THRESHOLD", defaults.FreeShippingThreshold); err != nil {
		return rules, err
	}
	if rules.FlatShipping, err = getDecimal("FLAT_SHIPPING", defaults.FlatShipping); err != nil {
		return rules, err
	}
	if rules.TaxRate, err = getDecimal("TAX_RATE", defaults.TaxRate); err != nil {
		return rules, err
	}
	if v := os.Getenv("PRICE_SCALE"); v != "" {
		scale, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return rules, fmt.Errorf("invalid PRICE_SCALE: %w", err)
		}
		rules.Scale = int32(scale)
	}
	if err := rules.Validate(); err != nil {
		return rules, fmt.Errorf("pricing config: %w", err)
	}
	return rules, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
