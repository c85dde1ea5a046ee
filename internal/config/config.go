package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	ServiceName    = "ecommerce-orders"
	ServiceVersion = "0.1.0"
)

const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

type Config struct {
	HTTPAddr          string
	GRPCAddr          string
	StoreDriver       string
	MySQLDSN          string
	MySQLMaxOpenConns int
	RedisAddr         string
	KafkaBroker       string
	KafkaOrderTopic   string
	OtelEndpoint      string
	ConflictRetries   int
	CatalogCacheTTL   time.Duration
	SeedCatalog       bool
	LogLevel          string
	ShutdownTimeout   time.Duration
}

// Load reads the configuration from the environment. Unset variables fall
// back to defaults; malformed values are reported as errors.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:        getEnv("GRPC_ADDR", ":50051"),
		StoreDriver:     getEnv("STORE_DRIVER", DriverMySQL),
		MySQLDSN:        getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/ecommerce?parseTime=true"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		KafkaBroker:     os.Getenv("KAFKA_BROKER"),
		KafkaOrderTopic: getEnv("KAFKA_ORDER_TOPIC", "OrderCreated"),
		OtelEndpoint:    os.Getenv("OTEL_ENDPOINT"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.MySQLMaxOpenConns, err = getInt("MYSQL_MAX_OPEN_CONNS", 50); err != nil {
		return nil, err
	}
	if cfg.ConflictRetries, err = getInt("CONFLICT_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.CatalogCacheTTL, err = getDuration("CATALOG_CACHE_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.SeedCatalog, err = getBool("SEED_CATALOG", true); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverMySQL:
		if c.MySQLDSN == "" {
			return fmt.Errorf("MYSQL_DSN is required when STORE_DRIVER=%s", DriverMySQL)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverMySQL, DriverMemory, c.StoreDriver)
	}
	if c.ConflictRetries < 0 {
		return fmt.Errorf("CONFLICT_RETRIES must not be negative, got %d", c.ConflictRetries)
	}
	if c.MySQLMaxOpenConns <= 0 {
		return fmt.Errorf("MYSQL_MAX_OPEN_CONNS must be positive, got %d", c.MySQLMaxOpenConns)
	}
	// Redis stores a zero expiration as "never expire".
	if c.CatalogCacheTTL <= 0 {
		return fmt.Errorf("CATALOG_CACHE_TTL must be positive, got %s", c.CatalogCacheTTL)
	}
	if c.KafkaBroker != "" && c.KafkaOrderTopic == "" {
		return fmt.Errorf("KAFKA_ORDER_TOPIC is required when KAFKA_BROKER is set")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	return b, nil
}
