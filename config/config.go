package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port           string
	ServiceToken   string
	AllowedOrigins []string

	// Database configuration
	DBType      string // postgres, sqlite
	DatabaseURL string

	// Logging
	LogLevel string
	LogJSON  bool

	// Flight-position lookup
	FlightAPIURL         string
	FlightAPIKey         string
	FlightSearchRadiusKm float64
	FlightCacheTTL       time.Duration
	FlightRatePerSec     float64

	// Reverse geocoding
	GeocoderURL string

	// Ledger logging
	LedgerCommand      string
	LedgerTimeout      time.Duration
	LedgerBatchWindow  time.Duration
	LedgerBatchScope   string // global, user
	BatchFollowerGrace time.Duration

	// Shared timeout for outbound HTTP collaborators
	UpstreamTimeout time.Duration

	// Wallet payments / sync
	PaymentAPIURL  string
	SyncServiceURL string

	// R2 archive (optional)
	R2AccountID       string
	R2AccessKeyID     string
	R2AccessKeySecret string
	R2Bucket          string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := fromEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabaseOnly is Load for offline tools that only need the database and logging.
func LoadDatabaseOnly() (*Config, error) {
	cfg := fromEnv()
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func fromEnv() *Config {
	return &Config{
		Port:                 getEnv("PORT", "5200"),
		ServiceToken:         getEnv("GAME_SERVICE_TOKEN", ""),
		AllowedOrigins:       getEnvAsList("ALLOWED_ORIGINS", "http://localhost:3000"),
		DBType:               getEnv("DB_TYPE", "postgres"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogJSON:              getEnvAsBool("LOG_JSON", false),
		FlightAPIURL:         getEnv("FLIGHT_API_URL", ""),
		FlightAPIKey:         getEnv("FLIGHT_API_KEY", ""),
		FlightSearchRadiusKm: getEnvAsFloat("FLIGHT_SEARCH_RADIUS_KM", 50),
		FlightCacheTTL:       getEnvAsDuration("FLIGHT_CACHE_TTL", 10*time.Second),
		FlightRatePerSec:     getEnvAsFloat("FLIGHT_RATE_PER_SEC", 5),
		GeocoderURL:          getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
		LedgerCommand:        getEnv("LEDGER_COMMAND", ""),
		LedgerTimeout:        getEnvAsDuration("LEDGER_TIMEOUT", 30*time.Second),
		LedgerBatchWindow:    getEnvAsDuration("LEDGER_BATCH_WINDOW", time.Second),
		LedgerBatchScope:     getEnv("LEDGER_BATCH_SCOPE", "global"),
		BatchFollowerGrace:   getEnvAsDuration("BATCH_FOLLOWER_GRACE", 30*time.Second),
		UpstreamTimeout:      getEnvAsDuration("UPSTREAM_TIMEOUT", 8*time.Second),
		PaymentAPIURL:        getEnv("PAYMENT_API_URL", ""),
		SyncServiceURL:       getEnv("SYNC_SERVICE_URL", ""),
		R2AccountID:          getEnv("CLOUDFLARE_ACCOUNT_ID", ""),
		R2AccessKeyID:        getEnv("R2_ACCESS_KEY_ID", ""),
		R2AccessKeySecret:    getEnv("R2_ACCESS_KEY_SECRET", ""),
		R2Bucket:             getEnv("R2_BUCKET_NAME", ""),
	}
}

func (cfg *Config) validate() error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.ServiceToken == "" {
		return fmt.Errorf("GAME_SERVICE_TOKEN is required")
	}
	if cfg.FlightAPIURL == "" {
		return fmt.Errorf("FLIGHT_API_URL is required")
	}
	switch cfg.LedgerBatchScope {
	case "global", "user":
	default:
		return fmt.Errorf("LEDGER_BATCH_SCOPE must be global or user, got %q", cfg.LedgerBatchScope)
	}
	if cfg.LedgerBatchWindow <= 0 {
		return fmt.Errorf("LEDGER_BATCH_WINDOW must be positive")
	}
	return nil
}

// R2Enabled reports whether every R2 setting is present.
func (c *Config) R2Enabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2AccessKeySecret != "" && c.R2Bucket != ""
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go duration strings ("1s", "750ms").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated variable and trims each item.
func getEnvAsList(key, defaultValue string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, defaultValue), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
