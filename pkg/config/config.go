package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port           string
	Env            string
	AllowedOrigins []string

	// Chain configuration
	ChainConfigPath string
	ChainID         int64
	RPCURL          string // overrides the node endpoint from the chain file
	WalletRPCURL    string // signing endpoint exposed by the wallet provider

	// WalletConnect project ID handed to the web client
	WalletConnectProjectID string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	ViewCacheTTL  time.Duration

	// JWT configuration
	JWTSecret string

	// Wallets allowed to call the protocol maintenance endpoints
	AdminAddresses []string

	// Verification API configuration
	VerificationAPIURL string
	VerificationAPIKey string

	// CoinGecko API configuration
	CoinGeckoAPIKey string

	// Background jobs
	KeepAliveCron        string
	WarmUpCron           string
	AggregateConcurrency int
}

const defaultWalletConnectProjectID = "2f05a7cde2bb14fabf75a97db2e9023f"

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                   getEnv("PORT", "8080"),
		Env:                    getEnv("ENV", "development"),
		AllowedOrigins:         getEnvAsList("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		ChainConfigPath:        getEnv("CHAIN_CONFIG_PATH", ""),
		ChainID:                int64(getEnvAsInt("CHAIN_ID", MorphTestnetChainID)),
		RPCURL:                 getEnv("RPC_URL", ""),
		WalletRPCURL:           getEnv("WALLET_RPC_URL", ""),
		WalletConnectProjectID: getEnv("WALLETCONNECT_PROJECT_ID", defaultWalletConnectProjectID),
		RedisURL:               getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword:          getEnv("REDIS_PASSWORD", ""),
		ViewCacheTTL:           getEnvAsDuration("VIEW_CACHE_TTL", 30*time.Second),
		JWTSecret:              getEnv("JWT_SECRET", ""),
		AdminAddresses:         getEnvAsList("ADMIN_ADDRESSES", nil),
		VerificationAPIURL:     getEnv("VERIFICATION_API_URL", ""),
		VerificationAPIKey:     getEnv("VERIFICATION_API_KEY", ""),
		CoinGeckoAPIKey:        getEnv("COINGECKO_API_KEY", ""),
		KeepAliveCron:          getEnv("KEEPALIVE_CRON", "0 */10 * * * *"),
		WarmUpCron:             getEnv("WARMUP_CRON", "0 * * * * *"),
		AggregateConcurrency:   getEnvAsInt("AGGREGATE_CONCURRENCY", 8),
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	if c.WalletRPCURL == "" && c.IsProduction() {
		return fmt.Errorf("WALLET_RPC_URL is required in production")
	}

	if c.AggregateConcurrency <= 0 {
		return fmt.Errorf("AGGREGATE_CONCURRENCY must be positive")
	}

	if c.ViewCacheTTL < 0 {
		return fmt.Errorf("VIEW_CACHE_TTL must not be negative")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration syntax ("30s", "2m")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty items
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
