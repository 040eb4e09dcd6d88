package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values
type Config struct {
	API     APIConfig
	Polling PollingConfig
	Redis   RedisConfig
	Flow    FlowConfig
}

// APIConfig holds order service API configuration
type APIConfig struct {
	BaseURL string
	AppID   string
	Timeout time.Duration
	Env     string
}

// PollingConfig holds poll intervals per concern. Wallet-side source
// detection polls fast; exchange payout detection polls slowly to respect
// external rate limits.
type PollingConfig struct {
	WalletSourceInterval   time.Duration
	ExchangeSourceInterval time.Duration
	OrderRefreshInterval   time.Duration
	// MaxFailures bounds consecutive transient probe failures before the
	// checkout surfaces an error. Zero retries forever.
	MaxFailures int
}

// RedisConfig holds the preference store configuration
type RedisConfig struct {
	URL      string
	Password string
}

// FlowConfig holds workflow behavior switches
type FlowConfig struct {
	// EnforceSupportedChains locks the checkout open while the connected
	// chain is unsupported.
	EnforceSupportedChains bool
	SupportedChains        []int64
	DefaultUsdLimit        float64
}

// Load loads configuration from environment variables
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		API: APIConfig{
			BaseURL: getEnv("CROSSPAY_API_URL", "https://pay.crosspay.xyz/api"),
			AppID:   getEnv("CROSSPAY_APP_ID", ""),
			Timeout: getEnvAsDuration("CROSSPAY_API_TIMEOUT", 30*time.Second),
			Env:     getEnv("CROSSPAY_ENV", "development"),
		},
		Polling: PollingConfig{
			WalletSourceInterval:   getEnvAsDuration("CROSSPAY_WALLET_POLL_INTERVAL", 600*time.Millisecond),
			ExchangeSourceInterval: getEnvAsDuration("CROSSPAY_EXCHANGE_POLL_INTERVAL", 4*time.Second),
			OrderRefreshInterval:   getEnvAsDuration("CROSSPAY_REFRESH_POLL_INTERVAL", 300*time.Millisecond),
			MaxFailures:            getEnvAsInt("CROSSPAY_POLL_MAX_FAILURES", 0),
		},
		Redis: RedisConfig{
			URL:      getEnv("CROSSPAY_REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("CROSSPAY_REDIS_PASSWORD", ""),
		},
		Flow: FlowConfig{
			EnforceSupportedChains: getEnvAsBool("CROSSPAY_ENFORCE_SUPPORTED_CHAINS", false),
			SupportedChains:        getEnvAsInt64Slice("CROSSPAY_SUPPORTED_CHAINS", nil),
			DefaultUsdLimit:        getEnvAsFloat("CROSSPAY_DEFAULT_USD_LIMIT", 20000),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsInt64Slice(key string, defaultValue []int64) []int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []int64
	start := 0
	for i := 0; i <= len(value); i++ {
		if i == len(value) || value[i] == ',' {
			if i > start {
				if n, err := strconv.ParseInt(value[start:i], 10, 64); err == nil {
					out = append(out, n)
				}
			}
			start = i + 1
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
