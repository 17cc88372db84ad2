package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"pumprug/database"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// Redis configuration (broadcast channel, delay queue, rate limiting)
	RedisAddr     string
	RedisPassword string

	// Ledger configuration
	LedgerRPCURL      string // JSON-RPC endpoint of the ledger node
	CollectionAddress string // platform address wager transfers must pay into

	// Oracle configuration
	OracleBaseURL      string
	OraclePollInterval time.Duration

	// Odds configuration
	OddsFloor     float64 // minimum odds multiplier
	OddsCeiling   float64 // maximum odds multiplier
	OddsSmoothing float64 // base smoothing stake, in base units

	// Fee configuration
	FeeBps int64 // platform fee in basis points, taken from gross stake

	// Outcome classification policy
	PumpThresholdPct float64 // price change >= this => pump
	RugThresholdPct  float64 // price/liquidity change <= this => rug

	// Verification retry policy
	VerifyMaxAttempts int
	VerifyBackoff     time.Duration

	// Resolution retry policy
	ResolveMaxAttempts int
	ResolveRetryDelay  time.Duration

	// Rate limiting for wager intents
	IntentRateLimit  int
	IntentRateWindow time.Duration

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		RedisAddr:     getEnvWithDefault("REDIS_ADDR", "redis:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		LedgerRPCURL:      os.Getenv("LEDGER_RPC_URL"),
		CollectionAddress: os.Getenv("COLLECTION_ADDRESS"),

		OracleBaseURL:      os.Getenv("ORACLE_BASE_URL"),
		OraclePollInterval: 15 * time.Second,

		OddsFloor:     1.0,
		OddsCeiling:   10.0,
		OddsSmoothing: 1_000_000, // one whole token in base units

		FeeBps: 200, // 2%

		PumpThresholdPct: 5.0,
		RugThresholdPct:  -30.0,

		VerifyMaxAttempts: 5,
		VerifyBackoff:     3 * time.Second,

		ResolveMaxAttempts: 3,
		ResolveRetryDelay:  30 * time.Second,

		IntentRateLimit:  10,
		IntentRateWindow: time.Minute,

		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Override numeric defaults if environment variables are set
	if v := os.Getenv("ODDS_FLOOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.OddsFloor = f
		}
	}
	if v := os.Getenv("ODDS_CEILING"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.OddsCeiling = f
		}
	}
	if v := os.Getenv("ODDS_SMOOTHING"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.OddsSmoothing = f
		}
	}
	if v := os.Getenv("FEE_BPS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.FeeBps = n
		}
	}
	if v := os.Getenv("PUMP_THRESHOLD_PCT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.PumpThresholdPct = f
		}
	}
	if v := os.Getenv("RUG_THRESHOLD_PCT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.RugThresholdPct = f
		}
	}
	if v := os.Getenv("VERIFY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.VerifyMaxAttempts = n
		}
	}
	if v := os.Getenv("ORACLE_POLL_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.OraclePollInterval = time.Duration(n) * time.Second
		}
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.LedgerRPCURL == "" {
			return nil, fmt.Errorf("LEDGER_RPC_URL is required")
		}
		if config.CollectionAddress == "" {
			return nil, fmt.Errorf("COLLECTION_ADDRESS is required")
		}
		if config.OddsFloor < 1.0 {
			return nil, fmt.Errorf("ODDS_FLOOR must be at least 1.0")
		}
		if config.OddsCeiling <= config.OddsFloor {
			return nil, fmt.Errorf("ODDS_CEILING must be greater than ODDS_FLOOR")
		}
	}

	return config, nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:        "test",
		CollectionAddress:  "PLATFORMCOLLECT111111111111111111111111111",
		OddsFloor:          1.0,
		OddsCeiling:        10.0,
		OddsSmoothing:      100,
		FeeBps:             200,
		PumpThresholdPct:   5.0,
		RugThresholdPct:    -30.0,
		VerifyMaxAttempts:  3,
		VerifyBackoff:      time.Millisecond,
		ResolveMaxAttempts: 3,
		ResolveRetryDelay:  time.Millisecond,
		IntentRateLimit:    1000,
		IntentRateWindow:   time.Minute,
	}
}
