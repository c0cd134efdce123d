// Package config provides environment-driven configuration for the CLI.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the CLI settings. Command-line flags override these values.
type Config struct {
	// Bundler node
	URL string

	// Currency name and wallet file
	Currency string
	Wallet   string

	// Chain provider overrides
	ProviderURL     string
	ContractAddress string

	// HTTP behaviour
	Timeout   time.Duration
	Retries   int
	RateLimit float64

	LogLevel string
	LogJSON  bool

	// Keystore directory
	Home string
}

// Load creates a new Config from environment variables
func Load() Config {
	return Config{
		URL:             GetEnvOrDefault("BUNDLR_URL", "https://node1.bundlr.network"),
		Currency:        strings.ToLower(GetEnvOrDefault("BUNDLR_CURRENCY", "")),
		Wallet:          GetEnvOrDefault("BUNDLR_WALLET", ""),
		ProviderURL:     GetEnvOrDefault("BUNDLR_PROVIDER_URL", ""),
		ContractAddress: GetEnvOrDefault("BUNDLR_CONTRACT_ADDRESS", ""),
		Timeout:         GetEnvAsDuration("BUNDLR_TIMEOUT", 100*time.Second),
		Retries:         GetEnvAsInt("BUNDLR_RETRIES", 2),
		RateLimit:       GetEnvAsFloat("BUNDLR_RATE_LIMIT", 0),
		LogLevel:        strings.ToLower(GetEnvOrDefault("BUNDLR_LOG_LEVEL", "info")),
		LogJSON:         GetEnvAsBool("BUNDLR_LOG_JSON", false),
		Home:            GetEnvOrDefault("BUNDLR_HOME", defaultHome()),
	}
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bundlr"
	}
	return filepath.Join(home, ".bundlr")
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a bool with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
