package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"BUNDLR_URL", "BUNDLR_CURRENCY", "BUNDLR_TIMEOUT", "BUNDLR_RETRIES", "BUNDLR_LOG_JSON"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv("BUNDLR_HOME", "/tmp/bundlr-home")

	cfg := Load()
	assert.Equal(t, "https://node1.bundlr.network", cfg.URL)
	assert.Empty(t, cfg.Currency)
	assert.Equal(t, 100*time.Second, cfg.Timeout)
	assert.Equal(t, 2, cfg.Retries)
	assert.False(t, cfg.LogJSON)
	assert.Equal(t, "/tmp/bundlr-home", cfg.Home)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BUNDLR_URL", "https://devnet.bundlr.network")
	t.Setenv("BUNDLR_CURRENCY", "MATIC")
	t.Setenv("BUNDLR_TIMEOUT", "30s")
	t.Setenv("BUNDLR_RETRIES", "5")
	t.Setenv("BUNDLR_RATE_LIMIT", "2.5")
	t.Setenv("BUNDLR_LOG_JSON", "true")

	cfg := Load()
	assert.Equal(t, "https://devnet.bundlr.network", cfg.URL)
	assert.Equal(t, "matic", cfg.Currency)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 5, cfg.Retries)
	assert.Equal(t, 2.5, cfg.RateLimit)
	assert.True(t, cfg.LogJSON)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("BUNDLR_TIMEOUT", "soon")
	t.Setenv("BUNDLR_RETRIES", "many")

	cfg := Load()
	assert.Equal(t, 100*time.Second, cfg.Timeout)
	assert.Equal(t, 2, cfg.Retries)
}
