package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chtemp(t *testing.T) string {
	t.Helper()
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.hubapi.com", cfg.Hubspot.BaseURL)
	assert.InDelta(t, 9, cfg.Hubspot.RateLimit, 0.001)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Anthropic.Model)
	assert.Equal(t, 4096, cfg.Anthropic.MaxTokens)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Hubspot.Token)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chtemp(t)

	yaml := `
hubspot:
  token: pat-na1-test
store:
  driver: sqlite
  database_url: dealbrief.db
log:
  level: debug
  format: console
server:
  port: 9090
  allowed_origins:
    - chrome-extension://abc123
    - http://localhost:5173
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "pat-na1-test", cfg.Hubspot.Token)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "dealbrief.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"chrome-extension://abc123", "http://localhost:5173"}, cfg.Server.AllowedOrigins)
	// Defaults still apply for unset values
	assert.Equal(t, 4096, cfg.Anthropic.MaxTokens)
	assert.Equal(t, "https://api.hubapi.com", cfg.Hubspot.BaseURL)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chtemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("DEALBRIEF_STORE_DRIVER", "postgres")
	t.Setenv("DEALBRIEF_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chtemp(t)

	t.Setenv("DEALBRIEF_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadSecretsFromEnv(t *testing.T) {
	chtemp(t)

	t.Setenv("DEALBRIEF_HUBSPOT_TOKEN", "pat-na1-secret")
	t.Setenv("DEALBRIEF_ANTHROPIC_KEY", "sk-ant-secret")
	t.Setenv("DEALBRIEF_STORE_DATABASE_URL", "postgres://localhost/dealbrief")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "pat-na1-secret", cfg.Hubspot.Token)
	assert.Equal(t, "sk-ant-secret", cfg.Anthropic.Key)
	assert.Equal(t, "postgres://localhost/dealbrief", cfg.Store.DatabaseURL)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Hubspot.RateLimit = 9
	cfg.Anthropic.MaxTokens = 4096
	cfg.Store.Driver = "postgres"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateAnalyze_AllPresent(t *testing.T) {
	cfg := validDefaults()
	cfg.Hubspot.Token = "pat-na1-test"
	cfg.Anthropic.Key = "sk-ant-key"

	assert.NoError(t, cfg.Validate("analyze"))
}

func TestValidateAnalyze_MissingFields(t *testing.T) {
	cfg := validDefaults()
	// All analyze-required fields are empty

	err := cfg.Validate("analyze")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "hubspot.token is required")
	assert.Contains(t, err.Error(), "anthropic.key is required")
}

func TestValidateServe_AllPresent(t *testing.T) {
	cfg := validDefaults()
	cfg.Hubspot.Token = "pat-na1-test"
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Store.DatabaseURL = "postgres://localhost/dealbrief"

	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Hubspot.Token = "pat-na1-test"
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Store.DatabaseURL = "postgres://localhost/dealbrief"
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateStore_MissingURL(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateStore_BadDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "snowflake"
	cfg.Store.DatabaseURL = "something"

	err := cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be postgres or sqlite")
}

func TestValidateSync_MissingFields(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("sync")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "notion.token is required")
	assert.Contains(t, err.Error(), "notion.types_db is required")
}

func TestValidateBrief_HubspotOnly(t *testing.T) {
	cfg := validDefaults()
	cfg.Hubspot.Token = "pat-na1-test"
	// No Anthropic key: building a document makes no model calls.
	assert.NoError(t, cfg.Validate("brief"))

	cfg.Hubspot.Token = ""
	err := cfg.Validate("brief")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "hubspot.token is required")
	assert.NotContains(t, err.Error(), "anthropic.key")
}

func TestValidateMultipleModes(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("analyze", "store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "hubspot.token is required")
	assert.Contains(t, err.Error(), "anthropic.key is required")
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Hubspot.Token = "pat-na1-test"
	cfg.Anthropic.Key = "sk-ant-key"

	cfg.Hubspot.RateLimit = 0
	err := cfg.Validate("analyze")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "hubspot.rate_limit must be between 1 and 100")

	cfg.Hubspot.RateLimit = 101
	err = cfg.Validate("analyze")
	assert.Error(t, err)

	cfg.Hubspot.RateLimit = 10
	cfg.Anthropic.MaxTokens = 0
	err = cfg.Validate("analyze")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.max_tokens must be between 1 and 64000")

	cfg.Anthropic.MaxTokens = 4096
	assert.NoError(t, cfg.Validate("analyze"))
}
