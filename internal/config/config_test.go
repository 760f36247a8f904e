package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"ENVIRONMENT", "IS_PROD", "APP_PORT", "API_KEY", "ADMIN_KEY", "ALLOWED_ORIGINS", "DB_HOST", "REDIS_ADDR", "RATE_LIMIT_PER_MINUTE", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}

	cfg := LoadConfig()
	assert.Equal(t, "8000", cfg.AppPort)
	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.IsProd)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"https://micropaper.vercel.app"}, cfg.AllowedOrigins)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.Equal(t, defaultDemoWallets, cfg.DemoWallets)
	assert.Empty(t, cfg.DSN())
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("API_KEY", "k1")
	t.Setenv("ADMIN_KEY", "")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "u")
	t.Setenv("DB_PASSWORD", "p")
	t.Setenv("DB_PORT", "3307")
	t.Setenv("DB_NAME", "micropaper")
	t.Setenv("DEMO_WALLETS", "")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "30")

	cfg := LoadConfig()
	assert.True(t, cfg.IsProd)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.AdminKey)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "u:p@tcp(db:3307)/micropaper?parseTime=true", cfg.DSN())
	assert.Empty(t, cfg.DemoWallets)
	assert.Equal(t, 30, cfg.RateLimitPerMinute)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cfg := &Config{IsProd: true, RateLimitPerMinute: 0, CacheTTLSeconds: -1, DemoWallets: []string{"0x12"}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_KEY is required in production")
	assert.Contains(t, err.Error(), "RATE_LIMIT_PER_MINUTE")
	assert.Contains(t, err.Error(), "CACHE_TTL_SECONDS")
	assert.Contains(t, err.Error(), "DEMO_WALLETS")
}
