package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Addr:        defaultAddr,
		AdminAddr:   "0.0.0.0:8081",
		DatabaseURL: "postgres://localhost/storefront",
		Payment:     PaymentConfig{SuccessRate: 0.8},
		Redis:       RedisConfig{TTL: time.Minute},
		RateLimit:   RateLimitConfig{Requests: 600, Window: time.Minute},
	}
}

func TestApplyPlatformDefaults(t *testing.T) {
	t.Run("database url fallback", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://platform/db")
		cfg := Config{Addr: defaultAddr}
		cfg.applyPlatformDefaults()
		assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	})

	t.Run("explicit database url wins", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://platform/db")
		cfg := Config{Addr: defaultAddr, DatabaseURL: "postgres://explicit/db"}
		cfg.applyPlatformDefaults()
		assert.Equal(t, "postgres://explicit/db", cfg.DatabaseURL)
	})

	t.Run("port overrides default addr", func(t *testing.T) {
		t.Setenv("PORT", "9000")
		cfg := Config{Addr: defaultAddr}
		cfg.applyPlatformDefaults()
		assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
	})

	t.Run("port keeps custom addr", func(t *testing.T) {
		t.Setenv("PORT", "9000")
		cfg := Config{Addr: "127.0.0.1:7000"}
		cfg.applyPlatformDefaults()
		assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "rate zero", mutate: func(c *Config) { c.Payment.SuccessRate = 0 }},
		{name: "rate one", mutate: func(c *Config) { c.Payment.SuccessRate = 1 }},
		{name: "admin disabled", mutate: func(c *Config) { c.AdminAddr = "" }},
		{name: "missing database", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: "database URL is required"},
		{name: "rate negative", mutate: func(c *Config) { c.Payment.SuccessRate = -0.1 }, wantErr: "outside [0, 1]"},
		{name: "rate above one", mutate: func(c *Config) { c.Payment.SuccessRate = 1.5 }, wantErr: "outside [0, 1]"},
		{name: "redis without ttl", mutate: func(c *Config) {
			c.Redis.Addr = "localhost:6379"
			c.Redis.TTL = 0
		}, wantErr: "redis TTL"},
		{name: "rate limit disabled", mutate: func(c *Config) { c.RateLimit = RateLimitConfig{} }},
		{name: "rate limit negative", mutate: func(c *Config) { c.RateLimit.Requests = -1 }, wantErr: "must not be negative"},
		{name: "rate limit without window", mutate: func(c *Config) { c.RateLimit.Window = 0 }, wantErr: "window must be positive"},
		{name: "shared listener", mutate: func(c *Config) { c.AdminAddr = c.Addr }, wantErr: "must differ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
