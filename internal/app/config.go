package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/order"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	AdminAddr   string `default:"0.0.0.0:8081" usage:"Admin panel listen address (empty disables the panel)" flag:"admin-addr"`
	DatabaseURL string `usage:"PostgreSQL connection URL (STOREFRONT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Redis       RedisConfig
	Payment     PaymentConfig
	Graceful    GracefulConfig
	RateLimit   RateLimitConfig
}

// RedisConfig controls the product read cache. The cache is disabled when
// Addr is empty.
type RedisConfig struct {
	Addr     string        `default:"" usage:"Redis address for the product cache" flag:"redis-addr"`
	Password string        `default:"" usage:"Redis password" flag:"redis-password"`
	DB       int           `default:"0" usage:"Redis database number" flag:"redis-db"`
	TTL      time.Duration `default:"5m" usage:"Product cache entry lifetime" flag:"redis-ttl"`
}

// PaymentConfig controls the simulated payment.
type PaymentConfig struct {
	SuccessRate float64 `default:"0.8" usage:"Probability that a simulated payment succeeds" flag:"payment-success-rate"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// RateLimitConfig throttles API clients. Requests=0 disables throttling.
type RateLimitConfig struct {
	Requests int           `default:"600" usage:"Requests allowed per client within the window (0 disables)" flag:"rate-limit-requests"`
	Window   time.Duration `default:"1m"  usage:"Rate limit sliding window" flag:"rate-limit-window"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STOREFRONT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set STOREFRONT_DATABASE_URL or DATABASE_URL")
	}
	if c.Payment.SuccessRate < 0 || c.Payment.SuccessRate > 1 {
		return errors.Errorf("payment success rate %v is outside [0, 1]", c.Payment.SuccessRate)
	}
	if c.Redis.Addr != "" && c.Redis.TTL <= 0 {
		return errors.Errorf("redis TTL must be positive, got %s", c.Redis.TTL)
	}
	if c.RateLimit.Requests < 0 {
		return errors.Errorf("rate limit requests must not be negative, got %d", c.RateLimit.Requests)
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0 {
		return errors.Errorf("rate limit window must be positive, got %s", c.RateLimit.Window)
	}
	if c.AdminAddr != "" && c.AdminAddr == c.Addr {
		return errors.New("admin address must differ from the API address")
	}
	return nil
}

// paymentPolicy returns the configured payment simulation.
func (c *Config) paymentPolicy() order.PaymentPolicy {
	return order.NewRandomPayment(c.Payment.SuccessRate)
}
