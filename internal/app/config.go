package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Config holds the complete application configuration, loadable from
// environment variables (STORE_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (STORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Payment     PaymentConfig
	Shipping    ShippingConfig
	SMTP        SMTPConfig
	Checkout    CheckoutConfig
	Jobs        JobsConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// PaymentConfig holds payment gateway credentials and callback secrets.
type PaymentConfig struct {
	BaseURL       string `usage:"Payment gateway API base URL" flag:"payment-base-url"`
	KeyID         string `usage:"Payment gateway key ID" flag:"payment-key-id"`
	KeySecret     string `usage:"Payment gateway key secret; also signs client callbacks" flag:"payment-key-secret"`
	WebhookSecret string `usage:"Payment webhook signing secret" flag:"payment-webhook-secret"`
	Currency      string `default:"INR" usage:"Gateway settlement currency"`
}

// ShippingConfig holds shipping carrier account credentials.
type ShippingConfig struct {
	BaseURL  string `usage:"Shipping carrier API base URL" flag:"shipping-base-url"`
	Email    string `usage:"Shipping carrier account email" flag:"shipping-email"`
	Password string `usage:"Shipping carrier account password" flag:"shipping-password"`
}

// SMTPConfig holds the outbound mail account.
type SMTPConfig struct {
	Host       string `usage:"SMTP host"`
	Port       int    `default:"587" usage:"SMTP port"`
	Username   string `usage:"SMTP username"`
	Password   string `usage:"SMTP password"`
	From       string `usage:"From address for transactional mail"`
	AdminEmail string `usage:"Recipient for low-stock alerts" flag:"admin-email"`
}

// CheckoutConfig holds order pricing parameters.
type CheckoutConfig struct {
	TaxRate     decimal.Decimal `default:"0.18" usage:"Tax rate applied to the discounted subtotal" flag:"tax-rate"`
	ShippingFee decimal.Decimal `default:"0"    usage:"Flat shipping fee per order" flag:"shipping-fee"`
}

// JobsConfig controls the background cron jobs.
type JobsConfig struct {
	AbandonedCartSchedule string        `default:"0 * * * *" usage:"Cron schedule for abandoned cart reminders" flag:"abandoned-cart-schedule"`
	AbandonedCartAfter    time.Duration `default:"24h"       usage:"Inactivity before a cart counts as abandoned" flag:"abandoned-cart-after"`
	GuestPurgeSchedule    string        `default:"30 3 * * *" usage:"Cron schedule for guest cart purging" flag:"guest-purge-schedule"`
	GuestPurgeAfter       time.Duration `default:"720h"      usage:"Inactivity before a guest cart is purged" flag:"guest-purge-after"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STORE",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set STORE_DATABASE_URL or DATABASE_URL")
	}
	if cfg.Payment.KeySecret == "" {
		return nil, errors.New("payment key secret is required: set STORE_PAYMENT_KEY_SECRET")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like DATABASE_URL and PORT to the application's STORE_-
// prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
