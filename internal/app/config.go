package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (ADDARA_ prefix), flags, or YAML config files.
type Config struct {
	Addr                string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL         string `usage:"PostgreSQL connection URL (ADDARA_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	StripeSecretKey     string `usage:"Stripe API secret key" flag:"stripe-secret-key"`
	StripeWebhookSecret string `usage:"Stripe webhook signing secret" flag:"stripe-webhook-secret"`
	StripeBaseURL       string `default:"" usage:"Override for the Stripe API base URL (tests only)" flag:"stripe-base-url"`
	APIKeyPepper        string `usage:"HMAC pepper for admin API key hashing (ADDARA_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Pricing             PricingConfig
	RateLimit           RateLimitConfig
	CORS                CORSConfig
	Graceful            GracefulConfig
}

// PricingConfig overrides the checkout cost calculation.
type PricingConfig struct {
	TaxRate        string `default:"0.20" usage:"VAT rate applied to subtotal plus shipping" flag:"tax-rate"`
	LegacyRounding bool   `default:"false" usage:"Round the tax base before applying tax, matching historical order totals" flag:"legacy-rounding"`
}

// RateLimitConfig controls the per-client rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins []string `default:"*" usage:"Allowed CORS origins"`
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
		EnvPrefix: "ADDARA",
		Files:     []string{"config.yaml", "/etc/addara/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set ADDARA_DATABASE_URL or DATABASE_URL")
	}
	if cfg.StripeSecretKey == "" {
		return nil, errors.New("stripe secret key is required: set ADDARA_STRIPE_SECRET_KEY")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like DATABASE_URL and PORT
// to the application's ADDARA_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.StripeSecretKey == "" {
		if v := os.Getenv("STRIPE_SECRET_KEY"); v != "" {
			c.StripeSecretKey = v
		}
	}
	if c.StripeWebhookSecret == "" {
		if v := os.Getenv("STRIPE_WEBHOOK_SECRET"); v != "" {
			c.StripeWebhookSecret = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
