// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the
// webhook server, the commerce backend API, the messaging provider, Stripe,
// tenant-cache TTLs, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// BackendConfig defines how to reach the commerce backend API.
type BackendConfig struct {
	BaseURL string        // SELLER_API_URL, e.g. "https://api.example.com/api"
	APIKey  string        // SELLER_API_KEY, internal bot-to-API auth header
	Timeout time.Duration // per-call timeout
}

// WhatsAppConfig defines process-default messaging provider credentials.
// Tenants with their own credentials override these per message.
type WhatsAppConfig struct {
	PhoneNumberID string        // WHATSAPP_PHONE_NUMBER_ID (fallback sender)
	AccessToken   string        // WHATSAPP_ACCESS_TOKEN (fallback credential)
	VerifyToken   string        // WHATSAPP_VERIFY_TOKEN (webhook handshake)
	APIVersion    string        // WHATSAPP_API_VERSION, e.g. "v21.0"
	Timeout       time.Duration // per-send timeout
}

// StripeConfig defines payment provider settings.
type StripeConfig struct {
	SecretKey  string // STRIPE_SECRET_KEY
	SuccessURL string // hosted redirect after payment; session id is appended
	CancelURL  string // hosted redirect on cancel
}

// TenantCacheConfig defines TTLs for the tenant resolution cache.
// Negative entries expire faster so transient misses self-heal.
type TenantCacheConfig struct {
	PositiveTTL time.Duration // TENANT_CACHE_TTL
	NegativeTTL time.Duration // TENANT_CACHE_NEGATIVE_TTL
}

// CheckoutConfig defines checkout flow limits.
type CheckoutConfig struct {
	MinPayableCents int64 // smallest chargeable total, provider-imposed
	MaxHops         int   // trampoline delegation cap per inbound event
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	GinMode           string // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// App
	DBPath string // SQLite path for conversation state

	// Rate limiting (per webhook sender)
	RateRPS   float64
	RateBurst int

	// Collaborators
	Backend  BackendConfig
	WhatsApp WhatsAppConfig
	Stripe   StripeConfig

	// Flow
	TenantCache TenantCacheConfig
	Checkout    CheckoutConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		DBPath: getenv("DB_PATH", "conversations.db"),

		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		Backend: BackendConfig{
			BaseURL: getenv("SELLER_API_URL", "https://stageshipperapi.thedelivio.com/api"),
			APIKey:  getenv("SELLER_API_KEY", ""),
			Timeout: getdur("SELLER_API_TIMEOUT", 10*time.Second),
		},
		WhatsApp: WhatsAppConfig{
			PhoneNumberID: getenv("WHATSAPP_PHONE_NUMBER_ID", ""),
			AccessToken:   getenv("WHATSAPP_ACCESS_TOKEN", ""),
			VerifyToken:   getenv("WHATSAPP_VERIFY_TOKEN", ""),
			APIVersion:    getenv("WHATSAPP_API_VERSION", "v21.0"),
			Timeout:       getdur("WHATSAPP_TIMEOUT", 10*time.Second),
		},
		Stripe: StripeConfig{
			SecretKey:  getenv("STRIPE_SECRET_KEY", ""),
			SuccessURL: getenv("STRIPE_SUCCESS_URL", ""),
			CancelURL:  getenv("STRIPE_CANCEL_URL", ""),
		},

		TenantCache: TenantCacheConfig{
			PositiveTTL: getdur("TENANT_CACHE_TTL", 30*time.Minute),
			NegativeTTL: getdur("TENANT_CACHE_NEGATIVE_TTL", 5*time.Minute),
		},
		Checkout: CheckoutConfig{
			MinPayableCents: int64(getint("CHECKOUT_MIN_PAYABLE_CENTS", 50)),
			MaxHops:         getint("CHECKOUT_MAX_HOPS", 4),
		},

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-commerce-bot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.Backend.BaseURL) == "" {
		return cfg, errors.New("SELLER_API_URL must not be empty")
	}
	if cfg.Backend.Timeout <= 0 || cfg.WhatsApp.Timeout <= 0 {
		return cfg, errors.New("collaborator timeouts must be positive durations")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.TenantCache.PositiveTTL <= 0 || cfg.TenantCache.NegativeTTL <= 0 {
		return cfg, errors.New("tenant cache TTLs must be positive durations")
	}
	if cfg.TenantCache.NegativeTTL >= cfg.TenantCache.PositiveTTL {
		return cfg, errors.New("TENANT_CACHE_NEGATIVE_TTL must be shorter than TENANT_CACHE_TTL")
	}
	if cfg.Checkout.MinPayableCents < 0 {
		return cfg, errors.New("CHECKOUT_MIN_PAYABLE_CENTS must be >= 0")
	}
	if cfg.Checkout.MaxHops < 1 {
		return cfg, errors.New("CHECKOUT_MAX_HOPS must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
