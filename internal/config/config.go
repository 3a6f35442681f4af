// Package config loads service configuration from the environment once at
// startup. Components receive the resulting structs explicitly instead of
// reading ambient process state.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvSandbox    = "sandbox"
	EnvProduction = "production"
)

// Config is the root configuration for the fulfillment service.
type Config struct {
	Environment string
	HTTPAddr    string
	DatabaseURL string

	Payment     PaymentConfig
	Fulfillment FulfillmentConfig
	Storage     StorageConfig
	Notify      NotifyConfig
	Book        BookConfig
	Operator    OperatorConfig
	Tracing     TracingConfig
}

// PaymentConfig covers the inbound payment-gateway webhook.
type PaymentConfig struct {
	WebhookSecret    string
	WebhookTolerance time.Duration
}

// FulfillmentConfig selects the print-partner environment and carries the
// per-environment credentials. Sandbox and production differ in base URL,
// credentials and acceptable test data, so the environment travels with
// every partner call.
type FulfillmentConfig struct {
	Environment   string
	BaseURL       string
	TokenURL      string
	ClientID      string
	ClientSecret  string
	ContactEmail  string
	WebhookSecret string
	Timeout       time.Duration
}

// StorageConfig configures the rendered-document store and its signed URLs.
type StorageConfig struct {
	Dir        string
	BaseURL    string
	SignSecret string
	URLTTL     time.Duration
}

// NotifyConfig configures best-effort shipment notifications.
type NotifyConfig struct {
	SendGridAPIKey string
	FromEmail      string
	FromName       string
}

// BookConfig carries fixed product parameters supplied externally.
type BookConfig struct {
	// PageCount is the target interior page count for standard editions.
	// Shorter stories are padded with blank pages up to this count.
	PageCount int
}

// OperatorConfig guards the operator API surface.
type OperatorConfig struct {
	// APIKeyHash is an argon2id hash of the operator API key.
	APIKeyHash string
}

// TracingConfig mirrors the OTLP exporter settings.
type TracingConfig struct {
	Enabled          bool
	ServiceName      string
	ServiceVersion   string
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

// Load reads configuration from the environment and applies defaults.
func Load() (Config, error) {
	environment := strings.ToLower(envOr("APP_ENV", EnvSandbox))
	if environment != EnvSandbox && environment != EnvProduction {
		return Config{}, errors.New("invalid_app_env")
	}

	fulfillmentEnv := strings.ToLower(envOr("LULU_ENV", environment))
	if fulfillmentEnv != EnvSandbox && fulfillmentEnv != EnvProduction {
		return Config{}, errors.New("invalid_lulu_env")
	}

	cfg := Config{
		Environment: environment,
		HTTPAddr:    envOr("HTTP_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Payment: PaymentConfig{
			WebhookSecret:    os.Getenv("STRIPE_WEBHOOK_SECRET"),
			WebhookTolerance: envDuration("STRIPE_WEBHOOK_TOLERANCE", 5*time.Minute),
		},
		Fulfillment: FulfillmentConfig{
			Environment:   fulfillmentEnv,
			BaseURL:       envOr("LULU_BASE_URL", defaultBaseURL(fulfillmentEnv)),
			TokenURL:      envOr("LULU_TOKEN_URL", defaultTokenURL(fulfillmentEnv)),
			ClientID:      os.Getenv("LULU_CLIENT_ID"),
			ClientSecret:  os.Getenv("LULU_CLIENT_SECRET"),
			ContactEmail:  envOr("LULU_CONTACT_EMAIL", "orders@onceuponadrawing.com"),
			WebhookSecret: os.Getenv("LULU_WEBHOOK_SECRET"),
			Timeout:       envDuration("LULU_TIMEOUT", 30*time.Second),
		},
		Storage: StorageConfig{
			Dir:        envOr("STORAGE_DIR", "_documents"),
			BaseURL:    envOr("STORAGE_BASE_URL", "http://localhost:8080"),
			SignSecret: os.Getenv("STORAGE_SIGN_SECRET"),
			URLTTL:     envDuration("STORAGE_URL_TTL", 4*time.Hour),
		},
		Notify: NotifyConfig{
			SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
			FromEmail:      envOr("NOTIFY_FROM_EMAIL", "hello@onceuponadrawing.com"),
			FromName:       envOr("NOTIFY_FROM_NAME", "Once Upon a Drawing"),
		},
		Book: BookConfig{
			PageCount: envInt("BOOK_PAGE_COUNT", 32),
		},
		Operator: OperatorConfig{
			APIKeyHash: os.Getenv("OPERATOR_API_KEY_HASH"),
		},
		Tracing: TracingConfig{
			Enabled:          envBool("TRACING_ENABLED", false),
			ServiceName:      envOr("TRACING_SERVICE_NAME", "onceuponadrawing"),
			ServiceVersion:   envOr("TRACING_SERVICE_VERSION", "dev"),
			ExporterEndpoint: os.Getenv("OTLP_ENDPOINT"),
			ExporterProtocol: envOr("OTLP_PROTOCOL", "grpc"),
			SamplingRatio:    envFloat("TRACING_SAMPLING_RATIO", 0.1),
		},
	}
	return cfg, nil
}

// IsProduction reports whether the service itself runs in production mode.
func (c Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func defaultBaseURL(env string) string {
	if env == EnvProduction {
		return "https://api.lulu.com"
	}
	return "https://api.sandbox.lulu.com"
}

func defaultTokenURL(env string) string {
	if env == EnvProduction {
		return "https://api.lulu.com/auth/realms/glasstree/protocol/openid-connect/token"
	}
	return "https://api.sandbox.lulu.com/auth/realms/glasstree/protocol/openid-connect/token"
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
