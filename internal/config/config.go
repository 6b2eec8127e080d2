package config

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	apperrors "wealthsync/internal/errors"
)

// Config holds application configuration. It is built once in main and
// passed down; nothing below cmd/ reads the environment.
type Config struct {
	// Server
	Env  string
	Port string

	// Auth
	JWTSecret      string
	PipelineAPIKey string

	// CredentialsKey encrypts provider tokens at rest (32 bytes).
	CredentialsKey []byte

	// Provider HTTP
	ProviderTimeout   time.Duration
	ProviderRateLimit float64
	ProviderBurst     int

	ETrade ETradeConfig
	Schwab SchwabConfig
	Plaid  PlaidConfig

	// DemoMode registers the sample-data provider for accounts created with
	// provider "demo". It never substitutes for a failing real provider.
	DemoMode bool

	// RedisURL enables the distributed per-account lock when set.
	RedisURL string

	Sync      SyncConfig
	Telemetry TelemetryConfig

	LinkSessionTTL time.Duration
}

// ETradeConfig configures the OAuth1 brokerage adapter.
type ETradeConfig struct {
	ConsumerKey    string `validate:"required"`
	ConsumerSecret string `validate:"required"`
	Sandbox        bool
}

// SchwabConfig configures the OAuth2 brokerage adapter.
type SchwabConfig struct {
	ClientID     string `validate:"required"`
	ClientSecret string `validate:"required"`
	RedirectURI  string `validate:"required,url"`
}

// PlaidConfig configures the token-exchange aggregator adapter.
type PlaidConfig struct {
	ClientID    string `validate:"required"`
	Secret      string `validate:"required"`
	Environment string `validate:"required,oneof=sandbox development production"`
	RedirectURI string `validate:"omitempty,url"`
}

// SyncConfig configures scheduled background sync.
type SyncConfig struct {
	ScheduleTimes []string
	Workers       int
	QueueSize     int
	JobDelay      time.Duration
	RunOnStartup  bool
	Concurrency   int
}

// TelemetryConfig configures tracing and metrics export.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	MetricsPort  string
}

var validate = validator.New()

// Validate returns a ConfigurationError naming the missing fields.
func (c ETradeConfig) Validate() error { return validateProvider("etrade", c) }

// Validate returns a ConfigurationError naming the missing fields.
func (c SchwabConfig) Validate() error { return validateProvider("schwab", c) }

// Validate returns a ConfigurationError naming the missing fields.
func (c PlaidConfig) Validate() error { return validateProvider("plaid", c) }

func validateProvider(name string, cfg any) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.Wrap(apperrors.ErrProviderNotConfigured, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return apperrors.WithMessage(apperrors.ErrProviderNotConfigured,
		fmt.Sprintf("provider %s is not configured: invalid or missing %s", name, strings.Join(fields, ", ")))
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg := &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8080"),

		JWTSecret:      getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),
		PipelineAPIKey: getEnv("PIPELINE_API_KEY", ""),

		ProviderTimeout:   getDuration("PROVIDER_HTTP_TIMEOUT", 15*time.Second),
		ProviderRateLimit: getFloat("PROVIDER_RATE_LIMIT_RPS", 2),
		ProviderBurst:     getInt("PROVIDER_RATE_LIMIT_BURST", 4),

		ETrade: ETradeConfig{
			ConsumerKey:    getEnv("ETRADE_CONSUMER_KEY", ""),
			ConsumerSecret: getEnv("ETRADE_CONSUMER_SECRET", ""),
			Sandbox:        getBool("ETRADE_SANDBOX", true),
		},
		Schwab: SchwabConfig{
			ClientID:     getEnv("SCHWAB_CLIENT_ID", ""),
			ClientSecret: getEnv("SCHWAB_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("SCHWAB_REDIRECT_URI", ""),
		},
		Plaid: PlaidConfig{
			ClientID:    getEnv("PLAID_CLIENT_ID", ""),
			Secret:      getEnv("PLAID_SECRET", ""),
			Environment: getEnv("PLAID_ENV", "sandbox"),
			RedirectURI: getEnv("PLAID_REDIRECT_URI", ""),
		},

		DemoMode: getBool("DEMO_MODE", false),
		RedisURL: getEnv("REDIS_URL", ""),

		Sync: SyncConfig{
			ScheduleTimes: getList("SYNC_SCHEDULE", []string{"06:00", "18:00"}),
			Workers:       getInt("SYNC_WORKERS", 4),
			QueueSize:     getInt("SYNC_QUEUE_SIZE", 256),
			JobDelay:      getDuration("SYNC_JOB_DELAY", 500*time.Millisecond),
			RunOnStartup:  getBool("SYNC_RUN_ON_STARTUP", false),
			Concurrency:   getInt("SYNC_CONCURRENCY", 4),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			MetricsPort:  getEnv("METRICS_PORT", "9464"),
		},

		LinkSessionTTL: getDuration("LINK_SESSION_TTL", 15*time.Minute),
	}

	key, err := parseKey(getEnv("CREDENTIALS_KEY", ""))
	if err != nil {
		return nil, err
	}
	cfg.CredentialsKey = key

	return cfg, nil
}

// parseKey decodes a 64-character hex key. An empty value is allowed outside
// production and yields a nil key, which stores credentials unencrypted.
func parseKey(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("CREDENTIALS_KEY must be hex encoded: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("CREDENTIALS_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		log.Printf("Warning: invalid %s value, falling back to %v\n", key, defaultValue)
		return defaultValue
	}
	return v
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil || v <= 0 {
		log.Printf("Warning: invalid %s value, falling back to %d\n", key, defaultValue)
		return defaultValue
	}
	return v
}

func getFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, strconv.FormatFloat(defaultValue, 'f', -1, 64)), 64)
	if err != nil || v <= 0 {
		log.Printf("Warning: invalid %s value, falling back to %v\n", key, defaultValue)
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, defaultValue.String()))
	if err != nil || v <= 0 {
		log.Printf("Warning: invalid %s value, falling back to %s\n", key, defaultValue)
		return defaultValue
	}
	return v
}

func getList(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
