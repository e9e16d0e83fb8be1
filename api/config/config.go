package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// AppConfig holds the global application configuration
var AppConfig *Config

// Config holds the application configuration
type Config struct {
	// Optional: without it the ledger and provider configuration live in memory.
	DatabaseURL string `env:"DATABASE_URL"`

	// Stripe credentials from the environment. An admin-stored configuration takes precedence.
	StripeSecretKey        string        `env:"STRIPE_SECRET_KEY"`
	StripeAPIURL           string        `env:"STRIPE_API_URL"`
	StripeAllowedCountries []string      `env:"STRIPE_ALLOWED_COUNTRIES" envSeparator:"," envDefault:"US,CA,GB"`
	OutcallTimeout         time.Duration `env:"OUTCALL_TIMEOUT" envDefault:"10s"`

	// Opaque external user ids allowed to run administrative operations.
	AdminUserIDs []string `env:"ADMIN_USER_IDS" envSeparator:","`

	RedisURL        string        `env:"REDIS_URL"`
	SessionCacheTTL time.Duration `env:"SESSION_CACHE_TTL" envDefault:"720h"`

	KafkaBrokers     []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaInviteTopic string   `env:"KAFKA_INVITE_TOPIC" envDefault:"invites.status"`

	// Asset storage used to sign download URLs (S3 compatible).
	AssetBucket    string        `env:"ASSET_BUCKET"`
	AssetRegion    string        `env:"ASSET_REGION" envDefault:"auto"`
	AssetEndpoint  string        `env:"ASSET_ENDPOINT"`
	AssetAccessKey string        `env:"ASSET_ACCESS_KEY"`
	AssetSecretKey string        `env:"ASSET_SECRET_KEY"`
	AssetURLTTL    time.Duration `env:"ASSET_URL_TTL" envDefault:"15m"`

	// JSON product catalog used when no database is configured.
	CatalogFile string `env:"CATALOG_FILE"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT" envDefault:"json"`

	// Optional: base URL for running remote HTTP integration tests (e.g., https://api.example.com)
	IntegrationBaseURL string `env:"INTEGRATION_BASE_URL"`
	// Server ports
	HTTPPort string `env:"PORT" envDefault:"8080"`
	GRPCPort string `env:"GRPC_PORT" envDefault:"50051"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Try to load .env file from current directory and parent directories
	currentDir, _ := os.Getwd()
	for currentDir != "/" && currentDir != "." {
		envPath := filepath.Join(currentDir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return nil, fmt.Errorf("failed to load .env file: %v", err)
			}
			break
		}
		currentDir = filepath.Dir(currentDir)
	}

	return parse(env.Options{})
}

// parse reads the configuration using opts, which lets tests supply an explicit environment.
func parse(opts env.Options) (*Config, error) {
	config := &Config{}
	if err := env.ParseWithOptions(config, opts); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	config.StripeAllowedCountries = normalizeCountries(config.StripeAllowedCountries)
	config.AdminUserIDs = trimAll(config.AdminUserIDs)
	config.KafkaBrokers = trimAll(config.KafkaBrokers)
	return config, nil
}

func normalizeCountries(in []string) []string {
	out := trimAll(in)
	for i := range out {
		out[i] = strings.ToUpper(out[i])
	}
	return out
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
