package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME" envDefault:"unified_identity"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	// Session tokens
	JWTSecret        string        `env:"JWT_SECRET"`
	JWTAccessExpiry  time.Duration `env:"JWT_ACCESS_EXPIRY" envDefault:"15m"`
	JWTRefreshExpiry time.Duration `env:"JWT_REFRESH_EXPIRY" envDefault:"168h"`

	// Merge tokens
	MergeTokenSecret string        `env:"MERGE_TOKEN_SECRET"`
	MergeTokenTTL    time.Duration `env:"MERGE_TOKEN_TTL" envDefault:"15m"`
	MergeTokenIssuer string        `env:"MERGE_TOKEN_ISSUER" envDefault:"unified-identity"`

	// Identity engine
	MaxResolveDepth         int    `env:"MAX_RESOLVE_DEPTH" envDefault:"64"`
	APIKeyFingerprintSecret string `env:"API_KEY_FINGERPRINT_SECRET"`

	// Trusted callers
	GatewayToken string `env:"GATEWAY_TOKEN"`
	AdminToken   string `env:"ADMIN_TOKEN"`

	// Server
	Port        string `env:"PORT" envDefault:"8080"`
	CORSOrigins string `env:"CORS_ORIGINS" envDefault:"*"`
	LoginURL    string `env:"LOGIN_URL" envDefault:"/login"`

	// Background jobs
	TokenSweepInterval time.Duration `env:"TOKEN_SWEEP_INTERVAL" envDefault:"1h"`
	LogRetentionDays   int           `env:"LOG_RETENTION_DAYS" envDefault:"30"`

	// Error tracking
	SentryDSN string `env:"SENTRY_DSN"`
	AppEnv    string `env:"APP_ENV" envDefault:"development"`
}

// Load reads an optional .env file (ENV_FILE overrides the path) and then
// parses the process environment.
func Load() (*Config, error) {
	envPath := os.Getenv("ENV_FILE")
	if envPath == "" {
		envPath = ".env"
	}
	_ = godotenv.Load(envPath)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.MergeTokenSecret == "" {
		cfg.MergeTokenSecret = cfg.JWTSecret
	}
	if cfg.APIKeyFingerprintSecret == "" {
		cfg.APIKeyFingerprintSecret = cfg.JWTSecret
	}
	if cfg.MaxResolveDepth <= 0 {
		cfg.MaxResolveDepth = 64
	}
	return &cfg, nil
}

// Validate reports the settings the HTTP server cannot start without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if c.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD environment variable is required")
	}
	if c.GatewayToken == "" {
		return fmt.Errorf("GATEWAY_TOKEN environment variable is required")
	}
	return nil
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}
