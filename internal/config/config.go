package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Stripe       StripeConfig
	Registration RegistrationConfig
	Seed         SeedConfig
	Log          LogConfig
	Metrics      MetricsConfig
}

type ServerConfig struct {
	Port          string   `env:"PORT" envDefault:"8080"`
	GinMode       string   `env:"GIN_MODE" envDefault:"debug"`
	PublicBaseURL string   `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:5173"`
	CORSOrigins   []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://127.0.0.1:5173"`
}

type DatabaseConfig struct {
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            string        `env:"DB_PORT" envDefault:"5432"`
	User            string        `env:"DB_USER" envDefault:"postgres"`
	Password        string        `env:"DB_PASSWORD" envDefault:"postgres"`
	Name            string        `env:"DB_NAME" envDefault:"postgres"`
	SSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"50"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
}

// RedisConfig configures the pending-registration store. An empty Addr selects the
// in-process store, which is only correct for a single API instance.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type JWTConfig struct {
	Secret string        `env:"JWT_SECRET" envDefault:"default_super_secret_key"`
	TTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`
}

type StripeConfig struct {
	SecretKey string `env:"STRIPE_SECRET_KEY"`
	Currency  string `env:"STRIPE_CURRENCY" envDefault:"php"`
}

type RegistrationConfig struct {
	PendingTTL time.Duration `env:"PENDING_REGISTRATION_TTL" envDefault:"2h"`
}

type SeedConfig struct {
	SuperAdminEmail    string `env:"SUPERADMIN_EMAIL"`
	SuperAdminPassword string `env:"SUPERADMIN_PASSWORD"`
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

type MetricsConfig struct {
	Prefix string `env:"METRICS_PREFIX" envDefault:"compugear"`
}

// Load reads configs/.env when present and parses the environment into Config.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Server.GinMode == "release" && cfg.JWT.Secret == "default_super_secret_key" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required in release mode")
	}
	cfg.Server.PublicBaseURL = strings.TrimRight(cfg.Server.PublicBaseURL, "/")

	return cfg, nil
}

// DSN builds the postgres connection URL.
func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Name + "?sslmode=" + d.SSLMode
}
