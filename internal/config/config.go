package config

import (
	"fmt"
	"time"

	"github.com/wnsxk2/jt-log/internal/auth"
	pkgconfig "github.com/wnsxk2/jt-log/pkg/config"
)

// Session store backends.
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// Placeholder secrets accepted only in development.
const (
	devAccessSecret  = "dev-access-secret-change-me"
	devRefreshSecret = "dev-refresh-secret-change-me"
)

const minSecretLength = 32

// Config holds all configuration for the auth service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// Storage. postgres keeps identities and sessions in PostgreSQL; redis
	// keeps identities in PostgreSQL and sessions in Redis; memory keeps
	// everything in process and is meant for local runs.
	StoreBackend string `env:"STORE_BACKEND" envDefault:"postgres"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"jtlog"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"jtlog_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"jtlog"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka. Events are not published when no brokers are configured.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// Tokens
	JWTSecret              string `env:"JWT_SECRET" envDefault:"dev-access-secret-change-me"`
	JWTExpiration          string `env:"JWT_EXPIRATION" envDefault:"15m"`
	RefreshTokenSecret     string `env:"REFRESH_TOKEN_SECRET" envDefault:"dev-refresh-secret-change-me"`
	RefreshTokenExpiration string `env:"REFRESH_TOKEN_EXPIRATION" envDefault:"7d"`

	// Expired sessions are swept at this interval; 0 disables the sweeper.
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1h"`

	// Per-IP limit on sign-in and sign-up.
	AuthRateLimitRPS   float64 `env:"AUTH_RATE_LIMIT_RPS" envDefault:"5"`
	AuthRateLimitBurst int     `env:"AUTH_RATE_LIMIT_BURST" envDefault:"10"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging threshold (0 = disabled)
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`

	// Parsed from the expiration strings by Load.
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load auth config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom reads configuration from environ instead of the process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadFrom(cfg, environ); err != nil {
		return nil, fmt.Errorf("load auth config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	switch c.StoreBackend {
	case StorePostgres, StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q: want %s, %s or %s", c.StoreBackend, StorePostgres, StoreRedis, StoreMemory)
	}

	var err error
	if c.AccessTTL, err = auth.ParseTTL(c.JWTExpiration); err != nil {
		return fmt.Errorf("JWT_EXPIRATION: %w", err)
	}
	if c.RefreshTTL, err = auth.ParseTTL(c.RefreshTokenExpiration); err != nil {
		return fmt.Errorf("REFRESH_TOKEN_EXPIRATION: %w", err)
	}

	if c.JWTSecret == "" || c.RefreshTokenSecret == "" {
		return fmt.Errorf("JWT_SECRET and REFRESH_TOKEN_SECRET must not be empty")
	}
	if c.JWTSecret == c.RefreshTokenSecret {
		return fmt.Errorf("JWT_SECRET and REFRESH_TOKEN_SECRET must differ")
	}

	if c.SessionSweepInterval < 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must not be negative")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0 and 1, got %v", c.OTELSampleRate)
	}

	// In non-development environments, require explicitly set, strong secrets.
	if !c.IsDevelopment() {
		if c.JWTSecret == devAccessSecret {
			return fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if c.RefreshTokenSecret == devRefreshSecret {
			return fmt.Errorf("REFRESH_TOKEN_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < minSecretLength {
			return fmt.Errorf("JWT_SECRET must be at least %d characters long, got %d", minSecretLength, len(c.JWTSecret))
		}
		if len(c.RefreshTokenSecret) < minSecretLength {
			return fmt.Errorf("REFRESH_TOKEN_SECRET must be at least %d characters long, got %d", minSecretLength, len(c.RefreshTokenSecret))
		}
		if c.StoreBackend == StoreMemory {
			return fmt.Errorf("STORE_BACKEND %q is only allowed in development", StoreMemory)
		}
	}

	return nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the service runs in production. Cookies are
// marked Secure only in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AccessTokenProfile returns the signing profile for access tokens.
func (c *Config) AccessTokenProfile() auth.TokenProfile {
	return auth.TokenProfile{Secret: c.JWTSecret, TTL: c.AccessTTL}
}

// RefreshTokenProfile returns the signing profile for refresh tokens.
func (c *Config) RefreshTokenProfile() auth.TokenProfile {
	return auth.TokenProfile{Secret: c.RefreshTokenSecret, TTL: c.RefreshTTL}
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}
