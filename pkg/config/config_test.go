package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenConfig mirrors the shapes the auth service loads: TTL strings that
// are parsed later, comma lists, durations and rate limits.
type tokenConfig struct {
	Port          int           `env:"TEST_CFG_HTTP_PORT" envDefault:"8080"`
	AccessTTL     string        `env:"TEST_CFG_JWT_EXPIRATION" envDefault:"15m"`
	RefreshTTL    string        `env:"TEST_CFG_REFRESH_TOKEN_EXPIRATION" envDefault:"7d"`
	SweepInterval time.Duration `env:"TEST_CFG_SESSION_SWEEP_INTERVAL" envDefault:"1h"`
	RateLimitRPS  float64       `env:"TEST_CFG_AUTH_RATE_LIMIT_RPS" envDefault:"5"`
	Origins       []string      `env:"TEST_CFG_CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`
	Brokers       []string      `env:"TEST_CFG_KAFKA_BROKERS" envSeparator:","`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg tokenConfig
	err := Load(&cfg)

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "15m", cfg.AccessTTL)
	assert.Equal(t, "7d", cfg.RefreshTTL)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.Equal(t, 5.0, cfg.RateLimitRPS)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Origins)
	assert.Empty(t, cfg.Brokers)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_HTTP_PORT", "9090")
	t.Setenv("TEST_CFG_REFRESH_TOKEN_EXPIRATION", "30d")
	t.Setenv("TEST_CFG_SESSION_SWEEP_INTERVAL", "15m")
	t.Setenv("TEST_CFG_CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("TEST_CFG_KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")

	var cfg tokenConfig
	err := Load(&cfg)

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "30d", cfg.RefreshTTL)
	assert.Equal(t, 15*time.Minute, cfg.SweepInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Origins)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers)
}

type secretConfig struct {
	AccessSecret  string `env:"TEST_CFG_JWT_SECRET,required"`
	RefreshSecret string `env:"TEST_CFG_REFRESH_TOKEN_SECRET,required"`
}

func TestLoad_RequiredSecretMissing(t *testing.T) {
	t.Setenv("TEST_CFG_JWT_SECRET", "access")

	var cfg secretConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
	assert.Contains(t, err.Error(), "TEST_CFG_REFRESH_TOKEN_SECRET")
}

func TestLoad_RequiredSecretsPresent(t *testing.T) {
	t.Setenv("TEST_CFG_JWT_SECRET", "access")
	t.Setenv("TEST_CFG_REFRESH_TOKEN_SECRET", "refresh")

	var cfg secretConfig
	err := Load(&cfg)

	require.NoError(t, err)
	assert.Equal(t, "access", cfg.AccessSecret)
	assert.Equal(t, "refresh", cfg.RefreshSecret)
}

func TestLoad_InvalidType(t *testing.T) {
	for name, env := range map[string]string{
		"port":     "TEST_CFG_HTTP_PORT",
		"interval": "TEST_CFG_SESSION_SWEEP_INTERVAL",
		"rate":     "TEST_CFG_AUTH_RATE_LIMIT_RPS",
	} {
		t.Run(name, func(t *testing.T) {
			t.Setenv(env, "not-a-number")

			var cfg tokenConfig
			err := Load(&cfg)

			require.Error(t, err)
			assert.Contains(t, err.Error(), "parse config")
		})
	}
}

func TestLoadFrom_UsesGivenEnvironment(t *testing.T) {
	t.Setenv("TEST_CFG_HTTP_PORT", "1111")

	var cfg tokenConfig
	err := LoadFrom(&cfg, map[string]string{
		"TEST_CFG_HTTP_PORT":      "2222",
		"TEST_CFG_JWT_EXPIRATION": "5m",
	})

	require.NoError(t, err)
	assert.Equal(t, 2222, cfg.Port)
	assert.Equal(t, "5m", cfg.AccessTTL)
	assert.Equal(t, "7d", cfg.RefreshTTL)
}

func TestLoadFrom_RequiredSecretMissing(t *testing.T) {
	t.Setenv("TEST_CFG_JWT_SECRET", "from-process")
	t.Setenv("TEST_CFG_REFRESH_TOKEN_SECRET", "from-process")

	var cfg secretConfig
	err := LoadFrom(&cfg, map[string]string{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEST_CFG_JWT_SECRET")
}
