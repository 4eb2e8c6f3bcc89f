package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("KAFKA_BROKERS", " broker-1:9092, ,broker-2:9092 ")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file:ledger.db", cfg.Database.URL)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 5*time.Minute, cfg.Redis.DashboardCacheTTL)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "ledger.audit", cfg.Kafka.AuditTopic)
	assert.False(t, cfg.Sheets.Enabled())
}

func TestLoadFromEnvFile(t *testing.T) {
	for _, key := range []string{"JWT_SECRET", "DATABASE_DRIVER", "DATABASE_URL", "JWT_TTL"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	path := filepath.Join(t.TempDir(), ".env")
	content := "JWT_SECRET=from-file\nDATABASE_DRIVER=postgres\nDATABASE_URL=postgres://ledger@localhost/ledger\nJWT_TTL=30m\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Cleanup(func() {
		for _, key := range []string{"JWT_SECRET", "DATABASE_DRIVER", "DATABASE_URL", "JWT_TTL"} {
			_ = os.Unsetenv(key)
		}
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:    ServerConfig{Port: "8080"},
			Database:  DatabaseConfig{Driver: "sqlite", URL: ":memory:"},
			Auth:      AuthConfig{JWTSecret: "x", TokenTTL: time.Hour},
			Reporting: ReportingConfig{CronSchedule: "0 20 * * *", Timezone: "UTC"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := map[string]func(c *Config){
		"missing secret":   func(c *Config) { c.Auth.JWTSecret = "" },
		"unknown driver":   func(c *Config) { c.Database.Driver = "mysql" },
		"missing url":      func(c *Config) { c.Database.URL = "" },
		"half admin":       func(c *Config) { c.Auth.AdminUsername = "root" },
		"bad timezone":     func(c *Config) { c.Reporting.Timezone = "Mars/Olympus" },
		"kafka no topic":   func(c *Config) { c.Kafka.Brokers = []string{"b:9092"} },
		"non positive ttl": func(c *Config) { c.Auth.TokenTTL = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}

	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("JWT_SECRET", "x")
	t.Setenv("JWT_TTL", "forever")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
