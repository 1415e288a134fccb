package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:                 "8080",
		Env:                  "production",
		DBDriver:             "postgres",
		DBPassword:           "secure-password",
		DBSSLMode:            "require",
		JWTSecret:            "secure-secret-at-least-32-chars-long",
		SessionTTL:           24 * time.Hour,
		ImageMaxUploadSizeMB: 10,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"valid production", func(_ *Config) {}, false},
		{"production with disabled SSL", func(c *Config) { c.DBSSLMode = "disable" }, true},
		{"production with default secret", func(c *Config) { c.JWTSecret = DefaultJWTSecret }, true},
		{"production with short secret", func(c *Config) { c.JWTSecret = "short" }, true},
		{"production with sqlite", func(c *Config) { c.DBDriver = "sqlite" }, true},
		{"production with weak db password", func(c *Config) { c.DBPassword = "password" }, true},
		{"development with sqlite", func(c *Config) { c.Env = "development"; c.DBDriver = "sqlite"; c.DBSSLMode = "" }, false},
		{"unknown driver", func(c *Config) { c.DBDriver = "mongo" }, true},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"zero session ttl", func(c *Config) { c.SessionTTL = 0 }, true},
		{"zero upload size", func(c *Config) { c.ImageMaxUploadSizeMB = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_DefaultsAndEnvOverrides(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_DRIVER", "  SQLite ")
	t.Setenv("SESSION_TTL", "2h")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, 2*time.Hour, c.SessionTTL)
	assert.Equal(t, 30*time.Minute, c.CachePostTTL)
	assert.Equal(t, "8080", c.Port)
	assert.False(t, c.IsProduction())
}
