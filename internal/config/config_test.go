package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_ExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "s3cret")
	path := writeConfig(t, `
server:
  port: 9090
admin:
  login_code: abc
  jwt_secret: ${TEST_JWT_SECRET}
relay:
  channel: news
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.Admin.JWTSecret)
	assert.Equal(t, "news", cfg.Relay.Channel)
	assert.Equal(t, "general", cfg.Relay.FallbackChannel)
	assert.Equal(t, 5*time.Second, cfg.Relay.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.Relay.ErrorBackoff)
	assert.Equal(t, 100, cfg.Leaderboard.DefaultLimit)
	assert.Equal(t, "!", cfg.Discord.Prefix)
	assert.Equal(t, "Game Admin", cfg.Discord.AdminRole)
	assert.EqualValues(t, 100, cfg.Discord.LinkReward)
	assert.Equal(t, StoreDriverRedis, cfg.Store.Driver)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"unknown driver", func(c *Config) { c.Store.Driver = "etcd" }, false},
		{"missing secret", func(c *Config) { c.Admin.JWTSecret = "" }, false},
		{"missing login code", func(c *Config) { c.Admin.LoginCode = "" }, false},
		{"discord without token", func(c *Config) { c.Discord.Enabled = true }, false},
		{"limit above max", func(c *Config) { c.Leaderboard.DefaultLimit = 5000 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Admin.JWTSecret = "secret"
			cfg.Admin.LoginCode = "code"
			tt.mutate(cfg)
			if tt.ok {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}
