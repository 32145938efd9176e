package authcore

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func secretsEnv() map[string]string {
	return map[string]string{
		"AUTH_JWT_SECRET":           "a",
		"AUTH_REFRESH_SECRET":       "b",
		"AUTH_CONFIRM_EMAIL_SECRET": "c",
		"AUTH_FORGOT_SECRET":        "d",
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfigFrom(context.Background(), envconfig.MapLookuper(secretsEnv()))
	require.NoError(t, err)

	want := DefaultConfig()
	want.Auth.JWTSecret = "a"
	want.Auth.RefreshSecret = "b"
	want.Auth.ConfirmEmailSecret = "c"
	want.Auth.ForgotSecret = "d"
	assert.Equal(t, want, cfg)
}

func TestLoadConfigOverrides(t *testing.T) {
	env := secretsEnv()
	env["AUTH_JWT_TOKEN_EXPIRES_IN"] = "5m"
	env["CACHE_NAMESPACE"] = "svc:"
	env["CORS_ALLOWED_ORIGINS"] = "https://a.example,https://b.example"
	env["REDIS_CACHE_ENABLED"] = "false"
	env["AUDIT_BUFFER_SIZE"] = "8"

	cfg, err := LoadConfigFrom(context.Background(), envconfig.MapLookuper(env))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Auth.JWTExpiresIn)
	assert.Equal(t, "svc:", cfg.Cache.Namespace)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.AllowedOrigins)
	assert.False(t, cfg.Redis.CacheEnabled)
	assert.Equal(t, 8, cfg.Audit.BufferSize)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing secret", func(c *Config) { c.Auth.ForgotSecret = "" }},
		{"shared secret", func(c *Config) { c.Auth.RefreshSecret = c.Auth.JWTSecret }},
		{"zero ttl", func(c *Config) { c.Auth.JWTExpiresIn = 0 }},
		{"bcrypt cost", func(c *Config) { c.Auth.BcryptCost = 40 }},
		{"login attempts", func(c *Config) { c.Auth.LoginMaxAttempts = 0 }},
		{"cache ttl", func(c *Config) { c.Cache.TTL = 0 }},
		{"audit buffer", func(c *Config) { c.Audit.BufferSize = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Auth.JWTSecret, cfg.Auth.RefreshSecret = "a", "b"
			cfg.Auth.ConfirmEmailSecret, cfg.Auth.ForgotSecret = "c", "d"
			require.NoError(t, cfg.Validate())

			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
