package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/auth_service/internal/ratelimit"
	"github.com/Skotchmaster/auth_service/internal/session"
)

func flags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func clearEnv(t *testing.T) {
	for _, k := range []string{"APP_ENV", "JWT_SECRET", "HTTP_ADDR", "RATE_LIMIT_BACKEND", "RATE_LIMIT_CLEANUP_INTERVAL", "RATE_LIMIT_RETENTION", "REDIS_ADDR", "COOKIE_SECURE"} {
		t.Setenv(k, "")
	}
}

func TestLoad_DevelopmentDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(flags(t))
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, []byte(DevJWTSecret), cfg.JWTSecret)
	assert.Equal(t, session.DefaultRevalidateInterval, cfg.RevalidateInterval)
	assert.False(t, cfg.CookieSecure)
	assert.Equal(t, BackendMemory, cfg.RateLimit.Backend)
	assert.Equal(t, ratelimit.DefaultCleanupInterval, cfg.RateLimit.CleanupInterval)
	assert.Contains(t, cfg.Warnings, "JWT_SECRET is not set, using the development secret")
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", EnvProduction)

	_, err := Load(flags(t))
	require.ErrorIs(t, err, ErrMissingSecret)

	t.Setenv("JWT_SECRET", "s3cr3t")
	cfg, err := Load(flags(t))
	require.NoError(t, err)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, []byte("s3cr3t"), cfg.JWTSecret)
}

func TestLoad_FileAndFlags(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":7000")

	path := filepath.Join(t.TempDir(), "auth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_addr: ":9000"
revalidate_interval: 30s
rate_limit:
  cleanup_interval: 2m
  policies:
    login:
      max: 10
    register:
      interval: 30m
`), 0o600))

	cfg, err := Load(flags(t, "--config", path, "--log-level", "debug"))
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.RevalidateInterval)
	assert.Equal(t, 2*time.Minute, cfg.RateLimit.CleanupInterval)
	assert.Equal(t, time.Hour, cfg.RateLimit.Retention)

	policies, err := cfg.Policies()
	require.NoError(t, err)
	assert.Equal(t, 10, policies[ratelimit.ScopeLogin].Max)
	assert.Equal(t, 15*time.Minute, policies[ratelimit.ScopeLogin].Interval)
	assert.Equal(t, 30*time.Minute, policies[ratelimit.ScopeRegister].Interval)

	cfg, err = Load(flags(t, "--config", path, "--http-addr", ":9100"))
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.HTTPAddr)
}

func TestLoad_RejectsBadRateLimit(t *testing.T) {
	clearEnv(t)

	_, err := Load(flags(t, "--ratelimit-backend", "redis"))
	assert.ErrorContains(t, err, "REDIS_ADDR")

	_, err = Load(flags(t, "--ratelimit-backend", "carrier-pigeon"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "auth.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rate_limit:\n  policies:\n    bogus:\n      max: 1\n"), 0o600))
	_, err = Load(flags(t, "--config", path))
	assert.ErrorIs(t, err, ratelimit.ErrInvalidPolicy)
}
