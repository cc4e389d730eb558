package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/Skotchmaster/auth_service/internal/ratelimit"
	"github.com/Skotchmaster/auth_service/internal/session"
	pkgconfig "github.com/Skotchmaster/auth_service/pkg/config"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	// DevJWTSecret is only ever used outside production.
	DevJWTSecret = "development-secret-change-in-production"

	BackendMemory = "memory"
	BackendRedis  = "redis"
)

var ErrMissingSecret = errors.New("JWT_SECRET must be set in production")

type Config struct {
	Env      string
	HTTPAddr string
	LogLevel string

	DatabaseURL string

	JWTSecret          []byte
	RevalidateInterval time.Duration
	CookieSecure       bool

	AppURL    string
	FromEmail string

	KafkaBrokers []string

	RedisAddr     string
	RedisPassword string

	RateLimit RateLimit

	// Warnings collects non-fatal problems found while loading, to be logged
	// once a logger exists.
	Warnings []string
}

type RateLimit struct {
	Backend         string                    `koanf:"backend"`
	CleanupInterval time.Duration             `koanf:"cleanup_interval"`
	Retention       time.Duration             `koanf:"retention"`
	Policies        map[string]PolicyOverride `koanf:"policies"`
}

type PolicyOverride struct {
	Interval time.Duration `koanf:"interval"`
	Max      int           `koanf:"max"`
}

func (c *Config) Production() bool { return c.Env == EnvProduction }

// Policies merges the configured overrides over the defaults.
func (c *Config) Policies() (map[string]ratelimit.Policy, error) {
	out := ratelimit.DefaultPolicies()
	for scope, o := range c.RateLimit.Policies {
		p, ok := out[scope]
		if !ok {
			return nil, fmt.Errorf("%w: unknown scope %q", ratelimit.ErrInvalidPolicy, scope)
		}
		if o.Interval > 0 {
			p.Interval = o.Interval
		}
		if o.Max > 0 {
			p.Max = o.Max
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		out[scope] = p
	}
	return out, nil
}

// BindFlags declares the flags Load overlays on top of the file. Defaults are
// empty so an unset flag never masks the environment or the file.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file")
	fs.String("env", "", "runtime environment (development|production)")
	fs.String("http-addr", "", "HTTP listen address")
	fs.String("log-level", "", "log level (debug|info|warn|error)")
	fs.String("database-url", "", "postgres DSN")
	fs.String("ratelimit-backend", "", "rate limiter backend (memory|redis)")
}

// Load reads .env, the environment, the optional YAML file named by --config
// and finally the changed flags, each layer overriding the previous one.
func Load(fs *pflag.FlagSet) (*Config, error) {
	var warnings []string
	if err := godotenv.Load(".env"); err != nil {
		warnings = append(warnings, "Notice: .env file not found, using system environment variables")
	}

	cfg := &Config{
		Env:                pkgconfig.EnvDefault("APP_ENV", EnvDevelopment),
		HTTPAddr:           pkgconfig.EnvDefault("HTTP_ADDR", ":8080"),
		LogLevel:           pkgconfig.EnvDefault("LOG_LEVEL", "info"),
		DatabaseURL:        pkgconfig.EnvDefault("DATABASE_URL", ""),
		JWTSecret:          []byte(pkgconfig.EnvDefault("JWT_SECRET", "")),
		RevalidateInterval: pkgconfig.EnvDurationDefault("SESSION_REVALIDATE_INTERVAL", session.DefaultRevalidateInterval),
		AppURL:             pkgconfig.EnvDefault("APP_URL", "http://localhost:3000"),
		FromEmail:          pkgconfig.EnvDefault("FROM_EMAIL", "dev@example.com"),
		KafkaBrokers:       pkgconfig.CSV(pkgconfig.EnvDefault("KAFKA_BROKERS", "")),
		RedisAddr:          pkgconfig.EnvDefault("REDIS_ADDR", ""),
		RedisPassword:      pkgconfig.EnvDefault("REDIS_PASSWORD", ""),
		RateLimit: RateLimit{
			Backend:         pkgconfig.EnvDefault("RATE_LIMIT_BACKEND", BackendMemory),
			CleanupInterval: pkgconfig.EnvDurationDefault("RATE_LIMIT_CLEANUP_INTERVAL", ratelimit.DefaultCleanupInterval),
			Retention:       pkgconfig.EnvDurationDefault("RATE_LIMIT_RETENTION", ratelimit.DefaultRetention),
		},
	}

	k := koanf.New(".")
	if fs != nil {
		if path, _ := fs.GetString("config"); path != "" {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
		if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, flagKey), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}
	if err := overlay(k, cfg); err != nil {
		return nil, err
	}

	cfg.CookieSecure = pkgconfig.EnvBoolDefault("COOKIE_SECURE", cfg.Production())

	if len(cfg.JWTSecret) == 0 {
		if cfg.Production() {
			return nil, ErrMissingSecret
		}
		cfg.JWTSecret = []byte(DevJWTSecret)
		warnings = append(warnings, "JWT_SECRET is not set, using the development secret")
	}

	switch cfg.RateLimit.Backend {
	case BackendMemory:
	case BackendRedis:
		if err := pkgconfig.RequireNonEmpty(cfg.RedisAddr, "REDIS_ADDR"); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", cfg.RateLimit.Backend)
	}
	if _, err := cfg.Policies(); err != nil {
		return nil, err
	}

	cfg.Warnings = warnings
	return cfg, nil
}

// LogWarnings reports what Load could not report itself.
func (c *Config) LogWarnings(l *slog.Logger) {
	for _, w := range c.Warnings {
		l.Warn("config_warning", "message", w)
	}
}

// flagKey maps --http-addr to the http_addr file key. Untouched flags are
// skipped so their empty defaults never reach the config.
func flagKey(f *pflag.Flag) (string, interface{}) {
	if !f.Changed || f.Name == "config" {
		return "", nil
	}
	if f.Name == "ratelimit-backend" {
		return "rate_limit.backend", f.Value.String()
	}
	return strings.ReplaceAll(f.Name, "-", "_"), f.Value.String()
}

func overlay(k *koanf.Koanf, cfg *Config) error {
	setString := func(key string, dst *string) {
		if k.Exists(key) {
			*dst = k.String(key)
		}
	}
	setString("env", &cfg.Env)
	setString("http_addr", &cfg.HTTPAddr)
	setString("log_level", &cfg.LogLevel)
	setString("database_url", &cfg.DatabaseURL)
	setString("app_url", &cfg.AppURL)
	setString("from_email", &cfg.FromEmail)
	setString("redis_addr", &cfg.RedisAddr)

	if k.Exists("revalidate_interval") {
		cfg.RevalidateInterval = k.Duration("revalidate_interval")
	}
	if k.Exists("kafka_brokers") {
		cfg.KafkaBrokers = k.Strings("kafka_brokers")
	}

	if k.Exists("rate_limit") {
		rl := cfg.RateLimit
		if err := k.Unmarshal("rate_limit", &rl); err != nil {
			return fmt.Errorf("decode rate_limit: %w", err)
		}
		cfg.RateLimit = rl
	}
	return nil
}
