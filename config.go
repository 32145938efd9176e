package authcore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/formwise/authcore/cache"
	"github.com/formwise/authcore/jwt"
)

// Config is the full runtime configuration, populated from the environment by
// [LoadConfig].
type Config struct {
	Addr         string `env:"APP_ADDR, default=:8080"`
	LogLevel     string `env:"LOG_LEVEL, default=info"`
	DatabaseURL  string `env:"DATABASE_URL"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	Auth  AuthConfig
	Redis RedisConfig
	Cache CacheConfig
	HTTP  HTTPConfig
	Audit AuditConfig `env:", prefix=AUDIT_"`
}

// AuthConfig holds token secrets and lifetimes, one pair per token purpose.
type AuthConfig struct {
	JWTSecret             string        `env:"AUTH_JWT_SECRET"`
	JWTExpiresIn          time.Duration `env:"AUTH_JWT_TOKEN_EXPIRES_IN, default=15m"`
	RefreshSecret         string        `env:"AUTH_REFRESH_SECRET"`
	RefreshExpiresIn      time.Duration `env:"AUTH_REFRESH_TOKEN_EXPIRES_IN, default=240h"`
	ConfirmEmailSecret    string        `env:"AUTH_CONFIRM_EMAIL_SECRET"`
	ConfirmEmailExpiresIn time.Duration `env:"AUTH_CONFIRM_EMAIL_TOKEN_EXPIRES_IN, default=24h"`
	ForgotSecret          string        `env:"AUTH_FORGOT_SECRET"`
	ForgotExpiresIn       time.Duration `env:"AUTH_FORGOT_TOKEN_EXPIRES_IN, default=30m"`
	Leeway                time.Duration `env:"AUTH_TOKEN_LEEWAY, default=0s"`
	BcryptCost            int           `env:"AUTH_BCRYPT_COST, default=10"`
	LoginMaxAttempts      int           `env:"AUTH_LOGIN_MAX_ATTEMPTS, default=10"`
	LoginCooldown         time.Duration `env:"AUTH_LOGIN_COOLDOWN, default=15m"`
	LoginIPThrottle       bool          `env:"AUTH_LOGIN_IP_THROTTLE, default=false"`
}

// RedisConfig describes the Redis deployment shared by sessions, the cache
// shared tier and the login throttle. An empty URL selects in-memory stores.
type RedisConfig struct {
	URL          string `env:"REDIS_URL"`
	Password     string `env:"REDIS_PASSWORD"`
	CacheDB      int    `env:"REDIS_CACHE_DB, default=0"`
	CacheEnabled bool   `env:"REDIS_CACHE_ENABLED, default=true"`
	KeyPrefix    string `env:"REDIS_KEY_PREFIX, default=authcore"`
}

type CacheConfig struct {
	TTL       time.Duration `env:"CACHE_TTL, default=60s"`
	MaxItems  int           `env:"CACHE_MAX_ITEMS, default=1000"`
	Namespace string        `env:"CACHE_NAMESPACE, default=authcore:cache:"`
}

type HTTPConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS, default=*"`
	RateLimit      int      `env:"HTTP_RATE_LIMIT, default=100"`
}

// DefaultConfig returns the configuration LoadConfig produces for an empty
// environment. Secrets are left blank and must be filled in.
func DefaultConfig() Config {
	return Config{
		Addr:     ":8080",
		LogLevel: "info",
		Auth: AuthConfig{
			JWTExpiresIn:          15 * time.Minute,
			RefreshExpiresIn:      240 * time.Hour,
			ConfirmEmailExpiresIn: 24 * time.Hour,
			ForgotExpiresIn:       30 * time.Minute,
			BcryptCost:            10,
			LoginMaxAttempts:      10,
			LoginCooldown:         15 * time.Minute,
		},
		Redis: RedisConfig{
			CacheEnabled: true,
			KeyPrefix:    "authcore",
		},
		Cache: CacheConfig{
			TTL:       60 * time.Second,
			MaxItems:  1000,
			Namespace: "authcore:cache:",
		},
		HTTP: HTTPConfig{
			AllowedOrigins: []string{"*"},
			RateLimit:      100,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
	}
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig(ctx context.Context) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return LoadConfigFrom(ctx, envconfig.OsLookuper())
}

// LoadConfigFrom populates and validates a Config from l.
func LoadConfigFrom(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants the Engine relies on.
func (c Config) Validate() error {
	if _, err := jwt.NewCodec(c.codecConfig()); err != nil {
		return fmt.Errorf("auth config: %w", err)
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return errors.New("auth config: AUTH_BCRYPT_COST must be within 4..31")
	}
	if c.Auth.LoginMaxAttempts <= 0 {
		return errors.New("auth config: AUTH_LOGIN_MAX_ATTEMPTS must be > 0")
	}
	if c.Auth.LoginCooldown <= 0 {
		return errors.New("auth config: AUTH_LOGIN_COOLDOWN must be > 0")
	}
	if c.Cache.TTL <= 0 {
		return errors.New("cache config: CACHE_TTL must be > 0")
	}
	if c.Cache.MaxItems <= 0 {
		return errors.New("cache config: CACHE_MAX_ITEMS must be > 0")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("audit config: AUDIT_BUFFER_SIZE must be > 0 when audit is enabled")
	}
	return nil
}

func (c Config) codecConfig() jwt.Config {
	return jwt.Config{
		Access:       jwt.Purpose{Secret: []byte(c.Auth.JWTSecret), TTL: c.Auth.JWTExpiresIn},
		Refresh:      jwt.Purpose{Secret: []byte(c.Auth.RefreshSecret), TTL: c.Auth.RefreshExpiresIn},
		ConfirmEmail: jwt.Purpose{Secret: []byte(c.Auth.ConfirmEmailSecret), TTL: c.Auth.ConfirmEmailExpiresIn},
		Forgot:       jwt.Purpose{Secret: []byte(c.Auth.ForgotSecret), TTL: c.Auth.ForgotExpiresIn},
		Leeway:       c.Auth.Leeway,
	}
}

func (c Config) cacheConfig() cache.Config {
	return cache.Config{
		TTL:       c.Cache.TTL,
		MaxItems:  c.Cache.MaxItems,
		Namespace: c.Cache.Namespace,
	}
}
