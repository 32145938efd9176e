package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/formwise/authcore/cache"
	"github.com/formwise/authcore/internal/rate"
	"github.com/formwise/authcore/jwt"
	"github.com/formwise/authcore/password"
	"github.com/formwise/authcore/permission"
	"github.com/formwise/authcore/session"
)

const tracerName = "github.com/formwise/authcore"

// Builder assembles an [Engine]. Repositories are mandatory; every other
// collaborator has a default derived from the Config and the Redis client.
type Builder struct {
	config     Config
	redis      redis.UniversalClient
	cacheRedis redis.UniversalClient

	users    UserRepository
	roles    RoleRepository
	sessions SessionStore
	cache    cache.Store
	mailer   Mailer
	hasher   PasswordHasher
	catalog  *permission.Catalog

	logger     zerolog.Logger
	registerer prometheus.Registerer
	auditSink  AuditSink
	now        func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		logger: zerolog.Nop(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis selects Redis-backed sessions, the shared cache tier and the
// login throttle. Without it the Engine runs on in-memory stores only.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCacheRedis points the shared cache tier at its own client, typically
// a separate logical database. It defaults to the WithRedis client.
func (b *Builder) WithCacheRedis(client redis.UniversalClient) *Builder {
	b.cacheRedis = client
	return b
}

func (b *Builder) WithUserRepository(r UserRepository) *Builder {
	b.users = r
	return b
}

func (b *Builder) WithRoleRepository(r RoleRepository) *Builder {
	b.roles = r
	return b
}

func (b *Builder) WithSessionStore(s SessionStore) *Builder {
	b.sessions = s
	return b
}

func (b *Builder) WithCache(c cache.Store) *Builder {
	b.cache = c
	return b
}

func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

// WithCatalog replaces the built-in role table. The catalog is frozen by
// Build.
func (b *Builder) WithCatalog(c *permission.Catalog) *Builder {
	b.catalog = c
	return b
}

func (b *Builder) WithLogger(l zerolog.Logger) *Builder {
	b.logger = l
	return b
}

// WithMetrics registers the Engine collectors with reg.
func (b *Builder) WithMetrics(reg prometheus.Registerer) *Builder {
	b.registerer = reg
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the time source of the Engine and the stores it
// creates.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.users == nil {
		return nil, errors.New("user repository required")
	}
	if b.roles == nil {
		return nil, errors.New("role repository required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	log := b.logger.With().Str("component", "authcore").Logger()

	codecOpts := []jwt.Option{}
	if b.now != nil {
		codecOpts = append(codecOpts, jwt.WithNowTime(b.now))
	}
	codec, err := jwt.NewCodec(cfg.codecConfig(), codecOpts...)
	if err != nil {
		return nil, fmt.Errorf("token codec: %w", err)
	}

	metrics := NewMetrics(b.registerer)

	sessions := b.sessions
	if sessions == nil {
		if b.redis != nil {
			sessions = session.NewRedisStore(b.redis, cfg.Redis.KeyPrefix, cfg.Auth.RefreshExpiresIn)
		} else {
			sessions = session.NewMemoryStore(cfg.Auth.RefreshExpiresIn, session.WithClock(b.now))
		}
	}

	store := b.cache
	if store == nil {
		var shared redis.UniversalClient
		if cfg.Redis.CacheEnabled {
			shared = b.cacheRedis
			if shared == nil {
				shared = b.redis
			}
		}
		store = cache.New(cfg.cacheConfig(), shared,
			cache.WithLogger(log),
			cache.WithObserver(metrics),
		)
	}

	hasher := b.hasher
	if hasher == nil {
		bc, err := password.NewBcrypt(cfg.Auth.BcryptCost)
		if err != nil {
			return nil, err
		}
		hasher = bc
	}

	catalog := b.catalog
	if catalog == nil {
		catalog = permission.DefaultCatalog()
	}
	catalog.Freeze()

	mailer := b.mailer
	if mailer == nil {
		mailer = nopMailer{}
	}

	sink := b.auditSink
	if sink == nil {
		sink = NewLogSink(b.logger)
	}

	engine := &Engine{
		config:   cfg,
		codec:    codec,
		users:    b.users,
		roles:    b.roles,
		sessions: sessions,
		cache:    store,
		hasher:   hasher,
		mailer:   mailer,
		guard:    permission.NewGuard(catalog),
		metrics:  metrics,
		log:      log,
		tracer:   otel.Tracer(tracerName),
		now:      now,
	}
	if b.redis != nil {
		engine.limiter = rate.New(b.redis, rate.Config{
			Prefix:           cfg.Redis.KeyPrefix,
			MaxLoginAttempts: cfg.Auth.LoginMaxAttempts,
			Cooldown:         cfg.Auth.LoginCooldown,
			EnableIPThrottle: cfg.Auth.LoginIPThrottle,
		})
	}
	engine.audit = newAuditDispatcher(cfg.Audit, sink, metrics, log)

	b.built = true
	return engine, nil
}
