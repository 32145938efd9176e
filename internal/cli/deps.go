package cli

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/formwise/authcore"
	"github.com/formwise/authcore/internal/stores/memory"
	"github.com/formwise/authcore/internal/stores/postgres"
)

// repositories holds the account stores and their cleanup.
type repositories struct {
	users authcore.UserRepository
	roles authcore.RoleRepository
	db    *gorm.DB
}

func (r *repositories) close() {
	if r.db != nil {
		_ = postgres.Close(r.db)
	}
}

func (r *repositories) ping(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	return postgres.Ping(ctx, r.db)
}

// openRepositories uses Postgres when DATABASE_URL is set and in-memory
// stores otherwise.
func openRepositories(ctx context.Context, cfg authcore.Config, log zerolog.Logger) (*repositories, error) {
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set, accounts are kept in memory")
		return &repositories{users: memory.NewUsers(), roles: memory.NewRoles()}, nil
	}

	db, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &repositories{users: postgres.NewUsers(db), roles: postgres.NewRoles(db), db: db}, nil
}

// redisClients returns the session client and the cache client. Both are nil
// when REDIS_URL is empty; the cache client is nil when caching is disabled.
func redisClients(ctx context.Context, cfg authcore.Config) (redis.UniversalClient, redis.UniversalClient, error) {
	if cfg.Redis.URL == "" {
		return nil, nil, nil
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}

	if !cfg.Redis.CacheEnabled || cfg.Redis.CacheDB == opts.DB {
		return client, nil, nil
	}
	cacheOpts := *opts
	cacheOpts.DB = cfg.Redis.CacheDB
	return client, redis.NewClient(&cacheOpts), nil
}
