package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/formwise/authcore"
	"github.com/formwise/authcore/internal/httpapi"
	"github.com/formwise/authcore/internal/mail"
	"github.com/formwise/authcore/internal/seed"
	"github.com/formwise/authcore/internal/stores/postgres"
	"github.com/formwise/authcore/internal/telemetry"
	"github.com/formwise/authcore/password"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		migrate bool
		doSeed  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), root, migrate, doSeed)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply database migrations before serving")
	cmd.Flags().BoolVar(&doSeed, "seed", false, "create the built-in roles and demo accounts before serving")
	return cmd
}

func runServe(ctx context.Context, root *rootOptions, migrate, doSeed bool) error {
	cfg, log, err := root.setup(ctx)
	if err != nil {
		return err
	}
	banner()

	shutdownTracing, err := telemetry.Init(ctx, appName, cfg.OTLPEndpoint, log)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	repos, err := openRepositories(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer repos.close()

	if migrate && repos.db != nil {
		if err := postgres.Migrate(ctx, repos.db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info().Msg("migrations applied")
	}

	hasher, err := password.NewBcrypt(cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}
	// The in-memory stores start empty, so they are always seeded.
	if doSeed || repos.db == nil {
		if err := seed.Run(ctx, repos.users, repos.roles, hasher, log); err != nil {
			return err
		}
	}

	rdb, cacheRDB, err := redisClients(ctx, cfg)
	if err != nil {
		return err
	}
	if rdb == nil {
		log.Warn().Msg("REDIS_URL not set, sessions are kept in memory and login throttling is off")
	} else {
		defer rdb.Close()
	}
	if cacheRDB != nil {
		defer cacheRDB.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	b := authcore.New().
		WithConfig(cfg).
		WithLogger(log).
		WithMetrics(reg).
		WithUserRepository(repos.users).
		WithRoleRepository(repos.roles).
		WithPasswordHasher(hasher).
		WithMailer(mail.NewLogMailer(log))
	if rdb != nil {
		b = b.WithRedis(rdb)
	}
	if cacheRDB != nil {
		b = b.WithCacheRedis(cacheRDB)
	}
	engine, err := b.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	ready := func(ctx context.Context) error {
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return repos.ping(ctx)
	}

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.Router(httpapi.Options{
			Engine:         engine,
			Logger:         log,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			RateLimit:      cfg.HTTP.RateLimit,
			RolesCacheTTL:  cfg.Cache.TTL,
			Ready:          ready,
			Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
