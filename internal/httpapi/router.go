// Package httpapi exposes the Engine over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/formwise/authcore"
	"github.com/formwise/authcore/internal/telemetry"
	"github.com/formwise/authcore/middleware"
	"github.com/formwise/authcore/permission"
)

const (
	routeRolesList   = "roles.list"
	routeRolesCreate = "roles.create"
	routeRolesGet    = "roles.get"
	routeRolesUpdate = "roles.update"
	routeRolesDelete = "roles.delete"
	routeAccessCheck = "access.check"

	rolesListCacheKey = "GET:/roles"
)

// Options configures [Router].
type Options struct {
	Engine         *authcore.Engine
	Logger         zerolog.Logger
	AllowedOrigins []string
	// RateLimit is the per-IP request budget per minute; zero disables it.
	RateLimit int
	// RolesCacheTTL bounds how long GET /roles responses are served from
	// cache. Zero uses the cache default.
	RolesCacheTTL time.Duration
	// Ready reports dependency health for /readyz.
	Ready   func(context.Context) error
	Metrics http.Handler
}

// rolesListKey ignores the query string and trailing slash so that every
// variant of GET /roles shares the entry that role mutations delete.
func rolesListKey(*http.Request) string { return rolesListCacheKey }

// Policy returns the route requirement table served by [Router].
func Policy(engine *authcore.Engine) *middleware.Policy {
	admins := permission.Requirement{Roles: []string{permission.RoleAdmin, permission.RoleSystemAdmin}}

	p := middleware.NewPolicy(engine)
	for id, req := range map[string]permission.Requirement{
		routeRolesList:   admins,
		routeRolesCreate: admins,
		routeRolesGet:    admins,
		routeRolesUpdate: admins,
		routeRolesDelete: admins,
		routeAccessCheck: {},
	} {
		if err := p.Register(id, req); err != nil {
			panic(err)
		}
	}
	return p
}

// Router builds the HTTP handler tree.
func Router(opts Options) http.Handler {
	h := &handler{engine: opts.Engine, cache: opts.Engine.Cache()}
	policy := Policy(opts.Engine)

	allowed := opts.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(opts.Logger))
	r.Use(telemetry.TraceIDHandler)
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(chimw.Recoverer)
	r.Use(middleware.ClientIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))
	if opts.RateLimit > 0 {
		r.Use(httprate.LimitByIP(opts.RateLimit, time.Minute))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Ready != nil {
			if err := opts.Ready(r.Context()); err != nil {
				hlog.FromRequest(r).Warn().Err(err).Msg("not ready")
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	authenticate := middleware.Authenticate(opts.Engine)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.login)
		r.Post("/register", h.register)
		r.Post("/email/confirm", h.confirmEmail)
		r.Post("/email/confirm/new", h.confirmNewEmail)
		r.Post("/forgot/password", h.forgotPassword)
		r.Post("/reset/password", h.resetPassword)
		r.Post("/refresh", h.refresh)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/logout", h.logout)
			r.Get("/me", h.me)
			r.Patch("/me", h.updateMe)
		})
	})

	r.Route("/roles", func(r chi.Router) {
		r.Use(authenticate)
		r.With(middleware.Require(policy, routeRolesList), middleware.CachedBy(h.cache, opts.RolesCacheTTL, rolesListKey)).
			Get("/", h.listRoles)
		r.With(middleware.Require(policy, routeRolesCreate)).Post("/", h.createRole)
		r.With(middleware.Require(policy, routeRolesGet)).Get("/{id}", h.getRole)
		r.With(middleware.Require(policy, routeRolesUpdate)).Patch("/{id}", h.updateRole)
		r.With(middleware.Require(policy, routeRolesDelete)).Delete("/{id}", h.deleteRole)
	})

	r.With(authenticate, middleware.Require(policy, routeAccessCheck)).
		Post("/access/check", h.accessCheck)

	return otelhttp.NewHandler(r, "authcore")
}
