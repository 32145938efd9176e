package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/formwise/authcore"
	"github.com/formwise/authcore/cache"
	"github.com/formwise/authcore/internal/seed"
	"github.com/formwise/authcore/internal/stores/memory"
	"github.com/formwise/authcore/middleware"
	"github.com/formwise/authcore/password"
	"github.com/formwise/authcore/permission"
)

func newEngine(t *testing.T) *authcore.Engine {
	t.Helper()

	users, roles := memory.NewUsers(), memory.NewRoles()
	hasher, err := password.NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, seed.Run(context.Background(), users, roles, hasher, zerolog.Nop()))

	cfg := authcore.DefaultConfig()
	cfg.Auth.JWTSecret, cfg.Auth.RefreshSecret = "access", "refresh"
	cfg.Auth.ConfirmEmailSecret, cfg.Auth.ForgotSecret = "confirm", "forgot"
	cfg.Auth.BcryptCost = bcrypt.MinCost
	cfg.Audit.Enabled = false

	engine, err := authcore.New().
		WithConfig(cfg).
		WithUserRepository(users).
		WithRoleRepository(roles).
		WithPasswordHasher(hasher).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine
}

func loginToken(t *testing.T, engine *authcore.Engine, email string) string {
	t.Helper()
	res, err := engine.Login(context.Background(), email, "secret")
	require.NoError(t, err)
	return res.AccessToken
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	caller, _ := authcore.CallerFromContext(r.Context())
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(caller.UserID))
}

func TestAuthenticate(t *testing.T) {
	engine := newEngine(t)
	h := middleware.Authenticate(engine)(http.HandlerFunc(okHandler))

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
		{"valid token", "bearer " + loginToken(t, engine, "john.doe@example.com"), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			if tc.status == http.StatusOK {
				assert.NotEmpty(t, rec.Body.String(), "caller must be attached")
			}
		})
	}
}

func TestRequire(t *testing.T) {
	engine := newEngine(t)
	policy := middleware.NewPolicy(engine)
	require.NoError(t, policy.Register("roles.list", permission.Requirement{Roles: []string{permission.RoleAdmin}}))
	require.Error(t, policy.Register("roles.list", permission.Requirement{}))

	h := middleware.Authenticate(engine)(middleware.Require(policy, "roles.list")(http.HandlerFunc(okHandler)))

	serve := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/roles", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, serve(loginToken(t, engine, "admin@example.com")))
	assert.Equal(t, http.StatusForbidden, serve(loginToken(t, engine, "john.doe@example.com")))

	assert.Panics(t, func() { middleware.Require(policy, "roles.unknown") })

	bare := middleware.Require(policy, "roles.list")(http.HandlerFunc(okHandler))
	rec := httptest.NewRecorder()
	bare.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/roles", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCached(t *testing.T) {
	store := cache.New(cache.Config{TTL: time.Minute, MaxItems: 16}, nil)
	var calls atomic.Int32
	h := middleware.Cached(store, time.Minute, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Query().Get("fail") != "" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"n":1}`))
	}))

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	first := get("/roles")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := get("/roles")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, `{"n":1}`, second.Body.String())
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.EqualValues(t, 1, calls.Load())

	get("/roles?fail=1")
	get("/roles?fail=1")
	assert.EqualValues(t, 3, calls.Load(), "errors are not cached")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/roles", nil))
	assert.EqualValues(t, 4, calls.Load(), "non-GET bypasses the cache")
}

func TestCachedByFixedKey(t *testing.T) {
	store := cache.New(cache.Config{TTL: time.Minute, MaxItems: 16}, nil)
	var calls atomic.Int32
	h := middleware.CachedBy(store, time.Minute, func(*http.Request) string { return "GET:/roles" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[]`))
		}))

	for _, target := range []string{"/roles?x=1", "/roles", "/roles/"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}
	assert.EqualValues(t, 1, calls.Load())

	require.NoError(t, store.Del(context.Background(), "GET:/roles"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/roles?x=2", nil))
	assert.EqualValues(t, 2, calls.Load(), "deleting the fixed key evicts every variant")
}

func TestCacheKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/auth/me?x=1", nil)
	assert.Equal(t, "GET:/auth/me?x=1", middleware.CacheKey(req, false))
	assert.Equal(t, "GET:/auth/me?x=1", middleware.CacheKey(req, true), "anonymous requests get no suffix")
}

func TestClientIP(t *testing.T) {
	var seen string
	h := middleware.ClientIP(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = authcore.ClientIPFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:4242"
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "192.0.2.7", seen)
}
