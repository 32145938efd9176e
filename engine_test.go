package authcore_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formwise/authcore"
	"github.com/formwise/authcore/permission"
)

func TestLoginIssuesSessionBoundTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.login(t, "Admin@Example.com ", "secret")
	require.NotEmpty(t, res.AccessToken)
	require.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "admin@example.com", res.User.Email)

	auth, err := env.engine.ValidateAccess(ctx, res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, auth.UserID)
	assert.Equal(t, []string{"ADMIN"}, auth.Roles)
	require.NotNil(t, auth.Role)
	assert.Equal(t, "ADMIN", auth.Role.Name)
	assert.Equal(t, res.AccessExpiresAt.Unix(), auth.ExpiresAt.Unix())

	claims, err := env.engine.ParseRefresh(res.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, auth.SessionID, claims.SessionID)
}

func TestLoginRejectsBadCredentialsUniformly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.users.Create(ctx, &authcore.User{
		Email:    "social@example.com",
		Provider: authcore.ProviderGoogle,
		SocialID: "g-1",
		Status:   authcore.StatusActive,
	}))

	cases := []struct {
		name, email, password string
	}{
		{"wrong password", "admin@example.com", "nope"},
		{"unknown email", "ghost@example.com", "secret"},
		{"social account", "social@example.com", "secret"},
		{"empty password", "admin@example.com", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.engine.Login(ctx, tc.email, tc.password)
			require.ErrorIs(t, err, authcore.ErrInvalidCredentials)
			assert.Equal(t, http.StatusBadRequest, authcore.StatusCode(err))
			assert.Equal(t, authcore.ErrInvalidCredentials.Message, err.Error())
		})
	}
}

func TestLoginThrottle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.engine.Login(ctx, "john.doe@example.com", "wrong")
		require.ErrorIs(t, err, authcore.ErrInvalidCredentials)
	}

	_, err := env.engine.Login(ctx, "john.doe@example.com", "secret")
	require.ErrorIs(t, err, authcore.ErrTooManyRequests)
	assert.Equal(t, http.StatusTooManyRequests, authcore.StatusCode(err))

	env.login(t, "admin@example.com", "secret")
}

func TestRefreshRotatesAndRejectsSupersededToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.login(t, "john.doe@example.com", "secret")

	next, err := env.engine.RefreshToken(ctx, res.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, next.RefreshToken)

	_, err = env.engine.RefreshToken(ctx, res.RefreshToken)
	require.ErrorIs(t, err, authcore.ErrUnauthorized)

	_, err = env.engine.RefreshToken(ctx, next.RefreshToken)
	require.NoError(t, err)
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.login(t, "john.doe@example.com", "secret")

	const workers = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		denied  int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := env.engine.RefreshToken(ctx, res.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, authcore.ErrUnauthorized):
				denied++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, workers-1, denied)
}

func TestRefreshUnknownOrMalformed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.Refresh(ctx, "missing-session", "hash")
	require.ErrorIs(t, err, authcore.ErrUnauthorized)

	_, err = env.engine.RefreshToken(ctx, "not-a-token")
	require.ErrorIs(t, err, authcore.ErrUnauthorized)

	res := env.login(t, "john.doe@example.com", "secret")
	_, err = env.engine.RefreshToken(ctx, res.AccessToken)
	require.ErrorIs(t, err, authcore.ErrUnauthorized, "access token must not verify as refresh")
}

func TestRefreshRejectsUserWithoutRoles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.login(t, "john.doe@example.com", "secret")

	u, err := env.users.FindByID(ctx, res.User.ID)
	require.NoError(t, err)
	u.Roles = nil
	require.NoError(t, env.users.Update(ctx, u))

	_, err = env.engine.RefreshToken(ctx, res.RefreshToken)
	require.ErrorIs(t, err, authcore.ErrUnauthorized)
}

func TestLogoutInvalidatesAccessToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.login(t, "john.doe@example.com", "secret")

	auth, err := env.engine.ValidateAccess(ctx, res.AccessToken)
	require.NoError(t, err)

	require.NoError(t, env.engine.Logout(ctx, auth.SessionID))
	require.NoError(t, env.engine.Logout(ctx, auth.SessionID))

	_, err = env.engine.ValidateAccess(ctx, res.AccessToken)
	require.ErrorIs(t, err, authcore.ErrUnauthorized)
	_, err = env.engine.RefreshToken(ctx, res.RefreshToken)
	require.ErrorIs(t, err, authcore.ErrUnauthorized)
}

func TestAuthorize(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		roles []string
		req   permission.Requirement
		allow bool
	}{
		{"empty requirement", nil, permission.Requirement{}, true},
		{"role match", []string{"ADMIN"}, permission.Requirement{Roles: []string{"ADMIN"}}, true},
		{"role mismatch", []string{"USER"}, permission.Requirement{Roles: []string{"ADMIN"}}, false},
		{"no roles", nil, permission.Requirement{Roles: []string{"ADMIN"}}, false},
		{"permission any", []string{"USER"}, permission.Requirement{Permissions: []string{"account:create", "form:create"}}, true},
		{"permission all", []string{"USER"}, permission.Requirement{Permissions: []string{"account:create", "form:create"}, Mode: permission.ModeAll}, false},
		{"unknown role", []string{"GUEST"}, permission.Requirement{Permissions: []string{"form:create"}}, false},
		{"wildcard", []string{"SYSTEM_ADMIN"}, permission.Requirement{Permissions: []string{"anything:at:all"}, Mode: permission.ModeAll}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := env.engine.Authorize(tc.roles, tc.req)
			if tc.allow {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, authcore.ErrForbidden)
			assert.Equal(t, http.StatusForbidden, authcore.StatusCode(err))
		})
	}

	assert.True(t, env.engine.HasPermission([]string{"ADMIN"}, "account:delete"))
	assert.False(t, env.engine.HasPermission([]string{"USER"}, "account:delete"))
}

func TestSocialLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.engine.SocialLogin(ctx, authcore.ProviderGoogle, authcore.SocialProfile{
		ID:        "g-42",
		Email:     "Jane@Example.com",
		FirstName: "Jane",
	})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", first.User.Email)
	assert.Equal(t, authcore.StatusActive, first.User.Status)
	assert.Equal(t, []string{"USER"}, first.User.RoleNames())

	second, err := env.engine.SocialLogin(ctx, authcore.ProviderGoogle, authcore.SocialProfile{ID: "g-42"})
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)

	byEmail, err := env.engine.SocialLogin(ctx, authcore.ProviderFacebook, authcore.SocialProfile{Email: "john.doe@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "john.doe@example.com", byEmail.User.Email)

	_, err = env.engine.SocialLogin(ctx, authcore.ProviderApple, authcore.SocialProfile{})
	require.ErrorIs(t, err, authcore.ErrUserNotFound)

	_, err = env.engine.SocialLogin(ctx, authcore.ProviderEmail, authcore.SocialProfile{ID: "x"})
	require.ErrorIs(t, err, authcore.ErrUnprocessable)
}

func TestEngineEmitsAuditEvents(t *testing.T) {
	sink := authcore.NewChannelSink(16)
	env := newTestEnv(t, func(b *authcore.Builder) {
		cfg := testConfig()
		cfg.Audit.Enabled = true
		cfg.Audit.DropIfFull = false
		b.WithConfig(cfg).WithAuditSink(sink)
	})
	ctx := authcore.WithClientIP(context.Background(), "10.1.2.3")

	res, err := env.engine.Login(ctx, "john.doe@example.com", "secret")
	require.NoError(t, err)

	ev := <-sink.Events()
	assert.Equal(t, authcore.AuditLoginSuccess, ev.EventType)
	assert.Equal(t, res.User.ID, ev.UserID)
	assert.Equal(t, "10.1.2.3", ev.IP)
	assert.True(t, ev.Success)

	_, err = env.engine.Login(ctx, "john.doe@example.com", "bad")
	require.Error(t, err)
	ev = <-sink.Events()
	assert.Equal(t, authcore.AuditLoginFailure, ev.EventType)
	assert.Equal(t, authcore.ReasonInvalidCredentials, ev.Reason)
}

func TestBuildRequiresRepositories(t *testing.T) {
	_, err := authcore.New().WithConfig(testConfig()).Build()
	require.Error(t, err)

	b := authcore.New().WithConfig(testConfig())
	cfg := testConfig()
	cfg.Auth.RefreshSecret = cfg.Auth.JWTSecret
	_, err = b.WithConfig(cfg).Build()
	require.Error(t, err)
}
