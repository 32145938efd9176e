package authcore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/formwise/authcore/cache"
	"github.com/formwise/authcore/internal/rate"
	"github.com/formwise/authcore/jwt"
	"github.com/formwise/authcore/permission"
	"github.com/formwise/authcore/session"
)

// Engine is the authentication and authorization core. Build one with
// [Builder]; it is safe for concurrent use afterwards.
type Engine struct {
	config   Config
	codec    *jwt.Codec
	users    UserRepository
	roles    RoleRepository
	sessions SessionStore
	cache    cache.Store
	hasher   PasswordHasher
	mailer   Mailer
	guard    *permission.Guard
	limiter  *rate.Limiter
	audit    *auditDispatcher
	metrics  *Metrics
	log      zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// AuthResult is the verified identity carried by an access token.
type AuthResult struct {
	UserID    string
	SessionID string
	Role      *jwt.RoleClaim
	Roles     []string
	ExpiresAt time.Time
}

// Caller converts the result into the request-scoped caller identity.
func (r *AuthResult) Caller() Caller {
	return Caller{UserID: r.UserID, SessionID: r.SessionID, Roles: r.Roles}
}

// Close stops the audit pipeline after draining accepted events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Guard exposes the authorization guard used by [Engine.Authorize].
func (e *Engine) Guard() *permission.Guard { return e.guard }

// Cache exposes the cache the Engine reads roles through. HTTP response
// caching shares it.
func (e *Engine) Cache() cache.Store { return e.cache }

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "authcore."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, AsError(err).Reason)
	}
	span.End()
}

// Login authenticates an email account and opens a new session. Unknown
// emails, social accounts and wrong passwords all yield
// [ErrInvalidCredentials] so that the response does not reveal which check
// failed.
func (e *Engine) Login(ctx context.Context, email, password string) (res *LoginResult, err error) {
	start := e.now()
	ctx, span := e.startSpan(ctx, "Login")
	defer func() {
		endSpan(span, err)
		e.metrics.observe("login", start)
	}()

	email = normalizeEmail(email)
	ip := ClientIPFromContext(ctx)

	if e.limiter != nil {
		if lerr := e.limiter.CheckLogin(ctx, email, ip); lerr != nil {
			if errors.Is(lerr, rate.ErrRateLimited) {
				e.metrics.login("email", "throttled")
				e.emitAudit(ctx, AuditLoginThrottled, false, "", "", ErrTooManyRequests, nil)
				return nil, ErrTooManyRequests
			}
			e.log.Warn().Err(lerr).Msg("login throttle unavailable")
		}
	}

	user, err := e.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return nil, ExternalSystem("find user", err)
	}
	if user == nil || user.Provider != ProviderEmail || user.Password == "" || !e.hasher.Verify(password, user.Password) {
		e.recordLoginFailure(ctx, email, ip, user)
		return nil, ErrInvalidCredentials
	}

	res, sessionID, err := e.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	if e.limiter != nil {
		if lerr := e.limiter.ResetLogin(ctx, email); lerr != nil {
			e.log.Warn().Err(lerr).Msg("login throttle reset failed")
		}
	}
	e.metrics.login("email", "success")
	e.emitAudit(ctx, AuditLoginSuccess, true, user.ID, sessionID, nil, nil)
	return res, nil
}

func (e *Engine) recordLoginFailure(ctx context.Context, email, ip string, user *User) {
	e.metrics.login("email", "failure")
	userID := ""
	if user != nil {
		userID = user.ID
	}
	e.emitAudit(ctx, AuditLoginFailure, false, userID, "", ErrInvalidCredentials, nil)
	if e.limiter == nil {
		return
	}
	if err := e.limiter.IncrementLogin(ctx, email, ip); err != nil {
		e.log.Warn().Err(err).Msg("login throttle increment failed")
	}
}

// SocialLogin signs in with a profile already verified by provider, creating
// the account on first use. An account matched by social id adopts the
// profile email when no other account holds it; otherwise an account with the
// same email is reused.
func (e *Engine) SocialLogin(ctx context.Context, provider Provider, profile SocialProfile) (res *LoginResult, err error) {
	ctx, span := e.startSpan(ctx, "SocialLogin", attribute.String("provider", string(provider)))
	defer func() { endSpan(span, err) }()

	if !provider.Valid() || provider == ProviderEmail {
		return nil, Unprocessable("unsupported provider", FieldError{Code: "invalid", Path: "provider", Message: "unsupported provider"})
	}

	email := normalizeEmail(profile.Email)

	var byEmail *User
	if email != "" {
		byEmail, err = e.findUser(ctx, e.users.FindByEmail, email)
		if err != nil {
			return nil, err
		}
	}

	var user *User
	if profile.ID != "" {
		user, err = e.findUser(ctx, func(ctx context.Context, id string) (*User, error) {
			return e.users.FindBySocialID(ctx, provider, id)
		}, profile.ID)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case user != nil:
		if email != "" && byEmail == nil {
			user.Email = email
			if err := e.users.Update(ctx, user); err != nil {
				return nil, ExternalSystem("update user", err)
			}
		}
	case byEmail != nil:
		user = byEmail
	case profile.ID != "":
		role, err := e.Role(ctx, permission.RoleUser)
		if err != nil {
			return nil, err
		}
		user = &User{
			Email:     email,
			Provider:  provider,
			SocialID:  profile.ID,
			FirstName: profile.FirstName,
			LastName:  profile.LastName,
			Roles:     []Role{*role},
			Status:    StatusActive,
		}
		if err := e.users.Create(ctx, user); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return nil, ErrEmailExists
			}
			return nil, ExternalSystem("create user", err)
		}
	default:
		return nil, ErrUserNotFound
	}

	res, sessionID, err := e.startSession(ctx, user)
	if err != nil {
		return nil, err
	}
	e.metrics.login(string(provider), "success")
	e.emitAudit(ctx, AuditSocialLogin, true, user.ID, sessionID, nil, map[string]string{"provider": string(provider)})
	return res, nil
}

// RefreshToken verifies a refresh token and rotates its session.
func (e *Engine) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := e.ParseRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	return e.Refresh(ctx, claims.SessionID, claims.Hash)
}

// Refresh rotates the session hash and issues a new token pair. The presented
// hash must equal the stored one at the moment of the swap: of two concurrent
// refreshes with the same token exactly one succeeds, and the loser gets
// [ErrUnauthorized].
func (e *Engine) Refresh(ctx context.Context, sessionID, presentedHash string) (pair *TokenPair, err error) {
	start := e.now()
	ctx, span := e.startSpan(ctx, "Refresh", attribute.String("session.id", sessionID))
	defer func() {
		endSpan(span, err)
		e.metrics.observe("refresh", start)
		if err != nil {
			e.metrics.refresh("rejected")
			e.emitAudit(ctx, AuditRefreshRejected, false, "", sessionID, err, nil)
		} else {
			e.metrics.refresh("success")
		}
	}()

	sess, err := e.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, ExternalSystem("load session", err)
	}
	if presentedHash == "" || sess.Hash != presentedHash {
		return nil, ErrUnauthorized
	}

	user, err := e.users.FindByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, ExternalSystem("find user", err)
	}
	if len(user.Roles) == 0 {
		return nil, ErrUnauthorized
	}

	next, err := session.NewHash()
	if err != nil {
		return nil, err
	}
	if _, err := e.sessions.UpdateHash(ctx, sess.ID, presentedHash, next); err != nil {
		if errors.Is(err, session.ErrHashMismatch) || errors.Is(err, session.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, ExternalSystem("rotate session", err)
	}

	pair, err = e.issuePair(user, sess.ID, next)
	if err != nil {
		return nil, err
	}
	e.emitAudit(ctx, AuditRefreshSuccess, true, user.ID, sess.ID, nil, nil)
	return pair, nil
}

// Logout deletes the session. Logging out twice is not an error.
func (e *Engine) Logout(ctx context.Context, sessionID string) (err error) {
	ctx, span := e.startSpan(ctx, "Logout", attribute.String("session.id", sessionID))
	defer func() { endSpan(span, err) }()

	if err := e.sessions.DeleteByID(ctx, sessionID); err != nil {
		return ExternalSystem("delete session", err)
	}
	e.metrics.logout()
	e.emitAudit(ctx, AuditLogout, true, CallerIDFromContext(ctx), sessionID, nil, nil)
	return nil
}

// ValidateAccess verifies an access token and checks that its session is
// still live. Every failure is [ErrUnauthorized].
func (e *Engine) ValidateAccess(ctx context.Context, token string) (*AuthResult, error) {
	claims, err := e.codec.ParseAccess(token)
	if err != nil {
		return nil, ErrUnauthorized
	}

	ok, err := e.sessions.ExistsByID(ctx, claims.SessionID)
	if err != nil {
		return nil, ExternalSystem("load session", err)
	}
	if !ok {
		return nil, ErrUnauthorized
	}

	res := &AuthResult{
		UserID:    claims.ID,
		SessionID: claims.SessionID,
		Role:      claims.Role,
		Roles:     claims.Roles,
	}
	if claims.ExpiresAt != nil {
		res.ExpiresAt = claims.ExpiresAt.Time
	}
	return res, nil
}

// ParseRefresh verifies a refresh token without touching the session store.
// Every failure is [ErrUnauthorized].
func (e *Engine) ParseRefresh(token string) (*jwt.RefreshClaims, error) {
	claims, err := e.codec.ParseRefresh(token)
	if err != nil {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// Authorize checks roles against req and maps every denial to [ErrForbidden].
func (e *Engine) Authorize(roles []string, req permission.Requirement) error {
	err := e.guard.Check(roles, req)
	if err == nil {
		return nil
	}
	reason := "forbidden"
	switch {
	case errors.Is(err, permission.ErrNoRoles):
		reason = "no_roles"
	case errors.Is(err, permission.ErrNoPermissions):
		reason = "no_permissions"
	}
	e.metrics.denied(reason)
	return ErrForbidden
}

// HasPermission reports whether any of roles grants perm.
func (e *Engine) HasPermission(roles []string, perm string) bool {
	return e.guard.Catalog().Resolve(roles...).Has(perm)
}

// Permissions lists what roles grant, sorted.
func (e *Engine) Permissions(roles []string) []string {
	return e.guard.Catalog().Resolve(roles...).List()
}

func (e *Engine) startSession(ctx context.Context, user *User) (*LoginResult, string, error) {
	sess, err := e.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, "", ExternalSystem("create session", err)
	}
	pair, err := e.issuePair(user, sess.ID, sess.Hash)
	if err != nil {
		return nil, "", err
	}
	e.log.Debug().Str("user_id", user.ID).Str("session_id", sess.ID).Msg("session started")
	return &LoginResult{TokenPair: *pair, User: user}, sess.ID, nil
}

func (e *Engine) issuePair(user *User, sessionID, hash string) (*TokenPair, error) {
	var role *jwt.RoleClaim
	if r := user.PrimaryRole(); r != nil {
		role = &jwt.RoleClaim{ID: r.ID, Name: r.Name}
	}

	access, exp, err := e.codec.IssueAccess(jwt.AccessInput{
		UserID:    user.ID,
		Role:      role,
		SessionID: sessionID,
		Roles:     user.RoleNames(),
	})
	if err != nil {
		return nil, err
	}
	refresh, err := e.codec.IssueRefresh(sessionID, hash)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:     access,
		RefreshToken:    refresh,
		AccessExpiresAt: exp,
	}, nil
}

// findUser runs lookup and maps a missing record to (nil, nil).
func (e *Engine) findUser(ctx context.Context, lookup func(context.Context, string) (*User, error), key string) (*User, error) {
	u, err := lookup(ctx, key)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, nil
		}
		return nil, ExternalSystem("find user", err)
	}
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
