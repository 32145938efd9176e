package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/formwise/authcore"
	"github.com/formwise/authcore/internal/respond"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the result attached by [Authenticate].
func AuthResultFromContext(ctx context.Context) (*authcore.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*authcore.AuthResult)
	return res, ok
}

// Authenticate rejects requests without a valid access token for a live
// session with 401. On success both the AuthResult and the authcore.Caller
// are attached to the request context.
func Authenticate(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				respond.Error(w, r, authcore.ErrUnauthorized)
				return
			}

			res, err := engine.ValidateAccess(r.Context(), token)
			if err != nil {
				respond.Error(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			ctx = authcore.WithCaller(ctx, res.Caller())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	const bearer = "bearer "
	value := r.Header.Get("Authorization")
	if len(value) <= len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}
	token := strings.TrimSpace(value[len(bearer):])
	return token, token != ""
}

// ClientIP attaches the request's remote address to the context. Run it after
// chi's RealIP so proxies are honoured.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(authcore.WithClientIP(r.Context(), ip)))
	})
}
