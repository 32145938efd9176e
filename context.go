package authcore

import "context"

type callerContextKey struct{}
type clientIPContextKey struct{}

// Caller is the authenticated identity of the current request. It is attached
// once authentication succeeds and read by downstream layers such as audit
// stamping in the repositories.
type Caller struct {
	UserID    string
	SessionID string
	Roles     []string
}

// WithCaller attaches the authenticated caller to ctx.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, c)
}

// CallerFromContext returns the caller attached by [WithCaller].
func CallerFromContext(ctx context.Context) (Caller, bool) {
	if ctx == nil {
		return Caller{}, false
	}
	c, ok := ctx.Value(callerContextKey{}).(Caller)
	return c, ok
}

// CallerIDFromContext returns the caller's user id, or "" for anonymous
// requests.
func CallerIDFromContext(ctx context.Context) string {
	c, _ := CallerFromContext(ctx)
	return c.UserID
}

// WithClientIP attaches the caller's IP address to ctx. The Engine uses it
// for login throttling and audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// ClientIPFromContext returns the address attached by [WithClientIP].
func ClientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
