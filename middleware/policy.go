package middleware

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/formwise/authcore"
	"github.com/formwise/authcore/internal/respond"
	"github.com/formwise/authcore/permission"
)

// Policy is the table of per-route requirements, keyed by a route id chosen
// by the router (for example "roles.list"). Register every route at startup
// and wrap handlers with [Require].
type Policy struct {
	engine *authcore.Engine

	mu     sync.RWMutex
	routes map[string]permission.Requirement
}

func NewPolicy(engine *authcore.Engine) *Policy {
	return &Policy{
		engine: engine,
		routes: make(map[string]permission.Requirement),
	}
}

// Register declares the requirement of routeID. Registering the same id twice
// is an error.
func (p *Policy) Register(routeID string, req permission.Requirement) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, dup := p.routes[routeID]; dup {
		return fmt.Errorf("middleware: route %q already registered", routeID)
	}
	p.routes[routeID] = req
	return nil
}

// Lookup returns the requirement of routeID.
func (p *Policy) Lookup(routeID string) (permission.Requirement, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	req, ok := p.routes[routeID]
	return req, ok
}

// Require enforces the requirement registered for routeID. It must run after
// [Authenticate]; a request without a caller is rejected with 401 and any
// guard denial with 403. Require panics if routeID was never registered, so a
// missing declaration fails at startup instead of silently allowing access.
func Require(p *Policy, routeID string) func(http.Handler) http.Handler {
	req, ok := p.Lookup(routeID)
	if !ok {
		panic(fmt.Sprintf("middleware: no policy registered for route %q", routeID))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := AuthResultFromContext(r.Context())
			if !ok {
				respond.Error(w, r, authcore.ErrUnauthorized)
				return
			}
			if err := p.engine.Authorize(res.Roles, req); err != nil {
				respond.Error(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
