package permission

import (
	"errors"
	"sort"
	"sync"
)

// Catalog maps role names to permission sets.
//
// Roles are registered during initialization; after [Catalog.Freeze] the
// catalog is read-only and Resolve takes only a read lock.
type Catalog struct {
	mu     sync.RWMutex
	roles  map[string]map[string]struct{}
	frozen bool
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{roles: make(map[string]map[string]struct{})}
}

// RegisterRole binds roleName to perms. Registering the same role twice is an
// error, as is registering after Freeze.
func (c *Catalog) RegisterRole(roleName string, perms ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen {
		return errors.New("permission catalog frozen")
	}
	if roleName == "" {
		return errors.New("role name empty")
	}
	if _, exists := c.roles[roleName]; exists {
		return errors.New("role already registered: " + roleName)
	}

	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		if p == "" {
			return errors.New("empty permission for role " + roleName)
		}
		set[p] = struct{}{}
	}
	c.roles[roleName] = set
	return nil
}

// Freeze prevents further registrations.
func (c *Catalog) Freeze() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frozen = true
}

// Resolve returns the union of permissions granted by roles. Unknown role
// names contribute nothing. The result depends only on the set of names.
func (c *Catalog) Resolve(roles ...string) Set {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := Set{perms: make(map[string]struct{})}
	for _, role := range roles {
		for p := range c.roles[role] {
			if p == Wildcard {
				out.all = true
			}
			out.perms[p] = struct{}{}
		}
	}
	return out
}

// Has reports whether role is registered.
func (c *Catalog) Has(role string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.roles[role]
	return ok
}

// Roles lists registered role names in sorted order.
func (c *Catalog) Roles() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.roles))
	for name := range c.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Set is an immutable resolved permission set.
type Set struct {
	perms map[string]struct{}
	all   bool
}

// Has reports whether perm is granted. The wildcard grants everything.
func (s Set) Has(perm string) bool {
	if s.all {
		return true
	}
	_, ok := s.perms[perm]
	return ok
}

// HasAny reports whether at least one of perms is granted.
func (s Set) HasAny(perms ...string) bool {
	for _, p := range perms {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// HasAll reports whether every one of perms is granted.
func (s Set) HasAll(perms ...string) bool {
	for _, p := range perms {
		if !s.Has(p) {
			return false
		}
	}
	return true
}

// Empty reports whether the set grants nothing.
func (s Set) Empty() bool { return !s.all && len(s.perms) == 0 }

// Wildcard reports whether the set holds the wildcard permission.
func (s Set) Wildcard() bool { return s.all }

// List returns the granted permissions in sorted order.
func (s Set) List() []string {
	out := make([]string, 0, len(s.perms))
	for p := range s.perms {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
