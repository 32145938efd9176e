package permission

import "errors"

var (
	// ErrForbidden is returned when the caller lacks the required role or
	// permission.
	ErrForbidden = errors.New("forbidden")
	// ErrNoRoles is returned when a role gate meets a caller without roles.
	ErrNoRoles = errors.New("caller has no role")
	// ErrNoPermissions is returned when a permission gate meets a caller whose
	// roles grant nothing.
	ErrNoPermissions = errors.New("caller has no permission")
)

// Mode selects how multiple required permissions combine.
type Mode int

const (
	// ModeAny passes when the caller holds at least one required permission.
	ModeAny Mode = iota
	// ModeAll passes only when the caller holds every required permission.
	ModeAll
)

func (m Mode) String() string {
	if m == ModeAll {
		return "all"
	}
	return "any"
}

// Requirement is what a route declares. Roles are always OR-ed; Permissions
// combine according to Mode. A zero Requirement admits any authenticated
// caller.
type Requirement struct {
	Roles       []string
	Permissions []string
	Mode        Mode
}

// Empty reports whether the requirement declares nothing.
func (r Requirement) Empty() bool {
	return len(r.Roles) == 0 && len(r.Permissions) == 0
}

// Guard evaluates requirements against a caller's roles.
type Guard struct {
	catalog *Catalog
}

// NewGuard returns a guard resolving permissions through catalog.
func NewGuard(catalog *Catalog) *Guard {
	return &Guard{catalog: catalog}
}

// Catalog exposes the underlying catalog.
func (g *Guard) Catalog() *Catalog { return g.catalog }

// Check returns nil when roles satisfy req. The role gate runs before the
// permission gate; both must pass when both are declared.
func (g *Guard) Check(roles []string, req Requirement) error {
	if req.Empty() {
		return nil
	}

	if len(req.Roles) > 0 {
		if len(roles) == 0 {
			return ErrNoRoles
		}
		if !intersects(roles, req.Roles) {
			return ErrForbidden
		}
	}

	if len(req.Permissions) > 0 {
		granted := g.catalog.Resolve(roles...)
		if granted.Empty() {
			return ErrNoPermissions
		}

		ok := false
		switch req.Mode {
		case ModeAll:
			ok = granted.HasAll(req.Permissions...)
		default:
			ok = granted.HasAny(req.Permissions...)
		}
		if !ok {
			return ErrForbidden
		}
	}

	return nil
}

func intersects(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
