package permission

import (
	"errors"
	"testing"
)

func TestGuardCheck(t *testing.T) {
	g := NewGuard(DefaultCatalog())

	tests := []struct {
		name  string
		roles []string
		req   Requirement
		want  error
	}{
		{"no requirement", nil, Requirement{}, nil},
		{"role match", []string{RoleAdmin}, Requirement{Roles: []string{RoleAdmin}}, nil},
		{"role or semantics", []string{RoleUser}, Requirement{Roles: []string{RoleAdmin, RoleUser}}, nil},
		{"role mismatch", []string{RoleUser}, Requirement{Roles: []string{RoleAdmin}}, ErrForbidden},
		{"empty roles on role gate", nil, Requirement{Roles: []string{RoleAdmin}}, ErrNoRoles},
		{"any of", []string{RoleUser}, Requirement{Permissions: []string{"account:create", "form:edit"}}, nil},
		{"any of miss", []string{RoleUser}, Requirement{Permissions: []string{"account:create"}}, ErrForbidden},
		{"all of", []string{RoleAdmin}, Requirement{Permissions: []string{"account:create", "form:edit"}, Mode: ModeAll}, nil},
		{"all of miss", []string{RoleUser}, Requirement{Permissions: []string{"account:create", "form:edit"}, Mode: ModeAll}, ErrForbidden},
		{"no permissions", []string{"GHOST"}, Requirement{Permissions: []string{"form:edit"}}, ErrNoPermissions},
		{"wildcard", []string{RoleSystemAdmin}, Requirement{Permissions: []string{"x:y"}, Mode: ModeAll}, nil},
		{"role and permission", []string{RoleAdmin}, Requirement{Roles: []string{RoleAdmin}, Permissions: []string{"account:delete"}}, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := g.Check(tc.roles, tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Check() = %v, want %v", err, tc.want)
			}
		})
	}
}
