// Package seed loads the baseline roles and accounts. Running it twice is
// safe: existing records are left alone.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/formwise/authcore"
	"github.com/formwise/authcore/permission"
)

// Account is a user created by [Run].
type Account struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
}

// Roles are the role records every deployment starts with.
var Roles = []authcore.Role{
	{Name: permission.RoleUser, Description: "Regular user"},
	{Name: permission.RoleAdmin, Description: "Account administrator"},
	{Name: permission.RoleSystemAdmin, Description: "Full access"},
}

// Accounts are the development accounts, both active.
var Accounts = []Account{
	{Email: "admin@example.com", Password: "secret", FirstName: "Super", LastName: "Admin", Role: permission.RoleAdmin},
	{Email: "john.doe@example.com", Password: "secret", FirstName: "John", LastName: "Doe", Role: permission.RoleUser},
}

// Run creates the missing roles and accounts.
func Run(ctx context.Context, users authcore.UserRepository, roles authcore.RoleRepository, hasher authcore.PasswordHasher, log zerolog.Logger) error {
	byName := make(map[string]authcore.Role, len(Roles))
	for _, r := range Roles {
		existing, err := roles.FindByName(ctx, r.Name)
		switch {
		case err == nil:
			byName[r.Name] = *existing
			continue
		case !errors.Is(err, authcore.ErrRecordNotFound):
			return fmt.Errorf("seed: find role %s: %w", r.Name, err)
		}

		role := r
		if err := roles.Create(ctx, &role); err != nil {
			return fmt.Errorf("seed: create role %s: %w", r.Name, err)
		}
		byName[r.Name] = role
		log.Info().Str("role", role.Name).Msg("seeded role")
	}

	for _, a := range Accounts {
		_, err := users.FindByEmail(ctx, a.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, authcore.ErrRecordNotFound) {
			return fmt.Errorf("seed: find user %s: %w", a.Email, err)
		}

		hash, err := hasher.Hash(a.Password)
		if err != nil {
			return fmt.Errorf("seed: hash password: %w", err)
		}
		u := &authcore.User{
			Email:     a.Email,
			Password:  hash,
			Provider:  authcore.ProviderEmail,
			FirstName: a.FirstName,
			LastName:  a.LastName,
			Roles:     []authcore.Role{byName[a.Role]},
			Status:    authcore.StatusActive,
		}
		if err := users.Create(ctx, u); err != nil {
			return fmt.Errorf("seed: create user %s: %w", a.Email, err)
		}
		log.Info().Str("email", u.Email).Str("role", a.Role).Msg("seeded user")
	}
	return nil
}
