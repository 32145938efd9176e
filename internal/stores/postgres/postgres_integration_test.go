//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"

	"github.com/formwise/authcore"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("docker not available, skipping integration tests")
	}
	_ = provider.Close()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("authcore_test"),
		tcpostgres.WithUsername("authcore"),
		tcpostgres.WithPassword("authcore"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Errorf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	require.NoError(t, Migrate(ctx, db))
	return db
}

func TestRepositories(t *testing.T) {
	db := setupDB(t)
	ctx := authcore.WithCaller(context.Background(), authcore.Caller{UserID: "seed"})
	users, roles := NewUsers(db), NewRoles(db)

	role := &authcore.Role{Name: "USER", Description: "default"}
	require.NoError(t, roles.Create(ctx, role))
	require.NotEmpty(t, role.ID)
	require.Equal(t, "seed", role.CreatedBy)

	err := roles.Create(ctx, &authcore.Role{Name: "USER"})
	require.True(t, errors.Is(err, authcore.ErrDuplicate), "got %v", err)

	u := &authcore.User{
		Email:    "Jane@Example.com",
		Password: "hash",
		Provider: authcore.ProviderEmail,
		Status:   authcore.StatusInactive,
		Roles:    []authcore.Role{*role},
	}
	require.NoError(t, users.Create(ctx, u))

	got, err := users.FindByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, []string{"USER"}, got.RoleNames())

	err = users.Create(ctx, &authcore.User{Email: "jane@example.com", Provider: authcore.ProviderEmail, Status: authcore.StatusActive})
	require.True(t, errors.Is(err, authcore.ErrDuplicate), "got %v", err)

	got.Status = authcore.StatusActive
	got.FirstName = "Jane"
	require.NoError(t, users.Update(ctx, got))

	again, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, authcore.StatusActive, again.Status)
	require.Equal(t, "Jane", again.FirstName)

	_, err = users.FindByID(ctx, "missing")
	require.ErrorIs(t, err, authcore.ErrRecordNotFound)

	social := &authcore.User{Provider: authcore.ProviderGoogle, SocialID: "g-1", Status: authcore.StatusActive, Roles: []authcore.Role{*role}}
	require.NoError(t, users.Create(ctx, social))
	found, err := users.FindBySocialID(ctx, authcore.ProviderGoogle, "g-1")
	require.NoError(t, err)
	require.Equal(t, social.ID, found.ID)

	role.Name = "RENAMED"
	role.Description = "updated"
	require.NoError(t, roles.Update(ctx, role))
	require.Equal(t, "USER", role.Name)
	require.Equal(t, "updated", role.Description)

	list, err := roles.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, roles.Delete(ctx, role.ID))
	require.ErrorIs(t, roles.Delete(ctx, role.ID), authcore.ErrRecordNotFound)

	orphan, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.Empty(t, orphan.Roles)
}
