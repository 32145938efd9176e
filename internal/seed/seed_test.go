package seed

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/formwise/authcore"
	"github.com/formwise/authcore/internal/stores/memory"
	"github.com/formwise/authcore/password"
)

func TestRunIsIdempotent(t *testing.T) {
	users := memory.NewUsers()
	roles := memory.NewRoles()
	hasher, err := password.NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, Run(ctx, users, roles, hasher, zerolog.Nop()))
	require.NoError(t, Run(ctx, users, roles, hasher, zerolog.Nop()))

	list, err := roles.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, len(Roles))

	admin, err := users.FindByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, authcore.StatusActive, admin.Status)
	assert.Equal(t, []string{"ADMIN"}, admin.RoleNames())
	assert.True(t, hasher.Verify("secret", admin.Password))

	john, err := users.FindByEmail(ctx, "john.doe@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"USER"}, john.RoleNames())
}
