package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/sshdeck/sshdeck/internal/errors"
	hostsDomain "github.com/sshdeck/sshdeck/internal/hosts/domain"
)

func TestRoleCreate_UniqueName(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.roles.Create(context.Background(), "ops")
	require.NoError(t, err)

	_, err = env.roles.Create(context.Background(), "ops")
	assert.ErrorIs(t, err, hostsDomain.ErrRoleNameTaken)
}

func TestRoleCreate_Validation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.roles.Create(context.Background(), "   ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRoleAssign_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	user := env.registerAndLogin(t, "alice", "password-123")

	role, err := env.roles.Create(context.Background(), "ops")
	require.NoError(t, err)

	require.NoError(t, env.roles.AssignUser(context.Background(), role.ID, user.ID))
	require.NoError(t, env.roles.AssignUser(context.Background(), role.ID, user.ID))

	members, err := env.roles.Members(context.Background(), role.ID)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestRoleDelete_RemovesGrants(t *testing.T) {
	env := newTestEnv(t)
	owner := env.registerAndLogin(t, "alice", "password-123")
	member := env.registerAndLogin(t, "bob", "password-123")
	host := env.createHost(t, owner.ID, "web-1")

	role, err := env.roles.Create(context.Background(), "ops")
	require.NoError(t, err)
	require.NoError(t, env.roles.AssignUser(context.Background(), role.ID, member.ID))
	env.grantTo(t, owner.ID, host.ID, hostsDomain.PrincipalRole, role.ID, hostsDomain.LevelRead)

	require.NoError(t, env.roles.Delete(context.Background(), role.ID))

	decision, err := env.resolver.Resolve(context.Background(), member.ID, host.ID, hostsDomain.IntentRead)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	_, err = env.roles.Get(context.Background(), role.ID)
	assert.ErrorIs(t, err, hostsDomain.ErrRoleNotFound)
}

func TestRoleDelete_Unknown(t *testing.T) {
	env := newTestEnv(t)

	role, err := env.roles.Create(context.Background(), "ops")
	require.NoError(t, err)
	require.NoError(t, env.roles.Delete(context.Background(), role.ID))

	err = env.roles.Delete(context.Background(), role.ID)
	assert.ErrorIs(t, err, hostsDomain.ErrRoleNotFound)
}

func TestRoleList(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.roles.Create(context.Background(), "ops")
	require.NoError(t, err)
	_, err = env.roles.Create(context.Background(), "dev")
	require.NoError(t, err)

	roles, err := env.roles.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, roles, 2)
}
