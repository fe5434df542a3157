package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/sshdeck/sshdeck/internal/errors"
	hostsDomain "github.com/sshdeck/sshdeck/internal/hosts/domain"
)

func TestHostCreate_EncryptsAtRest(t *testing.T) {
	env := newTestEnv(t)
	owner := env.registerAndLogin(t, "alice", "password-123")
	host := env.createHost(t, owner.ID, "web-1")

	var stored string
	err := env.db.QueryRow(`SELECT password FROM hosts WHERE id = ?`, host.ID.String()).Scan(&stored)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored, "v1:"))
	assert.NotContains(t, stored, "host-password")
}

func TestHostCreate_LockedOwner(t *testing.T) {
	env := newTestEnv(t)
	owner := env.register(t, "alice", "password-123")

	_, err := env.hosts.Create(context.Background(), owner.ID, &hostsDomain.CreateHostInput{
		Name:     "web-1",
		Address:  "10.0.0.1",
		AuthType: hostsDomain.AuthPassword,
		Password: "secret",
	})
	assert.ErrorIs(t, err, apperrors.ErrDataLocked)
}

func TestHostCreate_Validation(t *testing.T) {
	env := newTestEnv(t)
	owner := env.registerAndLogin(t, "alice", "password-123")

	_, err := env.hosts.Create(context.Background(), owner.ID, &hostsDomain.CreateHostInput{
		Name:     "",
		Address:  "10.0.0.1",
		AuthType: hostsDomain.AuthPassword,
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = env.hosts.Create(context.Background(), owner.ID, &hostsDomain.CreateHostInput{
		Name:     "web-1",
		Address:  "10.0.0.1",
		AuthType: hostsDomain.AuthType("tls"),
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestHostCreate_CredentialAuthRequiresOwnCredential(t *testing.T) {
	env := newTestEnv(t)
	owner := env.registerAndLogin(t, "alice", "password-123")
	other := env.registerAndLogin(t, "bob", "password-123")

	credential, err := env.credentials.Create(context.Background(), other.ID, &hostsDomain.CreateCredentialInput{
		Name:     "bob-key",
		AuthType: hostsDomain.AuthKey,
		Username: "bob",
	})
	require.NoError(t, err)

	_, err = env.hosts.Create(context.Background(), owner.ID, &hostsDomain.CreateHostInput{
		Name:         "web-1",
		Address:      "10.0.0.1",
		AuthType:     hostsDomain.AuthCredential,
		CredentialID: &credential.ID,
	})
	assert.ErrorIs(t, err, hostsDomain.ErrCredentialNotFound)
}

func TestHostGet_OwnerDecrypts(t *testing.T) {
	env := newTestEnv(t)
	owner := env.registerAndLogin(t, "alice", "password-123")
	host := env.createHost(t, owner.ID, "web-1")

	got, err := env.hosts.Get(context.Background(), owner.ID, host.ID)
	require.NoError(t, err)
	assert.Equal(t, "host-password", got.Password)
	assert.Equal(t, "sudo-password", got.SudoPassword)
	// Lazy fields keep their ciphertext on a plain get.
	assert.True(t, strings.HasPrefix(got.PrivateKey, "v1:"))
}

func TestHostGetSecret_LazyField(t *testing.T) {
	env := newTestEnv(t)
	owner := env.registerAndLogin(t, "alice", "password-123")
	host := env.createHost(t, owner.ID, "web-1")

	key, err := env.hosts.GetSecret(context.Background(), owner.ID, host.ID, "private_key")
	require.NoError(t, err)
	assert.Contains(t, key, "BEGIN OPENSSH PRIVATE KEY")
}

func TestHostGet_StrangerForbidden(t *testing.T) {
	env := newTestEnv(t)
	owner := env.registerAndLogin(t, "alice", "password-123")
	stranger := env.registerAndLogin(t, "bob", "password-123")
	host := env.createHost(t, owner.ID, "web-1")

	_, err := env.hosts.Get(context.Background(), stranger.ID, host.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestHostList_OwnHosts(t *testing.T) {
	env := newTestEnv(t)
	owner := env.registerAndLogin(t, "alice", "password-123")
	other := env.registerAndLogin(t, "bob", "password-123")
	env.createHost(t, owner.ID, "web-1")
	env.createHost(t, owner.ID, "web-2")
	env.createHost(t, other.ID, "db-1")

	hosts, err := env.hosts.List(context.Background(), owner.ID)
	require.NoError(t, err)
	require.Len(t, hosts, 2)
	assert.Equal(t, "host-password", hosts[0].Password)
}

func TestHostUpdate_OwnerChangesSecret(t *testing.T) {
	env := newTestEnv(t)
	owner := env.registerAndLogin(t, "alice", "password-123")
	host := env.createHost(t, owner.ID, "web-1")

	newPassword := "rotated-password"
	updated, err := env.hosts.Update(context.Background(), owner.ID, host.ID, &hostsDomain.UpdateHostInput{
		Name:     "web-1",
		Address:  "10.0.0.2",
		Port:     2222,
		Username: "root",
		AuthType: hostsDomain.AuthPassword,
		Password: &newPassword,
	})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2", updated.Address)
	assert.Equal(t, 2222, updated.Port)
	assert.Equal(t, "rotated-password", updated.Password)

	// Untouched secret fields keep their old plaintext.
	assert.Equal(t, "sudo-password", updated.SudoPassword)
}

func TestHostUpdate_SharedWriterCannotTouchAuthConfig(t *testing.T) {
	env := newTestEnv(t)
	owner := env.registerAndLogin(t, "alice", "password-123")
	writer := env.registerAndLogin(t, "bob", "password-123")
	host := env.createHost(t, owner.ID, "web-1")
	env.grantTo(t, owner.ID, host.ID, hostsDomain.PrincipalUser, writer.ID, hostsDomain.LevelWrite)

	// Metadata edits are fine.
	updated, err := env.hosts.Update(context.Background(), writer.ID, host.ID, &hostsDomain.UpdateHostInput{
		Name:     "web-1-renamed",
		Address:  "10.0.0.1",
		Port:     22,
		Username: "root",
		AuthType: hostsDomain.AuthPassword,
	})
	require.NoError(t, err)
	assert.Equal(t, "web-1-renamed", updated.Name)

	// Secret changes are not.
	sneaky := "injected"
	_, err = env.hosts.Update(context.Background(), writer.ID, host.ID, &hostsDomain.UpdateHostInput{
		Name:     "web-1",
		Address:  "10.0.0.1",
		AuthType: hostsDomain.AuthPassword,
		Password: &sneaky,
	})
	assert.ErrorIs(t, err, hostsDomain.ErrAuthConfigLocked)

	// Auth type changes are not either.
	_, err = env.hosts.Update(context.Background(), writer.ID, host.ID, &hostsDomain.UpdateHostInput{
		Name:     "web-1",
		Address:  "10.0.0.1",
		AuthType: hostsDomain.AuthKey,
	})
	assert.ErrorIs(t, err, hostsDomain.ErrAuthConfigLocked)
}

func TestHostUpdate_ReaderForbidden(t *testing.T) {
	env := newTestEnv(t)
	owner := env.registerAndLogin(t, "alice", "password-123")
	reader := env.registerAndLogin(t, "bob", "password-123")
	host := env.createHost(t, owner.ID, "web-1")
	env.grantTo(t, owner.ID, host.ID, hostsDomain.PrincipalUser, reader.ID, hostsDomain.LevelRead)

	_, err := env.hosts.Update(context.Background(), reader.ID, host.ID, &hostsDomain.UpdateHostInput{
		Name:     "web-1",
		Address:  "10.0.0.1",
		AuthType: hostsDomain.AuthPassword,
	})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestHostUpdate_SecretChangePropagatesToGrantee(t *testing.T) {
	env := newTestEnv(t)
	owner := env.registerAndLogin(t, "alice", "password-123")
	grantee := env.registerAndLogin(t, "bob", "password-123")
	host := env.createHost(t, owner.ID, "web-1")
	env.grantTo(t, owner.ID, host.ID, hostsDomain.PrincipalUser, grantee.ID, hostsDomain.LevelRead)

	before, err := env.hosts.GetSecret(context.Background(), grantee.ID, host.ID, "password")
	require.NoError(t, err)
	require.Equal(t, "host-password", before)

	rotated := "rotated-password"
	_, err = env.hosts.Update(context.Background(), owner.ID, host.ID, &hostsDomain.UpdateHostInput{
		Name:     "web-1",
		Address:  "10.0.0.1",
		Port:     22,
		Username: "root",
		AuthType: hostsDomain.AuthPassword,
		Password: &rotated,
	})
	require.NoError(t, err)

	after, err := env.hosts.GetSecret(context.Background(), grantee.ID, host.ID, "password")
	require.NoError(t, err)
	assert.Equal(t, "rotated-password", after)
}

func TestHostDelete_OwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	owner := env.registerAndLogin(t, "alice", "password-123")
	grantee := env.registerAndLogin(t, "bob", "password-123")
	host := env.createHost(t, owner.ID, "web-1")
	env.grantTo(t, owner.ID, host.ID, hostsDomain.PrincipalUser, grantee.ID, hostsDomain.LevelWrite)

	err := env.hosts.Delete(context.Background(), grantee.ID, host.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	require.NoError(t, env.hosts.Delete(context.Background(), owner.ID, host.ID))
	_, err = env.hosts.Get(context.Background(), owner.ID, host.ID)
	assert.ErrorIs(t, err, hostsDomain.ErrHostNotFound)

	// Grants and shared rows cascade with the host.
	var count int
	require.NoError(t, env.db.QueryRow(`SELECT COUNT(*) FROM shared_secrets WHERE host_id = ?`, host.ID.String()).Scan(&count))
	assert.Zero(t, count)
}

func TestWipeUserSecrets(t *testing.T) {
	env := newTestEnv(t)
	owner := env.registerAndLogin(t, "alice", "password-123")
	grantee := env.registerAndLogin(t, "bob", "password-123")
	host := env.createHost(t, owner.ID, "web-1")
	env.grantTo(t, owner.ID, host.ID, hostsDomain.PrincipalUser, grantee.ID, hostsDomain.LevelRead)

	require.NoError(t, env.hosts.WipeUserSecrets(context.Background(), owner.ID))

	hosts, err := env.hosts.List(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Empty(t, hosts)

	// The grantee's shared rows went with the host.
	var count int
	require.NoError(t, env.db.QueryRow(`SELECT COUNT(*) FROM shared_secrets WHERE grantee_user_id = ?`, grantee.ID.String()).Scan(&count))
	assert.Zero(t, count)
}

func TestHostGet_UnknownID(t *testing.T) {
	env := newTestEnv(t)
	user := env.registerAndLogin(t, "alice", "password-123")

	_, err := env.hosts.Get(context.Background(), user.ID, uuid.Must(uuid.NewV7()))
	assert.ErrorIs(t, err, hostsDomain.ErrHostNotFound)
}
