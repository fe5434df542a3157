package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authDomain "github.com/sshdeck/sshdeck/internal/auth/domain"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
)

func TestRegister_ProvisionsKeyMaterial(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice", "correct horse battery")

	var saltCount, dekCount int
	require.NoError(t, env.db.QueryRow(
		`SELECT COUNT(*) FROM kek_salts WHERE user_id = ?`, user.ID.String()).Scan(&saltCount))
	require.NoError(t, env.db.QueryRow(
		`SELECT COUNT(*) FROM wrapped_deks WHERE user_id = ?`, user.ID.String()).Scan(&dekCount))

	assert.Equal(t, 1, saltCount)
	assert.Equal(t, 1, dekCount)
	assert.NotEmpty(t, user.Verifier)
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.users.Register(ctx, &authDomain.CreateUserInput{Name: "", Password: "long enough pw"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = env.users.Register(ctx, &authDomain.CreateUserInput{Name: "alice", Password: "short"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRegister_DuplicateName(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "correct horse battery")

	_, err := env.users.Register(context.Background(), &authDomain.CreateUserInput{
		Name:     "alice",
		Password: "another password",
	})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestDelete_CascadesAndRevokes(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice", "correct horse battery")
	ctx := context.Background()

	env.loginBrowser(t, "alice", "correct horse battery")
	require.NoError(t, env.users.Delete(ctx, user.ID))

	assert.Nil(t, env.vault.Get(user.ID))

	var count int
	require.NoError(t, env.db.QueryRow(
		`SELECT COUNT(*) FROM wrapped_deks WHERE user_id = ?`, user.ID.String()).Scan(&count))
	assert.Equal(t, 0, count, "key material cascades with the account")
}

func TestDelete_LastAdminGuard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin, err := env.users.Register(ctx, &authDomain.CreateUserInput{
		Name: "root", Password: "admin password", IsAdmin: true,
	})
	require.NoError(t, err)

	err = env.users.Delete(ctx, admin.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	// With a second admin the first may go.
	_, err = env.users.Register(ctx, &authDomain.CreateUserInput{
		Name: "root2", Password: "admin password", IsAdmin: true,
	})
	require.NoError(t, err)
	assert.NoError(t, env.users.Delete(ctx, admin.ID))
}

func TestSetAdmin_LastAdminGuard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin, err := env.users.Register(ctx, &authDomain.CreateUserInput{
		Name: "root", Password: "admin password", IsAdmin: true,
	})
	require.NoError(t, err)

	err = env.users.SetAdmin(ctx, admin.ID, false)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	user := env.register(t, "alice", "correct horse battery")
	require.NoError(t, env.users.SetAdmin(ctx, user.ID, true))
	assert.NoError(t, env.users.SetAdmin(ctx, admin.ID, false))
}

func TestTOTPEnrollment_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice", "correct horse battery")
	ctx := context.Background()

	// Enrollment encrypts the secret under the DEK, so it needs an
	// unlocked session.
	_, _, err := env.users.StartTOTPEnrollment(ctx, user.ID)
	assert.ErrorIs(t, err, apperrors.ErrDataLocked)

	env.loginBrowser(t, "alice", "correct horse battery")

	secret, url, err := env.users.StartTOTPEnrollment(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, secret)
	assert.Contains(t, url, "otpauth://")

	// Enrollment is not active until confirmed, and the stored secret is
	// ciphertext, not the provisioning value.
	got, err := env.users.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, got.TOTPEnabled)
	assert.True(t, strings.HasPrefix(got.TOTPSecret, "v1:"))
	assert.NotContains(t, got.TOTPSecret, secret)

	_, err = env.users.ConfirmTOTPEnrollment(ctx, user.ID, "000000")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	backupCodes, err := env.users.ConfirmTOTPEnrollment(ctx, user.ID, code)
	require.NoError(t, err)
	assert.Len(t, backupCodes, 10)

	// Second confirmation is a conflict.
	_, err = env.users.ConfirmTOTPEnrollment(ctx, user.ID, code)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	// Disable requires a valid code.
	require.Error(t, env.users.DisableTOTP(ctx, user.ID, "000000"))
	code, err = totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, env.users.DisableTOTP(ctx, user.ID, code))

	got, err = env.users.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, got.TOTPEnabled)
	assert.Empty(t, got.TOTPSecret)
}
