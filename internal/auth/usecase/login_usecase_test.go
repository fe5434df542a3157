package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authDomain "github.com/sshdeck/sshdeck/internal/auth/domain"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
)

func TestPasswordLogin_HappyPath(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice", "correct horse battery")

	out := env.loginBrowser(t, "alice", "correct horse battery")

	assert.Equal(t, authDomain.LoginStateUnlocked, out.State)
	assert.Equal(t, user.ID, out.UserID)
	assert.NotEmpty(t, out.Token)

	assert.NotNil(t, env.vault.Get(user.ID), "dek must be resident after login")
	assert.True(t, env.sessions.IsUnlocked(out.SessionID))
	assert.Equal(t, 1, env.flusher.callCount(), "pending shares flush on unlock")
}

func TestPasswordLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice", "correct horse battery")

	_, err := env.login.PasswordLogin(context.Background(), &authDomain.LoginInput{
		Name:        "alice",
		Password:    "wrong",
		DeviceClass: authDomain.DeviceBrowser,
		RemoteAddr:  "127.0.0.1",
	})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Nil(t, env.vault.Get(user.ID))
}

func TestPasswordLogin_UnknownUser(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.login.PasswordLogin(context.Background(), &authDomain.LoginInput{
		Name:        "nobody",
		Password:    "whatever",
		DeviceClass: authDomain.DeviceBrowser,
		RemoteAddr:  "127.0.0.1",
	})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestPasswordLogin_RateLimited(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "correct horse battery")

	input := &authDomain.LoginInput{
		Name:        "alice",
		Password:    "wrong",
		DeviceClass: authDomain.DeviceBrowser,
		RemoteAddr:  "127.0.0.1",
	}

	for range env.cfg.RateLimitMaxFailures {
		_, err := env.login.PasswordLogin(context.Background(), input)
		require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	}

	// Even the correct password is refused while the lock holds.
	_, err := env.login.PasswordLogin(context.Background(), &authDomain.LoginInput{
		Name:        "alice",
		Password:    "correct horse battery",
		DeviceClass: authDomain.DeviceBrowser,
		RemoteAddr:  "127.0.0.1",
	})
	require.ErrorIs(t, err, apperrors.ErrRateLimited)

	var rateErr *apperrors.RateLimitedError
	require.ErrorAs(t, err, &rateErr)
	assert.Greater(t, rateErr.RemainingSeconds, 0)
}

func TestPasswordLogin_RateLimitScopedToClient(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "correct horse battery")

	attacker := &authDomain.LoginInput{
		Name:        "alice",
		Password:    "wrong",
		DeviceClass: authDomain.DeviceBrowser,
		RemoteAddr:  "198.51.100.7",
	}
	for range env.cfg.RateLimitMaxFailures {
		_, err := env.login.PasswordLogin(context.Background(), attacker)
		require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	}

	// The hammering address is locked out for this account...
	_, err := env.login.PasswordLogin(context.Background(), &authDomain.LoginInput{
		Name:        "alice",
		Password:    "correct horse battery",
		DeviceClass: authDomain.DeviceBrowser,
		RemoteAddr:  "198.51.100.7",
	})
	require.ErrorIs(t, err, apperrors.ErrRateLimited)

	// ...but the owner logging in from elsewhere is unaffected.
	env.loginBrowser(t, "alice", "correct horse battery")
}

func TestPasswordLogin_TwoFactorFlow(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice", "correct horse battery")
	ctx := context.Background()

	// Enroll from an unlocked session; the secret lives under the DEK.
	env.loginBrowser(t, "alice", "correct horse battery")
	secret, _, err := env.users.StartTOTPEnrollment(ctx, user.ID)
	require.NoError(t, err)
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	backupCodes, err := env.users.ConfirmTOTPEnrollment(ctx, user.ID, code)
	require.NoError(t, err)
	require.Len(t, backupCodes, 10)

	out := env.loginBrowser(t, "alice", "correct horse battery")
	assert.Equal(t, authDomain.LoginStateAwait2FA, out.State)

	// The key is resident but the session is still gated.
	assert.NotNil(t, env.vault.Get(user.ID))
	assert.False(t, env.sessions.IsUnlocked(out.SessionID))
	assert.True(t, env.sessions.AwaitingSecondFactor(out.SessionID))

	err = env.login.SubmitTOTP(ctx, out.SessionID, "000000")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.False(t, env.sessions.IsUnlocked(out.SessionID))

	code, err = totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, env.login.SubmitTOTP(ctx, out.SessionID, code))
	assert.True(t, env.sessions.IsUnlocked(out.SessionID))
}

func TestSubmitTOTP_BackupCode(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice", "correct horse battery")
	ctx := context.Background()

	env.loginBrowser(t, "alice", "correct horse battery")
	secret, _, err := env.users.StartTOTPEnrollment(ctx, user.ID)
	require.NoError(t, err)
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	backupCodes, err := env.users.ConfirmTOTPEnrollment(ctx, user.ID, code)
	require.NoError(t, err)

	out := env.loginBrowser(t, "alice", "correct horse battery")
	require.NoError(t, env.login.SubmitTOTP(ctx, out.SessionID, backupCodes[0]))
	assert.True(t, env.sessions.IsUnlocked(out.SessionID))

	// The backup code is single use.
	second := env.loginBrowser(t, "alice", "correct horse battery")
	err = env.login.SubmitTOTP(ctx, second.SessionID, backupCodes[0])
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestSubmitTOTP_FailuresDoNotLockLogin(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice", "correct horse battery")
	ctx := context.Background()

	env.loginBrowser(t, "alice", "correct horse battery")
	secret, _, err := env.users.StartTOTPEnrollment(ctx, user.ID)
	require.NoError(t, err)
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	_, err = env.users.ConfirmTOTPEnrollment(ctx, user.ID, code)
	require.NoError(t, err)

	out := env.loginBrowser(t, "alice", "correct horse battery")
	for range env.cfg.RateLimitMaxFailures {
		err := env.login.SubmitTOTP(ctx, out.SessionID, "000000")
		require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	}

	// The second-factor counter is saturated...
	err = env.login.SubmitTOTP(ctx, out.SessionID, "000000")
	require.ErrorIs(t, err, apperrors.ErrRateLimited)

	// ...on its own budget: password logins still go through.
	env.loginBrowser(t, "alice", "correct horse battery")
}

func TestLogout_ReleasesKey(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice", "correct horse battery")

	out := env.loginBrowser(t, "alice", "correct horse battery")
	require.NoError(t, env.login.Logout(context.Background(), out.SessionID))

	assert.Nil(t, env.vault.Get(user.ID), "last session out wipes the dek")
	assert.False(t, env.sessions.IsUnlocked(out.SessionID))
}

func TestLogout_KeyStaysWhileOtherSessionLive(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice", "correct horse battery")

	first := env.loginBrowser(t, "alice", "correct horse battery")
	second := env.loginBrowser(t, "alice", "correct horse battery")

	require.NoError(t, env.login.Logout(context.Background(), first.SessionID))
	assert.NotNil(t, env.vault.Get(user.ID))
	assert.True(t, env.sessions.IsUnlocked(second.SessionID))
}

func TestUnlock_AfterEviction(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice", "correct horse battery")
	ctx := context.Background()

	out := env.loginBrowser(t, "alice", "correct horse battery")

	// Simulate the idle watchdog firing.
	env.vault.EvictIdle(time.Now().Add(env.cfg.DekIdleEvict))
	require.Nil(t, env.vault.Get(user.ID))
	assert.False(t, env.sessions.IsUnlocked(out.SessionID))

	err := env.login.Unlock(ctx, out.SessionID, "wrong")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	require.NoError(t, env.login.Unlock(ctx, out.SessionID, "correct horse battery"))
	assert.NotNil(t, env.vault.Get(user.ID))
	assert.True(t, env.sessions.IsUnlocked(out.SessionID))
}

func TestExternalLogin_ProvisionsOnFirstLogin(t *testing.T) {
	env := newTestEnv(t)
	env.identity.identity = &ExternalIdentity{Subject: "sub-123", Name: "bob"}
	ctx := context.Background()

	out, err := env.login.ExternalLogin(ctx, "auth-code", authDomain.DeviceDesktop, "cli")
	require.NoError(t, err)
	assert.Equal(t, authDomain.LoginStateUnlocked, out.State)
	assert.True(t, env.sessions.IsUnlocked(out.SessionID))

	// A second login finds the same account.
	again, err := env.login.ExternalLogin(ctx, "auth-code", authDomain.DeviceDesktop, "cli")
	require.NoError(t, err)
	assert.Equal(t, out.UserID, again.UserID)
}

func TestExternalLogin_NoPasswordPath(t *testing.T) {
	env := newTestEnv(t)
	env.identity.identity = &ExternalIdentity{Subject: "sub-123", Name: "bob"}
	ctx := context.Background()

	_, err := env.login.ExternalLogin(ctx, "auth-code", authDomain.DeviceDesktop, "cli")
	require.NoError(t, err)

	// The provisioned account refuses password logins.
	_, err = env.login.PasswordLogin(ctx, &authDomain.LoginInput{
		Name:        "bob",
		Password:    "anything",
		DeviceClass: authDomain.DeviceBrowser,
		RemoteAddr:  "127.0.0.1",
	})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestExternalLogin_ExchangeFailure(t *testing.T) {
	env := newTestEnv(t)
	env.identity.err = apperrors.New("provider unreachable")

	_, err := env.login.ExternalLogin(context.Background(), "auth-code", authDomain.DeviceDesktop, "cli")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}
