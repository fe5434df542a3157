package service

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authDomain "github.com/sshdeck/sshdeck/internal/auth/domain"
)

func testSigningKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func testSession(expiresAt time.Time) *authDomain.Session {
	return &authDomain.Session{
		ID:          uuid.Must(uuid.NewV7()),
		UserID:      uuid.Must(uuid.NewV7()),
		DeviceClass: authDomain.DeviceBrowser,
		CreatedAt:   time.Now().UTC(),
		ExpiresAt:   expiresAt,
	}
}

func TestTokenService_GenerateValidate(t *testing.T) {
	svc := NewTokenService(testSigningKey(t))
	session := testSession(time.Now().UTC().Add(time.Hour))

	token, err := svc.Generate(session)
	require.NoError(t, err)

	sessionID, userID, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, session.ID, sessionID)
	assert.Equal(t, session.UserID, userID)
}

func TestTokenService_ExpiredToken(t *testing.T) {
	svc := NewTokenService(testSigningKey(t))
	session := testSession(time.Now().UTC().Add(-time.Minute))

	token, err := svc.Generate(session)
	require.NoError(t, err)

	_, _, err = svc.Validate(token)
	assert.ErrorIs(t, err, authDomain.ErrSessionExpired)
}

func TestTokenService_WrongKey(t *testing.T) {
	session := testSession(time.Now().UTC().Add(time.Hour))

	token, err := NewTokenService(testSigningKey(t)).Generate(session)
	require.NoError(t, err)

	_, _, err = NewTokenService(testSigningKey(t)).Validate(token)
	assert.ErrorIs(t, err, authDomain.ErrSessionExpired)
}

func TestTokenService_Garbage(t *testing.T) {
	svc := NewTokenService(testSigningKey(t))

	_, _, err := svc.Validate("not.a.token")
	assert.Error(t, err)
}
