package service

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTOTPService_GenerateSecret(t *testing.T) {
	svc := NewTOTPService()

	secret, url, err := svc.GenerateSecret("alice")
	require.NoError(t, err)
	assert.NotEmpty(t, secret)
	assert.Contains(t, url, "otpauth://totp/")
	assert.Contains(t, url, "alice")
}

func TestTOTPService_ValidateCode(t *testing.T) {
	svc := NewTOTPService()

	secret, _, err := svc.GenerateSecret("alice")
	require.NoError(t, err)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	assert.True(t, svc.ValidateCode(code, secret))
	assert.False(t, svc.ValidateCode("000000", secret))
}

func TestTOTPService_BackupCodes(t *testing.T) {
	svc := NewTOTPService()

	plain, stored, err := svc.GenerateBackupCodes()
	require.NoError(t, err)
	require.Len(t, plain, 10)

	for _, code := range plain {
		assert.NotContains(t, stored, code, "stored form must not contain the plain code")
	}

	remaining, ok := svc.ConsumeBackupCode(plain[3], stored)
	assert.True(t, ok)
	assert.Equal(t, 9, len(strings.Split(remaining, ",")))

	// Same code cannot be used twice.
	_, ok = svc.ConsumeBackupCode(plain[3], remaining)
	assert.False(t, ok)
}

func TestTOTPService_ConsumeBackupCode_Unknown(t *testing.T) {
	svc := NewTOTPService()

	_, stored, err := svc.GenerateBackupCodes()
	require.NoError(t, err)

	remaining, ok := svc.ConsumeBackupCode("ffffffffff", stored)
	assert.False(t, ok)
	assert.Equal(t, stored, remaining)

	_, ok = svc.ConsumeBackupCode("anything", "")
	assert.False(t, ok)
}
