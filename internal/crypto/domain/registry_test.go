package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensitiveFields(t *testing.T) {
	fields, ok := SensitiveFields(KindHost)
	require.True(t, ok)

	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}

	assert.ElementsMatch(t, []string{
		"password",
		"private_key",
		"key_passphrase",
		"sudo_password",
		"proxy_password",
		"autostart_password",
		"autostart_private_key",
		"autostart_key_passphrase",
	}, names)
}

func TestSensitiveFields_UnknownKind(t *testing.T) {
	_, ok := SensitiveFields(EntityKind("router"))
	assert.False(t, ok)
}

func TestIsSensitive(t *testing.T) {
	assert.True(t, IsSensitive(KindHost, "password"))
	assert.True(t, IsSensitive(KindCredential, "private_key"))
	assert.True(t, IsSensitive(KindUser, "totp_secret"))
	assert.True(t, IsSensitive(KindCommandHistory, "command"))

	assert.False(t, IsSensitive(KindHost, "name"))
	assert.False(t, IsSensitive(KindHost, "address"))
	assert.False(t, IsSensitive(KindUser, "name"))
}

func TestLazyFields(t *testing.T) {
	fields, ok := SensitiveFields(KindSessionRecording)
	require.True(t, ok)
	require.Len(t, fields, 1)
	assert.True(t, fields[0].Lazy)

	fields, ok = SensitiveFields(KindHost)
	require.True(t, ok)
	for _, f := range fields {
		if f.Name == "private_key" {
			assert.True(t, f.Lazy)
		}
		if f.Name == "password" {
			assert.False(t, f.Lazy)
		}
	}
}
