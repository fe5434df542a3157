package service

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/sshdeck/sshdeck/internal/crypto/domain"
)

func testFieldRef() FieldRef {
	return FieldRef{
		Kind:     cryptoDomain.KindHost,
		RecordID: "host-1",
		Field:    "password",
		UserID:   uuid.Must(uuid.NewV7()),
	}
}

func TestFieldCipher_RoundTrip(t *testing.T) {
	cipher := NewFieldCipher()
	dek := testKey(t)
	ref := testFieldRef()

	encrypted, err := cipher.EncryptField("secret", dek, ref)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(encrypted, "v1:"))
	assert.NotContains(t, encrypted, "secret")

	decrypted, err := cipher.DecryptField(encrypted, dek, ref)
	require.NoError(t, err)
	assert.Equal(t, "secret", decrypted)
}

func TestFieldCipher_EncryptIdempotent(t *testing.T) {
	cipher := NewFieldCipher()
	dek := testKey(t)
	ref := testFieldRef()

	encrypted, err := cipher.EncryptField("secret", dek, ref)
	require.NoError(t, err)

	again, err := cipher.EncryptField(encrypted, dek, ref)
	require.NoError(t, err)
	assert.Equal(t, encrypted, again)
}

func TestFieldCipher_EmptyValue(t *testing.T) {
	cipher := NewFieldCipher()

	encrypted, err := cipher.EncryptField("", testKey(t), testFieldRef())
	require.NoError(t, err)
	assert.Equal(t, "", encrypted)
}

func TestFieldCipher_LegacyPassthrough(t *testing.T) {
	cipher := NewFieldCipher()

	// Plaintext stored before encryption was introduced reads back unchanged.
	decrypted, err := cipher.DecryptField("legacy-plaintext", testKey(t), testFieldRef())
	require.NoError(t, err)
	assert.Equal(t, "legacy-plaintext", decrypted)
}

func TestFieldCipher_WrongKey(t *testing.T) {
	cipher := NewFieldCipher()
	ref := testFieldRef()

	encrypted, err := cipher.EncryptField("secret", testKey(t), ref)
	require.NoError(t, err)

	_, err = cipher.DecryptField(encrypted, testKey(t), ref)
	assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
}

func TestFieldCipher_FieldShuffleRejected(t *testing.T) {
	cipher := NewFieldCipher()
	dek := testKey(t)
	ref := testFieldRef()

	encrypted, err := cipher.EncryptField("secret", dek, ref)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(FieldRef) FieldRef
	}{
		{"different field", func(r FieldRef) FieldRef { r.Field = "sudo_password"; return r }},
		{"different record", func(r FieldRef) FieldRef { r.RecordID = "host-2"; return r }},
		{"different kind", func(r FieldRef) FieldRef { r.Kind = cryptoDomain.KindCredential; return r }},
		{"different user", func(r FieldRef) FieldRef { r.UserID = uuid.Must(uuid.NewV7()); return r }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cipher.DecryptField(encrypted, dek, tt.mutate(ref))
			assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
		})
	}
}

func TestFieldCipher_MalformedCiphertext(t *testing.T) {
	cipher := NewFieldCipher()

	_, err := cipher.DecryptField("v1:!!!not-base64!!!", testKey(t), testFieldRef())
	assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)

	_, err = cipher.DecryptField("v1:c2hvcnQ", testKey(t), testFieldRef())
	assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
}
