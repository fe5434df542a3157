package service

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/sshdeck/sshdeck/internal/crypto/domain"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestNewAESGCM_InvalidKeySize(t *testing.T) {
	_, err := NewAESGCM(make([]byte, 16))
	assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeySize)

	_, err = NewAESGCM(nil)
	assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeySize)
}

func TestAESGCM_RoundTrip(t *testing.T) {
	aead, err := NewAESGCM(testKey(t))
	require.NoError(t, err)

	plaintext := []byte("ssh private key material")
	aad := []byte("host|h1|private_key|u1")

	ciphertext, nonce, err := aead.Encrypt(plaintext, aad)
	require.NoError(t, err)
	assert.Len(t, nonce, 12)
	assert.NotContains(t, string(ciphertext), "ssh private key")

	decrypted, err := aead.Decrypt(ciphertext, nonce, aad)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestAESGCM_WrongAAD(t *testing.T) {
	aead, err := NewAESGCM(testKey(t))
	require.NoError(t, err)

	ciphertext, nonce, err := aead.Encrypt([]byte("secret"), []byte("context-a"))
	require.NoError(t, err)

	_, err = aead.Decrypt(ciphertext, nonce, []byte("context-b"))
	assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
}

func TestAESGCM_WrongKey(t *testing.T) {
	aead1, err := NewAESGCM(testKey(t))
	require.NoError(t, err)
	aead2, err := NewAESGCM(testKey(t))
	require.NoError(t, err)

	ciphertext, nonce, err := aead1.Encrypt([]byte("secret"), nil)
	require.NoError(t, err)

	_, err = aead2.Decrypt(ciphertext, nonce, nil)
	assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
}

func TestAESGCM_TamperedCiphertext(t *testing.T) {
	aead, err := NewAESGCM(testKey(t))
	require.NoError(t, err)

	ciphertext, nonce, err := aead.Encrypt([]byte("secret"), nil)
	require.NoError(t, err)

	ciphertext[0] ^= 0xff
	_, err = aead.Decrypt(ciphertext, nonce, nil)
	assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
}

func TestAESGCM_UniqueNonces(t *testing.T) {
	aead, err := NewAESGCM(testKey(t))
	require.NoError(t, err)

	_, nonce1, err := aead.Encrypt([]byte("secret"), nil)
	require.NoError(t, err)
	_, nonce2, err := aead.Encrypt([]byte("secret"), nil)
	require.NoError(t, err)

	assert.NotEqual(t, nonce1, nonce2)
}
