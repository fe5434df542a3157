// Package service implements the cryptographic services of the credential
// security core: KEK derivation, AEAD, DEK wrapping, per-field encryption,
// and the system key hierarchy.
package service

import (
	"context"

	"github.com/google/uuid"

	cryptoDomain "github.com/sshdeck/sshdeck/internal/crypto/domain"
)

// AEAD defines the interface for Authenticated Encryption with Associated Data.
type AEAD interface {
	// Encrypt encrypts plaintext with optional AAD and returns ciphertext and nonce.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt decrypts ciphertext using the provided nonce and AAD.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}

// KekDeriver derives Key Encryption Keys from passwords. Derivation is
// memory-hard and stateless: every call recomputes.
type KekDeriver interface {
	// DeriveKEK derives a 32-byte KEK from a password and salt.
	DeriveKEK(password string, salt []byte, params cryptoDomain.KDFParams) ([]byte, error)

	// NewSalt generates a fresh random salt with the configured parameters.
	NewSalt() ([]byte, cryptoDomain.KDFParams, error)
}

// KeyWrapper seals and opens a user's DEK under a wrapping key.
type KeyWrapper interface {
	// GenerateDEK returns a fresh random 32-byte data key.
	GenerateDEK() ([]byte, error)

	// Wrap seals a DEK under the wrapping key, bound to the user and wrap kind.
	Wrap(dek, wrappingKey []byte, userID uuid.UUID, kind cryptoDomain.WrapKind) (ciphertext, nonce []byte, err error)

	// Unwrap opens a sealed DEK. Returns ErrDecryptionFailed on a wrong key
	// or tampered ciphertext.
	Unwrap(wrapped *cryptoDomain.WrappedDek, wrappingKey []byte) ([]byte, error)
}

// FieldRef identifies the exact location a field ciphertext is bound to.
type FieldRef struct {
	Kind     cryptoDomain.EntityKind
	RecordID string
	Field    string
	UserID   uuid.UUID
}

// FieldCipher encrypts and decrypts individual record fields under a DEK.
type FieldCipher interface {
	// EncryptField produces the v1 wire form of a field value. Already
	// encrypted values are returned unchanged.
	EncryptField(plaintext string, dek []byte, ref FieldRef) (string, error)

	// DecryptField inverts EncryptField. Values without the version prefix
	// are returned unchanged for compatibility with legacy records.
	DecryptField(value string, dek []byte, ref FieldRef) (string, error)
}

// SystemKeys owns the machine-local root secret and derives fixed-purpose
// sub-keys from it. The root is never exported.
type SystemKeys interface {
	// ExternalIdentityWrapKey derives the wrapping key for an external
	// subject's DEK.
	ExternalIdentityWrapKey(subject string) []byte

	// PendingShareWrapKey returns the key wrapping pending-share ciphertexts.
	PendingShareWrapKey() []byte

	// TokenSigningKey returns the process-wide bearer token signing key.
	TokenSigningKey() []byte

	// InternalToken returns the loopback RPC token of the requested length.
	InternalToken(n int) []byte
}

// KMSKeeper seals and opens small blobs with an external KMS. Implemented by
// *secrets.Keeper from gocloud.dev.
type KMSKeeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}
