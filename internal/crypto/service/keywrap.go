package service

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"

	cryptoDomain "github.com/sshdeck/sshdeck/internal/crypto/domain"
)

// KeyWrapperService seals a user's DEK under a wrapping key (the password
// KEK or the external-identity key) with AES-256-GCM. The associated data
// binds the wrap to the user and the wrap kind, so a sealed DEK cannot be
// reassigned to another user or unwrapped through the wrong path.
type KeyWrapperService struct{}

// NewKeyWrapper creates a new KeyWrapperService.
func NewKeyWrapper() *KeyWrapperService {
	return &KeyWrapperService{}
}

// wrapAAD builds the associated data of a DEK wrapping.
func wrapAAD(userID uuid.UUID, kind cryptoDomain.WrapKind) []byte {
	return fmt.Appendf(nil, "dek|%s|%s", userID, kind)
}

// GenerateDEK returns a fresh random 32-byte data key.
func (k *KeyWrapperService) GenerateDEK() ([]byte, error) {
	dek := make([]byte, 32)
	if _, err := rand.Read(dek); err != nil {
		return nil, fmt.Errorf("failed to generate DEK: %w", err)
	}
	return dek, nil
}

// Wrap seals a DEK under the wrapping key.
func (k *KeyWrapperService) Wrap(
	dek, wrappingKey []byte,
	userID uuid.UUID,
	kind cryptoDomain.WrapKind,
) (ciphertext, nonce []byte, err error) {
	if len(dek) != 32 {
		return nil, nil, cryptoDomain.ErrInvalidKeySize
	}

	aead, err := NewAESGCM(wrappingKey)
	if err != nil {
		return nil, nil, err
	}

	return aead.Encrypt(dek, wrapAAD(userID, kind))
}

// Unwrap opens a sealed DEK. A wrong wrapping key, a tampered ciphertext, or
// a mismatched user/kind binding all surface as ErrDecryptionFailed.
func (k *KeyWrapperService) Unwrap(
	wrapped *cryptoDomain.WrappedDek,
	wrappingKey []byte,
) ([]byte, error) {
	aead, err := NewAESGCM(wrappingKey)
	if err != nil {
		return nil, err
	}

	dek, err := aead.Decrypt(
		wrapped.Ciphertext,
		wrapped.Nonce,
		wrapAAD(wrapped.UserID, wrapped.WrapKind),
	)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}

	return dek, nil
}
