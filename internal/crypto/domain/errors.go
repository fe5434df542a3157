package domain

import (
	"github.com/sshdeck/sshdeck/internal/errors"
)

// Cryptographic operation error definitions.
//
// These domain-specific errors wrap standard errors from internal/errors so
// the HTTP layer can map them without inspecting cryptographic detail.
var (
	// ErrInvalidKeySize indicates a key is not exactly 32 bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrInvalidKDFParams indicates the argon2id parameters are out of range.
	ErrInvalidKDFParams = errors.Wrap(errors.ErrInvalidInput, "invalid kdf parameters")

	// ErrDecryptionFailed indicates an AEAD open failed: wrong key, wrong
	// associated data, or tampered ciphertext. The specific cause is never
	// disclosed.
	ErrDecryptionFailed = errors.Wrap(errors.ErrCryptoFailed, "decryption failed")

	// ErrDekNotResident indicates the user's data key is not in the vault.
	ErrDekNotResident = errors.Wrap(errors.ErrDataLocked, "data key not resident")

	// ErrUnknownEntityKind indicates the entity kind is not in the registry.
	ErrUnknownEntityKind = errors.Wrap(errors.ErrInvalidInput, "unknown entity kind")
)
