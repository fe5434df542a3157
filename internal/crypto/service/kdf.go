package service

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/argon2"

	cryptoDomain "github.com/sshdeck/sshdeck/internal/crypto/domain"
)

// saltSize is the length of KEK salts in bytes.
const saltSize = 16

// KekDeriverService derives KEKs with argon2id. The parameters travel with
// the stored salt, so tuning them only affects wraps created afterwards.
type KekDeriverService struct {
	defaults cryptoDomain.KDFParams
}

// NewKekDeriver creates a KekDeriverService with the given default parameters
// for newly generated salts.
func NewKekDeriver(defaults cryptoDomain.KDFParams) *KekDeriverService {
	return &KekDeriverService{defaults: defaults}
}

// DeriveKEK derives a 32-byte KEK from a password and salt using argon2id.
// Returns ErrInvalidKDFParams when the stored parameters are out of range.
func (k *KekDeriverService) DeriveKEK(
	password string,
	salt []byte,
	params cryptoDomain.KDFParams,
) ([]byte, error) {
	if !params.Valid() {
		return nil, cryptoDomain.ErrInvalidKDFParams
	}
	if len(salt) == 0 {
		return nil, cryptoDomain.ErrInvalidKDFParams
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		params.Iterations,
		params.MemoryKiB,
		params.Parallelism,
		32,
	)

	return key, nil
}

// NewSalt generates a fresh random salt paired with the default parameters.
func (k *KekDeriverService) NewSalt() ([]byte, cryptoDomain.KDFParams, error) {
	if !k.defaults.Valid() {
		return nil, cryptoDomain.KDFParams{}, cryptoDomain.ErrInvalidKDFParams
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, cryptoDomain.KDFParams{}, fmt.Errorf("failed to generate salt: %w", err)
	}

	return salt, k.defaults, nil
}

// ConstantTimeEqual compares two byte slices in constant time.
func ConstantTimeEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
