// Package domain defines the cryptographic domain models of the credential
// security core.
//
// The key hierarchy is: password → KEK → DEK → record fields. Each user owns
// one DEK, wrapped either by the KEK derived from their password or, for
// external-identity users, by a key derived from the system root secret. The
// KDF parameters are stored next to the salt so they can be tuned without
// invalidating existing wraps.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// KDFParams are the argon2id parameters used to derive a KEK from a password.
type KDFParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
}

// Valid reports whether the parameters are usable for derivation.
func (p KDFParams) Valid() bool {
	return p.MemoryKiB >= 8*1024 && p.Iterations >= 1 && p.Parallelism >= 1
}

// KekSalt is a user's per-password salt together with the parameters the KEK
// was derived with. Regenerated only on password change or destructive reset.
type KekSalt struct {
	UserID    uuid.UUID
	Salt      []byte
	Params    KDFParams
	CreatedAt time.Time
}
