// Package usecase implements the in-memory DEK vault and the entity-aware
// record encryption service.
package usecase

import (
	"context"

	"github.com/google/uuid"

	cryptoDomain "github.com/sshdeck/sshdeck/internal/crypto/domain"
)

// KekSaltRepository persists per-user KDF salts and parameters.
type KekSaltRepository interface {
	Create(ctx context.Context, salt *cryptoDomain.KekSalt) error
	Get(ctx context.Context, userID uuid.UUID) (*cryptoDomain.KekSalt, error)
	Replace(ctx context.Context, salt *cryptoDomain.KekSalt) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

// WrappedDekRepository persists the sealed form of user DEKs. Exactly one
// active wrapping exists per user.
type WrappedDekRepository interface {
	Create(ctx context.Context, dek *cryptoDomain.WrappedDek) error
	Get(ctx context.Context, userID uuid.UUID) (*cryptoDomain.WrappedDek, error)
	Replace(ctx context.Context, dek *cryptoDomain.WrappedDek) error
	Delete(ctx context.Context, userID uuid.UUID) error
}
