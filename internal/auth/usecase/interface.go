// Package usecase implements the authentication business logic: login state
// machine, session lifecycle, password changes, and account management.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/sshdeck/sshdeck/internal/auth/domain"
)

// UserRepository defines persistence operations for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *authDomain.User) error
	Get(ctx context.Context, id uuid.UUID) (*authDomain.User, error)
	GetByName(ctx context.Context, name string) (*authDomain.User, error)
	GetByExternalSubject(ctx context.Context, subject string) (*authDomain.User, error)
	List(ctx context.Context, limit, offset int) ([]*authDomain.User, error)
	Update(ctx context.Context, user *authDomain.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountAdmins(ctx context.Context) (int, error)
}

// SessionRepository defines persistence operations for sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *authDomain.Session) error
	Get(ctx context.Context, id uuid.UUID) (*authDomain.Session, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*authDomain.Session, error)
	ListAll(ctx context.Context) ([]*authDomain.Session, error)
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	Revoke(ctx context.Context, id uuid.UUID, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID, at time.Time) error
	DeleteDead(ctx context.Context, now time.Time) (int64, error)
}

// IdentityClient exchanges an authorization code with the external identity
// provider for a verified identity.
type IdentityClient interface {
	Exchange(ctx context.Context, code string) (*ExternalIdentity, error)
}

// ExternalIdentity is what the provider asserts about a logged-in subject.
type ExternalIdentity struct {
	Subject string
	Name    string
}

// PendingShareFlusher materializes shares parked for a user while they were
// offline. Called with the user's freshly unlocked DEK.
type PendingShareFlusher interface {
	FlushPendingShares(ctx context.Context, userID uuid.UUID, dek []byte) error
}

// UserDataWiper destroys a user's encrypted payloads. The destructive
// password reset uses it when no recovery path exists: a new DEK makes the
// old ciphertexts permanently unreadable, so they are removed outright.
type UserDataWiper interface {
	WipeUserSecrets(ctx context.Context, userID uuid.UUID) error
}
