// Package usecase implements the host inventory business logic: host and
// credential management, the permission resolver, and the shared-credential
// pipeline.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	hostsDomain "github.com/sshdeck/sshdeck/internal/hosts/domain"
)

// HostRepository defines persistence for hosts.
type HostRepository interface {
	Create(ctx context.Context, host *hostsDomain.Host) error
	Get(ctx context.Context, id uuid.UUID) (*hostsDomain.Host, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*hostsDomain.Host, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*hostsDomain.Host, error)
	Update(ctx context.Context, host *hostsDomain.Host) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}

// CredentialRepository defines persistence for reusable credentials.
type CredentialRepository interface {
	Create(ctx context.Context, credential *hostsDomain.Credential) error
	Get(ctx context.Context, id uuid.UUID) (*hostsDomain.Credential, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*hostsDomain.Credential, error)
	Update(ctx context.Context, credential *hostsDomain.Credential) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}

// GrantRepository defines persistence for host share grants.
type GrantRepository interface {
	Create(ctx context.Context, grant *hostsDomain.HostGrant) error
	Get(ctx context.Context, id uuid.UUID) (*hostsDomain.HostGrant, error)
	ListByHost(ctx context.Context, hostID uuid.UUID) ([]*hostsDomain.HostGrant, error)
	ListActiveForPrincipals(ctx context.Context, hostID uuid.UUID, userID uuid.UUID, roleIDs []uuid.UUID, now time.Time) ([]*hostsDomain.HostGrant, error)
	ListHostIDsForPrincipals(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID, now time.Time) ([]uuid.UUID, error)
	ListForPrincipal(ctx context.Context, kind hostsDomain.PrincipalKind, principalID uuid.UUID) ([]*hostsDomain.HostGrant, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteForPrincipal(ctx context.Context, kind hostsDomain.PrincipalKind, principalID uuid.UUID) error
}

// RoleRepository defines persistence for roles and memberships.
type RoleRepository interface {
	Create(ctx context.Context, role *hostsDomain.Role) error
	Get(ctx context.Context, id uuid.UUID) (*hostsDomain.Role, error)
	List(ctx context.Context) ([]*hostsDomain.Role, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AssignUser(ctx context.Context, roleID, userID uuid.UUID) error
	UnassignUser(ctx context.Context, roleID, userID uuid.UUID) error
	ListRoleIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	ListMemberIDs(ctx context.Context, roleID uuid.UUID) ([]uuid.UUID, error)
}

// SharedSecretRepository defines persistence for grantee-wrapped secrets.
type SharedSecretRepository interface {
	Upsert(ctx context.Context, secret *hostsDomain.SharedSecret) error
	ListByGranteeAndHost(ctx context.Context, granteeID, hostID uuid.UUID) ([]*hostsDomain.SharedSecret, error)
	DeleteByGrantee(ctx context.Context, granteeID uuid.UUID) error
}

// PendingShareRepository defines persistence for pending-wrapped secrets.
type PendingShareRepository interface {
	Upsert(ctx context.Context, pending *hostsDomain.PendingShare) error
	ListByGrantee(ctx context.Context, granteeID uuid.UUID) ([]*hostsDomain.PendingShare, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByGrantee(ctx context.Context, granteeID uuid.UUID) error
}

// UserDataRepository wipes the ancillary per-user encrypted tables.
type UserDataRepository interface {
	WipeByUser(ctx context.Context, userID uuid.UUID) error
}
