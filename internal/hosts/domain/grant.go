package domain

import (
	"time"

	"github.com/google/uuid"
)

// PrincipalKind says whether a grant targets a single user or every member
// of a role.
type PrincipalKind string

const (
	PrincipalUser PrincipalKind = "user"
	PrincipalRole PrincipalKind = "role"
)

// Valid reports whether the principal kind is one of the known values.
func (p PrincipalKind) Valid() bool {
	return p == PrincipalUser || p == PrincipalRole
}

// GrantLevel is the permission level a grant confers.
type GrantLevel string

const (
	LevelRead  GrantLevel = "read"
	LevelWrite GrantLevel = "write"
)

// Valid reports whether the grant level is one of the known values.
func (g GrantLevel) Valid() bool {
	return g == LevelRead || g == LevelWrite
}

// HostGrant shares a host with a principal. A nil ExpiresAt never expires.
type HostGrant struct {
	ID            uuid.UUID
	HostID        uuid.UUID
	PrincipalKind PrincipalKind
	PrincipalID   uuid.UUID
	Level         GrantLevel
	ExpiresAt     *time.Time
	CreatedAt     time.Time
}

// Active reports whether the grant is unexpired at the given instant.
func (g *HostGrant) Active(now time.Time) bool {
	return g.ExpiresAt == nil || now.Before(*g.ExpiresAt)
}

// CreateGrantInput carries the fields for creating a share grant.
type CreateGrantInput struct {
	HostID        uuid.UUID
	PrincipalKind PrincipalKind
	PrincipalID   uuid.UUID
	Level         GrantLevel
	ExpiresAt     *time.Time
}

// Role is a named group of users used as a grant principal.
type Role struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// Intent is the kind of host access a permission check asks about.
type Intent string

const (
	IntentRead  Intent = "read"
	IntentWrite Intent = "write"
)

// GrantSource says which path allowed a non-owner access.
type GrantSource string

const (
	SourceDirect GrantSource = "direct"
	SourceRole   GrantSource = "role"
)

// PermissionDecision is the outcome of a permission check. GrantSource is
// empty for owners and for refusals.
type PermissionDecision struct {
	Allowed     bool
	IsOwner     bool
	GrantSource GrantSource
}
