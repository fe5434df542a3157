package domain

import (
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
)

// Host inventory errors.
var (
	// ErrHostNotFound indicates the host does not exist.
	ErrHostNotFound = apperrors.Wrap(apperrors.ErrNotFound, "host not found")

	// ErrHostAccessDenied indicates the host exists but the caller holds
	// no grant that covers the attempted operation.
	ErrHostAccessDenied = apperrors.Wrap(apperrors.ErrForbidden, "host access denied")

	// ErrCredentialNotFound indicates the credential does not exist.
	ErrCredentialNotFound = apperrors.Wrap(apperrors.ErrNotFound, "credential not found")

	// ErrGrantNotFound indicates the share grant does not exist.
	ErrGrantNotFound = apperrors.Wrap(apperrors.ErrNotFound, "grant not found")

	// ErrRoleNotFound indicates the role does not exist.
	ErrRoleNotFound = apperrors.Wrap(apperrors.ErrNotFound, "role not found")

	// ErrRoleNameTaken indicates a role name collision.
	ErrRoleNameTaken = apperrors.Wrap(apperrors.ErrConflict, "role name already taken")

	// ErrNotOwner indicates the caller does not own the host and the
	// operation is owner-only.
	ErrNotOwner = apperrors.Wrap(apperrors.ErrForbidden, "not the host owner")

	// ErrAuthConfigLocked indicates a shared writer tried to change the
	// host's authentication configuration, which only the owner may touch.
	ErrAuthConfigLocked = apperrors.Wrap(apperrors.ErrForbidden, "authentication configuration can only be changed by the owner")

	// ErrSelfGrant indicates an attempt to share a host with its owner.
	ErrSelfGrant = apperrors.Wrap(apperrors.ErrInvalidInput, "cannot share a host with its owner")
)
